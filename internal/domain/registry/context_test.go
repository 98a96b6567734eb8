package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/webitel/actor-runtime/internal/domain/message"
)

func TestNewContextStartsWithRefcountTwo(t *testing.T) {
	var got message.Type
	c := NewContext("svc", nil, func(ctx *Context, ud any, typ message.Type, session int32, source uint32, payload []byte) bool {
		got = typ
		return false
	}, nil)

	assert.False(t, c.Release())
	assert.True(t, c.Release())

	c.Dispatch(message.TypeText, 1, 2, []byte("hi"))
	assert.Equal(t, message.TypeText, got)
}

func TestNewSessionIsMonotonicAndPositive(t *testing.T) {
	c := NewContext("svc", nil, nil, nil)
	prev := int32(0)
	for i := 0; i < 5; i++ {
		s := c.NewSession()
		assert.Greater(t, s, prev)
		assert.GreaterOrEqual(t, s, int32(0))
		prev = s
	}
}

func TestPeekNextSessionDoesNotConsume(t *testing.T) {
	c := NewContext("svc", nil, nil, nil)

	peeked := c.PeekNextSession()
	assert.Equal(t, peeked, c.PeekNextSession())

	got := c.NewSession()
	assert.Equal(t, peeked, got)
}

func TestInitAndEndlessFlags(t *testing.T) {
	c := NewContext("svc", nil, nil, nil)
	assert.False(t, c.Initialized())
	c.SetInit()
	assert.True(t, c.Initialized())

	assert.False(t, c.ConsumeEndless())
	c.MarkEndless()
	assert.True(t, c.ConsumeEndless())
	assert.False(t, c.ConsumeEndless())
}
