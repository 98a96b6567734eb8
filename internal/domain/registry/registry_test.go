package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContext(name string) *Context {
	return NewContext(name, nil, nil, nil)
}

func TestRegisterAssignsDistinctHandles(t *testing.T) {
	r := New(WithNode(1), WithSlotSize(2))

	a, err := r.Register(newTestContext("alpha"))
	require.NoError(t, err)
	b, err := r.Register(newTestContext("beta"))
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, uint8(1), a.Node())
	assert.Equal(t, uint8(1), b.Node())
}

func TestRegisterGrowsSlotTable(t *testing.T) {
	r := New(WithSlotSize(2))

	handles := make([]Handle, 0, 8)
	for i := 0; i < 8; i++ {
		h, err := r.Register(newTestContext("svc"))
		require.NoError(t, err)
		handles = append(handles, h)
	}

	assert.Equal(t, 8, r.Total())
	for _, h := range handles {
		assert.NotNil(t, r.Grab(h))
	}
}

func TestGrabUnknownHandleReturnsNil(t *testing.T) {
	r := New()
	assert.Nil(t, r.Grab(NewHandle(0, 42)))
}

func TestGrabIncrementsRefcount(t *testing.T) {
	r := New()
	ctx := newTestContext("svc")
	h, err := r.Register(ctx)
	require.NoError(t, err)

	got := r.Grab(h)
	require.NotNil(t, got)
	assert.False(t, got.Release()) // this grab is dropped; registry's own ref + creator's ref remain

	_, freed := r.Retire(h)
	assert.False(t, freed) // the creator's ref (from NewContext) is still held
}

func TestRetireIsIdempotentForUnknownHandle(t *testing.T) {
	r := New()
	ctx, freed := r.Retire(NewHandle(0, 7))
	assert.Nil(t, ctx)
	assert.False(t, freed)
}

func TestNameHandleAndFindName(t *testing.T) {
	r := New()
	ctx := newTestContext("svc")
	h, err := r.Register(ctx)
	require.NoError(t, err)

	name, err := r.NameHandle(h, "logger")
	require.NoError(t, err)
	assert.Equal(t, "logger", name)

	assert.Equal(t, h, r.FindName("logger"))
	assert.Equal(t, Handle(0), r.FindName("missing"))
}

func TestNameHandleRejectsDuplicateName(t *testing.T) {
	r := New()
	h1, _ := r.Register(newTestContext("a"))
	h2, _ := r.Register(newTestContext("b"))

	_, err := r.NameHandle(h1, "shared")
	require.NoError(t, err)

	_, err = r.NameHandle(h2, "shared")
	assert.ErrorIs(t, err, ErrNameExists)
}

func TestRetireRemovesBoundNames(t *testing.T) {
	r := New()
	h, _ := r.Register(newTestContext("svc"))
	_, err := r.NameHandle(h, "svc")
	require.NoError(t, err)

	r.Retire(h)
	assert.Equal(t, Handle(0), r.FindName("svc"))
}

func TestRetireAllDrainsEveryHandle(t *testing.T) {
	r := New()
	for i := 0; i < 5; i++ {
		_, err := r.Register(newTestContext("svc"))
		require.NoError(t, err)
	}
	require.Equal(t, 5, r.Total())

	r.RetireAll()
	assert.Equal(t, 0, r.Total())
}
