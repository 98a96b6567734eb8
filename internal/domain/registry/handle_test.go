package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewHandleRoundTrip(t *testing.T) {
	h := NewHandle(3, 0xabcdef)
	assert.Equal(t, uint8(3), h.Node())
	assert.Equal(t, uint32(0xabcdef), h.Slot())
}

func TestNewHandleMasksSlotOverflow(t *testing.T) {
	h := NewHandle(1, 0xffffffff)
	assert.Equal(t, uint32(0xffffff), h.Slot())
}
