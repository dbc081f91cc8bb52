package capture

import (
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/stagecam/stagecam/internal/governor"
)

func testFrame() *Frame {
	return &Frame{
		Img:    image.NewRGBA(image.Rect(0, 0, 2, 2)),
		Width:  2,
		Height: 2,
		Format: PixelFormatRGBA,
		PTS:    time.Now(),
	}
}

func TestSlotTakeClears(t *testing.T) {
	s := NewSlot()
	f := testFrame()

	assert.True(t, s.Put(f, governor.RetainAlways))
	assert.Same(t, f, s.Take())
	assert.Nil(t, s.Take(), "take drains the slot")
}

func TestSlotRetainAlwaysOverwrites(t *testing.T) {
	s := NewSlot()
	first := testFrame()
	second := testFrame()

	assert.True(t, s.Put(first, governor.RetainAlways))
	assert.True(t, s.Put(second, governor.RetainAlways))

	assert.Same(t, second, s.Take(), "newest frame wins")
	assert.Equal(t, uint64(1), s.Drops(), "superseded frame counts as a drop")
}

func TestSlotRetainMinimalRejectsWhenOccupied(t *testing.T) {
	s := NewSlot()
	first := testFrame()

	assert.True(t, s.Put(first, governor.RetainMinimal))
	assert.False(t, s.Put(testFrame(), governor.RetainMinimal))
	assert.False(t, s.Put(testFrame(), governor.RetainMinimal))

	assert.Same(t, first, s.Take(), "held frame survives under minimal retention")
	assert.Equal(t, uint64(2), s.Drops())

	// Once drained, the next frame is accepted again.
	assert.True(t, s.Put(testFrame(), governor.RetainMinimal))
}

func TestSlotRetainAdaptiveKeepsEverySecond(t *testing.T) {
	s := NewSlot()

	// Delivery 1 fills the empty slot.
	assert.True(t, s.Put(testFrame(), governor.RetainAdaptive))

	kept := 0
	for i := 0; i < 6; i++ {
		if s.Put(testFrame(), governor.RetainAdaptive) {
			kept++
		}
	}
	assert.Equal(t, 3, kept, "occupied slot keeps every second delivery")
}

func TestSlotPeekDoesNotDrain(t *testing.T) {
	s := NewSlot()
	f := testFrame()
	s.Put(f, governor.RetainAlways)

	assert.Same(t, f, s.Peek())
	assert.Same(t, f, s.Take())
}

func TestSlotClear(t *testing.T) {
	s := NewSlot()
	s.Put(testFrame(), governor.RetainAlways)
	s.Clear()
	assert.Nil(t, s.Take())
}
