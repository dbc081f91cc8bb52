package sidechannel

import (
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagecam/stagecam/internal/bus"
	"github.com/stagecam/stagecam/internal/publish"
)

func TestFetchEmptyStream(t *testing.T) {
	b := bus.NewInprocBus()
	holder := publish.NewHolder()

	server, err := Attach(b, holder)
	require.NoError(t, err)
	defer server.Detach()

	resp, err := Fetch(b, time.Second)
	require.NoError(t, err, "an empty stream is a valid state, not an error")
	assert.False(t, resp.HasFrame)
	assert.Empty(t, resp.Handle)
}

func TestFetchPublishedFrame(t *testing.T) {
	b := bus.NewInprocBus()
	holder := publish.NewHolder()

	server, err := Attach(b, holder)
	require.NoError(t, err)
	defer server.Detach()

	pts := time.Unix(42, 7)
	holder.Publish(image.NewRGBA(image.Rect(0, 0, 8, 6)), pts, "/dev/shm/stagecam-frame-0")

	resp, err := Fetch(b, time.Second)
	require.NoError(t, err)

	assert.True(t, resp.HasFrame)
	assert.Equal(t, "/dev/shm/stagecam-frame-0", resp.Handle)
	assert.Equal(t, 8, resp.Width)
	assert.Equal(t, 6, resp.Height)
	assert.Equal(t, "RGBA", resp.PixelFormat)
	assert.Equal(t, int64(1), resp.FrameIndex)
	assert.Equal(t, pts.UnixNano(), resp.PTSNumerator)
	assert.Equal(t, int64(time.Second), resp.PTSDenominator)
	assert.Equal(t, publish.ColorSpaceSRGB, resp.ColorSpaceName)
}

func TestFetchAfterStreamStopped(t *testing.T) {
	b := bus.NewInprocBus()
	holder := publish.NewHolder()

	server, err := Attach(b, holder)
	require.NoError(t, err)
	defer server.Detach()

	holder.Publish(image.NewRGBA(image.Rect(0, 0, 4, 4)), time.Now(), "h")
	holder.Clear()

	resp, err := Fetch(b, time.Second)
	require.NoError(t, err)
	assert.False(t, resp.HasFrame, "a stopped stream reports no frame immediately")
}

func TestFetchIndexAdvances(t *testing.T) {
	b := bus.NewInprocBus()
	holder := publish.NewHolder()

	server, err := Attach(b, holder)
	require.NoError(t, err)
	defer server.Detach()

	holder.Publish(image.NewRGBA(image.Rect(0, 0, 4, 4)), time.Now(), "a")
	first, err := Fetch(b, time.Second)
	require.NoError(t, err)

	holder.Publish(image.NewRGBA(image.Rect(0, 0, 4, 4)), time.Now(), "b")
	second, err := Fetch(b, time.Second)
	require.NoError(t, err)

	assert.Greater(t, second.FrameIndex, first.FrameIndex,
		"consumers detect gaps and duplicates by index")
}

func TestDetachRemovesResponder(t *testing.T) {
	b := bus.NewInprocBus()
	holder := publish.NewHolder()

	server, err := Attach(b, holder)
	require.NoError(t, err)
	server.Detach()

	_, err = Fetch(b, time.Second)
	assert.ErrorIs(t, err, bus.ErrNoResponder)
}
