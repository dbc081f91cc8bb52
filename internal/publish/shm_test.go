package publish

import (
	"encoding/binary"
	"image"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShmWriterPingPong(t *testing.T) {
	w, err := NewShmWriter(t.TempDir(), "frame", 2, 2)
	require.NoError(t, err)
	defer w.Close()

	first, err := w.Write(rgba(2, 2))
	require.NoError(t, err)
	second, err := w.Write(rgba(2, 2))
	require.NoError(t, err)
	third, err := w.Write(rgba(2, 2))
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "consecutive writes land in alternating segments")
	assert.Equal(t, first, third)
}

func TestShmWriterContents(t *testing.T) {
	dir := t.TempDir()
	w, err := NewShmWriter(dir, "frame", 2, 2)
	require.NoError(t, err)
	defer w.Close()

	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := range img.Pix {
		img.Pix[i] = byte(i)
	}

	handle, err := w.Write(img)
	require.NoError(t, err)

	// A consumer maps the segment by path; reading the file sees the same
	// pages, pixels after the generation header.
	data, err := os.ReadFile(handle)
	require.NoError(t, err)
	assert.Equal(t, []byte(img.Pix), data[shmHeaderSize:])
}

func TestShmWriterGenerationMarksStableFrames(t *testing.T) {
	w, err := NewShmWriter(t.TempDir(), "frame", 2, 2)
	require.NoError(t, err)
	defer w.Close()

	handle, err := w.Write(rgba(2, 2))
	require.NoError(t, err)

	data, err := os.ReadFile(handle)
	require.NoError(t, err)
	gen := binary.LittleEndian.Uint64(data[:shmHeaderSize])
	assert.NotZero(t, gen)
	assert.Zero(t, gen%2, "a settled segment carries an even generation")

	// The ping-pong wraps back to the first segment; its generation advances
	// so a reader can tell its pixels were rewritten under it.
	_, err = w.Write(rgba(2, 2))
	require.NoError(t, err)
	third, err := w.Write(rgba(2, 2))
	require.NoError(t, err)
	require.Equal(t, handle, third)

	data, err = os.ReadFile(handle)
	require.NoError(t, err)
	rewritten := binary.LittleEndian.Uint64(data[:shmHeaderSize])
	assert.Greater(t, rewritten, gen)
	assert.Zero(t, rewritten%2)
}

func TestShmWriterRejectsOversizedFrame(t *testing.T) {
	w, err := NewShmWriter(t.TempDir(), "frame", 2, 2)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write(rgba(64, 64))
	assert.Error(t, err)
}

func TestShmWriterCloseRemovesSegments(t *testing.T) {
	dir := t.TempDir()
	w, err := NewShmWriter(dir, "frame", 2, 2)
	require.NoError(t, err)

	handle, err := w.Write(rgba(2, 2))
	require.NoError(t, err)

	require.NoError(t, w.Close())

	_, statErr := os.Stat(handle)
	assert.True(t, os.IsNotExist(statErr), "segments are unlinked on close")

	_, err = w.Write(rgba(2, 2))
	assert.Error(t, err, "writes after close fail")
}
