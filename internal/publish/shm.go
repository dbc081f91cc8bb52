package publish

import (
	"encoding/binary"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/stagecam/stagecam/internal/logger"
)

// shmHeaderSize is the per-segment header: an 8-byte little-endian
// generation counter ahead of the pixel data. The counter is odd while a
// rewrite is in progress and even once the pixels are stable, so a reader
// that observes the same even value before and after its copy knows the
// frame was consistent.
const shmHeaderSize = 8

// ShmWriter maintains two memory-mapped segments under /dev/shm and writes
// each published frame into the one not currently referenced by the holder.
// The segment path is the transferable handle: the companion process maps
// the same pages, so fetching a frame moves no pixel data over the bus.
// Pixels start at shmHeaderSize; the header lets the reader detect a
// rewrite landing mid-copy.
type ShmWriter struct {
	dir      string
	prefix   string
	size     int
	segments [2]*shmSegment
	next     int
}

type shmSegment struct {
	path string
	file *os.File
	data []byte
}

// NewShmWriter creates (or truncates) the ping-pong segments sized for
// width×height RGBA frames.
func NewShmWriter(dir, prefix string, width, height int) (*ShmWriter, error) {
	if dir == "" {
		dir = "/dev/shm"
	}
	if _, err := os.Stat(dir); err != nil {
		// No tmpfs mount (containers, tests): fall back to the temp dir.
		dir = os.TempDir()
	}

	w := &ShmWriter{
		dir:    dir,
		prefix: prefix,
		size:   width * height * 4,
	}

	for i := range w.segments {
		seg, err := openSegment(filepath.Join(dir, fmt.Sprintf("%s-%d", prefix, i)), shmHeaderSize+w.size)
		if err != nil {
			w.Close()
			return nil, err
		}
		w.segments[i] = seg
	}

	logger.WithComponent("publish").Info().
		Str("dir", dir).
		Int("segment_bytes", w.size).
		Msg("Shared-memory frame segments ready")
	return w, nil
}

func openSegment(path string, size int) (*shmSegment, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open shm segment %q: %w", path, err)
	}
	if err := f.Truncate(int64(size)); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to size shm segment %q: %w", path, err)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to map shm segment %q: %w", path, err)
	}
	return &shmSegment{path: path, file: f, data: data}, nil
}

// Write copies the frame's pixels into the inactive segment and returns its
// path as the handle for the next published frame.
func (w *ShmWriter) Write(img *image.RGBA) (string, error) {
	seg := w.segments[w.next]
	if seg == nil {
		return "", fmt.Errorf("shm writer is closed")
	}
	if len(img.Pix) > len(seg.data)-shmHeaderSize {
		return "", fmt.Errorf("frame (%d bytes) exceeds segment (%d bytes)", len(img.Pix), len(seg.data)-shmHeaderSize)
	}

	// Mark the segment dirty (odd), rewrite, mark it stable (even).
	gen := binary.LittleEndian.Uint64(seg.data) | 1
	binary.LittleEndian.PutUint64(seg.data, gen)
	copy(seg.data[shmHeaderSize:], img.Pix)
	binary.LittleEndian.PutUint64(seg.data, gen+1)

	w.next = (w.next + 1) % len(w.segments)
	return seg.path, nil
}

// Close unmaps and removes the segments.
func (w *ShmWriter) Close() error {
	var firstErr error
	for i, seg := range w.segments {
		if seg == nil {
			continue
		}
		if err := unix.Munmap(seg.data); err != nil && firstErr == nil {
			firstErr = err
		}
		seg.file.Close()
		os.Remove(seg.path)
		w.segments[i] = nil
	}
	return firstErr
}
