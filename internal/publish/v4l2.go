package publish

import (
	"encoding/binary"
	"fmt"
	"image"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/stagecam/stagecam/internal/logger"
)

// V4L2Sink writes composited frames into a v4l2loopback output device, which
// is what arbitrary client applications (browsers, video-call apps) open as
// the virtual camera.
type V4L2Sink struct {
	path   string
	file   *os.File
	width  int
	height int
}

const (
	// VIDIOC_S_FMT = _IOWR('V', 5, struct v4l2_format); v4l2_format is
	// 208 bytes on 64-bit Linux.
	vidiocSFmt = 0xc0d05605

	v4l2BufTypeVideoOutput = 2
	v4l2FieldNone          = 1
	v4l2ColorspaceSRGB     = 8

	// FOURCC "AB24": 32-bit RGBA.
	pixFmtRGBA32 = uint32('A') | uint32('B')<<8 | uint32('2')<<16 | uint32('4')<<24
)

// NewV4L2Sink opens the loopback device and negotiates the fixed RGBA
// output format.
func NewV4L2Sink(path string, width, height int) (*V4L2Sink, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open loopback device %q: %w", path, err)
	}

	s := &V4L2Sink{path: path, file: f, width: width, height: height}
	if err := s.setFormat(); err != nil {
		f.Close()
		return nil, err
	}

	logger.WithComponent("publish").Info().
		Str("device", path).
		Int("width", width).
		Int("height", height).
		Msg("V4L2 loopback sink opened")
	return s, nil
}

// setFormat issues VIDIOC_S_FMT for the output buffer type. The v4l2_format
// struct is packed by hand: u32 type, padding to 8, then v4l2_pix_format.
func (s *V4L2Sink) setFormat() error {
	var buf [208]byte
	le := binary.LittleEndian

	le.PutUint32(buf[0:], v4l2BufTypeVideoOutput)
	// v4l2_pix_format at offset 8 (union is 8-byte aligned).
	le.PutUint32(buf[8:], uint32(s.width))
	le.PutUint32(buf[12:], uint32(s.height))
	le.PutUint32(buf[16:], pixFmtRGBA32)
	le.PutUint32(buf[20:], v4l2FieldNone)
	le.PutUint32(buf[24:], uint32(s.width*4))          // bytesperline
	le.PutUint32(buf[28:], uint32(s.width*s.height*4)) // sizeimage
	le.PutUint32(buf[32:], v4l2ColorspaceSRGB)

	_, _, errno := unix.Syscall(
		unix.SYS_IOCTL,
		s.file.Fd(),
		uintptr(vidiocSFmt),
		uintptr(unsafe.Pointer(&buf[0])),
	)
	if errno != 0 {
		return fmt.Errorf("VIDIOC_S_FMT on %q failed: %w", s.path, errno)
	}
	return nil
}

// WriteFrame pushes one RGBA frame to the device.
func (s *V4L2Sink) WriteFrame(img *image.RGBA) error {
	expected := s.width * s.height * 4
	if len(img.Pix) != expected {
		return fmt.Errorf("frame size mismatch: got %d bytes, device expects %d", len(img.Pix), expected)
	}
	if _, err := s.file.Write(img.Pix); err != nil {
		return fmt.Errorf("failed to write frame to %q: %w", s.path, err)
	}
	return nil
}

// Close releases the device.
func (s *V4L2Sink) Close() error {
	return s.file.Close()
}
