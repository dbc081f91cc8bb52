package publish

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"sync"
	"time"

	"github.com/stagecam/stagecam/internal/logger"
)

// MJPEGPreview streams published frames as Motion JPEG over HTTP for the
// browser-based preview. It sits off the critical path: slow clients get
// frames dropped, never backpressure.
type MJPEGPreview struct {
	quality int

	mu      sync.RWMutex
	running bool

	clientsMu sync.RWMutex
	clients   map[chan []byte]struct{}

	frameCount uint64
	startTime  time.Time
}

// NewMJPEGPreview creates a preview output with the given JPEG quality.
func NewMJPEGPreview(quality int) *MJPEGPreview {
	if quality <= 0 || quality > 100 {
		quality = 85
	}
	return &MJPEGPreview{
		quality: quality,
		clients: make(map[chan []byte]struct{}),
	}
}

// Start marks the preview active.
func (m *MJPEGPreview) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.startTime = time.Now()
	m.frameCount = 0
}

// Stop disconnects all preview clients. Safe to call repeatedly.
func (m *MJPEGPreview) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	frames := m.frameCount
	m.mu.Unlock()

	m.clientsMu.Lock()
	for ch := range m.clients {
		close(ch)
	}
	m.clients = make(map[chan []byte]struct{})
	m.clientsMu.Unlock()

	logger.WithComponent("preview").Info().
		Uint64("frames", frames).
		Msg("MJPEG preview stopped")
}

// WriteFrame encodes and fans a frame out to connected clients.
func (m *MJPEGPreview) WriteFrame(frame *image.RGBA) error {
	m.mu.RLock()
	running := m.running
	m.mu.RUnlock()
	if !running {
		return fmt.Errorf("MJPEG preview not running")
	}

	m.clientsMu.RLock()
	clientCount := len(m.clients)
	m.clientsMu.RUnlock()

	m.mu.Lock()
	m.frameCount++
	m.mu.Unlock()

	// Skip the encode entirely when nobody is watching.
	if clientCount == 0 {
		return nil
	}

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, frame, &jpeg.Options{Quality: m.quality}); err != nil {
		return fmt.Errorf("failed to encode JPEG: %w", err)
	}
	jpegData := buf.Bytes()

	m.clientsMu.RLock()
	for ch := range m.clients {
		select {
		case ch <- jpegData:
		default:
			// Client is slow, skip this frame for it.
		}
	}
	m.clientsMu.RUnlock()

	return nil
}

// StreamHandler serves the multipart MJPEG stream.
func (m *MJPEGPreview) StreamHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Connection", "close")

		frameChan := make(chan []byte, 2)

		m.clientsMu.Lock()
		m.clients[frameChan] = struct{}{}
		clientCount := len(m.clients)
		m.clientsMu.Unlock()

		logger.WithComponent("preview").Info().
			Int("clients", clientCount).
			Msg("Preview client connected")

		defer func() {
			m.clientsMu.Lock()
			delete(m.clients, frameChan)
			remaining := len(m.clients)
			m.clientsMu.Unlock()
			logger.WithComponent("preview").Info().
				Int("clients", remaining).
				Msg("Preview client disconnected")
		}()

		for jpegData := range frameChan {
			if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpegData)); err != nil {
				return
			}
			if _, err := w.Write(jpegData); err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "\r\n"); err != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
		}
	}
}

// Stats reports preview throughput for the status endpoint.
func (m *MJPEGPreview) Stats() (frames uint64, fps float64, clients int) {
	m.mu.RLock()
	frames = m.frameCount
	if m.running && !m.startTime.IsZero() {
		if elapsed := time.Since(m.startTime).Seconds(); elapsed > 0 {
			fps = float64(frames) / elapsed
		}
	}
	m.mu.RUnlock()

	m.clientsMu.RLock()
	clients = len(m.clients)
	m.clientsMu.RUnlock()
	return frames, fps, clients
}
