package capture

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/stagecam/stagecam/internal/logger"
)

// GstBackend captures from a V4L2 camera through GStreamer:
// v4l2src -> videoconvert -> RGBA appsink. Samples are pulled by a polling
// goroutine rather than emit-signals to avoid CGO callback instability.
type GstBackend struct {
	mu       sync.Mutex
	pipeline *gst.Pipeline
	appsink  *app.Sink
	deviceID string
	sink     FrameSink
	running  bool
	stopChan chan struct{}
	doneChan chan struct{}
}

// NewGstBackend builds an idle GStreamer camera backend.
func NewGstBackend() *GstBackend {
	return &GstBackend{}
}

// Name identifies the backend.
func (b *GstBackend) Name() string { return "gstreamer" }

// Devices enumerates /dev/video* nodes.
func (b *GstBackend) Devices() ([]Device, error) {
	matches, err := filepath.Glob("/dev/video*")
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate video devices: %w", err)
	}
	sort.Strings(matches)

	devices := make([]Device, 0, len(matches))
	for _, path := range matches {
		devices = append(devices, Device{ID: path, Name: filepath.Base(path)})
	}
	return devices, nil
}

// Start opens deviceID and begins delivering RGBA frames into sink.
func (b *GstBackend) Start(deviceID string, sink FrameSink) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return fmt.Errorf("gstreamer backend already running")
	}

	pipeline, appsink, err := buildCameraPipeline(deviceID)
	if err != nil {
		return err
	}

	b.pipeline = pipeline
	b.appsink = appsink
	b.deviceID = deviceID
	b.sink = sink
	b.stopChan = make(chan struct{})
	b.doneChan = make(chan struct{})
	b.running = true

	go b.pollSamples(b.stopChan, b.doneChan)

	logger.WithComponent("capture").Info().
		Str("device", deviceID).
		Msg("GStreamer capture started")
	return nil
}

// SwapDevice performs a live input swap: a replacement pipeline is brought to
// PLAYING before the old one is torn down. If the new device cannot be
// attached, the old pipeline keeps running and the error is returned.
func (b *GstBackend) SwapDevice(deviceID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return ErrNotRunning
	}

	newPipeline, newSink, err := buildCameraPipeline(deviceID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAttachFailed, err)
	}

	old := b.pipeline
	b.pipeline = newPipeline
	b.appsink = newSink
	b.deviceID = deviceID

	if old != nil {
		old.SetState(gst.StateNull)
		old.Unref()
	}

	logger.WithComponent("capture").Info().
		Str("device", deviceID).
		Msg("Capture input swapped")
	return nil
}

// Stop tears the pipeline down. Safe to call when already stopped.
func (b *GstBackend) Stop() error {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return nil
	}
	b.running = false
	close(b.stopChan)
	done := b.doneChan
	b.mu.Unlock()

	// Join the polling goroutine; it may hold an appsink reference mid-pull,
	// and the pipeline must not be unreffed underneath it.
	<-done

	b.mu.Lock()
	if b.pipeline != nil {
		b.pipeline.SetState(gst.StateNull)
		b.pipeline.Unref()
		b.pipeline = nil
		b.appsink = nil
	}
	b.mu.Unlock()

	logger.WithComponent("capture").Info().Msg("GStreamer capture stopped")
	return nil
}

func buildCameraPipeline(deviceID string) (*gst.Pipeline, *app.Sink, error) {
	if !strings.HasPrefix(deviceID, "/dev/video") {
		return nil, nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, deviceID)
	}
	if _, err := os.Stat(deviceID); err != nil {
		if os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("%w: %q", ErrDeviceNotFound, deviceID)
		}
		if os.IsPermission(err) {
			return nil, nil, fmt.Errorf("%w: %q", ErrPermissionDenied, deviceID)
		}
		return nil, nil, fmt.Errorf("failed to stat %q: %w", deviceID, err)
	}

	gst.Init(nil)

	pipelineStr := fmt.Sprintf(
		"v4l2src device=%s do-timestamp=true ! "+
			"videoconvert ! "+
			"video/x-raw,format=RGBA ! "+
			"appsink name=sink emit-signals=false max-buffers=2 drop=true",
		deviceID,
	)

	logger.WithComponent("capture").Debug().
		Str("pipeline", pipelineStr).
		Msg("Creating GStreamer pipeline")

	pipeline, err := gst.NewPipelineFromString(pipelineStr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	sinkElement, err := pipeline.GetElementByName("sink")
	if err != nil {
		pipeline.Unref()
		return nil, nil, fmt.Errorf("failed to get appsink: %w", err)
	}
	appsink := app.SinkFromElement(sinkElement)

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		pipeline.Unref()
		return nil, nil, fmt.Errorf("failed to start pipeline: %w", err)
	}

	return pipeline, appsink, nil
}

func (b *GstBackend) pollSamples(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(16 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			b.mu.Lock()
			appsink := b.appsink
			sink := b.sink
			running := b.running
			b.mu.Unlock()

			if !running || appsink == nil || sink == nil {
				continue
			}

			sample := appsink.TryPullSample(time.Millisecond)
			if sample == nil {
				continue
			}
			if frame := sampleToFrame(sample); frame != nil {
				sink(frame)
			}
		}
	}
}

// sampleToFrame copies a GStreamer sample into a Frame. The single copy out
// of the mapped buffer is the ownership-transfer point; everything past the
// slot shares the same image by reference.
func sampleToFrame(sample *gst.Sample) *Frame {
	buffer := sample.GetBuffer()
	if buffer == nil {
		return nil
	}

	caps := sample.GetCaps()
	if caps == nil {
		return nil
	}
	structure := caps.GetStructureAt(0)
	if structure == nil {
		return nil
	}

	widthVal, _ := structure.GetValue("width")
	heightVal, _ := structure.GetValue("height")
	w, ok := widthVal.(int)
	if !ok {
		return nil
	}
	h, ok := heightVal.(int)
	if !ok {
		return nil
	}

	mapInfo := buffer.Map(gst.MapRead)
	if mapInfo == nil {
		return nil
	}
	defer buffer.Unmap()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	data := mapInfo.Bytes()
	expected := w * h * 4
	if len(data) < expected {
		return nil
	}
	copy(img.Pix, data[:expected])

	return &Frame{
		Img:    img,
		Width:  w,
		Height: h,
		Format: PixelFormatRGBA,
		PTS:    time.Now(),
	}
}
