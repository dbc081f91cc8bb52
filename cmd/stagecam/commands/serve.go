package commands

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stagecam/stagecam/internal/api"
	"github.com/stagecam/stagecam/internal/bus"
	"github.com/stagecam/stagecam/internal/capture"
	"github.com/stagecam/stagecam/internal/config"
	"github.com/stagecam/stagecam/internal/enrich"
	"github.com/stagecam/stagecam/internal/governor"
	"github.com/stagecam/stagecam/internal/logger"
	"github.com/stagecam/stagecam/internal/metrics"
	"github.com/stagecam/stagecam/internal/overlay"
	"github.com/stagecam/stagecam/internal/pipeline"
	"github.com/stagecam/stagecam/internal/publish"
	"github.com/stagecam/stagecam/internal/render"
	"github.com/stagecam/stagecam/internal/sidechannel"
)

// Heap thresholds for the pressure ladder.
const (
	heapModerateBytes = 512 << 20
	heapSevereBytes   = 1 << 30
)

var serveStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the StageCam daemon",
	Long: `Start the StageCam daemon: the frame pipeline, the control bus, the
frame-fetch side channel, and the HTTP API.

The stream itself starts when the first consumer acquires it, either over
the bus (start-stream signal), the REST API, or the --start flag.`,
	Example: `  # Start the daemon; the stream waits for the first consumer
  stagecam serve

  # Start the daemon and the stream immediately
  stagecam serve --start

  # Use a NATS control bus instead of the in-process one
  stagecam serve --nats-url nats://localhost:4222

  # Custom port and debug logging
  stagecam serve --port 9090 --log-level debug`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveStart, "start", false, "acquire the stream immediately")
}

func runServe(cmd *cobra.Command, args []string) error {
	configMgr, err := config.NewManager(GetConfigFile())
	if err != nil {
		return fmt.Errorf("failed to initialize config manager: %w", err)
	}
	cfg := configMgr.Get()

	// Flag overrides
	if viper.IsSet("server_port") && viper.GetInt("server_port") > 0 {
		cfg.ServerPort = viper.GetInt("server_port")
	}
	if viper.IsSet("log_level") && viper.GetString("log_level") != "" {
		cfg.LogLevel = viper.GetString("log_level")
	}
	if viper.IsSet("nats_url") && viper.GetString("nats_url") != "" {
		cfg.NATSURL = viper.GetString("nats_url")
	}

	logger.Init(cfg.LogLevel, viper.GetBool("pretty"))
	log := logger.WithComponent("serve")
	log.Info().Str("config", configMgr.Path()).Msg("StageCam starting")

	// Overlay rendering
	lib, err := render.NewLibrary(render.BuiltinPresets()...)
	if err != nil {
		return fmt.Errorf("failed to build preset library: %w", err)
	}
	renderer := render.NewRenderer(lib)

	// Shared performance state and metrics
	perf := governor.NewState()
	registry := prometheus.NewRegistry()
	mets := metrics.New(registry)

	// Capture
	out := cfg.Output
	slot := capture.NewSlot()
	backend := selectBackend(cfg.Settings.CameraDeviceID, out.Width, out.Height, out.FPS)
	adapter := capture.NewAdapter(backend, slot, perf)

	errMgr := governor.NewErrorManager(capture.Classify, adapter, mets)
	adapter.OnFault = errMgr.HandleFault

	compositor := overlay.NewCompositor(renderer, perf)

	pressure := governor.HeapPressureSource{
		ModerateBytes: heapModerateBytes,
		SevereBytes:   heapSevereBytes,
	}
	gov := governor.New(perf, pressure, 0, mets)
	gov.ClearOverlayCache = compositor.ClearCache
	gov.DropRawFrame = slot.Clear
	gov.Start()
	defer gov.Stop()

	// Publishing
	holder := publish.NewHolder()
	shm, err := publish.NewShmWriter("", out.ShmPrefix, out.Width, out.Height)
	if err != nil {
		return fmt.Errorf("failed to create shared-memory segments: %w", err)
	}
	defer shm.Close()

	var sink *publish.V4L2Sink
	if out.LoopbackDevice != "" {
		sink, err = publish.NewV4L2Sink(out.LoopbackDevice, out.Width, out.Height)
		if err != nil {
			// The stream still publishes to shm and the preview; only the
			// OS-facing camera is missing.
			log.Warn().Err(err).
				Str("device", out.LoopbackDevice).
				Msg("Loopback device unavailable, continuing headless")
		} else {
			defer sink.Close()
		}
	}

	preview := publish.NewMJPEGPreview(out.JPEGQuality)
	preview.Start()
	defer preview.Stop()

	publisher := publish.NewPublisher(holder, shm, sink, preview)

	// Control bus
	var controlBus bus.Bus
	if cfg.NATSURL != "" {
		controlBus, err = bus.ConnectNATS(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("failed to connect control bus: %w", err)
		}
	} else {
		log.Info().Msg("No NATS URL configured, running the in-process bus")
		controlBus = bus.NewInprocBus()
	}
	defer controlBus.Close()

	sideChannel, err := sidechannel.Attach(controlBus, holder)
	if err != nil {
		return err
	}
	defer sideChannel.Detach()

	// Ambient token enrichment
	enricher := enrich.NewEnricher(0, enrich.ClockSource{})
	enricher.Start()
	defer enricher.Stop()

	// Pipeline
	pipe := pipeline.New(pipeline.Deps{
		Config:     configMgr,
		Adapter:    adapter,
		Slot:       slot,
		Renderer:   renderer,
		Compositor: compositor,
		Publisher:  publisher,
		Enricher:   enricher,
		Errors:     errMgr,
		Metrics:    mets,
		Pressure:   pressure,
	})
	if err := pipe.AttachBus(controlBus); err != nil {
		return err
	}
	defer pipe.DetachBus()
	defer pipe.Shutdown()

	// HTTP API
	server := api.NewServer(api.Deps{
		Pipeline: pipe,
		Adapter:  adapter,
		Config:   configMgr,
		Perf:     perf,
		Errors:   errMgr,
		Metrics:  mets,
		Holder:   holder,
		Preview:  preview,
		Signals:  controlBus,
		Gatherer: registry,
	})
	go func() {
		if err := server.Start(cfg.ServerPort); err != nil {
			log.Error().Err(err).Msg("API server failed")
		}
	}()

	if serveStart {
		if err := pipe.Acquire(); err != nil {
			log.Warn().Err(err).Msg("Initial stream start reported a capture error")
		}
	}

	log.Info().
		Int("port", cfg.ServerPort).
		Str("device", cfg.Settings.CameraDeviceID).
		Msg("StageCam is running")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down")
	return nil
}

// selectBackend picks the capture backend by device id: synthetic test
// sources are generated in-process, everything else goes through GStreamer.
func selectBackend(deviceID string, width, height, fps int) capture.Backend {
	if strings.HasPrefix(deviceID, "synthetic:") {
		return capture.NewSyntheticBackend(width, height, fps)
	}
	return capture.NewGstBackend()
}
