// Package api exposes the daemon's HTTP surface: status and health JSON,
// stream lifecycle control, the MJPEG preview, Prometheus metrics, and a
// websocket feed mirroring the lifecycle signals.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stagecam/stagecam/internal/bus"
	"github.com/stagecam/stagecam/internal/capture"
	"github.com/stagecam/stagecam/internal/config"
	"github.com/stagecam/stagecam/internal/governor"
	"github.com/stagecam/stagecam/internal/logger"
	"github.com/stagecam/stagecam/internal/metrics"
	"github.com/stagecam/stagecam/internal/pipeline"
	"github.com/stagecam/stagecam/internal/publish"
)

// Server is the HTTP API server.
type Server struct {
	router    *mux.Router
	pipe      *pipeline.Pipeline
	adapter   *capture.Adapter
	configMgr *config.Manager
	perf      *governor.State
	errs      *governor.ErrorManager
	mets      *metrics.Pipeline
	holder    *publish.Holder
	preview   *publish.MJPEGPreview
	signals   bus.Bus
	gatherer  prometheus.Gatherer
	upgrader  websocket.Upgrader
}

// Deps carries the server's collaborators. Preview and signals may be nil.
type Deps struct {
	Pipeline *pipeline.Pipeline
	Adapter  *capture.Adapter
	Config   *config.Manager
	Perf     *governor.State
	Errors   *governor.ErrorManager
	Metrics  *metrics.Pipeline
	Holder   *publish.Holder
	Preview  *publish.MJPEGPreview
	Signals  bus.Bus
	Gatherer prometheus.Gatherer
}

// NewServer creates the API server and registers its routes.
func NewServer(deps Deps) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		pipe:      deps.Pipeline,
		adapter:   deps.Adapter,
		configMgr: deps.Config,
		perf:      deps.Perf,
		errs:      deps.Errors,
		mets:      deps.Metrics,
		holder:    deps.Holder,
		preview:   deps.Preview,
		signals:   deps.Signals,
		gatherer:  deps.Gatherer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // local control surface, same-host tooling
			},
		},
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/config", s.handleGetConfig).Methods("GET")
	api.HandleFunc("/devices", s.handleDevices).Methods("GET")
	api.HandleFunc("/device", s.handleSetDevice).Methods("PUT")
	api.HandleFunc("/stream/start", s.handleStartStream).Methods("POST")
	api.HandleFunc("/stream/stop", s.handleStopStream).Methods("POST")
	api.HandleFunc("/metrics/history", s.handleMetricsHistory).Methods("GET")
	api.HandleFunc("/events", s.handleEvents)

	if s.preview != nil {
		s.router.HandleFunc("/stream", s.preview.StreamHandler()).Methods("GET")
	}
	if s.gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
}

// Start starts the HTTP server. Blocks until the listener fails.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	logger.WithComponent("api").Info().
		Str("addr", addr).
		Msg("API server listening")
	return http.ListenAndServe(addr, s.enableCORS(s.router))
}

// Handler exposes the routed handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.enableCORS(s.router)
}

// enableCORS adds CORS headers
func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// HTTP Handlers

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"stream_status": string(s.errs.Status()),
		"running":       s.pipe.Running(),
		"users":         s.pipe.Users(),
		"device":        s.adapter.DeviceID(),
		"session":       s.adapter.SessionID(),
		"mode":          s.perf.Mode().String(),
		"retention":     s.perf.Retention().String(),
	}

	if frame, ok := s.holder.Snapshot(); ok {
		status["frame_index"] = frame.Index
		status["frame_width"] = frame.Width
		status["frame_height"] = frame.Height
	}
	if s.preview != nil {
		frames, fps, clients := s.preview.Stats()
		status["preview"] = map[string]interface{}{
			"frames":  frames,
			"fps":     fps,
			"clients": clients,
		}
	}

	writeJSON(w, status)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	successes, failures, streak := s.mets.Counts()
	resp := map[string]interface{}{
		"status":    string(s.errs.Status()),
		"successes": successes,
		"failures":  failures,
		"streak":    streak,
	}
	if history := s.mets.History(); len(history) > 0 {
		resp["health_score"] = history[len(history)-1].HealthScore
	}
	writeJSON(w, resp)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.configMgr.Get())
}

func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := s.adapter.Devices()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, devices)
}

func (s *Server) handleSetDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeviceID string `json:"device_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.DeviceID == "" {
		http.Error(w, "device_id is required", http.StatusBadRequest)
		return
	}

	if err := s.adapter.SetDevice(req.DeviceID); err != nil {
		// The previous input stays attached; report the failure without
		// changing stream state.
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	writeJSON(w, map[string]string{"status": "success", "device": req.DeviceID})
}

func (s *Server) handleStartStream(w http.ResponseWriter, r *http.Request) {
	if err := s.pipe.Acquire(); err != nil {
		logger.WithComponent("api").Warn().Err(err).Msg("Stream start reported a capture error")
	}
	writeJSON(w, map[string]interface{}{"status": "success", "users": s.pipe.Users()})
}

func (s *Server) handleStopStream(w http.ResponseWriter, r *http.Request) {
	s.pipe.Release()
	writeJSON(w, map[string]interface{}{"status": "success", "users": s.pipe.Users()})
}

func (s *Server) handleMetricsHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.mets.History())
}

// event is one websocket lifecycle notification.
type event struct {
	Topic string    `json:"topic"`
	At    time.Time `json:"at"`
}

// handleEvents upgrades to a websocket and mirrors the lifecycle signals so
// browser clients do not need a bus connection.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.signals == nil {
		http.Error(w, "signal feed unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithComponent("api").Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	events := make(chan event, 16)
	topics := []string{
		bus.TopicFrameAvailable,
		bus.TopicStreamStopped,
		bus.TopicStartStream,
		bus.TopicStopStream,
	}

	var subs []bus.Subscription
	for _, topic := range topics {
		sub, err := s.signals.Subscribe(topic, func(subject string, _ []byte) {
			select {
			case events <- event{Topic: subject, At: time.Now()}:
			default:
				// Slow websocket client, drop the notification.
			}
		})
		if err != nil {
			logger.WithComponent("api").Warn().Err(err).Str("topic", topic).Msg("Event subscribe failed")
			continue
		}
		subs = append(subs, sub)
	}
	defer func() {
		for _, sub := range subs {
			_ = sub.Unsubscribe()
		}
	}()

	// Reader goroutine detects client disconnect.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case ev := <-events:
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.WithComponent("api").Debug().Err(err).Msg("Response encode failed")
	}
}
