package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagecam/stagecam/internal/bus"
	"github.com/stagecam/stagecam/internal/capture"
	"github.com/stagecam/stagecam/internal/config"
	"github.com/stagecam/stagecam/internal/governor"
	"github.com/stagecam/stagecam/internal/metrics"
	"github.com/stagecam/stagecam/internal/overlay"
	"github.com/stagecam/stagecam/internal/pipeline"
	"github.com/stagecam/stagecam/internal/publish"
	"github.com/stagecam/stagecam/internal/render"
)

func newTestServer(t *testing.T) (*Server, *pipeline.Pipeline) {
	t.Helper()

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
output:
  width: 32
  height: 18
  fps: 120
settings:
  camera_device_id: synthetic:0
`), 0o644))
	cfgMgr, err := config.NewManager(cfgPath)
	require.NoError(t, err)

	lib, err := render.NewLibrary(render.BuiltinPresets()...)
	require.NoError(t, err)
	renderer := render.NewRenderer(lib)

	perf := governor.NewState()
	registry := prometheus.NewRegistry()
	mets := metrics.New(registry)

	slot := capture.NewSlot()
	backend := capture.NewSyntheticBackend(32, 18, 30)
	adapter := capture.NewAdapter(backend, slot, perf)
	errMgr := governor.NewErrorManager(capture.Classify, adapter, mets)

	holder := publish.NewHolder()
	publisher := publish.NewPublisher(holder, nil, nil, nil)

	pipe := pipeline.New(pipeline.Deps{
		Config:     cfgMgr,
		Adapter:    adapter,
		Slot:       slot,
		Renderer:   renderer,
		Compositor: overlay.NewCompositor(renderer, perf),
		Publisher:  publisher,
		Errors:     errMgr,
		Metrics:    mets,
	})
	t.Cleanup(pipe.Shutdown)

	server := NewServer(Deps{
		Pipeline: pipe,
		Adapter:  adapter,
		Config:   cfgMgr,
		Perf:     perf,
		Errors:   errMgr,
		Metrics:  mets,
		Holder:   holder,
		Signals:  bus.NewInprocBus(),
		Gatherer: registry,
	})
	return server, pipe
}

func getJSON(t *testing.T, handler http.Handler, path string, out interface{}) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if out != nil && rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

func TestStatusEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	var status map[string]interface{}
	rec := getJSON(t, server.Handler(), "/api/status", &status)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", status["stream_status"])
	assert.Equal(t, false, status["running"])
	assert.Equal(t, "optimal", status["mode"])
	assert.Equal(t, "always", status["retention"])
	assert.NotContains(t, status, "frame_index", "no frame is published yet")
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	var health map[string]interface{}
	rec := getJSON(t, server.Handler(), "/api/health", &health)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", health["status"])
}

func TestConfigEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	var cfg config.Config
	rec := getJSON(t, server.Handler(), "/api/config", &cfg)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 32, cfg.Output.Width)
	assert.Equal(t, "synthetic:0", cfg.Settings.CameraDeviceID)
}

func TestDevicesEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	var devices []capture.Device
	rec := getJSON(t, server.Handler(), "/api/devices", &devices)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, devices, 2)
	assert.Equal(t, "synthetic:0", devices[0].ID)
}

func TestStreamLifecycleEndpoints(t *testing.T) {
	server, pipe := newTestServer(t)
	handler := server.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/stream/start", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, pipe.Users())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/stream/stop", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, pipe.Users())
}

func TestSetDeviceEndpointValidation(t *testing.T) {
	server, _ := newTestServer(t)
	handler := server.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/device",
		jsonBody(`{"device_id": ""}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/device",
		jsonBody(`{"device_id": "synthetic:1"}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stagecam_pipeline_frames_generated_total")
}

func TestCORSPreflights(t *testing.T) {
	server, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func jsonBody(s string) *strings.Reader { return strings.NewReader(s) }
