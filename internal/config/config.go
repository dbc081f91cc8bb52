// Package config loads the daemon's configuration and the shared overlay
// settings. The settings file is owned by the external settings UI; this
// core reads it at session start and on explicit settings-changed signals,
// and never writes it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/stagecam/stagecam/internal/logger"
	"github.com/stagecam/stagecam/internal/render"
)

// Settings is the user-facing shared state: what the overlay shows and which
// camera feeds it.
type Settings struct {
	OverlayEnabled bool          `json:"overlay_enabled" yaml:"overlay_enabled"`
	PresetID       string        `json:"preset_id" yaml:"preset_id"`
	Aspect         render.Aspect `json:"aspect" yaml:"aspect"`
	Tokens         render.Tokens `json:"tokens" yaml:"tokens"`
	CameraDeviceID string        `json:"camera_device_id" yaml:"camera_device_id"`
}

// Config is the full daemon configuration.
type Config struct {
	ServerPort int    `json:"server_port" yaml:"server_port"`
	LogLevel   string `json:"log_level" yaml:"log_level"`
	NATSURL    string `json:"nats_url" yaml:"nats_url"`

	Output OutputConfig `json:"output" yaml:"output"`

	Settings Settings `json:"settings" yaml:"settings"`
}

// OutputConfig describes the fixed output geometry and sinks.
type OutputConfig struct {
	Width          int    `json:"width" yaml:"width"`
	Height         int    `json:"height" yaml:"height"`
	FPS            int    `json:"fps" yaml:"fps"`
	LoopbackDevice string `json:"loopback_device" yaml:"loopback_device"` // empty = headless
	ShmPrefix      string `json:"shm_prefix" yaml:"shm_prefix"`
	JPEGQuality    int    `json:"jpeg_quality" yaml:"jpeg_quality"`
}

// Manager loads and serves configuration. Reload re-reads the settings file
// when the external UI signals a change.
type Manager struct {
	configPath string
	mu         sync.RWMutex
	config     *Config
}

// NewManager resolves the config path (default
// $HOME/.config/stagecam/config.yaml) and loads it. A missing file yields
// defaults without creating the file: the settings UI owns it.
func NewManager(configFile string) (*Manager, error) {
	actualPath := configFile
	if actualPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		actualPath = filepath.Join(homeDir, ".config", "stagecam", "config.yaml")
	}

	m := &Manager{configPath: actualPath}
	if err := m.Reload(); err != nil {
		if os.IsNotExist(err) {
			logger.WithComponent("config").Info().
				Str("path", actualPath).
				Msg("Config file not found, using defaults")
			m.config = Defaults()
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	logger.WithComponent("config").Info().
		Str("path", actualPath).
		Str("preset", m.config.Settings.PresetID).
		Msg("Config loaded")
	return m, nil
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		ServerPort: 8080,
		LogLevel:   "info",
		NATSURL:    "",
		Output: OutputConfig{
			Width:       1920,
			Height:      1080,
			FPS:         60,
			ShmPrefix:   "stagecam-frame",
			JPEGQuality: 85,
		},
		Settings: Settings{
			OverlayEnabled: true,
			PresetID:       "lower-third",
			Aspect:         render.AspectWidescreen,
			Tokens: render.Tokens{
				DisplayName:    "StageCam",
				AccentColorHex: "#4ea1ff",
			},
			CameraDeviceID: "synthetic:0",
		},
	}
}

// Reload re-reads the config file from disk.
func (m *Manager) Reload() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config %q: %w", m.configPath, err)
	}
	if cfg.Output.Width <= 0 || cfg.Output.Height <= 0 {
		cfg.Output.Width = 1920
		cfg.Output.Height = 1080
	}
	if cfg.Output.FPS <= 0 {
		cfg.Output.FPS = 60
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.config
}

// GetSettings returns the current shared overlay settings.
func (m *Manager) GetSettings() Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config.Settings
}

// Path returns the resolved config file path.
func (m *Manager) Path() string {
	return m.configPath
}
