package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "stagecam",
		Short: "StageCam - Virtual camera with live overlays",
		Long: `StageCam turns a capture device into a virtual camera with composited
overlays: a fixed-rate pipeline pulls raw camera frames, draws a preset
overlay (name, tagline, time, weather) on top, and republishes the result
to a v4l2 loopback device, a shared-memory side channel, and an MJPEG
preview.

Features:
  • Fixed-rate frame scheduling with placeholder frames during camera gaps
  • Preset overlays with token substitution and crossfaded transitions
  • Cross-process frame fetch over NATS with zero-copy shared memory
  • Adaptive performance governor with automatic error recovery
  • REST API, Prometheus metrics, and MJPEG preview`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/stagecam/config.yaml)")
	rootCmd.PersistentFlags().Int("port", 0, "server port (default is 8080)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("nats-url", "", "NATS server URL (empty runs the in-process bus)")
	rootCmd.PersistentFlags().Bool("pretty", false, "human-readable console logging")

	// Bind flags to viper
	viper.BindPFlag("server_port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("nats_url", rootCmd.PersistentFlags().Lookup("nats-url"))
	viper.BindPFlag("pretty", rootCmd.PersistentFlags().Lookup("pretty"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}
