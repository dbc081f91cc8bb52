package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stagecam/stagecam/internal/bus"
	"github.com/stagecam/stagecam/internal/sidechannel"
)

var fetchTimeout time.Duration

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch the current published frame descriptor",
	Long: `Fetch the current published frame's metadata over the NATS side
channel, the same request a companion process makes. The reply carries the
shared-memory handle of the frame's pixels; no pixel data crosses the bus.`,
	Example: `  # Fetch from the default NATS server
  stagecam fetch --nats-url nats://localhost:4222

  # With a longer request timeout
  stagecam fetch --nats-url nats://localhost:4222 --timeout 5s`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
	fetchCmd.Flags().DurationVar(&fetchTimeout, "timeout", 2*time.Second, "request timeout")
}

func runFetch(cmd *cobra.Command, args []string) error {
	url := viper.GetString("nats_url")
	if url == "" {
		return fmt.Errorf("fetch requires --nats-url: the side channel lives on the daemon's bus")
	}

	b, err := bus.ConnectNATS(url)
	if err != nil {
		return err
	}
	defer b.Close()

	resp, err := sidechannel.Fetch(b, fetchTimeout)
	if err != nil {
		if err == bus.ErrNoResponder {
			return fmt.Errorf("no StageCam daemon is serving the side channel on %s", url)
		}
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(resp)
}
