package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/stagecam/stagecam/internal/capture"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List available camera devices",
	Long: `List the camera devices StageCam can capture from.

By default this enumerates V4L2 devices; --synthetic lists the built-in
test pattern sources instead.`,
	Example: `  # List V4L2 cameras in table format (default)
  stagecam devices

  # List devices in JSON format
  stagecam devices --format json

  # List the synthetic test sources
  stagecam devices --synthetic`,
	RunE: runDevices,
}

var (
	devicesFormat    string
	devicesSynthetic bool
)

func init() {
	rootCmd.AddCommand(devicesCmd)

	devicesCmd.Flags().StringVarP(&devicesFormat, "format", "f", "table", "output format (table or json)")
	devicesCmd.Flags().BoolVar(&devicesSynthetic, "synthetic", false, "list synthetic test sources")
}

func runDevices(cmd *cobra.Command, args []string) error {
	var backend capture.Backend
	if devicesSynthetic {
		backend = capture.NewSyntheticBackend(0, 0, 0)
	} else {
		backend = capture.NewGstBackend()
	}

	devices, err := backend.Devices()
	if err != nil {
		return fmt.Errorf("failed to enumerate devices: %w", err)
	}

	switch devicesFormat {
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(devices)
	case "table":
		return printDevicesTable(backend.Name(), devices)
	default:
		return fmt.Errorf("unsupported format: %s (use 'table' or 'json')", devicesFormat)
	}
}

func printDevicesTable(backendName string, devices []capture.Device) error {
	if len(devices) == 0 {
		fmt.Printf("No devices found (backend: %s)\n", backendName)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "ID\tNAME\tBACKEND")
	fmt.Fprintln(w, "--\t----\t-------")
	for _, d := range devices {
		fmt.Fprintf(w, "%s\t%s\t%s\n", d.ID, d.Name, backendName)
	}
	return nil
}
