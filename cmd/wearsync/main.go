package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wearsync",
	Short: "Wearable health device ingestion tool",
	Long: `Wearable-device ingestion tool for BLE health devices:

- Scan and discover nearby BLE health devices
- Connect to a device and negotiate whichever GATT services it exposes
- Decode standard heart-rate/battery/SpO2/thermometer profiles and the
  Da Fit-family vendor step/calorie protocol
- Normalize decoded values into a canonical health reading
- Persist readings locally and forward them for risk prediction

Devices expose arbitrary subsets of the service catalogue; a partially
supported device still produces a reading with whatever it offers.`,
	Version: version,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	// Silence Cobra's "Error:" prefix - main() prints clean errors
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(syncCmd)

	// Global flags
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("config", "", "Path to YAML config file")

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}
