package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vitalsync/wearsync/internal/classify"
	"github.com/vitalsync/wearsync/internal/gatt/goble"
	"github.com/vitalsync/wearsync/pkg/config"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for nearby BLE health devices",
	Long: `Scan for Bluetooth Low Energy devices in the vicinity and display
their names, addresses, signal strength, and classified device type.`,
	RunE: runScan,
}

var scanDuration time.Duration

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 0, "Scan duration (0 uses the configured default)")
}

func runScan(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := configureLogger(cmd, cfg.LogLevel)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	duration := cfg.ScanTimeout
	if scanDuration > 0 {
		duration = scanDuration
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nCtrl+C pressed, stopping scan...")
		cancel()
	}()

	capability := goble.New(cfg.ScanTimeout, cfg.ConnectTimeout, logger)

	var mu sync.Mutex
	seen := make(map[string]goble.DiscoveredDevice)

	fmt.Printf("Scanning for %s...\n", duration)
	err = capability.Discover(ctx, duration, func(d goble.DiscoveredDevice) {
		mu.Lock()
		defer mu.Unlock()
		if prev, ok := seen[d.Addr]; !ok || (prev.Name == "" && d.Name != "") {
			seen[d.Addr] = d
		}
	})
	if err != nil {
		return err
	}

	devices := make([]goble.DiscoveredDevice, 0, len(seen))
	for _, d := range seen {
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].RSSI > devices[j].RSSI })

	printDevices(devices)
	return nil
}

func printDevices(devices []goble.DiscoveredDevice) {
	if len(devices) == 0 {
		fmt.Println("No devices found.")
		return
	}

	wearable := color.New(color.FgGreen)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tADDRESS\tRSSI\tTYPE")
	for _, d := range devices {
		name := d.Name
		if name == "" {
			name = "(unnamed)"
		}
		kind := classify.Classify(d.Name)
		line := fmt.Sprintf("%s\t%s\t%d\t%s", name, d.Addr, d.RSSI, kind)
		if kind == classify.Smartwatch || kind == classify.SmartScale || kind == classify.Thermometer {
			line = wearable.Sprint(line)
		}
		fmt.Fprintln(w, line)
	}
	w.Flush()
	fmt.Printf("\n%d device(s) found\n", len(devices))
}
