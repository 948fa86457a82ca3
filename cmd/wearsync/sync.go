package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vitalsync/wearsync/internal/decode"
	"github.com/vitalsync/wearsync/internal/gatt"
	"github.com/vitalsync/wearsync/internal/gatt/goble"
	"github.com/vitalsync/wearsync/internal/gateway"
	"github.com/vitalsync/wearsync/internal/predict"
	"github.com/vitalsync/wearsync/internal/reading"
	"github.com/vitalsync/wearsync/internal/session"
	"github.com/vitalsync/wearsync/internal/sink"
	"github.com/vitalsync/wearsync/pkg/config"
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Connect to a wearable and sync one reading",
	Long: `Connect to a nearby BLE health device, negotiate whichever GATT
services it exposes, stream notifications for a window, then normalize the
accumulated values into a canonical reading and dispatch it to the
configured persistence sinks (and, optionally, the prediction endpoint).

Missing services are expected: a device that only exposes a battery level
still produces a reading.`,
	RunE: runSync,
}

var (
	syncDeviceName   string
	syncStreamWindow time.Duration
)

func init() {
	syncCmd.Flags().StringVarP(&syncDeviceName, "device", "n", "", "Device name prefix to match (empty matches any named device)")
	syncCmd.Flags().DurationVarP(&syncStreamWindow, "window", "w", 0, "Streaming window before the reading is snapshotted (0 uses the configured default)")
}

func runSync(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := configureLogger(cmd, cfg.LogLevel)
	if err != nil {
		return err
	}

	cmd.SilenceUsage = true

	window := cfg.StreamWindow
	if syncStreamWindow > 0 {
		window = syncStreamWindow
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nCtrl+C pressed, cancelling...")
		cancel()
	}()

	capability := goble.New(cfg.ScanTimeout, cfg.ConnectTimeout, logger)
	manager := session.NewManager(capability, logger, &session.ManagerOptions{
		ConnectAttempts: cfg.ConnectAttempts,
		ConnectBackoff:  cfg.ConnectBackoff,
	})
	catalogue := session.StandardCatalogue()

	sess, err := manager.StartSession(ctx, gatt.Filter{
		NamePrefix:       syncDeviceName,
		OptionalServices: catalogue.ServiceUUIDs(),
	})
	if err != nil {
		if errors.Is(err, gatt.ErrUserCancelled) {
			// Not an error condition: no session produced.
			fmt.Println("No device selected.")
			return nil
		}
		return err
	}
	defer manager.Teardown(sess)

	if err := manager.Connect(ctx, sess); err != nil {
		return err
	}

	negotiator := session.NewNegotiator(decode.StandardRegistry(), logger)
	results := negotiator.Negotiate(ctx, sess, catalogue)
	printNegotiation(results)

	if len(sess.NegotiatedServices()) == 0 {
		fmt.Println("Device offered none of the catalogued services; nothing to sync.")
		return nil
	}

	fmt.Printf("Streaming for %s...\n", window)
	select {
	case <-ctx.Done():
	case <-time.After(window):
	}

	r := sess.Snapshot()
	printReading(r)

	gw, closeSinks, err := buildGateway(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	if err := gw.Dispatch(context.Background(), r); err != nil {
		return err
	}
	if r.IsEmpty() {
		fmt.Println("Reading carried no measurements; nothing dispatched.")
	} else {
		color.Green("Reading %s dispatched.", r.ID)
	}
	return nil
}

// buildGateway assembles the persistence sinks and optional prediction
// forwarder from config.
func buildGateway(cfg *config.Config, logger *logrus.Logger) (*gateway.Gateway, func(), error) {
	local, err := sink.NewSQLiteSink(cfg.DBPath, cfg.UserID)
	if err != nil {
		return nil, nil, err
	}
	sinks := sink.Fanout{local}
	closers := []func() error{local.Close}

	var kafkaSink *sink.KafkaSink
	if cfg.Kafka.Enabled {
		kafkaSink = sink.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.UserID)
		sinks = append(sinks, kafkaSink)
		closers = append(closers, kafkaSink.Close)
	}

	var predictor gateway.Predictor
	if cfg.Predict.Enabled && cfg.Predict.URL != "" {
		predictor = predict.NewClient(cfg.Predict.URL, cfg.UserID, logger)
	}

	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				logger.WithError(err).Warn("Error closing sink")
			}
		}
	}
	return gateway.New(sinks, predictor, logger), closeAll, nil
}

func printNegotiation(results []session.AttemptResult) {
	ok := color.New(color.FgGreen).SprintFunc()
	missing := color.New(color.FgYellow).SprintFunc()

	for _, res := range results {
		label := gatt.KnownServiceName(res.Service)
		if label == "" {
			label = res.Service
		}
		target := label
		if res.Characteristic != "" {
			target = fmt.Sprintf("%s/%s", label, res.Characteristic)
		}
		if res.Succeeded {
			fmt.Printf("  %s %s\n", ok("+"), target)
		} else {
			fmt.Printf("  %s %s (%s)\n", missing("-"), target, res.Reason)
		}
	}
}

func printReading(r reading.WearableReading) {
	fmt.Printf("\nReading %s from %q (%s) at %s:\n", r.ID, r.DeviceName, r.DeviceType, r.RecordedAt.Format(time.RFC3339))
	printField := func(name string, v *int, unit string) {
		if v != nil {
			fmt.Printf("  %-14s %d%s\n", name, *v, unit)
		}
	}
	printField("heart rate", r.HeartRate, " bpm")
	printField("steps", r.Steps, "")
	printField("calories", r.Calories, " kcal")
	printField("spo2", r.SpO2, "%")
	printField("battery", r.BatteryLevel, "%")
	if r.Temperature != nil {
		fmt.Printf("  %-14s %.1f C\n", "temperature", *r.Temperature)
	}
	for k, v := range r.DeviceInfo {
		fmt.Printf("  %-14s %s\n", k, v)
	}
	if r.IsEmpty() {
		fmt.Println("  (no measurements)")
	}
}
