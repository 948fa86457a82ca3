package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// configureLogger creates a logger with the appropriate log level based on
// flags, falling back to the configured default. The --log-level flag takes
// precedence over the config file.
func configureLogger(cmd *cobra.Command, fallback string) (*logrus.Logger, error) {
	levelStr, _ := cmd.Flags().GetString("log-level")
	if levelStr == "" {
		levelStr = fallback
	}
	if levelStr == "" {
		levelStr = "info"
	}

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", levelStr)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger, nil
}
