// Package config holds application configuration for the wearsync CLI.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// KafkaConfig configures the optional Kafka persistence sink.
type KafkaConfig struct {
	Enabled bool     `yaml:"enabled" default:"false"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic" default:"wearable.readings"`
}

// PredictConfig configures the optional risk-prediction forwarder.
type PredictConfig struct {
	Enabled bool   `yaml:"enabled" default:"false"`
	URL     string `yaml:"url"`
}

// Config holds application configuration.
type Config struct {
	LogLevel        string        `yaml:"log_level" default:"info"`
	ScanTimeout     time.Duration `yaml:"scan_timeout" default:"10s"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" default:"30s"`
	ConnectAttempts int           `yaml:"connect_attempts" default:"3"`
	ConnectBackoff  time.Duration `yaml:"connect_backoff" default:"2s"`
	// StreamWindow is how long a sync session stays subscribed before the
	// accumulator is snapshotted and dispatched.
	StreamWindow time.Duration `yaml:"stream_window" default:"15s"`

	UserID string `yaml:"user_id" default:"local"`
	DBPath string `yaml:"db_path" default:"wearsync.db"`

	Kafka   KafkaConfig   `yaml:"kafka"`
	Predict PredictConfig `yaml:"predict"`
}

// DefaultConfig returns configuration with default values applied.
func DefaultConfig() *Config {
	cfg := new(Config)
	defaults.SetDefaults(cfg)
	return cfg
}

// fileConfig mirrors Config for YAML decoding. Durations are strings in the
// file ("10s"); absent fields stay nil and leave the default in place.
type fileConfig struct {
	LogLevel        *string `yaml:"log_level"`
	ScanTimeout     *string `yaml:"scan_timeout"`
	ConnectTimeout  *string `yaml:"connect_timeout"`
	ConnectAttempts *int    `yaml:"connect_attempts"`
	ConnectBackoff  *string `yaml:"connect_backoff"`
	StreamWindow    *string `yaml:"stream_window"`
	UserID          *string `yaml:"user_id"`
	DBPath          *string `yaml:"db_path"`

	Kafka *struct {
		Enabled *bool    `yaml:"enabled"`
		Brokers []string `yaml:"brokers"`
		Topic   *string  `yaml:"topic"`
	} `yaml:"kafka"`
	Predict *struct {
		Enabled *bool   `yaml:"enabled"`
		URL     *string `yaml:"url"`
	} `yaml:"predict"`
}

// Load reads YAML configuration from path over the defaults. A missing file
// is not an error; the defaults are returned unchanged.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := file.apply(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (f *fileConfig) apply(cfg *Config) error {
	setString(&cfg.LogLevel, f.LogLevel)
	setString(&cfg.UserID, f.UserID)
	setString(&cfg.DBPath, f.DBPath)
	if f.ConnectAttempts != nil {
		cfg.ConnectAttempts = *f.ConnectAttempts
	}

	for _, d := range []struct {
		raw *string
		dst *time.Duration
	}{
		{f.ScanTimeout, &cfg.ScanTimeout},
		{f.ConnectTimeout, &cfg.ConnectTimeout},
		{f.ConnectBackoff, &cfg.ConnectBackoff},
		{f.StreamWindow, &cfg.StreamWindow},
	} {
		if d.raw == nil {
			continue
		}
		dur, err := time.ParseDuration(*d.raw)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", *d.raw, err)
		}
		*d.dst = dur
	}

	if f.Kafka != nil {
		if f.Kafka.Enabled != nil {
			cfg.Kafka.Enabled = *f.Kafka.Enabled
		}
		if f.Kafka.Brokers != nil {
			cfg.Kafka.Brokers = f.Kafka.Brokers
		}
		setString(&cfg.Kafka.Topic, f.Kafka.Topic)
	}
	if f.Predict != nil {
		if f.Predict.Enabled != nil {
			cfg.Predict.Enabled = *f.Predict.Enabled
		}
		setString(&cfg.Predict.URL, f.Predict.URL)
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

// NewLogger creates a configured logger instance.
func (c *Config) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}

	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return logger, nil
}
