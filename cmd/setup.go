package cmd

import (
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/conneroisu/assetry/internal/config"
	"github.com/conneroisu/assetry/internal/logging"
	"github.com/conneroisu/assetry/internal/metrics"
	"github.com/conneroisu/assetry/internal/registry"
	"github.com/conneroisu/assetry/internal/renderer"
)

// environment holds what every command needs once the configuration is read.
type environment struct {
	cfg      *config.Config
	logger   logging.Logger
	gatherer *prometheus.Registry
	metrics  *metrics.Collector
	engine   *renderer.Engine
}

// setup loads the configuration, scans the applications and installs the
// provider settings.
func setup() (*environment, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return setupWith(cfg)
}

func setupWith(cfg *config.Config) (*environment, error) {
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	reg, err := registry.FromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to scan applications: %w", err)
	}

	gatherer := prometheus.NewRegistry()
	collector := metrics.New(gatherer)

	engine, err := renderer.New(cfg, reg, renderer.Options{
		Logger:  logger,
		Metrics: collector,
	})
	if err != nil {
		return nil, err
	}

	return &environment{
		cfg:      cfg,
		logger:   logger,
		gatherer: gatherer,
		metrics:  collector,
		engine:   engine,
	}, nil
}

func newLogger(cfg *config.Config) (logging.Logger, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	return logging.NewLogger(&logging.LoggerConfig{
		Level:     level,
		Format:    cfg.Log.Format,
		Output:    os.Stderr,
		Component: "assetry",
	}), nil
}
