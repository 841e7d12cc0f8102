// Package collector gathers host metrics for the telemetry channel.
package collector

import (
	"context"
	"time"

	"telemetrychannel/internal/config"
	"telemetrychannel/internal/telemetry"
)

// Collector defines the interface for all metric collectors.
type Collector interface {
	// Name returns the unique identifier for this collector.
	Name() string

	// Collect gathers one sample of every metric the collector reports.
	Collect(ctx context.Context) ([]telemetry.Metric, error)

	// Configure applies the given configuration to the collector.
	Configure(cfg config.CollectorConfig) error

	// Interval returns the collection interval for this collector.
	Interval() time.Duration

	// Enabled returns whether the collector is enabled.
	Enabled() bool
}

// BaseCollector provides common functionality for all collectors.
type BaseCollector struct {
	name     string
	interval time.Duration
	enabled  bool
}

// NewBaseCollector creates a new BaseCollector with the given name and default interval.
func NewBaseCollector(name string, interval time.Duration) BaseCollector {
	return BaseCollector{
		name:     name,
		interval: interval,
		enabled:  true,
	}
}

// Name returns the collector name.
func (b *BaseCollector) Name() string {
	return b.name
}

// Interval returns the collection interval.
func (b *BaseCollector) Interval() time.Duration {
	return b.interval
}

// Enabled returns whether the collector is enabled.
func (b *BaseCollector) Enabled() bool {
	return b.enabled
}

// Configure applies the fields every collector shares. A zero interval keeps the current one.
func (b *BaseCollector) Configure(cfg config.CollectorConfig) error {
	b.enabled = cfg.Enabled
	if cfg.Interval > 0 {
		b.interval = cfg.Interval
	}
	return nil
}

func metric(name string, value float64, props map[string]string) telemetry.Metric {
	return telemetry.Metric{Name: name, Value: value, Properties: props}
}
