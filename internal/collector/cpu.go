package collector

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"

	"telemetrychannel/internal/telemetry"
)

// CPUCollector collects overall CPU usage metrics.
type CPUCollector struct {
	BaseCollector
}

// NewCPUCollector creates a new CPU collector.
func NewCPUCollector() *CPUCollector {
	return &CPUCollector{
		BaseCollector: NewBaseCollector("cpu", 10*time.Second),
	}
}

// Collect gathers CPU metrics.
func (c *CPUCollector) Collect(ctx context.Context) ([]telemetry.Metric, error) {
	// Blocks for 200ms to measure usage.
	percentages, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false)
	if err != nil {
		return nil, err
	}

	times, err := cpu.TimesWithContext(ctx, false)
	if err != nil {
		return nil, err
	}

	metrics := []telemetry.Metric{
		metric("cpu_core_count", float64(runtime.NumCPU()), nil),
	}
	if len(percentages) > 0 {
		metrics = append(metrics, metric("cpu_usage_percent", percentages[0], nil))
	}

	if len(times) > 0 {
		t := times[0]
		total := t.User + t.System + t.Idle + t.Iowait + t.Irq + t.Softirq + t.Steal + t.Guest
		if total > 0 {
			metrics = append(metrics,
				metric("cpu_user_percent", t.User/total*100, nil),
				metric("cpu_system_percent", t.System/total*100, nil),
				metric("cpu_idle_percent", t.Idle/total*100, nil),
				metric("cpu_iowait_percent", t.Iowait/total*100, nil),
			)
		}
	}

	return metrics, nil
}
