package collector

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/mem"

	"telemetrychannel/internal/telemetry"
)

// MemoryCollector collects system memory usage metrics.
type MemoryCollector struct {
	BaseCollector
}

// NewMemoryCollector creates a new memory collector.
func NewMemoryCollector() *MemoryCollector {
	return &MemoryCollector{
		BaseCollector: NewBaseCollector("memory", 10*time.Second),
	}
}

// Collect gathers memory metrics.
func (c *MemoryCollector) Collect(ctx context.Context) ([]telemetry.Metric, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return nil, err
	}

	metrics := []telemetry.Metric{
		metric("memory_total_bytes", float64(vm.Total), nil),
		metric("memory_used_bytes", float64(vm.Used), nil),
		metric("memory_available_bytes", float64(vm.Available), nil),
		metric("memory_usage_percent", vm.UsedPercent, nil),
	}

	// Swap may not be available on all systems.
	if swap, err := mem.SwapMemoryWithContext(ctx); err == nil && swap.Total > 0 {
		metrics = append(metrics,
			metric("swap_used_bytes", float64(swap.Used), nil),
			metric("swap_usage_percent", swap.UsedPercent, nil),
		)
	}

	return metrics, nil
}
