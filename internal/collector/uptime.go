package collector

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/host"

	"telemetrychannel/internal/telemetry"
)

// UptimeCollector collects system uptime.
type UptimeCollector struct {
	BaseCollector
	now func() time.Time
}

// NewUptimeCollector creates a new uptime collector.
func NewUptimeCollector() *UptimeCollector {
	return &UptimeCollector{
		BaseCollector: NewBaseCollector("uptime", time.Minute),
		now:           time.Now,
	}
}

// Collect reports minutes since boot, with the boot time as a property.
func (c *UptimeCollector) Collect(ctx context.Context) ([]telemetry.Metric, error) {
	bootTimestamp, err := host.BootTimeWithContext(ctx)
	if err != nil {
		return nil, err
	}

	bootTime := time.Unix(int64(bootTimestamp), 0).UTC()
	return []telemetry.Metric{
		metric("uptime_minutes", c.now().Sub(bootTime).Minutes(), map[string]string{
			"boot_time": bootTime.Format(time.RFC3339),
		}),
	}, nil
}
