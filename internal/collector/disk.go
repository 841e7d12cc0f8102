package collector

import (
	"context"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/disk"

	"telemetrychannel/internal/config"
	"telemetrychannel/internal/telemetry"
)

// DiskCollector collects usage of mounted filesystems.
type DiskCollector struct {
	BaseCollector
	disks []string // devices or mountpoints to report; empty means all
}

// NewDiskCollector creates a new disk collector.
func NewDiskCollector() *DiskCollector {
	return &DiskCollector{
		BaseCollector: NewBaseCollector("disk", 30*time.Second),
	}
}

// Configure applies the configuration to the collector.
func (c *DiskCollector) Configure(cfg config.CollectorConfig) error {
	if err := c.BaseCollector.Configure(cfg); err != nil {
		return err
	}
	c.disks = cfg.Disks
	return nil
}

// Collect gathers per-partition usage metrics.
func (c *DiskCollector) Collect(ctx context.Context) ([]telemetry.Metric, error) {
	partitions, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, err
	}

	var metrics []telemetry.Metric
	for _, p := range partitions {
		if len(c.disks) > 0 && !c.shouldInclude(p.Device, p.Mountpoint) {
			continue
		}
		if isPseudoFS(p.Fstype) {
			continue
		}

		usage, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil {
			continue
		}
		// Empty optical drives report zero capacity.
		if usage.Total == 0 {
			continue
		}

		props := map[string]string{
			"device":     p.Device,
			"mountpoint": p.Mountpoint,
			"fs_type":    p.Fstype,
		}
		metrics = append(metrics,
			metric("disk_total_bytes", float64(usage.Total), props),
			metric("disk_used_bytes", float64(usage.Used), props),
			metric("disk_usage_percent", usage.UsedPercent, props),
		)
	}

	return metrics, nil
}

func (c *DiskCollector) shouldInclude(device, mountpoint string) bool {
	for _, d := range c.disks {
		if d == device || d == mountpoint {
			return true
		}
	}
	return false
}

var pseudoFS = map[string]bool{
	"sysfs": true, "proc": true, "devtmpfs": true, "devpts": true, "tmpfs": true,
	"securityfs": true, "cgroup": true, "cgroup2": true, "pstore": true, "debugfs": true,
	"hugetlbfs": true, "mqueue": true, "fusectl": true, "configfs": true, "autofs": true,
	"binfmt_misc": true, "fuse.gvfsd-fuse": true, "overlay": true, "squashfs": true,
	"cdfs": true, "udf": true,
}

func isPseudoFS(fstype string) bool {
	return pseudoFS[strings.ToLower(fstype)]
}
