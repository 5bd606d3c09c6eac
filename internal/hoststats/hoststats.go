// Package hoststats samples health figures of the host the controller runs on.
package hoststats

import (
	"context"
	"log/slog"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

const mb = 1024 * 1024

// Stats is a point-in-time host sample. Fields that could not be read are zero.
type Stats struct {
	Load1         float64
	MemUsedMB     float64
	MemTotalMB    float64
	DiskUsedMB    float64
	DiskTotalMB   float64
	UptimeSeconds uint64
}

// Collect samples the host. Individual failures are logged and leave the
// corresponding fields zero.
func Collect(ctx context.Context, diskPath string, logger *slog.Logger) Stats {
	var s Stats

	if avg, err := load.AvgWithContext(ctx); err == nil {
		s.Load1 = avg.Load1
	} else {
		logger.Debug("load average unavailable", "err", err)
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		// Used excluding page cache.
		s.MemUsedMB = float64(vm.Total-vm.Available) / mb
		s.MemTotalMB = float64(vm.Total) / mb
	} else {
		logger.Debug("memory stats unavailable", "err", err)
	}

	if du, err := disk.UsageWithContext(ctx, diskPath); err == nil {
		s.DiskUsedMB = float64(du.Used) / mb
		s.DiskTotalMB = float64(du.Total) / mb
	} else {
		logger.Debug("disk stats unavailable", "path", diskPath, "err", err)
	}

	if up, err := host.UptimeWithContext(ctx); err == nil {
		s.UptimeSeconds = up
	} else {
		logger.Debug("host uptime unavailable", "err", err)
	}

	return s
}
