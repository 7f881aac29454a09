package monitoring

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostStats is a snapshot of the machine the API runs on.
type HostStats struct {
	Hostname      string  `json:"hostname"`
	HostUptimeSec uint64  `json:"host_uptime_seconds"`
	MemoryUsedPct float64 `json:"memory_used_percent"`
	ProcessUptime string  `json:"process_uptime"`
}

var startedAt = time.Now()

// CollectHostStats gathers what gopsutil can report; missing pieces are left zero.
func CollectHostStats(ctx context.Context) HostStats {
	stats := HostStats{ProcessUptime: time.Since(startedAt).Round(time.Second).String()}

	if info, err := host.InfoWithContext(ctx); err == nil {
		stats.Hostname = info.Hostname
		stats.HostUptimeSec = info.Uptime
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.MemoryUsedPct = vm.UsedPercent
	}
	return stats
}
