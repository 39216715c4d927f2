//go:build linux

package health

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// SystemMemoryCheck reports system-wide memory usage (Linux only).
type SystemMemoryCheck struct {
	MaxUsagePercent float64
}

func (c *SystemMemoryCheck) Name() string { return "system_memory" }

func (c *SystemMemoryCheck) Check(ctx context.Context) CheckResult {
	result := CheckResult{
		Timestamp: time.Now(),
		Metadata:  make(map[string]any),
	}

	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		result.Status = StatusUnhealthy
		result.Error = fmt.Sprintf("sysinfo failed: %v", err)
		return result
	}

	total := info.Totalram * uint64(info.Unit)
	free := info.Freeram * uint64(info.Unit)
	used := total - free
	usagePercent := float64(used) / float64(total) * 100

	result.Metadata["total_bytes"] = total
	result.Metadata["free_bytes"] = free
	result.Metadata["usage_percent"] = fmt.Sprintf("%.2f%%", usagePercent)

	if c.MaxUsagePercent > 0 && usagePercent > c.MaxUsagePercent {
		result.Status = StatusDegraded
		result.Error = fmt.Sprintf("memory usage %.2f%% exceeds threshold %.2f%%", usagePercent, c.MaxUsagePercent)
		return result
	}

	result.Status = StatusHealthy
	result.Message = fmt.Sprintf("memory usage: %.2f%%", usagePercent)
	return result
}
