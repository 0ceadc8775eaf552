// Package hostinfo samples resource usage of the machine running the
// benchmark, so a saturated load generator can be told apart from a slow
// service.
package hostinfo

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Usage is a point-in-time view of the local host.
type Usage struct {
	LogicalCPUs   int     `json:"logical_cpus" yaml:"logical_cpus"`
	CPUPercent    float64 `json:"cpu_percent" yaml:"cpu_percent"`
	MemoryTotal   uint64  `json:"memory_total_bytes" yaml:"memory_total_bytes"`
	MemoryUsed    uint64  `json:"memory_used_bytes" yaml:"memory_used_bytes"`
	MemoryPercent float64 `json:"memory_percent" yaml:"memory_percent"`
	Goroutines    int     `json:"goroutines" yaml:"goroutines"`
}

// Sample measures CPU utilisation over interval (0 compares against the
// previous call) and reads current memory usage.
func Sample(ctx context.Context, interval time.Duration) (Usage, error) {
	u := Usage{Goroutines: runtime.NumGoroutine()}

	cpus, err := cpu.CountsWithContext(ctx, true)
	if err != nil {
		return Usage{}, fmt.Errorf("cpu count: %w", err)
	}
	u.LogicalCPUs = cpus

	percents, err := cpu.PercentWithContext(ctx, interval, false)
	if err != nil {
		return Usage{}, fmt.Errorf("cpu percent: %w", err)
	}
	if len(percents) > 0 {
		u.CPUPercent = percents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Usage{}, fmt.Errorf("memory: %w", err)
	}
	u.MemoryTotal = vm.Total
	u.MemoryUsed = vm.Used
	u.MemoryPercent = vm.UsedPercent
	return u, nil
}

// Saturated reports whether CPU usage is high enough that client-side
// queuing may have inflated the measured latencies.
func (u Usage) Saturated() bool {
	return u.CPUPercent >= 90
}
