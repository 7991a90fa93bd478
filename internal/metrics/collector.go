// Package metrics samples process resource usage while a run is in
// progress.
package metrics

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

const mib = 1024 * 1024

// Sample is one resource reading
type Sample struct {
	SysCPUPercent  float64 // system wide, 0-100
	ProcCPUPercent float64 // this process, can exceed 100 on multi-core
	RSSMB          float64
	HeapMB         float64
	Goroutines     int
	SysMemPercent  float64
	Timestamp      time.Time
}

// Collector periodically samples and logs resource usage
type Collector struct {
	interval time.Duration
	logger   *zap.Logger
	proc     *process.Process

	mu      sync.RWMutex
	last    *Sample
	peakRSS float64
	samples int
}

// NewCollector creates a new metrics collector. CPU percentages are
// measured between consecutive samples, which makes sub-second readings
// meaningless, so intervals under a second use the 30s default.
func NewCollector(interval time.Duration, logger *zap.Logger) *Collector {
	if interval < time.Second {
		interval = 30 * time.Second
	}

	proc, _ := process.NewProcess(int32(os.Getpid()))

	return &Collector{
		interval: interval,
		logger:   logger,
		proc:     proc,
	}
}

// Start samples until ctx is cancelled
func (c *Collector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.log(c.Collect())

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("Metrics collection stopped")
			return
		case <-ticker.C:
			c.log(c.Collect())
		}
	}
}

// Collect takes a sample now and records it
func (c *Collector) Collect() *Sample {
	s := &Sample{
		Goroutines: runtime.NumGoroutine(),
		Timestamp:  time.Now(),
	}

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		s.SysCPUPercent = pct[0]
	}
	if vmem, err := mem.VirtualMemory(); err == nil {
		s.SysMemPercent = vmem.UsedPercent
	}
	if c.proc != nil {
		if pct, err := c.proc.Percent(0); err == nil {
			s.ProcCPUPercent = pct
		}
		if info, err := c.proc.MemoryInfo(); err == nil {
			s.RSSMB = float64(info.RSS) / mib
		}
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	s.HeapMB = float64(ms.HeapAlloc) / mib

	c.mu.Lock()
	c.last = s
	c.samples++
	if s.RSSMB > c.peakRSS {
		c.peakRSS = s.RSSMB
	}
	c.mu.Unlock()

	return s
}

// Last returns the most recent sample, or nil before the first one
func (c *Collector) Last() *Sample {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// PeakRSSMB returns the highest resident set size seen so far
func (c *Collector) PeakRSSMB() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.peakRSS
}

// Summary logs the peak usage over all samples
func (c *Collector) Summary() {
	c.mu.RLock()
	n, peak := c.samples, c.peakRSS
	c.mu.RUnlock()
	if n == 0 {
		return
	}
	c.logger.Info("Resource summary",
		zap.Int("samples", n),
		zap.String("peak_rss", formatMB(peak)))
}

func (c *Collector) log(s *Sample) {
	c.logger.Info("Resource usage",
		zap.Float64("sys_cpu", s.SysCPUPercent),
		zap.Float64("proc_cpu", s.ProcCPUPercent),
		zap.String("rss", formatMB(s.RSSMB)),
		zap.String("heap", formatMB(s.HeapMB)),
		zap.Int("goroutines", s.Goroutines),
		zap.Float64("mem_pct", s.SysMemPercent),
	)
}

func formatMB(v float64) string {
	return fmt.Sprintf("%.1f MB", v)
}
