package metrics

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

const gb = 1024 * 1024 * 1024

// Snapshot is one sample of system and process usage
type Snapshot struct {
	CPUPercent        float64 // System-wide CPU usage (0-100%)
	ProcessCPUPercent float64 // can exceed 100% on multi-core
	ProcessRSSGB      float64
	MemoryUsedGB      float64
	MemoryTotalGB     float64
	MemoryPercent     float64
	DiskReadMBps      float64
	Timestamp         time.Time
}

// Collector samples system metrics at an interval while an ingest runs and
// keeps the peak resident memory of the process.
type Collector struct {
	interval time.Duration
	logger   *zap.Logger
	proc     *process.Process

	lastReadBytes uint64
	lastDiskTime  time.Time

	mu      sync.RWMutex
	peakRSS float64
	samples int
}

// NewCollector creates a new metrics collector
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

	c.Sample()
	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("Metrics collection stopped", zap.Int("samples", c.Samples()))
			return
		case <-ticker.C:
			c.log(c.Sample())
		}
	}
}

// PeakRSSGB returns the largest process resident set seen so far
func (c *Collector) PeakRSSGB() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.peakRSS
}

// Samples returns how many samples were taken
func (c *Collector) Samples() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.samples
}

// Sample takes one measurement and records it
func (c *Collector) Sample() *Snapshot {
	s := &Snapshot{Timestamp: time.Now()}

	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		s.CPUPercent = pct[0]
	}
	if c.proc != nil {
		if pct, err := c.proc.Percent(0); err == nil {
			s.ProcessCPUPercent = pct
		}
		if info, err := c.proc.MemoryInfo(); err == nil {
			s.ProcessRSSGB = float64(info.RSS) / gb
		}
	}
	if vmem, err := mem.VirtualMemory(); err == nil {
		s.MemoryPercent = vmem.UsedPercent
		s.MemoryUsedGB = float64(vmem.Used) / gb
		s.MemoryTotalGB = float64(vmem.Total) / gb
	}
	s.DiskReadMBps = c.diskReadRate(s.Timestamp)

	c.mu.Lock()
	c.samples++
	if s.ProcessRSSGB > c.peakRSS {
		c.peakRSS = s.ProcessRSSGB
	}
	c.mu.Unlock()
	return s
}

func (c *Collector) log(s *Snapshot) {
	c.logger.Info("System metrics",
		zap.Float64("sys_cpu", s.CPUPercent),
		zap.Float64("proc_cpu", s.ProcessCPUPercent),
		zap.String("rss", fmt.Sprintf("%.1f GB", s.ProcessRSSGB)),
		zap.Float64("mem_pct", s.MemoryPercent),
		zap.String("mem_used", fmt.Sprintf("%.1f GB", s.MemoryUsedGB)),
		zap.String("disk_r", fmt.Sprintf("%.1f MB/s", s.DiskReadMBps)),
	)
}

// diskReadRate returns MB/s read across all disks since the previous call
func (c *Collector) diskReadRate(now time.Time) float64 {
	counters, err := disk.IOCounters()
	if err != nil {
		return 0
	}
	var total uint64
	for _, counter := range counters {
		total += counter.ReadBytes
	}

	prev, prevTime := c.lastReadBytes, c.lastDiskTime
	c.lastReadBytes, c.lastDiskTime = total, now
	if prevTime.IsZero() || total < prev {
		return 0
	}
	elapsed := now.Sub(prevTime).Seconds()
	if elapsed < 0.1 {
		return 0
	}
	return float64(total-prev) / elapsed / (1024 * 1024)
}
