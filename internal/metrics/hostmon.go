package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v4/process"
)

// HostSample holds a CPU and memory sample of the coordinator process itself.
type HostSample struct {
	PID        int32     `json:"pid"`
	CPUPercent float64   `json:"cpu_percent"`
	MemoryMB   float64   `json:"memory_mb"`
	MemoryRSS  uint64    `json:"memory_rss"`
	MemoryVMS  uint64    `json:"memory_vms"`
	NumThreads int32     `json:"num_threads"`
	NumFDs     int32     `json:"num_fds,omitempty"` // Unix only
	Timestamp  time.Time `json:"timestamp"`
}

// HostMonitorConfig holds configuration for self-monitoring of the daemon.
type HostMonitorConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Interval   time.Duration `mapstructure:"interval"`
	MaxHistory int           `mapstructure:"max_history"`
}

// HostMonitor periodically samples the daemon's own CPU and memory usage and
// exposes the latest values as Prometheus gauges plus a bounded history for
// status queries.
type HostMonitor struct {
	enabled  bool
	interval time.Duration
	max      int

	mu      sync.RWMutex
	samples []HostSample

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	cpuPercent prometheus.Gauge
	memoryMB   prometheus.Gauge
	numThreads prometheus.Gauge
	numFDs     prometheus.Gauge
}

// NewHostMonitor creates a host monitor from config, applying defaults for
// interval (5s) and history size (100).
func NewHostMonitor(config HostMonitorConfig) *HostMonitor {
	maxHistory := config.MaxHistory
	if maxHistory == 0 {
		maxHistory = 100
	}
	interval := config.Interval
	if interval == 0 {
		interval = 5 * time.Second
	}

	return &HostMonitor{
		enabled:  config.Enabled,
		interval: interval,
		max:      maxHistory,
		stopCh:   make(chan struct{}),
		cpuPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "upgradr",
			Subsystem: "host",
			Name:      "cpu_percent",
			Help:      "CPU usage percentage of the coordinator daemon.",
		}),
		memoryMB: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "upgradr",
			Subsystem: "host",
			Name:      "memory_mb",
			Help:      "Resident memory in MB of the coordinator daemon.",
		}),
		numThreads: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "upgradr",
			Subsystem: "host",
			Name:      "num_threads",
			Help:      "Thread count of the coordinator daemon.",
		}),
		numFDs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "upgradr",
			Subsystem: "host",
			Name:      "num_fds",
			Help:      "Open file descriptors of the coordinator daemon (Unix only).",
		}),
	}
}

// RegisterMetrics registers the host gauges with the provided registerer.
func (m *HostMonitor) RegisterMetrics(r prometheus.Registerer) error {
	if !m.enabled {
		return nil
	}

	collectors := []prometheus.Collector{m.cpuPercent, m.memoryMB, m.numThreads}
	if runtime.GOOS != "windows" {
		collectors = append(collectors, m.numFDs)
	}

	for _, collector := range collectors {
		if err := r.Register(collector); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

// Start begins periodic sampling until ctx is done or Stop is called.
func (m *HostMonitor) Start(ctx context.Context) {
	if !m.enabled {
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.collect()
			}
		}
	}()
}

// Stop stops sampling and waits for the loop to exit.
func (m *HostMonitor) Stop() {
	if !m.enabled {
		return
	}
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.wg.Wait()
}

// Latest returns the most recent sample.
func (m *HostMonitor) Latest() (HostSample, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.samples) == 0 {
		return HostSample{}, false
	}
	return m.samples[len(m.samples)-1], true
}

// History returns a copy of the buffered samples in chronological order.
func (m *HostMonitor) History() []HostSample {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]HostSample, len(m.samples))
	copy(out, m.samples)
	return out
}

// IsEnabled reports whether sampling is active.
func (m *HostMonitor) IsEnabled() bool { return m.enabled }

func (m *HostMonitor) collect() {
	sample, err := selfSample()
	if err != nil {
		slog.Debug("host metrics sample failed", "error", err)
		return
	}

	m.cpuPercent.Set(sample.CPUPercent)
	m.memoryMB.Set(sample.MemoryMB)
	m.numThreads.Set(float64(sample.NumThreads))
	if runtime.GOOS != "windows" && sample.NumFDs > 0 {
		m.numFDs.Set(float64(sample.NumFDs))
	}

	m.mu.Lock()
	m.samples = append(m.samples, *sample)
	if len(m.samples) > m.max {
		copy(m.samples, m.samples[len(m.samples)-m.max:])
		m.samples = m.samples[:m.max]
	}
	m.mu.Unlock()
}

// selfSample reads CPU/memory/thread stats for the current process.
func selfSample() (*HostSample, error) {
	pid := int32(os.Getpid()) // #nosec G115 -- PIDs fit in int32 on supported platforms
	proc, err := process.NewProcess(pid)
	if err != nil {
		return nil, fmt.Errorf("failed to create process handle: %w", err)
	}

	cpuPercent, err := proc.CPUPercent()
	if err != nil {
		slog.Debug("failed to get CPU percent", "pid", pid, "error", err)
		cpuPercent = 0
	}

	memInfo, err := proc.MemoryInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get memory info: %w", err)
	}

	numThreads, err := proc.NumThreads()
	if err != nil {
		slog.Debug("failed to get thread count", "pid", pid, "error", err)
		numThreads = 0
	}

	sample := &HostSample{
		PID:        pid,
		CPUPercent: cpuPercent,
		MemoryMB:   float64(memInfo.RSS) / 1024 / 1024,
		MemoryRSS:  memInfo.RSS,
		MemoryVMS:  memInfo.VMS,
		NumThreads: numThreads,
		Timestamp:  time.Now(),
	}

	if runtime.GOOS != "windows" {
		if numFDs, err := proc.NumFDs(); err == nil {
			sample.NumFDs = numFDs
		}
	}

	return sample, nil
}
