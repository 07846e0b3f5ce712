package workers

import (
	"chat-relay/observability"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

const DefaultMonitorInterval = 15 * time.Second

// SessionCounter reports how many sessions are currently registered.
type SessionCounter interface {
	Sessions() int
}

// ProcessMonitor samples the relay process resources and publishes them as gauges.
type ProcessMonitor struct {
	log      *slog.Logger
	sessions SessionCounter
	interval time.Duration
}

func NewProcessMonitor(log *slog.Logger, sessions SessionCounter, interval time.Duration) *ProcessMonitor {
	if interval <= 0 {
		interval = DefaultMonitorInterval
	}
	return &ProcessMonitor{log: log, sessions: sessions, interval: interval}
}

// Run samples memory and CPU every interval until the context ends.
func (w *ProcessMonitor) Run(ctx context.Context) error {
	w.log.Info("Starting process monitor", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			rss, cpu, status, err := getSelfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			observability.ProcessResidentMemory.Set(float64(rss))
			observability.ProcessCPUPercent.Set(cpu)
			w.log.Debug("Process stats",
				"status", status,
				"rss_bytes", rss,
				"cpu_percent", cpu,
				"sessions", w.sessions.Sessions())
		}
	}
}

// getSelfStats retrieves memory, CPU and OS status for the given process.
func getSelfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}

	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
