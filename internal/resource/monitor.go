// Package resource periodically samples host CPU and memory usage while a
// long-running estimate() call is in flight, purely for operator visibility
// — unlike the teacher's ResourceMonitor, nothing here throttles the
// estimator engine; thread_limit remains the sole backpressure mechanism
// the specification names.
package resource

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/corplens/sizeprobe/internal/applog"
)

// Monitor samples system resource usage on a fixed interval and logs it,
// so a long corpus-size run leaves a trail of memory/CPU pressure alongside
// its download counts.
type Monitor struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

// Start begins periodic sampling at interval. It is idempotent: calling
// Start while already running is a no-op.
func (m *Monitor) Start(interval time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.loop(ctx, interval)
}

// Stop halts sampling. Safe to call even if Start was never called.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.cancel = nil
}

func (m *Monitor) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

func (m *Monitor) sample() {
	vm, err := mem.VirtualMemory()
	if err != nil {
		applog.Warnf("resource: reading memory stats: %v", err)
		return
	}
	pct, err := cpu.Percent(0, false)
	var cpuPct float64
	if err == nil && len(pct) > 0 {
		cpuPct = pct[0]
	}
	applog.Debugf("resource: mem_used=%.1f%% cpu=%.1f%%", vm.UsedPercent, cpuPct)
}
