package observability

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Stats is a point-in-time snapshot of the messaging core counters plus
// process-level resource usage.
type Stats struct {
	MessagesStored    uint64  `json:"messages_stored"`
	Delivered         uint64  `json:"delivered"`
	DeliveryFailures  uint64  `json:"delivery_failures"`
	ConnectionsOpened uint64  `json:"connections_opened"`
	ConnectionsClosed uint64  `json:"connections_closed"`
	AllocMemMb        uint64  `json:"alloc_mem_mb"`
	NumGC             uint32  `json:"num_gc"`
	ProcessRSSMb      uint64  `json:"process_rss_mb"`
	ProcessCPUPercent float64 `json:"process_cpu_percent"`
	At                string  `json:"at"`
}

// Monitor aggregates counters from the store, the dispatcher, and the
// connection paths. Counters are atomics so the hot paths never block on
// the snapshot lock.
type Monitor struct {
	log      *slog.Logger
	interval time.Duration
	proc     *process.Process

	messagesStored    atomic.Uint64
	delivered         atomic.Uint64
	deliveryFailures  atomic.Uint64
	connectionsOpened atomic.Uint64
	connectionsClosed atomic.Uint64

	mu     sync.RWMutex
	latest Stats
}

func NewMonitor(log *slog.Logger, interval time.Duration) *Monitor {
	// A missing process handle only disables RSS/CPU readings.
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn("Process stats unavailable", "error", err)
		proc = nil
	}
	return &Monitor{log: log, interval: interval, proc: proc}
}

func (m *Monitor) RecordMessageStored() { m.messagesStored.Add(1) }

func (m *Monitor) RecordDelivery() { m.delivered.Add(1) }

func (m *Monitor) RecordDeliveryFailure() { m.deliveryFailures.Add(1) }

func (m *Monitor) RecordConnectionOpened() { m.connectionsOpened.Add(1) }

func (m *Monitor) RecordConnectionClosed() { m.connectionsClosed.Add(1) }

// Run refreshes the snapshot on a fixed cadence until the context ends.
// It satisfies the worker contract so the supervisor can own it.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Debug("Stopping monitor")
			return ctx.Err()
		case <-ticker.C:
			m.refresh()
		}
	}
}

// Latest returns the last refreshed snapshot.
func (m *Monitor) Latest() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.latest
}

func (m *Monitor) refresh() {
	stats := Stats{
		MessagesStored:    m.messagesStored.Load(),
		Delivered:         m.delivered.Load(),
		DeliveryFailures:  m.deliveryFailures.Load(),
		ConnectionsOpened: m.connectionsOpened.Load(),
		ConnectionsClosed: m.connectionsClosed.Load(),
		At:                time.Now().UTC().Format(time.RFC3339),
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	stats.AllocMemMb = mem.Alloc / 1024 / 1024
	stats.NumGC = mem.NumGC

	if m.proc != nil {
		if cpu, err := m.proc.CPUPercent(); err == nil {
			stats.ProcessCPUPercent = cpu
		}
		if memInfo, err := m.proc.MemoryInfo(); err == nil {
			stats.ProcessRSSMb = memInfo.RSS / 1024 / 1024
		}
	}

	m.mu.Lock()
	m.latest = stats
	m.mu.Unlock()

	m.log.Debug("Stats refreshed",
		"messages_stored", stats.MessagesStored,
		"delivered", stats.Delivered,
		"delivery_failures", stats.DeliveryFailures,
		"alloc_mem_mb", stats.AllocMemMb,
	)
}
