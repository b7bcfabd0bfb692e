package observability

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMonitor_SnapshotReflectsCounters(t *testing.T) {
	req := require.New(t)
	m := NewMonitor(slog.Default(), 10*time.Millisecond)

	m.RecordMessageStored()
	m.RecordMessageStored()
	m.RecordDelivery()
	m.RecordDeliveryFailure()
	m.RecordConnectionOpened()
	m.RecordConnectionClosed()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Run(ctx) }()

	req.Eventually(func() bool {
		stats := m.Latest()
		return stats.MessagesStored == 2 &&
			stats.Delivered == 1 &&
			stats.DeliveryFailures == 1 &&
			stats.ConnectionsOpened == 1 &&
			stats.ConnectionsClosed == 1
	}, time.Second, 10*time.Millisecond)
}

func TestMonitor_CountersAreRaceFree(t *testing.T) {
	req := require.New(t)
	m := NewMonitor(slog.Default(), 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Run(ctx) }()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.RecordMessageStored()
				m.RecordDelivery()
			}
		}()
	}
	wg.Wait()

	req.Eventually(func() bool {
		stats := m.Latest()
		return stats.MessagesStored == 2000 && stats.Delivered == 2000
	}, time.Second, 10*time.Millisecond)
}
