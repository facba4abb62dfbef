package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"flowline/internal/config"
	"flowline/internal/logging"
	"flowline/internal/notifications"
	"flowline/internal/queue"
)

// LeaseMonitor reclaims items whose agent went quiet: any item in progress
// longer than the configured lease is failed through the normal retry
// policy, so it requeues while budget remains and ends as failed after.
// Disabled when the lease duration is zero.
type LeaseMonitor struct {
	store      *queue.Store
	logger     *slog.Logger
	notifier   notifications.Service
	staleAfter time.Duration
	interval   time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewLeaseMonitor wires a monitor from the queue config.
func NewLeaseMonitor(cfg *config.Config, store *queue.Store, logger *slog.Logger) *LeaseMonitor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LeaseMonitor{
		store:      store,
		logger:     logging.NewComponentLogger(logger, "lease-monitor"),
		notifier:   notifications.NewService(cfg),
		staleAfter: cfg.StaleAfter(),
		interval:   cfg.SweepInterval(),
	}
}

// Enabled reports whether lease sweeping is configured.
func (m *LeaseMonitor) Enabled() bool {
	return m.staleAfter > 0 && m.interval > 0
}

// Start launches the background sweep loop. Starting a disabled or already
// running monitor is a no-op.
func (m *LeaseMonitor) Start(ctx context.Context) {
	if !m.Enabled() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	go m.run(runCtx, m.done)
}

func (m *LeaseMonitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.SweepOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Warn("lease sweep failed", logging.Error(err))
			}
		}
	}
}

// Stop halts the loop and waits for any in-flight sweep to finish.
func (m *LeaseMonitor) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// SweepOnce fails every item whose lease has expired and reports how many it
// reclaimed. Items the agent finished between the scan and the fail are
// skipped.
func (m *LeaseMonitor) SweepOnce(ctx context.Context) (int, error) {
	if !m.Enabled() {
		return 0, nil
	}

	cutoff := time.Now().Add(-m.staleAfter)
	stale, err := m.store.StaleInProgress(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, item := range stale {
		result, err := m.store.FailItem(ctx, item.Ref,
			fmt.Sprintf("processing lease expired after %s", m.staleAfter))
		if err != nil {
			if errors.Is(err, queue.ErrNotInProgress) {
				continue
			}
			return swept, err
		}
		swept++
		m.logger.Warn("lease expired",
			logging.Int64(logging.FieldQueueID, item.QueueID),
			logging.String(logging.FieldItemType, string(item.Ref.Type)),
			logging.Int64(logging.FieldItemID, item.Ref.ID),
			logging.String(logging.FieldAgentID, item.AgentID),
			logging.String("outcome", string(result.Status)))
		if err := m.notifier.NotifyLeaseReclaimed(ctx, item.Ref.String(), item.QueueID, string(result.Status)); err != nil {
			m.logger.Warn("lease notification not delivered", logging.Error(err))
		}
	}
	return swept, nil
}
