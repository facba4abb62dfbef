package flow_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"flowline/internal/flow"
	"flowline/internal/queue"
	"flowline/internal/testsupport"
)

func TestLeaseMonitorDisabledWithoutConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	monitor := flow.NewLeaseMonitor(cfg, store, nil)

	if monitor.Enabled() {
		t.Fatal("monitor should be disabled when no lease is configured")
	}

	// Lifecycle calls on a disabled monitor are safe no-ops.
	ctx := context.Background()
	monitor.Start(ctx)
	monitor.Stop()
	monitor.Stop()

	swept, err := monitor.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("SweepOnce failed: %v", err)
	}
	if swept != 0 {
		t.Fatalf("disabled monitor swept %d items", swept)
	}
}

func TestSweepOnceReclaimsOnlyExpiredLeases(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStaleAfter(1, 1))
	store := testsupport.MustOpenStore(t, cfg)
	coordinator := flow.NewCoordinator(cfg, store, nil)
	monitor := flow.NewLeaseMonitor(cfg, store, nil)

	ctx := context.Background()
	q := testsupport.NewQueue(t, store, 1, "main", 2)
	stale := testsupport.NewTicket(t, store, 1, "stale")
	fresh := testsupport.NewTicket(t, store, 1, "fresh")
	testsupport.Enqueue(t, store, q.ID, queue.TicketRef(stale.ID), queue.EnqueueOptions{Priority: 1})
	testsupport.Enqueue(t, store, q.ID, queue.TicketRef(fresh.ID), queue.EnqueueOptions{})

	if _, err := coordinator.NextTask(ctx, q.ID, "agent-gone"); err != nil {
		t.Fatalf("NextTask failed: %v", err)
	}
	time.Sleep(1200 * time.Millisecond)
	if _, err := coordinator.NextTask(ctx, q.ID, "agent-live"); err != nil {
		t.Fatalf("second NextTask failed: %v", err)
	}

	swept, err := monitor.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("SweepOnce failed: %v", err)
	}
	if swept != 1 {
		t.Fatalf("expected 1 reclaimed item, got %d", swept)
	}

	reclaimed, err := store.ActiveItemForRef(ctx, queue.TicketRef(stale.ID))
	if err != nil {
		t.Fatalf("ActiveItemForRef failed: %v", err)
	}
	if reclaimed == nil || reclaimed.Status != queue.StatusQueued {
		t.Fatalf("expected stale item back in the queue, got %#v", reclaimed)
	}
	if reclaimed.Attempts != 1 {
		t.Fatalf("requeue should keep the spent attempt, got %d", reclaimed.Attempts)
	}
	if !strings.Contains(reclaimed.ErrorMessage, "lease expired") {
		t.Fatalf("unexpected error message: %q", reclaimed.ErrorMessage)
	}

	untouched, err := store.ActiveItemForRef(ctx, queue.TicketRef(fresh.ID))
	if err != nil {
		t.Fatalf("ActiveItemForRef for fresh item failed: %v", err)
	}
	if untouched == nil || untouched.Status != queue.StatusInProgress {
		t.Fatalf("fresh claim should survive the sweep, got %#v", untouched)
	}
}

func TestSweepFailsTerminallyWhenBudgetSpent(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithStaleAfter(1, 1),
		testsupport.WithMaxAttempts(1))
	store := testsupport.MustOpenStore(t, cfg)
	coordinator := flow.NewCoordinator(cfg, store, nil)
	monitor := flow.NewLeaseMonitor(cfg, store, nil)

	ctx := context.Background()
	q := testsupport.NewQueue(t, store, 1, "main", 1)
	ticket := testsupport.NewTicket(t, store, 1, "doomed")
	ref := queue.TicketRef(ticket.ID)
	enqueued := testsupport.Enqueue(t, store, q.ID, ref, queue.EnqueueOptions{})

	if _, err := coordinator.NextTask(ctx, q.ID, "agent-gone"); err != nil {
		t.Fatalf("NextTask failed: %v", err)
	}
	time.Sleep(1200 * time.Millisecond)

	swept, err := monitor.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("SweepOnce failed: %v", err)
	}
	if swept != 1 {
		t.Fatalf("expected 1 reclaimed item, got %d", swept)
	}

	item, err := store.GetItem(ctx, enqueued.ID)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if item == nil || item.Status != queue.StatusFailed {
		t.Fatalf("expected terminal failure, got %#v", item)
	}
}

func TestLeaseLoopReclaimsInBackground(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStaleAfter(1, 1))
	store := testsupport.MustOpenStore(t, cfg)
	coordinator := flow.NewCoordinator(cfg, store, nil)
	monitor := flow.NewLeaseMonitor(cfg, store, nil)

	ctx := context.Background()
	q := testsupport.NewQueue(t, store, 1, "main", 1)
	ticket := testsupport.NewTicket(t, store, 1, "abandoned")
	ref := queue.TicketRef(ticket.ID)
	testsupport.Enqueue(t, store, q.ID, ref, queue.EnqueueOptions{})
	if _, err := coordinator.NextTask(ctx, q.ID, "agent-gone"); err != nil {
		t.Fatalf("NextTask failed: %v", err)
	}

	monitor.Start(ctx)
	monitor.Start(ctx) // second start is a no-op
	defer monitor.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for {
		item, err := store.ActiveItemForRef(ctx, ref)
		if err != nil {
			t.Fatalf("ActiveItemForRef failed: %v", err)
		}
		if item != nil && item.Status == queue.StatusQueued {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("item was not reclaimed before the deadline: %#v", item)
		}
		time.Sleep(100 * time.Millisecond)
	}

	monitor.Stop()
}
