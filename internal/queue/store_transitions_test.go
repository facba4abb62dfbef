package queue_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"flowline/internal/queue"
	"flowline/internal/testsupport"
)

func TestClaimOrdersByPriorityThenPosition(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	q := testsupport.NewQueue(t, store, 1, "main", 10)

	// Enqueue order: low, high, high. The two high-priority items must come
	// out in FIFO order before the low one.
	low := testsupport.NewTicket(t, store, 1, "low")
	highA := testsupport.NewTicket(t, store, 1, "high a")
	highB := testsupport.NewTicket(t, store, 1, "high b")
	testsupport.Enqueue(t, store, q.ID, queue.TicketRef(low.ID), queue.EnqueueOptions{Priority: 1})
	testsupport.Enqueue(t, store, q.ID, queue.TicketRef(highA.ID), queue.EnqueueOptions{Priority: 5})
	testsupport.Enqueue(t, store, q.ID, queue.TicketRef(highB.ID), queue.EnqueueOptions{Priority: 5})

	wantOrder := []int64{highA.ID, highB.ID, low.ID}
	for i, wantID := range wantOrder {
		item, err := store.ClaimNext(ctx, q.ID, "agent-1")
		if err != nil {
			t.Fatalf("claim %d failed: %v", i, err)
		}
		if item == nil || item.Ref.ID != wantID {
			t.Fatalf("claim %d: expected ticket %d, got %#v", i, wantID, item)
		}
		if item.Status != queue.StatusInProgress || item.Attempts != 1 {
			t.Fatalf("claim %d: unexpected item state %#v", i, item)
		}
		if item.Position != 0 {
			t.Fatalf("claim %d: expected position cleared, got %d", i, item.Position)
		}
		if item.AgentID != "agent-1" || item.StartedAt == nil {
			t.Fatalf("claim %d: claim fields missing: %#v", i, item)
		}
	}

	item, err := store.ClaimNext(ctx, q.ID, "agent-1")
	if err != nil {
		t.Fatalf("claim on drained queue failed: %v", err)
	}
	if item != nil {
		t.Fatalf("expected nil on drained queue, got %#v", item)
	}
}

func TestClaimHonorsParallelCeiling(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	q := testsupport.NewQueue(t, store, 1, "main", 2)

	for i := 0; i < 3; i++ {
		ticket := testsupport.NewTicket(t, store, 1, fmt.Sprintf("t%d", i))
		testsupport.Enqueue(t, store, q.ID, queue.TicketRef(ticket.ID), queue.EnqueueOptions{})
	}

	first, err := store.ClaimNext(ctx, q.ID, "agent-1")
	if err != nil || first == nil {
		t.Fatalf("first claim: item=%v err=%v", first, err)
	}
	second, err := store.ClaimNext(ctx, q.ID, "agent-2")
	if err != nil || second == nil {
		t.Fatalf("second claim: item=%v err=%v", second, err)
	}

	// Ceiling reached: queued work stays queued.
	blocked, err := store.ClaimNext(ctx, q.ID, "agent-3")
	if err != nil {
		t.Fatalf("third claim failed: %v", err)
	}
	if blocked != nil {
		t.Fatalf("expected nil at ceiling, got %#v", blocked)
	}

	if _, err := store.CompleteItem(ctx, first.Ref, ""); err != nil {
		t.Fatalf("CompleteItem failed: %v", err)
	}
	freed, err := store.ClaimNext(ctx, q.ID, "agent-3")
	if err != nil {
		t.Fatalf("claim after completion failed: %v", err)
	}
	if freed == nil {
		t.Fatal("expected claim to succeed after a slot freed")
	}
}

func TestClaimRespectsPause(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	q := testsupport.NewQueue(t, store, 1, "main", 1)
	ticket := testsupport.NewTicket(t, store, 1, "parked")
	testsupport.Enqueue(t, store, q.ID, queue.TicketRef(ticket.ID), queue.EnqueueOptions{})

	if _, err := store.SetQueueActive(ctx, q.ID, false); err != nil {
		t.Fatalf("SetQueueActive failed: %v", err)
	}
	if _, err := store.ClaimNext(ctx, q.ID, "agent-1"); !errors.Is(err, queue.ErrQueuePaused) {
		t.Fatalf("expected ErrQueuePaused, got %v", err)
	}

	// Enqueueing into a paused queue still works.
	other := testsupport.NewTicket(t, store, 1, "also parked")
	testsupport.Enqueue(t, store, q.ID, queue.TicketRef(other.ID), queue.EnqueueOptions{})

	if _, err := store.SetQueueActive(ctx, q.ID, true); err != nil {
		t.Fatalf("SetQueueActive failed: %v", err)
	}
	item, err := store.ClaimNext(ctx, q.ID, "agent-1")
	if err != nil {
		t.Fatalf("claim after resume failed: %v", err)
	}
	if item == nil || item.Ref.ID != ticket.ID {
		t.Fatalf("expected first ticket after resume, got %#v", item)
	}
}

func TestFailRequeuesUntilBudgetExhausted(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxAttempts(2))
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	q := testsupport.NewQueue(t, store, 1, "main", 1)
	ticket := testsupport.NewTicket(t, store, 1, "flaky")
	blocker := testsupport.NewTicket(t, store, 1, "blocker")
	ref := queue.TicketRef(ticket.ID)

	testsupport.Enqueue(t, store, q.ID, ref, queue.EnqueueOptions{})
	testsupport.Enqueue(t, store, q.ID, queue.TicketRef(blocker.ID), queue.EnqueueOptions{})

	claimed, err := store.ClaimNext(ctx, q.ID, "agent-1")
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if claimed.Ref != ref || claimed.Attempts != 1 {
		t.Fatalf("unexpected first claim: %#v", claimed)
	}

	requeued, err := store.FailItem(ctx, ref, "first failure")
	if err != nil {
		t.Fatalf("FailItem failed: %v", err)
	}
	if requeued.Status != queue.StatusQueued {
		t.Fatalf("expected requeue, got %s", requeued.Status)
	}
	if requeued.Attempts != 1 {
		t.Fatalf("expected attempts kept at 1, got %d", requeued.Attempts)
	}
	if requeued.Position != 3 {
		t.Fatalf("expected tail position 3, got %d", requeued.Position)
	}
	if requeued.ErrorMessage != "first failure" {
		t.Fatalf("expected error message retained, got %q", requeued.ErrorMessage)
	}
	if requeued.AgentID != "" || requeued.StartedAt != nil {
		t.Fatalf("expected claim fields cleared, got %#v", requeued)
	}

	// The blocker now sits ahead of the requeued item.
	next, err := store.ClaimNext(ctx, q.ID, "agent-1")
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if next.Ref.ID != blocker.ID {
		t.Fatalf("expected blocker before requeued item, got %#v", next)
	}
	if _, err := store.CompleteItem(ctx, next.Ref, ""); err != nil {
		t.Fatalf("CompleteItem failed: %v", err)
	}

	again, err := store.ClaimNext(ctx, q.ID, "agent-1")
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if again.Ref != ref || again.Attempts != 2 {
		t.Fatalf("unexpected second claim: %#v", again)
	}

	dead, err := store.FailItem(ctx, ref, "second failure")
	if err != nil {
		t.Fatalf("FailItem failed: %v", err)
	}
	if dead.Status != queue.StatusFailed {
		t.Fatalf("expected terminal failure, got %s", dead.Status)
	}
	if dead.CompletedAt == nil || dead.ErrorMessage != "second failure" {
		t.Fatalf("terminal failure fields missing: %#v", dead)
	}
	if dead.Position != 0 {
		t.Fatalf("expected position cleared on terminal failure, got %d", dead.Position)
	}

	ticket, err = store.GetTicket(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("GetTicket failed: %v", err)
	}
	if ticket.Queue.Status != queue.StatusFailed || ticket.Queue.ErrorMessage != "second failure" {
		t.Fatalf("unexpected failed mirror: %#v", ticket.Queue)
	}
}

func TestCompleteIsIdempotentAndGuarded(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	q := testsupport.NewQueue(t, store, 1, "main", 1)
	ticket := testsupport.NewTicket(t, store, 1, "oneshot")
	ref := queue.TicketRef(ticket.ID)
	testsupport.Enqueue(t, store, q.ID, ref, queue.EnqueueOptions{})

	// Completing a queued item is refused.
	if _, err := store.CompleteItem(ctx, ref, ""); !errors.Is(err, queue.ErrNotInProgress) {
		t.Fatalf("expected ErrNotInProgress for queued item, got %v", err)
	}

	if _, err := store.ClaimNext(ctx, q.ID, "agent-1"); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	done, err := store.CompleteItem(ctx, ref, "all good")
	if err != nil {
		t.Fatalf("CompleteItem failed: %v", err)
	}
	if done.Status != queue.StatusCompleted || done.CompletedAt == nil {
		t.Fatalf("unexpected completed item: %#v", done)
	}

	// A second completion for the same run is a no-op.
	repeat, err := store.CompleteItem(ctx, ref, "still good")
	if err != nil {
		t.Fatalf("repeated CompleteItem failed: %v", err)
	}
	if repeat.ID != done.ID || repeat.Status != queue.StatusCompleted {
		t.Fatalf("unexpected repeat result: %#v", repeat)
	}

	// Failing after completion is refused.
	if _, err := store.FailItem(ctx, ref, "too late"); !errors.Is(err, queue.ErrNotInProgress) {
		t.Fatalf("expected ErrNotInProgress after completion, got %v", err)
	}
}

func TestCompletedItemCanBeEnqueuedAgain(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	q := testsupport.NewQueue(t, store, 1, "main", 1)
	ticket := testsupport.NewTicket(t, store, 1, "repeat customer")
	ref := queue.TicketRef(ticket.ID)

	first := testsupport.Enqueue(t, store, q.ID, ref, queue.EnqueueOptions{})
	if _, err := store.ClaimNext(ctx, q.ID, "agent-1"); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if _, err := store.CompleteItem(ctx, ref, ""); err != nil {
		t.Fatalf("CompleteItem failed: %v", err)
	}

	second := testsupport.Enqueue(t, store, q.ID, ref, queue.EnqueueOptions{})
	if second.ID == first.ID {
		t.Fatal("expected a fresh queue item row")
	}
	if second.Attempts != 0 || second.Status != queue.StatusQueued {
		t.Fatalf("unexpected re-enqueued item: %#v", second)
	}

	ticket, err := store.GetTicket(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("GetTicket failed: %v", err)
	}
	if ticket.Queue.Status != queue.StatusQueued {
		t.Fatalf("expected mirror back to queued, got %#v", ticket.Queue)
	}
}

func TestConfirmInProgressChecksAgent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	q := testsupport.NewQueue(t, store, 1, "main", 1)
	ticket := testsupport.NewTicket(t, store, 1, "claimed work")
	ref := queue.TicketRef(ticket.ID)
	testsupport.Enqueue(t, store, q.ID, ref, queue.EnqueueOptions{})

	if _, err := store.ConfirmInProgress(ctx, ref, "agent-1"); !errors.Is(err, queue.ErrNotInProgress) {
		t.Fatalf("expected ErrNotInProgress before claim, got %v", err)
	}

	if _, err := store.ClaimNext(ctx, q.ID, "agent-1"); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	item, err := store.ConfirmInProgress(ctx, ref, "agent-1")
	if err != nil {
		t.Fatalf("ConfirmInProgress failed: %v", err)
	}
	if item.AgentID != "agent-1" {
		t.Fatalf("unexpected item: %#v", item)
	}
	if _, err := store.ConfirmInProgress(ctx, ref, "impostor"); !errors.Is(err, queue.ErrAgentMismatch) {
		t.Fatalf("expected ErrAgentMismatch, got %v", err)
	}
	// Empty agent skips the ownership check.
	if _, err := store.ConfirmInProgress(ctx, ref, ""); err != nil {
		t.Fatalf("ConfirmInProgress without agent failed: %v", err)
	}
}

func TestRetryFailedResetsBudget(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxAttempts(1))
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	q := testsupport.NewQueue(t, store, 1, "main", 1)
	ticket := testsupport.NewTicket(t, store, 1, "second chance")
	ref := queue.TicketRef(ticket.ID)
	testsupport.Enqueue(t, store, q.ID, ref, queue.EnqueueOptions{})

	if _, err := store.ClaimNext(ctx, q.ID, "agent-1"); err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	dead, err := store.FailItem(ctx, ref, "fatal")
	if err != nil {
		t.Fatalf("FailItem failed: %v", err)
	}
	if dead.Status != queue.StatusFailed {
		t.Fatalf("expected terminal failure, got %s", dead.Status)
	}

	retried, err := store.RetryFailed(ctx, q.ID)
	if err != nil {
		t.Fatalf("RetryFailed failed: %v", err)
	}
	if retried != 1 {
		t.Fatalf("expected 1 retried, got %d", retried)
	}

	item, err := store.GetItem(ctx, dead.ID)
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if item.Status != queue.StatusQueued || item.Attempts != 0 || item.ErrorMessage != "" {
		t.Fatalf("unexpected retried item: %#v", item)
	}
	if item.Position == 0 {
		t.Fatal("expected retried item to receive a position")
	}

	ticket, err = store.GetTicket(ctx, ticket.ID)
	if err != nil {
		t.Fatalf("GetTicket failed: %v", err)
	}
	if ticket.Queue.Status != queue.StatusQueued {
		t.Fatalf("expected mirror queued after retry, got %#v", ticket.Queue)
	}
}

func TestStaleInProgressUsesCutoff(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	q := testsupport.NewQueue(t, store, 1, "main", 2)
	ticket := testsupport.NewTicket(t, store, 1, "long runner")
	testsupport.Enqueue(t, store, q.ID, queue.TicketRef(ticket.ID), queue.EnqueueOptions{})

	claimed, err := store.ClaimNext(ctx, q.ID, "agent-1")
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}

	past, err := store.StaleInProgress(ctx, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("StaleInProgress failed: %v", err)
	}
	if len(past) != 0 {
		t.Fatalf("expected no stale items against old cutoff, got %d", len(past))
	}

	future, err := store.StaleInProgress(ctx, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("StaleInProgress failed: %v", err)
	}
	if len(future) != 1 || future[0].ID != claimed.ID {
		t.Fatalf("expected the claimed item to be stale, got %#v", future)
	}
}

func TestConcurrentClaimsNeverDoubleClaim(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	q := testsupport.NewQueue(t, store, 1, "main", 1)
	ticket := testsupport.NewTicket(t, store, 1, "contested")
	testsupport.Enqueue(t, store, q.ID, queue.TicketRef(ticket.ID), queue.EnqueueOptions{})

	const claimants = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []int64
	)
	for i := 0; i < claimants; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			item, err := store.ClaimNext(ctx, q.ID, fmt.Sprintf("agent-%d", n))
			if err != nil && !errors.Is(err, queue.ErrClaimRace) {
				t.Errorf("claimant %d: unexpected error: %v", n, err)
				return
			}
			if item != nil {
				mu.Lock()
				winners = append(winners, item.ID)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if len(winners) != 1 {
		t.Fatalf("expected exactly one winner, got %d", len(winners))
	}

	item, err := store.GetItem(ctx, winners[0])
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if item.Status != queue.StatusInProgress || item.Attempts != 1 {
		t.Fatalf("winner in unexpected state: %#v", item)
	}
}
