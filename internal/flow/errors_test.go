package flow_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"flowline/internal/flow"
	"flowline/internal/queue"
	"flowline/internal/testsupport"
)

func TestCodeOfClassifiesStoreSentinels(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	manager := flow.NewManager(cfg, store, nil)
	coordinator := flow.NewCoordinator(cfg, store, nil)

	ctx := context.Background()
	q := testsupport.NewQueue(t, store, 1, "main", 1)
	ticket := testsupport.NewTicket(t, store, 1, "classified")
	ref := queue.TicketRef(ticket.ID)

	if _, err := manager.GetQueue(ctx, 404); flow.CodeOf(err) != flow.CodeNotFound {
		t.Fatalf("expected not_found, got %q (%v)", flow.CodeOf(err), err)
	}

	if _, err := manager.Enqueue(ctx, q.ID, ref, queue.EnqueueOptions{}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if _, err := manager.Enqueue(ctx, q.ID, ref, queue.EnqueueOptions{}); flow.CodeOf(err) != flow.CodeAlreadyQueued {
		t.Fatalf("expected already_queued, got %q (%v)", flow.CodeOf(err), err)
	}

	if _, err := coordinator.ProcessComplete(ctx, ref, ""); flow.CodeOf(err) != flow.CodeNotInProgress {
		t.Fatalf("expected not_in_progress, got %q (%v)", flow.CodeOf(err), err)
	}

	if _, err := coordinator.NextTask(ctx, q.ID, ""); flow.CodeOf(err) != flow.CodeValidation {
		t.Fatalf("expected validation, got %q (%v)", flow.CodeOf(err), err)
	}

	if _, err := manager.Pause(ctx, q.ID); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	if _, err := coordinator.NextTask(ctx, q.ID, "agent-1"); flow.CodeOf(err) != flow.CodeQueuePaused {
		t.Fatalf("expected queue_paused, got %q (%v)", flow.CodeOf(err), err)
	}

	// Typed errors keep their queue sentinel for errors.Is callers.
	_, err := manager.Enqueue(ctx, q.ID, ref, queue.EnqueueOptions{})
	if !errors.Is(err, queue.ErrAlreadyQueued) {
		t.Fatalf("expected wrapped sentinel, got %v", err)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		code flow.Code
		want int
	}{
		{flow.CodeValidation, http.StatusBadRequest},
		{flow.CodeNotFound, http.StatusNotFound},
		{flow.CodeAlreadyQueued, http.StatusConflict},
		{flow.CodeItemInFlight, http.StatusConflict},
		{flow.CodeInvalidReorderSet, http.StatusConflict},
		{flow.CodeClaimContention, http.StatusConflict},
		{flow.CodeConflict, http.StatusConflict},
		{flow.CodeNotInProgress, http.StatusPreconditionFailed},
		{flow.CodeQueuePaused, http.StatusPreconditionFailed},
		{flow.CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := flow.HTTPStatus(tc.code); got != tc.want {
			t.Fatalf("HTTPStatus(%s) = %d, want %d", tc.code, got, tc.want)
		}
	}
}

func TestCodeOfUnknownErrorIsInternal(t *testing.T) {
	if code := flow.CodeOf(errors.New("disk on fire")); code != flow.CodeInternal {
		t.Fatalf("expected internal, got %q", code)
	}
	if code := flow.CodeOf(nil); code != "" {
		t.Fatalf("expected empty code for nil error, got %q", code)
	}
}
