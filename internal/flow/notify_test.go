package flow_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"flowline/internal/flow"
	"flowline/internal/queue"
	"flowline/internal/testsupport"
)

type ntfyCapture struct {
	mu     sync.Mutex
	titles []string
	bodies []string
}

func (c *ntfyCapture) snapshot() ([]string, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.titles...), append([]string(nil), c.bodies...)
}

func startNtfyCapture(t *testing.T) (*httptest.Server, *ntfyCapture) {
	t.Helper()
	capture := &ntfyCapture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		capture.mu.Lock()
		capture.titles = append(capture.titles, r.Header.Get("Title"))
		capture.bodies = append(capture.bodies, string(body))
		capture.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, capture
}

func TestProcessFailNotifiesOnlyOnTerminalFailure(t *testing.T) {
	srv, capture := startNtfyCapture(t)
	cfg := testsupport.NewConfig(t,
		testsupport.WithMaxAttempts(2),
		testsupport.WithNtfyTopic(srv.URL))
	store := testsupport.MustOpenStore(t, cfg)
	manager := flow.NewManager(cfg, store, nil)
	coordinator := flow.NewCoordinator(cfg, store, nil)

	ctx := context.Background()
	q := testsupport.NewQueue(t, store, 1, "main", 1)
	ticket := testsupport.NewTicket(t, store, 1, "fragile")
	ref := queue.TicketRef(ticket.ID)
	if _, err := manager.Enqueue(ctx, q.ID, ref, queue.EnqueueOptions{}); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	if _, err := coordinator.NextTask(ctx, q.ID, "agent-1"); err != nil {
		t.Fatalf("NextTask failed: %v", err)
	}
	if _, err := coordinator.ProcessFail(ctx, ref, "first failure"); err != nil {
		t.Fatalf("ProcessFail failed: %v", err)
	}

	// A requeue keeps the alert channel quiet.
	if titles, _ := capture.snapshot(); len(titles) != 0 {
		t.Fatalf("requeue should not notify, got %v", titles)
	}

	if _, err := coordinator.NextTask(ctx, q.ID, "agent-2"); err != nil {
		t.Fatalf("second NextTask failed: %v", err)
	}
	dead, err := coordinator.ProcessFail(ctx, ref, "handler crashed")
	if err != nil {
		t.Fatalf("second ProcessFail failed: %v", err)
	}
	if dead.Status != queue.StatusFailed {
		t.Fatalf("expected terminal failure, got %s", dead.Status)
	}

	titles, bodies := capture.snapshot()
	if len(titles) != 1 {
		t.Fatalf("expected one notification, got %d", len(titles))
	}
	if titles[0] != "Flowline - Item Failed" {
		t.Fatalf("unexpected title %q", titles[0])
	}
	for _, want := range []string{ref.String(), "handler crashed"} {
		if !strings.Contains(bodies[0], want) {
			t.Fatalf("notification %q missing %q", bodies[0], want)
		}
	}
}

func TestSweepOnceNotifiesOnLeaseReclaim(t *testing.T) {
	srv, capture := startNtfyCapture(t)
	cfg := testsupport.NewConfig(t,
		testsupport.WithStaleAfter(1, 1),
		testsupport.WithNtfyTopic(srv.URL))
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
	time.Sleep(1200 * time.Millisecond)

	swept, err := monitor.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("SweepOnce failed: %v", err)
	}
	if swept != 1 {
		t.Fatalf("expected 1 reclaimed item, got %d", swept)
	}

	titles, bodies := capture.snapshot()
	if len(titles) != 1 {
		t.Fatalf("expected one notification, got %d", len(titles))
	}
	if titles[0] != "Flowline - Lease Reclaimed" {
		t.Fatalf("unexpected title %q", titles[0])
	}
	for _, want := range []string{ref.String(), string(queue.StatusQueued)} {
		if !strings.Contains(bodies[0], want) {
			t.Fatalf("notification %q missing %q", bodies[0], want)
		}
	}
}
