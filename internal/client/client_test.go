package client_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"flowline/internal/api"
	"flowline/internal/client"
	"flowline/internal/daemon"
	"flowline/internal/flow"
	"flowline/internal/testsupport"
)

func startDaemon(t *testing.T) *daemon.Daemon {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := flow.NewService(cfg, store, nil)
	d, err := daemon.New(cfg, store, svc, nil)
	if err != nil {
		t.Fatalf("daemon.New failed: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start failed: %v", err)
	}
	t.Cleanup(func() { d.Stop() })
	return d
}

func TestDialFailsWhenDaemonDown(t *testing.T) {
	if _, err := client.Dial("127.0.0.1:1", ""); err == nil {
		t.Fatal("expected dial failure against a closed port")
	}
}

func TestClientRoundTrip(t *testing.T) {
	d := startDaemon(t)
	c, err := client.Dial(d.Addr(), "")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	ctx := context.Background()

	q, err := c.CreateQueue(ctx, api.CreateQueueRequest{ProjectID: 1, Name: "main", MaxParallelItems: 2})
	if err != nil {
		t.Fatalf("CreateQueue failed: %v", err)
	}
	ticket, err := c.CreateTicket(ctx, api.CreateTicketRequest{ProjectID: 1, Title: "work"})
	if err != nil {
		t.Fatalf("CreateTicket failed: %v", err)
	}
	item, err := c.Enqueue(ctx, "ticket", ticket.ID, api.EnqueueBody{QueueID: q.ID, Priority: 7})
	if err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if item.Priority != 7 || item.Status != "queued" {
		t.Fatalf("unexpected enqueued item: %+v", item)
	}

	claimed, err := c.NextTask(ctx, q.ID, "agent-1")
	if err != nil {
		t.Fatalf("NextTask failed: %v", err)
	}
	if claimed == nil || claimed.ID != item.ID {
		t.Fatalf("expected to claim item %d, got %+v", item.ID, claimed)
	}
	drained, err := c.NextTask(ctx, q.ID, "agent-1")
	if err != nil {
		t.Fatalf("NextTask on drained queue failed: %v", err)
	}
	if drained != nil {
		t.Fatalf("drained queue should return nil, got %+v", drained)
	}

	done, err := c.ProcessComplete(ctx, api.ProcessCompleteRequest{ItemType: "ticket", ItemID: ticket.ID})
	if err != nil {
		t.Fatalf("ProcessComplete failed: %v", err)
	}
	if done.Status != "completed" {
		t.Fatalf("expected completed, got %+v", done)
	}

	stats, err := c.QueueStats(ctx, q.ID)
	if err != nil {
		t.Fatalf("QueueStats failed: %v", err)
	}
	if stats.Counts["completed"] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	events, err := c.QueueTimeline(ctx, q.ID, 10)
	if err != nil {
		t.Fatalf("QueueTimeline failed: %v", err)
	}
	if len(events) < 3 {
		t.Fatalf("expected enqueue/claim/complete events, got %d", len(events))
	}
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	d := startDaemon(t)
	c, err := client.Dial(d.Addr(), "")
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	_, err = c.Queue(context.Background(), 999)
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Code != "not_found" {
		t.Fatalf("unexpected APIError: %+v", apiErr)
	}
	if apiErr.Error() == "" {
		t.Fatal("APIError should render a message")
	}
}
