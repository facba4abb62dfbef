package testsupport

import (
	"context"
	"testing"

	"flowline/internal/config"
	"flowline/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewQueue creates a queue for tests using the provided store.
func NewQueue(t testing.TB, store *queue.Store, projectID int64, name string, maxParallel int) *queue.Queue {
	t.Helper()

	q, err := store.CreateQueue(context.Background(), &queue.Queue{
		ProjectID:        projectID,
		Name:             name,
		MaxParallelItems: maxParallel,
		IsActive:         true,
	})
	if err != nil {
		t.Fatalf("store.CreateQueue: %v", err)
	}
	return q
}

// NewTicket creates a registry ticket for tests.
func NewTicket(t testing.TB, store *queue.Store, projectID int64, title string) *queue.Ticket {
	t.Helper()

	ticket, err := store.CreateTicket(context.Background(), &queue.Ticket{
		ProjectID: projectID,
		Title:     title,
	})
	if err != nil {
		t.Fatalf("store.CreateTicket: %v", err)
	}
	return ticket
}

// NewTask creates a registry task under the given ticket for tests.
func NewTask(t testing.TB, store *queue.Store, ticketID int64, title string) *queue.Task {
	t.Helper()

	task, err := store.CreateTask(context.Background(), &queue.Task{
		TicketID: ticketID,
		Title:    title,
	})
	if err != nil {
		t.Fatalf("store.CreateTask: %v", err)
	}
	return task
}

// Enqueue places a reference in a queue for tests.
func Enqueue(t testing.TB, store *queue.Store, queueID int64, ref queue.ItemRef, opts queue.EnqueueOptions) *queue.Item {
	t.Helper()

	item, err := store.EnqueueItem(context.Background(), queueID, ref, opts)
	if err != nil {
		t.Fatalf("store.EnqueueItem(%s): %v", ref, err)
	}
	return item
}
