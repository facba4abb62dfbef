package flow

import (
	"context"

	"flowline/internal/logging"
	"flowline/internal/queue"
)

// UnqueuedItems groups a project's tickets and tasks that sit in no queue.
type UnqueuedItems struct {
	Tickets []*queue.Ticket
	Tasks   []*queue.Task
}

// Stats aggregates one queue's counts and timing.
func (m *Manager) Stats(ctx context.Context, queueID int64) (*queue.QueueStats, error) {
	if queueID <= 0 {
		return nil, validationErrorf("queue id must be positive")
	}
	stats, err := m.store.StatsForQueue(ctx, queueID)
	if err != nil {
		return nil, translate(err)
	}
	return stats, nil
}

// QueueActivity returns per-queue item counts for queue listings. A positive
// projectID restricts the summary to that project's queues.
func (m *Manager) QueueActivity(ctx context.Context, projectID int64) (map[int64]queue.QueueActivity, error) {
	activity, err := m.store.ActivityByQueue(ctx, projectID)
	if err != nil {
		return nil, translate(err)
	}
	return activity, nil
}

// Timeline returns a queue's lifecycle events in chronological order. A
// positive limit keeps only the most recent entries.
func (m *Manager) Timeline(ctx context.Context, queueID int64, limit int) ([]*queue.Event, error) {
	if queueID <= 0 {
		return nil, validationErrorf("queue id must be positive")
	}
	events, err := m.store.TimelineForQueue(ctx, queueID, limit)
	if err != nil {
		return nil, translate(err)
	}
	return events, nil
}

// Unqueued lists a project's tickets and tasks that are in no queue.
func (m *Manager) Unqueued(ctx context.Context, projectID int64) (*UnqueuedItems, error) {
	if projectID <= 0 {
		return nil, validationErrorf("project id must be positive")
	}
	tickets, err := m.store.UnqueuedTickets(ctx, projectID)
	if err != nil {
		return nil, translate(err)
	}
	tasks, err := m.store.UnqueuedTasks(ctx, projectID)
	if err != nil {
		return nil, translate(err)
	}
	return &UnqueuedItems{Tickets: tickets, Tasks: tasks}, nil
}

// RetryFailed puts a queue's failed items back in rotation with a fresh
// budget. itemIDs, when given, restrict the retry.
func (m *Manager) RetryFailed(ctx context.Context, queueID int64, itemIDs ...int64) (int, error) {
	if queueID <= 0 {
		return 0, validationErrorf("queue id must be positive")
	}
	retried, err := m.store.RetryFailed(ctx, queueID, itemIDs...)
	if err != nil {
		return 0, translate(err)
	}
	m.logger.Info("failed items retried",
		logging.Int64(logging.FieldQueueID, queueID),
		logging.Int("retried", retried))
	return retried, nil
}

// ClearTerminal prunes a queue's completed and failed rows.
func (m *Manager) ClearTerminal(ctx context.Context, queueID int64) (int64, error) {
	if queueID <= 0 {
		return 0, validationErrorf("queue id must be positive")
	}
	cleared, err := m.store.ClearTerminal(ctx, queueID)
	if err != nil {
		return 0, translate(err)
	}
	m.logger.Info("terminal items cleared",
		logging.Int64(logging.FieldQueueID, queueID),
		logging.Int64("cleared", cleared))
	return cleared, nil
}
