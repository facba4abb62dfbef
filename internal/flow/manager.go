package flow

import (
	"context"
	"log/slog"
	"strings"

	"flowline/internal/config"
	"flowline/internal/logging"
	"flowline/internal/queue"
)

// Manager owns queue shaping: queue CRUD, membership changes, ordering, and
// pause state. Processing lifecycle calls live on the Coordinator.
type Manager struct {
	store  *queue.Store
	cfg    *config.Config
	logger *slog.Logger
}

// NewManager wires a manager over the store.
func NewManager(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Manager{
		store:  store,
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "flow-manager"),
	}
}

// QueueUpdate carries the optional fields of a queue update; nil leaves the
// current value in place.
type QueueUpdate struct {
	Name             *string
	Description      *string
	MaxParallelItems *int
}

// CreateQueue registers a new queue for a project. Queues start active.
func (m *Manager) CreateQueue(ctx context.Context, projectID int64, name, description string, maxParallel int) (*queue.Queue, error) {
	if projectID <= 0 {
		return nil, validationErrorf("projectId must be positive")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationErrorf("queue name is required")
	}
	if maxParallel == 0 {
		maxParallel = m.cfg.Queue.DefaultMaxParallel
	}
	if maxParallel <= 0 {
		return nil, validationErrorf("maxParallelItems must be at least 1")
	}

	q, err := m.store.CreateQueue(ctx, &queue.Queue{
		ProjectID:        projectID,
		Name:             name,
		Description:      strings.TrimSpace(description),
		MaxParallelItems: maxParallel,
		IsActive:         true,
	})
	if err != nil {
		return nil, translate(err)
	}
	m.logger.Info("queue created",
		logging.Int64(logging.FieldQueueID, q.ID),
		logging.String("name", q.Name),
		logging.Int("max_parallel", q.MaxParallelItems))
	return q, nil
}

// GetQueue fetches a queue or reports not found.
func (m *Manager) GetQueue(ctx context.Context, queueID int64) (*queue.Queue, error) {
	if queueID <= 0 {
		return nil, validationErrorf("queue id must be positive")
	}
	q, err := m.store.GetQueue(ctx, queueID)
	if err != nil {
		return nil, translate(err)
	}
	if q == nil {
		return nil, Errorf(CodeNotFound, "queue %d not found", queueID)
	}
	return q, nil
}

// ListQueues lists queues, optionally scoped to a project.
func (m *Manager) ListQueues(ctx context.Context, projectID int64) ([]*queue.Queue, error) {
	queues, err := m.store.ListQueues(ctx, projectID)
	if err != nil {
		return nil, translate(err)
	}
	return queues, nil
}

// UpdateQueue applies a partial update to a queue's mutable fields.
func (m *Manager) UpdateQueue(ctx context.Context, queueID int64, upd QueueUpdate) (*queue.Queue, error) {
	q, err := m.GetQueue(ctx, queueID)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" {
			return nil, validationErrorf("queue name is required")
		}
		q.Name = name
	}
	if upd.Description != nil {
		q.Description = strings.TrimSpace(*upd.Description)
	}
	if upd.MaxParallelItems != nil {
		if *upd.MaxParallelItems <= 0 {
			return nil, validationErrorf("maxParallelItems must be at least 1")
		}
		q.MaxParallelItems = *upd.MaxParallelItems
	}

	updated, err := m.store.UpdateQueue(ctx, q)
	if err != nil {
		return nil, translate(err)
	}
	m.logger.Info("queue updated", logging.Int64(logging.FieldQueueID, updated.ID))
	return updated, nil
}

// DeleteQueue removes a queue and everything in it. Queues with in-progress
// items are refused.
func (m *Manager) DeleteQueue(ctx context.Context, queueID int64) error {
	if queueID <= 0 {
		return validationErrorf("queue id must be positive")
	}
	if err := m.store.DeleteQueue(ctx, queueID); err != nil {
		return translate(err)
	}
	m.logger.Info("queue deleted", logging.Int64(logging.FieldQueueID, queueID))
	return nil
}

// Pause stops a queue from handing out work. Items already in progress run
// to completion and enqueues keep landing.
func (m *Manager) Pause(ctx context.Context, queueID int64) (*queue.Queue, error) {
	return m.setActive(ctx, queueID, false)
}

// Resume reopens a paused queue for claiming.
func (m *Manager) Resume(ctx context.Context, queueID int64) (*queue.Queue, error) {
	return m.setActive(ctx, queueID, true)
}

func (m *Manager) setActive(ctx context.Context, queueID int64, active bool) (*queue.Queue, error) {
	if queueID <= 0 {
		return nil, validationErrorf("queue id must be positive")
	}
	q, err := m.store.SetQueueActive(ctx, queueID, active)
	if err != nil {
		return nil, translate(err)
	}
	if active {
		m.logger.Info("queue resumed", logging.Int64(logging.FieldQueueID, queueID))
	} else {
		m.logger.Info("queue paused", logging.Int64(logging.FieldQueueID, queueID))
	}
	return q, nil
}
