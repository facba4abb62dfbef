package flow

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"flowline/internal/config"
	"flowline/internal/logging"
	"flowline/internal/notifications"
	"flowline/internal/queue"
)

// Coordinator drives the processing lifecycle: claiming work and recording
// its outcome.
type Coordinator struct {
	store        *queue.Store
	logger       *slog.Logger
	notifier     notifications.Service
	claimRetries int
}

// NewCoordinator wires a coordinator over the store.
func NewCoordinator(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	retries := cfg.Queue.ClaimRetryAttempts
	if retries < 1 {
		retries = 1
	}
	return &Coordinator{
		store:        store,
		logger:       logging.NewComponentLogger(logger, "flow-coordinator"),
		notifier:     notifications.NewService(cfg),
		claimRetries: retries,
	}
}

// NextTask claims the best queued item for an agent. (nil, nil) means the
// queue has nothing claimable right now: empty, or at its parallel ceiling.
// Lost claim races retry a bounded number of times before surfacing as
// claim contention.
func (c *Coordinator) NextTask(ctx context.Context, queueID int64, agentID string) (*queue.Item, error) {
	if queueID <= 0 {
		return nil, validationErrorf("queue id must be positive")
	}
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return nil, validationErrorf("agentId is required")
	}
	ctx = logging.WithAgentID(ctx, agentID)
	logger := logging.WithContext(ctx, c.logger)

	var lastErr error
	for attempt := 0; attempt < c.claimRetries; attempt++ {
		item, err := c.store.ClaimNext(ctx, queueID, agentID)
		if err == nil {
			if item == nil {
				return nil, nil
			}
			logger.Info("item claimed",
				logging.Int64(logging.FieldQueueID, queueID),
				logging.String(logging.FieldItemType, string(item.Ref.Type)),
				logging.Int64(logging.FieldItemID, item.Ref.ID),
				logging.Int("attempt", item.Attempts))
			return item, nil
		}
		if !errors.Is(err, queue.ErrClaimRace) {
			return nil, translate(err)
		}
		lastErr = err
		logger.Debug("claim lost race",
			logging.Int64(logging.FieldQueueID, queueID),
			logging.Int("retry", attempt+1))
	}
	return nil, translate(lastErr)
}

// ProcessStart acknowledges that an agent is working its claimed item. It is
// a read-side confirmation; NextTask already flipped the status.
func (c *Coordinator) ProcessStart(ctx context.Context, ref queue.ItemRef, agentID string) (*queue.Item, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	item, err := c.store.ConfirmInProgress(ctx, ref, strings.TrimSpace(agentID))
	if err != nil {
		return nil, translate(err)
	}
	return item, nil
}

// ProcessComplete finishes an in-progress item. Calling it again after
// success is a no-op.
func (c *Coordinator) ProcessComplete(ctx context.Context, ref queue.ItemRef, notes string) (*queue.Item, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	item, err := c.store.CompleteItem(ctx, ref, strings.TrimSpace(notes))
	if err != nil {
		return nil, translate(err)
	}
	c.logger.Info("item completed",
		logging.Int64(logging.FieldQueueID, item.QueueID),
		logging.String(logging.FieldItemType, string(ref.Type)),
		logging.Int64(logging.FieldItemID, ref.ID),
		logging.Int64("processing_ms", item.ActualProcessingMS))
	return item, nil
}

// ProcessFail records a failure. With retry budget left the item requeues at
// the tail; otherwise it ends as failed.
func (c *Coordinator) ProcessFail(ctx context.Context, ref queue.ItemRef, errMsg string) (*queue.Item, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	errMsg = strings.TrimSpace(errMsg)
	if errMsg == "" {
		return nil, validationErrorf("errorMessage is required")
	}

	item, err := c.store.FailItem(ctx, ref, errMsg)
	if err != nil {
		return nil, translate(err)
	}
	if item.Status == queue.StatusQueued {
		c.logger.Warn("item failed, requeued",
			logging.Int64(logging.FieldQueueID, item.QueueID),
			logging.String(logging.FieldItemType, string(ref.Type)),
			logging.Int64(logging.FieldItemID, ref.ID),
			logging.Int("attempt", item.Attempts),
			logging.Int("max_attempts", item.MaxAttempts))
	} else {
		c.logger.Error("item failed permanently",
			logging.Int64(logging.FieldQueueID, item.QueueID),
			logging.String(logging.FieldItemType, string(ref.Type)),
			logging.Int64(logging.FieldItemID, ref.ID),
			logging.String("error", errMsg))
		if err := c.notifier.NotifyItemFailed(ctx, ref.String(), item.QueueID, item.Attempts, errMsg); err != nil {
			c.logger.Warn("failure notification not delivered", logging.Error(err))
		}
	}
	return item, nil
}
