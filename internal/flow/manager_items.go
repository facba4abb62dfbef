package flow

import (
	"context"

	"flowline/internal/logging"
	"flowline/internal/queue"
)

// EnqueueRequest names one reference to place in a queue.
type EnqueueRequest struct {
	Ref  queue.ItemRef
	Opts queue.EnqueueOptions
}

// EnqueueOutcome reports one entry of a batch enqueue. Err is nil when the
// entry landed.
type EnqueueOutcome struct {
	Ref  queue.ItemRef
	Item *queue.Item
	Err  error
}

// MoveOutcome reports one entry of a bulk move. Item is nil when the entry
// was dequeued or failed.
type MoveOutcome struct {
	Ref  queue.ItemRef
	Item *queue.Item
	Err  error
}

func validateRef(ref queue.ItemRef) error {
	if !ref.Valid() {
		return validationErrorf("item reference needs itemType ticket or task and a positive itemId")
	}
	return nil
}

func validateEnqueueOptions(opts queue.EnqueueOptions) error {
	if opts.MaxAttempts < 0 {
		return validationErrorf("maxAttempts must not be negative")
	}
	if opts.EstimatedProcessingMS < 0 {
		return validationErrorf("estimatedProcessingMs must not be negative")
	}
	return nil
}

// Enqueue appends a ticket or task to the tail of a queue.
func (m *Manager) Enqueue(ctx context.Context, queueID int64, ref queue.ItemRef, opts queue.EnqueueOptions) (*queue.Item, error) {
	if queueID <= 0 {
		return nil, validationErrorf("queue id must be positive")
	}
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	if err := validateEnqueueOptions(opts); err != nil {
		return nil, err
	}

	item, err := m.store.EnqueueItem(ctx, queueID, ref, opts)
	if err != nil {
		return nil, translate(err)
	}
	m.logger.Info("item enqueued",
		logging.Int64(logging.FieldQueueID, queueID),
		logging.String(logging.FieldItemType, string(ref.Type)),
		logging.Int64(logging.FieldItemID, ref.ID),
		logging.Int("position", item.Position),
		logging.Int("priority", item.Priority))
	return item, nil
}

// BatchEnqueue appends several references in request order. Entries fail
// individually; one bad reference does not block the rest. The queue itself
// must exist or the whole batch is rejected.
func (m *Manager) BatchEnqueue(ctx context.Context, queueID int64, reqs []EnqueueRequest) ([]EnqueueOutcome, error) {
	if _, err := m.GetQueue(ctx, queueID); err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, validationErrorf("batch enqueue needs at least one item")
	}

	outcomes := make([]EnqueueOutcome, 0, len(reqs))
	succeeded := 0
	for _, req := range reqs {
		outcome := EnqueueOutcome{Ref: req.Ref}
		if err := validateRef(req.Ref); err != nil {
			outcome.Err = err
		} else if err := validateEnqueueOptions(req.Opts); err != nil {
			outcome.Err = err
		} else if item, err := m.store.EnqueueItem(ctx, queueID, req.Ref, req.Opts); err != nil {
			outcome.Err = translate(err)
		} else {
			outcome.Item = item
			succeeded++
		}
		outcomes = append(outcomes, outcome)
	}

	m.logger.Info("batch enqueue finished",
		logging.Int64(logging.FieldQueueID, queueID),
		logging.Int("requested", len(reqs)),
		logging.Int("enqueued", succeeded))
	return outcomes, nil
}

// Dequeue removes a reference from whatever queue holds it. force overrides
// the in-progress guard.
func (m *Manager) Dequeue(ctx context.Context, ref queue.ItemRef, force bool) (*queue.Item, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	item, err := m.store.DequeueRef(ctx, ref, force)
	if err != nil {
		return nil, translate(err)
	}
	m.logger.Info("item dequeued",
		logging.String(logging.FieldItemType, string(ref.Type)),
		logging.Int64(logging.FieldItemID, ref.ID),
		logging.Bool("forced", force))
	return item, nil
}

// Move transfers a reference to the tail of targetQueueID with a fresh retry
// budget. A non-positive target dequeues instead, returning a nil item.
func (m *Manager) Move(ctx context.Context, ref queue.ItemRef, targetQueueID int64) (*queue.Item, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	item, err := m.store.MoveRef(ctx, ref, targetQueueID)
	if err != nil {
		return nil, translate(err)
	}
	m.logger.Info("item moved",
		logging.String(logging.FieldItemType, string(ref.Type)),
		logging.Int64(logging.FieldItemID, ref.ID),
		logging.Int64("target_queue_id", targetQueueID))
	return item, nil
}

// BulkMove applies Move to each reference, collecting per-entry outcomes.
// The target queue must exist up front when one is named.
func (m *Manager) BulkMove(ctx context.Context, refs []queue.ItemRef, targetQueueID int64) ([]MoveOutcome, error) {
	if targetQueueID > 0 {
		if _, err := m.GetQueue(ctx, targetQueueID); err != nil {
			return nil, err
		}
	}
	if len(refs) == 0 {
		return nil, validationErrorf("bulk move needs at least one item")
	}

	outcomes := make([]MoveOutcome, 0, len(refs))
	moved := 0
	for _, ref := range refs {
		outcome := MoveOutcome{Ref: ref}
		if err := validateRef(ref); err != nil {
			outcome.Err = err
		} else if item, err := m.store.MoveRef(ctx, ref, targetQueueID); err != nil {
			outcome.Err = translate(err)
		} else {
			outcome.Item = item
			moved++
		}
		outcomes = append(outcomes, outcome)
	}

	m.logger.Info("bulk move finished",
		logging.Int64("target_queue_id", targetQueueID),
		logging.Int("requested", len(refs)),
		logging.Int("moved", moved))
	return outcomes, nil
}

// Reorder rewrites a queue's FIFO positions to match itemIDs exactly and
// returns the queued items in their new order.
func (m *Manager) Reorder(ctx context.Context, queueID int64, itemIDs []int64) ([]*queue.Item, error) {
	if queueID <= 0 {
		return nil, validationErrorf("queue id must be positive")
	}
	if err := m.store.Reorder(ctx, queueID, itemIDs); err != nil {
		return nil, translate(err)
	}
	m.logger.Info("queue reordered",
		logging.Int64(logging.FieldQueueID, queueID),
		logging.Int("items", len(itemIDs)))
	return m.Items(ctx, queueID, queue.StatusQueued)
}

// Items lists a queue's items in claim order, optionally filtered by status.
func (m *Manager) Items(ctx context.Context, queueID int64, statuses ...queue.Status) ([]*queue.Item, error) {
	if queueID <= 0 {
		return nil, validationErrorf("queue id must be positive")
	}
	items, err := m.store.ListItems(ctx, queueID, statuses...)
	if err != nil {
		return nil, translate(err)
	}
	return items, nil
}
