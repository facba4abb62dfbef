package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// EnqueueItem appends a reference to the tail of a queue. The insert, the
// entity mirror update, and the timeline event commit together. An entity
// already occupying any queue is rejected with ErrAlreadyQueued.
func (s *Store) EnqueueItem(ctx context.Context, queueID int64, ref ItemRef, opts EnqueueOptions) (*Item, error) {
	var out *Item
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getQueueTx(ctx, tx, queueID); err != nil {
			return err
		}
		if err := refExistsTx(ctx, tx, ref); err != nil {
			return err
		}

		existing, err := activeItemForRefTx(ctx, tx, ref)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: %s is in queue %d with status %s",
				ErrAlreadyQueued, ref, existing.QueueID, existing.Status)
		}

		item, err := insertItemTx(ctx, tx, s.defaultMaxAttempts, queueID, ref, opts)
		if err != nil {
			return err
		}
		if err := applyMirrorTx(ctx, tx, ref, mirrorFromItem(item)); err != nil {
			return err
		}
		if err := appendEventTx(ctx, tx, queueID, ref, EventEnqueued, "",
			fmt.Sprintf("position %d priority %d", item.Position, item.Priority)); err != nil {
			return err
		}
		out = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// insertItemTx appends a fresh queued row at the tail of a queue. Callers
// hold the transaction and are responsible for mirror and event writes.
func insertItemTx(ctx context.Context, tx *sql.Tx, defaultMaxAttempts int, queueID int64, ref ItemRef, opts EnqueueOptions) (*Item, error) {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	position, err := tailPositionTx(ctx, tx, queueID)
	if err != nil {
		return nil, err
	}

	now := formatTime(time.Now())
	res, err := tx.ExecContext(ctx, `
		INSERT INTO queue_items (queue_id, item_type, item_id, priority, status, position,
		                         attempts, max_attempts, estimated_processing_ms, metadata_json,
		                         created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?, ?, ?, ?)`,
		queueID,
		string(ref.Type),
		ref.ID,
		opts.Priority,
		string(StatusQueued),
		position,
		maxAttempts,
		nullableInt64(opts.EstimatedProcessingMS),
		nullableString(opts.MetadataJSON),
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err, "queue_items.item_type") {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyQueued, ref)
		}
		return nil, fmt.Errorf("insert queue item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("queue item insert id: %w", err)
	}
	return getItemTx(ctx, tx, id)
}

// GetItem fetches a queue item by id. It returns (nil, nil) when no item exists.
func (s *Store) GetItem(ctx context.Context, id int64) (*Item, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+itemColumns+" FROM queue_items WHERE id = ?", id)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get queue item %d: %w", id, err)
	}
	return item, nil
}

func getItemTx(ctx context.Context, tx *sql.Tx, id int64) (*Item, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+itemColumns+" FROM queue_items WHERE id = ?", id)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrItemNotFound, id)
		}
		return nil, fmt.Errorf("get queue item %d: %w", id, err)
	}
	return item, nil
}

// ActiveItemForRef finds the queued or in-progress item holding the given
// reference. It returns (nil, nil) when the entity occupies no queue.
func (s *Store) ActiveItemForRef(ctx context.Context, ref ItemRef) (*Item, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+` FROM queue_items
		WHERE item_type = ? AND item_id = ? AND status IN (?, ?)
		LIMIT 1`,
		string(ref.Type), ref.ID, string(StatusQueued), string(StatusInProgress))
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active item for %s: %w", ref, err)
	}
	return item, nil
}

func activeItemForRefTx(ctx context.Context, tx *sql.Tx, ref ItemRef) (*Item, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT `+itemColumns+` FROM queue_items
		WHERE item_type = ? AND item_id = ? AND status IN (?, ?)
		LIMIT 1`,
		string(ref.Type), ref.ID, string(StatusQueued), string(StatusInProgress))
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find active item for %s: %w", ref, err)
	}
	return item, nil
}

// tailPositionTx returns the next free position at the back of the queue.
func tailPositionTx(ctx context.Context, tx *sql.Tx, queueID int64) (int, error) {
	var max sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		"SELECT MAX(position) FROM queue_items WHERE queue_id = ? AND status = ?",
		queueID, string(StatusQueued),
	).Scan(&max); err != nil {
		return 0, fmt.Errorf("queue %d tail position: %w", queueID, err)
	}
	return int(max.Int64) + 1, nil
}

// ListItems returns a queue's items, claim order first: queued items by
// descending priority then position, in-progress next, terminal rows last.
// Statuses, when given, filter the result.
func (s *Store) ListItems(ctx context.Context, queueID int64, statuses ...Status) ([]*Item, error) {
	ctx = ensureContext(ctx)

	q, err := s.GetQueue(ctx, queueID)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, fmt.Errorf("%w: id %d", ErrQueueNotFound, queueID)
	}

	query := "SELECT " + itemColumns + " FROM queue_items WHERE queue_id = ?"
	args := []any{queueID}
	if len(statuses) > 0 {
		query += " AND status IN (" + makePlaceholders(len(statuses)) + ")"
		args = append(args, statusArgs(statuses)...)
	}
	query += `
		ORDER BY CASE status
			WHEN 'queued' THEN 0
			WHEN 'in_progress' THEN 1
			ELSE 2
		END,
		priority DESC, COALESCE(position, 0) ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queue %d items: %w", queueID, err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue items: %w", err)
	}
	return items, nil
}
