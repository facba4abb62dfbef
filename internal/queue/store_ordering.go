package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// DequeueRef removes the referenced entity from its queue and clears the
// entity mirror. In-progress items are refused unless force is set.
func (s *Store) DequeueRef(ctx context.Context, ref ItemRef, force bool) (*Item, error) {
	var out *Item
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		item, err := dequeueTx(ctx, tx, ref, force)
		if err != nil {
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

// dequeueTx removes ref's current queue membership: the active row when one
// exists, otherwise the terminal row the entity still mirrors.
func dequeueTx(ctx context.Context, tx *sql.Tx, ref ItemRef, force bool) (*Item, error) {
	item, err := activeItemForRefTx(ctx, tx, ref)
	if err != nil {
		return nil, err
	}
	if item == nil {
		item, err = mirroredTerminalItemTx(ctx, tx, ref)
		if err != nil {
			return nil, err
		}
	}

	if item.Status == StatusInProgress && !force {
		return nil, fmt.Errorf("%w: %s is claimed by %q", ErrItemInFlight, ref, item.AgentID)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM queue_items WHERE id = ?", item.ID); err != nil {
		return nil, fmt.Errorf("delete queue item %d: %w", item.ID, err)
	}
	if err := clearMirrorTx(ctx, tx, ref); err != nil {
		return nil, err
	}

	detail := "status " + string(item.Status)
	if force && item.Status == StatusInProgress {
		detail += " (forced)"
	}
	if err := appendEventTx(ctx, tx, item.QueueID, ref, EventDequeued, item.AgentID, detail); err != nil {
		return nil, err
	}
	return item, nil
}

// mirroredTerminalItemTx resolves the terminal row a not-active entity still
// mirrors. Rows and mirrors always change in one transaction, so a mirror
// without a row is corruption and surfaces as ErrItemNotFound.
func mirroredTerminalItemTx(ctx context.Context, tx *sql.Tx, ref ItemRef) (*Item, error) {
	table, err := registryTable(ref.Type)
	if err != nil {
		return nil, err
	}

	var queueID sql.NullInt64
	err = tx.QueryRowContext(ctx, "SELECT queue_id FROM "+table+" WHERE id = ?", ref.ID).Scan(&queueID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", refNotFound(ref.Type), ref.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s mirror: %w", ref, err)
	}
	if !queueID.Valid {
		return nil, fmt.Errorf("%w: %s", ErrNotQueued, ref)
	}

	row := tx.QueryRowContext(ctx, `
		SELECT `+itemColumns+` FROM queue_items
		WHERE queue_id = ? AND item_type = ? AND item_id = ? AND status IN (?, ?)
		ORDER BY id DESC LIMIT 1`,
		queueID.Int64, string(ref.Type), ref.ID,
		string(StatusCompleted), string(StatusFailed))
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s mirrors queue %d but has no row", ErrItemNotFound, ref, queueID.Int64)
		}
		return nil, fmt.Errorf("find mirrored item for %s: %w", ref, err)
	}
	return item, nil
}

// MoveRef transfers the referenced entity to the tail of another queue in a
// single transaction. The new membership starts with a fresh retry budget:
// attempts 0 and no error message. Priority, max attempts, and metadata
// carry over. A non-positive targetQueueID dequeues instead, and moving an
// entity that is in no queue behaves as a plain enqueue.
func (s *Store) MoveRef(ctx context.Context, ref ItemRef, targetQueueID int64) (*Item, error) {
	var out *Item
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		out = nil
		if targetQueueID <= 0 {
			_, err := dequeueTx(ctx, tx, ref, false)
			return err
		}

		if _, err := getQueueTx(ctx, tx, targetQueueID); err != nil {
			return err
		}
		if err := refExistsTx(ctx, tx, ref); err != nil {
			return err
		}

		opts := EnqueueOptions{}
		current, err := activeItemForRefTx(ctx, tx, ref)
		if err != nil {
			return err
		}
		if current != nil {
			if current.QueueID == targetQueueID {
				out = current
				return nil
			}
			if current.Status == StatusInProgress {
				return fmt.Errorf("%w: %s is claimed by %q", ErrItemInFlight, ref, current.AgentID)
			}
			opts.Priority = current.Priority
			opts.MaxAttempts = current.MaxAttempts
			opts.EstimatedProcessingMS = current.EstimatedProcessingMS
			opts.MetadataJSON = current.MetadataJSON

			if _, err := tx.ExecContext(ctx, "DELETE FROM queue_items WHERE id = ?", current.ID); err != nil {
				return fmt.Errorf("delete queue item %d: %w", current.ID, err)
			}
			if err := appendEventTx(ctx, tx, current.QueueID, ref, EventDequeued, "",
				fmt.Sprintf("moved to queue %d", targetQueueID)); err != nil {
				return err
			}
		}

		item, err := insertItemTx(ctx, tx, s.defaultMaxAttempts, targetQueueID, ref, opts)
		if err != nil {
			return err
		}
		if err := applyMirrorTx(ctx, tx, ref, mirrorFromItem(item)); err != nil {
			return err
		}
		if err := appendEventTx(ctx, tx, targetQueueID, ref, EventEnqueued, "",
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

// Reorder rewrites the FIFO positions of a queue's queued items. itemIDs
// must name exactly the queued set; anything else is ErrInvalidReorderSet.
// In-progress and terminal rows are untouched.
func (s *Store) Reorder(ctx context.Context, queueID int64, itemIDs []int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getQueueTx(ctx, tx, queueID); err != nil {
			return err
		}

		rows, err := tx.QueryContext(ctx,
			"SELECT id, item_type, item_id FROM queue_items WHERE queue_id = ? AND status = ?",
			queueID, string(StatusQueued))
		if err != nil {
			return fmt.Errorf("list queued items: %w", err)
		}
		queued := make(map[int64]ItemRef)
		for rows.Next() {
			var (
				id       int64
				itemType string
				itemID   int64
			)
			if err := rows.Scan(&id, &itemType, &itemID); err != nil {
				rows.Close()
				return fmt.Errorf("scan queued item: %w", err)
			}
			queued[id] = ItemRef{Type: ItemType(itemType), ID: itemID}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate queued items: %w", err)
		}

		if len(itemIDs) != len(queued) {
			return fmt.Errorf("%w: queue %d has %d queued item(s), request names %d",
				ErrInvalidReorderSet, queueID, len(queued), len(itemIDs))
		}
		seen := make(map[int64]struct{}, len(itemIDs))
		for _, id := range itemIDs {
			if _, ok := queued[id]; !ok {
				return fmt.Errorf("%w: item %d is not queued in queue %d", ErrInvalidReorderSet, id, queueID)
			}
			if _, dup := seen[id]; dup {
				return fmt.Errorf("%w: item %d listed more than once", ErrInvalidReorderSet, id)
			}
			seen[id] = struct{}{}
		}

		// Two passes keep the unique (queue_id, position) index satisfied at
		// every row: park the new order in negative positions, then flip.
		now := formatTime(time.Now())
		for idx, id := range itemIDs {
			if _, err := tx.ExecContext(ctx,
				"UPDATE queue_items SET position = ?, updated_at = ? WHERE id = ?",
				-(idx + 1), now, id); err != nil {
				return fmt.Errorf("stage position for item %d: %w", id, err)
			}
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE queue_items SET position = -position WHERE queue_id = ? AND status = ? AND position < 0",
			queueID, string(StatusQueued)); err != nil {
			return fmt.Errorf("apply reordered positions: %w", err)
		}

		for idx, id := range itemIDs {
			if err := updateMirrorPositionTx(ctx, tx, queued[id], idx+1); err != nil {
				return err
			}
		}
		return nil
	})
}
