package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ClaimNext hands the best queued item to an agent. The pause check, the
// parallelism ceiling, candidate selection, and the status flip all happen
// in one transaction, and the flip re-verifies both the candidate's status
// and the ceiling so concurrent claimants cannot double-claim or overshoot.
// A lost race surfaces as ErrClaimRace for the caller to retry; (nil, nil)
// means there is genuinely nothing to hand out right now.
func (s *Store) ClaimNext(ctx context.Context, queueID int64, agentID string) (*Item, error) {
	var out *Item
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		out = nil

		q, err := getQueueTx(ctx, tx, queueID)
		if err != nil {
			return err
		}
		if !q.IsActive {
			return fmt.Errorf("%w: queue %d", ErrQueuePaused, queueID)
		}

		var inFlight int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(1) FROM queue_items WHERE queue_id = ? AND status = ?",
			queueID, string(StatusInProgress),
		).Scan(&inFlight); err != nil {
			return fmt.Errorf("count in-progress items: %w", err)
		}
		if inFlight >= q.MaxParallelItems {
			return nil
		}

		var candidateID int64
		err = tx.QueryRowContext(ctx, `
			SELECT id FROM queue_items
			WHERE queue_id = ? AND status = ?
			ORDER BY priority DESC, position ASC, id ASC
			LIMIT 1`,
			queueID, string(StatusQueued),
		).Scan(&candidateID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("select claim candidate: %w", err)
		}

		now := formatTime(time.Now())
		res, err := tx.ExecContext(ctx, `
			UPDATE queue_items
			SET status = ?, agent_id = ?, attempts = attempts + 1, position = NULL,
			    started_at = ?, completed_at = NULL, error_message = NULL, updated_at = ?
			WHERE id = ? AND status = ?
			  AND (SELECT COUNT(1) FROM queue_items WHERE queue_id = ? AND status = ?) < ?`,
			string(StatusInProgress), agentID, now, now,
			candidateID, string(StatusQueued),
			queueID, string(StatusInProgress), q.MaxParallelItems,
		)
		if err != nil {
			return fmt.Errorf("claim item %d: %w", candidateID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("claim item %d: %w", candidateID, err)
		}
		if affected == 0 {
			return fmt.Errorf("%w: item %d", ErrClaimRace, candidateID)
		}

		item, err := getItemTx(ctx, tx, candidateID)
		if err != nil {
			return err
		}
		if err := applyMirrorTx(ctx, tx, item.Ref, mirrorFromItem(item)); err != nil {
			return err
		}
		if err := appendEventTx(ctx, tx, queueID, item.Ref, EventClaimed, agentID,
			fmt.Sprintf("attempt %d of %d", item.Attempts, item.MaxAttempts)); err != nil {
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

// ConfirmInProgress is the explicit start acknowledgement for an item an
// agent already claimed. It changes nothing; it only verifies the item is
// in flight and, when agentID is non-empty, that it belongs to the caller.
func (s *Store) ConfirmInProgress(ctx context.Context, ref ItemRef, agentID string) (*Item, error) {
	item, err := s.ActiveItemForRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("%w: %s has no active item", ErrNotInProgress, ref)
	}
	if item.Status != StatusInProgress {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotInProgress, ref, item.Status)
	}
	if agentID != "" && item.AgentID != agentID {
		return nil, fmt.Errorf("%w: %s belongs to %q", ErrAgentMismatch, ref, item.AgentID)
	}
	return item, nil
}

// CompleteItem finishes an in-progress item. Repeating the call after a
// successful completion is a no-op that returns the terminal row.
func (s *Store) CompleteItem(ctx context.Context, ref ItemRef, notes string) (*Item, error) {
	var out *Item
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		out = nil

		item, err := activeItemForRefTx(ctx, tx, ref)
		if err != nil {
			return err
		}
		if item == nil {
			prior, err := mirroredTerminalItemTx(ctx, tx, ref)
			switch {
			case err == nil && prior.Status == StatusCompleted:
				out = prior
				return nil
			case err == nil:
				return fmt.Errorf("%w: %s already ended as %s", ErrNotInProgress, ref, prior.Status)
			case errors.Is(err, ErrNotQueued):
				return fmt.Errorf("%w: %s has no active item", ErrNotInProgress, ref)
			default:
				return err
			}
		}
		if item.Status != StatusInProgress {
			return fmt.Errorf("%w: %s is %s", ErrNotInProgress, ref, item.Status)
		}

		now := time.Now().UTC()
		var actualMS int64
		if item.StartedAt != nil {
			actualMS = now.Sub(*item.StartedAt).Milliseconds()
			if actualMS < 0 {
				actualMS = 0
			}
		}
		nowStr := formatTime(now)
		if _, err := tx.ExecContext(ctx, `
			UPDATE queue_items
			SET status = ?, position = NULL, completed_at = ?, actual_processing_ms = ?, updated_at = ?
			WHERE id = ?`,
			string(StatusCompleted), nowStr, nullableInt64(actualMS), nowStr, item.ID,
		); err != nil {
			return fmt.Errorf("complete item %d: %w", item.ID, err)
		}

		item, err = getItemTx(ctx, tx, item.ID)
		if err != nil {
			return err
		}
		if err := applyMirrorTx(ctx, tx, ref, mirrorFromItem(item)); err != nil {
			return err
		}
		detail := notes
		if detail == "" {
			detail = fmt.Sprintf("in %d ms", actualMS)
		}
		if err := appendEventTx(ctx, tx, item.QueueID, ref, EventCompleted, item.AgentID, detail); err != nil {
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

// FailItem records a failure for an in-progress item. With retry budget left
// the item goes back to the tail of its queue, keeping the attempt count and
// the error message; with the budget spent it ends as failed.
func (s *Store) FailItem(ctx context.Context, ref ItemRef, errMsg string) (*Item, error) {
	var out *Item
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		out = nil

		item, err := activeItemForRefTx(ctx, tx, ref)
		if err != nil {
			return err
		}
		if item == nil {
			return fmt.Errorf("%w: %s has no active item", ErrNotInProgress, ref)
		}
		if item.Status != StatusInProgress {
			return fmt.Errorf("%w: %s is %s", ErrNotInProgress, ref, item.Status)
		}

		now := formatTime(time.Now())
		if item.RetryBudgetLeft() {
			position, err := tailPositionTx(ctx, tx, item.QueueID)
			if err != nil {
				return err
			}
			// attempts stay as counted at claim time
			if _, err := tx.ExecContext(ctx, `
				UPDATE queue_items
				SET status = ?, position = ?, agent_id = NULL, started_at = NULL,
				    completed_at = NULL, error_message = ?, updated_at = ?
				WHERE id = ?`,
				string(StatusQueued), position, nullableString(errMsg), now, item.ID,
			); err != nil {
				return fmt.Errorf("requeue item %d: %w", item.ID, err)
			}
		} else {
			if _, err := tx.ExecContext(ctx, `
				UPDATE queue_items
				SET status = ?, position = NULL, completed_at = ?, error_message = ?, updated_at = ?
				WHERE id = ?`,
				string(StatusFailed), now, nullableString(errMsg), now, item.ID,
			); err != nil {
				return fmt.Errorf("fail item %d: %w", item.ID, err)
			}
		}

		claimant := item.AgentID
		attempts, maxAttempts := item.Attempts, item.MaxAttempts
		item, err = getItemTx(ctx, tx, item.ID)
		if err != nil {
			return err
		}
		if err := applyMirrorTx(ctx, tx, ref, mirrorFromItem(item)); err != nil {
			return err
		}

		kind := EventFailed
		if item.Status == StatusQueued {
			kind = EventRequeued
		}
		if err := appendEventTx(ctx, tx, item.QueueID, ref, kind, claimant,
			fmt.Sprintf("attempt %d of %d: %s", attempts, maxAttempts, errMsg)); err != nil {
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

// StaleInProgress lists in-progress items whose processing started before
// the cutoff. Timestamps are compared in Go because the stored RFC 3339
// strings do not collate chronologically once fractional seconds differ in
// width.
func (s *Store) StaleInProgress(ctx context.Context, cutoff time.Time) ([]*Item, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+itemColumns+" FROM queue_items WHERE status = ? ORDER BY id",
		string(StatusInProgress))
	if err != nil {
		return nil, fmt.Errorf("list in-progress items: %w", err)
	}
	defer rows.Close()

	var stale []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue item: %w", err)
		}
		if item.StartedAt != nil && item.StartedAt.Before(cutoff) {
			stale = append(stale, item)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue items: %w", err)
	}
	return stale, nil
}

// RetryFailed puts a queue's failed items back at the tail with a fresh
// budget: attempts reset to 0 and the error cleared. itemIDs, when given,
// restrict the retry to those rows. Failed rows whose entity meanwhile
// occupies another queue are skipped. Returns the number retried.
func (s *Store) RetryFailed(ctx context.Context, queueID int64, itemIDs ...int64) (int, error) {
	retried := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		retried = 0
		if _, err := getQueueTx(ctx, tx, queueID); err != nil {
			return err
		}

		query := "SELECT " + itemColumns + " FROM queue_items WHERE queue_id = ? AND status = ?"
		args := []any{queueID, string(StatusFailed)}
		if len(itemIDs) > 0 {
			query += " AND id IN (" + makePlaceholders(len(itemIDs)) + ")"
			for _, id := range itemIDs {
				args = append(args, id)
			}
		}
		query += " ORDER BY id"

		rows, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("list failed items: %w", err)
		}
		var failed []*Item
		for rows.Next() {
			item, err := scanItem(rows)
			if err != nil {
				rows.Close()
				return fmt.Errorf("scan queue item: %w", err)
			}
			failed = append(failed, item)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate failed items: %w", err)
		}

		now := formatTime(time.Now())
		for _, item := range failed {
			active, err := activeItemForRefTx(ctx, tx, item.Ref)
			if err != nil {
				return err
			}
			if active != nil {
				continue
			}

			position, err := tailPositionTx(ctx, tx, queueID)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `
				UPDATE queue_items
				SET status = ?, position = ?, attempts = 0, agent_id = NULL,
				    error_message = NULL, started_at = NULL, completed_at = NULL, updated_at = ?
				WHERE id = ?`,
				string(StatusQueued), position, now, item.ID,
			); err != nil {
				return fmt.Errorf("retry item %d: %w", item.ID, err)
			}

			refreshed, err := getItemTx(ctx, tx, item.ID)
			if err != nil {
				return err
			}
			if err := applyMirrorTx(ctx, tx, item.Ref, mirrorFromItem(refreshed)); err != nil {
				return err
			}
			if err := appendEventTx(ctx, tx, queueID, item.Ref, EventRequeued, "", "retry requested"); err != nil {
				return err
			}
			retried++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return retried, nil
}
