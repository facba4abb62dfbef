package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

func isUniqueViolation(err error, qualifier string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") && strings.Contains(msg, qualifier)
}

// CreateQueue inserts a queue and returns the stored row. Queue names are
// unique per project.
func (s *Store) CreateQueue(ctx context.Context, q *Queue) (*Queue, error) {
	ctx = ensureContext(ctx)
	now := formatTime(time.Now())

	res, err := s.execWithRetry(ctx, `
		INSERT INTO queues (project_id, name, description, max_parallel_items, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		q.ProjectID,
		q.Name,
		nullableString(q.Description),
		q.MaxParallelItems,
		boolToInt(q.IsActive),
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err, "queues.") {
			return nil, fmt.Errorf("%w: %q in project %d", ErrDuplicateName, q.Name, q.ProjectID)
		}
		return nil, fmt.Errorf("insert queue: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("queue insert id: %w", err)
	}
	return s.GetQueue(ctx, id)
}

// GetQueue fetches a queue by id. It returns (nil, nil) when no queue exists.
func (s *Store) GetQueue(ctx context.Context, id int64) (*Queue, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+queueColumns+" FROM queues WHERE id = ?", id)
	q, err := scanQueue(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get queue %d: %w", id, err)
	}
	return q, nil
}

func getQueueTx(ctx context.Context, tx *sql.Tx, id int64) (*Queue, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT "+queueColumns+" FROM queues WHERE id = ?", id)
	q, err := scanQueue(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrQueueNotFound
		}
		return nil, fmt.Errorf("get queue %d: %w", id, err)
	}
	return q, nil
}

// ListQueues returns queues ordered by project then name. A non-positive
// projectID lists every queue.
func (s *Store) ListQueues(ctx context.Context, projectID int64) ([]*Queue, error) {
	ctx = ensureContext(ctx)

	query := "SELECT " + queueColumns + " FROM queues"
	args := []any{}
	if projectID > 0 {
		query += " WHERE project_id = ?"
		args = append(args, projectID)
	}
	query += " ORDER BY project_id, name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queues: %w", err)
	}
	defer rows.Close()

	var queues []*Queue
	for rows.Next() {
		q, err := scanQueue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue: %w", err)
		}
		queues = append(queues, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queues: %w", err)
	}
	return queues, nil
}

// UpdateQueue rewrites the mutable columns of a queue.
func (s *Store) UpdateQueue(ctx context.Context, q *Queue) (*Queue, error) {
	ctx = ensureContext(ctx)

	res, err := s.execWithRetry(ctx, `
		UPDATE queues
		SET name = ?, description = ?, max_parallel_items = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		q.Name,
		nullableString(q.Description),
		q.MaxParallelItems,
		boolToInt(q.IsActive),
		formatTime(time.Now()),
		q.ID,
	)
	if err != nil {
		if isUniqueViolation(err, "queues.") {
			return nil, fmt.Errorf("%w: %q in project %d", ErrDuplicateName, q.Name, q.ProjectID)
		}
		return nil, fmt.Errorf("update queue %d: %w", q.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("update queue %d: %w", q.ID, err)
	}
	if affected == 0 {
		return nil, ErrQueueNotFound
	}
	return s.GetQueue(ctx, q.ID)
}

// SetQueueActive pauses (false) or resumes (true) claiming for a queue.
// Enqueues are unaffected; only ClaimNext consults the flag.
func (s *Store) SetQueueActive(ctx context.Context, id int64, active bool) (*Queue, error) {
	ctx = ensureContext(ctx)

	res, err := s.execWithRetry(ctx,
		"UPDATE queues SET is_active = ?, updated_at = ? WHERE id = ?",
		boolToInt(active), formatTime(time.Now()), id)
	if err != nil {
		return nil, fmt.Errorf("set queue %d active=%t: %w", id, active, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("set queue %d active=%t: %w", id, active, err)
	}
	if affected == 0 {
		return nil, ErrQueueNotFound
	}
	return s.GetQueue(ctx, id)
}

// DeleteQueue removes a queue, its items, and its timeline. The delete is
// refused while any item is in progress. Mirrors pointing at the queue are
// cleared in the same transaction.
func (s *Store) DeleteQueue(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getQueueTx(ctx, tx, id); err != nil {
			return err
		}

		var inFlight int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(1) FROM queue_items WHERE queue_id = ? AND status = ?",
			id, string(StatusInProgress),
		).Scan(&inFlight); err != nil {
			return fmt.Errorf("count in-progress items: %w", err)
		}
		if inFlight > 0 {
			return fmt.Errorf("%w: queue %d has %d item(s) in progress", ErrItemInFlight, id, inFlight)
		}

		if err := clearMirrorsByQueueTx(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM flow_events WHERE queue_id = ?", id); err != nil {
			return fmt.Errorf("delete queue %d events: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM queues WHERE id = ?", id); err != nil {
			return fmt.Errorf("delete queue %d: %w", id, err)
		}
		return nil
	})
}
