package queue

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// appendEventTx adds a timeline row in the caller's transaction so the log
// commits or rolls back with the change it describes.
func appendEventTx(ctx context.Context, tx *sql.Tx, queueID int64, ref ItemRef, kind EventKind, agentID, detail string) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO flow_events (queue_id, item_type, item_id, event, agent_id, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		queueID,
		string(ref.Type),
		ref.ID,
		string(kind),
		nullableString(agentID),
		nullableString(detail),
		formatTime(time.Now()),
	); err != nil {
		return fmt.Errorf("append %s event for %s: %w", kind, ref, err)
	}
	return nil
}

// TimelineForQueue returns a queue's events in chronological order. A
// positive limit keeps only the most recent entries.
func (s *Store) TimelineForQueue(ctx context.Context, queueID int64, limit int) ([]*Event, error) {
	ctx = ensureContext(ctx)

	q, err := s.GetQueue(ctx, queueID)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, fmt.Errorf("%w: id %d", ErrQueueNotFound, queueID)
	}

	query := "SELECT " + eventColumns + " FROM flow_events WHERE queue_id = ?"
	args := []any{queueID}
	if limit > 0 {
		query += " ORDER BY id DESC LIMIT ?"
		args = append(args, limit)
	} else {
		query += " ORDER BY id ASC"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queue %d events: %w", queueID, err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	if limit > 0 {
		for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
			events[i], events[j] = events[j], events[i]
		}
	}
	return events, nil
}
