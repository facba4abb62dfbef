package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// StatsForQueue aggregates one queue's item counts and average completion
// time. Counts always carries every status, so zero rows read as zero.
func (s *Store) StatsForQueue(ctx context.Context, queueID int64) (*QueueStats, error) {
	ctx = ensureContext(ctx)

	q, err := s.GetQueue(ctx, queueID)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, fmt.Errorf("%w: id %d", ErrQueueNotFound, queueID)
	}

	stats := &QueueStats{
		QueueID:          q.ID,
		QueueName:        q.Name,
		MaxParallelItems: q.MaxParallelItems,
		IsActive:         q.IsActive,
		Counts:           make(map[Status]int, len(allStatuses)),
	}
	for _, status := range allStatuses {
		stats.Counts[status] = 0
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(1) FROM queue_items WHERE queue_id = ? GROUP BY status", queueID)
	if err != nil {
		return nil, fmt.Errorf("queue %d stats: %w", queueID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats.Counts[status] = count
		stats.Total += count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var avg sql.NullFloat64
	if err := s.db.QueryRowContext(ctx,
		"SELECT AVG(actual_processing_ms) FROM queue_items WHERE queue_id = ? AND status = ?",
		queueID, string(StatusCompleted),
	).Scan(&avg); err != nil {
		return nil, fmt.Errorf("queue %d avg processing: %w", queueID, err)
	}
	if avg.Valid {
		stats.AvgProcessingMS = int64(avg.Float64)
	}
	return stats, nil
}

// Stats returns a count of items grouped by status across all queues.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM queue_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("flow stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// ActivityByQueue returns item counts grouped by queue, filtered to one
// project's queues when projectID is positive.
func (s *Store) ActivityByQueue(ctx context.Context, projectID int64) (map[int64]QueueActivity, error) {
	ctx = ensureContext(ctx)

	query := "SELECT qi.queue_id, qi.status, COUNT(1) FROM queue_items qi"
	args := make([]any, 0, 1)
	if projectID > 0 {
		query += " JOIN queues q ON q.id = qi.queue_id WHERE q.project_id = ?"
		args = append(args, projectID)
	}
	query += " GROUP BY qi.queue_id, qi.status"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("queue activity: %w", err)
	}
	defer rows.Close()

	activity := make(map[int64]QueueActivity)
	for rows.Next() {
		var queueID int64
		var status Status
		var count int
		if err := rows.Scan(&queueID, &status, &count); err != nil {
			return nil, err
		}
		entry := activity[queueID]
		switch status {
		case StatusQueued:
			entry.Queued = count
		case StatusInProgress:
			entry.InProgress = count
		case StatusCompleted:
			entry.Completed = count
		case StatusFailed:
			entry.Failed = count
		}
		activity[queueID] = entry
	}
	return activity, rows.Err()
}

// Health aggregates flow state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	ctx = ensureContext(ctx)
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case StatusQueued:
			health.Queued += count
		case StatusInProgress:
			health.InProgress += count
		case StatusCompleted:
			health.Completed += count
		case StatusFailed:
			health.Failed += count
		}
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM queues").Scan(&health.Queues); err != nil {
		return HealthSummary{}, fmt.Errorf("count queues: %w", err)
	}
	return health, nil
}

// ClearTerminal deletes a queue's completed and failed rows and resets the
// mirrors still showing that terminal state. The timeline is kept.
func (s *Store) ClearTerminal(ctx context.Context, queueID int64) (int64, error) {
	var cleared int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		cleared = 0
		if _, err := getQueueTx(ctx, tx, queueID); err != nil {
			return err
		}

		now := formatTime(time.Now())
		for _, table := range []string{"tickets", "tasks"} {
			if _, err := tx.ExecContext(ctx, `
				UPDATE `+table+`
				SET queue_id = NULL, queue_position = NULL, queue_status = NULL, queue_priority = NULL,
				    queue_agent_id = NULL, queue_error_message = NULL,
				    estimated_processing_ms = NULL, actual_processing_ms = NULL,
				    queued_at = NULL, queue_started_at = NULL, queue_completed_at = NULL,
				    updated_at = ?
				WHERE queue_id = ? AND queue_status IN (?, ?)`,
				now, queueID, string(StatusCompleted), string(StatusFailed),
			); err != nil {
				return fmt.Errorf("clear %s terminal mirrors: %w", table, err)
			}
		}

		res, err := tx.ExecContext(ctx,
			"DELETE FROM queue_items WHERE queue_id = ? AND status IN (?, ?)",
			queueID, string(StatusCompleted), string(StatusFailed))
		if err != nil {
			return fmt.Errorf("clear queue %d terminal items: %w", queueID, err)
		}
		cleared, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("clear queue %d terminal items: %w", queueID, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return cleared, nil
}

// CheckHealth returns diagnostic information about the flow database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{
		DBPath:        s.path,
		SchemaVersion: fmt.Sprintf("%d", schemaVersion),
	}

	if s.path == "" {
		return health, errors.New("flow database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			health.DatabaseExists = false
			return health, nil
		}
		return health, fmt.Errorf("stat flow database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("flow database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("flow database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping flow database: %w", err)
	}
	health.DatabaseReadable = true

	expectedTables := []string{"queues", "queue_items", "tickets", "tasks", "flow_events"}
	health.TablesPresent = true
	for _, table := range expectedTables {
		var name string
		row := s.db.QueryRowContext(connCtx,
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table)
		if err := row.Scan(&name); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				health.TablesPresent = false
				health.MissingTables = append(health.MissingTables, table)
				continue
			}
			health.Error = err.Error()
			return health, fmt.Errorf("query table info: %w", err)
		}
	}

	if health.TablesPresent {
		row := s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM queue_items")
		if err := row.Scan(&health.TotalItems); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count queue items: %w", err)
		}
	}

	row := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check")
	var integrityResult string
	if err := row.Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}
