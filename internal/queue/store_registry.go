package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const ticketColumns = "id, project_id, title, " + mirrorColumns + ", created_at, updated_at"

const taskColumns = "id, ticket_id, title, " + mirrorColumns + ", created_at, updated_at"

// CreateTicket inserts a registry ticket with no queue state.
func (s *Store) CreateTicket(ctx context.Context, t *Ticket) (*Ticket, error) {
	ctx = ensureContext(ctx)
	now := formatTime(time.Now())

	res, err := s.execWithRetry(ctx,
		"INSERT INTO tickets (project_id, title, created_at, updated_at) VALUES (?, ?, ?, ?)",
		t.ProjectID, t.Title, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert ticket: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("ticket insert id: %w", err)
	}
	return s.GetTicket(ctx, id)
}

// GetTicket fetches a ticket by id. It returns (nil, nil) when no ticket exists.
func (s *Store) GetTicket(ctx context.Context, id int64) (*Ticket, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+ticketColumns+" FROM tickets WHERE id = ?", id)
	ticket, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ticket %d: %w", id, err)
	}
	return ticket, nil
}

// CreateTask inserts a registry task under an existing ticket.
func (s *Store) CreateTask(ctx context.Context, t *Task) (*Task, error) {
	ctx = ensureContext(ctx)

	parent, err := s.GetTicket(ctx, t.TicketID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, fmt.Errorf("%w: id %d", ErrTicketNotFound, t.TicketID)
	}

	now := formatTime(time.Now())
	res, err := s.execWithRetry(ctx,
		"INSERT INTO tasks (ticket_id, title, created_at, updated_at) VALUES (?, ?, ?, ?)",
		t.TicketID, t.Title, now, now)
	if err != nil {
		return nil, fmt.Errorf("insert task: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("task insert id: %w", err)
	}
	return s.GetTask(ctx, id)
}

// GetTask fetches a task by id. It returns (nil, nil) when no task exists.
func (s *Store) GetTask(ctx context.Context, id int64) (*Task, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		"SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return task, nil
}

// UnqueuedTickets lists a project's tickets that are not in any queue,
// oldest first.
func (s *Store) UnqueuedTickets(ctx context.Context, projectID int64) ([]*Ticket, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+ticketColumns+" FROM tickets WHERE project_id = ? AND queue_id IS NULL ORDER BY id",
		projectID)
	if err != nil {
		return nil, fmt.Errorf("list unqueued tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tickets: %w", err)
	}
	return tickets, nil
}

// UnqueuedTasks lists a project's tasks that are not in any queue, oldest
// first. Tasks scope to projects through their parent ticket.
func (s *Store) UnqueuedTasks(ctx context.Context, projectID int64) ([]*Task, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE ticket_id IN (SELECT id FROM tickets WHERE project_id = ?)
		  AND queue_id IS NULL
		ORDER BY id`,
		projectID)
	if err != nil {
		return nil, fmt.Errorf("list unqueued tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

// refExistsTx verifies the referenced entity has a registry row.
func refExistsTx(ctx context.Context, tx *sql.Tx, ref ItemRef) error {
	table, err := registryTable(ref.Type)
	if err != nil {
		return err
	}
	var one int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM "+table+" WHERE id = ?", ref.ID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: id %d", refNotFound(ref.Type), ref.ID)
	}
	if err != nil {
		return fmt.Errorf("check %s: %w", ref, err)
	}
	return nil
}

// mirrorFromItem projects a queue item onto the denormalized entity columns.
func mirrorFromItem(item *Item) QueueMirror {
	queuedAt := item.CreatedAt
	return QueueMirror{
		QueueID:               item.QueueID,
		Position:              item.Position,
		Status:                item.Status,
		Priority:              item.Priority,
		AgentID:               item.AgentID,
		ErrorMessage:          item.ErrorMessage,
		EstimatedProcessingMS: item.EstimatedProcessingMS,
		ActualProcessingMS:    item.ActualProcessingMS,
		QueuedAt:              &queuedAt,
		StartedAt:             item.StartedAt,
		CompletedAt:           item.CompletedAt,
	}
}

// applyMirrorTx writes the queue mirror columns for the referenced entity.
// It must run in the same transaction as the queue_items change it reflects.
func applyMirrorTx(ctx context.Context, tx *sql.Tx, ref ItemRef, m QueueMirror) error {
	table, err := registryTable(ref.Type)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE `+table+`
		SET queue_id = ?, queue_position = ?, queue_status = ?, queue_priority = ?,
		    queue_agent_id = ?, queue_error_message = ?,
		    estimated_processing_ms = ?, actual_processing_ms = ?,
		    queued_at = ?, queue_started_at = ?, queue_completed_at = ?,
		    updated_at = ?
		WHERE id = ?`,
		m.QueueID,
		nullablePosition(m.Position),
		nullableString(string(m.Status)),
		m.Priority,
		nullableString(m.AgentID),
		nullableString(m.ErrorMessage),
		nullableInt64(m.EstimatedProcessingMS),
		nullableInt64(m.ActualProcessingMS),
		nullableTime(m.QueuedAt),
		nullableTime(m.StartedAt),
		nullableTime(m.CompletedAt),
		formatTime(time.Now()),
		ref.ID,
	)
	if err != nil {
		return fmt.Errorf("mirror %s: %w", ref, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mirror %s: %w", ref, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: id %d", refNotFound(ref.Type), ref.ID)
	}
	return nil
}

// clearMirrorTx resets the referenced entity to unqueued.
func clearMirrorTx(ctx context.Context, tx *sql.Tx, ref ItemRef) error {
	table, err := registryTable(ref.Type)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE `+table+`
		SET queue_id = NULL, queue_position = NULL, queue_status = NULL, queue_priority = NULL,
		    queue_agent_id = NULL, queue_error_message = NULL,
		    estimated_processing_ms = NULL, actual_processing_ms = NULL,
		    queued_at = NULL, queue_started_at = NULL, queue_completed_at = NULL,
		    updated_at = ?
		WHERE id = ?`,
		formatTime(time.Now()), ref.ID,
	); err != nil {
		return fmt.Errorf("clear mirror %s: %w", ref, err)
	}
	return nil
}

// updateMirrorPositionTx rewrites just the mirrored position, for reorders
// where nothing else about the membership changes.
func updateMirrorPositionTx(ctx context.Context, tx *sql.Tx, ref ItemRef, position int) error {
	table, err := registryTable(ref.Type)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE "+table+" SET queue_position = ?, updated_at = ? WHERE id = ?",
		nullablePosition(position), formatTime(time.Now()), ref.ID,
	); err != nil {
		return fmt.Errorf("mirror position for %s: %w", ref, err)
	}
	return nil
}

// clearMirrorsByQueueTx resets every entity still mirroring the queue.
func clearMirrorsByQueueTx(ctx context.Context, tx *sql.Tx, queueID int64) error {
	now := formatTime(time.Now())
	for _, table := range []string{"tickets", "tasks"} {
		if _, err := tx.ExecContext(ctx, `
			UPDATE `+table+`
			SET queue_id = NULL, queue_position = NULL, queue_status = NULL, queue_priority = NULL,
			    queue_agent_id = NULL, queue_error_message = NULL,
			    estimated_processing_ms = NULL, actual_processing_ms = NULL,
			    queued_at = NULL, queue_started_at = NULL, queue_completed_at = NULL,
			    updated_at = ?
			WHERE queue_id = ?`,
			now, queueID,
		); err != nil {
			return fmt.Errorf("clear %s mirrors for queue %d: %w", table, queueID, err)
		}
	}
	return nil
}
