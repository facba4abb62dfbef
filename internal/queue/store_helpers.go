package queue

import (
	"database/sql"
	"errors"
	"time"
)

const queueColumns = "id, project_id, name, description, max_parallel_items, is_active, created_at, updated_at"

const itemColumns = "id, queue_id, item_type, item_id, priority, status, position, agent_id, attempts, max_attempts, error_message, estimated_processing_ms, actual_processing_ms, metadata_json, started_at, completed_at, created_at, updated_at"

const mirrorColumns = "queue_id, queue_position, queue_status, queue_priority, queue_agent_id, queue_error_message, estimated_processing_ms, actual_processing_ms, queued_at, queue_started_at, queue_completed_at"

const eventColumns = "id, queue_id, item_type, item_id, event, agent_id, detail, created_at"

type rowScanner interface{ Scan(dest ...any) error }

func scanQueue(scanner rowScanner) (*Queue, error) {
	var (
		id          int64
		projectID   int64
		name        string
		description sql.NullString
		maxParallel int
		isActive    sql.NullInt64
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&projectID,
		&name,
		&description,
		&maxParallel,
		&isActive,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	q := &Queue{
		ID:               id,
		ProjectID:        projectID,
		Name:             name,
		Description:      description.String,
		MaxParallelItems: maxParallel,
	}
	if isActive.Valid {
		q.IsActive = isActive.Int64 != 0
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		q.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		q.UpdatedAt = updated
	}
	return q, nil
}

func scanItem(scanner rowScanner) (*Item, error) {
	var (
		id           int64
		queueID      int64
		itemType     string
		itemID       int64
		priority     int
		statusStr    string
		position     sql.NullInt64
		agentID      sql.NullString
		attempts     int
		maxAttempts  int
		errorMessage sql.NullString
		estimatedMS  sql.NullInt64
		actualMS     sql.NullInt64
		metadata     sql.NullString
		startedRaw   sql.NullString
		completedRaw sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&queueID,
		&itemType,
		&itemID,
		&priority,
		&statusStr,
		&position,
		&agentID,
		&attempts,
		&maxAttempts,
		&errorMessage,
		&estimatedMS,
		&actualMS,
		&metadata,
		&startedRaw,
		&completedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:                    id,
		QueueID:               queueID,
		Ref:                   ItemRef{Type: ItemType(itemType), ID: itemID},
		Priority:              priority,
		Status:                Status(statusStr),
		Position:              int(position.Int64),
		AgentID:               agentID.String,
		Attempts:              attempts,
		MaxAttempts:           maxAttempts,
		ErrorMessage:          errorMessage.String,
		EstimatedProcessingMS: estimatedMS.Int64,
		ActualProcessingMS:    actualMS.Int64,
		MetadataJSON:          metadata.String,
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			item.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			item.CompletedAt = &completed
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}

func scanMirror(
	queueID sql.NullInt64,
	position sql.NullInt64,
	statusStr sql.NullString,
	priority sql.NullInt64,
	agentID sql.NullString,
	errorMessage sql.NullString,
	estimatedMS sql.NullInt64,
	actualMS sql.NullInt64,
	queuedRaw sql.NullString,
	startedRaw sql.NullString,
	completedRaw sql.NullString,
) QueueMirror {
	m := QueueMirror{
		QueueID:               queueID.Int64,
		Position:              int(position.Int64),
		Status:                Status(statusStr.String),
		Priority:              int(priority.Int64),
		AgentID:               agentID.String,
		ErrorMessage:          errorMessage.String,
		EstimatedProcessingMS: estimatedMS.Int64,
		ActualProcessingMS:    actualMS.Int64,
	}
	if queuedRaw.Valid {
		if queued, err := parseTimeString(queuedRaw.String); err == nil {
			m.QueuedAt = &queued
		}
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			m.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			m.CompletedAt = &completed
		}
	}
	return m
}

func scanTicket(scanner rowScanner) (*Ticket, error) {
	var (
		id           int64
		projectID    int64
		title        string
		queueID      sql.NullInt64
		position     sql.NullInt64
		statusStr    sql.NullString
		priority     sql.NullInt64
		agentID      sql.NullString
		errorMessage sql.NullString
		estimatedMS  sql.NullInt64
		actualMS     sql.NullInt64
		queuedRaw    sql.NullString
		startedRaw   sql.NullString
		completedRaw sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&projectID,
		&title,
		&queueID,
		&position,
		&statusStr,
		&priority,
		&agentID,
		&errorMessage,
		&estimatedMS,
		&actualMS,
		&queuedRaw,
		&startedRaw,
		&completedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	ticket := &Ticket{
		ID:        id,
		ProjectID: projectID,
		Title:     title,
		Queue: scanMirror(queueID, position, statusStr, priority, agentID,
			errorMessage, estimatedMS, actualMS, queuedRaw, startedRaw, completedRaw),
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		ticket.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		ticket.UpdatedAt = updated
	}
	return ticket, nil
}

func scanTask(scanner rowScanner) (*Task, error) {
	var (
		id           int64
		ticketID     int64
		title        string
		queueID      sql.NullInt64
		position     sql.NullInt64
		statusStr    sql.NullString
		priority     sql.NullInt64
		agentID      sql.NullString
		errorMessage sql.NullString
		estimatedMS  sql.NullInt64
		actualMS     sql.NullInt64
		queuedRaw    sql.NullString
		startedRaw   sql.NullString
		completedRaw sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&ticketID,
		&title,
		&queueID,
		&position,
		&statusStr,
		&priority,
		&agentID,
		&errorMessage,
		&estimatedMS,
		&actualMS,
		&queuedRaw,
		&startedRaw,
		&completedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	task := &Task{
		ID:       id,
		TicketID: ticketID,
		Title:    title,
		Queue: scanMirror(queueID, position, statusStr, priority, agentID,
			errorMessage, estimatedMS, actualMS, queuedRaw, startedRaw, completedRaw),
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		task.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		task.UpdatedAt = updated
	}
	return task, nil
}

func scanEvent(scanner rowScanner) (*Event, error) {
	var (
		id         int64
		queueID    int64
		itemType   string
		itemID     int64
		event      string
		agentID    sql.NullString
		detail     sql.NullString
		createdRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&queueID,
		&itemType,
		&itemID,
		&event,
		&agentID,
		&detail,
		&createdRaw,
	); err != nil {
		return nil, err
	}

	out := &Event{
		ID:      id,
		QueueID: queueID,
		Ref:     ItemRef{Type: ItemType(itemType), ID: itemID},
		Kind:    EventKind(event),
		AgentID: agentID.String,
		Detail:  detail.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		out.CreatedAt = created
	}
	return out, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	v := value.UTC().Format(time.RFC3339Nano)
	return v
}

// nullablePosition stores 0 as NULL so the partial unique index on
// (queue_id, position) never sees retired positions.
func nullablePosition(value int) any {
	if value <= 0 {
		return nil
	}
	return value
}

func nullableInt64(value int64) any {
	if value <= 0 {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func formatTime(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

func statusArgs(statuses []Status) []any {
	args := make([]any, 0, len(statuses))
	for _, status := range statuses {
		args = append(args, string(status))
	}
	return args
}
