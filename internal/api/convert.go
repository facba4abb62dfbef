package api

import (
	"encoding/json"
	"time"

	"flowline/internal/flow"
	"flowline/internal/queue"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// FromQueue converts a queue record to its API representation.
func FromQueue(q *queue.Queue) Queue {
	if q == nil {
		return Queue{}
	}
	return Queue{
		ID:               q.ID,
		ProjectID:        q.ProjectID,
		Name:             q.Name,
		Description:      q.Description,
		MaxParallelItems: q.MaxParallelItems,
		IsActive:         q.IsActive,
		CreatedAt:        formatTime(q.CreatedAt),
		UpdatedAt:        formatTime(q.UpdatedAt),
	}
}

// FromQueues converts a slice of queue records into API DTOs.
func FromQueues(queues []*queue.Queue) []Queue {
	if len(queues) == 0 {
		return nil
	}
	out := make([]Queue, 0, len(queues))
	for _, q := range queues {
		out = append(out, FromQueue(q))
	}
	return out
}

// FromQueuesWithActivity converts queue records and attaches per-queue item
// counts to each DTO. Queues without a map entry carry a zero summary.
func FromQueuesWithActivity(queues []*queue.Queue, activity map[int64]queue.QueueActivity) []Queue {
	out := FromQueues(queues)
	for i := range out {
		counts := activity[out[i].ID]
		out[i].Summary = &QueueActivity{
			Queued:     counts.Queued,
			InProgress: counts.InProgress,
			Completed:  counts.Completed,
			Failed:     counts.Failed,
		}
	}
	return out
}

// FromQueueItem converts a queue item to its API representation.
func FromQueueItem(item *queue.Item) QueueItem {
	if item == nil {
		return QueueItem{}
	}
	dto := QueueItem{
		ID:                    item.ID,
		QueueID:               item.QueueID,
		ItemType:              string(item.Ref.Type),
		ItemID:                item.Ref.ID,
		Status:                string(item.Status),
		Position:              item.Position,
		Priority:              item.Priority,
		Attempts:              item.Attempts,
		MaxAttempts:           item.MaxAttempts,
		AgentID:               item.AgentID,
		ErrorMessage:          item.ErrorMessage,
		EstimatedProcessingMS: item.EstimatedProcessingMS,
		ActualProcessingMS:    item.ActualProcessingMS,
		StartedAt:             formatTimePtr(item.StartedAt),
		CompletedAt:           formatTimePtr(item.CompletedAt),
		CreatedAt:             formatTime(item.CreatedAt),
		UpdatedAt:             formatTime(item.UpdatedAt),
	}
	if raw := item.MetadataJSON; raw != "" {
		dto.Metadata = json.RawMessage(raw)
	}
	return dto
}

// FromQueueItems converts a slice of queue items into API DTOs.
func FromQueueItems(items []*queue.Item) []QueueItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		out = append(out, FromQueueItem(item))
	}
	return out
}

func fromMirror(m queue.QueueMirror) *QueueState {
	if !m.Queued() {
		return nil
	}
	return &QueueState{
		QueueID:               m.QueueID,
		Position:              m.Position,
		Status:                string(m.Status),
		Priority:              m.Priority,
		AgentID:               m.AgentID,
		ErrorMessage:          m.ErrorMessage,
		EstimatedProcessingMS: m.EstimatedProcessingMS,
		ActualProcessingMS:    m.ActualProcessingMS,
		QueuedAt:              formatTimePtr(m.QueuedAt),
		StartedAt:             formatTimePtr(m.StartedAt),
		CompletedAt:           formatTimePtr(m.CompletedAt),
	}
}

// FromTicket converts a ticket record to its API representation.
func FromTicket(t *queue.Ticket) Ticket {
	if t == nil {
		return Ticket{}
	}
	return Ticket{
		ID:        t.ID,
		ProjectID: t.ProjectID,
		Title:     t.Title,
		Queue:     fromMirror(t.Queue),
		CreatedAt: formatTime(t.CreatedAt),
		UpdatedAt: formatTime(t.UpdatedAt),
	}
}

// FromTickets converts a slice of ticket records into API DTOs.
func FromTickets(tickets []*queue.Ticket) []Ticket {
	if len(tickets) == 0 {
		return nil
	}
	out := make([]Ticket, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, FromTicket(t))
	}
	return out
}

// FromTask converts a task record to its API representation.
func FromTask(t *queue.Task) Task {
	if t == nil {
		return Task{}
	}
	return Task{
		ID:        t.ID,
		TicketID:  t.TicketID,
		Title:     t.Title,
		Queue:     fromMirror(t.Queue),
		CreatedAt: formatTime(t.CreatedAt),
		UpdatedAt: formatTime(t.UpdatedAt),
	}
}

// FromTasks converts a slice of task records into API DTOs.
func FromTasks(tasks []*queue.Task) []Task {
	if len(tasks) == 0 {
		return nil
	}
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, FromTask(t))
	}
	return out
}

// FromStats converts queue statistics with status counts keyed by string.
func FromStats(stats *queue.QueueStats) QueueStats {
	if stats == nil {
		return QueueStats{}
	}
	counts := make(map[string]int, len(stats.Counts))
	for status, count := range stats.Counts {
		counts[string(status)] = count
	}
	return QueueStats{
		QueueID:          stats.QueueID,
		QueueName:        stats.QueueName,
		MaxParallelItems: stats.MaxParallelItems,
		IsActive:         stats.IsActive,
		Counts:           counts,
		Total:            stats.Total,
		AvgProcessingMS:  stats.AvgProcessingMS,
	}
}

// FromFlowEvent converts a timeline event to its API representation.
func FromFlowEvent(evt *queue.Event) FlowEvent {
	if evt == nil {
		return FlowEvent{}
	}
	return FlowEvent{
		ID:        evt.ID,
		QueueID:   evt.QueueID,
		ItemType:  string(evt.Ref.Type),
		ItemID:    evt.Ref.ID,
		Event:     string(evt.Kind),
		AgentID:   evt.AgentID,
		Detail:    evt.Detail,
		CreatedAt: formatTime(evt.CreatedAt),
	}
}

// FromFlowEvents converts a slice of timeline events into API DTOs.
func FromFlowEvents(events []*queue.Event) []FlowEvent {
	if len(events) == 0 {
		return nil
	}
	out := make([]FlowEvent, 0, len(events))
	for _, evt := range events {
		out = append(out, FromFlowEvent(evt))
	}
	return out
}

// FromHealth converts database diagnostics into the health payload.
func FromHealth(h *queue.DatabaseHealth) HealthReport {
	if h == nil {
		return HealthReport{}
	}
	return HealthReport{
		DBPath:           h.DBPath,
		DatabaseExists:   h.DatabaseExists,
		DatabaseReadable: h.DatabaseReadable,
		SchemaVersion:    h.SchemaVersion,
		TablesPresent:    h.TablesPresent,
		MissingTables:    h.MissingTables,
		IntegrityCheck:   h.IntegrityCheck,
		TotalItems:       h.TotalItems,
		Error:            h.Error,
	}
}

// FromHealthSummary converts aggregate counts into daemon status totals.
func FromHealthSummary(s queue.HealthSummary) QueueTotals {
	return QueueTotals{
		Total:      s.Total,
		Queued:     s.Queued,
		InProgress: s.InProgress,
		Completed:  s.Completed,
		Failed:     s.Failed,
		Queues:     s.Queues,
	}
}

// OutcomeForError classifies a failed bulk entry into the outcome vocabulary.
func OutcomeForError(err error) string {
	switch flow.CodeOf(err) {
	case flow.CodeAlreadyQueued:
		return OutcomeAlreadyQueued
	case flow.CodeNotFound:
		return OutcomeNotFound
	case flow.CodeItemInFlight:
		return OutcomeInFlight
	default:
		return OutcomeFailed
	}
}

// FromEnqueueOutcomes converts batch enqueue outcomes and counts successes.
func FromEnqueueOutcomes(outcomes []flow.EnqueueOutcome) ([]BulkResult, int) {
	results := make([]BulkResult, 0, len(outcomes))
	enqueued := 0
	for _, outcome := range outcomes {
		result := BulkResult{
			ItemType: string(outcome.Ref.Type),
			ItemID:   outcome.Ref.ID,
		}
		if outcome.Err != nil {
			result.Outcome = OutcomeForError(outcome.Err)
			result.Error = outcome.Err.Error()
		} else {
			result.Outcome = OutcomeEnqueued
			enqueued++
		}
		results = append(results, result)
	}
	return results, enqueued
}

// FromMoveOutcomes converts bulk move outcomes and counts successes. Entries
// without a target queue report as dequeued.
func FromMoveOutcomes(outcomes []flow.MoveOutcome) ([]BulkResult, int) {
	results := make([]BulkResult, 0, len(outcomes))
	moved := 0
	for _, outcome := range outcomes {
		result := BulkResult{
			ItemType: string(outcome.Ref.Type),
			ItemID:   outcome.Ref.ID,
		}
		switch {
		case outcome.Err != nil:
			result.Outcome = OutcomeForError(outcome.Err)
			result.Error = outcome.Err.Error()
		case outcome.Item == nil:
			result.Outcome = OutcomeDequeued
			moved++
		default:
			result.Outcome = OutcomeMoved
			moved++
		}
		results = append(results, result)
	}
	return results, moved
}
