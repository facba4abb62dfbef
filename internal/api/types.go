package api

import "encoding/json"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Queue describes a queue in a transport-friendly format. Summary is only
// populated on listing responses.
type Queue struct {
	ID               int64          `json:"id"`
	ProjectID        int64          `json:"projectId"`
	Name             string         `json:"name"`
	Description      string         `json:"description,omitempty"`
	MaxParallelItems int            `json:"maxParallelItems"`
	IsActive         bool           `json:"isActive"`
	Summary          *QueueActivity `json:"summary,omitempty"`
	CreatedAt        string         `json:"createdAt,omitempty"`
	UpdatedAt        string         `json:"updatedAt,omitempty"`
}

// QueueActivity summarizes a queue's item counts per lifecycle state.
type QueueActivity struct {
	Queued     int `json:"queued"`
	InProgress int `json:"inProgress"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// QueueItem describes a queue entry. Position is omitted once the item has
// been claimed or finished.
type QueueItem struct {
	ID                    int64           `json:"id"`
	QueueID               int64           `json:"queueId"`
	ItemType              string          `json:"itemType"`
	ItemID                int64           `json:"itemId"`
	Status                string          `json:"status"`
	Position              int             `json:"position,omitempty"`
	Priority              int             `json:"priority"`
	Attempts              int             `json:"attempts"`
	MaxAttempts           int             `json:"maxAttempts"`
	AgentID               string          `json:"agentId,omitempty"`
	ErrorMessage          string          `json:"errorMessage,omitempty"`
	EstimatedProcessingMS int64           `json:"estimatedProcessingMs,omitempty"`
	ActualProcessingMS    int64           `json:"actualProcessingMs,omitempty"`
	Metadata              json.RawMessage `json:"metadata,omitempty"`
	StartedAt             string          `json:"startedAt,omitempty"`
	CompletedAt           string          `json:"completedAt,omitempty"`
	CreatedAt             string          `json:"createdAt,omitempty"`
	UpdatedAt             string          `json:"updatedAt,omitempty"`
}

// QueueState is the denormalized queue membership carried on tickets and
// tasks. A nil QueueState means the entity is not in any queue.
type QueueState struct {
	QueueID               int64  `json:"queueId"`
	Position              int    `json:"position,omitempty"`
	Status                string `json:"status"`
	Priority              int    `json:"priority"`
	AgentID               string `json:"agentId,omitempty"`
	ErrorMessage          string `json:"errorMessage,omitempty"`
	EstimatedProcessingMS int64  `json:"estimatedProcessingMs,omitempty"`
	ActualProcessingMS    int64  `json:"actualProcessingMs,omitempty"`
	QueuedAt              string `json:"queuedAt,omitempty"`
	StartedAt             string `json:"startedAt,omitempty"`
	CompletedAt           string `json:"completedAt,omitempty"`
}

// Ticket describes a registry ticket with its queue state, when any.
type Ticket struct {
	ID        int64       `json:"id"`
	ProjectID int64       `json:"projectId"`
	Title     string      `json:"title"`
	Queue     *QueueState `json:"queue,omitempty"`
	CreatedAt string      `json:"createdAt,omitempty"`
	UpdatedAt string      `json:"updatedAt,omitempty"`
}

// Task describes a registry task with its queue state, when any.
type Task struct {
	ID        int64       `json:"id"`
	TicketID  int64       `json:"ticketId"`
	Title     string      `json:"title"`
	Queue     *QueueState `json:"queue,omitempty"`
	CreatedAt string      `json:"createdAt,omitempty"`
	UpdatedAt string      `json:"updatedAt,omitempty"`
}

// QueueStats summarizes one queue's occupancy and throughput.
type QueueStats struct {
	QueueID          int64          `json:"queueId"`
	QueueName        string         `json:"queueName"`
	MaxParallelItems int            `json:"maxParallelItems"`
	IsActive         bool           `json:"isActive"`
	Counts           map[string]int `json:"counts"`
	Total            int            `json:"total"`
	AvgProcessingMS  int64          `json:"avgProcessingMs"`
}

// FlowEvent is one persisted timeline entry.
type FlowEvent struct {
	ID        int64  `json:"id"`
	QueueID   int64  `json:"queueId"`
	ItemType  string `json:"itemType"`
	ItemID    int64  `json:"itemId"`
	Event     string `json:"event"`
	AgentID   string `json:"agentId,omitempty"`
	Detail    string `json:"detail,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// Bulk outcome vocabulary for batch enqueue and bulk move results.
const (
	OutcomeEnqueued      = "enqueued"
	OutcomeAlreadyQueued = "already_queued"
	OutcomeNotFound      = "not_found"
	OutcomeMoved         = "moved"
	OutcomeDequeued      = "dequeued"
	OutcomeInFlight      = "in_flight"
	OutcomeFailed        = "failed"
)

// BulkResult reports one entry of a batch operation.
type BulkResult struct {
	ItemType string `json:"itemType"`
	ItemID   int64  `json:"itemId"`
	Outcome  string `json:"outcome"`
	Error    string `json:"error,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool        `json:"running"`
	PID          int         `json:"pid"`
	DatabasePath string      `json:"databasePath"`
	LockFilePath string      `json:"lockFilePath"`
	StartedAt    string      `json:"startedAt,omitempty"`
	Totals       QueueTotals `json:"totals"`
}

// QueueTotals carries item counts across every queue.
type QueueTotals struct {
	Total      int `json:"total"`
	Queued     int `json:"queued"`
	InProgress int `json:"inProgress"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
	Queues     int `json:"queues"`
}

// HealthReport captures store diagnostics for the health endpoint.
type HealthReport struct {
	DBPath           string   `json:"dbPath"`
	DatabaseExists   bool     `json:"databaseExists"`
	DatabaseReadable bool     `json:"databaseReadable"`
	SchemaVersion    string   `json:"schemaVersion,omitempty"`
	TablesPresent    bool     `json:"tablesPresent"`
	MissingTables    []string `json:"missingTables,omitempty"`
	IntegrityCheck   bool     `json:"integrityCheck"`
	TotalItems       int      `json:"totalItems"`
	Error            string   `json:"error,omitempty"`
}

// QueueListResponse wraps a collection of queues.
type QueueListResponse struct {
	Queues []Queue `json:"queues"`
}

// QueueResponse wraps a single queue.
type QueueResponse struct {
	Queue Queue `json:"queue"`
}

// ItemListResponse wraps a collection of queue items.
type ItemListResponse struct {
	Items []QueueItem `json:"items"`
}

// ItemResponse wraps a single queue item.
type ItemResponse struct {
	Item QueueItem `json:"item"`
}

// NextTaskResponse carries a claimed item, or null when nothing is claimable.
type NextTaskResponse struct {
	Item *QueueItem `json:"item"`
}

// MoveResponse carries the moved item, or null when the move dequeued it.
type MoveResponse struct {
	Item *QueueItem `json:"item"`
}

// TimelineResponse wraps a queue's event history.
type TimelineResponse struct {
	Events []FlowEvent `json:"events"`
}

// TicketResponse wraps a single ticket.
type TicketResponse struct {
	Ticket Ticket `json:"ticket"`
}

// TaskResponse wraps a single task.
type TaskResponse struct {
	Task Task `json:"task"`
}

// UnqueuedResponse lists the registry entities not held by any queue.
type UnqueuedResponse struct {
	Tickets []Ticket `json:"tickets"`
	Tasks   []Task   `json:"tasks"`
}

// BatchEnqueueResponse reports per-entry batch enqueue outcomes.
type BatchEnqueueResponse struct {
	Results  []BulkResult `json:"results"`
	Enqueued int          `json:"enqueued"`
}

// BulkMoveResponse reports per-entry bulk move outcomes.
type BulkMoveResponse struct {
	Results []BulkResult `json:"results"`
	Moved   int          `json:"moved"`
}

// RetryResponse reports how many failed items were requeued.
type RetryResponse struct {
	Retried int `json:"retried"`
}

// ClearResponse reports how many terminal rows were removed.
type ClearResponse struct {
	Cleared int64 `json:"cleared"`
}

// LogTailResponse carries daemon log lines and the offset to resume from.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// TestNotifyResponse reports the outcome of a notification test.
type TestNotifyResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
