package queue

import (
	"fmt"
	"time"
)

// Status tracks a queue item through its lifecycle.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusQueued,
	StatusInProgress,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the statuses in lifecycle order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus validates a raw string against the known statuses.
func ParseStatus(raw string) (Status, bool) {
	status := Status(raw)
	_, ok := statusSet[status]
	return status, ok
}

// Terminal reports whether the status ends an item's run through a queue.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// statusTransitions lists the legal lifecycle moves. failed -> queued is the
// administrative retry path; queued -> in_progress only ever happens through
// ClaimNext.
var statusTransitions = map[Status]map[Status]struct{}{
	StatusQueued: {
		StatusInProgress: {},
	},
	StatusInProgress: {
		StatusCompleted: {},
		StatusFailed:    {},
		StatusQueued:    {},
	},
	StatusFailed: {
		StatusQueued: {},
	},
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func CanTransition(from, to Status) bool {
	next, ok := statusTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// ValidateTransition returns a descriptive error for illegal moves.
func ValidateTransition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("illegal status transition %s -> %s", from, to)
	}
	return nil
}

// Queue is a project-scoped ordered collection of work items.
type Queue struct {
	ID               int64
	ProjectID        int64
	Name             string
	Description      string
	MaxParallelItems int
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Item is one entry in a queue. Position is only meaningful while the item
// is queued; it is zero (stored NULL) once claimed or terminal. Attempts
// counts claims, so a freshly enqueued item has Attempts 0 and an item being
// processed for the first time has Attempts 1.
type Item struct {
	ID                    int64
	QueueID               int64
	Ref                   ItemRef
	Priority              int
	Status                Status
	Position              int
	AgentID               string
	Attempts              int
	MaxAttempts           int
	ErrorMessage          string
	EstimatedProcessingMS int64
	ActualProcessingMS    int64
	MetadataJSON          string
	StartedAt             *time.Time
	CompletedAt           *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// RetryBudgetLeft reports whether a failure should requeue rather than end
// the item.
func (i *Item) RetryBudgetLeft() bool {
	return i.Attempts < i.MaxAttempts
}

// QueueMirror is the denormalized queue state carried on tickets and tasks
// so entity reads never join against queue_items. QueueID 0 means the entity
// is not in any queue and every other field is meaningless.
type QueueMirror struct {
	QueueID               int64
	Position              int
	Status                Status
	Priority              int
	AgentID               string
	ErrorMessage          string
	EstimatedProcessingMS int64
	ActualProcessingMS    int64
	QueuedAt              *time.Time
	StartedAt             *time.Time
	CompletedAt           *time.Time
}

// Queued reports whether the mirror points at a queue.
func (m QueueMirror) Queued() bool {
	return m.QueueID != 0
}

// Ticket is a registry row that queue items may reference.
type Ticket struct {
	ID        int64
	ProjectID int64
	Title     string
	Queue     QueueMirror
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Task is a registry row belonging to a ticket. Tasks queue independently
// of their parent ticket.
type Task struct {
	ID        int64
	TicketID  int64
	Title     string
	Queue     QueueMirror
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EnqueueOptions carries the optional knobs for placing an item in a queue.
// MaxAttempts 0 means use the store default.
type EnqueueOptions struct {
	Priority              int
	MaxAttempts           int
	EstimatedProcessingMS int64
	MetadataJSON          string
}

// QueueStats aggregates one queue's item counts. AvgProcessingMS averages
// the recorded processing time of completed items.
type QueueStats struct {
	QueueID          int64
	QueueName        string
	MaxParallelItems int
	IsActive         bool
	Counts           map[Status]int
	Total            int
	AvgProcessingMS  int64
}

// QueueActivity counts one queue's items per lifecycle state. Listings
// attach it so operators see occupancy without a per-queue stats call.
type QueueActivity struct {
	Queued     int
	InProgress int
	Completed  int
	Failed     int
}

// HealthSummary describes aggregated item counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Queued     int
	InProgress int
	Completed  int
	Failed     int
	Queues     int
}

// DatabaseHealth captures the results of a flow database inspection.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TablesPresent    bool
	MissingTables    []string
	IntegrityCheck   bool
	TotalItems       int
	Error            string
}

// EventKind labels a flow event row.
type EventKind string

const (
	EventEnqueued  EventKind = "enqueued"
	EventClaimed   EventKind = "claimed"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
	EventRequeued  EventKind = "requeued"
	EventDequeued  EventKind = "dequeued"
)

// Event is one append-only timeline entry for a queue.
type Event struct {
	ID        int64
	QueueID   int64
	Ref       ItemRef
	Kind      EventKind
	AgentID   string
	Detail    string
	CreatedAt time.Time
}
