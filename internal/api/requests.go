package api

import (
	"encoding/json"

	"flowline/internal/queue"
)

// ItemRefPayload names a ticket or task in a request body.
type ItemRefPayload struct {
	ItemType string `json:"itemType"`
	ItemID   int64  `json:"itemId"`
}

// Ref converts the payload into the domain reference. Validation happens in
// the flow layer.
func (p ItemRefPayload) Ref() queue.ItemRef {
	return queue.ItemRef{Type: queue.ItemType(p.ItemType), ID: p.ItemID}
}

// RefPayload builds the wire form of a domain reference.
func RefPayload(ref queue.ItemRef) ItemRefPayload {
	return ItemRefPayload{ItemType: string(ref.Type), ItemID: ref.ID}
}

// CreateQueueRequest is the body of POST /api/queues.
type CreateQueueRequest struct {
	ProjectID        int64  `json:"projectId"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	MaxParallelItems int    `json:"maxParallelItems"`
}

// UpdateQueueRequest is the body of PATCH /api/queues/{id}. Nil fields leave
// the current value in place.
type UpdateQueueRequest struct {
	Name             *string `json:"name"`
	Description      *string `json:"description"`
	MaxParallelItems *int    `json:"maxParallelItems"`
	IsActive         *bool   `json:"isActive"`
}

// CreateTicketRequest is the body of POST /api/tickets.
type CreateTicketRequest struct {
	ProjectID int64  `json:"projectId"`
	Title     string `json:"title"`
}

// CreateTaskRequest is the body of POST /api/tasks.
type CreateTaskRequest struct {
	TicketID int64  `json:"ticketId"`
	Title    string `json:"title"`
}

// EnqueueBody is the body of POST /api/tickets/{id}/enqueue and the task
// equivalent. Zero values fall through to the store defaults.
type EnqueueBody struct {
	QueueID               int64           `json:"queueId"`
	Priority              int             `json:"priority"`
	MaxAttempts           int             `json:"maxAttempts"`
	EstimatedProcessingMS int64           `json:"estimatedProcessingMs"`
	Metadata              json.RawMessage `json:"metadata"`
}

// Options converts the body into domain enqueue options.
func (b EnqueueBody) Options() queue.EnqueueOptions {
	return queue.EnqueueOptions{
		Priority:              b.Priority,
		MaxAttempts:           b.MaxAttempts,
		EstimatedProcessingMS: b.EstimatedProcessingMS,
		MetadataJSON:          string(b.Metadata),
	}
}

// BatchEnqueueEntry is one item of a batch enqueue request.
type BatchEnqueueEntry struct {
	ItemType              string          `json:"itemType"`
	ItemID                int64           `json:"itemId"`
	Priority              int             `json:"priority"`
	MaxAttempts           int             `json:"maxAttempts"`
	EstimatedProcessingMS int64           `json:"estimatedProcessingMs"`
	Metadata              json.RawMessage `json:"metadata"`
}

// BatchEnqueueRequest is the body of POST /api/flow/batch-enqueue.
type BatchEnqueueRequest struct {
	QueueID int64               `json:"queueId"`
	Items   []BatchEnqueueEntry `json:"items"`
}

// MoveRequest is the body of POST /api/flow/move. A null targetQueueId
// dequeues the item.
type MoveRequest struct {
	ItemType      string `json:"itemType"`
	ItemID        int64  `json:"itemId"`
	TargetQueueID *int64 `json:"targetQueueId"`
}

// Ref converts the move target into the domain reference.
func (r MoveRequest) Ref() queue.ItemRef {
	return queue.ItemRef{Type: queue.ItemType(r.ItemType), ID: r.ItemID}
}

// Target resolves the optional queue id; zero means dequeue.
func (r MoveRequest) Target() int64 {
	if r.TargetQueueID == nil {
		return 0
	}
	return *r.TargetQueueID
}

// BulkMoveRequest is the body of POST /api/flow/bulk-move.
type BulkMoveRequest struct {
	Items         []ItemRefPayload `json:"items"`
	TargetQueueID *int64           `json:"targetQueueId"`
}

// Target resolves the optional queue id; zero means dequeue.
func (r BulkMoveRequest) Target() int64 {
	if r.TargetQueueID == nil {
		return 0
	}
	return *r.TargetQueueID
}

// ReorderRequest is the body of POST /api/flow/reorder. OrderedItemIDs must
// name every queued item of the queue exactly once.
type ReorderRequest struct {
	QueueID        int64   `json:"queueId"`
	OrderedItemIDs []int64 `json:"orderedItemIds"`
}

// NextTaskRequest is the body of POST /api/queues/{id}/next-task.
type NextTaskRequest struct {
	AgentID string `json:"agentId"`
}

// ProcessStartRequest is the body of POST /api/flow/process/start.
type ProcessStartRequest struct {
	ItemType string `json:"itemType"`
	ItemID   int64  `json:"itemId"`
	AgentID  string `json:"agentId"`
}

// Ref converts the payload into the domain reference.
func (r ProcessStartRequest) Ref() queue.ItemRef {
	return queue.ItemRef{Type: queue.ItemType(r.ItemType), ID: r.ItemID}
}

// ProcessCompleteRequest is the body of POST /api/flow/process/complete.
type ProcessCompleteRequest struct {
	ItemType        string `json:"itemType"`
	ItemID          int64  `json:"itemId"`
	CompletionNotes string `json:"completionNotes"`
}

// Ref converts the payload into the domain reference.
func (r ProcessCompleteRequest) Ref() queue.ItemRef {
	return queue.ItemRef{Type: queue.ItemType(r.ItemType), ID: r.ItemID}
}

// ProcessFailRequest is the body of POST /api/flow/process/fail.
type ProcessFailRequest struct {
	ItemType     string `json:"itemType"`
	ItemID       int64  `json:"itemId"`
	ErrorMessage string `json:"errorMessage"`
}

// Ref converts the payload into the domain reference.
func (r ProcessFailRequest) Ref() queue.ItemRef {
	return queue.ItemRef{Type: queue.ItemType(r.ItemType), ID: r.ItemID}
}
