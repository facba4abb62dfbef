// Package flowaccess gives the CLI one interface over flow operations,
// whether a daemon is serving the API or the store is opened directly.
package flowaccess

import (
	"context"

	"flowline/internal/api"
	"flowline/internal/client"
	"flowline/internal/flow"
	"flowline/internal/queue"
)

// Access provides flow operations regardless of daemon or direct store backing.
type Access interface {
	Totals(ctx context.Context) (api.QueueTotals, error)
	Health(ctx context.Context) (*api.HealthReport, error)

	CreateQueue(ctx context.Context, req api.CreateQueueRequest) (*api.Queue, error)
	Queues(ctx context.Context, projectID int64) ([]api.Queue, error)
	Queue(ctx context.Context, id int64) (*api.Queue, error)
	UpdateQueue(ctx context.Context, id int64, req api.UpdateQueueRequest) (*api.Queue, error)
	DeleteQueue(ctx context.Context, id int64) error
	PauseQueue(ctx context.Context, id int64) (*api.Queue, error)
	ResumeQueue(ctx context.Context, id int64) (*api.Queue, error)
	QueueStats(ctx context.Context, id int64) (*api.QueueStats, error)
	QueueItems(ctx context.Context, id int64, statuses []string) ([]api.QueueItem, error)
	QueueTimeline(ctx context.Context, id int64, limit int) ([]api.FlowEvent, error)
	RetryQueue(ctx context.Context, id int64) (int, error)
	ClearQueue(ctx context.Context, id int64) (int64, error)
	NextTask(ctx context.Context, queueID int64, agentID string) (*api.QueueItem, error)

	CreateTicket(ctx context.Context, req api.CreateTicketRequest) (*api.Ticket, error)
	Ticket(ctx context.Context, id int64) (*api.Ticket, error)
	CreateTask(ctx context.Context, req api.CreateTaskRequest) (*api.Task, error)
	Task(ctx context.Context, id int64) (*api.Task, error)

	Enqueue(ctx context.Context, itemType string, itemID int64, body api.EnqueueBody) (*api.QueueItem, error)
	Dequeue(ctx context.Context, itemType string, itemID int64) (*api.QueueItem, error)
	Move(ctx context.Context, req api.MoveRequest) (*api.QueueItem, error)
	BulkMove(ctx context.Context, req api.BulkMoveRequest) (*api.BulkMoveResponse, error)
	BatchEnqueue(ctx context.Context, req api.BatchEnqueueRequest) (*api.BatchEnqueueResponse, error)
	Reorder(ctx context.Context, req api.ReorderRequest) ([]api.QueueItem, error)
	ProcessStart(ctx context.Context, req api.ProcessStartRequest) (*api.QueueItem, error)
	ProcessComplete(ctx context.Context, req api.ProcessCompleteRequest) (*api.QueueItem, error)
	ProcessFail(ctx context.Context, req api.ProcessFailRequest) (*api.QueueItem, error)
	Unqueued(ctx context.Context, projectID int64) (*api.UnqueuedResponse, error)
}

// NewClientAccess returns an Access backed by a running daemon.
func NewClientAccess(c *client.Client) Access {
	return &clientAccess{client: c}
}

// NewServiceAccess returns an Access backed by direct store access.
func NewServiceAccess(svc *flow.Service, store *queue.Store) Access {
	return &serviceAccess{svc: svc, store: store}
}

type clientAccess struct {
	client *client.Client
}

func (a *clientAccess) Totals(ctx context.Context) (api.QueueTotals, error) {
	status, err := a.client.Status(ctx)
	if err != nil {
		return api.QueueTotals{}, err
	}
	return status.Totals, nil
}

func (a *clientAccess) Health(ctx context.Context) (*api.HealthReport, error) {
	return a.client.Health(ctx)
}

func (a *clientAccess) CreateQueue(ctx context.Context, req api.CreateQueueRequest) (*api.Queue, error) {
	return a.client.CreateQueue(ctx, req)
}

func (a *clientAccess) Queues(ctx context.Context, projectID int64) ([]api.Queue, error) {
	return a.client.Queues(ctx, projectID)
}

func (a *clientAccess) Queue(ctx context.Context, id int64) (*api.Queue, error) {
	return a.client.Queue(ctx, id)
}

func (a *clientAccess) UpdateQueue(ctx context.Context, id int64, req api.UpdateQueueRequest) (*api.Queue, error) {
	return a.client.UpdateQueue(ctx, id, req)
}

func (a *clientAccess) DeleteQueue(ctx context.Context, id int64) error {
	return a.client.DeleteQueue(ctx, id)
}

func (a *clientAccess) PauseQueue(ctx context.Context, id int64) (*api.Queue, error) {
	return a.client.PauseQueue(ctx, id)
}

func (a *clientAccess) ResumeQueue(ctx context.Context, id int64) (*api.Queue, error) {
	return a.client.ResumeQueue(ctx, id)
}

func (a *clientAccess) QueueStats(ctx context.Context, id int64) (*api.QueueStats, error) {
	return a.client.QueueStats(ctx, id)
}

func (a *clientAccess) QueueItems(ctx context.Context, id int64, statuses []string) ([]api.QueueItem, error) {
	return a.client.QueueItems(ctx, id, statuses)
}

func (a *clientAccess) QueueTimeline(ctx context.Context, id int64, limit int) ([]api.FlowEvent, error) {
	return a.client.QueueTimeline(ctx, id, limit)
}

func (a *clientAccess) RetryQueue(ctx context.Context, id int64) (int, error) {
	return a.client.RetryQueue(ctx, id)
}

func (a *clientAccess) ClearQueue(ctx context.Context, id int64) (int64, error) {
	return a.client.ClearQueue(ctx, id)
}

func (a *clientAccess) NextTask(ctx context.Context, queueID int64, agentID string) (*api.QueueItem, error) {
	return a.client.NextTask(ctx, queueID, agentID)
}

func (a *clientAccess) CreateTicket(ctx context.Context, req api.CreateTicketRequest) (*api.Ticket, error) {
	return a.client.CreateTicket(ctx, req)
}

func (a *clientAccess) Ticket(ctx context.Context, id int64) (*api.Ticket, error) {
	return a.client.Ticket(ctx, id)
}

func (a *clientAccess) CreateTask(ctx context.Context, req api.CreateTaskRequest) (*api.Task, error) {
	return a.client.CreateTask(ctx, req)
}

func (a *clientAccess) Task(ctx context.Context, id int64) (*api.Task, error) {
	return a.client.Task(ctx, id)
}

func (a *clientAccess) Enqueue(ctx context.Context, itemType string, itemID int64, body api.EnqueueBody) (*api.QueueItem, error) {
	return a.client.Enqueue(ctx, itemType, itemID, body)
}

func (a *clientAccess) Dequeue(ctx context.Context, itemType string, itemID int64) (*api.QueueItem, error) {
	return a.client.Dequeue(ctx, itemType, itemID)
}

func (a *clientAccess) Move(ctx context.Context, req api.MoveRequest) (*api.QueueItem, error) {
	return a.client.Move(ctx, req)
}

func (a *clientAccess) BulkMove(ctx context.Context, req api.BulkMoveRequest) (*api.BulkMoveResponse, error) {
	return a.client.BulkMove(ctx, req)
}

func (a *clientAccess) BatchEnqueue(ctx context.Context, req api.BatchEnqueueRequest) (*api.BatchEnqueueResponse, error) {
	return a.client.BatchEnqueue(ctx, req)
}

func (a *clientAccess) Reorder(ctx context.Context, req api.ReorderRequest) ([]api.QueueItem, error) {
	return a.client.Reorder(ctx, req)
}

func (a *clientAccess) ProcessStart(ctx context.Context, req api.ProcessStartRequest) (*api.QueueItem, error) {
	return a.client.ProcessStart(ctx, req)
}

func (a *clientAccess) ProcessComplete(ctx context.Context, req api.ProcessCompleteRequest) (*api.QueueItem, error) {
	return a.client.ProcessComplete(ctx, req)
}

func (a *clientAccess) ProcessFail(ctx context.Context, req api.ProcessFailRequest) (*api.QueueItem, error) {
	return a.client.ProcessFail(ctx, req)
}

func (a *clientAccess) Unqueued(ctx context.Context, projectID int64) (*api.UnqueuedResponse, error) {
	return a.client.Unqueued(ctx, projectID)
}
