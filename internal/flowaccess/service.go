package flowaccess

import (
	"context"

	"flowline/internal/api"
	"flowline/internal/flow"
	"flowline/internal/queue"
)

type serviceAccess struct {
	svc   *flow.Service
	store *queue.Store
}

func (a *serviceAccess) Totals(ctx context.Context) (api.QueueTotals, error) {
	summary, err := a.store.Health(ctx)
	if err != nil {
		return api.QueueTotals{}, err
	}
	return api.FromHealthSummary(summary), nil
}

func (a *serviceAccess) Health(ctx context.Context) (*api.HealthReport, error) {
	health, err := a.store.CheckHealth(ctx)
	if err != nil {
		return nil, err
	}
	report := api.FromHealth(&health)
	return &report, nil
}

func (a *serviceAccess) CreateQueue(ctx context.Context, req api.CreateQueueRequest) (*api.Queue, error) {
	q, err := a.svc.CreateQueue(ctx, req.ProjectID, req.Name, req.Description, req.MaxParallelItems)
	if err != nil {
		return nil, err
	}
	dto := api.FromQueue(q)
	return &dto, nil
}

func (a *serviceAccess) Queues(ctx context.Context, projectID int64) ([]api.Queue, error) {
	queues, err := a.svc.ListQueues(ctx, projectID)
	if err != nil {
		return nil, err
	}
	activity, err := a.svc.QueueActivity(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return api.FromQueuesWithActivity(queues, activity), nil
}

func (a *serviceAccess) Queue(ctx context.Context, id int64) (*api.Queue, error) {
	q, err := a.svc.GetQueue(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := api.FromQueue(q)
	return &dto, nil
}

func (a *serviceAccess) UpdateQueue(ctx context.Context, id int64, req api.UpdateQueueRequest) (*api.Queue, error) {
	q, err := a.svc.UpdateQueue(ctx, id, flow.QueueUpdate{
		Name:             req.Name,
		Description:      req.Description,
		MaxParallelItems: req.MaxParallelItems,
	})
	if err != nil {
		return nil, err
	}
	if req.IsActive != nil {
		if *req.IsActive {
			q, err = a.svc.Resume(ctx, id)
		} else {
			q, err = a.svc.Pause(ctx, id)
		}
		if err != nil {
			return nil, err
		}
	}
	dto := api.FromQueue(q)
	return &dto, nil
}

func (a *serviceAccess) DeleteQueue(ctx context.Context, id int64) error {
	return a.svc.DeleteQueue(ctx, id)
}

func (a *serviceAccess) PauseQueue(ctx context.Context, id int64) (*api.Queue, error) {
	q, err := a.svc.Pause(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := api.FromQueue(q)
	return &dto, nil
}

func (a *serviceAccess) ResumeQueue(ctx context.Context, id int64) (*api.Queue, error) {
	q, err := a.svc.Resume(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := api.FromQueue(q)
	return &dto, nil
}

func (a *serviceAccess) QueueStats(ctx context.Context, id int64) (*api.QueueStats, error) {
	stats, err := a.svc.Stats(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := api.FromStats(stats)
	return &dto, nil
}

func (a *serviceAccess) QueueItems(ctx context.Context, id int64, statuses []string) ([]api.QueueItem, error) {
	var filters []queue.Status
	for _, s := range statuses {
		parsed, ok := queue.ParseStatus(s)
		if !ok {
			return nil, flow.Errorf(flow.CodeValidation, "invalid status filter: %s", s)
		}
		filters = append(filters, parsed)
	}
	items, err := a.svc.Items(ctx, id, filters...)
	if err != nil {
		return nil, err
	}
	return api.FromQueueItems(items), nil
}

func (a *serviceAccess) QueueTimeline(ctx context.Context, id int64, limit int) ([]api.FlowEvent, error) {
	events, err := a.svc.Timeline(ctx, id, limit)
	if err != nil {
		return nil, err
	}
	return api.FromFlowEvents(events), nil
}

func (a *serviceAccess) RetryQueue(ctx context.Context, id int64) (int, error) {
	return a.svc.RetryFailed(ctx, id)
}

func (a *serviceAccess) ClearQueue(ctx context.Context, id int64) (int64, error) {
	return a.svc.ClearTerminal(ctx, id)
}

func (a *serviceAccess) NextTask(ctx context.Context, queueID int64, agentID string) (*api.QueueItem, error) {
	item, err := a.svc.NextTask(ctx, queueID, agentID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}
	dto := api.FromQueueItem(item)
	return &dto, nil
}

func (a *serviceAccess) CreateTicket(ctx context.Context, req api.CreateTicketRequest) (*api.Ticket, error) {
	ticket, err := a.svc.CreateTicket(ctx, req.ProjectID, req.Title)
	if err != nil {
		return nil, err
	}
	dto := api.FromTicket(ticket)
	return &dto, nil
}

func (a *serviceAccess) Ticket(ctx context.Context, id int64) (*api.Ticket, error) {
	ticket, err := a.svc.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := api.FromTicket(ticket)
	return &dto, nil
}

func (a *serviceAccess) CreateTask(ctx context.Context, req api.CreateTaskRequest) (*api.Task, error) {
	task, err := a.svc.CreateTask(ctx, req.TicketID, req.Title)
	if err != nil {
		return nil, err
	}
	dto := api.FromTask(task)
	return &dto, nil
}

func (a *serviceAccess) Task(ctx context.Context, id int64) (*api.Task, error) {
	task, err := a.svc.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := api.FromTask(task)
	return &dto, nil
}

func (a *serviceAccess) Enqueue(ctx context.Context, itemType string, itemID int64, body api.EnqueueBody) (*api.QueueItem, error) {
	ref, err := parseRef(itemType, itemID)
	if err != nil {
		return nil, err
	}
	item, err := a.svc.Enqueue(ctx, body.QueueID, ref, body.Options())
	if err != nil {
		return nil, err
	}
	dto := api.FromQueueItem(item)
	return &dto, nil
}

func (a *serviceAccess) Dequeue(ctx context.Context, itemType string, itemID int64) (*api.QueueItem, error) {
	ref, err := parseRef(itemType, itemID)
	if err != nil {
		return nil, err
	}
	item, err := a.svc.Dequeue(ctx, ref, false)
	if err != nil {
		return nil, err
	}
	dto := api.FromQueueItem(item)
	return &dto, nil
}

func (a *serviceAccess) Move(ctx context.Context, req api.MoveRequest) (*api.QueueItem, error) {
	item, err := a.svc.Move(ctx, req.Ref(), req.Target())
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, nil
	}
	dto := api.FromQueueItem(item)
	return &dto, nil
}

func (a *serviceAccess) BulkMove(ctx context.Context, req api.BulkMoveRequest) (*api.BulkMoveResponse, error) {
	refs := make([]queue.ItemRef, 0, len(req.Items))
	for _, item := range req.Items {
		refs = append(refs, item.Ref())
	}
	outcomes, err := a.svc.BulkMove(ctx, refs, req.Target())
	if err != nil {
		return nil, err
	}
	results, moved := api.FromMoveOutcomes(outcomes)
	return &api.BulkMoveResponse{Results: results, Moved: moved}, nil
}

func (a *serviceAccess) BatchEnqueue(ctx context.Context, req api.BatchEnqueueRequest) (*api.BatchEnqueueResponse, error) {
	entries := make([]flow.EnqueueRequest, 0, len(req.Items))
	for _, item := range req.Items {
		entries = append(entries, flow.EnqueueRequest{
			Ref: queue.ItemRef{Type: queue.ItemType(item.ItemType), ID: item.ItemID},
			Opts: queue.EnqueueOptions{
				Priority:              item.Priority,
				MaxAttempts:           item.MaxAttempts,
				EstimatedProcessingMS: item.EstimatedProcessingMS,
				MetadataJSON:          string(item.Metadata),
			},
		})
	}
	outcomes, err := a.svc.BatchEnqueue(ctx, req.QueueID, entries)
	if err != nil {
		return nil, err
	}
	results, enqueued := api.FromEnqueueOutcomes(outcomes)
	return &api.BatchEnqueueResponse{Results: results, Enqueued: enqueued}, nil
}

func (a *serviceAccess) Reorder(ctx context.Context, req api.ReorderRequest) ([]api.QueueItem, error) {
	items, err := a.svc.Reorder(ctx, req.QueueID, req.OrderedItemIDs)
	if err != nil {
		return nil, err
	}
	return api.FromQueueItems(items), nil
}

func (a *serviceAccess) ProcessStart(ctx context.Context, req api.ProcessStartRequest) (*api.QueueItem, error) {
	item, err := a.svc.ProcessStart(ctx, req.Ref(), req.AgentID)
	if err != nil {
		return nil, err
	}
	dto := api.FromQueueItem(item)
	return &dto, nil
}

func (a *serviceAccess) ProcessComplete(ctx context.Context, req api.ProcessCompleteRequest) (*api.QueueItem, error) {
	item, err := a.svc.ProcessComplete(ctx, req.Ref(), req.CompletionNotes)
	if err != nil {
		return nil, err
	}
	dto := api.FromQueueItem(item)
	return &dto, nil
}

func (a *serviceAccess) ProcessFail(ctx context.Context, req api.ProcessFailRequest) (*api.QueueItem, error) {
	item, err := a.svc.ProcessFail(ctx, req.Ref(), req.ErrorMessage)
	if err != nil {
		return nil, err
	}
	dto := api.FromQueueItem(item)
	return &dto, nil
}

func (a *serviceAccess) Unqueued(ctx context.Context, projectID int64) (*api.UnqueuedResponse, error) {
	unqueued, err := a.svc.Unqueued(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &api.UnqueuedResponse{
		Tickets: api.FromTickets(unqueued.Tickets),
		Tasks:   api.FromTasks(unqueued.Tasks),
	}, nil
}

func parseRef(itemType string, itemID int64) (queue.ItemRef, error) {
	kind, ok := queue.ParseItemType(itemType)
	if !ok {
		return queue.ItemRef{}, flow.Errorf(flow.CodeValidation, "unknown item type %q", itemType)
	}
	return queue.ItemRef{Type: kind, ID: itemID}, nil
}
