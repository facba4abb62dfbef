package client

import (
	"context"
	"fmt"
	"net/http"

	"flowline/internal/api"
)

// collectionFor maps an item type to its API collection path segment.
func collectionFor(itemType string) (string, error) {
	switch itemType {
	case "ticket":
		return "tickets", nil
	case "task":
		return "tasks", nil
	default:
		return "", fmt.Errorf("unknown item type %q", itemType)
	}
}

// CreateTicket registers a new ticket.
func (c *Client) CreateTicket(ctx context.Context, req api.CreateTicketRequest) (*api.Ticket, error) {
	var resp api.TicketResponse
	if err := c.do(ctx, http.MethodPost, "/api/tickets", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Ticket, nil
}

// Ticket fetches a ticket with its queue placement.
func (c *Client) Ticket(ctx context.Context, id int64) (*api.Ticket, error) {
	var resp api.TicketResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/tickets/%d", id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Ticket, nil
}

// CreateTask registers a new task under a ticket.
func (c *Client) CreateTask(ctx context.Context, req api.CreateTaskRequest) (*api.Task, error) {
	var resp api.TaskResponse
	if err := c.do(ctx, http.MethodPost, "/api/tasks", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Task, nil
}

// Task fetches a task with its queue placement.
func (c *Client) Task(ctx context.Context, id int64) (*api.Task, error) {
	var resp api.TaskResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/tasks/%d", id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Task, nil
}

// Enqueue places a ticket or task on a queue.
func (c *Client) Enqueue(ctx context.Context, itemType string, itemID int64, body api.EnqueueBody) (*api.QueueItem, error) {
	collection, err := collectionFor(itemType)
	if err != nil {
		return nil, err
	}
	var resp api.ItemResponse
	path := fmt.Sprintf("/api/%s/%d/enqueue", collection, itemID)
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, err
	}
	return &resp.Item, nil
}

// Dequeue removes a ticket or task from its queue.
func (c *Client) Dequeue(ctx context.Context, itemType string, itemID int64) (*api.QueueItem, error) {
	collection, err := collectionFor(itemType)
	if err != nil {
		return nil, err
	}
	var resp api.ItemResponse
	path := fmt.Sprintf("/api/%s/%d/dequeue", collection, itemID)
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Item, nil
}

// Move transfers an item to another queue's tail, or dequeues it when the
// request has no target. A nil item means the move was a dequeue.
func (c *Client) Move(ctx context.Context, req api.MoveRequest) (*api.QueueItem, error) {
	var resp api.MoveResponse
	if err := c.do(ctx, http.MethodPost, "/api/flow/move", req, &resp); err != nil {
		return nil, err
	}
	return resp.Item, nil
}

// BulkMove transfers several items, reporting a per-entry outcome.
func (c *Client) BulkMove(ctx context.Context, req api.BulkMoveRequest) (*api.BulkMoveResponse, error) {
	var resp api.BulkMoveResponse
	if err := c.do(ctx, http.MethodPost, "/api/flow/bulk-move", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BatchEnqueue places several items on one queue, reporting a per-entry
// outcome.
func (c *Client) BatchEnqueue(ctx context.Context, req api.BatchEnqueueRequest) (*api.BatchEnqueueResponse, error) {
	var resp api.BatchEnqueueResponse
	if err := c.do(ctx, http.MethodPost, "/api/flow/batch-enqueue", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Reorder rewrites a queue's pending order and returns the new ordering.
func (c *Client) Reorder(ctx context.Context, req api.ReorderRequest) ([]api.QueueItem, error) {
	var resp api.ItemListResponse
	if err := c.do(ctx, http.MethodPost, "/api/flow/reorder", req, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// ProcessStart confirms the claiming agent began work.
func (c *Client) ProcessStart(ctx context.Context, req api.ProcessStartRequest) (*api.QueueItem, error) {
	var resp api.ItemResponse
	if err := c.do(ctx, http.MethodPost, "/api/flow/process/start", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Item, nil
}

// ProcessComplete finishes an in-progress item.
func (c *Client) ProcessComplete(ctx context.Context, req api.ProcessCompleteRequest) (*api.QueueItem, error) {
	var resp api.ItemResponse
	if err := c.do(ctx, http.MethodPost, "/api/flow/process/complete", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Item, nil
}

// ProcessFail records a failure, requeueing while attempts remain.
func (c *Client) ProcessFail(ctx context.Context, req api.ProcessFailRequest) (*api.QueueItem, error) {
	var resp api.ItemResponse
	if err := c.do(ctx, http.MethodPost, "/api/flow/process/fail", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Item, nil
}

// Unqueued lists the project's tickets and tasks not held by any queue.
func (c *Client) Unqueued(ctx context.Context, projectID int64) (*api.UnqueuedResponse, error) {
	var resp api.UnqueuedResponse
	path := fmt.Sprintf("/api/projects/%d/flow/unqueued", projectID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
