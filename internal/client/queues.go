package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"flowline/internal/api"
)

// CreateQueue registers a new queue.
func (c *Client) CreateQueue(ctx context.Context, req api.CreateQueueRequest) (*api.Queue, error) {
	var resp api.QueueResponse
	if err := c.do(ctx, http.MethodPost, "/api/queues", req, &resp); err != nil {
		return nil, err
	}
	return &resp.Queue, nil
}

// Queues lists queues, across all projects when projectID is zero.
func (c *Client) Queues(ctx context.Context, projectID int64) ([]api.Queue, error) {
	path := "/api/queues"
	if projectID > 0 {
		path += "?project=" + strconv.FormatInt(projectID, 10)
	}
	var resp api.QueueListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Queues, nil
}

// Queue fetches a single queue.
func (c *Client) Queue(ctx context.Context, id int64) (*api.Queue, error) {
	var resp api.QueueResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/queues/%d", id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Queue, nil
}

// UpdateQueue applies a partial update.
func (c *Client) UpdateQueue(ctx context.Context, id int64, req api.UpdateQueueRequest) (*api.Queue, error) {
	var resp api.QueueResponse
	if err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/queues/%d", id), req, &resp); err != nil {
		return nil, err
	}
	return &resp.Queue, nil
}

// DeleteQueue removes a queue with no in-flight work.
func (c *Client) DeleteQueue(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/queues/%d", id), nil, nil)
}

// PauseQueue stops the queue from handing out work.
func (c *Client) PauseQueue(ctx context.Context, id int64) (*api.Queue, error) {
	var resp api.QueueResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/queues/%d/pause", id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Queue, nil
}

// ResumeQueue reactivates a paused queue.
func (c *Client) ResumeQueue(ctx context.Context, id int64) (*api.Queue, error) {
	var resp api.QueueResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/queues/%d/resume", id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Queue, nil
}

// QueueStats aggregates one queue's counts and timing.
func (c *Client) QueueStats(ctx context.Context, id int64) (*api.QueueStats, error) {
	var resp api.QueueStats
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/queues/%d/stats", id), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// QueueItems lists queue items, optionally filtered by status.
func (c *Client) QueueItems(ctx context.Context, id int64, statuses []string) ([]api.QueueItem, error) {
	path := fmt.Sprintf("/api/queues/%d/items", id)
	if len(statuses) > 0 {
		values := url.Values{}
		for _, s := range statuses {
			values.Add("status", s)
		}
		path += "?" + values.Encode()
	}
	var resp api.ItemListResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// QueueTimeline returns the newest flow events for a queue.
func (c *Client) QueueTimeline(ctx context.Context, id int64, limit int) ([]api.FlowEvent, error) {
	path := fmt.Sprintf("/api/queues/%d/timeline", id)
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var resp api.TimelineResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// RetryQueue requeues the queue's failed items with a fresh attempt budget.
func (c *Client) RetryQueue(ctx context.Context, id int64) (int, error) {
	var resp api.RetryResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/queues/%d/retry", id), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Retried, nil
}

// ClearQueue drops the queue's completed and failed rows.
func (c *Client) ClearQueue(ctx context.Context, id int64) (int64, error) {
	var resp api.ClearResponse
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/queues/%d/clear", id), nil, &resp); err != nil {
		return 0, err
	}
	return resp.Cleared, nil
}

// NextTask claims the highest-priority claimable item, or nil when the
// queue has nothing to hand out.
func (c *Client) NextTask(ctx context.Context, queueID int64, agentID string) (*api.QueueItem, error) {
	var resp api.NextTaskResponse
	req := api.NextTaskRequest{AgentID: agentID}
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/queues/%d/next-task", queueID), req, &resp); err != nil {
		return nil, err
	}
	return resp.Item, nil
}
