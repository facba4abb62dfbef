package client

import (
	"context"
	"net/http"

	"flowline/internal/api"
)

// Status retrieves daemon runtime information.
func (c *Client) Status(ctx context.Context) (*api.DaemonStatus, error) {
	var resp api.DaemonStatus
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health retrieves flow database diagnostics.
func (c *Client) Health(ctx context.Context) (*api.HealthReport, error) {
	var resp api.HealthReport
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestNotification asks the daemon to send a test notification.
func (c *Client) TestNotification(ctx context.Context) (*api.TestNotifyResponse, error) {
	var resp api.TestNotifyResponse
	if err := c.do(ctx, http.MethodPost, "/api/notify/test", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
