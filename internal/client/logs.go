package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"flowline/internal/api"
)

// LogTail reads daemon log lines. A negative offset starts at the tail of
// the current log; wait blocks server-side for new lines when none are ready.
func (c *Client) LogTail(ctx context.Context, offset int64, limit int, wait time.Duration) (*api.LogTailResponse, error) {
	values := url.Values{}
	values.Set("offset", strconv.FormatInt(offset, 10))
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	if wait > 0 {
		values.Set("wait_ms", strconv.FormatInt(wait.Milliseconds(), 10))
	}

	var resp api.LogTailResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/logs?%s", values.Encode()), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
