package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"flowline/internal/config"
)

const userAgent = "Flowline-Go/0.1.0"

// Service defines the notification surface exposed to flow components.
type Service interface {
	NotifyItemFailed(ctx context.Context, ref string, queueID int64, attempts int, errMsg string) error
	NotifyLeaseReclaimed(ctx context.Context, ref string, queueID int64, outcome string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := cfg.NotifyTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	return &ntfyService{
		endpoint: topic,
		client:   client,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyItemFailed(ctx context.Context, ref string, queueID int64, attempts int, errMsg string) error {
	ref = strings.TrimSpace(ref)
	errMsg = strings.TrimSpace(errMsg)
	if errMsg == "" {
		errMsg = "unknown"
	}
	data := payload{
		title:    "Flowline - Item Failed",
		message:  fmt.Sprintf("❌ %s failed after %d attempts in queue %d: %s", ref, attempts, queueID, errMsg),
		tags:     []string{"flowline", "item", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyLeaseReclaimed(ctx context.Context, ref string, queueID int64, outcome string) error {
	ref = strings.TrimSpace(ref)
	outcome = strings.TrimSpace(outcome)
	if outcome == "" {
		outcome = "unknown"
	}
	data := payload{
		title:   "Flowline - Lease Reclaimed",
		message: fmt.Sprintf("Lease expired: %s in queue %d, item now %s", ref, queueID, outcome),
		tags:    []string{"flowline", "lease", "reclaimed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Flowline - Test",
		message:  "🧪 Notification system test",
		tags:     []string{"flowline", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyItemFailed(context.Context, string, int64, int, string) error { return nil }
func (noopService) NotifyLeaseReclaimed(context.Context, string, int64, string) error  { return nil }
func (noopService) TestNotification(context.Context) error                             { return nil }
