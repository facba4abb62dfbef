package flowaccess

import (
	"fmt"

	"flowline/internal/client"
	"flowline/internal/config"
	"flowline/internal/flow"
	"flowline/internal/queue"
)

// Session represents a flow access handle and its cleanup function.
type Session struct {
	Access Access
	Daemon bool
	close  func() error
}

// Close releases resources associated with the session.
func (s Session) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenWithFallback tries daemon-backed access first, then falls back to
// opening the store directly.
func OpenWithFallback(cfg *config.Config) (Session, error) {
	if cfg == nil {
		return Session{}, fmt.Errorf("config is required")
	}

	if cfg.Paths.APIBind != "" {
		if c, err := client.Dial(cfg.Paths.APIBind, cfg.Paths.APIToken); err == nil {
			return Session{
				Access: NewClientAccess(c),
				Daemon: true,
			}, nil
		}
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return Session{}, fmt.Errorf("open flow store: %w", err)
	}
	svc := flow.NewService(cfg, store, nil)
	return Session{
		Access: NewServiceAccess(svc, store),
		close:  store.Close,
	}, nil
}
