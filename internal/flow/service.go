package flow

import (
	"log/slog"

	"flowline/internal/config"
	"flowline/internal/queue"
)

// Service bundles queue shaping, processing lifecycle, and lease sweeping
// behind one value so transports wire a single dependency.
type Service struct {
	*Manager
	*Coordinator
	lease *LeaseMonitor
}

// NewService wires the full flow surface over a store.
func NewService(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Service {
	return &Service{
		Manager:     NewManager(cfg, store, logger),
		Coordinator: NewCoordinator(cfg, store, logger),
		lease:       NewLeaseMonitor(cfg, store, logger),
	}
}

// Lease exposes the monitor so the daemon can run it alongside the server.
func (s *Service) Lease() *LeaseMonitor {
	return s.lease
}
