package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"flowline/internal/config"
	"flowline/internal/flow"
	"flowline/internal/logging"
	"flowline/internal/notifications"
	"flowline/internal/queue"
)

// Daemon owns the flowline process lifecycle and enforces single-instance
// execution through a lock file.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *queue.Store
	svc    *flow.Service
	api    *apiServer

	lockPath string
	lock     *flock.Flock

	startedAt time.Time
	running   atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	DatabasePath string
	LockFilePath string
	StartedAt    time.Time
	Totals       queue.HealthSummary
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, svc *flow.Service, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || svc == nil {
		return nil, errors.New("daemon requires config, store, and flow service")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockFilePath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		svc:      svc,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}

	apiSrv, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = apiSrv
	return d, nil
}

// Start acquires the daemon lock, starts the lease monitor, and brings up
// the HTTP API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := d.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another flowline daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.svc.Lease().Start(d.ctx)

	if err := d.api.start(d.ctx); err != nil {
		d.svc.Lease().Stop()
		d.cancel()
		d.ctx, d.cancel = nil, nil
		_ = d.lock.Unlock()
		return err
	}

	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("flowline daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop brings down the API, halts the lease monitor, and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.svc.Lease().Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("flowline daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr reports the bound API address, or empty before Start.
func (d *Daemon) Addr() string {
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}

// TestNotification triggers a test notification using the current
// configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg == nil {
		return false, "configuration unavailable", errors.New("configuration unavailable")
	}
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.TestNotification(ctx); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Status summarizes daemon runtime state and store-wide item totals.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		DatabasePath: d.store.Path(),
		LockFilePath: d.lockPath,
		StartedAt:    d.startedAt,
	}
	totals, err := d.store.Health(ctx)
	if err != nil {
		d.logger.Warn("queue totals unavailable", logging.Error(err))
		return status
	}
	status.Totals = totals
	return status
}
