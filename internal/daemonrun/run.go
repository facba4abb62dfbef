// Package daemonrun assembles and runs the flowline daemon process:
// logging, preflight, store, flow service, HTTP API, and signal handling.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"flowline/internal/config"
	"flowline/internal/daemon"
	"flowline/internal/flow"
	"flowline/internal/logging"
	"flowline/internal/preflight"
	"flowline/internal/queue"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
}

// Run starts the flowline daemon runtime loop and blocks until the context
// is canceled or a termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("flowline-%s.log", runID))

	logger, err := logging.New(logging.Options{
		Level:            opts.LogLevel,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
		Development:      opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update flowline.log link: %v\n", err)
	}

	if err := runPreflight(signalCtx, cfg, logger); err != nil {
		return err
	}
	logConfigSnapshot(logger, cfg)

	pidPath := filepath.Join(cfg.Paths.LogDir, "flowlined.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open flow store", logging.Error(err))
		return err
	}
	defer store.Close()

	svc := flow.NewService(cfg, store, logger)
	d, err := daemon.New(cfg, store, svc, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed", logging.Error(err))
		return err
	}

	<-signalCtx.Done()
	logger.Info("flowline daemon shutting down")
	d.Stop()
	return nil
}

// runPreflight halts startup when any readiness check fails.
func runPreflight(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var failed []string
	for _, result := range preflight.RunAll(ctx, cfg) {
		if result.Passed {
			logger.Debug("preflight check passed",
				logging.String("check", result.Name),
				logging.String("detail", result.Detail),
			)
			continue
		}
		logger.Error("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
		)
		failed = append(failed, result.Name)
	}
	if len(failed) > 0 {
		return fmt.Errorf("preflight failed: %s", strings.Join(failed, ", "))
	}
	return nil
}

func logConfigSnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("configuration snapshot",
		logging.String(logging.FieldEventType, "config_snapshot"),
		logging.String("database_path", cfg.DatabasePath()),
		logging.String("api_bind", cfg.Paths.APIBind),
		logging.Bool("api_token_present", strings.TrimSpace(cfg.Paths.APIToken) != ""),
		logging.Int("default_max_attempts", cfg.Queue.DefaultMaxAttempts),
		logging.Int("default_max_parallel", cfg.Queue.DefaultMaxParallel),
		logging.Bool("lease_sweep_enabled", cfg.Queue.StaleAfterSeconds > 0),
		logging.Duration("lease_stale_after", cfg.StaleAfter()),
	)
}

// ensureCurrentLogPointer keeps flowline.log pointing at the newest run log.
func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "flowline.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}
