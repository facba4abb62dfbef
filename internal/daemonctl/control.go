// Package daemonctl orchestrates the daemon process lifecycle from the CLI:
// launching a detached daemon, waiting for its API, and terminating it via
// the pid file when the API alone cannot stop the process.
package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"flowline/internal/api"
	"flowline/internal/client"
	"flowline/internal/config"
	"flowline/internal/preflight"
	"flowline/internal/queue"
)

// LaunchOptions controls daemon process launch behavior.
type LaunchOptions struct {
	ConfigPath string
}

type StartState string

const (
	StartStateStarted        StartState = "started"
	StartStateAlreadyRunning StartState = "already_running"
)

// StartResult captures daemon start orchestration state.
type StartResult struct {
	State    StartState
	Launched bool
	PID      int
}

// StopResult captures daemon stop/termination outcome.
type StopResult struct {
	Signaled   bool
	ForcedKill bool
	PID        int
}

// RestartResult captures stop/start outcomes for daemon restart.
type RestartResult struct {
	WasRunning bool
	Stop       StopResult
	Start      StartResult
}

// ErrDaemonNotRunning indicates no daemon holds the instance lock.
var ErrDaemonNotRunning = errors.New("daemon not running")

// PIDFilePath returns the daemon pid file location for cfg.
func PIDFilePath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, "flowlined.pid")
}

// Launch starts a detached daemon process.
func Launch(executablePath string, opts LaunchOptions) error {
	if strings.TrimSpace(executablePath) == "" {
		return fmt.Errorf("resolve executable: executable path is empty")
	}

	args := []string{"daemon", "run"}
	if cfgPath := strings.TrimSpace(opts.ConfigPath); cfgPath != "" {
		args = append(args, "--config", cfgPath)
	}

	proc := exec.Command(executablePath, args...)
	if err := proc.Start(); err != nil {
		return fmt.Errorf("launch daemon: %w", err)
	}
	return proc.Process.Release()
}

// WaitForAPI waits for the daemon HTTP API to accept connections and returns
// a connected client.
func WaitForAPI(bind, token string, timeout time.Duration) (*client.Client, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		c, err := client.Dial(bind, token)
		if err == nil {
			return c, nil
		}
		lastErr = err
		time.Sleep(200 * time.Millisecond)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("timeout waiting for daemon")
	}
	return nil, fmt.Errorf("daemon failed to start: %w", lastErr)
}

// EnsureStarted launches the daemon unless one is already serving the API.
func EnsureStarted(cfg *config.Config, executablePath string, opts LaunchOptions, waitTimeout time.Duration) (StartResult, error) {
	if cfg == nil {
		return StartResult{}, errors.New("configuration not available")
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return StartResult{}, errors.New("api_bind must be configured to manage the daemon")
	}

	if c, err := client.Dial(bind, cfg.Paths.APIToken); err == nil {
		status, statusErr := c.Status(context.Background())
		if statusErr == nil && status != nil && status.Running {
			return StartResult{State: StartStateAlreadyRunning, PID: status.PID}, nil
		}
	}

	if err := Launch(executablePath, opts); err != nil {
		return StartResult{}, err
	}
	c, err := WaitForAPI(bind, cfg.Paths.APIToken, waitTimeout)
	if err != nil {
		return StartResult{}, err
	}
	result := StartResult{State: StartStateStarted, Launched: true}
	if status, statusErr := c.Status(context.Background()); statusErr == nil && status != nil {
		result.PID = status.PID
	}
	return result, nil
}

// WaitForShutdown waits for the instance lock to be released.
func WaitForShutdown(cfg *config.Config, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if probe := preflight.ProbeDaemon(cfg); !probe.Running {
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("daemon did not stop within %s", timeout)
}

// StopAndTerminate signals the daemon to shut down and force-kills the
// process if it still holds the lock after gracePeriod.
func StopAndTerminate(cfg *config.Config, gracePeriod time.Duration) (StopResult, error) {
	if cfg == nil {
		return StopResult{}, errors.New("configuration not available")
	}
	probe := preflight.ProbeDaemon(cfg)
	if !probe.Running {
		return StopResult{}, ErrDaemonNotRunning
	}

	pidPath := PIDFilePath(cfg)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		return StopResult{}, fmt.Errorf("read daemon pid file %q: %w", pidPath, err)
	}
	if pid == os.Getpid() {
		return StopResult{}, fmt.Errorf("refusing to stop current process (pid %d)", pid)
	}

	result := StopResult{PID: pid}
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		if errors.Is(err, unix.ESRCH) {
			// Stale pid file left behind by a crashed daemon.
			_ = os.Remove(pidPath)
			return result, nil
		}
		return result, fmt.Errorf("signal daemon process %d: %w", pid, err)
	}
	result.Signaled = true

	if err := WaitForShutdown(cfg, gracePeriod); err == nil {
		return result, nil
	}

	if err := unix.Kill(pid, unix.SIGKILL); err != nil && !errors.Is(err, unix.ESRCH) {
		return result, fmt.Errorf("kill daemon process %d: %w", pid, err)
	}
	result.ForcedKill = true
	_ = os.Remove(pidPath)
	_ = os.Remove(probe.LockPath)
	return result, nil
}

// Restart stops the daemon if running, then ensures it is started.
func Restart(cfg *config.Config, executablePath string, opts LaunchOptions, stopGracePeriod, startWaitTimeout time.Duration) (RestartResult, error) {
	stopResult, stopErr := StopAndTerminate(cfg, stopGracePeriod)
	if stopErr != nil && !errors.Is(stopErr, ErrDaemonNotRunning) {
		return RestartResult{}, stopErr
	}

	startResult, err := EnsureStarted(cfg, executablePath, opts, startWaitTimeout)
	if err != nil {
		return RestartResult{}, err
	}

	return RestartResult{
		WasRunning: stopErr == nil,
		Stop:       stopResult,
		Start:      startResult,
	}, nil
}

// StatusSnapshot aggregates daemon state with store fallbacks for status
// output when the daemon is offline.
type StatusSnapshot struct {
	Daemon    api.DaemonStatus `json:"daemon"`
	Reachable bool             `json:"reachable"`
	Queues    []api.Queue      `json:"queues,omitempty"`
}

// BuildStatusSnapshot collects daemon status over the API, falling back to a
// direct store read when the daemon is unreachable.
func BuildStatusSnapshot(ctx context.Context, cfg *config.Config) (*StatusSnapshot, error) {
	if cfg == nil {
		return nil, errors.New("configuration not available")
	}
	snapshot := &StatusSnapshot{}

	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind != "" {
		if c, err := client.Dial(bind, cfg.Paths.APIToken); err == nil {
			if status, statusErr := c.Status(ctx); statusErr == nil && status != nil {
				snapshot.Daemon = *status
				snapshot.Reachable = true
			}
			if snapshot.Reachable {
				if queues, err := c.Queues(ctx, 0); err == nil {
					snapshot.Queues = queues
				}
				return snapshot, nil
			}
		}
	}

	probe := preflight.ProbeDaemon(cfg)
	snapshot.Daemon.Running = probe.Running
	snapshot.Daemon.LockFilePath = probe.LockPath
	snapshot.Daemon.DatabasePath = cfg.DatabasePath()

	queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	store, openErr := queue.Open(cfg)
	if openErr != nil {
		return snapshot, nil
	}
	defer store.Close()
	if summary, err := store.Health(queryCtx); err == nil {
		snapshot.Daemon.Totals = api.FromHealthSummary(summary)
	}
	if queues, err := store.ListQueues(queryCtx, 0); err == nil {
		activity, _ := store.ActivityByQueue(queryCtx, 0)
		snapshot.Queues = api.FromQueuesWithActivity(queues, activity)
	}
	return snapshot, nil
}

// StatusLine is one labeled line of system status output.
type StatusLine struct {
	Label    string
	Severity string
	Detail   string
}

// BuildSystemChecks resolves status lines combining runtime state and
// config checks.
func BuildSystemChecks(cfg *config.Config, snapshot *StatusSnapshot) []StatusLine {
	lines := make([]StatusLine, 0, 4)

	if snapshot != nil && snapshot.Daemon.Running {
		detail := "Running"
		if snapshot.Daemon.PID > 0 {
			detail = fmt.Sprintf("Running (pid %d)", snapshot.Daemon.PID)
		}
		lines = append(lines, StatusLine{Label: "Daemon", Severity: "ok", Detail: detail})
	} else {
		lines = append(lines, StatusLine{Label: "Daemon", Severity: "warn", Detail: "Not running (run `flowline daemon start`)"})
	}

	bind := strings.TrimSpace(cfg.Paths.APIBind)
	switch {
	case snapshot != nil && snapshot.Reachable:
		lines = append(lines, StatusLine{Label: "API", Severity: "ok", Detail: fmt.Sprintf("Reachable at %s", bind)})
	case bind == "":
		lines = append(lines, StatusLine{Label: "API", Severity: "info", Detail: "Not configured (direct store access)"})
	default:
		lines = append(lines, StatusLine{Label: "API", Severity: "warn", Detail: fmt.Sprintf("Unreachable at %s", bind)})
	}

	db := preflight.CheckDatabase(cfg.DatabasePath())
	lines = append(lines, StatusLine{Label: "Database", Severity: severityFor(db.Passed), Detail: db.Detail})

	logs := preflight.CheckDirectoryAccess("Log directory", cfg.Paths.LogDir)
	lines = append(lines, StatusLine{Label: "Logs", Severity: severityFor(logs.Passed), Detail: logs.Detail})

	return lines
}

func severityFor(passed bool) string {
	if passed {
		return "ok"
	}
	return "error"
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid file contents")
	}
	return pid, nil
}
