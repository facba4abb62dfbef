package preflight

import (
	"context"
	"fmt"
	"strings"

	"github.com/gofrs/flock"

	"flowline/internal/config"
)

// CheckAPIFromConfig evaluates API status from config and connectivity.
func CheckAPIFromConfig(cfg *config.Config) Result {
	const name = "API endpoint"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if strings.TrimSpace(cfg.Paths.APIBind) == "" {
		return Result{Name: name, Detail: "Disabled"}
	}
	check := CheckAPI(context.Background(), cfg.Paths.APIBind, cfg.Paths.APIToken)
	if check.Passed {
		return Result{Name: name, Passed: true, Detail: check.Detail}
	}
	return Result{Name: name, Detail: check.Detail}
}

// DaemonProbe reports whether a daemon currently holds the instance lock.
type DaemonProbe struct {
	Running  bool
	LockPath string
}

// ProbeDaemon checks the instance lock file without disturbing a running
// daemon. When no daemon holds the lock, the probe releases it immediately.
func ProbeDaemon(cfg *config.Config) DaemonProbe {
	if cfg == nil {
		return DaemonProbe{}
	}
	lockPath := cfg.LockFilePath()
	probe := DaemonProbe{LockPath: lockPath}

	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		// Missing directory or unreadable lock file: nothing is running.
		return probe
	}
	if !ok {
		probe.Running = true
		return probe
	}
	_ = lock.Unlock()
	return probe
}

// DaemonDetail renders a display-friendly summary for status UIs.
func (p DaemonProbe) DaemonDetail() string {
	if p.Running {
		return fmt.Sprintf("running (lock held at %s)", p.LockPath)
	}
	return "not running"
}
