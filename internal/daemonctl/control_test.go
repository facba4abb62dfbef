package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"flowline/internal/config"
	"flowline/internal/daemon"
	"flowline/internal/flow"
	"flowline/internal/queue"
	"flowline/internal/testsupport"
)

func startDaemon(t *testing.T) (*daemon.Daemon, *config.Config, *queue.Store) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	svc := flow.NewService(cfg, store, nil)
	d, err := daemon.New(cfg, store, svc, nil)
	if err != nil {
		t.Fatalf("daemon.New failed: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start failed: %v", err)
	}
	t.Cleanup(func() { d.Stop() })

	live := *cfg
	live.Paths.APIBind = d.Addr()
	return d, &live, store
}

func TestPIDFilePath(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	want := filepath.Join(cfg.Paths.LogDir, "flowlined.pid")
	if got := PIDFilePath(cfg); got != want {
		t.Fatalf("PIDFilePath = %q, want %q", got, want)
	}
}

func TestReadPIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowlined.pid")
	if err := os.WriteFile(path, []byte("4321\n"), 0o644); err != nil {
		t.Fatalf("write pid file: %v", err)
	}
	pid, err := readPIDFile(path)
	if err != nil {
		t.Fatalf("readPIDFile failed: %v", err)
	}
	if pid != 4321 {
		t.Fatalf("pid = %d, want 4321", pid)
	}

	if err := os.WriteFile(path, []byte("not-a-pid"), 0o644); err != nil {
		t.Fatalf("write pid file: %v", err)
	}
	if _, err := readPIDFile(path); err == nil {
		t.Fatal("expected error for garbage pid file")
	}
}

func TestStopAndTerminate_NotRunning(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := StopAndTerminate(cfg, 0); !errors.Is(err, ErrDaemonNotRunning) {
		t.Fatalf("expected ErrDaemonNotRunning, got %v", err)
	}
}

func TestStopAndTerminate_RefusesOwnProcess(t *testing.T) {
	_, cfg, _ := startDaemon(t)

	pidPath := PIDFilePath(cfg)
	if err := os.WriteFile(pidPath, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644); err != nil {
		t.Fatalf("write pid file: %v", err)
	}

	if _, err := StopAndTerminate(cfg, 0); err == nil {
		t.Fatal("expected refusal to stop the current process")
	}
}

func TestWaitForShutdown_AlreadyStopped(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := WaitForShutdown(cfg, 0); err != nil {
		t.Fatalf("WaitForShutdown on stopped daemon: %v", err)
	}
}

func TestEnsureStarted_AlreadyRunning(t *testing.T) {
	_, cfg, _ := startDaemon(t)

	result, err := EnsureStarted(cfg, "/nonexistent/flowline", LaunchOptions{}, 0)
	if err != nil {
		t.Fatalf("EnsureStarted failed: %v", err)
	}
	if result.State != StartStateAlreadyRunning {
		t.Fatalf("state = %q, want %q", result.State, StartStateAlreadyRunning)
	}
	if result.Launched {
		t.Fatal("expected no launch against a running daemon")
	}
	if result.PID != os.Getpid() {
		t.Fatalf("pid = %d, want %d", result.PID, os.Getpid())
	}
}

func TestBuildStatusSnapshot_Offline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	q := testsupport.NewQueue(t, store, 1, "main", 2)
	ticket := testsupport.NewTicket(t, store, 1, "offline work")
	testsupport.Enqueue(t, store, q.ID, queue.TicketRef(ticket.ID), queue.EnqueueOptions{})

	snapshot, err := BuildStatusSnapshot(ctx, cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot failed: %v", err)
	}
	if snapshot.Reachable {
		t.Fatal("expected unreachable daemon")
	}
	if snapshot.Daemon.Running {
		t.Fatal("expected daemon reported as not running")
	}
	if snapshot.Daemon.Totals.Queued != 1 {
		t.Fatalf("queued total = %d, want 1", snapshot.Daemon.Totals.Queued)
	}
	if len(snapshot.Queues) != 1 {
		t.Fatalf("queues = %d, want 1", len(snapshot.Queues))
	}
	if snapshot.Daemon.DatabasePath != cfg.DatabasePath() {
		t.Fatalf("database path = %q, want %q", snapshot.Daemon.DatabasePath, cfg.DatabasePath())
	}
}

func TestBuildStatusSnapshot_Reachable(t *testing.T) {
	_, cfg, store := startDaemon(t)
	ctx := context.Background()

	testsupport.NewQueue(t, store, 1, "live", 1)

	snapshot, err := BuildStatusSnapshot(ctx, cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot failed: %v", err)
	}
	if !snapshot.Reachable {
		t.Fatal("expected reachable daemon")
	}
	if !snapshot.Daemon.Running {
		t.Fatal("expected running daemon status")
	}
	if snapshot.Daemon.PID <= 0 {
		t.Fatalf("pid = %d, want > 0", snapshot.Daemon.PID)
	}
	if len(snapshot.Queues) != 1 {
		t.Fatalf("queues = %d, want 1", len(snapshot.Queues))
	}
}

func TestBuildSystemChecks(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	snapshot, err := BuildStatusSnapshot(context.Background(), cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot failed: %v", err)
	}
	lines := BuildSystemChecks(cfg, snapshot)
	if len(lines) != 4 {
		t.Fatalf("lines = %d, want 4", len(lines))
	}
	if lines[0].Label != "Daemon" || lines[0].Severity != "warn" {
		t.Fatalf("unexpected daemon line: %+v", lines[0])
	}
	if lines[1].Label != "API" || lines[1].Severity != "warn" {
		t.Fatalf("unexpected api line: %+v", lines[1])
	}

	cfg.Paths.APIBind = ""
	lines = BuildSystemChecks(cfg, snapshot)
	if lines[1].Severity != "info" {
		t.Fatalf("expected info severity without api_bind, got %+v", lines[1])
	}
}
