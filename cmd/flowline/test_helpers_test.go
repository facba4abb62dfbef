package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"flowline/internal/config"
	"flowline/internal/daemon"
	"flowline/internal/flow"
	"flowline/internal/queue"
	"flowline/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	store      *queue.Store
	svc        *flow.Service
	daemon     *daemon.Daemon
	bind       string
	configPath string
}

// setupCLITestEnv brings up a daemon on an ephemeral port plus a config file
// pointing at the test directories. Commands run through runCLI talk to the
// daemon over its API.
func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	svc := flow.NewService(cfg, store, nil)

	d, err := daemon.New(cfg, store, svc, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() { d.Stop() })

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)

	return &cliTestEnv{
		cfg:        cfg,
		store:      store,
		svc:        svc,
		daemon:     d,
		bind:       d.Addr(),
		configPath: configPath,
	}
}

// setupOfflineEnv prepares a store and config file without a running daemon,
// so commands fall back to direct store access.
func setupOfflineEnv(t *testing.T, opts ...testsupport.ConfigOption) (*config.Config, string, *queue.Store) {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)

	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, cfg)
	return cfg, configPath, store
}

func runCLI(t *testing.T, args []string, bind, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if bind != "" {
		flags = append(flags, "--bind", bind)
	}
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\ndata_dir = %q\nlog_dir = %q\napi_bind = %q\n",
		cfg.Paths.DataDir,
		cfg.Paths.LogDir,
		cfg.Paths.APIBind,
	)
	if cfg.Notifications.NtfyTopic != "" {
		content += fmt.Sprintf("\n[notifications]\nntfy_topic = %q\n", cfg.Notifications.NtfyTopic)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
