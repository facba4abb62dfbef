package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"flowline/internal/config"
)

func TestLoadDefaultsExpandPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "flowline")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7713" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Queue.DefaultMaxAttempts != 3 {
		t.Fatalf("unexpected default max attempts: %d", cfg.Queue.DefaultMaxAttempts)
	}
	if cfg.Queue.StaleAfterSeconds != 0 {
		t.Fatalf("expected lease sweep disabled by default, got %d", cfg.Queue.StaleAfterSeconds)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "flow.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.DataDir, cfg.Paths.LogDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "flowline.toml")

	type payload struct {
		Paths struct {
			DataDir string `toml:"data_dir"`
			APIBind string `toml:"api_bind"`
		} `toml:"paths"`
		Queue struct {
			DefaultMaxAttempts int `toml:"default_max_attempts"`
			StaleAfterSeconds  int `toml:"stale_after_seconds"`
			SweepInterval      int `toml:"sweep_interval_seconds"`
		} `toml:"queue"`
	}
	custom := payload{}
	custom.Paths.DataDir = filepath.Join(tempDir, "data")
	custom.Paths.APIBind = "127.0.0.1:9000"
	custom.Queue.DefaultMaxAttempts = 5
	custom.Queue.StaleAfterSeconds = 600
	custom.Queue.SweepInterval = 60
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Paths.APIBind != "127.0.0.1:9000" {
		t.Fatalf("expected api bind override, got %q", cfg.Paths.APIBind)
	}
	if cfg.Queue.DefaultMaxAttempts != 5 {
		t.Fatalf("expected max attempts 5, got %d", cfg.Queue.DefaultMaxAttempts)
	}
	if cfg.StaleAfter().Seconds() != 600 {
		t.Fatalf("unexpected stale-after duration: %s", cfg.StaleAfter())
	}
}

func TestEnvVarProvidesAPIToken(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("FLOWLINE_API_TOKEN", "env-token")

	cfg, _, _, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Paths.APIToken != "env-token" {
		t.Fatalf("expected API token from env, got %q", cfg.Paths.APIToken)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "default_max_attempts") {
		t.Fatalf("sample config missing queue section: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Queue.DefaultMaxAttempts = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero attempt budget")
	}

	cfg = config.Default()
	cfg.Queue.DefaultMaxParallel = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative parallelism")
	}

	cfg = config.Default()
	cfg.Paths.APIBind = "not-an-address"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for malformed bind address")
	}

	cfg = config.Default()
	cfg.Queue.StaleAfterSeconds = 30
	cfg.Queue.SweepIntervalSeconds = 30
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when sweep interval is not below stale-after")
	}
}
