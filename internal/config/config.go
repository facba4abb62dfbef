package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir  string `toml:"data_dir"`
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Queue contains scheduling policy defaults and lease sweep settings.
type Queue struct {
	// DefaultMaxAttempts bounds how many times an item may be claimed before
	// it fails terminally. Applied at enqueue time when the caller does not
	// supply a bound.
	DefaultMaxAttempts int `toml:"default_max_attempts"`
	// DefaultMaxParallel is the concurrency ceiling applied to new queues
	// created without an explicit one.
	DefaultMaxParallel int `toml:"default_max_parallel"`
	// ClaimRetryAttempts bounds internal reselection when a claim loses a
	// race to a concurrent caller.
	ClaimRetryAttempts int `toml:"claim_retry_attempts"`
	// StaleAfterSeconds is how long an item may sit in_progress before the
	// lease sweeper fails it on the agent's behalf. Zero disables sweeping.
	StaleAfterSeconds int `toml:"stale_after_seconds"`
	// SweepIntervalSeconds is how often the lease sweeper runs.
	SweepIntervalSeconds int `toml:"sweep_interval_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Notifications configures the optional ntfy push channel. An empty topic
// URL disables notifications entirely.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Config encapsulates all configuration values for flowline.
//
// Sections:
//   - Paths: data/log directories, API bind address and token
//   - Queue: retry and concurrency policy defaults, lease sweep timing
//   - Logging: log format and level
//   - Notifications: optional ntfy topic for failure alerts
type Config struct {
	Paths         Paths         `toml:"paths"`
	Queue         Queue         `toml:"queue"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/flowline/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/flowline/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("flowline.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the flow database file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "flow.db")
}

// LockFilePath returns the location of the daemon single-instance lock.
func (c *Config) LockFilePath() string {
	return filepath.Join(c.Paths.LogDir, "flowlined.lock")
}

// StaleAfter returns the in-progress lease timeout; zero disables sweeping.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Queue.StaleAfterSeconds) * time.Second
}

// SweepInterval returns the lease sweeper cadence.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Queue.SweepIntervalSeconds) * time.Second
}

// NotifyTimeout returns the per-request notification timeout.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
