package testsupport

import (
	"path/filepath"
	"testing"

	"flowline/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t   testing.TB
	cfg *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.APIBind = "127.0.0.1:0"

	builder := &configBuilder{
		t:   t,
		cfg: &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithAPIToken sets the bearer token the test daemon requires.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.APIToken = token
	}
}

// WithMaxAttempts overrides the default retry budget for enqueued items.
func WithMaxAttempts(attempts int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Queue.DefaultMaxAttempts = attempts
	}
}

// WithClaimRetryAttempts overrides how often a claim retries after losing a
// race before giving up.
func WithClaimRetryAttempts(attempts int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Queue.ClaimRetryAttempts = attempts
	}
}

// WithStaleAfter enables lease sweeping with the given thresholds, both in
// seconds.
func WithStaleAfter(staleAfter, sweepInterval int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Queue.StaleAfterSeconds = staleAfter
		b.cfg.Queue.SweepIntervalSeconds = sweepInterval
	}
}

// WithNtfyTopic points failure notifications at the given endpoint.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
