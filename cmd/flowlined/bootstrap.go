package main

import (
	"os"
	"strings"

	"flowline/internal/config"
	"flowline/internal/daemonrun"
)

// buildRunOptions derives daemon runtime options from the loaded configuration.
// FLOWLINE_LOG_LEVEL overrides the configured level when set.
func buildRunOptions(cfg *config.Config) daemonrun.Options {
	opts := daemonrun.Options{}
	if cfg != nil {
		opts.LogLevel = cfg.Logging.Level
	}
	if value := strings.TrimSpace(os.Getenv("FLOWLINE_LOG_LEVEL")); value != "" {
		opts.LogLevel = value
	}
	return opts
}
