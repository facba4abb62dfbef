package preflight

import (
	"context"

	"flowline/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// The API endpoint is not dialed here: RunAll runs before the daemon is
// up, so only the bind address syntax is validated.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	results = append(results, CheckDatabase(cfg.DatabasePath()))

	if cfg.Paths.APIBind != "" {
		results = append(results, CheckBindAddress(cfg.Paths.APIBind))
	}

	return results
}
