// Package logging assembles the structured slog loggers used across flowline
// services.
//
// It owns the console and JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so request handlers and the scheduler tag
// log lines with queue ids, item references, and correlation ids. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
package logging
