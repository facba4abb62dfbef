// Package main hosts the flowline CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into daemon
// API calls, falling back to direct store access when no daemon is serving.
// It centralizes configuration resolution, daemon discovery, and output
// rendering so subcommands can focus on user experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
