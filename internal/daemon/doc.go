// Package daemon coordinates the long-running flowline process.
//
// It wires configuration, the queue store, and the flow service into a
// single lifecycle with flock-based locking to prevent multiple instances,
// runs the lease monitor, and serves the HTTP API. Keep orchestration logic
// here: scheduling semantics live in internal/flow while the daemon focuses
// on startup, shutdown, and transport.
package daemon
