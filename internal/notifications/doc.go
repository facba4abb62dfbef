// Package notifications pushes scheduling alerts via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when notifications are
// disabled. The surface covers the events an operator wants woken up for:
// items that exhausted their retry budget and leases reclaimed from silent
// agents. Routine lifecycle traffic stays in the logs.
//
// Extend this package if you need alternative transports; flow code depends
// only on the small Service interface.
package notifications
