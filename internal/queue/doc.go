// Package queue owns the persistent scheduling state: queues, queue items,
// the ticket/task registry rows they point at, and the append-only flow
// event log. All SQL lives here; higher layers express policy in terms of
// the store operations this package exports.
package queue
