// Package api defines wire-format types and converters for the HTTP API
// layer. It translates internal queue models into transport-friendly DTOs so
// consumers never couple to internal types.
//
// # Key Types
//
// Queue/QueueItem/Ticket/Task: transport representations of the scheduling
// entities, with the denormalized queue state flattened onto tickets and
// tasks the way the store carries it.
//
// QueueStats: per-queue counts, capacity, and average processing time.
//
// FlowEvent: one persisted timeline entry.
//
// BulkResult: per-entry outcome of a batch enqueue or bulk move.
//
// DaemonStatus/HealthReport: runtime and database diagnostics.
//
// # Converters
//
// FromQueue, FromQueueItem, FromTicket, FromTask, FromFlowEvent, FromStats,
// FromHealth plus slice variants. OutcomeForError classifies a flow error
// into the bulk outcome vocabulary.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Internal enums (queue.Status,
// queue.ItemType, queue.EventKind) are exposed as lowercase strings.
// Timestamps use RFC3339 with milliseconds. Item metadata passes through as
// json.RawMessage to avoid double-encoding. Request payloads live here too,
// with Ref accessors that hand the domain layer its own types; semantic
// validation stays in the flow layer so HTTP and CLI callers share it.
package api
