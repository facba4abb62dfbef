// Package flow layers scheduling policy over the queue store: input
// validation, the claim retry loop, lease sweeping, and the error taxonomy
// the HTTP API exposes. The Manager covers queue shaping (enqueue, move,
// reorder, pause) and the Coordinator covers the processing lifecycle
// (next-task, start, complete, fail).
package flow
