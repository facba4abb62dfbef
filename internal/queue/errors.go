package queue

import "errors"

// Sentinel errors returned by store operations. Callers match them with
// errors.Is; the flow layer translates them into its API error taxonomy.
var (
	ErrQueueNotFound     = errors.New("queue not found")
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrTaskNotFound      = errors.New("task not found")
	ErrItemNotFound      = errors.New("queue item not found")
	ErrNotQueued         = errors.New("item is not in any queue")
	ErrAlreadyQueued     = errors.New("item is already queued")
	ErrItemInFlight      = errors.New("item is being processed")
	ErrQueuePaused       = errors.New("queue is paused")
	ErrClaimRace         = errors.New("claim lost to a concurrent caller")
	ErrNotInProgress     = errors.New("item is not in progress")
	ErrAgentMismatch     = errors.New("item is claimed by another agent")
	ErrInvalidReorderSet = errors.New("reorder set does not match the queued items")
	ErrDuplicateName     = errors.New("queue name already in use for project")
)

// refNotFound maps an item type to the matching registry sentinel.
func refNotFound(itemType ItemType) error {
	if itemType == ItemTypeTask {
		return ErrTaskNotFound
	}
	return ErrTicketNotFound
}
