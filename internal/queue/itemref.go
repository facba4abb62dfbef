package queue

import "fmt"

// ItemType discriminates the kinds of entity a queue item can reference.
type ItemType string

const (
	ItemTypeTicket ItemType = "ticket"
	ItemTypeTask   ItemType = "task"
)

// ParseItemType validates a raw string against the known item types.
func ParseItemType(raw string) (ItemType, bool) {
	switch ItemType(raw) {
	case ItemTypeTicket:
		return ItemTypeTicket, true
	case ItemTypeTask:
		return ItemTypeTask, true
	default:
		return "", false
	}
}

// ItemRef identifies a ticket or task independent of any queue membership.
type ItemRef struct {
	Type ItemType
	ID   int64
}

// TicketRef builds a reference to a ticket.
func TicketRef(id int64) ItemRef {
	return ItemRef{Type: ItemTypeTicket, ID: id}
}

// TaskRef builds a reference to a task.
func TaskRef(id int64) ItemRef {
	return ItemRef{Type: ItemTypeTask, ID: id}
}

// Valid reports whether the reference names a known type and a plausible id.
func (r ItemRef) Valid() bool {
	if r.ID <= 0 {
		return false
	}
	_, ok := ParseItemType(string(r.Type))
	return ok
}

func (r ItemRef) String() string {
	return fmt.Sprintf("%s/%d", r.Type, r.ID)
}

// registryTable maps an item type to the table holding its registry row and
// queue mirror columns. It is the single place ref types resolve to storage.
func registryTable(itemType ItemType) (string, error) {
	switch itemType {
	case ItemTypeTicket:
		return "tickets", nil
	case ItemTypeTask:
		return "tasks", nil
	default:
		return "", fmt.Errorf("unknown item type %q", itemType)
	}
}
