package flow

import (
	"context"
	"strings"

	"flowline/internal/logging"
	"flowline/internal/queue"
)

// CreateTicket registers a ticket so it can be queued.
func (m *Manager) CreateTicket(ctx context.Context, projectID int64, title string) (*queue.Ticket, error) {
	if projectID <= 0 {
		return nil, validationErrorf("projectId must be positive")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, validationErrorf("ticket title is required")
	}
	ticket, err := m.store.CreateTicket(ctx, &queue.Ticket{ProjectID: projectID, Title: title})
	if err != nil {
		return nil, translate(err)
	}
	m.logger.Info("ticket created", logging.Int64("ticket_id", ticket.ID))
	return ticket, nil
}

// GetTicket fetches a ticket with its queue mirror, or reports not found.
func (m *Manager) GetTicket(ctx context.Context, ticketID int64) (*queue.Ticket, error) {
	if ticketID <= 0 {
		return nil, validationErrorf("ticket id must be positive")
	}
	ticket, err := m.store.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, translate(err)
	}
	if ticket == nil {
		return nil, Errorf(CodeNotFound, "ticket %d not found", ticketID)
	}
	return ticket, nil
}

// CreateTask registers a task under an existing ticket.
func (m *Manager) CreateTask(ctx context.Context, ticketID int64, title string) (*queue.Task, error) {
	if ticketID <= 0 {
		return nil, validationErrorf("ticketId must be positive")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, validationErrorf("task title is required")
	}
	task, err := m.store.CreateTask(ctx, &queue.Task{TicketID: ticketID, Title: title})
	if err != nil {
		return nil, translate(err)
	}
	m.logger.Info("task created", logging.Int64("task_id", task.ID))
	return task, nil
}

// GetTask fetches a task with its queue mirror, or reports not found.
func (m *Manager) GetTask(ctx context.Context, taskID int64) (*queue.Task, error) {
	if taskID <= 0 {
		return nil, validationErrorf("task id must be positive")
	}
	task, err := m.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, translate(err)
	}
	if task == nil {
		return nil, Errorf(CodeNotFound, "task %d not found", taskID)
	}
	return task, nil
}
