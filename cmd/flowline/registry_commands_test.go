package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"flowline/internal/queue"
	"flowline/internal/testsupport"
)

func TestTicketAddAndShow(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"ticket", "add", "--project", "1", "--title", "Fix login flow"}, env.bind, env.configPath)
	if err != nil {
		t.Fatalf("ticket add: %v", err)
	}
	requireContains(t, out, "Created ticket 1 (Fix login flow)")

	out, _, err = runCLI(t, []string{"ticket", "show", "1"}, env.bind, env.configPath)
	if err != nil {
		t.Fatalf("ticket show: %v", err)
	}
	requireContains(t, out, "Ticket:    1")
	requireContains(t, out, "Title:     Fix login flow")
	requireContains(t, out, "Queue:     not queued")
}

func TestTicketShowQueueState(t *testing.T) {
	env := setupCLITestEnv(t)

	q := testsupport.NewQueue(t, env.store, 1, "main", 1)
	ticket := testsupport.NewTicket(t, env.store, 1, "Queued ticket")
	testsupport.Enqueue(t, env.store, q.ID, queue.TicketRef(ticket.ID), queue.EnqueueOptions{Priority: 2})

	out, _, err := runCLI(t, []string{"ticket", "show", fmt.Sprintf("%d", ticket.ID)}, env.bind, env.configPath)
	if err != nil {
		t.Fatalf("ticket show: %v", err)
	}
	requireContains(t, out, fmt.Sprintf("Queue:     %d", q.ID))
	requireContains(t, out, "Status:    Queued")
	requireContains(t, out, "Position:  1")
	requireContains(t, out, "Priority:  2")
}

func TestTaskAddAndShow(t *testing.T) {
	env := setupCLITestEnv(t)

	ticket := testsupport.NewTicket(t, env.store, 1, "Parent")

	out, _, err := runCLI(t, []string{"task", "add", "--ticket", fmt.Sprintf("%d", ticket.ID), "--title", "Subtask one"}, env.bind, env.configPath)
	if err != nil {
		t.Fatalf("task add: %v", err)
	}
	requireContains(t, out, "Created task 1 (Subtask one)")

	out, _, err = runCLI(t, []string{"task", "show", "1"}, env.bind, env.configPath)
	if err != nil {
		t.Fatalf("task show: %v", err)
	}
	requireContains(t, out, "Task:      1")
	requireContains(t, out, fmt.Sprintf("Ticket:    %d", ticket.ID))
	requireContains(t, out, "Title:     Subtask one")
}

func TestTaskAddRequiresTicket(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"task", "add", "--ticket", "42", "--title", "Orphan"}, env.bind, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected not found error for missing ticket, got %v", err)
	}
}

func TestTicketShowJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	ticket := testsupport.NewTicket(t, env.store, 1, "JSON ticket")

	out, _, err := runCLI(t, []string{"ticket", "show", fmt.Sprintf("%d", ticket.ID), "--json"}, env.bind, env.configPath)
	if err != nil {
		t.Fatalf("ticket show --json: %v", err)
	}

	var detail map[string]any
	if err := json.Unmarshal([]byte(out), &detail); err != nil {
		t.Fatalf("invalid JSON: %v\noutput: %s", err, out)
	}
	if detail["id"] != float64(ticket.ID) {
		t.Fatalf("expected id %d, got %v", ticket.ID, detail["id"])
	}
	if detail["title"] != "JSON ticket" {
		t.Fatalf("expected title, got %v", detail["title"])
	}
	if _, ok := detail["queue"]; ok {
		t.Fatal("expected queue key omitted for unqueued ticket")
	}
}
