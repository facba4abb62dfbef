package main

import (
	"testing"

	"flowline/internal/api"
)

func TestStatusLabel(t *testing.T) {
	cases := map[string]string{
		"queued":      "Queued",
		"in_progress": "In Progress",
		"completed":   "Completed",
		"failed":      "Failed",
	}
	for input, want := range cases {
		if got := statusLabel(input); got != want {
			t.Fatalf("statusLabel(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestFormatDisplayTime(t *testing.T) {
	if got := formatDisplayTime("2024-03-01T10:30:00Z"); got != "2024-03-01 10:30" {
		t.Fatalf("formatDisplayTime = %q", got)
	}
	if got := formatDisplayTime(""); got != "" {
		t.Fatalf("expected empty output for empty time, got %q", got)
	}
	if got := formatDisplayTime("not-a-time"); got != "not-a-time" {
		t.Fatalf("expected passthrough for unparseable time, got %q", got)
	}
}

func TestParseItemIDList(t *testing.T) {
	ids, err := parseItemIDList([]string{"3,1", "2"})
	if err != nil {
		t.Fatalf("parseItemIDList: %v", err)
	}
	if len(ids) != 3 || ids[0] != 3 || ids[1] != 1 || ids[2] != 2 {
		t.Fatalf("unexpected ids: %v", ids)
	}

	if _, err := parseItemIDList([]string{"a"}); err == nil {
		t.Fatal("expected error for non-numeric id")
	}
	if _, err := parseItemIDList([]string{"0"}); err == nil {
		t.Fatal("expected error for non-positive id")
	}
	if _, err := parseItemIDList([]string{" , "}); err == nil {
		t.Fatal("expected error for empty list")
	}
}

func TestRefFlagsResolve(t *testing.T) {
	flags := refFlags{ticketID: 5}
	itemType, id, err := flags.resolve()
	if err != nil || itemType != "ticket" || id != 5 {
		t.Fatalf("resolve ticket = (%q, %d, %v)", itemType, id, err)
	}

	flags = refFlags{taskID: 9}
	itemType, id, err = flags.resolve()
	if err != nil || itemType != "task" || id != 9 {
		t.Fatalf("resolve task = (%q, %d, %v)", itemType, id, err)
	}

	if _, _, err := (&refFlags{}).resolve(); err == nil {
		t.Fatal("expected error with no ref")
	}
	if _, _, err := (&refFlags{ticketID: 1, taskID: 2}).resolve(); err == nil {
		t.Fatal("expected error with both refs")
	}
}

func TestBuildItemRows(t *testing.T) {
	rows := buildItemRows([]api.QueueItem{
		{ItemType: "ticket", ItemID: 7, Status: "queued", Position: 1, Priority: 4, Attempts: 0, MaxAttempts: 3},
		{ItemType: "task", ItemID: 2, Status: "in_progress", Priority: 0, Attempts: 1, MaxAttempts: 3, AgentID: "agent-x"},
	})
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0][0] != "1" || rows[0][1] != "ticket/7" || rows[0][2] != "Queued" {
		t.Fatalf("unexpected first row: %v", rows[0])
	}
	if rows[1][0] != "-" {
		t.Fatalf("expected dash position for claimed item, got %q", rows[1][0])
	}
	if rows[1][5] != "agent-x" {
		t.Fatalf("expected agent column, got %v", rows[1])
	}
}
