package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"flowline/internal/api"
)

// statusLabel renders stored status values like "in_progress" for humans.
func statusLabel(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return ""
	}
	return cases.Title(language.Und).String(strings.ReplaceAll(status, "_", " "))
}

func refLabel(itemType string, itemID int64) string {
	return fmt.Sprintf("%s/%d", itemType, itemID)
}

func orDash(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return value
}

func formatDisplayTime(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC().Format("2006-01-02 15:04")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC().Format("2006-01-02 15:04")
	}
	return value
}

func queueHeaders() []string {
	return []string{"ID", "Project", "Name", "Active", "Parallel", "Queued", "In-flight", "Created"}
}

func queueAligns() []columnAlignment {
	return []columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft}
}

func buildQueueRows(queues []api.Queue) [][]string {
	rows := make([][]string, 0, len(queues))
	for _, q := range queues {
		queued, inFlight := "-", "-"
		if q.Summary != nil {
			queued = fmt.Sprintf("%d", q.Summary.Queued)
			inFlight = fmt.Sprintf("%d", q.Summary.InProgress)
		}
		rows = append(rows, []string{
			fmt.Sprintf("%d", q.ID),
			fmt.Sprintf("%d", q.ProjectID),
			q.Name,
			yesNo(q.IsActive),
			fmt.Sprintf("%d", q.MaxParallelItems),
			queued,
			inFlight,
			formatDisplayTime(q.CreatedAt),
		})
	}
	return rows
}

func itemHeaders() []string {
	return []string{"Pos", "Item", "Status", "Priority", "Attempts", "Agent"}
}

func itemAligns() []columnAlignment {
	return []columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft}
}

// buildItemRows preserves the order handed back by the API: claim order for
// queued items, then in-flight, then terminal rows.
func buildItemRows(items []api.QueueItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		pos := "-"
		if item.Position > 0 {
			pos = fmt.Sprintf("%d", item.Position)
		}
		rows = append(rows, []string{
			pos,
			refLabel(item.ItemType, item.ItemID),
			statusLabel(item.Status),
			fmt.Sprintf("%d", item.Priority),
			fmt.Sprintf("%d/%d", item.Attempts, item.MaxAttempts),
			orDash(item.AgentID),
		})
	}
	return rows
}

func buildCountRows(counts map[string]int) [][]string {
	if len(counts) == 0 {
		return nil
	}
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, []string{statusLabel(key), fmt.Sprintf("%d", counts[key])})
	}
	return rows
}

func buildTotalsRows(totals api.QueueTotals) [][]string {
	return [][]string{
		{"Queued", fmt.Sprintf("%d", totals.Queued)},
		{"In Progress", fmt.Sprintf("%d", totals.InProgress)},
		{"Completed", fmt.Sprintf("%d", totals.Completed)},
		{"Failed", fmt.Sprintf("%d", totals.Failed)},
		{"Total", fmt.Sprintf("%d", totals.Total)},
		{"Queues", fmt.Sprintf("%d", totals.Queues)},
	}
}

func eventHeaders() []string {
	return []string{"Time", "Event", "Item", "Agent", "Detail"}
}

func eventAligns() []columnAlignment {
	return []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft}
}

func buildEventRows(events []api.FlowEvent) [][]string {
	rows := make([][]string, 0, len(events))
	for _, evt := range events {
		rows = append(rows, []string{
			formatDisplayTime(evt.CreatedAt),
			evt.Event,
			refLabel(evt.ItemType, evt.ItemID),
			orDash(evt.AgentID),
			evt.Detail,
		})
	}
	return rows
}

func printItemDetail(out io.Writer, item *api.QueueItem) {
	fmt.Fprintf(out, "Item:      %s\n", refLabel(item.ItemType, item.ItemID))
	fmt.Fprintf(out, "Queue:     %d\n", item.QueueID)
	fmt.Fprintf(out, "Status:    %s\n", statusLabel(item.Status))
	if item.Position > 0 {
		fmt.Fprintf(out, "Position:  %d\n", item.Position)
	}
	fmt.Fprintf(out, "Priority:  %d\n", item.Priority)
	fmt.Fprintf(out, "Attempts:  %d/%d\n", item.Attempts, item.MaxAttempts)
	if item.AgentID != "" {
		fmt.Fprintf(out, "Agent:     %s\n", item.AgentID)
	}
	if item.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:     %s\n", item.ErrorMessage)
	}
}

func printQueueState(out io.Writer, state *api.QueueState) {
	if state == nil {
		fmt.Fprintln(out, "Queue:     not queued")
		return
	}
	fmt.Fprintf(out, "Queue:     %d\n", state.QueueID)
	fmt.Fprintf(out, "Status:    %s\n", statusLabel(state.Status))
	if state.Position > 0 {
		fmt.Fprintf(out, "Position:  %d\n", state.Position)
	}
	fmt.Fprintf(out, "Priority:  %d\n", state.Priority)
	if state.AgentID != "" {
		fmt.Fprintf(out, "Agent:     %s\n", state.AgentID)
	}
	if state.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:     %s\n", state.ErrorMessage)
	}
}

func printBulkResults(out io.Writer, results []api.BulkResult) {
	for _, result := range results {
		line := fmt.Sprintf("%s: %s", refLabel(result.ItemType, result.ItemID), result.Outcome)
		if result.Error != "" {
			line += fmt.Sprintf(" (%s)", result.Error)
		}
		fmt.Fprintln(out, line)
	}
}
