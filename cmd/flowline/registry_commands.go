package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"flowline/internal/api"
	"flowline/internal/flowaccess"
)

func parseEntityID(kind, arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s id %q", kind, arg)
	}
	return id, nil
}

func newTicketCommand(ctx *commandContext) *cobra.Command {
	ticketCmd := &cobra.Command{
		Use:   "ticket",
		Short: "Create and inspect tickets",
	}

	ticketCmd.AddCommand(newTicketAddCommand(ctx))
	ticketCmd.AddCommand(newTicketShowCommand(ctx))

	return ticketCmd
}

func newTicketAddCommand(ctx *commandContext) *cobra.Command {
	var projectID int64
	var title string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a ticket to the registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access flowaccess.Access) error {
				ticket, err := access.CreateTicket(cmd.Context(), api.CreateTicketRequest{
					ProjectID: projectID,
					Title:     title,
				})
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, ticket)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created ticket %d (%s)\n", ticket.ID, ticket.Title)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&projectID, "project", 0, "Project id owning the ticket")
	cmd.Flags().StringVar(&title, "title", "", "Ticket title")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the created ticket as JSON")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newTicketShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <ticket-id>",
		Short: "Show a ticket and its queue state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEntityID("ticket", args[0])
			if err != nil {
				return err
			}
			return ctx.withAccess(func(access flowaccess.Access) error {
				ticket, err := access.Ticket(cmd.Context(), id)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, ticket)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Ticket:    %d\n", ticket.ID)
				fmt.Fprintf(out, "Project:   %d\n", ticket.ProjectID)
				fmt.Fprintf(out, "Title:     %s\n", ticket.Title)
				fmt.Fprintf(out, "Created:   %s\n", formatDisplayTime(ticket.CreatedAt))
				printQueueState(out, ticket.Queue)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the ticket as JSON")
	return cmd
}

func newTaskCommand(ctx *commandContext) *cobra.Command {
	taskCmd := &cobra.Command{
		Use:   "task",
		Short: "Create and inspect tasks",
	}

	taskCmd.AddCommand(newTaskAddCommand(ctx))
	taskCmd.AddCommand(newTaskShowCommand(ctx))

	return taskCmd
}

func newTaskAddCommand(ctx *commandContext) *cobra.Command {
	var ticketID int64
	var title string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a task under a ticket",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access flowaccess.Access) error {
				task, err := access.CreateTask(cmd.Context(), api.CreateTaskRequest{
					TicketID: ticketID,
					Title:    title,
				})
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, task)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created task %d (%s)\n", task.ID, task.Title)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&ticketID, "ticket", 0, "Parent ticket id")
	cmd.Flags().StringVar(&title, "title", "", "Task title")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the created task as JSON")
	_ = cmd.MarkFlagRequired("ticket")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newTaskShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <task-id>",
		Short: "Show a task and its queue state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEntityID("task", args[0])
			if err != nil {
				return err
			}
			return ctx.withAccess(func(access flowaccess.Access) error {
				task, err := access.Task(cmd.Context(), id)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, task)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Task:      %d\n", task.ID)
				fmt.Fprintf(out, "Ticket:    %d\n", task.TicketID)
				fmt.Fprintf(out, "Title:     %s\n", task.Title)
				fmt.Fprintf(out, "Created:   %s\n", formatDisplayTime(task.CreatedAt))
				printQueueState(out, task.Queue)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the task as JSON")
	return cmd
}
