package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"flowline/internal/api"
	"flowline/internal/flowaccess"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage work queues",
	}

	queueCmd.AddCommand(newQueueCreateCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueUpdateCommand(ctx))
	queueCmd.AddCommand(newQueuePauseCommand(ctx))
	queueCmd.AddCommand(newQueueResumeCommand(ctx))
	queueCmd.AddCommand(newQueueDeleteCommand(ctx))
	queueCmd.AddCommand(newQueueStatsCommand(ctx))
	queueCmd.AddCommand(newQueueItemsCommand(ctx))
	queueCmd.AddCommand(newQueueTimelineCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func parseQueueID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid queue id %q", arg)
	}
	return id, nil
}

func newQueueCreateCommand(ctx *commandContext) *cobra.Command {
	var projectID int64
	var name string
	var description string
	var maxParallel int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access flowaccess.Access) error {
				q, err := access.CreateQueue(cmd.Context(), api.CreateQueueRequest{
					ProjectID:        projectID,
					Name:             name,
					Description:      description,
					MaxParallelItems: maxParallel,
				})
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, q)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created queue %d (%s)\n", q.ID, q.Name)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&projectID, "project", 0, "Project id owning the queue")
	cmd.Flags().StringVar(&name, "name", "", "Queue name")
	cmd.Flags().StringVar(&description, "description", "", "Queue description")
	cmd.Flags().IntVar(&maxParallel, "max-parallel", 0, "Concurrency ceiling (0 uses the configured default)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the created queue as JSON")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var projectID int64
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queues",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access flowaccess.Access) error {
				queues, err := access.Queues(cmd.Context(), projectID)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.QueueListResponse{Queues: queues})
				}
				if len(queues) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No queues")
					return nil
				}
				printTable(cmd, queueHeaders(), buildQueueRows(queues), queueAligns())
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&projectID, "project", 0, "Only list queues of this project")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit queues as JSON")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "show <queue-id>",
		Short: "Show one queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseQueueID(args[0])
			if err != nil {
				return err
			}
			return ctx.withAccess(func(access flowaccess.Access) error {
				q, err := access.Queue(cmd.Context(), id)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, q)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Queue:       %s (id %d)\n", q.Name, q.ID)
				fmt.Fprintf(out, "Project:     %d\n", q.ProjectID)
				if q.Description != "" {
					fmt.Fprintf(out, "Description: %s\n", q.Description)
				}
				fmt.Fprintf(out, "Active:      %s\n", yesNo(q.IsActive))
				fmt.Fprintf(out, "Parallel:    %d\n", q.MaxParallelItems)
				fmt.Fprintf(out, "Created:     %s\n", formatDisplayTime(q.CreatedAt))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the queue as JSON")
	return cmd
}

func newQueueUpdateCommand(ctx *commandContext) *cobra.Command {
	var name string
	var description string
	var maxParallel int
	var active bool

	cmd := &cobra.Command{
		Use:   "update <queue-id>",
		Short: "Update queue settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseQueueID(args[0])
			if err != nil {
				return err
			}

			req := api.UpdateQueueRequest{}
			flags := cmd.Flags()
			if flags.Changed("name") {
				req.Name = &name
			}
			if flags.Changed("description") {
				req.Description = &description
			}
			if flags.Changed("max-parallel") {
				req.MaxParallelItems = &maxParallel
			}
			if flags.Changed("active") {
				req.IsActive = &active
			}
			if req == (api.UpdateQueueRequest{}) {
				return errors.New("nothing to update; pass at least one of --name, --description, --max-parallel, --active")
			}

			return ctx.withAccess(func(access flowaccess.Access) error {
				q, err := access.UpdateQueue(cmd.Context(), id, req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated queue %d (%s)\n", q.ID, q.Name)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New queue name")
	cmd.Flags().StringVar(&description, "description", "", "New queue description")
	cmd.Flags().IntVar(&maxParallel, "max-parallel", 0, "New concurrency ceiling")
	cmd.Flags().BoolVar(&active, "active", true, "Activate or deactivate the queue")
	return cmd
}

func newQueuePauseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "pause <queue-id>",
		Short: "Pause claiming from a queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseQueueID(args[0])
			if err != nil {
				return err
			}
			return ctx.withAccess(func(access flowaccess.Access) error {
				q, err := access.PauseQueue(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queue %d (%s) paused\n", q.ID, q.Name)
				return nil
			})
		},
	}
}

func newQueueResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <queue-id>",
		Short: "Resume claiming from a queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseQueueID(args[0])
			if err != nil {
				return err
			}
			return ctx.withAccess(func(access flowaccess.Access) error {
				q, err := access.ResumeQueue(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queue %d (%s) resumed\n", q.ID, q.Name)
				return nil
			})
		},
	}
}

func newQueueDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <queue-id>",
		Short: "Delete a queue and release its items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseQueueID(args[0])
			if err != nil {
				return err
			}
			return ctx.withAccess(func(access flowaccess.Access) error {
				if err := access.DeleteQueue(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queue %d deleted\n", id)
				return nil
			})
		},
	}
}

func newQueueStatsCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "stats <queue-id>",
		Short: "Show queue occupancy and throughput",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseQueueID(args[0])
			if err != nil {
				return err
			}
			return ctx.withAccess(func(access flowaccess.Access) error {
				stats, err := access.QueueStats(cmd.Context(), id)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, stats)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Queue:    %s (id %d)\n", stats.QueueName, stats.QueueID)
				fmt.Fprintf(out, "Active:   %s\n", yesNo(stats.IsActive))
				fmt.Fprintf(out, "Parallel: %d\n", stats.MaxParallelItems)
				fmt.Fprintf(out, "Total:    %d\n", stats.Total)
				if stats.AvgProcessingMS > 0 {
					fmt.Fprintf(out, "Avg time: %s\n", time.Duration(stats.AvgProcessingMS)*time.Millisecond)
				}
				rows := buildCountRows(stats.Counts)
				if len(rows) > 0 {
					printTable(cmd, []string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit stats as JSON")
	return cmd
}

func newQueueItemsCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "items <queue-id>",
		Short: "List a queue's items in claim order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseQueueID(args[0])
			if err != nil {
				return err
			}
			return ctx.withAccess(func(access flowaccess.Access) error {
				items, err := access.QueueItems(cmd.Context(), id, statuses)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.ItemListResponse{Items: items})
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				printTable(cmd, itemHeaders(), buildItemRows(items), itemAligns())
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by item status (repeatable)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit items as JSON")
	return cmd
}

func newQueueTimelineCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "timeline <queue-id>",
		Short: "Show a queue's recent flow events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseQueueID(args[0])
			if err != nil {
				return err
			}
			return ctx.withAccess(func(access flowaccess.Access) error {
				events, err := access.QueueTimeline(cmd.Context(), id, limit)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.TimelineResponse{Events: events})
				}
				if len(events) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No events recorded")
					return nil
				}
				printTable(cmd, eventHeaders(), buildEventRows(events), eventAligns())
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum number of events to show")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit events as JSON")
	return cmd
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <queue-id>",
		Short: "Remove a queue's completed and failed items",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseQueueID(args[0])
			if err != nil {
				return err
			}
			return ctx.withAccess(func(access flowaccess.Access) error {
				cleared, err := access.ClearQueue(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d terminal items\n", cleared)
				return nil
			})
		},
	}
}
