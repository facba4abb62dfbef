package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"flowline/internal/api"
	"flowline/internal/flow"
	"flowline/internal/flowaccess"
	"flowline/internal/queue"
)

// refFlags carries the --ticket/--task pair used by every flow command that
// names a single item.
type refFlags struct {
	ticketID int64
	taskID   int64
}

func (f *refFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&f.ticketID, "ticket", 0, "Ticket id")
	cmd.Flags().Int64Var(&f.taskID, "task", 0, "Task id")
}

func (f *refFlags) resolve() (string, int64, error) {
	switch {
	case f.ticketID > 0 && f.taskID > 0:
		return "", 0, errors.New("specify only one of --ticket or --task")
	case f.ticketID > 0:
		return "ticket", f.ticketID, nil
	case f.taskID > 0:
		return "task", f.taskID, nil
	default:
		return "", 0, errors.New("specify one of --ticket or --task")
	}
}

func parseItemIDList(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		for _, piece := range strings.Split(arg, ",") {
			piece = strings.TrimSpace(piece)
			if piece == "" {
				continue
			}
			id, err := strconv.ParseInt(piece, 10, 64)
			if err != nil || id <= 0 {
				return nil, fmt.Errorf("invalid item id %q", piece)
			}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, errors.New("at least one item id is required")
	}
	return ids, nil
}

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var queueID int64
	var refs refFlags
	var priority int
	var maxAttempts int
	var estimatedMS int64
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Add a ticket or task to a queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			itemType, itemID, err := refs.resolve()
			if err != nil {
				return err
			}
			return ctx.withAccess(func(access flowaccess.Access) error {
				item, err := access.Enqueue(cmd.Context(), itemType, itemID, api.EnqueueBody{
					QueueID:               queueID,
					Priority:              priority,
					MaxAttempts:           maxAttempts,
					EstimatedProcessingMS: estimatedMS,
				})
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, item)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Enqueued %s into queue %d at position %d (priority %d)\n",
					refLabel(itemType, itemID), item.QueueID, item.Position, item.Priority)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&queueID, "queue", 0, "Target queue id")
	refs.register(cmd)
	cmd.Flags().IntVar(&priority, "priority", 0, "Claim priority; higher claims first")
	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "Attempt budget (0 uses the configured default)")
	cmd.Flags().Int64Var(&estimatedMS, "estimated-ms", 0, "Estimated processing time in milliseconds")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the queue item as JSON")
	_ = cmd.MarkFlagRequired("queue")
	return cmd
}

func newDequeueCommand(ctx *commandContext) *cobra.Command {
	var refs refFlags
	var force bool

	cmd := &cobra.Command{
		Use:   "dequeue",
		Short: "Remove a ticket or task from its queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			itemType, itemID, err := refs.resolve()
			if err != nil {
				return err
			}
			if force {
				return forceDequeue(cmd, ctx, itemType, itemID)
			}
			return ctx.withAccess(func(access flowaccess.Access) error {
				item, err := access.Dequeue(cmd.Context(), itemType, itemID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Dequeued %s from queue %d\n", refLabel(itemType, itemID), item.QueueID)
				return nil
			})
		},
	}

	refs.register(cmd)
	cmd.Flags().BoolVar(&force, "force", false, "Remove the item even while an agent is processing it")
	return cmd
}

// forceDequeue opens the store directly; the in-flight override is a local
// administrative action and is not routed over the daemon API.
func forceDequeue(cmd *cobra.Command, ctx *commandContext, itemType string, itemID int64) error {
	cfg, err := ctx.sessionConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	svc := flow.NewService(cfg, store, nil)
	ref := queue.ItemRef{Type: queue.ItemType(itemType), ID: itemID}
	item, err := svc.Dequeue(cmd.Context(), ref, true)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Dequeued %s from queue %d (forced)\n", refLabel(itemType, itemID), item.QueueID)
	return nil
}

func newMoveCommand(ctx *commandContext) *cobra.Command {
	var refs refFlags
	var toQueue int64
	var unqueue bool

	cmd := &cobra.Command{
		Use:   "move",
		Short: "Move a ticket or task to another queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			itemType, itemID, err := refs.resolve()
			if err != nil {
				return err
			}
			if unqueue == (toQueue > 0) {
				return errors.New("specify exactly one of --to-queue or --unqueue")
			}

			req := api.MoveRequest{ItemType: itemType, ItemID: itemID}
			if !unqueue {
				req.TargetQueueID = &toQueue
			}
			return ctx.withAccess(func(access flowaccess.Access) error {
				item, err := access.Move(cmd.Context(), req)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if item == nil {
					fmt.Fprintf(out, "Dequeued %s\n", refLabel(itemType, itemID))
					return nil
				}
				fmt.Fprintf(out, "Moved %s to queue %d at position %d\n", refLabel(itemType, itemID), item.QueueID, item.Position)
				return nil
			})
		},
	}

	refs.register(cmd)
	cmd.Flags().Int64Var(&toQueue, "to-queue", 0, "Destination queue id")
	cmd.Flags().BoolVar(&unqueue, "unqueue", false, "Remove the item from its queue instead of moving it")
	return cmd
}

func newReorderCommand(ctx *commandContext) *cobra.Command {
	var queueID int64
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "reorder <item-id,item-id,...>",
		Short: "Rewrite a queue's FIFO positions",
		Long: "Rewrite the FIFO positions of a queue's waiting items. The id list " +
			"must name every queued item exactly once. Higher priority still claims " +
			"first; the new positions order items of equal priority.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseItemIDList(args)
			if err != nil {
				return err
			}
			return ctx.withAccess(func(access flowaccess.Access) error {
				items, err := access.Reorder(cmd.Context(), api.ReorderRequest{
					QueueID:        queueID,
					OrderedItemIDs: ids,
				})
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.ItemListResponse{Items: items})
				}
				printTable(cmd, itemHeaders(), buildItemRows(items), itemAligns())
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&queueID, "queue", 0, "Queue to reorder")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the reordered items as JSON")
	_ = cmd.MarkFlagRequired("queue")
	return cmd
}

func newClaimCommand(ctx *commandContext) *cobra.Command {
	var queueID int64
	var agentID string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "claim",
		Short: "Claim the next task from a queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			agent := strings.TrimSpace(agentID)
			if agent == "" {
				agent = uuid.NewString()
			}
			return ctx.withAccess(func(access flowaccess.Access) error {
				item, err := access.NextTask(cmd.Context(), queueID, agent)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, api.NextTaskResponse{Item: item})
				}
				out := cmd.OutOrStdout()
				if item == nil {
					fmt.Fprintf(out, "No claimable items in queue %d\n", queueID)
					return nil
				}
				fmt.Fprintf(out, "Claimed %s from queue %d\n", refLabel(item.ItemType, item.ItemID), item.QueueID)
				printItemDetail(out, item)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&queueID, "queue", 0, "Queue to claim from")
	cmd.Flags().StringVar(&agentID, "agent", "", "Agent id recorded on the claim (generated when empty)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the claimed item as JSON")
	_ = cmd.MarkFlagRequired("queue")
	return cmd
}

func newStartCommand(ctx *commandContext) *cobra.Command {
	var refs refFlags
	var agentID string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Mark a claimed item as actively processing",
		RunE: func(cmd *cobra.Command, args []string) error {
			itemType, itemID, err := refs.resolve()
			if err != nil {
				return err
			}
			return ctx.withAccess(func(access flowaccess.Access) error {
				item, err := access.ProcessStart(cmd.Context(), api.ProcessStartRequest{
					ItemType: itemType,
					ItemID:   itemID,
					AgentID:  agentID,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Started %s (agent %s)\n", refLabel(itemType, itemID), orDash(item.AgentID))
				return nil
			})
		},
	}

	refs.register(cmd)
	cmd.Flags().StringVar(&agentID, "agent", "", "Agent id to record (keeps the claiming agent when empty)")
	return cmd
}

func newCompleteCommand(ctx *commandContext) *cobra.Command {
	var refs refFlags
	var notes string

	cmd := &cobra.Command{
		Use:   "complete",
		Short: "Mark an in-flight item as completed",
		RunE: func(cmd *cobra.Command, args []string) error {
			itemType, itemID, err := refs.resolve()
			if err != nil {
				return err
			}
			return ctx.withAccess(func(access flowaccess.Access) error {
				item, err := access.ProcessComplete(cmd.Context(), api.ProcessCompleteRequest{
					ItemType:        itemType,
					ItemID:          itemID,
					CompletionNotes: notes,
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Completed %s\n", refLabel(itemType, itemID))
				if item.ActualProcessingMS > 0 {
					fmt.Fprintf(out, "Processing time: %s\n", time.Duration(item.ActualProcessingMS)*time.Millisecond)
				}
				return nil
			})
		},
	}

	refs.register(cmd)
	cmd.Flags().StringVar(&notes, "notes", "", "Completion notes recorded on the item")
	return cmd
}

func newFailCommand(ctx *commandContext) *cobra.Command {
	var refs refFlags
	var errorMessage string

	cmd := &cobra.Command{
		Use:   "fail",
		Short: "Mark an in-flight item as failed",
		RunE: func(cmd *cobra.Command, args []string) error {
			itemType, itemID, err := refs.resolve()
			if err != nil {
				return err
			}
			return ctx.withAccess(func(access flowaccess.Access) error {
				item, err := access.ProcessFail(cmd.Context(), api.ProcessFailRequest{
					ItemType:     itemType,
					ItemID:       itemID,
					ErrorMessage: errorMessage,
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				switch item.Status {
				case "queued":
					fmt.Fprintf(out, "Requeued %s for retry (attempt %d/%d)\n", refLabel(itemType, itemID), item.Attempts, item.MaxAttempts)
				case "failed":
					fmt.Fprintf(out, "%s failed permanently after %d attempts\n", refLabel(itemType, itemID), item.Attempts)
				default:
					fmt.Fprintf(out, "%s is now %s\n", refLabel(itemType, itemID), statusLabel(item.Status))
				}
				return nil
			})
		},
	}

	refs.register(cmd)
	cmd.Flags().StringVar(&errorMessage, "error", "", "Error message recorded on the item")
	return cmd
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	var queueID int64

	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Requeue a queue's terminally failed items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access flowaccess.Access) error {
				count, err := access.RetryQueue(cmd.Context(), queueID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d failed items\n", count)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&queueID, "queue", 0, "Queue whose failed items to requeue")
	_ = cmd.MarkFlagRequired("queue")
	return cmd
}

func newUnqueuedCommand(ctx *commandContext) *cobra.Command {
	var projectID int64
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "unqueued",
		Short: "List a project's tickets and tasks not held by any queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access flowaccess.Access) error {
				resp, err := access.Unqueued(cmd.Context(), projectID)
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, resp)
				}
				out := cmd.OutOrStdout()
				if len(resp.Tickets) == 0 && len(resp.Tasks) == 0 {
					fmt.Fprintf(out, "No unqueued items for project %d\n", projectID)
					return nil
				}
				if len(resp.Tickets) > 0 {
					rows := make([][]string, 0, len(resp.Tickets))
					for _, t := range resp.Tickets {
						rows = append(rows, []string{fmt.Sprintf("%d", t.ID), t.Title, formatDisplayTime(t.CreatedAt)})
					}
					fmt.Fprintln(out, "Tickets:")
					printTable(cmd, []string{"ID", "Title", "Created"}, rows, []columnAlignment{alignRight, alignLeft, alignLeft})
				}
				if len(resp.Tasks) > 0 {
					rows := make([][]string, 0, len(resp.Tasks))
					for _, task := range resp.Tasks {
						rows = append(rows, []string{fmt.Sprintf("%d", task.ID), fmt.Sprintf("%d", task.TicketID), task.Title, formatDisplayTime(task.CreatedAt)})
					}
					fmt.Fprintln(out, "Tasks:")
					printTable(cmd, []string{"ID", "Ticket", "Title", "Created"}, rows, []columnAlignment{alignRight, alignRight, alignLeft, alignLeft})
				}
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&projectID, "project", 0, "Project id to inspect")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit unqueued items as JSON")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}
