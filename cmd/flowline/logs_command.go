package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"flowline/internal/client"
	"flowline/internal/config"
	"flowline/internal/logs"
)

const logFollowWait = time.Second

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var follow bool
	var lines int

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display daemon logs",
		Long: "Print the daemon's current log file. Lines are read through the daemon " +
			"API when one is serving and directly from the log directory otherwise.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.sessionConfig()
			if err != nil {
				return err
			}
			if apiClient, err := client.Dial(cfg.Paths.APIBind, cfg.Paths.APIToken); err == nil {
				return tailViaDaemon(cmd, apiClient, lines, follow)
			}
			return tailLogFile(cmd, cfg, lines, follow)
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of trailing lines to show")
	return cmd
}

func tailViaDaemon(cmd *cobra.Command, apiClient *client.Client, lines int, follow bool) error {
	ctx := cmd.Context()
	offset := int64(-1)
	limit := lines
	wait := time.Duration(0)
	printed := false

	for {
		resp, err := apiClient.LogTail(ctx, offset, limit, wait)
		if err != nil {
			return fmt.Errorf("tail logs: %w", err)
		}
		for _, line := range resp.Lines {
			fmt.Fprintln(cmd.OutOrStdout(), line)
			printed = true
		}
		offset = resp.Offset
		if !follow {
			if !printed {
				fmt.Fprintln(cmd.OutOrStdout(), "No log entries available")
			}
			return nil
		}
		limit = 0
		wait = logFollowWait
		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}

func tailLogFile(cmd *cobra.Command, cfg *config.Config, lines int, follow bool) error {
	ctx := cmd.Context()
	path := logs.CurrentPath(cfg.Paths.LogDir)
	opts := logs.TailOptions{Offset: -1, Limit: lines}
	printed := false

	for {
		result, err := logs.Tail(ctx, path, opts)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("tail logs: %w", err)
		}
		for _, line := range result.Lines {
			fmt.Fprintln(cmd.OutOrStdout(), line)
			printed = true
		}
		if !follow {
			if !printed {
				fmt.Fprintln(cmd.OutOrStdout(), "No log entries available")
			}
			return nil
		}
		opts = logs.TailOptions{Offset: result.Offset, Wait: logFollowWait}
		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
}
