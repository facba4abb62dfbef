package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"flowline/internal/api"
	"flowline/internal/daemonctl"
	"flowline/internal/flowaccess"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show system and queue status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.sessionConfig()
			if err != nil {
				return err
			}
			snapshot, err := daemonctl.BuildStatusSnapshot(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, snapshot)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("System Status", colorize) {
				fmt.Fprintln(stdout, line)
			}
			for _, line := range daemonctl.BuildSystemChecks(cfg, snapshot) {
				fmt.Fprintln(stdout, renderStatusLine(line.Label, statusKindFromSeverity(line.Severity), line.Detail, colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Queue Totals", colorize) {
				fmt.Fprintln(stdout, line)
			}
			table := renderTable([]string{"Status", "Count"}, buildTotalsRows(snapshot.Daemon.Totals), []columnAlignment{alignLeft, alignRight})
			fmt.Fprint(stdout, table)

			fmt.Fprintln(stdout)
			for _, line := range renderSectionHeader("Queues", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if len(snapshot.Queues) == 0 {
				fmt.Fprintln(stdout, "No queues")
				return nil
			}
			table = renderTable(queueHeaders(), buildQueueRows(snapshot.Queues), queueAligns())
			fmt.Fprint(stdout, table)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the status snapshot as JSON")
	return cmd
}

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Inspect database health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withAccess(func(access flowaccess.Access) error {
				report, err := access.Health(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOut {
					return writeJSON(cmd, report)
				}
				printHealthReport(cmd.OutOrStdout(), report)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the health report as JSON")
	return cmd
}

func printHealthReport(out io.Writer, report *api.HealthReport) {
	fmt.Fprintf(out, "Database:    %s\n", orDash(report.DBPath))
	fmt.Fprintf(out, "Exists:      %s\n", yesNo(report.DatabaseExists))
	fmt.Fprintf(out, "Readable:    %s\n", yesNo(report.DatabaseReadable))
	fmt.Fprintf(out, "Tables:      %s\n", yesNo(report.TablesPresent))
	if len(report.MissingTables) > 0 {
		fmt.Fprintf(out, "Missing:     %s\n", strings.Join(report.MissingTables, ", "))
	}
	fmt.Fprintf(out, "Integrity:   %s\n", yesNo(report.IntegrityCheck))
	fmt.Fprintf(out, "Total items: %d\n", report.TotalItems)
	if report.Error != "" {
		fmt.Fprintf(out, "Error:       %s\n", report.Error)
	}
}
