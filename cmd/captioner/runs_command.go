package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"captioner/internal/api"
	"captioner/internal/runlog"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var statuses []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent runs from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(ctx, func(store *runlog.Store) error {
				filters := make([]runlog.Status, 0, len(statuses))
				for _, status := range statuses {
					if trimmed := strings.TrimSpace(status); trimmed != "" {
						filters = append(filters, runlog.Status(trimmed))
					}
				}
				runs, err := store.List(cmd.Context(), limit, filters...)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.RunListResponse{Runs: api.FromRuns(runs)})
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				fmt.Fprintln(out, renderRunsTable(runs, out))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to show")
	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by status (running, succeeded, failed)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print runs as JSON")

	cmd.AddCommand(newRunsShowCommand(ctx))
	return cmd
}

func newRunsShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withJournal(ctx, func(store *runlog.Store) error {
				run, err := store.Get(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.RunResponse{Run: api.FromRun(*run)})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Run:       %s\n", run.ID)
				fmt.Fprintf(out, "Status:    %s\n", colorStatus(out, string(run.Status)))
				fmt.Fprintf(out, "Stage:     %s\n", run.Stage)
				fmt.Fprintf(out, "Source:    %s\n", run.Source)
				fmt.Fprintf(out, "File:      %s\n", run.Filename)
				fmt.Fprintf(out, "Segments:  %d\n", run.Segments)
				fmt.Fprintf(out, "Created:   %s\n", run.CreatedAt.Local().Format(time.DateTime))
				if run.FinishedAt != nil {
					fmt.Fprintf(out, "Duration:  %s\n", run.Duration().Round(time.Millisecond))
				}
				if run.VideoURL != "" {
					fmt.Fprintf(out, "Video URL: %s\n", run.VideoURL)
				}
				if run.Status == runlog.StatusFailed {
					fmt.Fprintf(out, "Failed at: %s (%s)\n", run.FailureStage, run.FailureKind)
					fmt.Fprintf(out, "Error:     %s\n", run.FailureMessage)
				}
				if run.CleanupFailures > 0 {
					fmt.Fprintf(out, "Cleanup:   %d file(s) left behind\n", run.CleanupFailures)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the run as JSON")
	return cmd
}

func withJournal(ctx *commandContext, fn func(*runlog.Store) error) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	store, err := runlog.Open(cfg.RunsDBPath())
	if err != nil {
		return fmt.Errorf("open run journal: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func renderRunsTable(runs []runlog.Run, writer io.Writer) string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		duration := "-"
		if run.FinishedAt != nil {
			duration = run.Duration().Round(time.Second).String()
		}
		stage := run.Stage
		if run.Status == runlog.StatusFailed && run.FailureStage != "" {
			stage = run.FailureStage
		}
		rows = append(rows, []string{
			shortID(run.ID),
			colorStatus(writer, string(run.Status)),
			stage,
			string(run.Source),
			run.Filename,
			strconv.Itoa(run.Segments),
			duration,
			run.CreatedAt.Local().Format(time.DateTime),
		})
	}
	return renderTable(
		[]string{"ID", "Status", "Stage", "Source", "File", "Segments", "Duration", "Created"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
