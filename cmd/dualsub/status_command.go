package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"dualsub/internal/api"
	"dualsub/internal/deps"
	"dualsub/internal/jobs"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon, job and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				status, err := client.Status(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, status)
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				for _, line := range renderSectionHeader("Daemon", colorize) {
					fmt.Fprintln(out, line)
				}
				running := renderStatusLine("dualsub", statusError, "Not running", colorize)
				if status.Running {
					running = renderStatusLine("dualsub", statusOK, "Running (pid "+strconv.Itoa(status.PID)+")", colorize)
				}
				fmt.Fprintln(out, running)
				if status.Catalog != "" {
					fmt.Fprintln(out, renderStatusLine("Catalog", statusInfo, status.Catalog, colorize))
				}
				if status.InboxDir != "" {
					fmt.Fprintln(out, renderStatusLine("Inbox", statusInfo, status.InboxDir, colorize))
				}
				if status.HistoryPath != "" {
					fmt.Fprintln(out, renderStatusLine("History", statusInfo, status.HistoryPath, colorize))
				}
				fmt.Fprintln(out)

				for _, line := range renderSectionHeader("Jobs", colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintln(out, renderStatusLine("Workers", statusInfo, strconv.Itoa(status.MaxConcurrentJobs), colorize))
				for _, s := range jobs.AllStatuses() {
					fmt.Fprintln(out, renderStatusLine(string(s), jobStatusKind(s), strconv.Itoa(status.JobCounts[string(s)]), colorize))
				}
				fmt.Fprintln(out)

				for _, line := range renderSectionHeader("Dependencies", colorize) {
					fmt.Fprintln(out, line)
				}
				for _, line := range dependencyLines(status.Dependencies, colorize) {
					fmt.Fprintln(out, line)
				}
				return nil
			})
		},
	}
}

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check ffmpeg, ffprobe and ffsubsync availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := deps.Check(cfg)
			if ctx.jsonOutput() {
				return writeJSON(cmd, statuses)
			}
			out := cmd.OutOrStdout()
			for _, line := range dependencyLines(statuses, shouldColorize(out)) {
				fmt.Fprintln(out, line)
			}
			if missing := deps.Missing(statuses); len(missing) > 0 {
				return fmt.Errorf("%d required dependencies missing", len(missing))
			}
			return nil
		},
	}
}
