package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dualsub/internal/api"
	"dualsub/internal/jobs"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and manage jobs",
	}

	jobsCmd.AddCommand(newJobsListCommand(ctx))
	jobsCmd.AddCommand(newJobsShowCommand(ctx))
	jobsCmd.AddCommand(newJobsWatchCommand(ctx))
	jobsCmd.AddCommand(newJobsCancelCommand(ctx))
	jobsCmd.AddCommand(newJobsCleanupCommand(ctx))

	return jobsCmd
}

func newJobsListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(statusFlags)
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				list, err := client.Jobs(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, list)
				}
				if len(list) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(jobColumns, buildJobRows(list)))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (pending, running, completed, failed, cancelled)")
	return cmd
}

func newJobsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show a job with its result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				job, err := client.Job(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, job)
				}
				for _, line := range jobDetailLines(job, time.Now()) {
					fmt.Fprintln(cmd.OutOrStdout(), line)
				}
				return nil
			})
		},
	}
}

func newJobsWatchCommand(ctx *commandContext) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch <job-id>",
		Short: "Follow a job's progress until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if interval <= 0 {
				return errors.New("--interval must be positive")
			}
			return ctx.withClient(func(client *api.Client) error {
				out := cmd.OutOrStdout()
				var last string
				for {
					progress, err := client.Progress(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					line := fmt.Sprintf("[%s] %s %s", progress.Status, formatProgress(progress.Progress), progress.Progress.CurrentStep)
					if item := progress.Progress.CurrentItem; item != "" {
						line += " - " + item
					}
					if eta := progress.Progress.EstimatedTimeRemaining; eta != "" && progress.Status.IsActive() {
						line += " (" + eta + " remaining)"
					}
					if line != last {
						fmt.Fprintln(out, line)
						last = line
					}
					if progress.Status.IsTerminal() {
						if progress.Status == jobs.StatusFailed {
							return fmt.Errorf("job failed: %s", progress.Error)
						}
						return nil
					}
					select {
					case <-cmd.Context().Done():
						return cmd.Context().Err()
					case <-time.After(interval):
					}
				}
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Polling interval")
	return cmd
}

func newJobsCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a pending or running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				job, err := client.Cancel(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, job)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s cancelled\n", job.ID)
				return nil
			})
		},
	}
}

func newJobsCleanupCommand(ctx *commandContext) *cobra.Command {
	var retentionHours int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove finished jobs older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			if retentionHours < 0 {
				return errors.New("--retention-hours must be >= 0")
			}
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Cleanup(cmd.Context(), retentionHours)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d jobs older than %dh\n", resp.Removed, resp.RetentionHours)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&retentionHours, "retention-hours", 0, "Override the configured retention")
	return cmd
}
