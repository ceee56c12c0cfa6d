package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"dualsub/internal/api"
	"dualsub/internal/history"
	"dualsub/internal/jobs"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var statusFlag string
	var typeFlag string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived jobs, most recently finished first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := history.Filter{Limit: limit, Type: jobs.Type(strings.TrimSpace(typeFlag))}
			if value := strings.TrimSpace(statusFlag); value != "" {
				status, err := jobs.ParseStatus(value)
				if err != nil {
					return err
				}
				filter.Status = status
			}
			return ctx.withClient(func(client *api.Client) error {
				entries, err := client.History(cmd.Context(), filter)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, entries)
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No archived jobs")
					return nil
				}
				fmt.Fprint(cmd.OutOrStdout(), renderTable(historyColumns, buildHistoryRows(entries)))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&statusFlag, "status", "s", "", "Only show entries with this status")
	cmd.Flags().StringVarP(&typeFlag, "type", "t", "", "Only show entries of this job type")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show")
	return cmd
}
