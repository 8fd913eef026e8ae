package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"vitrine/internal/config"
	"vitrine/internal/records"
)

func newDiscoverCommand(ctx *commandContext) *cobra.Command {
	var pages int

	cmd := &cobra.Command{
		Use:   "discover <query>",
		Short: "Enqueue keyword-search jobs for the discovery workers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if pages < 1 {
				pages = 1
			}
			return ctx.withStore(func(_ *config.Config, store *records.Store) error {
				for page := 1; page <= pages; page++ {
					job, err := store.EnqueueJob(cmd.Context(), "search", args[0], page)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Enqueued job %d: %q page %d\n", job.ID, job.Query, job.Page)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&pages, "pages", 1, "Number of result pages to enqueue")
	return cmd
}

func newJobsCommand(ctx *commandContext) *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect the discovery job queue",
	}
	jobsCmd.AddCommand(newJobsStatusCommand(ctx))
	return jobsCmd
}

func newJobsStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show discovery job counts per state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *records.Store) error {
				stats, err := store.JobStats(cmd.Context())
				if err != nil {
					return err
				}
				total := 0
				colorize := shouldColorize(cmd.OutOrStdout())
				rows := make([][]string, 0, len(stats)+1)
				for _, status := range []records.JobStatus{records.JobPending, records.JobProcessing, records.JobCompleted, records.JobError} {
					count := stats[status]
					total += count
					rows = append(rows, []string{colorizeStatus(string(status), colorize), strconv.Itoa(count)})
				}
				if total == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No discovery jobs")
					return nil
				}
				rows = append(rows, []string{"total", strconv.Itoa(total)})
				out := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
}
