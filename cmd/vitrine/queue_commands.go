package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"vitrine/internal/config"
	"vitrine/internal/records"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the record queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show record counts per lifecycle state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *records.Store) error {
				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				if health.Total == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				colorize := shouldColorize(cmd.OutOrStdout())
				rows := [][]string{
					{colorizeStatus("idle", colorize), strconv.Itoa(health.Idle)},
					{colorizeStatus("processing", colorize), strconv.Itoa(health.Processing)},
					{colorizeStatus("error", colorize), strconv.Itoa(health.Error)},
					{colorizeStatus("done", colorize), strconv.Itoa(health.Done)},
					{colorizeStatus("quarantined", colorize), strconv.Itoa(health.Quarantined)},
					{"closed", strconv.Itoa(health.Closed)},
					{"total", strconv.Itoa(health.Total)},
				}
				out := renderTable([]string{"Status", "Count"}, rows, []columnAlignment{alignLeft, alignRight})
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List product records",
		RunE: func(cmd *cobra.Command, args []string) error {
			var statuses []records.Status
			for _, raw := range listStatuses {
				status, ok := records.ParseStatus(raw)
				if !ok {
					return fmt.Errorf("unknown status %q (known: %s)", raw, knownStatuses())
				}
				statuses = append(statuses, status)
			}
			return ctx.withStore(func(_ *config.Config, store *records.Store) error {
				items, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				colorize := shouldColorize(cmd.OutOrStdout())
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						strconv.FormatInt(item.ID, 10),
						truncate(item.Name, 48),
						colorizeStatus(string(item.Status), colorize),
						fmt.Sprintf("%d/3", item.StagesCompleted()),
						yesNo(item.IsClosed),
						item.CreatedAt.Local().Format(time.DateTime),
					})
				}
				out := renderTable(
					[]string{"ID", "Name", "Status", "Stages", "Closed", "Created"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVar(&listStatuses, "status", nil, "Filter by status (repeatable)")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one record including its specs sidecar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid record id %q", args[0])
			}
			return ctx.withStore(func(_ *config.Config, store *records.Store) error {
				product, err := store.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if product == nil {
					return fmt.Errorf("record %d not found", id)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "ID:          %d\n", product.ID)
				fmt.Fprintf(out, "External ID: %d\n", product.ExternalID)
				fmt.Fprintf(out, "Name:        %s\n", product.Name)
				fmt.Fprintf(out, "Status:      %s\n", product.Status)
				fmt.Fprintf(out, "Closed:      %s\n", yesNo(product.IsClosed))
				fmt.Fprintf(out, "Terminal:    %s\n", yesNo(product.Terminal()))
				fmt.Fprintf(out, "Stages:      inventory=%s stock=%s listing=%s\n",
					yesNo(product.MSCreated), yesNo(product.StockAdded), yesNo(product.KaspiCreated))
				fmt.Fprintf(out, "Attempts:    %d\n", product.Attempts)
				if product.NextRetryAt != nil {
					fmt.Fprintf(out, "Next retry:  %s\n", product.NextRetryAt.Local().Format(time.DateTime))
				}
				if product.Specs.SKU != "" {
					fmt.Fprintf(out, "SKU:         %s\n", product.Specs.SKU)
				}
				if product.Specs.CategoryCode != "" {
					fmt.Fprintf(out, "Category:    %s (%s)\n", product.Specs.CategoryCode, product.Specs.CategoryType)
				}
				if product.Specs.UploadID != "" {
					fmt.Fprintf(out, "Upload:      %s (%s)\n", product.Specs.UploadID, product.Specs.ModerationStatus)
				}
				fmt.Fprintf(out, "Stock:       warehouse=%d global=%d\n", product.Specs.Stock, product.Specs.GlobalStock)
				if len(product.Specs.Log) > 0 {
					fmt.Fprintln(out, "Log:")
					for _, entry := range product.Specs.Log {
						fmt.Fprintf(out, "  %s\n", entry)
					}
				}
				return nil
			})
		},
	}
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Release quarantined records back into the queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid record id %q", arg)
				}
				ids = append(ids, id)
			}
			return ctx.withStore(func(_ *config.Config, store *records.Store) error {
				released, err := store.ReleaseQuarantined(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Released %d record(s)\n", released)
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete one record regardless of its state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid record id %q", args[0])
			}
			return ctx.withStore(func(_ *config.Config, store *records.Store) error {
				removed, err := store.Remove(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("record %d not found", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed record %d\n", id)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove completed records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *records.Store) error {
				removed, err := store.ClearDone(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d record(s)\n", removed)
				return nil
			})
		},
	}
}

func knownStatuses() string {
	names := make([]string, 0, len(records.AllStatuses()))
	for _, status := range records.AllStatuses() {
		names = append(names, string(status))
	}
	return strings.Join(names, ", ")
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
