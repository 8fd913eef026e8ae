package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vitrine/internal/config"
	"vitrine/internal/feed"
	"vitrine/internal/logging"
	"vitrine/internal/records"
)

// newFeedCommand regenerates the feed artifacts from published records
// without running the conveyor.
func newFeedCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "feed",
		Short: "Regenerate the consolidated offer feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *records.Store) error {
				published, err := store.Published(cmd.Context())
				if err != nil {
					return err
				}
				writer := feed.NewWriter(cfg, logging.NewNop())
				if err := writer.Regenerate(published); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Feed written with %d own offer(s) to %d path(s)\n",
					len(published), len(cfg.Feed.OutputPaths))
				return nil
			})
		},
	}
}
