package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"vitrine/internal/daemon"
	"vitrine/internal/logging"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var once bool
	var skipDiscovery bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the publishing conveyor",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			d, err := daemon.New(cfg, logger, daemon.Options{SkipDiscovery: skipDiscovery})
			if err != nil {
				return err
			}
			defer d.Close()

			if once {
				if err := d.Prepare(cmd.Context()); err != nil {
					return err
				}
				return d.Conveyor().RunOnce(cmd.Context())
			}

			runCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			if err := d.Start(runCtx); err != nil {
				return err
			}
			<-runCtx.Done()
			d.Stop()
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Process a single poll batch and exit")
	cmd.Flags().BoolVar(&skipDiscovery, "skip-discovery", false, "Do not start the discovery job workers")
	return cmd
}
