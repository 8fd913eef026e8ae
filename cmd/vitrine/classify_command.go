package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"vitrine/internal/classify"
	"vitrine/internal/logging"
	"vitrine/internal/services/kaspi"
	"vitrine/internal/services/llm"
)

// newClassifyCommand runs the inference engine against ad-hoc text without
// touching the record store. Useful for tuning the keyword table.
func newClassifyCommand(ctx *commandContext) *cobra.Command {
	var description string
	var withAttributes bool

	cmd := &cobra.Command{
		Use:   "classify <name>",
		Short: "Dry-run category and attribute inference for product text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			engine := classify.NewEngine(
				kaspi.NewConfiguredClient(cfg),
				llm.NewConfiguredClient(cfg),
				cfg,
				logging.NewNop(),
			)

			classification, err := engine.Classify(cmd.Context(), args[0], description)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if classification.Restricted() {
				fmt.Fprintln(out, "Result: restricted (record would be closed)")
				return nil
			}
			fmt.Fprintf(out, "Category: %s\n", classification.Code)
			if classification.Type != "" {
				fmt.Fprintf(out, "Type:     %s\n", classification.Type)
			}
			fmt.Fprintf(out, "Tier:     %s\n", classification.Tier)

			if !withAttributes {
				return nil
			}
			attrs, err := engine.Attributes(cmd.Context(), classification, args[0], description)
			if err != nil {
				return err
			}
			encoded, err := json.MarshalIndent(attrs, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Attributes:\n%s\n", encoded)
			return nil
		},
	}

	cmd.Flags().StringVarP(&description, "description", "d", "", "Product description text")
	cmd.Flags().BoolVar(&withAttributes, "attributes", false, "Also generate the attribute map")
	return cmd
}
