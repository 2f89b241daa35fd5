package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vsinha/tradeops/pkg/application/services"
	"github.com/vsinha/tradeops/pkg/domain/entities"
	"github.com/vsinha/tradeops/pkg/interfaces/cli/output"
)

type viewOptions struct {
	kind   string
	format string
	output string
}

func newViewCommand(env *environment) *cobra.Command {
	opts := &viewOptions{}

	cmd := &cobra.Command{
		Use:   "view",
		Short: "Show order groups of one kind as a merged table",
		Long: `Show every order group of one kind, one row per line item. Group and
allocation columns are printed once per group and allocation; the XLSX
format merges them into real spanning cells.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := entities.ParseDocumentKind(opts.kind)
			if err != nil {
				return err
			}
			if opts.format == output.FormatXLSX && opts.output == "" {
				return fmt.Errorf("xlsx format requires --output")
			}

			return env.run(cmd.Context(), func(ctx context.Context, _ *storage, service *services.OrderService) error {
				rows, err := service.View(ctx, kind)
				if err != nil {
					return err
				}

				var w io.Writer = cmd.OutOrStdout()
				if opts.output != "" {
					file, err := os.Create(opts.output)
					if err != nil {
						return fmt.Errorf("failed to create output file: %w", err)
					}
					defer file.Close()
					w = file
				}

				if err := output.Render(w, rows, opts.format); err != nil {
					return err
				}
				if opts.output != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "💾 Wrote %d rows to %s\n", len(rows), opts.output)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&opts.kind, "kind", "k", "Order", "document kind: Order, PurchaseOrder or SaleReturn")
	cmd.Flags().StringVarP(&opts.format, "format", "f", output.FormatText, "output format: text, json, csv, xlsx or html")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "write to a file instead of stdout")
	return cmd
}
