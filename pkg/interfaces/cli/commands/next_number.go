package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vsinha/tradeops/pkg/application/services"
	"github.com/vsinha/tradeops/pkg/domain/entities"
	domainservices "github.com/vsinha/tradeops/pkg/domain/services"
)

type nextNumberOptions struct {
	kind     string
	prefix   string
	date     string
	existing []string
	reserve  bool
}

func newNextNumberCommand(env *environment) *cobra.Command {
	opts := &nextNumberOptions{}

	cmd := &cobra.Command{
		Use:   "next-number",
		Short: "Show or reserve the next document number",
		Long: `Show the next PREFIX-YYYYMMDD-NNNN number for a day.

With --existing the number is computed from the given numbers alone and
storage is not opened. Otherwise the numbers already issued by storage
are used; --reserve also records the number so no one else receives it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			date := env.clock.Now()
			if opts.date != "" {
				parsed, err := time.Parse(services.FulfillmentDateLayout, opts.date)
				if err != nil {
					return fmt.Errorf("invalid --date: %s (expected YYYY-MM-DD)", opts.date)
				}
				date = parsed
			}

			prefix := opts.prefix
			if prefix == "" {
				kind, err := entities.ParseDocumentKind(opts.kind)
				if err != nil {
					return err
				}
				prefix = domainservices.PrefixFor(kind, env.config.Prefixes)
			}

			if cmd.Flags().Changed("existing") {
				fmt.Fprintln(cmd.OutOrStdout(), domainservices.NextDocumentNumber(prefix, opts.existing, date))
				return nil
			}

			return env.run(cmd.Context(), func(ctx context.Context, store *storage, service *services.OrderService) error {
				if !opts.reserve {
					number, err := service.PeekDocumentNumber(ctx, prefix, date)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), number)
					return nil
				}

				if err := store.requireFile("numbers", store.files.Numbers); err != nil {
					return err
				}
				number, err := store.sequences.Reserve(ctx, prefix, date)
				if err != nil {
					return fmt.Errorf("failed to reserve %s number: %w", prefix, err)
				}
				env.markDirty()
				env.logger.Info("document number reserved", "number", number)
				fmt.Fprintln(cmd.OutOrStdout(), number)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&opts.kind, "kind", "k", "Order", "document kind whose prefix is used")
	cmd.Flags().StringVarP(&opts.prefix, "prefix", "p", "", "document prefix, overriding --kind (e.g. DISP)")
	cmd.Flags().StringVarP(&opts.date, "date", "d", "", "issue date YYYY-MM-DD (default: today)")
	cmd.Flags().StringSliceVar(&opts.existing, "existing", nil, "numbers already issued; skips storage")
	cmd.Flags().BoolVar(&opts.reserve, "reserve", false, "reserve the number in storage")
	return cmd
}
