package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/vsinha/tradeops/pkg/application/services"
	"github.com/vsinha/tradeops/pkg/domain/entities"
	domainservices "github.com/vsinha/tradeops/pkg/domain/services"
)

type resolveOptions struct {
	kind     string
	contract string
	item     string
	unit     string
	quantity string
	reason   string
	held     string
}

func newResolveCommand(env *environment) *cobra.Command {
	opts := &resolveOptions{}

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Price one line and check it against the contract",
		Long: `Resolve one line the way a form does when an item, unit or quantity
changes: the rate follows the unit, the amount is quantity × rate and the
quantity may not exceed the remaining stock plus what the line already
holds (--held). Nothing is committed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := entities.ParseDocumentKind(opts.kind)
			if err != nil {
				return err
			}
			held, err := decimal.NewFromString(opts.held)
			if err != nil {
				return fmt.Errorf("invalid --held quantity: %s", opts.held)
			}

			return env.run(cmd.Context(), func(ctx context.Context, store *storage, service *services.OrderService) error {
				resolved, err := service.ResolveLine(ctx, kind, domainservices.LineRequest{
					ContractID:        entities.ContractID(opts.contract),
					ItemName:          entities.ItemName(opts.item),
					Unit:              entities.UnitOfMeasure(opts.unit),
					Quantity:          opts.quantity,
					Reason:            opts.reason,
					ExistingCommitted: held,
				})

				out := cmd.OutOrStdout()
				line := resolved.Line
				if line.ItemName != "" {
					fmt.Fprintf(out, "Item:     %s (%s)\n", line.ItemName, line.Unit)
					fmt.Fprintf(out, "Quantity: %s\n", line.Quantity)
					fmt.Fprintf(out, "Rate:     %s\n", line.Rate.StringFixed(2))
					fmt.Fprintf(out, "Amount:   %s\n", line.Amount.StringFixed(2))
					warnUnknownUnit(ctx, cmd.ErrOrStderr(), store, opts.contract, line)
				}
				var notFound *entities.NotFoundError
				if !errors.As(err, &notFound) {
					fmt.Fprintf(out, "Ceiling:  %s\n", resolved.Ceiling)
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(out, "✅ Line is valid")
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&opts.kind, "kind", "k", "Order", "document kind: Order, PurchaseOrder or SaleReturn")
	cmd.Flags().StringVar(&opts.contract, "contract", "", "contract id")
	cmd.Flags().StringVar(&opts.item, "item", "", "item name")
	cmd.Flags().StringVar(&opts.unit, "unit", "", "unit of measure (default: the item's base unit)")
	cmd.Flags().StringVarP(&opts.quantity, "qty", "q", "", "quantity in the selected unit")
	cmd.Flags().StringVar(&opts.reason, "reason", "", "line reason, required for sale returns")
	cmd.Flags().StringVar(&opts.held, "held", "0", "quantity the line already holds when editing")
	_ = cmd.MarkFlagRequired("contract")
	_ = cmd.MarkFlagRequired("item")
	_ = cmd.MarkFlagRequired("qty")
	return cmd
}

// warnUnknownUnit flags a unit missing from the item's conversion table,
// which was priced at the base rate
func warnUnknownUnit(ctx context.Context, w io.Writer, store *storage, contractID string, line entities.LineItem) {
	item, err := store.catalog.GetItem(ctx, entities.ContractID(contractID), line.ItemName)
	if err != nil || domainservices.IsKnownUnit(item, line.Unit) {
		return
	}
	fmt.Fprintf(w, "⚠️  %s has no conversion for %s; priced at the %s rate\n", item.Name, line.Unit, item.BaseUnit)
}
