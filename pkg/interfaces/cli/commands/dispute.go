package commands

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vsinha/tradeops/pkg/application/services"
	"github.com/vsinha/tradeops/pkg/domain/entities"
)

type disputeOptions struct {
	invoice string
	reason  string
}

func newDisputeCommand(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dispute",
		Short: "Raise and list disputes against delivered order groups",
	}
	cmd.AddCommand(newDisputeRaiseCommand(env), newDisputeListCommand(env))
	return cmd
}

func newDisputeRaiseCommand(env *environment) *cobra.Command {
	opts := &disputeOptions{}

	cmd := &cobra.Command{
		Use:   "raise ORDER-GROUP-ID",
		Short: "Raise a dispute against a delivered order group",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := entities.OrderGroupID(args[0])

			return env.run(cmd.Context(), func(ctx context.Context, store *storage, service *services.OrderService) error {
				if err := store.requireFile("disputes", store.files.Disputes); err != nil {
					return err
				}
				dispute, err := service.RaiseDispute(ctx, id, opts.invoice, opts.reason)
				if err != nil {
					return err
				}
				env.markDirty()
				fmt.Fprintf(cmd.OutOrStdout(), "⚠️  Raised %s against %s\n", dispute.Number, dispute.OrderGroupID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&opts.invoice, "invoice", "", "invoice number the dispute refers to")
	cmd.Flags().StringVar(&opts.reason, "reason", "", "reason for the dispute")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func newDisputeListCommand(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "list [ORDER-GROUP-ID]",
		Short: "List disputes, optionally for one order group",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id entities.OrderGroupID
			if len(args) == 1 {
				id = entities.OrderGroupID(args[0])
			}

			return env.run(cmd.Context(), func(ctx context.Context, _ *storage, service *services.OrderService) error {
				disputes, err := service.ListDisputes(ctx, id)
				if err != nil {
					return err
				}
				if len(disputes) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No disputes found.")
					return nil
				}

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "Number\tOrder Group\tInvoice\tRaised\tReason")
				for _, d := range disputes {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
						d.Number, d.OrderGroupID, d.InvoiceNumber, d.CreatedAt.Format("2006-01-02"), d.Reason)
				}
				return tw.Flush()
			})
		},
	}
}
