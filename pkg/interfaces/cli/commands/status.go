package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vsinha/tradeops/pkg/application/services"
	"github.com/vsinha/tradeops/pkg/domain/entities"
)

func newStatusCommand(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "status ORDER-GROUP-ID STATUS",
		Short: "Move an order group to a new status",
		Long: `Move an order group along Pending → Approved → InTransit →
OutForDelivery → Delivered, or cancel it. Cancelling releases every
quantity the group holds back to its contracts.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := entities.OrderGroupID(args[0])
			status, err := entities.ParseOrderStatus(args[1])
			if err != nil {
				return err
			}

			return env.run(cmd.Context(), func(ctx context.Context, store *storage, service *services.OrderService) error {
				if err := store.requireFile("records", store.files.Records); err != nil {
					return err
				}
				group, err := service.ChangeStatus(ctx, id, status)
				if err != nil {
					return err
				}
				env.markDirty()
				fmt.Fprintf(cmd.OutOrStdout(), "🔄 %s is now %s\n", group.ID, group.Status)
				return nil
			})
		},
	}
}
