package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vsinha/tradeops/pkg/application/dto"
	"github.com/vsinha/tradeops/pkg/application/services"
	"github.com/vsinha/tradeops/pkg/domain/entities"
)

type editOptions struct {
	show bool
}

func newEditCommand(env *environment) *cobra.Command {
	opts := &editOptions{}

	cmd := &cobra.Command{
		Use:   "edit ORDER-GROUP-ID [DRAFT.yaml]",
		Short: "Replace the lines of a pending order group",
		Long: `Edit a Pending order group. With --show the group is printed as a draft
that can be changed and passed back to edit. Lines keep their id; a line
may grow up to the remaining stock plus what it already holds. Lines left
out of the draft are removed and their stock released.`,
		Example: `  tradeops edit ORD-20240401-0002 --show > draft.yaml
  tradeops edit ORD-20240401-0002 draft.yaml`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := entities.OrderGroupID(args[0])
			if !opts.show && len(args) != 2 {
				return fmt.Errorf("edit requires a draft file unless --show is given")
			}

			var draft *dto.DraftOrderGroup
			if !opts.show {
				var err error
				if draft, err = readDraft(cmd.InOrStdin(), args[1]); err != nil {
					return err
				}
			}

			return env.run(cmd.Context(), func(ctx context.Context, store *storage, service *services.OrderService) error {
				if opts.show {
					group, err := service.GetOrderGroup(ctx, id)
					if err != nil {
						return err
					}
					encoder := yaml.NewEncoder(cmd.OutOrStdout())
					encoder.SetIndent(2)
					if err := encoder.Encode(dto.DraftFromOrderGroup(group)); err != nil {
						return fmt.Errorf("failed to write draft YAML: %w", err)
					}
					return encoder.Close()
				}

				if err := store.requireFile("records", store.files.Records); err != nil {
					return err
				}
				group, err := service.EditOrderGroup(ctx, id, *draft)
				if err != nil {
					return reportLineErrors(cmd.ErrOrStderr(), err)
				}
				env.markDirty()
				printGroupSummary(cmd.OutOrStdout(), "✏️  Edited", group)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&opts.show, "show", false, "print the order group as an editable draft")
	return cmd
}
