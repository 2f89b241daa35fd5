package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vsinha/tradeops/pkg/application/dto"
	"github.com/vsinha/tradeops/pkg/application/services"
	"github.com/vsinha/tradeops/pkg/domain/entities"
	"github.com/vsinha/tradeops/pkg/infrastructure/repositories/yamlfile"
)

func newSubmitCommand(env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "submit DRAFT.yaml",
		Short: "Validate a draft order group and commit it",
		Long: `Submit a draft order group read from a YAML file ("-" reads stdin).
Every line is checked; if any line is invalid all errors are listed and
nothing is committed. A valid draft receives the next document number for
its kind and its quantities are taken from the contracts.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			draft, err := readDraft(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			return env.run(cmd.Context(), func(ctx context.Context, store *storage, service *services.OrderService) error {
				if err := store.requireFile("records", store.files.Records); err != nil {
					return err
				}
				group, err := service.SubmitOrderGroup(ctx, *draft)
				if err != nil {
					return reportLineErrors(cmd.ErrOrStderr(), err)
				}
				env.markDirty()
				printGroupSummary(cmd.OutOrStdout(), "✅ Submitted", group)
				return nil
			})
		},
	}
}

func readDraft(stdin io.Reader, path string) (*dto.DraftOrderGroup, error) {
	if path == "-" {
		return yamlfile.ReadDraft(stdin)
	}
	return yamlfile.LoadDraft(path)
}

// reportLineErrors lists every line error of a ValidationError on w
func reportLineErrors(w io.Writer, err error) error {
	var validation *entities.ValidationError
	if !errors.As(err, &validation) {
		return err
	}
	fmt.Fprintf(w, "❌ %d invalid line(s):\n", len(validation.Lines))
	for _, line := range validation.Lines {
		fmt.Fprintf(w, "  - %v\n", line)
	}
	return fmt.Errorf("draft rejected: %d invalid line(s)", len(validation.Lines))
}

func printGroupSummary(w io.Writer, verb string, group *entities.OrderGroup) {
	fmt.Fprintf(w, "%s %s (%s, %s)\n", verb, group.ID, group.Kind, group.Status)
	fmt.Fprintf(w, "  Allocations: %d\n", len(group.Allocations))
	fmt.Fprintf(w, "  Lines: %d\n", group.LineCount())
	fmt.Fprintf(w, "  Grand total: %s\n", group.GrandTotal().StringFixed(2))
}
