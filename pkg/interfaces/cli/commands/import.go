package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vsinha/tradeops/pkg/application/services"
	"github.com/vsinha/tradeops/pkg/domain/entities"
	domainservices "github.com/vsinha/tradeops/pkg/domain/services"
	"github.com/vsinha/tradeops/pkg/infrastructure/repositories/csv"
)

type importOptions struct {
	catalog string
	records string
}

func newImportCommand(env *environment) *cobra.Command {
	opts := &importOptions{}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load a catalog and transaction records into storage",
		Long: `Import contracts from a catalog file (YAML, or CSV by extension) and
transaction records from a records CSV. Contracts replace any stored
contract with the same id. Records are checked against the catalog and
must not belong to an order group that is already stored; their document
numbers are recorded so new numbers never collide with them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.catalog == "" && opts.records == "" {
				return fmt.Errorf("nothing to import: give --catalog, --records or both")
			}

			return env.run(cmd.Context(), func(ctx context.Context, store *storage, _ *services.OrderService) error {
				out := cmd.OutOrStdout()
				validator := domainservices.NewConsistencyValidator()

				if opts.catalog != "" {
					if err := store.requireFile("catalog", store.files.Catalog); err != nil {
						return err
					}
				}
				if opts.records != "" {
					if err := store.requireFile("records", store.files.Records); err != nil {
						return err
					}
				}

				if opts.catalog != "" {
					fmt.Fprintf(out, "📂 Loading catalog from %s...\n", opts.catalog)
					contracts, err := loadCatalogFile(opts.catalog)
					if err != nil {
						return err
					}
					if result := validator.ValidateCatalog(contracts); !result.IsValid() {
						return validationFailure(out, "catalog", result)
					}
					if err := store.catalog.LoadContracts(ctx, contracts); err != nil {
						return fmt.Errorf("failed to store catalog: %w", err)
					}
					env.markDirty()
					fmt.Fprintf(out, "✅ Imported %d contract(s)\n", len(contracts))
				}

				if opts.records != "" {
					fmt.Fprintf(out, "📂 Loading records from %s...\n", opts.records)
					records, err := csv.NewLoader().LoadRecords(opts.records)
					if err != nil {
						return err
					}
					contracts, err := store.catalog.ListContracts(ctx)
					if err != nil {
						return err
					}
					if result := validator.ValidateRecords(records, contracts); !result.IsValid() {
						return validationFailure(out, "records", result)
					}

					ids := groupIDs(records)
					if err := ensureNewGroups(ctx, store, ids); err != nil {
						return err
					}
					if err := store.orders.ImportRecords(ctx, records); err != nil {
						return err
					}
					if err := store.seed(ctx, ids); err != nil {
						return fmt.Errorf("failed to record document numbers: %w", err)
					}
					env.markDirty()
					fmt.Fprintf(out, "✅ Imported %d record(s) in %d order group(s)\n", len(records), len(ids))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&opts.catalog, "catalog", "", "catalog file (.yaml or .csv)")
	cmd.Flags().StringVar(&opts.records, "records", "", "transaction records CSV")
	return cmd
}

func ensureNewGroups(ctx context.Context, store *storage, ids []string) error {
	for _, id := range ids {
		_, err := store.orders.GetOrderGroup(ctx, entities.OrderGroupID(id))
		var notFound *entities.NotFoundError
		switch {
		case errors.As(err, &notFound):
		case err != nil:
			return err
		default:
			return fmt.Errorf("order group %s already exists", id)
		}
	}
	return nil
}

func validationFailure(w io.Writer, what string, result *domainservices.ValidationResult) error {
	fmt.Fprintf(w, "❌ %s failed validation:\n", strings.ToUpper(what[:1])+what[1:])
	for _, msg := range result.Errors {
		fmt.Fprintf(w, "  - %s\n", msg)
	}
	return fmt.Errorf("%s failed validation with %d error(s)", what, len(result.Errors))
}
