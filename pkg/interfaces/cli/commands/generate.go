package commands

import (
	"bytes"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/vsinha/tradeops/pkg/domain/entities"
	domainservices "github.com/vsinha/tradeops/pkg/domain/services"
	"github.com/vsinha/tradeops/pkg/infrastructure/repositories/csv"
	"github.com/vsinha/tradeops/pkg/infrastructure/repositories/yamlfile"
)

// GenerateConfig holds configuration for scenario generation
type GenerateConfig struct {
	Contracts int    // Number of contracts
	Items     int    // Items per contract
	Groups    int    // Number of order groups
	OutputDir string // Output directory for generated files
	Seed      int64  // Random seed for reproducible generation
	Date      time.Time
}

// scenarioGenerator builds a random but reproducible catalog and record set
type scenarioGenerator struct {
	config GenerateConfig
	rand   *rand.Rand
}

var (
	counterparties = []string{"Acme Traders", "Delta Foods", "Ganga Edibles", "Sahyadri Agro", "Coastal Grains", "Northern Mills"}
	commodities    = []struct {
		name     string
		baseUnit string
		rate     int64
		packs    map[string]int64
	}{
		{"Mustard Oil", "Ltrs", 125, map[string]int64{"Box": 12, "Can": 15}},
		{"Sunflower Oil", "Ltrs", 140, map[string]int64{"Can": 15}},
		{"Rice", "Kg", 60, map[string]int64{"Bag": 25, "Quintal": 100}},
		{"Wheat", "Kg", 32, map[string]int64{"Bag": 50}},
		{"Sugar", "Kg", 45, map[string]int64{"Bag": 50}},
		{"Toor Dal", "Kg", 110, map[string]int64{"Bag": 30}},
		{"Tea", "Kg", 420, map[string]int64{"Carton": 20}},
		{"Salt", "Kg", 20, nil},
	}
	returnReasons = []string{"damaged packaging", "short weight", "expired batch", "wrong item"}
)

func newGenerateCommand() *cobra.Command {
	config := GenerateConfig{}
	var date string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a sample catalog and transaction records",
		Long: `Generate a reproducible trading scenario: catalog.yaml with contracts
and their items, and records.csv with committed order groups drawn on
them. The files can be loaded with import or named in the config for the
memory backend.`,
		Example: `  tradeops generate --output ./scenario --groups 500 --seed 12345`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			config.Date = time.Now().UTC()
			if date != "" {
				parsed, err := time.Parse("2006-01-02", date)
				if err != nil {
					return fmt.Errorf("invalid --date: %s (expected YYYY-MM-DD)", date)
				}
				config.Date = parsed
			}
			contracts, records, err := newScenarioGenerator(config).generate()
			if err != nil {
				return err
			}
			return writeScenario(cmd, config.OutputDir, contracts, records)
		},
	}

	cmd.Flags().IntVar(&config.Contracts, "contracts", 3, "number of contracts")
	cmd.Flags().IntVar(&config.Items, "items", 4, "items per contract")
	cmd.Flags().IntVar(&config.Groups, "groups", 10, "number of order groups")
	cmd.Flags().StringVarP(&config.OutputDir, "output", "o", "", "output directory for generated files")
	cmd.Flags().Int64Var(&config.Seed, "seed", 0, "random seed for reproducible generation (default: time based)")
	cmd.Flags().StringVar(&date, "date", "", "first business day YYYY-MM-DD (default: today)")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newScenarioGenerator(config GenerateConfig) *scenarioGenerator {
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &scenarioGenerator{
		config: config,
		rand:   rand.New(rand.NewSource(seed)),
	}
}

func (g *scenarioGenerator) generate() ([]*entities.Contract, []entities.TransactionRecord, error) {
	if g.config.Contracts < 1 || g.config.Contracts > len(counterparties) {
		return nil, nil, fmt.Errorf("contracts must be between 1 and %d, got %d", len(counterparties), g.config.Contracts)
	}
	if g.config.Items < 1 || g.config.Items > len(commodities) {
		return nil, nil, fmt.Errorf("items must be between 1 and %d, got %d", len(commodities), g.config.Items)
	}
	if g.config.Groups < 0 {
		return nil, nil, fmt.Errorf("groups cannot be negative, got %d", g.config.Groups)
	}

	contracts, err := g.generateContracts()
	if err != nil {
		return nil, nil, err
	}
	return contracts, g.generateRecords(contracts), nil
}

func (g *scenarioGenerator) generateContracts() ([]*entities.Contract, error) {
	contracts := make([]*entities.Contract, 0, g.config.Contracts)
	for ci := 0; ci < g.config.Contracts; ci++ {
		contract := &entities.Contract{
			ID:           entities.ContractID(fmt.Sprintf("CTR-%03d", ci+1)),
			Counterparty: counterparties[ci],
		}

		for _, idx := range g.rand.Perm(len(commodities))[:g.config.Items] {
			commodity := commodities[idx]
			conversions := make(entities.ConversionTable, len(commodity.packs))
			for unit, factor := range commodity.packs {
				conversions[entities.UnitOfMeasure(unit)] = decimal.NewFromInt(factor)
			}
			// Rates vary by up to ±10% between counterparties
			rate := decimal.NewFromInt(commodity.rate).
				Mul(decimal.NewFromInt(int64(90 + g.rand.Intn(21)))).
				Div(decimal.NewFromInt(100)).
				Round(2)

			item, err := entities.NewCatalogItem(
				contract.ID,
				entities.ItemName(commodity.name),
				fmt.Sprintf("%s-%02d", contract.ID, idx+1),
				entities.UnitOfMeasure(commodity.baseUnit),
				rate,
				decimal.NewFromInt(int64(500+g.rand.Intn(4501))),
				conversions,
			)
			if err != nil {
				return nil, err
			}
			contract.Items = append(contract.Items, item)
		}
		contracts = append(contracts, contract)
	}
	return contracts, nil
}

// generateRecords spreads order groups over consecutive days, a handful per
// day, numbering each the way the sequencer would
func (g *scenarioGenerator) generateRecords(contracts []*entities.Contract) []entities.TransactionRecord {
	var records []entities.TransactionRecord
	issued := make(map[entities.DocumentKind][]string)
	lineSeq := 0

	for gi := 0; gi < g.config.Groups; gi++ {
		kind := g.generateKind()
		createdAt := g.config.Date.AddDate(0, 0, gi/4).Add(time.Duration(9+gi%4*2) * time.Hour)
		number := domainservices.NextDocumentNumber(domainservices.PrefixFor(kind, nil), issued[kind], createdAt)
		issued[kind] = append(issued[kind], number)
		status := g.generateStatus()
		fulfillment := createdAt.AddDate(0, 0, 3+g.rand.Intn(10)).Truncate(24 * time.Hour)

		allocations := 1 + g.rand.Intn(min(3, len(contracts)))
		for _, ci := range g.rand.Perm(len(contracts))[:allocations] {
			contract := contracts[ci]
			lines := 1 + g.rand.Intn(min(3, len(contract.Items)))
			for _, ii := range g.rand.Perm(len(contract.Items))[:lines] {
				item := contract.Items[ii]
				unit := g.generateUnit(item)
				quantity := decimal.NewFromInt(int64(1 + g.rand.Intn(20)))
				rate := domainservices.RateFor(item, unit)
				lineSeq++

				record := entities.TransactionRecord{
					OrderGroupID:    entities.OrderGroupID(number),
					Kind:            kind,
					Status:          status,
					CreatedAt:       createdAt,
					FulfillmentDate: fulfillment,
					ContractID:      contract.ID,
					Counterparty:    contract.Counterparty,
					LineID:          fmt.Sprintf("L%06d", lineSeq),
					ItemName:        item.Name,
					ItemCode:        item.Code,
					Unit:            unit,
					Quantity:        quantity,
					Rate:            rate,
					Amount:          domainservices.ExtendedAmount(quantity, rate),
				}
				if kind.RequiresReason() {
					record.Reason = returnReasons[g.rand.Intn(len(returnReasons))]
				}
				records = append(records, record)
			}
		}
	}
	return records
}

// generateKind favours orders over purchase orders and returns
func (g *scenarioGenerator) generateKind() entities.DocumentKind {
	switch roll := g.rand.Intn(10); {
	case roll < 7:
		return entities.Order
	case roll < 9:
		return entities.PurchaseOrder
	default:
		return entities.SaleReturn
	}
}

func (g *scenarioGenerator) generateStatus() entities.OrderStatus {
	return entities.OrderStatus(g.rand.Intn(int(entities.Cancelled) + 1))
}

func (g *scenarioGenerator) generateUnit(item *entities.CatalogItem) entities.UnitOfMeasure {
	units := item.Conversions.Units()
	return units[g.rand.Intn(len(units))]
}

func writeScenario(cmd *cobra.Command, dir string, contracts []*entities.Contract, records []entities.TransactionRecord) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var catalog bytes.Buffer
	if err := yamlfile.WriteCatalog(&catalog, contracts); err != nil {
		return err
	}
	catalogPath := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(catalogPath, catalog.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", catalogPath, err)
	}

	recordsPath := filepath.Join(dir, "records.csv")
	if err := csv.NewWriter().SaveRecords(recordsPath, records); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "📦 %s: %d contract(s)\n", catalogPath, len(contracts))
	fmt.Fprintf(out, "📋 %s: %d record(s)\n", recordsPath, len(records))
	fmt.Fprintf(out, "✅ Scenario generated successfully in %s\n", dir)
	return nil
}
