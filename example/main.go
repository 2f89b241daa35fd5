package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/vsinha/tradeops/pkg/application/dto"
	"github.com/vsinha/tradeops/pkg/application/services"
	"github.com/vsinha/tradeops/pkg/domain/entities"
	"github.com/vsinha/tradeops/pkg/infrastructure/repositories/memory"
	"github.com/vsinha/tradeops/pkg/interfaces/cli/output"
)

func main() {
	ctx := context.Background()

	// Create repositories
	catalog := memory.NewCatalogRepository()
	if err := setupEdibleOilContract(ctx, catalog); err != nil {
		fmt.Printf("❌ Catalog setup failed: %v\n", err)
		return
	}

	service, err := services.NewOrderService(services.OrderServiceConfig{
		Catalog:   catalog,
		Orders:    memory.NewOrderRepository(),
		Sequences: memory.NewSequenceRepository(),
		Disputes:  memory.NewDisputeRepository(),
	})
	if err != nil {
		fmt.Printf("❌ Service setup failed: %v\n", err)
		return
	}

	// A draft with one bad line is rejected as a whole
	fmt.Println("📝 Submitting a draft with an oversized line...")
	_, err = service.SubmitOrderGroup(ctx, dto.DraftOrderGroup{
		Kind: "Order",
		Allocations: []dto.DraftAllocation{{
			ContractID: "CTR-OIL",
			Lines: []dto.DraftLine{
				{Item: "Mustard Oil", Unit: "Box", Quantity: "20"},
				{Item: "Sunflower Oil", Unit: "Ltrs", Quantity: "5000"},
			},
		}},
	})
	var validation *entities.ValidationError
	if errors.As(err, &validation) {
		for _, line := range validation.Lines {
			fmt.Printf("  ⚠️  %v\n", line)
		}
	}
	fmt.Println()

	fmt.Println("📝 Submitting a corrected draft...")
	group, err := service.SubmitOrderGroup(ctx, dto.DraftOrderGroup{
		Kind:            "Order",
		FulfillmentDate: "2025-12-01",
		Allocations: []dto.DraftAllocation{{
			ContractID: "CTR-OIL",
			Lines: []dto.DraftLine{
				{Item: "Mustard Oil", Unit: "Box", Quantity: "20"},
				{Item: "Sunflower Oil", Unit: "Can", Quantity: "30"},
			},
		}},
	})
	if err != nil {
		fmt.Printf("❌ Submit failed: %v\n", err)
		return
	}
	fmt.Printf("✅ %s committed, grand total %s\n", group.ID, group.GrandTotal().StringFixed(2))
	fmt.Println()

	// Show remaining stock
	contract, err := catalog.GetContract(ctx, "CTR-OIL")
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		return
	}
	fmt.Println("📦 Remaining on CTR-OIL:")
	for _, item := range contract.Items {
		fmt.Printf("  %s: %s %s\n", item.Name, item.RemainingQuantity, item.BaseUnit)
	}
	fmt.Println()

	rows, err := service.View(ctx, entities.Order)
	if err != nil {
		fmt.Printf("❌ %v\n", err)
		return
	}
	if err := output.Render(os.Stdout, rows, output.FormatText); err != nil {
		fmt.Printf("❌ %v\n", err)
	}
}

func setupEdibleOilContract(ctx context.Context, catalog *memory.CatalogRepository) error {
	mustard, err := entities.NewCatalogItem("CTR-OIL", "Mustard Oil", "MO-01", "Ltrs",
		decimal.NewFromInt(125), decimal.NewFromInt(800),
		entities.ConversionTable{"Box": decimal.NewFromInt(12)})
	if err != nil {
		return err
	}
	sunflower, err := entities.NewCatalogItem("CTR-OIL", "Sunflower Oil", "SF-01", "Ltrs",
		decimal.NewFromInt(140), decimal.NewFromInt(1200),
		entities.ConversionTable{"Can": decimal.NewFromInt(15)})
	if err != nil {
		return err
	}

	return catalog.LoadContracts(ctx, []*entities.Contract{{
		ID:           "CTR-OIL",
		Counterparty: "Ganga Edibles",
		Items:        []*entities.CatalogItem{mustard, sunflower},
	}})
}
