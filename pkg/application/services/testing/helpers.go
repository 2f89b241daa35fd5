package testing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/tradeops/pkg/domain/entities"
	"github.com/vsinha/tradeops/pkg/infrastructure/repositories/memory"
)

// TestData bundles in-memory repositories loaded with a trading scenario
type TestData struct {
	Catalog   *memory.CatalogRepository
	Orders    *memory.OrderRepository
	Sequences *memory.SequenceRepository
	Disputes  *memory.DisputeRepository
}

// ScenarioDate is the business day the scenario records were created on
var ScenarioDate = time.Date(2024, 4, 1, 10, 30, 0, 0, time.UTC)

// mustCreateCatalogItem is a helper for tests - panics on validation error
func mustCreateCatalogItem(
	contractID, name, code, baseUnit string,
	baseRate, remaining string,
	conversions map[string]string,
) *entities.CatalogItem {
	table := make(entities.ConversionTable, len(conversions))
	for unit, factor := range conversions {
		table[entities.UnitOfMeasure(unit)] = decimal.RequireFromString(factor)
	}
	item, err := entities.NewCatalogItem(
		entities.ContractID(contractID),
		entities.ItemName(name),
		code,
		entities.UnitOfMeasure(baseUnit),
		decimal.RequireFromString(baseRate),
		decimal.RequireFromString(remaining),
		table,
	)
	if err != nil {
		panic(err)
	}
	return item
}

// mustCreateRecord is a helper for tests - builds one committed line record
func mustCreateRecord(
	groupID string,
	kind entities.DocumentKind,
	status entities.OrderStatus,
	contractID, counterparty, lineID, item, unit, quantity, rate string,
) entities.TransactionRecord {
	record := entities.TransactionRecord{
		OrderGroupID: entities.OrderGroupID(groupID),
		Kind:         kind,
		Status:       status,
		CreatedAt:    ScenarioDate,
		ContractID:   entities.ContractID(contractID),
		Counterparty: counterparty,
		LineID:       lineID,
		ItemName:     entities.ItemName(item),
		Unit:         entities.UnitOfMeasure(unit),
		Quantity:     decimal.RequireFromString(quantity),
		Rate:         decimal.RequireFromString(rate),
	}
	record.Amount = record.Quantity.Mul(record.Rate).Round(2)
	if err := record.Validate(0); err != nil {
		panic(err)
	}
	return record
}

// BuildTradingContracts returns the two-contract catalog most tests use.
// CTR-1 sells Mustard Oil (Ltrs, Box of 12, Can of 0.5) and Rice; CTR-2
// sells Sugar and a second Mustard Oil allocation.
func BuildTradingContracts() []*entities.Contract {
	return []*entities.Contract{
		{
			ID:           "CTR-1",
			Counterparty: "Acme Traders",
			Items: []*entities.CatalogItem{
				mustCreateCatalogItem("CTR-1", "Mustard Oil", "MO-01", "Ltrs", "125", "500",
					map[string]string{"Box": "12", "Can": "0.5"}),
				mustCreateCatalogItem("CTR-1", "Rice", "RC-01", "Kg", "60", "1000",
					map[string]string{"Bag": "25"}),
			},
		},
		{
			ID:           "CTR-2",
			Counterparty: "Delta Foods",
			Items: []*entities.CatalogItem{
				mustCreateCatalogItem("CTR-2", "Sugar", "SG-01", "Kg", "45", "300", nil),
				mustCreateCatalogItem("CTR-2", "Mustard Oil", "MO-01", "Ltrs", "120", "100", nil),
			},
		},
	}
}

// BuildTradingTestData loads the trading catalog into fresh repositories.
// The order repository holds one delivered order and one pending order.
func BuildTradingTestData() *TestData {
	data := BuildSimpleTestData()
	ctx := context.Background()

	records := []entities.TransactionRecord{
		mustCreateRecord("ORD-20240401-0001", entities.Order, entities.Delivered,
			"CTR-1", "Acme Traders", "line-1", "Mustard Oil", "Box", "2", "1500"),
		mustCreateRecord("ORD-20240401-0001", entities.Order, entities.Delivered,
			"CTR-2", "Delta Foods", "line-2", "Sugar", "Kg", "10", "45"),
		mustCreateRecord("ORD-20240401-0002", entities.Order, entities.Pending,
			"CTR-1", "Acme Traders", "line-3", "Rice", "Kg", "100", "60"),
	}
	if err := data.Orders.ImportRecords(ctx, records); err != nil {
		panic(err)
	}
	data.Sequences.Seed("ORD-20240401-0001", "ORD-20240401-0002")
	return data
}

// BuildSimpleTestData loads the trading catalog into fresh repositories
// with no stored orders
func BuildSimpleTestData() *TestData {
	data := &TestData{
		Catalog:   memory.NewCatalogRepository(),
		Orders:    memory.NewOrderRepository(),
		Sequences: memory.NewSequenceRepository(),
		Disputes:  memory.NewDisputeRepository(),
	}
	if err := data.Catalog.LoadContracts(context.Background(), BuildTradingContracts()); err != nil {
		panic(err)
	}
	return data
}
