package services

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/tradeops/pkg/domain/entities"
)

var aprilFirst = time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

func record(group entities.OrderGroupID, contract entities.ContractID, item entities.ItemName, qty, rate, amount string) entities.TransactionRecord {
	return entities.TransactionRecord{
		OrderGroupID:    group,
		Kind:            entities.Order,
		Status:          entities.Pending,
		CreatedAt:       aprilFirst,
		FulfillmentDate: aprilFirst.AddDate(0, 0, 7),
		ContractID:      contract,
		Counterparty:    "Party " + string(contract),
		LineID:          string(group) + "/" + string(item),
		ItemName:        item,
		Unit:            "Ltrs",
		Quantity:        decimal.RequireFromString(qty),
		Rate:            decimal.RequireFromString(rate),
		Amount:          decimal.RequireFromString(amount),
	}
}

func TestAggregate_GroupsByOrderAndContract(t *testing.T) {
	records := []entities.TransactionRecord{
		record("ORD-1", "CTR-1", "Mustard Oil", "2", "1500", "3000"),
		record("ORD-1", "CTR-2", "Rice", "10", "60", "600"),
		record("ORD-1", "CTR-1", "Sugar", "4", "50", "200"),
	}

	groups, err := Aggregate(records)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	if len(groups) != 1 {
		t.Fatalf("Expected 1 order group, got %d", len(groups))
	}
	group := groups[0]
	if len(group.Allocations) != 2 {
		t.Fatalf("Expected 2 allocations, got %d", len(group.Allocations))
	}
	if group.Allocations[0].ContractID != "CTR-1" || group.Allocations[1].ContractID != "CTR-2" {
		t.Errorf("Expected allocations in first-seen order, got %s, %s",
			group.Allocations[0].ContractID, group.Allocations[1].ContractID)
	}
	if group.Allocations[0].ItemCount() != 2 {
		t.Errorf("Expected 2 items under CTR-1, got %d", group.Allocations[0].ItemCount())
	}
	if total := group.GrandTotal(); !total.Equal(decimal.NewFromInt(3800)) {
		t.Errorf("Expected grand total 3800, got %s", total)
	}
	if group.Allocations[1].Counterparty != "Party CTR-2" {
		t.Errorf("Expected counterparty Party CTR-2, got %s", group.Allocations[1].Counterparty)
	}
}

func TestAggregate_FirstRecordWins(t *testing.T) {
	first := record("ORD-1", "CTR-1", "Oil", "1", "10", "10")
	second := record("ORD-1", "CTR-1", "Rice", "1", "10", "10")
	second.Status = entities.Approved
	second.Counterparty = "Someone Else"
	second.CreatedAt = aprilFirst.AddDate(0, 0, 1)

	groups, err := Aggregate([]entities.TransactionRecord{first, second})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	if groups[0].Status != entities.Pending {
		t.Errorf("Expected status from first record, got %s", groups[0].Status)
	}
	if !groups[0].CreatedAt.Equal(aprilFirst) {
		t.Errorf("Expected created date from first record, got %s", groups[0].CreatedAt)
	}
	if groups[0].Allocations[0].Counterparty != "Party CTR-1" {
		t.Errorf("Expected counterparty from first record, got %s", groups[0].Allocations[0].Counterparty)
	}
}

func TestAggregate_UsesPersistedAmount(t *testing.T) {
	// Catalog rate has since changed; persisted amount stays authoritative
	persisted := record("ORD-1", "CTR-1", "Oil", "2", "1600", "3000")
	unpriced := record("ORD-1", "CTR-1", "Rice", "3", "20.125", "0")

	groups, err := Aggregate([]entities.TransactionRecord{persisted, unpriced})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}

	lines := groups[0].Allocations[0].Lines
	if !lines[0].Amount.Equal(decimal.NewFromInt(3000)) {
		t.Errorf("Expected persisted amount 3000, got %s", lines[0].Amount)
	}
	if !lines[1].Amount.Equal(decimal.RequireFromString("60.38")) {
		t.Errorf("Expected computed amount 60.38, got %s", lines[1].Amount)
	}
}

func TestAggregate_MalformedRecord(t *testing.T) {
	tests := []struct {
		name  string
		field string
		edit  func(r *entities.TransactionRecord)
	}{
		{"missing_group", "order group id", func(r *entities.TransactionRecord) { r.OrderGroupID = "" }},
		{"missing_contract", "contract id", func(r *entities.TransactionRecord) { r.ContractID = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := record("ORD-1", "CTR-1", "Oil", "1", "10", "10")
			tt.edit(&bad)
			records := []entities.TransactionRecord{record("ORD-1", "CTR-1", "Rice", "1", "10", "10"), bad}

			groups, err := Aggregate(records)
			if groups != nil {
				t.Errorf("Expected no partial result, got %d groups", len(groups))
			}
			var malformed *entities.MalformedRecordError
			if !errors.As(err, &malformed) {
				t.Fatalf("Expected MalformedRecordError, got %v", err)
			}
			if malformed.Index != 1 || malformed.Field != tt.field {
				t.Errorf("Expected record 1 field %q, got record %d field %q", tt.field, malformed.Index, malformed.Field)
			}
		})
	}
}

func TestAggregate_IsLosslessAndIdempotent(t *testing.T) {
	records := []entities.TransactionRecord{
		record("ORD-2", "CTR-1", "Oil", "1", "125", "125"),
		record("ORD-1", "CTR-2", "Rice", "10", "60", "600"),
		record("ORD-2", "CTR-3", "Salt", "5", "20", "100"),
		record("ORD-1", "CTR-1", "Oil", "2", "1500", "3000"),
		record("ORD-2", "CTR-1", "Ghee", "1", "700", "700"),
	}

	groups, err := Aggregate(records)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if groups[0].ID != "ORD-2" || groups[1].ID != "ORD-1" {
		t.Errorf("Expected groups in first-seen order, got %s, %s", groups[0].ID, groups[1].ID)
	}

	flattened := Flatten(groups)
	if len(flattened) != len(records) {
		t.Fatalf("Expected %d records after flatten, got %d", len(records), len(flattened))
	}

	seen := make(map[string]int)
	for _, r := range flattened {
		seen[r.LineID]++
	}
	for _, r := range records {
		if seen[r.LineID] != 1 {
			t.Errorf("Expected line %s exactly once, got %d", r.LineID, seen[r.LineID])
		}
	}

	again, err := Aggregate(flattened)
	if err != nil {
		t.Fatalf("Re-aggregate failed: %v", err)
	}
	if !reflect.DeepEqual(groups, again) {
		t.Error("Expected re-aggregation of flattened output to be identical")
	}
}

func TestAggregate_Empty(t *testing.T) {
	groups, err := Aggregate(nil)
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("Expected no groups, got %d", len(groups))
	}
}
