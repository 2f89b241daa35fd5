package services

import (
	"errors"
	"reflect"
	"testing"

	"github.com/vsinha/tradeops/pkg/domain/entities"
)

func mergeFixture(t *testing.T) []entities.OrderGroup {
	t.Helper()
	groups, err := Aggregate([]entities.TransactionRecord{
		record("ORD-1", "CTR-1", "Oil", "2", "1500", "3000"),
		record("ORD-1", "CTR-2", "Rice", "10", "60", "600"),
		record("ORD-1", "CTR-1", "Sugar", "4", "50", "200"),
		record("ORD-2", "CTR-3", "Salt", "5", "20", "100"),
	})
	if err != nil {
		t.Fatalf("Aggregate failed: %v", err)
	}
	return groups
}

func TestMergeForDisplay_Spans(t *testing.T) {
	rows := MergeForDisplay(mergeFixture(t))

	if len(rows) != 4 {
		t.Fatalf("Expected 4 rows, got %d", len(rows))
	}

	expected := []struct {
		order      entities.OrderGroupID
		contract   entities.ContractID
		groupSpan  int
		allocSpan  int
		grandTotal string
	}{
		{"ORD-1", "CTR-1", 3, 2, "3800"},
		{"ORD-1", "CTR-1", 0, 0, "3800"},
		{"ORD-1", "CTR-2", 0, 1, "3800"},
		{"ORD-2", "CTR-3", 1, 1, "100"},
	}

	for i, want := range expected {
		row := rows[i]
		if row.OrderGroupID != want.order || row.ContractID != want.contract {
			t.Errorf("Row %d: expected %s/%s, got %s/%s", i, want.order, want.contract, row.OrderGroupID, row.ContractID)
		}
		if row.GroupSpan != want.groupSpan {
			t.Errorf("Row %d: expected group span %d, got %d", i, want.groupSpan, row.GroupSpan)
		}
		if row.AllocationSpan != want.allocSpan {
			t.Errorf("Row %d: expected allocation span %d, got %d", i, want.allocSpan, row.AllocationSpan)
		}
		if row.GrandTotal.String() != want.grandTotal {
			t.Errorf("Row %d: expected grand total %s, got %s", i, want.grandTotal, row.GrandTotal)
		}
	}
}

func TestMergeForDisplay_SpansSumToGroupSize(t *testing.T) {
	groups := mergeFixture(t)
	rows := MergeForDisplay(groups)

	groupSpans := make(map[entities.OrderGroupID]int)
	allocSpans := make(map[string]int)
	for _, row := range rows {
		groupSpans[row.OrderGroupID] += row.GroupSpan
		allocSpans[string(row.OrderGroupID)+"|"+string(row.ContractID)] += row.AllocationSpan
	}

	for _, group := range groups {
		if groupSpans[group.ID] != group.LineCount() {
			t.Errorf("Expected spans of %s to sum to %d, got %d", group.ID, group.LineCount(), groupSpans[group.ID])
		}
		for _, alloc := range group.Allocations {
			key := string(group.ID) + "|" + string(alloc.ContractID)
			if allocSpans[key] != alloc.ItemCount() {
				t.Errorf("Expected spans of %s to sum to %d, got %d", key, alloc.ItemCount(), allocSpans[key])
			}
		}
	}
}

func TestMergeForDisplay_IsIdempotent(t *testing.T) {
	groups := mergeFixture(t)
	rows := MergeForDisplay(groups)

	if !reflect.DeepEqual(rows, MergeForDisplay(groups)) {
		t.Error("Expected repeated merges to be identical")
	}

	regrouped, err := Regroup(rows)
	if err != nil {
		t.Fatalf("Regroup failed: %v", err)
	}
	if !reflect.DeepEqual(regrouped, groups) {
		t.Error("Expected Regroup to rebuild the original hierarchy")
	}
	if !reflect.DeepEqual(MergeForDisplay(regrouped), rows) {
		t.Error("Expected merge of regrouped rows to equal the original rows")
	}
}

func TestRegroup_RejectsRowsWithoutContract(t *testing.T) {
	rows := MergeForDisplay(mergeFixture(t))
	rows[1].ContractID = ""

	groups, err := Regroup(rows)
	if !errors.Is(err, entities.ErrMalformedRecord) {
		t.Errorf("Expected ErrMalformedRecord, got %v", err)
	}
	if groups != nil {
		t.Errorf("Expected no groups on error, got %d", len(groups))
	}
}

func TestMergeForDisplay_SkipsEmptyAllocations(t *testing.T) {
	groups := mergeFixture(t)
	groups[0].Allocations = append(groups[0].Allocations, entities.ContractAllocation{ContractID: "CTR-9"})
	groups = append(groups, entities.OrderGroup{ID: "ORD-3"})

	rows := MergeForDisplay(groups)
	if len(rows) != 4 {
		t.Errorf("Expected empty allocations and groups to produce no rows, got %d rows", len(rows))
	}
	for _, row := range rows {
		if row.ContractID == "CTR-9" || row.OrderGroupID == "ORD-3" {
			t.Errorf("Unexpected row for empty parent: %+v", row)
		}
	}
}
