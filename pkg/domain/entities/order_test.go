package entities

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestOrderStatus_Transitions(t *testing.T) {
	tests := []struct {
		name     string
		from     OrderStatus
		to       OrderStatus
		expected bool
	}{
		{"pending_to_approved", Pending, Approved, true},
		{"pending_skips_to_delivered", Pending, Delivered, true},
		{"approved_back_to_pending", Approved, Pending, false},
		{"same_status", InTransit, InTransit, false},
		{"cancel_pending", Pending, Cancelled, true},
		{"cancel_approved", Approved, Cancelled, true},
		{"cancel_in_transit", InTransit, Cancelled, false},
		{"delivered_is_terminal", Delivered, Approved, false},
		{"cancelled_is_terminal", Cancelled, Pending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.expected {
				t.Errorf("%s.CanTransitionTo(%s) = %t, want %t", tt.from, tt.to, got, tt.expected)
			}
		})
	}
}

func TestParseOrderStatus(t *testing.T) {
	tests := []struct {
		input    string
		expected OrderStatus
	}{
		{"Pending", Pending},
		{"approved", Approved},
		{"In Transit", InTransit},
		{"out_for_delivery", OutForDelivery},
		{"DELIVERED", Delivered},
		{"canceled", Cancelled},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			status, err := ParseOrderStatus(tt.input)
			if err != nil {
				t.Fatalf("ParseOrderStatus(%q) failed: %v", tt.input, err)
			}
			if status != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, status)
			}
			if roundTrip, _ := ParseOrderStatus(status.String()); roundTrip != status {
				t.Errorf("Expected %s to round trip, got %s", status, roundTrip)
			}
		})
	}

	if _, err := ParseOrderStatus("shipped"); err == nil {
		t.Error("Expected error for unknown status")
	}
}

func TestParseDocumentKind(t *testing.T) {
	for _, kind := range []DocumentKind{Order, PurchaseOrder, SaleReturn} {
		parsed, err := ParseDocumentKind(kind.String())
		if err != nil {
			t.Fatalf("ParseDocumentKind(%s) failed: %v", kind, err)
		}
		if parsed != kind {
			t.Errorf("Expected %s, got %s", kind, parsed)
		}
	}
	if !SaleReturn.RequiresReason() || Order.RequiresReason() {
		t.Error("Expected only SaleReturn to require a reason")
	}
}

func TestOrderGroup_Rollups(t *testing.T) {
	group := &OrderGroup{
		ID:        "ORD-1",
		CreatedAt: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		Allocations: []ContractAllocation{
			{
				ContractID: "CTR-1",
				Lines: []LineItem{
					{ID: "L1", ItemName: "Oil", Quantity: decimal.NewFromInt(2), Amount: decimal.NewFromInt(3000)},
					{ItemName: "Rice", Quantity: decimal.NewFromInt(1), Amount: decimal.RequireFromString("60.50")},
				},
			},
			{
				ContractID: "CTR-2",
				Lines: []LineItem{
					{ID: "L3", ItemName: "Sugar", Quantity: decimal.NewFromInt(4), Amount: decimal.NewFromInt(200)},
				},
			},
		},
	}

	if total := group.GrandTotal(); !total.Equal(decimal.RequireFromString("3260.50")) {
		t.Errorf("Expected grand total 3260.50, got %s", total)
	}
	if group.LineCount() != 3 {
		t.Errorf("Expected 3 lines, got %d", group.LineCount())
	}
	if alloc := group.Allocation("CTR-2"); alloc == nil || alloc.ItemCount() != 1 {
		t.Errorf("Expected CTR-2 allocation with 1 item, got %+v", alloc)
	}
	if group.Allocation("CTR-9") != nil {
		t.Error("Expected nil for unknown allocation")
	}

	held := group.CommittedQuantities()
	if len(held) != 2 || !held["L1"].Equal(decimal.NewFromInt(2)) || !held["L3"].Equal(decimal.NewFromInt(4)) {
		t.Errorf("Unexpected committed quantities: %v", held)
	}

	clone := group.Clone()
	clone.Allocations[0].Lines[0].Amount = decimal.Zero
	if !group.Allocations[0].Lines[0].Amount.Equal(decimal.NewFromInt(3000)) {
		t.Error("Expected clone to be independent of the original")
	}
}

func TestErrors_MatchSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"not_found", &NotFoundError{Kind: "contract", Key: "CTR-9"}, ErrNotFound},
		{"exceeds", &QuantityExceedsAllocationError{Item: "Oil", Requested: decimal.NewFromInt(600), Ceiling: decimal.NewFromInt(500)}, ErrQuantityExceedsAllocation},
		{"invalid_quantity", &InvalidQuantityError{Input: "abc"}, ErrInvalidQuantity},
		{"missing_reason", &MissingReasonError{Item: "Oil"}, ErrMissingReason},
		{"malformed", &MalformedRecordError{Index: 3, Field: "contract id"}, ErrMalformedRecord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.sentinel) {
				t.Errorf("Expected %v to match %v", tt.err, tt.sentinel)
			}
		})
	}

	validation := &ValidationError{Lines: []LineError{
		{Allocation: 0, Line: 1, Item: "Oil", Err: &InvalidQuantityError{Input: "-1"}},
		{Allocation: 1, Line: 0, Item: "Rice", Err: &QuantityExceedsAllocationError{Item: "Rice", Ceiling: decimal.NewFromInt(5)}},
	}}
	if !errors.Is(validation, ErrInvalidQuantity) || !errors.Is(validation, ErrQuantityExceedsAllocation) {
		t.Errorf("Expected validation error to expose both line errors: %v", validation)
	}
	var exceeds *QuantityExceedsAllocationError
	if !errors.As(validation, &exceeds) || !exceeds.Ceiling.Equal(decimal.NewFromInt(5)) {
		t.Errorf("Expected errors.As to find the ceiling, got %v", exceeds)
	}
}

func TestNewDisputeRecord_Validation(t *testing.T) {
	now := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)
	if _, err := NewDisputeRecord("DISP-20240401-0001", "ORD-1", "INV-7", "short delivery", now); err != nil {
		t.Fatalf("Expected valid dispute: %v", err)
	}

	testCases := []struct {
		name        string
		number      string
		orderGroup  OrderGroupID
		reason      string
		expectError string
	}{
		{"empty number", "", "ORD-1", "late", "dispute number cannot be empty"},
		{"empty order group", "DISP-1", "", "late", "order group id cannot be empty"},
		{"empty reason", "DISP-1", "ORD-1", "", "dispute reason cannot be empty"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewDisputeRecord(tc.number, tc.orderGroup, "", tc.reason, now)
			if err == nil || err.Error() != tc.expectError {
				t.Errorf("Expected error '%s', got '%v'", tc.expectError, err)
			}
		})
	}
}
