package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderGroupID identifies an order group, e.g. "ORD-20240401-0001"
type OrderGroupID string

// DocumentKind is the kind of commercial document an order group represents
type DocumentKind int

const (
	Order DocumentKind = iota
	PurchaseOrder
	SaleReturn
)

// String method for DocumentKind enum
func (k DocumentKind) String() string {
	switch k {
	case Order:
		return "Order"
	case PurchaseOrder:
		return "PurchaseOrder"
	case SaleReturn:
		return "SaleReturn"
	default:
		return "Unknown"
	}
}

// RequiresReason reports whether every line of this kind needs a reason
func (k DocumentKind) RequiresReason() bool {
	return k == SaleReturn
}

// ParseDocumentKind parses a kind name, case-insensitively
func ParseDocumentKind(s string) (DocumentKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "order":
		return Order, nil
	case "purchaseorder", "purchase_order":
		return PurchaseOrder, nil
	case "salereturn", "sale_return":
		return SaleReturn, nil
	default:
		return Order, fmt.Errorf("invalid document kind: %s (expected: Order, PurchaseOrder, or SaleReturn)", s)
	}
}

// DocumentKinds returns every document kind
func DocumentKinds() []DocumentKind {
	return []DocumentKind{Order, PurchaseOrder, SaleReturn}
}

// OrderStatus represents the fulfillment status of an order group
type OrderStatus int

const (
	Pending OrderStatus = iota
	Approved
	InTransit
	OutForDelivery
	Delivered
	Cancelled
)

// String method for OrderStatus enum
func (s OrderStatus) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Approved:
		return "Approved"
	case InTransit:
		return "InTransit"
	case OutForDelivery:
		return "OutForDelivery"
	case Delivered:
		return "Delivered"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// IsEditable reports whether line items may still change
func (s OrderStatus) IsEditable() bool {
	return s == Pending
}

// IsTerminal reports whether no further transition is possible
func (s OrderStatus) IsTerminal() bool {
	return s == Delivered || s == Cancelled
}

// CanTransitionTo reports whether s may move to next. Fulfillment statuses
// only move forward; cancellation is possible until the goods ship.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s.IsTerminal() || next == s {
		return false
	}
	if next == Cancelled {
		return s == Pending || s == Approved
	}
	return next > s && next <= Delivered
}

// ParseOrderStatus parses a status name, case-insensitively
func ParseOrderStatus(s string) (OrderStatus, error) {
	normalized := strings.ToLower(strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s))
	switch normalized {
	case "pending":
		return Pending, nil
	case "approved":
		return Approved, nil
	case "intransit":
		return InTransit, nil
	case "outfordelivery":
		return OutForDelivery, nil
	case "delivered":
		return Delivered, nil
	case "cancelled", "canceled":
		return Cancelled, nil
	default:
		return Pending, fmt.Errorf("invalid status: %s (expected: Pending, Approved, InTransit, OutForDelivery, Delivered, or Cancelled)", s)
	}
}

// LineItem is one item drawn from a contract within an order group. Rate is
// always derived from the catalog; ItemCode, Unit and Rate are snapshots so
// historical pricing survives catalog changes.
type LineItem struct {
	ID       string // empty until first commit
	ItemName ItemName
	ItemCode string
	Unit     UnitOfMeasure
	Quantity decimal.Decimal
	Rate     decimal.Decimal
	Amount   decimal.Decimal
	Reason   string
}

// IsCommitted reports whether the line has been committed before
func (l LineItem) IsCommitted() bool {
	return l.ID != ""
}

// ContractAllocation is the part of one contract's catalog drawn upon by an
// order group
type ContractAllocation struct {
	ContractID   ContractID
	Counterparty string
	Lines        []LineItem
}

// ItemCount returns the number of line items in the allocation
func (a *ContractAllocation) ItemCount() int {
	return len(a.Lines)
}

// Total returns the sum of the allocation's line amounts
func (a *ContractAllocation) Total() decimal.Decimal {
	total := decimal.Zero
	for _, line := range a.Lines {
		total = total.Add(line.Amount)
	}
	return total
}

// OrderGroup is the top-level commercial unit
type OrderGroup struct {
	ID              OrderGroupID
	Kind            DocumentKind
	CreatedAt       time.Time
	FulfillmentDate time.Time
	Status          OrderStatus
	Allocations     []ContractAllocation
}

// GrandTotal sums every line amount across all allocations. It is never
// stored.
func (g *OrderGroup) GrandTotal() decimal.Decimal {
	total := decimal.Zero
	for i := range g.Allocations {
		total = total.Add(g.Allocations[i].Total())
	}
	return total
}

// LineCount returns the number of line items across all allocations
func (g *OrderGroup) LineCount() int {
	count := 0
	for i := range g.Allocations {
		count += g.Allocations[i].ItemCount()
	}
	return count
}

// Allocation returns the allocation for a contract, or nil
func (g *OrderGroup) Allocation(contractID ContractID) *ContractAllocation {
	for i := range g.Allocations {
		if g.Allocations[i].ContractID == contractID {
			return &g.Allocations[i]
		}
	}
	return nil
}

// CommittedQuantities returns the quantity each committed line holds, keyed
// by line id
func (g *OrderGroup) CommittedQuantities() map[string]decimal.Decimal {
	held := make(map[string]decimal.Decimal, g.LineCount())
	for _, alloc := range g.Allocations {
		for _, line := range alloc.Lines {
			if line.IsCommitted() {
				held[line.ID] = line.Quantity
			}
		}
	}
	return held
}

// Clone returns a deep copy of the order group
func (g *OrderGroup) Clone() *OrderGroup {
	out := *g
	out.Allocations = make([]ContractAllocation, len(g.Allocations))
	for i, alloc := range g.Allocations {
		out.Allocations[i] = alloc
		out.Allocations[i].Lines = append([]LineItem(nil), alloc.Lines...)
	}
	return &out
}
