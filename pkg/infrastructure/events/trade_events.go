package events

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/tradeops/pkg/domain/entities"
)

const (
	OrderSubmittedEvent     = "order.submitted"
	OrderEditedEvent        = "order.edited"
	OrderStatusChangedEvent = "order.status_changed"

	StockCommittedEvent = "stock.committed"
	StockReleasedEvent  = "stock.released"

	DisputeRaisedEvent = "dispute.raised"
)

type OrderSubmitted struct {
	OrderGroupID entities.OrderGroupID `json:"order_group_id"`
	Kind         string                `json:"kind"`
	Allocations  int                   `json:"allocations"`
	Lines        int                   `json:"lines"`
	GrandTotal   decimal.Decimal       `json:"grand_total"`
}

type OrderEdited struct {
	OrderGroupID  entities.OrderGroupID `json:"order_group_id"`
	OldGrandTotal decimal.Decimal       `json:"old_grand_total"`
	NewGrandTotal decimal.Decimal       `json:"new_grand_total"`
	RemovedLines  []string              `json:"removed_lines,omitempty"`
}

type OrderStatusChanged struct {
	OrderGroupID entities.OrderGroupID `json:"order_group_id"`
	From         string                `json:"from"`
	To           string                `json:"to"`
}

// StockMoved is the payload of both stock.committed and stock.released.
// Quantity is always positive.
type StockMoved struct {
	OrderGroupID entities.OrderGroupID `json:"order_group_id"`
	ContractID   entities.ContractID   `json:"contract_id"`
	ItemName     entities.ItemName     `json:"item_name"`
	Quantity     decimal.Decimal       `json:"quantity"`
}

type DisputeRaised struct {
	Dispute entities.DisputeRecord `json:"dispute"`
}

func NewOrderSubmittedEvent(group *entities.OrderGroup, at time.Time) Event {
	return NewEvent(OrderSubmittedEvent, string(group.ID), OrderSubmitted{
		OrderGroupID: group.ID,
		Kind:         group.Kind.String(),
		Allocations:  len(group.Allocations),
		Lines:        group.LineCount(),
		GrandTotal:   group.GrandTotal(),
	}, at)
}

func NewOrderEditedEvent(before, after *entities.OrderGroup, removed []string, at time.Time) Event {
	return NewEvent(OrderEditedEvent, string(after.ID), OrderEdited{
		OrderGroupID:  after.ID,
		OldGrandTotal: before.GrandTotal(),
		NewGrandTotal: after.GrandTotal(),
		RemovedLines:  removed,
	}, at)
}

func NewOrderStatusChangedEvent(
	id entities.OrderGroupID,
	from, to entities.OrderStatus,
	at time.Time,
) Event {
	return NewEvent(OrderStatusChangedEvent, string(id), OrderStatusChanged{
		OrderGroupID: id,
		From:         from.String(),
		To:           to.String(),
	}, at)
}

// NewStockEvent returns stock.committed for a positive adjustment and
// stock.released for a negative one. The stream is the catalog item.
func NewStockEvent(id entities.OrderGroupID, adjustment entities.StockAdjustment, at time.Time) Event {
	eventType := StockCommittedEvent
	if adjustment.IsRelease() {
		eventType = StockReleasedEvent
	}
	return NewEvent(
		eventType,
		string(adjustment.ContractID)+"/"+string(adjustment.ItemName),
		StockMoved{
			OrderGroupID: id,
			ContractID:   adjustment.ContractID,
			ItemName:     adjustment.ItemName,
			Quantity:     adjustment.Delta.Abs(),
		},
		at,
	)
}

func NewDisputeRaisedEvent(dispute *entities.DisputeRecord) Event {
	return NewEvent(
		DisputeRaisedEvent,
		string(dispute.OrderGroupID),
		DisputeRaised{Dispute: *dispute},
		dispute.CreatedAt,
	)
}
