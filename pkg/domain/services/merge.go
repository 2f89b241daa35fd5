package services

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/tradeops/pkg/domain/entities"
)

// DisplayRow is one line item with its parent values repeated, annotated so
// a table can merge the repeated parent cells. A span is the number of rows
// the parent cell covers on the first row of its group and 0 on every later
// row.
type DisplayRow struct {
	OrderGroupID    entities.OrderGroupID
	Kind            entities.DocumentKind
	CreatedAt       time.Time
	FulfillmentDate time.Time
	Status          entities.OrderStatus
	GrandTotal      decimal.Decimal
	GroupSpan       int

	ContractID     entities.ContractID
	Counterparty   string
	ItemCount      int
	AllocationSpan int

	Line entities.LineItem
}

// IsGroupStart reports whether the row opens a new order group
func (r DisplayRow) IsGroupStart() bool {
	return r.GroupSpan > 0
}

// IsAllocationStart reports whether the row opens a new allocation
func (r DisplayRow) IsAllocationStart() bool {
	return r.AllocationSpan > 0
}

// MergeForDisplay flattens the hierarchy into one row per line item.
// Allocations without lines produce no rows.
func MergeForDisplay(groups []entities.OrderGroup) []DisplayRow {
	var rows []DisplayRow
	for gi := range groups {
		group := &groups[gi]
		groupSpan := group.LineCount()
		if groupSpan == 0 {
			continue
		}
		total := group.GrandTotal()
		firstInGroup := true

		for ai := range group.Allocations {
			alloc := &group.Allocations[ai]
			for li, line := range alloc.Lines {
				row := DisplayRow{
					OrderGroupID:    group.ID,
					Kind:            group.Kind,
					CreatedAt:       group.CreatedAt,
					FulfillmentDate: group.FulfillmentDate,
					Status:          group.Status,
					GrandTotal:      total,
					ContractID:      alloc.ContractID,
					Counterparty:    alloc.Counterparty,
					ItemCount:       alloc.ItemCount(),
					Line:            line,
				}
				if firstInGroup {
					row.GroupSpan = groupSpan
					firstInGroup = false
				}
				if li == 0 {
					row.AllocationSpan = alloc.ItemCount()
				}
				rows = append(rows, row)
			}
		}
	}
	return rows
}

// Regroup rebuilds the hierarchy from display rows. Regroup(MergeForDisplay(g))
// equals g with empty allocations and groups dropped.
func Regroup(rows []DisplayRow) ([]entities.OrderGroup, error) {
	records := make([]entities.TransactionRecord, len(rows))
	for i, row := range rows {
		records[i] = entities.TransactionRecord{
			OrderGroupID:    row.OrderGroupID,
			Kind:            row.Kind,
			Status:          row.Status,
			CreatedAt:       row.CreatedAt,
			FulfillmentDate: row.FulfillmentDate,
			ContractID:      row.ContractID,
			Counterparty:    row.Counterparty,
			LineID:          row.Line.ID,
			ItemName:        row.Line.ItemName,
			ItemCode:        row.Line.ItemCode,
			Unit:            row.Line.Unit,
			Quantity:        row.Line.Quantity,
			Rate:            row.Line.Rate,
			Amount:          row.Line.Amount,
			Reason:          row.Line.Reason,
		}
	}

	groups, err := Aggregate(records)
	if err != nil {
		return nil, fmt.Errorf("failed to regroup display rows: %w", err)
	}
	return groups, nil
}
