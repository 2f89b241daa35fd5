package services

import (
	"github.com/vsinha/tradeops/pkg/domain/entities"
)

// Aggregate folds flat transaction records into order groups. Records are
// grouped by order group, then by contract within the group; each record
// becomes exactly one line item. Group fields come from the first record
// seen for the group and the counterparty from the first record seen for
// the (group, contract) pair. Output is in first-seen order at every level.
//
// Line amounts use the persisted amount so historical totals survive catalog
// rate changes; a record without one is priced from its own rate and
// quantity. A record missing a grouping identifier fails the whole fold.
func Aggregate(records []entities.TransactionRecord) ([]entities.OrderGroup, error) {
	var groups []entities.OrderGroup
	groupIndex := make(map[entities.OrderGroupID]int)
	allocIndex := make(map[entities.OrderGroupID]map[entities.ContractID]int)

	for i, record := range records {
		if err := record.Validate(i); err != nil {
			return nil, err
		}

		gi, ok := groupIndex[record.OrderGroupID]
		if !ok {
			gi = len(groups)
			groupIndex[record.OrderGroupID] = gi
			allocIndex[record.OrderGroupID] = make(map[entities.ContractID]int)
			groups = append(groups, entities.OrderGroup{
				ID:              record.OrderGroupID,
				Kind:            record.Kind,
				CreatedAt:       record.CreatedAt,
				FulfillmentDate: record.FulfillmentDate,
				Status:          record.Status,
			})
		}
		group := &groups[gi]

		ai, ok := allocIndex[record.OrderGroupID][record.ContractID]
		if !ok {
			ai = len(group.Allocations)
			allocIndex[record.OrderGroupID][record.ContractID] = ai
			group.Allocations = append(group.Allocations, entities.ContractAllocation{
				ContractID:   record.ContractID,
				Counterparty: record.Counterparty,
			})
		}
		alloc := &group.Allocations[ai]

		alloc.Lines = append(alloc.Lines, lineFromRecord(record))
	}

	return groups, nil
}

func lineFromRecord(record entities.TransactionRecord) entities.LineItem {
	amount := record.Amount
	if amount.IsZero() {
		amount = ExtendedAmount(record.Quantity, record.Rate)
	}
	return entities.LineItem{
		ID:       record.LineID,
		ItemName: record.ItemName,
		ItemCode: record.ItemCode,
		Unit:     record.Unit,
		Quantity: record.Quantity,
		Rate:     record.Rate,
		Amount:   amount,
		Reason:   record.Reason,
	}
}

// Flatten returns one record per line item in hierarchy order. It is the
// inverse of Aggregate: aggregating the flattened output yields the same
// groups.
func Flatten(groups []entities.OrderGroup) []entities.TransactionRecord {
	var records []entities.TransactionRecord
	for _, group := range groups {
		records = append(records, FlattenGroup(&group)...)
	}
	return records
}

// FlattenGroup returns the records of a single order group
func FlattenGroup(group *entities.OrderGroup) []entities.TransactionRecord {
	records := make([]entities.TransactionRecord, 0, group.LineCount())
	for _, alloc := range group.Allocations {
		for _, line := range alloc.Lines {
			records = append(records, entities.TransactionRecord{
				OrderGroupID:    group.ID,
				Kind:            group.Kind,
				Status:          group.Status,
				CreatedAt:       group.CreatedAt,
				FulfillmentDate: group.FulfillmentDate,
				ContractID:      alloc.ContractID,
				Counterparty:    alloc.Counterparty,
				LineID:          line.ID,
				ItemName:        line.ItemName,
				ItemCode:        line.ItemCode,
				Unit:            line.Unit,
				Quantity:        line.Quantity,
				Rate:            line.Rate,
				Amount:          line.Amount,
				Reason:          line.Reason,
			})
		}
	}
	return records
}
