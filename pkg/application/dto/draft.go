package dto

import (
	"github.com/vsinha/tradeops/pkg/domain/entities"
)

// DraftOrderGroup is an order group as entered on a form, before any of it
// has been validated. Quantities stay raw text so that non-numeric input can
// be reported per line.
type DraftOrderGroup struct {
	Kind            string            `yaml:"kind" json:"kind"`
	FulfillmentDate string            `yaml:"fulfillment_date,omitempty" json:"fulfillment_date,omitempty"`
	Allocations     []DraftAllocation `yaml:"allocations" json:"allocations"`
}

// DraftAllocation holds the lines drawn on one contract
type DraftAllocation struct {
	ContractID string      `yaml:"contract_id" json:"contract_id"`
	Lines      []DraftLine `yaml:"lines" json:"lines"`
}

// DraftLine is one line of a draft. ID is set only for a line that has
// been committed before.
type DraftLine struct {
	ID       string `yaml:"id,omitempty" json:"id,omitempty"`
	Item     string `yaml:"item" json:"item"`
	Unit     string `yaml:"unit,omitempty" json:"unit,omitempty"`
	Quantity string `yaml:"quantity" json:"quantity"`
	Reason   string `yaml:"reason,omitempty" json:"reason,omitempty"`
}

// LineCount returns the number of draft lines across all allocations
func (d *DraftOrderGroup) LineCount() int {
	count := 0
	for _, alloc := range d.Allocations {
		count += len(alloc.Lines)
	}
	return count
}

// DraftFromOrderGroup returns the draft a form would show when editing a
// committed order group
func DraftFromOrderGroup(group *entities.OrderGroup) DraftOrderGroup {
	draft := DraftOrderGroup{
		Kind:        group.Kind.String(),
		Allocations: make([]DraftAllocation, len(group.Allocations)),
	}
	if !group.FulfillmentDate.IsZero() {
		draft.FulfillmentDate = group.FulfillmentDate.Format("2006-01-02")
	}
	for i, alloc := range group.Allocations {
		draft.Allocations[i].ContractID = string(alloc.ContractID)
		for _, line := range alloc.Lines {
			draft.Allocations[i].Lines = append(draft.Allocations[i].Lines, DraftLine{
				ID:       line.ID,
				Item:     string(line.ItemName),
				Unit:     string(line.Unit),
				Quantity: line.Quantity.String(),
				Reason:   line.Reason,
			})
		}
	}
	return draft
}
