package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/tradeops/pkg/application/dto"
	"github.com/vsinha/tradeops/pkg/domain/entities"
	domainservices "github.com/vsinha/tradeops/pkg/domain/services"
)

// FulfillmentDateLayout is the layout of fulfillment dates in drafts
const FulfillmentDateLayout = "2006-01-02"

// heldLine is the quantity a committed line holds against the catalog
type heldLine struct {
	contractID entities.ContractID
	itemName   entities.ItemName
	quantity   decimal.Decimal
}

func (h heldLine) release() entities.StockAdjustment {
	return entities.StockAdjustment{
		ContractID: h.contractID,
		ItemName:   h.itemName,
		Delta:      h.quantity.Neg(),
	}
}

func heldLines(group *entities.OrderGroup) map[string]heldLine {
	held := make(map[string]heldLine, group.LineCount())
	for _, alloc := range group.Allocations {
		for _, line := range alloc.Lines {
			if line.IsCommitted() {
				held[line.ID] = heldLine{
					contractID: alloc.ContractID,
					itemName:   line.ItemName,
					quantity:   line.Quantity,
				}
			}
		}
	}
	return held
}

type resolvedDraft struct {
	fulfillmentDate time.Time
	allocations     []entities.ContractAllocation
}

// resolveDraft resolves every line of a draft against the catalog. held
// carries the committed lines of the group being edited and is nil for a
// new submission. Recoverable line errors are collected into one
// ValidationError; unknown contracts, items or line ids abort at once.
func (s *OrderService) resolveDraft(
	ctx context.Context,
	kind entities.DocumentKind,
	draft dto.DraftOrderGroup,
	held map[string]heldLine,
) (resolvedDraft, error) {
	var out resolvedDraft

	if len(draft.Allocations) == 0 {
		return out, fmt.Errorf("order group must have at least one allocation")
	}

	if date := strings.TrimSpace(draft.FulfillmentDate); date != "" {
		parsed, err := time.Parse(FulfillmentDateLayout, date)
		if err != nil {
			return out, fmt.Errorf("invalid fulfillment date %q: %w", draft.FulfillmentDate, err)
		}
		out.fulfillmentDate = parsed
	}

	validation := &entities.ValidationError{}
	seenContracts := make(map[entities.ContractID]bool, len(draft.Allocations))
	seenLines := make(map[string]bool)
	out.allocations = make([]entities.ContractAllocation, 0, len(draft.Allocations))

	for i, draftAlloc := range draft.Allocations {
		contractID := entities.ContractID(strings.TrimSpace(draftAlloc.ContractID))
		if contractID == "" {
			return out, fmt.Errorf("allocation %d: contract id cannot be empty", i)
		}
		if seenContracts[contractID] {
			return out, fmt.Errorf("allocation %d: contract %s appears in more than one allocation", i, contractID)
		}
		seenContracts[contractID] = true
		if len(draftAlloc.Lines) == 0 {
			return out, fmt.Errorf("allocation %d (%s) has no lines", i, contractID)
		}

		contract, err := s.catalog.GetContract(ctx, contractID)
		if err != nil {
			return out, fmt.Errorf("allocation %d: %w", i, err)
		}

		alloc := entities.ContractAllocation{
			ContractID:   contract.ID,
			Counterparty: contract.Counterparty,
			Lines:        make([]entities.LineItem, 0, len(draftAlloc.Lines)),
		}

		for j, draftLine := range draftAlloc.Lines {
			itemName := entities.ItemName(strings.TrimSpace(draftLine.Item))

			lineID := ""
			existing := decimal.Zero
			if held != nil && draftLine.ID != "" {
				previous, ok := held[draftLine.ID]
				if !ok {
					return out, fmt.Errorf("allocation %d line %d: line %s is not part of this order group", i, j, draftLine.ID)
				}
				if seenLines[draftLine.ID] {
					return out, fmt.Errorf("allocation %d line %d: line %s appears more than once", i, j, draftLine.ID)
				}
				seenLines[draftLine.ID] = true
				lineID = draftLine.ID
				if previous.contractID == contractID && previous.itemName == itemName {
					existing = previous.quantity
				}
			}

			resolved, err := s.reconciler.Resolve(ctx, kind, domainservices.LineRequest{
				ContractID:        contractID,
				ItemName:          itemName,
				Unit:              entities.UnitOfMeasure(strings.TrimSpace(draftLine.Unit)),
				Quantity:          draftLine.Quantity,
				Reason:            strings.TrimSpace(draftLine.Reason),
				ExistingCommitted: existing,
			})
			if errors.Is(err, entities.ErrNotFound) {
				return out, fmt.Errorf("allocation %d line %d: %w", i, j, err)
			}
			if err != nil {
				validation.Lines = append(validation.Lines, entities.LineError{
					Allocation: i,
					Line:       j,
					ContractID: contractID,
					Item:       itemName,
					Err:        err,
				})
				continue
			}

			resolved.Line.ID = lineID
			alloc.Lines = append(alloc.Lines, resolved.Line)
		}

		out.allocations = append(out.allocations, alloc)
	}

	if len(validation.Lines) > 0 {
		return resolvedDraft{}, validation
	}
	return out, nil
}
