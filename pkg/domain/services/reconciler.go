package services

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vsinha/tradeops/pkg/domain/entities"
	"github.com/vsinha/tradeops/pkg/domain/repositories"
)

// CurrencyPlaces is the number of minor-unit digits amounts are rounded to
const CurrencyPlaces = 2

// RoundCurrency rounds an amount to currency minor units, half away from
// zero
func RoundCurrency(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(CurrencyPlaces)
}

// ExtendedAmount returns quantity × rate rounded to currency minor units
func ExtendedAmount(quantity, rate decimal.Decimal) decimal.Decimal {
	return RoundCurrency(quantity.Mul(rate))
}

// ParseQuantity parses quantity text entered on a form
func ParseQuantity(input string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return decimal.Zero, &entities.InvalidQuantityError{Input: input}
	}
	quantity, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, &entities.InvalidQuantityError{Input: input}
	}
	if !quantity.IsPositive() {
		return decimal.Zero, &entities.InvalidQuantityError{Input: input}
	}
	return quantity, nil
}

// Ceiling returns the most a line may request: what the catalog still has
// plus what this same line already holds
func Ceiling(item *entities.CatalogItem, existingCommitted decimal.Decimal) decimal.Decimal {
	return item.RemainingQuantity.Add(existingCommitted)
}

// ResolvedLine is the outcome of resolving one line against the catalog
type ResolvedLine struct {
	Line    entities.LineItem
	Ceiling decimal.Decimal
}

// ResolveLine prices a line in its selected unit and checks the requested
// quantity against the line's ceiling. The quantity stays expressed in the
// selected unit; only the rate follows the unit.
func ResolveLine(
	item *entities.CatalogItem,
	unit entities.UnitOfMeasure,
	quantity decimal.Decimal,
	existingCommitted decimal.Decimal,
) (ResolvedLine, error) {
	if unit == "" {
		unit = item.BaseUnit
	}
	rate := RateFor(item, unit)
	ceiling := Ceiling(item, existingCommitted)

	resolved := ResolvedLine{
		Line: entities.LineItem{
			ItemName: item.Name,
			ItemCode: item.Code,
			Unit:     unit,
			Quantity: quantity,
			Rate:     rate,
			Amount:   ExtendedAmount(quantity, rate),
		},
		Ceiling: ceiling,
	}

	if !quantity.IsPositive() {
		return resolved, &entities.InvalidQuantityError{Input: quantity.String()}
	}
	if quantity.GreaterThan(ceiling) {
		return resolved, &entities.QuantityExceedsAllocationError{
			Item:      item.Name,
			Requested: quantity,
			Ceiling:   ceiling,
		}
	}
	return resolved, nil
}

// LineRequest is a form-level edit of one line: item selection, unit
// change or quantity change. Quantity is the raw text from the form.
type LineRequest struct {
	ContractID        entities.ContractID
	ItemName          entities.ItemName
	Unit              entities.UnitOfMeasure
	Quantity          string
	Reason            string
	ExistingCommitted decimal.Decimal
}

// Reconciler resolves line requests against a catalog repository
type Reconciler struct {
	catalog repositories.CatalogRepository
}

// NewReconciler creates a reconciler over the given catalog
func NewReconciler(catalog repositories.CatalogRepository) *Reconciler {
	return &Reconciler{catalog: catalog}
}

// Resolve looks up the catalog item and resolves the request. Lines of a
// kind that requires a reason fail with MissingReasonError when it is
// blank. Resolution is advisory; nothing is committed.
func (r *Reconciler) Resolve(ctx context.Context, kind entities.DocumentKind, req LineRequest) (ResolvedLine, error) {
	item, err := r.catalog.GetItem(ctx, req.ContractID, req.ItemName)
	if err != nil {
		return ResolvedLine{}, err
	}

	quantity, err := ParseQuantity(req.Quantity)
	if err != nil {
		return ResolvedLine{Ceiling: Ceiling(item, req.ExistingCommitted)}, err
	}

	resolved, err := ResolveLine(item, req.Unit, quantity, req.ExistingCommitted)
	resolved.Line.Reason = req.Reason
	if err != nil {
		return resolved, err
	}

	if kind.RequiresReason() && strings.TrimSpace(req.Reason) == "" {
		return resolved, &entities.MissingReasonError{Item: item.Name}
	}
	return resolved, nil
}
