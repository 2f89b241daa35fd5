package services

import (
	"github.com/shopspring/decimal"

	"github.com/vsinha/tradeops/pkg/domain/entities"
)

// Convert returns the rate per one unit of the requested unit of measure.
//
// The table encodes how many base units one of each unit contains, so a
// coarser unit such as a box multiplies the base rate. An empty unit, the
// base unit, or a unit absent from the table all price 1:1 at the base rate.
// Convert never fails.
func Convert(baseRate decimal.Decimal, unit entities.UnitOfMeasure, table entities.ConversionTable) decimal.Decimal {
	if unit == "" {
		return baseRate
	}
	factor, ok := table[unit]
	if !ok {
		return baseRate
	}
	return baseRate.Mul(factor)
}

// RateFor returns the effective rate of item in the given unit
func RateFor(item *entities.CatalogItem, unit entities.UnitOfMeasure) decimal.Decimal {
	if unit == item.BaseUnit {
		return item.BaseRate
	}
	return Convert(item.BaseRate, unit, item.Conversions)
}

// IsKnownUnit reports whether unit has an explicit entry in the item's
// conversion table. Unknown units still resolve, at the base rate.
func IsKnownUnit(item *entities.CatalogItem, unit entities.UnitOfMeasure) bool {
	if unit == item.BaseUnit {
		return true
	}
	_, ok := item.Conversions[unit]
	return ok
}
