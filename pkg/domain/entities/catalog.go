package entities

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// ContractID identifies a contract whose catalog line items draw on
type ContractID string

// ItemName identifies a catalog item within a contract
type ItemName string

// UnitOfMeasure names a unit such as "Ltrs", "Kg" or "Box"
type UnitOfMeasure string

// ConversionTable maps a unit of measure to its rate factor: how many base
// units are contained in one of that unit.
type ConversionTable map[UnitOfMeasure]decimal.Decimal

// Units returns the units in the table in sorted order
func (t ConversionTable) Units() []UnitOfMeasure {
	units := make([]UnitOfMeasure, 0, len(t))
	for unit := range t {
		units = append(units, unit)
	}
	sort.Slice(units, func(i, j int) bool { return units[i] < units[j] })
	return units
}

// Clone returns an independent copy of the table
func (t ConversionTable) Clone() ConversionTable {
	if t == nil {
		return nil
	}
	out := make(ConversionTable, len(t))
	for unit, factor := range t {
		out[unit] = factor
	}
	return out
}

// CatalogItem is an item a contract offers, with its base pricing and the
// quantity still allocatable against the contract.
type CatalogItem struct {
	ContractID        ContractID
	Name              ItemName
	Code              string
	BaseUnit          UnitOfMeasure
	BaseRate          decimal.Decimal
	RemainingQuantity decimal.Decimal
	Conversions       ConversionTable
}

// NewCatalogItem creates a validated CatalogItem. The base unit is added to
// the conversion table with factor 1 when missing.
func NewCatalogItem(
	contractID ContractID,
	name ItemName,
	code string,
	baseUnit UnitOfMeasure,
	baseRate, remaining decimal.Decimal,
	conversions ConversionTable,
) (*CatalogItem, error) {
	if string(contractID) == "" {
		return nil, fmt.Errorf("contract id cannot be empty")
	}
	if string(name) == "" {
		return nil, fmt.Errorf("item name cannot be empty")
	}
	if string(baseUnit) == "" {
		return nil, fmt.Errorf("base unit cannot be empty")
	}
	if baseRate.IsNegative() {
		return nil, fmt.Errorf("base rate cannot be negative, got %s", baseRate)
	}
	if remaining.IsNegative() {
		return nil, fmt.Errorf("remaining quantity cannot be negative, got %s", remaining)
	}

	table := conversions.Clone()
	if table == nil {
		table = make(ConversionTable, 1)
	}
	for _, unit := range table.Units() {
		factor := table[unit]
		if !factor.IsPositive() {
			return nil, fmt.Errorf("conversion factor for %s must be positive, got %s", unit, factor)
		}
	}
	if factor, ok := table[baseUnit]; ok && !factor.Equal(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("base unit %s must have factor 1, got %s", baseUnit, factor)
	}
	table[baseUnit] = decimal.NewFromInt(1)

	return &CatalogItem{
		ContractID:        contractID,
		Name:              name,
		Code:              code,
		BaseUnit:          baseUnit,
		BaseRate:          baseRate,
		RemainingQuantity: remaining,
		Conversions:       table,
	}, nil
}

// Units returns the units this item can be ordered in, base unit first
func (c *CatalogItem) Units() []UnitOfMeasure {
	units := []UnitOfMeasure{c.BaseUnit}
	for _, unit := range c.Conversions.Units() {
		if unit != c.BaseUnit {
			units = append(units, unit)
		}
	}
	return units
}

// Clone returns a copy that shares no mutable state with c
func (c *CatalogItem) Clone() *CatalogItem {
	out := *c
	out.Conversions = c.Conversions.Clone()
	return &out
}

// Contract groups the catalog items offered under one contract
type Contract struct {
	ID           ContractID
	Counterparty string
	Items        []*CatalogItem
}

// Item returns the catalog item with the given name
func (c *Contract) Item(name ItemName) (*CatalogItem, error) {
	for _, item := range c.Items {
		if item.Name == name {
			return item, nil
		}
	}
	return nil, &NotFoundError{Kind: "catalog item", Key: fmt.Sprintf("%s/%s", c.ID, name)}
}

// Validate checks contract-level invariants: a non-empty id and item names
// unique within the contract.
func (c *Contract) Validate() error {
	if string(c.ID) == "" {
		return fmt.Errorf("contract id cannot be empty")
	}
	seen := make(map[ItemName]bool, len(c.Items))
	for _, item := range c.Items {
		if item.ContractID != c.ID {
			return fmt.Errorf("item %s belongs to contract %s, not %s", item.Name, item.ContractID, c.ID)
		}
		if seen[item.Name] {
			return fmt.Errorf("duplicate item %s in contract %s", item.Name, c.ID)
		}
		seen[item.Name] = true
	}
	return nil
}

// Clone returns a deep copy of the contract
func (c *Contract) Clone() *Contract {
	out := &Contract{ID: c.ID, Counterparty: c.Counterparty, Items: make([]*CatalogItem, len(c.Items))}
	for i, item := range c.Items {
		out.Items[i] = item.Clone()
	}
	return out
}

// StockAdjustment changes the remaining quantity of one catalog item. A
// positive delta commits (consumes) quantity, a negative delta releases it.
type StockAdjustment struct {
	ContractID ContractID
	ItemName   ItemName
	Delta      decimal.Decimal
}

// IsRelease reports whether the adjustment gives quantity back
func (a StockAdjustment) IsRelease() bool {
	return a.Delta.IsNegative()
}

// NetAdjustments merges adjustments to the same item, keeping first-seen
// order and dropping items whose deltas cancel out
func NetAdjustments(adjustments []StockAdjustment) []StockAdjustment {
	type key struct {
		contract ContractID
		item     ItemName
	}
	index := make(map[key]int, len(adjustments))
	var net []StockAdjustment
	for _, adj := range adjustments {
		k := key{adj.ContractID, adj.ItemName}
		if i, ok := index[k]; ok {
			net[i].Delta = net[i].Delta.Add(adj.Delta)
			continue
		}
		index[k] = len(net)
		net = append(net, adj)
	}

	out := net[:0]
	for _, adj := range net {
		if !adj.Delta.IsZero() {
			out = append(out, adj)
		}
	}
	return out
}
