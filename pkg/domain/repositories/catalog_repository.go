package repositories

import (
	"context"

	"github.com/vsinha/tradeops/pkg/domain/entities"
)

// CatalogRepository provides access to contract catalogs and owns the
// remaining quantity of every catalog item
type CatalogRepository interface {
	GetContract(ctx context.Context, id entities.ContractID) (*entities.Contract, error)
	GetItem(
		ctx context.Context,
		contractID entities.ContractID,
		name entities.ItemName,
	) (*entities.CatalogItem, error)
	ListContracts(ctx context.Context) ([]*entities.Contract, error)
	LoadContracts(ctx context.Context, contracts []*entities.Contract) error

	// Apply commits and releases stock atomically. Either every adjustment
	// is applied or none is; an adjustment that would drive a remaining
	// quantity below zero fails with QuantityExceedsAllocationError.
	Apply(ctx context.Context, adjustments []entities.StockAdjustment) error
}
