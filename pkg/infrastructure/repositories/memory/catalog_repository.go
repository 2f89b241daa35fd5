package memory

import (
	"context"
	"sync"

	"github.com/vsinha/tradeops/pkg/domain/entities"
	"github.com/vsinha/tradeops/pkg/domain/repositories"
)

// CatalogRepository provides in-memory catalog storage. Callers always get
// copies; remaining quantities change only through Apply.
type CatalogRepository struct {
	mu           sync.RWMutex
	contracts    []*entities.Contract
	contractsMap map[entities.ContractID]int
}

// NewCatalogRepository creates a new in-memory catalog repository
func NewCatalogRepository() *CatalogRepository {
	return &CatalogRepository{
		contracts:    make([]*entities.Contract, 0),
		contractsMap: make(map[entities.ContractID]int),
	}
}

// Verify interface compliance
var _ repositories.CatalogRepository = (*CatalogRepository)(nil)

// LoadContracts loads contracts into the repository, replacing any contract
// with the same id
func (r *CatalogRepository) LoadContracts(ctx context.Context, contracts []*entities.Contract) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, contract := range contracts {
		if err := contract.Validate(); err != nil {
			return err
		}
		if index, exists := r.contractsMap[contract.ID]; exists {
			r.contracts[index] = contract.Clone()
			continue
		}
		r.contractsMap[contract.ID] = len(r.contracts)
		r.contracts = append(r.contracts, contract.Clone())
	}
	return nil
}

// GetContract returns a contract with its ordered items
func (r *CatalogRepository) GetContract(ctx context.Context, id entities.ContractID) (*entities.Contract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	index, exists := r.contractsMap[id]
	if !exists {
		return nil, &entities.NotFoundError{Kind: "contract", Key: string(id)}
	}
	return r.contracts[index].Clone(), nil
}

// GetItem returns one catalog item of a contract
func (r *CatalogRepository) GetItem(ctx context.Context, contractID entities.ContractID, name entities.ItemName) (*entities.CatalogItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	item, err := r.lookupItem(contractID, name)
	if err != nil {
		return nil, err
	}
	return item.Clone(), nil
}

// ListContracts returns all contracts in load order
func (r *CatalogRepository) ListContracts(ctx context.Context) ([]*entities.Contract, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	contracts := make([]*entities.Contract, len(r.contracts))
	for i, contract := range r.contracts {
		contracts[i] = contract.Clone()
	}
	return contracts, nil
}

// Apply checks every adjustment against the current remaining quantities
// before changing any of them
func (r *CatalogRepository) Apply(ctx context.Context, adjustments []entities.StockAdjustment) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	net := entities.NetAdjustments(adjustments)
	targets := make([]*entities.CatalogItem, len(net))
	for i, adj := range net {
		item, err := r.lookupItem(adj.ContractID, adj.ItemName)
		if err != nil {
			return err
		}
		if item.RemainingQuantity.LessThan(adj.Delta) {
			return &entities.QuantityExceedsAllocationError{
				Item:      item.Name,
				Requested: adj.Delta,
				Ceiling:   item.RemainingQuantity,
			}
		}
		targets[i] = item
	}

	for i, adj := range net {
		targets[i].RemainingQuantity = targets[i].RemainingQuantity.Sub(adj.Delta)
	}
	return nil
}

// lookupItem must be called with the lock held
func (r *CatalogRepository) lookupItem(contractID entities.ContractID, name entities.ItemName) (*entities.CatalogItem, error) {
	index, exists := r.contractsMap[contractID]
	if !exists {
		return nil, &entities.NotFoundError{Kind: "contract", Key: string(contractID)}
	}
	return r.contracts[index].Item(name)
}
