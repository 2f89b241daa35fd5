package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/vsinha/tradeops/pkg/domain/entities"
	"github.com/vsinha/tradeops/pkg/domain/repositories"
	"github.com/vsinha/tradeops/pkg/domain/services"
)

// OrderRepository provides in-memory transaction record storage
type OrderRepository struct {
	mu      sync.RWMutex
	records []entities.TransactionRecord
}

// NewOrderRepository creates a new in-memory order repository
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		records: make([]entities.TransactionRecord, 0),
	}
}

// Verify interface compliance
var _ repositories.OrderRepository = (*OrderRepository)(nil)

// ImportRecords appends records as supplied. Malformed records are rejected
// before any is stored.
func (r *OrderRepository) ImportRecords(ctx context.Context, records []entities.TransactionRecord) error {
	for i, record := range records {
		if err := record.Validate(i); err != nil {
			return fmt.Errorf("failed to import records: %w", err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, records...)
	return nil
}

// LoadRecords returns the records of every order group of the given kind
func (r *OrderRepository) LoadRecords(ctx context.Context, kind entities.DocumentKind) ([]entities.TransactionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var records []entities.TransactionRecord
	for _, record := range r.records {
		if record.Kind == kind {
			records = append(records, record)
		}
	}
	return records, nil
}

// GetOrderGroup rebuilds one order group from its records
func (r *OrderRepository) GetOrderGroup(ctx context.Context, id entities.OrderGroupID) (*entities.OrderGroup, error) {
	r.mu.RLock()
	var records []entities.TransactionRecord
	for _, record := range r.records {
		if record.OrderGroupID == id {
			records = append(records, record)
		}
	}
	r.mu.RUnlock()

	if len(records) == 0 {
		return nil, &entities.NotFoundError{Kind: "order group", Key: string(id)}
	}

	groups, err := services.Aggregate(records)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild order group %s: %w", id, err)
	}
	return &groups[0], nil
}

// CommitOrderGroup replaces the group's records with its current lines
func (r *OrderRepository) CommitOrderGroup(ctx context.Context, group *entities.OrderGroup) error {
	replacement := services.FlattenGroup(group)
	for i, record := range replacement {
		if err := record.Validate(i); err != nil {
			return fmt.Errorf("failed to commit order group %s: %w", group.ID, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	kept := make([]entities.TransactionRecord, 0, len(r.records)+len(replacement))
	for _, record := range r.records {
		if record.OrderGroupID != group.ID {
			kept = append(kept, record)
		}
	}
	r.records = append(kept, replacement...)
	return nil
}
