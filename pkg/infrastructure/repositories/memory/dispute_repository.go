package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/vsinha/tradeops/pkg/domain/entities"
	"github.com/vsinha/tradeops/pkg/domain/repositories"
)

// DisputeRepository provides in-memory dispute storage
type DisputeRepository struct {
	mu       sync.RWMutex
	disputes []entities.DisputeRecord
	numbers  map[string]bool
}

// NewDisputeRepository creates a new in-memory dispute repository
func NewDisputeRepository() *DisputeRepository {
	return &DisputeRepository{
		disputes: make([]entities.DisputeRecord, 0),
		numbers:  make(map[string]bool),
	}
}

// Verify interface compliance
var _ repositories.DisputeRepository = (*DisputeRepository)(nil)

// SaveDispute stores a dispute; numbers are unique
func (r *DisputeRepository) SaveDispute(ctx context.Context, dispute *entities.DisputeRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.numbers[dispute.Number] {
		return fmt.Errorf("dispute %s already exists", dispute.Number)
	}
	r.numbers[dispute.Number] = true
	r.disputes = append(r.disputes, *dispute)
	return nil
}

// ListDisputes returns the disputes of an order group, oldest first. An
// empty id lists every dispute.
func (r *DisputeRepository) ListDisputes(ctx context.Context, orderGroupID entities.OrderGroupID) ([]*entities.DisputeRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var disputes []*entities.DisputeRecord
	for i := range r.disputes {
		if orderGroupID == "" || r.disputes[i].OrderGroupID == orderGroupID {
			dispute := r.disputes[i]
			disputes = append(disputes, &dispute)
		}
	}
	return disputes, nil
}
