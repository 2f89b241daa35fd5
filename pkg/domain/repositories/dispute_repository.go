package repositories

import (
	"context"

	"github.com/vsinha/tradeops/pkg/domain/entities"
)

// DisputeRepository stores disputes raised against delivered order groups
type DisputeRepository interface {
	SaveDispute(ctx context.Context, dispute *entities.DisputeRecord) error
	ListDisputes(ctx context.Context, orderGroupID entities.OrderGroupID) ([]*entities.DisputeRecord, error)
}
