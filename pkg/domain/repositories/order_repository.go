package repositories

import (
	"context"

	"github.com/vsinha/tradeops/pkg/domain/entities"
)

// OrderRepository stores committed order groups as flat transaction records
type OrderRepository interface {
	// LoadRecords returns the records of every order group of the given
	// kind, in insertion order
	LoadRecords(ctx context.Context, kind entities.DocumentKind) ([]entities.TransactionRecord, error)
	GetOrderGroup(ctx context.Context, id entities.OrderGroupID) (*entities.OrderGroup, error)

	// CommitOrderGroup replaces all records of the group with its current
	// lines
	CommitOrderGroup(ctx context.Context, group *entities.OrderGroup) error
	ImportRecords(ctx context.Context, records []entities.TransactionRecord) error
}
