package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vsinha/tradeops/pkg/domain/entities"
)

// SaveDispute stores a dispute. Dispute numbers are unique.
func (s *Store) SaveDispute(ctx context.Context, dispute *entities.DisputeRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO disputes (number, order_group_id, invoice_number, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		dispute.Number, string(dispute.OrderGroupID), dispute.InvoiceNumber, dispute.Reason, nullTime(dispute.CreatedAt),
	)
	err = mapError(err)
	if isUniqueViolation(err) {
		return fmt.Errorf("dispute %s already exists: %w", dispute.Number, err)
	}
	if err != nil {
		return fmt.Errorf("failed to save dispute %s: %w", dispute.Number, err)
	}
	return nil
}

// ListDisputes returns the disputes of one order group, or every dispute
// when orderGroupID is empty, oldest first
func (s *Store) ListDisputes(ctx context.Context, orderGroupID entities.OrderGroupID) ([]*entities.DisputeRecord, error) {
	query := `SELECT number, order_group_id, invoice_number, reason, created_at FROM disputes`
	var args []any
	if orderGroupID != "" {
		query += ` WHERE order_group_id = $1`
		args = append(args, string(orderGroupID))
	}
	query += ` ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list disputes: %w", mapError(err))
	}
	defer rows.Close()

	var disputes []*entities.DisputeRecord
	for rows.Next() {
		var (
			dispute   entities.DisputeRecord
			groupID   string
			createdAt sql.NullTime
		)
		if err := rows.Scan(&dispute.Number, &groupID, &dispute.InvoiceNumber, &dispute.Reason, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan dispute: %w", err)
		}
		dispute.OrderGroupID = entities.OrderGroupID(groupID)
		dispute.CreatedAt = timeValue(createdAt)
		disputes = append(disputes, &dispute)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate disputes: %w", mapError(err))
	}
	return disputes, nil
}
