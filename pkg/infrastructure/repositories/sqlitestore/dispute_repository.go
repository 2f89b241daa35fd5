package sqlitestore

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/vsinha/tradeops/pkg/domain/entities"
)

// SaveDispute stores a dispute. Dispute numbers are unique.
func (s *Store) SaveDispute(ctx context.Context, dispute *entities.DisputeRecord) error {
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			`INSERT INTO disputes (number, order_group_id, invoice_number, reason, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{
				dispute.Number,
				string(dispute.OrderGroupID),
				dispute.InvoiceNumber,
				dispute.Reason,
				formatTime(dispute.CreatedAt),
			}},
		)
	})
	if sqlite.ErrCode(err).ToPrimary() == sqlite.ResultConstraint {
		return fmt.Errorf("dispute %s already exists", dispute.Number)
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
		query += ` WHERE order_group_id = ?`
		args = append(args, string(orderGroupID))
	}
	query += ` ORDER BY rowid`

	var disputes []*entities.DisputeRecord
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
			Args: args,
			ResultFunc: func(stmt *sqlite.Stmt) error {
				createdAt, err := parseTime(stmt.ColumnText(4))
				if err != nil {
					return fmt.Errorf("column created_at: %w", err)
				}
				disputes = append(disputes, &entities.DisputeRecord{
					Number:        stmt.ColumnText(0),
					OrderGroupID:  entities.OrderGroupID(stmt.ColumnText(1)),
					InvoiceNumber: stmt.ColumnText(2),
					Reason:        stmt.ColumnText(3),
					CreatedAt:     createdAt,
				})
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list disputes: %w", err)
	}
	return disputes, nil
}
