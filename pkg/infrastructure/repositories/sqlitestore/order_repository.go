package sqlitestore

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/vsinha/tradeops/pkg/domain/entities"
	"github.com/vsinha/tradeops/pkg/domain/services"
)

const recordColumns = `order_group_id, kind, status, created_at, fulfillment_date, contract_id,
	counterparty, line_id, item_name, item_code, unit, quantity, rate, amount, reason`

// ImportRecords appends records as supplied. Malformed records are rejected
// before any is stored.
func (s *Store) ImportRecords(ctx context.Context, records []entities.TransactionRecord) error {
	for i, record := range records {
		if err := record.Validate(i); err != nil {
			return fmt.Errorf("failed to import records: %w", err)
		}
	}

	err := s.withImmediateTx(ctx, func(conn *sqlite.Conn) error {
		return insertRecords(conn, records)
	})
	if err != nil {
		return fmt.Errorf("failed to import records: %w", err)
	}

	s.logger.Info("records imported", "count", len(records))
	return nil
}

// LoadRecords returns the records of every order group of the given kind,
// in insertion order
func (s *Store) LoadRecords(ctx context.Context, kind entities.DocumentKind) ([]entities.TransactionRecord, error) {
	var records []entities.TransactionRecord
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		records, err = queryRecords(conn,
			`SELECT `+recordColumns+` FROM transaction_records WHERE kind = ? ORDER BY seq`,
			int64(kind))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load %s records: %w", kind, err)
	}
	return records, nil
}

// GetOrderGroup rebuilds one order group from its records
func (s *Store) GetOrderGroup(ctx context.Context, id entities.OrderGroupID) (*entities.OrderGroup, error) {
	var records []entities.TransactionRecord
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		records, err = queryRecords(conn,
			`SELECT `+recordColumns+` FROM transaction_records WHERE order_group_id = ? ORDER BY seq`,
			string(id))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read order group %s: %w", id, err)
	}
	if len(records) == 0 {
		return nil, &entities.NotFoundError{Kind: "order group", Key: string(id)}
	}

	groups, err := services.Aggregate(records)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild order group %s: %w", id, err)
	}
	return &groups[0], nil
}

// CommitOrderGroup replaces the group's records with its current lines in
// one transaction
func (s *Store) CommitOrderGroup(ctx context.Context, group *entities.OrderGroup) error {
	replacement := services.FlattenGroup(group)
	for i, record := range replacement {
		if err := record.Validate(i); err != nil {
			return fmt.Errorf("failed to commit order group %s: %w", group.ID, err)
		}
	}

	err := s.withImmediateTx(ctx, func(conn *sqlite.Conn) error {
		if err := sqlitex.Execute(conn,
			`DELETE FROM transaction_records WHERE order_group_id = ?`,
			&sqlitex.ExecOptions{Args: []any{string(group.ID)}},
		); err != nil {
			return err
		}
		return insertRecords(conn, replacement)
	})
	if err != nil {
		return fmt.Errorf("failed to commit order group %s: %w", group.ID, err)
	}
	return nil
}

func insertRecords(conn *sqlite.Conn, records []entities.TransactionRecord) error {
	for i, record := range records {
		if err := sqlitex.Execute(conn,
			`INSERT INTO transaction_records (`+recordColumns+`)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{
				string(record.OrderGroupID),
				int64(record.Kind),
				int64(record.Status),
				formatTime(record.CreatedAt),
				formatTime(record.FulfillmentDate),
				string(record.ContractID),
				record.Counterparty,
				record.LineID,
				string(record.ItemName),
				record.ItemCode,
				string(record.Unit),
				record.Quantity.String(),
				record.Rate.String(),
				record.Amount.String(),
				record.Reason,
			}},
		); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	return nil
}

func queryRecords(conn *sqlite.Conn, query string, args ...any) ([]entities.TransactionRecord, error) {
	var records []entities.TransactionRecord
	err := sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			record, err := scanRecord(stmt)
			if err != nil {
				return fmt.Errorf("record %d: %w", len(records), err)
			}
			records = append(records, record)
			return nil
		},
	})
	return records, err
}

func scanRecord(stmt *sqlite.Stmt) (entities.TransactionRecord, error) {
	createdAt, err := parseTime(stmt.ColumnText(3))
	if err != nil {
		return entities.TransactionRecord{}, fmt.Errorf("column created_at: %w", err)
	}
	fulfillment, err := parseTime(stmt.ColumnText(4))
	if err != nil {
		return entities.TransactionRecord{}, fmt.Errorf("column fulfillment_date: %w", err)
	}
	quantity, err := parseDecimal("quantity", stmt.ColumnText(11))
	if err != nil {
		return entities.TransactionRecord{}, err
	}
	rate, err := parseDecimal("rate", stmt.ColumnText(12))
	if err != nil {
		return entities.TransactionRecord{}, err
	}
	amount, err := parseDecimal("amount", stmt.ColumnText(13))
	if err != nil {
		return entities.TransactionRecord{}, err
	}

	return entities.TransactionRecord{
		OrderGroupID:    entities.OrderGroupID(stmt.ColumnText(0)),
		Kind:            entities.DocumentKind(stmt.ColumnInt64(1)),
		Status:          entities.OrderStatus(stmt.ColumnInt64(2)),
		CreatedAt:       createdAt,
		FulfillmentDate: fulfillment,
		ContractID:      entities.ContractID(stmt.ColumnText(5)),
		Counterparty:    stmt.ColumnText(6),
		LineID:          stmt.ColumnText(7),
		ItemName:        entities.ItemName(stmt.ColumnText(8)),
		ItemCode:        stmt.ColumnText(9),
		Unit:            entities.UnitOfMeasure(stmt.ColumnText(10)),
		Quantity:        quantity,
		Rate:            rate,
		Amount:          amount,
		Reason:          stmt.ColumnText(14),
	}, nil
}
