package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

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

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return insertRecords(ctx, tx, records)
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
	records, err := queryRecords(ctx, s.db,
		`SELECT `+recordColumns+` FROM transaction_records WHERE kind = $1 ORDER BY seq`, kind.String())
	if err != nil {
		return nil, fmt.Errorf("failed to load %s records: %w", kind, err)
	}
	return records, nil
}

// GetOrderGroup rebuilds one order group from its records
func (s *Store) GetOrderGroup(ctx context.Context, id entities.OrderGroupID) (*entities.OrderGroup, error) {
	records, err := queryRecords(ctx, s.db,
		`SELECT `+recordColumns+` FROM transaction_records WHERE order_group_id = $1 ORDER BY seq`, string(id))
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

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM transaction_records WHERE order_group_id = $1`, string(group.ID),
		); err != nil {
			return mapError(err)
		}
		return insertRecords(ctx, tx, replacement)
	})
	if err != nil {
		return fmt.Errorf("failed to commit order group %s: %w", group.ID, err)
	}
	return nil
}

func insertRecords(ctx context.Context, tx *sql.Tx, records []entities.TransactionRecord) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO transaction_records (`+recordColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`)
	if err != nil {
		return mapError(err)
	}
	defer stmt.Close()

	for i, record := range records {
		if _, err := stmt.ExecContext(ctx,
			string(record.OrderGroupID),
			record.Kind.String(),
			record.Status.String(),
			nullTime(record.CreatedAt),
			nullTime(record.FulfillmentDate),
			string(record.ContractID),
			record.Counterparty,
			record.LineID,
			string(record.ItemName),
			record.ItemCode,
			string(record.Unit),
			record.Quantity,
			record.Rate,
			record.Amount,
			record.Reason,
		); err != nil {
			return fmt.Errorf("record %d: %w", i, mapError(err))
		}
	}
	return nil
}

func queryRecords(ctx context.Context, q queryer, query string, args ...any) ([]entities.TransactionRecord, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var records []entities.TransactionRecord
	for rows.Next() {
		var (
			record                     entities.TransactionRecord
			groupID, kind, status      string
			createdAt, fulfillment     sql.NullTime
			contractID, itemName, unit string
			quantity, rate, amount     decimal.Decimal
		)
		if err := rows.Scan(&groupID, &kind, &status, &createdAt, &fulfillment, &contractID,
			&record.Counterparty, &record.LineID, &itemName, &record.ItemCode, &unit,
			&quantity, &rate, &amount, &record.Reason); err != nil {
			return nil, fmt.Errorf("record %d: %w", len(records), err)
		}

		record.Kind, err = entities.ParseDocumentKind(kind)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", len(records), err)
		}
		record.Status, err = entities.ParseOrderStatus(status)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", len(records), err)
		}
		record.OrderGroupID = entities.OrderGroupID(groupID)
		record.CreatedAt = timeValue(createdAt)
		record.FulfillmentDate = timeValue(fulfillment)
		record.ContractID = entities.ContractID(contractID)
		record.ItemName = entities.ItemName(itemName)
		record.Unit = entities.UnitOfMeasure(unit)
		record.Quantity = quantity
		record.Rate = rate
		record.Amount = amount

		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return records, nil
}
