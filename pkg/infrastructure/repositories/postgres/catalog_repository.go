package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vsinha/tradeops/pkg/domain/entities"
	"github.com/vsinha/tradeops/pkg/infrastructure/codec"
)

// queryer is satisfied by *sql.DB and *sql.Tx
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const itemColumns = `contract_id, name, code, base_unit, base_rate, remaining, conversions`

// LoadContracts stores contracts, replacing the items of any contract with
// the same id
func (s *Store) LoadContracts(ctx context.Context, contracts []*entities.Contract) error {
	for _, contract := range contracts {
		if err := contract.Validate(); err != nil {
			return err
		}
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, contract := range contracts {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO contracts (id, counterparty) VALUES ($1, $2)
				 ON CONFLICT (id) DO UPDATE SET counterparty = EXCLUDED.counterparty`,
				string(contract.ID), contract.Counterparty,
			); err != nil {
				return fmt.Errorf("storing contract %s: %w", contract.ID, mapError(err))
			}

			if _, err := tx.ExecContext(ctx,
				`DELETE FROM catalog_items WHERE contract_id = $1`, string(contract.ID),
			); err != nil {
				return fmt.Errorf("clearing items of contract %s: %w", contract.ID, mapError(err))
			}

			for position, item := range contract.Items {
				conversions, err := codec.EncodeConversions(item.Conversions)
				if err != nil {
					return fmt.Errorf("item %s: %w", item.Name, err)
				}
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO catalog_items (contract_id, position, name, code, base_unit, base_rate, remaining, conversions)
					 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
					string(contract.ID), position, string(item.Name), item.Code, string(item.BaseUnit),
					item.BaseRate, item.RemainingQuantity, conversions,
				); err != nil {
					return fmt.Errorf("storing item %s of contract %s: %w", item.Name, contract.ID, mapError(err))
				}
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to load contracts: %w", err)
	}

	s.logger.Debug("contracts loaded", "count", len(contracts))
	return nil
}

// GetContract returns a contract with its ordered items
func (s *Store) GetContract(ctx context.Context, id entities.ContractID) (*entities.Contract, error) {
	return readContract(ctx, s.db, id)
}

// GetItem returns one catalog item of a contract
func (s *Store) GetItem(ctx context.Context, contractID entities.ContractID, name entities.ItemName) (*entities.CatalogItem, error) {
	return readItem(ctx, s.db, contractID, name, false)
}

// ListContracts returns all contracts in load order
func (s *Store) ListContracts(ctx context.Context) ([]*entities.Contract, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM contracts ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to list contracts: %w", mapError(err))
	}
	var ids []entities.ContractID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan contract: %w", err)
		}
		ids = append(ids, entities.ContractID(id))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contracts: %w", mapError(err))
	}

	contracts := make([]*entities.Contract, 0, len(ids))
	for _, id := range ids {
		contract, err := readContract(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, contract)
	}
	return contracts, nil
}

// Apply locks every affected item row, checks the adjustments against the
// locked quantities and writes them in the same transaction. Rows are
// locked in key order so concurrent callers cannot deadlock.
func (s *Store) Apply(ctx context.Context, adjustments []entities.StockAdjustment) error {
	net := entities.NetAdjustments(adjustments)
	if len(net) == 0 {
		return nil
	}

	locked := slices.Clone(net)
	slices.SortFunc(locked, func(a, b entities.StockAdjustment) int {
		if c := strings.Compare(string(a.ContractID), string(b.ContractID)); c != 0 {
			return c
		}
		return strings.Compare(string(a.ItemName), string(b.ItemName))
	})

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		items := make([]*entities.CatalogItem, len(locked))
		for i, adj := range locked {
			item, err := readItem(ctx, tx, adj.ContractID, adj.ItemName, true)
			if err != nil {
				return err
			}
			items[i] = item
		}

		for _, adj := range net {
			item := findItem(items, adj)
			if item.RemainingQuantity.LessThan(adj.Delta) {
				return &entities.QuantityExceedsAllocationError{
					Item:      item.Name,
					Requested: adj.Delta,
					Ceiling:   item.RemainingQuantity,
				}
			}
		}

		for _, adj := range net {
			item := findItem(items, adj)
			if _, err := tx.ExecContext(ctx,
				`UPDATE catalog_items SET remaining = $1 WHERE contract_id = $2 AND name = $3`,
				item.RemainingQuantity.Sub(adj.Delta), string(adj.ContractID), string(adj.ItemName),
			); err != nil {
				return fmt.Errorf("updating %s/%s: %w", adj.ContractID, adj.ItemName, mapError(err))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Debug("stock adjusted", "adjustments", len(net))
	return nil
}

func findItem(items []*entities.CatalogItem, adj entities.StockAdjustment) *entities.CatalogItem {
	for _, item := range items {
		if item.ContractID == adj.ContractID && item.Name == adj.ItemName {
			return item
		}
	}
	return nil
}

func readContract(ctx context.Context, q queryer, id entities.ContractID) (*entities.Contract, error) {
	contract := &entities.Contract{ID: id}
	err := q.QueryRowContext(ctx,
		`SELECT counterparty FROM contracts WHERE id = $1`, string(id),
	).Scan(&contract.Counterparty)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &entities.NotFoundError{Kind: "contract", Key: string(id)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read contract %s: %w", id, mapError(err))
	}

	rows, err := q.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM catalog_items WHERE contract_id = $1 ORDER BY position`, string(id))
	if err != nil {
		return nil, fmt.Errorf("failed to read items of contract %s: %w", id, mapError(err))
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		contract.Items = append(contract.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate items of contract %s: %w", id, mapError(err))
	}
	return contract, nil
}

func readItem(ctx context.Context, q queryer, contractID entities.ContractID, name entities.ItemName, forUpdate bool) (*entities.CatalogItem, error) {
	query := `SELECT ` + itemColumns + ` FROM catalog_items WHERE contract_id = $1 AND name = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	item, err := scanItem(q.QueryRowContext(ctx, query, string(contractID), string(name)))
	if !errors.Is(err, sql.ErrNoRows) {
		return item, err
	}

	var exists bool
	if err := q.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM contracts WHERE id = $1)`, string(contractID),
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to read contract %s: %w", contractID, mapError(err))
	}
	if !exists {
		return nil, &entities.NotFoundError{Kind: "contract", Key: string(contractID)}
	}
	return nil, &entities.NotFoundError{Kind: "catalog item", Key: string(contractID) + "/" + string(name)}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*entities.CatalogItem, error) {
	var (
		contractID, name, code, baseUnit string
		baseRate, remaining              decimal.Decimal
		conversions                      []byte
	)
	if err := row.Scan(&contractID, &name, &code, &baseUnit, &baseRate, &remaining, &conversions); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan catalog item: %w", mapError(err))
	}

	table, err := codec.DecodeConversions(conversions)
	if err != nil {
		return nil, fmt.Errorf("catalog item %s/%s: %w", contractID, name, err)
	}

	return &entities.CatalogItem{
		ContractID:        entities.ContractID(contractID),
		Name:              entities.ItemName(name),
		Code:              code,
		BaseUnit:          entities.UnitOfMeasure(baseUnit),
		BaseRate:          baseRate,
		RemainingQuantity: remaining,
		Conversions:       table,
	}, nil
}
