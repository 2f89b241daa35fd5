package sqlitestore

import (
	"context"
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/vsinha/tradeops/pkg/domain/entities"
	"github.com/vsinha/tradeops/pkg/infrastructure/codec"
)

const itemColumns = `contract_id, name, code, base_unit, base_rate, remaining, conversions`

// LoadContracts stores contracts, replacing the items of any contract with
// the same id. New contracts keep load order.
func (s *Store) LoadContracts(ctx context.Context, contracts []*entities.Contract) error {
	for _, contract := range contracts {
		if err := contract.Validate(); err != nil {
			return err
		}
	}

	err := s.withImmediateTx(ctx, func(conn *sqlite.Conn) error {
		for _, contract := range contracts {
			if err := sqlitex.Execute(conn,
				`INSERT INTO contracts (id, counterparty, position)
				 VALUES (?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM contracts))
				 ON CONFLICT(id) DO UPDATE SET counterparty = excluded.counterparty`,
				&sqlitex.ExecOptions{Args: []any{string(contract.ID), contract.Counterparty}},
			); err != nil {
				return fmt.Errorf("storing contract %s: %w", contract.ID, err)
			}

			if err := sqlitex.Execute(conn,
				`DELETE FROM catalog_items WHERE contract_id = ?`,
				&sqlitex.ExecOptions{Args: []any{string(contract.ID)}},
			); err != nil {
				return fmt.Errorf("clearing items of contract %s: %w", contract.ID, err)
			}

			for position, item := range contract.Items {
				conversions, err := codec.EncodeConversions(item.Conversions)
				if err != nil {
					return fmt.Errorf("item %s: %w", item.Name, err)
				}
				if err := sqlitex.Execute(conn,
					`INSERT INTO catalog_items (contract_id, position, name, code, base_unit, base_rate, remaining, conversions)
					 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
					&sqlitex.ExecOptions{Args: []any{
						string(contract.ID),
						position,
						string(item.Name),
						item.Code,
						string(item.BaseUnit),
						item.BaseRate.String(),
						item.RemainingQuantity.String(),
						conversions,
					}},
				); err != nil {
					return fmt.Errorf("storing item %s of contract %s: %w", item.Name, contract.ID, err)
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
	var contract *entities.Contract
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		contract, err = readContract(conn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return contract, nil
}

// GetItem returns one catalog item of a contract
func (s *Store) GetItem(ctx context.Context, contractID entities.ContractID, name entities.ItemName) (*entities.CatalogItem, error) {
	var item *entities.CatalogItem
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		item, err = readItem(conn, contractID, name)
		return err
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ListContracts returns all contracts in load order
func (s *Store) ListContracts(ctx context.Context) ([]*entities.Contract, error) {
	var contracts []*entities.Contract
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		var ids []entities.ContractID
		if err := sqlitex.Execute(conn,
			`SELECT id FROM contracts ORDER BY position`,
			&sqlitex.ExecOptions{ResultFunc: func(stmt *sqlite.Stmt) error {
				ids = append(ids, entities.ContractID(stmt.ColumnText(0)))
				return nil
			}},
		); err != nil {
			return fmt.Errorf("listing contracts: %w", err)
		}

		for _, id := range ids {
			contract, err := readContract(conn, id)
			if err != nil {
				return err
			}
			contracts = append(contracts, contract)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return contracts, nil
}

// Apply checks every adjustment against the current remaining quantities
// and writes them in one IMMEDIATE transaction. Any failure leaves every
// quantity untouched.
func (s *Store) Apply(ctx context.Context, adjustments []entities.StockAdjustment) error {
	net := entities.NetAdjustments(adjustments)
	if len(net) == 0 {
		return nil
	}

	err := s.withImmediateTx(ctx, func(conn *sqlite.Conn) error {
		for _, adj := range net {
			item, err := readItem(conn, adj.ContractID, adj.ItemName)
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

			remaining := item.RemainingQuantity.Sub(adj.Delta)
			if err := sqlitex.Execute(conn,
				`UPDATE catalog_items SET remaining = ? WHERE contract_id = ? AND name = ?`,
				&sqlitex.ExecOptions{Args: []any{remaining.String(), string(adj.ContractID), string(adj.ItemName)}},
			); err != nil {
				return fmt.Errorf("updating %s/%s: %w", adj.ContractID, adj.ItemName, err)
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

func readContract(conn *sqlite.Conn, id entities.ContractID) (*entities.Contract, error) {
	var contract *entities.Contract
	if err := sqlitex.Execute(conn,
		`SELECT id, counterparty FROM contracts WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{string(id)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				contract = &entities.Contract{
					ID:           entities.ContractID(stmt.ColumnText(0)),
					Counterparty: stmt.ColumnText(1),
				}
				return nil
			},
		},
	); err != nil {
		return nil, fmt.Errorf("reading contract %s: %w", id, err)
	}
	if contract == nil {
		return nil, &entities.NotFoundError{Kind: "contract", Key: string(id)}
	}

	if err := sqlitex.Execute(conn,
		`SELECT `+itemColumns+` FROM catalog_items WHERE contract_id = ? ORDER BY position`,
		&sqlitex.ExecOptions{
			Args: []any{string(id)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				item, err := scanItem(stmt)
				if err != nil {
					return err
				}
				contract.Items = append(contract.Items, item)
				return nil
			},
		},
	); err != nil {
		return nil, fmt.Errorf("reading items of contract %s: %w", id, err)
	}
	return contract, nil
}

func readItem(conn *sqlite.Conn, contractID entities.ContractID, name entities.ItemName) (*entities.CatalogItem, error) {
	var item *entities.CatalogItem
	if err := sqlitex.Execute(conn,
		`SELECT `+itemColumns+` FROM catalog_items WHERE contract_id = ? AND name = ?`,
		&sqlitex.ExecOptions{
			Args: []any{string(contractID), string(name)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				var err error
				item, err = scanItem(stmt)
				return err
			},
		},
	); err != nil {
		return nil, fmt.Errorf("reading item %s/%s: %w", contractID, name, err)
	}
	if item != nil {
		return item, nil
	}

	// Distinguish an unknown contract from an unknown item
	exists := false
	if err := sqlitex.Execute(conn,
		`SELECT 1 FROM contracts WHERE id = ?`,
		&sqlitex.ExecOptions{
			Args: []any{string(contractID)},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				exists = true
				return nil
			},
		},
	); err != nil {
		return nil, fmt.Errorf("reading contract %s: %w", contractID, err)
	}
	if !exists {
		return nil, &entities.NotFoundError{Kind: "contract", Key: string(contractID)}
	}
	return nil, &entities.NotFoundError{Kind: "catalog item", Key: string(contractID) + "/" + string(name)}
}

func scanItem(stmt *sqlite.Stmt) (*entities.CatalogItem, error) {
	baseRate, err := parseDecimal("base_rate", stmt.ColumnText(4))
	if err != nil {
		return nil, err
	}
	remaining, err := parseDecimal("remaining", stmt.ColumnText(5))
	if err != nil {
		return nil, err
	}

	blob := make([]byte, stmt.ColumnLen(6))
	stmt.ColumnBytes(6, blob)
	conversions, err := codec.DecodeConversions(blob)
	if err != nil {
		return nil, err
	}

	return &entities.CatalogItem{
		ContractID:        entities.ContractID(stmt.ColumnText(0)),
		Name:              entities.ItemName(stmt.ColumnText(1)),
		Code:              stmt.ColumnText(2),
		BaseUnit:          entities.UnitOfMeasure(stmt.ColumnText(3)),
		BaseRate:          baseRate,
		RemainingQuantity: remaining,
		Conversions:       conversions,
	}, nil
}
