package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/vsinha/tradeops/pkg/domain/repositories"
)

// Config configures a Postgres store
type Config struct {
	DSN          string
	MaxOpenConns int
	Logger       *slog.Logger
}

// Store keeps catalogs, transaction records, document numbers and disputes
// in Postgres. Stock and sequence changes lock the affected rows with
// SELECT ... FOR UPDATE inside a transaction.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var (
	_ repositories.CatalogRepository  = (*Store)(nil)
	_ repositories.OrderRepository    = (*Store)(nil)
	_ repositories.SequenceRepository = (*Store)(nil)
	_ repositories.DisputeRepository  = (*Store)(nil)
)

// RepositoryError carries the SQLSTATE of a failed statement
type RepositoryError struct {
	Code    string
	Message string
	Detail  string
	Err     error
}

func (e *RepositoryError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}

// uniqueViolation is the SQLSTATE for a duplicate key
const uniqueViolation = "23505"

// Open connects to the database, verifies the connection and creates the
// schema
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres store: dsn cannot be empty")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{db: db, logger: logger}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("postgres store opened", "max_open_conns", cfg.MaxOpenConns)
	return store, nil
}

// Close closes the connection pool
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	for i, statement := range schema {
		if _, err := s.db.ExecContext(ctx, statement); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i, mapError(err))
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS contracts (
		id           TEXT PRIMARY KEY,
		counterparty TEXT NOT NULL,
		position     BIGSERIAL
	)`,
	`CREATE TABLE IF NOT EXISTS catalog_items (
		contract_id TEXT NOT NULL REFERENCES contracts(id),
		position    INTEGER NOT NULL,
		name        TEXT NOT NULL,
		code        TEXT NOT NULL,
		base_unit   TEXT NOT NULL,
		base_rate   NUMERIC NOT NULL,
		remaining   NUMERIC NOT NULL CHECK (remaining >= 0),
		conversions BYTEA NOT NULL,
		PRIMARY KEY (contract_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS transaction_records (
		seq              BIGSERIAL PRIMARY KEY,
		order_group_id   TEXT NOT NULL,
		kind             TEXT NOT NULL,
		status           TEXT NOT NULL,
		created_at       TIMESTAMPTZ,
		fulfillment_date TIMESTAMPTZ,
		contract_id      TEXT NOT NULL,
		counterparty     TEXT NOT NULL,
		line_id          TEXT NOT NULL,
		item_name        TEXT NOT NULL,
		item_code        TEXT NOT NULL,
		unit             TEXT NOT NULL,
		quantity         NUMERIC NOT NULL,
		rate             NUMERIC NOT NULL,
		amount           NUMERIC NOT NULL,
		reason           TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transaction_records_group ON transaction_records (order_group_id)`,
	`CREATE INDEX IF NOT EXISTS idx_transaction_records_kind ON transaction_records (kind)`,
	`CREATE TABLE IF NOT EXISTS document_days (
		day_prefix TEXT PRIMARY KEY
	)`,
	`CREATE TABLE IF NOT EXISTS document_numbers (
		seq        BIGSERIAL PRIMARY KEY,
		number     TEXT NOT NULL UNIQUE,
		day_prefix TEXT NOT NULL REFERENCES document_days(day_prefix)
	)`,
	`CREATE TABLE IF NOT EXISTS disputes (
		seq            BIGSERIAL PRIMARY KEY,
		number         TEXT NOT NULL UNIQUE,
		order_group_id TEXT NOT NULL,
		invoice_number TEXT NOT NULL,
		reason         TEXT NOT NULL,
		created_at     TIMESTAMPTZ
	)`,
}

// withTx runs fn in a transaction that commits when fn returns nil
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", mapError(err))
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", mapError(err))
	}
	return nil
}

// mapError turns driver errors into RepositoryError
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &RepositoryError{
			Code:    pgErr.Code,
			Message: pgErr.Message,
			Detail:  pgErr.Detail,
			Err:     err,
		}
	}
	return err
}

func isUniqueViolation(err error) bool {
	var repoErr *RepositoryError
	return errors.As(err, &repoErr) && repoErr.Code == uniqueViolation
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timeValue(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return t.Time.UTC()
}
