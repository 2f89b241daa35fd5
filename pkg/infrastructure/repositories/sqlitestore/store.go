package sqlitestore

import (
	"context"
	"fmt"
	"log/slog"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/vsinha/tradeops/pkg/domain/repositories"
)

// Config configures a SQLite store
type Config struct {
	// Path is the database file. It is created if it does not exist.
	Path string

	// PoolSize is the number of pooled connections. SQLite serializes
	// writers regardless; extra connections serve concurrent readers.
	PoolSize int

	Logger *slog.Logger
}

// Store keeps catalogs, transaction records, document numbers and disputes
// in one SQLite database. Every read-modify-write runs in an IMMEDIATE
// transaction, which takes the write lock up front.
type Store struct {
	pool   *sqlitex.Pool
	logger *slog.Logger
	path   string
}

var (
	_ repositories.CatalogRepository  = (*Store)(nil)
	_ repositories.OrderRepository    = (*Store)(nil)
	_ repositories.SequenceRepository = (*Store)(nil)
	_ repositories.DisputeRepository  = (*Store)(nil)
)

// Open opens the database at cfg.Path and creates the schema
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite store: path cannot be empty")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 4
	}

	pool, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite store: opening %s: %w", cfg.Path, err)
	}

	logger.Info("sqlite store opened", "path", cfg.Path, "pool_size", poolSize)

	return &Store{
		pool:   pool,
		logger: logger,
		path:   cfg.Path,
	}, nil
}

// Close closes every pooled connection. It blocks until borrowed
// connections are returned.
func (s *Store) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("sqlite store: closing %s: %w", s.path, err)
	}
	s.logger.Info("sqlite store closed", "path", s.path)
	return nil
}

func prepareConnection(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlite store: %s: %w", pragma, err)
		}
	}

	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("sqlite store: creating schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS contracts (
	id           TEXT PRIMARY KEY,
	counterparty TEXT NOT NULL,
	position     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS catalog_items (
	contract_id TEXT NOT NULL REFERENCES contracts(id),
	position    INTEGER NOT NULL,
	name        TEXT NOT NULL,
	code        TEXT NOT NULL,
	base_unit   TEXT NOT NULL,
	base_rate   TEXT NOT NULL,
	remaining   TEXT NOT NULL,
	conversions BLOB NOT NULL,
	PRIMARY KEY (contract_id, name)
);

CREATE TABLE IF NOT EXISTS transaction_records (
	seq              INTEGER PRIMARY KEY AUTOINCREMENT,
	order_group_id   TEXT NOT NULL,
	kind             INTEGER NOT NULL,
	status           INTEGER NOT NULL,
	created_at       TEXT NOT NULL,
	fulfillment_date TEXT NOT NULL,
	contract_id      TEXT NOT NULL,
	counterparty     TEXT NOT NULL,
	line_id          TEXT NOT NULL,
	item_name        TEXT NOT NULL,
	item_code        TEXT NOT NULL,
	unit             TEXT NOT NULL,
	quantity         TEXT NOT NULL,
	rate             TEXT NOT NULL,
	amount           TEXT NOT NULL,
	reason           TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_transaction_records_group
	ON transaction_records (order_group_id);
CREATE INDEX IF NOT EXISTS idx_transaction_records_kind
	ON transaction_records (kind);

CREATE TABLE IF NOT EXISTS document_numbers (
	number     TEXT PRIMARY KEY,
	day_prefix TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_document_numbers_day
	ON document_numbers (day_prefix);

CREATE TABLE IF NOT EXISTS disputes (
	number         TEXT PRIMARY KEY,
	order_group_id TEXT NOT NULL,
	invoice_number TEXT NOT NULL,
	reason         TEXT NOT NULL,
	created_at     TEXT NOT NULL
);
`

// withConn runs fn on a pooled connection
func (s *Store) withConn(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlite store: take: %w", err)
	}
	defer s.pool.Put(conn)
	return fn(conn)
}

// withImmediateTx runs fn in an IMMEDIATE transaction that commits when fn
// returns nil and rolls back otherwise
func (s *Store) withImmediateTx(ctx context.Context, fn func(conn *sqlite.Conn) error) error {
	return s.withConn(ctx, func(conn *sqlite.Conn) (err error) {
		endTransaction, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return fmt.Errorf("sqlite store: begin transaction: %w", err)
		}
		defer endTransaction(&err)

		return fn(conn)
	})
}
