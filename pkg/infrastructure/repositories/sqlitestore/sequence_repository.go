package sqlitestore

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/vsinha/tradeops/pkg/domain/services"
)

// Reserve computes and records the next number for prefix on date. The
// IMMEDIATE transaction holds the database write lock across the read and
// the insert, so concurrent processes never issue the same number.
func (s *Store) Reserve(ctx context.Context, prefix string, date time.Time) (string, error) {
	dayPrefix := services.DayPrefix(prefix, date)

	var next string
	err := s.withImmediateTx(ctx, func(conn *sqlite.Conn) error {
		existing, err := issuedNumbers(conn, dayPrefix)
		if err != nil {
			return err
		}

		next = services.NextDocumentNumber(prefix, existing, date)
		return sqlitex.Execute(conn,
			`INSERT INTO document_numbers (number, day_prefix) VALUES (?, ?)`,
			&sqlitex.ExecOptions{Args: []any{next, dayPrefix}},
		)
	})
	if err != nil {
		return "", fmt.Errorf("failed to reserve %s number: %w", prefix, err)
	}

	s.logger.Debug("document number reserved", "number", next)
	return next, nil
}

// Issued returns the numbers reserved for prefix on date, in issue order
func (s *Store) Issued(ctx context.Context, prefix string, date time.Time) ([]string, error) {
	var numbers []string
	err := s.withConn(ctx, func(conn *sqlite.Conn) error {
		var err error
		numbers, err = issuedNumbers(conn, services.DayPrefix(prefix, date))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s numbers: %w", prefix, err)
	}
	return numbers, nil
}

// Seed records numbers issued elsewhere. Numbers already known are ignored.
func (s *Store) Seed(ctx context.Context, numbers ...string) error {
	return s.withImmediateTx(ctx, func(conn *sqlite.Conn) error {
		for _, number := range numbers {
			dayPrefix, ok := services.SplitDayPrefix(number)
			if !ok {
				continue
			}
			if err := sqlitex.Execute(conn,
				`INSERT OR IGNORE INTO document_numbers (number, day_prefix) VALUES (?, ?)`,
				&sqlitex.ExecOptions{Args: []any{number, dayPrefix}},
			); err != nil {
				return fmt.Errorf("seeding %s: %w", number, err)
			}
		}
		return nil
	})
}

func issuedNumbers(conn *sqlite.Conn, dayPrefix string) ([]string, error) {
	var numbers []string
	err := sqlitex.Execute(conn,
		`SELECT number FROM document_numbers WHERE day_prefix = ? ORDER BY rowid`,
		&sqlitex.ExecOptions{
			Args: []any{dayPrefix},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				numbers = append(numbers, stmt.ColumnText(0))
				return nil
			},
		},
	)
	return numbers, err
}
