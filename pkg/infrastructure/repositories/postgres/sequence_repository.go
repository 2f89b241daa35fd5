package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/vsinha/tradeops/pkg/domain/services"
)

// Reserve computes and records the next number for prefix on date. The
// day's row in document_days is locked FOR UPDATE, so reservations for the
// same day queue behind each other.
func (s *Store) Reserve(ctx context.Context, prefix string, date time.Time) (string, error) {
	dayPrefix := services.DayPrefix(prefix, date)

	var next string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockDay(ctx, tx, dayPrefix); err != nil {
			return err
		}

		existing, err := issuedNumbers(ctx, tx, dayPrefix)
		if err != nil {
			return err
		}

		next = services.NextDocumentNumber(prefix, existing, date)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO document_numbers (number, day_prefix) VALUES ($1, $2)`, next, dayPrefix,
		); err != nil {
			return mapError(err)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to reserve %s number: %w", prefix, err)
	}

	s.logger.Debug("document number reserved", "number", next)
	return next, nil
}

// Issued returns the numbers reserved for prefix on date, in issue order
func (s *Store) Issued(ctx context.Context, prefix string, date time.Time) ([]string, error) {
	numbers, err := issuedNumbers(ctx, s.db, services.DayPrefix(prefix, date))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s numbers: %w", prefix, err)
	}
	return numbers, nil
}

// Seed records numbers issued elsewhere. Numbers already known are ignored.
func (s *Store) Seed(ctx context.Context, numbers ...string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, number := range numbers {
			dayPrefix, ok := services.SplitDayPrefix(number)
			if !ok {
				continue
			}
			if err := lockDay(ctx, tx, dayPrefix); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO document_numbers (number, day_prefix) VALUES ($1, $2)
				 ON CONFLICT (number) DO NOTHING`, number, dayPrefix,
			); err != nil {
				return fmt.Errorf("seeding %s: %w", number, mapError(err))
			}
		}
		return nil
	})
}

func lockDay(ctx context.Context, tx *sql.Tx, dayPrefix string) error {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO document_days (day_prefix) VALUES ($1) ON CONFLICT DO NOTHING`, dayPrefix,
	); err != nil {
		return mapError(err)
	}
	var locked string
	if err := tx.QueryRowContext(ctx,
		`SELECT day_prefix FROM document_days WHERE day_prefix = $1 FOR UPDATE`, dayPrefix,
	).Scan(&locked); err != nil {
		return mapError(err)
	}
	return nil
}

func issuedNumbers(ctx context.Context, q queryer, dayPrefix string) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT number FROM document_numbers WHERE day_prefix = $1 ORDER BY seq`, dayPrefix)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var numbers []string
	for rows.Next() {
		var number string
		if err := rows.Scan(&number); err != nil {
			return nil, err
		}
		numbers = append(numbers, number)
	}
	return numbers, mapError(rows.Err())
}
