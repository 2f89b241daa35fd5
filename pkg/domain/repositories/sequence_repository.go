package repositories

import (
	"context"
	"time"
)

// SequenceRepository is the single authority for document numbers
type SequenceRepository interface {
	// Reserve computes and records the next number for prefix on date in
	// one atomic step
	Reserve(ctx context.Context, prefix string, date time.Time) (string, error)
	Issued(ctx context.Context, prefix string, date time.Time) ([]string, error)
}
