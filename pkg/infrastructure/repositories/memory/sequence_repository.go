package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/vsinha/tradeops/pkg/domain/repositories"
	"github.com/vsinha/tradeops/pkg/domain/services"
)

// SequenceRepository issues document numbers under a mutex, so concurrent
// reservations on the same day never collide
type SequenceRepository struct {
	mu     sync.Mutex
	issued map[string][]string
	seen   map[string]bool
}

// NewSequenceRepository creates a new in-memory sequence repository
func NewSequenceRepository() *SequenceRepository {
	return &SequenceRepository{
		issued: make(map[string][]string),
		seen:   make(map[string]bool),
	}
}

// Verify interface compliance
var _ repositories.SequenceRepository = (*SequenceRepository)(nil)

// Reserve computes and records the next number for prefix on date
func (r *SequenceRepository) Reserve(ctx context.Context, prefix string, date time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	dayPrefix := services.DayPrefix(prefix, date)
	next := services.NextDocumentNumber(prefix, r.issued[dayPrefix], date)
	r.issued[dayPrefix] = append(r.issued[dayPrefix], next)
	r.seen[next] = true
	return next, nil
}

// Issued returns the numbers reserved for prefix on date, in issue order
func (r *SequenceRepository) Issued(ctx context.Context, prefix string, date time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.issued[services.DayPrefix(prefix, date)]...), nil
}

// Seed records numbers issued elsewhere, such as numbers found in imported
// records. Numbers already known are skipped.
func (r *SequenceRepository) Seed(numbers ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, number := range numbers {
		dayPrefix, ok := services.SplitDayPrefix(number)
		if !ok || r.seen[number] {
			continue
		}
		r.issued[dayPrefix] = append(r.issued[dayPrefix], number)
		r.seen[number] = true
	}
}

// Numbers returns every issued number in document number order
func (r *SequenceRepository) Numbers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	numbers := make([]string, 0, len(r.seen))
	for number := range r.seen {
		numbers = append(numbers, number)
	}
	slices.SortFunc(numbers, services.CompareDocumentNumbers)
	return numbers
}
