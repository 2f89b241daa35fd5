package entities

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound                  = errors.New("not found")
	ErrQuantityExceedsAllocation = errors.New("quantity exceeds allocation")
	ErrInvalidQuantity           = errors.New("invalid quantity")
	ErrMissingReason             = errors.New("missing reason")
	ErrMalformedRecord           = errors.New("malformed record")
	ErrOrderNotEditable          = errors.New("order group is not editable")
	ErrInvalidStatusTransition   = errors.New("invalid status transition")
	ErrNotDelivered              = errors.New("order group has not been delivered")
)

// NotFoundError reports an unknown contract, catalog item or order group
type NotFoundError struct {
	Kind string
	Key  string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// QuantityExceedsAllocationError reports a requested quantity above the
// line's ceiling. Ceiling is what the caller should surface to the user.
type QuantityExceedsAllocationError struct {
	Item      ItemName
	Requested decimal.Decimal
	Ceiling   decimal.Decimal
}

func (e *QuantityExceedsAllocationError) Error() string {
	return fmt.Sprintf("quantity %s of %s exceeds allocation, at most %s available",
		e.Requested, e.Item, e.Ceiling)
}

func (e *QuantityExceedsAllocationError) Is(target error) bool {
	return target == ErrQuantityExceedsAllocation
}

// InvalidQuantityError reports a non-numeric or non-positive quantity
type InvalidQuantityError struct {
	Input string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be a positive number, got %q", e.Input)
}

func (e *InvalidQuantityError) Is(target error) bool {
	return target == ErrInvalidQuantity
}

// MissingReasonError reports a line that needs a qualifying reason, such as
// a sale return line without a return reason
type MissingReasonError struct {
	Item ItemName
}

func (e *MissingReasonError) Error() string {
	return fmt.Sprintf("reason is required for %s", e.Item)
}

func (e *MissingReasonError) Is(target error) bool {
	return target == ErrMissingReason
}

// MalformedRecordError reports a transaction record missing a grouping
// identifier. It indicates a defect in the record supplier.
type MalformedRecordError struct {
	Index int
	Field string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("record %d: %s cannot be empty", e.Index, e.Field)
}

func (e *MalformedRecordError) Is(target error) bool {
	return target == ErrMalformedRecord
}

// LineError ties a recoverable error to the draft line that caused it
type LineError struct {
	Allocation int
	Line       int
	ContractID ContractID
	Item       ItemName
	Err        error
}

func (e LineError) Error() string {
	return fmt.Sprintf("allocation %d (%s) line %d (%s): %v", e.Allocation, e.ContractID, e.Line, e.Item, e.Err)
}

func (e LineError) Unwrap() error {
	return e.Err
}

// ValidationError collects every line error found in one submission. Errors
// on one line never stop validation of its siblings.
type ValidationError struct {
	Lines []LineError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Lines))
	for i, line := range e.Lines {
		msgs[i] = line.Error()
	}
	return fmt.Sprintf("%d invalid line(s): %s", len(e.Lines), strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() []error {
	errs := make([]error, len(e.Lines))
	for i, line := range e.Lines {
		errs[i] = line
	}
	return errs
}
