package entities

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionRecord is the flat storage shape of one committed line. Group
// and contract level fields are repeated on every record.
type TransactionRecord struct {
	OrderGroupID    OrderGroupID
	Kind            DocumentKind
	Status          OrderStatus
	CreatedAt       time.Time
	FulfillmentDate time.Time
	ContractID      ContractID
	Counterparty    string
	LineID          string
	ItemName        ItemName
	ItemCode        string
	Unit            UnitOfMeasure
	Quantity        decimal.Decimal
	Rate            decimal.Decimal
	Amount          decimal.Decimal
	Reason          string
}

// Validate checks the grouping identifiers the aggregator depends on
func (r TransactionRecord) Validate(index int) error {
	if string(r.OrderGroupID) == "" {
		return &MalformedRecordError{Index: index, Field: "order group id"}
	}
	if string(r.ContractID) == "" {
		return &MalformedRecordError{Index: index, Field: "contract id"}
	}
	return nil
}

// DisputeRecord is a dispute raised against a delivered order group
type DisputeRecord struct {
	Number        string
	OrderGroupID  OrderGroupID
	InvoiceNumber string
	Reason        string
	CreatedAt     time.Time
}

// NewDisputeRecord creates a validated DisputeRecord
func NewDisputeRecord(number string, orderGroupID OrderGroupID, invoiceNumber, reason string, createdAt time.Time) (*DisputeRecord, error) {
	if number == "" {
		return nil, fmt.Errorf("dispute number cannot be empty")
	}
	if string(orderGroupID) == "" {
		return nil, fmt.Errorf("order group id cannot be empty")
	}
	if reason == "" {
		return nil, fmt.Errorf("dispute reason cannot be empty")
	}

	return &DisputeRecord{
		Number:        number,
		OrderGroupID:  orderGroupID,
		InvoiceNumber: invoiceNumber,
		Reason:        reason,
		CreatedAt:     createdAt,
	}, nil
}
