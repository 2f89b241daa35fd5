package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/vsinha/tradeops/pkg/domain/entities"
)

// Writer writes trade data in the layouts Loader reads
type Writer struct{}

// NewWriter creates a new CSV writer
func NewWriter() *Writer {
	return &Writer{}
}

// SaveRecords writes records to a file, replacing it
func (w *Writer) SaveRecords(filename string, records []entities.TransactionRecord) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create records file %s: %w", filename, err)
	}
	if err := w.WriteRecords(file, records); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// WriteRecords writes a header row followed by one row per record
func (w *Writer) WriteRecords(out io.Writer, records []entities.TransactionRecord) error {
	writer := csv.NewWriter(out)
	if err := writer.Write(RecordsHeader); err != nil {
		return fmt.Errorf("failed to write records header: %w", err)
	}

	for i, record := range records {
		row := []string{
			string(record.OrderGroupID),
			record.Kind.String(),
			record.Status.String(),
			formatTime(record.CreatedAt),
			formatTime(record.FulfillmentDate),
			string(record.ContractID),
			record.Counterparty,
			record.LineID,
			string(record.ItemName),
			record.ItemCode,
			string(record.Unit),
			record.Quantity.String(),
			record.Rate.String(),
			record.Amount.StringFixed(2),
			record.Reason,
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteContracts writes one row per catalog item
func (w *Writer) WriteContracts(out io.Writer, contracts []*entities.Contract) error {
	writer := csv.NewWriter(out)
	if err := writer.Write(CatalogHeader); err != nil {
		return fmt.Errorf("failed to write catalog header: %w", err)
	}

	for _, contract := range contracts {
		for _, item := range contract.Items {
			row := []string{
				string(contract.ID),
				contract.Counterparty,
				string(item.Name),
				item.Code,
				string(item.BaseUnit),
				item.BaseRate.String(),
				item.RemainingQuantity.String(),
				FormatConversions(item.Conversions),
			}
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("failed to write catalog item %s/%s: %w", contract.ID, item.Name, err)
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

// formatTime writes midnight UTC as a plain date
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	if t.Equal(t.Truncate(24*time.Hour)) && t.Location() == time.UTC {
		return t.Format(dateLayout)
	}
	return t.Format(time.RFC3339)
}
