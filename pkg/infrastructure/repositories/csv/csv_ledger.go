package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vsinha/tradeops/pkg/domain/entities"
)

// DisputesHeader is the column layout of a disputes file
var DisputesHeader = []string{"number", "order_group_id", "invoice_number", "reason", "created_at"}

// NumbersHeader is the column layout of an issued document numbers file
var NumbersHeader = []string{"number"}

// LoadDisputes loads disputes from a CSV file
func (l *Loader) LoadDisputes(filename string) ([]*entities.DisputeRecord, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open disputes file %s: %w", filename, err)
	}
	defer file.Close()

	return l.ReadDisputes(file)
}

// ReadDisputes reads disputes. A file with only a header holds no disputes.
func (l *Loader) ReadDisputes(r io.Reader) ([]*entities.DisputeRecord, error) {
	rows, err := readTable(r, "disputes", DisputesHeader, false)
	if err != nil {
		return nil, err
	}

	disputes := make([]*entities.DisputeRecord, 0, len(rows))
	for i, row := range rows {
		createdAt, err := parseTime(row[4])
		if err != nil {
			return nil, fmt.Errorf("disputes CSV row %d: invalid created_at: %s", i+2, row[4])
		}
		dispute, err := entities.NewDisputeRecord(
			strings.TrimSpace(row[0]),
			entities.OrderGroupID(strings.TrimSpace(row[1])),
			row[2],
			row[3],
			createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("disputes CSV row %d: %w", i+2, err)
		}
		disputes = append(disputes, dispute)
	}
	return disputes, nil
}

// LoadNumbers loads issued document numbers from a CSV file
func (l *Loader) LoadNumbers(filename string) ([]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open numbers file %s: %w", filename, err)
	}
	defer file.Close()

	return l.ReadNumbers(file)
}

// ReadNumbers reads one issued document number per row
func (l *Loader) ReadNumbers(r io.Reader) ([]string, error) {
	rows, err := readTable(r, "numbers", NumbersHeader, false)
	if err != nil {
		return nil, err
	}

	numbers := make([]string, 0, len(rows))
	for i, row := range rows {
		number := strings.TrimSpace(row[0])
		if number == "" {
			return nil, fmt.Errorf("numbers CSV row %d: number cannot be empty", i+2)
		}
		numbers = append(numbers, number)
	}
	return numbers, nil
}

// SaveDisputes writes disputes to a file, replacing it
func (w *Writer) SaveDisputes(filename string, disputes []*entities.DisputeRecord) error {
	return saveFile(filename, "disputes", func(out io.Writer) error {
		return w.WriteDisputes(out, disputes)
	})
}

// WriteDisputes writes a header row followed by one row per dispute
func (w *Writer) WriteDisputes(out io.Writer, disputes []*entities.DisputeRecord) error {
	writer := csv.NewWriter(out)
	if err := writer.Write(DisputesHeader); err != nil {
		return fmt.Errorf("failed to write disputes header: %w", err)
	}

	for _, dispute := range disputes {
		row := []string{
			dispute.Number,
			string(dispute.OrderGroupID),
			dispute.InvoiceNumber,
			dispute.Reason,
			formatTime(dispute.CreatedAt),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write dispute %s: %w", dispute.Number, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// SaveNumbers writes issued document numbers to a file, replacing it
func (w *Writer) SaveNumbers(filename string, numbers []string) error {
	return saveFile(filename, "numbers", func(out io.Writer) error {
		return w.WriteNumbers(out, numbers)
	})
}

// WriteNumbers writes a header row followed by one number per row
func (w *Writer) WriteNumbers(out io.Writer, numbers []string) error {
	writer := csv.NewWriter(out)
	if err := writer.Write(NumbersHeader); err != nil {
		return fmt.Errorf("failed to write numbers header: %w", err)
	}
	for _, number := range numbers {
		if err := writer.Write([]string{number}); err != nil {
			return fmt.Errorf("failed to write number %s: %w", number, err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func saveFile(filename, name string, write func(io.Writer) error) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create %s file %s: %w", name, filename, err)
	}
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
