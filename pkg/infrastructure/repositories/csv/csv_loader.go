package csv

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/tradeops/pkg/domain/entities"
)

const (
	dateLayout = "2006-01-02"
)

// RecordsHeader is the column layout of a transaction records file
var RecordsHeader = []string{
	"order_group_id", "kind", "status", "created_at", "fulfillment_date",
	"contract_id", "counterparty", "line_id", "item_name", "item_code",
	"unit", "quantity", "rate", "amount", "reason",
}

// CatalogHeader is the column layout of a catalog file, one item per row
var CatalogHeader = []string{
	"contract_id", "counterparty", "item_name", "item_code", "base_unit",
	"base_rate", "remaining_quantity", "conversions",
}

// Loader handles loading trade data from CSV files
type Loader struct{}

// NewLoader creates a new CSV loader
func NewLoader() *Loader {
	return &Loader{}
}

// LoadRecords loads transaction records from a CSV file
func (l *Loader) LoadRecords(filename string) ([]entities.TransactionRecord, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open records file %s: %w", filename, err)
	}
	defer file.Close()

	return l.ReadRecords(file)
}

// ReadRecords reads transaction records. Every row must carry its order
// group and contract ids.
func (l *Loader) ReadRecords(r io.Reader) ([]entities.TransactionRecord, error) {
	rows, err := readAll(r, "records", RecordsHeader)
	if err != nil {
		return nil, err
	}

	records := make([]entities.TransactionRecord, 0, len(rows))
	for i, row := range rows {
		record, err := parseRecord(row)
		if err != nil {
			return nil, fmt.Errorf("records CSV row %d: %w", i+2, err)
		}
		if err := record.Validate(i); err != nil {
			return nil, fmt.Errorf("records CSV row %d: %w", i+2, err)
		}
		records = append(records, record)
	}

	return records, nil
}

// LoadContracts loads contract catalogs from a CSV file. Rows of the same
// contract are grouped in first-seen order.
func (l *Loader) LoadContracts(filename string) ([]*entities.Contract, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file %s: %w", filename, err)
	}
	defer file.Close()

	return l.ReadContracts(file)
}

// ReadContracts reads contract catalogs
func (l *Loader) ReadContracts(r io.Reader) ([]*entities.Contract, error) {
	rows, err := readAll(r, "catalog", CatalogHeader)
	if err != nil {
		return nil, err
	}

	var contracts []*entities.Contract
	byID := make(map[entities.ContractID]*entities.Contract)
	for i, row := range rows {
		item, counterparty, err := parseCatalogItem(row)
		if err != nil {
			return nil, fmt.Errorf("catalog CSV row %d: %w", i+2, err)
		}

		contract, exists := byID[item.ContractID]
		if !exists {
			contract = &entities.Contract{ID: item.ContractID, Counterparty: counterparty}
			byID[item.ContractID] = contract
			contracts = append(contracts, contract)
		}
		contract.Items = append(contract.Items, item)
	}

	for _, contract := range contracts {
		if err := contract.Validate(); err != nil {
			return nil, fmt.Errorf("catalog CSV: %w", err)
		}
	}

	return contracts, nil
}

// Helper functions for parsing CSV records

func readAll(r io.Reader, name string, expectedHeader []string) ([][]string, error) {
	return readTable(r, name, expectedHeader, true)
}

// readTable reads a CSV with the expected header. A file holding only the
// header is accepted unless requireData is set.
func readTable(r io.Reader, name string, expectedHeader []string, requireData bool) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s CSV: %w", name, err)
	}

	if len(records) == 0 || (requireData && len(records) < 2) {
		return nil, fmt.Errorf("%s CSV must have header and at least one data row", name)
	}

	header := records[0]
	if !validateHeader(header, expectedHeader) {
		return nil, fmt.Errorf("%s CSV header mismatch. Expected: %v, Got: %v", name, expectedHeader, header)
	}

	for i, record := range records[1:] {
		if len(record) != len(expectedHeader) {
			return nil, fmt.Errorf("%s CSV row %d: expected %d columns, got %d", name, i+2, len(expectedHeader), len(record))
		}
	}

	return records[1:], nil
}

func validateHeader(actual, expected []string) bool {
	if len(actual) != len(expected) {
		return false
	}

	for i, col := range expected {
		if strings.ToLower(strings.TrimSpace(actual[i])) != col {
			return false
		}
	}

	return true
}

func parseRecord(row []string) (entities.TransactionRecord, error) {
	kind, err := entities.ParseDocumentKind(row[1])
	if err != nil {
		return entities.TransactionRecord{}, err
	}

	status, err := entities.ParseOrderStatus(row[2])
	if err != nil {
		return entities.TransactionRecord{}, err
	}

	createdAt, err := parseTime(row[3])
	if err != nil {
		return entities.TransactionRecord{}, fmt.Errorf("invalid created_at: %s (expected YYYY-MM-DD or RFC 3339)", row[3])
	}

	var fulfillment time.Time
	if strings.TrimSpace(row[4]) != "" {
		fulfillment, err = parseTime(row[4])
		if err != nil {
			return entities.TransactionRecord{}, fmt.Errorf("invalid fulfillment_date: %s (expected YYYY-MM-DD or RFC 3339)", row[4])
		}
	}

	quantity, err := parseDecimal("quantity", row[11])
	if err != nil {
		return entities.TransactionRecord{}, err
	}
	rate, err := parseDecimal("rate", row[12])
	if err != nil {
		return entities.TransactionRecord{}, err
	}
	amount := decimal.Zero
	if strings.TrimSpace(row[13]) != "" {
		if amount, err = parseDecimal("amount", row[13]); err != nil {
			return entities.TransactionRecord{}, err
		}
	}

	return entities.TransactionRecord{
		OrderGroupID:    entities.OrderGroupID(strings.TrimSpace(row[0])),
		Kind:            kind,
		Status:          status,
		CreatedAt:       createdAt,
		FulfillmentDate: fulfillment,
		ContractID:      entities.ContractID(strings.TrimSpace(row[5])),
		Counterparty:    row[6],
		LineID:          strings.TrimSpace(row[7]),
		ItemName:        entities.ItemName(row[8]),
		ItemCode:        row[9],
		Unit:            entities.UnitOfMeasure(row[10]),
		Quantity:        quantity,
		Rate:            rate,
		Amount:          amount,
		Reason:          row[14],
	}, nil
}

func parseCatalogItem(row []string) (*entities.CatalogItem, string, error) {
	baseRate, err := parseDecimal("base_rate", row[5])
	if err != nil {
		return nil, "", err
	}
	remaining, err := parseDecimal("remaining_quantity", row[6])
	if err != nil {
		return nil, "", err
	}
	conversions, err := ParseConversions(row[7])
	if err != nil {
		return nil, "", err
	}

	item, err := entities.NewCatalogItem(
		entities.ContractID(strings.TrimSpace(row[0])),
		entities.ItemName(row[2]),
		row[3],
		entities.UnitOfMeasure(row[4]),
		baseRate,
		remaining,
		conversions,
	)
	if err != nil {
		return nil, "", err
	}
	return item, row[1], nil
}

// ParseConversions parses "Box=12;Can=0.5" into a conversion table
func ParseConversions(s string) (entities.ConversionTable, error) {
	table := make(entities.ConversionTable)
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		unit, factor, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(unit) == "" {
			return nil, fmt.Errorf("invalid conversion: %s (expected UNIT=FACTOR)", pair)
		}
		value, err := decimal.NewFromString(strings.TrimSpace(factor))
		if err != nil {
			return nil, fmt.Errorf("invalid conversion factor for %s: %s", unit, factor)
		}
		table[entities.UnitOfMeasure(strings.TrimSpace(unit))] = value
	}
	return table, nil
}

// FormatConversions is the inverse of ParseConversions, in sorted unit order
func FormatConversions(table entities.ConversionTable) string {
	pairs := make([]string, 0, len(table))
	for _, unit := range table.Units() {
		pairs = append(pairs, fmt.Sprintf("%s=%s", unit, table[unit]))
	}
	return strings.Join(pairs, ";")
}

func parseDecimal(field, s string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %s", field, s)
	}
	return value, nil
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
