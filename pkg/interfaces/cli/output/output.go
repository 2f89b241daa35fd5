package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vsinha/tradeops/pkg/domain/services"
)

// Supported formats
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatHTML = "html"
)

const dateLayout = "2006-01-02"

// Columns of the merged view. The first six belong to the order group, the
// next three to the contract allocation and the rest to the line.
var Columns = []string{
	"Order Group", "Kind", "Created", "Fulfillment", "Status", "Grand Total",
	"Contract", "Counterparty", "Items",
	"Item", "Code", "Unit", "Quantity", "Rate", "Amount", "Reason",
}

const (
	groupColumns      = 6
	allocationColumns = 3
)

// Render writes the merged display rows in the given format
func Render(w io.Writer, rows []services.DisplayRow, format string) error {
	switch format {
	case FormatText, "":
		return renderText(w, rows)
	case FormatJSON:
		return renderJSON(w, rows)
	case FormatCSV:
		return renderCSV(w, rows)
	case FormatXLSX:
		return renderXLSX(w, rows)
	case FormatHTML:
		return renderHTML(w, rows)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// cells returns the row as display strings. Group and allocation cells are
// blank on rows they span but do not start, which is how merged cells look
// in plain text.
func cells(row services.DisplayRow) []string {
	out := make([]string, 0, len(Columns))
	if row.IsGroupStart() {
		out = append(out,
			string(row.OrderGroupID),
			row.Kind.String(),
			formatDate(row.CreatedAt),
			formatDate(row.FulfillmentDate),
			row.Status.String(),
			money(row.GrandTotal),
		)
	} else {
		out = append(out, make([]string, groupColumns)...)
	}

	if row.IsAllocationStart() {
		out = append(out,
			string(row.ContractID),
			row.Counterparty,
			strconv.Itoa(row.ItemCount),
		)
	} else {
		out = append(out, make([]string, allocationColumns)...)
	}

	return append(out,
		string(row.Line.ItemName),
		row.Line.ItemCode,
		string(row.Line.Unit),
		row.Line.Quantity.String(),
		money(row.Line.Rate),
		money(row.Line.Amount),
		row.Line.Reason,
	)
}

func renderText(w io.Writer, rows []services.DisplayRow) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No order groups found.")
		return err
	}

	format := "%-18s %-13s %-10s %-11s %-14s %12s | %-10s %-16s %5s | %-16s %-8s %-6s %10s %10s %12s %s\n"
	header := make([]any, len(Columns))
	rule := make([]any, len(Columns))
	for i, column := range Columns {
		header[i] = column
		rule[i] = "--"
	}
	if _, err := fmt.Fprintf(w, format, header...); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, format, rule...); err != nil {
		return err
	}

	for _, row := range rows {
		values := cells(row)
		args := make([]any, len(values))
		for i, value := range values {
			args[i] = value
		}
		if _, err := fmt.Fprintf(w, format, args...); err != nil {
			return err
		}
	}
	return nil
}

type jsonRow struct {
	OrderGroupID    string `json:"order_group_id"`
	Kind            string `json:"kind"`
	CreatedAt       string `json:"created_at,omitempty"`
	FulfillmentDate string `json:"fulfillment_date,omitempty"`
	Status          string `json:"status"`
	GrandTotal      string `json:"grand_total"`
	GroupSpan       int    `json:"group_span"`
	ContractID      string `json:"contract_id"`
	Counterparty    string `json:"counterparty"`
	ItemCount       int    `json:"item_count"`
	AllocationSpan  int    `json:"allocation_span"`
	LineID          string `json:"line_id,omitempty"`
	ItemName        string `json:"item_name"`
	ItemCode        string `json:"item_code,omitempty"`
	Unit            string `json:"unit"`
	Quantity        string `json:"quantity"`
	Rate            string `json:"rate"`
	Amount          string `json:"amount"`
	Reason          string `json:"reason,omitempty"`
}

func renderJSON(w io.Writer, rows []services.DisplayRow) error {
	out := make([]jsonRow, len(rows))
	for i, row := range rows {
		out[i] = jsonRow{
			OrderGroupID:    string(row.OrderGroupID),
			Kind:            row.Kind.String(),
			CreatedAt:       formatDate(row.CreatedAt),
			FulfillmentDate: formatDate(row.FulfillmentDate),
			Status:          row.Status.String(),
			GrandTotal:      money(row.GrandTotal),
			GroupSpan:       row.GroupSpan,
			ContractID:      string(row.ContractID),
			Counterparty:    row.Counterparty,
			ItemCount:       row.ItemCount,
			AllocationSpan:  row.AllocationSpan,
			LineID:          row.Line.ID,
			ItemName:        string(row.Line.ItemName),
			ItemCode:        row.Line.ItemCode,
			Unit:            string(row.Line.Unit),
			Quantity:        row.Line.Quantity.String(),
			Rate:            money(row.Line.Rate),
			Amount:          money(row.Line.Amount),
			Reason:          row.Line.Reason,
		}
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return nil
}

func renderCSV(w io.Writer, rows []services.DisplayRow) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for i, row := range rows {
		if err := writer.Write(cells(row)); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", i+1, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func money(amount decimal.Decimal) string {
	return amount.StringFixed(services.CurrencyPlaces)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}
