package output

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/vsinha/tradeops/pkg/domain/services"
)

//go:embed templates/*.html
var templateFS embed.FS

var viewTemplate = template.Must(template.ParseFS(templateFS, "templates/view.html"))

// numericColumns are right-aligned in HTML
var numericColumns = map[int]bool{5: true, 8: true, 12: true, 13: true, 14: true}

type htmlCell struct {
	Value   string
	Span    int
	Numeric bool
}

type htmlRow struct {
	GroupStart bool
	Cells      []htmlCell
}

type htmlView struct {
	Title       string
	Columns     []string
	Rows        []htmlRow
	GroupCount  int
	GeneratedAt string
}

// renderHTML writes the merged view as an HTML table. Group and allocation
// cells are emitted once with a rowspan, the same merge the XLSX renderer
// produces.
func renderHTML(w io.Writer, rows []services.DisplayRow) error {
	view := htmlView{
		Title:       "Order groups",
		Columns:     Columns,
		Rows:        make([]htmlRow, 0, len(rows)),
		GeneratedAt: time.Now().Format("2006-01-02 15:04:05"),
	}
	if len(rows) > 0 {
		view.Title = rows[0].Kind.String() + " groups"
	}

	for _, row := range rows {
		values := cells(row)
		out := htmlRow{GroupStart: row.IsGroupStart()}
		if row.IsGroupStart() {
			view.GroupCount++
		}

		for i, value := range values {
			span := 1
			switch {
			case i < groupColumns:
				if !row.IsGroupStart() {
					continue
				}
				span = row.GroupSpan
			case i < groupColumns+allocationColumns:
				if !row.IsAllocationStart() {
					continue
				}
				span = row.AllocationSpan
			}
			out.Cells = append(out.Cells, htmlCell{Value: value, Span: span, Numeric: numericColumns[i]})
		}
		view.Rows = append(view.Rows, out)
	}

	if err := viewTemplate.Execute(w, view); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	return nil
}
