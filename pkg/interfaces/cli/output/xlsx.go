package output

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/vsinha/tradeops/pkg/domain/services"
)

// SheetName is the worksheet the merged view is written to
const SheetName = "Sheet1"

// renderXLSX writes the merged view as a workbook. Group and allocation
// columns become real merged cells spanning their lines.
func renderXLSX(w io.Writer, rows []services.DisplayRow) error {
	f := excelize.NewFile()
	defer f.Close()

	header := make([]any, len(Columns))
	for i, column := range Columns {
		header[i] = column
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	lastHeader, err := excelize.CoordinatesToCellName(len(Columns), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetName, "A1", lastHeader, bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, row := range rows {
		excelRow := i + 2
		values := make([]any, 0, len(Columns))
		if row.IsGroupStart() {
			values = append(values,
				string(row.OrderGroupID),
				row.Kind.String(),
				formatDate(row.CreatedAt),
				formatDate(row.FulfillmentDate),
				row.Status.String(),
				row.GrandTotal.InexactFloat64(),
			)
		} else {
			values = append(values, make([]any, groupColumns)...)
		}
		if row.IsAllocationStart() {
			values = append(values, string(row.ContractID), row.Counterparty, row.ItemCount)
		} else {
			values = append(values, make([]any, allocationColumns)...)
		}
		values = append(values,
			string(row.Line.ItemName),
			row.Line.ItemCode,
			string(row.Line.Unit),
			row.Line.Quantity.InexactFloat64(),
			row.Line.Rate.InexactFloat64(),
			row.Line.Amount.InexactFloat64(),
			row.Line.Reason,
		)

		cell, err := excelize.CoordinatesToCellName(1, excelRow)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", excelRow, err)
		}

		if row.IsGroupStart() && row.GroupSpan > 1 {
			if err := mergeColumns(f, 1, groupColumns, excelRow, row.GroupSpan); err != nil {
				return err
			}
		}
		if row.IsAllocationStart() && row.AllocationSpan > 1 {
			if err := mergeColumns(f, groupColumns+1, groupColumns+allocationColumns, excelRow, row.AllocationSpan); err != nil {
				return err
			}
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// mergeColumns merges each column in [first, last] over span rows starting
// at row
func mergeColumns(f *excelize.File, first, last, row, span int) error {
	for col := first; col <= last; col++ {
		top, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		bottom, err := excelize.CoordinatesToCellName(col, row+span-1)
		if err != nil {
			return err
		}
		if err := f.MergeCell(SheetName, top, bottom); err != nil {
			return fmt.Errorf("failed to merge %s:%s: %w", top, bottom, err)
		}
	}
	return nil
}
