package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Sheet layout parameters matching the reports previously circulated.
const (
	sheetName      = "Sheet1"
	widthPadding   = 2
	lineHeight     = 15
	minColumnWidth = 1
)

// WriteWorkbook writes a single-sheet .xlsx file: header row, wrap-text
// cells, column widths sized to the longest line, and row heights sized to
// the line count so newline-joined values stay readable.
func WriteWorkbook(path string, header []string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	wrap, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return fmt.Errorf("create cell style: %w", err)
	}

	if err := writeRow(f, 1, header); err != nil {
		return err
	}
	for i, row := range rows {
		if err := writeRow(f, i+2, row); err != nil {
			return err
		}
	}

	lastCell, err := excelize.CoordinatesToCellName(len(header), len(rows)+1)
	if err != nil {
		return fmt.Errorf("resolve last cell: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", lastCell, wrap); err != nil {
		return fmt.Errorf("apply wrap style: %w", err)
	}

	if err := sizeColumns(f, header, rows); err != nil {
		return err
	}
	if err := sizeRows(f, rows); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, rowNum int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return fmt.Errorf("resolve row %d: %w", rowNum, err)
	}
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(sheetName, cell, &cells); err != nil {
		return fmt.Errorf("write row %d: %w", rowNum, err)
	}
	return nil
}

// sizeColumns sets each column's width to its longest line plus padding.
func sizeColumns(f *excelize.File, header []string, rows [][]string) error {
	for col := range header {
		width := longestLine(header[col])
		for _, row := range rows {
			if col < len(row) {
				if w := longestLine(row[col]); w > width {
					width = w
				}
			}
		}
		if width < minColumnWidth {
			width = minColumnWidth
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return fmt.Errorf("resolve column %d: %w", col+1, err)
		}
		if err := f.SetColWidth(sheetName, name, name, float64(width+widthPadding)); err != nil {
			return fmt.Errorf("set width of column %s: %w", name, err)
		}
	}
	return nil
}

// sizeRows scales each data row's height by its tallest cell's line count.
func sizeRows(f *excelize.File, rows [][]string) error {
	for i, row := range rows {
		lines := 1
		for _, cell := range row {
			if n := strings.Count(cell, "\n") + 1; n > lines {
				lines = n
			}
		}
		if err := f.SetRowHeight(sheetName, i+2, float64(lines*lineHeight)); err != nil {
			return fmt.Errorf("set height of row %d: %w", i+2, err)
		}
	}
	return nil
}

func longestLine(s string) int {
	longest := 0
	for _, line := range strings.Split(s, "\n") {
		if len(line) > longest {
			longest = len(line)
		}
	}
	return longest
}
