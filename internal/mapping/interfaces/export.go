package interfaces

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	mappingapp "program-mapping/internal/mapping/application"
	mapping "program-mapping/internal/mapping/domain"
)

const (
	rowsSheet    = "mappings"
	summarySheet = "summary"
)

// Header returns the column titles of the flat export table: the scalar
// columns followed by one column per period and field.
func Header(window mapping.Window, fields mapping.FieldSet) []string {
	header := []string{"Product", "Power", "Segment", "Selected", "Price", "Current Status"}
	for _, period := range window {
		for _, field := range fields {
			header = append(header, fmt.Sprintf("%s %s", period.Label, field.Label))
		}
	}
	return header
}

// Record flattens a row into export cells aligned with Header.
func Record(row mapping.Row, window mapping.Window, fields mapping.FieldSet) []string {
	selected := "no"
	if row.Selected {
		selected = "yes"
	}
	record := []string{row.Name, row.Power, row.Segment, selected, row.Price.String(), row.CurrentStatus}
	for _, period := range window {
		idx := row.EntryIndex(period.ID)
		for _, field := range fields {
			if idx < 0 {
				record = append(record, "")
				continue
			}
			record = append(record, row.PeriodData[idx].Value(field.Key).String())
		}
	}
	return record
}

// xlsxCells is Record with amounts as numeric cells and empty amounts as nil.
func xlsxCells(row mapping.Row, window mapping.Window, fields mapping.FieldSet) []any {
	record := Record(row, window, fields)
	cells := make([]any, len(record))
	for i, v := range record {
		cells[i] = v
	}
	cells[4] = numericCell(row.Price)
	col := 6
	for _, period := range window {
		idx := row.EntryIndex(period.ID)
		for _, field := range fields {
			if idx >= 0 {
				cells[col] = numericCell(row.PeriodData[idx].Value(field.Key))
			} else {
				cells[col] = nil
			}
			col++
		}
	}
	return cells
}

func numericCell(a mapping.Amount) any {
	d, ok := a.Decimal()
	if !ok {
		return nil
	}
	value, _ := d.Float64()
	return value
}

// BuildMappingXLSX renders the session table as a workbook.
func BuildMappingXLSX(snap mappingapp.Snapshot, rows []mapping.Row) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName("Sheet1", summarySheet)
	if _, err := f.NewSheet(rowsSheet); err != nil {
		return nil, err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Product Program Mapping")
	_ = f.SetCellValue(summarySheet, "A3", "Program")
	_ = f.SetCellValue(summarySheet, "B3", snap.ParentID)
	_ = f.SetCellValue(summarySheet, "A4", "Window")
	_ = f.SetCellValue(summarySheet, "B4", windowLabel(snap.Window))
	_ = f.SetCellValue(summarySheet, "A5", "Version")
	_ = f.SetCellValue(summarySheet, "B5", snap.Version)
	_ = f.SetCellValue(summarySheet, "A6", "Rows")
	_ = f.SetCellValue(summarySheet, "B6", len(rows))

	for i, title := range Header(snap.Window, snap.Fields) {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(rowsSheet, cell, title)
	}
	for r, row := range rows {
		for c, value := range xlsxCells(row, snap.Window, snap.Fields) {
			if value == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(rowsSheet, cell, value)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildMappingPDF renders a landscape table of the session rows. Year fields
// are listed one period per line under each product.
func BuildMappingPDF(snap mappingapp.Snapshot, rows []mapping.Row) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Product Program Mapping")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Program: %s", snap.ParentID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Window: %s", windowLabel(snap.Window)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Version: %d", snap.Version))
	pdf.Ln(8)

	fieldWidth := 30.0
	pdf.SetFont("Arial", "B", 9)
	pdf.CellFormat(60, 6, "Product", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Period", "1", 0, "C", false, 0, "")
	for _, field := range snap.Fields {
		pdf.CellFormat(fieldWidth, 6, field.Label, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range rows {
		for i, period := range snap.Window {
			name := ""
			if i == 0 {
				name = fmt.Sprintf("%s (%s)", row.Name, row.Price.String())
			}
			pdf.CellFormat(60, 6, name, "1", 0, "L", false, 0, "")
			pdf.CellFormat(25, 6, period.Label, "1", 0, "C", false, 0, "")
			idx := row.EntryIndex(period.ID)
			for _, field := range snap.Fields {
				value := ""
				if idx >= 0 {
					value = row.PeriodData[idx].Value(field.Key).String()
				}
				pdf.CellFormat(fieldWidth, 6, value, "1", 0, "R", false, 0, "")
			}
			pdf.Ln(-1)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func windowLabel(window mapping.Window) string {
	if len(window) == 0 {
		return ""
	}
	return fmt.Sprintf("%s to %s", window[0].Label, window[len(window)-1].Label)
}
