package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"

	"fleet-kpi-monitor/models"
)

const reportSheet = "KPI"

// XLSXReader reads one worksheet of an .xlsx workbook.
type XLSXReader struct {
	path      string
	sheetName string
}

// NewXLSXReader creates a reader for path. An empty sheetName selects the
// first worksheet.
func NewXLSXReader(path, sheetName string) *XLSXReader {
	return &XLSXReader{path: path, sheetName: sheetName}
}

// ReadSheet returns raw cell values: dates arrive as serial numbers and
// amounts without display formatting.
func (r *XLSXReader) ReadSheet() (*models.Sheet, error) {
	f, err := excelize.OpenFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("xlsx: open %q: %w", r.path, err)
	}
	defer f.Close()

	name := r.sheetName
	if name == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("xlsx: %q: %w", r.path, models.ErrEmptySheet)
		}
		name = sheets[0]
	}

	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("xlsx: read sheet %q: %w", name, err)
	}
	return buildSheet(name, rows)
}

// numericColumns are the report columns written as numbers.
var numericColumns = map[int]bool{3: true, 4: true, 5: true, 7: true}

// XLSXReportWriter writes the report as a workbook with a styled header and
// a coloured semáforo column.
type XLSXReportWriter struct {
	path string
}

// NewXLSXReportWriter creates a writer targeting path.
func NewXLSXReportWriter(path string) *XLSXReportWriter {
	return &XLSXReportWriter{path: path}
}

// Write creates (or replaces) the workbook at the writer's path.
func (w *XLSXReportWriter) Write(_ context.Context, report *models.Report) error {
	if err := os.MkdirAll(filepath.Dir(w.path), 0755); err != nil {
		return fmt.Errorf("xlsx: create output dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", reportSheet); err != nil {
		return fmt.Errorf("xlsx: rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("xlsx: header style: %w", err)
	}
	semaforoStyles, err := newSemaforoStyles(f)
	if err != nil {
		return err
	}

	header := make([]interface{}, len(models.ReportColumns))
	for i, c := range models.ReportColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(reportSheet, "A1", &header); err != nil {
		return fmt.Errorf("xlsx: write header: %w", err)
	}
	if err := f.SetRowStyle(reportSheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("xlsx: style header: %w", err)
	}

	semaforoCol := len(models.ReportColumns)
	for i, row := range report.Rows {
		excelRow := i + 2
		cell, err := excelize.CoordinatesToCellName(1, excelRow)
		if err != nil {
			return fmt.Errorf("xlsx: cell name: %w", err)
		}
		values := cellValues(row.Cells())
		if err := f.SetSheetRow(reportSheet, cell, &values); err != nil {
			return fmt.Errorf("xlsx: write row %d: %w", excelRow, err)
		}

		if style, ok := semaforoStyles[row.Semaforo]; ok {
			semCell, err := excelize.CoordinatesToCellName(semaforoCol, excelRow)
			if err != nil {
				return fmt.Errorf("xlsx: cell name: %w", err)
			}
			if err := f.SetCellStyle(reportSheet, semCell, semCell, style); err != nil {
				return fmt.Errorf("xlsx: style row %d: %w", excelRow, err)
			}
		}
	}

	if err := f.SaveAs(w.path); err != nil {
		return fmt.Errorf("xlsx: save %q: %w", w.path, err)
	}
	return nil
}

// Close is a no-op; Write saves and releases the workbook itself.
func (w *XLSXReportWriter) Close() error {
	return nil
}

func newSemaforoStyles(f *excelize.File) (map[models.Semaforo]int, error) {
	fills := map[models.Semaforo]string{
		models.Green:  "#C6EFCE",
		models.Yellow: "#FFEB9C",
		models.Red:    "#FFC7CE",
	}
	styles := make(map[models.Semaforo]int, len(fills))
	for sem, color := range fills {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			Font: &excelize.Font{Bold: true},
		})
		if err != nil {
			return nil, fmt.Errorf("xlsx: %s style: %w", sem, err)
		}
		styles[sem] = id
	}
	return styles, nil
}

// cellValues writes measures as numbers so the workbook can be re-sorted and
// summed; empty measures stay blank.
func cellValues(cells []string) []interface{} {
	out := make([]interface{}, len(cells))
	for i, c := range cells {
		out[i] = c
		if !numericColumns[i] || c == "" {
			continue
		}
		if v, err := strconv.ParseFloat(c, 64); err == nil {
			out[i] = v
		}
	}
	return out
}
