package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"fleet-kpi-monitor/models"
)

// SheetReader is the interface any input format must satisfy.
type SheetReader interface {
	ReadSheet() (*models.Sheet, error)
}

// ReportWriter is the interface any export backend must satisfy.
type ReportWriter interface {
	Write(ctx context.Context, report *models.Report) error
	Close() error
}

// headerScanRows bounds how far below the top the header row is searched;
// the tariff export puts a title row above it.
const headerScanRows = 10

// NewSheetReader picks a reader from the file extension.
func NewSheetReader(path, sheetName string) (SheetReader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return NewXLSXReader(path, sheetName), nil
	case ".csv", ".txt":
		return NewCSVReader(path), nil
	}
	return nil, fmt.Errorf("storage: unsupported input format %q", filepath.Ext(path))
}

// NewReportWriter picks a file writer from the output extension.
func NewReportWriter(path string) (ReportWriter, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return NewXLSXReportWriter(path), nil
	case ".csv":
		return NewCSVReportWriter(path)
	}
	return nil, fmt.Errorf("storage: unsupported report format %q", filepath.Ext(path))
}

// buildSheet locates the header among the first rows and returns the rows
// below it. The header is the first row with at least two known column
// names, falling back to the first non-blank row. Blank and "Unnamed"
// header cells are cleared so their columns are ignored.
func buildSheet(name string, rows [][]string) (*models.Sheet, error) {
	headerIdx := -1
	for i := 0; i < len(rows) && i < headerScanRows; i++ {
		known := 0
		for _, cell := range rows[i] {
			if models.KnownHeader(cell) {
				known++
			}
		}
		if known >= 2 {
			headerIdx = i
			break
		}
	}
	if headerIdx < 0 {
		for i, r := range rows {
			if !models.IsBlankRow(r) {
				headerIdx = i
				break
			}
		}
	}
	if headerIdx < 0 || headerIdx == len(rows)-1 {
		return nil, fmt.Errorf("storage: sheet %q: %w", name, models.ErrEmptySheet)
	}

	header := make([]string, len(rows[headerIdx]))
	for i, h := range rows[headerIdx] {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if strings.HasPrefix(strings.ToLower(h), "unnamed") {
			h = ""
		}
		header[i] = h
	}

	return &models.Sheet{
		Name:         name,
		Header:       header,
		Rows:         rows[headerIdx+1:],
		FirstDataRow: headerIdx + 2,
	}, nil
}
