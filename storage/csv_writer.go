package storage

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"fleet-kpi-monitor/models"
)

// CSVReportWriter writes the KPI report to a CSV file.
// It is safe for concurrent use.
type CSVReportWriter struct {
	mu     sync.Mutex
	file   *os.File
	writer *csv.Writer
}

// NewCSVReportWriter creates (or truncates) the CSV file at the given path.
// Intermediate directories are created automatically.
func NewCSVReportWriter(path string) (*CSVReportWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("csv: create file %q: %w", path, err)
	}

	return &CSVReportWriter{file: f, writer: csv.NewWriter(f)}, nil
}

// Write writes the header and every report row.
func (c *CSVReportWriter) Write(_ context.Context, report *models.Report) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, row := range report.Table() {
		if err := c.writer.Write(row); err != nil {
			return fmt.Errorf("csv: write row: %w", err)
		}
	}

	c.writer.Flush()
	return c.writer.Error()
}

// Close flushes and closes the underlying file.
func (c *CSVReportWriter) Close() error {
	c.writer.Flush()
	return c.file.Close()
}
