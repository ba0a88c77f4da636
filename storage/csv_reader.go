package storage

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fleet-kpi-monitor/models"
)

// CSVReader reads a comma- or semicolon-separated export.
type CSVReader struct {
	path string
}

// NewCSVReader creates a reader for path.
func NewCSVReader(path string) *CSVReader {
	return &CSVReader{path: path}
}

// ReadSheet parses the whole file. The delimiter is whichever of ',' and ';'
// occurs more often on the first line.
func (r *CSVReader) ReadSheet() (*models.Sheet, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("csv: read %q: %w", r.path, err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = detectDelimiter(data)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csv: parse %q: %w", r.path, err)
	}
	return buildSheet(filepath.Base(r.path), rows)
}

func detectDelimiter(data []byte) rune {
	first := string(data)
	if i := strings.IndexByte(first, '\n'); i >= 0 {
		first = first[:i]
	}
	if strings.Count(first, ";") > strings.Count(first, ",") {
		return ';'
	}
	return ','
}
