package models

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// RawRow is one spreadsheet row keyed by its header cell.
type RawRow map[string]string

// Sheet is a parsed worksheet: the detected header plus the data rows below it.
// Rows keep the column order of Header.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]string
	// FirstDataRow is the 1-based spreadsheet row of Rows[0].
	FirstDataRow int
}

// InputRow is a header-keyed row together with its 1-based position in the
// source sheet.
type InputRow struct {
	Num   int
	Cells RawRow
}

// InputRows converts positional rows into header-keyed rows.
// Blank rows are skipped and cells under blank header columns are dropped.
func (s *Sheet) InputRows() []InputRow {
	out := make([]InputRow, 0, len(s.Rows))
	for i, cells := range s.Rows {
		if IsBlankRow(cells) {
			continue
		}
		row := make(RawRow, len(s.Header))
		for j, h := range s.Header {
			if h == "" {
				continue
			}
			if j < len(cells) {
				row[h] = cells[j]
			} else {
				row[h] = ""
			}
		}
		out = append(out, InputRow{Num: s.FirstDataRow + i, Cells: row})
	}
	return out
}

// UnitRecord is a single vehicle-period observation after normalization.
// Records are never modified once loaded.
type UnitRecord struct {
	UnitID       string
	BusinessUnit string
	Period       string

	TripCount       sql.NullInt64
	BillingAmount   decimal.NullDecimal
	TotalKM         sql.NullFloat64
	LastServiceDate sql.NullTime
	ReferenceDate   time.Time

	SourceRow int
}

// Key identifies a record inside one loaded dataset.
func (r *UnitRecord) Key() string {
	return r.UnitID + "\x00" + r.Period
}

// SkippedRow describes an input row that failed normalization.
type SkippedRow struct {
	Row int
	Err error
}

// LoadResult is the outcome of normalizing one dataset.
type LoadResult struct {
	Records   []*UnitRecord
	Skipped   []SkippedRow
	TotalRows int
}

// SkippedCount returns the number of rows excluded from evaluation.
func (r *LoadResult) SkippedCount() int {
	return len(r.Skipped)
}
