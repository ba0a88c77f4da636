package services

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"fleet-kpi-monitor/models"
	"fleet-kpi-monitor/utils"
)

var maxTripCount = decimal.NewFromInt(math.MaxInt64)

// Normalizer turns raw spreadsheet rows into validated UnitRecords.
type Normalizer struct {
	logger  *utils.Logger
	columns models.Columns
}

// NewNormalizer creates a Normalizer using the default column aliases.
func NewNormalizer(logger *utils.Logger) *Normalizer {
	return &Normalizer{logger: logger, columns: models.DefaultColumns}
}

// WithColumns returns a copy of n that resolves fields through cols.
func (n *Normalizer) WithColumns(cols models.Columns) *Normalizer {
	return &Normalizer{logger: n.logger, columns: cols}
}

// Load normalizes every row. Failing rows are reported in Skipped and never
// abort the load; a second row for an already loaded unit and period is
// skipped with ErrDuplicateRecord.
func (n *Normalizer) Load(rows []models.InputRow, reference time.Time) *models.LoadResult {
	result := &models.LoadResult{
		Records:   make([]*models.UnitRecord, 0, len(rows)),
		TotalRows: len(rows),
	}
	seen := utils.NewKeySet()

	for _, row := range rows {
		rec, err := n.Normalize(row, reference)
		if err != nil {
			n.logger.Warn("[normalizer] Skipping %v", err)
			result.Skipped = append(result.Skipped, models.SkippedRow{Row: row.Num, Err: err})
			continue
		}
		if !seen.Add(rec.Key()) {
			err := &models.FieldError{
				Row:   row.Num,
				Field: models.FieldUnitID,
				Value: rec.UnitID + " " + rec.Period,
				Err:   models.ErrDuplicateRecord,
			}
			n.logger.Warn("[normalizer] Skipping %v", err)
			result.Skipped = append(result.Skipped, models.SkippedRow{Row: row.Num, Err: err})
			continue
		}
		result.Records = append(result.Records, rec)
	}

	n.logger.Info("[normalizer] Normalized %d → %d records (skipped %d)",
		result.TotalRows, len(result.Records), result.SkippedCount())
	return result
}

// Normalize validates one row. reference is the as-of date used when the row
// carries no reference_date of its own.
func (n *Normalizer) Normalize(row models.InputRow, reference time.Time) (*models.UnitRecord, error) {
	index := indexRow(row.Cells)
	field := func(name string) string {
		v, _ := lookup(index, n.columns, name)
		return v
	}

	rec := &models.UnitRecord{
		UnitID:        normalizeUnitID(field(models.FieldUnitID)),
		BusinessUnit:  normaliseText(field(models.FieldBusinessUnit)),
		Period:        normalizePeriod(field(models.FieldPeriod)),
		ReferenceDate: civilDate(reference),
		SourceRow:     row.Num,
	}

	for _, id := range []struct {
		name, value string
	}{
		{models.FieldUnitID, rec.UnitID},
		{models.FieldBusinessUnit, rec.BusinessUnit},
		{models.FieldPeriod, rec.Period},
	} {
		if id.value == "" {
			return nil, &models.FieldError{Row: row.Num, Field: id.name, Err: models.ErrMalformedRecord}
		}
	}

	var err error
	if rec.TripCount, err = n.tripCount(row.Num, field(models.FieldTripCount)); err != nil {
		return nil, err
	}
	if rec.BillingAmount, err = n.amount(row.Num, models.FieldBillingAmount, field(models.FieldBillingAmount)); err != nil {
		return nil, err
	}
	km, err := n.amount(row.Num, models.FieldTotalKM, field(models.FieldTotalKM))
	if err != nil {
		return nil, err
	}
	if km.Valid {
		rec.TotalKM = sql.NullFloat64{Float64: km.Decimal.InexactFloat64(), Valid: true}
	}

	if raw := field(models.FieldLastServiceDate); raw != "" {
		if d, ok := parseDate(raw); ok {
			rec.LastServiceDate = sql.NullTime{Time: d, Valid: true}
		} else {
			n.logger.Warn("[normalizer] Row %d: unreadable %s %q treated as never serviced",
				row.Num, models.FieldLastServiceDate, raw)
		}
	}
	if raw := field(models.FieldReferenceDate); raw != "" {
		if d, ok := parseDate(raw); ok {
			rec.ReferenceDate = d
		} else {
			n.logger.Debug("[normalizer] Row %d: unreadable %s %q, using %s",
				row.Num, models.FieldReferenceDate, raw, rec.ReferenceDate.Format("2006-01-02"))
		}
	}

	return rec, nil
}

func (n *Normalizer) amount(rowNum int, name, raw string) (decimal.NullDecimal, error) {
	d, ok := parseDecimal(raw)
	if !ok {
		if raw != "" {
			n.logger.Debug("[normalizer] Row %d: unparseable %s %q treated as missing", rowNum, name, raw)
		}
		return decimal.NullDecimal{}, nil
	}
	if d.IsNegative() {
		return decimal.NullDecimal{}, &models.FieldError{Row: rowNum, Field: name, Value: raw, Err: models.ErrInvalidRange}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}

func (n *Normalizer) tripCount(rowNum int, raw string) (sql.NullInt64, error) {
	d, err := n.amount(rowNum, models.FieldTripCount, raw)
	if err != nil || !d.Valid {
		return sql.NullInt64{}, err
	}
	if !d.Decimal.Equal(d.Decimal.Truncate(0)) {
		n.logger.Debug("[normalizer] Row %d: fractional %s %q treated as missing", rowNum, models.FieldTripCount, raw)
		return sql.NullInt64{}, nil
	}
	if d.Decimal.GreaterThan(maxTripCount) {
		n.logger.Debug("[normalizer] Row %d: %s %q out of range, treated as missing", rowNum, models.FieldTripCount, raw)
		return sql.NullInt64{}, nil
	}
	return sql.NullInt64{Int64: d.Decimal.IntPart(), Valid: true}, nil
}

// SkipReasons groups skipped rows by cause for reporting.
func SkipReasons(skipped []models.SkippedRow) map[string]int {
	out := make(map[string]int)
	for _, s := range skipped {
		var fe *models.FieldError
		switch {
		case errors.As(s.Err, &fe):
			out[fmt.Sprintf("%s: %v", fe.Field, fe.Err)]++
		default:
			out[s.Err.Error()]++
		}
	}
	return out
}
