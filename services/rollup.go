package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"fleet-kpi-monitor/models"
	"fleet-kpi-monitor/utils"
)

// Layout tells the Monitor whether a sheet holds one row per unit or one row
// per trip.
type Layout string

const (
	LayoutAuto  Layout = "auto"
	LayoutUnits Layout = "units"
	LayoutTrips Layout = "trips"
)

// ParseLayout validates a layout name.
func ParseLayout(s string) (Layout, error) {
	switch l := Layout(strings.ToLower(strings.TrimSpace(s))); l {
	case "", LayoutAuto:
		return LayoutAuto, nil
	case LayoutUnits, LayoutTrips:
		return l, nil
	}
	return "", fmt.Errorf("unknown layout %q (want auto, units or trips)", s)
}

// DetectLayout picks LayoutTrips for headers carrying Tractor and Viaje.
func DetectLayout(header []string) Layout {
	var tractor, trip bool
	for _, h := range header {
		switch models.NormalizeHeader(h) {
		case models.NormalizeHeader(models.TripColTractor):
			tractor = true
		case models.NormalizeHeader(models.TripColTrip):
			trip = true
		}
	}
	if tractor && trip {
		return LayoutTrips
	}
	return LayoutUnits
}

// RollupResult holds the unit-level rows built from a trip sheet.
type RollupResult struct {
	Rows      []models.InputRow
	Skipped   []models.SkippedRow
	TotalRows int
	UnitCol   string
	// UnitCount is the number of distinct unit ids among the grouped trips.
	UnitCount int
}

// TripRollup groups trip-level rows into one row per unit and month.
type TripRollup struct {
	logger *utils.Logger
}

// NewTripRollup creates a TripRollup with the given logger.
func NewTripRollup(logger *utils.Logger) *TripRollup {
	return &TripRollup{logger: logger}
}

type tripGroup struct {
	unitID, businessUnit, period string
	firstRow                     int
	trips                        int64
	billing                      decimal.Decimal
	km                           decimal.Decimal
	lastTrip                     time.Time
}

// Rollup aggregates sheet per (unit, business unit, month of Fecha). The unit
// id column is the first named column to the right of Tractor. When reference
// is zero each group's reference date is the latest Fecha seen for its
// business unit and month.
func (r *TripRollup) Rollup(sheet *models.Sheet, reference time.Time) (*RollupResult, error) {
	pos, unitCol, err := tripColumns(sheet.Header)
	if err != nil {
		return nil, err
	}

	result := &RollupResult{UnitCol: unitCol}
	groups := make(map[string]*tripGroup)
	units := utils.NewKeySet()
	latest := make(map[string]time.Time)

	for i, cells := range sheet.Rows {
		if models.IsBlankRow(cells) {
			continue
		}
		rowNum := sheet.FirstDataRow + i
		result.TotalRows++
		cell := func(col string) string {
			if idx := pos[col]; idx < len(cells) {
				return strings.TrimSpace(cells[idx])
			}
			return ""
		}

		date, ok := parseDate(cell(models.TripColDate))
		if !ok {
			result.Skipped = append(result.Skipped, models.SkippedRow{Row: rowNum, Err: &models.FieldError{
				Row: rowNum, Field: models.TripColDate, Value: cell(models.TripColDate), Err: models.ErrMalformedRecord,
			}})
			continue
		}
		unitID := normalizeUnitID(cell(unitCol))
		bu := normaliseText(cell(models.TripColBusinessUnit))
		if unitID == "" || bu == "" {
			missing := unitCol
			if unitID != "" {
				missing = models.TripColBusinessUnit
			}
			result.Skipped = append(result.Skipped, models.SkippedRow{Row: rowNum, Err: &models.FieldError{
				Row: rowNum, Field: missing, Err: models.ErrMalformedRecord,
			}})
			continue
		}

		units.Add(unitID)
		period := PeriodOf(date)
		key := unitID + "\x00" + bu + "\x00" + period
		g, ok := groups[key]
		if !ok {
			g = &tripGroup{unitID: unitID, businessUnit: bu, period: period, firstRow: rowNum}
			groups[key] = g
		}
		if cell(models.TripColTrip) != "" {
			g.trips++
		}
		// Unreadable amounts count as zero, matching the export's own totals.
		if d, ok := parseDecimal(cell(models.TripColPrice)); ok {
			g.billing = g.billing.Add(d)
		}
		if d, ok := parseDecimal(cell(models.TripColDistance)); ok {
			g.km = g.km.Add(d)
		}
		if date.After(g.lastTrip) {
			g.lastTrip = date
		}

		scope := bu + "\x00" + period
		if date.After(latest[scope]) {
			latest[scope] = date
		}
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return groups[keys[i]].firstRow < groups[keys[j]].firstRow
	})

	for _, k := range keys {
		g := groups[k]
		ref := reference
		if ref.IsZero() {
			ref = latest[g.businessUnit+"\x00"+g.period]
		}
		result.Rows = append(result.Rows, models.InputRow{
			Num: g.firstRow,
			Cells: models.RawRow{
				models.FieldUnitID:          g.unitID,
				models.FieldBusinessUnit:    g.businessUnit,
				models.FieldPeriod:          g.period,
				models.FieldTripCount:       strconv.FormatInt(g.trips, 10),
				models.FieldBillingAmount:   g.billing.String(),
				models.FieldTotalKM:         g.km.String(),
				models.FieldLastServiceDate: g.lastTrip.Format("2006-01-02"),
				models.FieldReferenceDate:   ref.Format("2006-01-02"),
			},
		})
	}

	result.UnitCount = units.Size()
	r.logger.Info("[rollup] Grouped %d trips into %d unit-periods of %d units (unit column %q, skipped %d)",
		result.TotalRows, len(result.Rows), result.UnitCount, unitCol, len(result.Skipped))
	return result, nil
}

// tripColumns maps each required trip column to its index and finds the unit
// id column.
func tripColumns(header []string) (map[string]int, string, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		n := models.NormalizeHeader(h)
		if n == "" {
			continue
		}
		if _, dup := index[n]; !dup {
			index[n] = i
		}
	}

	pos := make(map[string]int, len(models.TripRequiredColumns)+1)
	var missing []string
	for _, col := range models.TripRequiredColumns {
		i, ok := index[models.NormalizeHeader(col)]
		if !ok {
			missing = append(missing, col)
			continue
		}
		pos[col] = i
	}
	if len(missing) > 0 {
		return nil, "", fmt.Errorf("%w: %s", models.ErrMissingColumns, strings.Join(missing, ", "))
	}

	for i := pos[models.TripColTractor] + 1; i < len(header); i++ {
		if name := strings.TrimSpace(header[i]); name != "" {
			pos[name] = i
			return pos, name, nil
		}
	}
	return nil, "", fmt.Errorf("%w: unit id column after %s", models.ErrMissingColumns, models.TripColTractor)
}
