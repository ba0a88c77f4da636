package services

import (
	"sort"
	"strconv"
	"time"

	"fleet-kpi-monitor/models"
)

// ReportBuilder flattens classified units into an exportable table.
type ReportBuilder struct {
	now func() time.Time
}

// NewReportBuilder creates a ReportBuilder stamping reports with the current time.
func NewReportBuilder() *ReportBuilder {
	return &ReportBuilder{now: time.Now}
}

// Build returns one row per unit, ordered by unit id then period, so that
// identical inputs always export identically.
func (b *ReportBuilder) Build(units []models.ClassifiedUnit) *models.Report {
	ordered := make([]models.ClassifiedUnit, len(units))
	copy(ordered, units)
	sort.SliceStable(ordered, func(i, j int) bool {
		return lessUnit(ordered[i].Record, ordered[j].Record)
	})

	report := &models.Report{
		GeneratedAt: b.now(),
		Rows:        make([]models.ReportRow, 0, len(ordered)),
	}
	for _, u := range ordered {
		report.Rows = append(report.Rows, reportRow(u))
	}
	return report
}

func reportRow(u models.ClassifiedUnit) models.ReportRow {
	rec, c := u.Record, u.Classification
	row := models.ReportRow{
		UnitID:           rec.UnitID,
		BusinessUnit:     rec.BusinessUnit,
		Period:           rec.Period,
		TripsStatus:      c.Result(models.RuleTrips).Status,
		BillingStatus:    c.Result(models.RuleBilling).Status,
		MileageStatus:    c.Result(models.RuleMileage).Status,
		InactivityStatus: c.Result(models.RuleInactivity).Status,
		Semaforo:         c.Overall,
	}
	if rec.TripCount.Valid {
		row.TripCount = strconv.FormatInt(rec.TripCount.Int64, 10)
	}
	if rec.BillingAmount.Valid {
		row.BillingAmount = rec.BillingAmount.Decimal.StringFixed(2)
	}
	if rec.TotalKM.Valid {
		row.TotalKM = strconv.FormatFloat(rec.TotalKM.Float64, 'f', 2, 64)
	}
	if rec.LastServiceDate.Valid {
		row.LastServiceDate = rec.LastServiceDate.Time.Format("2006-01-02")
	}
	if v := c.Result(models.RuleInactivity).Value; v.Defined {
		row.InactivityDays = strconv.Itoa(int(v.Value))
	}
	return row
}
