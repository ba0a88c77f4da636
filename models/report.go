package models

import "time"

// ReportColumns is the header of the exported report.
var ReportColumns = []string{
	"unit_id",
	"business_unit",
	"period",
	"trip_count",
	"billing_amount",
	"total_km",
	"last_service_date",
	"inactivity_days",
	"trips_status",
	"billing_status",
	"mileage_status",
	"inactivity_status",
	"semaforo",
}

// ReportRow is one flattened line of the export. Empty strings stand for
// missing measures.
type ReportRow struct {
	UnitID           string
	BusinessUnit     string
	Period           string
	TripCount        string
	BillingAmount    string
	TotalKM          string
	LastServiceDate  string
	InactivityDays   string
	TripsStatus      KPIStatus
	BillingStatus    KPIStatus
	MileageStatus    KPIStatus
	InactivityStatus KPIStatus
	Semaforo         Semaforo
}

// Cells returns the row in ReportColumns order.
func (r ReportRow) Cells() []string {
	return []string{
		r.UnitID,
		r.BusinessUnit,
		r.Period,
		r.TripCount,
		r.BillingAmount,
		r.TotalKM,
		r.LastServiceDate,
		r.InactivityDays,
		string(r.TripsStatus),
		string(r.BillingStatus),
		string(r.MileageStatus),
		string(r.InactivityStatus),
		string(r.Semaforo),
	}
}

// Report is the exportable table for one filtered, classified dataset.
type Report struct {
	Filter      Filter
	GeneratedAt time.Time
	Skipped     int
	Rows        []ReportRow
}

// Table returns the header followed by every row.
func (r *Report) Table() [][]string {
	out := make([][]string, 0, len(r.Rows)+1)
	out = append(out, append([]string(nil), ReportColumns...))
	for _, row := range r.Rows {
		out = append(out, row.Cells())
	}
	return out
}
