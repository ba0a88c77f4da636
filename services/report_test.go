package services

import (
	"database/sql"
	"reflect"
	"testing"
	"time"

	"fleet-kpi-monitor/models"
)

func TestReportBuildOrdering(t *testing.T) {
	a := unit("10", 4, 4_200_000, 6000, 1)
	b := unit("9", 4, 4_200_000, 6000, 1)
	c := unit("T-1", 4, 4_200_000, 6000, 1)
	d := unit("9", 4, 4_200_000, 6000, 1)
	d.Period = "2024-04"

	report := NewReportBuilder().Build(classify(c, a, b, d))

	var got [][2]string
	for _, r := range report.Rows {
		got = append(got, [2]string{r.UnitID, r.Period})
	}
	want := [][2]string{{"9", "2024-04"}, {"9", "2024-05"}, {"10", "2024-05"}, {"T-1", "2024-05"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order: got %v, want %v", got, want)
	}
}

func TestReportRowValues(t *testing.T) {
	rec := unit("1", 2, 3_500_000, 4500.5, 40)
	b := &ReportBuilder{now: func() time.Time { return testReference }}
	report := b.Build(classify(rec))

	if !report.GeneratedAt.Equal(testReference) {
		t.Errorf("GeneratedAt: got %v", report.GeneratedAt)
	}
	want := []string{
		"1", "Norte", "2024-05", "2", "3500000.00", "4500.50", "2024-04-21", "40",
		"LOW", "LOW", "LOW", "HIGH", "RED",
	}
	if got := report.Rows[0].Cells(); !reflect.DeepEqual(got, want) {
		t.Errorf("cells:\n got %v\nwant %v", got, want)
	}
}

func TestReportMissingCellsBlank(t *testing.T) {
	rec := unit("1", 4, 4_200_000, 6000, -1)
	rec.TripCount = sql.NullInt64{}

	row := NewReportBuilder().Build(classify(rec)).Rows[0]
	if row.TripCount != "" || row.LastServiceDate != "" || row.InactivityDays != "" {
		t.Errorf("missing measures should export blank: %+v", row)
	}
	if row.TripsStatus != models.StatusMissing {
		t.Errorf("TripsStatus: got %s", row.TripsStatus)
	}
}

func TestReportTable(t *testing.T) {
	report := NewReportBuilder().Build(classify(unit("1", 4, 4_200_000, 6000, 1), unit("2", 4, 4_200_000, 6000, 1)))
	table := report.Table()
	if len(table) != 3 {
		t.Fatalf("rows: got %d, want 3", len(table))
	}
	if !reflect.DeepEqual(table[0], models.ReportColumns) {
		t.Errorf("header: got %v", table[0])
	}
	for i, r := range table {
		if len(r) != len(models.ReportColumns) {
			t.Errorf("row %d has %d cells", i, len(r))
		}
	}
}

func TestLessUnitID(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"2", "10", true},
		{"10", "2", false},
		{"99", "A1", true},
		{"A1", "99", false},
		{"A1", "A2", true},
		{"007", "7", true},
	}
	for _, tt := range tests {
		if got := lessUnitID(tt.a, tt.b); got != tt.want {
			t.Errorf("lessUnitID(%q, %q) = %v; want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
