package services

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"fleet-kpi-monitor/config"
	"fleet-kpi-monitor/models"
)

func newTestAggregator() *Aggregator {
	return NewAggregator(newTestLogger(), config.DefaultThresholds())
}

func sampleFleet() []models.ClassifiedUnit {
	a := unit("1", 2, 3_500_000, 4500, 40)
	b := unit("2", 4, 4_200_000, 6000, 1)
	c := unit("3", 7, 5_000_000, 9000, -1)
	c.BusinessUnit = "Sur"
	d := unit("4", 4, 4_000_000, 6000, 3)
	d.Period = "2024-04"
	return classify(a, b, c, d)
}

func TestAggregatorFilter(t *testing.T) {
	agg := newTestAggregator()
	units := sampleFleet()

	tests := []struct {
		name   string
		filter models.Filter
		want   []string
	}{
		{"no constraint", models.Filter{}, []string{"1", "2", "3", "4"}},
		{"business unit", models.Filter{BusinessUnit: "Norte"}, []string{"1", "2", "4"}},
		{"period", models.Filter{Period: "2024-05"}, []string{"1", "2", "3"}},
		{"both", models.Filter{BusinessUnit: " Norte ", Period: "05/2024"}, []string{"1", "2"}},
		{"no match", models.Filter{BusinessUnit: "Centro"}, nil},
	}
	for _, tt := range tests {
		got := agg.Filter(units, tt.filter)
		var ids []string
		for _, u := range got {
			ids = append(ids, u.Record.UnitID)
		}
		if !reflect.DeepEqual(ids, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, ids, tt.want)
		}
	}
}

func TestAggregatorFilterIdempotent(t *testing.T) {
	agg := newTestAggregator()
	f := models.Filter{BusinessUnit: "Norte", Period: "2024-05"}
	once := agg.Filter(sampleFleet(), f)
	twice := agg.Filter(once, f)
	if !reflect.DeepEqual(once, twice) {
		t.Error("filtering twice should equal filtering once")
	}
}

func TestFilterRecords(t *testing.T) {
	var recs []*models.UnitRecord
	for _, u := range sampleFleet() {
		recs = append(recs, u.Record)
	}
	if got := FilterRecords(recs, models.Filter{BusinessUnit: "Sur"}); len(got) != 1 || got[0].UnitID != "3" {
		t.Errorf("FilterRecords: got %v", got)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	s := newTestAggregator().Summarize(nil)
	if s.HasData || s.UnitCount != 0 {
		t.Errorf("empty summary: HasData=%v UnitCount=%d", s.HasData, s.UnitCount)
	}
	for _, sem := range models.Semaforos {
		if n, ok := s.BySemaforo[sem]; !ok || n != 0 {
			t.Errorf("BySemaforo[%s] = %d, %v", sem, n, ok)
		}
	}
	for _, st := range []models.MeasureStats{s.Trips, s.Billing, s.Mileage, s.Inactivity} {
		if st.Defined || st.Count != 0 {
			t.Errorf("stats should be undefined: %+v", st)
		}
	}
	if !s.TotalBilling.IsZero() {
		t.Errorf("TotalBilling: got %s", s.TotalBilling)
	}
	for _, b := range s.TripsHistogram {
		if b.Count != 0 {
			t.Errorf("bucket %q: got %d", b.Label, b.Count)
		}
	}
}

func TestSummarizeCounts(t *testing.T) {
	agg := newTestAggregator()
	s := agg.Summarize(agg.Filter(sampleFleet(), models.Filter{Period: "2024-05"}))

	if !s.HasData || s.UnitCount != 3 {
		t.Fatalf("UnitCount: got %d", s.UnitCount)
	}
	if s.BySemaforo[models.Green] != 1 || s.BySemaforo[models.Red] != 2 || s.BySemaforo[models.Yellow] != 0 {
		t.Errorf("BySemaforo: got %v", s.BySemaforo)
	}
	total := 0
	for _, n := range s.BySemaforo {
		total += n
	}
	if total != s.UnitCount {
		t.Errorf("semáforo counts sum to %d, want %d", total, s.UnitCount)
	}
	for rule, counts := range s.ByRule {
		sum := 0
		for _, n := range counts {
			sum += n
		}
		if sum != s.UnitCount {
			t.Errorf("%s status counts sum to %d", rule, sum)
		}
	}
	if s.TotalTrips != 13 {
		t.Errorf("TotalTrips: got %d, want 13", s.TotalTrips)
	}
	if !s.TotalBilling.Equal(decimal.NewFromInt(12_700_000)) {
		t.Errorf("TotalBilling: got %s", s.TotalBilling)
	}
	if s.Trips.Mean != 4.33 || s.Trips.Median != 4 || s.Trips.Min != 2 || s.Trips.Max != 7 {
		t.Errorf("Trips stats: got %+v", s.Trips)
	}
	if s.Inactivity.Count != 2 || s.Inactivity.Mean != 20.5 {
		t.Errorf("Inactivity stats should skip the never serviced unit: %+v", s.Inactivity)
	}
}

func TestSummarizeHistograms(t *testing.T) {
	agg := newTestAggregator()
	s := agg.Summarize(agg.Filter(sampleFleet(), models.Filter{Period: "2024-05"}))

	tests := []struct {
		name string
		got  []models.Bucket
		want []models.Bucket
	}{
		{"trips", s.TripsHistogram, []models.Bucket{
			{Label: "< 3", Count: 1}, {Label: "3-5", Count: 1}, {Label: "> 5", Count: 1}, {Label: "missing"},
		}},
		{"billing", s.BillingHistogram, []models.Bucket{
			{Label: "< $4M", Count: 1}, {Label: ">= $4M", Count: 2}, {Label: "missing"},
		}},
		{"mileage", s.MileageHistogram, []models.Bucket{
			{Label: "< 5k", Count: 1}, {Label: "5k-8k", Count: 1}, {Label: "> 8k", Count: 1}, {Label: "missing"},
		}},
		{"inactivity", s.InactivityHistogram, []models.Bucket{
			{Label: "<= 7 days", Count: 1}, {Label: "> 7 days", Count: 1}, {Label: "never serviced", Count: 1},
		}},
	}
	for _, tt := range tests {
		if !reflect.DeepEqual(tt.got, tt.want) {
			t.Errorf("%s histogram:\n got %v\nwant %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestSummarizeOrderIndependent(t *testing.T) {
	agg := newTestAggregator()
	units := sampleFleet()
	reversed := make([]models.ClassifiedUnit, len(units))
	for i, u := range units {
		reversed[len(units)-1-i] = u
	}
	if a, b := agg.Summarize(units), agg.Summarize(reversed); !reflect.DeepEqual(a, b) {
		t.Errorf("summary depends on input order:\n%+v\n%+v", a, b)
	}
}

func TestAggregatorOptions(t *testing.T) {
	var recs []*models.UnitRecord
	for _, u := range sampleFleet() {
		recs = append(recs, u.Record)
	}
	agg := newTestAggregator()

	got := agg.Options(recs, "")
	want := models.Options{BusinessUnits: []string{"Norte", "Sur"}, Periods: []string{"2024-05", "2024-04"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Options: got %+v, want %+v", got, want)
	}

	got = agg.Options(recs, "Sur")
	want = models.Options{BusinessUnits: []string{"Norte", "Sur"}, Periods: []string{"2024-05"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Options(Sur): got %+v, want %+v", got, want)
	}
}

func TestSummarizeLargeMeasures(t *testing.T) {
	s := newTestAggregator().Summarize(classify(unit("1", 4, 4_000_000, 1e17, 1)))
	if s.Mileage.Mean != 1e17 || s.Mileage.Median != 1e17 {
		t.Errorf("Mileage stats: got %+v", s.Mileage)
	}
}

func TestRound2(t *testing.T) {
	tests := map[float64]float64{4.333: 4.33, 20.5: 20.5, 2.346: 2.35, -1.234: -1.23, 1e17: 1e17}
	for in, want := range tests {
		if got := round2(in); got != want {
			t.Errorf("round2(%v) = %v; want %v", in, got, want)
		}
	}
}

func TestAggregatorPrint(t *testing.T) {
	agg := newTestAggregator()

	var empty bytes.Buffer
	agg.Print(&empty, agg.Summarize(nil), models.Filter{BusinessUnit: "Centro"})
	if !strings.Contains(empty.String(), "No data") {
		t.Errorf("empty summary should say No data:\n%s", empty.String())
	}

	var full bytes.Buffer
	agg.Print(&full, agg.Summarize(sampleFleet()), models.Filter{})
	for _, want := range []string{"Monthly Summary", "Total trips", "RED", "never serviced"} {
		if !strings.Contains(full.String(), want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestCompactNumber(t *testing.T) {
	tests := map[float64]string{4_000_000: "4M", 2_500_000: "2.5M", 5_000: "5k", 7: "7", 1_234: "1234"}
	for in, want := range tests {
		if got := compactNumber(in); got != want {
			t.Errorf("compactNumber(%v) = %q; want %q", in, got, want)
		}
	}
}
