package services

import (
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"fleet-kpi-monitor/config"
	"fleet-kpi-monitor/models"
	"fleet-kpi-monitor/utils"
)

const (
	bucketMissing       = "missing"
	bucketNeverServiced = "never serviced"
)

// Aggregator filters classified units and derives fleet summaries from them.
type Aggregator struct {
	logger     *utils.Logger
	thresholds *config.Thresholds
}

// NewAggregator creates an Aggregator whose histogram buckets follow t.
func NewAggregator(logger *utils.Logger, t *config.Thresholds) *Aggregator {
	return &Aggregator{logger: logger, thresholds: t}
}

// Filter returns a new slice with the units matching f, in input order.
func (a *Aggregator) Filter(units []models.ClassifiedUnit, f models.Filter) []models.ClassifiedUnit {
	f = normalizeFilter(f)
	out := make([]models.ClassifiedUnit, 0, len(units))
	for _, u := range units {
		if matches(u.Record, f) {
			out = append(out, u)
		}
	}
	a.logger.Debug("[aggregator] Filter %+v kept %d of %d units", f, len(out), len(units))
	return out
}

// FilterRecords is Filter over plain records.
func FilterRecords(records []*models.UnitRecord, f models.Filter) []*models.UnitRecord {
	f = normalizeFilter(f)
	out := make([]*models.UnitRecord, 0, len(records))
	for _, r := range records {
		if matches(r, f) {
			out = append(out, r)
		}
	}
	return out
}

func normalizeFilter(f models.Filter) models.Filter {
	return models.Filter{
		BusinessUnit: normaliseText(f.BusinessUnit),
		Period:       normalizePeriod(f.Period),
	}
}

func matches(r *models.UnitRecord, f models.Filter) bool {
	if f.BusinessUnit != "" && r.BusinessUnit != f.BusinessUnit {
		return false
	}
	if f.Period != "" && r.Period != f.Period {
		return false
	}
	return true
}

// Options lists every business unit (ascending) and the periods (newest
// first) available for businessUnit; an empty businessUnit lists the periods
// of the whole dataset.
func (a *Aggregator) Options(records []*models.UnitRecord, businessUnit string) models.Options {
	bus := make(map[string]struct{})
	for _, r := range records {
		bus[r.BusinessUnit] = struct{}{}
	}
	periods := make(map[string]struct{})
	for _, r := range FilterRecords(records, models.Filter{BusinessUnit: businessUnit}) {
		periods[r.Period] = struct{}{}
	}

	opts := models.Options{
		BusinessUnits: make([]string, 0, len(bus)),
		Periods:       make([]string, 0, len(periods)),
	}
	for b := range bus {
		opts.BusinessUnits = append(opts.BusinessUnits, b)
	}
	for p := range periods {
		opts.Periods = append(opts.Periods, p)
	}
	sort.Strings(opts.BusinessUnits)
	sort.Sort(sort.Reverse(sort.StringSlice(opts.Periods)))
	return opts
}

// Summarize computes fleet metrics from scratch over units. Units are put in
// (unit id, period) order before any sums so the result does not depend on
// input order.
func (a *Aggregator) Summarize(units []models.ClassifiedUnit) *models.FleetSummary {
	s := &models.FleetSummary{
		BySemaforo:   make(map[models.Semaforo]int, len(models.Semaforos)),
		ByRule:       make(map[models.RuleName]map[models.KPIStatus]int, len(models.Rules)),
		TotalBilling: decimal.Zero,
	}
	for _, sem := range models.Semaforos {
		s.BySemaforo[sem] = 0
	}
	for _, rule := range models.Rules {
		s.ByRule[rule] = map[models.KPIStatus]int{
			models.StatusOK: 0, models.StatusLow: 0, models.StatusHigh: 0, models.StatusMissing: 0,
		}
	}
	s.TripsHistogram = a.emptyHistogram(models.RuleTrips)
	s.BillingHistogram = a.emptyHistogram(models.RuleBilling)
	s.MileageHistogram = a.emptyHistogram(models.RuleMileage)
	s.InactivityHistogram = a.emptyHistogram(models.RuleInactivity)

	if len(units) == 0 {
		return s
	}
	s.HasData = true
	s.UnitCount = len(units)

	ordered := make([]models.ClassifiedUnit, len(units))
	copy(ordered, units)
	sort.SliceStable(ordered, func(i, j int) bool {
		return lessUnit(ordered[i].Record, ordered[j].Record)
	})

	var trips, mileage, inactivity []float64
	var billing []decimal.Decimal

	for _, u := range ordered {
		c := u.Classification
		s.BySemaforo[c.Overall]++
		for _, r := range c.Results {
			s.ByRule[r.Rule][r.Status]++
		}

		rec := u.Record
		if rec.TripCount.Valid {
			s.TotalTrips += rec.TripCount.Int64
			trips = append(trips, float64(rec.TripCount.Int64))
		}
		if rec.BillingAmount.Valid {
			s.TotalBilling = s.TotalBilling.Add(rec.BillingAmount.Decimal)
			billing = append(billing, rec.BillingAmount.Decimal)
		}
		if rec.TotalKM.Valid {
			mileage = append(mileage, rec.TotalKM.Float64)
		}
		if v := c.Result(models.RuleInactivity).Value; v.Defined {
			inactivity = append(inactivity, v.Value)
		}

		a.addToHistogram(s.TripsHistogram, c.Result(models.RuleTrips))
		a.addToHistogram(s.BillingHistogram, c.Result(models.RuleBilling))
		a.addToHistogram(s.MileageHistogram, c.Result(models.RuleMileage))
		a.addToHistogram(s.InactivityHistogram, c.Result(models.RuleInactivity))
	}

	s.Trips = floatStats(trips)
	s.Billing = decimalStats(billing)
	s.Mileage = floatStats(mileage)
	s.Inactivity = floatStats(inactivity)

	a.logger.Debug("[aggregator] Summarized %d units: %d green, %d yellow, %d red",
		s.UnitCount, s.BySemaforo[models.Green], s.BySemaforo[models.Yellow], s.BySemaforo[models.Red])
	return s
}

// emptyHistogram builds the buckets of a rule from its band: LOW, OK, HIGH and
// a final bucket for results without a measured value.
func (a *Aggregator) emptyHistogram(rule models.RuleName) []models.Bucket {
	band := a.thresholds.Band(rule)
	prefix, suffix := "", ""
	switch rule {
	case models.RuleBilling:
		prefix = "$"
	case models.RuleInactivity:
		suffix = " days"
	}
	f := func(v float64) string { return prefix + compactNumber(v) }

	var buckets []models.Bucket
	if band.Low != nil {
		buckets = append(buckets, models.Bucket{Label: "< " + f(*band.Low) + suffix})
	}
	switch {
	case band.Low != nil && band.High != nil:
		buckets = append(buckets, models.Bucket{Label: f(*band.Low) + "-" + f(*band.High) + suffix})
	case band.Low != nil:
		buckets = append(buckets, models.Bucket{Label: ">= " + f(*band.Low) + suffix})
	case band.High != nil:
		buckets = append(buckets, models.Bucket{Label: "<= " + f(*band.High) + suffix})
	}
	if band.High != nil {
		buckets = append(buckets, models.Bucket{Label: "> " + f(*band.High) + suffix})
	}

	last := bucketMissing
	if rule == models.RuleInactivity {
		last = bucketNeverServiced
	}
	return append(buckets, models.Bucket{Label: last})
}

// addToHistogram relies on the bucket layout of emptyHistogram.
func (a *Aggregator) addToHistogram(buckets []models.Bucket, r models.KPIResult) {
	if !r.Value.Defined {
		buckets[len(buckets)-1].Count++
		return
	}
	hasLow := a.thresholds.Band(r.Rule).Low != nil
	switch r.Status {
	case models.StatusLow:
		buckets[0].Count++
	case models.StatusHigh:
		buckets[len(buckets)-2].Count++
	default:
		if hasLow {
			buckets[1].Count++
		} else {
			buckets[0].Count++
		}
	}
}

// compactNumber renders 4000000 as 4M and 5000 as 5k.
func compactNumber(v float64) string {
	switch {
	case v >= 1e6 && v == float64(int64(v/1e5))*1e5:
		return strconv.FormatFloat(v/1e6, 'f', -1, 64) + "M"
	case v >= 1e3 && v == float64(int64(v/1e2))*1e2:
		return strconv.FormatFloat(v/1e3, 'f', -1, 64) + "k"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func floatStats(values []float64) models.MeasureStats {
	if len(values) == 0 {
		return models.MeasureStats{}
	}
	st := models.MeasureStats{Count: len(values), Defined: true, Min: values[0], Max: values[0]}
	var total float64
	for _, v := range values {
		total += v
		if v < st.Min {
			st.Min = v
		}
		if v > st.Max {
			st.Max = v
		}
	}
	st.Mean = round2(total / float64(len(values)))

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	st.Median = median(sorted)
	return st
}

func decimalStats(values []decimal.Decimal) models.MeasureStats {
	if len(values) == 0 {
		return models.MeasureStats{}
	}
	total := decimal.Sum(values[0], values[1:]...)
	mean := total.Div(decimal.NewFromInt(int64(len(values)))).Round(2)

	floats := make([]float64, len(values))
	for i, v := range values {
		floats[i] = v.InexactFloat64()
	}
	st := floatStats(floats)
	st.Mean = mean.InexactFloat64()
	return st
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return round2((sorted[n/2-1] + sorted[n/2]) / 2)
}

// Print renders a summary for the terminal.
func (a *Aggregator) Print(w io.Writer, s *models.FleetSummary, f models.Filter) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	scope := "all business units"
	if f.BusinessUnit != "" {
		scope = f.BusinessUnit
	}
	period := "all periods"
	if f.Period != "" {
		period = f.Period
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  🚚 FLEET KPI MONITOR — %s (%s)\033[0m\n", scope, period)
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	if !s.HasData {
		fmt.Fprintf(w, "  No data for this selection\n")
		fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
		return
	}

	fmt.Fprintf(w, "\033[1;33m  Monthly Summary\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Total billing          : \033[1m$%s\033[0m\n", s.TotalBilling.StringFixed(0))
	fmt.Fprintf(w, "  Total trips            : \033[1m%d\033[0m\n", s.TotalTrips)
	fmt.Fprintf(w, "  Active units           : \033[1m%d\033[0m\n", s.UnitCount)
	if s.Billing.Defined {
		fmt.Fprintf(w, "  Avg billing per unit   : \033[1m$%.0f\033[0m\n", s.Billing.Mean)
	} else {
		fmt.Fprintf(w, "  Avg billing per unit   : n/a\n")
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Semáforo\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	colors := map[models.Semaforo]string{models.Green: "32", models.Yellow: "33", models.Red: "31"}
	for _, sem := range models.Semaforos {
		n := s.BySemaforo[sem]
		fmt.Fprintf(w, "  \033[1;%sm%-8s\033[0m %s (%d)\n", colors[sem], sem, strings.Repeat("█", n), n)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Measures\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	printStats(w, "Trips", s.Trips)
	printStats(w, "Billing", s.Billing)
	printStats(w, "Kilometres", s.Mileage)
	printStats(w, "Inactive days", s.Inactivity)
	fmt.Fprintln(w)

	printHistogram(w, "Units by Trip Range", s.TripsHistogram)
	printHistogram(w, "Units by Billing Range", s.BillingHistogram)
	printHistogram(w, "Units by KM Range", s.MileageHistogram)
	printHistogram(w, "Units by Inactivity", s.InactivityHistogram)

	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)
}

func printStats(w io.Writer, name string, st models.MeasureStats) {
	if !st.Defined {
		fmt.Fprintf(w, "  %-14s: no data\n", name)
		return
	}
	fmt.Fprintf(w, "  %-14s: mean %.2f | median %.2f | min %.2f | max %.2f (n=%d)\n",
		name, st.Mean, st.Median, st.Min, st.Max, st.Count)
}

func printHistogram(w io.Writer, title string, buckets []models.Bucket) {
	fmt.Fprintf(w, "\033[1;33m  %s\033[0m\n", title)
	fmt.Fprintf(w, "  %s\n", strings.Repeat("─", 54))
	for _, b := range buckets {
		fmt.Fprintf(w, "  %-16s %s (%d)\n", b.Label, strings.Repeat("█", b.Count), b.Count)
	}
	fmt.Fprintln(w)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
