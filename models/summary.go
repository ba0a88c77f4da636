package models

import "github.com/shopspring/decimal"

// Filter narrows a dataset by business unit and period.
// An empty field places no constraint on that dimension.
type Filter struct {
	BusinessUnit string
	Period       string
}

// MeasureStats summarizes one raw measure over the units where it is defined.
// Defined is false when no unit contributed a value; the numeric fields are
// then zero and must not be displayed as averages.
type MeasureStats struct {
	Count   int
	Mean    float64
	Median  float64
	Min     float64
	Max     float64
	Defined bool
}

// Bucket is one bar of a distribution histogram.
type Bucket struct {
	Label string
	Count int
}

// FleetSummary holds fleet-level metrics over a filtered unit set.
type FleetSummary struct {
	HasData   bool
	UnitCount int

	BySemaforo map[Semaforo]int
	ByRule     map[RuleName]map[KPIStatus]int

	TotalTrips   int64
	TotalBilling decimal.Decimal

	Trips      MeasureStats
	Billing    MeasureStats
	Mileage    MeasureStats
	Inactivity MeasureStats

	TripsHistogram      []Bucket
	BillingHistogram    []Bucket
	MileageHistogram    []Bucket
	InactivityHistogram []Bucket
}

// Options lists the distinct filter values present in a dataset.
type Options struct {
	BusinessUnits []string
	Periods       []string
}
