package services

import (
	"github.com/shopspring/decimal"

	"fleet-kpi-monitor/config"
	"fleet-kpi-monitor/models"
)

const secondsPerDay = 24 * 60 * 60

// Evaluator applies the four KPI rules to a record.
type Evaluator struct {
	thresholds *config.Thresholds
}

// NewEvaluator creates an Evaluator over the given thresholds.
func NewEvaluator(t *config.Thresholds) *Evaluator {
	return &Evaluator{thresholds: t}
}

// Evaluate returns the rule results in models.Rules order.
func (e *Evaluator) Evaluate(rec *models.UnitRecord) [4]models.KPIResult {
	return [4]models.KPIResult{
		e.Trips(rec),
		e.Billing(rec),
		e.Mileage(rec),
		e.Inactivity(rec),
	}
}

// Trips classifies the trip count; absent counts are MISSING.
func (e *Evaluator) Trips(rec *models.UnitRecord) models.KPIResult {
	res := models.KPIResult{Rule: models.RuleTrips, Status: models.StatusMissing}
	if !rec.TripCount.Valid {
		return res
	}
	v := float64(rec.TripCount.Int64)
	res.Value = models.Measurement{Value: v, Defined: true}
	res.Status = bandStatus(e.thresholds.Band(models.RuleTrips), v)
	return res
}

// Billing compares the billed amount with the target. Billing has no HIGH
// band by default; exceeding the target is not penalized.
func (e *Evaluator) Billing(rec *models.UnitRecord) models.KPIResult {
	res := models.KPIResult{Rule: models.RuleBilling, Status: models.StatusMissing}
	if !rec.BillingAmount.Valid {
		return res
	}
	amount := rec.BillingAmount.Decimal
	res.Value = models.Measurement{Value: amount.InexactFloat64(), Defined: true}

	band := e.thresholds.Band(models.RuleBilling)
	res.Status = models.StatusOK
	switch {
	case band.Low != nil && amount.LessThan(decimal.NewFromFloat(*band.Low)):
		res.Status = models.StatusLow
	case band.High != nil && amount.GreaterThan(decimal.NewFromFloat(*band.High)):
		res.Status = models.StatusHigh
	}
	return res
}

// Mileage classifies total kilometres; absent distances are MISSING.
func (e *Evaluator) Mileage(rec *models.UnitRecord) models.KPIResult {
	res := models.KPIResult{Rule: models.RuleMileage, Status: models.StatusMissing}
	if !rec.TotalKM.Valid {
		return res
	}
	v := rec.TotalKM.Float64
	res.Value = models.Measurement{Value: v, Defined: true}
	res.Status = bandStatus(e.thresholds.Band(models.RuleMileage), v)
	return res
}

// Inactivity classifies days since the last service. A unit with no recorded
// service is the worst case: HIGH with an undefined value, never MISSING.
func (e *Evaluator) Inactivity(rec *models.UnitRecord) models.KPIResult {
	days, ok := InactivityDays(rec)
	if !ok {
		return models.KPIResult{Rule: models.RuleInactivity, Status: models.StatusHigh}
	}
	v := float64(days)
	return models.KPIResult{
		Rule:   models.RuleInactivity,
		Status: bandStatus(e.thresholds.Band(models.RuleInactivity), v),
		Value:  models.Measurement{Value: v, Defined: true},
	}
}

// InactivityDays returns whole calendar days from the last service to the
// reference date. A service dated after the reference counts as zero days.
func InactivityDays(rec *models.UnitRecord) (int, bool) {
	if !rec.LastServiceDate.Valid {
		return 0, false
	}
	days := int((civilDate(rec.ReferenceDate).Unix() - civilDate(rec.LastServiceDate.Time).Unix()) / secondsPerDay)
	if days < 0 {
		days = 0
	}
	return days, true
}

func bandStatus(b config.Band, v float64) models.KPIStatus {
	switch {
	case b.Low != nil && v < *b.Low:
		return models.StatusLow
	case b.High != nil && v > *b.High:
		return models.StatusHigh
	}
	return models.StatusOK
}
