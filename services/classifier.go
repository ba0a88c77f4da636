package services

import (
	"fleet-kpi-monitor/config"
	"fleet-kpi-monitor/models"
)

// Classifier folds the four rule results of a unit into its semáforo.
type Classifier struct {
	policy config.SemaforoPolicy
}

// NewClassifier creates a Classifier with the given policy.
func NewClassifier(policy config.SemaforoPolicy) *Classifier {
	return &Classifier{policy: policy}
}

// Classify returns GREEN when every rule is OK. A unit is YELLOW when it has
// at most YellowMaxAlarms alarms, all on minor rules and none MISSING. Every
// other unit is RED.
func (c *Classifier) Classify(rec *models.UnitRecord, results [4]models.KPIResult) models.UnitClassification {
	out := models.UnitClassification{
		UnitID:  rec.UnitID,
		Period:  rec.Period,
		Results: results,
		Overall: models.Green,
	}

	minorOnly := true
	for _, r := range results {
		if !r.Status.Alarming() {
			continue
		}
		out.Alarms++
		if r.Status == models.StatusMissing || !c.policy.IsMinor(r.Rule) {
			minorOnly = false
		}
	}

	switch {
	case out.Alarms == 0:
		out.Overall = models.Green
	case minorOnly && out.Alarms <= c.policy.YellowMaxAlarms:
		out.Overall = models.Yellow
	default:
		out.Overall = models.Red
	}
	return out
}
