package services

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"

	"fleet-kpi-monitor/config"
	"fleet-kpi-monitor/models"
	"fleet-kpi-monitor/utils"
)

var testReference = time.Date(2024, time.May, 31, 0, 0, 0, 0, time.UTC)

func newTestLogger() *utils.Logger { return utils.NewNopLogger() }

// unit builds a record with every measure present; daysSince < 0 means never
// serviced.
func unit(id string, trips int64, billing int64, km float64, daysSince int) *models.UnitRecord {
	rec := &models.UnitRecord{
		UnitID:        id,
		BusinessUnit:  "Norte",
		Period:        "2024-05",
		TripCount:     sql.NullInt64{Int64: trips, Valid: true},
		BillingAmount: decimal.NullDecimal{Decimal: decimal.NewFromInt(billing), Valid: true},
		TotalKM:       sql.NullFloat64{Float64: km, Valid: true},
		ReferenceDate: testReference,
	}
	if daysSince >= 0 {
		rec.LastServiceDate = sql.NullTime{Time: testReference.AddDate(0, 0, -daysSince), Valid: true}
	}
	return rec
}

func classify(recs ...*models.UnitRecord) []models.ClassifiedUnit {
	m := NewMonitor(config.DefaultThresholds(), newTestLogger(), 1)
	return m.ClassifyAll(recs)
}
