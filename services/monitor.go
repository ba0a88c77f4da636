package services

import (
	"fmt"
	"time"

	"fleet-kpi-monitor/config"
	"fleet-kpi-monitor/models"
	"fleet-kpi-monitor/utils"
)

// RunOptions selects what a Monitor run evaluates.
type RunOptions struct {
	Layout Layout
	// Reference is the as-of date for inactivity. Zero means today for unit
	// sheets and the latest trip of each business unit and month for trip sheets.
	Reference time.Time
	Filter    models.Filter
}

// RunResult carries every derived value of one run.
type RunResult struct {
	Layout   Layout
	Load     *models.LoadResult
	Units    []models.ClassifiedUnit
	Filtered []models.ClassifiedUnit
	Options  models.Options
	Summary  *models.FleetSummary
	Report   *models.Report
}

// Monitor wires normalization, evaluation, classification, aggregation and
// reporting over one loaded dataset. It holds no dataset state; every call
// recomputes from its arguments.
type Monitor struct {
	logger     *utils.Logger
	normalizer *Normalizer
	rollup     *TripRollup
	evaluator  *Evaluator
	classifier *Classifier
	aggregator *Aggregator
	reports    *ReportBuilder
	workers    int
	now        func() time.Time
}

// NewMonitor builds a Monitor. workers bounds parallel classification; one or
// less classifies sequentially.
func NewMonitor(t *config.Thresholds, logger *utils.Logger, workers int) *Monitor {
	return &Monitor{
		logger:     logger,
		normalizer: NewNormalizer(logger).WithColumns(models.DefaultColumns.With(t.Columns)),
		rollup:     NewTripRollup(logger),
		evaluator:  NewEvaluator(t),
		classifier: NewClassifier(t.Semaforo),
		aggregator: NewAggregator(logger, t),
		reports:    NewReportBuilder(),
		workers:    workers,
		now:        time.Now,
	}
}

// Aggregator exposes the aggregator for callers that filter and summarize
// an already classified set.
func (m *Monitor) Aggregator() *Aggregator {
	return m.aggregator
}

// Load normalizes a sheet into records. Trip sheets are rolled up first and
// their skipped trips are included in the result.
func (m *Monitor) Load(sheet *models.Sheet, layout Layout, reference time.Time) (*models.LoadResult, Layout, error) {
	if sheet == nil || len(sheet.Rows) == 0 {
		return nil, layout, models.ErrEmptySheet
	}
	if layout == "" || layout == LayoutAuto {
		layout = DetectLayout(sheet.Header)
		m.logger.Info("[monitor] Detected %s layout", layout)
	}

	switch layout {
	case LayoutTrips:
		rolled, err := m.rollup.Rollup(sheet, reference)
		if err != nil {
			return nil, layout, err
		}
		res := m.normalizer.Load(rolled.Rows, reference)
		res.Skipped = append(rolled.Skipped, res.Skipped...)
		res.TotalRows = rolled.TotalRows
		return res, layout, nil
	case LayoutUnits:
		if reference.IsZero() {
			reference = m.now()
		}
		return m.normalizer.Load(sheet.InputRows(), reference), layout, nil
	}
	return nil, layout, fmt.Errorf("unknown layout %q", layout)
}

// Classify evaluates and classifies one record.
func (m *Monitor) Classify(rec *models.UnitRecord) models.ClassifiedUnit {
	results := m.evaluator.Evaluate(rec)
	return models.ClassifiedUnit{
		Record:         rec,
		Classification: m.classifier.Classify(rec, results),
	}
}

// ClassifyAll classifies every record. The output is in input order
// regardless of the number of workers.
func (m *Monitor) ClassifyAll(records []*models.UnitRecord) []models.ClassifiedUnit {
	out := make([]models.ClassifiedUnit, len(records))
	utils.ForEachIndex(len(records), m.workers, func(i int) {
		out[i] = m.Classify(records[i])
	})
	return out
}

// Run loads sheet and derives the classified set, the filtered summary and
// the report.
func (m *Monitor) Run(sheet *models.Sheet, opts RunOptions) (*RunResult, error) {
	load, layout, err := m.Load(sheet, opts.Layout, opts.Reference)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	units := m.ClassifyAll(load.Records)
	filtered := m.aggregator.Filter(units, opts.Filter)
	summary := m.aggregator.Summarize(filtered)

	report := m.reports.Build(filtered)
	report.Filter = opts.Filter
	report.Skipped = load.SkippedCount()

	if !summary.HasData {
		m.logger.Warn("[monitor] No units match business unit %q and period %q",
			opts.Filter.BusinessUnit, opts.Filter.Period)
	}

	return &RunResult{
		Layout:   layout,
		Load:     load,
		Units:    units,
		Filtered: filtered,
		Options:  m.aggregator.Options(load.Records, opts.Filter.BusinessUnit),
		Summary:  summary,
		Report:   report,
	}, nil
}
