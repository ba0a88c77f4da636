package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"fleet-kpi-monitor/models"
	"fleet-kpi-monitor/utils"
)

const reportRowColumns = 14

// PostgresReportWriter exports each report as a run plus its rows. Runs are
// append-only exports for downstream dashboards; nothing is read back.
type PostgresReportWriter struct {
	db     *sql.DB
	logger *utils.Logger
}

// NewPostgresReportWriter opens a connection to PostgreSQL, retrying the
// initial ping, runs schema migrations, and returns a ready-to-use writer.
func NewPostgresReportWriter(ctx context.Context, dsn string, retry *utils.RetryConfig) (*PostgresReportWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	if err := retry.Do(ctx, "postgres-ping", func() error {
		return db.PingContext(ctx)
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	pw := &PostgresReportWriter{db: db, logger: retry.Logger}
	if err := pw.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresReportWriter) migrate(ctx context.Context) error {
	_, err := pw.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS kpi_runs (
			id            UUID         PRIMARY KEY,
			generated_at  TIMESTAMPTZ  NOT NULL,
			business_unit TEXT         NOT NULL DEFAULT '',
			period        TEXT         NOT NULL DEFAULT '',
			unit_count    INTEGER      NOT NULL,
			skipped_rows  INTEGER      NOT NULL
		);

		CREATE TABLE IF NOT EXISTS kpi_report_rows (
			run_id            UUID          NOT NULL REFERENCES kpi_runs(id) ON DELETE CASCADE,
			unit_id           TEXT          NOT NULL,
			business_unit     TEXT          NOT NULL,
			period            TEXT          NOT NULL,
			trip_count        INTEGER,
			billing_amount    NUMERIC(16,2),
			total_km          NUMERIC(12,2),
			last_service_date DATE,
			inactivity_days   INTEGER,
			trips_status      VARCHAR(10)   NOT NULL,
			billing_status    VARCHAR(10)   NOT NULL,
			mileage_status    VARCHAR(10)   NOT NULL,
			inactivity_status VARCHAR(10)   NOT NULL,
			semaforo          VARCHAR(10)   NOT NULL,
			PRIMARY KEY (run_id, unit_id, period)
		);

		CREATE INDEX IF NOT EXISTS idx_kpi_rows_semaforo ON kpi_report_rows(semaforo);
		CREATE INDEX IF NOT EXISTS idx_kpi_rows_bu_period ON kpi_report_rows(business_unit, period);
	`)
	return err
}

// Write stores the report under a new run id in a single transaction.
func (pw *PostgresReportWriter) Write(ctx context.Context, report *models.Report) error {
	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	runID := uuid.New()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO kpi_runs (id, generated_at, business_unit, period, unit_count, skipped_rows)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, runID.String(), report.GeneratedAt, report.Filter.BusinessUnit, report.Filter.Period,
		len(report.Rows), report.Skipped); err != nil {
		return fmt.Errorf("postgres: insert run: %w", err)
	}

	const batchSize = 50
	for i := 0; i < len(report.Rows); i += batchSize {
		end := i + batchSize
		if end > len(report.Rows) {
			end = len(report.Rows)
		}
		batch := report.Rows[i:end]
		if _, err := tx.ExecContext(ctx, insertRowsQuery(len(batch)), rowArgs(runID, batch)...); err != nil {
			return fmt.Errorf("postgres: insert rows %d-%d: %w", i, end, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	if pw.logger != nil {
		pw.logger.Info("[postgres] Exported %d rows as run %s", len(report.Rows), runID)
	}
	return nil
}

func (pw *PostgresReportWriter) Close() error {
	return pw.db.Close()
}

// insertRowsQuery builds a multi-row INSERT for n report rows.
func insertRowsQuery(n int) string {
	valueStrings := make([]string, 0, n)
	for idx := 0; idx < n; idx++ {
		base := idx * reportRowColumns
		placeholders := make([]string, reportRowColumns)
		for c := range placeholders {
			placeholders[c] = fmt.Sprintf("$%d", base+c+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
	}

	return fmt.Sprintf(`
		INSERT INTO kpi_report_rows (
			run_id, unit_id, business_unit, period,
			trip_count, billing_amount, total_km, last_service_date, inactivity_days,
			trips_status, billing_status, mileage_status, inactivity_status, semaforo
		)
		VALUES %s
	`, strings.Join(valueStrings, ","))
}

func rowArgs(runID uuid.UUID, rows []models.ReportRow) []interface{} {
	args := make([]interface{}, 0, len(rows)*reportRowColumns)
	for _, r := range rows {
		args = append(args,
			runID.String(), r.UnitID, r.BusinessUnit, r.Period,
			nullable(r.TripCount), nullable(r.BillingAmount), nullable(r.TotalKM),
			nullable(r.LastServiceDate), nullable(r.InactivityDays),
			string(r.TripsStatus), string(r.BillingStatus), string(r.MileageStatus),
			string(r.InactivityStatus), string(r.Semaforo),
		)
	}
	return args
}

// nullable sends empty report cells as SQL NULL.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
