package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"fleet-kpi-monitor/config"
	"fleet-kpi-monitor/models"
	"fleet-kpi-monitor/services"
	"fleet-kpi-monitor/storage"
	"fleet-kpi-monitor/utils"
)

func newRootCmd(cfg *config.Config, logger *utils.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:           "fleetkpi",
		Short:         "Classify fleet units against trip, billing, mileage and inactivity KPIs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfg.InputPath, "input", cfg.InputPath, "tariff export (.xlsx or .csv)")
	root.PersistentFlags().StringVar(&cfg.SheetName, "sheet", cfg.SheetName, "worksheet name (default: first sheet)")
	root.PersistentFlags().StringVar(&cfg.Layout, "layout", cfg.Layout, "input layout: auto, units or trips")
	root.PersistentFlags().StringVar(&cfg.ThresholdsPath, "thresholds", cfg.ThresholdsPath, "YAML thresholds file")
	root.PersistentFlags().StringVar(&cfg.ReferenceDate, "reference-date", cfg.ReferenceDate, "as-of date for inactivity (YYYY-MM-DD)")

	root.AddCommand(newRunCmd(cfg, logger), newOptionsCmd(cfg, logger), newThresholdsCmd(cfg))
	return root
}

func newRunCmd(cfg *config.Config, logger *utils.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Load the export, print the fleet summary and write the validated report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReport(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().StringVar(&cfg.BusinessUnit, "business-unit", cfg.BusinessUnit, "only this business unit")
	cmd.Flags().StringVar(&cfg.Period, "period", cfg.Period, "only this month (YYYY-MM)")
	cmd.Flags().StringVar(&cfg.ReportPath, "report", cfg.ReportPath, "report output (.xlsx or .csv); empty to skip")
	cmd.Flags().IntVar(&cfg.Workers, "workers", cfg.Workers, "parallel classification workers")
	cmd.Flags().BoolVar(&cfg.ExportPostgres, "postgres", cfg.ExportPostgres, "also export the report to PostgreSQL")
	return cmd
}

func newOptionsCmd(cfg *config.Config, logger *utils.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "options",
		Short: "List the business units and periods present in the export",
		RunE: func(cmd *cobra.Command, _ []string) error {
			monitor, sheet, layout, reference, err := prepare(cfg, logger)
			if err != nil {
				return err
			}
			load, _, err := monitor.Load(sheet, layout, reference)
			if err != nil {
				return err
			}
			opts := monitor.Aggregator().Options(load.Records, cfg.BusinessUnit)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Business units:")
			for _, b := range opts.BusinessUnits {
				fmt.Fprintf(out, "  %s\n", b)
			}
			if cfg.BusinessUnit != "" {
				fmt.Fprintf(out, "Periods (%s):\n", cfg.BusinessUnit)
			} else {
				fmt.Fprintln(out, "Periods:")
			}
			for _, p := range opts.Periods {
				fmt.Fprintf(out, "  %s\n", p)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&cfg.BusinessUnit, "business-unit", cfg.BusinessUnit, "list only the periods of this business unit")
	return cmd
}

func newThresholdsCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "thresholds",
		Short: "Print the effective thresholds as YAML",
		RunE: func(cmd *cobra.Command, _ []string) error {
			th, err := config.LoadThresholds(cfg.ThresholdsPath)
			if err != nil {
				return err
			}
			out, err := th.YAML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

// prepare loads thresholds and the input sheet shared by every command.
func prepare(cfg *config.Config, logger *utils.Logger) (*services.Monitor, *models.Sheet, services.Layout, time.Time, error) {
	var reference time.Time
	if cfg.InputPath == "" {
		return nil, nil, "", reference, errors.New("no input file: set --input or INPUT_PATH")
	}
	layout, err := services.ParseLayout(cfg.Layout)
	if err != nil {
		return nil, nil, "", reference, err
	}
	if cfg.ReferenceDate != "" {
		reference, err = time.Parse("2006-01-02", cfg.ReferenceDate)
		if err != nil {
			return nil, nil, "", reference, fmt.Errorf("reference date %q: %w", cfg.ReferenceDate, err)
		}
	}

	th, err := config.LoadThresholds(cfg.ThresholdsPath)
	if err != nil {
		return nil, nil, "", reference, err
	}

	reader, err := storage.NewSheetReader(cfg.InputPath, cfg.SheetName)
	if err != nil {
		return nil, nil, "", reference, err
	}
	sheet, err := reader.ReadSheet()
	if err != nil {
		return nil, nil, "", reference, err
	}
	logger.Info("Read %d rows from %s (sheet %q)", len(sheet.Rows), cfg.InputPath, sheet.Name)

	return services.NewMonitor(th, logger, cfg.Workers), sheet, layout, reference, nil
}

func runReport(ctx context.Context, cfg *config.Config, logger *utils.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger.Info("=== Fleet KPI Monitor starting ===")

	monitor, sheet, layout, reference, err := prepare(cfg, logger)
	if err != nil {
		return err
	}

	result, err := monitor.Run(sheet, services.RunOptions{
		Layout:    layout,
		Reference: reference,
		Filter:    models.Filter{BusinessUnit: cfg.BusinessUnit, Period: cfg.Period},
	})
	if err != nil {
		return err
	}

	logger.Info("Loaded %d records from %d %s rows (skipped %d)",
		len(result.Load.Records), result.Load.TotalRows, result.Layout, result.Load.SkippedCount())
	reasons := services.SkipReasons(result.Load.Skipped)
	keys := make([]string, 0, len(reasons))
	for k := range reasons {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		logger.Warn("Skipped %d rows: %s", reasons[k], k)
	}

	monitor.Aggregator().Print(os.Stdout, result.Summary, result.Report.Filter)

	var writers []storage.ReportWriter
	if cfg.ReportPath != "" {
		w, err := storage.NewReportWriter(cfg.ReportPath)
		if err != nil {
			return err
		}
		writers = append(writers, w)
	}
	if cfg.ExportPostgres {
		pg, err := storage.NewPostgresReportWriter(ctx, cfg.DSN(), &utils.RetryConfig{
			MaxAttempts: cfg.MaxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		})
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL: %v", err)
		} else {
			writers = append(writers, pg)
		}
	}

	var errs []error
	for _, w := range writers {
		if err := w.Write(ctx, result.Report); err != nil {
			errs = append(errs, err)
		}
		if err := w.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	if cfg.ReportPath != "" {
		fmt.Printf("  Done. Report → %s (%d units)\n\n", cfg.ReportPath, len(result.Report.Rows))
	}
	return nil
}
