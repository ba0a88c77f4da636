package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"fleet-kpi-monitor/models"
)

func sampleReport() *models.Report {
	return &models.Report{
		Rows: []models.ReportRow{
			{
				UnitID: "1", BusinessUnit: "Norte", Period: "2024-05",
				TripCount: "2", BillingAmount: "3500000.00", TotalKM: "4500.00",
				LastServiceDate: "2024-04-21", InactivityDays: "40",
				TripsStatus: models.StatusLow, BillingStatus: models.StatusLow,
				MileageStatus: models.StatusLow, InactivityStatus: models.StatusHigh,
				Semaforo: models.Red,
			},
			{
				UnitID: "2", BusinessUnit: "Norte", Period: "2024-05",
				BillingAmount: "4200000.00", TotalKM: "6000.00",
				TripsStatus: models.StatusMissing, BillingStatus: models.StatusOK,
				MileageStatus: models.StatusOK, InactivityStatus: models.StatusHigh,
				Semaforo: models.Red,
			},
		},
	}
}

func TestBuildSheetFindsHeaderBelowTitle(t *testing.T) {
	rows := [][]string{
		{"Reporte de tarifas mayo 2024"},
		{},
		{"\ufeffUnidad", "Unidad de negocios", "Periodo", "Unnamed: 3", ""},
		{"101", "Norte", "2024-05", "x", "y"},
	}
	sheet, err := buildSheet("Tarifas", rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"Unidad", "Unidad de negocios", "Periodo", "", ""}; !reflect.DeepEqual(sheet.Header, want) {
		t.Errorf("Header: got %q", sheet.Header)
	}
	if sheet.FirstDataRow != 4 || len(sheet.Rows) != 1 {
		t.Errorf("FirstDataRow %d rows %d", sheet.FirstDataRow, len(sheet.Rows))
	}
	in := sheet.InputRows()
	if len(in) != 1 || in[0].Num != 4 || len(in[0].Cells) != 3 {
		t.Errorf("InputRows: got %+v", in)
	}
}

func TestBuildSheetEmpty(t *testing.T) {
	for _, rows := range [][][]string{nil, {{"", " "}}, {{"unit_id", "period"}}} {
		if _, err := buildSheet("x", rows); !errors.Is(err, models.ErrEmptySheet) {
			t.Errorf("rows %v: got %v, want ErrEmptySheet", rows, err)
		}
	}
}

func TestCSVReaderSemicolon(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tarifas.csv")
	data := "\xef\xbb\xbfUnidad;Unidad de negocios;Periodo;Facturacion\n101;Norte;2024-05;\"4.200.000,00\"\n102;Sur;2024-05;100\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	sheet, err := NewCSVReader(path).ReadSheet()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sheet.Header[0] != "Unidad" || len(sheet.Header) != 4 {
		t.Errorf("Header: got %q", sheet.Header)
	}
	in := sheet.InputRows()
	if len(in) != 2 {
		t.Fatalf("InputRows: got %d, want 2", len(in))
	}
	if in[1].Num != 3 || in[1].Cells["Unidad"] != "102" {
		t.Errorf("second row: got %+v", in[1])
	}
}

func TestDetectDelimiter(t *testing.T) {
	if got := detectDelimiter([]byte("a,b;c,d\n1;2;3;4")); got != ',' {
		t.Errorf("got %q, want ','", got)
	}
	if got := detectDelimiter([]byte("a;b;c,d")); got != ';' {
		t.Errorf("got %q, want ';'", got)
	}
}

func TestCSVReportWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "report.csv")
	w, err := NewReportWriter(path)
	if err != nil {
		t.Fatalf("NewReportWriter: %v", err)
	}
	if err := w.Write(context.Background(), sampleReport()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines: got %d, want 3", len(lines))
	}
	if lines[0] != strings.Join(models.ReportColumns, ",") {
		t.Errorf("header: got %q", lines[0])
	}
	if want := "2,Norte,2024-05,,4200000.00,6000.00,,,MISSING,OK,OK,HIGH,RED"; lines[2] != want {
		t.Errorf("row: got %q, want %q", lines[2], want)
	}
}

func TestXLSXReportRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	w, err := NewReportWriter(path)
	if err != nil {
		t.Fatalf("NewReportWriter: %v", err)
	}
	if err := w.Write(context.Background(), sampleReport()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	r, err := NewSheetReader(path, "")
	if err != nil {
		t.Fatalf("NewSheetReader: %v", err)
	}
	sheet, err := r.ReadSheet()
	if err != nil {
		t.Fatalf("ReadSheet: %v", err)
	}
	if sheet.Name != "KPI" {
		t.Errorf("sheet name: got %q", sheet.Name)
	}
	if !reflect.DeepEqual(sheet.Header, models.ReportColumns) {
		t.Errorf("Header: got %q", sheet.Header)
	}
	in := sheet.InputRows()
	if len(in) != 2 {
		t.Fatalf("rows: got %d, want 2", len(in))
	}
	first := in[0].Cells
	if first["unit_id"] != "1" || first["trip_count"] != "2" || first["billing_amount"] != "3500000" || first["semaforo"] != "RED" {
		t.Errorf("first row: got %v", first)
	}
	if in[1].Cells["trip_count"] != "" {
		t.Errorf("missing trip count should stay blank, got %q", in[1].Cells["trip_count"])
	}
}

func TestXLSXReaderNamedSheetWithTitle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "viajes.xlsx")
	f := excelize.NewFile()
	if _, err := f.NewSheet("Viajes"); err != nil {
		t.Fatal(err)
	}
	rows := [][]interface{}{
		{"Reporte de viajes"},
		{"Fecha", "Tractor", "Economico", "Unidad de negocios", "Viaje", "Precio Cliente", "Distancia total"},
		{45444, "TR-1", 101, "Norte", "V1", 1500000, 2000},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		row := row
		if err := f.SetSheetRow("Viajes", cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatal(err)
	}
	f.Close()

	sheet, err := NewXLSXReader(path, "Viajes").ReadSheet()
	if err != nil {
		t.Fatalf("ReadSheet: %v", err)
	}
	if sheet.FirstDataRow != 3 || sheet.Header[0] != "Fecha" {
		t.Errorf("FirstDataRow %d header %q", sheet.FirstDataRow, sheet.Header)
	}
	if got := sheet.Rows[0]; got[0] != "45444" || got[2] != "101" {
		t.Errorf("raw values: got %q", got)
	}

	if _, err := NewXLSXReader(path, "Missing").ReadSheet(); err == nil {
		t.Error("unknown sheet should fail")
	}
}

func TestUnsupportedFormats(t *testing.T) {
	if _, err := NewSheetReader("input.json", ""); err == nil {
		t.Error("json input should be rejected")
	}
	if _, err := NewReportWriter("report.pdf"); err == nil {
		t.Error("pdf report should be rejected")
	}
}

func TestInsertRowsQuery(t *testing.T) {
	q := insertRowsQuery(2)
	for _, want := range []string{"($1,$2,", ",$14)", "($15,", ",$28)"} {
		if !strings.Contains(q, want) {
			t.Errorf("query missing %q:\n%s", want, q)
		}
	}
	if strings.Contains(q, "$29") {
		t.Errorf("query has too many placeholders:\n%s", q)
	}
}

func TestRowArgs(t *testing.T) {
	id := uuid.New()
	rows := sampleReport().Rows
	args := rowArgs(id, rows)
	if len(args) != len(rows)*reportRowColumns {
		t.Fatalf("args: got %d, want %d", len(args), len(rows)*reportRowColumns)
	}
	if args[0] != id.String() {
		t.Errorf("run id: got %v", args[0])
	}
	second := args[reportRowColumns:]
	if second[4] != nil || second[7] != nil || second[8] != nil {
		t.Errorf("blank cells should be NULL: %v", second)
	}
	if second[13] != "RED" {
		t.Errorf("semaforo: got %v", second[13])
	}
}
