package models

import "strings"

// Canonical field names of a unit-level row.
const (
	FieldUnitID          = "unit_id"
	FieldBusinessUnit    = "business_unit"
	FieldPeriod          = "period"
	FieldTripCount       = "trip_count"
	FieldBillingAmount   = "billing_amount"
	FieldTotalKM         = "total_km"
	FieldLastServiceDate = "last_service_date"
	FieldReferenceDate   = "reference_date"
)

// Columns maps each canonical field to the header names accepted for it.
type Columns map[string][]string

// DefaultColumns accepts the canonical names plus the headers used by the
// tariff export and by the validated report it produces.
var DefaultColumns = Columns{
	FieldUnitID:          {"unit_id", "unidad", "unidad_id", "id_unidad", "economico", "no_economico"},
	FieldBusinessUnit:    {"business_unit", "unidad de negocios", "unidad_de_negocio", "unidad de negocio"},
	FieldPeriod:          {"period", "periodo", "mes", "month_period"},
	FieldTripCount:       {"trip_count", "viajes", "num_viajes"},
	FieldBillingAmount:   {"billing_amount", "facturacion", "precio cliente"},
	FieldTotalKM:         {"total_km", "km_totales", "distancia total", "kilometraje"},
	FieldLastServiceDate: {"last_service_date", "ult_viaje", "ultimo_servicio", "fecha_ultimo_servicio"},
	FieldReferenceDate:   {"reference_date", "fecha_referencia", "fecha_corte"},
}

// With returns a copy of c where each field also accepts the aliases listed
// for it in extra, after its own.
func (c Columns) With(extra Columns) Columns {
	out := make(Columns, len(c))
	for field, aliases := range c {
		out[field] = append([]string(nil), aliases...)
	}
	for field, aliases := range extra {
		out[field] = append(out[field], aliases...)
	}
	return out
}

// Trip-level export headers.
const (
	TripColTractor      = "Tractor"
	TripColDate         = "Fecha"
	TripColBusinessUnit = "Unidad de negocios"
	TripColTrip         = "Viaje"
	TripColPrice        = "Precio Cliente"
	TripColDistance     = "Distancia total"
)

// TripRequiredColumns are the headers a trip-level sheet must carry.
var TripRequiredColumns = []string{
	TripColTractor, TripColDate, TripColBusinessUnit, TripColTrip, TripColPrice, TripColDistance,
}

var accentReplacer = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ü", "u", "ñ", "n",
)

// NormalizeHeader folds case, accents and separators so that "KM Totales",
// "km_totales" and "KM_TOTALES" compare equal.
func NormalizeHeader(h string) string {
	h = accentReplacer.Replace(strings.ToLower(strings.TrimSpace(h)))
	h = strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', '.', '\t':
			return ' '
		}
		return r
	}, h)
	return strings.Join(strings.Fields(h), " ")
}

// KnownHeader reports whether h names any unit-level or trip-level column.
func KnownHeader(h string) bool {
	n := NormalizeHeader(h)
	if n == "" {
		return false
	}
	for _, aliases := range DefaultColumns {
		for _, a := range aliases {
			if NormalizeHeader(a) == n {
				return true
			}
		}
	}
	for _, c := range TripRequiredColumns {
		if NormalizeHeader(c) == n {
			return true
		}
	}
	return false
}

// IsBlankRow reports whether every cell is empty or whitespace.
func IsBlankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
