package services

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"

	"fleet-kpi-monitor/models"
)

var (
	// numberNoiseRegexp matches everything that cannot be part of a plain number:
	// currency symbols, unit suffixes, spaces.
	numberNoiseRegexp = regexp.MustCompile(`[^\d.,\-]`)
	// plainNumberRegexp is what must remain once noise and thousands separators are gone.
	plainNumberRegexp = regexp.MustCompile(`^-?\d+(?:\.\d+)?$`)
	// commaDecimalRegexp is a comma decimal mark: 7999,99 or 5000,5.
	commaDecimalRegexp = regexp.MustCompile(`^-?\d+,\d{1,2}$`)
	// commaThousandsRegexp is 4,200,000 or 4,200,000.50.
	commaThousandsRegexp = regexp.MustCompile(`^-?\d{1,3}(?:,\d{3})+(?:\.\d+)?$`)
	// dotThousandsRegexp is 4.200.000,00 as written with a comma decimal mark.
	dotThousandsRegexp = regexp.MustCompile(`^-?\d{1,3}(?:\.\d{3})+(?:,\d{1,2})?$`)
)

// excelEpoch is day zero of spreadsheet serial dates.
var excelEpoch = time.Date(1899, 12, 30, 0, 0, 0, 0, time.UTC)

// Serial numbers outside this range are not read as dates. 20000 is 1954-10-03,
// which keeps small counts in a date column from becoming 1900 dates.
const (
	minSerialDate = 20000
	maxSerialDate = 2958466
)

var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2006/01/02",
	"2006-01-02 15:04:05",
	"02/01/2006 15:04:05",
	"2/1/2006 15:04",
	time.RFC3339,
}

var periodLayouts = []string{
	"2006-01",
	"2006/01",
	"01/2006",
	"1/2006",
	"01-2006",
	"Jan 2006",
	"January 2006",
}

// parseDecimal extracts a number from a spreadsheet cell. ok is false for
// empty or unparseable cells. Accounting parentheses mean negative.
// A lone comma followed by one or two digits is a decimal mark; otherwise
// commas must group thousands. Any other use of commas is unparseable.
func parseDecimal(raw string) (d decimal.Decimal, ok bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, false
	}
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	// Raw spreadsheet values, including exponent forms such as 4.2E+06.
	if d, err := decimal.NewFromString(s); err == nil {
		if negative {
			d = d.Neg()
		}
		return d, true
	}

	s = numberNoiseRegexp.ReplaceAllString(s, "")
	switch {
	case commaDecimalRegexp.MatchString(s):
		s = strings.Replace(s, ",", ".", 1)
	case commaThousandsRegexp.MatchString(s):
		s = strings.ReplaceAll(s, ",", "")
	case dotThousandsRegexp.MatchString(s):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	if !plainNumberRegexp.MatchString(s) {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}

// parseDate reads a calendar date, day first for slashed forms, and accepts
// spreadsheet serial numbers. The result is midnight UTC.
func parseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civilDate(t), true
		}
	}
	if serial, err := strconv.ParseFloat(s, 64); err == nil && serial >= minSerialDate && serial < maxSerialDate {
		return excelEpoch.AddDate(0, 0, int(serial)), true
	}
	return time.Time{}, false
}

// civilDate drops the clock and zone, keeping the calendar day as written.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// normalizePeriod renders month-like labels as YYYY-MM and leaves anything
// else as the trimmed label.
func normalizePeriod(raw string) string {
	s := normaliseText(raw)
	if s == "" {
		return ""
	}
	for _, layout := range periodLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01")
		}
	}
	if t, ok := parseDate(s); ok {
		return t.Format("2006-01")
	}
	return s
}

// PeriodOf returns the month identifier of a date.
func PeriodOf(t time.Time) string {
	return t.Format("2006-01")
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	s = strings.TrimSpace(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}

// normalizeUnitID trims spreadsheet artefacts such as a trailing ".0" on
// numeric ids.
func normalizeUnitID(raw string) string {
	s := normaliseText(raw)
	if strings.HasSuffix(s, ".0") {
		if _, err := strconv.Atoi(strings.TrimSuffix(s, ".0")); err == nil {
			return strings.TrimSuffix(s, ".0")
		}
	}
	return s
}

// lookup finds the first alias of field present in an index built by indexRow.
func lookup(index map[string]string, cols models.Columns, field string) (string, bool) {
	for _, alias := range cols[field] {
		if v, ok := index[models.NormalizeHeader(alias)]; ok {
			return v, true
		}
	}
	return "", false
}

func indexRow(row models.RawRow) map[string]string {
	index := make(map[string]string, len(row))
	for k, v := range row {
		n := models.NormalizeHeader(k)
		if n == "" {
			continue
		}
		if _, dup := index[n]; !dup {
			index[n] = v
		}
	}
	return index
}

// lessUnitID orders unit ids numerically when both are all digits and
// lexically otherwise; digit-only ids sort first.
func lessUnitID(a, b string) bool {
	an, aErr := strconv.ParseUint(a, 10, 64)
	bn, bErr := strconv.ParseUint(b, 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		if an != bn {
			return an < bn
		}
		return a < b
	case aErr == nil:
		return true
	case bErr == nil:
		return false
	}
	return a < b
}

// lessUnit orders records by unit id then period.
func lessUnit(a, b *models.UnitRecord) bool {
	if a.UnitID != b.UnitID {
		return lessUnitID(a.UnitID, b.UnitID)
	}
	return a.Period < b.Period
}
