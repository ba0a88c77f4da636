package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"fleet-kpi-monitor/models"
)

// Default threshold values, taken from the operations team's monthly targets.
const (
	DefaultTripsLow        = 3
	DefaultTripsHigh       = 5
	DefaultBillingTarget   = 4_000_000
	DefaultMileageLow      = 5_000
	DefaultMileageHigh     = 8_000
	DefaultStaleDays       = 7
	DefaultYellowMaxAlarms = 1
)

// Band bounds the OK range of a rule. A value below Low is LOW, a value above
// High is HIGH. A nil bound means the rule has no band on that side.
type Band struct {
	Low  *float64 `yaml:"low,omitempty"`
	High *float64 `yaml:"high,omitempty"`
}

// SemaforoPolicy decides where one minor alarm stops being YELLOW.
type SemaforoPolicy struct {
	// YellowMaxAlarms is the largest number of alarming rules that can still
	// classify as YELLOW. Zero means any alarm is RED.
	YellowMaxAlarms int `yaml:"yellow_max_alarms"`
	// MinorRules are the rules whose alarms may yield YELLOW.
	MinorRules []models.RuleName `yaml:"minor_rules"`
}

// IsMinor reports whether rule is listed as minor.
func (p SemaforoPolicy) IsMinor(rule models.RuleName) bool {
	for _, r := range p.MinorRules {
		if r == rule {
			return true
		}
	}
	return false
}

// Thresholds is the single source of truth for rule bands and the
// semáforo policy.
type Thresholds struct {
	Rules    map[models.RuleName]Band `yaml:"rules"`
	Semaforo SemaforoPolicy           `yaml:"semaforo"`
	// Columns adds header aliases per canonical field, for exports whose
	// headers the built-in aliases do not cover.
	Columns models.Columns `yaml:"columns,omitempty"`
}

func ptr(f float64) *float64 { return &f }

// DefaultThresholds returns the stock configuration.
func DefaultThresholds() *Thresholds {
	return &Thresholds{
		Rules: map[models.RuleName]Band{
			models.RuleTrips:      {Low: ptr(DefaultTripsLow), High: ptr(DefaultTripsHigh)},
			models.RuleBilling:    {Low: ptr(DefaultBillingTarget)},
			models.RuleMileage:    {Low: ptr(DefaultMileageLow), High: ptr(DefaultMileageHigh)},
			models.RuleInactivity: {High: ptr(DefaultStaleDays)},
		},
		Semaforo: SemaforoPolicy{
			YellowMaxAlarms: DefaultYellowMaxAlarms,
			MinorRules:      []models.RuleName{models.RuleTrips, models.RuleMileage},
		},
	}
}

// Band returns the configured band for rule.
func (t *Thresholds) Band(rule models.RuleName) Band {
	return t.Rules[rule]
}

// LoadThresholds reads a YAML thresholds file. Rules absent from the file keep
// their default band. An empty path returns the defaults.
func LoadThresholds(path string) (*Thresholds, error) {
	if path == "" {
		return DefaultThresholds(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("thresholds: read %q: %w", path, err)
	}
	return ParseThresholds(data)
}

// ParseThresholds decodes YAML over the defaults and validates the result.
func ParseThresholds(data []byte) (*Thresholds, error) {
	var file Thresholds
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("thresholds: decode: %w", err)
	}

	t := DefaultThresholds()
	for rule, band := range file.Rules {
		t.Rules[rule] = band
	}
	if file.Semaforo.MinorRules != nil {
		t.Semaforo.MinorRules = file.Semaforo.MinorRules
	}
	t.Columns = file.Columns
	if containsKey(data, "yellow_max_alarms") {
		t.Semaforo.YellowMaxAlarms = file.Semaforo.YellowMaxAlarms
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// containsKey reports whether the semaforo block sets key explicitly, so that
// an explicit zero is not mistaken for "unset".
func containsKey(data []byte, key string) bool {
	var raw struct {
		Semaforo map[string]any `yaml:"semaforo"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return false
	}
	_, ok := raw.Semaforo[key]
	return ok
}

// Validate checks that every rule is known and its band is consistent.
func (t *Thresholds) Validate() error {
	var errs []error
	for rule, band := range t.Rules {
		if !knownRule(rule) {
			errs = append(errs, fmt.Errorf("unknown rule %q", rule))
			continue
		}
		if band.Low == nil && band.High == nil {
			errs = append(errs, fmt.Errorf("rule %q: no bound set", rule))
		}
		if band.Low != nil && *band.Low < 0 {
			errs = append(errs, fmt.Errorf("rule %q: low bound is negative", rule))
		}
		if band.High != nil && *band.High < 0 {
			errs = append(errs, fmt.Errorf("rule %q: high bound is negative", rule))
		}
		if band.Low != nil && band.High != nil && *band.Low > *band.High {
			errs = append(errs, fmt.Errorf("rule %q: low %.2f exceeds high %.2f", rule, *band.Low, *band.High))
		}
	}
	for _, rule := range models.Rules {
		if _, ok := t.Rules[rule]; !ok {
			errs = append(errs, fmt.Errorf("rule %q: not configured", rule))
		}
	}
	if t.Semaforo.YellowMaxAlarms < 0 {
		errs = append(errs, errors.New("semaforo: yellow_max_alarms is negative"))
	}
	for _, r := range t.Semaforo.MinorRules {
		if !knownRule(r) {
			errs = append(errs, fmt.Errorf("semaforo: unknown minor rule %q", r))
		}
	}
	for field, aliases := range t.Columns {
		if _, ok := models.DefaultColumns[field]; !ok {
			errs = append(errs, fmt.Errorf("columns: unknown field %q", field))
		}
		for _, a := range aliases {
			if models.NormalizeHeader(a) == "" {
				errs = append(errs, fmt.Errorf("columns: blank alias for %q", field))
			}
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("thresholds: %w", errors.Join(errs...))
	}
	return nil
}

// YAML renders the thresholds in the same format LoadThresholds reads.
func (t *Thresholds) YAML() ([]byte, error) {
	return yaml.Marshal(t)
}

func knownRule(rule models.RuleName) bool {
	for _, r := range models.Rules {
		if r == rule {
			return true
		}
	}
	return false
}
