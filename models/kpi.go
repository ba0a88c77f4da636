package models

// RuleName identifies one of the four KPI rules.
type RuleName string

const (
	RuleTrips      RuleName = "trips"
	RuleBilling    RuleName = "billing"
	RuleMileage    RuleName = "mileage"
	RuleInactivity RuleName = "inactivity"
)

// Rules lists the KPI rules in report order.
var Rules = [4]RuleName{RuleTrips, RuleBilling, RuleMileage, RuleInactivity}

// KPIStatus is the outcome of a single rule.
type KPIStatus string

const (
	StatusOK      KPIStatus = "OK"
	StatusLow     KPIStatus = "LOW"
	StatusHigh    KPIStatus = "HIGH"
	StatusMissing KPIStatus = "MISSING"
)

// Alarming reports whether the status is anything other than OK.
func (s KPIStatus) Alarming() bool {
	return s != StatusOK
}

// Semaforo is the overall traffic-light status of a unit.
type Semaforo string

const (
	Green  Semaforo = "GREEN"
	Yellow Semaforo = "YELLOW"
	Red    Semaforo = "RED"
)

// Semaforos lists the overall statuses from best to worst.
var Semaforos = [3]Semaforo{Green, Yellow, Red}

// Measurement is a measured value that may be undefined, e.g. inactivity
// for a unit that was never serviced.
type Measurement struct {
	Value   float64
	Defined bool
}

// KPIResult is the classification of one record against one rule.
type KPIResult struct {
	Rule   RuleName
	Status KPIStatus
	Value  Measurement
}

// UnitClassification combines the four rule results of a record.
type UnitClassification struct {
	UnitID  string
	Period  string
	Results [4]KPIResult
	Overall Semaforo
	Alarms  int
}

// Result returns the result for the given rule.
func (c *UnitClassification) Result(rule RuleName) KPIResult {
	for _, r := range c.Results {
		if r.Rule == rule {
			return r
		}
	}
	return KPIResult{Rule: rule, Status: StatusMissing}
}

// ClassifiedUnit pairs a record with its derived classification.
type ClassifiedUnit struct {
	Record         *UnitRecord
	Classification UnitClassification
}
