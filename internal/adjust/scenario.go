package adjust

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Scenario is one of the four terminal adjustment scenarios. The scenario is
// a per-request classification, not persisted state.
type Scenario string

const (
	ScenarioPartialDelivery Scenario = "partial_delivery"
	ScenarioCostOverrun     Scenario = "cost_overrun"
	ScenarioCostUnderspend  Scenario = "cost_underspend"
	ScenarioScheduleChange  Scenario = "schedule_change"
)

// Scope narrows the set of future entries a redistribution may touch.
type Scope string

const (
	// ScopeSingle means no redistribution targets exist.
	ScopeSingle Scope = "single"
	// ScopeRemaining restricts to entries of the same allocation.
	ScopeRemaining Scope = "remaining"
	// ScopeEntire restricts to entries of the same WBS element.
	ScopeEntire Scope = "entire"
)

// Valid reports whether the scope is one of the known values.
func (s Scope) Valid() bool {
	return s == ScopeSingle || s == ScopeRemaining || s == ScopeEntire
}

// ScenarioInfo describes one selectable scenario.
type ScenarioInfo struct {
	Scenario    Scenario `json:"scenario"`
	Description string   `json:"description"`
}

// ScenarioOptions is the classifier output: the recommended scenario and
// everything the caller may select instead.
type ScenarioOptions struct {
	Recommended Scenario       `json:"recommended"`
	Available   []ScenarioInfo `json:"available"`
}

var allScenarios = []ScenarioInfo{
	{ScenarioPartialDelivery, "Part of the delivery arrived, the rest is still expected"},
	{ScenarioCostOverrun, "The actual cost was higher than planned, future entries shrink to fund it"},
	{ScenarioCostUnderspend, "The actual cost was lower than planned and nothing further is expected, future entries grow"},
	{ScenarioScheduleChange, "Only the planned date moves, no money is redistributed"},
}

// recommendScenario classifies actual data against the plan.
//
// Amount mismatches take priority over date mismatches. Without any actual
// data, partial delivery is the fallback so the caller always has a
// selectable scenario.
func recommendScenario(plannedAmount decimal.NullDecimal, plannedDate *time.Time, actualAmount decimal.NullDecimal, actualDate *time.Time) Scenario {
	if !actualAmount.Valid || !plannedAmount.Valid {
		return ScenarioPartialDelivery
	}

	switch actualAmount.Decimal.Cmp(plannedAmount.Decimal) {
	case 1:
		return ScenarioCostOverrun
	case -1:
		return ScenarioCostUnderspend
	}

	if actualDate != nil && plannedDate != nil && !actualDate.Equal(*plannedDate) {
		return ScenarioScheduleChange
	}

	return ScenarioPartialDelivery
}

// Request is one adjustment request against a single ledger entry. Which
// fields are required depends on the scenario, see Validate.
type Request struct {
	LedgerEntryID uuid.UUID `json:"ledgerEntryId"`
	Scenario      Scenario  `json:"scenario"`

	// partial delivery
	RemainingAmount decimal.NullDecimal `json:"remainingAmount"`
	RemainingDate   *time.Time          `json:"remainingDate"`

	// actual data driving the variance for overrun/underspend. When unset,
	// the actuals recorded on the entry are used.
	ActualAmount decimal.NullDecimal `json:"actualAmount"`
	ActualDate   *time.Time          `json:"actualDate"`

	// redistribution
	Scope              Scope             `json:"scope"`
	Algorithm          Algorithm         `json:"algorithm"`
	WeightIntensity    float64           `json:"weightIntensity"`
	CustomDistribution []decimal.Decimal `json:"customDistribution"`

	// schedule change
	NewPlannedDate *time.Time `json:"newPlannedDate"`

	Reason string `json:"reason"`
}

// ValidationResult is the outcome of validating a Request. Errors contains
// every violation, not only the first one found.
type ValidationResult struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}
