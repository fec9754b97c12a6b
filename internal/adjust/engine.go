// Package adjust implements the re-leveling engine: it classifies how
// reality diverged from the plan and redistributes the variance over future
// ledger entries.
package adjust

import (
	"time"

	"github.com/google/uuid"
	"github.com/ledgerplan/backend/internal/audit"
	"github.com/ledgerplan/backend/internal/ledger"
	"github.com/ledgerplan/backend/internal/models"
	"github.com/ledgerplan/backend/internal/types"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Engine applies adjustment scenarios to ledger entries.
type Engine struct {
	db     *gorm.DB
	audit  *audit.Recorder
	ledger *ledger.Service
}

// NewEngine returns an Engine using the given store and audit recorder.
func NewEngine(db *gorm.DB, recorder *audit.Recorder) *Engine {
	return &Engine{db: db, audit: recorder, ledger: ledger.NewService(db, recorder)}
}

// EntryChange is the previewed or applied change to one future entry.
type EntryChange struct {
	LedgerEntryID uuid.UUID       `json:"ledgerEntryId"`
	PlannedDate   time.Time       `json:"plannedDate"`
	CurrentAmount decimal.Decimal `json:"currentAmount"`
	Change        decimal.Decimal `json:"change"`
	NewAmount     decimal.Decimal `json:"newAmount"`
}

// Impact is a pure preview of an adjustment. Nothing is mutated.
type Impact struct {
	Scenario          Scenario        `json:"scenario"`
	TotalChange       decimal.Decimal `json:"totalChange"`
	EntriesAffected   int             `json:"entriesAffected"`
	FutureAllocations []EntryChange   `json:"futureAllocations"`
	Warnings          []string        `json:"warnings"`
	Notes             []string        `json:"notes"`
}

// Result is the outcome of an applied adjustment.
type Result struct {
	Updated  models.LedgerEntry   `json:"updated"`
	Affected []models.LedgerEntry `json:"affected"`
}

// AvailableScenarios classifies an entry against the supplied actual data
// and returns the recommended scenario plus all selectable ones.
func (e *Engine) AvailableScenarios(id uuid.UUID, actualAmount decimal.NullDecimal, actualDate *time.Time) (ScenarioOptions, error) {
	var entry models.LedgerEntry
	err := e.db.First(&entry, id).Error
	if err != nil {
		return ScenarioOptions{}, err
	}

	if !actualAmount.Valid {
		actualAmount = entry.ActualAmount
	}
	if actualDate == nil {
		actualDate = entry.ActualDate
	}

	return ScenarioOptions{
		Recommended: recommendScenario(entry.PlannedAmount, entry.PlannedDate, actualAmount, actualDate),
		Available:   allScenarios,
	}, nil
}

// Validate checks an adjustment request without mutating anything. All
// violations are collected, never only the first one.
func (e *Engine) Validate(req Request) (ValidationResult, error) {
	var entry models.LedgerEntry
	err := e.db.First(&entry, req.LedgerEntryID).Error
	if err != nil {
		return ValidationResult{}, err
	}

	result := ValidationResult{}

	switch req.Scenario {
	case ScenarioPartialDelivery:
		if !req.RemainingAmount.Valid || !req.RemainingAmount.Decimal.IsPositive() {
			result.Errors = append(result.Errors, "the remaining amount must be greater than zero")
		}
		if req.RemainingDate == nil {
			result.Errors = append(result.Errors, "the remaining date must be set")
		}
		if req.RemainingAmount.Valid && entry.PlannedAmount.Valid && !req.RemainingAmount.Decimal.LessThan(entry.PlannedAmount.Decimal) {
			result.Errors = append(result.Errors, "the remaining amount must be less than the planned amount")
		}

	case ScenarioCostOverrun, ScenarioCostUnderspend:
		if !req.Scope.Valid() {
			result.Errors = append(result.Errors, "a redistribution scope is required")
		}
		if !req.Algorithm.Valid() {
			result.Errors = append(result.Errors, "a redistribution algorithm is required")
		}
		if req.Algorithm == AlgorithmCustom && len(req.CustomDistribution) == 0 {
			result.Errors = append(result.Errors, "the custom algorithm requires a custom distribution")
		}
		if req.WeightIntensity < 0 || req.WeightIntensity > 1 {
			result.Errors = append(result.Errors, "the weight intensity must be between 0 and 1")
		}
		if !req.ActualAmount.Valid && !entry.ActualAmount.Valid {
			result.Errors = append(result.Errors, "an actual amount is required to calculate the variance")
		}

	case ScenarioScheduleChange:
		if req.NewPlannedDate == nil {
			result.Errors = append(result.Errors, "the new planned date must be set")
		}

	default:
		result.Errors = append(result.Errors, "the scenario is unknown")
	}

	if entry.CreatedFromBOE {
		result.Warnings = append(result.Warnings, "this entry was created from an allocation; changes do not alter the allocation baseline")
	}

	result.IsValid = len(result.Errors) == 0
	return result, nil
}

// CalculateImpact previews an adjustment. It performs the same validation
// and computation as the apply operations but never writes.
func (e *Engine) CalculateImpact(req Request) (Impact, error) {
	validation, err := e.Validate(req)
	if err != nil {
		return Impact{}, err
	}
	if !validation.IsValid {
		return Impact{}, models.ValidationError{Violations: validation.Errors}
	}

	var entry models.LedgerEntry
	err = e.db.First(&entry, req.LedgerEntryID).Error
	if err != nil {
		return Impact{}, err
	}

	impact := Impact{
		Scenario: req.Scenario,
		Warnings: validation.Warnings,
	}

	switch req.Scenario {
	case ScenarioPartialDelivery:
		impact.EntriesAffected = 2
		impact.Notes = append(impact.Notes,
			"the entry keeps the delivered part of its plan, a new entry is created for the remaining amount")

	case ScenarioScheduleChange:
		impact.EntriesAffected = 1
		impact.Notes = append(impact.Notes, "only the planned date moves, no money is redistributed")

	case ScenarioCostOverrun, ScenarioCostUnderspend:
		futures, err := e.futureEntries(entry, req.Scope)
		if err != nil {
			return Impact{}, err
		}

		originalChange, changes := computeRedistribution(entry, futures, req)

		impact.FutureAllocations = changes
		impact.EntriesAffected = len(changes) + 1
		impact.TotalChange = originalChange

		if len(futures) < weightSlots && req.Algorithm != AlgorithmCustom {
			impact.Warnings = append(impact.Warnings,
				"fewer than four future entries exist, part of the redistribution weight is dropped")
		}
		for _, change := range changes {
			if change.NewAmount.IsNegative() {
				impact.Warnings = append(impact.Warnings,
					"a future entry would end up with a negative planned amount")
				break
			}
		}
	}

	return impact, nil
}

// ApplyReForecast applies a cost overrun or underspend: the planned amount
// of the source entry moves to the actual amount and the variance is
// redistributed over future entries inside one transaction.
func (e *Engine) ApplyReForecast(req Request) (Result, error) {
	if req.Scenario != ScenarioCostOverrun && req.Scenario != ScenarioCostUnderspend {
		return Result{}, models.ValidationError{Violations: []string{"the scenario must be cost_overrun or cost_underspend"}}
	}

	validation, err := e.Validate(req)
	if err != nil {
		return Result{}, err
	}
	if !validation.IsValid {
		return Result{}, models.ValidationError{Violations: validation.Errors}
	}

	var entry models.LedgerEntry
	err = e.db.First(&entry, req.LedgerEntryID).Error
	if err != nil {
		return Result{}, err
	}

	futures, err := e.futureEntries(entry, req.Scope)
	if err != nil {
		return Result{}, err
	}

	originalChange, changes := computeRedistribution(entry, futures, req)

	before := entry
	futuresBefore := make([]models.LedgerEntry, len(futures))
	copy(futuresBefore, futures)

	affected := make([]models.LedgerEntry, 0, len(changes))
	err = e.db.Transaction(func(tx *gorm.DB) error {
		newAmount := entry.PlannedAmount.Decimal.Add(originalChange)
		err := tx.Model(&entry).Update("planned_amount", newAmount).Error
		if err != nil {
			return err
		}
		entry.PlannedAmount = decimal.NewNullDecimal(newAmount)

		for _, change := range changes {
			for i := range futures {
				if futures[i].ID != change.LedgerEntryID {
					continue
				}

				err := tx.Model(&futures[i]).Update("planned_amount", change.NewAmount).Error
				if err != nil {
					return err
				}
				futures[i].PlannedAmount = decimal.NewNullDecimal(change.NewAmount)
				affected = append(affected, futures[i])
			}
		}

		return nil
	})
	if err != nil {
		return Result{}, err
	}

	sessionID := uuid.New()
	e.audit.RecordUpdate(before, entry, models.AuditReForecasted, models.SourceReForecasted, &sessionID)
	for i, future := range affected {
		e.audit.RecordUpdate(futuresBefore[i], future, models.AuditUpdated, models.SourceReForecasted, &sessionID)
	}

	return Result{Updated: entry, Affected: affected}, nil
}

// ApplyPartialDelivery splits an entry: the delivered part stays on the
// entry, the remaining amount moves to a new entry at the remaining date.
func (e *Engine) ApplyPartialDelivery(req Request) (Result, error) {
	if req.Scenario == "" {
		req.Scenario = ScenarioPartialDelivery
	}
	if req.Scenario != ScenarioPartialDelivery {
		return Result{}, models.ValidationError{Violations: []string{"the scenario must be partial_delivery"}}
	}

	validation, err := e.Validate(req)
	if err != nil {
		return Result{}, err
	}
	if !validation.IsValid {
		return Result{}, models.ValidationError{Violations: validation.Errors}
	}

	var entry models.LedgerEntry
	err = e.db.First(&entry, req.LedgerEntryID).Error
	if err != nil {
		return Result{}, err
	}

	before := entry
	remaining := req.RemainingAmount.Decimal
	remainingDate := req.RemainingDate.In(time.UTC)

	// The remainder is a split part, the same baseline and date-range
	// constraints as for a manual split apply
	err = e.ledger.ValidateBOEConstraints(entry, []ledger.Split{{Amount: remaining, Date: remainingDate}})
	if err != nil {
		return Result{}, err
	}

	child := models.LedgerEntry{
		ProgramID:              entry.ProgramID,
		WbsElementID:           entry.WbsElementID,
		CostCategory:           entry.CostCategory,
		Vendor:                 entry.Vendor,
		BaselineDate:           entry.BaselineDate,
		BaselineAmount:         entry.BaselineAmount,
		PlannedDate:            &remainingDate,
		PlannedAmount:          decimal.NewNullDecimal(remaining),
		Notes:                  "Remaining amount from partial delivery",
		CreatedFromBOE:         entry.CreatedFromBOE,
		BOEElementAllocationID: entry.BOEElementAllocationID,
		BOEVersionID:           entry.BOEVersionID,
	}

	err = e.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Create(&child).Error
		if err != nil {
			return err
		}

		updates := map[string]any{
			"planned_amount": entry.PlannedAmount.Decimal.Sub(remaining),
		}
		if req.ActualAmount.Valid {
			updates["actual_amount"] = req.ActualAmount.Decimal
		}
		if req.ActualDate != nil {
			updates["actual_date"] = req.ActualDate.In(time.UTC)
		}

		return tx.Model(&entry).Updates(updates).Error
	})
	if err != nil {
		return Result{}, err
	}

	entry.PlannedAmount = decimal.NewNullDecimal(before.PlannedAmount.Decimal.Sub(remaining))

	sessionID := uuid.New()
	childID := child.ID
	e.audit.Record(models.AuditRecord{
		LedgerEntryID:        entry.ID,
		Action:               models.AuditSplit,
		Source:               models.SourceTransactionAdjustment,
		PreviousValues:       before.Snapshot(),
		NewValues:            entry.Snapshot(),
		Metadata:             types.JSONMap{"reason": req.Reason},
		SessionID:            &sessionID,
		RelatedLedgerEntryID: &childID,
		BOEVersionID:         entry.BOEVersionID,
	})

	entryID := entry.ID
	e.audit.RecordCreation(child, models.SourceTransactionAdjustment, &sessionID, &entryID)

	return Result{Updated: entry, Affected: []models.LedgerEntry{child}}, nil
}

// ApplyScheduleChange moves the planned date of an entry. No monetary
// redistribution happens.
func (e *Engine) ApplyScheduleChange(req Request) (Result, error) {
	if req.Scenario == "" {
		req.Scenario = ScenarioScheduleChange
	}
	if req.Scenario != ScenarioScheduleChange {
		return Result{}, models.ValidationError{Violations: []string{"the scenario must be schedule_change"}}
	}

	validation, err := e.Validate(req)
	if err != nil {
		return Result{}, err
	}
	if !validation.IsValid {
		return Result{}, models.ValidationError{Violations: validation.Errors}
	}

	var entry models.LedgerEntry
	err = e.db.First(&entry, req.LedgerEntryID).Error
	if err != nil {
		return Result{}, err
	}

	before := entry
	newDate := req.NewPlannedDate.In(time.UTC)

	err = e.db.Model(&entry).Update("planned_date", newDate).Error
	if err != nil {
		return Result{}, err
	}
	entry.PlannedDate = &newDate

	e.audit.RecordUpdate(before, entry, models.AuditScheduleChange, models.SourceTransactionAdjustment, nil)

	return Result{Updated: entry}, nil
}

// futureEntries returns the redistribution candidates for an entry: entries
// of the same program with a complete plan strictly after the source entry's
// planned date, ordered by planned date ascending, narrowed by the scope.
func (e *Engine) futureEntries(entry models.LedgerEntry, scope Scope) ([]models.LedgerEntry, error) {
	if scope == ScopeSingle {
		return nil, nil
	}

	if entry.PlannedDate == nil {
		return nil, nil
	}

	query := e.db.
		Where("program_id = ?", entry.ProgramID).
		Where("planned_date > ?", entry.PlannedDate).
		Where("planned_amount IS NOT NULL").
		Where("id != ?", entry.ID).
		Order("planned_date ASC")

	switch scope {
	case ScopeRemaining:
		if entry.BOEElementAllocationID == nil {
			return nil, nil
		}
		query = query.Where("boe_element_allocation_id = ?", entry.BOEElementAllocationID)
	case ScopeEntire:
		if entry.WbsElementID == nil {
			return nil, nil
		}
		query = query.Where("wbs_element_id = ?", entry.WbsElementID)
	}

	var futures []models.LedgerEntry
	err := query.Find(&futures).Error
	return futures, err
}

// computeRedistribution calculates the zero-sum redistribution of a
// variance: the change to the source entry and the changes to the future
// entries.
//
// variance = planned - actual. Under an overrun the variance is negative
// and future months shrink, under an underspend it is positive and future
// months grow. The source entry always moves by the mirror image, so that
// debit equals credit whenever the full weight mass is applied.
func computeRedistribution(entry models.LedgerEntry, futures []models.LedgerEntry, req Request) (decimal.Decimal, []EntryChange) {
	actual := req.ActualAmount
	if !actual.Valid {
		actual = entry.ActualAmount
	}

	variance := entry.PlannedAmount.Decimal.Sub(actual.Decimal)
	originalChange := variance.Neg()

	var weights []decimal.Decimal
	if req.Algorithm == AlgorithmCustom && len(req.CustomDistribution) > 0 {
		weights = req.CustomDistribution
	} else {
		weights = WeightSet(req.Algorithm, req.WeightIntensity)
	}

	changes := make([]EntryChange, 0, len(futures))
	for i, future := range futures {
		if i >= len(weights) {
			break
		}

		change := variance.Mul(weights[i])
		current := future.PlannedAmount.Decimal

		var date time.Time
		if future.PlannedDate != nil {
			date = *future.PlannedDate
		}

		changes = append(changes, EntryChange{
			LedgerEntryID: future.ID,
			PlannedDate:   date,
			CurrentAmount: current,
			Change:        change,
			NewAmount:     current.Add(change),
		})
	}

	return originalChange, changes
}
