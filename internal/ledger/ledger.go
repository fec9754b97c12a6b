// Package ledger implements splitting and re-forecasting of ledger entries.
//
// Splits preserve monetary totals exactly: the amounts of all splits must
// add up to the planned amount of the original entry, which is zeroed out
// when the split is applied.
package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerplan/backend/internal/audit"
	"github.com/ledgerplan/backend/internal/models"
	"github.com/ledgerplan/backend/internal/types"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// conservationTolerance is the absolute tolerance for split sums.
var conservationTolerance = decimal.NewFromFloat(0.01)

// Service splits and re-forecasts ledger entries.
type Service struct {
	db    *gorm.DB
	audit *audit.Recorder
}

// NewService returns a Service using the given store and audit recorder.
func NewService(db *gorm.DB, recorder *audit.Recorder) *Service {
	return &Service{db: db, audit: recorder}
}

// Split is one part of a split request. Actuals are optional and only set
// when the split part has already been delivered.
type Split struct {
	Amount       decimal.Decimal     `json:"amount"`
	Date         time.Time           `json:"date"`
	Notes        string              `json:"notes"`
	ActualAmount decimal.NullDecimal `json:"actualAmount"`
	ActualDate   *time.Time          `json:"actualDate"`
}

// SplitLedgerEntry splits an entry into one new entry per split. The splits
// must sum to the planned amount of the original within 0.01. The original
// keeps its history: its planned amount is set to zero and the split reason
// is recorded in its notes.
func (s *Service) SplitLedgerEntry(originalID uuid.UUID, splits []Split, reason string) ([]models.LedgerEntry, error) {
	if len(splits) == 0 {
		return nil, models.ValidationError{Violations: []string{"at least one split is required"}}
	}

	var original models.LedgerEntry
	err := s.db.First(&original, originalID).Error
	if err != nil {
		return nil, err
	}

	if !original.PlannedAmount.Valid {
		return nil, models.ValidationError{Violations: []string{"the entry has no planned amount to split"}}
	}

	total := decimal.Zero
	for _, split := range splits {
		total = total.Add(split.Amount)
	}
	if total.Sub(original.PlannedAmount.Decimal).Abs().GreaterThan(conservationTolerance) {
		return nil, fmt.Errorf("%w: splits sum to %s, the planned amount is %s",
			models.ErrConservationViolation, total, original.PlannedAmount.Decimal)
	}

	err = s.ValidateBOEConstraints(original, splits)
	if err != nil {
		return nil, err
	}

	notes := original.Notes
	if notes != "" {
		notes += "\n"
	}
	notes += fmt.Sprintf("Split: %s", reason)

	var created []models.LedgerEntry
	err = s.db.Transaction(func(tx *gorm.DB) error {
		for _, split := range splits {
			entry := childEntry(original, split)

			err := tx.Create(&entry).Error
			if err != nil {
				return err
			}

			created = append(created, entry)
		}

		return tx.Model(&original).Updates(map[string]any{
			"planned_amount": decimal.Zero,
			"notes":          notes,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	before := original
	original.PlannedAmount = decimal.NewNullDecimal(decimal.Zero)
	original.Notes = notes

	sessionID := uuid.New()
	for _, entry := range created {
		entryID := entry.ID
		s.audit.Record(models.AuditRecord{
			LedgerEntryID:        original.ID,
			Action:               models.AuditSplit,
			Source:               models.SourceTransactionAdjustment,
			PreviousValues:       before.Snapshot(),
			NewValues:            original.Snapshot(),
			Metadata:             types.JSONMap{"reason": reason},
			SessionID:            &sessionID,
			RelatedLedgerEntryID: &entryID,
			BOEVersionID:         original.BOEVersionID,
		})

		originalID := original.ID
		s.audit.RecordCreation(entry, models.SourceTransactionAdjustment, &sessionID, &originalID)
	}

	return created, nil
}

// AutomaticSplitRequest describes an automatic two-way split from a partial
// delivery: a matched part at the actual date and a remaining part at the
// original planned date.
type AutomaticSplitRequest struct {
	LedgerEntryID   uuid.UUID       `json:"ledgerEntryId"`
	ActualAmount    decimal.Decimal `json:"actualAmount"`
	ActualDate      time.Time       `json:"actualDate"`
	Reason          string          `json:"reason"`
	SpawnAllocation bool            `json:"spawnAllocation"` // create a new unlocked allocation for the remaining amount
}

// AutomaticSplitLedgerEntry synthesizes the two splits for a partial
// delivery and delegates to SplitLedgerEntry. When requested, a brand-new
// unlocked allocation sized to the remaining amount is created so future
// re-planning has a home.
func (s *Service) AutomaticSplitLedgerEntry(req AutomaticSplitRequest) ([]models.LedgerEntry, error) {
	var original models.LedgerEntry
	err := s.db.First(&original, req.LedgerEntryID).Error
	if err != nil {
		return nil, err
	}

	var violations []string
	if !original.PlannedComplete() {
		violations = append(violations, "the entry has no complete plan to split")
	}
	if !req.ActualAmount.IsPositive() {
		violations = append(violations, "the actual amount must be positive")
	}
	if original.PlannedAmount.Valid && !req.ActualAmount.LessThan(original.PlannedAmount.Decimal) {
		violations = append(violations, "the actual amount must be less than the planned amount")
	}
	if req.ActualDate.IsZero() {
		violations = append(violations, "the actual date must be set")
	}
	if len(violations) > 0 {
		return nil, models.ValidationError{Violations: violations}
	}

	remaining := original.PlannedAmount.Decimal.Sub(req.ActualAmount)

	// The spawn target must be free before anything is committed, an element
	// carries at most one active allocation.
	if req.SpawnAllocation && original.WbsElementID != nil {
		var existing int64
		err = s.db.Model(&models.Allocation{}).
			Where("element_id = ? AND is_locked = ?", *original.WbsElementID, false).
			Count(&existing).Error
		if err != nil {
			return nil, err
		}
		if existing > 0 {
			return nil, models.ErrElementAlreadyAllocated
		}
	}

	actualDate := req.ActualDate.In(time.UTC)

	// The matched part has been delivered, it carries its actuals from the
	// start so its creation audit reflects them
	created, err := s.SplitLedgerEntry(req.LedgerEntryID, []Split{
		{
			Amount:       req.ActualAmount,
			Date:         req.ActualDate,
			Notes:        "Matched amount",
			ActualAmount: decimal.NewNullDecimal(req.ActualAmount),
			ActualDate:   &actualDate,
		},
		{Amount: remaining, Date: *original.PlannedDate, Notes: "Remaining amount"},
	}, req.Reason)
	if err != nil {
		return nil, err
	}

	if req.SpawnAllocation && original.WbsElementID != nil {
		err = s.spawnRemainderAllocation(original, remaining)
		if err != nil {
			return nil, err
		}
	}

	return created, nil
}

// ReForecast rewrites the plan of a single entry with no fan-out. The same
// baseline and date-range constraints as for splitting apply.
func (s *Service) ReForecast(id uuid.UUID, amount decimal.Decimal, date time.Time, reason string) (models.LedgerEntry, error) {
	var entry models.LedgerEntry
	err := s.db.First(&entry, id).Error
	if err != nil {
		return models.LedgerEntry{}, err
	}

	var violations []string
	if !amount.IsPositive() {
		violations = append(violations, "the new planned amount must be positive")
	}
	if date.IsZero() {
		violations = append(violations, "the new planned date must be set")
	}
	if len(violations) > 0 {
		return models.LedgerEntry{}, models.ValidationError{Violations: violations}
	}

	err = s.ValidateBOEConstraints(entry, []Split{{Amount: amount, Date: date}})
	if err != nil {
		return models.LedgerEntry{}, err
	}

	before := entry

	err = s.db.Model(&entry).Updates(map[string]any{
		"planned_amount": amount,
		"planned_date":   date.In(time.UTC),
	}).Error
	if err != nil {
		return models.LedgerEntry{}, err
	}

	entry.PlannedAmount = decimal.NewNullDecimal(amount)
	utc := date.In(time.UTC)
	entry.PlannedDate = &utc

	s.audit.RecordUpdate(before, entry, models.AuditReForecasted, models.SourceReForecasted, nil)

	return entry, nil
}

// ValidateBOEConstraints checks splits against the allocation the entry was
// created from. It only applies when the entry came from a locked
// allocation: no amount may exceed the baseline amount of the entry and
// every date must fall within the allocation date range. Any violation
// aborts the whole operation.
func (s *Service) ValidateBOEConstraints(entry models.LedgerEntry, splits []Split) error {
	if !entry.CreatedFromBOE || entry.BOEElementAllocationID == nil {
		return nil
	}

	var allocation models.Allocation
	err := s.db.First(&allocation, *entry.BOEElementAllocationID).Error
	if err != nil {
		return err
	}

	if !allocation.IsLocked {
		return nil
	}

	for _, split := range splits {
		if entry.BaselineAmount.Valid && split.Amount.GreaterThan(entry.BaselineAmount.Decimal) {
			return fmt.Errorf("%w: %s is above the baseline of %s",
				models.ErrSplitExceedsBaseline, split.Amount, entry.BaselineAmount.Decimal)
		}

		if split.Date.Before(allocation.StartDate) || split.Date.After(allocation.EndDate) {
			return fmt.Errorf("%w: %s is outside %s to %s",
				models.ErrSplitOutsideAllocation, split.Date.Format("2006-01-02"),
				allocation.StartDate.Format("2006-01-02"), allocation.EndDate.Format("2006-01-02"))
		}
	}

	return nil
}

// spawnRemainderAllocation creates a new unlocked single-month allocation
// sized to the remaining amount of a partial delivery.
func (s *Service) spawnRemainderAllocation(original models.LedgerEntry, remaining decimal.Decimal) error {
	month := types.MonthOf(*original.PlannedDate)

	versionID := uuid.New()
	if original.BOEVersionID != nil {
		versionID = *original.BOEVersionID
	}

	allocation := models.Allocation{
		ElementID:      *original.WbsElementID,
		VersionID:      versionID,
		TotalAmount:    remaining,
		StartDate:      month.Time(),
		EndDate:        month.Time(),
		CurveType:      models.CurveLinear,
		NumberOfMonths: 1,
		MonthlyAmount:  remaining.Round(2),
		MonthlyBreakdown: models.Breakdown{
			month.String(): {Amount: remaining, Date: month.Time()},
		},
	}

	return s.db.Create(&allocation).Error
}

// childEntry builds a new entry for one split, copying the linkage of the
// original.
func childEntry(original models.LedgerEntry, split Split) models.LedgerEntry {
	date := split.Date.In(time.UTC)

	return models.LedgerEntry{
		ProgramID:              original.ProgramID,
		WbsElementID:           original.WbsElementID,
		CostCategory:           original.CostCategory,
		Vendor:                 original.Vendor,
		BaselineDate:           original.BaselineDate,
		BaselineAmount:         original.BaselineAmount,
		PlannedDate:            &date,
		PlannedAmount:          decimal.NewNullDecimal(split.Amount),
		ActualDate:             split.ActualDate,
		ActualAmount:           split.ActualAmount,
		Notes:                  split.Notes,
		CreatedFromBOE:         original.CreatedFromBOE,
		BOEElementAllocationID: original.BOEElementAllocationID,
		BOEVersionID:           original.BOEVersionID,
	}
}
