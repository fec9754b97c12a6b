// Package boe implements the lifecycle of element allocations: creation from
// a cost estimate, regeneration while unlocked, and the one-time push into
// the ledger.
package boe

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerplan/backend/internal/audit"
	"github.com/ledgerplan/backend/internal/breakdown"
	"github.com/ledgerplan/backend/internal/models"
	"github.com/ledgerplan/backend/internal/types"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service manages allocations and their transition into the ledger.
type Service struct {
	db    *gorm.DB
	audit *audit.Recorder
}

// NewService returns a Service using the given store and audit recorder.
func NewService(db *gorm.DB, recorder *audit.Recorder) *Service {
	return &Service{db: db, audit: recorder}
}

// AllocationData is the caller-editable part of an allocation.
type AllocationData struct {
	TotalAmount   decimal.Decimal     `json:"totalAmount"`
	TotalQuantity decimal.NullDecimal `json:"totalQuantity"`
	StartDate     time.Time           `json:"startDate"`
	EndDate       time.Time           `json:"endDate"`
	CurveType     models.CurveType    `json:"curveType"`
}

func (d AllocationData) validate() error {
	var violations []string

	if !d.TotalAmount.IsPositive() {
		violations = append(violations, "the total amount must be positive")
	}
	if d.StartDate.IsZero() {
		violations = append(violations, "the start date must be set")
	}
	if d.EndDate.IsZero() {
		violations = append(violations, "the end date must be set")
	}
	if !d.StartDate.IsZero() && !d.EndDate.IsZero() && d.EndDate.Before(d.StartDate) {
		violations = append(violations, "the end date must not be before the start date")
	}
	if !d.CurveType.Valid() {
		violations = append(violations, "the curve type is unknown")
	}

	if len(violations) > 0 {
		return models.ValidationError{Violations: violations}
	}

	return nil
}

// CreateElementAllocation creates an allocation for a WBS element and
// generates its monthly breakdown. An element can only carry one active
// allocation at a time.
func (s *Service) CreateElementAllocation(elementID, versionID uuid.UUID, data AllocationData) (models.Allocation, error) {
	if err := data.validate(); err != nil {
		return models.Allocation{}, err
	}

	var element models.WbsElement
	err := s.db.First(&element, elementID).Error
	if err != nil {
		return models.Allocation{}, err
	}

	var existing int64
	err = s.db.Model(&models.Allocation{}).Where("element_id = ? AND is_locked = ?", elementID, false).Count(&existing).Error
	if err != nil {
		return models.Allocation{}, err
	}
	if existing > 0 {
		return models.Allocation{}, models.ErrElementAlreadyAllocated
	}

	allocation := models.Allocation{
		ElementID:     elementID,
		VersionID:     versionID,
		TotalAmount:   data.TotalAmount,
		TotalQuantity: data.TotalQuantity,
		StartDate:     data.StartDate,
		EndDate:       data.EndDate,
		CurveType:     data.CurveType,
	}

	err = s.regenerate(&allocation)
	if err != nil {
		return models.Allocation{}, err
	}

	err = s.db.Create(&allocation).Error
	if err != nil {
		return models.Allocation{}, err
	}

	return allocation, nil
}

// UpdateAllocation replaces the editable data of an unlocked allocation and
// regenerates its breakdown.
func (s *Service) UpdateAllocation(id uuid.UUID, data AllocationData) (models.Allocation, error) {
	var allocation models.Allocation
	err := s.db.First(&allocation, id).Error
	if err != nil {
		return models.Allocation{}, err
	}

	if allocation.IsLocked {
		return models.Allocation{}, models.ErrAllocationLocked
	}

	if err := data.validate(); err != nil {
		return models.Allocation{}, err
	}

	allocation.TotalAmount = data.TotalAmount
	allocation.TotalQuantity = data.TotalQuantity
	allocation.StartDate = data.StartDate
	allocation.EndDate = data.EndDate
	allocation.CurveType = data.CurveType

	err = s.regenerate(&allocation)
	if err != nil {
		return models.Allocation{}, err
	}

	err = s.db.Save(&allocation).Error
	if err != nil {
		return models.Allocation{}, err
	}

	return allocation, nil
}

// DeleteAllocation deletes an allocation. Locked allocations and allocations
// with dependent ledger entries cannot be deleted.
func (s *Service) DeleteAllocation(id uuid.UUID) error {
	var allocation models.Allocation
	err := s.db.First(&allocation, id).Error
	if err != nil {
		return err
	}

	if allocation.IsLocked {
		return models.ErrAllocationLocked
	}

	var dependents int64
	err = s.db.Model(&models.LedgerEntry{}).Where("boe_element_allocation_id = ?", id).Count(&dependents).Error
	if err != nil {
		return err
	}
	if dependents > 0 {
		return models.ErrAllocationHasLedgerEntries
	}

	return s.db.Delete(&allocation).Error
}

// PushToLedger locks the allocation and creates one ledger entry per
// breakdown month. The baseline of every entry is set to its plan so later
// adjustments always have the original commitment to compare against.
//
// All audit records of one push share a session id: one Created record per
// entry and one PushedFromBOE summary record.
func (s *Service) PushToLedger(allocationID uuid.UUID, userID *uuid.UUID) ([]models.LedgerEntry, error) {
	var allocation models.Allocation
	var entries []models.LedgerEntry

	err := s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.First(&allocation, allocationID).Error
		if err != nil {
			return err
		}

		if allocation.IsLocked {
			return models.ErrAllocationLocked
		}

		var element models.WbsElement
		err = tx.First(&element, allocation.ElementID).Error
		if err != nil {
			return err
		}

		for _, month := range allocation.MonthlyBreakdown.Months() {
			cell := allocation.MonthlyBreakdown[month]
			date := cell.Date

			versionID := allocation.VersionID
			entry := models.LedgerEntry{
				ProgramID:              element.ProgramID,
				WbsElementID:           &element.ID,
				BaselineDate:           &date,
				BaselineAmount:         decimal.NewNullDecimal(cell.Amount),
				PlannedDate:            &date,
				PlannedAmount:          decimal.NewNullDecimal(cell.Amount),
				CreatedFromBOE:         true,
				BOEElementAllocationID: &allocation.ID,
				BOEVersionID:           &versionID,
			}

			err = tx.Create(&entry).Error
			if err != nil {
				return err
			}

			entries = append(entries, entry)
		}

		return tx.Model(&allocation).Update("is_locked", true).Error
	})
	if err != nil {
		return nil, err
	}

	sessionID := uuid.New()
	for _, entry := range entries {
		s.audit.RecordCreation(entry, models.SourceBOEPush, &sessionID, nil)
	}

	metadata := types.JSONMap{
		"allocation_id": allocation.ID.String(),
		"version_id":    allocation.VersionID.String(),
		"entries":       len(entries),
	}
	if userID != nil {
		metadata["user_id"] = userID.String()
	}

	versionID := allocation.VersionID
	s.audit.Record(models.AuditRecord{
		LedgerEntryID: entries[0].ID,
		Action:        models.AuditPushedFromBOE,
		Source:        models.SourceBOEPush,
		Metadata:      metadata,
		SessionID:     &sessionID,
		BOEVersionID:  &versionID,
	})

	return entries, nil
}

// RecordActual backfills an actual amount and date into one breakdown month.
// This is the only mutation allowed on a locked allocation.
func (s *Service) RecordActual(allocationID uuid.UUID, month types.Month, amount decimal.Decimal, date time.Time) (models.Allocation, error) {
	var allocation models.Allocation
	err := s.db.First(&allocation, allocationID).Error
	if err != nil {
		return models.Allocation{}, err
	}

	cell, ok := allocation.MonthlyBreakdown[month.String()]
	if !ok {
		return models.Allocation{}, fmt.Errorf("%w breakdown month %s in the allocation", models.ErrResourceNotFound, month)
	}

	utc := date.In(time.UTC)
	cell.ActualAmount = &amount
	cell.ActualDate = &utc
	allocation.MonthlyBreakdown[month.String()] = cell

	err = models.WithLockedAllocationWrite(s.db).
		Model(&allocation).
		Update("monthly_breakdown", allocation.MonthlyBreakdown).Error
	if err != nil {
		return models.Allocation{}, err
	}

	return allocation, nil
}

// regenerate rebuilds the breakdown and the derived fields from the
// editable data.
func (s *Service) regenerate(allocation *models.Allocation) error {
	plan, err := breakdown.Generate(allocation.TotalAmount, allocation.TotalQuantity, allocation.StartDate, allocation.EndDate, allocation.CurveType)
	if err != nil {
		if errors.Is(err, breakdown.ErrUnknownCurveType) {
			return models.ValidationError{Violations: []string{err.Error()}}
		}
		return err
	}

	months := types.MonthsBetween(types.MonthOf(allocation.StartDate), types.MonthOf(allocation.EndDate))

	allocation.MonthlyBreakdown = plan
	allocation.NumberOfMonths = months
	allocation.MonthlyAmount = allocation.TotalAmount.Div(decimal.NewFromInt(int64(months))).Round(2)

	return nil
}
