package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerplan/backend/internal/types"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerEntry is one row of planned and actual spend.
//
// Each date/amount pair is independently nullable. An amount without a date
// and a date without an amount are both incomplete and are excluded from
// date-filtered aggregations.
type LedgerEntry struct {
	DefaultModel
	ProgramID    uuid.UUID   `gorm:"index" json:"programId"`
	Program      Program     `json:"-"`
	WbsElementID *uuid.UUID  `gorm:"index" json:"wbsElementId"`
	CostCategory string      `json:"costCategory"`
	Vendor       string      `json:"vendor"`

	BaselineDate   *time.Time          `json:"baselineDate"`
	BaselineAmount decimal.NullDecimal `gorm:"type:DECIMAL(20,8)" json:"baselineAmount"`
	PlannedDate    *time.Time          `json:"plannedDate"`
	PlannedAmount  decimal.NullDecimal `gorm:"type:DECIMAL(20,8)" json:"plannedAmount"`
	ActualDate     *time.Time          `json:"actualDate"`
	ActualAmount   decimal.NullDecimal `gorm:"type:DECIMAL(20,8)" json:"actualAmount"`

	Notes string `json:"notes"`

	CreatedFromBOE         bool       `json:"createdFromBOE"`
	BOEElementAllocationID *uuid.UUID `gorm:"index" json:"boeElementAllocationId"`
	BOEVersionID           *uuid.UUID `gorm:"index" json:"boeVersionId"`
}

func (l LedgerEntry) Self() string {
	return "Ledger Entry"
}

func (l *LedgerEntry) BeforeSave(_ *gorm.DB) error {
	l.Notes = strings.TrimSpace(l.Notes)
	l.CostCategory = strings.TrimSpace(l.CostCategory)
	l.Vendor = strings.TrimSpace(l.Vendor)

	for _, date := range []**time.Time{&l.BaselineDate, &l.PlannedDate, &l.ActualDate} {
		if *date != nil {
			utc := (**date).In(time.UTC)
			*date = &utc
		}
	}

	return nil
}

// PlannedComplete reports whether the entry has both a planned date and a
// planned amount.
func (l LedgerEntry) PlannedComplete() bool {
	return l.PlannedDate != nil && l.PlannedAmount.Valid
}

// ActualComplete reports whether the entry has both an actual date and an
// actual amount.
func (l LedgerEntry) ActualComplete() bool {
	return l.ActualDate != nil && l.ActualAmount.Valid
}

// Snapshot returns all business fields of the entry as a flat map. It is
// used for audit previous/new values; deletion audits store it in full.
func (l LedgerEntry) Snapshot() types.JSONMap {
	snapshot := types.JSONMap{
		"program_id":       l.ProgramID.String(),
		"cost_category":    l.CostCategory,
		"vendor":           l.Vendor,
		"notes":            l.Notes,
		"created_from_boe": l.CreatedFromBOE,
	}

	if l.WbsElementID != nil {
		snapshot["wbs_element_id"] = l.WbsElementID.String()
	}
	if l.BOEElementAllocationID != nil {
		snapshot["boe_element_allocation_id"] = l.BOEElementAllocationID.String()
	}
	if l.BOEVersionID != nil {
		snapshot["boe_version_id"] = l.BOEVersionID.String()
	}

	amounts := map[string]decimal.NullDecimal{
		"baseline_amount": l.BaselineAmount,
		"planned_amount":  l.PlannedAmount,
		"actual_amount":   l.ActualAmount,
	}
	for field, amount := range amounts {
		if amount.Valid {
			snapshot[field] = amount.Decimal.String()
		}
	}

	dates := map[string]*time.Time{
		"baseline_date": l.BaselineDate,
		"planned_date":  l.PlannedDate,
		"actual_date":   l.ActualDate,
	}
	for field, date := range dates {
		if date != nil {
			snapshot[field] = date.UTC().Format(time.RFC3339Nano)
		}
	}

	return snapshot
}
