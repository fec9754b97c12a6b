package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"
	"gorm.io/gorm"
)

// CurveType is the shape of the monthly distribution of an allocation.
type CurveType string

const (
	CurveLinear      CurveType = "LINEAR"
	CurveFrontLoaded CurveType = "FRONT_LOADED"
	CurveBackLoaded  CurveType = "BACK_LOADED"
	CurveCustom      CurveType = "CUSTOM"
)

// Valid reports whether the curve type is one of the known values.
func (c CurveType) Valid() bool {
	return c == CurveLinear || c == CurveFrontLoaded || c == CurveBackLoaded || c == CurveCustom
}

// BreakdownMonth is the plan for a single month of an allocation, plus the
// actuals backfilled into it once money has been spent.
type BreakdownMonth struct {
	Amount       decimal.Decimal  `json:"amount"`
	Quantity     *decimal.Decimal `json:"quantity,omitempty"`
	Date         time.Time        `json:"date"`
	ActualAmount *decimal.Decimal `json:"actualAmount,omitempty"`
	ActualDate   *time.Time       `json:"actualDate,omitempty"`
}

// Breakdown is the month-keyed (YYYY-MM) spending plan of an allocation.
type Breakdown map[string]BreakdownMonth

// Months returns the month keys in chronological order. YYYY-MM keys sort
// chronologically as strings.
func (b Breakdown) Months() []string {
	months := make([]string, 0, len(b))
	for month := range b {
		months = append(months, month)
	}
	slices.Sort(months)

	return months
}

// Total returns the sum of all monthly amounts.
func (b Breakdown) Total() decimal.Decimal {
	total := decimal.Zero
	for _, month := range b {
		total = total.Add(month.Amount)
	}

	return total
}

// Scan reads the value from the database.
func (b *Breakdown) Scan(value interface{}) error {
	if value == nil {
		*b = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into Breakdown", value)
	}

	if len(data) == 0 {
		*b = nil
		return nil
	}

	return json.Unmarshal(data, b)
}

// Value returns the value for the SQL driver to write to the database.
func (b Breakdown) Value() (driver.Value, error) {
	if b == nil {
		return nil, nil
	}

	data, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}

	return string(data), nil
}

// GormDataType defines the data type used by gorm for the type.
func (Breakdown) GormDataType() string {
	return "text"
}

// Allocation is a planned, time-phased spend commitment for one WBS element.
//
// While IsLocked is false the breakdown may be regenerated freely. Once the
// allocation has been pushed into the ledger it is locked and only actuals
// may be backfilled into the breakdown.
type Allocation struct {
	DefaultModel
	ElementID        uuid.UUID           `gorm:"index" json:"elementId"`
	Element          WbsElement          `json:"-"`
	VersionID        uuid.UUID           `gorm:"index" json:"versionId"`
	TotalAmount      decimal.Decimal     `gorm:"type:DECIMAL(20,8)" json:"totalAmount"`
	TotalQuantity    decimal.NullDecimal `gorm:"type:DECIMAL(20,8)" json:"totalQuantity"`
	StartDate        time.Time           `json:"startDate"`
	EndDate          time.Time           `json:"endDate"`
	CurveType        CurveType           `json:"curveType"`
	NumberOfMonths   int                 `json:"numberOfMonths"`
	MonthlyAmount    decimal.Decimal     `gorm:"type:DECIMAL(20,8)" json:"monthlyAmount"` // informational, totalAmount / numberOfMonths
	MonthlyBreakdown Breakdown           `json:"monthlyBreakdown"`
	IsLocked         bool                `json:"isLocked"`
}

func (a Allocation) Self() string {
	return "Allocation"
}

// allocationContext is used for context values controlling allocation hooks.
type allocationContext string

// lockedWriteContext marks a database context as allowed to write a locked
// allocation. Only the push-to-ledger lock step and actuals backfill set it.
const lockedWriteContext allocationContext = "allocation-locked-write"

// WithLockedAllocationWrite returns a database handle whose writes may touch
// a locked allocation.
func WithLockedAllocationWrite(db *gorm.DB) *gorm.DB {
	return db.Set(string(lockedWriteContext), true)
}

func lockedWriteAllowed(tx *gorm.DB) bool {
	allowed, ok := tx.Get(string(lockedWriteContext))
	return ok && allowed == true
}

func (a *Allocation) BeforeSave(_ *gorm.DB) error {
	a.StartDate = a.StartDate.In(time.UTC)
	a.EndDate = a.EndDate.In(time.UTC)

	if a.EndDate.Before(a.StartDate) {
		return ErrAllocationEndsBeforeStart
	}

	return nil
}

// BeforeUpdate rejects writes to a locked allocation. The lock step itself
// and actuals backfill opt out via WithLockedAllocationWrite.
func (a *Allocation) BeforeUpdate(tx *gorm.DB) error {
	if a.IsLocked && !lockedWriteAllowed(tx) {
		return ErrAllocationLocked
	}

	return nil
}

// BeforeDelete rejects deletion of a locked allocation. A locked allocation
// is never deleted, it is part of the ledger history.
func (a *Allocation) BeforeDelete(_ *gorm.DB) error {
	if a.IsLocked {
		return ErrAllocationLocked
	}

	return nil
}
