package v4

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ledgerplan/backend/internal/httputil"
	"github.com/ledgerplan/backend/internal/ledger"
	"github.com/ledgerplan/backend/internal/models"
	"github.com/shopspring/decimal"
)

func (co Controller) registerLedgerEntryRoutes(r *gin.RouterGroup) {
	r.OPTIONS("", httputil.OptionsPost)
	r.POST("", co.CreateLedgerEntry)

	r.OPTIONS("/:id", httputil.OptionsGetPatchDelete)
	r.GET("/:id", co.GetLedgerEntry)
	r.DELETE("/:id", co.DeleteLedgerEntry)

	r.GET("/:id/scenarios", co.GetScenarios)
	r.POST("/:id/split", co.SplitLedgerEntry)
	r.POST("/:id/automatic-split", co.AutomaticSplitLedgerEntry)
	r.POST("/:id/re-forecast", co.ReForecastLedgerEntry)
	r.GET("/:id/audit", co.GetLedgerEntryAudit)
}

// LedgerEntryCreateRequest creates a manual ledger entry.
type LedgerEntryCreateRequest struct {
	ProgramID     uuid.UUID           `json:"programId" binding:"required"`
	WbsElementID  *uuid.UUID          `json:"wbsElementId"`
	CostCategory  string              `json:"costCategory"`
	Vendor        string              `json:"vendor"`
	PlannedDate   *time.Time          `json:"plannedDate"`
	PlannedAmount decimal.NullDecimal `json:"plannedAmount"`
	ActualDate    *time.Time          `json:"actualDate"`
	ActualAmount  decimal.NullDecimal `json:"actualAmount"`
	Notes         string              `json:"notes"`
}

// CreateLedgerEntry creates a manual ledger entry. Entries created this way
// carry no baseline, only pushed allocations set one.
func (co Controller) CreateLedgerEntry(c *gin.Context) {
	var request LedgerEntryCreateRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
		return
	}

	var program models.Program
	err := co.DB.First(&program, request.ProgramID).Error
	if err != nil {
		abort(c, err)
		return
	}

	entry := models.LedgerEntry{
		ProgramID:     request.ProgramID,
		WbsElementID:  request.WbsElementID,
		CostCategory:  request.CostCategory,
		Vendor:        request.Vendor,
		PlannedDate:   request.PlannedDate,
		PlannedAmount: request.PlannedAmount,
		ActualDate:    request.ActualDate,
		ActualAmount:  request.ActualAmount,
		Notes:         request.Notes,
	}
	err = co.DB.Create(&entry).Error
	if err != nil {
		abort(c, err)
		return
	}

	co.Audit.RecordCreation(entry, models.SourceManual, nil, nil)

	c.JSON(http.StatusCreated, entry)
}

// GetLedgerEntry returns a specific ledger entry.
func (co Controller) GetLedgerEntry(c *gin.Context) {
	id, ok := uriID(c)
	if !ok {
		return
	}

	var entry models.LedgerEntry
	err := co.DB.First(&entry, id).Error
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

// DeleteLedgerEntry deletes a ledger entry. Entries created from a locked
// allocation are part of the ledger history and cannot be deleted.
func (co Controller) DeleteLedgerEntry(c *gin.Context) {
	id, ok := uriID(c)
	if !ok {
		return
	}

	var entry models.LedgerEntry
	err := co.DB.First(&entry, id).Error
	if err != nil {
		abort(c, err)
		return
	}

	if entry.CreatedFromBOE {
		c.JSON(http.StatusConflict, httpError{Error: "entries created from an allocation cannot be deleted"})
		return
	}

	err = co.DB.Delete(&entry).Error
	if err != nil {
		abort(c, err)
		return
	}

	co.Audit.RecordDeletion(entry, models.SourceManual, nil)

	c.JSON(http.StatusNoContent, nil)
}

// ScenarioQuery carries the optional actual data for the classifier.
type ScenarioQuery struct {
	ActualAmount decimal.NullDecimal `form:"actualAmount"`
	ActualDate   string              `form:"actualDate"` // RFC3339 full-date, e.g. 2024-03-01
}

// GetScenarios returns the recommended and available adjustment scenarios
// for an entry.
func (co Controller) GetScenarios(c *gin.Context) {
	id, ok := uriID(c)
	if !ok {
		return
	}

	var query ScenarioQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
		return
	}

	var actualDate *time.Time
	if query.ActualDate != "" {
		parsed, err := time.Parse("2006-01-02", query.ActualDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpError{Error: "the actualDate parameter must be a date in YYYY-MM-DD format"})
			return
		}
		actualDate = &parsed
	}

	options, err := co.Adjust.AvailableScenarios(id, query.ActualAmount, actualDate)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, options)
}

// SplitRequest is the body for a manual split.
type SplitRequest struct {
	Splits []ledger.Split `json:"splits" binding:"required"`
	Reason string         `json:"reason"`
}

// SplitLedgerEntry splits an entry into one new entry per split.
func (co Controller) SplitLedgerEntry(c *gin.Context) {
	id, ok := uriID(c)
	if !ok {
		return
	}

	var request SplitRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
		return
	}

	entries, err := co.Ledger.SplitLedgerEntry(id, request.Splits, request.Reason)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, entries)
}

// AutomaticSplitLedgerEntry splits an entry into a matched and a remaining
// part from a partial delivery.
func (co Controller) AutomaticSplitLedgerEntry(c *gin.Context) {
	id, ok := uriID(c)
	if !ok {
		return
	}

	var request ledger.AutomaticSplitRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
		return
	}
	request.LedgerEntryID = id

	entries, err := co.Ledger.AutomaticSplitLedgerEntry(request)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, entries)
}

// ReForecastRequest rewrites the plan of a single entry.
type ReForecastRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Date   time.Time       `json:"date" binding:"required"`
	Reason string          `json:"reason"`
}

// ReForecastLedgerEntry rewrites the planned amount and date of an entry.
func (co Controller) ReForecastLedgerEntry(c *gin.Context) {
	id, ok := uriID(c)
	if !ok {
		return
	}

	var request ReForecastRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
		return
	}

	entry, err := co.Ledger.ReForecast(id, request.Amount, request.Date, request.Reason)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

// GetLedgerEntryAudit returns the audit trail of one entry, oldest first.
func (co Controller) GetLedgerEntryAudit(c *gin.Context) {
	id, ok := uriID(c)
	if !ok {
		return
	}

	records, err := co.Audit.ForLedgerEntry(id)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, records)
}
