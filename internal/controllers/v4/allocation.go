package v4

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ledgerplan/backend/internal/boe"
	"github.com/ledgerplan/backend/internal/breakdown"
	"github.com/ledgerplan/backend/internal/httputil"
	"github.com/ledgerplan/backend/internal/models"
	"github.com/ledgerplan/backend/internal/types"
	"github.com/shopspring/decimal"
)

func (co Controller) registerAllocationRoutes(r *gin.RouterGroup) {
	// Root group
	{
		r.OPTIONS("", httputil.OptionsPost)
		r.POST("", co.CreateAllocation)
		r.OPTIONS("/breakdown", httputil.OptionsPost)
		r.POST("/breakdown", co.PreviewBreakdown)
	}

	// Allocation with ID
	{
		r.OPTIONS("/:id", httputil.OptionsGetPatchDelete)
		r.GET("/:id", co.GetAllocation)
		r.PATCH("/:id", co.UpdateAllocation)
		r.DELETE("/:id", co.DeleteAllocation)
		r.POST("/:id/push", co.PushAllocation)
		r.POST("/:id/actuals", co.RecordAllocationActual)
	}
}

// AllocationCreateRequest creates an allocation for a WBS element.
type AllocationCreateRequest struct {
	ElementID uuid.UUID          `json:"elementId" binding:"required"`
	VersionID uuid.UUID          `json:"versionId" binding:"required"`
	Data      boe.AllocationData `json:"data" binding:"required"`
}

// CreateAllocation creates an allocation and generates its breakdown.
func (co Controller) CreateAllocation(c *gin.Context) {
	var request AllocationCreateRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
		return
	}

	allocation, err := co.BOE.CreateElementAllocation(request.ElementID, request.VersionID, request.Data)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, allocation)
}

// GetAllocation returns a specific allocation.
func (co Controller) GetAllocation(c *gin.Context) {
	id, ok := uriID(c)
	if !ok {
		return
	}

	var allocation models.Allocation
	err := co.DB.First(&allocation, id).Error
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, allocation)
}

// UpdateAllocation replaces the editable data of an unlocked allocation.
func (co Controller) UpdateAllocation(c *gin.Context) {
	id, ok := uriID(c)
	if !ok {
		return
	}

	var data boe.AllocationData
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
		return
	}

	allocation, err := co.BOE.UpdateAllocation(id, data)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, allocation)
}

// DeleteAllocation deletes an unlocked allocation without dependents.
func (co Controller) DeleteAllocation(c *gin.Context) {
	id, ok := uriID(c)
	if !ok {
		return
	}

	err := co.BOE.DeleteAllocation(id)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusNoContent, nil)
}

// PushRequest carries the optional user for the push audit metadata.
type PushRequest struct {
	UserID *uuid.UUID `json:"userId"`
}

// PushAllocation locks the allocation and creates its ledger entries.
func (co Controller) PushAllocation(c *gin.Context) {
	id, ok := uriID(c)
	if !ok {
		return
	}

	var request PushRequest
	// The body is optional
	_ = c.ShouldBindJSON(&request)

	entries, err := co.BOE.PushToLedger(id, request.UserID)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, entries)
}

// ActualRequest backfills an actual into one breakdown month.
type ActualRequest struct {
	Month  types.Month     `json:"month" binding:"required"`
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Date   time.Time       `json:"date" binding:"required"`
}

// RecordAllocationActual backfills an actual amount and date into a
// breakdown month. This works on locked allocations.
func (co Controller) RecordAllocationActual(c *gin.Context) {
	id, ok := uriID(c)
	if !ok {
		return
	}

	var request ActualRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
		return
	}

	allocation, err := co.BOE.RecordActual(id, request.Month, request.Amount, request.Date)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, allocation)
}

// BreakdownRequest previews a monthly breakdown without persisting it.
type BreakdownRequest struct {
	TotalAmount   decimal.Decimal     `json:"totalAmount" binding:"required"`
	TotalQuantity decimal.NullDecimal `json:"totalQuantity"`
	StartDate     time.Time           `json:"startDate" binding:"required"`
	EndDate       time.Time           `json:"endDate" binding:"required"`
	CurveType     models.CurveType    `json:"curveType" binding:"required"`
}

// PreviewBreakdown generates a monthly breakdown. Nothing is persisted.
func (co Controller) PreviewBreakdown(c *gin.Context) {
	var request BreakdownRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
		return
	}

	plan, err := breakdown.Generate(request.TotalAmount, request.TotalQuantity, request.StartDate, request.EndDate, request.CurveType)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, plan)
}
