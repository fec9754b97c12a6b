package v4

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ledgerplan/backend/internal/adjust"
	"github.com/ledgerplan/backend/internal/httputil"
)

func (co Controller) registerAdjustmentRoutes(r *gin.RouterGroup) {
	r.OPTIONS("/impact", httputil.OptionsPost)
	r.POST("/impact", co.CalculateImpact)
	r.POST("/validate", co.ValidateAdjustment)
	r.POST("/partial-delivery", co.ApplyPartialDelivery)
	r.POST("/re-forecast", co.ApplyReForecast)
	r.POST("/schedule-change", co.ApplyScheduleChange)
}

// CalculateImpact previews an adjustment without mutating anything.
func (co Controller) CalculateImpact(c *gin.Context) {
	var request adjust.Request
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
		return
	}

	impact, err := co.Adjust.CalculateImpact(request)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, impact)
}

// ValidateAdjustment validates an adjustment request and returns all
// violations and warnings.
func (co Controller) ValidateAdjustment(c *gin.Context) {
	var request adjust.Request
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
		return
	}

	result, err := co.Adjust.Validate(request)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ApplyPartialDelivery applies a partial delivery adjustment.
func (co Controller) ApplyPartialDelivery(c *gin.Context) {
	var request adjust.Request
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
		return
	}

	result, err := co.Adjust.ApplyPartialDelivery(request)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ApplyReForecast applies a cost overrun or underspend redistribution.
func (co Controller) ApplyReForecast(c *gin.Context) {
	var request adjust.Request
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
		return
	}

	result, err := co.Adjust.ApplyReForecast(request)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ApplyScheduleChange moves the planned date of an entry.
func (co Controller) ApplyScheduleChange(c *gin.Context) {
	var request adjust.Request
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
		return
	}

	result, err := co.Adjust.ApplyScheduleChange(request)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
