// Package v4 implements the JSON API over the engine services. Handlers are
// thin: binding, service call, status mapping. All business logic lives in
// the engine packages.
package v4

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ledgerplan/backend/internal/adjust"
	"github.com/ledgerplan/backend/internal/audit"
	"github.com/ledgerplan/backend/internal/boe"
	"github.com/ledgerplan/backend/internal/httputil"
	"github.com/ledgerplan/backend/internal/ledger"
	"github.com/ledgerplan/backend/internal/models"
	"gorm.io/gorm"
)

// Controller bundles the engine services for the HTTP layer.
type Controller struct {
	DB     *gorm.DB
	Audit  *audit.Recorder
	BOE    *boe.Service
	Ledger *ledger.Service
	Adjust *adjust.Engine
}

// NewController wires all engine services onto one store.
func NewController(db *gorm.DB) Controller {
	recorder := audit.NewRecorder(db)

	return Controller{
		DB:     db,
		Audit:  recorder,
		BOE:    boe.NewService(db, recorder),
		Ledger: ledger.NewService(db, recorder),
		Adjust: adjust.NewEngine(db, recorder),
	}
}

// RegisterRoutes registers all v4 routes with the RouterGroup that is
// passed.
func (co Controller) RegisterRoutes(r *gin.RouterGroup) {
	co.registerProgramRoutes(r.Group("/programs"))
	co.registerWbsElementRoutes(r.Group("/wbs-elements"))
	co.registerAllocationRoutes(r.Group("/allocations"))
	co.registerLedgerEntryRoutes(r.Group("/ledger-entries"))
	co.registerAdjustmentRoutes(r.Group("/adjustments"))
	co.registerAuditRoutes(r)
}

type httpError struct {
	Error string `json:"error" example:"there is no allocation matching your query"`
}

// status returns the appropriate HTTP status for an engine error.
func status(err error) int {
	if errors.Is(err, models.ErrGeneral) {
		return http.StatusInternalServerError
	}

	if errors.Is(err, models.ErrResourceNotFound) {
		return http.StatusNotFound
	}

	if errors.Is(err, models.ErrConstraintViolation) || errors.Is(err, models.ErrConservationViolation) {
		return http.StatusConflict
	}

	return http.StatusBadRequest
}

func abort(c *gin.Context, err error) {
	c.JSON(status(err), httpError{Error: err.Error()})
}

func uriID(c *gin.Context) (uuid.UUID, bool) {
	id, err := httputil.UUIDFromString(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
		return uuid.Nil, false
	}

	return id, true
}
