package v4

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ledgerplan/backend/internal/httputil"
)

func (co Controller) registerAuditRoutes(r *gin.RouterGroup) {
	r.OPTIONS("/boe-versions/:id/audit", httputil.OptionsGet)
	r.GET("/boe-versions/:id/audit", co.GetBOEAudit)
	r.OPTIONS("/sessions/:id/audit", httputil.OptionsGet)
	r.GET("/sessions/:id/audit", co.GetSessionAudit)
}

// GetBOEAudit returns all audit records linked to one BOE version.
func (co Controller) GetBOEAudit(c *gin.Context) {
	id, ok := uriID(c)
	if !ok {
		return
	}

	records, err := co.Audit.ForBOEVersion(id)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, records)
}

// GetSessionAudit returns all audit records produced by one logical
// operation.
func (co Controller) GetSessionAudit(c *gin.Context) {
	id, ok := uriID(c)
	if !ok {
		return
	}

	records, err := co.Audit.ForSession(id)
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, records)
}
