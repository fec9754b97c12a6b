package v4

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ledgerplan/backend/internal/httputil"
	"github.com/ledgerplan/backend/internal/models"
)

func (co Controller) registerWbsElementRoutes(r *gin.RouterGroup) {
	r.OPTIONS("", httputil.OptionsGetPost)
	r.GET("", co.GetWbsElements)
	r.POST("", co.CreateWbsElement)

	r.OPTIONS("/:id", httputil.OptionsGetPatchDelete)
	r.GET("/:id", co.GetWbsElement)
	r.DELETE("/:id", co.DeleteWbsElement)
}

// WbsElementEditable is the caller-editable part of a WBS element.
type WbsElementEditable struct {
	ProgramID uuid.UUID  `json:"programId" binding:"required"`
	ParentID  *uuid.UUID `json:"parentId"`
	Code      string     `json:"code" binding:"required"`
	Name      string     `json:"name"`
}

// GetWbsElements returns all WBS elements, optionally filtered by program.
func (co Controller) GetWbsElements(c *gin.Context) {
	query := co.DB

	if program, ok := c.GetQuery("program"); ok {
		programID, err := httputil.UUIDFromString(program)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
			return
		}
		query = query.Where("program_id = ?", programID)
	}

	var elements []models.WbsElement
	err := query.Find(&elements).Error
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, elements)
}

// CreateWbsElement creates a new WBS element.
func (co Controller) CreateWbsElement(c *gin.Context) {
	var editable WbsElementEditable
	if err := c.ShouldBindJSON(&editable); err != nil {
		c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
		return
	}

	var program models.Program
	err := co.DB.First(&program, editable.ProgramID).Error
	if err != nil {
		abort(c, err)
		return
	}

	if editable.ParentID != nil {
		var parent models.WbsElement
		err := co.DB.First(&parent, *editable.ParentID).Error
		if err != nil {
			abort(c, err)
			return
		}
	}

	element := models.WbsElement{
		ProgramID: editable.ProgramID,
		ParentID:  editable.ParentID,
		Code:      editable.Code,
		Name:      editable.Name,
	}
	err = co.DB.Create(&element).Error
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, element)
}

// GetWbsElement returns a specific WBS element.
func (co Controller) GetWbsElement(c *gin.Context) {
	id, ok := uriID(c)
	if !ok {
		return
	}

	var element models.WbsElement
	err := co.DB.First(&element, id).Error
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, element)
}

// DeleteWbsElement deletes a WBS element without allocations or children.
func (co Controller) DeleteWbsElement(c *gin.Context) {
	id, ok := uriID(c)
	if !ok {
		return
	}

	var element models.WbsElement
	err := co.DB.First(&element, id).Error
	if err != nil {
		abort(c, err)
		return
	}

	var children int64
	err = co.DB.Model(&models.WbsElement{}).Where("parent_id = ?", id).Count(&children).Error
	if err != nil {
		abort(c, err)
		return
	}
	if children > 0 {
		c.JSON(http.StatusConflict, httpError{Error: "the WBS element has child elements and cannot be deleted"})
		return
	}

	var allocations int64
	err = co.DB.Model(&models.Allocation{}).Where("element_id = ?", id).Count(&allocations).Error
	if err != nil {
		abort(c, err)
		return
	}
	if allocations > 0 {
		c.JSON(http.StatusConflict, httpError{Error: "the WBS element has allocations and cannot be deleted"})
		return
	}

	err = co.DB.Delete(&element).Error
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusNoContent, nil)
}
