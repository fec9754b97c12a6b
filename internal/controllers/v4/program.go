package v4

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ledgerplan/backend/internal/httputil"
	"github.com/ledgerplan/backend/internal/models"
)

func (co Controller) registerProgramRoutes(r *gin.RouterGroup) {
	r.OPTIONS("", httputil.OptionsGetPost)
	r.GET("", co.GetPrograms)
	r.POST("", co.CreateProgram)

	r.OPTIONS("/:id", httputil.OptionsGetPatchDelete)
	r.GET("/:id", co.GetProgram)
	r.PATCH("/:id", co.UpdateProgram)
	r.DELETE("/:id", co.DeleteProgram)
}

// ProgramEditable is the caller-editable part of a program.
type ProgramEditable struct {
	Name string `json:"name" binding:"required"`
	Note string `json:"note"`
}

// GetPrograms returns all programs.
func (co Controller) GetPrograms(c *gin.Context) {
	var programs []models.Program
	err := co.DB.Find(&programs).Error
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, programs)
}

// CreateProgram creates a new program.
func (co Controller) CreateProgram(c *gin.Context) {
	var editable ProgramEditable
	if err := c.ShouldBindJSON(&editable); err != nil {
		c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
		return
	}

	program := models.Program{Name: editable.Name, Note: editable.Note}
	err := co.DB.Create(&program).Error
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusCreated, program)
}

// GetProgram returns a specific program.
func (co Controller) GetProgram(c *gin.Context) {
	id, ok := uriID(c)
	if !ok {
		return
	}

	var program models.Program
	err := co.DB.First(&program, id).Error
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, program)
}

// UpdateProgram updates a program.
func (co Controller) UpdateProgram(c *gin.Context) {
	id, ok := uriID(c)
	if !ok {
		return
	}

	var program models.Program
	err := co.DB.First(&program, id).Error
	if err != nil {
		abort(c, err)
		return
	}

	var editable ProgramEditable
	if err := c.ShouldBindJSON(&editable); err != nil {
		c.JSON(http.StatusBadRequest, httpError{Error: err.Error()})
		return
	}

	program.Name = editable.Name
	program.Note = editable.Note

	err = co.DB.Save(&program).Error
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusOK, program)
}

// DeleteProgram deletes a program without ledger entries.
func (co Controller) DeleteProgram(c *gin.Context) {
	id, ok := uriID(c)
	if !ok {
		return
	}

	var program models.Program
	err := co.DB.First(&program, id).Error
	if err != nil {
		abort(c, err)
		return
	}

	var dependents int64
	err = co.DB.Model(&models.LedgerEntry{}).Where("program_id = ?", id).Count(&dependents).Error
	if err != nil {
		abort(c, err)
		return
	}
	if dependents > 0 {
		c.JSON(http.StatusConflict, httpError{Error: "the program has ledger entries and cannot be deleted"})
		return
	}

	err = co.DB.Delete(&program).Error
	if err != nil {
		abort(c, err)
		return
	}

	c.JSON(http.StatusNoContent, nil)
}
