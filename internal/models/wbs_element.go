package models

import (
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// WbsElement is a node of the work breakdown structure of a program.
//
// The parent/child relation is kept as a plain foreign key instead of an
// embedded object graph so that the self-reference cannot create ownership
// cycles when loading.
type WbsElement struct {
	DefaultModel
	ProgramID uuid.UUID  `gorm:"uniqueIndex:wbs_element_code_program" json:"programId"`
	Program   Program    `json:"-"`
	ParentID  *uuid.UUID `json:"parentId"`
	Code      string     `gorm:"uniqueIndex:wbs_element_code_program" json:"code"`
	Name      string     `json:"name"`
}

func (w WbsElement) Self() string {
	return "WBS Element"
}

func (w *WbsElement) BeforeSave(_ *gorm.DB) error {
	w.Code = strings.TrimSpace(w.Code)
	w.Name = strings.TrimSpace(w.Name)

	// A nil parent must be stored as NULL, not as a pointer to the nil UUID
	if w.ParentID != nil && *w.ParentID == uuid.Nil {
		w.ParentID = nil
	}

	return nil
}
