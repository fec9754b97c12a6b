package models

import (
	"strings"

	"gorm.io/gorm"
)

// Program is the top-level scope for planning. Every ledger entry belongs to
// exactly one program, and re-leveling never crosses program boundaries.
type Program struct {
	DefaultModel
	Name string `gorm:"uniqueIndex" json:"name"`
	Note string `json:"note"`
}

func (p Program) Self() string {
	return "Program"
}

func (p *Program) BeforeSave(_ *gorm.DB) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Note = strings.TrimSpace(p.Note)

	return nil
}
