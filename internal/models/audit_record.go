package models

import (
	"github.com/google/uuid"
	"github.com/ledgerplan/backend/internal/types"
	"gorm.io/gorm"
)

// AuditAction describes what happened to a ledger entry.
type AuditAction string

const (
	AuditCreated              AuditAction = "CREATED"
	AuditUpdated              AuditAction = "UPDATED"
	AuditDeleted              AuditAction = "DELETED"
	AuditPushedFromBOE        AuditAction = "PUSHED_FROM_BOE"
	AuditSplit                AuditAction = "SPLIT"
	AuditMerged               AuditAction = "MERGED"
	AuditReForecasted         AuditAction = "RE_FORECASTED"
	AuditScheduleChange       AuditAction = "SCHEDULE_CHANGE"
	AuditMatchedToInvoice     AuditAction = "MATCHED_TO_INVOICE"
	AuditUnmatchedFromInvoice AuditAction = "UNMATCHED_FROM_INVOICE"
)

// AuditSource describes which subsystem triggered the change.
type AuditSource string

const (
	SourceManual                AuditSource = "MANUAL"
	SourceBOEAllocation         AuditSource = "BOE_ALLOCATION"
	SourceBOEPush               AuditSource = "BOE_PUSH"
	SourceInvoiceMatch          AuditSource = "INVOICE_MATCH"
	SourceReForecasted          AuditSource = "RE_FORECASTED"
	SourceSystem                AuditSource = "SYSTEM"
	SourceTransactionAdjustment AuditSource = "TRANSACTION_ADJUSTMENT"
)

// AuditRecord is an append-only fact about one ledger entry mutation.
// Records are never updated or deleted after creation.
type AuditRecord struct {
	DefaultModel
	LedgerEntryID        uuid.UUID     `gorm:"index" json:"ledgerEntryId"`
	Action               AuditAction   `json:"action"`
	Source               AuditSource   `json:"source"`
	PreviousValues       types.JSONMap `json:"previousValues"`
	NewValues            types.JSONMap `json:"newValues"`
	Metadata             types.JSONMap `json:"metadata"`
	SessionID            *uuid.UUID    `gorm:"index" json:"sessionId"`            // groups records of one logical operation
	RelatedLedgerEntryID *uuid.UUID    `json:"relatedLedgerEntryId"`              // cross-links split siblings
	BOEVersionID         *uuid.UUID    `gorm:"index" json:"boeVersionId"`
}

func (a AuditRecord) Self() string {
	return "Audit Record"
}

func (a *AuditRecord) BeforeUpdate(_ *gorm.DB) error {
	return ErrAuditRecordImmutable
}

func (a *AuditRecord) BeforeDelete(_ *gorm.DB) error {
	return ErrAuditRecordImmutable
}
