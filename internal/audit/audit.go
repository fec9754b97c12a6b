// Package audit implements the append-only audit trail for ledger entries.
//
// Audit writes are best-effort: the business mutation is authoritative and a
// failed audit write is logged and swallowed, never propagated. Every write
// happens synchronously within the request that triggered it so the log
// preserves mutation order.
package audit

import (
	"github.com/google/uuid"
	"github.com/ledgerplan/backend/internal/models"
	"github.com/ledgerplan/backend/internal/types"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// numericTolerance is the absolute tolerance below which two numeric values
// are considered equal when diffing entries.
var numericTolerance = decimal.NewFromFloat(0.0001)

// Recorder writes and queries audit records.
type Recorder struct {
	db *gorm.DB
}

// NewRecorder returns a Recorder writing to the given store.
func NewRecorder(db *gorm.DB) *Recorder {
	return &Recorder{db: db}
}

// Record appends an audit record. Failures are logged and swallowed so that
// an audit problem never fails the triggering business operation.
func (r *Recorder) Record(record models.AuditRecord) {
	err := r.db.Create(&record).Error
	if err != nil {
		log.Error().
			Err(err).
			Str("ledgerEntryId", record.LedgerEntryID.String()).
			Str("action", string(record.Action)).
			Msg("audit record could not be written")
	}
}

// RecordCreation appends a Created record for a new entry.
func (r *Recorder) RecordCreation(entry models.LedgerEntry, source models.AuditSource, sessionID *uuid.UUID, relatedID *uuid.UUID) {
	r.Record(models.AuditRecord{
		LedgerEntryID:        entry.ID,
		Action:               models.AuditCreated,
		Source:               source,
		NewValues:            entry.Snapshot(),
		SessionID:            sessionID,
		RelatedLedgerEntryID: relatedID,
		BOEVersionID:         entry.BOEVersionID,
	})
}

// RecordUpdate appends a record for a changed entry. When the tolerance-aware
// diff between the two states finds no actual change, no record is written.
func (r *Recorder) RecordUpdate(before, after models.LedgerEntry, action models.AuditAction, source models.AuditSource, sessionID *uuid.UUID) {
	previous, current, changed := Diff(before.Snapshot(), after.Snapshot())
	if !changed {
		return
	}

	r.Record(models.AuditRecord{
		LedgerEntryID:  after.ID,
		Action:         action,
		Source:         source,
		PreviousValues: previous,
		NewValues:      current,
		SessionID:      sessionID,
		BOEVersionID:   after.BOEVersionID,
	})
}

// RecordDeletion appends a Deleted record. The previous values contain the
// entire entry since the row will no longer exist to diff against.
func (r *Recorder) RecordDeletion(entry models.LedgerEntry, source models.AuditSource, sessionID *uuid.UUID) {
	r.Record(models.AuditRecord{
		LedgerEntryID:  entry.ID,
		Action:         models.AuditDeleted,
		Source:         source,
		PreviousValues: entry.Snapshot(),
		SessionID:      sessionID,
		BOEVersionID:   entry.BOEVersionID,
	})
}

// RecordInvoiceMatch appends a record for a confirmed match (or the removal
// of one) produced by the transaction matching subsystem.
func (r *Recorder) RecordInvoiceMatch(entryID uuid.UUID, matched bool, metadata types.JSONMap) {
	action := models.AuditMatchedToInvoice
	if !matched {
		action = models.AuditUnmatchedFromInvoice
	}

	r.Record(models.AuditRecord{
		LedgerEntryID: entryID,
		Action:        action,
		Source:        models.SourceInvoiceMatch,
		Metadata:      metadata,
	})
}

// ForLedgerEntry returns all audit records for one entry, oldest first.
func (r *Recorder) ForLedgerEntry(id uuid.UUID) ([]models.AuditRecord, error) {
	var records []models.AuditRecord
	err := r.db.Where(&models.AuditRecord{LedgerEntryID: id}).Order("created_at ASC").Find(&records).Error
	return records, err
}

// ForBOEVersion returns all audit records linked to one BOE version.
func (r *Recorder) ForBOEVersion(id uuid.UUID) ([]models.AuditRecord, error) {
	var records []models.AuditRecord
	err := r.db.Where("boe_version_id = ?", id).Order("created_at ASC").Find(&records).Error
	return records, err
}

// ForSession returns all audit records produced by one logical operation.
func (r *Recorder) ForSession(id uuid.UUID) ([]models.AuditRecord, error) {
	var records []models.AuditRecord
	err := r.db.Where("session_id = ?", id).Order("created_at ASC").Find(&records).Error
	return records, err
}

// amountFields are the snapshot fields holding monetary values. Only these
// are compared with the numeric tolerance, text fields that happen to parse
// as numbers are compared strictly.
var amountFields = map[string]bool{
	"baseline_amount": true,
	"planned_amount":  true,
	"actual_amount":   true,
}

// Diff compares two snapshots and returns the changed fields of each.
//
// Amount fields are compared with an absolute tolerance of 0.0001,
// everything else by strict equality. No-op edits therefore produce an
// empty diff and no audit record.
func Diff(before, after types.JSONMap) (previous, current types.JSONMap, changed bool) {
	previous = types.JSONMap{}
	current = types.JSONMap{}

	for field, beforeValue := range before {
		afterValue, ok := after[field]
		if !ok {
			previous[field] = beforeValue
			continue
		}

		if !valuesEqual(field, beforeValue, afterValue) {
			previous[field] = beforeValue
			current[field] = afterValue
		}
	}

	for field, afterValue := range after {
		if _, ok := before[field]; !ok {
			current[field] = afterValue
		}
	}

	return previous, current, len(previous) > 0 || len(current) > 0
}

func valuesEqual(field string, a, b any) bool {
	aString, aOK := a.(string)
	bString, bOK := b.(string)
	if amountFields[field] && aOK && bOK {
		aNumber, errA := decimal.NewFromString(aString)
		bNumber, errB := decimal.NewFromString(bString)
		if errA == nil && errB == nil {
			return aNumber.Sub(bNumber).Abs().LessThan(numericTolerance)
		}
	}

	return a == b
}
