package models

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrGeneral          = errors.New("an error occurred on the server during your request")
	ErrResourceNotFound = errors.New("there is no")

	// ErrValidationFailed is the base error for all pre-condition violations.
	// The full list of violations is carried by a ValidationError.
	ErrValidationFailed = errors.New("validation failed")

	// ErrConservationViolation is returned when amounts do not add up to the
	// total they are required to preserve.
	ErrConservationViolation = errors.New("amounts do not preserve the original total")

	// ErrConstraintViolation is the base error for operations that would
	// break a structural constraint. The operation is aborted as a whole.
	ErrConstraintViolation = errors.New("the operation violates a constraint")
)

var (
	ErrAllocationLocked           = fmt.Errorf("%w: the allocation is locked and cannot be changed", ErrConstraintViolation)
	ErrAllocationHasLedgerEntries = fmt.Errorf("%w: the allocation has ledger entries depending on it", ErrConstraintViolation)
	ErrAllocationEndsBeforeStart  = fmt.Errorf("%w: the allocation must not end before it starts", ErrConstraintViolation)
	ErrElementAlreadyAllocated    = fmt.Errorf("%w: the element already has an active allocation", ErrConstraintViolation)
	ErrAuditRecordImmutable       = fmt.Errorf("%w: audit records cannot be changed or deleted", ErrConstraintViolation)
	ErrSplitExceedsBaseline       = fmt.Errorf("%w: a split amount exceeds the baseline amount of the entry", ErrConstraintViolation)
	ErrSplitOutsideAllocation     = fmt.Errorf("%w: a split date is outside the allocation date range", ErrConstraintViolation)
	ErrProgramNameNotUnique       = errors.New("the program name is already in use")
)

// ValidationError collects all violations found while validating a request.
// Validation never stops at the first violation.
type ValidationError struct {
	Violations []string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrValidationFailed, strings.Join(e.Violations, "; "))
}

func (e ValidationError) Unwrap() error {
	return ErrValidationFailed
}
