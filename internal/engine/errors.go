package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/blockcfg/internal/ir"
)

// Error represents a failure while applying a configuration change.
//
// Error includes structured fields so callers can tell fatal failures
// (referential integrity, transaction) from local ones (validation).
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// UID identifies the block type, group or field concerned.
	UID string

	// Validation holds per-field problems for ErrCodeValidation.
	Validation []ir.ValidationError

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeNotFound indicates an unknown id, handle or uid.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeReferentialIntegrity indicates a change referenced a field or
	// group that does not exist.
	ErrCodeReferentialIntegrity ErrorCode = "REFERENTIAL_INTEGRITY"

	// ErrCodeValidation indicates a block type or group failed validation.
	ErrCodeValidation ErrorCode = "VALIDATION"

	// ErrCodeTransactionFailed indicates a multi-step write failed and was
	// rolled back.
	ErrCodeTransactionFailed ErrorCode = "TRANSACTION_FAILED"
)

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)
	if e.UID != "" {
		fmt.Fprintf(&b, " (uid=%s)", e.UID)
	}
	for _, v := range e.Validation {
		fmt.Fprintf(&b, "; %s", v.Error())
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsNotFound returns true if the error is a not-found error.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsReferentialIntegrity returns true if a change referenced a missing
// field or group.
func IsReferentialIntegrity(err error) bool {
	return hasCode(err, ErrCodeReferentialIntegrity)
}

// IsValidation returns true if the error carries validation problems.
func IsValidation(err error) bool {
	return hasCode(err, ErrCodeValidation)
}

// IsTransactionFailure returns true if a write was rolled back.
func IsTransactionFailure(err error) bool {
	return hasCode(err, ErrCodeTransactionFailed)
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// NewNotFoundError creates an Error for an unknown entity.
func NewNotFoundError(kind, key string) *Error {
	return &Error{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("no %s with %s", kind, key),
	}
}

func newReferentialError(uid, format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeReferentialIntegrity,
		Message: fmt.Sprintf(format, args...),
		UID:     uid,
	}
}

func newValidationError(uid string, errs []ir.ValidationError) *Error {
	return &Error{
		Code:       ErrCodeValidation,
		Message:    fmt.Sprintf("%d validation error(s)", len(errs)),
		UID:        uid,
		Validation: errs,
	}
}

// asTransactionError leaves engine errors untouched and wraps everything
// else as a transaction failure.
func asTransactionError(uid, op string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{
		Code:    ErrCodeTransactionFailed,
		Message: op + " rolled back",
		UID:     uid,
		Err:     err,
	}
}
