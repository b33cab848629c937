package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/rmerge/internal/ir"
)

// MergeError represents a failed merge.
//
// A MergeError always aborts the surrounding write transaction when the
// caller returns it from the transaction body.
type MergeError struct {
	// Code identifies the error category.
	Code MergeErrorCode

	// Message is a human-readable description.
	Message string

	// ServiceID and PhoneNumber are the identifiers being merged.
	ServiceID   ir.ServiceID
	PhoneNumber ir.E164

	// Err is the underlying error, if any.
	Err error
}

// MergeErrorCode categorizes merge errors.
type MergeErrorCode string

const (
	// ErrCodeStoreFailure indicates a recipient store read or write failed.
	ErrCodeStoreFailure MergeErrorCode = "STORE_FAILURE"

	// ErrCodeObserverFailed indicates a merge observer returned an error.
	ErrCodeObserverFailed MergeErrorCode = "OBSERVER_FAILED"

	// ErrCodeInvariantViolation indicates a collaborator broke a
	// precondition of the merge algorithm.
	ErrCodeInvariantViolation MergeErrorCode = "INVARIANT_VIOLATION"
)

// Error implements the error interface. The phone number is redacted.
func (e *MergeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	switch {
	case !e.ServiceID.IsZero() && e.PhoneNumber != "":
		msg += fmt.Sprintf(" (service_id=%s, phone=%s)", e.ServiceID, e.PhoneNumber.Redacted())
	case !e.ServiceID.IsZero():
		msg += fmt.Sprintf(" (service_id=%s)", e.ServiceID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *MergeError) Unwrap() error {
	return e.Err
}

// IsObserverError returns true if the error was raised by a merge observer.
// Uses errors.As to handle wrapped errors.
func IsObserverError(err error) bool {
	var me *MergeError
	if errors.As(err, &me) {
		return me.Code == ErrCodeObserverFailed
	}
	return false
}

// IsStoreError returns true if the error is a recipient store failure.
// Uses errors.As to handle wrapped errors.
func IsStoreError(err error) bool {
	var me *MergeError
	if errors.As(err, &me) {
		return me.Code == ErrCodeStoreFailure
	}
	return false
}

func newStoreError(op string, serviceID ir.ServiceID, phone ir.E164, err error) *MergeError {
	return &MergeError{
		Code:        ErrCodeStoreFailure,
		Message:     op,
		ServiceID:   serviceID,
		PhoneNumber: phone,
		Err:         err,
	}
}

func newObserverError(hook string, obs Observer, serviceID ir.ServiceID, phone ir.E164, err error) *MergeError {
	return &MergeError{
		Code:        ErrCodeObserverFailed,
		Message:     fmt.Sprintf("%s: %s", observerName(obs), hook),
		ServiceID:   serviceID,
		PhoneNumber: phone,
		Err:         err,
	}
}
