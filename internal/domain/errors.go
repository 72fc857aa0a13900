package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("resource not found")
	ErrRunAlreadyActive    = errors.New("a reconciliation run is already in progress")
	ErrNoActiveRun         = errors.New("no reconciliation run is active")
	ErrCacheSealed         = errors.New("invoice cache is sealed")
	ErrCacheNotSealed      = errors.New("invoice cache has not finished loading")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrAlreadyWritten      = errors.New("payment already written for this advice and invoice")
	ErrInvoiceAlreadyPaid  = errors.New("invoice is already marked paid")
	ErrNotWriteEligible    = errors.New("result is not eligible for write-back")
)

// InvalidStateError reports an illegal write-back state transition.
type InvalidStateError struct {
	From WriteBackState
	To   WriteBackState
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("invalid write-back transition from %s to %s", e.From, e.To)
}

// WriteError wraps a failed external ledger write, classified as transient
// or permanent. Transient failures are retried; permanent ones are not.
type WriteError struct {
	StatusCode int
	Transient  bool
	Err        error
}

func (e *WriteError) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("ledger write failed (%s, status %d): %v", kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("ledger write failed (%s): %v", kind, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// IsTransientWriteError reports whether err is a WriteError marked transient.
func IsTransientWriteError(err error) bool {
	var we *WriteError
	return errors.As(err, &we) && we.Transient
}
