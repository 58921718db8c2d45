package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTenant is returned when Run receives a non-positive tenant id.
	ErrInvalidTenant = errors.New("invalid tenant id")

	// ErrInvalidEntity is returned when the entity filter is not a positive id.
	ErrInvalidEntity = errors.New("invalid entity filter")

	// ErrRunInProgress is returned when Run is called while another Run on
	// the same Engine has not finished.
	ErrRunInProgress = errors.New("run already in progress")
)

// RunError represents an error that aborted a run.
//
// Per-entity outcomes (no rules, excluded, already pending, transaction
// creation failed) are not RunErrors; they are counted in RunResult.
type RunError struct {
	// Code identifies the error category.
	Code RunErrorCode

	// TenantID identifies the tenant being run.
	TenantID int64

	// RunID identifies the run, empty if it never started.
	RunID string

	// Err is the underlying cause.
	Err error
}

// RunErrorCode categorizes run errors.
type RunErrorCode string

const (
	// ErrCodeInvalidTenant indicates a non-positive tenant id.
	ErrCodeInvalidTenant RunErrorCode = "INVALID_TENANT"

	// ErrCodeInvalidArgument indicates bad input data, such as a profile
	// whose type or category is not positive.
	ErrCodeInvalidArgument RunErrorCode = "INVALID_ARGUMENT"

	// ErrCodeStore indicates a failed store read.
	ErrCodeStore RunErrorCode = "STORE_FAILURE"

	// ErrCodeBusy indicates an overlapping run on the same engine.
	ErrCodeBusy RunErrorCode = "RUN_IN_PROGRESS"

	// ErrCodeCanceled indicates the context ended the run.
	ErrCodeCanceled RunErrorCode = "CANCELED"
)

// Error implements the error interface.
func (e *RunError) Error() string {
	if e.RunID != "" {
		return fmt.Sprintf("%s: %v (tenant=%d, run=%s)", e.Code, e.Err, e.TenantID, e.RunID)
	}
	return fmt.Sprintf("%s: %v (tenant=%d)", e.Code, e.Err, e.TenantID)
}

// Unwrap returns the underlying cause.
func (e *RunError) Unwrap() error {
	return e.Err
}

// CodeOf returns the RunErrorCode of err, or "" if err is not a RunError.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) RunErrorCode {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}
