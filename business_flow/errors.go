// Package businessflow contains the feed relevance engine and the boost use cases built around it
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Boost lookup errors
	ErrBoostNotFound      = errors.New("boost not found")
	ErrBoostAccessDenied  = errors.New("boost access denied")
	ErrBoostUUIDRequired  = errors.New("boost UUID is required")
	ErrTargetPostNotFound = errors.New("target post does not exist")
	ErrNoUpdateFields     = errors.New("at least one field must be provided for update")

	// Targeting validation errors
	ErrInvalidTargetKind = errors.New("target kind must be POST or PAGE")
	ErrTargetIDRequired  = errors.New("target id is required")
	ErrInvalidGender     = errors.New("gender must be one of ALL, MALE, FEMALE")
	ErrNegativeAge       = errors.New("age bounds must be non-negative")
	ErrAgeRangeInverted  = errors.New("age_min cannot be greater than age_max")
	ErrNegativeBudget    = errors.New("budget must be non-negative")
	ErrEndBeforeStart    = errors.New("end date cannot be before start date")
	ErrDatesRequired     = errors.New("start and end dates are required")

	// Lifecycle guard errors
	ErrUnknownBoostAction   = errors.New("unknown boost action")
	ErrStatusMustBePaused   = errors.New("boost must be PAUSED")
	ErrStatusMustBeActive   = errors.New("boost must be ACTIVE")
	ErrBoostCompleted       = errors.New("boost is COMPLETED")
	ErrPaymentTokenRequired = errors.New("payment token is required")
	ErrPaymentRejected      = errors.New("payment was rejected")
	ErrInsufficientPayment  = errors.New("tendered amount is less than budget")
	ErrConcurrentTransition = errors.New("boost status changed concurrently")

	// Feed errors
	ErrViewerNotFound  = errors.New("viewer not found")
	ErrInvalidPage     = errors.New("page must be at least 1")
	ErrInvalidPageSize = errors.New("page size must be between 1 and 50")
)

// Guard codes reported by ConflictError
const (
	GuardStatusMustBePaused   = "STATUS_MUST_BE_PAUSED"
	GuardStatusMustBeActive   = "STATUS_MUST_BE_ACTIVE"
	GuardBoostCompleted       = "BOOST_COMPLETED"
	GuardPaymentTokenRequired = "PAYMENT_TOKEN_REQUIRED"
	GuardPaymentRejected      = "PAYMENT_REJECTED"
	GuardInsufficientPayment  = "INSUFFICIENT_PAYMENT"
	GuardConcurrentTransition = "CONCURRENT_TRANSITION"
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError reports malformed boost input. Nothing is persisted when it is returned.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func NewValidationError(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

// ConflictError reports a lifecycle transition whose guard failed.
// The boost is left unchanged.
type ConflictError struct {
	Guard string
	Err   error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("transition rejected (%s): %v", e.Guard, e.Err)
}

func (e *ConflictError) Unwrap() error {
	return e.Err
}

func NewConflictError(guard string, err error) *ConflictError {
	return &ConflictError{Guard: guard, Err: err}
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsConflictError(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// ConflictGuard returns the failed guard code, or empty when err is not a ConflictError
func ConflictGuard(err error) string {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce.Guard
	}
	return ""
}

func IsBoostNotFound(err error) bool {
	return errors.Is(err, ErrBoostNotFound)
}

func IsBoostAccessDenied(err error) bool {
	return errors.Is(err, ErrBoostAccessDenied)
}

func IsViewerNotFound(err error) bool {
	return errors.Is(err, ErrViewerNotFound)
}

func IsTargetPostNotFound(err error) bool {
	return errors.Is(err, ErrTargetPostNotFound)
}
