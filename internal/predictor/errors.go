package predictor

import (
	"errors"
	"fmt"
)

// ErrorCategory is the normalized failure taxonomy for predictor calls.
type ErrorCategory string

const (
	ErrorTimeout        ErrorCategory = "timeout"
	ErrorBadData        ErrorCategory = "bad_data"
	ErrorAuthentication ErrorCategory = "authentication"
	ErrorOutage         ErrorCategory = "outage"
	ErrorRejected       ErrorCategory = "rejected"
	ErrorRateLimited    ErrorCategory = "rate_limited"
	ErrorInternal       ErrorCategory = "internal"
)

// Error wraps a predictor failure with its category.
type Error struct {
	Category   ErrorCategory
	Predictor  string
	Message    string
	Underlying error
	Retryable  bool
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("predictor %s [%s]: %s: %v", e.Predictor, e.Category, e.Message, e.Underlying)
	}
	return fmt.Sprintf("predictor %s [%s]: %s", e.Predictor, e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Underlying
}

// NewError builds a categorized error. Timeouts, outages and rate limiting
// are retryable; everything else is not.
func NewError(category ErrorCategory, predictorName, message string, underlying error) *Error {
	return &Error{
		Category:   category,
		Predictor:  predictorName,
		Message:    message,
		Underlying: underlying,
		Retryable:  category == ErrorTimeout || category == ErrorOutage || category == ErrorRateLimited,
	}
}

func IsRetryable(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

func GetCategory(err error) ErrorCategory {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ErrorInternal
}

// ErrNotConfigured is returned by Disabled predictors.
var ErrNotConfigured = errors.New("predictor not configured")
