package providers

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCategory classifies a collaborator failure. Timeouts, outages and
// rate limiting are retryable.
type ErrorCategory string

const (
	ErrorTimeout        ErrorCategory = "timeout"
	ErrorBadData        ErrorCategory = "bad_data"
	ErrorProviderOutage ErrorCategory = "provider_outage"
	ErrorNotFound       ErrorCategory = "not_found"
	ErrorRateLimited    ErrorCategory = "rate_limited"
	ErrorInternal       ErrorCategory = "internal"
)

// ProviderError is a categorised failure of one named collaborator.
type ProviderError struct {
	Category   ErrorCategory
	ProviderID string
	Message    string
	Underlying error
	Retryable  bool
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %s (%s)", e.ProviderID, e.Message, e.Category)
	if e.Underlying != nil {
		msg += ": " + e.Underlying.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error {
	return e.Underlying
}

func NewProviderError(category ErrorCategory, providerID, message string, underlying error) *ProviderError {
	return &ProviderError{
		Category:   category,
		ProviderID: providerID,
		Message:    message,
		Underlying: underlying,
		Retryable:  category == ErrorTimeout || category == ErrorProviderOutage || category == ErrorRateLimited,
	}
}

// Normalize categorizes an arbitrary collaborator error. Context deadline
// errors become ErrorTimeout; already-normalized errors pass through.
func Normalize(providerID string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewProviderError(ErrorTimeout, providerID, "deadline exceeded", err)
	}
	return NewProviderError(ErrorInternal, providerID, "call failed", err)
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error.
func GetCategory(err error) ErrorCategory {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Category
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTimeout
	}
	return ErrorInternal
}

// IsTimeout reports whether err is a collaborator timeout.
func IsTimeout(err error) bool {
	return err != nil && GetCategory(err) == ErrorTimeout
}
