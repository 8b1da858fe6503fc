package llm

import (
	"errors"
	"strings"
)

// Error represents a provider-neutral classified LLM failure.
type Error struct {
	Type        ErrorType
	Message     string
	StatusCode  int
	ProviderErr error // Original provider-specific error
}

// ErrorType represents the failure classification used by the plan runner to
// decide retry-vs-fallback behavior.
type ErrorType string

const (
	ErrorTypeRateLimited   ErrorType = "rate_limited"
	ErrorTypeQuotaExceeded ErrorType = "quota_exceeded"
	ErrorTypeInvalidInput  ErrorType = "invalid_input"
	ErrorTypeUnavailable   ErrorType = "unavailable"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.ProviderErr != nil {
		return e.Message + ": " + e.ProviderErr.Error()
	}
	return e.Message
}

// Unwrap returns the underlying provider error.
func (e *Error) Unwrap() error {
	return e.ProviderErr
}

// Classify derives a classified error from an opaque backend failure.
// Structured signals win: an error already carrying a classification passes
// through unchanged, so classifying twice yields the same variant. Otherwise
// the free-text description is scanned, in priority order, for rate-limit,
// quota, and invalid-input indicators; anything unrecognized is treated as
// provider unavailability.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests"):
		return NewRateLimitedError(err.Error(), err)
	case strings.Contains(msg, "quota") || strings.Contains(msg, "exceeded"):
		return NewQuotaExceededError(err.Error(), err)
	case strings.Contains(msg, "invalid") || strings.Contains(msg, "bad request"):
		return NewInvalidInputError(err.Error(), err)
	default:
		return NewUnavailableError(err.Error(), err)
	}
}

// IsRateLimited checks if an error classifies as a rate limit failure.
func IsRateLimited(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == ErrorTypeRateLimited
	}
	return false
}

// IsQuotaExceeded checks if an error classifies as a quota failure.
func IsQuotaExceeded(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == ErrorTypeQuotaExceeded
	}
	return false
}

// IsInvalidInput checks if an error classifies as an invalid-input failure.
func IsInvalidInput(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type == ErrorTypeInvalidInput
	}
	return false
}

// NewRateLimitedError creates a new rate limit error.
func NewRateLimitedError(message string, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeRateLimited,
		Message:     message,
		ProviderErr: providerErr,
	}
}

// NewQuotaExceededError creates a new quota exceeded error.
func NewQuotaExceededError(message string, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeQuotaExceeded,
		Message:     message,
		ProviderErr: providerErr,
	}
}

// NewInvalidInputError creates a new invalid input error.
func NewInvalidInputError(message string, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeInvalidInput,
		Message:     message,
		ProviderErr: providerErr,
	}
}

// NewUnavailableError creates a new unavailability error.
func NewUnavailableError(message string, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeUnavailable,
		Message:     message,
		ProviderErr: providerErr,
	}
}
