package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a unique constraint was hit.
	ErrAlreadyExists = errors.New("already exists")
	// ErrForbidden indicates the caller may not act on the entity.
	ErrForbidden = errors.New("forbidden")
	// ErrValidation indicates malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidTransition indicates a status change outside the allowed graph.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrProviderUnavailable indicates the payment provider could not be reached.
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	// ErrProviderRejected indicates the payment provider refused the request.
	ErrProviderRejected = errors.New("payment provider rejected request")
	// ErrProviderDisabled indicates the provider is not enabled for the shop or not configured.
	ErrProviderDisabled = errors.New("payment provider disabled")
	// ErrIdempotentNoOp indicates the requested change was already applied.
	ErrIdempotentNoOp = errors.New("already applied")
)

// ValidationError describes bad input. It matches ErrValidation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError is a shorthand for a ValidationError.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// InvalidTransitionError reports the observed state when a conditional status
// write did not apply. It matches ErrInvalidTransition.
type InvalidTransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s %s: cannot move from %s to %s", e.Entity, e.ID, e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// ProviderError carries a provider's rejection message. It matches
// ErrProviderRejected, or ErrProviderUnavailable when Temporary is set.
type ProviderError struct {
	Provider   PaymentProvider
	StatusCode int
	Message    string
	Temporary  bool
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Is(target error) bool {
	if e.Temporary {
		return target == ErrProviderUnavailable
	}
	return target == ErrProviderRejected
}
