package common

import (
	"errors"
	"fmt"
)

// Domain errors - use errors.Is() to check
var (
	// Generic errors
	ErrInternal         = errors.New("internal error")
	ErrNotFound         = errors.New("not found")
	ErrStoreUnavailable = errors.New("store unavailable")

	// Resource-specific errors
	ErrJobNotFound      = fmt.Errorf("job %w", ErrNotFound)
	ErrTripNotFound     = fmt.Errorf("trip %w", ErrNotFound)
	ErrArtifactNotFound = fmt.Errorf("artifact %w", ErrNotFound)

	// Job lifecycle errors
	ErrInvalidParameters = errors.New("invalid parameters")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrJobNotFinished    = errors.New("job is not finished yet")
	ErrComputation       = errors.New("computation failure")
)

// ValidationError represents a validation error with field details
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is implements errors.Is for ValidationError
func (e ValidationError) Is(target error) bool {
	return target == ErrInvalidParameters
}

// WrapNotFound wraps an error as a not found error with context
func WrapNotFound(resource string, err error) error {
	return fmt.Errorf("%s: %w", resource, errors.Join(ErrNotFound, err))
}

// WrapInternal wraps an error as an internal error with context
func WrapInternal(operation string, err error) error {
	return fmt.Errorf("%s: %w", operation, errors.Join(ErrInternal, err))
}

// WrapUnavailable marks a backing store failure
func WrapUnavailable(operation string, err error) error {
	return fmt.Errorf("%s: %w", operation, errors.Join(ErrStoreUnavailable, err))
}

// WrapComputation marks a failure inside the aggregation pipeline
func WrapComputation(step string, err error) error {
	return fmt.Errorf("%s: %w", step, errors.Join(ErrComputation, err))
}

// IsNotFound checks if error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation checks if error is an invalid parameters error
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidParameters)
}

// IsUnavailable checks if error is a store availability error
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}

// IsNotFinished checks if the job has not reached a terminal status yet
func IsNotFinished(err error) bool {
	return errors.Is(err, ErrJobNotFinished)
}
