package parameter

import (
	"errors"
	"fmt"
)

var (
	// ErrUsage marks construction-time misconfiguration of a parameter.
	ErrUsage = errors.New("parameter usage error")
	// ErrMissingCapability marks a get or set on a parameter that cannot perform it.
	ErrMissingCapability = errors.New("parameter capability missing")
	// ErrInvalidState marks a cache that cannot produce a valid value.
	ErrInvalidState = errors.New("parameter cache in invalid state")
	// ErrValidation marks a value rejected before any I/O took place.
	ErrValidation = errors.New("parameter value rejected")
)

// UsageError reports a conflicting or incomplete parameter configuration.
type UsageError struct {
	Parameter string
	Reason    string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("parameter %s: %s", e.Parameter, e.Reason)
}

// Is allows errors.Is(err, ErrUsage).
func (e *UsageError) Is(target error) bool {
	return target == ErrUsage
}

// CapabilityError reports a get on a parameter without getter or a set on a
// parameter without setter.
type CapabilityError struct {
	Parameter  string
	Capability string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("parameter %s has no %s capability", e.Parameter, e.Capability)
}

// Is allows errors.Is(err, ErrMissingCapability).
func (e *CapabilityError) Is(target error) bool {
	return target == ErrMissingCapability
}

// InvalidStateError is returned by Cache.Get when no valid value can be produced.
type InvalidStateError struct {
	Parameter string
	Reason    string
}

func (e *InvalidStateError) Error() string {
	return e.Reason
}

// Is allows errors.Is(err, ErrInvalidState).
func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

// ValidationError wraps the validator or mapping failure for a rejected value.
type ValidationError struct {
	Parameter string
	Value     interface{}
	Err       error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("parameter %s: invalid value %v: %v", e.Parameter, e.Value, e.Err)
}

// Unwrap exposes the underlying validator error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is allows errors.Is(err, ErrValidation).
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
