package settings

import (
	"errors"
	"fmt"
)

var (
	// ErrNotRegistered indicates a write to a key that was never registered.
	ErrNotRegistered = errors.New("setting not registered")
	// ErrValidation is wrapped by every ValidationError.
	ErrValidation = errors.New("invalid setting value")
	// ErrConflictingRegistration indicates a key was registered twice with
	// different defaults or persistence.
	ErrConflictingRegistration = errors.New("conflicting setting registration")
	// ErrInvalidKey indicates an empty setting key.
	ErrInvalidKey = errors.New("invalid setting key")
)

// ValidationError reports a value rejected by a setting's validator.
type ValidationError struct {
	Key    string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid value %v for %q: %s", e.Value, e.Key, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
