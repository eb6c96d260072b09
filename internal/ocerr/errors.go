// Package ocerr defines the typed error taxonomy shared across OpenChime's
// subsystems. Each kind wraps an underlying cause while exposing a short,
// secret-free message safe to show a user or write to a log line.
package ocerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the taxonomy's fixed categories.
type Kind string

const (
	ConfigInvalid       Kind = "config_invalid"
	KeystoreUnavailable Kind = "keystore_unavailable"
	DecryptionFailed    Kind = "decryption_failed"
	DatabaseError       Kind = "database_error"
	MigrationFailed     Kind = "migration_failed"
	ProviderTransient   Kind = "provider_transient"
	ProviderFatal       Kind = "provider_fatal"
	CircuitOpen         Kind = "circuit_open"
	AudioUnavailable    Kind = "audio_unavailable"
)

// Error is a typed, wrapped error carrying a user-safe message.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an Error of the given kind with no underlying cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an Error of the given kind around a cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Fatal reports whether kind is always fatal at startup per the
// propagation policy: ConfigInvalid, KeystoreUnavailable, MigrationFailed.
func Fatal(kind Kind) bool {
	switch kind {
	case ConfigInvalid, KeystoreUnavailable, MigrationFailed:
		return true
	default:
		return false
	}
}

// Retryable reports whether kind represents a condition the caller
// should retry on a later cycle rather than surface to the user.
func Retryable(kind Kind) bool {
	switch kind {
	case ProviderTransient, CircuitOpen:
		return true
	default:
		return false
	}
}
