package session

import (
	"errors"
	"fmt"
)

// Failure categories. Callers match with errors.Is; the UI layer only
// ever sees the human-readable message from Snapshot().Err.
var (
	// ErrDeviceAcquisition covers permission denial and absent devices.
	ErrDeviceAcquisition = errors.New("device acquisition failed")

	// ErrSessionCreation covers begin-session collaborator failures.
	ErrSessionCreation = errors.New("session creation failed")

	// ErrTransportEstablishment covers both variants failing or timing out.
	ErrTransportEstablishment = errors.New("transport establishment failed")

	// ErrChunkDelivery is observational only: reported, never raised, and
	// never a state transition.
	ErrChunkDelivery = errors.New("chunk delivery failed")

	// ErrCompletion covers acknowledgment timeout or transport error
	// during stop.
	ErrCompletion = errors.New("completion failed")

	// ErrInvalidState rejects an operation outside its legal states.
	ErrInvalidState = errors.New("operation not valid in current state")
)

// categoryError pairs a failure category with its cause so both match
// under errors.Is while the message stays user-facing.
type categoryError struct {
	category error
	message  string
	cause    error
}

func (e *categoryError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *categoryError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.category, e.cause}
	}
	return []error{e.category}
}

func newError(category error, cause error, message string) *categoryError {
	return &categoryError{category: category, message: message, cause: cause}
}
