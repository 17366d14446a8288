// Package xerrors defines the error taxonomy shared by the pipeline,
// queue, and API layers. Every failure that crosses a phase or job
// boundary is classified into one of these kinds so that callers can
// decide retry vs. terminal without string-matching messages.
package xerrors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure by how the caller should react to it, not
// by what produced it.
type Kind string

const (
	// ConfigError is fatal at startup or build-start; never retried.
	ConfigError Kind = "config_error"
	// TransientUpstream is retried by the queue with exponential backoff.
	TransientUpstream Kind = "transient_upstream"
	// DeterministicPhaseFailure is logged at warn; the phase continues
	// with the original artifact passed through unchanged.
	DeterministicPhaseFailure Kind = "deterministic_phase_failure"
	// CorruptArtifact is fatal to the build; no retry.
	CorruptArtifact Kind = "corrupt_artifact"
	// ConcurrencyConflict surfaces as 409 with no state mutation.
	ConcurrencyConflict Kind = "concurrency_conflict"
	// CancelRequested is cooperative cancellation, not a true error.
	CancelRequested Kind = "cancel_requested"
)

// PhaseError carries the sub-phase context a user needs to diagnose a
// build failure. It implements error and Unwrap.
type PhaseError struct {
	Kind      Kind
	Phase     string
	Step      string
	Message   string
	Retryable bool
	Cause     error
}

func (e *PhaseError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("%s/%s: %s", e.Phase, e.Step, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Phase, e.Message)
}

func (e *PhaseError) Unwrap() error { return e.Cause }

// New builds a PhaseError of the given kind. Retryable defaults to
// whether the kind is TransientUpstream.
func New(kind Kind, phase, step, message string, cause error) *PhaseError {
	return &PhaseError{
		Kind:      kind,
		Phase:     phase,
		Step:      step,
		Message:   message,
		Retryable: kind == TransientUpstream,
		Cause:     cause,
	}
}

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *PhaseError, otherwise returns "" (unclassified).
func KindOf(err error) Kind {
	var pe *PhaseError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

// IsRetryable reports whether the queue should re-enqueue the job that
// produced err.
func IsRetryable(err error) bool {
	var pe *PhaseError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// ErrAlreadyInProgress is returned by Acquire-slot when a non-terminal
// build or agent run already owns the site.
var ErrAlreadyInProgress = New(ConcurrencyConflict, "", "", "AlreadyInProgress", nil)

// ErrNotFound is a generic not-found sentinel for store lookups.
var ErrNotFound = errors.New("not found")
