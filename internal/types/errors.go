package types

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a job-level failure.
type ErrorKind string

const (
	ErrKindBadInput          ErrorKind = "bad_input"
	ErrKindBudgetExceeded    ErrorKind = "budget_exceeded"
	ErrKindUpstreamTransient ErrorKind = "upstream_transient"
	ErrKindUpstreamPermanent ErrorKind = "upstream_permanent"
	ErrKindContract          ErrorKind = "contract"
	ErrKindVerify            ErrorKind = "verify_unresolvable"
	ErrKindSynthesize        ErrorKind = "synthesize_degraded"
	ErrKindCancelled         ErrorKind = "cancelled"
	ErrKindInternal          ErrorKind = "internal"
)

// JobError is the structured error surfaced on a failed job.
type JobError struct {
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
	Retriable bool      `json:"retriable"`
}

func (e *JobError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// NewJobError builds a JobError with the retriable bit derived from kind.
func NewJobError(kind ErrorKind, msg string) *JobError {
	retriable := false
	switch kind {
	case ErrKindUpstreamTransient, ErrKindContract:
		retriable = true
	}
	return &JobError{Kind: kind, Message: msg, Retriable: retriable}
}

// KindOf extracts the error kind from err, walking wrapped errors.
// Unclassified errors report ErrKindInternal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var je *JobError
	if errors.As(err, &je) {
		return je.Kind
	}
	switch {
	case errors.Is(err, ErrMalformedContract):
		return ErrKindContract
	case errors.Is(err, ErrBudgetExceeded):
		return ErrKindBudgetExceeded
	case errors.Is(err, ErrUpstreamTransient):
		return ErrKindUpstreamTransient
	case errors.Is(err, ErrUpstreamPermanent):
		return ErrKindUpstreamPermanent
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrKindCancelled
	}
	return ErrKindInternal
}

// Sentinel errors shared across gateways.
var (
	// ErrMalformedContract is returned by the contract codec after the repair
	// pipeline is exhausted.
	ErrMalformedContract = errors.New("malformed contract")

	// ErrBudgetExceeded is returned when a budget gate denies an operation.
	ErrBudgetExceeded = errors.New("budget exceeded")

	// ErrUpstreamTransient marks retriable transport faults (network, 5xx, 429).
	ErrUpstreamTransient = errors.New("upstream transient failure")

	// ErrUpstreamPermanent marks non-retriable upstream faults (4xx, auth).
	ErrUpstreamPermanent = errors.New("upstream permanent failure")

	// ErrNotFound is returned for unknown papers, jobs, or episodes.
	ErrNotFound = errors.New("not found")
)
