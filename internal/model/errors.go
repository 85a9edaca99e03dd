package model

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the core. Callers match them with errors.Is.
var (
	// ErrNotFound covers both missing rows and rows excluded by an access
	// predicate; the two are indistinguishable on purpose.
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrInvalidRange = errors.New("invalid range")
	ErrInvalidRole  = errors.New("invalid role")
	ErrUpstream     = errors.New("processing failed")
)

// UpstreamError is returned when the remote grading assistant fails or times out.
type UpstreamError struct {
	Op      string
	Status  int
	Payload string
	Err     error
}

func (e *UpstreamError) Error() string {
	msg := e.Payload
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = "remote service error"
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d): %s", ErrUpstream, e.Op, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s: %s", ErrUpstream, e.Op, msg)
}

// Is makes errors.Is(err, ErrUpstream) hold for every UpstreamError.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}
