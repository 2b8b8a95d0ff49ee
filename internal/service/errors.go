package service

import (
	"errors"
	"fmt"
	"strings"

	"homeserve/internal/models"
)

var (
	ErrNotFound             = errors.New("booking not found")
	ErrForbidden            = errors.New("actor is not permitted for this transition")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrOtpNotActive         = errors.New("no active completion code")
	ErrOtpExpired           = errors.New("completion code expired")
	ErrOtpAttemptsExhausted = errors.New("completion code attempts exhausted")
	ErrInvalidOtp           = errors.New("completion code mismatch")
	ErrOtpRequestLimited    = errors.New("too many completion code requests")
	ErrConflict             = errors.New("booking was modified concurrently, retry with a fresh copy")
	ErrValidation           = errors.New("validation failed")
)

// TransitionError reports a structurally illegal edge together with the
// successors that would have been accepted from the current status.
type TransitionError struct {
	BookingID string
	From      string
	To        string
	Allowed   []string
}

func (e *TransitionError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("booking %s: no transition from %s to %s", e.BookingID, e.From, e.To)
	}
	return fmt.Sprintf("booking %s: no transition from %s to %s (allowed: %s)",
		e.BookingID, e.From, e.To, strings.Join(e.Allowed, ", "))
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// ForbiddenError reports an actor that lacks permission for a valid edge.
type ForbiddenError struct {
	BookingID string
	From      string
	To        string
	Actor     models.Actor
	Required  string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("booking %s: %s may not transition %s to %s (requires %s)",
		e.BookingID, e.Actor, e.From, e.To, e.Required)
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// NotFoundError reports a missing booking or a missing active completion code.
type NotFoundError struct {
	BookingID string
	Status    string
	Reason    error
}

func (e *NotFoundError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("booking %s (status %s): %v", e.BookingID, e.Status, e.Reason)
	}
	return fmt.Sprintf("booking %s: %v", e.BookingID, e.Reason)
}

func (e *NotFoundError) Unwrap() error { return e.Reason }

// InvalidOtpError carries how many attempts remain after a mismatch.
type InvalidOtpError struct {
	BookingID         string
	AttemptsRemaining int
}

func (e *InvalidOtpError) Error() string {
	return fmt.Sprintf("booking %s: completion code mismatch, %d attempts remaining",
		e.BookingID, e.AttemptsRemaining)
}

func (e *InvalidOtpError) Unwrap() error { return ErrInvalidOtp }

// ConflictError reports a lost version race; the caller retries the whole
// operation against a freshly loaded booking.
type ConflictError struct {
	BookingID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("booking %s: %v", e.BookingID, ErrConflict)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }
