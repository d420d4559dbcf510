// Package alloc holds the primitives shared by the booking and custody
// engines: time windows, the error taxonomy, and per-entity serialization.
package alloc

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrConflict means an overlapping active reservation already holds the
	// resource for part of the requested window.
	ErrConflict = errors.New("reservation conflict")
	// ErrKeyUnavailable means the key is not free to issue.
	ErrKeyUnavailable = errors.New("key unavailable")
	// ErrLimitExceeded means the per-user daily booking cap was hit.
	ErrLimitExceeded = errors.New("daily booking limit exceeded")
	// ErrInvalidTransition means the requested status change is not in the
	// entity's transition table.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrResourceUnavailable means the resource or key is deactivated.
	ErrResourceUnavailable = errors.New("resource unavailable")
	// ErrKeyOutstanding means a picked-up key has not been returned yet.
	ErrKeyOutstanding = errors.New("key outstanding")
	// ErrNotFound means the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidWindow means the requested time window is malformed.
	ErrInvalidWindow = errors.New("invalid time window")
	// ErrStorage wraps failures of the durable store. Reads are safe to
	// retry; writes only when the caller can guarantee idempotency.
	ErrStorage = errors.New("storage failure")
)

// ConflictError carries enough context for the caller to pick a different
// window: which resource, which window was asked for, and which reservations
// are in the way.
type ConflictError struct {
	ResourceID  int64
	Window      TimeWindow
	Conflicting []string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("resource %d is held during %s by reservation(s) %s",
		e.ResourceID, e.Window, strings.Join(e.Conflicting, ", "))
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// LimitError reports a hit daily cap.
type LimitError struct {
	UserID     string
	ResourceID int64
	Day        time.Time
	Limit      int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("user %s already has %d reservation(s) for resource %d on %s",
		e.UserID, e.Limit, e.ResourceID, e.Day.Format("2006-01-02"))
}

func (e *LimitError) Unwrap() error { return ErrLimitExceeded }

// TransitionError reports an illegal state-machine move.
type TransitionError struct {
	Entity string
	ID     string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s %s cannot move from %q to %q", e.Entity, e.ID, e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }
