// Package booking orchestrates time-boxed reservations of dormitory
// resources: creation with conflict and daily-limit checks, the status
// state machine, and the key pickup/return coupling with the custody
// engine.
package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dorm-booking-backend/config"
	"dorm-booking-backend/internal/alloc"
	"dorm-booking-backend/internal/availability"
	"dorm-booking-backend/internal/custody"
	"dorm-booking-backend/internal/directory"
	"dorm-booking-backend/internal/model"
	"dorm-booking-backend/internal/store"
)

// Engine handles reservation commands. Hold creation is serialized per
// resource by a guard around the store's locked transaction, so two
// concurrent overlapping requests resolve to exactly one winner.
type Engine struct {
	store   store.Store
	avail   *availability.Index
	custody *custody.Engine
	users   directory.Directory // nil skips the existence check

	autoConfirm    bool
	dailyLimit     int
	noShowGrace    time.Duration
	defaultKeyLoan time.Duration
	loc            *time.Location

	guard *alloc.Guard
	now   func() time.Time
}

// NewEngine wires a booking engine from its collaborators and policy.
func NewEngine(s store.Store, avail *availability.Index, cust *custody.Engine, users directory.Directory, cfg *config.BookingConfig, loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{
		store:          s,
		avail:          avail,
		custody:        cust,
		users:          users,
		autoConfirm:    cfg.AutoConfirm,
		dailyLimit:     cfg.DailyLimitPerResource,
		noShowGrace:    cfg.NoShowGrace,
		defaultKeyLoan: time.Duration(cfg.DefaultKeyLoanHours) * time.Hour,
		loc:            loc,
		guard:          alloc.NewGuard(),
		now:            time.Now,
	}
}

// CreateReservation books the resource for [start, end). It fails with
// ErrConflict when an active reservation overlaps, ErrLimitExceeded when
// the user's daily cap for the resource is hit, and ErrResourceUnavailable
// when the resource is deactivated.
func (e *Engine) CreateReservation(ctx context.Context, userID string, resourceID int64, start, end time.Time) (*model.Reservation, error) {
	w, err := alloc.NewWindow(start, end)
	if err != nil {
		return nil, err
	}

	if e.users != nil {
		if _, err := e.users.Lookup(ctx, userID); err != nil {
			return nil, err
		}
	}

	status := model.ReservationPending
	if e.autoConfirm {
		status = model.ReservationConfirmed
	}
	r := &model.Reservation{
		ID:         uuid.NewString(),
		ResourceID: resourceID,
		UserID:     userID,
		StartTime:  w.Start,
		EndTime:    w.End,
		Status:     status,
	}

	dayStart, dayEnd := alloc.DayBounds(w.Start, e.loc)

	unlock := e.guard.Lock(fmt.Sprintf("resource/%d", resourceID))
	defer unlock()

	if err := e.store.CreateReservation(ctx, r, e.dailyLimit, dayStart, dayEnd); err != nil {
		return nil, err
	}
	return r, nil
}

// Confirm moves a pending reservation to confirmed.
func (e *Engine) Confirm(ctx context.Context, id string) (*model.Reservation, error) {
	return e.transition(ctx, id, model.ReservationConfirmed, nil)
}

// Cancel voids a pending or confirmed reservation. A reservation whose key
// was picked up but not yet returned cannot be cancelled.
func (e *Engine) Cancel(ctx context.Context, id string) (*model.Reservation, error) {
	return e.transition(ctx, id, model.ReservationCancelled, func(r *model.Reservation) error {
		if r.KeyPickedUp && !r.KeyReturned {
			return fmt.Errorf("reservation %s has an unreturned key: %w", r.ID, alloc.ErrKeyOutstanding)
		}
		return nil
	})
}

// CheckIn marks the holder as present. Only confirmed reservations at or
// after their start time can check in.
func (e *Engine) CheckIn(ctx context.Context, id string) (*model.Reservation, error) {
	now := e.now()
	return e.transition(ctx, id, model.ReservationCheckedIn, func(r *model.Reservation) error {
		if now.Before(r.StartTime) {
			return fmt.Errorf("reservation %s starts at %s: %w",
				r.ID, r.StartTime.Format(time.RFC3339), alloc.ErrInvalidTransition)
		}
		return nil
	})
}

// CheckOut completes a checked-in reservation. If the resource requires a
// key and one was picked up, it must be returned first.
func (e *Engine) CheckOut(ctx context.Context, id string) (*model.Reservation, error) {
	return e.transition(ctx, id, model.ReservationCompleted, func(r *model.Reservation) error {
		if r.Resource.RequiresKey && r.KeyPickedUp && !r.KeyReturned {
			return fmt.Errorf("reservation %s has an unreturned key: %w", r.ID, alloc.ErrKeyOutstanding)
		}
		return nil
	})
}

// CompleteReservation is CheckOut under its command name.
func (e *Engine) CompleteReservation(ctx context.Context, id string) (*model.Reservation, error) {
	return e.CheckOut(ctx, id)
}

// MarkNoShow voids a confirmed reservation whose holder never checked in.
// Allowed only once the start time is more than the grace period in the
// past.
func (e *Engine) MarkNoShow(ctx context.Context, id string) (*model.Reservation, error) {
	now := e.now()
	return e.transition(ctx, id, model.ReservationNoShow, func(r *model.Reservation) error {
		if now.Before(r.StartTime.Add(e.noShowGrace)) {
			return fmt.Errorf("reservation %s is still within its grace period: %w", r.ID, alloc.ErrInvalidTransition)
		}
		return nil
	})
}

// transition applies the state machine plus an optional per-command check
// inside the store's row-locked update.
func (e *Engine) transition(ctx context.Context, id string, to model.ReservationStatus, check func(*model.Reservation) error) (*model.Reservation, error) {
	return e.store.UpdateReservation(ctx, id, func(r *model.Reservation) error {
		if !r.Status.CanTransition(to) {
			return &alloc.TransitionError{
				Entity: "reservation",
				ID:     r.ID,
				From:   string(r.Status),
				To:     string(to),
			}
		}
		if check != nil {
			if err := check(r); err != nil {
				return err
			}
		}
		r.Status = to
		return nil
	})
}

// PickUpKey couples the reservation to a custody record: the key is issued
// to the reservation's holder through the custody engine and the pickup
// flag is set. The resource must require a key and the reservation must be
// confirmed or checked in.
func (e *Engine) PickUpKey(ctx context.Context, id string, keyID int64) (*model.Reservation, error) {
	r, err := e.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.Resource.RequiresKey {
		return nil, fmt.Errorf("resource %d does not use a key: %w", r.ResourceID, alloc.ErrResourceUnavailable)
	}
	if r.Status != model.ReservationConfirmed && r.Status != model.ReservationCheckedIn {
		return nil, &alloc.TransitionError{
			Entity: "reservation",
			ID:     r.ID,
			From:   string(r.Status),
			To:     "key pickup",
		}
	}
	if r.KeyPickedUp {
		return r, nil
	}

	// The key comes back no later than the reservation ends, bounded by
	// the default loan period.
	expected := r.EndTime
	if bound := e.now().Add(e.defaultKeyLoan); bound.Before(expected) {
		expected = bound
	}
	assignment, err := e.custody.IssueKey(ctx, r.UserID, keyID, &expected)
	if err != nil {
		return nil, err
	}

	return e.store.UpdateReservation(ctx, id, func(r *model.Reservation) error {
		r.KeyPickedUp = true
		r.KeyAssignmentID = &assignment.ID
		return nil
	})
}

// ReturnKey closes the reservation's custody record through the custody
// engine and sets the return flag. Returning before pickup is an error.
func (e *Engine) ReturnKey(ctx context.Context, id string) (*model.Reservation, error) {
	r, err := e.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if !r.KeyPickedUp || r.KeyAssignmentID == nil {
		return nil, fmt.Errorf("reservation %s has no key picked up: %w", r.ID, alloc.ErrInvalidTransition)
	}
	if r.KeyReturned {
		return r, nil
	}

	if _, err := e.custody.Return(ctx, *r.KeyAssignmentID); err != nil {
		return nil, err
	}

	return e.store.UpdateReservation(ctx, id, func(r *model.Reservation) error {
		r.KeyReturned = true
		return nil
	})
}

// Overdue lists checked-in reservations past their end time at now,
// whether or not the sweeper has already flagged them. Overdue
// reservations stay checked in until an explicit checkout.
func (e *Engine) Overdue(ctx context.Context, now time.Time) ([]model.Reservation, error) {
	return e.store.OverdueReservations(ctx, now, false)
}

// Availability exposes the engine's index for query paths.
func (e *Engine) Availability() *availability.Index {
	return e.avail
}
