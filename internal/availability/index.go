// Package availability answers "is this resource free for this window"
// against the active reservations on record. Reads here are advisory: the
// authoritative check happens again inside the hold-creation transaction.
package availability

import (
	"context"
	"time"

	"dorm-booking-backend/internal/alloc"
	"dorm-booking-backend/internal/model"
)

// Reader is the slice of the store the index needs.
type Reader interface {
	ConflictingReservations(ctx context.Context, resourceID int64, w alloc.TimeWindow) ([]model.Reservation, error)
	CountUserReservationsForDay(ctx context.Context, userID string, resourceID int64, dayStart, dayEnd time.Time) (int64, error)
}

// Index answers availability queries over the reservation table.
type Index struct {
	reader Reader
	loc    *time.Location
}

// New creates an index. loc fixes the calendar used for daily buckets.
func New(r Reader, loc *time.Location) *Index {
	if loc == nil {
		loc = time.Local
	}
	return &Index{reader: r, loc: loc}
}

// IsAvailable reports whether no active reservation overlaps w on the
// resource.
func (ix *Index) IsAvailable(ctx context.Context, resourceID int64, w alloc.TimeWindow) (bool, error) {
	conflicts, err := ix.reader.ConflictingReservations(ctx, resourceID, w)
	if err != nil {
		return false, err
	}
	return len(conflicts) == 0, nil
}

// Conflicts lists the active reservations standing in the way of w.
func (ix *Index) Conflicts(ctx context.Context, resourceID int64, w alloc.TimeWindow) ([]model.Reservation, error) {
	return ix.reader.ConflictingReservations(ctx, resourceID, w)
}

// CountForDay returns how many active reservations the user already holds
// on the resource for the local calendar day containing t.
func (ix *Index) CountForDay(ctx context.Context, userID string, resourceID int64, t time.Time) (int64, error) {
	dayStart, dayEnd := alloc.DayBounds(t, ix.loc)
	return ix.reader.CountUserReservationsForDay(ctx, userID, resourceID, dayStart, dayEnd)
}

// DayBounds exposes the index's day bucketing for callers that need the
// same boundaries.
func (ix *Index) DayBounds(t time.Time) (time.Time, time.Time) {
	return alloc.DayBounds(t, ix.loc)
}
