package model

import "time"

// ReservationStatus is the closed set of reservation lifecycle states.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCheckedIn ReservationStatus = "checked_in"
	ReservationCompleted ReservationStatus = "completed"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationNoShow    ReservationStatus = "no_show"
)

// ActiveReservationStatuses are the states that hold the resource: only these
// count for conflict detection and daily limits.
var ActiveReservationStatuses = []ReservationStatus{
	ReservationPending,
	ReservationConfirmed,
	ReservationCheckedIn,
}

// reservationTransitions is the full transition table. Anything absent fails.
var reservationTransitions = map[ReservationStatus][]ReservationStatus{
	ReservationPending:   {ReservationConfirmed, ReservationCancelled},
	ReservationConfirmed: {ReservationCheckedIn, ReservationCancelled, ReservationNoShow},
	ReservationCheckedIn: {ReservationCompleted},
}

// CanTransition reports whether moving from s to next is legal.
func (s ReservationStatus) CanTransition(next ReservationStatus) bool {
	for _, t := range reservationTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether s is an end state. Terminal reservations are kept
// for statistics and never hard-deleted.
func (s ReservationStatus) Terminal() bool {
	switch s {
	case ReservationCompleted, ReservationCancelled, ReservationNoShow:
		return true
	}
	return false
}

// Active reports whether the reservation currently holds its resource.
func (s ReservationStatus) Active() bool {
	return s == ReservationPending || s == ReservationConfirmed || s == ReservationCheckedIn
}

// Reservation is a time-boxed hold on a ReservableResource. The half-open
// window [StartTime, EndTime) together with the resource forms the unit that
// must not overlap another active reservation.
type Reservation struct {
	ID         string            `gorm:"type:uuid;primaryKey" json:"id"`
	ResourceID int64             `gorm:"not null;index:idx_reservations_resource_start,priority:1" json:"resourceId"`
	UserID     string            `gorm:"size:64;not null;index" json:"userId"`
	StartTime  time.Time         `gorm:"not null;index:idx_reservations_resource_start,priority:2" json:"startTime"`
	EndTime    time.Time         `gorm:"not null" json:"endTime"`
	Status     ReservationStatus `gorm:"size:16;not null;index" json:"status"`

	// Key coupling. Both flags stay false for resources that need no key.
	KeyPickedUp     bool    `gorm:"not null;default:false" json:"keyPickedUp"`
	KeyReturned     bool    `gorm:"not null;default:false" json:"keyReturned"`
	KeyAssignmentID *string `gorm:"type:uuid" json:"keyAssignmentId,omitempty"`

	// Sweeper markers. The sweeper only flags, never transitions, so a
	// separate timestamp keeps re-runs from emitting duplicate events.
	FlaggedOverdueAt *time.Time `json:"flaggedOverdueAt,omitempty"`
	FlaggedNoShowAt  *time.Time `json:"flaggedNoShowAt,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`

	// Associations
	Resource ReservableResource `gorm:"foreignKey:ResourceID" json:"-"`
}

// OverdueAt reports whether the reservation is checked in past its end time
// without a checkout.
func (r *Reservation) OverdueAt(now time.Time) bool {
	return r.Status == ReservationCheckedIn && r.EndTime.Before(now)
}
