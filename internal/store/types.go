package store

import (
	"time"

	"dorm-booking-backend/internal/model"
)

// ReservationFilter narrows reservation list queries. Zero values mean
// "no filter" for that field.
type ReservationFilter struct {
	UserID     string
	ResourceID int64
	Statuses   []model.ReservationStatus
	From       time.Time // reservations ending after From
	To         time.Time // reservations starting before To
}

// AssignmentFilter narrows key assignment list queries.
type AssignmentFilter struct {
	UserID   string
	KeyID    int64
	KeyType  model.KeyType
	OpenOnly bool
}

// ReservationStats is an on-demand aggregation over the reservation table.
// Nothing here is cached or incrementally maintained.
type ReservationStats struct {
	Total                  int64                             `json:"total"`
	ByStatus               map[model.ReservationStatus]int64 `json:"byStatus"`
	AverageDurationMinutes float64                           `json:"averageDurationMinutes"`
}
