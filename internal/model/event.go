package model

import "time"

// Event topics emitted for the external notification service.
const (
	TopicReservationOverdue = "reservation.overdue"
	TopicReservationNoShow  = "reservation.no_show"
	TopicKeyOverdue         = "key.overdue"
)

// Event is a persisted record of an emitted overdue/no-show event. Keeping
// the log makes the sweeper's once-per-item guarantee auditable and backs
// the overdue list queries.
type Event struct {
	ID        int64     `gorm:"autoIncrement;primaryKey" json:"id"`
	Topic     string    `gorm:"size:64;not null;index" json:"topic"`
	SubjectID string    `gorm:"size:64;not null;index" json:"subjectId"`
	Message   string    `gorm:"size:512;not null" json:"message"`
	EmittedAt time.Time `gorm:"not null;index" json:"emittedAt"`
}
