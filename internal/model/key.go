package model

import "time"

// KeyType classifies a physical dormitory key.
type KeyType string

const (
	KeyTypeRoom      KeyType = "room"
	KeyTypeMaster    KeyType = "master"
	KeyTypeEquipment KeyType = "equipment"
)

// KeyStatus is the closed set of key states.
type KeyStatus string

const (
	KeyAvailable    KeyStatus = "available"
	KeyAssigned     KeyStatus = "assigned"
	KeyLost         KeyStatus = "lost"
	KeyDamaged      KeyStatus = "damaged"
	KeyOutOfService KeyStatus = "out_of_service"
)

// keyTransitions is the key state machine. Lost, damaged and out-of-service
// keys stay where they are until an administrator reinstates them.
var keyTransitions = map[KeyStatus][]KeyStatus{
	KeyAvailable:    {KeyAssigned, KeyOutOfService, KeyLost, KeyDamaged},
	KeyAssigned:     {KeyAvailable, KeyLost, KeyDamaged},
	KeyLost:         {KeyAvailable},
	KeyDamaged:      {KeyAvailable},
	KeyOutOfService: {KeyAvailable},
}

// CanTransition reports whether moving from s to next is legal.
func (s KeyStatus) CanTransition(next KeyStatus) bool {
	for _, t := range keyTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// DormitoryKey is a physical key tracked by the custody engine. At most one
// open KeyAssignment exists per key at any instant.
type DormitoryKey struct {
	ID     int64     `gorm:"primaryKey" json:"id"`
	Code   string    `gorm:"size:64;uniqueIndex;not null" json:"code"`
	Type   KeyType   `gorm:"size:16;not null;default:'room'" json:"type"`
	Status KeyStatus `gorm:"size:16;not null;default:'available';index" json:"status"`

	// Structured fields parsed from the key code at registration.
	Building string `gorm:"size:32" json:"building"`
	Room     string `gorm:"size:32" json:"room"`
	Copy     int    `json:"copy"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null" json:"updatedAt"`
}

// AssignmentStatus is the closed set of custody-record states.
type AssignmentStatus string

const (
	AssignmentActive   AssignmentStatus = "active"
	AssignmentOverdue  AssignmentStatus = "overdue"
	AssignmentReturned AssignmentStatus = "returned"
	AssignmentLost     AssignmentStatus = "lost"
	AssignmentDamaged  AssignmentStatus = "damaged"
)

// Open reports whether the key is still out with the holder. Overdue is an
// open state: the sweeper flags it, resolution happens through the engine.
func (s AssignmentStatus) Open() bool {
	return s == AssignmentActive || s == AssignmentOverdue
}

// OpenAssignmentStatuses are the states in which an assignment still covers
// its key.
var OpenAssignmentStatuses = []AssignmentStatus{AssignmentActive, AssignmentOverdue}

// KeyAssignment is one custody episode: a key issued to a user, open until
// it is returned or reported lost/damaged. A nil ExpectedReturnAt means
// open-ended custody that is never flagged overdue.
type KeyAssignment struct {
	ID               string           `gorm:"type:uuid;primaryKey" json:"id"`
	KeyID            int64            `gorm:"not null;index" json:"keyId"`
	UserID           string           `gorm:"size:64;not null;index" json:"userId"`
	IssuedAt         time.Time        `gorm:"not null;index" json:"issuedAt"`
	ExpectedReturnAt *time.Time       `json:"expectedReturnAt,omitempty"`
	ReturnedAt       *time.Time       `json:"returnedAt,omitempty"`
	Status           AssignmentStatus `gorm:"size:16;not null;index" json:"status"`
	CreatedAt        time.Time        `gorm:"not null" json:"createdAt"`
	UpdatedAt        time.Time        `gorm:"not null" json:"updatedAt"`

	// Associations
	Key DormitoryKey `gorm:"foreignKey:KeyID" json:"-"`
}

// OverdueAt reports whether the assignment is open past its expected return.
func (a *KeyAssignment) OverdueAt(now time.Time) bool {
	return a.Status.Open() && a.ExpectedReturnAt != nil && a.ExpectedReturnAt.Before(now)
}
