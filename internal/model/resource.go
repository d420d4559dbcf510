package model

import "time"

// ResourceCategory classifies a reservable resource.
type ResourceCategory string

const (
	CategoryRoom      ResourceCategory = "room"
	CategoryEquipment ResourceCategory = "equipment"
	CategoryOther     ResourceCategory = "other"
)

// ReservableResource is a catalog entry for a thing that can be booked for a
// time window: a common room, a projector, a music room. Catalog rows are
// mutated only by administrative updates and are never deleted while
// reservations reference them; they are deactivated instead.
type ReservableResource struct {
	ID                int64            `gorm:"primaryKey" json:"id"`
	Name              string           `gorm:"size:256;not null" json:"name"`
	Category          ResourceCategory `gorm:"size:32;not null;default:'room'" json:"category"`
	Capacity          int              `gorm:"not null;default:1" json:"capacity"`
	Floor             int              `json:"floor"`
	Location          string           `gorm:"size:256" json:"location"`
	CostPerHour       float64          `gorm:"not null;default:0" json:"costPerHour"` // 0 = free
	RequiresKey       bool             `gorm:"not null;default:false" json:"requiresKey"`
	Active            bool             `gorm:"not null;default:true" json:"active"`
	NextMaintenanceAt *time.Time       `json:"nextMaintenanceAt,omitempty"`
	CreatedAt         time.Time        `gorm:"not null" json:"createdAt"`
	UpdatedAt         time.Time        `gorm:"not null" json:"updatedAt"`
}
