package model

import (
	"strings"
	"time"
)

// PushSubscription holds a browser push subscription for an administrator
// who wants overdue/no-show events delivered as web push notifications.
type PushSubscription struct {
	Endpoint string `gorm:"primaryKey" json:"endpoint"`
	P256DH   string `gorm:"column:p256dh;not null" json:"p256dh"`
	Auth     string `gorm:"not null" json:"auth"`

	// Topics is a comma-separated list of event topics the endpoint wants.
	// Empty means all topics.
	Topics string `gorm:"size:256" json:"topics"`

	CreatedAt time.Time `gorm:"not null" json:"createdAt"`
}

// WantsTopic reports whether the subscription should receive the topic.
func (s *PushSubscription) WantsTopic(topic string) bool {
	if strings.TrimSpace(s.Topics) == "" {
		return true
	}
	for _, t := range strings.Split(s.Topics, ",") {
		if strings.TrimSpace(t) == topic {
			return true
		}
	}
	return false
}
