package model

import "time"

// PushSubscription holds a browser push subscription registered by an owner.
// The lifecycle manager notifies these endpoints after commit; delivery is
// fire-and-forget.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey" json:"endpoint"`
	P256DH    string    `gorm:"column:p256dh;not null" json:"p256dh"`
	Auth      string    `gorm:"not null" json:"auth"`
	OwnerID   int64     `gorm:"index;not null" json:"owner_id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}
