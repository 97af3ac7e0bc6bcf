package model

import (
	"time"

	"gorm.io/gorm"
)

// Box represents a bookable unit (room) belonging to exactly one Site.
type Box struct {
	ID       int64  `gorm:"primaryKey" json:"id"`
	SiteID   int64  `gorm:"index;not null" json:"site_id"`
	Name     string `gorm:"size:128;not null" json:"name"`
	Capacity int    `gorm:"not null;default:1" json:"capacity"`
	Active   bool   `gorm:"not null;default:true" json:"active"`
	// Soft delete: removed boxes stay referenced by historical reservations but
	// are excluded from availability and booking.
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`

	// Associations
	Site Site `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
