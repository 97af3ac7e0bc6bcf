package model

import (
	"time"

	"gorm.io/datatypes"
)

// Site represents a physical location with its own weekly operating hours.
type Site struct {
	ID        int64  `gorm:"primaryKey" json:"id"`
	Name      string `gorm:"uniqueIndex;size:128;not null" json:"name"`
	// Hours carries the weekly hours table as stored by site administration.
	// Two historical shapes exist (a flat weekday list, or an object wrapping
	// that list); internal/calendar normalizes both. NULL means the site never
	// configured hours.
	Hours     datatypes.JSON `json:"hours,omitempty"`
	CreatedAt time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`

	// Associations
	Boxes []Box `gorm:"foreignKey:SiteID" json:"-"`
}
