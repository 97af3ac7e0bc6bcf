package model

import "time"

// Assignment statuses.
const (
	AssignmentActive    = "active"
	AssignmentCancelled = "cancelled"
)

// Assignment is a subscription linking an owner to a weekly recurring schedule
// across boxes. Created once per pack purchase and cancelled at most once.
type Assignment struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	PlanID    int64     `gorm:"index;not null" json:"plan_id"`
	OwnerID   int64     `gorm:"index;not null" json:"owner_id"`
	Status    string    `gorm:"size:16;not null;default:active" json:"status"`
	Recurring bool      `gorm:"not null;default:true" json:"recurring"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Associations
	Rules []ScheduleRule `gorm:"foreignKey:AssignmentID;constraint:OnDelete:CASCADE" json:"rules,omitempty"`
}

// ScheduleRule is one weekday + time-window + box entry of an Assignment.
// Weekday is ISO numbering: 1 = Monday .. 7 = Sunday.
type ScheduleRule struct {
	ID           int64  `gorm:"primaryKey" json:"id"`
	AssignmentID int64  `gorm:"index;not null" json:"assignment_id"`
	Weekday      int    `gorm:"not null" json:"weekday"`
	StartTime    string `gorm:"size:5;not null" json:"start_time"`
	EndTime      string `gorm:"size:5;not null" json:"end_time"`
	BoxID        int64  `gorm:"index;not null" json:"box_id"`
}

// WeekdayOf converts a time.Weekday to the rule's ISO numbering.
func WeekdayOf(d time.Weekday) int {
	if d == time.Sunday {
		return 7
	}
	return int(d)
}
