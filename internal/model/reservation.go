package model

import "time"

// Reservation statuses. Completed and cancelled are terminal.
const (
	ReservationPending   = "pending"
	ReservationConfirmed = "confirmed"
	ReservationCancelled = "cancelled"
	ReservationCompleted = "completed"
)

// Reservation payment statuses.
const (
	PaymentPending = "pending_payment"
	PaymentPaid    = "paid"
)

// Reservation is one concrete, dated, timed booking of a Box.
//
// StartTime and EndTime are zero-padded "HH:MM" local clock strings; Date is a
// civil date stored at midnight UTC. For a given box and date, no two
// reservations outside cancelled status may hold overlapping [start,end)
// windows.
type Reservation struct {
	ID            int64     `gorm:"primaryKey" json:"id"`
	BoxID         int64     `gorm:"index:idx_reservations_box_date;not null" json:"box_id"`
	OwnerID       int64     `gorm:"index;not null" json:"owner_id"`
	Date          time.Time `gorm:"index:idx_reservations_box_date;not null" json:"date"`
	StartTime     string    `gorm:"size:5;not null" json:"start_time"`
	EndTime       string    `gorm:"size:5;not null" json:"end_time"`
	Status        string    `gorm:"size:16;not null;default:pending" json:"status"`
	PaymentStatus string    `gorm:"size:24;not null;default:pending_payment" json:"payment_status"`
	Price         float64   `gorm:"not null;default:0" json:"price"`
	// AssignmentID backreferences the recurring assignment that generated this
	// reservation; NULL for one-off bookings.
	AssignmentID *int64    `gorm:"index" json:"assignment_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Associations
	Box Box `gorm:"constraint:OnDelete:RESTRICT" json:"-"`
}

// Blocks reports whether a reservation in this status occupies its window.
// Cancelled and completed reservations never block new bookings.
func Blocks(status string) bool {
	return status == ReservationPending || status == ReservationConfirmed
}

// Overlaps applies the half-open interval test to two normalized "HH:MM"
// windows. Touching endpoints do not overlap. Zero-padded clock strings order
// lexicographically, so plain string comparison is exact.
func Overlaps(aStart, aEnd, bStart, bEnd string) bool {
	return aStart < bEnd && bStart < aEnd
}
