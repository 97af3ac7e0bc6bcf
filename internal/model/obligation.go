package model

import "time"

// Obligation statuses. Refunded and cancelled are terminal.
const (
	ObligationPending   = "pending_payment"
	ObligationPaid      = "paid"
	ObligationRefunded  = "refunded"
	ObligationCancelled = "cancelled"
)

// Obligation is one calendar-month billing record tied to an Assignment.
// At most one obligation may exist per (assignment, month, year).
type Obligation struct {
	ID             int64      `gorm:"primaryKey" json:"id"`
	AssignmentID   int64      `gorm:"uniqueIndex:idx_obligations_assignment_period;not null" json:"assignment_id"`
	OwnerID        int64      `gorm:"index;not null" json:"owner_id"`
	Month          int        `gorm:"uniqueIndex:idx_obligations_assignment_period;not null" json:"month"`
	Year           int        `gorm:"uniqueIndex:idx_obligations_assignment_period;not null" json:"year"`
	Amount         float64    `gorm:"not null" json:"amount"`
	AmountPaid     float64    `gorm:"not null;default:0" json:"amount_paid"`
	AmountRefunded float64    `gorm:"not null;default:0" json:"amount_refunded"`
	Status         string     `gorm:"size:24;not null;default:pending_payment" json:"status"`
	DueDate        time.Time  `gorm:"not null" json:"due_date"`
	PaymentMethod  *string    `gorm:"size:64" json:"payment_method,omitempty"`
	PaymentRef     *string    `gorm:"size:128" json:"payment_ref,omitempty"`
	PaidAt         *time.Time `json:"paid_at,omitempty"`
	Notes          string     `gorm:"size:512" json:"notes,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
