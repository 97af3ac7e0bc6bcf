// Package billing derives the monthly billing obligations a recurring
// assignment owes over its materialized horizon.
package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"reservation-backend/internal/model"
)

// LastDayOfMonth returns the final calendar day of the given month at
// midnight UTC.
func LastDayOfMonth(year int, month time.Month) time.Time {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
}

// BuildObligations walks month-by-month from start's month through end's month
// inclusive and returns one pending obligation per calendar month touched,
// amount = monthlyFee, due at month end. Uniqueness per (assignment, month,
// year) is enforced at persistence.
func BuildObligations(assignmentID, ownerID int64, monthlyFee float64, start, end time.Time) ([]model.Obligation, error) {
	if monthlyFee < 0 {
		return nil, fmt.Errorf("%w: monthly fee must not be negative", model.ErrValidation)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: horizon end precedes start", model.ErrValidation)
	}

	var out []model.Obligation
	cursor := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(end.Year(), end.Month(), 1, 0, 0, 0, 0, time.UTC)
	for !cursor.After(last) {
		out = append(out, model.Obligation{
			AssignmentID: assignmentID,
			OwnerID:      ownerID,
			Month:        int(cursor.Month()),
			Year:         cursor.Year(),
			Amount:       monthlyFee,
			Status:       model.ObligationPending,
			DueDate:      LastDayOfMonth(cursor.Year(), cursor.Month()),
		})
		cursor = cursor.AddDate(0, 1, 0)
	}
	return out, nil
}

// NewPaymentRef mints an opaque reference for payments recorded without one
// from the gateway.
func NewPaymentRef() string {
	return uuid.NewString()
}
