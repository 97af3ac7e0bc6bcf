package store

import (
	"fmt"
	"strings"

	"reservation-backend/internal/model"
	"reservation-backend/internal/schedule"
)

// ConflictError is returned when a mutation would violate the no-overlap
// invariant. It unwraps to model.ErrConflict and carries the grouped report
// for the response body.
type ConflictError struct {
	Groups []schedule.ConflictGroup
}

func (e *ConflictError) Error() string {
	lines := make([]string, len(e.Groups))
	for i, g := range e.Groups {
		lines[i] = g.String()
	}
	return fmt.Sprintf("booking conflict: %s", strings.Join(lines, "; "))
}

func (e *ConflictError) Unwrap() error {
	return model.ErrConflict
}

// MaterializeResult summarizes a successful assignment materialization.
type MaterializeResult struct {
	AssignmentID int64
	Reservations int
	Obligations  int
}
