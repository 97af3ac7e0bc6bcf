// Package availability is the read path: it composes the site calendar with
// reservation occupancy into per-date slot lists. It never mutates state and
// reports occupancy as data, not as failure.
package availability

import (
	"context"
	"fmt"
	"time"

	"reservation-backend/config"
	"reservation-backend/internal/calendar"
	"reservation-backend/internal/model"
	"reservation-backend/internal/parse"
	"reservation-backend/internal/store"
)

// ReasonSiteClosed marks slots withheld because the site does not operate
// that day.
const ReasonSiteClosed = "site closed"

// ReasonOccupied marks slots blocked by an existing reservation.
const ReasonOccupied = "occupied"

// Slot is one bookable window of a day.
type Slot struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// DaySchedule is the slot list for one date.
type DaySchedule struct {
	Date   string `json:"date"`
	Closed bool   `json:"closed"`
	Slots  []Slot `json:"slots"`
}

// DayDetail extends DaySchedule with the day's reservations and an overall
// free flag for single-date lookups.
type DayDetail struct {
	DaySchedule
	Reservations []model.Reservation `json:"reservations"`
	Free         bool                `json:"free"`
}

// Computer enumerates open slots for boxes over date ranges.
type Computer struct {
	store store.Store
	cfg   *config.Config
}

// NewComputer creates the availability read model.
func NewComputer(cfg *config.Config, s store.Store) *Computer {
	return &Computer{store: s, cfg: cfg}
}

// MaxRangeDays caps availability queries; longer ranges are a validation
// error, not a truncation.
const MaxRangeDays = 90

// ComputeRange enumerates the slot grid for each date in [from,to].
func (c *Computer) ComputeRange(ctx context.Context, boxID int64, from, to time.Time) ([]DaySchedule, error) {
	from, to = parse.DateOnly(from), parse.DateOnly(to)
	if to.Before(from) {
		return nil, fmt.Errorf("%w: range end precedes start", model.ErrValidation)
	}
	if to.Sub(from) > MaxRangeDays*24*time.Hour {
		return nil, fmt.Errorf("%w: range exceeds %d days", model.ErrValidation, MaxRangeDays)
	}

	box, err := c.store.GetBox(ctx, boxID)
	if err != nil {
		return nil, err
	}

	var out []DaySchedule
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		day, err := c.computeDay(ctx, box, d)
		if err != nil {
			return nil, err
		}
		out = append(out, day.DaySchedule)
	}
	return out, nil
}

// ComputeDay returns the slot grid plus the raw reservations for one date.
func (c *Computer) ComputeDay(ctx context.Context, boxID int64, date time.Time) (*DayDetail, error) {
	box, err := c.store.GetBox(ctx, boxID)
	if err != nil {
		return nil, err
	}
	return c.computeDay(ctx, box, parse.DateOnly(date))
}

func (c *Computer) computeDay(ctx context.Context, box *model.Box, date time.Time) (*DayDetail, error) {
	ruling, err := calendar.Resolve(&box.Site, date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrValidation, err)
	}

	detail := &DayDetail{DaySchedule: DaySchedule{Date: date.Format(parse.DateLayout)}}

	var windowStart, windowEnd string
	switch ruling.Kind {
	case calendar.Closed:
		detail.Closed = true
		// The grid is still emitted so clients can render the day; every slot
		// carries the closed reason.
		windowStart, windowEnd = c.cfg.Scheduling.DayStart, c.cfg.Scheduling.DayEnd
	case calendar.Open:
		windowStart, windowEnd = ruling.Start, ruling.End
	case calendar.Unrestricted:
		windowStart, windowEnd = c.cfg.Scheduling.DayStart, c.cfg.Scheduling.DayEnd
	}

	reservations, err := c.store.ListReservations(ctx, box.ID, date)
	if err != nil {
		return nil, err
	}

	step := c.cfg.Scheduling.SlotMinutes
	free := true
	for cursor := parse.Minutes(windowStart); cursor+step <= parse.Minutes(windowEnd); cursor += step {
		slot := Slot{Start: parse.FormatMinutes(cursor), End: parse.FormatMinutes(cursor + step)}
		switch {
		case detail.Closed:
			slot.Reason = ReasonSiteClosed
		case occupied(reservations, slot.Start, slot.End):
			slot.Reason = ReasonOccupied
			free = false
		default:
			slot.Available = true
		}
		detail.Slots = append(detail.Slots, slot)
	}

	if !detail.Closed {
		detail.Reservations = reservations
		detail.Free = free
	}
	return detail, nil
}

func occupied(reservations []model.Reservation, start, end string) bool {
	for _, r := range reservations {
		if model.Blocks(r.Status) && model.Overlaps(start, end, r.StartTime, r.EndTime) {
			return true
		}
	}
	return false
}
