// Package booking orchestrates the assignment lifecycle: recurring
// materialization, effective-dated cancellation, and the billing transitions
// coupled to materialized usage.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reservation-backend/config"
	"reservation-backend/internal/billing"
	"reservation-backend/internal/calendar"
	"reservation-backend/internal/metrics"
	"reservation-backend/internal/model"
	"reservation-backend/internal/notification"
	"reservation-backend/internal/parse"
	"reservation-backend/internal/schedule"
	"reservation-backend/internal/store"
)

// Notifier delivers post-commit events. Delivery failures never affect the
// transaction that produced the event.
type Notifier interface {
	Dispatch(event notification.Event)
}

// Service implements the assignment lifecycle over the store.
type Service struct {
	cfg      *config.Config
	store    store.Store
	notifier Notifier
	now      func() time.Time
}

// NewService creates the lifecycle service. notifier may be nil.
func NewService(cfg *config.Config, s store.Store, notifier Notifier) *Service {
	return &Service{
		cfg:      cfg,
		store:    s,
		notifier: notifier,
		now:      time.Now,
	}
}

// SetNow overrides the service clock. Tests use it to pin horizon and
// effective-date arithmetic to a fixed day.
func (s *Service) SetNow(now func() time.Time) {
	s.now = now
}

func (s *Service) notify(event notification.Event) {
	if s.notifier != nil {
		s.notifier.Dispatch(event)
	}
}

// CreateReservationInput is a single one-off booking request.
type CreateReservationInput struct {
	BoxID   int64
	OwnerID int64
	Date    time.Time
	Start   string
	End     string
	Price   float64
}

// CreateReservation books one slot. The window must be valid, the box active,
// and the site open over the window (sites without hours are unrestricted).
func (s *Service) CreateReservation(ctx context.Context, in CreateReservationInput) (*model.Reservation, error) {
	start, end, err := parse.Window(in.Start, in.End)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrValidation, err)
	}
	if in.Price < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", model.ErrValidation)
	}

	box, err := s.store.GetBox(ctx, in.BoxID)
	if err != nil {
		return nil, err
	}
	if !box.Active {
		return nil, fmt.Errorf("%w: box %d is not active", model.ErrValidation, in.BoxID)
	}

	date := parse.DateOnly(in.Date)
	ruling, err := calendar.Resolve(&box.Site, date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrValidation, err)
	}
	switch ruling.Kind {
	case calendar.Closed:
		return nil, fmt.Errorf("%w: site %d is closed on %s", model.ErrValidation, box.SiteID, date.Format(parse.DateLayout))
	case calendar.Open:
		if start < ruling.Start || end > ruling.End {
			return nil, fmt.Errorf("%w: window %s-%s is outside operating hours %s-%s", model.ErrValidation, start, end, ruling.Start, ruling.End)
		}
	}

	reservation := &model.Reservation{
		BoxID:         in.BoxID,
		OwnerID:       in.OwnerID,
		Date:          date,
		StartTime:     start,
		EndTime:       end,
		Status:        model.ReservationConfirmed,
		PaymentStatus: model.PaymentPending,
		Price:         in.Price,
	}
	if err := s.store.CreateReservation(ctx, reservation); err != nil {
		if errors.Is(err, model.ErrConflict) {
			metrics.IncConflictReported()
		}
		return nil, err
	}

	metrics.IncReservationCreated("single")
	s.notify(notification.Event{
		OwnerID: in.OwnerID,
		Title:   "Reservation confirmed",
		Body:    fmt.Sprintf("Box %s on %s, %s-%s", box.Name, date.Format(parse.DateLayout), start, end),
	})
	return reservation, nil
}

// CreateAssignmentInput is a recurring subscription purchase.
type CreateAssignmentInput struct {
	PlanID       int64
	OwnerID      int64
	Rules        []model.ScheduleRule
	HorizonLimit *time.Time
	MonthlyFee   float64
	SessionPrice float64
}

// CreateAssignmentResult reports a successful materialization.
type CreateAssignmentResult struct {
	AssignmentID int64     `json:"assignment_id"`
	Reservations int       `json:"reservations"`
	Obligations  int       `json:"obligations"`
	HorizonStart time.Time `json:"horizon_start"`
	HorizonEnd   time.Time `json:"horizon_end"`
}

// CreateAssignment materializes a recurring assignment over its horizon: the
// whole horizon is verified before anything is written, and instances plus
// monthly obligations commit together or not at all.
func (s *Service) CreateAssignment(ctx context.Context, in CreateAssignmentInput) (*CreateAssignmentResult, error) {
	if err := schedule.ValidateRules(in.Rules); err != nil {
		return nil, err
	}
	if in.SessionPrice < 0 {
		return nil, fmt.Errorf("%w: session price must not be negative", model.ErrValidation)
	}

	horizonStart, horizonEnd, err := schedule.ResolveHorizon(s.now(), in.HorizonLimit, s.cfg.Scheduling.HorizonDays)
	if err != nil {
		return nil, err
	}

	if err := s.checkBoxesBookable(ctx, in.Rules); err != nil {
		return nil, err
	}

	occurrences := schedule.Expand(in.Rules, horizonStart, horizonEnd)
	obligations, err := billing.BuildObligations(0, in.OwnerID, in.MonthlyFee, horizonStart, horizonEnd)
	if err != nil {
		return nil, err
	}

	assignment := &model.Assignment{
		PlanID:    in.PlanID,
		OwnerID:   in.OwnerID,
		Status:    model.AssignmentActive,
		Recurring: true,
		Rules:     in.Rules,
	}
	result, err := s.store.MaterializeAssignment(ctx, assignment, occurrences, in.SessionPrice, obligations)
	if err != nil {
		if errors.Is(err, model.ErrConflict) {
			metrics.IncConflictReported()
		}
		return nil, err
	}

	metrics.IncAssignmentCreated()
	metrics.AddReservationsCreated("recurring", result.Reservations)
	s.notify(notification.Event{
		OwnerID: in.OwnerID,
		Title:   "Subscription activated",
		Body:    fmt.Sprintf("%d sessions booked through %s", result.Reservations, horizonEnd.Format(parse.DateLayout)),
	})

	return &CreateAssignmentResult{
		AssignmentID: result.AssignmentID,
		Reservations: result.Reservations,
		Obligations:  result.Obligations,
		HorizonStart: horizonStart,
		HorizonEnd:   horizonEnd,
	}, nil
}

// checkBoxesBookable verifies every box referenced by the rules exists, is
// active and not soft-deleted.
func (s *Service) checkBoxesBookable(ctx context.Context, rules []model.ScheduleRule) error {
	seen := make(map[int64]bool)
	var ids []int64
	for _, r := range rules {
		if !seen[r.BoxID] {
			seen[r.BoxID] = true
			ids = append(ids, r.BoxID)
		}
	}

	active, err := s.store.GetActiveBoxes(ctx, ids)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, ok := active[id]; ok {
			continue
		}
		// Distinguish a missing box from a deactivated one.
		if _, err := s.store.GetBox(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("%w: box %d is not active", model.ErrValidation, id)
	}
	return nil
}

// EffectiveCancellationDate applies the mid-month grace rule: cancellations
// through the 15th take effect on the 1st of next month; later ones on the
// 1st of the month after next, so a month already paid through mid-month
// stays honored to its end.
func EffectiveCancellationDate(today time.Time) time.Time {
	monthsAhead := 1
	if today.Day() > 15 {
		monthsAhead = 2
	}
	return time.Date(today.Year(), today.Month()+time.Month(monthsAhead), 1, 0, 0, 0, 0, time.UTC)
}

// CancelAssignmentResult reports an effective-dated cancellation.
type CancelAssignmentResult struct {
	AssignmentID  int64     `json:"assignment_id"`
	EffectiveDate time.Time `json:"effective_date"`
	Cancelled     int64     `json:"cancelled_reservations"`
}

// CancelAssignment cancels an active assignment and voids its reservations
// from the effective date forward. Obligations are left as they are.
func (s *Service) CancelAssignment(ctx context.Context, assignmentID int64) (*CancelAssignmentResult, error) {
	assignment, err := s.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}

	effective := EffectiveCancellationDate(s.now())
	cancelled, err := s.store.CancelAssignmentFrom(ctx, assignmentID, effective)
	if err != nil {
		return nil, err
	}

	metrics.IncAssignmentCancelled()
	s.notify(notification.Event{
		OwnerID: assignment.OwnerID,
		Title:   "Subscription cancelled",
		Body:    fmt.Sprintf("Sessions from %s on are released", effective.Format(parse.DateLayout)),
	})
	return &CancelAssignmentResult{AssignmentID: assignmentID, EffectiveDate: effective, Cancelled: cancelled}, nil
}

// PayObligationInput records a payment against an obligation.
type PayObligationInput struct {
	ObligationID int64
	Amount       float64
	Method       *string
	Reference    *string
	Notes        string
}

// MarkObligationPaid settles an obligation and propagates paid status to the
// assignment's reservation instances inside the obligation's month.
func (s *Service) MarkObligationPaid(ctx context.Context, in PayObligationInput) (*model.Obligation, error) {
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: paid amount must be positive", model.ErrValidation)
	}

	ref := in.Reference
	if ref == nil || *ref == "" {
		generated := billing.NewPaymentRef()
		ref = &generated
	}

	obligation, propagated, err := s.store.MarkObligationPaid(ctx, in.ObligationID, in.Amount, in.Method, ref, in.Notes, s.now().UTC())
	if err != nil {
		return nil, err
	}

	metrics.IncObligationSettled("paid")
	s.notify(notification.Event{
		OwnerID: obligation.OwnerID,
		Title:   "Payment received",
		Body:    fmt.Sprintf("%d/%d settled, %d sessions marked paid", obligation.Month, obligation.Year, propagated),
	})
	return obligation, nil
}

// RefundObligation refunds a paid obligation. The refund may not exceed what
// was paid.
func (s *Service) RefundObligation(ctx context.Context, obligationID int64, amount float64, notes string) (*model.Obligation, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: refund amount must be positive", model.ErrValidation)
	}

	obligation, err := s.store.RefundObligation(ctx, obligationID, amount, notes, s.now().UTC())
	if err != nil {
		return nil, err
	}

	metrics.IncObligationSettled("refunded")
	s.notify(notification.Event{
		OwnerID: obligation.OwnerID,
		Title:   "Refund issued",
		Body:    fmt.Sprintf("%.2f refunded for %d/%d", amount, obligation.Month, obligation.Year),
	})
	return obligation, nil
}

// CancelObligation voids a pending obligation. This is deliberately separate
// from assignment cancellation.
func (s *Service) CancelObligation(ctx context.Context, obligationID int64) (*model.Obligation, error) {
	obligation, err := s.store.CancelObligation(ctx, obligationID)
	if err != nil {
		return nil, err
	}
	metrics.IncObligationSettled("cancelled")
	return obligation, nil
}
