package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"reservation-backend/internal/model"
	"reservation-backend/internal/parse"
	"reservation-backend/internal/schedule"
)

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	ListSites(ctx context.Context) ([]model.Site, error)
	GetBox(ctx context.Context, id int64) (*model.Box, error)
	GetActiveBoxes(ctx context.Context, ids []int64) (map[int64]model.Box, error)

	HasConflict(ctx context.Context, boxID int64, date time.Time, start, end string, excludeID int64) (bool, error)
	ListReservations(ctx context.Context, boxID int64, date time.Time) ([]model.Reservation, error)

	CreateReservation(ctx context.Context, r *model.Reservation) error
	MaterializeAssignment(ctx context.Context, assignment *model.Assignment, occurrences []schedule.Occurrence, price float64, obligations []model.Obligation) (*MaterializeResult, error)

	GetAssignment(ctx context.Context, id int64) (*model.Assignment, error)
	CancelAssignmentFrom(ctx context.Context, assignmentID int64, effective time.Time) (int64, error)

	GetObligation(ctx context.Context, id int64) (*model.Obligation, error)
	MarkObligationPaid(ctx context.Context, id int64, amount float64, method, ref *string, notes string, now time.Time) (*model.Obligation, int64, error)
	RefundObligation(ctx context.Context, id int64, amount float64, notes string, now time.Time) (*model.Obligation, error)
	CancelObligation(ctx context.Context, id int64) (*model.Obligation, error)

	SweepCompleted(ctx context.Context, before time.Time) (int64, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) ListSites(ctx context.Context) ([]model.Site, error) {
	var sites []model.Site
	if err := s.db.WithContext(ctx).Find(&sites).Error; err != nil {
		return nil, err
	}
	return sites, nil
}

func (s *gormStore) GetBox(ctx context.Context, id int64) (*model.Box, error) {
	var box model.Box
	err := s.db.WithContext(ctx).Preload("Site").First(&box, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: box %d", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &box, nil
}

// GetActiveBoxes fetches the requested boxes and filters out inactive ones;
// soft-deleted boxes are excluded by the gorm query already.
func (s *gormStore) GetActiveBoxes(ctx context.Context, ids []int64) (map[int64]model.Box, error) {
	var boxes []model.Box
	if err := s.db.WithContext(ctx).Where("id IN ? AND active", ids).Find(&boxes).Error; err != nil {
		return nil, err
	}
	out := make(map[int64]model.Box, len(boxes))
	for _, b := range boxes {
		out[b.ID] = b
	}
	return out, nil
}

// blockingStatuses are the reservation statuses that occupy a window.
var blockingStatuses = []string{model.ReservationPending, model.ReservationConfirmed}

// HasConflict applies the half-open overlap test against all blocking
// reservations of a box on a date. Touching endpoints do not conflict.
func (s *gormStore) HasConflict(ctx context.Context, boxID int64, date time.Time, start, end string, excludeID int64) (bool, error) {
	q := s.db.WithContext(ctx).Model(&model.Reservation{}).
		Where("box_id = ? AND date = ? AND status IN ?", boxID, parse.DateOnly(date), blockingStatuses).
		Where("start_time < ? AND end_time > ?", end, start)
	if excludeID > 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *gormStore) ListReservations(ctx context.Context, boxID int64, date time.Time) ([]model.Reservation, error) {
	var out []model.Reservation
	err := s.db.WithContext(ctx).
		Where("box_id = ? AND date = ?", boxID, parse.DateOnly(date)).
		Order("start_time").
		Find(&out).Error
	return out, err
}

// lockBoxes takes row locks on the contended boxes before conflict
// verification so two concurrent writers cannot both pass the check. SQLite
// has a single writer per database and needs no row locks.
func lockBoxes(tx *gorm.DB, ids []int64) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	var boxes []model.Box
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id IN ?", ids).Find(&boxes).Error
}

// CreateReservation persists one booking after an in-transaction conflict
// check under a box row lock.
func (s *gormStore) CreateReservation(ctx context.Context, r *model.Reservation) error {
	r.Date = parse.DateOnly(r.Date)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockBoxes(tx, []int64{r.BoxID}); err != nil {
			return err
		}

		blocking, err := fetchBlocking(tx, r.BoxID, r.Date, r.Date)
		if err != nil {
			return err
		}
		for _, existing := range blocking[dateKey(r.Date)] {
			if model.Overlaps(r.StartTime, r.EndTime, existing.StartTime, existing.EndTime) {
				return &ConflictError{Groups: schedule.GroupCollisions([]schedule.Collision{{
					Occurrence: schedule.Occurrence{Date: r.Date, Rule: model.ScheduleRule{
						Weekday:   model.WeekdayOf(r.Date.Weekday()),
						StartTime: r.StartTime,
						EndTime:   r.EndTime,
						BoxID:     r.BoxID,
					}},
					Existing: existing,
				}})}
			}
		}

		return tx.Create(r).Error
	})
}

// MaterializeAssignment runs the whole verify-then-generate flow in one
// transaction: create the assignment and its rules, lock the boxes, verify
// every occurrence over the horizon, and only then persist the reservation
// instances and monthly obligations. Any conflict aborts with zero writes.
func (s *gormStore) MaterializeAssignment(ctx context.Context, assignment *model.Assignment, occurrences []schedule.Occurrence, price float64, obligations []model.Obligation) (*MaterializeResult, error) {
	var result MaterializeResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(assignment).Error; err != nil {
			return fmt.Errorf("create assignment: %w", err)
		}

		if err := lockBoxes(tx, boxIDs(occurrences)); err != nil {
			return err
		}

		collisions, err := findCollisions(tx, occurrences)
		if err != nil {
			return err
		}
		if len(collisions) > 0 {
			return &ConflictError{Groups: schedule.GroupCollisions(collisions)}
		}

		instances := make([]model.Reservation, len(occurrences))
		for i, occ := range occurrences {
			instances[i] = model.Reservation{
				BoxID:         occ.Rule.BoxID,
				OwnerID:       assignment.OwnerID,
				Date:          occ.Date,
				StartTime:     occ.Rule.StartTime,
				EndTime:       occ.Rule.EndTime,
				Status:        model.ReservationConfirmed,
				PaymentStatus: model.PaymentPending,
				Price:         price,
				AssignmentID:  &assignment.ID,
			}
		}
		if len(instances) > 0 {
			if err := tx.CreateInBatches(instances, 200).Error; err != nil {
				return fmt.Errorf("create reservations: %w", err)
			}
		}

		for i := range obligations {
			obligations[i].AssignmentID = assignment.ID
		}
		if len(obligations) > 0 {
			if err := tx.Create(&obligations).Error; err != nil {
				return fmt.Errorf("create obligations: %w", err)
			}
		}

		result = MaterializeResult{
			AssignmentID: assignment.ID,
			Reservations: len(instances),
			Obligations:  len(obligations),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// findCollisions checks every occurrence against existing blocking
// reservations, one range query per box.
func findCollisions(tx *gorm.DB, occurrences []schedule.Occurrence) ([]schedule.Collision, error) {
	type span struct{ from, to time.Time }
	spans := make(map[int64]span)
	for _, occ := range occurrences {
		sp, ok := spans[occ.Rule.BoxID]
		if !ok {
			spans[occ.Rule.BoxID] = span{from: occ.Date, to: occ.Date}
			continue
		}
		if occ.Date.Before(sp.from) {
			sp.from = occ.Date
		}
		if occ.Date.After(sp.to) {
			sp.to = occ.Date
		}
		spans[occ.Rule.BoxID] = sp
	}

	blockingByBox := make(map[int64]map[string][]model.Reservation, len(spans))
	for boxID, sp := range spans {
		blocking, err := fetchBlocking(tx, boxID, sp.from, sp.to)
		if err != nil {
			return nil, err
		}
		blockingByBox[boxID] = blocking
	}

	var collisions []schedule.Collision
	for _, occ := range occurrences {
		for _, existing := range blockingByBox[occ.Rule.BoxID][dateKey(occ.Date)] {
			if model.Overlaps(occ.Rule.StartTime, occ.Rule.EndTime, existing.StartTime, existing.EndTime) {
				collisions = append(collisions, schedule.Collision{Occurrence: occ, Existing: existing})
			}
		}
	}
	return collisions, nil
}

func fetchBlocking(tx *gorm.DB, boxID int64, from, to time.Time) (map[string][]model.Reservation, error) {
	var rows []model.Reservation
	err := tx.Where("box_id = ? AND date >= ? AND date <= ? AND status IN ?",
		boxID, parse.DateOnly(from), parse.DateOnly(to), blockingStatuses).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string][]model.Reservation)
	for _, r := range rows {
		key := dateKey(r.Date)
		out[key] = append(out[key], r)
	}
	return out, nil
}

func dateKey(d time.Time) string {
	return d.UTC().Format(parse.DateLayout)
}

func boxIDs(occurrences []schedule.Occurrence) []int64 {
	seen := make(map[int64]bool)
	var ids []int64
	for _, occ := range occurrences {
		if !seen[occ.Rule.BoxID] {
			seen[occ.Rule.BoxID] = true
			ids = append(ids, occ.Rule.BoxID)
		}
	}
	return ids
}

func (s *gormStore) GetAssignment(ctx context.Context, id int64) (*model.Assignment, error) {
	var assignment model.Assignment
	err := s.db.WithContext(ctx).Preload("Rules").First(&assignment, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: assignment %d", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

// CancelAssignmentFrom flips an active assignment to cancelled and cancels its
// blocking reservations dated on or after the effective date. Obligations are
// left untouched; their cancellation is a separate explicit action.
func (s *gormStore) CancelAssignmentFrom(ctx context.Context, assignmentID int64, effective time.Time) (int64, error) {
	var cancelled int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Assignment{}).
			Where("id = ? AND status = ?", assignmentID, model.AssignmentActive).
			Update("status", model.AssignmentCancelled)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&model.Assignment{}).Where("id = ?", assignmentID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return fmt.Errorf("%w: assignment %d", model.ErrNotFound, assignmentID)
			}
			return fmt.Errorf("%w: assignment %d is already cancelled", model.ErrBusinessRule, assignmentID)
		}

		res = tx.Model(&model.Reservation{}).
			Where("assignment_id = ? AND date >= ? AND status IN ?", assignmentID, parse.DateOnly(effective), blockingStatuses).
			Update("status", model.ReservationCancelled)
		if res.Error != nil {
			return res.Error
		}
		cancelled = res.RowsAffected
		return nil
	})
	return cancelled, err
}

func (s *gormStore) GetObligation(ctx context.Context, id int64) (*model.Obligation, error) {
	var obligation model.Obligation
	err := s.db.WithContext(ctx).First(&obligation, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: obligation %d", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &obligation, nil
}

func getObligationForUpdate(tx *gorm.DB, id int64) (*model.Obligation, error) {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var obligation model.Obligation
	err := q.First(&obligation, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: obligation %d", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &obligation, nil
}

// MarkObligationPaid records a payment and propagates paid status to every
// reservation instance of the assignment dated inside the obligation's
// calendar month. Returns the updated obligation and propagation count.
func (s *gormStore) MarkObligationPaid(ctx context.Context, id int64, amount float64, method, ref *string, notes string, now time.Time) (*model.Obligation, int64, error) {
	var obligation *model.Obligation
	var propagated int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		obligation, err = getObligationForUpdate(tx, id)
		if err != nil {
			return err
		}
		if obligation.Status != model.ObligationPending {
			return fmt.Errorf("%w: obligation %d is %s, only pending_payment can be paid", model.ErrBusinessRule, id, obligation.Status)
		}

		obligation.Status = model.ObligationPaid
		obligation.AmountPaid = amount
		obligation.PaymentMethod = method
		obligation.PaymentRef = ref
		obligation.PaidAt = &now
		if notes != "" {
			obligation.Notes = notes
		}
		if err := tx.Save(obligation).Error; err != nil {
			return err
		}

		monthStart := time.Date(obligation.Year, time.Month(obligation.Month), 1, 0, 0, 0, 0, time.UTC)
		monthEnd := monthStart.AddDate(0, 1, 0)
		res := tx.Model(&model.Reservation{}).
			Where("assignment_id = ? AND date >= ? AND date < ?", obligation.AssignmentID, monthStart, monthEnd).
			Update("payment_status", model.PaymentPaid)
		if res.Error != nil {
			return res.Error
		}
		propagated = res.RowsAffected
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return obligation, propagated, nil
}

// RefundObligation moves a paid obligation to refunded. Refunding more than
// was paid is rejected and leaves the obligation unchanged.
func (s *gormStore) RefundObligation(ctx context.Context, id int64, amount float64, notes string, now time.Time) (*model.Obligation, error) {
	var obligation *model.Obligation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		obligation, err = getObligationForUpdate(tx, id)
		if err != nil {
			return err
		}
		if obligation.Status != model.ObligationPaid {
			return fmt.Errorf("%w: obligation %d is %s, only paid can be refunded", model.ErrBusinessRule, id, obligation.Status)
		}
		if amount > obligation.AmountPaid {
			return fmt.Errorf("%w: refund %.2f exceeds paid amount %.2f", model.ErrBusinessRule, amount, obligation.AmountPaid)
		}

		obligation.Status = model.ObligationRefunded
		obligation.AmountRefunded = amount
		if notes != "" {
			obligation.Notes = notes
		}
		return tx.Save(obligation).Error
	})
	if err != nil {
		return nil, err
	}
	return obligation, nil
}

// CancelObligation voids a still-pending obligation.
func (s *gormStore) CancelObligation(ctx context.Context, id int64) (*model.Obligation, error) {
	var obligation *model.Obligation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		obligation, err = getObligationForUpdate(tx, id)
		if err != nil {
			return err
		}
		if obligation.Status != model.ObligationPending {
			return fmt.Errorf("%w: obligation %d is %s, only pending_payment can be cancelled", model.ErrBusinessRule, id, obligation.Status)
		}
		obligation.Status = model.ObligationCancelled
		return tx.Save(obligation).Error
	})
	if err != nil {
		return nil, err
	}
	return obligation, nil
}

// SweepCompleted transitions confirmed reservations dated strictly before the
// cutoff to completed. Cancelled reservations are never touched.
func (s *gormStore) SweepCompleted(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Model(&model.Reservation{}).
		Where("status = ? AND date < ?", model.ReservationConfirmed, parse.DateOnly(before)).
		Update("status", model.ReservationCompleted)
	return res.RowsAffected, res.Error
}
