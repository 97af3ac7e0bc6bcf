package booking

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"reservation-backend/config"
	"reservation-backend/internal/model"
	"reservation-backend/internal/notification"
	"reservation-backend/internal/store"
)

var monday = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC) // a Monday

type capturedNotifier struct {
	events []notification.Event
}

func (c *capturedNotifier) Dispatch(event notification.Event) {
	c.events = append(c.events, event)
}

func newTestService(t *testing.T) (*Service, *gorm.DB, *capturedNotifier) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.Site{}, &model.Box{}, &model.Reservation{},
		&model.Assignment{}, &model.ScheduleRule{}, &model.Obligation{},
		&model.PushSubscription{},
	))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	notifier := &capturedNotifier{}
	cfg := &config.Config{}
	cfg.Scheduling.HorizonDays = 84

	svc := NewService(cfg, store.NewGormStore(db), notifier)
	svc.now = func() time.Time { return monday.Add(10 * time.Hour) }
	return svc, db, notifier
}

func seedOpenSite(t *testing.T, db *gorm.DB, boxID int64) {
	t.Helper()
	// Open Monday 09:00-12:00 only; the site is closed the rest of the week.
	site := model.Site{ID: 1, Name: "Main clinic", Hours: []byte(`[{"day": "monday", "open": "09:00", "close": "12:00"}]`)}
	require.NoError(t, db.Create(&site).Error)
	require.NoError(t, db.Create(&model.Box{ID: boxID, SiteID: 1, Name: "Box R", Capacity: 1, Active: true}).Error)
}

func seedUnrestrictedSite(t *testing.T, db *gorm.DB, boxID int64) {
	t.Helper()
	require.NoError(t, db.Create(&model.Site{ID: 2, Name: "Annex"}).Error)
	require.NoError(t, db.Create(&model.Box{ID: boxID, SiteID: 2, Name: "Box U", Capacity: 1, Active: true}).Error)
}

func TestEffectiveCancellationDate(t *testing.T) {
	testCases := []struct {
		name     string
		today    time.Time
		expected time.Time
	}{
		{"first of month", time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)},
		{"on the 15th", time.Date(2024, 3, 15, 23, 0, 0, 0, time.UTC), time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)},
		{"on the 16th", time.Date(2024, 3, 16, 0, 0, 0, 0, time.UTC), time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"on the 20th", time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC), time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"late november crosses year", time.Date(2024, 11, 20, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"mid december crosses year", time.Date(2024, 12, 10, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, EffectiveCancellationDate(tc.today))
		})
	}
}

func TestCreateReservationScenario(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()
	seedOpenSite(t, db, 7)

	// Existing confirmed reservation 09:00-10:00 on the Monday.
	first, err := svc.CreateReservation(ctx, CreateReservationInput{BoxID: 7, OwnerID: 1, Date: monday, Start: "09:00", End: "10:00", Price: 25})
	require.NoError(t, err)
	assert.Equal(t, model.ReservationConfirmed, first.Status)
	assert.Equal(t, model.PaymentPending, first.PaymentStatus)

	// 09:30-10:30 overlaps and is rejected as a conflict.
	_, err = svc.CreateReservation(ctx, CreateReservationInput{BoxID: 7, OwnerID: 2, Date: monday, Start: "09:30", End: "10:30", Price: 25})
	assert.True(t, errors.Is(err, model.ErrConflict))

	// 10:00-11:00 touches the endpoint and is accepted.
	_, err = svc.CreateReservation(ctx, CreateReservationInput{BoxID: 7, OwnerID: 2, Date: monday, Start: "10:00", End: "11:00", Price: 25})
	assert.NoError(t, err)
}

func TestCreateReservationHonorsSiteHours(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()
	seedOpenSite(t, db, 7)

	// Window outside the Monday 09:00-12:00 operating hours.
	_, err := svc.CreateReservation(ctx, CreateReservationInput{BoxID: 7, OwnerID: 1, Date: monday, Start: "11:30", End: "12:30"})
	assert.True(t, errors.Is(err, model.ErrValidation))

	// Tuesday is absent from the configured table, so the site is closed.
	_, err = svc.CreateReservation(ctx, CreateReservationInput{BoxID: 7, OwnerID: 1, Date: monday.AddDate(0, 0, 1), Start: "09:00", End: "10:00"})
	assert.True(t, errors.Is(err, model.ErrValidation))
}

func TestCreateReservationUnrestrictedSite(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()
	seedUnrestrictedSite(t, db, 9)

	// No hours table means no window restriction, any day.
	_, err := svc.CreateReservation(ctx, CreateReservationInput{BoxID: 9, OwnerID: 1, Date: monday.AddDate(0, 0, 2), Start: "06:00", End: "07:00"})
	assert.NoError(t, err)
}

func TestCreateReservationValidation(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()
	seedOpenSite(t, db, 7)

	_, err := svc.CreateReservation(ctx, CreateReservationInput{BoxID: 7, OwnerID: 1, Date: monday, Start: "10:00", End: "09:00"})
	assert.True(t, errors.Is(err, model.ErrValidation), "inverted window")

	_, err = svc.CreateReservation(ctx, CreateReservationInput{BoxID: 7, OwnerID: 1, Date: monday, Start: "09:00", End: "10:00", Price: -1})
	assert.True(t, errors.Is(err, model.ErrValidation), "negative price")

	_, err = svc.CreateReservation(ctx, CreateReservationInput{BoxID: 999, OwnerID: 1, Date: monday, Start: "09:00", End: "10:00"})
	assert.True(t, errors.Is(err, model.ErrNotFound), "unknown box")

	require.NoError(t, db.Create(&model.Box{ID: 8, SiteID: 1, Name: "Closed box", Active: false}).Error)
	_, err = svc.CreateReservation(ctx, CreateReservationInput{BoxID: 8, OwnerID: 1, Date: monday, Start: "09:00", End: "10:00"})
	assert.True(t, errors.Is(err, model.ErrValidation), "inactive box")
}

func TestCreateAssignmentTwoMondays(t *testing.T) {
	svc, db, notifier := newTestService(t)
	ctx := context.Background()
	seedOpenSite(t, db, 7)

	limit := monday.AddDate(0, 0, 13)
	result, err := svc.CreateAssignment(ctx, CreateAssignmentInput{
		PlanID:       3,
		OwnerID:      42,
		Rules:        []model.ScheduleRule{{Weekday: 1, StartTime: "09:00", EndTime: "10:00", BoxID: 7}},
		HorizonLimit: &limit,
		MonthlyFee:   120,
		SessionPrice: 30,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Reservations, "a 13-day horizon spans exactly two Mondays")
	assert.Equal(t, 1, result.Obligations, "2024-03-04..17 stays inside March")
	assert.Equal(t, monday, result.HorizonStart)
	assert.Equal(t, limit, result.HorizonEnd)

	var obligation model.Obligation
	require.NoError(t, db.First(&obligation).Error)
	assert.Equal(t, 3, obligation.Month)
	assert.Equal(t, 2024, obligation.Year)
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), obligation.DueDate)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, int64(42), notifier.events[0].OwnerID)
}

func TestCreateAssignmentCrossingMonthBoundary(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()
	seedOpenSite(t, db, 7)

	// 2024-03-25 is a Monday; 13 days later lands in April.
	svc.now = func() time.Time { return time.Date(2024, 3, 25, 9, 0, 0, 0, time.UTC) }
	limit := time.Date(2024, 4, 7, 0, 0, 0, 0, time.UTC)

	result, err := svc.CreateAssignment(ctx, CreateAssignmentInput{
		PlanID:       3,
		OwnerID:      42,
		Rules:        []model.ScheduleRule{{Weekday: 1, StartTime: "09:00", EndTime: "10:00", BoxID: 7}},
		HorizonLimit: &limit,
		MonthlyFee:   120,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Reservations)
	assert.Equal(t, 2, result.Obligations, "the horizon touches March and April")
}

func TestCreateAssignmentDefaultHorizon(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()
	seedOpenSite(t, db, 7)

	result, err := svc.CreateAssignment(ctx, CreateAssignmentInput{
		PlanID:     3,
		OwnerID:    42,
		Rules:      []model.ScheduleRule{{Weekday: 1, StartTime: "09:00", EndTime: "10:00", BoxID: 7}},
		MonthlyFee: 120,
	})
	require.NoError(t, err)
	assert.Equal(t, monday.AddDate(0, 0, 84), result.HorizonEnd, "absent limit yields exactly 84 days")
	assert.Equal(t, 13, result.Reservations, "84 days starting Monday contain 13 Mondays")
}

func TestCreateAssignmentRejectsHorizonBeyondOneYear(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()
	seedOpenSite(t, db, 7)

	limit := monday.AddDate(1, 0, 2)
	_, err := svc.CreateAssignment(ctx, CreateAssignmentInput{
		PlanID:       3,
		OwnerID:      42,
		Rules:        []model.ScheduleRule{{Weekday: 1, StartTime: "09:00", EndTime: "10:00", BoxID: 7}},
		HorizonLimit: &limit,
	})
	assert.True(t, errors.Is(err, model.ErrValidation))

	var count int64
	db.Model(&model.Assignment{}).Count(&count)
	assert.Zero(t, count)
}

func TestCreateAssignmentConflictLeavesNothingBehind(t *testing.T) {
	svc, db, notifier := newTestService(t)
	ctx := context.Background()
	seedOpenSite(t, db, 7)

	// Occupy one Monday inside the horizon.
	occupied := model.Reservation{BoxID: 7, OwnerID: 99, Date: monday.AddDate(0, 0, 7), StartTime: "09:30", EndTime: "10:30", Status: model.ReservationConfirmed}
	require.NoError(t, db.Create(&occupied).Error)

	limit := monday.AddDate(0, 0, 13)
	_, err := svc.CreateAssignment(ctx, CreateAssignmentInput{
		PlanID:       3,
		OwnerID:      42,
		Rules:        []model.ScheduleRule{{Weekday: 1, StartTime: "09:00", EndTime: "10:00", BoxID: 7}},
		HorizonLimit: &limit,
		MonthlyFee:   120,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrConflict))

	var conflictErr *store.ConflictError
	require.True(t, errors.As(err, &conflictErr))
	require.Len(t, conflictErr.Groups, 1)
	assert.Equal(t, []int64{99}, conflictErr.Groups[0].Owners)

	var assignments, obligations int64
	db.Model(&model.Assignment{}).Count(&assignments)
	db.Model(&model.Obligation{}).Count(&obligations)
	assert.Zero(t, assignments)
	assert.Zero(t, obligations)
	assert.Empty(t, notifier.events, "no notification for a rejected request")
}

func TestCreateAssignmentBoxChecks(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()
	seedOpenSite(t, db, 7)
	require.NoError(t, db.Create(&model.Box{ID: 8, SiteID: 1, Name: "Mothballed", Active: false}).Error)

	rules := []model.ScheduleRule{{Weekday: 1, StartTime: "09:00", EndTime: "10:00", BoxID: 999}}
	_, err := svc.CreateAssignment(ctx, CreateAssignmentInput{PlanID: 1, OwnerID: 1, Rules: rules})
	assert.True(t, errors.Is(err, model.ErrNotFound))

	rules[0].BoxID = 8
	_, err = svc.CreateAssignment(ctx, CreateAssignmentInput{PlanID: 1, OwnerID: 1, Rules: rules})
	assert.True(t, errors.Is(err, model.ErrValidation))
}

func TestCancelAssignmentOnTheTwentieth(t *testing.T) {
	svc, db, notifier := newTestService(t)
	ctx := context.Background()
	seedOpenSite(t, db, 7)

	result, err := svc.CreateAssignment(ctx, CreateAssignmentInput{
		PlanID:     3,
		OwnerID:    42,
		Rules:      []model.ScheduleRule{{Weekday: 1, StartTime: "09:00", EndTime: "10:00", BoxID: 7}},
		MonthlyFee: 120,
	})
	require.NoError(t, err)

	// Cancel on March 20th: cutoff is May 1st, April stays honored.
	svc.now = func() time.Time { return time.Date(2024, 3, 20, 11, 0, 0, 0, time.UTC) }
	cancelResult, err := svc.CancelAssignment(ctx, result.AssignmentID)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), cancelResult.EffectiveDate)

	var beforeCutoff, afterCutoff int64
	db.Model(&model.Reservation{}).Where("date < ? AND status = ?", cancelResult.EffectiveDate, model.ReservationConfirmed).Count(&beforeCutoff)
	db.Model(&model.Reservation{}).Where("date >= ? AND status = ?", cancelResult.EffectiveDate, model.ReservationCancelled).Count(&afterCutoff)
	assert.NotZero(t, beforeCutoff, "reservations before the cutoff remain confirmed")
	assert.Equal(t, cancelResult.Cancelled, afterCutoff)

	var obligationStatuses []string
	db.Model(&model.Obligation{}).Pluck("status", &obligationStatuses)
	for _, status := range obligationStatuses {
		assert.Equal(t, model.ObligationPending, status, "obligations are untouched by assignment cancellation")
	}

	// Second cancel is rejected.
	_, err = svc.CancelAssignment(ctx, result.AssignmentID)
	assert.True(t, errors.Is(err, model.ErrBusinessRule))

	require.Len(t, notifier.events, 2)
	assert.Equal(t, "Subscription cancelled", notifier.events[1].Title)
}

func TestMarkObligationPaidGeneratesReference(t *testing.T) {
	svc, db, notifier := newTestService(t)
	ctx := context.Background()

	obligation := model.Obligation{AssignmentID: 1, OwnerID: 42, Month: 3, Year: 2024, Amount: 120, Status: model.ObligationPending, DueDate: monday}
	require.NoError(t, db.Create(&obligation).Error)

	_, err := svc.MarkObligationPaid(ctx, PayObligationInput{ObligationID: obligation.ID, Amount: 0})
	assert.True(t, errors.Is(err, model.ErrValidation))

	updated, err := svc.MarkObligationPaid(ctx, PayObligationInput{ObligationID: obligation.ID, Amount: 120})
	require.NoError(t, err)
	require.NotNil(t, updated.PaymentRef)
	assert.NotEmpty(t, *updated.PaymentRef, "a reference is minted when the gateway supplies none")

	require.Len(t, notifier.events, 1)
	assert.Equal(t, "Payment received", notifier.events[0].Title)
}

func TestRefundObligationValidation(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	obligation := model.Obligation{AssignmentID: 1, OwnerID: 42, Month: 3, Year: 2024, Amount: 120, AmountPaid: 120, Status: model.ObligationPaid, DueDate: monday}
	require.NoError(t, db.Create(&obligation).Error)

	_, err := svc.RefundObligation(ctx, obligation.ID, -5, "")
	assert.True(t, errors.Is(err, model.ErrValidation))

	_, err = svc.RefundObligation(ctx, obligation.ID, 500, "")
	assert.True(t, errors.Is(err, model.ErrBusinessRule))

	updated, err := svc.RefundObligation(ctx, obligation.ID, 60, "partial refund")
	require.NoError(t, err)
	assert.Equal(t, model.ObligationRefunded, updated.Status)
	assert.Equal(t, 60.0, updated.AmountRefunded)
}
