package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"reservation-backend/config"
	"reservation-backend/internal/booking"
	"reservation-backend/internal/model"
	"reservation-backend/internal/store"
)

var monday = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC) // a Monday

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	cfg := &config.Config{}
	cfg.Server.RateLimitPerSec = 1000
	cfg.Server.RateLimitBurst = 1000
	cfg.Server.CacheTTLSeconds = 1
	cfg.Scheduling.HorizonDays = 84
	cfg.Scheduling.DayStart = "08:00"
	cfg.Scheduling.DayEnd = "22:00"
	cfg.Scheduling.SlotMinutes = 60

	s := store.NewGormStore(db)
	svc := booking.NewService(cfg, s, nil)
	return NewRouter(cfg, s, svc, nil), db
}

func seedBox(t *testing.T, db *gorm.DB) {
	t.Helper()
	require.NoError(t, db.Create(&model.Site{ID: 1, Name: "Main clinic"}).Error)
	require.NoError(t, db.Create(&model.Box{ID: 10, SiteID: 1, Name: "Box A", Capacity: 1, Active: true}).Error)
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGetSites(t *testing.T) {
	router, db := newTestRouter(t)
	seedBox(t, db)
	require.NoError(t, db.Create(&model.Box{ID: 11, SiteID: 1, Name: "Box B", Capacity: 1, Active: false}).Error)

	w := doJSON(router, "GET", "/api/sites", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var sites []SiteResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sites))
	require.Len(t, sites, 1)
	assert.Equal(t, "Main clinic", sites[0].Name)
	assert.Equal(t, int64(2), sites[0].TotalBoxes)
	assert.Equal(t, int64(1), sites[0].ActiveBoxes)
}

func TestCreateReservation(t *testing.T) {
	router, db := newTestRouter(t)
	seedBox(t, db)

	body := gin.H{
		"box_id": 10, "owner_id": 7,
		"date": "2024-03-04", "start": "10:00", "end": "11:00",
		"price": 25.0,
	}
	w := doJSON(router, "POST", "/api/reservations", body)
	require.Equal(t, http.StatusCreated, w.Code)

	// Overlapping second booking is refused.
	body["start"] = "10:30"
	body["end"] = "11:30"
	w = doJSON(router, "POST", "/api/reservations", body)
	assert.Equal(t, http.StatusConflict, w.Code)

	// A touching window is fine.
	body["start"] = "11:00"
	body["end"] = "12:00"
	w = doJSON(router, "POST", "/api/reservations", body)
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCreateReservationValidation(t *testing.T) {
	router, db := newTestRouter(t)
	seedBox(t, db)

	w := doJSON(router, "POST", "/api/reservations", gin.H{
		"box_id": 10, "owner_id": 7,
		"date": "04/03/2024", "start": "10:00", "end": "11:00",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, "POST", "/api/reservations", gin.H{
		"box_id": 99, "owner_id": 7,
		"date": "2024-03-04", "start": "10:00", "end": "11:00",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateAssignmentConflictReport(t *testing.T) {
	router, db := newTestRouter(t)
	seedBox(t, db)

	occupied := model.Reservation{
		BoxID: 10, OwnerID: 3, Date: monday.AddDate(0, 0, 14),
		StartTime: "09:00", EndTime: "10:00", Status: model.ReservationConfirmed,
	}
	require.NoError(t, db.Create(&occupied).Error)

	body := gin.H{
		"plan_id": 1, "owner_id": 7,
		"rules": []gin.H{{"weekday": 1, "start": "09:30", "end": "10:30", "box_id": 10}},
	}
	w := doJSON(router, "POST", "/api/assignments", body)
	require.Equal(t, http.StatusConflict, w.Code)

	var resp struct {
		Conflicts []struct {
			Weekday int   `json:"weekday"`
			BoxID   int64 `json:"box_id"`
		} `json:"conflicts"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Conflicts, 1)
	assert.Equal(t, 1, resp.Conflicts[0].Weekday)
	assert.Equal(t, int64(10), resp.Conflicts[0].BoxID)

	// The failed materialization wrote nothing.
	var count int64
	require.NoError(t, db.Model(&model.Assignment{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCancelAssignmentNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, "POST", "/api/assignments/999/cancel", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPayObligationNotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, "POST", "/api/obligations/999/pay", gin.H{"amount": 80.0})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPutSubscription(t *testing.T) {
	router, db := newTestRouter(t)

	w := doJSON(router, "PUT", "/api/subscriptions", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(router, "PUT", "/api/subscriptions", gin.H{
		"endpoint": "https://push.example/abc",
		"p256dh":   "key", "auth": "secret", "owner_id": 7,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	var sub model.PushSubscription
	require.NoError(t, db.First(&sub, "endpoint = ?", "https://push.example/abc").Error)
	assert.Equal(t, int64(7), sub.OwnerID)
}

func TestVAPIDKeyUnconfigured(t *testing.T) {
	router, _ := newTestRouter(t)

	w := doJSON(router, "GET", "/api/vapid_public_key", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
