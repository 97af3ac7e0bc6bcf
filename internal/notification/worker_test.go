package notification

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"reservation-backend/internal/model"
)

// mockSender is a mock implementation of the NotificationSender interface.
type mockSender struct {
	SendFunc func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// Send calls the mock SendFunc.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return m.SendFunc(payload, sub, options)
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.PushSubscription{}))
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return db
}

func TestWorkerPool_Dispatch(t *testing.T) {
	wp := NewWorkerPool(1, newTestDB(t), &webpush.Options{})

	wp.Dispatch(Event{OwnerID: 42, Title: "Assignment created"})

	select {
	case job := <-wp.jobs:
		assert.Equal(t, int64(42), job.OwnerID)
		assert.Equal(t, "Assignment created", job.Title)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_DispatchNeverBlocks(t *testing.T) {
	wp := NewWorkerPool(1, newTestDB(t), &webpush.Options{})

	// Flood well past the queue capacity; Dispatch must drop, not stall.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			wp.Dispatch(Event{OwnerID: 1})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Dispatch blocked on a full queue")
	}
}

func TestWorkerPool_DeliversToOwnerSubscriptions(t *testing.T) {
	db := newTestDB(t)
	wp := NewWorkerPool(1, db, &webpush.Options{})

	require.NoError(t, db.Create(&model.PushSubscription{Endpoint: "https://example.com/push/a", P256DH: "k", Auth: "a", OwnerID: 42}).Error)
	require.NoError(t, db.Create(&model.PushSubscription{Endpoint: "https://example.com/push/b", P256DH: "k", Auth: "a", OwnerID: 7}).Error)

	var mu sync.Mutex
	var sentTo []string
	wp.sender = &mockSender{SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
		mu.Lock()
		sentTo = append(sentTo, sub.Endpoint)
		mu.Unlock()
		assert.Contains(t, string(payload), "Obligation paid")
		return &http.Response{StatusCode: http.StatusCreated, Body: io.NopCloser(bytes.NewReader(nil))}, nil
	}}

	wp.deliver(context.Background(), Event{OwnerID: 42, Title: "Obligation paid", Body: "March settled"})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"https://example.com/push/a"}, sentTo, "only the owner's subscriptions are notified")
}

func TestWorkerPool_NilOptionsDropsEvents(t *testing.T) {
	db := newTestDB(t)
	// Push is disabled when no VAPID keys are configured; the pool is still
	// constructed and dispatched to.
	wp := NewWorkerPool(1, db, nil)

	require.NoError(t, db.Create(&model.PushSubscription{Endpoint: "https://example.com/push/a", P256DH: "BNcRdreALRFXTkOOUHK1EtK2wtaz5Ry4YfYCA_0QTpQtUbVlUls0VJXg7A8u-Ts1XbjhazAkj7I99e8QcYP7DkM", Auth: "tBHItJI5svbpez7KI4CCXg", OwnerID: 42}).Error)

	wp.sender = &mockSender{SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
		t.Fatal("sender must not be invoked without push options")
		return nil, nil
	}}

	wp.deliver(context.Background(), Event{OwnerID: 42, Title: "t"})
}

func TestWorkerPool_DeletesExpiredSubscription(t *testing.T) {
	db := newTestDB(t)
	wp := NewWorkerPool(1, db, &webpush.Options{})

	require.NoError(t, db.Create(&model.PushSubscription{Endpoint: "https://example.com/push/expired", P256DH: "k", Auth: "a", OwnerID: 42}).Error)

	wp.sender = &mockSender{SendFunc: func(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusGone, Body: io.NopCloser(bytes.NewReader(nil))}, nil
	}}

	wp.deliver(context.Background(), Event{OwnerID: 42, Title: "t"})

	var count int64
	db.Model(&model.PushSubscription{}).Count(&count)
	assert.Zero(t, count, "410 responses must remove the subscription")
}
