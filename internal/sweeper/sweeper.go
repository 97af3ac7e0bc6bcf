// Package sweeper runs the background job that retires past bookings:
// confirmed reservations whose date has passed become completed. Cancellation
// is never inferred here; only explicit lifecycle actions cancel.
package sweeper

import (
	"context"
	"log"
	"time"

	"reservation-backend/config"
	"reservation-backend/internal/store"
)

// Service drives the periodic sweep.
type Service struct {
	cfg   *config.Config
	store store.Store
}

// NewService creates the sweeper service.
func NewService(cfg *config.Config, s store.Store) *Service {
	return &Service{cfg: cfg, store: s}
}

// Run starts the sweep loop.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Sweeper.Enabled {
		log.Println("Sweeper is disabled. Not starting.")
		return
	}
	log.Println("Starting sweeper service...")

	s.SweepOnce(ctx)

	timer := time.NewTimer(s.cfg.Sweeper.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Sweeper service shutting down.")
			return
		case <-timer.C:
			s.SweepOnce(ctx)
			timer.Reset(s.cfg.Sweeper.Interval)
		}
	}
}

// SweepOnce performs a single sweep cycle.
func (s *Service) SweepOnce(ctx context.Context) {
	swept, err := s.store.SweepCompleted(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("Error sweeping completed reservations: %v", err)
		return
	}
	if swept > 0 {
		log.Printf("Marked %d past reservations as completed", swept)
	}
}
