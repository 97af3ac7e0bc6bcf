package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"reservation-backend/config"
	"reservation-backend/internal/availability"
	"reservation-backend/internal/booking"
	"reservation-backend/internal/mw"
	"reservation-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg *config.Config, s store.Store, svc *booking.Service, webpushOptions *webpush.Options) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, svc, availability.NewComputer(cfg, s), webpushOptions)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)

	// Availability reads are the hot path; conflict checks at submit time
	// stay authoritative, so short-lived cached responses are harmless.
	ttl := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(ttl, 2*ttl)
	caching := mw.Cache(cacheStore, ttl)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/sites", caching, handler.GetSites)

		api.GET("/boxes/:box_id/availability", caching, handler.GetAvailability)
		api.GET("/boxes/:box_id/availability/:date", caching, handler.GetDayAvailability)
		api.GET("/boxes/:box_id/reservations", handler.GetReservations)

		api.POST("/reservations", handler.CreateReservation)

		api.POST("/assignments", handler.CreateAssignment)
		api.GET("/assignments/:id", handler.GetAssignment)
		api.POST("/assignments/:id/cancel", handler.CancelAssignment)

		api.GET("/obligations/:id", handler.GetObligation)
		api.POST("/obligations/:id/pay", handler.PayObligation)
		api.POST("/obligations/:id/refund", handler.RefundObligation)
		api.POST("/obligations/:id/cancel", handler.CancelObligation)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}
