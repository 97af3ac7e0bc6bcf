package api

import (
	"errors"
	"net/http"

	"reservation-backend/internal/availability"
	"reservation-backend/internal/booking"
	"reservation-backend/internal/model"
	"reservation-backend/internal/store"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store        store.Store
	booking      *booking.Service
	availability *availability.Computer
	webpush      *webpush.Options
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, b *booking.Service, a *availability.Computer, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		store:        s,
		booking:      b,
		availability: a,
		webpush:      webpushOptions,
	}
}

// writeError maps domain errors onto HTTP statuses. Conflicts carry the
// grouped report so clients can render per-weekday collision details.
func writeError(c *gin.Context, err error) {
	var conflict *store.ConflictError
	if errors.As(err, &conflict) {
		c.JSON(http.StatusConflict, gin.H{
			"error":     "booking conflict",
			"conflicts": conflict.Groups,
		})
		return
	}

	switch {
	case errors.Is(err, model.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrBusinessRule):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
