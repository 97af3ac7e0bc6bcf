package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"reservation-backend/internal/booking"
	"reservation-backend/internal/model"
	"reservation-backend/internal/parse"
)

type createReservationRequest struct {
	BoxID   int64   `json:"box_id" binding:"required"`
	OwnerID int64   `json:"owner_id" binding:"required"`
	Date    string  `json:"date" binding:"required"`
	Start   string  `json:"start" binding:"required"`
	End     string  `json:"end" binding:"required"`
	Price   float64 `json:"price"`
}

// CreateReservation handles POST /api/reservations.
func (h *Handler) CreateReservation(c *gin.Context) {
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	date, err := parse.Date(req.Date)
	if err != nil {
		writeError(c, fmt.Errorf("%w: date: %v", model.ErrValidation, err))
		return
	}

	reservation, err := h.booking.CreateReservation(c.Request.Context(), booking.CreateReservationInput{
		BoxID:   req.BoxID,
		OwnerID: req.OwnerID,
		Date:    date,
		Start:   req.Start,
		End:     req.End,
		Price:   req.Price,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, reservation)
}

// GetReservations handles GET /api/boxes/{box_id}/reservations?date=...
func (h *Handler) GetReservations(c *gin.Context) {
	boxID, err := strconv.ParseInt(c.Param("box_id"), 10, 64)
	if err != nil {
		writeError(c, fmt.Errorf("%w: invalid box id", model.ErrValidation))
		return
	}

	date, err := parse.Date(c.Query("date"))
	if err != nil {
		writeError(c, fmt.Errorf("%w: date: %v", model.ErrValidation, err))
		return
	}

	reservations, err := h.store.ListReservations(c.Request.Context(), boxID, date)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"box_id":       boxID,
		"date":         date.Format(parse.DateLayout),
		"reservations": reservations,
	})
}
