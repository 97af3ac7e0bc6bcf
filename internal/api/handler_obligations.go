package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"reservation-backend/internal/booking"
	"reservation-backend/internal/model"
)

func obligationID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid obligation id", model.ErrValidation)
	}
	return id, nil
}

// GetObligation handles GET /api/obligations/{id}.
func (h *Handler) GetObligation(c *gin.Context) {
	id, err := obligationID(c)
	if err != nil {
		writeError(c, err)
		return
	}

	obligation, err := h.store.GetObligation(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, obligation)
}

type payObligationRequest struct {
	Amount    float64 `json:"amount" binding:"required"`
	Method    *string `json:"method"`
	Reference *string `json:"reference"`
	Notes     string  `json:"notes"`
}

// PayObligation handles POST /api/obligations/{id}/pay. Paid status propagates
// to the assignment's reservations inside the obligation's month.
func (h *Handler) PayObligation(c *gin.Context) {
	id, err := obligationID(c)
	if err != nil {
		writeError(c, err)
		return
	}

	var req payObligationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	obligation, err := h.booking.MarkObligationPaid(c.Request.Context(), booking.PayObligationInput{
		ObligationID: id,
		Amount:       req.Amount,
		Method:       req.Method,
		Reference:    req.Reference,
		Notes:        req.Notes,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, obligation)
}

type refundObligationRequest struct {
	Amount float64 `json:"amount" binding:"required"`
	Notes  string  `json:"notes"`
}

// RefundObligation handles POST /api/obligations/{id}/refund.
func (h *Handler) RefundObligation(c *gin.Context) {
	id, err := obligationID(c)
	if err != nil {
		writeError(c, err)
		return
	}

	var req refundObligationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	obligation, err := h.booking.RefundObligation(c.Request.Context(), id, req.Amount, req.Notes)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, obligation)
}

// CancelObligation handles POST /api/obligations/{id}/cancel.
func (h *Handler) CancelObligation(c *gin.Context) {
	id, err := obligationID(c)
	if err != nil {
		writeError(c, err)
		return
	}

	obligation, err := h.booking.CancelObligation(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, obligation)
}
