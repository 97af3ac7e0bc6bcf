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

type scheduleRuleRequest struct {
	Weekday int    `json:"weekday" binding:"required"`
	Start   string `json:"start" binding:"required"`
	End     string `json:"end" binding:"required"`
	BoxID   int64  `json:"box_id" binding:"required"`
}

type createAssignmentRequest struct {
	PlanID       int64                 `json:"plan_id" binding:"required"`
	OwnerID      int64                 `json:"owner_id" binding:"required"`
	Rules        []scheduleRuleRequest `json:"rules" binding:"required"`
	HorizonLimit string                `json:"horizon_limit"`
	MonthlyFee   float64               `json:"monthly_fee"`
	SessionPrice float64               `json:"session_price"`
}

// CreateAssignment handles POST /api/assignments. The whole horizon is
// materialized atomically; a 409 response carries the grouped conflict report.
func (h *Handler) CreateAssignment(c *gin.Context) {
	var req createAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	in := booking.CreateAssignmentInput{
		PlanID:       req.PlanID,
		OwnerID:      req.OwnerID,
		MonthlyFee:   req.MonthlyFee,
		SessionPrice: req.SessionPrice,
	}
	for _, r := range req.Rules {
		in.Rules = append(in.Rules, model.ScheduleRule{
			Weekday:   r.Weekday,
			StartTime: r.Start,
			EndTime:   r.End,
			BoxID:     r.BoxID,
		})
	}
	if req.HorizonLimit != "" {
		limit, err := parse.Date(req.HorizonLimit)
		if err != nil {
			writeError(c, fmt.Errorf("%w: horizon_limit: %v", model.ErrValidation, err))
			return
		}
		in.HorizonLimit = &limit
	}

	result, err := h.booking.CreateAssignment(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// GetAssignment handles GET /api/assignments/{id}.
func (h *Handler) GetAssignment(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		writeError(c, fmt.Errorf("%w: invalid assignment id", model.ErrValidation))
		return
	}

	assignment, err := h.store.GetAssignment(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, assignment)
}

// CancelAssignment handles POST /api/assignments/{id}/cancel. The effective
// date is derived from today, never taken from the client.
func (h *Handler) CancelAssignment(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		writeError(c, fmt.Errorf("%w: invalid assignment id", model.ErrValidation))
		return
	}

	result, err := h.booking.CancelAssignment(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
