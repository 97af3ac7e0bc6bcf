package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"reservation-backend/internal/model"
	"reservation-backend/internal/parse"
)

// GetAvailability handles GET /api/boxes/{box_id}/availability?from=...&to=...
func (h *Handler) GetAvailability(c *gin.Context) {
	boxID, err := strconv.ParseInt(c.Param("box_id"), 10, 64)
	if err != nil {
		writeError(c, fmt.Errorf("%w: invalid box id", model.ErrValidation))
		return
	}

	from, err := parse.Date(c.Query("from"))
	if err != nil {
		writeError(c, fmt.Errorf("%w: from: %v", model.ErrValidation, err))
		return
	}
	to, err := parse.Date(c.Query("to"))
	if err != nil {
		writeError(c, fmt.Errorf("%w: to: %v", model.ErrValidation, err))
		return
	}

	days, err := h.availability.ComputeRange(c.Request.Context(), boxID, from, to)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"box_id": boxID, "days": days})
}

// GetDayAvailability handles GET /api/boxes/{box_id}/availability/{date}
func (h *Handler) GetDayAvailability(c *gin.Context) {
	boxID, err := strconv.ParseInt(c.Param("box_id"), 10, 64)
	if err != nil {
		writeError(c, fmt.Errorf("%w: invalid box id", model.ErrValidation))
		return
	}

	date, err := parse.Date(c.Param("date"))
	if err != nil {
		writeError(c, fmt.Errorf("%w: date: %v", model.ErrValidation, err))
		return
	}

	detail, err := h.availability.ComputeDay(c.Request.Context(), boxID, date)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}
