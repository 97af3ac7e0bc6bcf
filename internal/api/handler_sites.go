package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"reservation-backend/internal/model"
)

// SiteResponse represents the API response for a single site.
type SiteResponse struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Hours       json.RawMessage `json:"hours,omitempty"`
	TotalBoxes  int64           `json:"totalBoxes"`
	ActiveBoxes int64           `json:"activeBoxes"`
}

// GetSites handles the GET /api/sites request.
func (h *Handler) GetSites(c *gin.Context) {
	sites, err := h.store.ListSites(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	// One aggregate query for box counts instead of a query per site.
	type aggRow struct {
		SiteID      int64
		TotalBoxes  int64
		ActiveBoxes int64
	}
	var aggs []aggRow
	if err := h.store.DB().
		Model(&model.Box{}).
		Select("site_id as site_id, COUNT(*) as total_boxes, SUM(CASE WHEN active THEN 1 ELSE 0 END) as active_boxes").
		Group("site_id").
		Scan(&aggs).Error; err != nil {
		writeError(c, err)
		return
	}

	aggMap := make(map[int64]aggRow, len(aggs))
	for _, a := range aggs {
		aggMap[a.SiteID] = a
	}

	responses := make([]SiteResponse, 0, len(sites))
	for _, s := range sites {
		a := aggMap[s.ID]
		responses = append(responses, SiteResponse{
			ID:          s.ID,
			Name:        s.Name,
			Hours:       json.RawMessage(s.Hours),
			TotalBoxes:  a.TotalBoxes,
			ActiveBoxes: a.ActiveBoxes,
		})
	}
	c.JSON(http.StatusOK, responses)
}
