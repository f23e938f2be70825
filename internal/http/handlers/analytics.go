package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aquaforge/pondops-backend/internal/http/response"
	"github.com/aquaforge/pondops-backend/internal/modules/analytics"
)

type AnalyticsHandler struct {
	analytics analytics.Usecases
}

func NewAnalyticsHandler(analytics analytics.Usecases) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// atParam reads the optional ?at= reference date, defaulting to now so
// dashboards reflect the current standing of the cycle.
func atParam(c *gin.Context) (time.Time, error) {
	s := c.Query("at")
	if s == "" {
		return time.Now().UTC(), nil
	}
	return parseDate(s)
}

// GET /api/cycles/:id/dashboard?at=2026-03-15
func (h *AnalyticsHandler) CycleDashboard(c *gin.Context) {
	cycleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_cycle_id", err)
		return
	}
	at, err := atParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_at", err)
		return
	}
	dash, err := h.analytics.CycleDashboard(c.Request.Context(), cycleID, at)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, dash)
}

// GET /api/cycles/:id/ponds/:pond_id/dashboard?at=2026-03-15
func (h *AnalyticsHandler) PondDashboard(c *gin.Context) {
	cycleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_cycle_id", err)
		return
	}
	pondID, err := uuid.Parse(c.Param("pond_id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_pond_id", err)
		return
	}
	at, err := atParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_at", err)
		return
	}
	dash, err := h.analytics.PondDashboard(c.Request.Context(), cycleID, pondID, at)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, dash)
}

// GET /api/cycles/:id/report?at=2026-03-15
func (h *AnalyticsHandler) Report(c *gin.Context) {
	cycleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_cycle_id", err)
		return
	}
	at, err := atParam(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_at", err)
		return
	}
	report, err := h.analytics.Report(c.Request.Context(), cycleID, at)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, report)
}
