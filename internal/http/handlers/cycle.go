package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aquaforge/pondops-backend/internal/http/response"
	"github.com/aquaforge/pondops-backend/internal/modules/tenancy"
)

type CycleHandler struct {
	tenancy tenancy.Usecases
}

func NewCycleHandler(tenancy tenancy.Usecases) *CycleHandler {
	return &CycleHandler{tenancy: tenancy}
}

// POST /api/farms/:id/cycles
func (h *CycleHandler) Create(c *gin.Context) {
	farmID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_farm_id", err)
		return
	}
	var req struct {
		Name      string `json:"name"`
		StartDate string `json:"start_date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	in := tenancy.CreateCycleInput{FarmID: farmID, Name: req.Name}
	if req.StartDate != "" {
		start, err := parseDate(req.StartDate)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_start_date", err)
			return
		}
		in.StartDate = start
	}
	cyc, err := h.tenancy.CreateCycle(c.Request.Context(), in)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"cycle": cyc})
}

// GET /api/farms/:id/cycles
func (h *CycleHandler) List(c *gin.Context) {
	farmID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_farm_id", err)
		return
	}
	cycles, err := h.tenancy.ListCycles(c.Request.Context(), farmID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"cycles": cycles})
}

// GET /api/farms/:id/cycles/active
func (h *CycleHandler) Active(c *gin.Context) {
	farmID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_farm_id", err)
		return
	}
	cyc, err := h.tenancy.ActiveCycle(c.Request.Context(), farmID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"cycle": cyc})
}

// GET /api/cycles/:id
func (h *CycleHandler) Get(c *gin.Context) {
	cycleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_cycle_id", err)
		return
	}
	cyc, err := h.tenancy.GetCycle(c.Request.Context(), cycleID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"cycle": cyc})
}

// PATCH /api/cycles/:id
func (h *CycleHandler) Update(c *gin.Context) {
	cycleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_cycle_id", err)
		return
	}
	var req struct {
		Name      *string `json:"name"`
		StartDate *string `json:"start_date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	start, err := parseDatePtr(req.StartDate)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_start_date", err)
		return
	}
	cyc, err := h.tenancy.UpdateCycle(c.Request.Context(), cycleID, tenancy.UpdateCycleInput{
		Name:      req.Name,
		StartDate: start,
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"cycle": cyc})
}

// POST /api/cycles/:id/close
func (h *CycleHandler) Close(c *gin.Context) {
	cycleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_cycle_id", err)
		return
	}
	var req struct {
		CloseDate *string `json:"close_date"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		if !errors.Is(err, io.EOF) {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		// An empty body closes at today's date.
	}
	closeDate, err := parseDatePtr(req.CloseDate)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_close_date", err)
		return
	}
	cyc, err := h.tenancy.CloseCycle(c.Request.Context(), cycleID, closeDate)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"cycle": cyc})
}

// DELETE /api/cycles/:id
func (h *CycleHandler) Delete(c *gin.Context) {
	cycleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_cycle_id", err)
		return
	}
	if err := h.tenancy.DeleteCycle(c.Request.Context(), cycleID); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}
