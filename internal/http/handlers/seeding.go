package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aquaforge/pondops-backend/internal/http/response"
	"github.com/aquaforge/pondops-backend/internal/modules/operations"
)

type SeedingHandler struct {
	ops operations.Usecases
}

func NewSeedingHandler(ops operations.Usecases) *SeedingHandler {
	return &SeedingHandler{ops: ops}
}

// POST /api/cycles/:id/seeding-plans
func (h *SeedingHandler) Create(c *gin.Context) {
	cycleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_cycle_id", err)
		return
	}
	var req struct {
		PondID         string   `json:"pond_id"`
		PlannedDate    string   `json:"planned_date"`
		DensityOrgM2   float64  `json:"density_org_m2"`
		InitialWeightG *float64 `json:"initial_weight_g"`
		Note           string   `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	pondID, err := uuid.Parse(req.PondID)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_pond_id", err)
		return
	}
	plannedDate, err := parseDate(req.PlannedDate)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_planned_date", err)
		return
	}
	plan, err := h.ops.CreateSeedingPlan(c.Request.Context(), operations.CreateSeedingPlanInput{
		CycleID:        cycleID,
		PondID:         pondID,
		PlannedDate:    plannedDate,
		DensityOrgM2:   req.DensityOrgM2,
		InitialWeightG: req.InitialWeightG,
		Note:           req.Note,
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"plan": plan})
}

// POST /api/cycles/:id/seeding-plans/bulk
func (h *SeedingHandler) PlanCycle(c *gin.Context) {
	cycleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_cycle_id", err)
		return
	}
	var req struct {
		WindowStart    string   `json:"window_start"`
		WindowEnd      string   `json:"window_end"`
		DensityOrgM2   float64  `json:"density_org_m2"`
		InitialWeightG *float64 `json:"initial_weight_g"`
		Note           string   `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	windowStart, err := parseDate(req.WindowStart)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_window_start", err)
		return
	}
	windowEnd, err := parseDate(req.WindowEnd)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_window_end", err)
		return
	}
	plans, err := h.ops.PlanCycleSeedings(c.Request.Context(), operations.PlanCycleSeedingsInput{
		CycleID:        cycleID,
		WindowStart:    windowStart,
		WindowEnd:      windowEnd,
		DensityOrgM2:   req.DensityOrgM2,
		InitialWeightG: req.InitialWeightG,
		Note:           req.Note,
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"plans": plans})
}

// GET /api/cycles/:id/seeding-plans
func (h *SeedingHandler) List(c *gin.Context) {
	cycleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_cycle_id", err)
		return
	}
	plans, err := h.ops.ListSeeding(c.Request.Context(), cycleID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"plans": plans})
}

// PATCH /api/seeding-plans/:id
func (h *SeedingHandler) Reprogram(c *gin.Context) {
	planID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_plan_id", err)
		return
	}
	var req struct {
		PlannedDate    *string  `json:"planned_date"`
		DensityOrgM2   *float64 `json:"density_org_m2"`
		InitialWeightG *float64 `json:"initial_weight_g"`
		Note           *string  `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	plannedDate, err := parseDatePtr(req.PlannedDate)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_planned_date", err)
		return
	}
	plan, err := h.ops.ReprogramSeeding(c.Request.Context(), operations.ReprogramSeedingInput{
		PlanID:         planID,
		PlannedDate:    plannedDate,
		DensityOrgM2:   req.DensityOrgM2,
		InitialWeightG: req.InitialWeightG,
		Note:           req.Note,
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"plan": plan})
}

// POST /api/seeding-plans/:id/confirm
func (h *SeedingHandler) Confirm(c *gin.Context) {
	planID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_plan_id", err)
		return
	}
	plan, err := h.ops.ConfirmSeeding(c.Request.Context(), operations.ConfirmSeedingInput{
		PlanID:  planID,
		ActorID: requestActor(c),
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"plan": plan})
}
