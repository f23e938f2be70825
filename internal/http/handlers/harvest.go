package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aquaforge/pondops-backend/internal/http/response"
	"github.com/aquaforge/pondops-backend/internal/modules/operations"
)

type HarvestHandler struct {
	ops operations.Usecases
}

func NewHarvestHandler(ops operations.Usecases) *HarvestHandler {
	return &HarvestHandler{ops: ops}
}

// POST /api/cycles/:id/waves
func (h *HarvestHandler) CreateWave(c *gin.Context) {
	cycleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_cycle_id", err)
		return
	}
	var req struct {
		Name                  string   `json:"name"`
		Kind                  string   `json:"kind"`
		WindowStart           string   `json:"window_start"`
		WindowEnd             string   `json:"window_end"`
		TargetWithdrawalOrgM2 *float64 `json:"target_withdrawal_org_m2"`
		Note                  string   `json:"note"`
		PlanLines             bool     `json:"plan_lines"`
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
	detail, err := h.ops.CreateWave(c.Request.Context(), operations.CreateWaveInput{
		CycleID:               cycleID,
		Name:                  req.Name,
		Kind:                  req.Kind,
		WindowStart:           windowStart,
		WindowEnd:             windowEnd,
		TargetWithdrawalOrgM2: req.TargetWithdrawalOrgM2,
		Note:                  req.Note,
		PlanLines:             req.PlanLines,
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"wave": detail.Wave, "lines": detail.Lines})
}

// GET /api/cycles/:id/waves
func (h *HarvestHandler) ListWaves(c *gin.Context) {
	cycleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_cycle_id", err)
		return
	}
	waves, err := h.ops.ListWaves(c.Request.Context(), cycleID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"waves": waves})
}

// GET /api/waves/:id
func (h *HarvestHandler) GetWave(c *gin.Context) {
	waveID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_wave_id", err)
		return
	}
	detail, err := h.ops.GetWave(c.Request.Context(), waveID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"wave": detail.Wave, "lines": detail.Lines})
}

// POST /api/waves/:id/sync-lines
//
// Backfills pending lines for ponds seeded after the wave was planned.
func (h *HarvestHandler) SyncLines(c *gin.Context) {
	waveID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_wave_id", err)
		return
	}
	created, err := h.ops.SyncWaveLines(c.Request.Context(), waveID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"created": created})
}

// POST /api/waves/:id/cancel
func (h *HarvestHandler) CancelWave(c *gin.Context) {
	waveID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_wave_id", err)
		return
	}
	wave, err := h.ops.CancelWave(c.Request.Context(), waveID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"wave": wave})
}

// POST /api/wave-lines/:id/confirm
func (h *HarvestHandler) ConfirmLine(c *gin.Context) {
	lineID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_line_id", err)
		return
	}
	var req struct {
		ConfirmedDate            *string  `json:"confirmed_date"`
		ConfirmedWithdrawalOrgM2 *float64 `json:"confirmed_withdrawal_org_m2"`
		HarvestedBiomassKg       *float64 `json:"harvested_biomass_kg"`
		AvgWeightG               *float64 `json:"avg_weight_g"`
		Note                     string   `json:"note"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	confirmedDate, err := parseDatePtr(req.ConfirmedDate)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_confirmed_date", err)
		return
	}
	res, err := h.ops.ConfirmHarvest(c.Request.Context(), operations.ConfirmHarvestInput{
		LineID:                   lineID,
		ConfirmedDate:            confirmedDate,
		ConfirmedWithdrawalOrgM2: req.ConfirmedWithdrawalOrgM2,
		HarvestedBiomassKg:       req.HarvestedBiomassKg,
		AvgWeightG:               req.AvgWeightG,
		Note:                     req.Note,
		ActorID:                  requestActor(c),
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{
		"line":       res.Line,
		"wave":       res.Wave,
		"reforecast": res.Reforecast,
	})
}
