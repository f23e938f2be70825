package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aquaforge/pondops-backend/internal/http/response"
	"github.com/aquaforge/pondops-backend/internal/modules/operations"
)

type BiometryHandler struct {
	ops operations.Usecases
}

func NewBiometryHandler(ops operations.Usecases) *BiometryHandler {
	return &BiometryHandler{ops: ops}
}

// POST /api/cycles/:id/biometry
func (h *BiometryHandler) Record(c *gin.Context) {
	cycleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_cycle_id", err)
		return
	}
	var req struct {
		PondID         string   `json:"pond_id"`
		SampleDate     string   `json:"sample_date"`
		SampleCount    int      `json:"sample_count"`
		SampleWeightG  float64  `json:"sample_weight_g"`
		SurvivalPct    *float64 `json:"survival_pct"`
		UpdateSurvival bool     `json:"update_survival"`
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
	sampleDate, err := parseDate(req.SampleDate)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_sample_date", err)
		return
	}
	res, err := h.ops.RecordBiometry(c.Request.Context(), operations.RecordBiometryInput{
		CycleID:        cycleID,
		PondID:         pondID,
		SampleDate:     sampleDate,
		SampleCount:    req.SampleCount,
		SampleWeightG:  req.SampleWeightG,
		SurvivalPct:    req.SurvivalPct,
		UpdateSurvival: req.UpdateSurvival,
		Note:           req.Note,
		ActorID:        requestActor(c),
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{
		"sample":     res.Sample,
		"reforecast": res.Reforecast,
	})
}

// GET /api/cycles/:id/biometry?pond_id=...
func (h *BiometryHandler) List(c *gin.Context) {
	cycleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_cycle_id", err)
		return
	}
	pondID, err := uuid.Parse(c.Query("pond_id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_pond_id", err)
		return
	}
	samples, err := h.ops.ListBiometry(c.Request.Context(), cycleID, pondID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"samples": samples})
}

// GET /api/cycles/:id/survival?pond_id=...
func (h *BiometryHandler) SurvivalHistory(c *gin.Context) {
	cycleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_cycle_id", err)
		return
	}
	pondID, err := uuid.Parse(c.Query("pond_id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_pond_id", err)
		return
	}
	changes, err := h.ops.SurvivalHistory(c.Request.Context(), cycleID, pondID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"changes": changes})
}
