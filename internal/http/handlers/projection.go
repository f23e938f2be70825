package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/http/response"
	"github.com/aquaforge/pondops-backend/internal/modules/projection"
)

type ProjectionHandler struct {
	proj projection.Usecases
	refc *projection.Reforecaster
}

func NewProjectionHandler(proj projection.Usecases, refc *projection.Reforecaster) *ProjectionHandler {
	return &ProjectionHandler{proj: proj, refc: refc}
}

// POST /api/cycles/:id/projections
func (h *ProjectionHandler) Create(c *gin.Context) {
	cycleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_cycle_id", err)
		return
	}
	var req struct {
		StartDate        *string                   `json:"start_date"`
		Weeks            int                       `json:"weeks"`
		InitialWeightG   *float64                  `json:"initial_weight_g"`
		FinalWeightG     float64                   `json:"final_weight_g"`
		FinalSurvivalPct float64                   `json:"final_survival_pct"`
		Shape            string                    `json:"shape"`
		Harvests         []projection.HarvestEvent `json:"harvests"`
		UseExistingWaves bool                      `json:"use_existing_waves"`
		Version          string                    `json:"version"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	startDate, err := parseDatePtr(req.StartDate)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_start_date", err)
		return
	}
	res, err := h.proj.CreateFromPlans(c.Request.Context(), projection.CreateFromPlansInput{
		CycleID:          cycleID,
		StartDate:        startDate,
		Weeks:            req.Weeks,
		InitialWeightG:   req.InitialWeightG,
		FinalWeightG:     req.FinalWeightG,
		FinalSurvivalPct: req.FinalSurvivalPct,
		Shape:            req.Shape,
		Harvests:         req.Harvests,
		UseExistingWaves: req.UseExistingWaves,
		Version:          req.Version,
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, res)
}

// GET /api/cycles/:id/projections
func (h *ProjectionHandler) List(c *gin.Context) {
	cycleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_cycle_id", err)
		return
	}
	headers, err := h.proj.ListVersions(c.Request.Context(), cycleID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"projections": headers})
}

// GET /api/projections/:id
func (h *ProjectionHandler) Get(c *gin.Context) {
	headerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_projection_id", err)
		return
	}
	detail, err := h.proj.GetDetail(c.Request.Context(), headerID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, detail)
}

// PUT /api/projections/:id/lines
func (h *ProjectionHandler) ReplaceLines(c *gin.Context) {
	headerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_projection_id", err)
		return
	}
	var req struct {
		Lines []types.ProjectionLine `json:"lines"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	detail, err := h.proj.ReplaceLines(c.Request.Context(), headerID, req.Lines)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, detail)
}

// POST /api/projections/:id/publish
func (h *ProjectionHandler) Publish(c *gin.Context) {
	headerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_projection_id", err)
		return
	}
	var req struct {
		SetCurrent *bool `json:"set_current"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		if !errors.Is(err, io.EOF) {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
		// An empty body publishes and makes the header current.
	}
	setCurrent := req.SetCurrent == nil || *req.SetCurrent
	header, err := h.proj.Publish(c.Request.Context(), projection.PublishInput{
		HeaderID:   headerID,
		SetCurrent: setCurrent,
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"projection": header})
}

// POST /api/projections/:id/current
func (h *ProjectionHandler) SetCurrent(c *gin.Context) {
	headerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_projection_id", err)
		return
	}
	header, err := h.proj.SetCurrent(c.Request.Context(), headerID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"projection": header})
}

// POST /api/projections/:id/cancel
func (h *ProjectionHandler) Cancel(c *gin.Context) {
	headerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_projection_id", err)
		return
	}
	if err := h.proj.Cancel(c.Request.Context(), headerID); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}

// DELETE /api/projections/:id
func (h *ProjectionHandler) Delete(c *gin.Context) {
	headerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_projection_id", err)
		return
	}
	if err := h.proj.Delete(c.Request.Context(), headerID); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}

// POST /api/cycles/:id/reforecast
//
// Manually replays an observation against the cycle's draft. Weekend
// observations aggregate Saturday and Sunday onto the Sunday line.
func (h *ProjectionHandler) Reforecast(c *gin.Context) {
	cycleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_cycle_id", err)
		return
	}
	var req struct {
		EventDate   string   `json:"event_date"`
		WeightG     *float64 `json:"weight_g"`
		SurvivalPct *float64 `json:"survival_pct"`
		Reason      string   `json:"reason"`
		Weekend     bool     `json:"weekend"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	eventDate, err := parseDate(req.EventDate)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_event_date", err)
		return
	}

	var outcome *projection.Outcome
	if req.Weekend {
		outcome, err = h.refc.ObserveWindow(c.Request.Context(), projection.WindowObservation{
			CycleID:   cycleID,
			EventDate: eventDate,
			Weekend:   true,
			Reason:    req.Reason,
		})
	} else {
		outcome, err = h.refc.ObserveAndRebuild(c.Request.Context(), projection.Observation{
			CycleID:     cycleID,
			EventDate:   eventDate,
			WeightG:     req.WeightG,
			SurvivalPct: req.SurvivalPct,
			Reason:      req.Reason,
		})
	}
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"outcome": outcome})
}
