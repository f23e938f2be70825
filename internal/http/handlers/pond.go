package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aquaforge/pondops-backend/internal/http/response"
	"github.com/aquaforge/pondops-backend/internal/modules/tenancy"
)

type PondHandler struct {
	tenancy tenancy.Usecases
}

func NewPondHandler(tenancy tenancy.Usecases) *PondHandler {
	return &PondHandler{tenancy: tenancy}
}

// POST /api/farms/:id/ponds
func (h *PondHandler) Create(c *gin.Context) {
	farmID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_farm_id", err)
		return
	}
	var req struct {
		Name                 string   `json:"name"`
		SurfaceM2            float64  `json:"surface_m2"`
		DensityOverrideOrgM2 *float64 `json:"density_override_org_m2"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	pond, err := h.tenancy.CreatePond(c.Request.Context(), tenancy.CreatePondInput{
		FarmID:               farmID,
		Name:                 req.Name,
		SurfaceM2:            req.SurfaceM2,
		DensityOverrideOrgM2: req.DensityOverrideOrgM2,
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"pond": pond})
}

// GET /api/farms/:id/ponds?active=true
func (h *PondHandler) List(c *gin.Context) {
	farmID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_farm_id", err)
		return
	}
	activeOnly := c.Query("active") == "true"
	ponds, err := h.tenancy.ListPonds(c.Request.Context(), farmID, activeOnly)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ponds": ponds})
}

// GET /api/ponds/:id
func (h *PondHandler) Get(c *gin.Context) {
	pondID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_pond_id", err)
		return
	}
	pond, err := h.tenancy.GetPond(c.Request.Context(), pondID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"pond": pond})
}

// PATCH /api/ponds/:id
func (h *PondHandler) Update(c *gin.Context) {
	pondID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_pond_id", err)
		return
	}
	var req struct {
		Name                 *string  `json:"name"`
		SurfaceM2            *float64 `json:"surface_m2"`
		DensityOverrideOrgM2 *float64 `json:"density_override_org_m2"`
		Active               *bool    `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	pond, err := h.tenancy.UpdatePond(c.Request.Context(), pondID, tenancy.UpdatePondInput{
		Name:                 req.Name,
		SurfaceM2:            req.SurfaceM2,
		DensityOverrideOrgM2: req.DensityOverrideOrgM2,
		Active:               req.Active,
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"pond": pond})
}

// DELETE /api/ponds/:id
func (h *PondHandler) Delete(c *gin.Context) {
	pondID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_pond_id", err)
		return
	}
	if err := h.tenancy.DeletePond(c.Request.Context(), pondID); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}
