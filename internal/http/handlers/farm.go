package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aquaforge/pondops-backend/internal/http/response"
	"github.com/aquaforge/pondops-backend/internal/modules/tenancy"
)

type FarmHandler struct {
	tenancy tenancy.Usecases
}

func NewFarmHandler(tenancy tenancy.Usecases) *FarmHandler {
	return &FarmHandler{tenancy: tenancy}
}

// POST /api/farms
func (h *FarmHandler) Create(c *gin.Context) {
	var req struct {
		Name     string   `json:"name"`
		Location string   `json:"location"`
		Timezone string   `json:"timezone"`
		Hectares *float64 `json:"hectares"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	farm, err := h.tenancy.CreateFarm(c.Request.Context(), tenancy.CreateFarmInput{
		Name:     req.Name,
		Location: req.Location,
		Timezone: req.Timezone,
		Hectares: req.Hectares,
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"farm": farm})
}

// GET /api/farms
func (h *FarmHandler) List(c *gin.Context) {
	farms, err := h.tenancy.ListFarms(c.Request.Context())
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"farms": farms})
}

// GET /api/farms/:id
func (h *FarmHandler) Get(c *gin.Context) {
	farmID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_farm_id", err)
		return
	}
	farm, err := h.tenancy.GetFarm(c.Request.Context(), farmID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"farm": farm})
}

// PATCH /api/farms/:id
func (h *FarmHandler) Update(c *gin.Context) {
	farmID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_farm_id", err)
		return
	}
	var req struct {
		Name     *string  `json:"name"`
		Location *string  `json:"location"`
		Timezone *string  `json:"timezone"`
		Hectares *float64 `json:"hectares"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	farm, err := h.tenancy.UpdateFarm(c.Request.Context(), farmID, tenancy.UpdateFarmInput{
		Name:     req.Name,
		Location: req.Location,
		Timezone: req.Timezone,
		Hectares: req.Hectares,
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"farm": farm})
}

// DELETE /api/farms/:id
func (h *FarmHandler) Delete(c *gin.Context) {
	farmID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_farm_id", err)
		return
	}
	if err := h.tenancy.DeleteFarm(c.Request.Context(), farmID); err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}
