package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aquaforge/pondops-backend/internal/http/response"
	"github.com/aquaforge/pondops-backend/internal/modules/ingestion"
)

type UploadHandler struct {
	ing ingestion.Usecases
}

func NewUploadHandler(ing ingestion.Usecases) *UploadHandler {
	return &UploadHandler{ing: ing}
}

// POST /api/cycles/:id/uploads
//
// Multipart form: "file" carries the plan document, optional "version"
// names the projection it will produce.
func (h *UploadHandler) Upload(c *gin.Context) {
	cycleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_cycle_id", err)
		return
	}
	if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_multipart_form", err)
		return
	}
	fh, err := c.FormFile("file")
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "missing_file", err)
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		n := len(data)
		if n > 512 {
			n = 512
		}
		contentType = http.DetectContentType(data[:n])
	}

	up, err := h.ing.UploadProjection(c.Request.Context(), ingestion.UploadInput{
		CycleID:     cycleID,
		FileName:    fh.Filename,
		ContentType: contentType,
		Version:     strings.TrimSpace(c.PostForm("version")),
		Data:        data,
	})
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondCreated(c, gin.H{"upload": up})
}

// GET /api/cycles/:id/uploads
func (h *UploadHandler) List(c *gin.Context) {
	cycleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_cycle_id", err)
		return
	}
	uploads, err := h.ing.ListUploads(c.Request.Context(), cycleID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"uploads": uploads})
}

// GET /api/uploads/:id
func (h *UploadHandler) Get(c *gin.Context) {
	uploadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_upload_id", err)
		return
	}
	up, err := h.ing.GetUpload(c.Request.Context(), uploadID)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"upload": up})
}
