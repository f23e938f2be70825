package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aquaforge/pondops-backend/internal/platform/ctxutil"
)

// requestActor resolves the authenticated user for audit fields, nil on
// unauthenticated paths.
func requestActor(c *gin.Context) *uuid.UUID {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		return nil
	}
	id := rd.UserID
	return &id
}
