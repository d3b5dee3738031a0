package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	sessions func() int
}

// NewHealthHandler reports mounted sessions when sessions is set.
func NewHealthHandler(sessions func() int) *HealthHandler {
	return &HealthHandler{sessions: sessions}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	if h.sessions == nil || c.Query("verbose") == "" {
		c.String(http.StatusOK, "ok")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": h.sessions()})
}
