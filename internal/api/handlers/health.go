package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	pipeline Pipeline
}

func NewHealthHandler(pipeline Pipeline) *HealthHandler {
	return &HealthHandler{pipeline: pipeline}
}

// HealthCheck returns the health status of the API and whether it can generate
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ready := false
	corpus := gin.H{"status": "missing"}

	if status, err := h.pipeline.Status(); err == nil {
		ready = status.CheckpointReady
		corpus = gin.H{
			"status":           "ready",
			"fingerprint":      status.Fingerprint,
			"checkpoint_ready": status.CheckpointReady,
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"can_compose": ready,
		"corpus":      corpus,
		"history":     h.pipeline.Runs().Enabled(),
	})
}
