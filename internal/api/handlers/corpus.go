package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Conceptual-Machines/magda-composer/internal/logger"
)

type CorpusHandler struct {
	pipeline Pipeline
}

func NewCorpusHandler(pipeline Pipeline) *CorpusHandler {
	return &CorpusHandler{pipeline: pipeline}
}

// GetStatus describes the extracted corpus and checkpoint
func (h *CorpusHandler) GetStatus(c *gin.Context) {
	status, err := h.pipeline.Status()
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": "Corpus not extracted", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}

// Extract rescans the corpus directory and rewrites the artifact
func (h *CorpusHandler) Extract(c *gin.Context) {
	res, err := h.pipeline.Extract(c.Request.Context())
	if err != nil {
		fields := logger.WithContext(c)
		logger.Error("Corpus extraction failed", err, fields)
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "request_id": c.GetString("request_id")})
		return
	}

	skipped := []gin.H{}
	for _, f := range res.Scan.Files {
		if f.Err != nil {
			skipped = append(skipped, gin.H{"path": f.Path, "error": f.Err.Error()})
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"fingerprint":     res.Artifact.Fingerprint,
		"vocabulary_size": len(res.Artifact.Vocabulary),
		"tokens":          len(res.Artifact.IDs),
		"files":           len(res.Artifact.Files),
		"skipped":         skipped,
	})
}
