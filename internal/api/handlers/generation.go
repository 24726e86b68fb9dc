package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Conceptual-Machines/magda-composer/internal/logger"
	"github.com/Conceptual-Machines/magda-composer/internal/services"
)

type GenerationHandler struct {
	pipeline Pipeline
}

func NewGenerationHandler(pipeline Pipeline) *GenerationHandler {
	return &GenerationHandler{pipeline: pipeline}
}

// GenerateRequest is the body of POST /api/v1/generations. All fields are optional.
type GenerateRequest struct {
	Count        int   `json:"count" binding:"omitempty,min=1,max=16"`
	Steps        int   `json:"steps" binding:"omitempty,min=1,max=5000"`
	MakeNotation *bool `json:"make_notation"`
}

// Generate runs the model and writes Count new score files
func (h *GenerationHandler) Generate(c *gin.Context) {
	var req GenerateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	start := time.Now()
	outputs, err := h.pipeline.Generate(c.Request.Context(), services.GenerateOptions{
		Count:        req.Count,
		Steps:        req.Steps,
		MakeNotation: req.MakeNotation,
	})

	fields := logger.WithContext(c)
	fields["outputs"] = len(outputs)
	if err != nil {
		logger.Error("Generation request failed", err, fields)
		c.JSON(statusFor(err), gin.H{
			"error":      err.Error(),
			"request_id": c.GetString("request_id"),
			"outputs":    outputs,
		})
		return
	}

	logger.LogAPIRequest(c, time.Since(start), http.StatusCreated, fields)
	c.JSON(http.StatusCreated, gin.H{"outputs": outputs})
}

// List returns the generated files, newest first
func (h *GenerationHandler) List(c *gin.Context) {
	files, err := h.pipeline.ListOutputs()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list outputs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"outputs": files})
}

// Download streams one generated MIDI file
func (h *GenerationHandler) Download(c *gin.Context) {
	name := c.Param("name")
	path, err := h.pipeline.OutputPath(name)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": "Output not found"})
		return
	}

	c.Header("Content-Type", midiContentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	c.File(path)
}

// ListRuns returns the run history
func (h *GenerationHandler) ListRuns(c *gin.Context) {
	limit := defaultRunPageSize
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxRunPageSize)
	}

	runs, err := h.pipeline.Runs().ListRuns(c.Request.Context(), limit)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// GetRun returns one run by id
func (h *GenerationHandler) GetRun(c *gin.Context) {
	run, err := h.pipeline.Runs().GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, run)
}
