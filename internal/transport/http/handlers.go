package apihttp

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"pestma/internal/logger"
	"pestma/internal/pipeline"
	"pestma/internal/report"
	"pestma/internal/store"
)

// 4 MB cap keeps a stray upload from ballooning the model payload.
const maxImageBytes = 4 << 20

type handlers struct {
	analyzer Analyzer
	store    *store.AnalysisStore
}

func (h *handlers) register(group *gin.RouterGroup) {
	group.POST("/analyses", h.handleCreateAnalysis)
	group.GET("/analyses", h.handleListAnalyses)
	group.GET("/analyses/:id", h.handleGetAnalysis)
	group.GET("/analyses/:id/report", h.handleAnalysisReport)
	group.GET("/stats", h.handleStats)
}

type createAnalysisRequest struct {
	Description string `json:"description"`
	ImageBase64 string `json:"image_base64"`
	ImageMIME   string `json:"image_mime"`
}

// handleCreateAnalysis accepts the case as JSON (image base64-encoded) or as
// a multipart form with an "image" file part.
func (h *handlers) handleCreateAnalysis(c *gin.Context) {
	in, err := parseCaseInput(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start := time.Now()
	result, err := h.analyzer.Run(c.Request.Context(), in)
	if errors.Is(err, pipeline.ErrInvalidInput) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	duration := time.Since(start)

	resp := gin.H{
		"result":      result,
		"degraded":    result.Degraded(),
		"duration_ms": duration.Milliseconds(),
	}
	if h.store != nil {
		id, err := h.store.Save(c.Request.Context(), in, result, duration)
		if err != nil {
			// The analysis itself succeeded; losing the record is a warning.
			logger.Warnf("analysis persist failed: %v", err)
		} else {
			resp["id"] = id
		}
	}
	c.JSON(http.StatusOK, resp)
}

func parseCaseInput(c *gin.Context) (pipeline.CaseInput, error) {
	ct := c.ContentType()
	if strings.HasPrefix(ct, "multipart/") {
		return parseMultipartCase(c)
	}

	var req createAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return pipeline.CaseInput{}, errors.New("invalid request body")
	}
	in := pipeline.CaseInput{Description: req.Description, ImageMIME: req.ImageMIME}
	if req.ImageBase64 != "" {
		img, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			return pipeline.CaseInput{}, errors.New("image_base64 is not valid base64")
		}
		if len(img) > maxImageBytes {
			return pipeline.CaseInput{}, errors.New("image exceeds size limit")
		}
		in.Image = img
	}
	return in, nil
}

func parseMultipartCase(c *gin.Context) (pipeline.CaseInput, error) {
	in := pipeline.CaseInput{Description: c.PostForm("description")}
	file, err := c.FormFile("image")
	if err != nil {
		return in, nil
	}
	if file.Size > maxImageBytes {
		return pipeline.CaseInput{}, errors.New("image exceeds size limit")
	}
	f, err := file.Open()
	if err != nil {
		return pipeline.CaseInput{}, errors.New("image part unreadable")
	}
	defer f.Close()
	img, err := io.ReadAll(f)
	if err != nil {
		return pipeline.CaseInput{}, errors.New("image part unreadable")
	}
	in.Image = img
	in.ImageMIME = file.Header.Get("Content-Type")
	return in, nil
}

func (h *handlers) handleListAnalyses(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "store disabled"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	list, err := h.store.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"analyses": list, "count": len(list)})
}

func (h *handlers) handleGetAnalysis(c *gin.Context) {
	a, ok := h.loadAnalysis(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *handlers) handleAnalysisReport(c *gin.Context) {
	a, ok := h.loadAnalysis(c)
	if !ok {
		return
	}
	html, err := report.Render(a)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", html)
}

func (h *handlers) loadAnalysis(c *gin.Context) (store.Analysis, bool) {
	if h.store == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "store disabled"})
		return store.Analysis{}, false
	}
	a, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
		return store.Analysis{}, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return store.Analysis{}, false
	}
	return a, true
}

func (h *handlers) handleStats(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "store disabled"})
		return
	}
	stats, err := h.store.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}
