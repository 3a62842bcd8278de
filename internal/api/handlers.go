// Package api exposes search, stats, ingest and refresh over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/gov-indexer/internal/domain"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/indexer"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/logger"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/search"
)

// DefaultMaxLimit caps the number of results one request may ask for.
const DefaultMaxLimit = 100

// Service is what the handlers need from the indexer.
type Service interface {
	Search(ctx context.Context, query string, opts search.Options) search.Response
	Stats() indexer.Stats
	Submit(raw map[string]any) (*domain.Custom, error)
	StartRefresh() (string, error)
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code"`
	Timestamp time.Time `json:"timestamp"`
}

// SearchRequest is the POST /search body.
type SearchRequest struct {
	Query    string `json:"query"`
	Limit    int    `json:"limit"`
	Category string `json:"category"`
	Source   string `json:"source"`
	Type     string `json:"type"`
}

// RefreshResponse acknowledges a started refresh.
type RefreshResponse struct {
	Status string `json:"status"`
	RunID  string `json:"run_id"`
}

// Handler holds the HTTP handlers.
type Handler struct {
	service  Service
	maxLimit int
	logger   logger.Logger
}

// NewHandler creates a handler. maxLimit <= 0 means DefaultMaxLimit.
func NewHandler(svc Service, maxLimit int, log logger.Logger) *Handler {
	if maxLimit <= 0 {
		maxLimit = DefaultMaxLimit
	}
	return &Handler{service: svc, maxLimit: maxLimit, logger: log}
}

// Search handles GET and POST /api/v1/search.
func (h *Handler) Search(c *gin.Context) {
	var req SearchRequest
	if c.Request.Method == http.MethodGet {
		req = SearchRequest{
			Query:    c.Query("q"),
			Category: c.Query("category"),
			Source:   c.Query("source"),
			Type:     c.Query("type"),
		}
		if raw := c.Query("limit"); raw != "" {
			limit, err := strconv.Atoi(raw)
			if err != nil {
				respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "limit must be an integer")
				return
			}
			req.Limit = limit
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid search request body", logger.Error(err))
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body: "+err.Error())
		return
	}

	opts := search.Options{
		Limit:    h.clampLimit(req.Limit),
		Category: req.Category,
		Source:   req.Source,
		Type:     req.Type,
	}
	c.JSON(http.StatusOK, h.service.Search(c.Request.Context(), req.Query, opts))
}

// clampLimit leaves non-positive limits to the service default and caps the rest.
func (h *Handler) clampLimit(limit int) int {
	if limit > h.maxLimit {
		return h.maxLimit
	}
	if limit < 0 {
		return 0
	}
	return limit
}

// Stats handles GET /api/v1/stats.
func (h *Handler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Stats())
}

// SubmitRecord handles POST /api/v1/records.
func (h *Handler) SubmitRecord(c *gin.Context) {
	var raw map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body: "+err.Error())
		return
	}

	rec, err := h.service.Submit(raw)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, rec)
	case errors.Is(err, search.ErrIndexBuild):
		logger.FromContext(c.Request.Context(), h.logger).Error("Index rebuild after submit failed", logger.Error(err))
		respondError(c, http.StatusInternalServerError, "INDEX_ERROR", err.Error())
	default:
		respondError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	}
}

// Refresh handles POST /api/v1/refresh.
func (h *Handler) Refresh(c *gin.Context) {
	runID, err := h.service.StartRefresh()
	if errors.Is(err, indexer.ErrRefreshInProgress) {
		respondError(c, http.StatusConflict, "REFRESH_IN_PROGRESS", err.Error())
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "REFRESH_ERROR", err.Error())
		return
	}
	c.JSON(http.StatusAccepted, RefreshResponse{Status: "accepted", RunID: runID})
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.JSON(status, ErrorResponse{Error: msg, Code: code, Timestamp: time.Now().UTC()})
}
