package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRoutes registers the v1 API and, when metrics is non-nil, /metrics.
func SetupRoutes(router *gin.Engine, h *Handler, metrics http.Handler) {
	v1 := router.Group("/api/v1")
	v1.GET("/search", h.Search)
	v1.POST("/search", h.Search)
	v1.GET("/stats", h.Stats)
	v1.POST("/records", h.SubmitRecord)
	v1.POST("/refresh", h.Refresh)

	if metrics != nil {
		router.GET("/metrics", gin.WrapH(metrics))
	}
}
