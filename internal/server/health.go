package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthStatus is the overall service state.
type HealthStatus string

const (
	HealthStatusHealthy  HealthStatus = "healthy"
	HealthStatusNotReady HealthStatus = "not_ready"
)

// HealthResponse is returned by /health and /ready.
type HealthResponse struct {
	Status  HealthStatus `json:"status"`
	Service string       `json:"service"`
	Version string       `json:"version"`
	Uptime  string       `json:"uptime,omitempty"`
}

// ReadinessFunc reports whether the service can serve traffic.
type ReadinessFunc func() bool

// RegisterHealthRoutes adds GET/HEAD /health and, when ready is non-nil, GET /ready.
func RegisterHealthRoutes(router *gin.Engine, service, version string, ready ReadinessFunc) {
	started := time.Now()

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, HealthResponse{
			Status:  HealthStatusHealthy,
			Service: service,
			Version: version,
			Uptime:  time.Since(started).Truncate(time.Second).String(),
		})
	})
	router.HEAD("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	if ready == nil {
		return
	}
	router.GET("/ready", func(c *gin.Context) {
		resp := HealthResponse{Status: HealthStatusHealthy, Service: service, Version: version}
		if !ready() {
			resp.Status = HealthStatusNotReady
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
		c.JSON(http.StatusOK, resp)
	})
}
