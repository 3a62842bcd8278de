package server

import (
	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/gov-indexer/internal/logger"
)

// Builder assembles a Server.
type Builder struct {
	config      Config
	logger      logger.Logger
	ready       ReadinessFunc
	setupRoutes func(*gin.Engine)
}

// NewBuilder starts a builder for the named service.
func NewBuilder(serviceName, version string) *Builder {
	return &Builder{config: Config{ServiceName: serviceName, ServiceVersion: version}}
}

// WithConfig replaces the server config, keeping the service name and version.
func (b *Builder) WithConfig(cfg Config) *Builder {
	cfg.ServiceName, cfg.ServiceVersion = b.config.ServiceName, b.config.ServiceVersion
	b.config = cfg
	return b
}

// WithLogger sets the logger.
func (b *Builder) WithLogger(log logger.Logger) *Builder {
	b.logger = log
	return b
}

// WithReadiness enables /ready.
func (b *Builder) WithReadiness(ready ReadinessFunc) *Builder {
	b.ready = ready
	return b
}

// WithRoutes sets the service route setup.
func (b *Builder) WithRoutes(setup func(*gin.Engine)) *Builder {
	b.setupRoutes = setup
	return b
}

// Build creates the server. Health routes are registered before service routes.
func (b *Builder) Build() *Server {
	if b.logger == nil {
		b.logger = logger.NewNop()
	}
	return New(b.config, b.logger, func(router *gin.Engine) {
		RegisterHealthRoutes(router, b.config.ServiceName, b.config.ServiceVersion, b.ready)
		if b.setupRoutes != nil {
			b.setupRoutes(router)
		}
	})
}
