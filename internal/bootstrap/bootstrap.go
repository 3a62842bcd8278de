// Package bootstrap wires configuration into the running service.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/gov-indexer/internal/api"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/catalog"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/ckan"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/config"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/crawler"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/indexer"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/logger"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/metrics"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/search"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/server"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/store"
)

// ServiceName identifies the service in health responses and logs.
const ServiceName = "gov-indexer"

// Components holds every wired dependency.
type Components struct {
	Config  *config.Config
	Logger  logger.Logger
	Metrics *metrics.Metrics
	Store   *store.Store
	Engine  *search.Engine
	Service *indexer.Service
}

// NewComponents loads the configured catalog and wires everything around it.
func NewComponents(cfg *config.Config, log logger.Logger) (*Components, error) {
	cat, err := LoadCatalog(cfg, log)
	if err != nil {
		return nil, err
	}
	return NewComponentsWithCatalog(cfg, cat, log)
}

// LoadCatalog reads the configured catalog, falling back to the embedded default.
func LoadCatalog(cfg *config.Config, log logger.Logger) (*catalog.Catalog, error) {
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	log.Info("Catalog loaded",
		logger.String("path", cfg.Catalog.Path),
		logger.Int("datasets", len(cat.Datasets)),
		logger.Int("apis", len(cat.APIs)),
		logger.Int("websites", len(cat.Websites)),
		logger.Int("portals", len(cat.Portals)),
	)
	return cat, nil
}

// NewComponentsWithCatalog builds the store, engine, crawler, harvester and indexer
// service. Nothing is fetched until a refresh runs.
func NewComponentsWithCatalog(cfg *config.Config, cat *catalog.Catalog, log logger.Logger) (*Components, error) {
	m := metrics.New()
	st := store.New()
	engine := search.NewEngine(log.With(logger.String("component", "search")),
		search.WithThreshold(cfg.Search.Threshold),
		search.WithRecorder(m),
	)

	svc, err := indexer.NewService(indexer.Config{
		Store:        st,
		Engine:       engine,
		Crawler:      NewCrawler(cfg.Crawler, log),
		Harvester:    newHarvester(cfg, log),
		Catalog:      cat,
		Workers:      cfg.Crawler.Workers,
		MaxDepth:     cfg.Crawler.MaxDepth,
		DefaultLimit: cfg.Search.DefaultLimit,
		Recorder:     m,
		Logger:       log.With(logger.String("component", "indexer")),
	})
	if err != nil {
		return nil, fmt.Errorf("create indexer: %w", err)
	}

	return &Components{Config: cfg, Logger: log, Metrics: m, Store: st, Engine: engine, Service: svc}, nil
}

// NewCrawler builds the colly-backed crawler with the configured courtesy delay.
func NewCrawler(cfg config.CrawlerConfig, log logger.Logger) *crawler.Crawler {
	fetcher := crawler.NewCollyFetcher(crawler.FetcherConfig{
		UserAgent:       cfg.UserAgent,
		Timeout:         cfg.Timeout,
		MaxBodySize:     cfg.MaxBodySize,
		IgnoreRobotsTxt: cfg.IgnoreRobotsTxt,
	})
	return crawler.New(fetcher, crawler.NewRateLimiter(cfg.Delay), log.With(logger.String("component", "crawler")))
}

func newHarvester(cfg *config.Config, log logger.Logger) indexer.Harvester {
	if !cfg.CKAN.Enabled {
		return nil
	}
	retry := ckan.DefaultRetryConfig()
	retry.MaxAttempts = cfg.CKAN.Retries + 1
	return ckan.NewClient(ckan.Config{
		Timeout:   cfg.CKAN.Timeout,
		UserAgent: cfg.Crawler.UserAgent,
		Retry:     retry,
	}, log.With(logger.String("component", "ckan")))
}

// NewServer builds the HTTP server over c.
func NewServer(c *Components, version string) *server.Server {
	cfg := c.Config.Server
	handler := api.NewHandler(c.Service, c.Config.Search.MaxLimit, c.Logger)

	return server.NewBuilder(ServiceName, version).
		WithConfig(server.Config{
			Address:         cfg.Address(),
			Debug:           c.Config.Logger.Development,
			ReadTimeout:     cfg.ReadTimeout,
			WriteTimeout:    cfg.WriteTimeout,
			IdleTimeout:     cfg.IdleTimeout,
			ShutdownTimeout: cfg.ShutdownTimeout,
			CORSOrigins:     cfg.CORSOrigins,
		}).
		WithLogger(c.Logger).
		WithReadiness(c.Service.Ready).
		WithRoutes(func(router *gin.Engine) {
			api.SetupRoutes(router, handler, c.Metrics.Handler())
		}).
		Build()
}

// RunHTTPD starts the refresh schedule, the optional catalog watcher and the HTTP server,
// and blocks until shutdown.
func RunHTTPD(ctx context.Context, cfg *config.Config, log logger.Logger, version string) error {
	c, err := NewComponents(cfg, log)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err = c.Service.Start(ctx, cfg.Refresh.Schedule, cfg.Refresh.OnStart); err != nil {
		return fmt.Errorf("start indexer: %w", err)
	}
	defer c.Service.Stop()

	if cfg.Catalog.Watch && cfg.Catalog.Path != "" {
		w := catalog.NewWatcher(cfg.Catalog.Path, 0, c.Service.SetCatalog, log.With(logger.String("component", "catalog")))
		go func() {
			if watchErr := w.Run(ctx); watchErr != nil {
				log.Error("Catalog watcher stopped", logger.Error(watchErr))
			}
		}()
	}

	return NewServer(c, version).RunWithGracefulShutdown(ctx)
}
