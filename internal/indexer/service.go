// Package indexer orchestrates refresh runs, record submission, queries and stats over
// the shared store and search engine.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/jonesrussell/north-cloud/gov-indexer/internal/catalog"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/ckan"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/crawler"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/domain"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/logger"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/records"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/search"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/store"
)

// ErrRefreshInProgress is returned when a refresh is requested while one is running.
var ErrRefreshInProgress = errors.New("refresh already in progress")

// DefaultMaxDepth is the crawl depth for catalog websites without their own max_depth
// when Config.MaxDepth is unset.
const DefaultMaxDepth = 2

// Crawler walks one seed into the sink.
type Crawler interface {
	Crawl(ctx context.Context, seed string, opts crawler.Options, visited crawler.VisitedSet, sink crawler.Sink) (crawler.Stats, error)
}

// Harvester pulls datasets from a catalogue portal.
type Harvester interface {
	Harvest(ctx context.Context, q ckan.Query) ([]*domain.Dataset, error)
}

// Recorder observes refresh and ingest activity.
type Recorder interface {
	RefreshFinished(err error, took time.Duration)
	CrawlFinished(source string, pages, errors int)
	HarvestFailed(portal string)
	RecordIngested()
}

type nopRecorder struct{}

func (nopRecorder) RefreshFinished(error, time.Duration) {}
func (nopRecorder) CrawlFinished(string, int, int)       {}
func (nopRecorder) HarvestFailed(string)                 {}
func (nopRecorder) RecordIngested()                      {}

// Config wires a Service. Harvester and Recorder are optional.
type Config struct {
	Store        *store.Store
	Engine       *search.Engine
	Crawler      Crawler
	Harvester    Harvester
	Catalog      *catalog.Catalog
	Workers      int
	MaxDepth     int
	DefaultLimit int
	Recorder     Recorder
	Logger       logger.Logger
}

// RefreshResult summarises one refresh run.
type RefreshResult struct {
	RunID         string        `json:"run_id"`
	Datasets      int           `json:"datasets"`
	APIs          int           `json:"apis"`
	Documents     int           `json:"documents"`
	Sections      int           `json:"sections"`
	Pages         int           `json:"pages"`
	FetchErrors   int           `json:"fetch_errors"`
	HarvestErrors int           `json:"harvest_errors"`
	Duration      time.Duration `json:"duration"`
}

// Stats extends the store breakdown with index state.
type Stats struct {
	store.Stats
	IndexSize  int  `json:"index_size"`
	IndexReady bool `json:"index_ready"`
	Refreshing bool `json:"refreshing"`
}

// Service is the single writer of the store and the engine's index.
type Service struct {
	store        *store.Store
	engine       *search.Engine
	crawler      Crawler
	harvester    Harvester
	decoder      *records.Decoder
	catalog      atomic.Pointer[catalog.Catalog]
	workers      int
	maxDepth     int
	defaultLimit int
	recorder     Recorder
	logger       logger.Logger

	refreshing atomic.Bool
	rebuildMu  sync.Mutex

	lifeMu   sync.Mutex
	lifeCtx  context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	schedule *Scheduler
}

// NewService validates cfg and returns a Service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Store == nil || cfg.Engine == nil || cfg.Crawler == nil || cfg.Catalog == nil {
		return nil, errors.New("indexer: store, engine, crawler and catalog are required")
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.MaxDepth < 1 {
		cfg.MaxDepth = DefaultMaxDepth
	}
	if cfg.DefaultLimit < 1 {
		cfg.DefaultLimit = search.DefaultLimit
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}

	s := &Service{
		store:        cfg.Store,
		engine:       cfg.Engine,
		crawler:      cfg.Crawler,
		harvester:    cfg.Harvester,
		decoder:      records.NewDecoder(),
		workers:      cfg.Workers,
		maxDepth:     cfg.MaxDepth,
		defaultLimit: cfg.DefaultLimit,
		recorder:     cfg.Recorder,
		logger:       cfg.Logger,
		lifeCtx:      context.Background(),
	}
	s.catalog.Store(cfg.Catalog)
	return s, nil
}

// Catalog returns the catalog the next refresh will use.
func (s *Service) Catalog() *catalog.Catalog { return s.catalog.Load() }

// SetCatalog swaps the catalog and starts a refresh in the background.
func (s *Service) SetCatalog(c *catalog.Catalog) {
	s.catalog.Store(c)
	if _, err := s.StartRefresh(); err != nil {
		s.logger.Info("Catalog changed during refresh, applying on next run", logger.Error(err))
	}
}

// Refreshing reports whether a refresh is running.
func (s *Service) Refreshing() bool { return s.refreshing.Load() }

// Refresh runs a full refresh synchronously.
func (s *Service) Refresh(ctx context.Context) (RefreshResult, error) {
	if !s.refreshing.CompareAndSwap(false, true) {
		return RefreshResult{}, ErrRefreshInProgress
	}
	defer s.refreshing.Store(false)
	return s.refresh(ctx, uuid.NewString())
}

// StartRefresh claims the refresh slot and runs the refresh in the background, returning
// its run id.
func (s *Service) StartRefresh() (string, error) {
	if !s.refreshing.CompareAndSwap(false, true) {
		return "", ErrRefreshInProgress
	}
	runID := uuid.NewString()

	s.lifeMu.Lock()
	ctx := s.lifeCtx
	s.wg.Add(1)
	s.lifeMu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.refreshing.Store(false)
		if _, err := s.refresh(ctx, runID); err != nil {
			s.logger.Error("Background refresh failed", logger.String("run_id", runID), logger.Error(err))
		}
	}()
	return runID, nil
}

// refresh collects a new batch, replaces every crawled or fetched record with it and
// rebuilds the index. A cancelled run leaves the store untouched.
func (s *Service) refresh(ctx context.Context, runID string) (result RefreshResult, err error) {
	start := time.Now()
	log := s.logger.With(logger.String("run_id", runID))
	result.RunID = runID
	defer func() {
		result.Duration = time.Since(start)
		s.recorder.RefreshFinished(err, result.Duration)
	}()

	cat := s.catalog.Load()
	log.Info("Refresh started",
		logger.Int("websites", len(cat.Websites)),
		logger.Int("portals", len(cat.Portals)),
	)

	batch := store.NewBatch()
	for _, e := range cat.Datasets {
		batch.AddDataset(e.Dataset())
	}
	for _, e := range cat.APIs {
		batch.AddAPI(e.API())
	}

	if err = s.runJobs(ctx, log, cat, batch, &result); err != nil {
		return result, err
	}
	if err = ctx.Err(); err != nil {
		log.Warn("Refresh cancelled, keeping previous records", logger.Error(err))
		return result, err
	}

	snap := batch.Snapshot()
	result.Datasets = len(snap.Datasets)
	result.APIs = len(snap.APIs)
	result.Documents = len(snap.Documents)
	result.Sections = len(snap.Sections)

	s.store.ReplaceCrawled(batch)
	if err = s.rebuild(); err != nil {
		return result, err
	}

	log.Info("Refresh finished",
		logger.Int("datasets", result.Datasets),
		logger.Int("apis", result.APIs),
		logger.Int("documents", result.Documents),
		logger.Int("sections", result.Sections),
		logger.Int("fetch_errors", result.FetchErrors),
		logger.Int("harvest_errors", result.HarvestErrors),
		logger.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// runJobs crawls every website and harvests every portal on a bounded pool. All crawls of
// one run share a visited set.
func (s *Service) runJobs(
	ctx context.Context, log logger.Logger, cat *catalog.Catalog, batch *store.Batch, result *RefreshResult,
) error {
	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	visited := store.NewVisited()
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	submit := func(job func()) {
		wg.Add(1)
		if submitErr := pool.Submit(func() { defer wg.Done(); job() }); submitErr != nil {
			wg.Done()
			log.Error("Failed to submit refresh job", logger.Error(submitErr))
		}
	}

	for _, w := range cat.Websites {
		depth := w.MaxDepth
		if depth < 1 {
			depth = s.maxDepth
		}
		submit(func() {
			stats, crawlErr := s.crawler.Crawl(ctx, w.URL, crawler.Options{
				Source:   w.Source,
				Tags:     w.Tags,
				MaxDepth: depth,
			}, visited, batch)
			if crawlErr != nil {
				log.Warn("Crawl aborted", logger.String("url", w.URL), logger.Error(crawlErr))
			}
			s.recorder.CrawlFinished(w.Source, stats.Pages, stats.Errors)
			mu.Lock()
			result.Pages += stats.Pages
			result.FetchErrors += stats.Errors
			mu.Unlock()
		})
	}

	if s.harvester != nil {
		for _, p := range cat.Portals {
			submit(func() {
				datasets, harvestErr := s.harvester.Harvest(ctx, ckan.Query{
					Name: p.Name, BaseURL: p.BaseURL, Q: p.Query, Rows: p.Rows,
				})
				if harvestErr != nil {
					log.Warn("Harvest failed", logger.String("portal", p.Name), logger.Error(harvestErr))
					s.recorder.HarvestFailed(p.Name)
					mu.Lock()
					result.HarvestErrors++
					mu.Unlock()
					return
				}
				for _, d := range datasets {
					batch.AddDataset(d)
				}
			})
		}
	}

	wg.Wait()
	return nil
}

// rebuild indexes the current store contents. Rebuilds are serialised so the last
// writer always indexes the newest snapshot.
func (s *Service) rebuild() error {
	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()
	return s.engine.Rebuild(s.store.Snapshot().Entities())
}

// Submit decodes raw into a submitted record, stores it and rebuilds the index. The
// record stays stored even when the rebuild fails.
func (s *Service) Submit(raw map[string]any) (*domain.Custom, error) {
	rec, err := s.decoder.Decode(raw)
	if err != nil {
		return nil, err
	}
	s.store.AddSubmitted(rec)
	s.recorder.RecordIngested()
	s.logger.Info("Record submitted",
		logger.String("id", rec.ID),
		logger.String("category", string(rec.Category)),
	)
	if err = s.rebuild(); err != nil {
		return rec, err
	}
	return rec, nil
}

// Search queries the current index.
func (s *Service) Search(ctx context.Context, query string, opts search.Options) search.Response {
	if opts.Limit <= 0 {
		opts.Limit = s.defaultLimit
	}
	return s.engine.Search(ctx, query, opts)
}

// Stats reports record counts and index state.
func (s *Service) Stats() Stats {
	return Stats{
		Stats:      s.store.Stats(),
		IndexSize:  s.engine.Size(),
		IndexReady: s.engine.Ready(),
		Refreshing: s.Refreshing(),
	}
}

// Ready reports whether the first index has been built.
func (s *Service) Ready() bool { return s.engine.Ready() }

// Start begins scheduled refreshes. When onStart is set the first refresh starts
// immediately in the background. An empty schedule disables the timer.
func (s *Service) Start(ctx context.Context, schedule string, onStart bool) error {
	s.lifeMu.Lock()
	s.lifeCtx, s.cancel = context.WithCancel(ctx)
	s.lifeMu.Unlock()

	if schedule != "" {
		sched, err := NewScheduler(schedule, s.scheduledRefresh, s.logger)
		if err != nil {
			return err
		}
		s.schedule = sched
		s.schedule.Start()
	}
	if onStart {
		if _, err := s.StartRefresh(); err != nil {
			s.logger.Warn("Initial refresh not started", logger.Error(err))
		}
	}
	return nil
}

// Stop halts the schedule, cancels running refreshes and waits for them.
func (s *Service) Stop() {
	if s.schedule != nil {
		s.schedule.Stop()
	}
	s.lifeMu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.lifeMu.Unlock()
	s.wg.Wait()
}

func (s *Service) scheduledRefresh() {
	if _, err := s.StartRefresh(); err != nil {
		s.logger.Info("Scheduled refresh skipped", logger.Error(err))
	}
}
