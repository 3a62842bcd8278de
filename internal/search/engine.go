// Package search is the multi-strategy query engine. Every query runs four strategies
// (semantic context, exact phrase, fuzzy, per-word partial) over an immutable index
// snapshot, merges their hits and ranks them with a composite relevance score.
package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonesrussell/north-cloud/gov-indexer/internal/domain"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/fuzzy"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/logger"
)

// DefaultLimit applies when Options.Limit is not positive.
const DefaultLimit = 50

// ErrIndexBuild wraps every failed rebuild.
var ErrIndexBuild = errors.New("index build failed")

// Options narrows a search. Empty filters match everything.
type Options struct {
	Limit    int    `json:"limit"`
	Category string `json:"category,omitempty"`
	Source   string `json:"source,omitempty"`
	Type     string `json:"type,omitempty"`
}

// Result is one ranked record.
type Result struct {
	Record       domain.Entity  `json:"record"`
	Category     string         `json:"category"`
	SearchType   Strategy       `json:"search_type"`
	Score        float64        `json:"score"`
	RawScore     float64        `json:"raw_score"`
	Relevance    float64        `json:"relevance"`
	ContextScore int            `json:"context_score,omitempty"`
	Matches      []fuzzy.Match  `json:"matches,omitempty"`
	Analysis     *QueryAnalysis `json:"query_analysis"`
}

// Response is the full answer to a query.
type Response struct {
	Query       string        `json:"query"`
	Results     []Result      `json:"results"`
	Total       int           `json:"total"`
	Suggestions []string      `json:"suggestions"`
	Analysis    QueryAnalysis `json:"analysis"`
	TookMs      int64         `json:"took_ms"`
}

// Recorder observes engine activity. The metrics package implements it.
type Recorder interface {
	IndexBuilt(records int, took time.Duration)
	IndexBuildFailed()
	SearchCompleted(winners map[Strategy]int, took time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) IndexBuilt(int, time.Duration) {}
func (nopRecorder) IndexBuildFailed() {}
func (nopRecorder) SearchCompleted(map[Strategy]int, time.Duration) {}

// Engine serves queries from the most recently built index. Rebuilds swap the index
// atomically, so in-flight queries finish against the snapshot they started with.
type Engine struct {
	current   atomic.Pointer[Index]
	threshold float64
	logger    logger.Logger
	recorder  Recorder
}

// Option configures an Engine.
type Option func(*Engine)

// WithThreshold sets the fuzzy match threshold.
func WithThreshold(t float64) Option { return func(e *Engine) { e.threshold = t } }

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// NewEngine returns an engine with no index; searches return empty results until Rebuild.
func NewEngine(log logger.Logger, opts ...Option) *Engine {
	e := &Engine{threshold: fuzzy.DefaultThreshold, logger: log, recorder: nopRecorder{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rebuild indexes entities and swaps the new index in. On failure, including a panic
// while building, the previous index keeps serving.
func (e *Engine) Rebuild(entities []domain.Entity) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrIndexBuild, r)
		}
		if err != nil {
			e.recorder.IndexBuildFailed()
			e.logger.Error("Index rebuild failed, keeping previous index", logger.Error(err))
		}
	}()

	ix, buildErr := BuildIndex(entities, e.threshold)
	if buildErr != nil {
		return fmt.Errorf("%w: %w", ErrIndexBuild, buildErr)
	}
	e.current.Store(ix)

	took := time.Since(start)
	e.recorder.IndexBuilt(ix.Len(), took)
	e.logger.Info("Index rebuilt", logger.Int("records", ix.Len()), logger.Duration("took", took))
	return nil
}

// Ready reports whether an index has been built.
func (e *Engine) Ready() bool { return e.current.Load() != nil }

// Size is the number of records in the current index.
func (e *Engine) Size() int {
	if ix := e.current.Load(); ix != nil {
		return ix.Len()
	}
	return 0
}

// Search runs every strategy and returns ranked, filtered results. An empty query or a
// missing index yields an empty response, never an error.
func (e *Engine) Search(ctx context.Context, query string, opts Options) Response {
	start := time.Now()
	resp := Response{Query: query, Results: []Result{}, Suggestions: []string{}}

	ix := e.current.Load()
	if ix == nil || strings.TrimSpace(query) == "" {
		return resp
	}
	a := AnalyzeQuery(query)
	resp.Analysis = a

	groups := e.runStrategies(ctx, ix, query, a)
	merged := merge(groups...)

	results := make([]Result, 0, len(merged))
	for _, h := range merged {
		r := toResult(h, &resp.Analysis)
		if !opts.matches(r) {
			continue
		}
		results = append(results, r)
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Relevance > results[j].Relevance })

	resp.Total = len(results)
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if len(results) > limit {
		results = results[:limit]
	}
	resp.Results = results
	resp.Suggestions = suggestions(ix, a, results)

	took := time.Since(start)
	resp.TookMs = took.Milliseconds()
	winners := make(map[Strategy]int, len(Strategies))
	for _, r := range results {
		winners[r.SearchType]++
	}
	e.recorder.SearchCompleted(winners, took)
	return resp
}

// runStrategies fans the four read-only strategies out over the same snapshot.
func (e *Engine) runStrategies(ctx context.Context, ix *Index, q string, a QueryAnalysis) [][]strategyHit {
	groups := make([][]strategyHit, len(Strategies))
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error { groups[0] = semanticHits(ix, a); return nil })
	g.Go(func() error { groups[1] = exactHits(ix, q); return nil })
	g.Go(func() error { groups[2] = fuzzyHits(ix, q); return nil })
	g.Go(func() error { groups[3] = partialHits(ix, a); return nil })
	_ = g.Wait()
	return groups
}

func toResult(h strategyHit, a *QueryAnalysis) Result {
	return Result{
		Record:       h.entity,
		Category:     string(h.entity.Base().Category),
		SearchType:   h.strategy,
		Score:        h.similarity,
		RawScore:     1 - h.similarity,
		Relevance:    relevance(h, *a),
		ContextScore: h.contextScore,
		Matches:      h.matches,
		Analysis:     a,
	}
}

func (o Options) matches(r Result) bool {
	b := r.Record.Base()
	if o.Category != "" && o.Category != r.Category {
		return false
	}
	if o.Source != "" && o.Source != b.Source {
		return false
	}
	if o.Type != "" && o.Type != b.Type {
		return false
	}
	return true
}
