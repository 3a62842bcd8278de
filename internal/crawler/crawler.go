// Package crawler turns seed URLs into Document and Section records. Each seed is walked
// depth-first from an explicit worklist, bounded by depth and deduplicated through a
// visited set shared by every crawl in the same refresh run.
package crawler

import (
	"context"
	"errors"
	"time"

	"github.com/jonesrussell/north-cloud/gov-indexer/internal/domain"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/logger"
)

// ErrInvalidOptions is returned for a crawl request without a seed or with MaxDepth < 1.
var ErrInvalidOptions = errors.New("crawler: seed url and max depth >= 1 required")

// VisitedSet is the per-run URL dedup set.
type VisitedSet interface {
	// MarkVisited records url and reports whether it was new.
	MarkVisited(url string) bool
}

// Sink receives crawled records.
type Sink interface {
	AddDocument(doc *domain.Document, sections []*domain.Section)
}

// Options for one seed.
type Options struct {
	Source   string
	Tags     []string
	MaxDepth int
}

// Stats summarises one Crawl call.
type Stats struct {
	Pages    int
	Sections int
	Errors   int
	Skipped  int
}

// Crawler fetches and extracts pages.
type Crawler struct {
	fetcher   Fetcher
	extractor *PageExtractor
	limiter   *RateLimiter
	logger    logger.Logger
	now       func() time.Time
}

// New creates a crawler. limiter may be nil for no delay.
func New(fetcher Fetcher, limiter *RateLimiter, log logger.Logger) *Crawler {
	if limiter == nil {
		limiter = NewRateLimiter(0)
	}
	return &Crawler{
		fetcher:   fetcher,
		extractor: NewPageExtractor(),
		limiter:   limiter,
		logger:    log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type workItem struct {
	url   string
	depth int
}

// Crawl walks from seed. Fetch and parse failures are logged and only drop that page and
// whatever it would have linked to. Crawl returns early only when ctx is cancelled.
func (c *Crawler) Crawl(ctx context.Context, seed string, opts Options, visited VisitedSet, sink Sink) (Stats, error) {
	var stats Stats
	if seed == "" || opts.MaxDepth < 1 {
		return stats, ErrInvalidOptions
	}
	log := c.logger.With(logger.String("seed", seed), logger.String("source", opts.Source))

	stack := []workItem{{url: seed, depth: 0}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if item.depth >= opts.MaxDepth || !visited.MarkVisited(item.url) {
			stats.Skipped++
			continue
		}
		if item.depth > 0 {
			if err := c.limiter.Wait(ctx); err != nil {
				return stats, err
			}
		} else {
			c.limiter.Mark()
		}

		links, nSections, ok := c.visit(ctx, log, item, opts, sink)
		if !ok {
			stats.Errors++
			continue
		}
		stats.Pages++
		stats.Sections += nSections

		// reversed so the first link is crawled next
		for i := len(links) - 1; i >= 0; i-- {
			stack = append(stack, workItem{url: links[i], depth: item.depth + 1})
		}
	}

	log.Info("Crawl finished",
		logger.Int("pages", stats.Pages),
		logger.Int("sections", stats.Sections),
		logger.Int("errors", stats.Errors),
	)
	return stats, nil
}

func (c *Crawler) visit(
	ctx context.Context, log logger.Logger, item workItem, opts Options, sink Sink,
) (links []string, sections int, ok bool) {
	page, err := c.fetcher.Fetch(ctx, item.url)
	if err != nil {
		log.Warn("Fetch failed", logger.String("url", item.url), logger.Int("depth", item.depth), logger.Error(err))
		return nil, 0, false
	}

	ext, err := c.extractor.Extract(item.url, page.Body, opts.Tags, item.depth+1 < opts.MaxDepth)
	if err != nil {
		log.Warn("Parse failed", logger.String("url", item.url), logger.Error(err))
		return nil, 0, false
	}

	doc, secs := c.buildRecords(item.url, ext, opts)
	sink.AddDocument(doc, secs)
	log.Debug("Page crawled",
		logger.String("url", item.url),
		logger.Int("depth", item.depth),
		logger.Int("sections", len(secs)),
		logger.Int("links", len(ext.Links)),
	)
	return ext.Links, len(secs), true
}

func (c *Crawler) buildRecords(pageURL string, ext *ExtractedPage, opts Options) (*domain.Document, []*domain.Section) {
	now := c.now()
	doc := &domain.Document{
		Record: domain.Record{
			ID:          domain.Slug(pageURL),
			Title:       ext.Title,
			Description: ext.Description,
			Source:      opts.Source,
			Type:        domain.TypeWebsite,
			Category:    domain.CategoryDocument,
			URL:         pageURL,
			Tags:        domain.NormalizeTags(opts.Tags),
			LastUpdated: now,
		},
	}

	sections := make([]*domain.Section, 0, len(ext.Sections))
	for _, d := range ext.Sections {
		anchor := pageURL + "#" + domain.Slug(d.Title)
		s := &domain.Section{
			Record: domain.Record{
				ID:          domain.Slug(anchor),
				Title:       d.Title,
				Content:     d.Content,
				Source:      opts.Source,
				Type:        domain.TypeSection,
				Category:    domain.CategorySection,
				URL:         anchor,
				Tags:        domain.NormalizeTags(d.Tags),
				LastUpdated: now,
			},
			Level:       d.Level,
			Path:        d.Path,
			ParentURL:   pageURL,
			ParentTitle: ext.Title,
		}
		sections = append(sections, s)
		doc.Sections = append(doc.Sections, s.Ref())
	}
	return doc, sections
}
