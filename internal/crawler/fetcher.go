package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	colly "github.com/gocolly/colly/v2"
)

//go:generate mockgen -destination=mocks/mock_fetcher.go -package=mocks . Fetcher

// Fetcher retrieves a page body.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (*Page, error)
}

// Page is a fetched response.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
}

// FetcherConfig configures the colly fetcher.
type FetcherConfig struct {
	UserAgent       string
	Timeout         time.Duration
	MaxBodySize     int
	IgnoreRobotsTxt bool
}

// Fetcher defaults.
const (
	DefaultUserAgent   = "gov-indexer/1.0 (+https://github.com/jonesrussell/north-cloud)"
	DefaultTimeout     = 10 * time.Second
	DefaultMaxBodySize = 10 * 1024 * 1024
)

// WithDefaults fills unset values.
func (c FetcherConfig) WithDefaults() FetcherConfig {
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxBodySize <= 0 {
		c.MaxBodySize = DefaultMaxBodySize
	}
	return c
}

var errEmptyResponse = errors.New("empty response")

// CollyFetcher fetches single pages with a fresh colly collector per call. Link
// following and dedup are left to the Crawler.
type CollyFetcher struct {
	cfg FetcherConfig
}

// NewCollyFetcher creates a colly-backed fetcher.
func NewCollyFetcher(cfg FetcherConfig) *CollyFetcher {
	return &CollyFetcher{cfg: cfg.WithDefaults()}
}

// Fetch implements Fetcher. Non-2xx responses are errors.
func (f *CollyFetcher) Fetch(ctx context.Context, pageURL string) (*Page, error) {
	opts := []colly.CollectorOption{
		colly.StdlibContext(ctx),
		colly.UserAgent(f.cfg.UserAgent),
		colly.MaxBodySize(f.cfg.MaxBodySize),
		colly.AllowURLRevisit(),
	}
	c := colly.NewCollector(opts...)
	// colly ignores robots.txt unless told otherwise.
	c.IgnoreRobotsTxt = f.cfg.IgnoreRobotsTxt
	c.SetRequestTimeout(f.cfg.Timeout)

	var (
		page     *Page
		fetchErr error
	)
	c.OnResponse(func(r *colly.Response) {
		page = &Page{URL: r.Request.URL.String(), StatusCode: r.StatusCode, Body: r.Body}
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
			return
		}
		fetchErr = err
	})

	if err := c.Visit(pageURL); err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	if fetchErr != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, fetchErr)
	}
	if page == nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, errEmptyResponse)
	}
	return page, nil
}
