// Package ckan harvests dataset records from CKAN catalogue portals through the
// package_search action.
package ckan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/jonesrussell/north-cloud/gov-indexer/internal/domain"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/logger"
)

const (
	searchPath       = "/api/3/action/package_search"
	defaultRows      = 50
	maxResponseBytes = 20 * 1024 * 1024
	modifiedLayout   = "2006-01-02T15:04:05.999999"
)

var (
	// ErrUnsuccessful is returned when the portal answers with success=false.
	ErrUnsuccessful = errors.New("ckan: request unsuccessful")
	// ErrInvalidResponse is returned for a body that is not a package_search payload.
	ErrInvalidResponse = errors.New("ckan: invalid response")
)

// Config configures the client.
type Config struct {
	Timeout   time.Duration
	UserAgent string
	Retry     RetryConfig
}

// Query selects what to harvest from one portal.
type Query struct {
	Name    string
	BaseURL string
	Q       string
	Rows    int
}

// Client talks to CKAN portals.
type Client struct {
	http   *http.Client
	cfg    Config
	logger logger.Logger
}

// NewClient returns a client. A zero Timeout means 30s.
func NewClient(cfg Config, log logger.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{http: &http.Client{Timeout: cfg.Timeout}, cfg: cfg, logger: log}
}

// Harvest runs package_search against q.BaseURL and converts each package to a dataset.
// Transient failures are retried with backoff.
func (c *Client) Harvest(ctx context.Context, q Query) ([]*domain.Dataset, error) {
	endpoint, err := searchURL(q)
	if err != nil {
		return nil, err
	}

	var body []byte
	err = retry(ctx, c.cfg.Retry, func() error {
		b, fetchErr := c.get(ctx, endpoint)
		if fetchErr != nil {
			c.logger.Debug("CKAN request failed", logger.String("portal", q.Name), logger.Error(fetchErr))
			return fetchErr
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("harvest %s: %w", q.Name, err)
	}

	datasets, err := parsePackages(body, strings.TrimRight(q.BaseURL, "/"), q.Name)
	if err != nil {
		return nil, fmt.Errorf("harvest %s: %w", q.Name, err)
	}
	c.logger.Info("CKAN harvest complete", logger.String("portal", q.Name), logger.Int("datasets", len(datasets)))
	return datasets, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	switch {
	case resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		return nil, permanent(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	return body, nil
}

func searchURL(q Query) (string, error) {
	base, err := url.Parse(strings.TrimRight(q.BaseURL, "/") + searchPath)
	if err != nil {
		return "", fmt.Errorf("invalid base url %q: %w", q.BaseURL, err)
	}
	rows := q.Rows
	if rows <= 0 {
		rows = defaultRows
	}
	v := url.Values{}
	if q.Q != "" {
		v.Set("q", q.Q)
	}
	v.Set("rows", strconv.Itoa(rows))
	base.RawQuery = v.Encode()
	return base.String(), nil
}

func parsePackages(body []byte, baseURL, portal string) ([]*domain.Dataset, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrInvalidResponse
	}
	doc := gjson.ParseBytes(body)
	if !doc.Get("success").Bool() {
		msg := doc.Get("error.message").String()
		return nil, fmt.Errorf("%w: %s", ErrUnsuccessful, msg)
	}
	results := doc.Get("result.results")
	if !results.IsArray() {
		return nil, ErrInvalidResponse
	}

	out := make([]*domain.Dataset, 0, len(results.Array()))
	results.ForEach(func(_, pkg gjson.Result) bool {
		if ds := toDataset(pkg, baseURL, portal); ds != nil {
			out = append(out, ds)
		}
		return true
	})
	return out, nil
}

func toDataset(pkg gjson.Result, baseURL, portal string) *domain.Dataset {
	title := strings.TrimSpace(pkg.Get("title").String())
	name := pkg.Get("name").String()
	if title == "" {
		title = name
	}
	if title == "" {
		return nil
	}
	id := domain.Slug(name)
	if id == "" {
		id = domain.Slug(title)
	}

	source := pkg.Get("organization.title").String()
	if source == "" {
		source = portal
	}

	var tags []string
	for _, t := range pkg.Get("tags.#.name").Array() {
		tags = append(tags, t.String())
	}

	format := strings.TrimSpace(pkg.Get("resources.0.format").String())
	typ := domain.TypeDataset
	if format != "" {
		typ = strings.ToLower(format)
	}

	link := pkg.Get("url").String()
	if link == "" && name != "" {
		link = baseURL + "/dataset/" + name
	}

	ds := &domain.Dataset{
		Record: domain.Record{
			ID:          id,
			Title:       title,
			Description: strings.TrimSpace(pkg.Get("notes").String()),
			Source:      source,
			Type:        typ,
			Category:    domain.CategoryDataset,
			URL:         link,
			Tags:        domain.NormalizeTags(tags),
		},
		Format: format,
	}
	if ts, err := time.Parse(modifiedLayout, pkg.Get("metadata_modified").String()); err == nil {
		ds.LastUpdated = ts.UTC()
	}
	return ds
}
