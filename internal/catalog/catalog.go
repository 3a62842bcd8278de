// Package catalog loads the YAML list of static records, crawl seeds and CKAN portals that a
// refresh run works through.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jonesrussell/north-cloud/gov-indexer/internal/domain"
)

var (
	// ErrEmptyCatalog is returned when a catalog names nothing to index.
	ErrEmptyCatalog = errors.New("catalog is empty")
	// ErrMissingRequiredField is returned when an entry lacks a mandatory field.
	ErrMissingRequiredField = errors.New("missing required field")
	// ErrInvalidURL is returned for a non-HTTP(S) URL.
	ErrInvalidURL = errors.New("must be a valid HTTP(S) URL")
	// ErrInvalidDepth is returned for a negative website max_depth.
	ErrInvalidDepth = errors.New("max_depth must not be negative")
)

//go:embed default.yml
var defaultCatalog []byte

// Entry is a static dataset or API record.
type Entry struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Source      string   `yaml:"source"`
	Type        string   `yaml:"type"`
	URL         string   `yaml:"url"`
	Tags        []string `yaml:"tags"`
	Format      string   `yaml:"format"`
	Endpoint    string   `yaml:"endpoint"`
	Method      string   `yaml:"method"`
}

// Website is a crawl seed. A zero MaxDepth means the crawler's configured depth.
type Website struct {
	URL      string   `yaml:"url"`
	Source   string   `yaml:"source"`
	Tags     []string `yaml:"tags"`
	MaxDepth int      `yaml:"max_depth"`
}

// Portal is a CKAN instance to harvest datasets from.
type Portal struct {
	Name    string `yaml:"name"`
	BaseURL string `yaml:"base_url"`
	Query   string `yaml:"query"`
	Rows    int    `yaml:"rows"`
}

// Catalog is the parsed catalog file.
type Catalog struct {
	Datasets []Entry   `yaml:"datasets"`
	APIs     []Entry   `yaml:"apis"`
	Websites []Website `yaml:"websites"`
	Portals  []Portal  `yaml:"ckan"`
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads path, or returns the embedded catalog when path is empty or missing.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default()
		}
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates catalog YAML.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks required fields and fills website defaults.
func (c *Catalog) Validate() error {
	if len(c.Datasets)+len(c.APIs)+len(c.Websites)+len(c.Portals) == 0 {
		return ErrEmptyCatalog
	}
	for i, e := range c.Datasets {
		if strings.TrimSpace(e.Title) == "" {
			return fmt.Errorf("datasets[%d]: %w: title", i, ErrMissingRequiredField)
		}
	}
	for i, e := range c.APIs {
		if strings.TrimSpace(e.Title) == "" {
			return fmt.Errorf("apis[%d]: %w: title", i, ErrMissingRequiredField)
		}
	}
	for i := range c.Websites {
		w := &c.Websites[i]
		if w.URL == "" {
			return fmt.Errorf("websites[%d]: %w: url", i, ErrMissingRequiredField)
		}
		if err := validateURL(w.URL); err != nil {
			return fmt.Errorf("websites[%d]: %w", i, err)
		}
		if w.MaxDepth < 0 {
			return fmt.Errorf("websites[%d]: %w", i, ErrInvalidDepth)
		}
	}
	for i := range c.Portals {
		p := &c.Portals[i]
		if p.BaseURL == "" {
			return fmt.Errorf("ckan[%d]: %w: base_url", i, ErrMissingRequiredField)
		}
		if err := validateURL(p.BaseURL); err != nil {
			return fmt.Errorf("ckan[%d]: %w", i, err)
		}
		if p.Name == "" {
			p.Name = p.BaseURL
		}
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return nil
}

// Dataset converts e to a dataset record. A missing id is derived from the title.
func (e Entry) Dataset() *domain.Dataset {
	typ := e.Type
	if typ == "" {
		typ = domain.TypeDataset
	}
	return &domain.Dataset{Record: e.record(typ, domain.CategoryDataset), Format: e.Format}
}

// API converts e to an API record.
func (e Entry) API() *domain.API {
	typ := e.Type
	if typ == "" {
		typ = domain.TypeAPI
	}
	method := strings.ToUpper(e.Method)
	if method == "" {
		method = "GET"
	}
	endpoint := e.Endpoint
	if endpoint == "" {
		endpoint = e.URL
	}
	return &domain.API{Record: e.record(typ, domain.CategoryAPI), Endpoint: endpoint, Method: method}
}

func (e Entry) record(typ string, cat domain.Category) domain.Record {
	id := e.ID
	if id == "" {
		id = domain.Slug(e.Title)
	}
	return domain.Record{
		ID:          id,
		Title:       e.Title,
		Description: e.Description,
		Source:      e.Source,
		Type:        typ,
		Category:    cat,
		URL:         e.URL,
		Tags:        domain.NormalizeTags(e.Tags),
	}
}

// StaticOnly returns a copy holding only the static datasets and APIs, for runs that must
// not touch the network.
func (c *Catalog) StaticOnly() *Catalog {
	return &Catalog{
		Datasets: append([]Entry(nil), c.Datasets...),
		APIs:     append([]Entry(nil), c.APIs...),
	}
}
