// Package domain holds the indexable record types shared by the crawler, store and search engine.
package domain

import (
	"strings"
	"time"
)

// Category classifies a record at indexing time.
type Category string

const (
	CategoryDataset  Category = "dataset"
	CategoryAPI      Category = "api"
	CategoryDocument Category = "document"
	CategorySection  Category = "section"
	CategoryCustom   Category = "custom"
)

// Categories lists every category in index order.
var Categories = []Category{
	CategoryDataset, CategoryAPI, CategoryDocument, CategorySection, CategoryCustom,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, k := range Categories {
		if c == k {
			return true
		}
	}
	return false
}

// Record types commonly assigned by the harvesters.
const (
	TypeCodelist      = "codelist"
	TypeAPI           = "api"
	TypeDocumentation = "documentation"
	TypeWebsite       = "website"
	TypeSection       = "section"
	TypeFile          = "file"
	TypeURL           = "url"
	TypeDataset       = "dataset"
)

// Record is the base shape shared by every indexable item.
type Record struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Content     string    `json:"content,omitempty"`
	Source      string    `json:"source"`
	Type        string    `json:"type"`
	Category    Category  `json:"category"`
	URL         string    `json:"url,omitempty"`
	Tags        []string  `json:"tags"`
	LastUpdated time.Time `json:"last_updated"`
}

// Base returns r itself; embedded in every variant so they satisfy Entity.
func (r *Record) Base() *Record { return r }

// Text returns the content, falling back to the description.
func (r *Record) Text() string {
	if r.Content != "" {
		return r.Content
	}
	return r.Description
}

// Key is the merge key used when deduplicating hits: category plus id, or title when id is empty.
func (r *Record) Key() string {
	if r.ID != "" {
		return string(r.Category) + ":" + r.ID
	}
	return string(r.Category) + ":" + r.Title
}

// Entity is implemented by every record variant.
type Entity interface {
	Base() *Record
	Kind() Category
}

// Dataset is a harvested or catalogued dataset.
type Dataset struct {
	Record
	Format string `json:"format,omitempty"`
}

// Kind implements Entity.
func (*Dataset) Kind() Category { return CategoryDataset }

// API is a catalogued web API.
type API struct {
	Record
	Endpoint string `json:"endpoint,omitempty"`
	Method   string `json:"method,omitempty"`
}

// Kind implements Entity.
func (*API) Kind() Category { return CategoryAPI }

// SectionRef is the summary of a section kept on its owning document.
type SectionRef struct {
	ID    string   `json:"id"`
	Title string   `json:"title"`
	Level int      `json:"level"`
	Path  []string `json:"path"`
}

// Document is a crawled web page.
type Document struct {
	Record
	Sections []SectionRef `json:"sections"`
}

// Kind implements Entity.
func (*Document) Kind() Category { return CategoryDocument }

// Section is a heading-delimited fragment of a crawled page.
type Section struct {
	Record
	Level       int      `json:"level"`
	Path        []string `json:"path"`
	ParentURL   string   `json:"parent_url"`
	ParentTitle string   `json:"parent_title"`
}

// Kind implements Entity.
func (*Section) Kind() Category { return CategorySection }

// Ref summarises s for its parent document.
func (s *Section) Ref() SectionRef {
	return SectionRef{ID: s.ID, Title: s.Title, Level: s.Level, Path: s.Path}
}

// Custom is a record submitted through the ingest interface.
type Custom struct {
	Record
}

// Kind returns the stored category, so submitted records may claim any category.
func (c *Custom) Kind() Category {
	if c.Category == "" {
		return CategoryCustom
	}
	return c.Category
}

// NormalizeTags lower-cases, trims and de-duplicates tags, keeping first-seen order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
