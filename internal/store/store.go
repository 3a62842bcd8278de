// Package store owns the in-memory record collections. Refresh runs build a Batch and swap it
// in whole; submitted records live in a separate collection that survives refreshes.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/jonesrussell/north-cloud/gov-indexer/internal/domain"
)

// Snapshot is a read-only view of every collection at one point in time.
type Snapshot struct {
	Datasets  []*domain.Dataset
	APIs      []*domain.API
	Documents []*domain.Document
	Sections  []*domain.Section
	Submitted []*domain.Custom
}

// Entities flattens the snapshot in category order.
func (s Snapshot) Entities() []domain.Entity {
	out := make([]domain.Entity, 0, s.Len())
	add := func(e domain.Entity) { out = append(out, e) }
	for _, d := range s.Datasets {
		add(d)
	}
	for _, a := range s.APIs {
		add(a)
	}
	for _, d := range s.Documents {
		add(d)
	}
	for _, sec := range s.Sections {
		add(sec)
	}
	for _, c := range s.Submitted {
		add(c)
	}
	return out
}

// Len is the total number of records.
func (s Snapshot) Len() int {
	return len(s.Datasets) + len(s.APIs) + len(s.Documents) + len(s.Sections) + len(s.Submitted)
}

// Store holds crawled and submitted records. Only refresh and ingest write to it.
type Store struct {
	mu          sync.RWMutex
	crawled     *Batch
	submitted   []*domain.Custom
	lastRefresh time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{crawled: NewBatch()}
}

// ReplaceCrawled discards every crawled or fetched record and installs b in their place.
func (s *Store) ReplaceCrawled(b *Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crawled = b
	s.lastRefresh = time.Now().UTC()
}

// AddSubmitted stores c, replacing an earlier submission with the same key.
func (s *Store) AddSubmitted(c *domain.Custom) {
	c.Category = c.Kind()
	s.mu.Lock()
	defer s.mu.Unlock()
	key := c.Key()
	for i, existing := range s.submitted {
		if existing.Key() == key {
			s.submitted[i] = c
			return
		}
	}
	s.submitted = append(s.submitted, c)
}

// Snapshot copies the current collections.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.crawled.snapshot()
	snap.Submitted = append([]*domain.Custom(nil), s.submitted...)
	return snap
}

// LastRefresh is the time of the last ReplaceCrawled call.
func (s *Store) LastRefresh() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRefresh
}

// Batch accumulates records during a refresh. Safe for concurrent use.
type Batch struct {
	mu        sync.Mutex
	datasets  []*domain.Dataset
	apis      []*domain.API
	documents []*domain.Document
	sections  []*domain.Section
}

// NewBatch returns an empty batch.
func NewBatch() *Batch { return &Batch{} }

// AddDataset appends d.
func (b *Batch) AddDataset(d *domain.Dataset) {
	d.Category = domain.CategoryDataset
	b.mu.Lock()
	b.datasets = append(b.datasets, d)
	b.mu.Unlock()
}

// AddAPI appends a.
func (b *Batch) AddAPI(a *domain.API) {
	a.Category = domain.CategoryAPI
	b.mu.Lock()
	b.apis = append(b.apis, a)
	b.mu.Unlock()
}

// AddDocument appends a crawled page and its sections.
func (b *Batch) AddDocument(doc *domain.Document, sections []*domain.Section) {
	doc.Category = domain.CategoryDocument
	for _, sec := range sections {
		sec.Category = domain.CategorySection
	}
	b.mu.Lock()
	b.documents = append(b.documents, doc)
	b.sections = append(b.sections, sections...)
	b.mu.Unlock()
}

func (b *Batch) snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Snapshot{
		Datasets:  append([]*domain.Dataset(nil), b.datasets...),
		APIs:      append([]*domain.API(nil), b.apis...),
		Documents: append([]*domain.Document(nil), b.documents...),
		Sections:  append([]*domain.Section(nil), b.sections...),
	}
}

// Snapshot returns the batch contents collected so far.
func (b *Batch) Snapshot() Snapshot { return b.snapshot() }

// TagCount is one entry of the tag breakdown.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Stats summarises the store for dashboards.
type Stats struct {
	Total       int                     `json:"total"`
	Categories  map[domain.Category]int `json:"categories"`
	Sources     map[string]int          `json:"sources"`
	Types       map[string]int          `json:"types"`
	Tags        []TagCount              `json:"tags"`
	LastRefresh time.Time               `json:"last_refresh"`
}

const maxStatsTags = 20

// Stats computes per-category counts and source, type and tag breakdowns.
func (s *Store) Stats() Stats {
	snap := s.Snapshot()
	st := Stats{
		Categories:  make(map[domain.Category]int, len(domain.Categories)),
		Sources:     map[string]int{},
		Types:       map[string]int{},
		LastRefresh: s.LastRefresh(),
	}
	for _, c := range domain.Categories {
		st.Categories[c] = 0
	}

	tags := map[string]int{}
	for _, e := range snap.Entities() {
		r := e.Base()
		st.Total++
		st.Categories[e.Kind()]++
		if r.Source != "" {
			st.Sources[r.Source]++
		}
		if r.Type != "" {
			st.Types[r.Type]++
		}
		for _, t := range r.Tags {
			tags[t]++
		}
	}
	st.Tags = TopTags(tags, maxStatsTags)
	return st
}

// TopTags orders counts descending, ties broken alphabetically, keeping at most n.
func TopTags(counts map[string]int, n int) []TagCount {
	out := make([]TagCount, 0, len(counts))
	for t, c := range counts {
		out = append(out, TagCount{Tag: t, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Tag < out[j].Tag
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
