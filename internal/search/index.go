package search

import (
	"fmt"
	"strings"

	"github.com/jonesrussell/north-cloud/gov-indexer/internal/domain"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/fuzzy"
)

// Field names and weights. Only the ordering matters:
// title > content/description > tags > source > type/category.
var indexKeys = []fuzzy.Key{
	{Name: "title", Weight: 3},
	{Name: "content", Weight: 2},
	{Name: "description", Weight: 2},
	{Name: "tags", Weight: 1.5},
	{Name: "source", Weight: 1},
	{Name: "type", Weight: 0.5},
	{Name: "category", Weight: 0.5},
}

// hit is one index match with the score turned around: Similarity is 1 for a perfect
// match and 0 for none.
type hit struct {
	entity     domain.Entity
	similarity float64
	matches    []fuzzy.Match
}

// Index is an immutable search snapshot over a fixed set of records.
type Index struct {
	fz       *fuzzy.Index
	entities []domain.Entity
	// lower-cased title, text and tags per entity, for context scoring
	haystacks []string
	tags      [][]string
	// words seen in titles and tags, for spelling suggestions
	vocabulary map[string]struct{}
}

// BuildIndex indexes entities. It fails if any entity lacks a category.
func BuildIndex(entities []domain.Entity, threshold float64) (*Index, error) {
	docs := make([]fuzzy.Fields, len(entities))
	ix := &Index{
		entities:   entities,
		haystacks:  make([]string, len(entities)),
		tags:       make([][]string, len(entities)),
		vocabulary: map[string]struct{}{},
	}
	for i, e := range entities {
		r := e.Base()
		if r.Category == "" {
			return nil, fmt.Errorf("record %q has no category", r.ID)
		}
		docs[i] = fuzzy.Fields{
			"title":       {r.Title},
			"content":     {r.Content},
			"description": {r.Description},
			"tags":        r.Tags,
			"source":      {r.Source},
			"type":        {r.Type},
			"category":    {string(r.Category)},
		}
		ix.haystacks[i] = strings.ToLower(strings.Join([]string{r.Title, r.Description, r.Content}, " "))
		ix.tags[i] = r.Tags
		for _, w := range strings.Fields(strings.ToLower(r.Title + " " + strings.Join(r.Tags, " "))) {
			ix.vocabulary[strings.Trim(w, ".,:;()[]\"'")] = struct{}{}
		}
	}

	fz, err := fuzzy.Build(indexKeys, docs, fuzzy.Options{Threshold: threshold})
	if err != nil {
		return nil, err
	}
	ix.fz = fz
	return ix, nil
}

// Len is the number of indexed records.
func (ix *Index) Len() int { return len(ix.entities) }

// find runs q through the fuzzy index.
func (ix *Index) find(q string) []hit {
	res := ix.fz.Search(q, 0)
	out := make([]hit, len(res))
	for i, r := range res {
		out[i] = hit{entity: ix.entities[r.Ref], similarity: 1 - r.Score, matches: r.Matches}
	}
	return out
}

func (ix *Index) knows(word string) bool {
	_, ok := ix.vocabulary[word]
	return ok
}
