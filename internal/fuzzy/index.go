// Package fuzzy implements a weighted multi-field fuzzy index. Scores follow the usual
// fuzzy-search convention: 0 is a perfect match and 1 is no match.
package fuzzy

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// DefaultThreshold is the largest per-term score still counted as a match.
const DefaultThreshold = 0.4

// epsilon stands in for a perfect score so it still contributes to the product.
const epsilon = 2.220446049250313e-16

var (
	ErrNoKeys       = errors.New("fuzzy: at least one key is required")
	ErrInvalidKey   = errors.New("fuzzy: invalid key")
	ErrUnknownField = errors.New("fuzzy: document field not in keys")
)

// Key is a searchable field and its relative weight.
type Key struct {
	Name   string
	Weight float64
}

// Fields maps key names to the values of one document.
type Fields map[string][]string

// Options tunes matching.
type Options struct {
	// Threshold in [0,1]; 0 means DefaultThreshold.
	Threshold float64
}

// Match records where a query hit one value.
type Match struct {
	Key     string   `json:"key"`
	Value   string   `json:"value"`
	Indices [][2]int `json:"indices"`
}

// Result is one matching document. Ref is its position in the slice passed to Build.
type Result struct {
	Ref     int
	Score   float64
	Matches []Match
}

type value struct {
	text  string
	lower []rune
	norm  float64
}

// Index is immutable once built and safe for concurrent searches.
type Index struct {
	keys      []Key
	docs      [][][]value
	threshold float64
}

// Build validates keys, normalises their weights to sum to 1 and indexes docs.
func Build(keys []Key, docs []Fields, opts Options) (*Index, error) {
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("fuzzy: threshold %v outside [0,1]", threshold)
	}

	pos := make(map[string]int, len(keys))
	total := 0.0
	for i, k := range keys {
		if k.Name == "" || k.Weight <= 0 {
			return nil, fmt.Errorf("%w: %q weight %v", ErrInvalidKey, k.Name, k.Weight)
		}
		if _, dup := pos[k.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate %q", ErrInvalidKey, k.Name)
		}
		pos[k.Name] = i
		total += k.Weight
	}
	norm := make([]Key, len(keys))
	for i, k := range keys {
		norm[i] = Key{Name: k.Name, Weight: k.Weight / total}
	}

	ix := &Index{keys: norm, docs: make([][][]value, len(docs)), threshold: threshold}
	for d, fields := range docs {
		byKey := make([][]value, len(keys))
		for name, vals := range fields {
			k, ok := pos[name]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
			}
			for _, v := range vals {
				if strings.TrimSpace(v) == "" {
					continue
				}
				byKey[k] = append(byKey[k], value{text: v, lower: []rune(strings.ToLower(v)), norm: fieldNorm(v)})
			}
		}
		ix.docs[d] = byKey
	}
	return ix, nil
}

// Len is the number of indexed documents.
func (ix *Index) Len() int { return len(ix.docs) }

// Keys returns the normalised keys.
func (ix *Index) Keys() []Key { return append([]Key(nil), ix.keys...) }

// Search runs q against every document. Whitespace-separated terms are AND-ed within a
// value. Results are ordered best first; limit <= 0 means no limit.
func (ix *Index) Search(q string, limit int) []Result {
	terms := parseQuery(q)
	if len(terms) == 0 {
		return nil
	}

	var results []Result
	for ref, byKey := range ix.docs {
		total, matched := 1.0, false
		var matches []Match
		for k, vals := range byKey {
			w := ix.keys[k].Weight
			for _, v := range vals {
				score, ranges, ok := ix.matchValue(terms, v.lower)
				if !ok {
					continue
				}
				matched = true
				if score == 0 {
					score = epsilon
				}
				total *= math.Pow(score, w*v.norm)
				matches = append(matches, Match{Key: ix.keys[k].Name, Value: v.text, Indices: ranges})
			}
		}
		if matched {
			results = append(results, Result{Ref: ref, Score: total, Matches: matches})
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score < results[j].Score })
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

// matchValue requires every term to match and averages their scores.
func (ix *Index) matchValue(terms []term, text []rune) (float64, [][2]int, bool) {
	sum := 0.0
	var ranges [][2]int
	for _, t := range terms {
		s, r, ok := t.match(text, ix.threshold)
		if !ok {
			return 1, nil, false
		}
		sum += s
		ranges = append(ranges, r...)
	}
	return sum / float64(len(terms)), ranges, true
}

// fieldNorm damps long values: 1/sqrt(word count), rounded to three places.
func fieldNorm(v string) float64 {
	n := len(strings.Fields(v))
	if n == 0 {
		n = 1
	}
	return math.Round(1000/math.Sqrt(float64(n))) / 1000
}
