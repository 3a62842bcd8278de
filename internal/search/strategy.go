package search

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/jonesrussell/north-cloud/gov-indexer/internal/domain"
)

// Strategy names the retrieval strategy that produced a result.
type Strategy string

const (
	StrategySemantic Strategy = "semantic"
	StrategyExact    Strategy = "exact"
	StrategyFuzzy    Strategy = "fuzzy"
	StrategyPartial  Strategy = "partial"
)

// Strategies in priority order.
var Strategies = []Strategy{StrategySemantic, StrategyExact, StrategyFuzzy, StrategyPartial}

// Bonus is the composite-score bonus for the strategy.
func (s Strategy) Bonus() float64 {
	switch s {
	case StrategySemantic:
		return 50
	case StrategyExact:
		return 40
	case StrategyFuzzy:
		return 20
	case StrategyPartial:
		return 10
	}
	return 0
}

// priority: lower wins.
func (s Strategy) priority() int {
	for i, k := range Strategies {
		if k == s {
			return i
		}
	}
	return len(Strategies)
}

// Context points per vocabulary hit.
const (
	locationPoints = 10
	topicPoints    = 8
	govLevelPoints = 5
	sectionPoints  = 3
	minPartialWord = 3
)

type strategyHit struct {
	hit
	strategy     Strategy
	contextScore int
}

// semanticHits scores every record on the query's detected vocabulary.
func semanticHits(ix *Index, a QueryAnalysis) []strategyHit {
	if !a.HasContext {
		return nil
	}
	var out []strategyHit
	for i, e := range ix.entities {
		score := contextScore(ix.haystacks[i], ix.tags[i], a)
		if score == 0 {
			continue
		}
		if e.Kind() == domain.CategorySection {
			score += sectionPoints
		}
		out = append(out, strategyHit{
			hit:          hit{entity: e, similarity: 1 - 1/float64(score+1)},
			strategy:     StrategySemantic,
			contextScore: score,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].contextScore > out[j].contextScore })
	return out
}

func contextScore(haystack string, tags []string, a QueryAnalysis) int {
	score := 0
	for _, l := range a.Locations {
		if mentions(haystack, tags, l) {
			score += locationPoints
		}
	}
	for _, t := range a.Topics {
		if mentions(haystack, tags, t) {
			score += topicPoints
		}
	}
	for _, g := range a.GovLevels {
		if mentions(haystack, tags, g) {
			score += govLevelPoints
		}
	}
	return score
}

func mentions(haystack string, tags []string, term string) bool {
	for _, t := range tags {
		if strings.Contains(t, term) {
			return true
		}
	}
	return strings.Contains(haystack, term)
}

// exactHits matches the whole query as a phrase.
func exactHits(ix *Index, q string) []strategyHit {
	phrase := strings.TrimSpace(strings.ReplaceAll(q, `"`, ""))
	if phrase == "" {
		return nil
	}
	return tag(ix.find(`"`+phrase+`"`), StrategyExact)
}

// fuzzyHits runs the query as typed.
func fuzzyHits(ix *Index, q string) []strategyHit {
	return tag(ix.find(q), StrategyFuzzy)
}

// partialHits queries each word longer than two characters, keeping each record's best hit.
func partialHits(ix *Index, a QueryAnalysis) []strategyHit {
	best := map[string]int{}
	var out []strategyHit
	for _, w := range a.Terms {
		if utf8.RuneCountInString(w) < minPartialWord {
			continue
		}
		for _, h := range ix.find(w) {
			k := h.entity.Base().Key()
			if i, ok := best[k]; ok {
				if h.similarity > out[i].similarity {
					out[i].hit = h
				}
				continue
			}
			best[k] = len(out)
			out = append(out, strategyHit{hit: h, strategy: StrategyPartial})
		}
	}
	return out
}

func tag(hits []hit, s Strategy) []strategyHit {
	out := make([]strategyHit, len(hits))
	for i, h := range hits {
		out[i] = strategyHit{hit: h, strategy: s}
	}
	return out
}
