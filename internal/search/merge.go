package search

import (
	"math"

	"github.com/jonesrussell/north-cloud/gov-indexer/internal/domain"
)

const (
	baseRelevance     = 100
	specificSectionUp = 20
)

// merge deduplicates hits by record key. A hit from a higher-priority strategy replaces
// one from a lower-priority strategy; within one strategy the more similar hit wins.
// Partial hits never replace anything. First-seen order is kept.
func merge(groups ...[]strategyHit) []strategyHit {
	index := map[string]int{}
	var out []strategyHit
	for _, hits := range groups {
		for _, h := range hits {
			k := h.entity.Base().Key()
			i, ok := index[k]
			if !ok {
				index[k] = len(out)
				out = append(out, h)
				continue
			}
			if h.strategy == StrategyPartial {
				continue
			}
			cur := out[i]
			switch {
			case h.strategy.priority() < cur.strategy.priority():
				out[i] = h
			case h.strategy == cur.strategy && h.similarity > cur.similarity:
				out[i] = h
			}
		}
	}
	return out
}

// relevance is the composite score: base plus strategy bonus, minus the distance from a
// perfect match, plus context points, plus a bump for sections on specific queries.
func relevance(h strategyHit, a QueryAnalysis) float64 {
	raw := 1 - h.similarity
	score := baseRelevance + h.strategy.Bonus() - raw*100 + float64(h.contextScore)
	if a.IsSpecific && h.entity.Kind() == domain.CategorySection {
		score += specificSectionUp
	}
	return math.Max(0, score)
}
