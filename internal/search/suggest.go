package search

import (
	"fmt"
	"strings"

	"github.com/xrash/smetrics"

	"github.com/jonesrussell/north-cloud/gov-indexer/internal/store"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/vocab"
)

const (
	maxContextSuggestions = 3
	maxRelatedTags        = 3
	minSpellWord          = 4
	spellThreshold        = 0.9
)

// suggestions builds follow-up queries from the analysis and the returned results.
func suggestions(ix *Index, a QueryAnalysis, results []Result) []string {
	out := []string{}
	q := strings.TrimSpace(a.Original)

	if len(a.Topics) > 0 && len(a.Locations) == 0 {
		for _, loc := range firstN(vocab.SuggestionLocations, maxContextSuggestions) {
			out = append(out, fmt.Sprintf("%s in %s", q, loc))
		}
	}
	if len(a.Locations) > 0 && len(a.Topics) == 0 {
		for _, topic := range firstN(vocab.SuggestionTopics, maxContextSuggestions) {
			out = append(out, fmt.Sprintf("%s %s", topic, q))
		}
	}
	if related := relatedTags(a, results); len(related) > 0 {
		out = append(out, "Related topics: "+strings.Join(related, ", "))
	}
	if fixed, ok := spellCorrect(ix, a); ok {
		out = append(out, fmt.Sprintf("Did you mean %q?", fixed))
	}
	return out
}

// relatedTags are the most frequent result tags not already in the query.
func relatedTags(a QueryAnalysis, results []Result) []string {
	counts := map[string]int{}
	inQuery := strings.ToLower(a.Original)
	for _, r := range results {
		for _, t := range r.Record.Base().Tags {
			if strings.Contains(inQuery, t) {
				continue
			}
			counts[t]++
		}
	}
	top := store.TopTags(counts, maxRelatedTags)
	out := make([]string, len(top))
	for i, tc := range top {
		out[i] = tc.Tag
	}
	return out
}

// spellCorrect replaces query words the index has never seen with the closest known
// vocabulary term, when one is close enough.
func spellCorrect(ix *Index, a QueryAnalysis) (string, bool) {
	if ix == nil || len(a.Terms) == 0 {
		return "", false
	}
	candidates := append(append(append([]string{}, vocab.Topics...), vocab.Locations...), vocab.GovLevels...)
	changed := false
	words := make([]string, len(a.Terms))
	for i, w := range a.Terms {
		words[i] = w
		if len([]rune(w)) < minSpellWord || ix.knows(w) || isVocab(w, candidates) {
			continue
		}
		best, bestScore := "", 0.0
		consider := func(c string) {
			s := smetrics.JaroWinkler(w, c, 0.7, 4)
			if s > bestScore || (s == bestScore && c < best) {
				best, bestScore = c, s
			}
		}
		for c := range ix.vocabulary {
			consider(c)
		}
		for _, c := range candidates {
			consider(c)
		}
		if bestScore >= spellThreshold && best != w {
			words[i] = best
			changed = true
		}
	}
	return strings.Join(words, " "), changed
}

func isVocab(w string, terms []string) bool {
	for _, t := range terms {
		if t == w {
			return true
		}
	}
	return false
}

func firstN(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
