// Package vocab holds the fixed location, topic and government-level vocabularies used for
// tag extraction and query analysis.
package vocab

import (
	"sort"
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"
)

// Locations are geographic locality names. The first entries are the preferred
// suggestion candidates.
var Locations = []string{
	"adelaide", "sydney", "melbourne", "brisbane", "perth", "hobart", "darwin", "canberra",
	"south australia", "new south wales", "victoria", "queensland", "western australia",
	"tasmania", "northern territory", "australian capital territory",
	"port adelaide", "salisbury", "playford", "onkaparinga", "marion", "mitcham",
	"unley", "norwood", "prospect", "burnside", "tea tree gully", "charles sturt",
	"holdfast bay", "mount barker", "gawler", "whyalla", "mount gambier", "port augusta",
	"australia",
}

// Topics are subject-area names.
var Topics = []string{
	"education", "health", "transport", "housing", "environment", "employment",
	"population", "crime", "economy", "tourism", "agriculture", "energy", "water",
	"planning", "infrastructure", "welfare", "business", "finance", "budget",
	"census", "geography", "demographics", "safety", "recreation", "culture",
}

// GovLevels are government-level names.
var GovLevels = []string{
	"federal", "commonwealth", "state", "local", "council", "municipal", "national",
}

// SuggestionLocations are offered when a query names a topic but no place.
var SuggestionLocations = []string{"adelaide", "south australia", "sydney"}

// SuggestionTopics are offered when a query names a place but no topic.
var SuggestionTopics = []string{"education", "health", "transport"}

// Match holds the vocabulary terms found in a piece of text.
type Match struct {
	Locations []string
	Topics    []string
	GovLevels []string
}

// terms is every vocabulary in one dictionary: locations, then topics, then levels.
var (
	terms   = append(append(append([]string{}, Locations...), Topics...), GovLevels...)
	matcher = ahocorasick.NewStringMatcher(terms)
)

// Find scans text once for every vocabulary term. Terms are reported in vocabulary
// order, each at most once.
func Find(text string) Match {
	hits := matcher.MatchThreadSafe([]byte(strings.ToLower(text)))
	sort.Ints(hits)

	var m Match
	topicsAt := len(Locations)
	levelsAt := topicsAt + len(Topics)
	for n, i := range hits {
		if n > 0 && hits[n-1] == i {
			continue
		}
		switch {
		case i < topicsAt:
			m.Locations = append(m.Locations, terms[i])
		case i < levelsAt:
			m.Topics = append(m.Topics, terms[i])
		default:
			m.GovLevels = append(m.GovLevels, terms[i])
		}
	}
	return m
}

// All returns every matched term, locations first.
func (m Match) All() []string {
	out := make([]string, 0, len(m.Locations)+len(m.Topics)+len(m.GovLevels))
	out = append(out, m.Locations...)
	out = append(out, m.Topics...)
	return append(out, m.GovLevels...)
}

// Tags derives section tags from heading and content text.
func Tags(heading, content string) []string {
	return Find(heading + " " + content).All()
}
