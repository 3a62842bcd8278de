package search

import (
	"strings"

	"github.com/jonesrussell/north-cloud/gov-indexer/internal/vocab"
)

// QueryAnalysis is what the engine recognised in a query.
type QueryAnalysis struct {
	Original   string   `json:"original"`
	Terms      []string `json:"terms"`
	Locations  []string `json:"locations"`
	Topics     []string `json:"topics"`
	GovLevels  []string `json:"gov_levels"`
	HasContext bool     `json:"has_context"`
	IsSpecific bool     `json:"is_specific"`
}

// AnalyzeQuery lower-cases q and detects vocabulary terms as substrings of the whole query.
func AnalyzeQuery(q string) QueryAnalysis {
	m := vocab.Find(q)
	a := QueryAnalysis{
		Original:  q,
		Terms:     strings.Fields(strings.ToLower(q)),
		Locations: nonNil(m.Locations),
		Topics:    nonNil(m.Topics),
		GovLevels: nonNil(m.GovLevels),
	}
	a.HasContext = len(a.Locations) > 0 || len(a.Topics) > 0
	a.IsSpecific = len(a.Locations) > 0 && len(a.Topics) > 0
	return a
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
