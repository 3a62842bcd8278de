package fuzzy

import "strings"

type termKind int

const (
	termFuzzy termKind = iota
	termInclude
	termExact
	termPrefix
	termSuffix
	termInverse
)

type term struct {
	kind    termKind
	pattern []rune
}

// parseQuery splits q into AND-ed terms. Supported forms:
//
//	word      fuzzy
//	"a b"     phrase, exact substring
//	'word     exact substring
//	=word     whole value equals
//	^word     value starts with
//	word$     value ends with
//	!word     value does not contain
func parseQuery(q string) []term {
	var terms []term
	for _, tok := range tokenize(q) {
		if t, ok := classify(tok); ok {
			terms = append(terms, t)
		}
	}
	return terms
}

func classify(tok string) (term, bool) {
	kind := termFuzzy
	switch {
	case len(tok) >= 2 && tok[0] == '"' && tok[len(tok)-1] == '"':
		kind, tok = termInclude, tok[1:len(tok)-1]
	case strings.HasPrefix(tok, "'"):
		kind, tok = termInclude, tok[1:]
	case strings.HasPrefix(tok, "="):
		kind, tok = termExact, tok[1:]
	case strings.HasPrefix(tok, "^"):
		kind, tok = termPrefix, tok[1:]
	case strings.HasPrefix(tok, "!"):
		kind, tok = termInverse, tok[1:]
	case len(tok) > 1 && strings.HasSuffix(tok, "$"):
		kind, tok = termSuffix, tok[:len(tok)-1]
	}
	tok = strings.Trim(tok, `"`)
	if strings.TrimSpace(tok) == "" {
		return term{}, false
	}
	return term{kind: kind, pattern: []rune(strings.ToLower(tok))}, true
}

// tokenize splits on whitespace, keeping double-quoted runs (and any prefix operator) together.
func tokenize(q string) []string {
	var (
		out     []string
		cur     strings.Builder
		inQuote bool
	)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range q {
		switch {
		case r == '"':
			inQuote = !inQuote
			cur.WriteRune(r)
		case !inQuote && (r == ' ' || r == '\t' || r == '\n' || r == '\r'):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}
