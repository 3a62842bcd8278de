package crawler

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/north-cloud/gov-indexer/internal/vocab"
)

// Extraction limits.
const (
	MaxSectionContent   = 1000
	descriptionFallback = 200
	maxLinksPerPage     = 5
	untitled            = "Untitled"
)

// linkKeywords always qualify a link for following, in addition to the crawl tags.
var linkKeywords = []string{"data", "api", "statistics"}

// SectionDraft is a heading-delimited section before it becomes a record.
type SectionDraft struct {
	Title   string
	Content string
	Level   int
	Path    []string
	Tags    []string
}

// ExtractedPage is everything pulled out of one HTML page.
type ExtractedPage struct {
	Title       string
	Description string
	Sections    []SectionDraft
	Links       []string
}

// PageExtractor turns HTML into an ExtractedPage.
type PageExtractor struct{}

// NewPageExtractor creates a page extractor.
func NewPageExtractor() *PageExtractor {
	return &PageExtractor{}
}

// Extract parses body. Links are collected only when withLinks is set; tags widen the
// link filter.
func (e *PageExtractor) Extract(pageURL string, body []byte, tags []string, withLinks bool) (*ExtractedPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	page := &ExtractedPage{
		Title:       extractTitle(doc),
		Description: extractDescription(doc),
		Sections:    extractSections(doc),
	}
	if withLinks {
		page.Links = extractLinks(doc, pageURL, tags)
	}
	return page, nil
}

func extractTitle(doc *goquery.Document) string {
	if t := cleanText(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if h := cleanText(doc.Find("h1").First().Text()); h != "" {
		return h
	}
	return untitled
}

func extractDescription(doc *goquery.Document) string {
	if d, ok := doc.Find("meta[name='description']").Attr("content"); ok && strings.TrimSpace(d) != "" {
		return strings.TrimSpace(d)
	}
	if d, ok := doc.Find("meta[property='og:description']").Attr("content"); ok && strings.TrimSpace(d) != "" {
		return strings.TrimSpace(d)
	}
	return truncate(cleanText(doc.Find("p").First().Text()), descriptionFallback)
}

// extractSections walks headings in document order. Each section's content is the text of
// the following siblings up to the next heading of the same or shallower level.
func extractSections(doc *goquery.Document) []SectionDraft {
	var sections []SectionDraft
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, h *goquery.Selection) {
		title := cleanText(h.Text())
		if title == "" {
			return
		}
		level := headingLevel(goquery.NodeName(h))
		content := truncate(siblingText(h, level), MaxSectionContent)
		sections = append(sections, SectionDraft{
			Title:   title,
			Content: content,
			Level:   level,
			Path:    sectionPath(sections, level),
			Tags:    vocab.Tags(title, content),
		})
	})
	return sections
}

func siblingText(h *goquery.Selection, level int) string {
	var parts []string
	h.NextAll().EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name := goquery.NodeName(s)
		if l := headingLevel(name); l > 0 {
			return l > level
		}
		switch name {
		case "p", "div", "section":
			if t := cleanText(s.Text()); t != "" {
				parts = append(parts, t)
			}
		case "ul", "ol":
			s.Find("li").Each(func(_ int, li *goquery.Selection) {
				if t := cleanText(li.Text()); t != "" {
					parts = append(parts, t)
				}
			})
		}
		return true
	})
	return strings.Join(parts, " ")
}

// sectionPath scans earlier sections backwards, taking each one shallower than the last
// taken. This follows heading levels, not DOM nesting, so skipped levels (an h3 straight
// after an h1) still attach to the nearest shallower heading.
func sectionPath(prev []SectionDraft, level int) []string {
	var path []string
	threshold := level
	for i := len(prev) - 1; i >= 0; i-- {
		if prev[i].Level < threshold {
			path = append([]string{prev[i].Title}, path...)
			threshold = prev[i].Level
		}
	}
	return path
}

// extractLinks resolves anchors against pageURL and keeps same-host http(s) links whose
// URL mentions a crawl tag or a link keyword. At most maxLinksPerPage are returned.
func extractLinks(doc *goquery.Document, pageURL string, tags []string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}
	keywords := make([]string, 0, len(tags)+len(linkKeywords))
	for _, t := range tags {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			keywords = append(keywords, t)
		}
	}
	keywords = append(keywords, linkKeywords...)

	var links []string
	seen := map[string]struct{}{}
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		u, ok := resolveLink(base, href)
		if !ok {
			return true
		}
		if _, dup := seen[u]; dup {
			return true
		}
		seen[u] = struct{}{}
		if !containsAny(strings.ToLower(u), keywords) {
			return true
		}
		links = append(links, u)
		return len(links) < maxLinksPerPage
	})
	return links
}

func resolveLink(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	u := base.ResolveReference(ref)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	if !strings.EqualFold(u.Hostname(), base.Hostname()) {
		return "", false
	}
	u.Fragment = ""
	u.RawFragment = ""
	return u.String(), true
}

func headingLevel(name string) int {
	if len(name) == 2 && name[0] == 'h' && name[1] >= '1' && name[1] <= '6' {
		return int(name[1] - '0')
	}
	return 0
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
