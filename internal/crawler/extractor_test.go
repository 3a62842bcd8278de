package crawler

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPageURL = "https://www.example.gov.au/home"

// councilHTML mixes heading levels, lists and an empty heading.
const councilHTML = `<!DOCTYPE html>
<html>
<head>
  <title>  Community   Data </title>
  <meta name="description" content="Council datasets">
</head>
<body>
  <h1>Adelaide Council Data</h1>
  <p>Open data for the city.</p>
  <h2>Education</h2>
  <p>Schools and libraries.</p>
  <ul><li>Primary</li><li>Secondary</li></ul>
  <h3>Enrolments</h3>
  <div>Enrolment figures by year.</div>
  <h2>Transport</h2>
  <p>Bus routes.</p>
  <h2>   </h2>
  <p>orphan</p>
  <h1>Contact</h1>
  <section>Email us.</section>
</body>
</html>`

// fallbackHTML has no <title>, no meta description and a long first paragraph.
var fallbackHTML = `<html><head><meta property="og:description" content="OG fallback."></head>
<body><h1>Heading Title</h1><p>` + strings.Repeat("word ", 60) + `</p></body></html>`

const linksHTML = `<html><body>
  <a href="#top">skip</a>
  <a href="/open-data#top">open data</a>
  <a href="/open-data">dup</a>
  <a href="https://other.gov.au/data">cross host</a>
  <a href="/about">about</a>
  <a href="/education/schools">schools</a>
  <a href="mailto:someone@example.gov.au">mail</a>
  <a href="http://[::1">broken</a>
  <a href="/api/v1">api</a>
  <a href="/statistics">stats</a>
  <a href="/DATA/upper">upper</a>
  <a href="/data/sixth">sixth</a>
</body></html>`

func TestExtract_TitleAndDescription(t *testing.T) {
	t.Parallel()

	page, err := NewPageExtractor().Extract(testPageURL, []byte(councilHTML), nil, false)
	require.NoError(t, err)

	assert.Equal(t, "Community Data", page.Title)
	assert.Equal(t, "Council datasets", page.Description)
	assert.Nil(t, page.Links)
}

func TestExtract_Fallbacks(t *testing.T) {
	t.Parallel()

	page, err := NewPageExtractor().Extract(testPageURL, []byte(fallbackHTML), nil, false)
	require.NoError(t, err)
	assert.Equal(t, "Heading Title", page.Title)
	assert.Equal(t, "OG fallback.", page.Description)

	noOG := strings.Replace(fallbackHTML, `<meta property="og:description" content="OG fallback.">`, "", 1)
	page, err = NewPageExtractor().Extract(testPageURL, []byte(noOG), nil, false)
	require.NoError(t, err)
	assert.Equal(t, descriptionFallback, utf8.RuneCountInString(page.Description))

	page, err = NewPageExtractor().Extract(testPageURL, []byte("<html><body></body></html>"), nil, false)
	require.NoError(t, err)
	assert.Equal(t, "Untitled", page.Title)
	assert.Empty(t, page.Description)
	assert.Empty(t, page.Sections)
}

func TestExtract_Sections(t *testing.T) {
	t.Parallel()

	page, err := NewPageExtractor().Extract(testPageURL, []byte(councilHTML), nil, false)
	require.NoError(t, err)
	require.Len(t, page.Sections, 5, "empty heading is skipped")

	top := page.Sections[0]
	assert.Equal(t, "Adelaide Council Data", top.Title)
	assert.Equal(t, 1, top.Level)
	assert.Empty(t, top.Path)
	assert.Equal(t,
		"Open data for the city. Schools and libraries. Primary Secondary Enrolment figures by year. Bus routes. orphan",
		top.Content)
	assert.Equal(t, []string{"adelaide", "council"}, top.Tags)

	edu := page.Sections[1]
	assert.Equal(t, "Schools and libraries. Primary Secondary Enrolment figures by year.", edu.Content)
	assert.Equal(t, []string{"Adelaide Council Data"}, edu.Path)
	assert.Contains(t, edu.Tags, "education")

	enrol := page.Sections[2]
	assert.Equal(t, 3, enrol.Level)
	assert.Equal(t, []string{"Adelaide Council Data", "Education"}, enrol.Path)

	transport := page.Sections[3]
	assert.Equal(t, "Bus routes.", transport.Content, "stops at the empty h2")
	assert.Equal(t, []string{"Adelaide Council Data"}, transport.Path)

	contact := page.Sections[4]
	assert.Equal(t, "Email us.", contact.Content)
	assert.Empty(t, contact.Path)
}

func TestExtract_SectionTruncation(t *testing.T) {
	t.Parallel()

	html := "<html><body><h2>Big</h2><p>" + strings.Repeat("x", 1500) + "</p></body></html>"
	page, err := NewPageExtractor().Extract(testPageURL, []byte(html), nil, false)
	require.NoError(t, err)
	require.Len(t, page.Sections, 1)
	assert.Len(t, page.Sections[0].Content, MaxSectionContent)
}

func TestSectionPath_FollowsLevelsNotNesting(t *testing.T) {
	t.Parallel()

	prev := []SectionDraft{
		{Title: "A", Level: 1},
		{Title: "B", Level: 3},
		{Title: "C", Level: 2},
	}
	assert.Equal(t, []string{"A", "C"}, sectionPath(prev, 3))
	assert.Equal(t, []string{"A", "C", "B"}, sectionPath(append(prev, SectionDraft{Title: "B", Level: 3}), 4))
	assert.Empty(t, sectionPath(prev, 1))
}

func TestExtract_Links(t *testing.T) {
	t.Parallel()

	page, err := NewPageExtractor().Extract(testPageURL, []byte(linksHTML), []string{"Education"}, true)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"https://www.example.gov.au/open-data",
		"https://www.example.gov.au/education/schools",
		"https://www.example.gov.au/api/v1",
		"https://www.example.gov.au/statistics",
		"https://www.example.gov.au/DATA/upper",
	}, page.Links)
}
