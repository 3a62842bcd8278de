package catalog_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/gov-indexer/internal/catalog"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/domain"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/logger"
)

func TestDefault_ContainsSeedDataset(t *testing.T) {
	t.Parallel()

	c, err := catalog.Default()
	require.NoError(t, err)

	var found *domain.Dataset
	for _, e := range c.Datasets {
		if e.ID == "abs-codelist-lga-2021" {
			found = e.Dataset()
		}
	}
	require.NotNil(t, found)
	assert.Equal(t, "ABS Local Government Areas 2021 Codelist", found.Title)
	assert.Equal(t, domain.TypeCodelist, found.Type)
	assert.Equal(t, []string{"abs", "local-government", "geography", "classification"}, found.Tags)
	assert.NotEmpty(t, c.Websites)
	for _, w := range c.Websites {
		assert.Positive(t, w.MaxDepth)
	}
}

func TestLoad_MissingFileFallsBackToDefault(t *testing.T) {
	t.Parallel()

	c, err := catalog.Load(filepath.Join(t.TempDir(), "nope.yml"))
	require.NoError(t, err)
	assert.NotEmpty(t, c.Datasets)
}

func TestParse_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
		want error
	}{
		{"empty", "datasets: []\n", catalog.ErrEmptyCatalog},
		{"dataset without title", "datasets:\n  - id: x\n", catalog.ErrMissingRequiredField},
		{"website without url", "websites:\n  - source: x\n", catalog.ErrMissingRequiredField},
		{"website bad scheme", "websites:\n  - url: ftp://example.com\n", catalog.ErrInvalidURL},
		{"negative depth", "websites:\n  - url: https://example.com/\n    max_depth: -1\n", catalog.ErrInvalidDepth},
		{"portal without base", "ckan:\n  - name: x\n", catalog.ErrMissingRequiredField},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := catalog.Parse([]byte(tt.yaml))
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestParse_Defaults(t *testing.T) {
	t.Parallel()

	c, err := catalog.Parse([]byte(`
apis:
  - title: Bus Times API
    url: https://example.com/bus
    tags: [Transport, transport]
websites:
  - url: https://example.com/
ckan:
  - base_url: https://ckan.example.com
`))
	require.NoError(t, err)

	api := c.APIs[0].API()
	assert.Equal(t, "bus-times-api", api.ID)
	assert.Equal(t, domain.TypeAPI, api.Type)
	assert.Equal(t, "GET", api.Method)
	assert.Equal(t, "https://example.com/bus", api.Endpoint)
	assert.Equal(t, []string{"transport"}, api.Tags)
	assert.Zero(t, c.Websites[0].MaxDepth, "left for the crawler default")
	assert.Equal(t, "https://ckan.example.com", c.Portals[0].Name)
}

func TestWatcher_ReloadsOnWrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yml")
	require.NoError(t, os.WriteFile(path, []byte("datasets:\n  - title: One\n"), 0o600))

	got := make(chan *catalog.Catalog, 4)
	w := catalog.NewWatcher(path, 20*time.Millisecond, func(c *catalog.Catalog) { got <- c }, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("not: [valid"), 0o600))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("datasets:\n  - title: One\n  - title: Two\n"), 0o600))

	select {
	case c := <-got:
		assert.Len(t, c.Datasets, 2)
	case <-time.After(5 * time.Second):
		t.Fatal("catalog was not reloaded")
	}

	cancel()
	require.NoError(t, <-done)
}

func TestStaticOnly(t *testing.T) {
	t.Parallel()

	c, err := catalog.Default()
	require.NoError(t, err)

	s := c.StaticOnly()
	assert.Equal(t, c.Datasets, s.Datasets)
	assert.Equal(t, c.APIs, s.APIs)
	assert.Empty(t, s.Websites)
	assert.Empty(t, s.Portals)
	assert.NotEmpty(t, c.Websites, "original untouched")
}
