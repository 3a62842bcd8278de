package ckan_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/gov-indexer/internal/ckan"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/domain"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/logger"
)

const packageSearch = `{
  "success": true,
  "result": {
    "count": 2,
    "results": [
      {
        "name": "council-rates-2023",
        "title": "Council Rates 2023",
        "notes": "Residential rates by local government area.",
        "organization": {"title": "Office of Local Government"},
        "tags": [{"name": "Local Government"}, {"name": "rates"}],
        "resources": [{"format": "CSV", "url": "https://example.com/rates.csv"}],
        "metadata_modified": "2023-06-01T10:20:30.123456"
      },
      {
        "name": "untitled-package",
        "title": "",
        "tags": [],
        "resources": []
      }
    ]
  }
}`

func fastRetry() ckan.RetryConfig {
	return ckan.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestHarvest_ParsesPackages(t *testing.T) {
	t.Parallel()

	queries := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/api/3/action/package_search", r.URL.Path)
		queries <- r.URL.RawQuery
		_, _ = w.Write([]byte(packageSearch))
	}))
	defer srv.Close()

	c := ckan.NewClient(ckan.Config{Retry: fastRetry()}, logger.NewNop())
	got, err := c.Harvest(context.Background(), ckan.Query{Name: "Test", BaseURL: srv.URL + "/data/", Q: "local government", Rows: 10})
	require.NoError(t, err)
	assert.Equal(t, "q=local+government&rows=10", <-queries)
	require.Len(t, got, 2)

	ds := got[0]
	assert.Equal(t, "council-rates-2023", ds.ID)
	assert.Equal(t, "Council Rates 2023", ds.Title)
	assert.Equal(t, "Office of Local Government", ds.Source)
	assert.Equal(t, "csv", ds.Type)
	assert.Equal(t, "CSV", ds.Format)
	assert.Equal(t, domain.CategoryDataset, ds.Category)
	assert.Equal(t, []string{"local government", "rates"}, ds.Tags)
	assert.Equal(t, srv.URL+"/data/dataset/council-rates-2023", ds.URL)
	assert.Equal(t, time.Date(2023, 6, 1, 10, 20, 30, 123456000, time.UTC), ds.LastUpdated)

	fallback := got[1]
	assert.Equal(t, "untitled-package", fallback.Title)
	assert.Equal(t, "Test", fallback.Source)
	assert.Equal(t, domain.TypeDataset, fallback.Type)
}

func TestHarvest_RetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(packageSearch))
	}))
	defer srv.Close()

	c := ckan.NewClient(ckan.Config{Retry: fastRetry()}, logger.NewNop())
	got, err := c.Harvest(context.Background(), ckan.Query{Name: "Test", BaseURL: srv.URL})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHarvest_GivesUp(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := ckan.NewClient(ckan.Config{Retry: fastRetry()}, logger.NewNop())
	_, err := c.Harvest(context.Background(), ckan.Query{Name: "Test", BaseURL: srv.URL})
	require.ErrorIs(t, err, ckan.ErrMaxAttemptsExceeded)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHarvest_ClientErrorsAreNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := ckan.NewClient(ckan.Config{Retry: fastRetry()}, logger.NewNop())
	_, err := c.Harvest(context.Background(), ckan.Query{Name: "Test", BaseURL: srv.URL})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ckan.ErrMaxAttemptsExceeded)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHarvest_Unsuccessful(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success": false, "error": {"message": "Search error"}}`))
	}))
	defer srv.Close()

	c := ckan.NewClient(ckan.Config{Retry: fastRetry()}, logger.NewNop())
	_, err := c.Harvest(context.Background(), ckan.Query{Name: "Test", BaseURL: srv.URL})
	require.ErrorIs(t, err, ckan.ErrUnsuccessful)
	assert.Contains(t, err.Error(), "Search error")
}

func TestHarvest_InvalidJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	c := ckan.NewClient(ckan.Config{Retry: fastRetry()}, logger.NewNop())
	_, err := c.Harvest(context.Background(), ckan.Query{Name: "Test", BaseURL: srv.URL})
	require.ErrorIs(t, err, ckan.ErrInvalidResponse)
}
