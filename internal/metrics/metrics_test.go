package metrics_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/gov-indexer/internal/metrics"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/search"
)

func TestMetrics_Recorder(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	m.IndexBuilt(42, 10*time.Millisecond)
	m.IndexBuildFailed()
	m.SearchCompleted(map[search.Strategy]int{search.StrategyExact: 2, search.StrategyFuzzy: 1}, time.Millisecond)
	m.RefreshFinished(nil, time.Second)
	m.RefreshFinished(errors.New("boom"), time.Second)
	m.CrawlFinished("SA Gov", 3, 1)
	m.RecordIngested()

	assert.InDelta(t, 42.0, testutil.ToFloat64(m.IndexSize), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.IndexBuilds.WithLabelValues("failure")), 0)
	assert.InDelta(t, 2.0, testutil.ToFloat64(m.SearchWinners.WithLabelValues("exact")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.SearchRequests), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.RefreshRuns.WithLabelValues("failure")), 0)
	assert.InDelta(t, 3.0, testutil.ToFloat64(m.PagesCrawled.WithLabelValues("SA Gov")), 0)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.RecordsIngested), 0)
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	t.Parallel()

	a, b := metrics.New(), metrics.New()
	a.SearchRequests.Inc()
	assert.InDelta(t, 0.0, testutil.ToFloat64(b.SearchRequests), 0)
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	m.SearchRequests.Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gov_indexer_search_requests_total 1")
}
