// Package metrics exports Prometheus metrics for crawling, indexing and search.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonesrussell/north-cloud/gov-indexer/internal/indexer"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/search"
)

const namespace = "gov_indexer"

// Metrics holds every collector. It implements search.Recorder.
type Metrics struct {
	registry *prometheus.Registry

	RefreshRuns     *prometheus.CounterVec
	RefreshDuration prometheus.Histogram
	PagesCrawled    *prometheus.CounterVec
	FetchErrors     *prometheus.CounterVec
	HarvestErrors   *prometheus.CounterVec

	IndexSize       prometheus.Gauge
	IndexBuilds     *prometheus.CounterVec
	IndexBuildTime  prometheus.Histogram
	SearchRequests  prometheus.Counter
	SearchWinners   *prometheus.CounterVec
	SearchLatency   prometheus.Histogram
	RecordsIngested prometheus.Counter
}

// New registers all collectors on a fresh registry, along with Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RefreshRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_runs_total",
			Help:      "Refresh runs by outcome",
		}, []string{"outcome"}),
		RefreshDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Wall time of a full refresh",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		PagesCrawled: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_crawled_total",
			Help:      "Pages fetched and extracted",
		}, []string{"source"}),
		FetchErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "Pages that failed to fetch or parse",
		}, []string{"source"}),
		HarvestErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "harvest_errors_total",
			Help:      "Catalogue portal harvests that failed",
		}, []string{"portal"}),
		IndexSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_records",
			Help:      "Records in the serving index",
		}),
		IndexBuilds: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_builds_total",
			Help:      "Index rebuilds by outcome",
		}, []string{"outcome"}),
		IndexBuildTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "index_build_duration_seconds",
			Help:      "Time to build the search index",
			Buckets:   prometheus.DefBuckets,
		}),
		SearchRequests: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Queries served",
		}),
		SearchWinners: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_results_total",
			Help:      "Returned results by winning strategy",
		}, []string{"strategy"}),
		SearchLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Query latency",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		RecordsIngested: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_ingested_total",
			Help:      "Records accepted through the ingest API",
		}),
	}
}

// Handler serves the registry for /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry, mainly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer { return m.registry }

// IndexBuilt implements search.Recorder.
func (m *Metrics) IndexBuilt(records int, took time.Duration) {
	m.IndexSize.Set(float64(records))
	m.IndexBuilds.WithLabelValues("success").Inc()
	m.IndexBuildTime.Observe(took.Seconds())
}

// IndexBuildFailed implements search.Recorder.
func (m *Metrics) IndexBuildFailed() {
	m.IndexBuilds.WithLabelValues("failure").Inc()
}

// SearchCompleted implements search.Recorder.
func (m *Metrics) SearchCompleted(winners map[search.Strategy]int, took time.Duration) {
	m.SearchRequests.Inc()
	m.SearchLatency.Observe(took.Seconds())
	for s, n := range winners {
		m.SearchWinners.WithLabelValues(string(s)).Add(float64(n))
	}
}

// RefreshFinished records one refresh run.
func (m *Metrics) RefreshFinished(err error, took time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.RefreshRuns.WithLabelValues(outcome).Inc()
	m.RefreshDuration.Observe(took.Seconds())
}

// CrawlFinished adds one seed's crawl counts.
func (m *Metrics) CrawlFinished(source string, pages, errors int) {
	m.PagesCrawled.WithLabelValues(source).Add(float64(pages))
	m.FetchErrors.WithLabelValues(source).Add(float64(errors))
}

// HarvestFailed counts a failed portal harvest.
func (m *Metrics) HarvestFailed(portal string) {
	m.HarvestErrors.WithLabelValues(portal).Inc()
}

// RecordIngested counts one accepted submission.
func (m *Metrics) RecordIngested() {
	m.RecordsIngested.Inc()
}

var (
	_ search.Recorder  = (*Metrics)(nil)
	_ indexer.Recorder = (*Metrics)(nil)
)
