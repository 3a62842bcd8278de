package indexer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/jonesrussell/north-cloud/gov-indexer/internal/catalog"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/ckan"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/crawler"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/crawler/mocks"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/domain"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/indexer"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/logger"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/records"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/search"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/store"
)

const seedURL = "https://www.education.sa.gov.au/schools"

const testCatalog = `
datasets:
  - id: abs-codelist-lga-2021
    title: ABS Local Government Areas 2021 Codelist
    source: Australian Bureau of Statistics
    type: codelist
    tags: [abs, local-government, geography, classification]
apis:
  - title: Adelaide Metro Transport API
    source: Department for Infrastructure and Transport
    tags: [transport, adelaide]
websites:
  - url: ` + seedURL + `
    source: Department for Education
    tags: [education]
    max_depth: 1
ckan:
  - name: Data.SA
    base_url: https://data.sa.gov.au/data
`

func htmlPage(title, heading string) *crawler.Page {
	return &crawler.Page{URL: seedURL, StatusCode: 200, Body: []byte(
		"<html><head><title>" + title + "</title></head><body><h1>" + heading +
			"</h1><p>Schools across Adelaide and regional South Australia.</p></body></html>",
	)}
}

type fakeHarvester struct {
	datasets []*domain.Dataset
	err      error
}

func (f *fakeHarvester) Harvest(context.Context, ckan.Query) ([]*domain.Dataset, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*domain.Dataset, 0, len(f.datasets))
	for _, d := range f.datasets {
		c := *d
		out = append(out, &c)
	}
	return out, nil
}

type fixture struct {
	svc     *indexer.Service
	fetcher *mocks.MockFetcher
	store   *store.Store
}

func newFixture(t *testing.T, h indexer.Harvester) fixture {
	t.Helper()

	cat, err := catalog.Parse([]byte(testCatalog))
	require.NoError(t, err)

	f := mocks.NewMockFetcher(gomock.NewController(t))
	st := store.New()
	svc, err := indexer.NewService(indexer.Config{
		Store:     st,
		Engine:    search.NewEngine(logger.NewNop()),
		Crawler:   crawler.New(f, nil, logger.NewNop()),
		Harvester: h,
		Catalog:   cat,
		Workers:   2,
		Logger:    logger.NewNop(),
	})
	require.NoError(t, err)
	return fixture{svc: svc, fetcher: f, store: st}
}

func harvested() *fakeHarvester {
	return &fakeHarvester{datasets: []*domain.Dataset{{Record: domain.Record{
		ID: "council-rates", Title: "Council Rates", Source: "Data.SA", Type: "csv",
	}}}}
}

func TestRefresh_CollectsEverySource(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, harvested())
	fx.fetcher.EXPECT().Fetch(gomock.Any(), seedURL).Return(htmlPage("Schools", "Find a school"), nil)

	res, err := fx.svc.Refresh(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 2, res.Datasets)
	assert.Equal(t, 1, res.APIs)
	assert.Equal(t, 1, res.Documents)
	assert.Equal(t, 1, res.Sections)
	assert.Equal(t, 1, res.Pages)
	assert.Zero(t, res.HarvestErrors)

	assert.True(t, fx.svc.Ready())
	resp := fx.svc.Search(context.Background(), "local government", search.Options{})
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "abs-codelist-lga-2021", resp.Results[0].Record.Base().ID)

	stats := fx.svc.Stats()
	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 5, stats.IndexSize)
	assert.Equal(t, 2, stats.Categories[domain.CategoryDataset])
	assert.False(t, stats.Refreshing)
}

func TestRefresh_ReplacesRatherThanMerges(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil)
	gomock.InOrder(
		fx.fetcher.EXPECT().Fetch(gomock.Any(), seedURL).Return(htmlPage("Old schools page", "Old heading"), nil),
		fx.fetcher.EXPECT().Fetch(gomock.Any(), seedURL).Return(htmlPage("New schools page", "New heading"), nil),
	)

	_, err := fx.svc.Refresh(context.Background())
	require.NoError(t, err)
	_, err = fx.svc.Submit(map[string]any{"title": "Bike lanes", "category": "custom"})
	require.NoError(t, err)

	_, err = fx.svc.Refresh(context.Background())
	require.NoError(t, err)

	snap := fx.store.Snapshot()
	require.Len(t, snap.Documents, 1)
	assert.Equal(t, "New schools page", snap.Documents[0].Title)
	require.Len(t, snap.Sections, 1)
	assert.Equal(t, "New heading", snap.Sections[0].Title)
	assert.Len(t, snap.Datasets, 1)
	require.Len(t, snap.Submitted, 1, "submitted records survive refresh")

	assert.Equal(t, 5, fx.svc.Stats().IndexSize)
}

func TestRefresh_WebsiteWithoutDepthUsesConfiguredDepth(t *testing.T) {
	t.Parallel()

	cat, err := catalog.Parse([]byte("websites:\n  - url: https://data.example.gov.au/\n    source: Example\n"))
	require.NoError(t, err)

	linking := func(href string) *crawler.Page {
		return &crawler.Page{StatusCode: 200, Body: []byte(
			`<html><head><title>Data</title></head><body><h1>Data</h1><a href="` + href + `">next</a></body></html>`,
		)}
	}
	f := mocks.NewMockFetcher(gomock.NewController(t))
	f.EXPECT().Fetch(gomock.Any(), "https://data.example.gov.au/").Return(linking("/data/one"), nil)
	f.EXPECT().Fetch(gomock.Any(), "https://data.example.gov.au/data/one").Return(linking("/data/two"), nil)
	f.EXPECT().Fetch(gomock.Any(), "https://data.example.gov.au/data/two").Return(linking("/data/three"), nil)

	svc, err := indexer.NewService(indexer.Config{
		Store:    store.New(),
		Engine:   search.NewEngine(logger.NewNop()),
		Crawler:  crawler.New(f, nil, logger.NewNop()),
		Catalog:  cat,
		MaxDepth: 3,
		Logger:   logger.NewNop(),
	})
	require.NoError(t, err)

	res, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Pages)
}

func TestRefresh_HarvestFailureIsCountedNotFatal(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, &fakeHarvester{err: errors.New("portal down")})
	fx.fetcher.EXPECT().Fetch(gomock.Any(), seedURL).Return(nil, errors.New("timeout"))

	res, err := fx.svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.HarvestErrors)
	assert.Equal(t, 1, res.FetchErrors)
	assert.Equal(t, 1, res.Datasets)
	assert.Zero(t, res.Documents)
}

func TestRefresh_RejectsConcurrentRuns(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil)
	started := make(chan struct{})
	release := make(chan struct{})
	fx.fetcher.EXPECT().Fetch(gomock.Any(), seedURL).DoAndReturn(func(context.Context, string) (*crawler.Page, error) {
		close(started)
		<-release
		return htmlPage("Schools", "Find a school"), nil
	})

	runID, err := fx.svc.StartRefresh()
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	<-started
	assert.True(t, fx.svc.Refreshing())
	_, err = fx.svc.Refresh(context.Background())
	require.ErrorIs(t, err, indexer.ErrRefreshInProgress)
	_, err = fx.svc.StartRefresh()
	require.ErrorIs(t, err, indexer.ErrRefreshInProgress)

	close(release)
	require.Eventually(t, func() bool { return !fx.svc.Refreshing() && fx.svc.Ready() }, 5*time.Second, 10*time.Millisecond)
}

func TestRefresh_CancelledKeepsPreviousRecords(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil)
	fx.fetcher.EXPECT().Fetch(gomock.Any(), seedURL).Return(htmlPage("Schools", "Find a school"), nil)
	_, err := fx.svc.Refresh(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = fx.svc.Refresh(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Len(t, fx.store.Snapshot().Documents, 1)
}

func TestSubmit(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil)
	rec, err := fx.svc.Submit(map[string]any{
		"title":    "Adelaide Park Lands Trees",
		"category": "dataset",
		"tags":     "environment, adelaide",
	})
	require.NoError(t, err)
	assert.Equal(t, "adelaide-park-lands-trees", rec.ID)

	resp := fx.svc.Search(context.Background(), "park lands", search.Options{})
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, rec.ID, resp.Results[0].Record.Base().ID)
	assert.Equal(t, "dataset", resp.Results[0].Category)

	_, err = fx.svc.Submit(map[string]any{"title": "No category"})
	require.ErrorIs(t, err, records.ErrCategoryRequired)
}

func TestStartStop_RefreshesOnStart(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil)
	fx.fetcher.EXPECT().Fetch(gomock.Any(), seedURL).Return(htmlPage("Schools", "Find a school"), nil)

	require.NoError(t, fx.svc.Start(context.Background(), "@daily", true))
	require.Eventually(t, fx.svc.Ready, 5*time.Second, 10*time.Millisecond)
	fx.svc.Stop()
	assert.False(t, fx.svc.Refreshing())
}

func TestStart_InvalidSchedule(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, nil)
	err := fx.svc.Start(context.Background(), "every tuesday", false)
	require.Error(t, err)
}

func TestNewService_RequiresDependencies(t *testing.T) {
	t.Parallel()

	_, err := indexer.NewService(indexer.Config{})
	require.Error(t, err)
}
