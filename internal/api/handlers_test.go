package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/gov-indexer/internal/api"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/domain"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/indexer"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/logger"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/records"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/search"
	"github.com/jonesrussell/north-cloud/gov-indexer/internal/store"
)

type fakeService struct {
	lastQuery  string
	lastOpts   search.Options
	submitErr  error
	refreshErr error
}

func (f *fakeService) Search(_ context.Context, q string, opts search.Options) search.Response {
	f.lastQuery, f.lastOpts = q, opts
	return search.Response{Query: q, Results: []search.Result{}, Suggestions: []string{}}
}

func (f *fakeService) Stats() indexer.Stats {
	return indexer.Stats{Stats: store.Stats{Total: 3}, IndexSize: 3, IndexReady: true}
}

func (f *fakeService) Submit(raw map[string]any) (*domain.Custom, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &domain.Custom{Record: domain.Record{ID: "x", Title: fmt.Sprint(raw["title"]), Category: "custom"}}, nil
}

func (f *fakeService) StartRefresh() (string, error) {
	if f.refreshErr != nil {
		return "", f.refreshErr
	}
	return "run-1", nil
}

func setup(svc api.Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api.SetupRoutes(r, api.NewHandler(svc, 0, logger.NewNop()), http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("gov_indexer_up 1"))
	}))
	return r
}

func do(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var e api.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	assert.False(t, e.Timestamp.IsZero())
	return e
}

func TestSearch_GetParams(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	w := do(setup(svc), http.MethodGet, "/api/v1/search?q=adelaide+schools&limit=500&category=section&source=SA&type=section", nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "adelaide schools", svc.lastQuery)
	assert.Equal(t, search.Options{Limit: 100, Category: "section", Source: "SA", Type: "section"}, svc.lastOpts)
}

func TestSearch_Post(t *testing.T) {
	t.Parallel()

	svc := &fakeService{}
	w := do(setup(svc), http.MethodPost, "/api/v1/search", api.SearchRequest{Query: "education", Limit: 5})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "education", svc.lastQuery)
	assert.Equal(t, 5, svc.lastOpts.Limit)

	var resp search.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "education", resp.Query)
}

func TestSearch_BadInput(t *testing.T) {
	t.Parallel()

	r := setup(&fakeService{})
	w := do(r, http.MethodGet, "/api/v1/search?q=x&limit=lots", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", decodeError(t, w).Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewBufferString("{"))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStats(t *testing.T) {
	t.Parallel()

	w := do(setup(&fakeService{}), http.MethodGet, "/api/v1/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.InDelta(t, 3.0, body["total"], 0)
	assert.Equal(t, true, body["index_ready"])
}

func TestSubmitRecord(t *testing.T) {
	t.Parallel()

	w := do(setup(&fakeService{}), http.MethodPost, "/api/v1/records", map[string]any{"title": "Bike lanes", "category": "custom"})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"title":"Bike lanes"`)

	w = do(setup(&fakeService{submitErr: records.ErrCategoryRequired}), http.MethodPost, "/api/v1/records", map[string]any{"title": "x"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeError(t, w).Code)

	w = do(setup(&fakeService{submitErr: fmt.Errorf("%w: boom", search.ErrIndexBuild)}), http.MethodPost, "/api/v1/records", map[string]any{"title": "x"})
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INDEX_ERROR", decodeError(t, w).Code)
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	w := do(setup(&fakeService{}), http.MethodPost, "/api/v1/refresh", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	var resp api.RefreshResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "run-1", resp.RunID)

	w = do(setup(&fakeService{refreshErr: indexer.ErrRefreshInProgress}), http.MethodPost, "/api/v1/refresh", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "REFRESH_IN_PROGRESS", decodeError(t, w).Code)

	w = do(setup(&fakeService{refreshErr: errors.New("pool closed")}), http.MethodPost, "/api/v1/refresh", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestMetricsRoute(t *testing.T) {
	t.Parallel()

	w := do(setup(&fakeService{}), http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "gov_indexer_up 1", w.Body.String())
}
