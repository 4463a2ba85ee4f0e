package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/shohin/internal/config"
	"github.com/hyperjump/shohin/internal/keyword"
	"github.com/hyperjump/shohin/internal/metrics"
	"github.com/hyperjump/shohin/internal/models"
	"github.com/hyperjump/shohin/internal/persist"
	"github.com/hyperjump/shohin/internal/pipeline"
	"github.com/hyperjump/shohin/internal/search"
	"github.com/hyperjump/shohin/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeScraper struct {
	outcome models.Outcome
	calls   []string
}

func (f *fakeScraper) RunOne(ctx context.Context, rawURL string) models.Outcome {
	f.calls = append(f.calls, rawURL)
	out := f.outcome
	out.URL = rawURL
	return out
}

type env struct {
	store   *storage.SQLiteStore
	index   *keyword.BleveIndex
	cfg     *config.Config
	handler http.Handler
}

func newEnv(t *testing.T, opts ...Option) *env {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Storage.DatabasePath = filepath.Join(dir, "products.db")
	cfg.Storage.BleveIndexPath = filepath.Join(dir, "bleve")
	config.ApplyDefaults(cfg)

	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	idx, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })

	srv := NewServer(store, search.NewEngine(store, idx), cfg, nil, opts...)
	return &env{store: store, index: idx, cfg: cfg, handler: srv.Router()}
}

func (e *env) add(t *testing.T, id, title string) {
	t.Helper()
	rec := models.NewProductRecord()
	rec.ProductDetails.Title = models.NewText(title)
	ctx := context.Background()
	require.NoError(t, e.store.Upsert(ctx, &models.StoredDocument{ID: id, SourceURL: "https://a.test/" + id, Title: title, Record: rec}))
	require.NoError(t, e.index.Index(ctx, id, rec))
}

func (e *env) do(method, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	e := newEnv(t)
	rec := e.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestHandleGetProduct(t *testing.T) {
	e := newEnv(t)
	e.add(t, "abc", "Desk Lamp")

	rec := e.do(http.MethodGet, "/api/v1/products/abc", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var doc models.StoredDocument
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&doc))
	assert.Equal(t, "abc", doc.ID)
	assert.Equal(t, "Desk Lamp", doc.Record.ProductDetails.Title.String())

	rec = e.do(http.MethodGet, "/api/v1/products/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleListProducts(t *testing.T) {
	e := newEnv(t)
	e.add(t, "a", "A")
	e.add(t, "b", "B")
	e.add(t, "c", "C")

	rec := e.do(http.MethodGet, "/api/v1/products?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list productList
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Len(t, list.Products, 2)
	assert.Equal(t, int64(3), list.Total)

	rec = e.do(http.MethodGet, "/api/v1/products?offset=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodGet, "/api/v1/products?offset=10", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"products":[]`)
}

func TestHandleSearch(t *testing.T) {
	e := newEnv(t)
	e.add(t, "p1", "Trail Runner")

	rec := e.do(http.MethodPost, "/api/v1/search", models.SearchQuery{Query: "runner", Limit: 5})
	require.Equal(t, http.StatusOK, rec.Code)
	var resp models.SearchResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "p1", resp.Results[0].Document.ID)

	rec = e.do(http.MethodPost, "/api/v1/search", models.SearchQuery{Query: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(http.MethodPost, "/api/v1/search", models.SearchQuery{Query: "runner", Fuzzy: true, Fuzziness: 5})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleStatus(t *testing.T) {
	e := newEnv(t)
	e.add(t, "p1", "Trail Runner")

	rec := e.do(http.MethodGet, "/api/v1/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var st Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&st))
	assert.Equal(t, int64(1), st.Documents)
	assert.Equal(t, uint64(1), st.IndexSize)
	require.NotNil(t, st.DiskUsageBytes)
	assert.Greater(t, *st.DiskUsageBytes, int64(0))
	require.NotNil(t, st.Config)
	assert.Equal(t, config.DriverSQLite, st.Config.StorageDriver)
	assert.Equal(t, e.cfg.Storage.DatabasePath, st.Config.DatabasePath)
	require.NotNil(t, st.Footprint)
	assert.Greater(t, st.Footprint.Database, int64(0))
	assert.Equal(t, st.Footprint.Total(), *st.DiskUsageBytes)
}

func TestBuildStatus_remoteStoreCountsOnlyIndex(t *testing.T) {
	e := newEnv(t)
	e.add(t, "p1", "Trail Runner")
	cfg := *e.cfg
	cfg.Storage.Driver = config.DriverMongo
	cfg.Storage.MongoURI = "mongodb://db.test:27017"

	st, err := BuildStatus(context.Background(), e.store, nil, &cfg)
	require.NoError(t, err)
	assert.Empty(t, st.Config.DatabasePath)
	assert.Equal(t, "product_scraper", st.Config.MongoDatabase)
	require.NotNil(t, st.Footprint)
	assert.Zero(t, st.Footprint.Database)
}

func TestHandleScrape_notConfigured(t *testing.T) {
	e := newEnv(t)
	rec := e.do(http.MethodPost, "/api/v1/scrape", scrapeRequest{URL: "https://a.test/p1"})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleScrape(t *testing.T) {
	rec := models.NewProductRecord()
	tests := []struct {
		name    string
		body    any
		outcome models.Outcome
		want    int
		called  bool
	}{
		{"success", scrapeRequest{URL: "https://a.test/p1"}, models.Outcome{Stage: models.StageDone, DocumentID: "id", Record: rec}, http.StatusCreated, true},
		{"empty page", scrapeRequest{URL: "https://a.test/p1"}, models.Outcome{Stage: models.StageFetch, Err: pipeline.ErrEmptyContent}, http.StatusUnprocessableEntity, true},
		{"extract failed", scrapeRequest{URL: "https://a.test/p1"}, models.Outcome{Stage: models.StageExtract, Err: errors.New("bad json")}, http.StatusBadGateway, true},
		{"persist failed", scrapeRequest{URL: "https://a.test/p1"}, models.Outcome{Stage: models.StagePersist, Err: &persist.Error{URL: "u", Cause: errors.New("disk full")}, Record: rec}, http.StatusInternalServerError, true},
		{"relative url", scrapeRequest{URL: "/p1"}, models.Outcome{}, http.StatusBadRequest, false},
		{"bad body", "not an object", models.Outcome{}, http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scraper := &fakeScraper{outcome: tt.outcome}
			e := newEnv(t, WithScraper(scraper))
			res := e.do(http.MethodPost, "/api/v1/scrape", tt.body)
			assert.Equal(t, tt.want, res.Code, res.Body.String())
			assert.Equal(t, tt.called, len(scraper.calls) == 1)
			if tt.called {
				var out ScrapeResult
				require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
				assert.Equal(t, "https://a.test/p1", out.URL)
				assert.Equal(t, tt.outcome.OK(), out.OK)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	m.ObserveURL("done", metrics.ResultOK)
	e := newEnv(t, WithMetrics(m))

	rec := e.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "shohin_urls_total"))
}
