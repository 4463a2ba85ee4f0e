package pipeline

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperjump/shohin/internal/docid"
	"github.com/hyperjump/shohin/internal/fetch"
	"github.com/hyperjump/shohin/internal/metrics"
	"github.com/hyperjump/shohin/internal/models"
	"github.com/hyperjump/shohin/internal/persist"
	"github.com/hyperjump/shohin/internal/storage"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher returns content for every URL except those in fail or empty.
type fakeFetcher struct {
	fail  map[string]bool
	empty map[string]bool
	calls []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string) (*models.RawContent, error) {
	f.calls = append(f.calls, rawURL)
	if f.fail[rawURL] {
		return nil, &fetch.Error{URL: rawURL, Status: 502, Body: "bad gateway"}
	}
	if f.empty[rawURL] {
		return &models.RawContent{URL: rawURL}, nil
	}
	return &models.RawContent{URL: rawURL, Title: "Page", Content: "Product page for " + rawURL}, nil
}

type fakeExtractor struct {
	fail map[string]bool
}

func (e *fakeExtractor) Extract(ctx context.Context, content *models.RawContent, rawURL string) (*models.ProductRecord, error) {
	if e.fail[rawURL] {
		return nil, errors.New("unparseable reply")
	}
	r := models.NewProductRecord()
	r.ProductDetails.Title = models.NewText("Product " + rawURL)
	return r, nil
}

func newStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "products.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRun_FaultIsolation(t *testing.T) {
	store := newStore(t)
	urls := []string{"https://a.test/1", "https://a.test/2", "https://a.test/3"}
	fetcher := &fakeFetcher{fail: map[string]bool{urls[1]: true}}
	var progress bytes.Buffer
	p := New(fetcher, &fakeExtractor{}, persist.NewWriter(store), WithProgress(&progress))

	outcomes := p.Run(context.Background(), urls)
	require.Len(t, outcomes, 3)
	assert.Equal(t, urls, fetcher.calls, "input order must be kept")

	s := models.Summarize(outcomes)
	assert.Equal(t, 2, s.Succeeded)
	assert.Equal(t, 1, s.Failed)

	assert.True(t, outcomes[0].OK())
	assert.Equal(t, models.StageFetch, outcomes[1].Stage)
	var fe *fetch.Error
	assert.True(t, errors.As(outcomes[1].Err, &fe))
	assert.Nil(t, outcomes[1].Record)
	assert.True(t, outcomes[2].OK())

	for _, u := range []string{urls[0], urls[2]} {
		_, err := store.Get(context.Background(), docid.URLDocID(u))
		assert.NoError(t, err, u)
	}
	_, err := store.Get(context.Background(), docid.URLDocID(urls[1]))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.Contains(t, progress.String(), "[2/3] Processing https://a.test/2")
	assert.Contains(t, progress.String(), "fetch failed for https://a.test/2")
}

func TestRunOne_EmptyContentIsSkipped(t *testing.T) {
	store := newStore(t)
	u := "https://a.test/empty"
	p := New(&fakeFetcher{empty: map[string]bool{u: true}}, &fakeExtractor{}, persist.NewWriter(store))

	out := p.RunOne(context.Background(), u)
	assert.Equal(t, models.StageFetch, out.Stage)
	assert.ErrorIs(t, out.Err, ErrEmptyContent)
	n, _ := store.Count(context.Background())
	assert.Zero(t, n)
}

func TestRunOne_ExtractFailure(t *testing.T) {
	u := "https://a.test/p"
	p := New(&fakeFetcher{}, &fakeExtractor{fail: map[string]bool{u: true}}, persist.NewWriter(newStore(t)))

	out := p.RunOne(context.Background(), u)
	assert.Equal(t, models.StageExtract, out.Stage)
	assert.Error(t, out.Err)
	assert.Nil(t, out.Record)
	assert.Equal(t, docid.URLDocID(u), out.DocumentID)
}

type brokenStore struct{ storage.Store }

func (brokenStore) Upsert(ctx context.Context, doc *models.StoredDocument) error {
	return errors.New("disk full")
}

func TestRunOne_PersistFailureKeepsRecord(t *testing.T) {
	p := New(&fakeFetcher{}, &fakeExtractor{}, persist.NewWriter(brokenStore{}))

	outcomes := p.Run(context.Background(), []string{"https://a.test/p"})
	require.Len(t, outcomes, 1)
	out := outcomes[0]
	assert.Equal(t, models.StagePersist, out.Stage)
	var pe *persist.Error
	require.True(t, errors.As(out.Err, &pe))
	require.NotNil(t, out.Record)
	assert.Len(t, Records(outcomes), 1, "extracted records are exported even when the write failed")
}

func TestRun_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fetcher := &fakeFetcher{}
	p := New(fetcher, &fakeExtractor{}, persist.NewWriter(newStore(t)))

	outcomes := p.Run(ctx, []string{"https://a.test/1", "https://a.test/2"})
	assert.Empty(t, outcomes)
	assert.Empty(t, fetcher.calls)
}

func TestRun_EmptyBatch(t *testing.T) {
	p := New(&fakeFetcher{}, &fakeExtractor{}, persist.NewWriter(newStore(t)))
	outcomes := p.Run(context.Background(), nil)
	assert.Empty(t, outcomes)
	assert.NotNil(t, Records(outcomes))
	assert.Empty(t, Records(outcomes))
}

func TestRun_Metrics(t *testing.T) {
	m := metrics.New()
	urls := []string{"https://a.test/1", "https://a.test/2"}
	p := New(&fakeFetcher{fail: map[string]bool{urls[1]: true}}, &fakeExtractor{}, persist.NewWriter(newStore(t)), WithMetrics(m))

	p.Run(context.Background(), urls)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.URLsTotal.WithLabelValues("done", metrics.ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.URLsTotal.WithLabelValues("fetch", metrics.ResultError)))
}

// slowFetcher records how many fetches overlap.
type slowFetcher struct {
	active, peak int32
}

func (f *slowFetcher) Fetch(ctx context.Context, rawURL string) (*models.RawContent, error) {
	n := atomic.AddInt32(&f.active, 1)
	for {
		p := atomic.LoadInt32(&f.peak)
		if n <= p || atomic.CompareAndSwapInt32(&f.peak, p, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	atomic.AddInt32(&f.active, -1)
	return &models.RawContent{URL: rawURL, Content: "x"}, nil
}

func TestRunOne_Serialized(t *testing.T) {
	fetcher := &slowFetcher{}
	p := New(fetcher, &fakeExtractor{}, persist.NewWriter(newStore(t)))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.RunOne(context.Background(), "https://a.test/same")
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&fetcher.peak))
}
