package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "jina_secret_key"

func newTestFetcher(t *testing.T, handler http.HandlerFunc) *Fetcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	f, err := New(Options{Endpoint: srv.URL + "/", APIKey: testKey, Timeout: 2 * time.Second})
	require.NoError(t, err)
	return f
}

func TestNew_requiresKey(t *testing.T) {
	_, err := New(Options{APIKey: "  "})
	require.Error(t, err)
}

func TestFetch_success(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer "+testKey, r.Header.Get("Authorization"))
		assert.Equal(t, "true", r.Header.Get("X-With-Links-Summary"))
		assert.Equal(t, "true", r.Header.Get("X-With-Images-Summary"))
		assert.Contains(t, r.Header.Get("Accept"), "application/json")

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "https://a.test/p1", body["url"])

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"code":200,"data":{"title":"Runner","content":"Great shoe","links":{"Home":"https://a.test/"},"images":{"Image 1":"https://a.test/1.jpg"}}}`)
	})

	got, err := f.Fetch(context.Background(), "https://a.test/p1")
	require.NoError(t, err)
	assert.Equal(t, "https://a.test/p1", got.URL)
	assert.Equal(t, "Runner", got.Title)
	assert.Equal(t, "Great shoe", got.Content)
	assert.Equal(t, "https://a.test/", got.Links["Home"])
	assert.Equal(t, "https://a.test/1.jpg", got.Images["Image 1"])
}

func TestFetch_linkPairs(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":{"content":"x","links":[["Home","https://a.test/"],["bad"]],"images":"nope"}}`)
	})
	got, err := f.Fetch(context.Background(), "https://a.test/p1")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Home": "https://a.test/"}, got.Links)
	assert.Nil(t, got.Images)
}

func TestFetch_emptyContentIsNotAnError(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":{"content":""}}`)
	})
	got, err := f.Fetch(context.Background(), "https://a.test/p1")
	require.NoError(t, err)
	assert.True(t, got.Empty())
}

func TestFetch_nonSuccessStatus(t *testing.T) {
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"message":"cannot render"}`)
	})
	_, err := f.Fetch(context.Background(), "https://a.test/p1")
	require.Error(t, err)

	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "https://a.test/p1", fe.URL)
	assert.Equal(t, http.StatusUnprocessableEntity, fe.Status)
	assert.Contains(t, fe.Body, "cannot render")
	assert.NotContains(t, err.Error(), testKey)
}

func TestFetch_missingData(t *testing.T) {
	for _, body := range []string{`{"code":200}`, `{"data":null}`, `{"data":"text"}`, `not json`} {
		t.Run(body, func(t *testing.T) {
			f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
				io.WriteString(w, body)
			})
			_, err := f.Fetch(context.Background(), "https://a.test/p1")
			var fe *Error
			require.True(t, errors.As(err, &fe))
			assert.NotNil(t, fe.Cause)
		})
	}
}

func TestFetch_transportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL + "/"
	srv.Close()

	f, err := New(Options{Endpoint: endpoint, APIKey: testKey, Timeout: time.Second})
	require.NoError(t, err)
	_, err = f.Fetch(context.Background(), "https://a.test/p1")

	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.Zero(t, fe.Status)
	assert.NotNil(t, fe.Cause)
	assert.NotContains(t, err.Error(), testKey)
}

func TestFetch_timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)
	f, err := New(Options{Endpoint: srv.URL + "/", APIKey: testKey, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), "https://a.test/p1")
	var fe *Error
	require.True(t, errors.As(err, &fe))
	assert.NotNil(t, fe.Cause)
}

func TestFetch_emptyURLMakesNoRequest(t *testing.T) {
	var calls int32
	f := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})
	_, err := f.Fetch(context.Background(), "   ")
	require.ErrorIs(t, err, ErrEmptyURL)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestError_messageTruncatesBody(t *testing.T) {
	e := &Error{URL: "u", Status: 500, Body: strings.Repeat("x", 1000)}
	assert.Less(t, len(e.Error()), 300)
}
