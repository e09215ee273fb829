package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchCacheServesRepeats(t *testing.T) {
	t.Parallel()
	var hits int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		fmt.Fprint(w, "payload")
	}))
	defer server.Close()

	fetcher, err := NewFetcher(FetcherOptions{Client: server.Client(), CacheDir: t.TempDir()})
	require.NoError(t, err)
	defer fetcher.Close()

	for i := 0; i < 3; i++ {
		body, err := fetcher.Fetch(context.Background(), server.URL+"/doc")
		require.NoError(t, err)
		assert.Equal(t, "payload", string(body))
	}
	assert.Equal(t, int64(1), atomic.LoadInt64(&hits))
}

func TestFetchRespectsRobots(t *testing.T) {
	t.Parallel()
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "User-agent: *\nDisallow: /private/\n")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "ok")
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	fetcher, err := NewFetcher(FetcherOptions{Client: server.Client(), RespectRobots: true})
	require.NoError(t, err)

	_, err = fetcher.Fetch(context.Background(), server.URL+"/private/doc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "robots")

	body, err := fetcher.Fetch(context.Background(), server.URL+"/public/doc")
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}

func TestFetchNonSuccessStatus(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	fetcher, err := NewFetcher(FetcherOptions{Client: server.Client()})
	require.NoError(t, err)

	_, err = fetcher.Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
