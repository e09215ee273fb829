package enrich

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleHTML = `<html><head>
<title>Flood photo is from 2012</title>
<meta property="og:image" content="https://cdn.example/top.jpg">
</head><body>
<p>The viral photo does not show last week's storm.</p>
<p>It was taken nine years earlier in another country.</p>
</body></html>`

func TestPoolDropsSlowItemsKeepsRest(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/slow1" || r.URL.Path == "/slow2" {
			time.Sleep(2 * time.Second)
		}
		fmt.Fprint(w, articleHTML)
	}))
	defer server.Close()

	fetcher, err := NewFetcher(FetcherOptions{Client: server.Client()})
	require.NoError(t, err)

	pool := NewPool(4, 200*time.Millisecond, fetcher, nil)
	tasks := []Task{
		{URL: server.URL + "/a", Kind: TaskArticle},
		{URL: server.URL + "/slow1", Kind: TaskArticle},
		{URL: server.URL + "/b", Kind: TaskArticle},
		{URL: server.URL + "/slow2", Kind: TaskArticle},
		{URL: server.URL + "/c", Kind: TaskArticle},
	}

	records, stats, err := pool.Process(context.Background(), tasks)
	require.NoError(t, err)

	assert.Len(t, records, 3)
	assert.Equal(t, int64(5), stats.Submitted)
	assert.Equal(t, int64(3), stats.Succeeded)
	assert.Equal(t, int64(2), stats.TimedOut)

	// Results carry the normalized URL so consumers can correlate them
	// regardless of completion order.
	seen := make(map[string]bool)
	for _, rec := range records {
		require.NotNil(t, rec.Article)
		seen[rec.URL] = true
	}
	for _, path := range []string{"/a", "/b", "/c"} {
		assert.True(t, seen[server.URL+path], "missing record for %s", path)
	}
}

func TestPoolDiscardsEmptyDocuments(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><head><title>Only a title</title></head><body></body></html>")
	}))
	defer server.Close()

	fetcher, err := NewFetcher(FetcherOptions{Client: server.Client()})
	require.NoError(t, err)

	pool := NewPool(2, time.Second, fetcher, nil)
	records, stats, err := pool.Process(context.Background(), []Task{{URL: server.URL, Kind: TaskArticle}})
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, int64(1), stats.Failed)
}

func TestPoolStripsQueryBeforeFetch(t *testing.T) {
	t.Parallel()
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, articleHTML)
	}))
	defer server.Close()

	fetcher, err := NewFetcher(FetcherOptions{Client: server.Client()})
	require.NoError(t, err)

	pool := NewPool(1, time.Second, fetcher, nil)
	records, _, err := pool.Process(context.Background(),
		[]Task{{URL: server.URL + "/story?utm_source=feed", Kind: TaskArticle}})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Empty(t, gotQuery)
	assert.Equal(t, server.URL+"/story", records[0].URL)
}

func TestNormalizeURL(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"https://example.com/a/":        "https://example.com/a",
		"https://example.com/a?x=1&y=2": "https://example.com/a",
		"https://example.com/a#section": "https://example.com/a",
		"https://example.com/a/?x=1":    "https://example.com/a",
		"https://example.com/plain":     "https://example.com/plain",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeURL(in), "input %q", in)
	}
}
