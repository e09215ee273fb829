// Package enrich fetches and parses the external documents referenced by the
// dataset's url entities: HTML articles and raster images. Work runs on a
// bounded worker pool with a per-item timeout; an item that times out, fails
// to parse, or comes back empty is discarded without failing the batch.
package enrich

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	gocache "github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
	"golang.org/x/time/rate"
)

const defaultUserAgent = "rumorgraph/1.0 (dataset compiler)"

// FetcherOptions configures a Fetcher.
type FetcherOptions struct {
	// UserAgent sent with every request and matched against robots.txt.
	UserAgent string
	// MaxBytes caps how much of a response body is read. Zero means 10 MiB.
	MaxBytes int64
	// RequestsPerSecond throttles outbound requests. Zero disables the limiter.
	RequestsPerSecond float64
	// CacheDir, when set, opens a badger store there and serves repeated
	// fetches of the same normalized URL from disk.
	CacheDir string
	// RespectRobots enables robots.txt checks before each fetch.
	RespectRobots bool
	// Client overrides the HTTP client. Nil builds one with a redirect cap.
	Client *http.Client
}

// Fetcher retrieves external documents with rate limiting, robots.txt
// compliance, and an optional on-disk read-through cache.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	limiter   *rate.Limiter
	robots    *gocache.Cache // host -> *robotstxt.RobotsData
	checkRbt  bool
	cache     *badger.DB
}

// NewFetcher builds a Fetcher from options. Close must be called when the
// cache directory is in use.
func NewFetcher(opts FetcherOptions) (*Fetcher, error) {
	f := &Fetcher{
		client:    opts.Client,
		userAgent: opts.UserAgent,
		maxBytes:  opts.MaxBytes,
		checkRbt:  opts.RespectRobots,
	}
	if f.client == nil {
		f.client = &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("stopped after 5 redirects")
				}
				return nil
			},
		}
	}
	if f.userAgent == "" {
		f.userAgent = defaultUserAgent
	}
	if f.maxBytes <= 0 {
		f.maxBytes = 10 << 20
	}
	if opts.RequestsPerSecond > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	if f.checkRbt {
		f.robots = gocache.New(time.Hour, 2*time.Hour)
	}
	if opts.CacheDir != "" {
		db, err := badger.Open(badger.DefaultOptions(opts.CacheDir).WithLogger(nil))
		if err != nil {
			return nil, fmt.Errorf("open fetch cache: %w", err)
		}
		f.cache = db
	}
	return f, nil
}

// Close releases the on-disk cache, if any.
func (f *Fetcher) Close() error {
	if f.cache != nil {
		return f.cache.Close()
	}
	return nil
}

// Fetch retrieves the body at rawURL, honoring the rate limit, robots.txt,
// and the read-through cache. The caller controls the deadline through ctx.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if f.cache != nil {
		if body, ok := f.cacheGet(rawURL); ok {
			return body, nil
		}
	}

	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	if f.checkRbt {
		allowed, err := f.allowed(ctx, rawURL)
		if err == nil && !allowed {
			return nil, fmt.Errorf("disallowed by robots.txt: %s", rawURL)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,image/*;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	if f.cache != nil {
		f.cachePut(rawURL, body)
	}
	return body, nil
}

// allowed checks robots.txt for the URL's host, caching parsed rules per
// host. Hosts whose robots.txt cannot be fetched default to allowed.
func (f *Fetcher) allowed(ctx context.Context, rawURL string) (bool, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false, err
	}

	var data *robotstxt.RobotsData
	if cached, ok := f.robots.Get(parsed.Host); ok {
		data = cached.(*robotstxt.RobotsData)
	} else {
		robotsURL := fmt.Sprintf("%s://%s/robots.txt", parsed.Scheme, parsed.Host)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
		if err != nil {
			return true, nil
		}
		req.Header.Set("User-Agent", f.userAgent)
		resp, err := f.client.Do(req)
		if err != nil {
			return true, nil
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp.Body, 512<<10))
		if err != nil {
			return true, nil
		}
		data, err = robotstxt.FromStatusAndBytes(resp.StatusCode, body)
		if err != nil {
			return true, nil
		}
		f.robots.Set(parsed.Host, data, gocache.DefaultExpiration)
	}

	group := data.FindGroup(f.userAgent)
	if group == nil {
		return true, nil
	}
	return group.Test(parsed.Path), nil
}

func (f *Fetcher) cacheGet(key string) ([]byte, bool) {
	var body []byte
	err := f.cache.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		body, err = item.ValueCopy(nil)
		return err
	})
	return body, err == nil
}

func (f *Fetcher) cachePut(key string, body []byte) {
	// Cache writes are best effort; a failed put only costs a re-download.
	_ = f.cache.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), body)
	})
}

// NormalizeURL strips the query string, fragment, and any trailing slash
// before a URL is fetched or used as a merge key.
func NormalizeURL(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		rawURL = rawURL[:i]
	}
	return strings.TrimSuffix(rawURL, "/")
}
