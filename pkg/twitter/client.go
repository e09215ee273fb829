// Package twitter is the rehydration collaborator: given a list of tweet
// IDs it returns the platform's raw per-entity attribute rows, grouped by
// category ("tweets", "users", "media", "polls", "places"). Batching, rate
// limiting, and circuit breaking live here; the caller sees one call.
package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	jsonrepair "github.com/kaptinlin/jsonrepair"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/rumorgraph/rumorgraph/pkg/schema"
	"github.com/rumorgraph/rumorgraph/pkg/table"
)

const (
	defaultBaseURL   = "https://api.twitter.com/2"
	defaultBatchSize = 100
	defaultParallel  = 4
)

var (
	tweetFields = []string{
		"id", "text", "created_at", "author_id", "conversation_id", "lang",
		"source", "possibly_sensitive", "public_metrics", "entities",
		"attachments", "geo",
	}
	userFields = []string{
		"id", "username", "name", "description", "created_at", "verified",
		"protected", "location", "url", "profile_image_url", "public_metrics",
		"entities",
	}
	mediaFields = []string{
		"media_key", "type", "url", "preview_image_url", "width", "height",
		"duration_ms", "public_metrics",
	}
	pollFields  = []string{"id", "options", "voting_status", "duration_minutes", "end_datetime"}
	placeFields = []string{"id", "name", "full_name", "country", "country_code", "place_type", "geo"}
	expansions  = []string{
		"author_id", "entities.mentions.username", "attachments.media_keys",
		"attachments.poll_ids", "geo.place_id",
	}
)

// Options configures a Client.
type Options struct {
	BearerToken string
	// BaseURL overrides the API endpoint, for tests.
	BaseURL string
	// BatchSize caps IDs per request. Zero means 100, the API maximum.
	BatchSize int
	// MaxParallel bounds concurrent batch requests. Zero means 4.
	MaxParallel int
	// RequestsPerSecond throttles requests. Zero disables the limiter.
	RequestsPerSecond float64
	// Client overrides the HTTP client.
	Client *http.Client
	Logger *slog.Logger
}

// Client calls the rehydration API.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	bearerToken string
	batchSize   int
	maxParallel int
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
	logger      *slog.Logger
}

// NewClient builds a Client. The circuit breaker opens after a sustained
// failure ratio so a dead API fails the compile quickly instead of grinding
// through every batch.
func NewClient(opts Options) *Client {
	c := &Client{
		httpClient:  opts.Client,
		baseURL:     opts.BaseURL,
		bearerToken: opts.BearerToken,
		batchSize:   opts.BatchSize,
		maxParallel: opts.MaxParallel,
		logger:      opts.Logger,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.batchSize <= 0 || c.batchSize > defaultBatchSize {
		c.batchSize = defaultBatchSize
	}
	if c.maxParallel <= 0 {
		c.maxParallel = defaultParallel
	}
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "rehydration",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				c.logger.Error("rehydration circuit breaker opened", "from", from.String())
			}
		},
	})
	return c
}

// Rehydrate fetches the raw rows for the given tweet IDs, batching requests
// internally and validating every row against its category schema. The
// returned mapping is keyed by category name. Any batch failure is fatal:
// the pipeline cannot proceed on a partial primary source.
func (c *Client) Rehydrate(ctx context.Context, tweetIDs []string) (map[string][]table.Row, error) {
	batches := batchIDs(tweetIDs, c.batchSize)

	var mu sync.Mutex
	results := make(map[string][]table.Row)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxParallel)
	for _, batch := range batches {
		batch := batch
		g.Go(func() error {
			categorized, err := c.fetchBatch(gctx, batch)
			if err != nil {
				return err
			}
			mu.Lock()
			for category, rows := range categorized {
				results[category] = append(results[category], rows...)
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("rehydration failed: %w", err)
	}

	c.logger.Info("rehydration complete",
		"requested", len(tweetIDs),
		"tweets", len(results[schema.CategoryTweets]),
		"users", len(results[schema.CategoryUsers]),
		"media", len(results[schema.CategoryMedia]))
	return results, nil
}

// fetchBatch requests one batch of tweet IDs with all expansions and splits
// the response into categorized, schema-validated rows.
func (c *Client) fetchBatch(ctx context.Context, ids []string) (map[string][]table.Row, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	query := url.Values{}
	query.Set("ids", strings.Join(ids, ","))
	query.Set("tweet.fields", strings.Join(tweetFields, ","))
	query.Set("user.fields", strings.Join(userFields, ","))
	query.Set("media.fields", strings.Join(mediaFields, ","))
	query.Set("poll.fields", strings.Join(pollFields, ","))
	query.Set("place.fields", strings.Join(placeFields, ","))
	query.Set("expansions", strings.Join(expansions, ","))

	endpoint := fmt.Sprintf("%s/tweets?%s", c.baseURL, query.Encode())

	body, err := c.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("[%d] %s", resp.StatusCode, truncate(string(data), 200))
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}

	return decodeResponse(body.([]byte))
}

// response is the wire shape of a batched tweet lookup.
type response struct {
	Data     []map[string]any `json:"data"`
	Includes struct {
		Users  []map[string]any `json:"users"`
		Media  []map[string]any `json:"media"`
		Polls  []map[string]any `json:"polls"`
		Places []map[string]any `json:"places"`
	} `json:"includes"`
}

// decodeResponse parses a response body, repairing almost-JSON payloads
// before giving up, then flattens and validates every row.
func decodeResponse(body []byte) (map[string][]table.Row, error) {
	var resp response
	if err := decodeNumbers(body, &resp); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(string(body))
		if repairErr != nil {
			return nil, fmt.Errorf("decode rehydration response: %w", err)
		}
		if err := decodeNumbers([]byte(repaired), &resp); err != nil {
			return nil, fmt.Errorf("decode repaired rehydration response: %w", err)
		}
	}

	out := make(map[string][]table.Row)
	appendRows := func(category, idColumn string, raws []map[string]any) error {
		spec, _ := schema.SpecFor(category)
		for _, raw := range raws {
			flat := Flatten(raw)
			if idColumn != "" {
				if id, ok := flat["id"]; ok {
					flat[idColumn] = id
					delete(flat, "id")
				}
			}
			row, err := spec.Coerce(flat)
			if err != nil {
				return err
			}
			out[category] = append(out[category], row)
		}
		return nil
	}

	if err := appendRows(schema.CategoryTweets, "tweet_id", resp.Data); err != nil {
		return nil, err
	}
	if err := appendRows(schema.CategoryUsers, "user_id", resp.Includes.Users); err != nil {
		return nil, err
	}
	if err := appendRows(schema.CategoryMedia, "", resp.Includes.Media); err != nil {
		return nil, err
	}
	if err := appendRows(schema.CategoryPolls, "poll_id", resp.Includes.Polls); err != nil {
		return nil, err
	}
	if err := appendRows(schema.CategoryPlaces, "place_id", resp.Includes.Places); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeNumbers(data []byte, v any) error {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	return dec.Decode(v)
}

// Flatten rewrites nested objects to dotted column names, leaving lists
// intact ("entities": {"mentions": [...]} becomes "entities.mentions").
func Flatten(raw map[string]any) map[string]any {
	flat := make(map[string]any, len(raw))
	for key, value := range raw {
		if nested, ok := value.(map[string]any); ok {
			for nk, nv := range Flatten(nested) {
				flat[key+"."+nk] = nv
			}
			continue
		}
		flat[key] = value
	}
	return flat
}

func batchIDs(ids []string, size int) [][]string {
	var batches [][]string
	for i := 0; i < len(ids); i += size {
		end := i + size
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[i:end])
	}
	return batches
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
