package twitter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumorgraph/rumorgraph/pkg/schema"
	"github.com/rumorgraph/rumorgraph/pkg/table"
)

const sampleResponse = `{
	"data": [
		{
			"id": 1340,
			"text": "this is fake",
			"author_id": 7,
			"entities": {"mentions": [{"id": 8, "username": "factcheck"}]},
			"attachments": {"media_keys": ["3_1340"]}
		}
	],
	"includes": {
		"users": [
			{"id": 7, "username": "poster", "profile_image_url": "https://img.example/7.jpg"},
			{"id": 8, "username": "factcheck"}
		],
		"media": [
			{"media_key": "3_1340", "type": "photo", "url": "https://img.example/m.jpg"}
		]
	}
}`

func TestRehydrateBatchesAndCategorizes(t *testing.T) {
	t.Parallel()
	var requests int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&requests, 1)
		ids := r.URL.Query().Get("ids")
		assert.LessOrEqual(t, len(strings.Split(ids, ",")), 2)
		assert.Equal(t, "Bearer token-123", r.Header.Get("Authorization"))
		fmt.Fprint(w, sampleResponse)
	}))
	defer server.Close()

	client := NewClient(Options{
		BearerToken: "token-123",
		BaseURL:     server.URL,
		BatchSize:   2,
		Client:      server.Client(),
	})

	rows, err := client.Rehydrate(context.Background(), []string{"1", "2", "3"})
	require.NoError(t, err)

	// 3 IDs at batch size 2 is two requests.
	assert.Equal(t, int64(2), atomic.LoadInt64(&requests))
	assert.Len(t, rows[schema.CategoryTweets], 2)
	assert.Len(t, rows[schema.CategoryUsers], 4)
	assert.Len(t, rows[schema.CategoryMedia], 2)

	tweet := rows[schema.CategoryTweets][0]
	assert.Equal(t, int64(1340), tweet["tweet_id"])
	assert.Equal(t, int64(7), tweet["author_id"])

	mentions, ok := tweet["entities.mentions"].([]table.Row)
	require.True(t, ok)
	require.Len(t, mentions, 1)
	assert.Equal(t, int64(8), mentions[0]["id"])
}

func TestRehydrateFailureIsFatal(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"title":"Unauthorized"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL, Client: server.Client()})
	_, err := client.Rehydrate(context.Background(), []string{"1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestDecodeResponseRepairsTruncatedJSON(t *testing.T) {
	t.Parallel()
	// Trailing comma: invalid JSON that jsonrepair can fix.
	body := `{"data": [{"id": 1, "text": "x",}], "includes": {}}`
	rows, err := decodeResponse([]byte(body))
	require.NoError(t, err)
	require.Len(t, rows[schema.CategoryTweets], 1)
	assert.Equal(t, int64(1), rows[schema.CategoryTweets][0]["tweet_id"])
}

func TestFlatten(t *testing.T) {
	t.Parallel()
	flat := Flatten(map[string]any{
		"id": 1,
		"geo": map[string]any{
			"place_id": "sfo",
			"coordinates": map[string]any{
				"type": "Point",
			},
		},
		"entities": map[string]any{
			"mentions": []any{map[string]any{"id": 7}},
		},
	})

	assert.Equal(t, "sfo", flat["geo.place_id"])
	assert.Equal(t, "Point", flat["geo.coordinates.type"])
	// Lists are left intact for the object-list schema to validate.
	assert.Contains(t, flat, "entities.mentions")
	assert.NotContains(t, flat, "geo")
}

func TestBatchIDs(t *testing.T) {
	t.Parallel()
	batches := batchIDs([]string{"a", "b", "c", "d", "e"}, 2)
	require.Len(t, batches, 3)
	assert.Equal(t, []string{"e"}, batches[2])
}
