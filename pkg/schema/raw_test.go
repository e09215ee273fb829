package schema

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumorgraph/rumorgraph/pkg/table"
)

func decodeRaw(t *testing.T, payload string) map[string]any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(payload))
	dec.UseNumber()
	var raw map[string]any
	require.NoError(t, dec.Decode(&raw))
	return raw
}

func TestTweetSpecCoerce(t *testing.T) {
	t.Parallel()
	raw := decodeRaw(t, `{
		"tweet_id": 1340,
		"text": "look at this",
		"created_at": "2021-03-01T12:00:00Z",
		"author_id": "1278010234567890123",
		"possibly_sensitive": false,
		"entities.mentions": [{"id": 7, "username": "factcheck"}],
		"attachments.media_keys": ["3_1340"],
		"unknown_field": {"weird": "shape"}
	}`)

	row, err := TweetSpec.Coerce(raw)
	require.NoError(t, err)

	assert.Equal(t, int64(1340), row["tweet_id"])
	assert.Equal(t, int64(1278010234567890123), row["author_id"])
	assert.Equal(t, "look at this", row["text"])
	assert.Equal(t, time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC), row["created_at"])
	assert.Equal(t, []string{"3_1340"}, row["attachments.media_keys"])

	mentions, ok := row["entities.mentions"].([]table.Row)
	require.True(t, ok)
	require.Len(t, mentions, 1)
	assert.Equal(t, int64(7), mentions[0]["id"])

	// Fields the spec does not name never reach the table.
	_, present := row["unknown_field"]
	assert.False(t, present)
}

func TestCoerceRejectsWrongShape(t *testing.T) {
	t.Parallel()
	raw := decodeRaw(t, `{"tweet_id": 1, "text": ["not", "a", "string"]}`)
	_, err := TweetSpec.Coerce(raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "text")
}

func TestCoerceSkipsAbsentFields(t *testing.T) {
	t.Parallel()
	raw := decodeRaw(t, `{"tweet_id": 1}`)
	row, err := TweetSpec.Coerce(raw)
	require.NoError(t, err)
	assert.Len(t, row, 1)
}

func TestPlaceSpecBoundingBox(t *testing.T) {
	t.Parallel()
	raw := decodeRaw(t, `{
		"place_id": "01a9a39529b27f36",
		"full_name": "Manhattan, NY",
		"geo.bbox": [-74.026675, 40.683935, -73.910408, 40.877483]
	}`)
	row, err := PlaceSpec.Coerce(raw)
	require.NoError(t, err)
	bbox, ok := row["geo.bbox"].([]float64)
	require.True(t, ok)
	assert.Len(t, bbox, 4)
	assert.InDelta(t, -74.026675, bbox[0], 1e-9)
}
