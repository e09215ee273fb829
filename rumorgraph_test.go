package rumorgraph

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumorgraph/rumorgraph/pkg/config"
	"github.com/rumorgraph/rumorgraph/pkg/enrich"
	"github.com/rumorgraph/rumorgraph/pkg/schema"
	"github.com/rumorgraph/rumorgraph/pkg/table"
)

// stubRehydrator returns canned category rows and counts its calls.
type stubRehydrator struct {
	rows  map[string][]table.Row
	calls int
}

func (s *stubRehydrator) Rehydrate(ctx context.Context, tweetIDs []string) (map[string][]table.Row, error) {
	s.calls++
	return s.rows, nil
}

// stubEnricher resolves tasks against canned records keyed by normalized URL.
type stubEnricher struct {
	articles map[string]*enrich.Article
	images   map[string]*enrich.Image
}

func (s *stubEnricher) Process(ctx context.Context, tasks []enrich.Task) ([]enrich.Record, enrich.Stats, error) {
	var records []enrich.Record
	stats := enrich.Stats{Submitted: int64(len(tasks))}
	for _, task := range tasks {
		norm := enrich.NormalizeURL(task.URL)
		if art, ok := s.articles[norm]; ok && task.Kind == enrich.TaskArticle {
			records = append(records, enrich.Record{URL: norm, Article: art})
			stats.Succeeded++
			continue
		}
		if img, ok := s.images[norm]; ok && task.Kind == enrich.TaskImage {
			records = append(records, enrich.Record{URL: norm, Image: img})
			stats.Succeeded++
			continue
		}
		stats.Failed++
	}
	return records, stats, nil
}

func testConfig(datasetDir string) *config.Config {
	return &config.Config{
		Dataset: config.DatasetConfig{
			Dir:  datasetDir,
			Size: config.SizeMedium,
			Include: config.IncludeConfig{
				Articles: true,
				Images:   true,
				Videos:   true,
				Hashtags: true,
				Mentions: true,
				Places:   true,
				Polls:    true,
			},
		},
	}
}

func newTestDataset(t *testing.T, datasetDir string) *Dataset {
	t.Helper()
	d, err := New(testConfig(datasetDir), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return d
}

func writeFixture(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestLoadClassifiesByFilenameGrammar(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "claim.csv", "claim_id,reviewers\nc1,factcheck.example\n")
	writeFixture(t, dir, "tweet.csv", "tweet_id\n1\n")
	writeFixture(t, dir, "tweet_discusses_claim.csv", "src,tgt,relevance\n1,c1,0.9\n")

	d := newTestDataset(t, dir)
	raw, err := d.load()
	require.NoError(t, err)

	claims, ok := d.Node(schema.KindClaim)
	require.True(t, ok)
	assert.Equal(t, 1, claims.Len())

	pairs, ok := raw[schema.Triple{Src: "tweet", Label: "discusses", Tgt: "claim"}]
	require.True(t, ok)
	require.Len(t, pairs, 1)
	assert.Equal(t, "1", pairs[0].Src)
	require.NotNil(t, pairs[0].Score)
	assert.Equal(t, 0.9, *pairs[0].Score)
}

func TestLoadWarnsOnNonCSVFiles(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "claim.csv", "claim_id\nc1\n")
	writeFixture(t, dir, "tweet.csv", "tweet_id\n1\n")
	writeFixture(t, dir, "user.cvs", "user_id\n10\n")

	var logBuf bytes.Buffer
	d, err := New(testConfig(dir), slog.New(slog.NewTextHandler(&logBuf, nil)))
	require.NoError(t, err)

	_, err = d.load()
	require.NoError(t, err)

	// The misnamed file is skipped loudly, not silently.
	_, ok := d.Node(schema.KindUser)
	assert.False(t, ok)
	assert.Contains(t, logBuf.String(), "user.cvs")
}

func TestLoadRejectsTwoTokenFilename(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "claim.csv", "claim_id\nc1\n")
	writeFixture(t, dir, "tweet.csv", "tweet_id\n1\n")
	writeFixture(t, dir, "a_b.csv", "src,tgt\n1,2\n")

	d := newTestDataset(t, dir)
	_, err := d.load()
	require.ErrorIs(t, err, schema.ErrBadFilename)
}

func TestLoadMissingClaimsIsFatal(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "tweet.csv", "tweet_id\n1\n")

	d := newTestDataset(t, dir)
	_, err := d.load()
	require.ErrorIs(t, err, ErrMissingClaims)
}

func TestLoadDuplicateTweetIDsIsFatal(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "claim.csv", "claim_id\nc1\n")
	writeFixture(t, dir, "tweet.csv", "tweet_id\n1\n1\n")

	d := newTestDataset(t, dir)
	_, err := d.load()
	require.ErrorIs(t, err, table.ErrDuplicateKeys)
}

func TestLoadSynthesizesClaimIDs(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, "claim.csv", "reviewers\nfactcheck.example\nsnopes.example\n")
	writeFixture(t, dir, "tweet.csv", "tweet_id\n1\n")

	d := newTestDataset(t, dir)
	_, err := d.load()
	require.NoError(t, err)

	claims, _ := d.Node(schema.KindClaim)
	assert.Equal(t, "claim-0", claims.Key(0))
	assert.Equal(t, "claim-1", claims.Key(1))
}

func TestHydrateIsIdempotent(t *testing.T) {
	d := newTestDataset(t, t.TempDir())
	tweets := table.New(schema.KindTweet, "tweet_id")
	tweets.Append(table.Row{"tweet_id": "1", "text": "already hydrated"})
	d.nodes[schema.KindTweet] = tweets

	stub := &stubRehydrator{}
	d.rehydrator = stub

	require.NoError(t, d.hydrate(context.Background()))
	assert.Equal(t, 0, stub.calls)
}

func TestHydrateSplitsMediaByType(t *testing.T) {
	d := newTestDataset(t, t.TempDir())
	tweets := table.New(schema.KindTweet, "tweet_id")
	tweets.Append(table.Row{"tweet_id": "1"})
	d.nodes[schema.KindTweet] = tweets

	d.rehydrator = &stubRehydrator{rows: map[string][]table.Row{
		schema.CategoryTweets: {{"tweet_id": int64(1), "text": "hello"}},
		schema.CategoryUsers:  {{"user_id": int64(10), "username": "poster"}},
		schema.CategoryMedia: {
			{"media_key": "3_1", "type": "photo", "url": "https://img.example/a.jpg"},
			{"media_key": "7_2", "type": "video"},
			{"media_key": "16_3", "type": "animated_gif"},
		},
	}}

	require.NoError(t, d.hydrate(context.Background()))

	images, _ := d.Node(schema.KindImage)
	videos, _ := d.Node(schema.KindVideo)
	assert.Equal(t, 1, images.Len())
	assert.Equal(t, 2, videos.Len())
}

func TestStringBeforeAndAfterCompile(t *testing.T) {
	d := newTestDataset(t, t.TempDir())
	assert.Equal(t, "Dataset(size=medium, compiled=false)", d.String())

	tweets := table.New(schema.KindTweet, "tweet_id")
	tweets.Append(table.Row{"tweet_id": "1"}, table.Row{"tweet_id": "2"})
	d.nodes[schema.KindTweet] = tweets
	d.compiled = true

	s := d.String()
	assert.Contains(t, s, "tweet: 2")
}

func TestProjectTableKeepsAndRenames(t *testing.T) {
	src := table.New(schema.KindTweet, "tweet_id")
	src.Append(table.Row{
		"tweet_id":                     "1",
		"text":                         "hello",
		"public_metrics.retweet_count": int64(3),
		"entities.mentions":            []table.Row{{"id": int64(7)}},
	})

	projected := projectTable(src, []columnSpec{
		{Name: "tweet_id"},
		{Name: "text"},
		{Name: "public_metrics.retweet_count", As: "num_retweets"},
	})

	require.Equal(t, 1, projected.Len())
	row, _ := projected.Row(0)
	assert.Equal(t, "hello", row["text"])
	assert.Equal(t, int64(3), row["num_retweets"])
	assert.NotContains(t, row, "entities.mentions")
	assert.NotContains(t, row, "public_metrics.retweet_count")
	assert.Equal(t, "1", projected.Key(0))
}

func TestProjectionSpecParsesAndNamesKnownKinds(t *testing.T) {
	spec, err := loadProjectionSpec()
	require.NoError(t, err)
	require.NoError(t, validateProjectionSpec(spec))
	assert.NotEmpty(t, spec[schema.KindTweet])
	assert.NotEmpty(t, spec[schema.KindArticle])
}
