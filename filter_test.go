package rumorgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumorgraph/rumorgraph/pkg/schema"
	"github.com/rumorgraph/rumorgraph/pkg/table"
)

func score(v float64) *float64 { return &v }

// filterFixture builds a small in-memory dataset: two claims, three tweets,
// two users, a scored seed relation, and the posted/mentions edges the user
// cascade depends on.
func filterFixture(t *testing.T) *Dataset {
	t.Helper()
	d := newTestDataset(t, t.TempDir())

	claims := table.New(schema.KindClaim, "claim_id")
	claims.Append(table.Row{"claim_id": "c1"}, table.Row{"claim_id": "c2"})

	tweets := table.New(schema.KindTweet, "tweet_id")
	tweets.Append(
		table.Row{"tweet_id": "1", "author_id": "10"},
		table.Row{"tweet_id": "2", "author_id": "10"},
		table.Row{"tweet_id": "3", "author_id": "11"},
	)

	users := table.New(schema.KindUser, "user_id")
	users.Append(table.Row{"user_id": "10"}, table.Row{"user_id": "11"})

	d.nodes[schema.KindClaim] = claims
	d.nodes[schema.KindTweet] = tweets
	d.nodes[schema.KindUser] = users

	d.setRelation(table.NewRelations(schema.KindTweet, labelDiscusses, schema.KindClaim, []table.Pair{
		{Src: 0, Tgt: 0, Score: score(0.9)},
		{Src: 1, Tgt: 0, Score: score(0.5)},
		{Src: 2, Tgt: 1, Score: score(0.85)},
	}, tweets, claims))

	d.setRelation(table.NewRelations(schema.KindUser, labelPosted, schema.KindTweet, []table.Pair{
		{Src: 0, Tgt: 0},
		{Src: 0, Tgt: 1},
		{Src: 1, Tgt: 2},
	}, users, tweets))

	// Tweet 1 mentions user 11.
	d.setRelation(table.NewRelations(schema.KindTweet, labelMentions, schema.KindUser, []table.Pair{
		{Src: 0, Tgt: 1},
	}, tweets, users))

	return d
}

func counts(d *Dataset) map[string]int {
	out := make(map[string]int)
	for kind, t := range d.nodes {
		out["node:"+kind] = t.Len()
	}
	for _, rel := range d.rels {
		out["rel:"+rel.Name()] = rel.Len()
	}
	return out
}

func TestFilterCascades(t *testing.T) {
	d := filterFixture(t)
	require.NoError(t, d.filterSubgraph(0.75))

	tweets, _ := d.Node(schema.KindTweet)
	claims, _ := d.Node(schema.KindClaim)
	users, _ := d.Node(schema.KindUser)

	// Seed edges above 0.75: (1,c1) and (3,c2). Tweet 2 drops.
	assert.Equal(t, 2, tweets.Len())
	assert.Equal(t, 2, claims.Len())
	assert.ElementsMatch(t, []string{"1", "3"}, tweets.Keys())

	// User 10 posted surviving tweet 1; user 11 posted surviving tweet 3.
	assert.Equal(t, 2, users.Len())

	seed, _ := d.Relation(tweetSeed)
	assert.Equal(t, 2, seed.Len())

	posted, _ := d.Relation(schema.Triple{Src: schema.KindUser, Label: labelPosted, Tgt: schema.KindTweet})
	assert.Equal(t, 2, posted.Len())

	require.NoError(t, d.validate())
}

func TestFilterIsIdempotent(t *testing.T) {
	d := filterFixture(t)
	require.NoError(t, d.filterSubgraph(0.75))
	first := counts(d)

	require.NoError(t, d.filterSubgraph(0.75))
	assert.Equal(t, first, counts(d))
}

func TestFilterIsMonotone(t *testing.T) {
	strict := filterFixture(t)
	require.NoError(t, strict.filterSubgraph(0.87))

	loose := filterFixture(t)
	require.NoError(t, loose.filterSubgraph(0.7))

	strictTweets, _ := strict.Node(schema.KindTweet)
	looseTweets, _ := loose.Node(schema.KindTweet)

	// Everything surviving the stricter threshold survives the looser one.
	looseKeys := looseTweets.KeySet()
	for _, key := range strictTweets.Keys() {
		_, ok := looseKeys[key]
		assert.True(t, ok, "tweet %s survived strict filter but not loose", key)
	}
	assert.LessOrEqual(t, strictTweets.Len(), looseTweets.Len())
}

func TestFilterDropsUnscoredSeedEdges(t *testing.T) {
	d := filterFixture(t)
	tweets := d.nodes[schema.KindTweet]
	claims := d.nodes[schema.KindClaim]
	d.setRelation(table.NewRelations(schema.KindTweet, labelDiscusses, schema.KindClaim, []table.Pair{
		{Src: 0, Tgt: 0}, // unscored
		{Src: 2, Tgt: 1, Score: score(0.85)},
	}, tweets, claims))

	require.NoError(t, d.filterSubgraph(0.75))

	filtered, _ := d.Node(schema.KindTweet)
	assert.ElementsMatch(t, []string{"3"}, filtered.Keys())
}

func TestFilterWithoutSeedIsNoOp(t *testing.T) {
	d := newTestDataset(t, t.TempDir())
	claims := table.New(schema.KindClaim, "claim_id")
	claims.Append(table.Row{"claim_id": "c1"})
	d.nodes[schema.KindClaim] = claims

	require.NoError(t, d.filterSubgraph(0.75))
	assert.Equal(t, 1, claims.Len())
}

// The 3-tweet, 2-user scenario: one tweet's author is absent from the user
// table, so the posted relation has exactly 2 rows while all 3 tweets stay.
func TestPostedRelationWithMissingAuthor(t *testing.T) {
	d := newTestDataset(t, t.TempDir())

	tweets := table.New(schema.KindTweet, "tweet_id")
	tweets.Append(
		table.Row{"tweet_id": "1", "author_id": "10"},
		table.Row{"tweet_id": "2", "author_id": "11"},
		table.Row{"tweet_id": "3", "author_id": "99"},
	)
	users := table.New(schema.KindUser, "user_id")
	users.Append(table.Row{"user_id": "10"}, table.Row{"user_id": "11"})

	claims := table.New(schema.KindClaim, "claim_id")
	claims.Append(table.Row{"claim_id": "c1"})

	d.nodes[schema.KindTweet] = tweets
	d.nodes[schema.KindUser] = users
	d.nodes[schema.KindClaim] = claims

	require.NoError(t, d.extractRelations())

	posted, ok := d.Relation(schema.Triple{Src: schema.KindUser, Label: labelPosted, Tgt: schema.KindTweet})
	require.True(t, ok)
	assert.Equal(t, 2, posted.Len())
	assert.Equal(t, 3, tweets.Len())
	assert.Equal(t, 1, d.Stats().UnresolvedRefs)
}

// Join correctness: a tweet mentioning user id 7, with that user at position
// 2, yields exactly (tweet position, 2); with the user absent, no row.
func TestMentionJoinCorrectness(t *testing.T) {
	d := newTestDataset(t, t.TempDir())

	tweets := table.New(schema.KindTweet, "tweet_id")
	tweets.Append(table.Row{
		"tweet_id":          "1",
		"author_id":         "5",
		"entities.mentions": []table.Row{{"id": int64(7)}},
	})
	users := table.New(schema.KindUser, "user_id")
	users.Append(
		table.Row{"user_id": "5"},
		table.Row{"user_id": "6"},
		table.Row{"user_id": "7"},
	)
	claims := table.New(schema.KindClaim, "claim_id")
	claims.Append(table.Row{"claim_id": "c1"})

	d.nodes[schema.KindTweet] = tweets
	d.nodes[schema.KindUser] = users
	d.nodes[schema.KindClaim] = claims

	require.NoError(t, d.extractRelations())

	mentions, ok := d.Relation(schema.Triple{Src: schema.KindTweet, Label: labelMentions, Tgt: schema.KindUser})
	require.True(t, ok)
	require.Equal(t, 1, mentions.Len())
	assert.Equal(t, table.Pair{Src: 0, Tgt: 2}, mentions.At(0))

	// Remove user 7; the edge must vanish, not dangle.
	users.Filter(func(row table.Row) bool { return table.KeyString(row["user_id"]) != "7" })
	require.NoError(t, d.extractRelations())
	mentions, _ = d.Relation(schema.Triple{Src: schema.KindTweet, Label: labelMentions, Tgt: schema.KindUser})
	assert.Equal(t, 0, mentions.Len())
}
