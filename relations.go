package rumorgraph

import (
	"github.com/rumorgraph/rumorgraph/pkg/schema"
	"github.com/rumorgraph/rumorgraph/pkg/table"
)

// Relation labels.
const (
	labelPosted            = "posted"
	labelMentions          = "mentions"
	labelLocatedIn         = "located_in"
	labelHasPoll           = "has_poll"
	labelHasImage          = "has_image"
	labelHasVideo          = "has_video"
	labelHasHashtag        = "has_hashtag"
	labelHasURL            = "has_url"
	labelHasProfilePicture = "has_profile_picture"
	labelHasArticle        = "has_article"
	labelDiscusses         = "discusses"
)

// extractRelations derives every edge table from the nested fields on the
// hydrated entity rows. Each triple is gated by its inclusion flag and
// skipped, not failed, when the source column is absent: an upstream flag
// may have disabled the feature category that populates it.
func (d *Dataset) extractRelations() error {
	tweets := d.nodes[schema.KindTweet]
	users := d.nodes[schema.KindUser]

	if err := tweets.CheckUniqueKeys(); err != nil {
		return err
	}
	if users != nil {
		if err := users.CheckUniqueKeys(); err != nil {
			return err
		}
	}

	d.extractPosted(tweets, users)
	if d.cfg.Dataset.Include.Mentions {
		d.extractMentions(tweets, users)
	}
	if d.cfg.Dataset.Include.Places {
		d.extractPlaces(tweets)
	}
	if d.cfg.Dataset.Include.Polls {
		d.extractPolls(tweets)
	}
	d.extractMedia(tweets)
	if d.cfg.Dataset.Include.Hashtags {
		d.extractHashtags(tweets, users)
	}
	d.extractURLs(tweets, users)

	return d.validate()
}

// extract derives one triple's pairs and stores them, accumulating the
// unresolved-reference counter. Skipped when the source column is absent.
func (d *Dataset) extract(src *table.Table, srcKind, label, tgtKind, refCol string, refFn table.RefFunc, tgt *table.Table, flip bool) {
	if tgt == nil || !src.HasColumn(refCol) {
		d.logger.Debug("skipping relation, source column absent",
			"relation", srcKind+"_"+label+"_"+tgtKind, "column", refCol)
		return
	}
	pairs, stats := table.Extract(src, refCol, refFn, tgt)
	d.stats.UnresolvedRefs += stats.Dropped
	if flip {
		pairs = flipPairs(pairs)
		d.setRelation(table.NewRelations(srcKind, label, tgtKind, pairs, tgt, src))
	} else {
		d.setRelation(table.NewRelations(srcKind, label, tgtKind, pairs, src, tgt))
	}
	d.logger.Debug("extracted relation",
		"relation", srcKind+"_"+label+"_"+tgtKind, "rows", len(pairs), "dropped", stats.Dropped)
}

// extractPosted derives (user, posted, tweet) from tweet author IDs. The
// reference lives on the tweet side, so the joined pairs are flipped.
func (d *Dataset) extractPosted(tweets, users *table.Table) {
	if users == nil {
		return
	}
	d.extract(tweets, schema.KindUser, labelPosted, schema.KindTweet, "author_id", nil, users, true)
}

// extractMentions derives (tweet, mentions, user) from tweet mention IDs and
// (user, mentions, user) from usernames in user descriptions. The latter
// joins by username, not natural key, so it uses its own column index.
func (d *Dataset) extractMentions(tweets, users *table.Table) {
	if users == nil {
		return
	}
	d.extract(tweets, schema.KindTweet, labelMentions, schema.KindUser,
		"entities.mentions", table.FieldRefs("id"), users, false)

	if !users.HasColumn("entities.description.mentions") || !users.HasColumn("username") {
		return
	}
	byUsername := columnIndex(users, "username")
	var pairs []table.Pair
	dropped := 0
	refFn := table.FieldRefs("username")
	for pos := 0; pos < users.Len(); pos++ {
		row, _ := users.Row(pos)
		for _, name := range refFn(row["entities.description.mentions"]) {
			tgtPos, ok := byUsername[name]
			if !ok {
				dropped++
				continue
			}
			pairs = append(pairs, table.Pair{Src: pos, Tgt: tgtPos})
		}
	}
	d.stats.UnresolvedRefs += dropped
	d.setRelation(table.NewRelations(schema.KindUser, labelMentions, schema.KindUser, pairs, users, users))
}

func (d *Dataset) extractPlaces(tweets *table.Table) {
	d.extract(tweets, schema.KindTweet, labelLocatedIn, schema.KindPlace,
		"geo.place_id", nil, d.nodes[schema.KindPlace], false)
}

func (d *Dataset) extractPolls(tweets *table.Table) {
	d.extract(tweets, schema.KindTweet, labelHasPoll, schema.KindPoll,
		"attachments.poll_ids", nil, d.nodes[schema.KindPoll], false)
}

// extractMedia derives (tweet, has_image, image) and (tweet, has_video,
// video) from the attachment media keys; each key resolves against at most
// one of the two media tables, the other join drops it silently.
func (d *Dataset) extractMedia(tweets *table.Table) {
	if d.cfg.Dataset.Include.Images {
		d.extract(tweets, schema.KindTweet, labelHasImage, schema.KindImage,
			"attachments.media_keys", nil, d.nodes[schema.KindImage], false)
	}
	if d.cfg.Dataset.Include.Videos {
		d.extract(tweets, schema.KindTweet, labelHasVideo, schema.KindVideo,
			"attachments.media_keys", nil, d.nodes[schema.KindVideo], false)
	}
}

// extractHashtags builds the hashtag table from both tweet and user hashtag
// entities, deduplicates it by tag before any join, then derives the
// (tweet, has_hashtag, hashtag) and (user, has_hashtag, hashtag) relations.
func (d *Dataset) extractHashtags(tweets, users *table.Table) {
	hashtags := table.New(schema.KindHashtag, schema.KeyColumn(schema.KindHashtag))
	tagRefs := table.FieldRefs("tag")

	appendTags := func(t *table.Table, col string) {
		if t == nil || !t.HasColumn(col) {
			return
		}
		for pos := 0; pos < t.Len(); pos++ {
			row, _ := t.Row(pos)
			for _, tag := range tagRefs(row[col]) {
				hashtags.Append(table.Row{"tag": tag})
			}
		}
	}
	appendTags(tweets, "entities.hashtags")
	appendTags(users, "entities.description.hashtags")

	// Duplicate hashtag rows would fragment the graph: one logical tag
	// split across two positions. Dedup before deriving edges against it.
	hashtags.Dedup()
	if hashtags.Len() == 0 {
		return
	}
	d.nodes[schema.KindHashtag] = hashtags

	d.extract(tweets, schema.KindTweet, labelHasHashtag, schema.KindHashtag,
		"entities.hashtags", tagRefs, hashtags, false)
	if users != nil {
		d.extract(users, schema.KindUser, labelHasHashtag, schema.KindHashtag,
			"entities.description.hashtags", tagRefs, hashtags, false)
	}
}

// extractURLs builds the url table from every URL-bearing field, dedups it,
// then derives (tweet, has_url, url), (user, has_url, url) unioned from the
// user's two URL substructures, and (user, has_profile_picture, url).
func (d *Dataset) extractURLs(tweets, users *table.Table) {
	urls := table.New(schema.KindURL, schema.KeyColumn(schema.KindURL))
	urlRefs := table.FieldRefs("expanded_url")

	appendURLs := func(t *table.Table, col string, refFn table.RefFunc) {
		if t == nil || !t.HasColumn(col) {
			return
		}
		for pos := 0; pos < t.Len(); pos++ {
			row, _ := t.Row(pos)
			for _, u := range refFn(row[col]) {
				urls.Append(table.Row{"url": u})
			}
		}
	}
	appendURLs(tweets, "entities.urls", urlRefs)
	appendURLs(users, "entities.description.urls", urlRefs)
	appendURLs(users, "entities.url.urls", urlRefs)
	appendURLs(users, "profile_image_url", table.Refs)

	urls.Dedup()
	if urls.Len() == 0 {
		return
	}
	d.nodes[schema.KindURL] = urls

	d.extract(tweets, schema.KindTweet, labelHasURL, schema.KindURL,
		"entities.urls", urlRefs, urls, false)

	if users == nil {
		return
	}

	// The same logical (user, has_url, url) relation is populated from two
	// distinct substructures; both are extracted and unioned. Duplicate
	// edges are tolerated, they are distinct structural links.
	var union []table.Pair
	for _, col := range []string{"entities.description.urls", "entities.url.urls"} {
		if !users.HasColumn(col) {
			continue
		}
		pairs, stats := table.Extract(users, col, urlRefs, urls)
		d.stats.UnresolvedRefs += stats.Dropped
		union = append(union, pairs...)
	}
	if len(union) > 0 {
		d.setRelation(table.NewRelations(schema.KindUser, labelHasURL, schema.KindURL, union, users, urls))
	}

	d.extract(users, schema.KindUser, labelHasProfilePicture, schema.KindURL,
		"profile_image_url", table.Refs, urls, false)
}

// flipPairs swaps the source and target of every pair, for relations whose
// reference column lives on the target side.
func flipPairs(pairs []table.Pair) []table.Pair {
	out := make([]table.Pair, len(pairs))
	for i, p := range pairs {
		out[i] = table.Pair{Src: p.Tgt, Tgt: p.Src, Score: p.Score}
	}
	return out
}

// columnIndex builds a value -> position index over an arbitrary column,
// first row wins. Used for joins against non-key columns such as username.
func columnIndex(t *table.Table, col string) map[string]int {
	idx := make(map[string]int, t.Len())
	for pos := 0; pos < t.Len(); pos++ {
		row, _ := t.Row(pos)
		k := table.KeyString(row[col])
		if k == "" {
			continue
		}
		if _, ok := idx[k]; !ok {
			idx[k] = pos
		}
	}
	return idx
}
