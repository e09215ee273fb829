// Package schema defines the entity kinds and relation triples of the
// assembled graph, the filename grammar that maps archive files onto them,
// and the tagged-variant validation applied to raw API rows at ingestion.
package schema

// Entity kinds.
const (
	KindClaim   = "claim"
	KindTweet   = "tweet"
	KindUser    = "user"
	KindImage   = "image"
	KindVideo   = "video"
	KindArticle = "article"
	KindPlace   = "place"
	KindPoll    = "poll"
	KindHashtag = "hashtag"
	KindURL     = "url"
)

// AllKinds lists every entity kind the compiler may materialize.
var AllKinds = []string{
	KindClaim, KindTweet, KindUser, KindImage, KindVideo,
	KindArticle, KindPlace, KindPoll, KindHashtag, KindURL,
}

// keyColumns maps each kind to its natural-key column. Hashtag and url rows
// are derived, so their identity is the value itself. Media rows appended
// from promoted url entities reuse the url as their media_key.
var keyColumns = map[string]string{
	KindClaim:   "claim_id",
	KindTweet:   "tweet_id",
	KindUser:    "user_id",
	KindImage:   "media_key",
	KindVideo:   "media_key",
	KindArticle: "url",
	KindPlace:   "place_id",
	KindPoll:    "poll_id",
	KindHashtag: "tag",
	KindURL:     "url",
}

// KeyColumn returns the natural-key column for a kind, defaulting to "id"
// for kinds the compiler does not know about.
func KeyColumn(kind string) string {
	if col, ok := keyColumns[kind]; ok {
		return col
	}
	return "id"
}

// IsKind reports whether name is a known entity kind.
func IsKind(name string) bool {
	_, ok := keyColumns[name]
	return ok
}
