package schema

// Rehydration category names returned by the collaborator.
const (
	CategoryTweets = "tweets"
	CategoryUsers  = "users"
	CategoryMedia  = "media"
	CategoryPolls  = "polls"
	CategoryPlaces = "places"
)

// TweetSpec validates rehydrated tweet rows. Nested attributes arrive
// flattened to dotted names; list-of-object entities keep their native
// element schema.
var TweetSpec = RowSpec{
	Category: CategoryTweets,
	Fields: []Field{
		{Name: "tweet_id", Type: TypeInt},
		{Name: "text", Type: TypeString},
		{Name: "created_at", Type: TypeTime},
		{Name: "author_id", Type: TypeInt},
		{Name: "conversation_id", Type: TypeInt},
		{Name: "lang", Type: TypeString},
		{Name: "source", Type: TypeString},
		{Name: "possibly_sensitive", Type: TypeBool},
		{Name: "public_metrics.retweet_count", Type: TypeInt},
		{Name: "public_metrics.reply_count", Type: TypeInt},
		{Name: "public_metrics.like_count", Type: TypeInt},
		{Name: "public_metrics.quote_count", Type: TypeInt},
		{Name: "entities.mentions", Type: TypeObjectList, Elem: []Field{
			{Name: "id", Type: TypeInt},
			{Name: "username", Type: TypeString},
		}},
		{Name: "entities.hashtags", Type: TypeObjectList, Elem: []Field{
			{Name: "tag", Type: TypeString},
		}},
		{Name: "entities.urls", Type: TypeObjectList, Elem: []Field{
			{Name: "url", Type: TypeString},
			{Name: "expanded_url", Type: TypeString},
		}},
		{Name: "attachments.media_keys", Type: TypeStringList},
		{Name: "attachments.poll_ids", Type: TypeStringList},
		{Name: "geo.place_id", Type: TypeString},
	},
}

// UserSpec validates rehydrated user rows.
var UserSpec = RowSpec{
	Category: CategoryUsers,
	Fields: []Field{
		{Name: "user_id", Type: TypeInt},
		{Name: "username", Type: TypeString},
		{Name: "name", Type: TypeString},
		{Name: "description", Type: TypeString},
		{Name: "created_at", Type: TypeTime},
		{Name: "verified", Type: TypeBool},
		{Name: "protected", Type: TypeBool},
		{Name: "location", Type: TypeString},
		{Name: "url", Type: TypeString},
		{Name: "profile_image_url", Type: TypeString},
		{Name: "public_metrics.followers_count", Type: TypeInt},
		{Name: "public_metrics.following_count", Type: TypeInt},
		{Name: "public_metrics.tweet_count", Type: TypeInt},
		{Name: "public_metrics.listed_count", Type: TypeInt},
		{Name: "entities.description.mentions", Type: TypeObjectList, Elem: []Field{
			{Name: "username", Type: TypeString},
		}},
		{Name: "entities.description.hashtags", Type: TypeObjectList, Elem: []Field{
			{Name: "tag", Type: TypeString},
		}},
		{Name: "entities.description.urls", Type: TypeObjectList, Elem: []Field{
			{Name: "url", Type: TypeString},
			{Name: "expanded_url", Type: TypeString},
		}},
		{Name: "entities.url.urls", Type: TypeObjectList, Elem: []Field{
			{Name: "url", Type: TypeString},
			{Name: "expanded_url", Type: TypeString},
		}},
	},
}

// MediaSpec validates rehydrated media rows (photos, videos, animated gifs).
var MediaSpec = RowSpec{
	Category: CategoryMedia,
	Fields: []Field{
		{Name: "media_key", Type: TypeString},
		{Name: "type", Type: TypeString},
		{Name: "url", Type: TypeString},
		{Name: "preview_image_url", Type: TypeString},
		{Name: "width", Type: TypeInt},
		{Name: "height", Type: TypeInt},
		{Name: "duration_ms", Type: TypeInt},
		{Name: "public_metrics.view_count", Type: TypeInt},
	},
}

// PollSpec validates rehydrated poll rows, options kept as a nested list.
var PollSpec = RowSpec{
	Category: CategoryPolls,
	Fields: []Field{
		{Name: "poll_id", Type: TypeString},
		{Name: "voting_status", Type: TypeString},
		{Name: "duration_minutes", Type: TypeInt},
		{Name: "end_datetime", Type: TypeTime},
		{Name: "options", Type: TypeObjectList, Elem: []Field{
			{Name: "position", Type: TypeInt},
			{Name: "label", Type: TypeString},
			{Name: "votes", Type: TypeInt},
		}},
	},
}

// PlaceSpec validates rehydrated place rows. The bounding box is kept as a
// four-element [west, south, east, north] float list.
var PlaceSpec = RowSpec{
	Category: CategoryPlaces,
	Fields: []Field{
		{Name: "place_id", Type: TypeString},
		{Name: "name", Type: TypeString},
		{Name: "full_name", Type: TypeString},
		{Name: "country", Type: TypeString},
		{Name: "country_code", Type: TypeString},
		{Name: "place_type", Type: TypeString},
		{Name: "geo.bbox", Type: TypeFloatList},
	},
}

// SpecFor returns the RowSpec for a rehydration category.
func SpecFor(category string) (RowSpec, bool) {
	switch category {
	case CategoryTweets:
		return TweetSpec, true
	case CategoryUsers:
		return UserSpec, true
	case CategoryMedia:
		return MediaSpec, true
	case CategoryPolls:
		return PollSpec, true
	case CategoryPlaces:
		return PlaceSpec, true
	default:
		return RowSpec{}, false
	}
}
