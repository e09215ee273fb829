package rumorgraph

import (
	"context"
	"fmt"

	"github.com/rumorgraph/rumorgraph/pkg/schema"
	"github.com/rumorgraph/rumorgraph/pkg/table"
)

// hydrate rehydrates the tweet table through the external collaborator and
// distributes the response into the tweet, user, media, poll, and place
// tables. Hydration is idempotent: a tweet table that already carries tweet
// text is evidence of a prior run and is left alone.
func (d *Dataset) hydrate(ctx context.Context) error {
	tweets := d.nodes[schema.KindTweet]
	if isHydrated(tweets) {
		d.logger.Info("tweet table already hydrated, skipping")
		return nil
	}

	rows, err := d.rehydrator.Rehydrate(ctx, tweets.Keys())
	if err != nil {
		return fmt.Errorf("hydrate tweets: %w", err)
	}

	// The rehydrated rows replace the bare-ID tweet table. Tweets the
	// platform no longer returns simply drop out of the dataset here.
	hydrated := table.New(schema.KindTweet, schema.KeyColumn(schema.KindTweet))
	hydrated.Append(rows[schema.CategoryTweets]...)
	hydrated.Dedup()
	if err := hydrated.CheckUniqueKeys(); err != nil {
		return err
	}
	d.nodes[schema.KindTweet] = hydrated

	users := table.New(schema.KindUser, schema.KeyColumn(schema.KindUser))
	users.Append(rows[schema.CategoryUsers]...)
	users.Dedup()
	if err := users.CheckUniqueKeys(); err != nil {
		return err
	}
	d.nodes[schema.KindUser] = users

	d.splitMedia(rows[schema.CategoryMedia])

	if d.cfg.Dataset.Include.Polls {
		polls := table.New(schema.KindPoll, schema.KeyColumn(schema.KindPoll))
		polls.Append(rows[schema.CategoryPolls]...)
		polls.Dedup()
		d.nodes[schema.KindPoll] = polls
	}
	if d.cfg.Dataset.Include.Places {
		places := table.New(schema.KindPlace, schema.KeyColumn(schema.KindPlace))
		places.Append(rows[schema.CategoryPlaces]...)
		places.Dedup()
		d.nodes[schema.KindPlace] = places
	}

	d.logger.Info("hydration complete",
		"tweets", d.nodes[schema.KindTweet].Len(),
		"users", d.nodes[schema.KindUser].Len())
	return nil
}

// isHydrated reports whether the tweet table carries a populated text column.
func isHydrated(tweets *table.Table) bool {
	if !tweets.HasColumn("text") {
		return false
	}
	for pos := 0; pos < tweets.Len(); pos++ {
		row, _ := tweets.Row(pos)
		if s, ok := row["text"].(string); ok && s != "" {
			return true
		}
	}
	return false
}

// splitMedia distributes rehydrated media rows into the image and video
// tables by type, each gated by its inclusion flag.
func (d *Dataset) splitMedia(media []table.Row) {
	var images, videos *table.Table
	if d.cfg.Dataset.Include.Images {
		images = table.New(schema.KindImage, schema.KeyColumn(schema.KindImage))
	}
	if d.cfg.Dataset.Include.Videos {
		videos = table.New(schema.KindVideo, schema.KeyColumn(schema.KindVideo))
	}

	for _, row := range media {
		kind, _ := row["type"].(string)
		switch kind {
		case "photo":
			if images != nil {
				images.Append(row)
			}
		case "video", "animated_gif":
			if videos != nil {
				videos.Append(row)
			}
		}
	}

	if images != nil {
		images.Dedup()
		d.nodes[schema.KindImage] = images
	}
	if videos != nil {
		videos.Dedup()
		d.nodes[schema.KindVideo] = videos
	}
}
