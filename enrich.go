package rumorgraph

import (
	"context"

	"github.com/rumorgraph/rumorgraph/pkg/enrich"
	"github.com/rumorgraph/rumorgraph/pkg/schema"
	"github.com/rumorgraph/rumorgraph/pkg/table"
)

// enrichDataset fetches and parses the documents behind the url entities,
// promoting article URLs into article rows and image URLs into image rows,
// and rewires every edge that pointed at a promoted url placeholder. The
// pool's results arrive in completion order; everything here merges by
// normalized URL, never by position.
func (d *Dataset) enrichDataset(ctx context.Context) error {
	urls, ok := d.nodes[schema.KindURL]
	if !ok || urls.Len() == 0 {
		return nil
	}

	tasks := d.enrichTasks(urls)
	if len(tasks) == 0 {
		return nil
	}

	records, stats, err := d.enricher.Process(ctx, tasks)
	if err != nil {
		// Pool-level fault; individual item failures never land here.
		return err
	}
	d.stats.Enrich = stats
	d.logger.Info("enrichment pool drained",
		"submitted", stats.Submitted,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
		"timed_out", stats.TimedOut)

	articlesByURL := make(map[string]*enrich.Article)
	imagesByURL := make(map[string]*enrich.Image)
	for _, rec := range records {
		switch {
		case rec.Article != nil:
			articlesByURL[rec.URL] = rec.Article
		case rec.Image != nil:
			imagesByURL[rec.URL] = rec.Image
		}
	}

	if d.cfg.Dataset.Include.Articles {
		if err := d.mergeArticles(articlesByURL); err != nil {
			return err
		}
	}
	if d.cfg.Dataset.Include.Images {
		if err := d.mergeImages(imagesByURL); err != nil {
			return err
		}
	}
	return d.validate()
}

// captureRelations snapshots every relation touching kind as natural-key
// pairs, so the edges survive a mutation of that kind's table.
func (d *Dataset) captureRelations(kind string) (map[schema.Triple][]table.KeyPair, error) {
	captured := make(map[schema.Triple][]table.KeyPair)
	for triple, rel := range d.rels {
		if triple.Src != kind && triple.Tgt != kind {
			continue
		}
		kps, err := rel.ByKeys(d.nodes[triple.Src], d.nodes[triple.Tgt])
		if err != nil {
			return nil, err
		}
		captured[triple] = kps
	}
	return captured, nil
}

// rebindRelations rebuilds captured relations by fresh joins against the
// current tables.
func (d *Dataset) rebindRelations(captured map[schema.Triple][]table.KeyPair) {
	for triple, kps := range captured {
		rel, dropped := table.FromKeys(triple.Src, triple.Label, triple.Tgt, kps,
			d.nodes[triple.Src], d.nodes[triple.Tgt])
		d.stats.DroppedEdges += dropped
		d.rels[triple] = rel
	}
}

// enrichTasks classifies every candidate URL: raster-looking URLs become
// image tasks, the rest article tasks, each gated by its inclusion flag.
// Media rows that carry a fetchable URL are enriched in place, so their
// URLs join the image tasks.
func (d *Dataset) enrichTasks(urls *table.Table) []enrich.Task {
	var tasks []enrich.Task
	seen := make(map[string]struct{})

	add := func(rawURL string, kind enrich.TaskKind) {
		norm := enrich.NormalizeURL(rawURL)
		if norm == "" {
			return
		}
		if _, ok := seen[norm]; ok {
			return
		}
		seen[norm] = struct{}{}
		tasks = append(tasks, enrich.Task{URL: rawURL, Kind: kind})
	}

	for pos := 0; pos < urls.Len(); pos++ {
		u := urls.Key(pos)
		if enrich.LooksLikeImageURL(enrich.NormalizeURL(u)) {
			if d.cfg.Dataset.Include.Images {
				add(u, enrich.TaskImage)
			}
			continue
		}
		if d.cfg.Dataset.Include.Articles {
			add(u, enrich.TaskArticle)
		}
	}

	if images, ok := d.nodes[schema.KindImage]; ok && d.cfg.Dataset.Include.Images {
		for pos := 0; pos < images.Len(); pos++ {
			row, _ := images.Row(pos)
			if u, ok := row["url"].(string); ok && u != "" {
				add(u, enrich.TaskImage)
			}
		}
	}
	return tasks
}

// mergeArticles promotes parsed articles into the article table and derives
// (tweet, has_article, article) by a fresh URL join through the has_url
// edges. Article rows are keyed by normalized URL; rows seeded from the
// archive are matched by normalizing their key.
func (d *Dataset) mergeArticles(byURL map[string]*enrich.Article) error {
	if len(byURL) == 0 {
		return nil
	}

	articles, ok := d.nodes[schema.KindArticle]
	if !ok {
		articles = table.New(schema.KindArticle, schema.KeyColumn(schema.KindArticle))
		d.nodes[schema.KindArticle] = articles
	}

	captured, err := d.captureRelations(schema.KindArticle)
	if err != nil {
		return err
	}

	idx := normalizedKeyIndex(articles)
	for norm, art := range byURL {
		row := table.Row{
			"url":     norm,
			"title":   art.Title,
			"content": art.Content,
		}
		if len(art.Authors) > 0 {
			row["authors"] = art.Authors
		}
		if art.PublishDate != nil {
			row["publish_date"] = *art.PublishDate
		}
		if art.TopImageURL != "" {
			row["top_image_url"] = art.TopImageURL
		}

		if pos, found := idx[norm]; found {
			for col, v := range row {
				if col == "url" {
					continue
				}
				articles.Set(pos, col, v)
			}
			continue
		}
		articles.Append(row)
	}
	articles.Dedup()
	d.rebindRelations(captured)

	d.deriveHasArticle(articles)
	return nil
}

// deriveHasArticle joins the surviving has_url edges against the enriched
// article table by normalized URL.
func (d *Dataset) deriveHasArticle(articles *table.Table) {
	hasURL := schema.Triple{Src: schema.KindTweet, Label: labelHasURL, Tgt: schema.KindURL}
	rel, ok := d.rels[hasURL]
	if !ok || articles.Len() == 0 {
		return
	}

	tweets := d.nodes[schema.KindTweet]
	urls := d.nodes[schema.KindURL]
	kps, err := rel.ByKeys(tweets, urls)
	if err != nil {
		d.logger.Warn("has_url edges stale, skipping has_article derivation", "error", err)
		return
	}

	idx := normalizedKeyIndex(articles)
	var pairs []table.Pair
	for _, kp := range kps {
		artPos, found := idx[enrich.NormalizeURL(kp.Tgt)]
		if !found {
			continue
		}
		tweetPos, found := tweets.Lookup(kp.Src)
		if !found {
			continue
		}
		pairs = append(pairs, table.Pair{Src: tweetPos, Tgt: artPos})
	}
	d.setRelation(table.NewRelations(schema.KindTweet, labelHasArticle, schema.KindArticle, pairs, tweets, articles))
}

// mergeImages enriches media image rows in place (derived columns, no new
// rows) and promotes the remaining decoded URLs into new image rows, then
// rewires (user, has_profile_picture, *) from the url placeholder to the
// image entity.
func (d *Dataset) mergeImages(byURL map[string]*enrich.Image) error {
	if len(byURL) == 0 {
		return nil
	}

	images, ok := d.nodes[schema.KindImage]
	if !ok {
		images = table.New(schema.KindImage, schema.KeyColumn(schema.KindImage))
		d.nodes[schema.KindImage] = images
	}

	captured, err := d.captureRelations(schema.KindImage)
	if err != nil {
		return err
	}

	// In-place enrichment of rows that already carry the URL.
	byMediaURL := normalizedColumnIndex(images, "url")
	for norm, img := range byURL {
		pos, found := byMediaURL[norm]
		if !found {
			continue
		}
		images.Set(pos, "width", int64(img.Width))
		images.Set(pos, "height", int64(img.Height))
		images.Set(pos, "pixels", img.Pixels)
		delete(byURL, norm)
	}

	// Promotion: the rest become new image rows keyed by their URL.
	for norm, img := range byURL {
		images.Append(table.Row{
			"media_key": norm,
			"url":       norm,
			"width":     int64(img.Width),
			"height":    int64(img.Height),
			"pixels":    img.Pixels,
		})
	}
	images.Dedup()
	d.rebindRelations(captured)

	d.rewireProfilePictures(images)
	return nil
}

// rewireProfilePictures re-points (user, has_profile_picture, url) edges at
// the promoted image rows via a fresh URL join, replacing the placeholder
// relation with (user, has_profile_picture, image).
func (d *Dataset) rewireProfilePictures(images *table.Table) {
	placeholder := schema.Triple{Src: schema.KindUser, Label: labelHasProfilePicture, Tgt: schema.KindURL}
	rel, ok := d.rels[placeholder]
	if !ok {
		return
	}

	users := d.nodes[schema.KindUser]
	urls := d.nodes[schema.KindURL]
	kps, err := rel.ByKeys(users, urls)
	if err != nil {
		d.logger.Warn("profile picture edges stale, skipping rewire", "error", err)
		return
	}

	idx := normalizedKeyIndex(images)
	var pairs []table.Pair
	for _, kp := range kps {
		imgPos, found := idx[enrich.NormalizeURL(kp.Tgt)]
		if !found {
			continue
		}
		userPos, found := users.Lookup(kp.Src)
		if !found {
			continue
		}
		pairs = append(pairs, table.Pair{Src: userPos, Tgt: imgPos})
	}

	delete(d.rels, placeholder)
	d.setRelation(table.NewRelations(schema.KindUser, labelHasProfilePicture, schema.KindImage, pairs, users, images))
}

// normalizedKeyIndex maps each row's normalized natural key to its position,
// first row wins.
func normalizedKeyIndex(t *table.Table) map[string]int {
	idx := make(map[string]int, t.Len())
	for pos := 0; pos < t.Len(); pos++ {
		norm := enrich.NormalizeURL(t.Key(pos))
		if norm == "" {
			continue
		}
		if _, ok := idx[norm]; !ok {
			idx[norm] = pos
		}
	}
	return idx
}

// normalizedColumnIndex maps a URL column's normalized values to positions.
func normalizedColumnIndex(t *table.Table, col string) map[string]int {
	idx := make(map[string]int, t.Len())
	for pos := 0; pos < t.Len(); pos++ {
		row, _ := t.Row(pos)
		u, _ := row[col].(string)
		norm := enrich.NormalizeURL(u)
		if norm == "" {
			continue
		}
		if _, ok := idx[norm]; !ok {
			idx[norm] = pos
		}
	}
	return idx
}
