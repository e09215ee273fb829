package rumorgraph

import (
	"fmt"

	"github.com/rumorgraph/rumorgraph/pkg/config"
	"github.com/rumorgraph/rumorgraph/pkg/schema"
	"github.com/rumorgraph/rumorgraph/pkg/table"
)

// Seed relations: the relevance-scored edges that drive the cascade.
var (
	tweetSeed   = schema.Triple{Src: schema.KindTweet, Label: labelDiscusses, Tgt: schema.KindClaim}
	articleSeed = schema.Triple{Src: schema.KindArticle, Label: labelDiscusses, Tgt: schema.KindClaim}
)

// applyFilter resolves the configured size preset to its relevance threshold
// and shrinks the dataset to the subgraph reachable from seed edges above it.
func (d *Dataset) applyFilter() error {
	tau, err := config.Threshold(d.cfg.Dataset.Size)
	if err != nil {
		return err
	}
	return d.filterSubgraph(tau)
}

// filterSubgraph restricts every table to the subgraph reachable from seed
// edges whose score strictly exceeds tau. The cascade runs in dependency
// order and works on natural keys throughout: the restrictions invalidate
// the very positions a positional cascade would rely on. Applying the same
// threshold twice is a no-op.
func (d *Dataset) filterSubgraph(tau float64) error {
	if _, ok := d.rels[tweetSeed]; !ok {
		d.logger.Warn("no seed relation, skipping subgraph filter", "triple", tweetSeed.Name())
		return nil
	}

	// Capture every relation as natural-key pairs against the current
	// table positions, before any table mutates.
	keyed := make(map[schema.Triple][]table.KeyPair, len(d.rels))
	for triple, rel := range d.rels {
		kps, err := rel.ByKeys(d.nodes[triple.Src], d.nodes[triple.Tgt])
		if err != nil {
			return fmt.Errorf("capture %s: %w", rel.Name(), err)
		}
		keyed[triple] = kps
	}

	// Step 1: cut each seed to edges scoring above tau. The same tau
	// applies to every seed sharing the relevance score semantics.
	claimKeys := make(map[string]struct{})
	tweetKeys := make(map[string]struct{})
	articleKeys := make(map[string]struct{})

	var keptSeed []table.KeyPair
	for _, kp := range keyed[tweetSeed] {
		if kp.Score == nil || *kp.Score <= tau {
			continue
		}
		keptSeed = append(keptSeed, kp)
		tweetKeys[kp.Src] = struct{}{}
		claimKeys[kp.Tgt] = struct{}{}
	}
	keyed[tweetSeed] = keptSeed

	artPairs, hasArticleSeed := keyed[articleSeed]
	if hasArticleSeed {
		var kept []table.KeyPair
		for _, kp := range artPairs {
			if kp.Score == nil || *kp.Score <= tau {
				continue
			}
			kept = append(kept, kp)
			articleKeys[kp.Src] = struct{}{}
			claimKeys[kp.Tgt] = struct{}{}
		}
		keyed[articleSeed] = kept
	}

	// Steps 2-3: restrict the seed-gated entity tables.
	d.nodes[schema.KindClaim].Restrict(claimKeys)
	d.nodes[schema.KindTweet].Restrict(tweetKeys)
	if articles, ok := d.nodes[schema.KindArticle]; ok && hasArticleSeed {
		articles.Restrict(articleKeys)
	}

	// Step 5 (entities gated by relations): a user survives when it posted
	// a surviving tweet or is mentioned by one — union of conditions.
	if users, ok := d.nodes[schema.KindUser]; ok {
		tweets := d.nodes[schema.KindTweet]
		userKeys := make(map[string]struct{})
		for _, kp := range keyed[schema.Triple{Src: schema.KindUser, Label: labelPosted, Tgt: schema.KindTweet}] {
			if _, ok := tweets.Lookup(kp.Tgt); ok {
				userKeys[kp.Src] = struct{}{}
			}
		}
		for _, kp := range keyed[schema.Triple{Src: schema.KindTweet, Label: labelMentions, Tgt: schema.KindUser}] {
			if _, ok := tweets.Lookup(kp.Src); ok {
				userKeys[kp.Tgt] = struct{}{}
			}
		}
		users.Restrict(userKeys)
	}

	// Remaining leaf kinds survive when any surviving source row still
	// references them.
	for _, leaf := range []string{
		schema.KindPlace, schema.KindPoll, schema.KindImage,
		schema.KindVideo, schema.KindHashtag, schema.KindURL,
	} {
		t, ok := d.nodes[leaf]
		if !ok {
			continue
		}
		keys := make(map[string]struct{})
		for triple, kps := range keyed {
			if triple.Tgt != leaf {
				continue
			}
			src := d.nodes[triple.Src]
			for _, kp := range kps {
				if _, ok := src.Lookup(kp.Src); ok {
					keys[kp.Tgt] = struct{}{}
				}
			}
		}
		t.Restrict(keys)
	}

	// Step 4: rebuild every relation by fresh natural-key joins against
	// the restricted tables. Pairs that lost an endpoint drop out here.
	for triple, kps := range keyed {
		rel, dropped := table.FromKeys(triple.Src, triple.Label, triple.Tgt, kps,
			d.nodes[triple.Src], d.nodes[triple.Tgt])
		d.stats.DroppedEdges += dropped
		d.rels[triple] = rel
	}

	d.logger.Info("subgraph filter applied",
		"tau", tau,
		"claims", d.nodes[schema.KindClaim].Len(),
		"tweets", d.nodes[schema.KindTweet].Len())
	return d.validate()
}
