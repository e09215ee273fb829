package rumorgraph

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rumorgraph/rumorgraph/pkg/dataio"
	"github.com/rumorgraph/rumorgraph/pkg/schema"
	"github.com/rumorgraph/rumorgraph/pkg/table"
)

// rawRelations holds relation files as natural-key pairs until both endpoint
// tables exist, at which point they are joined into positional relations.
type rawRelations map[schema.Triple][]table.KeyPair

// download fetches the dataset archive when a URL is configured. A non-2xx
// response is fatal.
func (d *Dataset) download(ctx context.Context) error {
	if d.cfg.Dataset.DownloadURL == "" {
		return nil
	}
	fetched, err := d.downloader.Download(ctx, d.cfg.Dataset.DownloadURL, d.cfg.Dataset.Dir, d.cfg.Dataset.Overwrite)
	if err != nil {
		return err
	}
	if fetched {
		d.logger.Info("dataset archive downloaded", "dir", d.cfg.Dataset.Dir)
	} else {
		d.logger.Info("dataset dir already present, skipping download", "dir", d.cfg.Dataset.Dir)
	}
	return nil
}

// load reads every flat file in the dataset dir, classifying each by the
// filename grammar: one token is an entity kind, three or more tokens are a
// relation triple, anything else is a fatal naming error.
func (d *Dataset) load() (rawRelations, error) {
	entries, err := os.ReadDir(d.cfg.Dataset.Dir)
	if err != nil {
		return nil, fmt.Errorf("read dataset dir: %w", err)
	}

	raw := make(rawRelations)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.HasSuffix(entry.Name(), ".csv") {
			// A misnamed export (tweet.cvs) would otherwise vanish from the
			// graph without a trace.
			d.logger.Warn("ignoring non-csv file in dataset dir", "file", entry.Name())
			continue
		}
		stem := strings.TrimSuffix(entry.Name(), ".csv")
		path := filepath.Join(d.cfg.Dataset.Dir, entry.Name())

		kind, triple, isRel, err := schema.ParseFilename(stem)
		if err != nil {
			return nil, err
		}

		if isRel {
			pairs, err := dataio.ReadRelationPairs(path)
			if err != nil {
				return nil, err
			}
			raw[triple] = pairs
			d.logger.Debug("loaded relation file", "triple", triple.String(), "rows", len(pairs))
			continue
		}

		t, err := dataio.ReadTable(path, kind, schema.KeyColumn(kind))
		if err != nil {
			return nil, err
		}
		d.nodes[kind] = t
		d.logger.Debug("loaded entity file", "kind", kind, "rows", t.Len())
	}

	if err := d.checkLoadPreconditions(); err != nil {
		return nil, err
	}
	return raw, nil
}

// checkLoadPreconditions enforces the fatal conditions: claim and tweet
// tables must exist, claims get synthesized IDs when the export carries
// none, and tweet/user natural IDs must be globally unique.
func (d *Dataset) checkLoadPreconditions() error {
	claims, ok := d.nodes[schema.KindClaim]
	if !ok {
		return ErrMissingClaims
	}
	tweets, ok := d.nodes[schema.KindTweet]
	if !ok {
		return ErrMissingTweets
	}

	// Claim exports identify rows implicitly by position; synthesize a
	// stable key when the column is absent so joins have something to
	// resolve against.
	if !claims.HasColumn(schema.KeyColumn(schema.KindClaim)) {
		for pos := 0; pos < claims.Len(); pos++ {
			claims.Set(pos, schema.KeyColumn(schema.KindClaim), fmt.Sprintf("claim-%d", pos))
		}
	}
	if err := claims.CheckUniqueKeys(); err != nil {
		return err
	}

	if err := tweets.CheckUniqueKeys(); err != nil {
		return err
	}
	if users, ok := d.nodes[schema.KindUser]; ok {
		if err := users.CheckUniqueKeys(); err != nil {
			return err
		}
	}
	return nil
}

// bindRawRelations joins relation files' natural-key pairs against the
// current entity tables. Pairs whose endpoint rows are missing are dropped
// silently; triples whose endpoint tables never materialized are skipped.
func (d *Dataset) bindRawRelations(raw rawRelations) {
	for triple, pairs := range raw {
		src, ok := d.nodes[triple.Src]
		if !ok {
			d.logger.Debug("skipping relation, no source table", "triple", triple.String())
			continue
		}
		tgt, ok := d.nodes[triple.Tgt]
		if !ok {
			d.logger.Debug("skipping relation, no target table", "triple", triple.String())
			continue
		}
		rel, dropped := table.FromKeys(triple.Src, triple.Label, triple.Tgt, pairs, src, tgt)
		d.stats.UnresolvedRefs += dropped
		d.setRelation(rel)
		d.logger.Debug("bound relation", "triple", triple.String(), "rows", rel.Len(), "dropped", dropped)
	}
}
