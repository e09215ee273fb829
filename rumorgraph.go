// Package rumorgraph compiles a heterogeneous misinformation graph dataset:
// raw tabular exports are merged into typed entity tables, edge tables are
// derived between them by natural-key joins, the graph is shrunk to the
// subgraph relevant above a threshold, and url entities are enriched into
// articles and images fetched from the web.
package rumorgraph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/rumorgraph/rumorgraph/pkg/archive"
	"github.com/rumorgraph/rumorgraph/pkg/checkpoint"
	"github.com/rumorgraph/rumorgraph/pkg/config"
	"github.com/rumorgraph/rumorgraph/pkg/enrich"
	"github.com/rumorgraph/rumorgraph/pkg/schema"
	"github.com/rumorgraph/rumorgraph/pkg/table"
	"github.com/rumorgraph/rumorgraph/pkg/twitter"
)

// Precondition violations. These abort compilation; the pipeline cannot
// assemble a graph without its primary kinds.
var (
	ErrMissingClaims = errors.New("dataset contains no claim table")
	ErrMissingTweets = errors.New("dataset contains no tweet table")
	ErrNotCompiled   = errors.New("dataset has not been compiled")
)

// Rehydrator returns the platform's raw rows for a list of tweet IDs,
// grouped by category name.
type Rehydrator interface {
	Rehydrate(ctx context.Context, tweetIDs []string) (map[string][]table.Row, error)
}

// Enricher runs fetch-and-parse tasks through a bounded pool.
type Enricher interface {
	Process(ctx context.Context, tasks []enrich.Task) ([]enrich.Record, enrich.Stats, error)
}

// Dataset holds the entity and relation tables of one compile run. All table
// operations are single-threaded; the enrichment pool is the only concurrent
// region and its results are merged only after the pool drains.
type Dataset struct {
	cfg    *config.Config
	logger *slog.Logger

	rehydrator Rehydrator
	enricher   Enricher
	fetcher    *enrich.Fetcher
	downloader *archive.Downloader
	checkpoint *checkpoint.Manager

	compiled bool
	nodes    map[string]*table.Table
	rels     map[schema.Triple]*table.Relations

	stats Stats
}

// Stats aggregates the per-stage observability counters. Partial-data gaps
// never error; this is where their rate shows up.
type Stats struct {
	UnresolvedRefs int
	DroppedEdges   int
	Enrich         enrich.Stats
}

// New creates a Dataset for the given configuration. A nil logger falls back
// to slog.Default().
func New(cfg *config.Config, logger *slog.Logger) (*Dataset, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if logger == nil {
		logger = slog.Default()
	}

	fetcher, err := enrich.NewFetcher(enrich.FetcherOptions{
		MaxBytes:          cfg.Enrich.MaxBytes,
		RequestsPerSecond: cfg.Enrich.RequestsPerSecond,
		CacheDir:          cfg.Enrich.CacheDir,
		RespectRobots:     cfg.Enrich.RespectRobots,
	})
	if err != nil {
		return nil, fmt.Errorf("create fetcher: %w", err)
	}

	d := &Dataset{
		cfg:    cfg,
		logger: logger,
		rehydrator: twitter.NewClient(twitter.Options{
			BearerToken:       cfg.Twitter.BearerToken,
			BatchSize:         cfg.Twitter.BatchSize,
			MaxParallel:       cfg.Twitter.MaxParallel,
			RequestsPerSecond: cfg.Twitter.RequestsPerSecond,
			Logger:            logger,
		}),
		enricher: enrich.NewPool(cfg.Enrich.Workers,
			time.Duration(cfg.Enrich.TimeoutSeconds)*time.Second, fetcher, logger),
		fetcher:    fetcher,
		downloader: archive.NewDownloader(nil),
		nodes:      make(map[string]*table.Table),
		rels:       make(map[schema.Triple]*table.Relations),
	}

	if cfg.Checkpoint.Enabled {
		mgr, err := checkpoint.NewManager(cfg.Checkpoint.Dir)
		if err != nil {
			return nil, fmt.Errorf("create checkpoint manager: %w", err)
		}
		d.checkpoint = mgr
	}
	return d, nil
}

// Close releases the fetch cache. Call once compilation is done.
func (d *Dataset) Close() error {
	return d.fetcher.Close()
}

// Node returns the entity table for a kind, when it was materialized.
func (d *Dataset) Node(kind string) (*table.Table, bool) {
	t, ok := d.nodes[kind]
	return t, ok
}

// Relation returns the edge table for a triple, when it was derived.
func (d *Dataset) Relation(triple schema.Triple) (*table.Relations, bool) {
	r, ok := d.rels[triple]
	return r, ok
}

// Stats returns the observability counters accumulated so far.
func (d *Dataset) Stats() Stats { return d.stats }

// Compiled reports whether Compile has completed.
func (d *Dataset) Compiled() bool { return d.compiled }

// String summarizes the dataset: the size preset and, once compiled, the
// per-kind node counts and per-triple relation counts.
func (d *Dataset) String() string {
	if !d.compiled {
		return fmt.Sprintf("Dataset(size=%s, compiled=false)", d.cfg.Dataset.Size)
	}

	kinds := make([]string, 0, len(d.nodes))
	for kind := range d.nodes {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	var b strings.Builder
	fmt.Fprintf(&b, "Dataset(size=%s,\n  nodes:\n", d.cfg.Dataset.Size)
	for _, kind := range kinds {
		fmt.Fprintf(&b, "    %s: %d\n", kind, d.nodes[kind].Len())
	}

	names := make([]string, 0, len(d.rels))
	byName := make(map[string]*table.Relations, len(d.rels))
	for _, rel := range d.rels {
		names = append(names, rel.Name())
		byName[rel.Name()] = rel
	}
	sort.Strings(names)

	b.WriteString("  relations:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "    %s: %d\n", name, byName[name].Len())
	}
	b.WriteString(")")
	return b.String()
}

// validate checks referential integrity of every relation table against the
// current entity tables. Run at the end of each stage that touched tables.
func (d *Dataset) validate() error {
	for triple, rel := range d.rels {
		src, ok := d.nodes[triple.Src]
		if !ok {
			return fmt.Errorf("relation %s references missing %s table", rel.Name(), triple.Src)
		}
		tgt, ok := d.nodes[triple.Tgt]
		if !ok {
			return fmt.Errorf("relation %s references missing %s table", rel.Name(), triple.Tgt)
		}
		if err := rel.Validate(src, tgt); err != nil {
			return err
		}
	}
	return nil
}

// setRelation stores a derived relation table, replacing any earlier table
// for the same triple.
func (d *Dataset) setRelation(rel *table.Relations) {
	d.rels[schema.Triple{Src: rel.SrcKind, Label: rel.Label, Tgt: rel.TgtKind}] = rel
}
