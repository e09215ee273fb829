package rumorgraph

import (
	"context"
	"fmt"

	"github.com/rumorgraph/rumorgraph/pkg/checkpoint"
)

// Compile runs the full pipeline: download, load, hydrate, extract
// relations, filter the subgraph, enrich, project. Table stages run strictly
// sequentially; the enrichment pool is the only concurrent region. Each
// completed stage advances the run's checkpoint so a crashed compile is
// diagnosable from the last persisted step.
func (d *Dataset) Compile(ctx context.Context) error {
	var ckpt *checkpoint.CompileCheckpoint
	if d.checkpoint != nil {
		ckpt = checkpoint.NewCheckpoint(d.cfg.Dataset.Dir, d.cfg.Dataset.Size)
		if err := d.checkpoint.Save(ctx, ckpt); err != nil {
			return fmt.Errorf("persist checkpoint: %w", err)
		}
		d.logger.Info("compile run started", "run_id", ckpt.RunID, "size", d.cfg.Dataset.Size)
	}

	fail := func(err error) error {
		if ckpt != nil {
			if serr := d.checkpoint.SaveWithError(ctx, ckpt, err); serr != nil {
				d.logger.Error("failed to record compile error", "error", serr)
			}
		}
		return err
	}
	advance := func(step checkpoint.CompileStep) error {
		if ckpt == nil {
			return nil
		}
		d.recordCounts(ckpt)
		return d.checkpoint.SaveWithStep(ctx, ckpt, step)
	}

	if err := d.download(ctx); err != nil {
		return fail(err)
	}
	if err := advance(checkpoint.StepDownloaded); err != nil {
		return err
	}

	raw, err := d.load()
	if err != nil {
		return fail(err)
	}
	if err := advance(checkpoint.StepLoaded); err != nil {
		return err
	}

	if err := d.hydrate(ctx); err != nil {
		return fail(err)
	}
	if err := advance(checkpoint.StepHydrated); err != nil {
		return err
	}

	// Raw relation files bind only now: hydration replaced the tweet and
	// user tables, so earlier positions would be stale.
	d.bindRawRelations(raw)

	if err := d.extractRelations(); err != nil {
		return fail(err)
	}
	if err := advance(checkpoint.StepRelations); err != nil {
		return err
	}

	if err := d.applyFilter(); err != nil {
		return fail(err)
	}
	if err := advance(checkpoint.StepFiltered); err != nil {
		return err
	}

	if err := d.enrichDataset(ctx); err != nil {
		return fail(err)
	}
	if err := advance(checkpoint.StepEnriched); err != nil {
		return err
	}

	if err := d.project(); err != nil {
		return fail(err)
	}
	if err := advance(checkpoint.StepProjected); err != nil {
		return err
	}

	d.compiled = true
	if err := advance(checkpoint.StepCompleted); err != nil {
		return err
	}

	d.logger.Info("compile complete",
		"unresolved_refs", d.stats.UnresolvedRefs,
		"dropped_edges", d.stats.DroppedEdges,
		"enriched", d.stats.Enrich.Succeeded)
	return nil
}

// recordCounts copies the current table sizes and enrichment counters into
// the checkpoint.
func (d *Dataset) recordCounts(ckpt *checkpoint.CompileCheckpoint) {
	for kind, t := range d.nodes {
		ckpt.NodeCounts[kind] = t.Len()
	}
	for _, rel := range d.rels {
		ckpt.RelationCounts[rel.Name()] = rel.Len()
	}
	ckpt.EnrichSubmitted = d.stats.Enrich.Submitted
	ckpt.EnrichSucceeded = d.stats.Enrich.Succeeded
	ckpt.EnrichFailed = d.stats.Enrich.Failed
	ckpt.EnrichTimedOut = d.stats.Enrich.TimedOut
}
