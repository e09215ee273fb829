package table

import "fmt"

// Pair is one relation row: positional indices into the source and target
// entity tables, plus an optional scalar score.
type Pair struct {
	Src   int
	Tgt   int
	Score *float64
}

// Relations is the edge table for one (source kind, label, target kind)
// triple. It records the generations of both entity tables at build time so
// consumers can detect edges that outlived a table mutation.
type Relations struct {
	SrcKind string
	Label   string
	TgtKind string

	pairs  []Pair
	srcGen uint64
	tgtGen uint64
}

// NewRelations builds a relation table bound to the current generations of
// the two entity tables the pairs were joined against.
func NewRelations(srcKind, label, tgtKind string, pairs []Pair, src, tgt *Table) *Relations {
	return &Relations{
		SrcKind: srcKind,
		Label:   label,
		TgtKind: tgtKind,
		pairs:   pairs,
		srcGen:  src.Generation(),
		tgtGen:  tgt.Generation(),
	}
}

// Len returns the number of relation rows.
func (r *Relations) Len() int { return len(r.pairs) }

// Pairs returns the relation rows. The slice is live; callers must not
// mutate it.
func (r *Relations) Pairs() []Pair { return r.pairs }

// At returns the pair at index i.
func (r *Relations) At(i int) Pair { return r.pairs[i] }

// Name returns the canonical "src_label_tgt" name for this triple.
func (r *Relations) Name() string {
	return fmt.Sprintf("%s_%s_%s", r.SrcKind, r.Label, r.TgtKind)
}

// Validate checks referential integrity against the given entity tables:
// every index must be in range and both generations must match the tables'
// current generations. A failure means a relation was carried across a
// mutation boundary without being re-derived.
func (r *Relations) Validate(src, tgt *Table) error {
	if r.srcGen != src.Generation() || r.tgtGen != tgt.Generation() {
		return fmt.Errorf("%w: %s built at (%d,%d), tables now at (%d,%d)",
			ErrStaleGeneration, r.Name(), r.srcGen, r.tgtGen, src.Generation(), tgt.Generation())
	}
	for i, p := range r.pairs {
		if p.Src < 0 || p.Src >= src.Len() {
			return fmt.Errorf("%w: %s row %d src=%d, %s has %d rows",
				ErrIndexOutOfRange, r.Name(), i, p.Src, src.Kind(), src.Len())
		}
		if p.Tgt < 0 || p.Tgt >= tgt.Len() {
			return fmt.Errorf("%w: %s row %d tgt=%d, %s has %d rows",
				ErrIndexOutOfRange, r.Name(), i, p.Tgt, tgt.Kind(), tgt.Len())
		}
	}
	return nil
}

// FilterScore returns the pairs whose score strictly exceeds tau. Pairs
// without a score are dropped. The caller rebinds the result against fresh
// table generations once the dependent tables have been restricted.
func (r *Relations) FilterScore(tau float64) []Pair {
	var kept []Pair
	for _, p := range r.pairs {
		if p.Score != nil && *p.Score > tau {
			kept = append(kept, p)
		}
	}
	return kept
}

// KeyPair is a relation row expressed by natural keys instead of positions.
// Restriction cascades work on key pairs because positions are invalidated
// by the very restriction being applied.
type KeyPair struct {
	Src   string
	Tgt   string
	Score *float64
}

// ByKeys converts the relation rows to natural-key pairs using the current
// positions of the given entity tables. It must be called before those
// tables are mutated.
func (r *Relations) ByKeys(src, tgt *Table) ([]KeyPair, error) {
	if err := r.Validate(src, tgt); err != nil {
		return nil, err
	}
	out := make([]KeyPair, 0, len(r.pairs))
	for _, p := range r.pairs {
		out = append(out, KeyPair{Src: src.Key(p.Src), Tgt: tgt.Key(p.Tgt), Score: p.Score})
	}
	return out, nil
}

// FromKeys rebuilds a relation table from natural-key pairs by fresh joins
// against the current state of both entity tables. Pairs whose source or
// target key no longer resolves are silently dropped; the returned count
// reports how many were dropped.
func FromKeys(srcKind, label, tgtKind string, keyPairs []KeyPair, src, tgt *Table) (*Relations, int) {
	pairs := make([]Pair, 0, len(keyPairs))
	dropped := 0
	for _, kp := range keyPairs {
		srcPos, srcOK := src.Lookup(kp.Src)
		tgtPos, tgtOK := tgt.Lookup(kp.Tgt)
		if !srcOK || !tgtOK {
			dropped++
			continue
		}
		pairs = append(pairs, Pair{Src: srcPos, Tgt: tgtPos, Score: kp.Score})
	}
	return NewRelations(srcKind, label, tgtKind, pairs, src, tgt), dropped
}
