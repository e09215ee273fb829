package table

// RefFunc extracts the reference values held in one source cell. A nil
// RefFunc falls back to Refs, which understands scalar strings and string
// lists.
type RefFunc func(cell any) []string

// ExtractStats counts what happened during one extraction. Unresolved
// references are an expected consequence of partial upstream data; they are
// dropped silently but kept observable here.
type ExtractStats struct {
	SourceRows int // rows with the reference column populated
	Expanded   int // reference values after list expansion
	Resolved   int // references that joined against a target key
	Dropped    int // references with no matching target row
}

// Extract derives relation pairs from a reference column on the source
// table: rows with an absent reference are skipped, list-valued references
// are expanded one row per value, and each value is equi-joined against the
// target table's natural keys. Source positions are captured fresh from the
// table's current row order. References that fail to resolve are dropped,
// not errored.
func Extract(src *Table, refCol string, refFn RefFunc, tgt *Table) ([]Pair, ExtractStats) {
	var stats ExtractStats
	if refFn == nil {
		refFn = Refs
	}
	var pairs []Pair
	for pos := 0; pos < src.Len(); pos++ {
		row, _ := src.Row(pos)
		cell, ok := row[refCol]
		if !ok || cell == nil {
			continue
		}
		refs := refFn(cell)
		if len(refs) == 0 {
			continue
		}
		stats.SourceRows++
		for _, ref := range refs {
			stats.Expanded++
			tgtPos, found := tgt.Lookup(ref)
			if !found {
				stats.Dropped++
				continue
			}
			stats.Resolved++
			pairs = append(pairs, Pair{Src: pos, Tgt: tgtPos})
		}
	}
	return pairs, stats
}

// Refs is the default RefFunc: a scalar becomes a single reference and a
// []string expands to one reference per element. Empty strings are skipped.
func Refs(cell any) []string {
	switch v := cell.(type) {
	case []string:
		out := make([]string, 0, len(v))
		for _, s := range v {
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s := KeyString(e); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		if s := KeyString(cell); s != "" {
			return []string{s}
		}
		return nil
	}
}

// FieldRefs returns a RefFunc that pulls one field out of each element of a
// nested object list, e.g. the "id" of every mention on a tweet.
func FieldRefs(field string) RefFunc {
	return func(cell any) []string {
		objs, ok := cell.([]Row)
		if !ok {
			return nil
		}
		out := make([]string, 0, len(objs))
		for _, obj := range objs {
			if s := KeyString(obj[field]); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
}
