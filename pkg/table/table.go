// Package table implements the in-memory entity and relation stores that the
// dataset compiler assembles. An entity table holds the rows of one entity
// kind; a relation table holds (source position, target position) pairs
// between two entity tables.
//
// Positional indices are transient: any mutation that changes a table's row
// set bumps its generation counter and invalidates previously captured
// positions. Relation tables record the generations they were built against
// so that stale references are caught instead of silently dangling.
package table

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Validation errors.
var (
	ErrDuplicateKeys    = errors.New("duplicate natural keys")
	ErrStaleGeneration  = errors.New("relation references a stale table generation")
	ErrIndexOutOfRange  = errors.New("relation index out of range")
	ErrMissingKeyColumn = errors.New("key column missing from row")
)

// Row is a single entity record keyed by column name. Values are the
// canonical forms produced at ingestion: string, int64, float64, bool,
// time.Time, []string, or []Row for nested object lists.
type Row map[string]any

// Table is the entity store for one kind. Rows keep their insertion order;
// a row's position within that order is its positional index.
type Table struct {
	kind   string
	keyCol string
	rows   []Row
	cols   []string
	colSet map[string]struct{}
	gen    uint64
	index  map[string]int // natural key -> position, nil when stale
}

// New creates an empty table for the given entity kind, keyed by keyCol.
func New(kind, keyCol string) *Table {
	return &Table{
		kind:   kind,
		keyCol: keyCol,
		colSet: make(map[string]struct{}),
	}
}

// Kind returns the entity kind this table holds.
func (t *Table) Kind() string { return t.kind }

// KeyColumn returns the natural-key column name.
func (t *Table) KeyColumn() string { return t.keyCol }

// Len returns the current row count.
func (t *Table) Len() int { return len(t.rows) }

// Generation returns the mutation counter. Positions captured at one
// generation are invalid at any other.
func (t *Table) Generation() uint64 { return t.gen }

// Columns returns the column names in first-seen order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.cols))
	copy(out, t.cols)
	return out
}

// HasColumn reports whether any row has ever carried the column.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.colSet[name]
	return ok
}

// Row returns the row at the given position. The returned map is the live
// row, not a copy; callers adding derived columns must go through Set.
func (t *Table) Row(pos int) (Row, bool) {
	if pos < 0 || pos >= len(t.rows) {
		return nil, false
	}
	return t.rows[pos], true
}

// Append adds rows to the end of the table, invalidating all positions.
func (t *Table) Append(rows ...Row) {
	for _, row := range rows {
		t.trackColumns(row)
		t.rows = append(t.rows, row)
	}
	if len(rows) > 0 {
		t.mutate()
	}
}

// Set writes a derived column value on the row at pos. Adding columns does
// not change the row set, so positions stay valid.
func (t *Table) Set(pos int, col string, v any) bool {
	if pos < 0 || pos >= len(t.rows) {
		return false
	}
	t.rows[pos][col] = v
	if _, ok := t.colSet[col]; !ok {
		t.colSet[col] = struct{}{}
		t.cols = append(t.cols, col)
	}
	return true
}

// Key returns the natural key of the row at pos, or "" when absent.
func (t *Table) Key(pos int) string {
	row, ok := t.Row(pos)
	if !ok {
		return ""
	}
	return KeyString(row[t.keyCol])
}

// Keys returns the natural keys in positional order.
func (t *Table) Keys() []string {
	keys := make([]string, len(t.rows))
	for i, row := range t.rows {
		keys[i] = KeyString(row[t.keyCol])
	}
	return keys
}

// KeySet returns the set of natural keys currently in the table.
func (t *Table) KeySet() map[string]struct{} {
	set := make(map[string]struct{}, len(t.rows))
	for _, row := range t.rows {
		if k := KeyString(row[t.keyCol]); k != "" {
			set[k] = struct{}{}
		}
	}
	return set
}

// Lookup resolves a natural key to its current position. The key index is
// rebuilt lazily after every mutation; on key collisions the first row wins,
// matching deduplication order.
func (t *Table) Lookup(key string) (int, bool) {
	if t.index == nil {
		t.index = make(map[string]int, len(t.rows))
		for i, row := range t.rows {
			k := KeyString(row[t.keyCol])
			if k == "" {
				continue
			}
			if _, exists := t.index[k]; !exists {
				t.index[k] = i
			}
		}
	}
	pos, ok := t.index[key]
	return pos, ok
}

// CheckUniqueKeys returns ErrDuplicateKeys naming the offenders when two rows
// share a natural key. Tweet and user tables must pass this before relation
// extraction begins.
func (t *Table) CheckUniqueKeys() error {
	seen := make(map[string]struct{}, len(t.rows))
	var dups []string
	for _, row := range t.rows {
		k := KeyString(row[t.keyCol])
		if k == "" {
			return fmt.Errorf("%w: %s row has no %s", ErrMissingKeyColumn, t.kind, t.keyCol)
		}
		if _, ok := seen[k]; ok {
			dups = append(dups, k)
			continue
		}
		seen[k] = struct{}{}
	}
	if len(dups) > 0 {
		return fmt.Errorf("%w in %s table: %v", ErrDuplicateKeys, t.kind, dups)
	}
	return nil
}

// Dedup removes rows whose natural key was already seen, keeping the first
// occurrence. Returns the number of rows removed; zero removals leave the
// generation untouched, so deduplicating an already-unique table is a no-op.
func (t *Table) Dedup() int {
	seen := make(map[string]struct{}, len(t.rows))
	kept := t.rows[:0]
	removed := 0
	for _, row := range t.rows {
		k := KeyString(row[t.keyCol])
		if _, ok := seen[k]; ok {
			removed++
			continue
		}
		seen[k] = struct{}{}
		kept = append(kept, row)
	}
	t.rows = kept
	if removed > 0 {
		t.mutate()
	}
	return removed
}

// Restrict keeps only rows whose natural key is in the given set, preserving
// order. Returns the number of rows removed.
func (t *Table) Restrict(keys map[string]struct{}) int {
	return t.Filter(func(row Row) bool {
		_, ok := keys[KeyString(row[t.keyCol])]
		return ok
	})
}

// Filter keeps only rows matching the predicate, preserving order. Returns
// the number of rows removed; a filter that removes nothing is a no-op.
func (t *Table) Filter(keep func(Row) bool) int {
	kept := t.rows[:0]
	removed := 0
	for _, row := range t.rows {
		if keep(row) {
			kept = append(kept, row)
		} else {
			removed++
		}
	}
	t.rows = kept
	if removed > 0 {
		t.mutate()
	}
	return removed
}

func (t *Table) mutate() {
	t.gen++
	t.index = nil
}

func (t *Table) trackColumns(row Row) {
	for col := range row {
		if _, ok := t.colSet[col]; !ok {
			t.colSet[col] = struct{}{}
			t.cols = append(t.cols, col)
		}
	}
}

// KeyString normalizes a natural-key value to its canonical string form.
// Integer-valued floats are rendered without a fraction so that keys survive
// a round trip through JSON decoding.
func KeyString(v any) string {
	switch k := v.(type) {
	case nil:
		return ""
	case string:
		return k
	case int:
		return strconv.Itoa(k)
	case int64:
		return strconv.FormatInt(k, 10)
	case uint64:
		return strconv.FormatUint(k, 10)
	case float64:
		if k == float64(int64(k)) {
			return strconv.FormatInt(int64(k), 10)
		}
		return strconv.FormatFloat(k, 'f', -1, 64)
	case time.Time:
		return k.Format(time.RFC3339)
	case fmt.Stringer:
		return k.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}
