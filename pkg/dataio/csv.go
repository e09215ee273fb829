// Package dataio reads the raw flat files into tables and writes the final
// tables back out, as CSV and as Parquet mirrors.
package dataio

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/rumorgraph/rumorgraph/pkg/table"
)

// ReadTable loads an entity CSV into a table keyed by keyCol. The first
// record is the header; empty cells are treated as absent, not as empty
// strings, so downstream dropna semantics hold.
func ReadTable(path, kind, keyCol string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", path, err)
	}

	t := table.New(kind, keyCol)
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// A malformed record must not silently truncate the table;
			// the primary kinds shrinking is a precondition violation.
			return nil, fmt.Errorf("read %s row %d: %w", path, t.Len()+1, err)
		}
		row := make(table.Row, len(header))
		for i, cell := range record {
			if i >= len(header) || cell == "" {
				continue
			}
			row[header[i]] = cell
		}
		t.Append(row)
	}
	return t, nil
}

// ReadRelationPairs loads a relation CSV as natural-key pairs. The first two
// columns are the ordered source and target references; a third column, when
// present, is the scalar score.
func ReadRelationPairs(path string) ([]table.KeyPair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", path, err)
	}
	if len(header) < 2 {
		return nil, fmt.Errorf("relation file %s needs at least two columns", path)
	}

	var pairs []table.KeyPair
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s row %d: %w", path, len(pairs)+1, err)
		}
		if len(record) < 2 {
			continue
		}
		kp := table.KeyPair{Src: record[0], Tgt: record[1]}
		if len(record) > 2 && record[2] != "" {
			score, err := strconv.ParseFloat(record[2], 64)
			if err != nil {
				return nil, fmt.Errorf("bad score %q in %s: %w", record[2], path, err)
			}
			kp.Score = &score
		}
		pairs = append(pairs, kp)
	}
	return pairs, nil
}

// WriteTable writes an entity table as CSV, columns in first-seen order,
// rows in positional order. Nested values are JSON-encoded into their cell.
func WriteTable(path string, t *table.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	cols := t.Columns()
	if err := w.Write(cols); err != nil {
		return fmt.Errorf("write %s header: %w", path, err)
	}

	record := make([]string, len(cols))
	for pos := 0; pos < t.Len(); pos++ {
		row, _ := t.Row(pos)
		for i, col := range cols {
			record[i] = cellString(row[col])
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write %s row %d: %w", path, pos, err)
		}
	}

	w.Flush()
	return w.Error()
}

// WriteRelations writes a relation table as CSV with ordered src and tgt
// position columns, plus a score column when any row carries one.
func WriteRelations(path string, r *table.Relations) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	scored := false
	for _, p := range r.Pairs() {
		if p.Score != nil {
			scored = true
			break
		}
	}

	w := csv.NewWriter(f)
	header := []string{"src", "tgt"}
	if scored {
		header = append(header, "relevance")
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write %s header: %w", path, err)
	}

	for i, p := range r.Pairs() {
		record := []string{strconv.Itoa(p.Src), strconv.Itoa(p.Tgt)}
		if scored {
			cell := ""
			if p.Score != nil {
				cell = strconv.FormatFloat(*p.Score, 'f', -1, 64)
			}
			record = append(record, cell)
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write %s row %d: %w", path, i, err)
		}
	}

	w.Flush()
	return w.Error()
}

func cellString(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case int64:
		return strconv.FormatInt(c, 10)
	case float64:
		return strconv.FormatFloat(c, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(c)
	case time.Time:
		return c.Format(time.RFC3339)
	case []string:
		data, _ := json.Marshal(c)
		return string(data)
	default:
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Sprintf("%v", c)
		}
		return string(data)
	}
}
