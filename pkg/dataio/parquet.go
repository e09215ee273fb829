package dataio

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/rumorgraph/rumorgraph/pkg/table"
)

// ParquetWriter mirrors the final tables as Parquet files next to the CSVs.
// Entity attributes beyond the key travel as a JSON-encoded bag, one file
// per entity kind and per relation triple.
type ParquetWriter struct {
	baseDir string
}

// NewParquetWriter creates the output directory and returns a writer.
func NewParquetWriter(baseDir string) (*ParquetWriter, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create parquet dir: %w", err)
	}
	return &ParquetWriter{baseDir: baseDir}, nil
}

// ParquetEntityRow is the on-disk schema for one entity row.
type ParquetEntityRow struct {
	Position int64  `parquet:"position"`
	Key      string `parquet:"key"`
	Attrs    string `parquet:"attrs"` // JSON string
}

// ParquetRelationRow is the on-disk schema for one relation row.
type ParquetRelationRow struct {
	Src   int64    `parquet:"src"`
	Tgt   int64    `parquet:"tgt"`
	Score *float64 `parquet:"score,optional"`
}

// WriteEntityTable writes one entity kind's table as <kind>.parquet.
func (w *ParquetWriter) WriteEntityTable(t *table.Table) error {
	rows := make([]ParquetEntityRow, 0, t.Len())
	for pos := 0; pos < t.Len(); pos++ {
		row, _ := t.Row(pos)
		attrs := make(map[string]any, len(row))
		for col, v := range row {
			if col == t.KeyColumn() {
				continue
			}
			attrs[col] = v
		}
		attrsJSON, err := json.Marshal(attrs)
		if err != nil {
			return fmt.Errorf("marshal %s row %d attrs: %w", t.Kind(), pos, err)
		}
		rows = append(rows, ParquetEntityRow{
			Position: int64(pos),
			Key:      t.Key(pos),
			Attrs:    string(attrsJSON),
		})
	}

	path := filepath.Join(w.baseDir, t.Kind()+".parquet")
	return parquet.WriteFile(path, rows)
}

// WriteRelationTable writes one relation triple's table as
// <src>_<label>_<tgt>.parquet.
func (w *ParquetWriter) WriteRelationTable(r *table.Relations) error {
	rows := make([]ParquetRelationRow, 0, r.Len())
	for _, p := range r.Pairs() {
		rows = append(rows, ParquetRelationRow{
			Src:   int64(p.Src),
			Tgt:   int64(p.Tgt),
			Score: p.Score,
		})
	}

	path := filepath.Join(w.baseDir, r.Name()+".parquet")
	return parquet.WriteFile(path, rows)
}
