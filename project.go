package rumorgraph

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/rumorgraph/rumorgraph/pkg/dataio"
	"github.com/rumorgraph/rumorgraph/pkg/schema"
	"github.com/rumorgraph/rumorgraph/pkg/table"
)

//go:embed projection.yaml
var projectionYAML []byte

// columnSpec is one retained column, optionally renamed in the output.
type columnSpec struct {
	Name string `yaml:"name"`
	As   string `yaml:"as,omitempty"`
}

// projectionSpec maps entity kinds to their final column sets. Kinds absent
// from the spec keep every column.
type projectionSpec map[string][]columnSpec

func loadProjectionSpec() (projectionSpec, error) {
	var spec projectionSpec
	if err := yaml.Unmarshal(projectionYAML, &spec); err != nil {
		return nil, fmt.Errorf("parse projection spec: %w", err)
	}
	return spec, nil
}

// project writes the final tables: one CSV per retained entity kind and per
// relation triple, plus Parquet mirrors when configured. Projection drops
// columns, never rows, so relation positions stay valid against the
// projected entity files. The tables are immutable from here on.
func (d *Dataset) project() error {
	spec, err := loadProjectionSpec()
	if err != nil {
		return err
	}
	if err := validateProjectionSpec(spec); err != nil {
		return err
	}

	outDir := filepath.Join(d.cfg.Dataset.Dir, "compiled")
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	var parquetWriter *dataio.ParquetWriter
	if d.cfg.Dataset.WriteParquet {
		parquetWriter, err = dataio.NewParquetWriter(outDir)
		if err != nil {
			return err
		}
	}

	for kind, t := range d.nodes {
		projected := projectTable(t, spec[kind])
		path := filepath.Join(outDir, kind+".csv")
		if err := dataio.WriteTable(path, projected); err != nil {
			return err
		}
		if parquetWriter != nil {
			if err := parquetWriter.WriteEntityTable(projected); err != nil {
				return err
			}
		}
		d.logger.Debug("projected entity table", "kind", kind, "rows", projected.Len())
	}

	for _, rel := range d.rels {
		path := filepath.Join(outDir, rel.Name()+".csv")
		if err := dataio.WriteRelations(path, rel); err != nil {
			return err
		}
		if parquetWriter != nil {
			if err := parquetWriter.WriteRelationTable(rel); err != nil {
				return err
			}
		}
	}

	d.logger.Info("dataset projected", "dir", outDir,
		"kinds", len(d.nodes), "relations", len(d.rels))
	return nil
}

// projectTable builds a column-restricted copy of a table. A nil column list
// keeps everything. The natural-key column is always retained, unrenamed, so
// relation files keep something to join back against.
func projectTable(t *table.Table, cols []columnSpec) *table.Table {
	if cols == nil {
		return t
	}

	keyCol := t.KeyColumn()
	keyKept := false
	for _, c := range cols {
		if c.Name == keyCol && c.As == "" {
			keyKept = true
			break
		}
	}

	out := table.New(t.Kind(), keyCol)
	for pos := 0; pos < t.Len(); pos++ {
		row, _ := t.Row(pos)
		projected := make(table.Row, len(cols))
		if !keyKept {
			if v, ok := row[keyCol]; ok {
				projected[keyCol] = v
			}
		}
		for _, c := range cols {
			v, ok := row[c.Name]
			if !ok {
				continue
			}
			name := c.Name
			if c.As != "" {
				name = c.As
			}
			projected[name] = v
		}
		out.Append(projected)
	}
	return out
}

// Ensure the projection spec only names known kinds; a typo here would
// silently keep every column for the kind it meant to restrict.
func validateProjectionSpec(spec projectionSpec) error {
	for kind := range spec {
		if !schema.IsKind(kind) {
			return fmt.Errorf("projection spec names unknown kind %q", kind)
		}
	}
	return nil
}
