package schema

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rumorgraph/rumorgraph/pkg/table"
)

// FieldType tags the shape a raw API field is allowed to take. Every raw
// value is coerced to its canonical Go form at ingestion; shapes that do not
// match are an ingestion error, never deferred to access time.
type FieldType int

const (
	TypeString FieldType = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeTime
	TypeStringList
	TypeFloatList
	TypeObjectList
)

// Field describes one raw column: its flattened (dotted) name, its shape,
// and, for object lists, the fields of each element.
type Field struct {
	Name string
	Type FieldType
	Elem []Field
}

// RowSpec is the tagged-variant schema for one rehydration category.
type RowSpec struct {
	Category string
	Fields   []Field
}

// Coerce validates a flattened raw row against the spec and returns the
// canonical table row. Fields absent from the raw row are skipped (partial
// data is expected); fields present with an unexpected shape are an error.
// Raw fields not named by the spec are dropped.
func (s RowSpec) Coerce(raw map[string]any) (table.Row, error) {
	row := make(table.Row, len(s.Fields))
	for _, f := range s.Fields {
		v, ok := raw[f.Name]
		if !ok || v == nil {
			continue
		}
		coerced, err := coerceValue(f, v)
		if err != nil {
			return nil, fmt.Errorf("%s field %q: %w", s.Category, f.Name, err)
		}
		row[f.Name] = coerced
	}
	return row, nil
}

func coerceValue(f Field, v any) (any, error) {
	switch f.Type {
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return s, nil
	case TypeInt:
		return toInt64(v)
	case TypeFloat:
		return toFloat64(v)
	case TypeBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", v)
		}
		return b, nil
	case TypeTime:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected timestamp string, got %T", v)
		}
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return nil, fmt.Errorf("bad timestamp %q: %w", s, err)
		}
		return ts, nil
	case TypeStringList:
		list, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("expected list, got %T", v)
		}
		out := make([]string, 0, len(list))
		for _, e := range list {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("expected string element, got %T", e)
			}
			out = append(out, s)
		}
		return out, nil
	case TypeFloatList:
		list, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("expected list, got %T", v)
		}
		out := make([]float64, 0, len(list))
		for _, e := range list {
			fv, err := toFloat64(e)
			if err != nil {
				return nil, err
			}
			out = append(out, fv)
		}
		return out, nil
	case TypeObjectList:
		list, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("expected object list, got %T", v)
		}
		out := make([]table.Row, 0, len(list))
		for _, e := range list {
			obj, ok := e.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("expected object element, got %T", e)
			}
			elem := make(table.Row, len(f.Elem))
			for _, ef := range f.Elem {
				ev, ok := obj[ef.Name]
				if !ok || ev == nil {
					continue
				}
				coerced, err := coerceValue(ef, ev)
				if err != nil {
					return nil, fmt.Errorf("element field %q: %w", ef.Name, err)
				}
				elem[ef.Name] = coerced
			}
			out = append(out, elem)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown field type %d", f.Type)
	}
}

func toInt64(v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Int64()
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	case string:
		// Platform IDs exceed float64 precision, so they arrive as strings.
		var parsed json.Number = json.Number(n)
		return parsed.Int64()
	default:
		return 0, fmt.Errorf("expected integer, got %T", v)
	}
}

func toFloat64(v any) (float64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Float64()
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("expected number, got %T", v)
	}
}
