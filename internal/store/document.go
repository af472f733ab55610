package store

import (
	"fmt"

	"github.com/Aman-CERP/taxidx/internal/errors"
)

// fieldValues resolves a document against the schema. Numeric values come
// back as float64 for KindFloat and int64 for KindInt. A field that carries
// both a range and a stored entry must hold the same value in both.
func fieldValues(schema Schema, doc Document) (map[string]any, error) {
	if doc.ID == "" {
		return nil, errors.InternalError("document has no id", nil)
	}

	values := make(map[string]any, len(doc.Entries))
	for _, e := range doc.Entries {
		spec, ok := schema.Lookup(e.Name)
		if !ok {
			return nil, errors.New(errors.ErrCodeIndexWrite,
				fmt.Sprintf("document %s has unknown field %q", doc.ID, e.Name), nil)
		}

		v, err := coerce(spec, e)
		if err != nil {
			return nil, errors.New(errors.ErrCodeIndexWrite,
				fmt.Sprintf("document %s: %v", doc.ID, err), nil)
		}
		values[e.Name] = v
	}
	return values, nil
}

func coerce(spec FieldSpec, e FieldEntry) (any, error) {
	switch spec.Kind {
	case KindFloat:
		f, ok := toFloat(e.Value)
		if !ok {
			return nil, fmt.Errorf("field %s: expected number, got %T", e.Name, e.Value)
		}
		return f, nil
	case KindInt:
		switch n := e.Value.(type) {
		case int64:
			return n, nil
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		default:
			return nil, fmt.Errorf("field %s: expected integer, got %T", e.Name, e.Value)
		}
	case KindGeo:
		p, ok := e.Value.(GeoPoint)
		if !ok {
			return nil, fmt.Errorf("field %s: expected GeoPoint, got %T", e.Name, e.Value)
		}
		return p, nil
	case KindText:
		s, ok := e.Value.(string)
		if !ok {
			return nil, fmt.Errorf("field %s: expected string, got %T", e.Name, e.Value)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("field %s: unsupported kind %s", e.Name, spec.Kind)
	}
}

func errClosed() error {
	return errors.New(errors.ErrCodeIndexClosed, "index is closed", nil)
}

func errNotFound(id string) error {
	return errors.New(errors.ErrCodeIndexQuery, fmt.Sprintf("document %q not found", id), nil)
}

func errNotRangeField(field string) error {
	return errors.New(errors.ErrCodeIndexQuery,
		fmt.Sprintf("%q is not a numeric range field", field), nil).
		WithSuggestion("Run 'taxidx search --help' to list the indexed fields")
}

func errNotGeoField(field string) error {
	return errors.New(errors.ErrCodeIndexQuery,
		fmt.Sprintf("%q is not a geo field", field), nil).
		WithSuggestion("Run 'taxidx search --help' to list the indexed fields")
}

func errNotTextField(field string) error {
	return errors.New(errors.ErrCodeIndexQuery,
		fmt.Sprintf("%q is not a text field", field), nil)
}
