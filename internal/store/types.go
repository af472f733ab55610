// Package store provides the shared index sink that ingestion workers write
// to, and the read side used by search and benchmarking. Two engines are
// available: Bleve (default) and SQLite.
package store

import (
	"context"
	"fmt"
)

// FieldKind is the value type of an indexed field.
type FieldKind int

const (
	// KindFloat is a float64 value.
	KindFloat FieldKind = iota
	// KindInt is an int64 value (counts, codes, epoch seconds).
	KindInt
	// KindGeo is a GeoPoint value.
	KindGeo
	// KindText is a string value.
	KindText
)

// String returns the kind name.
func (k FieldKind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	case KindGeo:
		return "geo"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// EntryKind tags how a field entry is indexed.
type EntryKind int

const (
	// EntryRange is an indexed point usable by range and geo queries.
	EntryRange EntryKind = iota
	// EntryStored is a stored, retrievable value that is not searchable.
	EntryStored
	// EntryText is searchable full text that is also stored.
	EntryText
)

// String returns the entry kind name.
func (k EntryKind) String() string {
	switch k {
	case EntryRange:
		return "range"
	case EntryStored:
		return "stored"
	case EntryText:
		return "text"
	default:
		return "unknown"
	}
}

// GeoPoint is a two-dimensional point in GeoJSON order.
type GeoPoint struct {
	Lon float64
	Lat float64
}

// FieldEntry is one typed value of a document field.
// Value holds a float64, int64, GeoPoint or string matching the field kind.
type FieldEntry struct {
	Name  string
	Kind  EntryKind
	Value any
}

// Document is the indexable projection of one input record.
type Document struct {
	ID      string
	Entries []FieldEntry
}

// FieldSpec describes one field of the index.
type FieldSpec struct {
	Name   string
	Kind   FieldKind
	Range  bool // indexed for range or geo queries
	Stored bool // retrievable by Stored
	Text   bool // analyzed for full-text queries
}

// Schema is the ordered field set engines derive their mappings from.
type Schema []FieldSpec

// Lookup returns the spec for the named field.
func (s Schema) Lookup(name string) (FieldSpec, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// Validate checks that field names are unique and flags match kinds.
func (s Schema) Validate() error {
	if len(s) == 0 {
		return fmt.Errorf("schema has no fields")
	}
	seen := make(map[string]struct{}, len(s))
	for _, f := range s {
		if f.Name == "" {
			return fmt.Errorf("schema field with empty name")
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("duplicate schema field %q", f.Name)
		}
		seen[f.Name] = struct{}{}
		if f.Text && f.Kind != KindText {
			return fmt.Errorf("field %q: only text fields can be analyzed", f.Name)
		}
		if f.Kind == KindText && f.Range {
			return fmt.Errorf("field %q: text fields cannot be range indexed", f.Name)
		}
	}
	return nil
}

// IndexSink is the shared destination all workers write to.
// Add and Commit are safe for concurrent use by any number of workers;
// all synchronization is internal to the implementation.
type IndexSink interface {
	// Add appends a document to the uncommitted buffer.
	Add(ctx context.Context, doc Document) error

	// Commit atomically applies every document added by any caller since
	// the previous commit.
	Commit(ctx context.Context) error

	// Close commits what is still buffered and releases resources.
	Close() error
}

// Hit is one search result.
type Hit struct {
	ID     string
	Fields map[string]any
}

// Result is the outcome of a search.
type Result struct {
	Total uint64
	Hits  []Hit
}

// Searcher is the read side of an index. It only sees committed documents.
type Searcher interface {
	// DocCount returns the number of committed documents.
	DocCount(ctx context.Context) (uint64, error)

	// MatchAll returns up to size documents.
	MatchAll(ctx context.Context, size int) (*Result, error)

	// NumericRange returns documents whose range field lies in [min, max].
	NumericRange(ctx context.Context, field string, min, max float64, size int) (*Result, error)

	// GeoBox returns documents whose geo field lies inside the bounding box.
	GeoBox(ctx context.Context, field string, topLeft, bottomRight GeoPoint, size int) (*Result, error)

	// Text returns documents whose text field matches all terms of query.
	Text(ctx context.Context, field, query string, size int) (*Result, error)

	// Stored returns the stored fields of one document.
	Stored(ctx context.Context, id string) (map[string]any, error)
}

// Index is an engine that is both a sink and a searcher.
type Index interface {
	IndexSink
	Searcher
}

// toFloat converts numeric entry values to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	default:
		return 0, false
	}
}
