package store

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/Aman-CERP/taxidx/internal/errors"
)

// BleveIndex is the default engine, backed by a Bleve v2 index.
// Added documents accumulate in one shared batch until Commit.
type BleveIndex struct {
	mu     sync.Mutex
	index  bleve.Index
	batch  *bleve.Batch
	schema Schema
	path   string
	closed bool
}

var _ Index = (*BleveIndex)(nil)

// validateIndexIntegrity checks if a Bleve index is valid before opening.
// Returns nil if valid or absent, error describing corruption if not.
func validateIndexIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted index)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

// isCorruptionError checks if an error indicates Bleve index corruption.
func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unexpected end of JSON") ||
		strings.Contains(errStr, "error parsing mapping JSON") ||
		strings.Contains(errStr, "failed to load segment") ||
		strings.Contains(errStr, "error opening bolt") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// NewBleveIndex opens or creates a Bleve index at path.
// If path is empty, creates an in-memory index.
// A corrupted index directory is cleared and recreated.
func NewBleveIndex(path string, schema Schema) (*BleveIndex, error) {
	if err := schema.Validate(); err != nil {
		return nil, errors.InternalError("invalid index schema", err)
	}

	indexMapping := buildMapping(schema)

	var idx bleve.Index
	var err error
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, errors.New(errors.ErrCodeIndexOpen,
					fmt.Sprintf("failed to create directory %s", dir), err)
			}
		}

		if validErr := validateIndexIntegrity(path); validErr != nil {
			slog.Warn("bleve_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, errors.New(errors.ErrCodeCorruptIndex,
					fmt.Sprintf("index corrupted at %s and cannot be removed", path), removeErr)
			}
			slog.Info("bleve_index_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected"))
		}

		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		} else if err != nil && isCorruptionError(err) {
			slog.Warn("bleve_index_open_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, errors.New(errors.ErrCodeCorruptIndex,
					fmt.Sprintf("index corrupted at %s and cannot be cleared", path), removeErr)
			}
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, errors.New(errors.ErrCodeIndexOpen,
			fmt.Sprintf("failed to create or open index at %q", path), err)
	}

	return &BleveIndex{
		index:  idx,
		batch:  idx.NewBatch(),
		schema: schema,
		path:   path,
	}, nil
}

// buildMapping derives a static document mapping from the schema.
// Fields outside the schema are neither indexed nor stored.
func buildMapping(schema Schema) *mapping.IndexMappingImpl {
	doc := bleve.NewDocumentStaticMapping()

	for _, f := range schema {
		var fm *mapping.FieldMapping
		switch f.Kind {
		case KindFloat, KindInt:
			fm = bleve.NewNumericFieldMapping()
		case KindGeo:
			fm = bleve.NewGeoPointFieldMapping()
		case KindText:
			fm = bleve.NewTextFieldMapping()
			fm.Analyzer = standard.Name
		}
		fm.Index = f.Range || f.Text
		fm.Store = f.Stored || f.Text
		fm.IncludeInAll = false
		fm.DocValues = f.Range
		doc.AddFieldMappingsAt(f.Name, fm)
	}

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = standard.Name
	return im
}

// Add appends doc to the shared batch.
func (b *BleveIndex) Add(ctx context.Context, doc Document) error {
	values, err := fieldValues(b.schema, doc)
	if err != nil {
		return err
	}

	data := make(map[string]any, len(values))
	for name, v := range values {
		switch val := v.(type) {
		case GeoPoint:
			data[name] = []float64{val.Lon, val.Lat}
		case int64:
			data[name] = float64(val)
		default:
			data[name] = val
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errClosed()
	}
	if err := b.batch.Index(doc.ID, data); err != nil {
		return errors.New(errors.ErrCodeIndexWrite,
			fmt.Sprintf("failed to add document %s", doc.ID), err)
	}
	return nil
}

// Commit executes the shared batch, including documents added by other
// callers, and starts a new one. On failure the batch is discarded.
func (b *BleveIndex) Commit(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return errClosed()
	}
	return b.commitLocked(ctx)
}

// commitLocked executes the shared batch. A batch that fails is dropped so
// that later commits by other callers start from an empty batch.
func (b *BleveIndex) commitLocked(ctx context.Context) error {
	n := b.batch.Size()
	if n == 0 {
		return nil
	}
	err := ctx.Err()
	if err == nil {
		err = b.index.Batch(b.batch)
	}
	b.batch.Reset()
	if err != nil {
		slog.Warn("index_batch_dropped",
			slog.String("backend", string(BackendBleve)),
			slog.Int("documents", n),
			slog.String("error", err.Error()))
		return errors.New(errors.ErrCodeIndexCommit, "failed to execute batch", err).
			WithDetail("dropped", fmt.Sprintf("%d", n))
	}
	return nil
}

// Close commits the pending batch and closes the index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	commitErr := b.commitLocked(context.Background())
	if err := b.index.Close(); err != nil {
		return errors.New(errors.ErrCodeIndexWrite, "failed to close index", err)
	}
	return commitErr
}

// DocCount returns the number of committed documents.
func (b *BleveIndex) DocCount(ctx context.Context) (uint64, error) {
	if err := b.checkOpen(); err != nil {
		return 0, err
	}
	n, err := b.index.DocCount()
	if err != nil {
		return 0, errors.New(errors.ErrCodeIndexQuery, "failed to count documents", err)
	}
	return n, nil
}

// MatchAll returns up to size documents.
func (b *BleveIndex) MatchAll(ctx context.Context, size int) (*Result, error) {
	return b.search(ctx, bleve.NewMatchAllQuery(), size)
}

// NumericRange returns documents with min <= field <= max.
func (b *BleveIndex) NumericRange(ctx context.Context, field string, min, max float64, size int) (*Result, error) {
	spec, ok := b.schema.Lookup(field)
	if !ok || !spec.Range || spec.Kind == KindGeo {
		return nil, errNotRangeField(field)
	}
	inclusive := true
	q := bleve.NewNumericRangeInclusiveQuery(&min, &max, &inclusive, &inclusive)
	q.SetField(field)
	return b.search(ctx, q, size)
}

// GeoBox returns documents whose point lies inside the box.
func (b *BleveIndex) GeoBox(ctx context.Context, field string, topLeft, bottomRight GeoPoint, size int) (*Result, error) {
	spec, ok := b.schema.Lookup(field)
	if !ok || spec.Kind != KindGeo {
		return nil, errNotGeoField(field)
	}
	q := bleve.NewGeoBoundingBoxQuery(topLeft.Lon, topLeft.Lat, bottomRight.Lon, bottomRight.Lat)
	q.SetField(field)
	return b.search(ctx, q, size)
}

// Text returns documents whose field matches every term of text.
func (b *BleveIndex) Text(ctx context.Context, field, text string, size int) (*Result, error) {
	spec, ok := b.schema.Lookup(field)
	if !ok || !spec.Text {
		return nil, errNotTextField(field)
	}
	if strings.TrimSpace(text) == "" {
		return &Result{}, nil
	}
	q := bleve.NewMatchQuery(text)
	q.SetField(field)
	q.SetOperator(query.MatchQueryOperatorAnd)
	return b.search(ctx, q, size)
}

// Stored returns the stored fields of the document with the given id.
func (b *BleveIndex) Stored(ctx context.Context, id string) (map[string]any, error) {
	res, err := b.search(ctx, bleve.NewDocIDQuery([]string{id}), 1)
	if err != nil {
		return nil, err
	}
	if len(res.Hits) == 0 {
		return nil, errNotFound(id)
	}
	return res.Hits[0].Fields, nil
}

func (b *BleveIndex) search(ctx context.Context, q query.Query, size int) (*Result, error) {
	if err := b.checkOpen(); err != nil {
		return nil, err
	}

	req := bleve.NewSearchRequest(q)
	req.Size = max(size, 0)
	req.Fields = []string{"*"}

	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, errors.New(errors.ErrCodeIndexQuery, "search failed", err)
	}

	out := &Result{
		Total: res.Total,
		Hits:  make([]Hit, 0, len(res.Hits)),
	}
	for _, h := range res.Hits {
		fields := make(map[string]any, len(h.Fields))
		for k, v := range h.Fields {
			fields[k] = v
		}
		out.Hits = append(out.Hits, Hit{ID: h.ID, Fields: fields})
	}
	return out, nil
}

func (b *BleveIndex) checkOpen() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return errClosed()
	}
	return nil
}
