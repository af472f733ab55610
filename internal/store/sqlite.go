package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/Aman-CERP/taxidx/internal/errors"
)

// SQLiteIndex stores documents in a SQLite table with one column per field
// and an FTS5 table for text fields. Added documents are held in memory and
// written in a single transaction on Commit.
type SQLiteIndex struct {
	mu      sync.Mutex
	db      *sql.DB
	path    string
	schema  Schema
	columns []column
	text    []string
	pending []pendingRow
	closed  bool
}

var _ Index = (*SQLiteIndex)(nil)

// column is one SQL column of the documents table.
type column struct {
	name  string // SQL column name
	field string // schema field name
	kind  FieldKind
	geo   byte // 'x' for longitude, 'y' for latitude, 0 otherwise
}

type pendingRow struct {
	id     string
	values []any
	text   []any
}

// validateSQLiteIntegrity checks if an existing database is valid before
// opening. Returns nil if valid or absent.
func validateSQLiteIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master
                       WHERE type='table' AND name='documents'`).Scan(&count)
	if err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("table 'documents' missing")
	}
	return nil
}

// NewSQLiteIndex opens or creates a SQLite index at path.
// If path is empty, creates an in-memory index.
func NewSQLiteIndex(path string, schema Schema) (*SQLiteIndex, error) {
	if err := schema.Validate(); err != nil {
		return nil, errors.InternalError("invalid index schema", err)
	}

	var dsn string
	if path == "" {
		dsn = ":memory:"
	} else {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, errors.New(errors.ErrCodeIndexOpen,
					fmt.Sprintf("failed to create directory %s", dir), err)
			}
		}

		if validErr := validateSQLiteIntegrity(path); validErr != nil {
			slog.Warn("sqlite_index_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, errors.New(errors.ErrCodeCorruptIndex,
					fmt.Sprintf("index corrupted at %s and cannot be removed", path), removeErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")
			slog.Info("sqlite_index_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected"))
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.New(errors.ErrCodeIndexOpen, "failed to open database", err)
	}

	// One connection: required for :memory: and keeps a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, errors.New(errors.ErrCodeIndexOpen, "failed to set pragma", err)
		}
	}

	idx := &SQLiteIndex{
		db:     db,
		path:   path,
		schema: schema,
	}
	idx.columns, idx.text = columnsFor(schema)

	if err := idx.initSchema(); err != nil {
		_ = db.Close()
		return nil, errors.New(errors.ErrCodeIndexOpen, "failed to initialize schema", err)
	}
	return idx, nil
}

func columnsFor(schema Schema) ([]column, []string) {
	var cols []column
	var text []string
	for _, f := range schema {
		switch f.Kind {
		case KindGeo:
			cols = append(cols,
				column{name: f.Name + "_lon", field: f.Name, kind: f.Kind, geo: 'x'},
				column{name: f.Name + "_lat", field: f.Name, kind: f.Kind, geo: 'y'})
		default:
			cols = append(cols, column{name: f.Name, field: f.Name, kind: f.Kind})
		}
		if f.Text {
			text = append(text, f.Name)
		}
	}
	return cols, text
}

func (c column) sqlType() string {
	switch c.kind {
	case KindInt:
		return "INTEGER"
	case KindText:
		return "TEXT"
	default:
		return "REAL"
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// initSchema creates the documents table, its range indexes and the FTS5
// table for text fields.
func (s *SQLiteIndex) initSchema() error {
	defs := []string{"id TEXT PRIMARY KEY"}
	for _, c := range s.columns {
		defs = append(defs, quoteIdent(c.name)+" "+c.sqlType())
	}

	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS documents (%s)", strings.Join(defs, ", ")),
	}
	for _, f := range s.schema {
		if !f.Range {
			continue
		}
		cols := quoteIdent(f.Name)
		if f.Kind == KindGeo {
			cols = quoteIdent(f.Name+"_lon") + ", " + quoteIdent(f.Name+"_lat")
		}
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON documents (%s)",
			quoteIdent("idx_"+f.Name), cols))
	}
	if len(s.text) > 0 {
		cols := []string{"id UNINDEXED"}
		for _, name := range s.text {
			cols = append(cols, quoteIdent(name))
		}
		stmts = append(stmts, fmt.Sprintf(
			"CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(%s, tokenize='unicode61')",
			strings.Join(cols, ", ")))
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("%s: %w", stmt, err)
		}
	}
	return nil
}

// Add appends doc to the pending rows.
func (s *SQLiteIndex) Add(ctx context.Context, doc Document) error {
	values, err := fieldValues(s.schema, doc)
	if err != nil {
		return err
	}

	row := pendingRow{
		id:     doc.ID,
		values: make([]any, len(s.columns)),
		text:   make([]any, len(s.text)),
	}
	for i, c := range s.columns {
		v, ok := values[c.field]
		if !ok {
			continue
		}
		switch c.geo {
		case 'x':
			row.values[i] = v.(GeoPoint).Lon
		case 'y':
			row.values[i] = v.(GeoPoint).Lat
		default:
			row.values[i] = v
		}
	}
	for i, name := range s.text {
		if v, ok := values[name]; ok {
			row.text[i] = v
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errClosed()
	}
	s.pending = append(s.pending, row)
	return nil
}

// Commit writes every pending row in one transaction. On failure the rows
// are discarded.
func (s *SQLiteIndex) Commit(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errClosed()
	}
	return s.commitLocked(ctx)
}

// commitLocked writes the pending rows. Rows that fail to commit are
// dropped so that later commits by other callers start clean.
func (s *SQLiteIndex) commitLocked(ctx context.Context) error {
	n := len(s.pending)
	if n == 0 {
		return nil
	}

	err := s.writeRows(ctx, s.pending)
	clear(s.pending)
	s.pending = s.pending[:0]
	if err != nil {
		slog.Warn("index_batch_dropped",
			slog.String("backend", string(BackendSQLite)),
			slog.Int("documents", n),
			slog.String("error", err.Error()))
		return errors.New(errors.ErrCodeIndexCommit, "failed to commit documents", err).
			WithDetail("dropped", fmt.Sprintf("%d", n))
	}
	return nil
}

func (s *SQLiteIndex) writeRows(ctx context.Context, rows []pendingRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	names := []string{"id"}
	marks := []string{"?"}
	for _, c := range s.columns {
		names = append(names, quoteIdent(c.name))
		marks = append(marks, "?")
	}
	insertStmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT OR REPLACE INTO documents (%s) VALUES (%s)",
		strings.Join(names, ", "), strings.Join(marks, ", ")))
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer insertStmt.Close()

	var deleteFTS, insertFTS *sql.Stmt
	if len(s.text) > 0 {
		// FTS5 virtual tables don't support REPLACE, so delete first.
		deleteFTS, err = tx.PrepareContext(ctx, `DELETE FROM documents_fts WHERE id = ?`)
		if err != nil {
			return fmt.Errorf("failed to prepare FTS delete statement: %w", err)
		}
		defer deleteFTS.Close()

		ftsNames := []string{"id"}
		ftsMarks := []string{"?"}
		for _, name := range s.text {
			ftsNames = append(ftsNames, quoteIdent(name))
			ftsMarks = append(ftsMarks, "?")
		}
		insertFTS, err = tx.PrepareContext(ctx, fmt.Sprintf(
			"INSERT INTO documents_fts (%s) VALUES (%s)",
			strings.Join(ftsNames, ", "), strings.Join(ftsMarks, ", ")))
		if err != nil {
			return fmt.Errorf("failed to prepare FTS insert statement: %w", err)
		}
		defer insertFTS.Close()
	}

	for _, row := range rows {
		args := append([]any{row.id}, row.values...)
		if _, err := insertStmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("failed to insert document %s: %w", row.id, err)
		}
		if insertFTS == nil {
			continue
		}
		if _, err := deleteFTS.ExecContext(ctx, row.id); err != nil {
			return fmt.Errorf("failed to delete text of document %s: %w", row.id, err)
		}
		if _, err := insertFTS.ExecContext(ctx, append([]any{row.id}, row.text...)...); err != nil {
			return fmt.Errorf("failed to index text of document %s: %w", row.id, err)
		}
	}

	return tx.Commit()
}

// Close commits pending rows, checkpoints the WAL and closes the database.
func (s *SQLiteIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	commitErr := s.commitLocked(context.Background())
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	if err := s.db.Close(); err != nil {
		return errors.New(errors.ErrCodeIndexWrite, "failed to close database", err)
	}
	return commitErr
}

// DocCount returns the number of committed documents.
func (s *SQLiteIndex) DocCount(ctx context.Context) (uint64, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}
	var n uint64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, errors.New(errors.ErrCodeIndexQuery, "failed to count documents", err)
	}
	return n, nil
}

// MatchAll returns up to size documents in insertion order.
func (s *SQLiteIndex) MatchAll(ctx context.Context, size int) (*Result, error) {
	return s.query(ctx, "1 = 1", nil, size)
}

// NumericRange returns documents with min <= field <= max.
func (s *SQLiteIndex) NumericRange(ctx context.Context, field string, min, max float64, size int) (*Result, error) {
	spec, ok := s.schema.Lookup(field)
	if !ok || !spec.Range || spec.Kind == KindGeo {
		return nil, errNotRangeField(field)
	}
	return s.query(ctx, quoteIdent(field)+" BETWEEN ? AND ?", []any{min, max}, size)
}

// GeoBox returns documents whose point lies inside the box.
func (s *SQLiteIndex) GeoBox(ctx context.Context, field string, topLeft, bottomRight GeoPoint, size int) (*Result, error) {
	spec, ok := s.schema.Lookup(field)
	if !ok || spec.Kind != KindGeo {
		return nil, errNotGeoField(field)
	}
	where := fmt.Sprintf("%s BETWEEN ? AND ? AND %s BETWEEN ? AND ?",
		quoteIdent(field+"_lon"), quoteIdent(field+"_lat"))
	args := []any{topLeft.Lon, bottomRight.Lon, bottomRight.Lat, topLeft.Lat}
	return s.query(ctx, where, args, size)
}

// Text returns documents whose field matches every term of text.
func (s *SQLiteIndex) Text(ctx context.Context, field, text string, size int) (*Result, error) {
	spec, ok := s.schema.Lookup(field)
	if !ok || !spec.Text {
		return nil, errNotTextField(field)
	}
	match := ftsQuery(text)
	if match == "" {
		return &Result{}, nil
	}
	where := fmt.Sprintf("id IN (SELECT id FROM documents_fts WHERE documents_fts.%s MATCH ?)", quoteIdent(field))
	return s.query(ctx, where, []any{match}, size)
}

// Stored returns the stored fields of the document with the given id.
func (s *SQLiteIndex) Stored(ctx context.Context, id string) (map[string]any, error) {
	res, err := s.query(ctx, "id = ?", []any{id}, 1)
	if err != nil {
		return nil, err
	}
	if len(res.Hits) == 0 {
		return nil, errNotFound(id)
	}
	return res.Hits[0].Fields, nil
}

// ftsQuery turns free text into an FTS5 query that requires every term.
func ftsQuery(text string) string {
	terms := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, t := range terms {
		terms[i] = `"` + t + `"`
	}
	return strings.Join(terms, " ")
}

// storedColumns lists the columns returned in hits, in schema order.
func (s *SQLiteIndex) storedColumns() []column {
	var cols []column
	for _, c := range s.columns {
		spec, _ := s.schema.Lookup(c.field)
		if c.geo == 0 && (spec.Stored || spec.Text) {
			cols = append(cols, c)
		}
	}
	return cols
}

func (s *SQLiteIndex) query(ctx context.Context, where string, args []any, size int) (*Result, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var total uint64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE "+where, args...).Scan(&total); err != nil {
		return nil, errors.New(errors.ErrCodeIndexQuery, "search failed", err)
	}

	cols := s.storedColumns()
	names := []string{"id"}
	for _, c := range cols {
		names = append(names, quoteIdent(c.name))
	}
	q := fmt.Sprintf("SELECT %s FROM documents WHERE %s ORDER BY rowid LIMIT ?",
		strings.Join(names, ", "), where)

	rows, err := s.db.QueryContext(ctx, q, append(args, max(size, 0))...)
	if err != nil {
		return nil, errors.New(errors.ErrCodeIndexQuery, "search failed", err)
	}
	defer rows.Close()

	out := &Result{Total: total}
	for rows.Next() {
		var id string
		raw := make([]any, len(cols))
		dest := []any{&id}
		for i := range raw {
			dest = append(dest, &raw[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, errors.New(errors.ErrCodeIndexQuery, "failed to scan result", err)
		}

		fields := make(map[string]any, len(cols))
		for i, c := range cols {
			switch v := raw[i].(type) {
			case nil:
			case []byte:
				fields[c.field] = string(v)
			case string:
				fields[c.field] = v
			default:
				// Numbers are reported as float64 like the Bleve engine does.
				if f, ok := toFloat(v); ok {
					fields[c.field] = f
				}
			}
		}
		out.Hits = append(out.Hits, Hit{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.ErrCodeIndexQuery, "search failed", err)
	}
	return out, nil
}

func (s *SQLiteIndex) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed()
	}
	return nil
}
