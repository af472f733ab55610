package store

import (
	"fmt"
	"os"
	"strings"

	"github.com/Aman-CERP/taxidx/internal/errors"
)

// Backend names an index engine.
type Backend string

const (
	// BackendBleve uses a Bleve v2 index directory (default).
	BackendBleve Backend = "bleve"

	// BackendSQLite uses a single SQLite database file with FTS5.
	BackendSQLite Backend = "sqlite"
)

// Backends lists the supported engines.
func Backends() []Backend {
	return []Backend{BackendBleve, BackendSQLite}
}

// ParseBackend validates a backend name. Empty selects the default.
func ParseBackend(name string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(name))) {
	case BackendBleve, "":
		return BackendBleve, nil
	case BackendSQLite:
		return BackendSQLite, nil
	default:
		return "", errors.New(errors.ErrCodeInvalidBackend,
			fmt.Sprintf("unknown index backend %q", name), nil).
			WithSuggestion("Valid backends: bleve, sqlite")
	}
}

// Open opens or creates an index of the given backend at path.
// If path is empty, creates an in-memory index.
func Open(backend string, path string, schema Schema) (Index, error) {
	b, err := ParseBackend(backend)
	if err != nil {
		return nil, err
	}
	switch b {
	case BackendSQLite:
		return NewSQLiteIndex(path, schema)
	default:
		return NewBleveIndex(path, schema)
	}
}

// DetectBackend reports which engine created the index at path, or an
// empty string when nothing exists there.
func DetectBackend(path string) Backend {
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}
	if info.IsDir() {
		return BackendBleve
	}
	return BackendSQLite
}
