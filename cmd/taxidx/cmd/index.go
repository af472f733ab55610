package cmd

import (
	"fmt"

	"github.com/Aman-CERP/taxidx/internal/errors"
	"github.com/Aman-CERP/taxidx/internal/store"
	"github.com/Aman-CERP/taxidx/internal/taxi"
)

// openIndex opens an existing index for reading. The engine is detected
// from what is on disk unless backend is given.
func openIndex(path, backend string) (store.Index, error) {
	detected := store.DetectBackend(path)
	if detected == "" {
		return nil, errors.New(errors.ErrCodeIndexNotFound,
			fmt.Sprintf("no index found at %s", path), nil).
			WithSuggestion("Run 'taxidx ingest' to create one")
	}
	if backend == "" {
		backend = string(detected)
	}
	b, err := store.ParseBackend(backend)
	if err != nil {
		return nil, err
	}
	if b != detected {
		return nil, errors.New(errors.ErrCodeInvalidBackend,
			fmt.Sprintf("%s holds a %s index, not %s", path, detected, b), nil)
	}
	return store.Open(string(b), path, taxi.Schema())
}
