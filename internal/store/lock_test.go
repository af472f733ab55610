package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/taxidx/internal/errors"
)

func TestIndexLock_SecondHolderRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "taxis.bleve")

	// Given: a held lock
	first := NewIndexLock(path)
	require.NoError(t, first.TryLock())
	assert.Equal(t, path+".lock", first.Path())

	// When: a second run tries the same output
	second := NewIndexLock(path)
	err := second.TryLock()

	// Then: it is refused
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeIndexLocked, errors.GetCode(err))
	assert.True(t, errors.IsIO(err))

	// And: succeeds once released
	require.NoError(t, first.Unlock())
	require.NoError(t, second.TryLock())
	require.NoError(t, second.Unlock())
}

func TestIndexLock_UnlockWithoutLock(t *testing.T) {
	l := NewIndexLock(filepath.Join(t.TempDir(), "x"))
	assert.NoError(t, l.Unlock())
	assert.NoError(t, l.Unlock())
}
