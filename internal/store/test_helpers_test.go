package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// createTestStore creates a file-backed SQLite store for testing.
func createTestStore(t *testing.T) *SQLite {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// backends returns every Store implementation under a name.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	return map[string]Store{
		"memory": NewMemory(),
		"sqlite": createTestStore(t),
	}
}
