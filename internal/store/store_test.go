package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relstore/internal/queryir"
	"github.com/roach88/relstore/internal/value"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "Open() iteration %d", i)
		s.Close()
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	for _, table := range []string{"records", "entities"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		assert.NoError(t, err, "table %q not found after idempotent opens", table)
	}
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	assert.NoError(t, s.verifyPragma(ctx, "journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma(ctx, "synchronous", "1"))
	assert.NoError(t, s.verifyPragma(ctx, "busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma(ctx, "foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma(ctx, "user_version", "1"))
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(MemoryPath)
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.SetTable(ctx, DefaultConnection, "users", Table{"1": {"id": value.Int(1)}}))

	got, err := s.GetTable(ctx, DefaultConnection, "users")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMigrateToV1_RegistersExistingEntities(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)

	// Simulate a pre-v1 database: records without entities rows.
	_, err = s.db.Exec(`INSERT INTO records (connection, entity, key, data, hash) VALUES ('default', 'users', '1', '{"id":1}', 'x')`)
	require.NoError(t, err)
	_, err = s.db.Exec(`PRAGMA user_version = 0`)
	require.NoError(t, err)
	s.Close()

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	names, err := s.Entities(context.Background(), DefaultConnection)
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, names)
}

func TestSQLite_SkipsUnchangedRows(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	table := Table{"1": {"id": value.Int(1), "name": value.String("John")}}
	require.NoError(t, s.SetTable(ctx, DefaultConnection, "users", table))

	// Corrupt the stored data but keep the hash: an unchanged write must
	// not touch the row.
	_, err := s.db.Exec(`UPDATE records SET data = '{"id":1,"name":"stale"}' WHERE key = '1'`)
	require.NoError(t, err)

	require.NoError(t, s.SetTable(ctx, DefaultConnection, "users", table))

	got, err := s.GetTable(ctx, DefaultConnection, "users")
	require.NoError(t, err)
	assert.Equal(t, value.String("stale"), got["1"]["name"])
}

func TestSQLite_SelectFallsBackForMatch(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetTable(ctx, DefaultConnection, "users", Table{
		"1": {"id": value.Int(1), "age": value.Int(20)},
		"2": {"id": value.Int(2), "age": value.Int(40)},
	}))

	rows, err := s.Select(ctx, DefaultConnection, queryir.Select{
		From: "users",
		Filter: queryir.Match{Name: "adult", Fn: func(o value.Object) bool {
			n, _ := value.Number(o["age"])
			return n >= 30
		}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, value.Int(2), rows[0]["id"])
}
