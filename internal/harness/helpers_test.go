package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const tagsModel = `
model: tags: fields: {
	id:   "attr"
	name: "string"
}
`

const libraryModel = `
model: authors: fields: {
	id:    "increment"
	name:  {type: "string", default: ""}
	books: {type: "hasMany", related: "books", foreignKey: "author_id"}
}

model: books: fields: {
	id:        "increment"
	author_id: {type: "attr", default: null}
	title:     {type: "string", default: ""}
	pages:     {type: "number", default: 0}
}
`

// writeModel writes a CUE model file into a temp dir and returns its path.
func writeModel(t *testing.T, name, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(src), 0644))
	return path
}

func intPtr(n int) *int { return &n }
