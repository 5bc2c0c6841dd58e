package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relstore/internal/compiler"
	"github.com/roach88/relstore/internal/store"
)

func runSchemaCmd(t *testing.T, opts *RootOptions, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewSchemaCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestSchemaBlogModelsText(t *testing.T) {
	out, err := runSchemaCmd(t, &RootOptions{Format: "text", Connection: store.DefaultConnection}, blogModelsDir)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled 5 model(s)")
	assert.Contains(t, out, "users (id)")
	assert.Contains(t, out, "  id: increment\n")
	assert.Contains(t, out, `  name: string = ""`)
	assert.Contains(t, out, "  email: string = null")
	assert.Contains(t, out, "  posts: hasMany → posts")
	assert.Contains(t, out, "  roles: belongsToMany → roles, role_user")
	assert.Contains(t, out, "role_user (user_id, role_id)")
	assert.Contains(t, out, "relation cycle: posts → users → posts")
}

func TestSchemaBlogModelsJSON(t *testing.T) {
	out, err := runSchemaCmd(t, &RootOptions{Format: "json", Connection: store.DefaultConnection}, blogModelsDir)
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Models []struct {
				Entity     string   `json:"entity"`
				PrimaryKey []string `json:"primaryKey"`
				Fields     []struct {
					Name    string   `json:"name"`
					Type    string   `json:"type"`
					Targets []string `json:"targets"`
				} `json:"fields"`
			} `json:"models"`
			Cycles []compiler.CycleInfo `json:"cycles"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Models, 5)

	posts := resp.Data.Models[1]
	assert.Equal(t, "posts", posts.Entity)
	assert.Equal(t, []string{"id"}, posts.PrimaryKey)

	var author []string
	for _, f := range posts.Fields {
		if f.Name == "author" {
			assert.Equal(t, "belongsTo", f.Type)
			author = f.Targets
		}
	}
	assert.Equal(t, []string{"users"}, author)

	require.Len(t, resp.Data.Cycles, 1)
	assert.Equal(t, []string{"posts", "users", "posts"}, resp.Data.Cycles[0].Path)
}

func TestSchemaOutputFile(t *testing.T) {
	outFile := filepath.Join(t.TempDir(), "schema.json")

	out, err := runSchemaCmd(t, &RootOptions{Format: "text", Connection: store.DefaultConnection}, blogModelsDir, "-o", outFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote schema to "+outFile)

	data, err := os.ReadFile(outFile)
	require.NoError(t, err)

	var result SchemaResult
	require.NoError(t, json.Unmarshal(data, &result))
	require.Len(t, result.Models, 5)
	assert.Equal(t, "users", result.Models[0].Entity)

	defaults := map[string]string{}
	for _, f := range result.Models[0].Fields {
		if f.Default != nil {
			defaults[f.Name] = string(f.Default)
		}
	}
	assert.Equal(t, `""`, defaults["name"])
	assert.Equal(t, "null", defaults["email"])
}

func TestSchemaCompileError(t *testing.T) {
	dir := writeModels(t, `
package test

model: users: {
	primaryKey: "id"
}
`)

	out, err := runSchemaCmd(t, &RootOptions{Format: "text", Connection: store.DefaultConnection}, dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "✗ Compilation failed")
	assert.Contains(t, out, compiler.ErrNoFields+": users.fields: fields are required")
}

func TestSchemaValidationError(t *testing.T) {
	out, err := runSchemaCmd(t, &RootOptions{Format: "text", Connection: store.DefaultConnection}, writeModels(t, unknownRelatedModels))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, compiler.ErrUnknownRelated)
}

func TestSchemaNonExistentDirectory(t *testing.T) {
	_, err := runSchemaCmd(t, &RootOptions{Format: "text"}, "/nonexistent/models")
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrCodeNotFound)
}

func TestParseCompileError(t *testing.T) {
	code, msg := parseCompileError(&LoadError{Code: ErrCodeNoFiles, Message: "no CUE files found in x"})
	assert.Equal(t, ErrCodeNoFiles, code)
	assert.Equal(t, "no CUE files found in x", msg)

	code, msg = parseCompileError(&compiler.CompileError{Field: "users.fields.id.type", Message: "type is required"})
	assert.Equal(t, compiler.ErrUnknownFieldType, code)
	assert.Equal(t, "type is required", msg)

	code, _ = parseCompileError(os.ErrNotExist)
	assert.Equal(t, ErrCodeGeneric, code)
}
