package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relstore/internal/testutil"
	"github.com/roach88/relstore/internal/value"
)

func blogContext(t *testing.T) *AssertionContext {
	return &AssertionContext{
		Registry: testutil.BlogRegistry(t),
		Store:    testutil.SeededMemory(t),
		Ctx:      context.Background(),
	}
}

func TestEvaluateAssertions_Pass(t *testing.T) {
	actx := blogContext(t)

	errs := EvaluateAssertions([]Assertion{
		{Type: AssertRecord, Entity: "users", Key: "1", Expect: map[string]any{"name": "ann", "active": true}},
		{Type: AssertRecord, Entity: "posts", Key: "11", Expect: map[string]any{"votes": 7.0}},
		{Type: AssertAbsent, Entity: "users", Key: "99"},
		{Type: AssertCount, Entity: "posts", Where: map[string]any{"user_id": 1}, Count: 2},
		{Type: AssertCount, Entity: "users", Count: 3},
		{Type: AssertQuery, Entity: "posts", OrderBy: "-votes", Rows: []map[string]any{
			{"title": "second"},
			{"title": "first"},
			{"title": "third"},
		}},
		{Type: AssertQuery, Entity: "users", Where: map[string]any{"name": "ann"}, With: []string{"posts"}, Rows: []map[string]any{
			{"name": "ann", "posts": []any{
				map[string]any{"title": "first"},
				map[string]any{"title": "second"},
			}},
		}},
		{Type: AssertQuery, Entity: "users", Where: map[string]any{"name": "nobody"}, Rows: []map[string]any{}},
	}, actx)

	assert.Empty(t, errs)
}

func TestEvaluateAssertions_Failures(t *testing.T) {
	actx := blogContext(t)

	tests := []struct {
		name      string
		assertion Assertion
		contains  string
	}{
		{
			name:      "record missing",
			assertion: Assertion{Type: AssertRecord, Entity: "users", Key: "99", Expect: map[string]any{"name": "ann"}},
			contains:  "record not found",
		},
		{
			name:      "record field differs",
			assertion: Assertion{Type: AssertRecord, Entity: "users", Key: "2", Expect: map[string]any{"name": "ann"}},
			contains:  "mismatch at name",
		},
		{
			name:      "record field absent",
			assertion: Assertion{Type: AssertRecord, Entity: "users", Key: "2", Expect: map[string]any{"email": "b@x"}},
			contains:  "mismatch at email",
		},
		{
			name:      "absent but present",
			assertion: Assertion{Type: AssertAbsent, Entity: "users", Key: "3"},
			contains:  `"name":"cat"`,
		},
		{
			name:      "count differs",
			assertion: Assertion{Type: AssertCount, Entity: "posts", Where: map[string]any{"user_id": 2}, Count: 5},
			contains:  "1 record(s)",
		},
		{
			name: "query row count differs",
			assertion: Assertion{Type: AssertQuery, Entity: "users", Rows: []map[string]any{
				{"name": "ann"},
			}},
			contains: "1 row(s) from users",
		},
		{
			name: "query row differs",
			assertion: Assertion{Type: AssertQuery, Entity: "users", OrderBy: "name", Where: map[string]any{"active": true}, Rows: []map[string]any{
				{"name": "ann"},
				{"name": "bob"},
			}},
			contains: "rows[1]",
		},
		{
			name:      "query unknown relation",
			assertion: Assertion{Type: AssertQuery, Entity: "users", With: []string{"nope"}, Rows: []map[string]any{}},
			contains:  "query error",
		},
		{
			name:      "unknown type",
			assertion: Assertion{Type: "trace_order", Entity: "users"},
			contains:  `unknown assertion type "trace_order"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := EvaluateAssertions([]Assertion{tt.assertion}, actx)
			require.Len(t, errs, 1)
			assert.Contains(t, errs[0], tt.contains)
		})
	}
}

func TestEvaluateAssertions_NoContext(t *testing.T) {
	errs := EvaluateAssertions([]Assertion{{Type: AssertCount, Entity: "users"}}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "requires store context")
}

func TestMatchSubset(t *testing.T) {
	actual := value.Object{
		"id":   value.Int(1),
		"tags": value.Array{value.String("a"), value.String("b")},
		"meta": value.Object{"score": value.Float(1.5), "ok": value.Bool(true)},
	}

	tests := []struct {
		name     string
		want     value.Value
		wantPath string
		ok       bool
	}{
		{"subset", value.Object{"id": value.Int(1)}, "", true},
		{"number by value", value.Object{"id": value.Float(1)}, "", true},
		{"nested", value.Object{"meta": value.Object{"score": value.Float(1.5)}}, "", true},
		{"array", value.Object{"tags": value.Array{value.String("a"), value.String("b")}}, "", true},
		{"array length", value.Object{"tags": value.Array{value.String("a")}}, "tags", false},
		{"array element", value.Object{"tags": value.Array{value.String("a"), value.String("c")}}, "tags[1]", false},
		{"nested differs", value.Object{"meta": value.Object{"ok": value.Bool(false)}}, "meta.ok", false},
		{"missing key", value.Object{"name": value.String("x")}, "name", false},
		{"type differs", value.Object{"id": value.String("1")}, "id", false},
		{"root", value.Array{}, "(root)", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, ok := matchSubset(actual, tt.want, "")
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.wantPath, path)
		})
	}
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{Type: AssertCount, Expected: "2 users record(s)", Actual: "3 record(s)"}
	assert.Equal(t, "Assertion failed: count\n  Expected: 2 users record(s)\n  Actual: 3 record(s)", err.Error())
}

func TestFormatWhere(t *testing.T) {
	assert.Equal(t, "(no conditions)", formatWhere(nil))
	assert.Equal(t, "a=1 AND b=x", formatWhere(map[string]any{"b": "x", "a": 1}))
}
