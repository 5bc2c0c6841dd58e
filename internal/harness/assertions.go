package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/relstore/internal/model"
	"github.com/roach88/relstore/internal/query"
	"github.com/roach88/relstore/internal/queryir"
	"github.com/roach88/relstore/internal/store"
	"github.com/roach88/relstore/internal/value"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// AssertionContext provides store access for evaluating assertions.
type AssertionContext struct {
	Registry *model.Registry
	Store    store.Store
	Ctx      context.Context
}

func (a *AssertionContext) query(entity string) *query.Query {
	return query.New(a.Registry, a.Store, a.Registry.Connection(), entity)
}

// EvaluateAssertions evaluates all assertions and returns a message per
// failed one.
func EvaluateAssertions(assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		if actx == nil || actx.Store == nil || actx.Registry == nil {
			err = fmt.Errorf("assertion[%d]: %s requires store context", i, assertion.Type)
		} else {
			switch assertion.Type {
			case AssertRecord:
				err = assertRecord(actx, assertion)
			case AssertAbsent:
				err = assertAbsent(actx, assertion)
			case AssertCount:
				err = assertCount(actx, assertion)
			case AssertQuery:
				err = assertQuery(actx, assertion)
			default:
				err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
			}
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}

// assertRecord checks the record stored under a key (subset match).
func assertRecord(actx *AssertionContext, a Assertion) error {
	table, err := actx.Store.GetTable(actx.Ctx, actx.Registry.Connection(), a.Entity)
	if err != nil {
		return err
	}
	rec, ok := table[a.Key]
	if !ok {
		return &AssertionError{
			Type:     AssertRecord,
			Expected: fmt.Sprintf("record %s[%s]", a.Entity, a.Key),
			Actual:   "record not found",
		}
	}

	want, err := value.FromGo(a.Expect)
	if err != nil {
		return fmt.Errorf("record %s[%s]: %w", a.Entity, a.Key, err)
	}
	if path, ok := matchSubset(rec, want, ""); !ok {
		return &AssertionError{
			Type:     AssertRecord,
			Expected: fmt.Sprintf("%s[%s] to match %s", a.Entity, a.Key, render(want)),
			Actual:   fmt.Sprintf("%s (mismatch at %s)", render(rec), path),
		}
	}
	return nil
}

// assertAbsent checks that no record is stored under a key.
func assertAbsent(actx *AssertionContext, a Assertion) error {
	table, err := actx.Store.GetTable(actx.Ctx, actx.Registry.Connection(), a.Entity)
	if err != nil {
		return err
	}
	if rec, ok := table[a.Key]; ok {
		return &AssertionError{
			Type:     AssertAbsent,
			Expected: fmt.Sprintf("no record %s[%s]", a.Entity, a.Key),
			Actual:   render(rec),
		}
	}
	return nil
}

// assertCount checks the number of records, filtered by where.
func assertCount(actx *AssertionContext, a Assertion) error {
	n, err := buildQuery(actx, a).Count(actx.Ctx)
	if err != nil {
		return err
	}
	if n != a.Count {
		return &AssertionError{
			Type:     AssertCount,
			Expected: fmt.Sprintf("%d %s record(s) where %s", a.Count, a.Entity, formatWhere(a.Where)),
			Actual:   fmt.Sprintf("%d record(s)", n),
		}
	}
	return nil
}

// assertQuery runs a query and matches each returned row against the
// expected row at the same position.
func assertQuery(actx *AssertionContext, a Assertion) error {
	rows, err := buildQuery(actx, a).Get(actx.Ctx)
	if err != nil {
		return &AssertionError{
			Type:     AssertQuery,
			Expected: fmt.Sprintf("query %s", a.Entity),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}

	if len(rows) != len(a.Rows) {
		return &AssertionError{
			Type:     AssertQuery,
			Expected: fmt.Sprintf("%d row(s) from %s", len(a.Rows), a.Entity),
			Actual:   fmt.Sprintf("%d row(s): %s", len(rows), renderRows(rows)),
		}
	}

	for i, row := range rows {
		want, err := value.FromGo(a.Rows[i])
		if err != nil {
			return fmt.Errorf("query %s rows[%d]: %w", a.Entity, i, err)
		}
		if path, ok := matchSubset(row, want, ""); !ok {
			return &AssertionError{
				Type:     AssertQuery,
				Expected: fmt.Sprintf("rows[%d] to match %s", i, render(want)),
				Actual:   fmt.Sprintf("%s (mismatch at %s)", render(row), path),
			}
		}
	}
	return nil
}

func buildQuery(actx *AssertionContext, a Assertion) *query.Query {
	q := actx.query(a.Entity)

	names := make([]string, 0, len(a.Where))
	for name := range a.Where {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		q.Where(name, a.Where[name])
	}

	if a.OrderBy != "" {
		field, dir := a.OrderBy, queryir.Asc
		if rest, ok := strings.CutPrefix(a.OrderBy, "-"); ok {
			field, dir = rest, queryir.Desc
		}
		q.OrderBy(field, dir)
	}
	if len(a.With) > 0 {
		q.With(a.With...)
	}
	return q
}

// matchSubset reports whether actual contains want: objects match on the
// keys of want, arrays element-wise with equal length, numbers by value.
// On mismatch it returns the path of the first difference.
func matchSubset(actual, want value.Value, path string) (string, bool) {
	switch w := want.(type) {
	case value.Object:
		a, ok := actual.(value.Object)
		if !ok {
			return pathOr(path), false
		}
		for _, k := range w.SortedKeys() {
			child := k
			if path != "" {
				child = path + "." + k
			}
			av, present := a[k]
			if !present {
				return child, false
			}
			if p, ok := matchSubset(av, w[k], child); !ok {
				return p, false
			}
		}
		return "", true
	case value.Array:
		a, ok := actual.(value.Array)
		if !ok || len(a) != len(w) {
			return pathOr(path), false
		}
		for i := range w {
			if p, ok := matchSubset(a[i], w[i], fmt.Sprintf("%s[%d]", path, i)); !ok {
				return p, false
			}
		}
		return "", true
	default:
		if wn, ok := value.Number(want); ok {
			an, ok := value.Number(actual)
			if !ok || an != wn {
				return pathOr(path), false
			}
			return "", true
		}
		if !value.Equal(actual, want) {
			return pathOr(path), false
		}
		return "", true
	}
}

func pathOr(path string) string {
	if path == "" {
		return "(root)"
	}
	return path
}

func render(v value.Value) string {
	data, err := value.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func renderRows(rows []value.Object) string {
	arr := make(value.Array, len(rows))
	for i, row := range rows {
		arr[i] = row
	}
	return render(arr)
}

// formatWhere describes a where map in sorted key order.
func formatWhere(where map[string]any) string {
	if len(where) == 0 {
		return "(no conditions)"
	}
	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, where[k]))
	}
	return strings.Join(parts, " AND ")
}
