package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/relstore/internal/queryir"
	"github.com/roach88/relstore/internal/value"
)

// RecordsTable is the SQLite table holding every stored record.
const RecordsTable = "records"

// SQLCompiler compiles queryir selects to parameterized SQL over the
// records table, where each row holds one record as JSON in data.
//
// Only the filter is compiled. Ordering and paging follow Go value ordering
// (queryir.Compare), which SQLite collation cannot reproduce, so callers apply
// them after the rows come back.
//
// CRITICAL: All values are parameterized, including JSON paths.
// CRITICAL: Every query ends in ORDER BY key for deterministic results.
type SQLCompiler struct{}

// NewSQLCompiler creates a new SQLCompiler.
func NewSQLCompiler() *SQLCompiler {
	return &SQLCompiler{}
}

// Compile converts sel into a query returning (key, data) rows of
// sel.From in the given connection. Returns (sql, params, error).
//
// Non-portable selects (see queryir.Validate) fail to compile.
func (c *SQLCompiler) Compile(connection string, sel queryir.Select) (string, []any, error) {
	if sel.From == "" {
		return "", nil, fmt.Errorf("cannot compile select without entity")
	}

	var b strings.Builder
	b.WriteString("SELECT key, data FROM ")
	b.WriteString(RecordsTable)
	b.WriteString(" WHERE connection = ? AND entity = ?")
	params := []any{connection, sel.From}

	if sel.Filter != nil {
		filterSQL, filterParams, err := c.compilePredicate(sel.Filter)
		if err != nil {
			return "", nil, fmt.Errorf("compile filter: %w", err)
		}
		b.WriteString(" AND (")
		b.WriteString(filterSQL)
		b.WriteString(")")
		params = append(params, filterParams...)
	}

	b.WriteString(" ORDER BY key COLLATE BINARY ASC")
	return b.String(), params, nil
}

// compilePredicate compiles p to a WHERE fragment.
// CRITICAL: Values NEVER interpolated - always use ? placeholders.
func (c *SQLCompiler) compilePredicate(p queryir.Predicate) (string, []any, error) {
	switch pred := p.(type) {
	case nil:
		return "1 = 1", nil, nil
	case queryir.Equals:
		return c.compileEquals(pred)
	case *queryir.Equals:
		return c.compileEquals(*pred)
	case queryir.In:
		return c.compileIn(pred)
	case *queryir.In:
		return c.compileIn(*pred)
	case queryir.And:
		return c.compileJunction(pred.Predicates, " AND ", "1 = 1")
	case *queryir.And:
		return c.compileJunction(pred.Predicates, " AND ", "1 = 1")
	case queryir.Or:
		return c.compileJunction(pred.Predicates, " OR ", "1 = 0")
	case *queryir.Or:
		return c.compileJunction(pred.Predicates, " OR ", "1 = 0")
	default:
		return "", nil, fmt.Errorf("unsupported predicate type: %T", p)
	}
}

// compileEquals compares the field's key form, so 10 and "10" match the
// same way they do in memory.
func (c *SQLCompiler) compileEquals(eq queryir.Equals) (string, []any, error) {
	expr, exprParams, err := keyExpr(eq.Field)
	if err != nil {
		return "", nil, err
	}
	param, err := keyParam(eq.Value)
	if err != nil {
		return "", nil, fmt.Errorf("field %q: %w", eq.Field, err)
	}
	return expr + " = ?", append(exprParams, param), nil
}

func (c *SQLCompiler) compileIn(in queryir.In) (string, []any, error) {
	if len(in.Values) == 0 {
		return "1 = 0", nil, nil
	}
	expr, params, err := keyExpr(in.Field)
	if err != nil {
		return "", nil, err
	}
	placeholders := make([]string, len(in.Values))
	for i, v := range in.Values {
		param, err := keyParam(v)
		if err != nil {
			return "", nil, fmt.Errorf("field %q: %w", in.Field, err)
		}
		placeholders[i] = "?"
		params = append(params, param)
	}
	return expr + " IN (" + strings.Join(placeholders, ", ") + ")", params, nil
}

func (c *SQLCompiler) compileJunction(preds []queryir.Predicate, sep, empty string) (string, []any, error) {
	if len(preds) == 0 {
		return empty, nil, nil
	}
	var parts []string
	var params []any
	for _, pred := range preds {
		sql, predParams, err := c.compilePredicate(pred)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, "("+sql+")")
		params = append(params, predParams...)
	}
	return strings.Join(parts, sep), params, nil
}

// keyExpr renders the key form of a JSON field: booleans as true/false,
// numbers and strings as text.
func keyExpr(field string) (string, []any, error) {
	path, err := FieldPath(field)
	if err != nil {
		return "", nil, err
	}
	expr := "(CASE json_type(data, ?) WHEN 'true' THEN 'true' WHEN 'false' THEN 'false' " +
		"ELSE CAST(json_extract(data, ?) AS TEXT) END)"
	return expr, []any{path, path}, nil
}

// FieldPath returns the JSON path selecting a top-level field.
func FieldPath(field string) (string, error) {
	if field == "" {
		return "", fmt.Errorf("empty field name")
	}
	if strings.ContainsAny(field, "\"\\") {
		return "", fmt.Errorf("field %q: quotes and backslashes are not supported in JSON paths", field)
	}
	return `$."` + field + `"`, nil
}

// keyParam converts a literal to its key string. Floats are rejected since
// SQLite renders REAL values differently from Go.
func keyParam(v value.Value) (any, error) {
	if _, isFloat := v.(value.Float); isFloat {
		return nil, fmt.Errorf("float literals cannot be compared in SQL")
	}
	k, ok := value.Key(v)
	if !ok {
		return nil, fmt.Errorf("%s literal cannot be used as SQL parameter", value.TypeName(v))
	}
	return k, nil
}
