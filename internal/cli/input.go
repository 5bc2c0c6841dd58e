package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/relstore/internal/queryir"
	"github.com/roach88/relstore/internal/value"
)

// readData reads record data from path, or from stdin when path is empty
// or "-". Files ending in .yaml or .yml are decoded as YAML, everything
// else as JSON.
func readData(path string, stdin io.Reader) (value.Value, error) {
	var (
		data []byte
		err  error
	)
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading data: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing YAML data: %w", err)
		}
		return value.FromGo(raw)
	default:
		v, err := value.Unmarshal(data)
		if err != nil {
			return nil, fmt.Errorf("parsing JSON data: %w", err)
		}
		return v, nil
	}
}

// parseWhere parses field=value pairs. Values are read as JSON when they
// parse (42, true, null, "quoted") and as plain strings otherwise.
func parseWhere(pairs []string) (map[string]value.Value, error) {
	where := make(map[string]value.Value, len(pairs))
	for _, pair := range pairs {
		field, raw, ok := strings.Cut(pair, "=")
		if !ok || field == "" {
			return nil, fmt.Errorf("where %q: expected field=value", pair)
		}
		where[field] = scalarArg(raw)
	}
	return where, nil
}

// scalarArg reads a flag value as a JSON scalar, or a string.
func scalarArg(raw string) value.Value {
	v, err := value.Unmarshal([]byte(raw))
	if err != nil {
		return value.String(raw)
	}
	switch v.(type) {
	case value.Object, value.Array:
		return value.String(raw)
	}
	return v
}

// wherePredicate ANDs field equalities in sorted field order. Returns nil
// for an empty map.
func wherePredicate(where map[string]value.Value) queryir.Predicate {
	fields := sortedFields(where)
	preds := make([]queryir.Predicate, len(fields))
	for i, f := range fields {
		preds[i] = queryir.Eq(f, where[f])
	}
	return queryir.All(preds...)
}

func sortedFields(where map[string]value.Value) []string {
	fields := make([]string, 0, len(where))
	for f := range where {
		fields = append(fields, f)
	}
	slices.Sort(fields)
	return fields
}
