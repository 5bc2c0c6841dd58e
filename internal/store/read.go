package store

import (
	"context"
	"database/sql"
	"fmt"
	"slices"

	"github.com/roach88/relstore/internal/queryir"
	"github.com/roach88/relstore/internal/value"
)

// GetTable reads every record of an entity. Missing entities read as an
// empty table.
func (s *SQLite) GetTable(ctx context.Context, connection, entity string) (Table, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, data
		FROM records
		WHERE connection = ? AND entity = ?
		ORDER BY key COLLATE BINARY ASC
	`, connection, entity)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", entity, err)
	}
	defer rows.Close()

	table := Table{}
	err = scanRecords(rows, func(key string, rec value.Object) {
		table[key] = rec
	})
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", entity, err)
	}
	return table, nil
}

// Select pushes portable filters down to SQL and evaluates the rest in
// memory. Ordering and paging always run in memory.
func (s *SQLite) Select(ctx context.Context, connection string, sel queryir.Select) ([]value.Object, error) {
	pushdown := queryir.Select{From: sel.From}
	if queryir.Validate(sel).IsPortable {
		pushdown.Filter = sel.Filter
	}

	query, params, err := s.compiler.Compile(connection, pushdown)
	if err != nil {
		return nil, fmt.Errorf("compile select on %s: %w", sel.From, err)
	}

	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", sel.From, err)
	}
	defer rows.Close()

	type keyed struct {
		key string
		rec value.Object
	}
	var matched []keyed
	err = scanRecords(rows, func(key string, rec value.Object) {
		matched = append(matched, keyed{key, rec})
	})
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", sel.From, err)
	}

	// SQL orders keys bytewise; restore table order before filtering.
	slices.SortFunc(matched, func(a, b keyed) int { return CompareKeys(a.key, b.key) })
	recs := make([]value.Object, len(matched))
	for i, m := range matched {
		recs[i] = m.rec
	}
	return queryir.Apply(sel, recs), nil
}

// Entities lists the entities set in a connection.
func (s *SQLite) Entities(ctx context.Context, connection string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity FROM entities
		WHERE connection = ?
		ORDER BY entity COLLATE BINARY ASC
	`, connection)
	if err != nil {
		return nil, fmt.Errorf("query entities: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan entity: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entities: %w", err)
	}
	return names, nil
}

func scanRecords(rows *sql.Rows, fn func(key string, rec value.Object)) error {
	for rows.Next() {
		var key, data string
		if err := rows.Scan(&key, &data); err != nil {
			return fmt.Errorf("scan record: %w", err)
		}
		rec, err := unmarshalRecord(data)
		if err != nil {
			return fmt.Errorf("record %q: %w", key, err)
		}
		fn(key, rec)
	}
	return rows.Err()
}
