package store

import (
	"context"
	"database/sql"
	"fmt"
)

// SetTable replaces the entity's table in one transaction. Rows whose
// content hash is unchanged are left alone; rows absent from table are
// deleted.
func (s *SQLite) SetTable(ctx context.Context, connection, entity string, table Table) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	existing, err := readHashes(ctx, tx, connection, entity)
	if err != nil {
		return err
	}

	for _, key := range table.Keys() {
		data, hash, err := marshalRecord(table[key])
		if err != nil {
			return fmt.Errorf("%s[%s]: %w", entity, key, err)
		}
		if old, ok := existing[key]; ok && old == hash {
			delete(existing, key)
			continue
		}
		delete(existing, key)

		_, err = tx.ExecContext(ctx, `
			INSERT INTO records (connection, entity, key, data, hash)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (connection, entity, key)
			DO UPDATE SET data = excluded.data, hash = excluded.hash
		`, connection, entity, key, data, hash)
		if err != nil {
			return fmt.Errorf("write %s[%s]: %w", entity, key, err)
		}
	}

	for key := range existing {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM records WHERE connection = ? AND entity = ? AND key = ?
		`, connection, entity, key)
		if err != nil {
			return fmt.Errorf("delete %s[%s]: %w", entity, key, err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO entities (connection, entity) VALUES (?, ?)
	`, connection, entity)
	if err != nil {
		return fmt.Errorf("register entity %s: %w", entity, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", entity, err)
	}
	return nil
}

func readHashes(ctx context.Context, tx *sql.Tx, connection, entity string) (map[string]string, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT key, hash FROM records WHERE connection = ? AND entity = ?
	`, connection, entity)
	if err != nil {
		return nil, fmt.Errorf("query hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[string]string)
	for rows.Next() {
		var key, hash string
		if err := rows.Scan(&key, &hash); err != nil {
			return nil, fmt.Errorf("scan hash: %w", err)
		}
		hashes[key] = hash
	}
	return hashes, rows.Err()
}
