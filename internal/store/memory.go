package store

import (
	"context"
	"slices"
	"sync"

	"github.com/roach88/relstore/internal/queryir"
	"github.com/roach88/relstore/internal/value"
)

// Memory is an in-process Store. Safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	data map[string]Tables
}

// NewMemory creates an empty memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]Tables)}
}

// GetTable returns a copy of the entity's table, empty when never set.
func (m *Memory) GetTable(_ context.Context, connection, entity string) (Table, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data[connection][entity].Clone(), nil
}

// SetTable replaces the entity's table with a copy of table.
func (m *Memory) SetTable(_ context.Context, connection, entity string, table Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tables, ok := m.data[connection]
	if !ok {
		tables = Tables{}
		m.data[connection] = tables
	}
	tables[entity] = table.Clone()
	return nil
}

// Select filters the entity's rows in memory. Returned records are copies.
func (m *Memory) Select(_ context.Context, connection string, sel queryir.Select) ([]value.Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rows := queryir.Apply(sel, m.data[connection][sel.From].Rows())
	out := make([]value.Object, len(rows))
	for i, row := range rows {
		out[i] = row.Clone()
	}
	return out, nil
}

// Entities lists the entities set in a connection.
func (m *Memory) Entities(_ context.Context, connection string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.data[connection]))
	for name := range m.data[connection] {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}
