package store

import (
	"cmp"
	"context"
	"slices"
	"strconv"

	"github.com/roach88/relstore/internal/queryir"
	"github.com/roach88/relstore/internal/value"
)

// DefaultConnection names the connection used when none is given.
const DefaultConnection = "default"

// Table maps primary-key strings to records of one entity.
type Table map[string]value.Object

// Tables maps entity names to tables. The normalizer produces one.
type Tables map[string]Table

// Store gets and sets whole tables, namespaced by connection.
type Store interface {
	GetTable(ctx context.Context, connection, entity string) (Table, error)
	SetTable(ctx context.Context, connection, entity string, table Table) error
}

// Selector is implemented by stores that can filter rows themselves.
type Selector interface {
	Select(ctx context.Context, connection string, sel queryir.Select) ([]value.Object, error)
}

// Lister is implemented by stores that can enumerate their entities.
type Lister interface {
	Entities(ctx context.Context, connection string) ([]string, error)
}

// Clone deep-copies t.
func (t Table) Clone() Table {
	if t == nil {
		return Table{}
	}
	out := make(Table, len(t))
	for k, rec := range t {
		out[k] = rec.Clone()
	}
	return out
}

// Keys returns the table keys in table order.
func (t Table) Keys() []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, CompareKeys)
	return keys
}

// Rows returns the records in table order. Records are not copied.
func (t Table) Rows() []value.Object {
	keys := t.Keys()
	rows := make([]value.Object, len(keys))
	for i, k := range keys {
		rows[i] = t[k]
	}
	return rows
}

// Clone deep-copies every table.
func (ts Tables) Clone() Tables {
	out := make(Tables, len(ts))
	for name, t := range ts {
		out[name] = t.Clone()
	}
	return out
}

// Entities returns the entity names in sorted order.
func (ts Tables) Entities() []string {
	names := make([]string, 0, len(ts))
	for name := range ts {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Table returns the named table, creating it when absent.
func (ts Tables) Table(entity string) Table {
	t, ok := ts[entity]
	if !ok {
		t = Table{}
		ts[entity] = t
	}
	return t
}

// ToValue renders ts as an Object of Objects, for canonical dumps.
func (ts Tables) ToValue() value.Object {
	out := make(value.Object, len(ts))
	for name, t := range ts {
		tbl := make(value.Object, len(t))
		for k, rec := range t {
			tbl[k] = rec
		}
		out[name] = tbl
	}
	return out
}

// CompareKeys orders table keys: canonical non-negative integers first,
// numerically, then everything else bytewise.
func CompareKeys(a, b string) int {
	ai, aInt := indexKey(a)
	bi, bInt := indexKey(b)
	switch {
	case aInt && bInt:
		return cmp.Compare(ai, bi)
	case aInt:
		return -1
	case bInt:
		return 1
	default:
		return cmp.Compare(a, b)
	}
}

func indexKey(k string) (uint64, bool) {
	n, err := strconv.ParseUint(k, 10, 64)
	if err != nil || strconv.FormatUint(n, 10) != k {
		return 0, false
	}
	return n, true
}

// Snapshot reads every table of a connection from a listing store.
func Snapshot(ctx context.Context, s Store, connection string) (Tables, error) {
	out := Tables{}
	lister, ok := s.(Lister)
	if !ok {
		return out, nil
	}
	entities, err := lister.Entities(ctx, connection)
	if err != nil {
		return nil, err
	}
	for _, entity := range entities {
		t, err := s.GetTable(ctx, connection, entity)
		if err != nil {
			return nil, err
		}
		out[entity] = t
	}
	return out, nil
}
