package action

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/relstore/internal/model"
	"github.com/roach88/relstore/internal/normalize"
	"github.com/roach88/relstore/internal/queryir"
	"github.com/roach88/relstore/internal/store"
	"github.com/roach88/relstore/internal/value"
)

// persist runs create, insert and insertOrUpdate.
func (d *Dispatcher) persist(ctx context.Context, t *Task, m *model.Model) (Result, error) {
	data, err := recordData(t.Payload.Data)
	if err != nil {
		return Result{}, taskError(t, CodeInvalidPayload, err, "invalid data")
	}

	inc := &incrementer{ctx: ctx, d: d, fresh: t.Op == OpCreate}
	n := normalize.New(
		normalize.WithKeyGenerator(d.keys),
		normalize.WithIncrementer(inc.assign),
	)
	tables, err := n.Normalize(data, m)
	if err != nil {
		return Result{}, normalizeError(t, err)
	}
	if inc.err != nil {
		return Result{}, taskError(t, CodeStoreFailure, inc.err, "read increment state")
	}

	res := Result{Entities: map[string][]value.Object{}}
	for _, entity := range tables.Entities() {
		em, err := d.reg.Model(entity)
		if err != nil {
			return Result{}, taskError(t, CodeUnknownModel, err, "cannot resolve entity")
		}

		current := store.Table{}
		if t.Op != OpCreate {
			if current, err = d.st.GetTable(ctx, d.connection, entity); err != nil {
				return Result{}, taskError(t, CodeStoreFailure, err, "read %s", entity)
			}
		}

		incoming := tables[entity]
		for _, key := range incoming.Keys() {
			rec := incoming[key]
			existing, found := current[key]
			if t.Op == OpInsertOrUpdate && found {
				current[key] = merge(existing, em.Fix(rec))
			} else {
				current[key] = em.Hydrate(rec)
			}
			res.Entities[entity] = append(res.Entities[entity], current[key].Clone())
		}

		if err := d.st.SetTable(ctx, d.connection, entity, current); err != nil {
			return Result{}, taskError(t, CodeStoreFailure, err, "write %s", entity)
		}
	}
	return res, nil
}

// update merges fields into existing records. Without Where, the payload
// records carry their keys and records not yet stored are skipped. With
// Where, Data is one object of fields applied to every selected record of
// the task's entity.
func (d *Dispatcher) update(ctx context.Context, t *Task, m *model.Model) (Result, error) {
	if t.Payload.Where == nil {
		return d.updateByKeys(ctx, t, m)
	}

	match, err := matcher(t.Payload.Where)
	if err != nil {
		return Result{}, taskError(t, CodeInvalidPayload, err, "invalid where")
	}
	data, err := recordData(t.Payload.Data)
	if err != nil {
		return Result{}, taskError(t, CodeInvalidPayload, err, "invalid data")
	}
	fields, ok := data.(value.Object)
	if !ok {
		return Result{}, taskError(t, CodeInvalidPayload, nil, "update with where takes an object, got %s", value.TypeName(data))
	}
	fixed := m.Fix(fields)
	for _, rel := range m.Relations() {
		delete(fixed, rel.Name)
	}
	delete(fixed, model.MetaID)

	table, err := d.st.GetTable(ctx, d.connection, m.Entity())
	if err != nil {
		return Result{}, taskError(t, CodeStoreFailure, err, "read %s", m.Entity())
	}

	res := Result{Entities: map[string][]value.Object{}}
	for _, key := range table.Keys() {
		if !match(key, table[key]) {
			continue
		}
		table[key] = merge(table[key], fixed)
		res.Entities[m.Entity()] = append(res.Entities[m.Entity()], table[key].Clone())
	}
	if len(res.Entities) == 0 {
		return res, nil
	}

	if err := d.st.SetTable(ctx, d.connection, m.Entity(), table); err != nil {
		return Result{}, taskError(t, CodeStoreFailure, err, "write %s", m.Entity())
	}
	return res, nil
}

func (d *Dispatcher) updateByKeys(ctx context.Context, t *Task, m *model.Model) (Result, error) {
	data, err := recordData(t.Payload.Data)
	if err != nil {
		return Result{}, taskError(t, CodeInvalidPayload, err, "invalid data")
	}

	tables, err := normalize.New(normalize.WithKeyGenerator(d.keys)).Normalize(data, m)
	if err != nil {
		return Result{}, normalizeError(t, err)
	}

	res := Result{Entities: map[string][]value.Object{}}
	for _, entity := range tables.Entities() {
		em, err := d.reg.Model(entity)
		if err != nil {
			return Result{}, taskError(t, CodeUnknownModel, err, "cannot resolve entity")
		}
		current, err := d.st.GetTable(ctx, d.connection, entity)
		if err != nil {
			return Result{}, taskError(t, CodeStoreFailure, err, "read %s", entity)
		}

		incoming := tables[entity]
		changed := false
		for _, key := range incoming.Keys() {
			existing, found := current[key]
			if !found {
				continue
			}
			current[key] = merge(existing, em.Fix(incoming[key]))
			res.Entities[entity] = append(res.Entities[entity], current[key].Clone())
			changed = true
		}
		if !changed {
			continue
		}
		if err := d.st.SetTable(ctx, d.connection, entity, current); err != nil {
			return Result{}, taskError(t, CodeStoreFailure, err, "write %s", entity)
		}
	}
	return res, nil
}

// delete removes the records of the task's entity selected by Where.
func (d *Dispatcher) delete(ctx context.Context, t *Task, m *model.Model) (Result, error) {
	if t.Payload.Where == nil {
		return Result{}, taskError(t, CodeInvalidPayload, nil, "delete requires where")
	}
	match, err := matcher(t.Payload.Where)
	if err != nil {
		return Result{}, taskError(t, CodeInvalidPayload, err, "invalid where")
	}

	table, err := d.st.GetTable(ctx, d.connection, m.Entity())
	if err != nil {
		return Result{}, taskError(t, CodeStoreFailure, err, "read %s", m.Entity())
	}

	res := Result{Entities: map[string][]value.Object{}}
	for _, key := range table.Keys() {
		if !match(key, table[key]) {
			continue
		}
		res.Entities[m.Entity()] = append(res.Entities[m.Entity()], table[key])
		delete(table, key)
	}
	if len(res.Entities) == 0 {
		return res, nil
	}

	if err := d.st.SetTable(ctx, d.connection, m.Entity(), table); err != nil {
		return Result{}, taskError(t, CodeStoreFailure, err, "write %s", m.Entity())
	}
	return res, nil
}

func normalizeError(t *Task, err error) *Error {
	if errors.Is(err, model.ErrUnknownModel) {
		return taskError(t, CodeUnknownModel, err, "normalize")
	}
	return taskError(t, CodeInvalidPayload, err, "normalize")
}

// recordData converts payload data to a value and checks it holds records.
func recordData(data any) (value.Value, error) {
	v, err := value.FromGo(data)
	if err != nil {
		return nil, err
	}
	switch v.(type) {
	case value.Object, value.Array:
		return v, nil
	default:
		return nil, fmt.Errorf("expected object or array, got %s", value.TypeName(v))
	}
}

// matcher turns a Where into a test over (table key, record).
func matcher(where any) (func(string, value.Object) bool, error) {
	switch w := where.(type) {
	case func(value.Object) bool:
		return func(_ string, rec value.Object) bool { return w(rec) }, nil
	case queryir.Predicate:
		return func(_ string, rec value.Object) bool { return queryir.Eval(w, rec) }, nil
	default:
		v, err := value.FromGo(where)
		if err != nil {
			return nil, err
		}
		want, ok := value.Key(v)
		if !ok {
			return nil, fmt.Errorf("where must be a key, a predicate or a function, got %s", value.TypeName(v))
		}
		return func(key string, _ value.Object) bool { return key == want }, nil
	}
}

func merge(existing, fields value.Object) value.Object {
	out := existing.Clone()
	for k, v := range fields {
		out[k] = v
	}
	return out
}

// incrementer assigns increment fields the next value past the highest
// stored or already assigned one. fresh skips the stored tables, for
// create.
type incrementer struct {
	ctx   context.Context
	d     *Dispatcher
	fresh bool

	max map[string]map[string]int64
	err error
}

func (in *incrementer) assign(m *model.Model, record value.Object) {
	fields := m.IncrementFields()
	if len(fields) == 0 || in.err != nil {
		return
	}
	counters, err := in.counters(m, fields)
	if err != nil {
		in.err = err
		return
	}
	for _, f := range fields {
		if n, ok := value.Number(record[f]); ok {
			if int64(n) > counters[f] {
				counters[f] = int64(n)
			}
			continue
		}
		counters[f]++
		record[f] = value.Int(counters[f])
	}
}

func (in *incrementer) counters(m *model.Model, fields []string) (map[string]int64, error) {
	if c, ok := in.max[m.Entity()]; ok {
		return c, nil
	}
	if in.max == nil {
		in.max = make(map[string]map[string]int64)
	}

	c := make(map[string]int64, len(fields))
	if !in.fresh {
		table, err := in.d.st.GetTable(in.ctx, in.d.connection, m.Entity())
		if err != nil {
			return nil, err
		}
		for _, rec := range table {
			for _, f := range fields {
				if n, ok := value.Number(rec[f]); ok && int64(n) > c[f] {
					c[f] = int64(n)
				}
			}
		}
	}
	in.max[m.Entity()] = c
	return c, nil
}
