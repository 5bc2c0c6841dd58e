package model

import (
	"context"

	"github.com/roach88/relstore/internal/queryir"
	"github.com/roach88/relstore/internal/schema"
	"github.com/roach88/relstore/internal/store"
	"github.com/roach88/relstore/internal/value"
)

// Source runs the selects relations issue while eager loading. with lists
// nested relations to load on the returned rows ("comments",
// "comments.author").
type Source interface {
	Select(ctx context.Context, sel queryir.Select, with []string) ([]value.Object, error)
}

// Relation is an attribute linking records of two entities.
//
// Related entities are held by name and resolved through the owner's
// registry on every Define, Attach and Load.
type Relation interface {
	Attribute

	// Owner is the model declaring the relation.
	Owner() *Model

	// Define returns the schema node for the field's nested value.
	Define(b *schema.Builder) (schema.Node, error)

	// Attach writes the foreign keys (and pivot records) linking record to
	// the related records already normalized into data. key is the field's
	// normalized value: a key, or an array of keys. Existing foreign keys
	// are never overwritten.
	Attach(key value.Value, record value.Object, data store.Tables) error

	// Load fetches related records for collection and sets field on each.
	Load(ctx context.Context, src Source, collection []value.Object, field string, with []string) error
}

// PivotRelation is implemented by many-to-many relations.
type PivotRelation interface {
	Relation
	Pivot() string
}

// Targets returns the entity names a relation refers to, pivots included.
// MorphTo returns none: its targets are data.
func Targets(rel Relation) []string {
	switch r := rel.(type) {
	case *HasOne:
		return []string{r.related}
	case *BelongsTo:
		return []string{r.parent}
	case *HasMany:
		return []string{r.related}
	case *HasManyBy:
		return []string{r.parent}
	case *HasManyThrough:
		return []string{r.related, r.through}
	case *BelongsToMany:
		return []string{r.related, r.pivot}
	case *MorphOne:
		return []string{r.related}
	case *MorphMany:
		return []string{r.related}
	case *MorphToMany:
		return []string{r.related, r.pivot}
	case *MorphedByMany:
		return []string{r.related, r.pivot}
	default:
		return nil
	}
}

// relationBase is embedded by every relation variant.
type relationBase struct {
	owner *Model
}

func (r relationBase) Owner() *Model { return r.owner }

func (relationBase) Kind() Kind { return KindRelation }

// fillOne normalizes a to-one field: a key, or Null.
func fillOne(raw value.Value) value.Value {
	if _, ok := value.Key(raw); ok {
		return raw
	}
	return value.Null{}
}

// fillMany normalizes a to-many field to an array of keys.
func fillMany(raw value.Value) value.Value {
	arr, ok := raw.(value.Array)
	if !ok {
		return value.Array{}
	}
	out := make(value.Array, 0, len(arr))
	for _, elem := range arr {
		if _, ok := value.Key(elem); ok {
			out = append(out, elem)
		}
	}
	return out
}

// makeOne builds a to-one relation value from a nested record.
func makeOne(related *Model, raw value.Value, plain bool) any {
	obj, ok := raw.(value.Object)
	if !ok || related == nil {
		if plain {
			return value.Null{}
		}
		return (*Instance)(nil)
	}
	if plain {
		return related.MakePlain(obj)
	}
	return related.Make(obj)
}

// makeMany builds a to-many relation value. Null, missing, non-array and
// empty inputs all produce an empty sequence; non-object elements are
// dropped.
func makeMany(related *Model, raw value.Value, plain bool) any {
	arr, _ := raw.(value.Array)
	if plain {
		out := value.Array{}
		if related == nil {
			return out
		}
		for _, elem := range arr {
			if obj, ok := elem.(value.Object); ok {
				out = append(out, related.MakePlain(obj))
			}
		}
		return out
	}
	out := []*Instance{}
	if related == nil {
		return out
	}
	for _, elem := range arr {
		if obj, ok := elem.(value.Object); ok {
			out = append(out, related.Make(obj))
		}
	}
	return out
}

// resolveOrNil resolves an entity for Make, where errors cannot surface.
func resolveOrNil(owner *Model, entity string) *Model {
	m, err := resolve(owner, entity)
	if err != nil {
		return nil
	}
	return m
}

// keyOf returns record[field], falling back to the record's "$id" when the
// field is missing or null. Records whose key was generated carry it only
// in $id.
func keyOf(record value.Object, field string) value.Value {
	if v := record[field]; v != nil && !value.IsNull(v) {
		return v
	}
	if id, ok := record[MetaID]; ok {
		return id
	}
	return nil
}

// collectKeys gathers the distinct keys found in field across records.
func collectKeys(records []value.Object, field string) *value.KeySet {
	keys := value.NewKeySet()
	for _, rec := range records {
		keys.Add(rec[field])
	}
	return keys
}

// ownKeys gathers the distinct keys records are referred to by through
// field, generated keys included (see keyOf).
func ownKeys(records []value.Object, field string) *value.KeySet {
	keys := value.NewKeySet()
	for _, rec := range records {
		keys.Add(keyOf(rec, field))
	}
	return keys
}

// keyIn matches rows of entity whose field holds one of keys. When field is
// the entity's primary key, rows whose key was generated are matched
// through $id.
func keyIn(owner *Model, entity, field string, keys *value.KeySet) queryir.Predicate {
	in := queryir.InKeys(field, keys)
	target, err := resolve(owner, entity)
	if err != nil || target.Composite() || target.LocalKey("") != field {
		return in
	}
	return queryir.Or{Predicates: []queryir.Predicate{in, queryir.InKeys(MetaID, keys)}}
}

// indexOwn maps each record's own key (see keyOf) to the record.
func indexOwn(records []value.Object, field string) map[string]value.Object {
	idx := make(map[string]value.Object, len(records))
	for _, rec := range records {
		if k, ok := value.Key(keyOf(rec, field)); ok {
			idx[k] = rec
		}
	}
	return idx
}

// indexOne maps key form of field to record. Later records overwrite
// earlier ones.
func indexOne(records []value.Object, field string) map[string]value.Object {
	idx := make(map[string]value.Object, len(records))
	for _, rec := range records {
		if k, ok := value.Key(rec[field]); ok {
			idx[k] = rec
		}
	}
	return idx
}

// indexMany groups records by the key form of field, preserving order.
func indexMany(records []value.Object, field string) map[string][]value.Object {
	idx := make(map[string][]value.Object)
	for _, rec := range records {
		if k, ok := value.Key(rec[field]); ok {
			idx[k] = append(idx[k], rec)
		}
	}
	return idx
}

func lookupOne(idx map[string]value.Object, key value.Value) value.Value {
	if k, ok := value.Key(key); ok {
		if rec, found := idx[k]; found {
			return rec
		}
	}
	return value.Null{}
}

func lookupMany(idx map[string][]value.Object, key value.Value) value.Array {
	out := value.Array{}
	if k, ok := value.Key(key); ok {
		for _, rec := range idx[k] {
			out = append(out, rec)
		}
	}
	return out
}

// keysOf returns the array elements of a normalized to-many field.
func keysOf(v value.Value) []value.Value {
	arr, ok := v.(value.Array)
	if !ok {
		if _, isKey := value.Key(v); isKey {
			return []value.Value{v}
		}
		return nil
	}
	return arr
}

// related looks up a record normalized into data.
func relatedRecord(data store.Tables, entity string, key value.Value) value.Object {
	k, ok := value.Key(key)
	if !ok {
		return nil
	}
	return data[entity][k]
}

// pivotKey builds the table key of a pivot record: the pivot model's own
// key when the record carries it, the joined components otherwise.
func pivotKey(pivot *Model, rec value.Object, parts ...value.Value) (string, bool) {
	if k, ok := pivot.Key(rec); ok {
		return k, true
	}
	strs := make([]string, len(parts))
	for i, p := range parts {
		s, ok := value.Key(p)
		if !ok {
			return "", false
		}
		strs[i] = s
	}
	return value.JoinKey(strs...), true
}

// putPivot merges a pivot record into data.
func putPivot(data store.Tables, pivot *Model, rec value.Object, parts ...value.Value) {
	key, ok := pivotKey(pivot, rec, parts...)
	if !ok {
		return
	}
	rec[MetaID] = value.String(key)
	table := data.Table(pivot.entity)
	if existing, found := table[key]; found {
		for f, v := range rec {
			existing[f] = v
		}
		return
	}
	table[key] = rec
}
