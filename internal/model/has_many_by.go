package model

import (
	"context"

	"github.com/roach88/relstore/internal/queryir"
	"github.com/roach88/relstore/internal/schema"
	"github.com/roach88/relstore/internal/store"
	"github.com/roach88/relstore/internal/value"
)

// HasManyBy links the owner to the parent records whose ownerKey appears
// in the owner's foreignKey array.
type HasManyBy struct {
	relationBase
	parent     string
	foreignKey string
	ownerKey   string
}

// HasManyBy declares a has-many-by relation. ownerKey defaults to the
// parent's local key, resolved when the relation is used.
func (m *Model) HasManyBy(parent, foreignKey string, ownerKey ...string) *HasManyBy {
	return &HasManyBy{
		relationBase: relationBase{owner: m},
		parent:       parent,
		foreignKey:   foreignKey,
		ownerKey:     optional(ownerKey),
	}
}

// OwnerKey returns the parent field matched against the foreign key array.
func (r *HasManyBy) OwnerKey() (string, error) {
	if r.ownerKey != "" {
		return r.ownerKey, nil
	}
	parent, err := resolve(r.owner, r.parent)
	if err != nil {
		return "", err
	}
	return parent.LocalKey(""), nil
}

func (r *HasManyBy) Define(b *schema.Builder) (schema.Node, error) {
	return b.Many(r.parent)
}

// Attach stores the key list in foreignKey, unless the list is empty or
// foreignKey is already defined.
func (r *HasManyBy) Attach(key value.Value, record value.Object, _ store.Tables) error {
	keys := keysOf(key)
	if len(keys) == 0 {
		return nil
	}
	if _, defined := record[r.foreignKey]; defined {
		return nil
	}
	record[r.foreignKey] = append(value.Array(nil), keys...)
	return nil
}

func (r *HasManyBy) Fill(raw value.Value) value.Value { return fillMany(raw) }

func (r *HasManyBy) Make(raw value.Value, _ value.Object, _ string, plain bool) any {
	return makeMany(resolveOrNil(r.owner, r.parent), raw, plain)
}

// Load queries the union of every owner's key array once. When several
// parents share an ownerKey value the last one read wins.
func (r *HasManyBy) Load(ctx context.Context, src Source, collection []value.Object, field string, with []string) error {
	ownerKey, err := r.OwnerKey()
	if err != nil {
		return err
	}

	ids := value.NewKeySet()
	for _, rec := range collection {
		for _, id := range keysOf(rec[r.foreignKey]) {
			ids.Add(id)
		}
	}

	rows, err := src.Select(ctx, queryir.Select{
		From:   r.parent,
		Filter: keyIn(r.owner, r.parent, ownerKey, ids),
	}, with)
	if err != nil {
		return err
	}

	idx := indexOwn(rows, ownerKey)
	for _, rec := range collection {
		related := value.Array{}
		for _, id := range keysOf(rec[r.foreignKey]) {
			if match, ok := lookupOne(idx, id).(value.Object); ok {
				related = append(related, match)
			}
		}
		rec[field] = related
	}
	return nil
}
