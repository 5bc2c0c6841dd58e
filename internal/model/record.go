package model

import (
	"encoding/json"
	"slices"

	"github.com/roach88/relstore/internal/schema"
	"github.com/roach88/relstore/internal/value"
)

func keepList(keep []string) []string {
	if keep == nil {
		return DefaultKeep
	}
	return keep
}

// Fix drops fields the model does not declare and normalizes the declared
// ones present in data. Fields named in keep are copied untouched; keep
// defaults to ["$id"]. Missing fields stay missing.
func (m *Model) Fix(data value.Object, keep ...string) value.Object {
	keep = keepList(keep)
	out := make(value.Object, len(data))
	for key, raw := range data {
		if slices.Contains(keep, key) {
			out[key] = raw
			continue
		}
		attr, ok := m.fields[key]
		if !ok {
			continue
		}
		out[key] = m.fillField(key, attr, raw)
	}
	return out
}

// FixMany applies Fix to every record of a table-shaped map.
func (m *Model) FixMany(data map[string]value.Object, keep ...string) map[string]value.Object {
	out := make(map[string]value.Object, len(data))
	for id, rec := range data {
		out[id] = m.Fix(rec, keep...)
	}
	return out
}

// Hydrate returns a record with every declared field present, filled from
// data or defaulted. Fields named in keep are copied when present.
func (m *Model) Hydrate(data value.Object, keep ...string) value.Object {
	keep = keepList(keep)
	out := make(value.Object, len(m.order)+len(keep))
	for _, name := range m.order {
		out[name] = m.fillField(name, m.fields[name], data[name])
	}
	for _, key := range keep {
		if v, ok := data[key]; ok && v != nil {
			out[key] = v
		}
	}
	return out
}

// HydrateMany applies Hydrate to every record of a table-shaped map.
func (m *Model) HydrateMany(data map[string]value.Object, keep ...string) map[string]value.Object {
	out := make(map[string]value.Object, len(data))
	for id, rec := range data {
		out[id] = m.Hydrate(rec, keep...)
	}
	return out
}

// Setter receives made field values.
type Setter interface {
	Set(field string, v any)
}

// Plain is a record being made in plain mode.
type Plain value.Object

// Set stores v when it is a value.Value; anything else becomes Null.
func (p Plain) Set(field string, v any) {
	if vv, ok := v.(value.Value); ok && vv != nil {
		p[field] = vv
		return
	}
	p[field] = value.Null{}
}

// Fill sets every declared field of target from record via the field's
// Make. Relation fields holding nested records become instances, or plain
// records when plain is set.
func (m *Model) Fill(target Setter, record value.Object, plain bool) Setter {
	if record == nil {
		record = value.Object{}
	}
	for _, name := range m.order {
		attr := m.fields[name]
		made := attr.Make(record[name], record, name, plain)
		if v, ok := made.(value.Value); ok {
			if mu, ok := attr.(mutable); ok && !mu.hasMutator() {
				if fn := m.mutators[name]; fn != nil {
					made = fn(v)
				}
			}
		}
		target.Set(name, made)
	}
	return target
}

// Make creates an instance from record.
func (m *Model) Make(record value.Object) *Instance {
	inst := &Instance{model: m, fields: make(map[string]any, len(m.order))}
	m.Fill(inst, record, false)
	return inst
}

// MakePlain creates a plain record from record: declared fields only,
// relations made recursively.
func (m *Model) MakePlain(record value.Object) value.Object {
	p := Plain{}
	m.Fill(p, record, true)
	return value.Object(p)
}

// DefineFields implements schema.Definer: one node per relation field.
func (m *Model) DefineFields(b *schema.Builder) (map[string]schema.Node, error) {
	nodes := make(map[string]schema.Node)
	for _, f := range m.Relations() {
		node, err := f.Attribute.(Relation).Define(b)
		if err != nil {
			return nil, err
		}
		nodes[f.Name] = node
	}
	return nodes, nil
}

// Instance is a made record of a model. Scalar fields hold value.Value;
// to-one relations hold *Instance (nil when absent); to-many relations hold
// []*Instance.
type Instance struct {
	model  *Model
	fields map[string]any
}

// Model returns the instance's model.
func (i *Instance) Model() *Model { return i.model }

// Set implements Setter.
func (i *Instance) Set(field string, v any) { i.fields[field] = v }

// Get returns the raw field content.
func (i *Instance) Get(field string) any { return i.fields[field] }

// Value returns a scalar field, or Null when the field is not a scalar.
func (i *Instance) Value(field string) value.Value {
	if v, ok := i.fields[field].(value.Value); ok && v != nil {
		return v
	}
	return value.Null{}
}

// One returns a to-one relation, nil when absent.
func (i *Instance) One(field string) *Instance {
	inst, _ := i.fields[field].(*Instance)
	return inst
}

// Many returns a to-many relation.
func (i *Instance) Many(field string) []*Instance {
	list, _ := i.fields[field].([]*Instance)
	return list
}

// ID returns the instance's primary key value.
func (i *Instance) ID() value.Value {
	return i.model.ID(i.Record())
}

// Record converts the instance back into a plain record.
func (i *Instance) Record() value.Object {
	out := make(value.Object, len(i.fields))
	for name, v := range i.fields {
		out[name] = toValue(v)
	}
	return out
}

// ToJSON serializes the instance's declared fields.
func (i *Instance) ToJSON() value.Object {
	return i.model.MakePlain(i.Record())
}

// MarshalJSON implements json.Marshaler.
func (i *Instance) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.ToJSON())
}

func toValue(v any) value.Value {
	switch x := v.(type) {
	case nil:
		return value.Null{}
	case value.Value:
		return x
	case *Instance:
		if x == nil {
			return value.Null{}
		}
		return x.Record()
	case []*Instance:
		arr := make(value.Array, len(x))
		for i, inst := range x {
			arr[i] = toValue(inst)
		}
		return arr
	default:
		return value.Null{}
	}
}
