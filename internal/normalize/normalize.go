package normalize

import (
	"fmt"

	"github.com/roach88/relstore/internal/model"
	"github.com/roach88/relstore/internal/schema"
	"github.com/roach88/relstore/internal/store"
	"github.com/roach88/relstore/internal/value"
)

// Incrementer assigns increment fields of record before its key is
// computed.
type Incrementer func(m *model.Model, record value.Object)

// Normalizer decomposes nested records into tables.
type Normalizer struct {
	keys      KeyGenerator
	increment Incrementer
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// WithKeyGenerator sets the generator for records without a primary key.
// Default: UUIDKeys.
func WithKeyGenerator(g KeyGenerator) Option {
	return func(n *Normalizer) {
		n.keys = g
	}
}

// WithIncrementer sets the increment hook run on every record, pivot
// records created while attaching included.
func WithIncrementer(fn Incrementer) Option {
	return func(n *Normalizer) {
		n.increment = fn
	}
}

// New creates a Normalizer.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{keys: UUIDKeys{}}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize decomposes data, an Object or an Array of Objects shaped as
// root records, into tables. Array elements that are not objects are
// skipped. root must be registered: related models are resolved through its
// registry.
func (n *Normalizer) Normalize(data value.Value, root *model.Model) (store.Tables, error) {
	reg := root.Registry()
	if reg == nil {
		return nil, fmt.Errorf("normalize %s: %w", root.Entity(), model.ErrNotRegistered)
	}

	run := &pass{
		n:       n,
		reg:     reg,
		out:     store.Tables{},
		visited: map[string]struct{}{},
		b: schema.NewBuilder(func(entity string) (schema.Definer, error) {
			m, err := reg.Model(entity)
			if err != nil {
				return nil, err
			}
			return m, nil
		}),
	}

	ent, err := run.b.Entity(root.Entity())
	if err != nil {
		return nil, err
	}

	switch v := data.(type) {
	case value.Object:
		if _, err := run.visit(v, root, ent); err != nil {
			return nil, err
		}
	case value.Array:
		for _, elem := range v {
			obj, ok := elem.(value.Object)
			if !ok {
				continue
			}
			if _, err := run.visit(obj, root, ent); err != nil {
				return nil, err
			}
		}
	}
	if err := run.incrementPivots(); err != nil {
		return nil, err
	}
	return run.out, nil
}

// pass holds the state of one Normalize call.
type pass struct {
	n   *Normalizer
	reg *model.Registry
	b   *schema.Builder
	out store.Tables

	// visited holds entity/key pairs of records that went through visit.
	visited map[string]struct{}
}

func visitedKey(entity, key string) string { return entity + "\x00" + key }

// incrementPivots runs the increment hook over the records relations added
// while attaching. Their table keys are already fixed.
func (p *pass) incrementPivots() error {
	if p.n.increment == nil {
		return nil
	}
	for _, entity := range p.out.Entities() {
		m, err := p.reg.Model(entity)
		if err != nil {
			return err
		}
		table := p.out[entity]
		for _, key := range table.Keys() {
			if _, ok := p.visited[visitedKey(entity, key)]; ok {
				continue
			}
			p.n.increment(m, table[key])
		}
	}
	return nil
}

// visit normalizes one record and returns the value that replaces it in
// its parent: the primary key value, or the table key when the key is
// composite or generated.
func (p *pass) visit(rec value.Object, m *model.Model, ent *schema.Entity) (value.Value, error) {
	record := rec.Clone()

	type link struct {
		rel model.Relation
		key value.Value
	}
	var links []link

	for _, f := range m.Relations() {
		raw, present := record[f.Name]
		if !present {
			continue
		}
		node, ok := ent.Fields[f.Name]
		if !ok {
			continue
		}
		key, err := p.visitNode(raw, node, record)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", m.Entity(), f.Name, err)
		}
		record[f.Name] = key
		links = append(links, link{rel: f.Attribute.(model.Relation), key: key})
	}

	if p.n.increment != nil {
		p.n.increment(m, record)
	}

	key, ok := m.Key(record)
	if !ok {
		if id, isString := record[model.MetaID].(value.String); isString && id != "" {
			key = string(id)
		} else {
			key = p.n.keys.Generate()
		}
	}
	record[model.MetaID] = value.String(key)
	p.visited[visitedKey(m.Entity(), key)] = struct{}{}

	for _, l := range links {
		if err := l.rel.Attach(l.key, record, p.out); err != nil {
			return nil, fmt.Errorf("%s: attach: %w", m.Entity(), err)
		}
	}

	table := p.out.Table(m.Entity())
	if existing, found := table[key]; found {
		for f, v := range record {
			existing[f] = v
		}
	} else {
		table[key] = record
	}

	if ok && !m.Composite() {
		return record[m.PrimaryKey()[0]], nil
	}
	return value.String(key), nil
}

// visitNode normalizes the value of one relation field. Keys are kept as
// they are; nested objects are visited and replaced by their keys.
func (p *pass) visitNode(raw value.Value, node schema.Node, owner value.Object) (value.Value, error) {
	switch nd := node.(type) {
	case *schema.Entity:
		return p.visitOne(raw, nd)
	case schema.Many:
		arr, ok := raw.(value.Array)
		if !ok {
			return raw, nil
		}
		out := make(value.Array, 0, len(arr))
		for _, elem := range arr {
			switch elem.(type) {
			case value.Object:
				key, err := p.visitNode(elem, nd.Of, owner)
				if err != nil {
					return nil, err
				}
				out = append(out, key)
			default:
				if _, isKey := value.Key(elem); isKey {
					out = append(out, elem)
				}
			}
		}
		return out, nil
	case schema.Union:
		typ, ok := owner[nd.TypeField].(value.String)
		if !ok {
			return raw, nil
		}
		ent, err := p.b.Entity(string(typ))
		if err != nil {
			return nil, err
		}
		return p.visitOne(raw, ent)
	default:
		return raw, nil
	}
}

func (p *pass) visitOne(raw value.Value, ent *schema.Entity) (value.Value, error) {
	obj, ok := raw.(value.Object)
	if !ok {
		return raw, nil
	}
	m, err := p.reg.Model(ent.Name)
	if err != nil {
		return nil, err
	}
	return p.visit(obj, m, ent)
}
