// Package query reads records of one entity and eager loads their
// relations.
//
//	users, err := query.New(reg, st, "default", "users").
//		Where("active", true).
//		OrderBy("name", queryir.Asc).
//		With("posts.comments", "roles").
//		Get(ctx)
//
// Query implements model.Source: relations issue their selects through it,
// which is how nested eager loads ("posts.comments") reach the store.
package query

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/relstore/internal/model"
	"github.com/roach88/relstore/internal/queryir"
	"github.com/roach88/relstore/internal/store"
	"github.com/roach88/relstore/internal/value"
)

// ErrUnknownRelation is returned when With names a field that is not a
// relation of the model.
var ErrUnknownRelation = errors.New("unknown relation")

// Query builds and runs a select over one entity. Builder methods modify
// the query and return it for chaining.
type Query struct {
	reg        *model.Registry
	st         store.Store
	connection string
	entity     string
	logger     *zap.Logger

	wheres []queryir.Predicate
	ors    []queryir.Predicate
	orders []queryir.Order
	limit  int
	offset int
	with   []string
}

// Option configures a Query.
type Option func(*Query)

// WithLogger sets the logger. Default: zap.NewNop().
func WithLogger(l *zap.Logger) Option {
	return func(q *Query) {
		q.logger = l
	}
}

// New creates a query over entity in connection.
func New(reg *model.Registry, st store.Store, connection, entity string, opts ...Option) *Query {
	q := &Query{
		reg:        reg,
		st:         st,
		connection: connection,
		entity:     entity,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Where keeps records whose field equals v. An array value matches any of
// its elements.
func (q *Query) Where(field string, v any) *Query {
	q.wheres = append(q.wheres, condition(field, v))
	return q
}

// WhereIn keeps records whose field equals one of vs.
func (q *Query) WhereIn(field string, vs ...any) *Query {
	q.wheres = append(q.wheres, queryir.In{Field: field, Values: values(vs)})
	return q
}

// WhereFunc keeps records for which fn returns true. Function predicates
// are always evaluated in memory.
func (q *Query) WhereFunc(name string, fn func(value.Object) bool) *Query {
	q.wheres = append(q.wheres, queryir.Match{Name: name, Fn: fn})
	return q
}

// OrWhere adds an alternative: a record matches when it satisfies every
// Where or any OrWhere.
func (q *Query) OrWhere(field string, v any) *Query {
	q.ors = append(q.ors, condition(field, v))
	return q
}

// OrderBy appends a sort key.
func (q *Query) OrderBy(field string, dir queryir.Direction) *Query {
	q.orders = append(q.orders, queryir.Order{Field: field, Direction: dir})
	return q
}

// Limit caps the number of records. Zero means no limit.
func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Offset skips the first n records.
func (q *Query) Offset(n int) *Query {
	q.offset = n
	return q
}

// With requests eager loading of relations. Dotted paths load nested
// relations: "posts.comments" loads posts, then their comments.
func (q *Query) With(relations ...string) *Query {
	q.with = append(q.with, relations...)
	return q
}

// Build returns the select the query runs.
func (q *Query) Build() queryir.Select {
	return queryir.Select{
		From:    q.entity,
		Filter:  q.filter(),
		OrderBy: append([]queryir.Order(nil), q.orders...),
		Limit:   q.limit,
		Offset:  q.offset,
	}
}

func (q *Query) filter() queryir.Predicate {
	and := queryir.All(q.wheres...)
	if len(q.ors) == 0 {
		return and
	}
	alts := make([]queryir.Predicate, 0, len(q.ors)+1)
	if and != nil {
		alts = append(alts, and)
	}
	alts = append(alts, q.ors...)
	return queryir.Or{Predicates: alts}
}

// Get runs the query and eager loads the requested relations.
func (q *Query) Get(ctx context.Context) ([]value.Object, error) {
	return q.Select(ctx, q.Build(), q.with)
}

// First returns the first matching record, or nil.
func (q *Query) First(ctx context.Context) (value.Object, error) {
	sel := q.Build()
	sel.Limit = 1
	rows, err := q.Select(ctx, sel, q.with)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// Find returns the record with table key id, or nil. Composite keys are
// given joined ("1_2").
func (q *Query) Find(ctx context.Context, id any) (value.Object, error) {
	m, err := q.reg.Model(q.entity)
	if err != nil {
		return nil, err
	}
	idv, err := value.FromGo(id)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", q.entity, err)
	}

	sel := q.Build()
	var byKey queryir.Predicate
	if pk := m.PrimaryKey(); len(pk) == 1 {
		byKey = queryir.Eq(pk[0], idv)
	} else {
		want, ok := value.Key(idv)
		if !ok {
			return nil, nil
		}
		byKey = queryir.Match{Name: "key", Fn: func(rec value.Object) bool {
			k, ok := m.Key(rec)
			return ok && k == want
		}}
	}
	sel.Filter = queryir.All(sel.Filter, byKey)
	sel.Limit = 1

	rows, err := q.Select(ctx, sel, q.with)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}

// Instances runs the query and makes an instance of every record.
func (q *Query) Instances(ctx context.Context) ([]*model.Instance, error) {
	m, err := q.reg.Model(q.entity)
	if err != nil {
		return nil, err
	}
	rows, err := q.Get(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Instance, len(rows))
	for i, row := range rows {
		out[i] = m.Make(row)
	}
	return out, nil
}

// Count returns the number of matching records. Relations are not loaded.
func (q *Query) Count(ctx context.Context) (int, error) {
	if _, err := q.reg.Model(q.entity); err != nil {
		return 0, err
	}
	rows, err := q.rows(ctx, q.Build())
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}
