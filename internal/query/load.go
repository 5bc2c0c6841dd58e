package query

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/roach88/relstore/internal/model"
	"github.com/roach88/relstore/internal/queryir"
	"github.com/roach88/relstore/internal/store"
	"github.com/roach88/relstore/internal/value"
)

// Select implements model.Source: it runs sel against the store and eager
// loads with on the result.
func (q *Query) Select(ctx context.Context, sel queryir.Select, with []string) ([]value.Object, error) {
	m, err := q.reg.Model(sel.From)
	if err != nil {
		return nil, err
	}
	plan, err := planLoads(m, with)
	if err != nil {
		return nil, err
	}

	rows, err := q.rows(ctx, sel)
	if err != nil {
		return nil, err
	}

	for _, step := range plan {
		if err := step.rel.Load(ctx, q, rows, step.field, step.nested); err != nil {
			return nil, fmt.Errorf("load %s.%s: %w", sel.From, step.field, err)
		}
	}

	q.logger.Debug("select",
		zap.String("entity", sel.From),
		zap.Int("records", len(rows)),
		zap.Strings("with", with),
	)
	return rows, nil
}

// rows reads the selected records, pushing the select down when the store
// supports it.
func (q *Query) rows(ctx context.Context, sel queryir.Select) ([]value.Object, error) {
	if s, ok := q.st.(store.Selector); ok {
		rows, err := s.Select(ctx, q.connection, sel)
		if err != nil {
			return nil, fmt.Errorf("select %s: %w", sel.From, err)
		}
		return rows, nil
	}

	table, err := q.st.GetTable(ctx, q.connection, sel.From)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", sel.From, err)
	}
	return queryir.Apply(sel, table.Rows()), nil
}

// loadStep is one relation to load, with the nested paths below it.
type loadStep struct {
	field  string
	rel    model.Relation
	nested []string
}

// planLoads groups eager-load paths by their first segment, in the order
// the segments first appear.
func planLoads(m *model.Model, with []string) ([]loadStep, error) {
	var plan []loadStep
	index := make(map[string]int)

	for _, path := range with {
		head, rest, _ := strings.Cut(path, ".")
		i, seen := index[head]
		if !seen {
			rel, ok := m.Relation(head)
			if !ok {
				return nil, fmt.Errorf("%w: %s has no relation %q", ErrUnknownRelation, m.Entity(), head)
			}
			i = len(plan)
			index[head] = i
			plan = append(plan, loadStep{field: head, rel: rel})
		}
		if rest != "" {
			plan[i].nested = append(plan[i].nested, rest)
		}
	}
	return plan, nil
}

// condition builds the predicate for Where and OrWhere.
func condition(field string, v any) queryir.Predicate {
	val, err := value.FromGo(v)
	if err != nil {
		val = value.Null{}
	}
	if arr, ok := val.(value.Array); ok {
		return queryir.In{Field: field, Values: arr}
	}
	return queryir.Eq(field, val)
}

func values(vs []any) []value.Value {
	out := make([]value.Value, 0, len(vs))
	for _, v := range vs {
		val, err := value.FromGo(v)
		if err != nil {
			continue
		}
		out = append(out, val)
	}
	return out
}
