package queryir

import "github.com/roach88/relstore/internal/value"

// Predicate represents a filter condition over a single record.
//
// This is a sealed interface - only types in this package implement it.
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Direction orders query results.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Order is one sort key of a Select.
type Order struct {
	Field     string
	Direction Direction
}

// Select reads the rows of one entity.
//
// Semantics:
//
//	SELECT * FROM <from> WHERE <filter> ORDER BY <order> LIMIT <limit> OFFSET <offset>
//
// A nil Filter matches every row. Limit <= 0 means no limit. Without an
// explicit order, rows come back in table-key order.
type Select struct {
	From    string
	Filter  Predicate
	OrderBy []Order
	Limit   int
	Offset  int
}

// Equals matches rows whose Field has the same key form as Value
// (Int(10) equals String("10")). Comparing against Null matches rows where
// the field is null or missing.
type Equals struct {
	Field string
	Value value.Value
}

func (Equals) predicateNode() {}

// In matches rows whose Field key is one of Values. An empty In matches
// nothing.
type In struct {
	Field  string
	Values []value.Value
}

func (In) predicateNode() {}

// And is a conjunction. Empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or is a disjunction. Empty Or is always false.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Match applies an arbitrary Go predicate. Name is used in diagnostics.
type Match struct {
	Name string
	Fn   func(value.Object) bool
}

func (Match) predicateNode() {}

// Eq builds an Equals predicate.
func Eq(field string, v value.Value) Equals {
	return Equals{Field: field, Value: v}
}

// InKeys builds an In predicate from a key set.
func InKeys(field string, keys *value.KeySet) In {
	return In{Field: field, Values: keys.Values()}
}

// All conjoins the non-nil predicates, collapsing trivial cases.
func All(preds ...Predicate) Predicate {
	var kept []Predicate
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return And{Predicates: kept}
	}
}
