package queryir

import (
	"cmp"
	"slices"

	"github.com/roach88/relstore/internal/value"
)

// Eval reports whether rec satisfies p. A nil predicate matches.
func Eval(p Predicate, rec value.Object) bool {
	switch pred := p.(type) {
	case nil:
		return true
	case Equals:
		return evalEquals(pred, rec)
	case *Equals:
		return evalEquals(*pred, rec)
	case In:
		return evalIn(pred, rec)
	case *In:
		return evalIn(*pred, rec)
	case And:
		return evalAnd(pred.Predicates, rec)
	case *And:
		return evalAnd(pred.Predicates, rec)
	case Or:
		return evalOr(pred.Predicates, rec)
	case *Or:
		return evalOr(pred.Predicates, rec)
	case Match:
		return pred.Fn != nil && pred.Fn(rec)
	case *Match:
		return pred.Fn != nil && pred.Fn(rec)
	default:
		return false
	}
}

func evalEquals(eq Equals, rec value.Object) bool {
	field := rec[eq.Field]
	if value.IsNull(eq.Value) {
		return value.IsNull(field)
	}
	if value.SameKey(field, eq.Value) {
		return true
	}
	// Arrays and objects have no key form; fall back to structural equality.
	return field != nil && value.Equal(field, eq.Value)
}

func evalIn(in In, rec value.Object) bool {
	for _, v := range in.Values {
		if value.SameKey(rec[in.Field], v) {
			return true
		}
	}
	return false
}

func evalAnd(preds []Predicate, rec value.Object) bool {
	for _, p := range preds {
		if !Eval(p, rec) {
			return false
		}
	}
	return true
}

func evalOr(preds []Predicate, rec value.Object) bool {
	for _, p := range preds {
		if Eval(p, rec) {
			return true
		}
	}
	return false
}

// Apply evaluates sel over rows, which must already belong to sel.From.
// The input slice is not modified.
func Apply(sel Select, rows []value.Object) []value.Object {
	out := make([]value.Object, 0, len(rows))
	for _, row := range rows {
		if Eval(sel.Filter, row) {
			out = append(out, row)
		}
	}

	if len(sel.OrderBy) > 0 {
		slices.SortStableFunc(out, func(a, b value.Object) int {
			for _, o := range sel.OrderBy {
				c := Compare(a[o.Field], b[o.Field])
				if o.Direction == Desc {
					c = -c
				}
				if c != 0 {
					return c
				}
			}
			return 0
		})
	}

	if sel.Offset > 0 {
		if sel.Offset >= len(out) {
			return out[:0]
		}
		out = out[sel.Offset:]
	}
	if sel.Limit > 0 && sel.Limit < len(out) {
		out = out[:sel.Limit]
	}
	return out
}

// Compare orders two field values: missing and null first, then booleans,
// numbers, strings, and finally containers (which compare equal).
func Compare(a, b value.Value) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch ra {
	case 1:
		return cmp.Compare(boolInt(a), boolInt(b))
	case 2:
		na, _ := value.Number(a)
		nb, _ := value.Number(b)
		return cmp.Compare(na, nb)
	case 3:
		return cmp.Compare(a.(value.String), b.(value.String))
	default:
		return 0
	}
}

func rank(v value.Value) int {
	switch v.(type) {
	case nil, value.Null:
		return 0
	case value.Bool:
		return 1
	case value.Int, value.Float:
		return 2
	case value.String:
		return 3
	default:
		return 4
	}
}

func boolInt(v value.Value) int {
	if v.(value.Bool) {
		return 1
	}
	return 0
}
