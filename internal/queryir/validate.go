package queryir

import (
	"fmt"

	"github.com/roach88/relstore/internal/value"
)

// ValidationResult contains portability analysis of a Select.
//
// A portable Select can be compiled to SQL in full. Non-portable selects
// still execute correctly: the SQLite Store falls back to in-memory
// evaluation for them.
type ValidationResult struct {
	// IsPortable indicates the whole filter translates to SQL.
	IsPortable bool

	// Warnings lists the non-portable parts. Empty when IsPortable is true.
	Warnings []string
}

// Validate checks whether sel uses only portable predicates.
//
// Portable fragment rules:
//  1. No Match predicates (opaque Go functions)
//  2. No comparisons against null (SQL equality never matches NULL)
//  3. Literals must be non-float scalars (no arrays or objects; SQLite
//     renders REAL values differently from Go)
//  4. From must name an entity
//
// Validate is a pure function with no side effects.
func Validate(sel Select) ValidationResult {
	v := &validator{
		warnings: []string{},
	}
	if sel.From == "" {
		v.addWarning("Empty From - select must name an entity")
	}
	v.validatePredicate(sel.Filter)

	return ValidationResult{
		IsPortable: len(v.warnings) == 0,
		Warnings:   v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	warnings []string
}

func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Equals:
		v.validateLiteral(pred.Field, pred.Value)
	case *Equals:
		v.validateLiteral(pred.Field, pred.Value)
	case In:
		v.validateIn(pred)
	case *In:
		v.validateIn(*pred)
	case And:
		v.validateAll(pred.Predicates)
	case *And:
		v.validateAll(pred.Predicates)
	case Or:
		v.validateAll(pred.Predicates)
	case *Or:
		v.validateAll(pred.Predicates)
	case Match:
		v.addWarning("Match predicate %q - Go functions cannot be compiled to SQL", pred.Name)
	case *Match:
		v.addWarning("Match predicate %q - Go functions cannot be compiled to SQL", pred.Name)
	default:
		v.addWarning("Unknown predicate type: %T - portability cannot be verified", p)
	}
}

func (v *validator) validateIn(in In) {
	for _, val := range in.Values {
		v.validateLiteral(in.Field, val)
	}
}

func (v *validator) validateAll(preds []Predicate) {
	for _, p := range preds {
		v.validatePredicate(p)
	}
}

func (v *validator) validateLiteral(field string, val value.Value) {
	if value.IsNull(val) {
		v.addWarning("Field '%s' compared to NULL - SQL equality never matches NULL", field)
		return
	}
	if _, isFloat := val.(value.Float); isFloat {
		v.addWarning("Field '%s' compared to float literal - float key forms differ in SQL", field)
		return
	}
	if _, ok := value.Key(val); !ok {
		v.addWarning("Field '%s' compared to %s literal - only scalars are portable", field, value.TypeName(val))
	}
}
