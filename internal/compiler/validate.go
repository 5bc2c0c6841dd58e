package compiler

import (
	"fmt"
	"strings"
)

// Validation error codes (E100-E199)
const (
	ErrEmptyPrimaryKey      = "E101" // blank primary key component
	ErrNoFields             = "E102" // model declares no fields
	ErrUnknownFieldType     = "E103" // type is not an attribute or relation
	ErrMissingRelationKey   = "E104" // relation lacks a required property
	ErrDuplicateModel       = "E105" // entity defined twice
	ErrUnknownRelated       = "E106" // relation targets an undefined entity
	ErrDefaultOnRelation    = "E107" // default set on a relation or increment
	ErrUndeclaredPrimaryKey = "E108" // primary key names an undeclared field
)

// Attribute and relation type names accepted in model definitions.
const (
	TypeAttr           = "attr"
	TypeString         = "string"
	TypeNumber         = "number"
	TypeBoolean        = "boolean"
	TypeIncrement      = "increment"
	TypeHasOne         = "hasOne"
	TypeBelongsTo      = "belongsTo"
	TypeHasMany        = "hasMany"
	TypeHasManyBy      = "hasManyBy"
	TypeHasManyThrough = "hasManyThrough"
	TypeBelongsToMany  = "belongsToMany"
	TypeMorphTo        = "morphTo"
	TypeMorphOne       = "morphOne"
	TypeMorphMany      = "morphMany"
	TypeMorphToMany    = "morphToMany"
	TypeMorphedByMany  = "morphedByMany"
)

// required lists, per relation type, the properties that must be set.
var required = map[string][]string{
	TypeHasOne:         {"related", "foreignKey"},
	TypeBelongsTo:      {"related", "foreignKey"},
	TypeHasMany:        {"related", "foreignKey"},
	TypeHasManyBy:      {"related", "foreignKey"},
	TypeHasManyThrough: {"related", "through", "firstKey", "secondKey"},
	TypeBelongsToMany:  {"related", "pivot", "foreignPivotKey", "relatedPivotKey"},
	TypeMorphTo:        {"morphId", "morphType"},
	TypeMorphOne:       {"related", "morphId", "morphType"},
	TypeMorphMany:      {"related", "morphId", "morphType"},
	TypeMorphToMany:    {"related", "pivot", "relatedId", "morphId", "morphType"},
	TypeMorphedByMany:  {"related", "pivot", "relatedId", "morphId", "morphType"},
}

// IsAttributeType reports whether t names a scalar attribute.
func IsAttributeType(t string) bool {
	switch t {
	case TypeAttr, TypeString, TypeNumber, TypeBoolean, TypeIncrement:
		return true
	}
	return false
}

// IsRelationType reports whether t names a relation.
func IsRelationType(t string) bool {
	_, ok := required[t]
	return ok
}

// ValidationError represents a model definition error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// ValidationErrors reports every problem Validate found.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks model definitions as a set, so relation targets are
// resolved against every spec. Returns all errors found (does not
// fail-fast).
func Validate(specs []ModelSpec) []ValidationError {
	var errs []ValidationError

	entities := make(map[string]bool, len(specs))
	for i, spec := range specs {
		if entities[spec.Entity] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("models[%d]", i),
				Message: fmt.Sprintf("duplicate model %q", spec.Entity),
				Code:    ErrDuplicateModel,
			})
		}
		entities[spec.Entity] = true
	}

	for _, spec := range specs {
		errs = append(errs, validateModel(spec, entities)...)
	}
	return errs
}

func validateModel(spec ModelSpec, entities map[string]bool) []ValidationError {
	var errs []ValidationError

	if len(spec.Fields) == 0 {
		errs = append(errs, ValidationError{
			Field:   spec.Entity + ".fields",
			Message: "at least one field is required",
			Code:    ErrNoFields,
		})
	}

	pk := spec.PrimaryKey
	if len(pk) == 0 {
		pk = []string{"id"}
	}
	for i, key := range pk {
		if strings.TrimSpace(key) == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.primaryKey[%d]", spec.Entity, i),
				Message: "primary key field name must be non-empty",
				Code:    ErrEmptyPrimaryKey,
			})
			continue
		}
		if f, ok := spec.Field(key); !ok || IsRelationType(f.Type) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.primaryKey[%d]", spec.Entity, i),
				Message: fmt.Sprintf("primary key %q is not a declared attribute", key),
				Code:    ErrUndeclaredPrimaryKey,
			})
		}
	}

	for _, f := range spec.Fields {
		errs = append(errs, validateField(spec.Entity, f, entities)...)
	}
	return errs
}

func validateField(entity string, f FieldSpec, entities map[string]bool) []ValidationError {
	path := fmt.Sprintf("%s.fields.%s", entity, f.Name)
	line := 0
	if f.Pos.IsValid() {
		line = f.Pos.Line()
	}

	if IsAttributeType(f.Type) {
		if f.Type == TypeIncrement && f.Default != nil {
			return []ValidationError{{
				Field:   path + ".default",
				Message: "increment fields take no default",
				Code:    ErrDefaultOnRelation,
				Line:    line,
			}}
		}
		return nil
	}

	props, ok := required[f.Type]
	if !ok {
		return []ValidationError{{
			Field:   path + ".type",
			Message: fmt.Sprintf("unknown field type %q", f.Type),
			Code:    ErrUnknownFieldType,
			Line:    line,
		}}
	}

	var errs []ValidationError
	if f.Default != nil {
		errs = append(errs, ValidationError{
			Field:   path + ".default",
			Message: "relations take no default",
			Code:    ErrDefaultOnRelation,
			Line:    line,
		})
	}

	set := stringProps(&f)
	for _, prop := range props {
		if *set[prop] == "" {
			errs = append(errs, ValidationError{
				Field:   path + "." + prop,
				Message: fmt.Sprintf("%s relation requires %q", f.Type, prop),
				Code:    ErrMissingRelationKey,
				Line:    line,
			})
		}
	}

	for _, target := range []struct{ prop, entity string }{
		{"related", f.Related},
		{"through", f.Through},
		{"pivot", f.Pivot},
	} {
		if target.entity != "" && !entities[target.entity] {
			errs = append(errs, ValidationError{
				Field:   path + "." + target.prop,
				Message: fmt.Sprintf("model %q is not defined", target.entity),
				Code:    ErrUnknownRelated,
				Line:    line,
			})
		}
	}

	return errs
}
