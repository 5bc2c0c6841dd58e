package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/relstore/internal/value"
)

// ModelSpec is the compiled form of one CUE model definition.
type ModelSpec struct {
	Entity     string      `json:"entity"`
	PrimaryKey []string    `json:"primary_key,omitempty"`
	Fields     []FieldSpec `json:"fields"`
}

// FieldSpec declares one field. Type selects the attribute or relation
// variant; the remaining properties are read by the variants that use them.
type FieldSpec struct {
	Name    string      `json:"name"`
	Type    string      `json:"type"`
	Default value.Value `json:"default,omitempty"`

	Related         string `json:"related,omitempty"`
	ForeignKey      string `json:"foreign_key,omitempty"`
	LocalKey        string `json:"local_key,omitempty"`
	OwnerKey        string `json:"owner_key,omitempty"`
	Through         string `json:"through,omitempty"`
	FirstKey        string `json:"first_key,omitempty"`
	SecondKey       string `json:"second_key,omitempty"`
	SecondLocalKey  string `json:"second_local_key,omitempty"`
	Pivot           string `json:"pivot,omitempty"`
	ForeignPivotKey string `json:"foreign_pivot_key,omitempty"`
	RelatedPivotKey string `json:"related_pivot_key,omitempty"`
	ParentKey       string `json:"parent_key,omitempty"`
	RelatedKey      string `json:"related_key,omitempty"`
	RelatedID       string `json:"related_id,omitempty"`
	MorphID         string `json:"morph_id,omitempty"`
	MorphType       string `json:"morph_type,omitempty"`

	Pos token.Pos `json:"-"`
}

// Field returns the named field spec.
func (s *ModelSpec) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// stringProps maps CUE property names to the FieldSpec strings they set.
func stringProps(f *FieldSpec) map[string]*string {
	return map[string]*string{
		"type":            &f.Type,
		"related":         &f.Related,
		"foreignKey":      &f.ForeignKey,
		"localKey":        &f.LocalKey,
		"ownerKey":        &f.OwnerKey,
		"through":         &f.Through,
		"firstKey":        &f.FirstKey,
		"secondKey":       &f.SecondKey,
		"secondLocalKey":  &f.SecondLocalKey,
		"pivot":           &f.Pivot,
		"foreignPivotKey": &f.ForeignPivotKey,
		"relatedPivotKey": &f.RelatedPivotKey,
		"parentKey":       &f.ParentKey,
		"relatedKey":      &f.RelatedKey,
		"relatedId":       &f.RelatedID,
		"morphId":         &f.MorphID,
		"morphType":       &f.MorphType,
	}
}

// CompileSource compiles CUE source text and returns every model under
// the top-level "model" struct.
func CompileSource(filename, src string) ([]ModelSpec, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	return CompileModels(v)
}

// CompileModels compiles every model under root's "model" struct, in
// declaration order.
func CompileModels(root cue.Value) ([]ModelSpec, error) {
	models := root.LookupPath(cue.ParsePath("model"))
	if !models.Exists() {
		return nil, &CompileError{
			Field:   "model",
			Message: "no model definitions found",
			Pos:     root.Pos(),
		}
	}

	iter, err := models.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var specs []ModelSpec
	for iter.Next() {
		spec, err := CompileModel(iter.Value())
		if err != nil {
			return nil, err
		}
		specs = append(specs, *spec)
	}
	return specs, nil
}

// CompileModel parses one model struct, e.g. the value at "model.users":
//
//	model: users: {
//		primaryKey: "id"
//		fields: {
//			id:    {type: "increment"}
//			name:  {type: "string", default: ""}
//			posts: {type: "hasMany", related: "posts", foreignKey: "user_id"}
//		}
//	}
func CompileModel(v cue.Value) (*ModelSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ModelSpec{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Entity = labels[len(labels)-1].String()
	}

	pk, err := parsePrimaryKey(v)
	if err != nil {
		return nil, err
	}
	spec.PrimaryKey = pk

	fieldsVal := v.LookupPath(cue.ParsePath("fields"))
	if !fieldsVal.Exists() {
		return nil, &CompileError{
			Field:   spec.Entity + ".fields",
			Message: "fields are required",
			Pos:     v.Pos(),
		}
	}

	iter, err := fieldsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		field, err := parseField(spec.Entity, iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		spec.Fields = append(spec.Fields, field)
	}

	return spec, nil
}

// parsePrimaryKey accepts a single field name or a list of names.
func parsePrimaryKey(v cue.Value) ([]string, error) {
	pkVal := v.LookupPath(cue.ParsePath("primaryKey"))
	if !pkVal.Exists() {
		return nil, nil
	}

	if s, err := pkVal.String(); err == nil {
		return []string{s}, nil
	}

	iter, err := pkVal.List()
	if err != nil {
		return nil, &CompileError{
			Field:   "primaryKey",
			Message: "must be a string or a list of strings",
			Pos:     pkVal.Pos(),
		}
	}
	var keys []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		keys = append(keys, s)
	}
	return keys, nil
}

func parseField(entity, name string, v cue.Value) (FieldSpec, error) {
	field := FieldSpec{Name: name, Pos: v.Pos()}
	path := fmt.Sprintf("%s.fields.%s", entity, name)

	// A bare string is shorthand for {type: "<string>"}.
	if s, err := v.String(); err == nil {
		field.Type = s
		return field, nil
	}

	iter, err := v.Fields()
	if err != nil {
		return field, &CompileError{
			Field:   path,
			Message: "field must be a type name or a struct",
			Pos:     v.Pos(),
		}
	}

	props := stringProps(&field)
	for iter.Next() {
		label := iter.Label()
		if label == "default" {
			def, err := toValue(iter.Value())
			if err != nil {
				return field, err
			}
			field.Default = def
			continue
		}

		target, ok := props[label]
		if !ok {
			return field, &CompileError{
				Field:   path + "." + label,
				Message: fmt.Sprintf("unknown field property %q", label),
				Pos:     iter.Value().Pos(),
			}
		}
		s, err := iter.Value().String()
		if err != nil {
			return field, formatCUEError(err)
		}
		*target = s
	}

	if field.Type == "" {
		return field, &CompileError{
			Field:   path + ".type",
			Message: "type is required",
			Pos:     v.Pos(),
		}
	}
	return field, nil
}

// toValue converts a concrete CUE value into a Value.
func toValue(v cue.Value) (value.Value, error) {
	switch v.Kind() {
	case cue.NullKind:
		return value.Null{}, nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return value.Bool(b), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return value.Int(n), nil
	case cue.FloatKind, cue.NumberKind:
		f, err := v.Float64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return value.NumberValue(f), nil
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		return value.String(s), nil
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		arr := value.Array{}
		for iter.Next() {
			elem, err := toValue(iter.Value())
			if err != nil {
				return nil, err
			}
			arr = append(arr, elem)
		}
		return arr, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		obj := value.Object{}
		for iter.Next() {
			elem, err := toValue(iter.Value())
			if err != nil {
				return nil, err
			}
			obj[iter.Label()] = elem
		}
		return obj, nil
	default:
		return nil, &CompileError{
			Field:   "default",
			Message: fmt.Sprintf("default must be concrete, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError is a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
