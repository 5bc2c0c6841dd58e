package compiler

import (
	"fmt"

	"github.com/roach88/relstore/internal/model"
)

// Build validates specs and registers one model per spec in a new
// registry for connection.
func Build(specs []ModelSpec, connection string) (*model.Registry, error) {
	if errs := Validate(specs); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	reg := model.NewRegistry(connection)
	for _, spec := range specs {
		m := model.New(spec.Entity, model.WithPrimaryKey(spec.PrimaryKey...))
		for _, f := range spec.Fields {
			attr, err := buildField(m, f)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", spec.Entity, f.Name, err)
			}
			m.Field(f.Name, attr)
		}
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func buildField(m *model.Model, f FieldSpec) (model.Attribute, error) {
	var def any
	if f.Default != nil {
		def = model.Literal(f.Default)
	}

	switch f.Type {
	case TypeAttr:
		return model.Attr(def), nil
	case TypeString:
		return model.String(def), nil
	case TypeNumber:
		return model.Number(def), nil
	case TypeBoolean:
		return model.Boolean(def), nil
	case TypeIncrement:
		return model.Increment(), nil
	case TypeHasOne:
		return m.HasOne(f.Related, f.ForeignKey, f.LocalKey), nil
	case TypeBelongsTo:
		return m.BelongsTo(f.Related, f.ForeignKey, f.OwnerKey), nil
	case TypeHasMany:
		return m.HasMany(f.Related, f.ForeignKey, f.LocalKey), nil
	case TypeHasManyBy:
		return m.HasManyBy(f.Related, f.ForeignKey, f.OwnerKey), nil
	case TypeHasManyThrough:
		return m.HasManyThrough(f.Related, f.Through, f.FirstKey, f.SecondKey, f.LocalKey, f.SecondLocalKey), nil
	case TypeBelongsToMany:
		return m.BelongsToMany(f.Related, f.Pivot, f.ForeignPivotKey, f.RelatedPivotKey, f.ParentKey, f.RelatedKey), nil
	case TypeMorphTo:
		return m.MorphTo(f.MorphID, f.MorphType), nil
	case TypeMorphOne:
		return m.MorphOne(f.Related, f.MorphID, f.MorphType, f.LocalKey), nil
	case TypeMorphMany:
		return m.MorphMany(f.Related, f.MorphID, f.MorphType, f.LocalKey), nil
	case TypeMorphToMany:
		return m.MorphToMany(f.Related, f.Pivot, f.RelatedID, f.MorphID, f.MorphType, f.ParentKey, f.RelatedKey), nil
	case TypeMorphedByMany:
		return m.MorphedByMany(f.Related, f.Pivot, f.RelatedID, f.MorphID, f.MorphType, f.ParentKey, f.RelatedKey), nil
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownKind, f.Type)
	}
}
