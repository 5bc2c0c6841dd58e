package schema

import "github.com/roach88/relstore/internal/value"

// Describe renders e as a value tree for display. An entity reached again
// along the same path renders as {"$ref": name}.
func Describe(e *Entity) value.Object {
	return describeEntity(e, map[*Entity]bool{})
}

func describeEntity(e *Entity, onPath map[*Entity]bool) value.Object {
	if onPath[e] {
		return value.Object{"$ref": value.String(e.Name)}
	}
	onPath[e] = true
	defer delete(onPath, e)

	fields := make(value.Object, len(e.Fields))
	for name, node := range e.Fields {
		fields[name] = describeNode(node, onPath)
	}
	return value.Object{
		"entity": value.String(e.Name),
		"fields": fields,
	}
}

func describeNode(n Node, onPath map[*Entity]bool) value.Value {
	switch node := n.(type) {
	case *Entity:
		return describeEntity(node, onPath)
	case Many:
		out := value.Object{"many": describeNode(node.Of, onPath)}
		if node.Pivot != "" {
			out["pivot"] = value.String(node.Pivot)
		}
		return out
	case Union:
		return value.Object{"union": value.String(node.TypeField)}
	default:
		return value.Null{}
	}
}
