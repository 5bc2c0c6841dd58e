package model

import "fmt"

// Kind identifies the variant of an Attribute.
type Kind int

const (
	KindAttr Kind = iota + 1
	KindString
	KindNumber
	KindBoolean
	KindIncrement
	KindRelation
)

var kindNames = map[Kind]string{
	KindAttr:      "attr",
	KindString:    "string",
	KindNumber:    "number",
	KindBoolean:   "boolean",
	KindIncrement: "increment",
	KindRelation:  "relation",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps an attribute kind name to its Kind.
func ParseKind(name string) (Kind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: the attribute name %q doesn't exist", ErrUnknownKind, name)
}
