package model

import "errors"

var (
	// ErrUnknownModel is returned when an entity name is not registered.
	ErrUnknownModel = errors.New("unknown model")

	// ErrUnknownKind is returned for a field filter on an undeclared
	// attribute kind.
	ErrUnknownKind = errors.New("unknown attribute kind")

	// ErrNotRegistered is returned when a model is used for resolution
	// before being added to a Registry.
	ErrNotRegistered = errors.New("model is not registered")

	// ErrDuplicateModel is returned when two models share an entity name.
	ErrDuplicateModel = errors.New("duplicate model")
)
