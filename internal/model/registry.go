package model

import (
	"fmt"
	"sync"
)

// Registry holds the models of one connection, keyed by entity name.
// Populate it at startup; lookups are safe for concurrent use.
type Registry struct {
	connection string

	mu     sync.RWMutex
	models map[string]*Model
	order  []string
}

// NewRegistry creates an empty registry for a connection.
func NewRegistry(connection string) *Registry {
	return &Registry{
		connection: connection,
		models:     make(map[string]*Model),
	}
}

// Connection returns the connection name.
func (r *Registry) Connection() string {
	return r.connection
}

// Register adds models and binds them to this registry.
func (r *Registry) Register(models ...*Model) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range models {
		if _, exists := r.models[m.entity]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateModel, m.entity)
		}
		if m.registry != nil && m.registry != r {
			return fmt.Errorf("model %s already belongs to connection %s", m.entity, m.registry.connection)
		}
		m.registry = r
		r.models[m.entity] = m
		r.order = append(r.order, m.entity)
	}
	return nil
}

// MustRegister is Register for static setup; it panics on error.
func (r *Registry) MustRegister(models ...*Model) *Registry {
	if err := r.Register(models...); err != nil {
		panic(err)
	}
	return r
}

// Model returns the model registered under entity.
func (r *Registry) Model(entity string) (*Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.models[entity]
	if !ok {
		return nil, fmt.Errorf("%w: %q is not registered in connection %q", ErrUnknownModel, entity, r.connection)
	}
	return m, nil
}

// Resolve accepts an entity name or a *Model and returns the registered
// model.
func (r *Registry) Resolve(ref any) (*Model, error) {
	switch v := ref.(type) {
	case *Model:
		return r.Model(v.entity)
	case string:
		return r.Model(v)
	default:
		return nil, fmt.Errorf("%w: cannot resolve %T", ErrUnknownModel, ref)
	}
}

// Models returns every model in registration order.
func (r *Registry) Models() []*Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Model, len(r.order))
	for i, name := range r.order {
		out[i] = r.models[name]
	}
	return out
}

// resolve finds a related model through owner's registry.
func resolve(owner *Model, entity string) (*Model, error) {
	if owner.registry == nil {
		return nil, fmt.Errorf("%w: %s (resolving %s)", ErrNotRegistered, owner.entity, entity)
	}
	return owner.registry.Model(entity)
}
