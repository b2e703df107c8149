package ecs

import (
	"fmt"
	"reflect"
)

// Registry assigns stable TypeIDs to component descriptors. Registration is
// only open while the owning world is being configured.
type Registry struct {
	descriptors []*Descriptor
	byType      map[reflect.Type]TypeID
	byName      map[string]TypeID
	locked      bool
}

func NewRegistry() *Registry {
	return &Registry{
		descriptors: make([]*Descriptor, 0, 16),
		byType:      make(map[reflect.Type]TypeID, 16),
		byName:      make(map[string]TypeID, 16),
	}
}

// Register adds a descriptor and returns its id. Registering a type that is
// already known returns the existing id.
func (r *Registry) Register(desc Descriptor) (TypeID, error) {
	if desc.Type == nil || desc.newColumn == nil {
		return 0, fmt.Errorf("register component %q: descriptor not built with Describe: %w", desc.Name, ErrInvalidArgument)
	}
	if id, ok := r.byType[desc.Type]; ok {
		return id, nil
	}
	if r.locked {
		return 0, fmt.Errorf("register component %s: %w", desc.Name, ErrInvalidPhase)
	}
	if other, ok := r.byName[desc.Name]; ok {
		return 0, fmt.Errorf("register component %s: name taken by %s: %w",
			desc.Type, r.descriptors[other].Type, ErrInvalidArgument)
	}
	id := TypeID(len(r.descriptors))
	d := desc
	r.descriptors = append(r.descriptors, &d)
	r.byType[d.Type] = id
	r.byName[d.Name] = id
	return id, nil
}

// Descriptor returns the descriptor registered under id.
func (r *Registry) Descriptor(id TypeID) (*Descriptor, error) {
	if int(id) >= len(r.descriptors) {
		return nil, fmt.Errorf("component type %d: %w", id, ErrUnknownType)
	}
	return r.descriptors[id], nil
}

// Lookup returns the id registered for t.
func (r *Registry) Lookup(t reflect.Type) (TypeID, bool) {
	id, ok := r.byType[t]
	return id, ok
}

// ByName returns the id registered under a component name.
func (r *Registry) ByName(name string) (TypeID, bool) {
	id, ok := r.byName[name]
	return id, ok
}

func (r *Registry) Len() int { return len(r.descriptors) }

// Lock closes registration. Idempotent re-registration keeps working.
func (r *Registry) Lock() { r.locked = true }

func (r *Registry) Locked() bool { return r.locked }

// IDFor returns the id of component type T.
func IDFor[T any](r *Registry) (TypeID, error) {
	t := reflect.TypeFor[T]()
	id, ok := r.byType[t]
	if !ok {
		return 0, fmt.Errorf("component type %s: %w", t, ErrUnknownType)
	}
	return id, nil
}
