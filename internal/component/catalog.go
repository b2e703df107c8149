package component

import (
	"fmt"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/expworld/simkernel/internal/core/ecs"
)

// Registrar is anything that can register a component descriptor, usually a
// world in its configuration phase.
type Registrar interface {
	RegisterDescriptor(desc ecs.Descriptor) (ecs.TypeID, error)
}

type kind struct {
	id     ecs.TypeID
	decode func(node *yaml.Node) (any, error)
}

// IDs holds the type ids of the catalog components in one world, keyed by
// the kind names used in scenario files.
type IDs struct {
	Position ecs.TypeID
	Velocity ecs.TypeID
	Counter  ecs.TypeID
	Lifetime ecs.TypeID
	Label    ecs.TypeID

	kinds map[string]kind
}

// Register registers every catalog component.
func Register(r Registrar) (*IDs, error) {
	ids := &IDs{kinds: make(map[string]kind, 5)}
	for _, reg := range []struct {
		name string
		dst  *ecs.TypeID
		desc ecs.Descriptor
		dec  func(*yaml.Node) (any, error)
	}{
		{"position", &ids.Position, ecs.Describe[Position](ecs.WithName("Position")), decode[Position]},
		{"velocity", &ids.Velocity, ecs.Describe[Velocity](ecs.WithName("Velocity")), decode[Velocity]},
		{"counter", &ids.Counter, ecs.Describe[Counter](ecs.WithName("Counter")), decode[Counter]},
		{"lifetime", &ids.Lifetime, ecs.Describe[Lifetime](ecs.WithName("Lifetime")), decode[Lifetime]},
		{"label", &ids.Label, ecs.Describe[Label](ecs.WithName("Label")), decode[Label]},
	} {
		id, err := r.RegisterDescriptor(reg.desc)
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", reg.name, err)
		}
		*reg.dst = id
		ids.kinds[reg.name] = kind{id: id, decode: reg.dec}
	}
	return ids, nil
}

// Kinds returns the known kind names, sorted.
func (ids *IDs) Kinds() []string {
	names := make([]string, 0, len(ids.kinds))
	for name := range ids.kinds {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Lookup returns the type id registered for a kind name.
func (ids *IDs) Lookup(name string) (ecs.TypeID, bool) {
	k, ok := ids.kinds[name]
	return k.id, ok
}

// Decode builds a component value of the named kind from a YAML node. A nil
// or empty node yields the type's default value.
func (ids *IDs) Decode(name string, node *yaml.Node) (ecs.ComponentValue, error) {
	k, ok := ids.kinds[name]
	if !ok {
		return ecs.ComponentValue{}, fmt.Errorf("component kind %q: %w", name, ecs.ErrUnknownType)
	}
	if node == nil || node.Kind == 0 || node.Tag == "!!null" {
		return ecs.Value(k.id, nil), nil
	}
	v, err := k.decode(node)
	if err != nil {
		return ecs.ComponentValue{}, fmt.Errorf("decode %s: %w", name, err)
	}
	return ecs.Value(k.id, v), nil
}

func decode[T any](node *yaml.Node) (any, error) {
	var v T
	if err := node.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
