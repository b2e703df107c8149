package event

import "github.com/expworld/simkernel/internal/core/ecs"

// Structural change events, emitted when deferred commands are applied.

type EntitySpawned struct {
	Entity ecs.EntityHandle
	Tick   uint64
}

type EntityDestroyed struct {
	Entity ecs.EntityHandle
	Tick   uint64
}

type ComponentAdded struct {
	Entity ecs.EntityHandle
	Type   ecs.TypeID
	Tick   uint64
}

type ComponentRemoved struct {
	Entity ecs.EntityHandle
	Type   ecs.TypeID
	Tick   uint64
}

// EmitChanges emits one event per applied change, in order.
func EmitChanges(b *Bus, tick uint64, changes []ecs.Change) {
	for _, c := range changes {
		switch c.Kind {
		case ecs.ChangeSpawned:
			Emit(b, EntitySpawned{Entity: c.Entity, Tick: tick})
		case ecs.ChangeDestroyed:
			Emit(b, EntityDestroyed{Entity: c.Entity, Tick: tick})
		case ecs.ChangeAdded:
			Emit(b, ComponentAdded{Entity: c.Entity, Type: c.Type, Tick: tick})
		case ecs.ChangeRemoved:
			Emit(b, ComponentRemoved{Entity: c.Entity, Type: c.Type, Tick: tick})
		}
	}
}
