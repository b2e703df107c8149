package ecs

import (
	"errors"
	"fmt"
	"slices"
)

// ChangeKind classifies an applied structural change.
type ChangeKind int

const (
	ChangeSpawned ChangeKind = iota
	ChangeDestroyed
	ChangeAdded
	ChangeRemoved
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeSpawned:
		return "spawned"
	case ChangeDestroyed:
		return "destroyed"
	case ChangeAdded:
		return "added"
	case ChangeRemoved:
		return "removed"
	}
	return fmt.Sprintf("ChangeKind(%d)", int(k))
}

// Change describes one structural change applied by Flush. Type is only set
// for ChangeAdded and ChangeRemoved.
type Change struct {
	Kind   ChangeKind
	Entity EntityHandle
	Type   TypeID
}

type command struct {
	kind   ChangeKind
	entity EntityHandle
	id     TypeID
	value  any
	values []ComponentValue
}

// CommandBuffer queues structural changes requested during a tick. Requests
// are validated when queued so most mistakes surface to the requesting
// system; the queue is applied in order by Flush once the tick is over.
type CommandBuffer struct {
	storage    *Storage
	cmds       []command
	destroying map[EntityHandle]struct{}
}

func NewCommandBuffer(s *Storage) *CommandBuffer {
	return &CommandBuffer{
		storage:    s,
		cmds:       make([]command, 0, 64),
		destroying: make(map[EntityHandle]struct{}),
	}
}

// Spawn reserves an entity identity now and places its components at flush.
// Until then the handle is alive but holds no components.
func (b *CommandBuffer) Spawn(values ...ComponentValue) (EntityHandle, error) {
	if err := b.storage.check(values); err != nil {
		return EntityHandle{}, fmt.Errorf("queue spawn: %w", err)
	}
	h := b.storage.reserve()
	b.cmds = append(b.cmds, command{kind: ChangeSpawned, entity: h, values: slices.Clone(values)})
	return h, nil
}

// Destroy queues the entity's removal. Queuing the same entity again before
// the flush is a no-op.
func (b *CommandBuffer) Destroy(h EntityHandle) error {
	if !b.storage.pool.Alive(h) {
		return fmt.Errorf("queue destroy %s: %w", h, ErrInvalidHandle)
	}
	if _, queued := b.destroying[h]; queued {
		return nil
	}
	b.destroying[h] = struct{}{}
	b.cmds = append(b.cmds, command{kind: ChangeDestroyed, entity: h})
	return nil
}

func (b *CommandBuffer) Add(h EntityHandle, id TypeID, v any) error {
	if !b.storage.pool.Alive(h) {
		return fmt.Errorf("queue add %s: %w", h, ErrInvalidHandle)
	}
	desc, err := b.storage.registry.Descriptor(id)
	if err != nil {
		return fmt.Errorf("queue add: %w", err)
	}
	v, err = coerce(desc, v)
	if err != nil {
		return fmt.Errorf("queue add: %w", err)
	}
	b.cmds = append(b.cmds, command{kind: ChangeAdded, entity: h, id: id, value: v})
	return nil
}

func (b *CommandBuffer) Remove(h EntityHandle, id TypeID) error {
	if !b.storage.pool.Alive(h) {
		return fmt.Errorf("queue remove %s: %w", h, ErrInvalidHandle)
	}
	if _, err := b.storage.registry.Descriptor(id); err != nil {
		return fmt.Errorf("queue remove: %w", err)
	}
	b.cmds = append(b.cmds, command{kind: ChangeRemoved, entity: h, id: id})
	return nil
}

// Len returns the number of queued commands.
func (b *CommandBuffer) Len() int { return len(b.cmds) }

// Flush applies queued commands in order. A failing command does not stop
// the rest; its error is joined into the returned error and the applied
// changes are reported in order.
func (b *CommandBuffer) Flush() ([]Change, error) {
	if b.storage.locked {
		return nil, fmt.Errorf("flush commands: %w", ErrInvalidPhase)
	}
	var (
		changes []Change
		errs    []error
	)
	for _, c := range b.cmds {
		var err error
		switch c.kind {
		case ChangeSpawned:
			err = b.materialize(c)
		case ChangeDestroyed:
			err = b.storage.Despawn(c.entity)
		case ChangeAdded:
			err = b.storage.Add(c.entity, c.id, c.value)
		case ChangeRemoved:
			err = b.storage.Remove(c.entity, c.id)
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		changes = append(changes, Change{Kind: c.kind, Entity: c.entity, Type: c.id})
	}
	clear(b.cmds)
	b.cmds = b.cmds[:0]
	clear(b.destroying)
	return changes, errors.Join(errs...)
}

// Discard drops queued commands and releases identities reserved by Spawn.
func (b *CommandBuffer) Discard() {
	for _, c := range b.cmds {
		if c.kind == ChangeSpawned && b.storage.pool.Alive(c.entity) && b.storage.records[c.entity.Index].Archetype == nil {
			_ = b.storage.pool.Destroy(c.entity)
		}
	}
	clear(b.cmds)
	b.cmds = b.cmds[:0]
	clear(b.destroying)
}

func (b *CommandBuffer) materialize(c command) error {
	s := b.storage
	if !s.pool.Alive(c.entity) {
		// released by Clear before the flush
		return fmt.Errorf("spawn %s: %w", c.entity, ErrInvalidHandle)
	}
	vals, types, err := s.resolve(c.values)
	if err == nil {
		var a *Archetype
		if a, err = s.store.GetOrCreate(types); err == nil {
			err = s.place(c.entity, a, vals)
		}
	}
	if err != nil {
		_ = s.pool.Destroy(c.entity)
		return fmt.Errorf("spawn %s: %w", c.entity, err)
	}
	return nil
}
