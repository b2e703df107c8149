package ecs

import (
	"fmt"
	"reflect"
	"slices"
)

// EntityRecord locates an entity's row. A nil Archetype marks an entity whose
// identity is reserved but whose components have not been placed yet.
type EntityRecord struct {
	Archetype *Archetype
	Row       int
}

// Storage owns entity identities, the component registry, the archetype
// store and the per-entity records tying them together. While locked (during
// a tick) every structural operation fails with ErrInvalidPhase; value reads
// and writes stay allowed.
type Storage struct {
	pool     *EntityPool
	registry *Registry
	store    *ArchetypeStore
	records  []EntityRecord
	locked   bool
}

func NewStorage() *Storage {
	reg := NewRegistry()
	return &Storage{
		pool:     NewEntityPool(),
		registry: reg,
		store:    NewArchetypeStore(reg),
		records:  make([]EntityRecord, 0, 1024),
	}
}

func (s *Storage) Pool() *EntityPool           { return s.pool }
func (s *Storage) Registry() *Registry         { return s.registry }
func (s *Storage) Archetypes() *ArchetypeStore { return s.store }
func (s *Storage) Len() int                    { return s.pool.Len() }
func (s *Storage) Alive(h EntityHandle) bool   { return s.pool.Alive(h) }
func (s *Storage) Lock()                       { s.locked = true }
func (s *Storage) Unlock()                     { s.locked = false }
func (s *Storage) Locked() bool                { return s.locked }

// Query compiles a query over this storage's archetypes.
func (s *Storage) Query(required, excluded []TypeID) (*Query, error) {
	return NewQuery(s.store, required, excluded)
}

// Spawn creates an entity holding the given components.
func (s *Storage) Spawn(values ...ComponentValue) (EntityHandle, error) {
	if s.locked {
		return EntityHandle{}, fmt.Errorf("spawn: %w", ErrInvalidPhase)
	}
	vals, types, err := s.resolve(values)
	if err != nil {
		return EntityHandle{}, fmt.Errorf("spawn: %w", err)
	}
	a, err := s.store.GetOrCreate(types)
	if err != nil {
		return EntityHandle{}, fmt.Errorf("spawn: %w", err)
	}
	h := s.reserve()
	if err := s.place(h, a, vals); err != nil {
		_ = s.pool.Destroy(h)
		return EntityHandle{}, fmt.Errorf("spawn: %w", err)
	}
	return h, nil
}

// Despawn removes the entity and frees its identity.
func (s *Storage) Despawn(h EntityHandle) error {
	if s.locked {
		return fmt.Errorf("despawn %s: %w", h, ErrInvalidPhase)
	}
	if !s.pool.Alive(h) {
		return fmt.Errorf("despawn %s: %w", h, ErrInvalidHandle)
	}
	rec := &s.records[h.Index]
	if rec.Archetype != nil {
		s.removeRow(rec.Archetype, rec.Row)
		*rec = EntityRecord{}
	}
	return s.pool.Destroy(h)
}

// Add attaches a component to a live entity, moving it to the archetype of
// its new component set. A nil value uses the descriptor default.
func (s *Storage) Add(h EntityHandle, id TypeID, v any) error {
	if s.locked {
		return fmt.Errorf("add component %d to %s: %w", id, h, ErrInvalidPhase)
	}
	rec, err := s.record(h)
	if err != nil {
		return fmt.Errorf("add component: %w", err)
	}
	desc, err := s.registry.Descriptor(id)
	if err != nil {
		return fmt.Errorf("add component: %w", err)
	}
	if rec.Archetype.Has(id) {
		return fmt.Errorf("add %s to %s: already present: %w", desc.Name, h, ErrComponentMismatch)
	}
	v, err = coerce(desc, v)
	if err != nil {
		return fmt.Errorf("add component: %w", err)
	}
	dst, err := s.store.GetOrCreate(append(rec.Archetype.Types(), id))
	if err != nil {
		return fmt.Errorf("add component: %w", err)
	}
	return s.moveEntity(h, rec, dst, map[TypeID]any{id: v})
}

// Remove detaches a component from a live entity.
func (s *Storage) Remove(h EntityHandle, id TypeID) error {
	if s.locked {
		return fmt.Errorf("remove component %d from %s: %w", id, h, ErrInvalidPhase)
	}
	rec, err := s.record(h)
	if err != nil {
		return fmt.Errorf("remove component: %w", err)
	}
	if !rec.Archetype.Has(id) {
		return fmt.Errorf("remove component %d from %s: not present: %w", id, h, ErrComponentMismatch)
	}
	types := slices.DeleteFunc(rec.Archetype.Types(), func(t TypeID) bool { return t == id })
	dst, err := s.store.GetOrCreate(types)
	if err != nil {
		return fmt.Errorf("remove component: %w", err)
	}
	return s.moveEntity(h, rec, dst, nil)
}

func (s *Storage) moveEntity(h EntityHandle, rec *EntityRecord, dst *Archetype, extra map[TypeID]any) error {
	src, row := rec.Archetype, rec.Row
	newRow, moved, ok, err := s.store.move(src, row, dst, extra)
	if err != nil {
		return err
	}
	if ok {
		s.records[moved.Index].Row = row
	}
	s.records[h.Index] = EntityRecord{Archetype: dst, Row: newRow}
	return nil
}

// Get returns a copy of the entity's component value.
func (s *Storage) Get(h EntityHandle, id TypeID) (any, error) {
	rec, err := s.record(h)
	if err != nil {
		return nil, err
	}
	c, ok := rec.Archetype.column(id)
	if !ok {
		return nil, fmt.Errorf("get component %d of %s: %w", id, h, ErrComponentMismatch)
	}
	return c.get(rec.Row), nil
}

// Set overwrites the entity's component value in place.
func (s *Storage) Set(h EntityHandle, id TypeID, v any) error {
	rec, err := s.record(h)
	if err != nil {
		return err
	}
	c, ok := rec.Archetype.column(id)
	if !ok {
		return fmt.Errorf("set component %d of %s: %w", id, h, ErrComponentMismatch)
	}
	return c.set(rec.Row, v)
}

func (s *Storage) Has(h EntityHandle, id TypeID) bool {
	rec, err := s.record(h)
	return err == nil && rec.Archetype.Has(id)
}

// Record returns where the entity is stored.
func (s *Storage) Record(h EntityHandle) (EntityRecord, error) {
	rec, err := s.record(h)
	if err != nil {
		return EntityRecord{}, err
	}
	return *rec, nil
}

// Clear drops every entity, running destructors, and returns how many live
// entities were released. Every handle issued before the call is invalid
// afterwards.
func (s *Storage) Clear() int {
	live := s.pool.Len()
	s.store.clear()
	s.pool.Reset()
	clear(s.records)
	return live
}

// Ptr returns a pointer to the entity's component of type T. The pointer is
// valid until the next structural change.
func Ptr[T any](s *Storage, h EntityHandle, id TypeID) (*T, error) {
	rec, err := s.record(h)
	if err != nil {
		return nil, err
	}
	c, ok := rec.Archetype.column(id)
	if !ok {
		return nil, fmt.Errorf("component %d of %s: %w", id, h, ErrComponentMismatch)
	}
	tc, ok := c.(*typedColumn[T])
	if !ok {
		return nil, fmt.Errorf("component %d holds %s, not %s: %w", id, c.descriptor().Type, reflect.TypeFor[T](), ErrComponentMismatch)
	}
	return &tc.data[rec.Row], nil
}

func (s *Storage) record(h EntityHandle) (*EntityRecord, error) {
	if !s.pool.Alive(h) {
		return nil, fmt.Errorf("entity %s: %w", h, ErrInvalidHandle)
	}
	rec := &s.records[h.Index]
	if rec.Archetype == nil {
		return nil, fmt.Errorf("entity %s not placed yet: %w", h, ErrInvalidHandle)
	}
	return rec, nil
}

// reserve allocates an identity without placing it in any archetype.
func (s *Storage) reserve() EntityHandle {
	h := s.pool.Create()
	for len(s.records) <= int(h.Index) {
		s.records = append(s.records, EntityRecord{})
	}
	s.records[h.Index] = EntityRecord{}
	return h
}

func (s *Storage) place(h EntityHandle, a *Archetype, vals map[TypeID]any) error {
	row, err := s.store.Insert(a, h, vals)
	if err != nil {
		return err
	}
	s.records[h.Index] = EntityRecord{Archetype: a, Row: row}
	return nil
}

func (s *Storage) removeRow(a *Archetype, row int) {
	moved, ok := s.store.Remove(a, row)
	if ok {
		s.records[moved.Index].Row = row
	}
}

// check validates a component list without building any default value.
func (s *Storage) check(values []ComponentValue) error {
	seen := make(map[TypeID]struct{}, len(values))
	for _, cv := range values {
		desc, err := s.registry.Descriptor(cv.ID)
		if err != nil {
			return err
		}
		if _, dup := seen[cv.ID]; dup {
			return fmt.Errorf("component %s listed twice: %w", desc.Name, ErrComponentMismatch)
		}
		seen[cv.ID] = struct{}{}
		if cv.Value != nil {
			if _, err := coerce(desc, cv.Value); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolve validates a component list and fills in defaults.
func (s *Storage) resolve(values []ComponentValue) (map[TypeID]any, []TypeID, error) {
	if err := s.check(values); err != nil {
		return nil, nil, err
	}
	vals := make(map[TypeID]any, len(values))
	types := make([]TypeID, 0, len(values))
	for _, cv := range values {
		desc, _ := s.registry.Descriptor(cv.ID)
		v, err := coerce(desc, cv.Value)
		if err != nil {
			return nil, nil, err
		}
		vals[cv.ID] = v
		types = append(types, cv.ID)
	}
	return vals, types, nil
}

func coerce(desc *Descriptor, v any) (any, error) {
	if v == nil {
		return desc.defaultValue(), nil
	}
	if t := reflect.TypeOf(v); t != desc.Type && !t.AssignableTo(desc.Type) {
		return nil, fmt.Errorf("component %s got %s: %w", desc.Name, t, ErrComponentMismatch)
	}
	return v, nil
}
