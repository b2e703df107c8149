package ecs

import (
	"encoding/binary"
	"fmt"
	"slices"
)

// ArchetypeID indexes an archetype inside its store.
type ArchetypeID uint32

// Archetype stores every entity that has exactly the same component set.
// Row i of every column and of the entity slice describes one entity.
type Archetype struct {
	id       ArchetypeID
	types    []TypeID
	mask     mask
	columns  []column
	slots    map[TypeID]int
	entities []EntityHandle
}

func (a *Archetype) ID() ArchetypeID { return a.id }

// Types returns the sorted component set of the archetype.
func (a *Archetype) Types() []TypeID { return slices.Clone(a.types) }

func (a *Archetype) Len() int { return len(a.entities) }

func (a *Archetype) Has(id TypeID) bool { return a.mask.has(id) }

// Entities returns the entity column. The slice is owned by the archetype.
func (a *Archetype) Entities() []EntityHandle { return a.entities }

func (a *Archetype) column(id TypeID) (column, bool) {
	slot, ok := a.slots[id]
	if !ok {
		return nil, false
	}
	return a.columns[slot], true
}

// ArchetypeStore maps component sets to archetypes.
type ArchetypeStore struct {
	registry   *Registry
	archetypes []*Archetype
	index      map[string]*Archetype
}

func NewArchetypeStore(registry *Registry) *ArchetypeStore {
	return &ArchetypeStore{
		registry:   registry,
		archetypes: make([]*Archetype, 0, 16),
		index:      make(map[string]*Archetype, 16),
	}
}

// GetOrCreate returns the archetype for the given component set, creating an
// empty one if needed. The set is sorted and deduplicated first.
func (s *ArchetypeStore) GetOrCreate(types []TypeID) (*Archetype, error) {
	set := normalize(types)
	key := setKey(set)
	if a, ok := s.index[key]; ok {
		return a, nil
	}
	a := &Archetype{
		id:       ArchetypeID(len(s.archetypes)),
		types:    set,
		mask:     makeMask(set),
		columns:  make([]column, len(set)),
		slots:    make(map[TypeID]int, len(set)),
		entities: make([]EntityHandle, 0, 64),
	}
	for i, id := range set {
		desc, err := s.registry.Descriptor(id)
		if err != nil {
			return nil, fmt.Errorf("create archetype: %w", err)
		}
		a.columns[i] = desc.newColumn(desc)
		a.slots[id] = i
	}
	s.archetypes = append(s.archetypes, a)
	s.index[key] = a
	return a, nil
}

// Insert appends one row. values must hold exactly one value of the right
// type for every column; nothing is written unless all of them check out.
func (s *ArchetypeStore) Insert(a *Archetype, h EntityHandle, values map[TypeID]any) (int, error) {
	if len(values) != len(a.types) {
		return 0, fmt.Errorf("insert %s: %d values for %d columns: %w", h, len(values), len(a.types), ErrComponentMismatch)
	}
	for i, id := range a.types {
		v, ok := values[id]
		if !ok {
			return 0, fmt.Errorf("insert %s: missing component %d: %w", h, id, ErrComponentMismatch)
		}
		if !a.columns[i].accepts(v) {
			return 0, fmt.Errorf("insert %s: component %d got %T: %w", h, id, v, ErrComponentMismatch)
		}
	}
	for i, id := range a.types {
		a.columns[i].push(values[id])
	}
	a.entities = append(a.entities, h)
	return len(a.entities) - 1, nil
}

// Remove deletes row by swapping the last row into its place. It returns the
// entity that now occupies row, if any; the caller must update that
// entity's record.
func (s *ArchetypeStore) Remove(a *Archetype, row int) (moved EntityHandle, ok bool) {
	for _, c := range a.columns {
		c.swapRemove(row)
	}
	return swapRemoveEntity(a, row)
}

// move transfers row of src into dst. Columns shared by both are moved,
// columns only in src are destructed, and columns only in dst take their
// value from extra. All checks run before the first write.
func (s *ArchetypeStore) move(src *Archetype, row int, dst *Archetype, extra map[TypeID]any) (newRow int, moved EntityHandle, ok bool, err error) {
	h := src.entities[row]
	for i, id := range dst.types {
		if src.Has(id) {
			continue
		}
		v, present := extra[id]
		if !present {
			return 0, moved, false, fmt.Errorf("move %s: missing component %d: %w", h, id, ErrComponentMismatch)
		}
		if !dst.columns[i].accepts(v) {
			return 0, moved, false, fmt.Errorf("move %s: component %d got %T: %w", h, id, v, ErrComponentMismatch)
		}
	}
	for id := range extra {
		if !dst.Has(id) || src.Has(id) {
			return 0, moved, false, fmt.Errorf("move %s: unexpected component %d: %w", h, id, ErrComponentMismatch)
		}
	}

	for i, id := range dst.types {
		if c, shared := src.column(id); shared {
			c.moveTo(row, dst.columns[i])
		} else {
			dst.columns[i].push(extra[id])
		}
	}
	for i, id := range src.types {
		if !dst.Has(id) {
			src.columns[i].swapRemove(row)
		}
	}
	dst.entities = append(dst.entities, h)
	moved, ok = swapRemoveEntity(src, row)
	return len(dst.entities) - 1, moved, ok, nil
}

// Archetypes returns every archetype in creation order. The slice is owned
// by the store.
func (s *ArchetypeStore) Archetypes() []*Archetype { return s.archetypes }

func (s *ArchetypeStore) Len() int { return len(s.archetypes) }

// clear drops every row of every archetype, running destructors.
func (s *ArchetypeStore) clear() {
	for _, a := range s.archetypes {
		for _, c := range a.columns {
			c.clear()
		}
		a.entities = a.entities[:0]
	}
}

func swapRemoveEntity(a *Archetype, row int) (EntityHandle, bool) {
	last := len(a.entities) - 1
	var moved EntityHandle
	ok := row < last
	if ok {
		moved = a.entities[last]
		a.entities[row] = moved
	}
	a.entities = a.entities[:last]
	return moved, ok
}

func normalize(types []TypeID) []TypeID {
	set := slices.Clone(types)
	slices.Sort(set)
	return slices.Compact(set)
}

func setKey(set []TypeID) string {
	buf := make([]byte, 0, len(set)*4)
	for _, id := range set {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(id))
	}
	return string(buf)
}
