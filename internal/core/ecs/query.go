package ecs

import (
	"fmt"
	"iter"
	"reflect"
	"slices"
)

// Query selects archetypes holding every required type and none of the
// excluded ones. It is not cached: each Iterate call re-resolves the
// matching set, so archetypes created after compilation are found.
type Query struct {
	store    *ArchetypeStore
	required []TypeID
	excluded []TypeID
	reqMask  mask
	excMask  mask
}

// NewQuery compiles a query over store.
func NewQuery(store *ArchetypeStore, required, excluded []TypeID) (*Query, error) {
	req := normalize(required)
	exc := normalize(excluded)
	for _, id := range append(slices.Clone(req), exc...) {
		if _, err := store.registry.Descriptor(id); err != nil {
			return nil, fmt.Errorf("compile query: %w", err)
		}
	}
	q := &Query{
		store:    store,
		required: req,
		excluded: exc,
		reqMask:  makeMask(req),
		excMask:  makeMask(exc),
	}
	if q.reqMask.intersects(q.excMask) {
		return nil, fmt.Errorf("compile query: type both required and excluded: %w", ErrComponentMismatch)
	}
	return q, nil
}

func (q *Query) Required() []TypeID { return slices.Clone(q.required) }
func (q *Query) Excluded() []TypeID { return slices.Clone(q.excluded) }

// Matches reports whether a belongs to the query's result.
func (q *Query) Matches(a *Archetype) bool {
	return a.mask.includesAll(q.reqMask) && !a.mask.intersects(q.excMask)
}

// Iterate yields one RowRange per matching archetype, including empty ones.
// The archetype list is fixed at the moment iteration starts.
func (q *Query) Iterate() iter.Seq[RowRange] {
	return func(yield func(RowRange) bool) {
		archs := q.store.archetypes[:len(q.store.archetypes):len(q.store.archetypes)]
		for _, a := range archs {
			if !q.Matches(a) {
				continue
			}
			if !yield(RowRange{arch: a, Start: 0, End: a.Len()}) {
				return
			}
		}
	}
}

// Archetypes returns the archetypes currently matching the query.
func (q *Query) Archetypes() []*Archetype {
	var out []*Archetype
	for r := range q.Iterate() {
		out = append(out, r.arch)
	}
	return out
}

// Count returns the number of entities currently matching the query.
func (q *Query) Count() int {
	n := 0
	for r := range q.Iterate() {
		n += r.Len()
	}
	return n
}

// Each calls fn for every matching entity, row by row.
func (q *Query) Each(fn func(r RowRange, i int)) {
	for r := range q.Iterate() {
		for i := 0; i < r.Len(); i++ {
			fn(r, i)
		}
	}
}

// RowRange is a contiguous run of rows in one archetype. Row indices passed
// to its methods are relative to Start.
type RowRange struct {
	arch  *Archetype
	Start int
	End   int
}

func (r RowRange) Archetype() *Archetype { return r.arch }

func (r RowRange) Len() int { return r.End - r.Start }

func (r RowRange) Entities() []EntityHandle { return r.arch.entities[r.Start:r.End] }

// Value returns the component value of row i.
func (r RowRange) Value(i int, id TypeID) (any, error) {
	c, ok := r.arch.column(id)
	if !ok {
		return nil, fmt.Errorf("row value: component %d not in archetype: %w", id, ErrComponentMismatch)
	}
	return c.get(r.Start + i), nil
}

// SetValue overwrites the component value of row i. It is not a structural
// change and is allowed mid-tick.
func (r RowRange) SetValue(i int, id TypeID, v any) error {
	c, ok := r.arch.column(id)
	if !ok {
		return fmt.Errorf("row set: component %d not in archetype: %w", id, ErrComponentMismatch)
	}
	return c.set(r.Start+i, v)
}

// Column returns the typed slice of component id over the range. Writes go
// straight to storage.
func Column[T any](r RowRange, id TypeID) ([]T, error) {
	c, ok := r.arch.column(id)
	if !ok {
		return nil, fmt.Errorf("column %d not in archetype: %w", id, ErrComponentMismatch)
	}
	tc, ok := c.(*typedColumn[T])
	if !ok {
		return nil, fmt.Errorf("column %d holds %s, not %s: %w", id, c.descriptor().Type, reflect.TypeFor[T](), ErrComponentMismatch)
	}
	return tc.data[r.Start:r.End], nil
}
