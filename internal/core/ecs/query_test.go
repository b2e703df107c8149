package ecs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expworld/simkernel/internal/core/ecs"
)

func TestQueryMatchesEveryArchetypeCorrectly(t *testing.T) {
	f := newFixture(t)
	all := []ecs.TypeID{f.pos, f.vel, f.health}

	// every subset of {pos, vel, health}
	for bits := 0; bits < 8; bits++ {
		var set []ecs.TypeID
		for i, id := range all {
			if bits&(1<<i) != 0 {
				set = append(set, id)
			}
		}
		_, err := f.store.GetOrCreate(set)
		require.NoError(t, err)
	}
	require.Equal(t, 8, f.store.Len())

	filters := []struct {
		name               string
		required, excluded []ecs.TypeID
	}{
		{"everything", nil, nil},
		{"pos", []ecs.TypeID{f.pos}, nil},
		{"pos+vel", []ecs.TypeID{f.pos, f.vel}, nil},
		{"pos without health", []ecs.TypeID{f.pos}, []ecs.TypeID{f.health}},
		{"only excluded", nil, []ecs.TypeID{f.vel, f.health}},
	}
	for _, tc := range filters {
		t.Run(tc.name, func(t *testing.T) {
			q, err := ecs.NewQuery(f.store, tc.required, tc.excluded)
			require.NoError(t, err)

			seen := map[*ecs.Archetype]bool{}
			for r := range q.Iterate() {
				seen[r.Archetype()] = true
			}
			for _, a := range f.store.Archetypes() {
				want := containsAll(a, tc.required) && containsNone(a, tc.excluded)
				assert.Equal(t, want, seen[a], "archetype %v", a.Types())
			}
		})
	}
}

func TestQueryDiscoversLaterArchetypes(t *testing.T) {
	f := newFixture(t)
	q, err := ecs.NewQuery(f.store, []ecs.TypeID{f.pos}, nil)
	require.NoError(t, err)
	assert.Empty(t, q.Archetypes())

	a, err := f.store.GetOrCreate([]ecs.TypeID{f.pos, f.health})
	require.NoError(t, err)
	_, err = f.store.Insert(a, ecs.EntityHandle{}, map[ecs.TypeID]any{f.pos: position{}, f.health: health{}})
	require.NoError(t, err)

	assert.Equal(t, []*ecs.Archetype{a}, q.Archetypes())
	assert.Equal(t, 1, q.Count())
}

func TestQueryIterateIsRestartable(t *testing.T) {
	f := newFixture(t)
	a, err := f.store.GetOrCreate([]ecs.TypeID{f.pos})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := f.store.Insert(a, ecs.EntityHandle{Index: uint32(i)}, map[ecs.TypeID]any{f.pos: position{}})
		require.NoError(t, err)
	}
	q, err := ecs.NewQuery(f.store, []ecs.TypeID{f.pos}, nil)
	require.NoError(t, err)

	seq := q.Iterate()
	count := func() int {
		n := 0
		for r := range seq {
			n += r.Len()
		}
		return n
	}
	assert.Equal(t, 3, count())
	assert.Equal(t, 3, count())

	for range seq {
		break
	}
	assert.Equal(t, 3, count(), "an abandoned walk does not affect the next one")
}

func TestQueryCompileErrors(t *testing.T) {
	f := newFixture(t)
	_, err := ecs.NewQuery(f.store, []ecs.TypeID{123}, nil)
	assert.ErrorIs(t, err, ecs.ErrUnknownType)

	_, err = ecs.NewQuery(f.store, []ecs.TypeID{f.pos}, []ecs.TypeID{f.pos})
	assert.ErrorIs(t, err, ecs.ErrComponentMismatch)
}

func TestRowRangeAccess(t *testing.T) {
	f := newFixture(t)
	a, err := f.store.GetOrCreate([]ecs.TypeID{f.pos, f.vel})
	require.NoError(t, err)
	_, err = f.store.Insert(a, ecs.EntityHandle{Index: 4}, map[ecs.TypeID]any{f.pos: position{1, 1}, f.vel: velocity{2, 2}})
	require.NoError(t, err)
	q, err := ecs.NewQuery(f.store, []ecs.TypeID{f.vel}, nil)
	require.NoError(t, err)

	for r := range q.Iterate() {
		assert.Equal(t, []ecs.EntityHandle{{Index: 4}}, r.Entities())

		v, err := r.Value(0, f.vel)
		require.NoError(t, err)
		assert.Equal(t, velocity{2, 2}, v)

		require.NoError(t, r.SetValue(0, f.pos, position{5, 5}))
		assert.ErrorIs(t, r.SetValue(0, f.pos, velocity{}), ecs.ErrComponentMismatch)
		_, err = r.Value(0, f.health)
		assert.ErrorIs(t, err, ecs.ErrComponentMismatch)

		_, err = ecs.Column[velocity](r, f.pos)
		assert.ErrorIs(t, err, ecs.ErrComponentMismatch)
		pos, err := ecs.Column[position](r, f.pos)
		require.NoError(t, err)
		assert.Equal(t, []position{{5, 5}}, pos)
	}
}

func containsAll(a *ecs.Archetype, ids []ecs.TypeID) bool {
	for _, id := range ids {
		if !a.Has(id) {
			return false
		}
	}
	return true
}

func containsNone(a *ecs.Archetype, ids []ecs.TypeID) bool {
	for _, id := range ids {
		if a.Has(id) {
			return false
		}
	}
	return true
}
