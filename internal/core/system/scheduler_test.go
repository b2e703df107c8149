package system_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/expworld/simkernel/internal/core/ecs"
	"github.com/expworld/simkernel/internal/core/system"
)

type recorder struct {
	name  string
	calls *[]string
}

func (r recorder) Update(*system.Context) bool {
	*r.calls = append(*r.calls, r.name)
	return true
}

func runTick(t *testing.T, s *system.Scheduler, storage *ecs.Storage) bool {
	t.Helper()
	ok, err := s.RunTick(system.Tick{Number: 1, DeltaTime: 1}, ecs.NewCommandBuffer(storage), storage)
	require.NoError(t, err)
	return ok
}

func TestSchedulerOrdersByPhaseThenRegistration(t *testing.T) {
	s := system.NewScheduler(nil)
	storage := ecs.NewStorage()
	var calls []string
	require.NoError(t, s.Register("two", nil, 2, recorder{"two", &calls}))
	require.NoError(t, s.Register("one-a", nil, 1, recorder{"one-a", &calls}))
	require.NoError(t, s.Register("one-b", nil, 1, recorder{"one-b", &calls}))

	for tick := 0; tick < 3; tick++ {
		calls = calls[:0]
		runTick(t, s, storage)
		assert.Equal(t, []string{"one-a", "one-b", "two"}, calls)
	}
	assert.Equal(t, []string{"one-a", "one-b", "two"}, s.Systems())
}

func TestSchedulerSealed(t *testing.T) {
	s := system.NewScheduler(nil)
	require.NoError(t, s.RegisterFunc("a", nil, system.PhaseUpdate, func(*system.Context) bool { return true }))
	s.Seal()

	err := s.RegisterFunc("b", nil, system.PhaseUpdate, func(*system.Context) bool { return true })
	assert.ErrorIs(t, err, ecs.ErrInvalidPhase)
	assert.ErrorIs(t, s.Unregister("a"), ecs.ErrInvalidPhase)
	assert.Equal(t, 1, s.Len())
}

func TestSchedulerRejectsChangesMidTick(t *testing.T) {
	s := system.NewScheduler(nil)
	storage := ecs.NewStorage()
	var regErr, unregErr, nestedErr error
	require.NoError(t, s.RegisterFunc("meddler", nil, system.PhaseUpdate, func(ctx *system.Context) bool {
		regErr = s.RegisterFunc("late", nil, system.PhaseUpdate, func(*system.Context) bool { return true })
		unregErr = s.Unregister("meddler")
		_, nestedErr = s.RunTick(system.Tick{}, ctx.Commands, ctx.Storage)
		return true
	}))

	runTick(t, s, storage)

	assert.ErrorIs(t, regErr, ecs.ErrInvalidPhase)
	assert.ErrorIs(t, unregErr, ecs.ErrInvalidPhase)
	assert.ErrorIs(t, nestedErr, ecs.ErrInvalidPhase)
	assert.False(t, s.Running())
	assert.False(t, storage.Locked())
}

func TestSchedulerShutdownStillRunsEverySystem(t *testing.T) {
	s := system.NewScheduler(nil)
	storage := ecs.NewStorage()
	var calls []string
	require.NoError(t, s.RegisterFunc("halt", nil, system.PhaseInput, func(*system.Context) bool { return false }))
	require.NoError(t, s.Register("after", nil, system.PhaseCleanup, recorder{"after", &calls}))

	assert.False(t, runTick(t, s, storage))
	assert.Equal(t, []string{"after"}, calls)
}

func TestSchedulerContext(t *testing.T) {
	s := system.NewScheduler(nil)
	storage := ecs.NewStorage()
	id, err := storage.Registry().Register(ecs.Describe[struct{ N int }]())
	require.NoError(t, err)
	_, err = storage.Spawn(ecs.Value(id, nil))
	require.NoError(t, err)
	q, err := storage.Query([]ecs.TypeID{id}, nil)
	require.NoError(t, err)

	var seen, unqueried int
	var locked bool
	var got system.Tick
	require.NoError(t, s.RegisterFunc("reader", q, system.PhaseUpdate, func(ctx *system.Context) bool {
		for r := range ctx.Ranges() {
			seen += r.Len()
		}
		locked = ctx.Storage.Locked()
		got = system.Tick{Number: ctx.Tick, DeltaTime: ctx.DeltaTime, Elapsed: ctx.Elapsed}
		return true
	}))
	require.NoError(t, s.RegisterFunc("blind", nil, system.PhaseUpdate, func(ctx *system.Context) bool {
		for range ctx.Ranges() {
			unqueried++
		}
		return true
	}))

	tick := system.Tick{Number: 7, DeltaTime: 0.5, Elapsed: 3}
	ok, err := s.RunTick(tick, ecs.NewCommandBuffer(storage), storage)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, seen)
	assert.Equal(t, 0, unqueried)
	assert.True(t, locked)
	assert.Equal(t, tick, got)
}

func TestSchedulerRegistrationErrors(t *testing.T) {
	s := system.NewScheduler(nil)
	noop := func(*system.Context) bool { return true }
	require.NoError(t, s.RegisterFunc("a", nil, 0, noop))

	assert.ErrorIs(t, s.RegisterFunc("a", nil, 0, noop), ecs.ErrInvalidArgument)
	assert.ErrorIs(t, s.RegisterFunc("", nil, 0, noop), ecs.ErrInvalidArgument)
	assert.ErrorIs(t, s.RegisterFunc("nil", nil, 0, nil), ecs.ErrInvalidArgument)
	assert.ErrorIs(t, s.Unregister("missing"), ecs.ErrInvalidArgument)

	require.NoError(t, s.Unregister("a"))
	assert.Equal(t, 0, s.Len())
}
