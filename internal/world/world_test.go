package world_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/expworld/simkernel/internal/core/ecs"
	"github.com/expworld/simkernel/internal/core/event"
	"github.com/expworld/simkernel/internal/core/system"
	"github.com/expworld/simkernel/internal/world"
)

type position struct{ X, Y float32 }

type tag struct{}

// moveApp registers Position and a Move system adding delta time to X.
func moveApp(pos *ecs.TypeID) world.App {
	return world.AppFunc(func(w *world.World) error {
		id, err := world.RegisterComponent[position](w)
		if err != nil {
			return err
		}
		*pos = id
		return w.RegisterSystemFunc("move", []ecs.TypeID{id}, nil, system.PhaseUpdate, func(ctx *system.Context) bool {
			for r := range ctx.Ranges() {
				col, err := ecs.Column[position](r, id)
				if err != nil {
					ctx.Log.Error("position column", zap.Error(err))
					return false
				}
				for i := range col {
					col[i].X += ctx.DeltaTime
				}
			}
			return true
		})
	})
}

func TestMoveEndToEnd(t *testing.T) {
	w := world.Init()
	var pos ecs.TypeID
	require.NoError(t, w.AppInit(moveApp(&pos)))
	h, err := w.EntityInit(world.EntityDesc{Components: []ecs.ComponentValue{ecs.Value(pos, position{0, 0})}})
	require.NoError(t, err)

	ok, err := w.Progress(1.0)
	require.NoError(t, err)
	assert.True(t, ok)
	p, err := world.Get[position](w, h, pos)
	require.NoError(t, err)
	assert.Equal(t, position{1, 0}, *p)

	_, err = w.Progress(1.0)
	require.NoError(t, err)
	p, err = world.Get[position](w, h, pos)
	require.NoError(t, err)
	assert.Equal(t, position{2, 0}, *p)

	assert.Equal(t, uint64(2), w.Tick())
	assert.Equal(t, 2.0, w.Elapsed())
	require.NoError(t, w.Destroy(h))
	assert.Equal(t, 0, w.Fini(), "nothing left to force-release")
}

func TestProgressBeforeEntityInit(t *testing.T) {
	w := world.Init()
	_, err := w.Progress(1)
	assert.ErrorIs(t, err, ecs.ErrInvalidPhase)

	var pos ecs.TypeID
	require.NoError(t, w.AppInit(moveApp(&pos)))
	_, err = w.Progress(1)
	assert.ErrorIs(t, err, ecs.ErrInvalidPhase)
	assert.Equal(t, world.Configuring, w.State())
}

func TestFiniInvalidatesHandles(t *testing.T) {
	w := world.Init()
	var pos ecs.TypeID
	require.NoError(t, w.AppInit(moveApp(&pos)))
	h, err := w.EntityInit(world.EntityDesc{Components: []ecs.ComponentValue{ecs.Value(pos, nil)}})
	require.NoError(t, err)
	empty, err := w.EntityInit(world.EntityDesc{})
	require.NoError(t, err)

	assert.Equal(t, 2, w.Fini())
	assert.Equal(t, world.Finalized, w.State())
	assert.Equal(t, 0, w.Fini(), "idempotent")

	_, err = world.Get[position](w, h, pos)
	assert.ErrorIs(t, err, ecs.ErrInvalidHandle)
	assert.ErrorIs(t, w.Destroy(empty), ecs.ErrInvalidHandle)
	assert.ErrorIs(t, w.Set(h, pos, position{}), ecs.ErrInvalidHandle)
	_, err = w.Value(h, pos)
	assert.ErrorIs(t, err, ecs.ErrInvalidHandle)
	assert.False(t, w.IsAlive(h))

	_, err = w.Progress(1)
	assert.ErrorIs(t, err, ecs.ErrInvalidPhase)
	_, err = w.EntityInit(world.EntityDesc{})
	assert.ErrorIs(t, err, ecs.ErrInvalidPhase)
}

func TestProgressRejectsBadDeltaTime(t *testing.T) {
	w := world.Init()
	_, err := w.EntityInit(world.EntityDesc{})
	require.NoError(t, err)

	_, err = w.Progress(-0.5)
	assert.ErrorIs(t, err, ecs.ErrInvalidArgument)
	_, err = w.Progress(float32(math.NaN()))
	assert.ErrorIs(t, err, ecs.ErrInvalidArgument)
	assert.Equal(t, uint64(0), w.Tick())
}

func TestZeroDeltaStillRunsSystems(t *testing.T) {
	w := world.Init()
	calls := 0
	require.NoError(t, w.AppInit(world.AppFunc(func(w *world.World) error {
		return w.RegisterSystemFunc("count", nil, nil, system.PhaseUpdate, func(*system.Context) bool {
			calls++
			return true
		})
	})))
	_, err := w.EntityInit(world.EntityDesc{})
	require.NoError(t, err)

	ok, err := w.Progress(0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, calls)
}

func TestConfigurationClosesWhenRunning(t *testing.T) {
	w := world.Init()
	_, err := w.EntityInit(world.EntityDesc{})
	require.NoError(t, err)
	assert.Equal(t, world.Running, w.State())

	_, err = world.RegisterComponent[tag](w)
	assert.ErrorIs(t, err, ecs.ErrInvalidPhase)
	err = w.RegisterSystemFunc("late", nil, nil, 0, func(*system.Context) bool { return true })
	assert.ErrorIs(t, err, ecs.ErrInvalidPhase)
	assert.ErrorIs(t, w.AppInit(), ecs.ErrInvalidPhase)
}

func TestAppInitPropagatesErrors(t *testing.T) {
	w := world.Init()
	err := w.AppInit(world.AppFunc(func(w *world.World) error {
		return w.RegisterSystemFunc("bad", []ecs.TypeID{42}, nil, 0, func(*system.Context) bool { return true })
	}))
	assert.ErrorIs(t, err, ecs.ErrUnknownType)
	assert.ErrorIs(t, w.AppInit(nil), ecs.ErrInvalidArgument)
}

func TestStructuralChangesVisibleNextTick(t *testing.T) {
	w := world.Init()
	var pos ecs.TypeID
	var seen []int
	var spawnErr error
	require.NoError(t, w.AppInit(world.AppFunc(func(w *world.World) error {
		var err error
		if pos, err = world.RegisterComponent[position](w); err != nil {
			return err
		}
		if err := w.RegisterSystemFunc("spawner", nil, nil, system.PhaseInput, func(ctx *system.Context) bool {
			_, spawnErr = ctx.Commands.Spawn(ecs.Value(pos, position{}))
			_, direct := ctx.Storage.Spawn()
			if direct == nil {
				t.Error("direct spawn during a tick must fail")
			}
			return true
		}); err != nil {
			return err
		}
		return w.RegisterSystemFunc("observer", []ecs.TypeID{pos}, nil, system.PhaseUpdate, func(ctx *system.Context) bool {
			seen = append(seen, ctx.Query().Count())
			return true
		})
	})))
	_, err := w.EntityInit(world.EntityDesc{})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := w.Progress(0.1)
		require.NoError(t, err)
		require.NoError(t, spawnErr)
	}
	assert.Equal(t, []int{0, 1, 2}, seen)
	assert.Equal(t, 4, w.Len())
}

func TestEventsDispatchedAtStartOfNextTick(t *testing.T) {
	w := world.Init()
	var got []string
	event.Subscribe(w.Events(), func(e event.EntitySpawned) { got = append(got, "spawned") })
	event.Subscribe(w.Events(), func(e event.EntityDestroyed) { got = append(got, "destroyed") })

	var victim ecs.EntityHandle
	require.NoError(t, w.AppInit(world.AppFunc(func(w *world.World) error {
		return w.RegisterSystemFunc("reaper", nil, nil, system.PhaseUpdate, func(ctx *system.Context) bool {
			if ctx.Tick == 1 {
				got = append(got, "tick 1")
				require.NoError(t, ctx.Commands.Destroy(victim))
			}
			if ctx.Tick == 2 {
				got = append(got, "tick 2")
			}
			return true
		})
	})))
	var err error
	victim, err = w.EntityInit(world.EntityDesc{})
	require.NoError(t, err)

	_, err = w.Progress(1)
	require.NoError(t, err)
	_, err = w.Progress(1)
	require.NoError(t, err)

	assert.Equal(t, []string{"spawned", "tick 1", "destroyed", "tick 2"}, got)
	assert.False(t, w.IsAlive(victim))
}

func TestShutdownRequest(t *testing.T) {
	w := world.Init()
	require.NoError(t, w.AppInit(world.AppFunc(func(w *world.World) error {
		return w.RegisterSystemFunc("halt", nil, nil, system.PhaseCleanup, func(ctx *system.Context) bool {
			return ctx.Tick < 2
		})
	})))
	_, err := w.EntityInit(world.EntityDesc{})
	require.NoError(t, err)

	ok, err := w.Progress(1)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = w.Progress(1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProgressIsNotReentrant(t *testing.T) {
	w := world.Init()
	var nested, spawn error
	require.NoError(t, w.AppInit(world.AppFunc(func(inner *world.World) error {
		return inner.RegisterSystemFunc("nested", nil, nil, 0, func(*system.Context) bool {
			_, nested = inner.Progress(1)
			_, spawn = inner.EntityInit(world.EntityDesc{})
			return true
		})
	})))
	_, err := w.EntityInit(world.EntityDesc{})
	require.NoError(t, err)

	_, err = w.Progress(1)
	require.NoError(t, err)
	assert.ErrorIs(t, nested, ecs.ErrInvalidPhase)
	assert.ErrorIs(t, spawn, ecs.ErrInvalidPhase)
}

func TestFlushErrorsReturnedFromProgress(t *testing.T) {
	w := world.Init()
	var pos ecs.TypeID
	var target ecs.EntityHandle
	require.NoError(t, w.AppInit(world.AppFunc(func(w *world.World) error {
		var err error
		if pos, err = world.RegisterComponent[position](w); err != nil {
			return err
		}
		return w.RegisterSystemFunc("double-add", nil, nil, 0, func(ctx *system.Context) bool {
			if ctx.Tick == 1 {
				_ = ctx.Commands.Add(target, pos, nil)
				_ = ctx.Commands.Add(target, pos, nil)
			}
			return true
		})
	})))
	var err error
	target, err = w.EntityInit(world.EntityDesc{})
	require.NoError(t, err)

	ok, err := w.Progress(1)
	assert.True(t, ok)
	assert.ErrorIs(t, err, ecs.ErrComponentMismatch)
	v, err := w.Value(target, pos)
	require.NoError(t, err, "the first add still applied")
	assert.Equal(t, position{}, v)

	_, err = w.Progress(1)
	assert.NoError(t, err)
}

func TestOptions(t *testing.T) {
	id := uuid.New()
	w := world.Init(world.WithID(id), world.WithLogger(nil))
	assert.Equal(t, id, w.ID())
	assert.NotNil(t, w.Logger())
	assert.Equal(t, "configuring", w.State().String())
}

func TestRunStopsAtMaxTicks(t *testing.T) {
	w := world.Init()
	_, err := w.EntityInit(world.EntityDesc{})
	require.NoError(t, err)

	n, err := world.Run(context.Background(), w, world.LoopConfig{TickRate: time.Millisecond, FixedStep: true, MaxTicks: 3})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
	assert.Equal(t, uint64(3), w.Tick())
	assert.InDelta(t, 0.003, w.Elapsed(), 1e-6)
}

func TestRunStopsOnCancel(t *testing.T) {
	w := world.Init()
	_, err := w.EntityInit(world.EntityDesc{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := world.Run(ctx, w, world.LoopConfig{TickRate: time.Hour})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n)

	_, err = world.Run(ctx, w, world.LoopConfig{})
	assert.Error(t, err)
}

func TestTwoSystemsDestroySameEntity(t *testing.T) {
	w := world.Init()
	var victim ecs.EntityHandle
	destroy := func(ctx *system.Context) bool {
		if err := ctx.Commands.Destroy(victim); err != nil {
			ctx.Log.Error("queue destroy", zap.Error(err))
		}
		return true
	}
	require.NoError(t, w.AppInit(world.AppFunc(func(w *world.World) error {
		if err := w.RegisterSystemFunc("expire", nil, nil, system.PhaseUpdate, destroy); err != nil {
			return err
		}
		return w.RegisterSystemFunc("reap", nil, nil, system.PhasePostUpdate, destroy)
	})))
	var destroyed int
	event.Subscribe(w.Events(), func(event.EntityDestroyed) { destroyed++ })
	var err error
	victim, err = w.EntityInit(world.EntityDesc{})
	require.NoError(t, err)
	keep, err := w.EntityInit(world.EntityDesc{})
	require.NoError(t, err)

	ok, err := w.Progress(1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, w.IsAlive(victim))
	assert.True(t, w.IsAlive(keep))

	_, err = w.Progress(1)
	require.NoError(t, err, "the stale handle is rejected when queued, not at flush")
	assert.Equal(t, 1, destroyed)
}
