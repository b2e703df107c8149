package scripting_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/expworld/simkernel/internal/component"
	"github.com/expworld/simkernel/internal/core/ecs"
	coresys "github.com/expworld/simkernel/internal/core/system"
	"github.com/expworld/simkernel/internal/scripting"
	"github.com/expworld/simkernel/internal/world"
)

const driftScript = `
function drift(tick, e)
  e.position.x = e.position.x + 2 * tick.dt
  if e.label then
    e.label.name = e.label.name .. "!"
  end
  if e.position.x >= 4 then
    e.despawn = true
  end
end

function stop_at(tick, e)
  return tick.number < 2
end
`

func newEngine(t *testing.T) *scripting.Engine {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "systems"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "systems", "drift.lua"), []byte(driftScript), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not lua"), 0o644))
	e, err := scripting.NewEngine(dir, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func TestScriptSystemUpdatesComponents(t *testing.T) {
	engine := newEngine(t)
	w := world.Init()
	var ids *component.IDs
	require.NoError(t, w.AppInit(world.AppFunc(func(w *world.World) error {
		var err error
		if ids, err = component.Register(w); err != nil {
			return err
		}
		sys, err := engine.System("drift", []scripting.Binding{
			{Name: "position", ID: ids.Position},
			{Name: "label", ID: ids.Label},
		})
		if err != nil {
			return err
		}
		return w.RegisterSystem("lua:drift", []ecs.TypeID{ids.Position}, nil, coresys.PhaseUpdate, sys)
	})))

	plain, err := w.EntityInit(world.EntityDesc{Components: []ecs.ComponentValue{ecs.Value(ids.Position, nil)}})
	require.NoError(t, err)
	named, err := w.EntityInit(world.EntityDesc{Components: []ecs.ComponentValue{
		ecs.Value(ids.Position, component.Position{X: 1, Y: 5}),
		ecs.Value(ids.Label, component.Label{Name: "probe"}),
	}})
	require.NoError(t, err)

	_, err = w.Progress(1)
	require.NoError(t, err)

	p, err := world.Get[component.Position](w, plain, ids.Position)
	require.NoError(t, err)
	assert.Equal(t, component.Position{X: 2}, *p)
	p, err = world.Get[component.Position](w, named, ids.Position)
	require.NoError(t, err)
	assert.Equal(t, component.Position{X: 3, Y: 5}, *p)
	l, err := world.Get[component.Label](w, named, ids.Label)
	require.NoError(t, err)
	assert.Equal(t, "probe!", l.Name)

	_, err = w.Progress(1)
	require.NoError(t, err)
	assert.False(t, w.IsAlive(plain), "x reached 4, despawn applied after the tick")
	assert.False(t, w.IsAlive(named))
}

func TestScriptSystemShutdown(t *testing.T) {
	engine := newEngine(t)
	w := world.Init()
	var ids *component.IDs
	require.NoError(t, w.AppInit(world.AppFunc(func(w *world.World) error {
		var err error
		if ids, err = component.Register(w); err != nil {
			return err
		}
		sys, err := engine.System("stop_at", nil)
		if err != nil {
			return err
		}
		return w.RegisterSystem("lua:stop_at", []ecs.TypeID{ids.Counter}, nil, coresys.PhaseCleanup, sys)
	})))
	_, err := w.EntityInit(world.EntityDesc{Components: []ecs.ComponentValue{ecs.Value(ids.Counter, nil)}})
	require.NoError(t, err)

	ok, err := w.Progress(0.1)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = w.Progress(0.1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEngineErrors(t *testing.T) {
	engine := newEngine(t)
	_, err := engine.System("missing", nil)
	assert.Error(t, err)

	require.NoError(t, engine.DoString(`broken = 1`))
	assert.False(t, engine.HasFunction("broken"))
	assert.True(t, engine.HasFunction("drift"))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.lua"), []byte("function ("), 0o644))
	_, err = scripting.NewEngine(dir, zap.NewNop())
	assert.Error(t, err)
}

func TestScriptSystemBadWriteLeavesRowUntouched(t *testing.T) {
	engine := newEngine(t)
	require.NoError(t, engine.DoString(`
function clobber(tick, e)
  e.position.x = 99
  e.velocity = nil
end
`))
	w := world.Init()
	var ids *component.IDs
	require.NoError(t, w.AppInit(world.AppFunc(func(w *world.World) error {
		var err error
		if ids, err = component.Register(w); err != nil {
			return err
		}
		sys, err := engine.System("clobber", []scripting.Binding{
			{Name: "position", ID: ids.Position},
			{Name: "velocity", ID: ids.Velocity},
		})
		if err != nil {
			return err
		}
		return w.RegisterSystem("lua:clobber", []ecs.TypeID{ids.Position, ids.Velocity}, nil, coresys.PhaseUpdate, sys)
	})))
	h, err := w.EntityInit(world.EntityDesc{Components: []ecs.ComponentValue{
		ecs.Value(ids.Position, component.Position{X: 1}),
		ecs.Value(ids.Velocity, component.Velocity{X: 2}),
	}})
	require.NoError(t, err)

	_, err = w.Progress(1)
	require.NoError(t, err, "script errors are logged, not returned")

	p, err := world.Get[component.Position](w, h, ids.Position)
	require.NoError(t, err)
	assert.Equal(t, component.Position{X: 1}, *p)
	v, err := world.Get[component.Velocity](w, h, ids.Velocity)
	require.NoError(t, err)
	assert.Equal(t, component.Velocity{X: 2}, *v)
}
