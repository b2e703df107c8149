package scripting

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/expworld/simkernel/internal/core/ecs"
	coresys "github.com/expworld/simkernel/internal/core/system"
)

// Binding exposes one component type to a script under a field name.
type Binding struct {
	Name string
	ID   ecs.TypeID
}

// ScriptSystem calls a global Lua function once per matching entity:
//
//	function name(tick, e) ... end
//
// tick holds dt, number and elapsed. e holds the entity handle string under
// "entity" and one table per bound component the entity has. Changes to
// those tables are written back; setting e.despawn = true queues the entity's
// destruction. Returning false asks the world to stop.
type ScriptSystem struct {
	engine   *Engine
	fn       string
	bindings []Binding
}

// System builds a ScriptSystem for a global function.
func (e *Engine) System(fn string, bindings []Binding) (*ScriptSystem, error) {
	if !e.HasFunction(fn) {
		return nil, fmt.Errorf("lua function %s not found", fn)
	}
	return &ScriptSystem{engine: e, fn: fn, bindings: bindings}, nil
}

func (s *ScriptSystem) Update(ctx *coresys.Context) bool {
	vm := s.engine.vm
	fn := vm.GetGlobal(s.fn)

	tick := vm.NewTable()
	tick.RawSetString("dt", lua.LNumber(ctx.DeltaTime))
	tick.RawSetString("number", lua.LNumber(ctx.Tick))
	tick.RawSetString("elapsed", lua.LNumber(ctx.Elapsed))

	keepRunning := true
	for r := range ctx.Ranges() {
		entities := r.Entities()
		for i := 0; i < r.Len(); i++ {
			ok, err := s.callRow(ctx, fn, tick, r, i, entities[i])
			if err != nil {
				ctx.Log.Error("lua system error",
					zap.String("fn", s.fn),
					zap.Stringer("entity", entities[i]),
					zap.Error(err),
				)
				continue
			}
			if !ok {
				keepRunning = false
			}
		}
	}
	return keepRunning
}

func (s *ScriptSystem) callRow(ctx *coresys.Context, fn lua.LValue, tick *lua.LTable, r ecs.RowRange, i int, h ecs.EntityHandle) (bool, error) {
	vm := s.engine.vm
	row := vm.NewTable()
	row.RawSetString("entity", lua.LString(h.String()))
	current := make([]any, len(s.bindings))
	for b, bind := range s.bindings {
		v, err := r.Value(i, bind.ID)
		if err != nil {
			continue // component not on this archetype
		}
		current[b] = v
		row.RawSetString(bind.Name, toLua(vm, v))
	}

	if err := vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, tick, row); err != nil {
		return true, err
	}
	ret := vm.Get(-1)
	vm.Pop(1)

	// convert everything before writing so a bad field leaves the row as is
	updated := make([]any, len(s.bindings))
	for b, bind := range s.bindings {
		if current[b] == nil {
			continue
		}
		v, err := fromLua(row.RawGetString(bind.Name), current[b])
		if err != nil {
			return true, fmt.Errorf("write back %s: %w", bind.Name, err)
		}
		updated[b] = v
	}
	for b, bind := range s.bindings {
		if updated[b] == nil {
			continue
		}
		if err := r.SetValue(i, bind.ID, updated[b]); err != nil {
			return true, err
		}
	}
	if lua.LVAsBool(row.RawGetString("despawn")) {
		if err := ctx.Commands.Destroy(h); err != nil {
			return true, err
		}
	}
	return ret != lua.LFalse, nil
}
