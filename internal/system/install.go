package system

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/expworld/simkernel/internal/component"
	"github.com/expworld/simkernel/internal/core/ecs"
	coresys "github.com/expworld/simkernel/internal/core/system"
	"github.com/expworld/simkernel/internal/data"
	"github.com/expworld/simkernel/internal/scripting"
	"github.com/expworld/simkernel/internal/world"
)

// Deps are the optional collaborators of scenario systems.
type Deps struct {
	Scripts          *scripting.Engine // nil rejects script entries
	Snapshots        SnapshotSaver     // nil disables persistence
	SnapshotInterval int
	Log              *zap.Logger
}

// Bootstrap is the world.App that wires a scenario: it registers the
// component catalog and every listed system, and spawns the scenario's
// entities once the world is configured.
type Bootstrap struct {
	scenario    *data.Scenario
	deps        Deps
	ids         *component.IDs
	persistence *PersistenceSystem
}

func Install(sc *data.Scenario, deps Deps) *Bootstrap {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return &Bootstrap{scenario: sc, deps: deps}
}

func (b *Bootstrap) Setup(w *world.World) error {
	ids, err := component.Register(w)
	if err != nil {
		return err
	}
	b.ids = ids

	for _, e := range b.scenario.Systems {
		if err := b.register(w, e); err != nil {
			return fmt.Errorf("scenario %s: %w", b.scenario.Name, err)
		}
	}

	if b.deps.Snapshots != nil {
		b.persistence = NewPersistenceSystem(w, b.deps.Snapshots, b.deps.Log, b.deps.SnapshotInterval)
		if err := w.RegisterSystem("persistence", nil, nil, b.persistence.Phase(), b.persistence); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bootstrap) register(w *world.World, e data.SystemEntry) error {
	required, err := data.KindIDs(b.ids, e.Require)
	if err != nil {
		return fmt.Errorf("system %s: %w", e.Label(), err)
	}
	excluded, err := data.KindIDs(b.ids, e.Exclude)
	if err != nil {
		return fmt.Errorf("system %s: %w", e.Label(), err)
	}

	var (
		sys   coresys.System
		phase coresys.Phase
	)
	switch {
	case e.Script != "":
		if b.deps.Scripts == nil {
			return fmt.Errorf("system %s: scripting disabled: %w", e.Label(), ecs.ErrInvalidArgument)
		}
		if len(required) == 0 {
			return fmt.Errorf("system %s: script systems need require: %w", e.Label(), ecs.ErrInvalidArgument)
		}
		bindings := make([]scripting.Binding, 0, len(b.ids.Kinds()))
		for _, kind := range b.ids.Kinds() {
			id, _ := b.ids.Lookup(kind)
			bindings = append(bindings, scripting.Binding{Name: kind, ID: id})
		}
		script, err := b.deps.Scripts.System(e.Script, bindings)
		if err != nil {
			return fmt.Errorf("system %s: %w", e.Label(), err)
		}
		sys, phase = script, coresys.PhaseUpdate
	case e.Name == "move":
		s := NewMoveSystem(b.ids)
		sys, phase, required = s, s.Phase(), append(s.Requires(), required...)
	case e.Name == "counter":
		s := NewCounterSystem(b.ids)
		sys, phase, required = s, s.Phase(), append(s.Requires(), required...)
	case e.Name == "lifetime":
		s := NewLifetimeSystem(b.ids)
		sys, phase, required = s, s.Phase(), append(s.Requires(), required...)
	case e.Name == "halt":
		if e.After == 0 {
			return fmt.Errorf("system halt: after must be positive: %w", ecs.ErrInvalidArgument)
		}
		s := NewHaltSystem(e.After)
		sys, phase = s, s.Phase()
	default:
		return fmt.Errorf("unknown system %q: %w", e.Name, ecs.ErrInvalidArgument)
	}

	if e.Phase != nil {
		phase = coresys.Phase(*e.Phase)
	}
	return w.RegisterSystem(e.Label(), required, excluded, phase, sys)
}

// Spawn creates the scenario's entities. It moves the world to Running.
func (b *Bootstrap) Spawn(w *world.World) ([]ecs.EntityHandle, error) {
	if b.ids == nil {
		return nil, fmt.Errorf("spawn scenario: not installed: %w", ecs.ErrInvalidPhase)
	}
	descs, err := b.scenario.Entities(b.ids)
	if err != nil {
		return nil, err
	}
	handles := make([]ecs.EntityHandle, 0, len(descs))
	for _, d := range descs {
		h, err := w.EntityInit(d)
		if err != nil {
			return handles, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

func (b *Bootstrap) IDs() *component.IDs { return b.ids }

// Persistence returns the snapshot system, or nil when persistence is off.
func (b *Bootstrap) Persistence() *PersistenceSystem { return b.persistence }
