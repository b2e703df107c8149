package world

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/expworld/simkernel/internal/core/ecs"
	"github.com/expworld/simkernel/internal/core/event"
	"github.com/expworld/simkernel/internal/core/system"
)

// World owns entity storage, the scheduler, the deferred command buffer, the
// event bus and the simulation clock. It must be driven from one goroutine.
type World struct {
	id        uuid.UUID
	state     State
	storage   *ecs.Storage
	scheduler *system.Scheduler
	commands  *ecs.CommandBuffer
	events    *event.Bus
	log       *zap.Logger

	tick        uint64
	elapsed     float64
	progressing bool
}

// EntityDesc lists an entity's initial components. A nil value takes the
// type's default. An empty desc yields an entity with no components.
type EntityDesc struct {
	Components []ecs.ComponentValue
}

// Init creates an empty world in the Configuring state.
func Init(opts ...Option) *World {
	storage := ecs.NewStorage()
	w := &World{
		id:       uuid.New(),
		state:    Configuring,
		storage:  storage,
		commands: ecs.NewCommandBuffer(storage),
		events:   event.NewBus(),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = w.log.With(zap.String("world", w.id.String()))
	w.scheduler = system.NewScheduler(w.log)
	w.log.Info("world initialized")
	return w
}

// AppInit applies configuration apps in order, stopping at the first error.
func (w *World) AppInit(apps ...App) error {
	if err := w.configuring("app init"); err != nil {
		return err
	}
	for i, app := range apps {
		if app == nil {
			return fmt.Errorf("app init: app %d is nil: %w", i, ecs.ErrInvalidArgument)
		}
		if err := app.Setup(w); err != nil {
			return fmt.Errorf("app init: %w", err)
		}
	}
	w.log.Debug("apps applied",
		zap.Int("apps", len(apps)),
		zap.Int("components", w.storage.Registry().Len()),
		zap.Int("systems", w.scheduler.Len()),
	)
	return nil
}

// RegisterComponent registers T with the world's registry.
func RegisterComponent[T any](w *World, opts ...ecs.DescriptorOption) (ecs.TypeID, error) {
	return w.RegisterDescriptor(ecs.Describe[T](opts...))
}

func (w *World) RegisterDescriptor(desc ecs.Descriptor) (ecs.TypeID, error) {
	if err := w.configuring("register component " + desc.Name); err != nil {
		return 0, err
	}
	return w.storage.Registry().Register(desc)
}

// RegisterSystem compiles the system's query and registers it. With no
// required or excluded types the system gets no query.
func (w *World) RegisterSystem(name string, required, excluded []ecs.TypeID, order system.Phase, sys system.System) error {
	if err := w.configuring("register system " + name); err != nil {
		return err
	}
	var q *ecs.Query
	if len(required) > 0 || len(excluded) > 0 {
		var err error
		if q, err = w.storage.Query(required, excluded); err != nil {
			return fmt.Errorf("register system %q: %w", name, err)
		}
	}
	return w.scheduler.Register(name, q, order, sys)
}

func (w *World) RegisterSystemFunc(name string, required, excluded []ecs.TypeID, order system.Phase, fn func(ctx *system.Context) bool) error {
	if fn == nil {
		return fmt.Errorf("register system %q: nil func: %w", name, ecs.ErrInvalidArgument)
	}
	return w.RegisterSystem(name, required, excluded, order, system.Func(fn))
}

// EntityInit creates an entity with the described components. The first call
// moves the world to Running, which ends the configuration window.
func (w *World) EntityInit(desc EntityDesc) (ecs.EntityHandle, error) {
	switch {
	case w.progressing:
		return ecs.EntityHandle{}, fmt.Errorf("entity init during tick %d: %w", w.tick+1, ecs.ErrInvalidPhase)
	case w.state != Configuring && w.state != Running:
		return ecs.EntityHandle{}, fmt.Errorf("entity init in %s world: %w", w.state, ecs.ErrInvalidPhase)
	}
	h, err := w.storage.Spawn(desc.Components...)
	if err != nil {
		return ecs.EntityHandle{}, fmt.Errorf("entity init: %w", err)
	}
	if w.state == Configuring {
		w.start()
	}
	event.Emit(w.events, event.EntitySpawned{Entity: h, Tick: w.tick})
	return h, nil
}

func (w *World) start() {
	w.storage.Registry().Lock()
	w.scheduler.Seal()
	w.state = Running
	w.log.Info("world running",
		zap.Int("components", w.storage.Registry().Len()),
		zap.Strings("systems", w.scheduler.Systems()),
	)
}

// Progress runs one tick: last tick's events are dispatched, every system
// runs once, then deferred commands are applied and the clock advances.
// It returns false once a system has asked to stop.
func (w *World) Progress(dt float32) (bool, error) {
	if w.progressing {
		return false, fmt.Errorf("progress: re-entered during tick %d: %w", w.tick+1, ecs.ErrInvalidPhase)
	}
	if w.state != Running {
		return false, fmt.Errorf("progress in %s world: %w", w.state, ecs.ErrInvalidPhase)
	}
	if dt < 0 || math.IsNaN(float64(dt)) {
		return false, fmt.Errorf("progress: delta time %v: %w", dt, ecs.ErrInvalidArgument)
	}

	w.progressing = true
	defer func() { w.progressing = false }()
	number := w.tick + 1

	w.events.SwapBuffers()
	w.events.DispatchAll()

	keepRunning, err := w.scheduler.RunTick(system.Tick{
		Number:    number,
		DeltaTime: dt,
		Elapsed:   w.elapsed,
	}, w.commands, w.storage)
	if err != nil {
		return false, fmt.Errorf("progress: %w", err)
	}
	if w.state == Finalized {
		// a system called Fini
		w.commands.Discard()
		return false, nil
	}

	changes, flushErr := w.commands.Flush()
	event.EmitChanges(w.events, number, changes)
	w.tick = number
	w.elapsed += float64(dt)

	if flushErr != nil {
		w.log.Warn("deferred commands failed", zap.Uint64("tick", number), zap.Error(flushErr))
		return keepRunning, fmt.Errorf("progress: apply commands of tick %d: %w", number, flushErr)
	}
	if !keepRunning {
		w.log.Info("shutdown requested", zap.Uint64("tick", number))
	}
	return keepRunning, nil
}

// Fini releases all storage and invalidates every handle the world issued.
// It returns 0 for a clean shutdown, otherwise the number of live entities
// that were force-released. Calling it again returns 0.
func (w *World) Fini() int {
	if w.state == Finalized {
		return 0
	}
	if w.storage == nil {
		w.state = Finalized
		return 0
	}
	w.commands.Discard()
	w.events.Reset()
	live := w.storage.Clear()
	w.state = Finalized
	if live > 0 {
		w.log.Warn("world finalized with live entities", zap.Int("released", live), zap.Uint64("ticks", w.tick))
	} else {
		w.log.Info("world finalized", zap.Uint64("ticks", w.tick))
	}
	return live
}

// Destroy removes an entity immediately. Systems use Context.Commands.
func (w *World) Destroy(h ecs.EntityHandle) error {
	if err := w.handleOp(); err != nil {
		return err
	}
	if err := w.storage.Despawn(h); err != nil {
		return err
	}
	event.Emit(w.events, event.EntityDestroyed{Entity: h, Tick: w.tick})
	return nil
}

// AddComponent attaches a component outside a tick.
func (w *World) AddComponent(h ecs.EntityHandle, id ecs.TypeID, v any) error {
	if err := w.handleOp(); err != nil {
		return err
	}
	if err := w.storage.Add(h, id, v); err != nil {
		return err
	}
	event.Emit(w.events, event.ComponentAdded{Entity: h, Type: id, Tick: w.tick})
	return nil
}

// RemoveComponent detaches a component outside a tick.
func (w *World) RemoveComponent(h ecs.EntityHandle, id ecs.TypeID) error {
	if err := w.handleOp(); err != nil {
		return err
	}
	if err := w.storage.Remove(h, id); err != nil {
		return err
	}
	event.Emit(w.events, event.ComponentRemoved{Entity: h, Type: id, Tick: w.tick})
	return nil
}

// Value returns a copy of an entity's component.
func (w *World) Value(h ecs.EntityHandle, id ecs.TypeID) (any, error) {
	if err := w.handleOp(); err != nil {
		return nil, err
	}
	return w.storage.Get(h, id)
}

func (w *World) Set(h ecs.EntityHandle, id ecs.TypeID, v any) error {
	if err := w.handleOp(); err != nil {
		return err
	}
	return w.storage.Set(h, id, v)
}

// Get returns a pointer to an entity's component, valid until the next
// structural change.
func Get[T any](w *World, h ecs.EntityHandle, id ecs.TypeID) (*T, error) {
	if err := w.handleOp(); err != nil {
		return nil, err
	}
	return ecs.Ptr[T](w.storage, h, id)
}

func (w *World) IsAlive(h ecs.EntityHandle) bool {
	return w.storage != nil && w.state != Finalized && w.storage.Alive(h)
}

// Query compiles a query over the world's archetypes.
func (w *World) Query(required, excluded []ecs.TypeID) (*ecs.Query, error) {
	if w.storage == nil {
		return nil, fmt.Errorf("query in %s world: %w", w.state, ecs.ErrInvalidPhase)
	}
	return w.storage.Query(required, excluded)
}

func (w *World) Len() int {
	if w.storage == nil {
		return 0
	}
	return w.storage.Len()
}

func (w *World) ID() uuid.UUID                { return w.id }
func (w *World) State() State                 { return w.state }
func (w *World) Tick() uint64                 { return w.tick }
func (w *World) Elapsed() float64             { return w.elapsed }
func (w *World) Events() *event.Bus           { return w.events }
func (w *World) Storage() *ecs.Storage        { return w.storage }
func (w *World) Scheduler() *system.Scheduler { return w.scheduler }
func (w *World) Commands() *ecs.CommandBuffer { return w.commands }
func (w *World) Registry() *ecs.Registry      { return w.storage.Registry() }
func (w *World) Logger() *zap.Logger          { return w.log }

func (w *World) configuring(op string) error {
	if w.progressing || w.state != Configuring {
		return fmt.Errorf("%s in %s world: %w", op, w.state, ecs.ErrInvalidPhase)
	}
	return nil
}

func (w *World) handleOp() error {
	if w.storage == nil || w.state == Finalized {
		return fmt.Errorf("world %s: %w", w.state, ecs.ErrInvalidHandle)
	}
	return nil
}
