package system

import (
	"fmt"
	"sort"

	"github.com/expworld/simkernel/internal/core/ecs"
	"go.uber.org/zap"
)

type registration struct {
	name  string
	order Phase
	query *ecs.Query
	sys   System
	log   *zap.Logger
}

// Scheduler executes registered systems in phase order each tick.
type Scheduler struct {
	systems []registration
	sorted  bool
	sealed  bool
	running bool
	log     *zap.Logger
}

func NewScheduler(log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		systems: make([]registration, 0, 16),
		log:     log,
	}
}

// Register adds a system under a unique name. The query may be nil for
// systems that do not iterate entities.
func (s *Scheduler) Register(name string, query *ecs.Query, order Phase, sys System) error {
	if err := s.checkPhase("register " + name); err != nil {
		return err
	}
	if name == "" || sys == nil {
		return fmt.Errorf("register system %q: name and system are required: %w", name, ecs.ErrInvalidArgument)
	}
	if s.index(name) >= 0 {
		return fmt.Errorf("register system %q: duplicate name: %w", name, ecs.ErrInvalidArgument)
	}
	s.systems = append(s.systems, registration{
		name:  name,
		order: order,
		query: query,
		sys:   sys,
		log:   s.log.With(zap.String("system", name)),
	})
	s.sorted = false
	return nil
}

func (s *Scheduler) RegisterFunc(name string, query *ecs.Query, order Phase, fn func(ctx *Context) bool) error {
	if fn == nil {
		return fmt.Errorf("register system %q: nil func: %w", name, ecs.ErrInvalidArgument)
	}
	return s.Register(name, query, order, Func(fn))
}

// Unregister removes a system by name.
func (s *Scheduler) Unregister(name string) error {
	if err := s.checkPhase("unregister " + name); err != nil {
		return err
	}
	i := s.index(name)
	if i < 0 {
		return fmt.Errorf("unregister system %q: not registered: %w", name, ecs.ErrInvalidArgument)
	}
	s.systems = append(s.systems[:i], s.systems[i+1:]...)
	return nil
}

// Seal ends the registration window. Called by the world when it starts
// running.
func (s *Scheduler) Seal()         { s.sealed = true }
func (s *Scheduler) Sealed() bool  { return s.sealed }
func (s *Scheduler) Running() bool { return s.running }
func (s *Scheduler) Len() int      { return len(s.systems) }

// Systems returns the system names in execution order.
func (s *Scheduler) Systems() []string {
	s.ensureSorted()
	names := make([]string, len(s.systems))
	for i, r := range s.systems {
		names[i] = r.name
	}
	return names
}

// RunTick calls every system exactly once. Storage is locked for the whole
// tick so structural changes must go through commands. It returns false if
// any system asked to stop; the remaining systems still run.
func (s *Scheduler) RunTick(t Tick, commands *ecs.CommandBuffer, storage *ecs.Storage) (bool, error) {
	if s.running {
		return false, fmt.Errorf("run tick %d: tick already in progress: %w", t.Number, ecs.ErrInvalidPhase)
	}
	s.ensureSorted()
	s.running = true
	storage.Lock()
	defer func() {
		storage.Unlock()
		s.running = false
	}()

	keepRunning := true
	ctx := &Context{
		DeltaTime: t.DeltaTime,
		Tick:      t.Number,
		Elapsed:   t.Elapsed,
		Commands:  commands,
		Storage:   storage,
	}
	for _, r := range s.systems {
		ctx.Name = r.name
		ctx.Log = r.log
		ctx.query = r.query
		if !r.sys.Update(ctx) {
			r.log.Debug("system requested shutdown", zap.Uint64("tick", t.Number))
			keepRunning = false
		}
	}
	return keepRunning, nil
}

func (s *Scheduler) checkPhase(op string) error {
	if s.running {
		return fmt.Errorf("%s: tick in progress: %w", op, ecs.ErrInvalidPhase)
	}
	if s.sealed {
		return fmt.Errorf("%s: scheduler sealed: %w", op, ecs.ErrInvalidPhase)
	}
	return nil
}

func (s *Scheduler) index(name string) int {
	for i, r := range s.systems {
		if r.name == name {
			return i
		}
	}
	return -1
}

func (s *Scheduler) ensureSorted() {
	if !s.sorted {
		sort.SliceStable(s.systems, func(i, j int) bool {
			return s.systems[i].order < s.systems[j].order
		})
		s.sorted = true
	}
}
