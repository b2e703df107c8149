package system

import (
	"go.uber.org/zap"

	"github.com/expworld/simkernel/internal/component"
	"github.com/expworld/simkernel/internal/core/ecs"
	coresys "github.com/expworld/simkernel/internal/core/system"
)

// LifetimeSystem counts Lifetime down by delta time and queues the entity's
// destruction once it runs out. The entity disappears after the tick.
// Phase 3 (PostUpdate).
type LifetimeSystem struct {
	ids *component.IDs
}

func NewLifetimeSystem(ids *component.IDs) *LifetimeSystem {
	return &LifetimeSystem{ids: ids}
}

func (s *LifetimeSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *LifetimeSystem) Requires() []ecs.TypeID { return []ecs.TypeID{s.ids.Lifetime} }

func (s *LifetimeSystem) Update(ctx *coresys.Context) bool {
	expired := 0
	for r := range ctx.Ranges() {
		lifetimes, err := ecs.Column[component.Lifetime](r, s.ids.Lifetime)
		if err != nil {
			ctx.Log.Error("lifetime column", zap.Error(err))
			continue
		}
		entities := r.Entities()
		for i := range lifetimes {
			lifetimes[i].Remaining -= ctx.DeltaTime
			if lifetimes[i].Remaining > 0 {
				continue
			}
			if err := ctx.Commands.Destroy(entities[i]); err != nil {
				ctx.Log.Error("queue despawn", zap.Stringer("entity", entities[i]), zap.Error(err))
				continue
			}
			expired++
		}
	}
	if expired > 0 {
		ctx.Log.Debug("lifetimes expired", zap.Int("count", expired), zap.Uint64("tick", ctx.Tick))
	}
	return true
}
