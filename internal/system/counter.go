package system

import (
	"go.uber.org/zap"

	"github.com/expworld/simkernel/internal/component"
	"github.com/expworld/simkernel/internal/core/ecs"
	coresys "github.com/expworld/simkernel/internal/core/system"
)

// CounterSystem increments every Counter once per tick, including ticks with
// zero delta time. Phase 2 (Update).
type CounterSystem struct {
	ids *component.IDs
}

func NewCounterSystem(ids *component.IDs) *CounterSystem {
	return &CounterSystem{ids: ids}
}

func (s *CounterSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *CounterSystem) Requires() []ecs.TypeID { return []ecs.TypeID{s.ids.Counter} }

func (s *CounterSystem) Update(ctx *coresys.Context) bool {
	for r := range ctx.Ranges() {
		counters, err := ecs.Column[component.Counter](r, s.ids.Counter)
		if err != nil {
			ctx.Log.Error("counter column", zap.Error(err))
			continue
		}
		for i := range counters {
			counters[i].Value++
		}
	}
	return true
}
