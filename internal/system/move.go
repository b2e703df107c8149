package system

import (
	"go.uber.org/zap"

	"github.com/expworld/simkernel/internal/component"
	"github.com/expworld/simkernel/internal/core/ecs"
	coresys "github.com/expworld/simkernel/internal/core/system"
)

// MoveSystem integrates Velocity into Position. Phase 3 (PostUpdate).
type MoveSystem struct {
	ids *component.IDs
}

func NewMoveSystem(ids *component.IDs) *MoveSystem {
	return &MoveSystem{ids: ids}
}

func (s *MoveSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *MoveSystem) Requires() []ecs.TypeID {
	return []ecs.TypeID{s.ids.Position, s.ids.Velocity}
}

func (s *MoveSystem) Update(ctx *coresys.Context) bool {
	for r := range ctx.Ranges() {
		pos, err := ecs.Column[component.Position](r, s.ids.Position)
		if err != nil {
			ctx.Log.Error("position column", zap.Error(err))
			continue
		}
		vel, err := ecs.Column[component.Velocity](r, s.ids.Velocity)
		if err != nil {
			ctx.Log.Error("velocity column", zap.Error(err))
			continue
		}
		for i := range pos {
			pos[i].X += vel[i].X * ctx.DeltaTime
			pos[i].Y += vel[i].Y * ctx.DeltaTime
		}
	}
	return true
}
