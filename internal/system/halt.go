package system

import (
	coresys "github.com/expworld/simkernel/internal/core/system"
)

// HaltSystem asks the world to stop once the given tick has run.
// Phase 6 (Cleanup), so every other system sees the final tick.
type HaltSystem struct {
	after uint64
}

func NewHaltSystem(afterTicks uint64) *HaltSystem {
	return &HaltSystem{after: afterTicks}
}

func (s *HaltSystem) Phase() coresys.Phase { return coresys.PhaseCleanup }

func (s *HaltSystem) Update(ctx *coresys.Context) bool {
	return ctx.Tick < s.after
}
