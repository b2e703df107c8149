package system

import (
	"iter"

	"github.com/expworld/simkernel/internal/core/ecs"
	"go.uber.org/zap"
)

// Context is what a system sees during its Update call. It is only valid for
// the duration of that call.
type Context struct {
	Name      string
	DeltaTime float32
	Tick      uint64
	Elapsed   float64

	// Commands stages structural changes; they are applied after the tick.
	// A handle returned by Commands.Spawn is alive immediately, for every
	// later system too, but holds no components until the flush.
	Commands *ecs.CommandBuffer
	// Storage is locked against structural changes while the tick runs.
	Storage *ecs.Storage
	Log     *zap.Logger

	query *ecs.Query
}

// Query returns the system's compiled query, or nil if it has none.
func (c *Context) Query() *ecs.Query { return c.query }

// Ranges yields the row ranges currently matching the system's query.
func (c *Context) Ranges() iter.Seq[ecs.RowRange] {
	if c.query == nil {
		return func(func(ecs.RowRange) bool) {}
	}
	return c.query.Iterate()
}
