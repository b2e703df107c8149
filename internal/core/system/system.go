package system

// Phase is a system's order key within a single tick. Lower phases run first;
// systems sharing a phase run in registration order. Any int is a valid key,
// the named phases are the conventional slots.
type Phase int

const (
	PhaseInput      Phase = iota // 0: external input, scripted triggers
	PhasePreUpdate               // 1: react to last tick's events
	PhaseUpdate                  // 2: simulation logic
	PhasePostUpdate              // 3: integration, lifetimes
	PhaseOutput                  // 4: reporting
	PhasePersist                 // 5: snapshots
	PhaseCleanup                 // 6: shutdown checks
)

// System is the interface every registered system implements. Update runs
// once per tick and returns false to ask the world to stop.
type System interface {
	Update(ctx *Context) bool
}

// Func adapts a plain function to System.
type Func func(ctx *Context) bool

func (f Func) Update(ctx *Context) bool { return f(ctx) }

// Tick carries the clock values handed to every system of one tick.
type Tick struct {
	Number    uint64
	DeltaTime float32
	Elapsed   float64
}
