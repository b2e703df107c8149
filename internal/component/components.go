package component

// Position is a point in the simulation plane.
type Position struct {
	X float32 `yaml:"x" json:"x"`
	Y float32 `yaml:"y" json:"y"`
}

// Velocity is applied to Position by MoveSystem, in units per second.
type Velocity struct {
	X float32 `yaml:"x" json:"x"`
	Y float32 `yaml:"y" json:"y"`
}

// Counter is incremented once per tick by CounterSystem.
type Counter struct {
	Value int64 `yaml:"value" json:"value"`
}

// Lifetime is the remaining simulated time, in seconds, before the entity
// is despawned.
type Lifetime struct {
	Remaining float32 `yaml:"remaining" json:"remaining"`
}

type Label struct {
	Name string `yaml:"name" json:"name"`
}
