package data

import (
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/expworld/simkernel/internal/component"
	"github.com/expworld/simkernel/internal/core/ecs"
	"github.com/expworld/simkernel/internal/world"
)

// Scenario describes which systems a world runs and which entities it starts
// with.
type Scenario struct {
	Name    string        `yaml:"name"`
	Systems []SystemEntry `yaml:"systems"`
	Spawn   []SpawnGroup  `yaml:"spawn"`
}

// SystemEntry enables one system. A bare string is shorthand for a built-in
// system name.
type SystemEntry struct {
	Name    string   `yaml:"name"`   // built-in system
	Script  string   `yaml:"script"` // global Lua function
	Phase   *int     `yaml:"phase"`  // overrides the system's default phase
	Require []string `yaml:"require"`
	Exclude []string `yaml:"exclude"`
	After   uint64   `yaml:"after"` // halt: stop after this many ticks
}

func (e *SystemEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		e.Name = node.Value
		return nil
	}
	type plain SystemEntry
	return node.Decode((*plain)(e))
}

// Label returns the name the system is registered under.
func (e SystemEntry) Label() string {
	if e.Script != "" {
		return "lua:" + e.Script
	}
	return e.Name
}

// SpawnGroup creates Count entities (default 1) with the same components.
// Component values are decoded by kind, see component.IDs.Decode.
type SpawnGroup struct {
	Count      int                  `yaml:"count"`
	Components map[string]yaml.Node `yaml:"components"`
}

// LoadScenario loads a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	sc, err := ParseScenario(raw)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return sc, nil
}

func ParseScenario(raw []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	seen := make(map[string]bool, len(sc.Systems))
	for i, e := range sc.Systems {
		if (e.Name == "") == (e.Script == "") {
			return nil, fmt.Errorf("system %d: exactly one of name or script is required", i)
		}
		if seen[e.Label()] {
			return nil, fmt.Errorf("system %q listed twice", e.Label())
		}
		seen[e.Label()] = true
	}
	for i, g := range sc.Spawn {
		if g.Count < 0 {
			return nil, fmt.Errorf("spawn group %d: negative count %d", i, g.Count)
		}
	}
	return &sc, nil
}

// Entities expands the spawn groups into entity descriptions.
func (sc *Scenario) Entities(ids *component.IDs) ([]world.EntityDesc, error) {
	var descs []world.EntityDesc
	for i, g := range sc.Spawn {
		kinds := make([]string, 0, len(g.Components))
		for k := range g.Components {
			kinds = append(kinds, k)
		}
		slices.Sort(kinds)

		values := make([]ecs.ComponentValue, 0, len(kinds))
		for _, k := range kinds {
			node := g.Components[k]
			cv, err := ids.Decode(k, &node)
			if err != nil {
				return nil, fmt.Errorf("spawn group %d: %w", i, err)
			}
			values = append(values, cv)
		}

		count := g.Count
		if count == 0 {
			count = 1
		}
		for n := 0; n < count; n++ {
			descs = append(descs, world.EntityDesc{Components: slices.Clone(values)})
		}
	}
	return descs, nil
}

// KindIDs resolves component kind names to type ids.
func KindIDs(ids *component.IDs, kinds []string) ([]ecs.TypeID, error) {
	out := make([]ecs.TypeID, 0, len(kinds))
	for _, k := range kinds {
		id, ok := ids.Lookup(k)
		if !ok {
			return nil, fmt.Errorf("component kind %q: %w", k, ecs.ErrUnknownType)
		}
		out = append(out, id)
	}
	return out, nil
}
