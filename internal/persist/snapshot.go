package persist

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	"github.com/expworld/simkernel/internal/core/ecs"
)

// EntitySnapshot is one entity's components keyed by component name.
type EntitySnapshot struct {
	Entity     ecs.EntityHandle `json:"-"`
	Handle     string           `json:"entity"`
	Components map[string]any   `json:"components"`
}

// Snapshot is a point-in-time copy of every placed entity in a world.
type Snapshot struct {
	WorldID  uuid.UUID        `json:"world_id"`
	Tick     uint64           `json:"tick"`
	Elapsed  float64          `json:"elapsed"`
	Entities []EntitySnapshot `json:"entities"`
}

// Capture copies the storage contents. Entities are ordered by index so two
// worlds in the same state produce the same snapshot.
func Capture(s *ecs.Storage, worldID uuid.UUID, tick uint64, elapsed float64) (*Snapshot, error) {
	snap := &Snapshot{WorldID: worldID, Tick: tick, Elapsed: elapsed}
	for _, a := range s.Archetypes().Archetypes() {
		types := a.Types()
		names := make([]string, len(types))
		for i, id := range types {
			desc, err := s.Registry().Descriptor(id)
			if err != nil {
				return nil, fmt.Errorf("capture: %w", err)
			}
			names[i] = desc.Name
		}
		for _, h := range a.Entities() {
			es := EntitySnapshot{
				Entity:     h,
				Handle:     h.String(),
				Components: make(map[string]any, len(types)),
			}
			for i, id := range types {
				v, err := s.Get(h, id)
				if err != nil {
					return nil, fmt.Errorf("capture %s: %w", h, err)
				}
				es.Components[names[i]] = v
			}
			snap.Entities = append(snap.Entities, es)
		}
	}
	slices.SortFunc(snap.Entities, func(a, b EntitySnapshot) int {
		return cmp.Compare(a.Entity.Index, b.Entity.Index)
	})
	return snap, nil
}

// EncodeSnapshot returns the canonical JSON payload of snap and its BLAKE2b-256
// digest.
func EncodeSnapshot(snap *Snapshot) ([]byte, [blake2b.Size256]byte, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, [blake2b.Size256]byte{}, fmt.Errorf("encode snapshot: %w", err)
	}
	return payload, blake2b.Sum256(payload), nil
}
