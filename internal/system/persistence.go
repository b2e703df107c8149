package system

import (
	"context"
	"time"

	"go.uber.org/zap"

	coresys "github.com/expworld/simkernel/internal/core/system"
	"github.com/expworld/simkernel/internal/persist"
	"github.com/expworld/simkernel/internal/world"
)

// SnapshotSaver stores world snapshots. *persist.SnapshotRepo implements it.
type SnapshotSaver interface {
	Save(ctx context.Context, snap *persist.Snapshot) error
}

// PersistenceSystem periodically saves a snapshot of every entity.
// Phase 5 (Persist).
type PersistenceSystem struct {
	world     *world.World
	saver     SnapshotSaver
	log       *zap.Logger
	tickCount int
	interval  int // snapshot every N ticks
	saved     int
}

func NewPersistenceSystem(w *world.World, saver SnapshotSaver, log *zap.Logger, intervalTicks int) *PersistenceSystem {
	if intervalTicks < 1 {
		intervalTicks = 1
	}
	return &PersistenceSystem{
		world:    w,
		saver:    saver,
		log:      log,
		interval: intervalTicks,
	}
}

func (s *PersistenceSystem) Phase() coresys.Phase { return coresys.PhasePersist }

func (s *PersistenceSystem) Update(ctx *coresys.Context) bool {
	s.tickCount++
	if s.tickCount < s.interval {
		return true
	}
	s.tickCount = 0
	// values written earlier in this tick are included
	if err := s.save(ctx.Tick, ctx.Elapsed+float64(ctx.DeltaTime)); err != nil {
		s.log.Error("snapshot failed", zap.Uint64("tick", ctx.Tick), zap.Error(err))
	}
	return true
}

// SaveNow writes a snapshot immediately, outside the interval. Called on
// shutdown before the world is finalized.
func (s *PersistenceSystem) SaveNow() error {
	return s.save(s.world.Tick(), s.world.Elapsed())
}

// Saved returns the number of snapshots written successfully.
func (s *PersistenceSystem) Saved() int { return s.saved }

func (s *PersistenceSystem) save(tick uint64, elapsed float64) error {
	snap, err := persist.Capture(s.world.Storage(), s.world.ID(), tick, elapsed)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.saver.Save(ctx, snap); err != nil {
		return err
	}
	s.saved++
	s.log.Info("snapshot saved", zap.Uint64("tick", tick), zap.Int("entities", len(snap.Entities)))
	return nil
}
