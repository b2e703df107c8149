package world

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// LoopConfig drives Run.
type LoopConfig struct {
	TickRate time.Duration
	// FixedStep passes TickRate as delta time; otherwise the measured wall
	// time since the previous tick is used.
	FixedStep bool
	// MaxTicks stops the loop after that many ticks. Zero means no limit.
	MaxTicks uint64
}

// Run calls Progress on every tick of a ticker until ctx is done, a system
// asks to stop, MaxTicks is reached or Progress fails. It returns the number
// of ticks it ran. Cancellation is only observed between ticks.
func Run(ctx context.Context, w *World, cfg LoopConfig) (uint64, error) {
	if cfg.TickRate <= 0 {
		return 0, fmt.Errorf("run loop: tick rate %s must be positive", cfg.TickRate)
	}
	ticker := time.NewTicker(cfg.TickRate)
	defer ticker.Stop()

	log := w.Logger()
	log.Info("loop started",
		zap.Duration("tick_rate", cfg.TickRate),
		zap.Bool("fixed_step", cfg.FixedStep),
		zap.Uint64("max_ticks", cfg.MaxTicks),
	)

	var ticks uint64
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			log.Info("loop stopped", zap.Uint64("ticks", ticks), zap.NamedError("cause", context.Cause(ctx)))
			return ticks, nil
		case now := <-ticker.C:
			dt := cfg.TickRate
			if !cfg.FixedStep {
				dt = now.Sub(last)
			}
			last = now

			keepRunning, err := w.Progress(float32(dt.Seconds()))
			if err != nil {
				return ticks, err
			}
			ticks++
			if !keepRunning {
				log.Info("loop stopped by system", zap.Uint64("ticks", ticks))
				return ticks, nil
			}
			if cfg.MaxTicks > 0 && ticks >= cfg.MaxTicks {
				log.Info("loop reached tick limit", zap.Uint64("ticks", ticks))
				return ticks, nil
			}
		}
	}
}
