package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/profile"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/width"

	"github.com/expworld/simkernel/internal/config"
	"github.com/expworld/simkernel/internal/data"
	"github.com/expworld/simkernel/internal/persist"
	"github.com/expworld/simkernel/internal/scripting"
	"github.com/expworld/simkernel/internal/system"
	"github.com/expworld/simkernel/internal/world"
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
	os.Exit(code)
}

// ── Startup display helpers ────────────────────────────────────────

var printer = message.NewPrinter(language.English)

func printBanner(name string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m             simkernel  v0.1.0             \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m        entity component simulation        \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1mworld:\033[0m %s\n\n", name)
}

// displayWidth counts wide (East Asian) runes as two columns.
func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			n += 2
		default:
			n++
		}
	}
	return n
}

func printSection(title string) {
	lineLen := 46 - displayWidth(title) - 1
	if lineLen < 3 {
		lineLen = 3
	}
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, count int) {
	numStr := printer.Sprintf("%d", count)
	dotsLen := 42 - displayWidth(label) - len(numStr)
	if dotsLen < 3 {
		dotsLen = 3
	}
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), numStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Main simulation logic ─────────────────────────────────────────

// run returns the process exit code: 0 after a clean shutdown, 2 when Fini
// had to force-release entities.
func run() (int, error) {
	// 1. Load config
	cfgPath := "config/simkernel.toml"
	if p := os.Getenv("SIMKERNEL_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return 0, fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return 0, fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	printBanner(cfg.Sim.Name)

	// 3. Optional profiling
	switch cfg.Profile.Mode {
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(cfg.Profile.Dir), profile.NoShutdownHook).Stop()
	case "mem":
		defer profile.Start(profile.MemProfileAllocs, profile.ProfilePath(cfg.Profile.Dir), profile.NoShutdownHook).Stop()
	}

	// 4. Optional PostgreSQL snapshots
	var snapshots system.SnapshotSaver
	if cfg.Database.Enabled {
		printSection("database")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		db, err := persist.NewDB(ctx, cfg.Database, log)
		if err != nil {
			return 0, fmt.Errorf("database: %w", err)
		}
		defer db.Close()
		printOK("PostgreSQL connected")

		applied, err := persist.RunMigrations(ctx, db)
		if err != nil {
			return 0, fmt.Errorf("migrations: %w", err)
		}
		printStat("migrations applied", applied)
		fmt.Println()
		snapshots = persist.NewSnapshotRepo(db)
	}

	// 5. Load scenario and scripts
	printSection("scenario")
	sc, err := data.LoadScenario(cfg.Sim.Scenario)
	if err != nil {
		return 0, fmt.Errorf("load scenario: %w", err)
	}

	var scripts *scripting.Engine
	if cfg.Scripting.Dir != "" {
		scripts, err = scripting.NewEngine(cfg.Scripting.Dir, log)
		if err != nil {
			return 0, fmt.Errorf("lua engine: %w", err)
		}
		defer scripts.Close()
		printOK("Lua scripts loaded")
	}

	// 6. Create and configure the world
	w := world.Init(world.WithLogger(log))
	boot := system.Install(sc, system.Deps{
		Scripts:          scripts,
		Snapshots:        snapshots,
		SnapshotInterval: cfg.Database.SnapshotInterval,
		Log:              log,
	})
	if err := w.AppInit(boot); err != nil {
		return 0, fmt.Errorf("configure world: %w", err)
	}
	printStat("component types", w.Registry().Len())
	printStat("systems", w.Scheduler().Len())

	handles, err := boot.Spawn(w)
	if err != nil {
		return 0, fmt.Errorf("spawn scenario: %w", err)
	}
	if len(handles) == 0 {
		return 0, errors.New("scenario spawns no entities")
	}
	printStat("entities", len(handles))
	fmt.Println()

	// 7. Run until signalled, stopped by a system or out of ticks
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printSection("running")
	printReady(fmt.Sprintf("world %s", w.ID()))
	printReady(fmt.Sprintf("loop started (tick: %s)", cfg.Sim.TickRate))
	fmt.Println()

	ticks, runErr := world.Run(ctx, w, world.LoopConfig{
		TickRate:  cfg.Sim.TickRate,
		FixedStep: cfg.Sim.FixedStep,
		MaxTicks:  cfg.Sim.MaxTicks,
	})
	if runErr != nil {
		log.Error("loop failed", zap.Uint64("ticks", ticks), zap.Error(runErr))
	}

	// 8. Final snapshot and scene export before the world is released
	if p := boot.Persistence(); p != nil {
		if err := p.SaveNow(); err != nil {
			log.Error("final snapshot failed", zap.Error(err))
		}
	}
	if cfg.Stage.Export != "" {
		n, err := exportStage(w, boot.IDs(), cfg.Stage.Export)
		if err != nil {
			log.Error("stage export failed", zap.Error(err))
		} else {
			log.Info("stage exported", zap.String("path", cfg.Stage.Export), zap.Int("prims", n))
		}
	}

	live := w.Fini()
	log.Info("world finalized",
		zap.Uint64("ticks", ticks),
		zap.Duration("uptime", time.Since(time.Unix(cfg.Sim.StartTime, 0))),
		zap.Int("released", live),
	)
	if runErr != nil {
		return 0, runErr
	}
	if live > 0 {
		return 2, nil
	}
	return 0, nil
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
