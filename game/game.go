// Package game owns the simulation: the ECS world, the spatial index, the
// mating coordinator and the adaptive scheduler, stepped one frame at a time.
package game

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/swarm/components"
	"github.com/pthm-cable/swarm/config"
	"github.com/pthm-cable/swarm/systems"
	"github.com/pthm-cable/swarm/telemetry"
)

// Game holds the complete simulation state.
type Game struct {
	cfg    *config.Config
	world  *ecs.World
	rng    *rand.Rand
	logger *slog.Logger

	agentMapper *ecs.Map7[
		components.Organism,
		components.Position,
		components.Rotation,
		components.Vitals,
		components.Reproduction,
		components.Behavior,
		components.Schedule,
	]
	agentFilter *ecs.Filter7[
		components.Organism,
		components.Position,
		components.Rotation,
		components.Vitals,
		components.Reproduction,
		components.Behavior,
		components.Schedule,
	]

	orgMap      *ecs.Map1[components.Organism]
	posMap      *ecs.Map1[components.Position]
	rotMap      *ecs.Map1[components.Rotation]
	vitalsMap   *ecs.Map1[components.Vitals]
	reproMap    *ecs.Map1[components.Reproduction]
	behaviorMap *ecs.Map1[components.Behavior]
	scheduleMap *ecs.Map1[components.Schedule]

	// Agents by stable id, with the collaborator bundle built at spawn.
	byID map[components.EntityID]ecs.Entity
	caps map[components.EntityID]systems.Capabilities

	ids         *systems.IDAllocator
	grid        *systems.SpatialIndex
	food        *systems.FoodField
	sensor      *systems.GridSensor
	commands    *systems.CommandQueue
	coordinator *systems.Coordinator
	scheduler   *systems.Scheduler
	machine     *systems.Machine
	rules       systems.BehaviorRules

	parallel        *parallelState
	parallelEnabled bool
	pending         []systems.AgentView // agents awaiting an offloaded decision

	// Telemetry
	perf      *telemetry.PerfCollector
	collector *telemetry.Collector
	lifetimes *telemetry.LifetimeTracker
	bookmarks *telemetry.BookmarkDetector
	output    *telemetry.OutputManager
	ledger    *telemetry.Ledger

	statsCallback func(telemetry.WindowStats)
	logStats      bool
	realtime      bool
	matingRecords []telemetry.MatingRecord
	lastStep      systems.StepResult

	// Clocks
	frame          int64
	realNow        float64 // real seconds
	simNow         float64 // simulated seconds
	timeMultiplier float64

	deathCauses map[components.EntityID]string
	aliveCount  int
	totalBirths uint64
	totalDeaths uint64

	cmdBuf   []systems.Command
	eventBuf []systems.MatingEvent
}

// NewGame creates a game from the global configuration with default options.
func NewGame() (*Game, error) {
	return NewGameWithOptions(config.Cfg(), DefaultOptions())
}

// NewGameWithOptions creates a game, spawns the initial population and
// opens any requested outputs.
func NewGameWithOptions(cfg *config.Config, opts Options) (*Game, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	world := ecs.NewWorld()

	g := &Game{
		cfg:    cfg,
		world:  world,
		rng:    rand.New(rand.NewSource(opts.Seed)),
		logger: logger,
		agentMapper: ecs.NewMap7[
			components.Organism,
			components.Position,
			components.Rotation,
			components.Vitals,
			components.Reproduction,
			components.Behavior,
			components.Schedule,
		](world),
		agentFilter: ecs.NewFilter7[
			components.Organism,
			components.Position,
			components.Rotation,
			components.Vitals,
			components.Reproduction,
			components.Behavior,
			components.Schedule,
		](world),
		orgMap:      ecs.NewMap1[components.Organism](world),
		posMap:      ecs.NewMap1[components.Position](world),
		rotMap:      ecs.NewMap1[components.Rotation](world),
		vitalsMap:   ecs.NewMap1[components.Vitals](world),
		reproMap:    ecs.NewMap1[components.Reproduction](world),
		behaviorMap: ecs.NewMap1[components.Behavior](world),
		scheduleMap: ecs.NewMap1[components.Schedule](world),

		byID:        make(map[components.EntityID]ecs.Entity),
		caps:        make(map[components.EntityID]systems.Capabilities),
		deathCauses: make(map[components.EntityID]string),

		timeMultiplier: clampTimeMultiplier(cfg.Scheduler.TimeMultiplier),
		statsCallback:  opts.StatsCallback,
		logStats:       opts.LogStats,
		realtime:       opts.Realtime,
	}

	g.ids = &systems.IDAllocator{}
	g.grid = systems.NewSpatialIndex(cfg.Derived.CellSize32)
	g.food = systems.NewFoodField(cfg.Food, cfg.World, g.grid, g.ids, opts.Seed)
	g.sensor = &systems.GridSensor{
		Grid:     g.grid,
		Range:    float32(cfg.Behavior.DetectionRange),
		Eligible: g.mateEligible,
	}
	g.commands = &systems.CommandQueue{}
	g.coordinator = systems.NewCoordinator(
		systems.CoordinatorConfigFrom(cfg),
		matingHost{g},
		g.commands,
		rand.New(rand.NewSource(opts.Seed+1)),
	)
	g.scheduler = systems.NewScheduler(cfg.Scheduler, logger)
	g.rules = systems.RulesFromConfig(cfg.Behavior)
	g.machine = systems.NewMachine(cfg, systems.MachineDeps{
		Grid:   g.grid,
		Food:   g.food,
		Mating: g.coordinator,
		Peers:  peerLookup{g},
		Rand:   rand.New(rand.NewSource(opts.Seed + 2)),
	})

	g.parallelEnabled = cfg.Scheduler.ParallelDecisions
	if opts.Parallel != nil {
		g.parallelEnabled = *opts.Parallel
	}
	if g.parallelEnabled {
		g.parallel = newParallelState(cfg.Derived.CellSize32, cfg.Scheduler.MaxDecisionsPerFrame)
		g.parallel.startWorkers(g)
	}

	g.perf = telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow)
	g.collector = telemetry.NewCollector(cfg.Telemetry.StatsWindow)
	g.lifetimes = telemetry.NewLifetimeTracker()
	g.bookmarks = telemetry.NewBookmarkDetector(10)

	if err := g.openOutputs(opts); err != nil {
		g.Unload()
		return nil, err
	}

	placed := g.food.Populate()
	g.spawnInitialPopulation()
	g.logger.Info("game_initialized",
		"agents", g.aliveCount,
		"food", placed,
		"time_multiplier", g.timeMultiplier,
		"parallel", g.parallelEnabled,
		"seed", opts.Seed,
	)
	return g, nil
}

func (g *Game) openOutputs(opts Options) error {
	output, err := telemetry.NewOutputManager(opts.OutputDir)
	if err != nil {
		return fmt.Errorf("output: %w", err)
	}
	g.output = output
	if err := g.output.WriteConfig(g.cfg); err != nil {
		return fmt.Errorf("output: %w", err)
	}

	if opts.LedgerPath == "" {
		return nil
	}
	ledger, err := telemetry.OpenLedger(opts.LedgerPath)
	if err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	g.ledger = ledger
	if _, err := g.ledger.BeginRun(opts.Seed, g.cfg, time.Now()); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	return nil
}

// Unload stops workers, cancels open mating processes and closes outputs.
func (g *Game) Unload() {
	if g.parallel != nil {
		g.parallel.stopWorkers()
	}
	if g.coordinator != nil {
		g.coordinator.Close()
	}
	g.flushMatingRecords()
	if g.ledger != nil {
		if err := g.ledger.EndRun(time.Now(), g.frame, g.simNow, g.aliveCount); err != nil {
			g.logger.Error("failed to finalize ledger", "error", err)
		}
		if err := g.ledger.Close(); err != nil {
			g.logger.Error("failed to close ledger", "error", err)
		}
		g.ledger = nil
	}
	if err := g.output.Close(); err != nil {
		g.logger.Error("failed to close output", "error", err)
	}
	g.output = nil
}

// SetTimeMultiplier changes the simulation speed, clamped to the supported range.
func (g *Game) SetTimeMultiplier(tm float64) {
	tm = clampTimeMultiplier(tm)
	if tm == g.timeMultiplier {
		return
	}
	g.logger.Info("time_multiplier_changed", "from", g.timeMultiplier, "to", tm)
	g.timeMultiplier = tm
}

// TimeMultiplier returns the current simulation speed.
func (g *Game) TimeMultiplier() float64 { return g.timeMultiplier }

// Frame returns the number of frames stepped.
func (g *Game) Frame() int64 { return g.frame }

// SimTime returns elapsed simulated seconds.
func (g *Game) SimTime() float64 { return g.simNow }

// RealTime returns the real seconds covered by stepped frames.
func (g *Game) RealTime() float64 { return g.realNow }

// Population returns the number of living agents.
func (g *Game) Population() int { return g.aliveCount }

// Totals returns cumulative births and deaths.
func (g *Game) Totals() (births, deaths uint64) { return g.totalBirths, g.totalDeaths }

// Coordinator exposes the mating coordinator.
func (g *Game) Coordinator() *systems.Coordinator { return g.coordinator }

// Grid exposes the spatial index.
func (g *Game) Grid() *systems.SpatialIndex { return g.grid }

// Scheduler exposes the adaptive scheduler.
func (g *Game) Scheduler() *systems.Scheduler { return g.scheduler }

// Food exposes the food field.
func (g *Game) Food() *systems.FoodField { return g.food }

// PerfStats returns the rolling performance statistics.
func (g *Game) PerfStats() telemetry.PerfStats { return g.perf.Stats() }

// LastStep returns the scheduler result of the latest frame.
func (g *Game) LastStep() systems.StepResult { return g.lastStep }
