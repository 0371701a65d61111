package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/pthm-cable/swarm/components"
	"github.com/pthm-cable/swarm/config"
	"github.com/pthm-cable/swarm/game"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the simulation headless",
		Long: `Run the simulation without graphics until --max-ticks frames have been
stepped, the population dies out, or the process is interrupted.

Examples:
  swarm run --max-ticks 6000
  swarm run --time-multiplier 100 --output-dir out/ --log-stats
  swarm run --parallel --ledger runs.db`,
		RunE: runSimulation,
	}

	cmd.Flags().Int64("seed", 0, "RNG seed (0 = time-based)")
	cmd.Flags().Int64("max-ticks", 0, "Stop after N frames (0 = unlimited)")
	cmd.Flags().Float64("time-multiplier", 0, "Simulation speed (0 = use config)")
	cmd.Flags().Float64("stats-window", 0, "Stats window size in simulated seconds (0 = use config)")
	cmd.Flags().String("output-dir", "", "Output directory for CSV logs and config snapshot")
	cmd.Flags().String("ledger", "", "SQLite file recording runs and window stats")
	cmd.Flags().Bool("log-stats", false, "Output stats via slog")
	cmd.Flags().Bool("realtime", false, "Pace frames on the wall clock and measure FPS")
	cmd.Flags().Bool("parallel", false, "Evaluate decisions on worker goroutines (overrides config)")
	cmd.Flags().Bool("dump-agents", false, "Print every surviving agent's readout when the run ends")
	return cmd
}

func runSimulation(cmd *cobra.Command, args []string) error {
	logger, err := setupLogger(cmd)
	if err != nil {
		return err
	}

	configPath, _ := cmd.Flags().GetString("config")
	if err := config.Init(configPath); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg := config.Cfg()

	seed, _ := cmd.Flags().GetInt64("seed")
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	maxTicks, _ := cmd.Flags().GetInt64("max-ticks")
	if tm, _ := cmd.Flags().GetFloat64("time-multiplier"); tm > 0 {
		cfg.Scheduler.TimeMultiplier = tm
	}
	if w, _ := cmd.Flags().GetFloat64("stats-window"); w > 0 {
		cfg.Telemetry.StatsWindow = w
	}

	opts := game.DefaultOptions()
	opts.Seed = seed
	opts.Logger = logger
	opts.OutputDir, _ = cmd.Flags().GetString("output-dir")
	opts.LedgerPath, _ = cmd.Flags().GetString("ledger")
	opts.LogStats, _ = cmd.Flags().GetBool("log-stats")
	opts.Realtime, _ = cmd.Flags().GetBool("realtime")
	if cmd.Flags().Changed("parallel") {
		parallel, _ := cmd.Flags().GetBool("parallel")
		opts.Parallel = &parallel
	}

	g, err := game.NewGameWithOptions(cfg, opts)
	if err != nil {
		return err
	}
	defer g.Unload()

	logger.Info("starting headless simulation",
		"seed", seed,
		"max_ticks", maxTicks,
		"time_multiplier", g.TimeMultiplier(),
		"realtime", opts.Realtime,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	started := time.Now()
	err = g.Run(ctx, maxTicks, cfg.Derived.FrameSeconds)
	if err != nil && ctx.Err() == nil {
		return err
	}
	if maxTicks > 0 && g.Frame() >= maxTicks {
		logger.Info("max ticks reached", "frame", g.Frame())
	}

	summary := g.Summary()
	logger.Info("run_complete", "summary", summary, "wall_time", time.Since(started).String())
	printSummary(summary, time.Since(started))
	if dump, _ := cmd.Flags().GetBool("dump-agents"); dump {
		printAgents(g.Agents(nil))
	}
	return nil
}

// printAgents writes one tab-separated row per agent, columns taken from
// the readout field descriptors.
func printAgents(agents []components.Readout) {
	fields := components.ReadoutFieldDescriptors()
	fmt.Print("id\tx\ty")
	for _, f := range fields {
		fmt.Printf("\t%s", f.ID)
	}
	fmt.Println()
	for i := range agents {
		a := &agents[i]
		fmt.Printf("%d\t%.1f\t%.1f", a.ID, a.Position.X, a.Position.Y)
		for _, f := range fields {
			fmt.Printf("\t"+f.Format, components.GetReadoutValue(a, f.ID))
		}
		fmt.Println()
	}
}

// printSummary writes a human-readable end-of-run report to stderr.
func printSummary(s game.Summary, wall time.Duration) {
	simTime := time.Duration(s.SimTime * float64(time.Second)).Round(time.Second)
	fmt.Fprintf(os.Stderr, "simulated %s in %s over %s frames\n",
		simTime, wall.Round(time.Millisecond), humanize.Comma(s.Frames))
	fmt.Fprintf(os.Stderr, "  %s births, %s deaths, %s alive (max generation %d)\n",
		humanize.Comma(int64(s.Births)), humanize.Comma(int64(s.Deaths)),
		humanize.Comma(int64(s.Population)), s.MaxGeneration)
	fmt.Fprintf(os.Stderr, "  %s agent updates, %s deferred, %s failed, %s food eaten\n",
		humanize.Comma(int64(s.Processed)), humanize.Comma(int64(s.Deferred)),
		humanize.Comma(int64(s.Failures)), humanize.Comma(int64(s.FoodEaten)))
	if s.Dispatched > 0 {
		fmt.Fprintf(os.Stderr, "  %s decisions offloaded, %s applied, %s dropped\n",
			humanize.Comma(int64(s.Dispatched)), humanize.Comma(int64(s.Applied)),
			humanize.Comma(int64(s.Dropped)))
	}
}
