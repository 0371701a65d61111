package game

import (
	"log/slog"

	"github.com/pthm-cable/swarm/components"
)

// Summary is a snapshot of cumulative run counters.
type Summary struct {
	Frames        int64
	SimTime       float64
	RealTime      float64
	Population    int
	Food          int
	ActiveMatings int
	MaxGeneration uint32

	Births     uint64
	Deaths     uint64
	FoodEaten  int
	Processed  uint64
	Failures   uint64
	Deferred   uint64
	Dispatched uint64
	Applied    uint64
	Dropped    uint64
}

// Summary returns the cumulative counters of the run so far.
func (g *Game) Summary() Summary {
	processed, failures, deferred := g.scheduler.Totals()
	dispatched, applied, dropped := g.DecisionTotals()
	eaten, _ := g.food.Totals()
	return Summary{
		Frames:        g.frame,
		SimTime:       g.simNow,
		RealTime:      g.realNow,
		Population:    g.aliveCount,
		Food:          g.food.Count(),
		ActiveMatings: g.coordinator.ActiveCount(),
		MaxGeneration: g.lifetimes.MaxGeneration(),
		Births:        g.totalBirths,
		Deaths:        g.totalDeaths,
		FoodEaten:     eaten,
		Processed:     processed,
		Failures:      failures,
		Deferred:      deferred,
		Dispatched:    dispatched,
		Applied:       applied,
		Dropped:       dropped,
	}
}

// LogValue implements slog.LogValuer.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("frames", s.Frames),
		slog.Float64("sim_time", s.SimTime),
		slog.Float64("real_time", s.RealTime),
		slog.Int("population", s.Population),
		slog.Int("food", s.Food),
		slog.Int("active_matings", s.ActiveMatings),
		slog.Uint64("max_generation", uint64(s.MaxGeneration)),
		slog.Uint64("births", s.Births),
		slog.Uint64("deaths", s.Deaths),
		slog.Int("food_eaten", s.FoodEaten),
		slog.Uint64("agents_updated", s.Processed),
		slog.Uint64("update_failures", s.Failures),
		slog.Uint64("agents_deferred", s.Deferred),
		slog.Uint64("decisions_dispatched", s.Dispatched),
		slog.Uint64("decisions_applied", s.Applied),
		slog.Uint64("decisions_dropped", s.Dropped),
	)
}

// LogWorldState logs population counts by behavior.
func (g *Game) LogWorldState() {
	counts := make([]int, components.BehaviorTagCount())
	var dead int
	query := g.agentFilter.Query()
	for query.Next() {
		_, _, _, vit, _, beh, _ := query.Get()
		if !vit.Alive {
			dead++
			continue
		}
		counts[beh.Tag]++
	}

	attrs := []any{
		"frame", g.frame,
		"sim_time", g.simNow,
		"time_multiplier", g.timeMultiplier,
		"agents", g.aliveCount,
		"dead_pending", dead,
		"active_matings", g.coordinator.ActiveCount(),
	}
	for tag, n := range counts {
		attrs = append(attrs, components.BehaviorTag(tag).String(), n)
	}
	g.logger.Info("world_state", attrs...)
}
