package telemetry

import (
	"log/slog"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// WindowStats holds aggregated statistics for one window of simulated time.
type WindowStats struct {
	WindowStart    float64 `csv:"-" db:"window_start"`
	WindowEnd      float64 `csv:"window_end" db:"window_end"`
	Frame          int64   `csv:"frame" db:"frame"`
	TimeMultiplier float64 `csv:"time_multiplier" db:"time_multiplier"`

	// Counts at window end
	Population    int `csv:"population" db:"population"`
	FoodAvailable int `csv:"food" db:"food"`
	ActiveMatings int `csv:"active_matings" db:"active_matings"`
	Wander        int `csv:"wander" db:"wander"`
	Forage        int `csv:"forage" db:"forage"`
	SeekMate      int `csv:"seek_mate" db:"seek_mate"`
	Mate          int `csv:"mate" db:"mate"`

	// Events during window
	Births           int `csv:"births" db:"births"`
	DroppedOffspring int `csv:"dropped_offspring" db:"dropped_offspring"`
	Deaths           int `csv:"deaths" db:"deaths"`
	Starvations      int `csv:"starvations" db:"starvations"`
	OldAgeDeaths     int `csv:"old_age_deaths" db:"old_age_deaths"`
	FoodEaten        int `csv:"food_eaten" db:"food_eaten"`
	MatingsStarted   int `csv:"matings_started" db:"matings_started"`
	MatingsCompleted int `csv:"matings_completed" db:"matings_completed"`
	MatingsCancelled int `csv:"matings_cancelled" db:"matings_cancelled"`
	FastPathMatings  int `csv:"fast_path_matings" db:"fast_path_matings"`
	MatingRejections int `csv:"mating_rejections" db:"mating_rejections"`
	BehaviorChanges  int `csv:"behavior_changes" db:"behavior_changes"`

	// Scheduler load
	AgentsUpdated  int `csv:"agents_updated" db:"agents_updated"`
	AgentsDeferred int `csv:"agents_deferred" db:"agents_deferred"`
	UpdateFailures int `csv:"update_failures" db:"update_failures"`

	// Energy distribution (sampled at window end, fraction of max)
	EnergyMean float64 `csv:"energy_mean" db:"energy_mean"`
	EnergyStd  float64 `csv:"energy_std" db:"energy_std"`
	EnergyP10  float64 `csv:"energy_p10" db:"energy_p10"`
	EnergyP50  float64 `csv:"energy_p50" db:"energy_p50"`
	EnergyP90  float64 `csv:"energy_p90" db:"energy_p90"`

	// Lifespan of agents that died during the window (simulated seconds)
	LifespanMean  float64 `csv:"lifespan_mean" db:"lifespan_mean"`
	MaxGeneration uint32  `csv:"max_generation" db:"max_generation"`
}

// Percentile calculates the p-th percentile of a sorted slice.
// p should be in [0, 1]. Returns 0 if slice is empty.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// EnergyDistribution summarizes a set of energy fractions.
type EnergyDistribution struct {
	Mean, Std, P10, P50, P90 float64
}

// ComputeEnergyStats calculates mean, spread and percentiles from energy values.
func ComputeEnergyStats(values []float64) EnergyDistribution {
	if len(values) == 0 {
		return EnergyDistribution{}
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	var d EnergyDistribution
	d.Mean, d.Std = stat.PopMeanStdDev(sorted, nil)
	d.P10 = Percentile(sorted, 0.10)
	d.P50 = Percentile(sorted, 0.50)
	d.P90 = Percentile(sorted, 0.90)
	return d
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("window_start", s.WindowStart),
		slog.Float64("window_end", s.WindowEnd),
		slog.Int64("frame", s.Frame),
		slog.Float64("time_multiplier", s.TimeMultiplier),
		slog.Int("population", s.Population),
		slog.Int("food", s.FoodAvailable),
		slog.Int("active_matings", s.ActiveMatings),
		slog.Int("wander", s.Wander),
		slog.Int("forage", s.Forage),
		slog.Int("seek_mate", s.SeekMate),
		slog.Int("mate", s.Mate),
		slog.Int("births", s.Births),
		slog.Int("dropped_offspring", s.DroppedOffspring),
		slog.Int("deaths", s.Deaths),
		slog.Int("starvations", s.Starvations),
		slog.Int("old_age_deaths", s.OldAgeDeaths),
		slog.Int("food_eaten", s.FoodEaten),
		slog.Int("matings_started", s.MatingsStarted),
		slog.Int("matings_completed", s.MatingsCompleted),
		slog.Int("matings_cancelled", s.MatingsCancelled),
		slog.Int("fast_path_matings", s.FastPathMatings),
		slog.Int("mating_rejections", s.MatingRejections),
		slog.Int("behavior_changes", s.BehaviorChanges),
		slog.Int("agents_updated", s.AgentsUpdated),
		slog.Int("agents_deferred", s.AgentsDeferred),
		slog.Int("update_failures", s.UpdateFailures),
		slog.Float64("energy_mean", s.EnergyMean),
		slog.Float64("energy_std", s.EnergyStd),
		slog.Float64("energy_p10", s.EnergyP10),
		slog.Float64("energy_p50", s.EnergyP50),
		slog.Float64("energy_p90", s.EnergyP90),
		slog.Float64("lifespan_mean", s.LifespanMean),
		slog.Any("max_generation", s.MaxGeneration),
	)
}

// LogStats logs a compact summary of the window.
func (s WindowStats) LogStats(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("stats",
		"window_end", s.WindowEnd,
		"population", s.Population,
		"food", s.FoodAvailable,
		"births", s.Births,
		"deaths", s.Deaths,
		"matings_completed", s.MatingsCompleted,
		"matings_cancelled", s.MatingsCancelled,
		"active_matings", s.ActiveMatings,
		"energy_mean", s.EnergyMean,
		"agents_updated", s.AgentsUpdated,
		"agents_deferred", s.AgentsDeferred,
	)
}
