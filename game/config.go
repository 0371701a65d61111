package game

import (
	"log/slog"

	"github.com/pthm-cable/swarm/telemetry"
)

// Time multiplier range accepted by SetTimeMultiplier.
const (
	MinTimeMultiplier = 0.01
	MaxTimeMultiplier = 250.0
)

// Options holds configuration for game initialization that is not part of
// the simulation config file.
type Options struct {
	Seed int64

	// Parallel overrides scheduler.parallel_decisions when non-nil.
	Parallel *bool

	// Realtime measures frame rate from the wall clock. Otherwise the
	// nominal rate 1/realDt is used, which keeps headless runs reproducible.
	Realtime bool

	OutputDir  string // empty disables CSV output
	LedgerPath string // empty disables the SQLite ledger
	LogStats   bool

	Logger        *slog.Logger
	StatsCallback func(telemetry.WindowStats)
}

// DefaultOptions returns options for a quiet, reproducible headless run.
func DefaultOptions() Options {
	return Options{Seed: 42}
}
