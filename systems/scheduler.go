package systems

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/pthm-cable/swarm/config"
)

// minTimeMultiplier is used in place of non-positive multipliers.
const minTimeMultiplier = 0.01

// dueEpsilon absorbs float drift when frame time equals the interval.
const dueEpsilon = 1e-9

// SchedulerTarget is what the scheduler drives.
type SchedulerTarget interface {
	Alive(id EntityID) bool
	LastUpdate(id EntityID) (float64, bool)
	UpdateAgent(id EntityID, now float64) error
}

// FPSPolicy maps measured frame rate to a budget scale factor. Below the
// target it shrinks steeply; above it grows linearly up to MaxScale.
type FPSPolicy struct {
	TargetFPS      float64
	MinScale       float64
	MaxScale       float64
	ShrinkExponent float64
	GrowRate       float64
}

// Adjustment returns the scale factor for a measured fps.
func (p FPSPolicy) Adjustment(fps float64) float64 {
	if fps <= 0 || p.TargetFPS <= 0 {
		return 1
	}
	ratio := fps / p.TargetFPS
	if ratio < 1 {
		return math.Max(p.MinScale, math.Pow(ratio, p.ShrinkExponent))
	}
	return math.Min(p.MaxScale, 1+(ratio-1)*p.GrowRate)
}

// StepResult summarizes one scheduler frame.
type StepResult struct {
	Budget    int
	Examined  int
	Processed int
	Failures  int
	Deferred  int // roster entries left unexamined because the budget ran out
	Pruned    int
}

// Scheduler walks a round-robin roster of agents, updating up to a
// per-frame budget of those whose interval has elapsed.
type Scheduler struct {
	cfg    config.SchedulerConfig
	fps    FPSPolicy
	logger *slog.Logger

	roster  []EntityID
	members map[EntityID]struct{}
	cursor  int

	totalProcessed uint64
	totalFailures  uint64
	totalDeferred  uint64
}

// NewScheduler creates a scheduler. A nil logger uses slog.Default().
func NewScheduler(cfg config.SchedulerConfig, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg: cfg,
		fps: FPSPolicy{
			TargetFPS:      cfg.TargetFPS,
			MinScale:       cfg.FPSPolicy.MinScale,
			MaxScale:       cfg.FPSPolicy.MaxScale,
			ShrinkExponent: cfg.FPSPolicy.ShrinkExponent,
			GrowRate:       cfg.FPSPolicy.GrowRate,
		},
		logger:  logger,
		members: make(map[EntityID]struct{}),
	}
}

// RequiredInterval returns the real seconds that must pass between two
// updates of one agent at time multiplier tm.
func (s *Scheduler) RequiredInterval(tm float64) float64 {
	if tm <= 0 {
		tm = minTimeMultiplier
	}
	return clamp64(s.cfg.BaseCadence/tm, s.cfg.MinInterval, s.cfg.MaxInterval)
}

// FrameBudget returns how many agents may be updated this frame.
// frameSimSeconds is the simulated time covered by the frame; the budget
// never drops below what a full pass every FullCycleSeconds needs.
func (s *Scheduler) FrameBudget(tm, fps float64, population int, frameSimSeconds float64) int {
	if population <= 0 {
		return 0
	}
	if tm <= 0 {
		tm = minTimeMultiplier
	}
	raw := s.cfg.BaseAgentsPerFrame * math.Sqrt(tm) * s.fps.Adjustment(fps)
	budget := int(clamp64(raw, 1, float64(s.cfg.MaxAgentsPerFrame)))

	if s.cfg.FullCycleSeconds > 0 && frameSimSeconds > 0 {
		floor := int(math.Ceil(float64(population) * frameSimSeconds / s.cfg.FullCycleSeconds))
		budget = max(budget, floor)
	}
	return min(budget, population)
}

// Add puts an agent on the roster. Duplicates are ignored.
func (s *Scheduler) Add(id EntityID) {
	if _, ok := s.members[id]; ok {
		return
	}
	s.members[id] = struct{}{}
	s.roster = append(s.roster, id)
}

// Len returns the roster size, including dead agents not yet pruned.
func (s *Scheduler) Len() int {
	return len(s.roster)
}

// Step runs one frame: at most one lap of the roster, updating due agents
// until the budget is spent. Errors and panics from one agent are logged
// and counted; the rest of the batch still runs.
func (s *Scheduler) Step(now, tm, fps, frameSimSeconds float64, target SchedulerTarget) StepResult {
	var res StepResult
	lap := len(s.roster)
	if lap == 0 {
		return res
	}
	res.Budget = s.FrameBudget(tm, fps, lap, frameSimSeconds)
	interval := s.RequiredInterval(tm)
	start := min(s.cursor, lap)

	for res.Examined < lap && res.Processed < res.Budget {
		if s.cursor >= len(s.roster) {
			// Only the entries before start are left in this lap.
			removed, headKept := s.prune(target, start)
			res.Pruned += removed
			lap = res.Examined + headKept
			s.cursor = 0
			if len(s.roster) == 0 {
				break
			}
		}
		id := s.roster[s.cursor]
		s.cursor++
		res.Examined++

		if !target.Alive(id) {
			continue
		}
		last, ok := target.LastUpdate(id)
		if !ok || now-last+dueEpsilon < interval {
			continue
		}

		res.Processed++
		if err := s.safeUpdate(target, id, now); err != nil {
			res.Failures++
			s.logger.Warn("agent_update_failed", "agent_id", id, "error", err)
		}
	}

	if res.Processed >= res.Budget && res.Examined < lap {
		res.Deferred = lap - res.Examined
	}
	s.totalProcessed += uint64(res.Processed)
	s.totalFailures += uint64(res.Failures)
	s.totalDeferred += uint64(res.Deferred)
	return res
}

func (s *Scheduler) safeUpdate(target SchedulerTarget, id EntityID, now float64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("agent %d panicked: %v", id, r)
		}
	}()
	return target.UpdateAgent(id, now)
}

// prune drops dead agents from the roster. It returns the number removed
// and how many of the first head entries survived.
func (s *Scheduler) prune(target SchedulerTarget, head int) (removed, headKept int) {
	kept := s.roster[:0]
	for i, id := range s.roster {
		if target.Alive(id) {
			kept = append(kept, id)
			if i < head {
				headKept++
			}
			continue
		}
		delete(s.members, id)
	}
	removed = len(s.roster) - len(kept)
	clear(s.roster[len(kept):])
	s.roster = kept
	return removed, headKept
}

// Totals returns cumulative processed, failed and deferred counts.
func (s *Scheduler) Totals() (processed, failures, deferred uint64) {
	return s.totalProcessed, s.totalFailures, s.totalDeferred
}
