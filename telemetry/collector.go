package telemetry

import (
	"github.com/pthm-cable/swarm/components"
	"github.com/pthm-cable/swarm/systems"
)

// Death causes reported by the behavior machine.
const (
	CauseStarvation = "starvation"
	CauseOldAge     = "old_age"
)

// Collector accumulates events within windows of simulated time and
// produces WindowStats.
type Collector struct {
	windowDuration float64
	windowStart    float64

	births           int
	dropped          int
	deaths           int
	starvations      int
	oldAge           int
	foodEaten        int
	matingsStarted   int
	matingsCompleted int
	matingsCancelled int
	fastPath         int
	rejections       int
	behaviorChanges  int
	agentsUpdated    int
	agentsDeferred   int
	updateFailures   int

	lifespanSum   float64
	lifespanCount int
}

// NewCollector creates a collector whose windows last windowSec simulated seconds.
func NewCollector(windowSec float64) *Collector {
	if windowSec <= 0 {
		windowSec = 10
	}
	return &Collector{windowDuration: windowSec}
}

// RecordBirth records an offspring spawned by the dispatcher.
func (c *Collector) RecordBirth() {
	c.births++
}

// RecordDroppedOffspring records an offspring refused by the population cap.
func (c *Collector) RecordDroppedOffspring() {
	c.dropped++
}

// RecordDeath records a death with its cause and lifespan in simulated seconds.
func (c *Collector) RecordDeath(cause string, lifespan float64) {
	c.deaths++
	switch cause {
	case CauseStarvation:
		c.starvations++
	case CauseOldAge:
		c.oldAge++
	}
	if lifespan >= 0 {
		c.lifespanSum += lifespan
		c.lifespanCount++
	}
}

// RecordForage records one food item eaten.
func (c *Collector) RecordForage() {
	c.foodEaten++
}

// RecordMatingEvent counts a coordinator event.
func (c *Collector) RecordMatingEvent(ev systems.MatingEvent) {
	switch ev.Kind {
	case systems.EventStarted:
		c.matingsStarted++
	case systems.EventCompleted:
		c.matingsCompleted++
		if ev.FastPath {
			c.fastPath++
		}
	case systems.EventCancelled:
		c.matingsCancelled++
	}
}

// RecordMatingRejection records a RegisterMating call the coordinator refused.
func (c *Collector) RecordMatingRejection() {
	c.rejections++
}

// RecordBehaviorChange records one tag transition.
func (c *Collector) RecordBehaviorChange() {
	c.behaviorChanges++
}

// RecordSchedulerStep folds one scheduler frame into the window.
func (c *Collector) RecordSchedulerStep(res systems.StepResult) {
	c.agentsUpdated += res.Processed
	c.agentsDeferred += res.Deferred
	c.updateFailures += res.Failures
}

// ShouldFlush returns true once the current window has elapsed.
func (c *Collector) ShouldFlush(simNow float64) bool {
	return simNow-c.windowStart >= c.windowDuration
}

// PopulationSample is the state of the world at window end.
type PopulationSample struct {
	Frame          int64
	TimeMultiplier float64
	Population     int
	Food           int
	ActiveMatings  int
	TagCounts      []int // indexed by components.BehaviorTag
	Energies       []float64
	MaxGeneration  uint32
}

// Flush produces a WindowStats and resets counters for the next window.
func (c *Collector) Flush(simNow float64, sample PopulationSample) WindowStats {
	energy := ComputeEnergyStats(sample.Energies)

	var lifespan float64
	if c.lifespanCount > 0 {
		lifespan = c.lifespanSum / float64(c.lifespanCount)
	}

	stats := WindowStats{
		WindowStart:    c.windowStart,
		WindowEnd:      simNow,
		Frame:          sample.Frame,
		TimeMultiplier: sample.TimeMultiplier,

		Population:    sample.Population,
		FoodAvailable: sample.Food,
		ActiveMatings: sample.ActiveMatings,
		Wander:        tagCount(sample.TagCounts, components.TagWander),
		Forage:        tagCount(sample.TagCounts, components.TagForage),
		SeekMate:      tagCount(sample.TagCounts, components.TagSeekMate),
		Mate:          tagCount(sample.TagCounts, components.TagMate),

		Births:           c.births,
		DroppedOffspring: c.dropped,
		Deaths:           c.deaths,
		Starvations:      c.starvations,
		OldAgeDeaths:     c.oldAge,
		FoodEaten:        c.foodEaten,
		MatingsStarted:   c.matingsStarted,
		MatingsCompleted: c.matingsCompleted,
		MatingsCancelled: c.matingsCancelled,
		FastPathMatings:  c.fastPath,
		MatingRejections: c.rejections,
		BehaviorChanges:  c.behaviorChanges,

		AgentsUpdated:  c.agentsUpdated,
		AgentsDeferred: c.agentsDeferred,
		UpdateFailures: c.updateFailures,

		EnergyMean: energy.Mean,
		EnergyStd:  energy.Std,
		EnergyP10:  energy.P10,
		EnergyP50:  energy.P50,
		EnergyP90:  energy.P90,

		LifespanMean:  lifespan,
		MaxGeneration: sample.MaxGeneration,
	}

	*c = Collector{windowDuration: c.windowDuration, windowStart: simNow}
	return stats
}

func tagCount(counts []int, tag components.BehaviorTag) int {
	if int(tag) < len(counts) {
		return counts[tag]
	}
	return 0
}
