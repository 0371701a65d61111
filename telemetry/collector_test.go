package telemetry

import (
	"math"
	"testing"

	"github.com/pthm-cable/swarm/components"
	"github.com/pthm-cable/swarm/systems"
)

func TestCollectorWindow(t *testing.T) {
	c := NewCollector(10)

	if c.ShouldFlush(9.99) {
		t.Error("flush requested before the window elapsed")
	}
	if !c.ShouldFlush(10) {
		t.Error("flush not requested at window end")
	}

	c.RecordBirth()
	c.RecordBirth()
	c.RecordDroppedOffspring()
	c.RecordDeath(CauseStarvation, 20)
	c.RecordDeath(CauseOldAge, 40)
	c.RecordForage()
	c.RecordMatingEvent(systems.MatingEvent{Kind: systems.EventStarted})
	c.RecordMatingEvent(systems.MatingEvent{Kind: systems.EventCompleted, FastPath: true})
	c.RecordMatingEvent(systems.MatingEvent{Kind: systems.EventCancelled})
	c.RecordMatingRejection()
	c.RecordBehaviorChange()
	c.RecordSchedulerStep(systems.StepResult{Processed: 5, Deferred: 3, Failures: 1})
	c.RecordSchedulerStep(systems.StepResult{Processed: 2})

	counts := make([]int, components.BehaviorTagCount())
	counts[components.TagWander] = 3
	counts[components.TagMate] = 2
	stats := c.Flush(10, PopulationSample{
		Frame:         600,
		Population:    5,
		Food:          7,
		ActiveMatings: 1,
		TagCounts:     counts,
		Energies:      []float64{0.2, 0.4, 0.6},
		MaxGeneration: 2,
	})

	checks := []struct {
		name      string
		got, want int
	}{
		{"births", stats.Births, 2},
		{"dropped", stats.DroppedOffspring, 1},
		{"deaths", stats.Deaths, 2},
		{"starvations", stats.Starvations, 1},
		{"old age", stats.OldAgeDeaths, 1},
		{"food eaten", stats.FoodEaten, 1},
		{"matings started", stats.MatingsStarted, 1},
		{"matings completed", stats.MatingsCompleted, 1},
		{"matings cancelled", stats.MatingsCancelled, 1},
		{"fast path", stats.FastPathMatings, 1},
		{"rejections", stats.MatingRejections, 1},
		{"behavior changes", stats.BehaviorChanges, 1},
		{"agents updated", stats.AgentsUpdated, 7},
		{"agents deferred", stats.AgentsDeferred, 3},
		{"update failures", stats.UpdateFailures, 1},
		{"wander", stats.Wander, 3},
		{"mate", stats.Mate, 2},
		{"forage", stats.Forage, 0},
		{"population", stats.Population, 5},
	}
	for _, tt := range checks {
		if tt.got != tt.want {
			t.Errorf("%s = %d, want %d", tt.name, tt.got, tt.want)
		}
	}
	if math.Abs(stats.LifespanMean-30) > 1e-9 {
		t.Errorf("lifespan mean = %v, want 30", stats.LifespanMean)
	}
	if math.Abs(stats.EnergyMean-0.4) > 1e-9 {
		t.Errorf("energy mean = %v, want 0.4", stats.EnergyMean)
	}

	// Counters reset and the next window starts at the flush time.
	if c.ShouldFlush(15) {
		t.Error("new window flushed too early")
	}
	next := c.Flush(20, PopulationSample{})
	if next.Births != 0 || next.Deaths != 0 || next.WindowStart != 10 {
		t.Errorf("counters not reset: %+v", next)
	}
}

func TestLifetimeTracker(t *testing.T) {
	lt := NewLifetimeTracker()
	lt.Register(1, 5, 0)
	lt.Register(2, 6, 3)

	lt.RecordForage(1)
	lt.RecordMatingStarted(1)
	lt.RecordMatingEnded(1, true, 2)
	lt.RecordMatingEnded(1, false, 0)
	lt.RecordForage(99) // unknown ids are ignored

	if got := lt.MaxGeneration(); got != 3 {
		t.Errorf("MaxGeneration = %d, want 3", got)
	}

	s := lt.Remove(1)
	if s == nil {
		t.Fatal("Remove returned nil for a tracked agent")
	}
	if s.FoodEaten != 1 || s.MatingsStarted != 1 || s.MatingsCompleted != 1 || s.MatingsCancelled != 1 || s.Offspring != 2 {
		t.Errorf("stats = %+v", *s)
	}
	if got := s.Lifespan(25); got != 20 {
		t.Errorf("Lifespan = %v, want 20", got)
	}
	if lt.Count() != 1 || lt.Get(1) != nil {
		t.Error("agent still tracked after Remove")
	}
}

func TestMatingRecord(t *testing.T) {
	r := NewMatingRecord(systems.MatingEvent{
		Kind:      systems.EventCompleted,
		Process:   7,
		Initiator: 3,
		Partner:   9,
		Offspring: 2,
	})
	if r.Event != "completed" || r.Process != 7 || r.Initiator != 3 || r.Partner != 9 || r.Offspring != 2 {
		t.Errorf("record = %+v", r)
	}
	if !r.Finished() {
		t.Error("completed record not finished")
	}
	if NewMatingRecord(systems.MatingEvent{Kind: systems.EventStarted}).Finished() {
		t.Error("started record reported finished")
	}
}
