package telemetry

import (
	"testing"
	"time"
)

func TestPerfCollector_BasicTiming(t *testing.T) {
	pc := NewPerfCollector(10)

	for i := 0; i < 5; i++ {
		pc.StartTick()
		pc.StartPhase(PhaseSpatial)
		time.Sleep(100 * time.Microsecond)
		pc.StartPhase(PhaseScheduler)
		time.Sleep(200 * time.Microsecond)
		pc.EndTick()
	}

	stats := pc.Stats()
	if stats.AvgTickDuration <= 0 {
		t.Error("expected positive average tick duration")
	}
	if _, ok := stats.PhaseAvg[PhaseSpatial]; !ok {
		t.Error("expected spatial phase to be tracked")
	}
	if _, ok := stats.PhaseAvg[PhaseScheduler]; !ok {
		t.Error("expected scheduler phase to be tracked")
	}
	if stats.P95TickDuration < stats.MinTickDuration || stats.P95TickDuration > stats.MaxTickDuration {
		t.Errorf("p95 %v outside [%v, %v]", stats.P95TickDuration, stats.MinTickDuration, stats.MaxTickDuration)
	}
}

func TestPerfCollector_RollingWindow(t *testing.T) {
	pc := NewPerfCollector(5)

	for i := 0; i < 10; i++ {
		pc.StartTick()
		pc.StartPhase(PhaseSpatial)
		pc.EndTick()
	}

	stats := pc.Stats()
	if stats.AvgTickDuration <= 0 {
		t.Error("expected positive average tick duration after window filled")
	}
	if stats.TicksPerSecond <= 0 {
		t.Error("expected positive ticks per second")
	}
}

func TestPerfCollector_PhasePercentages(t *testing.T) {
	pc := NewPerfCollector(10)

	for i := 0; i < 5; i++ {
		pc.StartTick()
		pc.StartPhase(PhaseFood)
		time.Sleep(10 * time.Microsecond)
		pc.StartPhase(PhaseDecisions)
		time.Sleep(500 * time.Microsecond)
		pc.EndTick()
	}

	stats := pc.Stats()
	if stats.PhasePct[PhaseDecisions] <= stats.PhasePct[PhaseFood] {
		t.Errorf("expected decisions (%v%%) > food (%v%%)", stats.PhasePct[PhaseDecisions], stats.PhasePct[PhaseFood])
	}
	row := stats.ToCSV(42, 1.5)
	if row.Frame != 42 || row.DecisionsPct != stats.PhasePct[PhaseDecisions] {
		t.Errorf("ToCSV = %+v", row)
	}
}

func TestPerfCollector_EmptyStats(t *testing.T) {
	pc := NewPerfCollector(10)

	stats := pc.Stats()
	if stats.AvgTickDuration != 0 {
		t.Error("expected zero avg tick duration for empty collector")
	}
	if stats.PhaseAvg == nil || stats.PhasePct == nil {
		t.Error("expected non-nil phase maps")
	}
}

func TestPerfCollector_FrameTiming(t *testing.T) {
	pc := NewPerfCollector(10)

	pc.RecordFrame()
	time.Sleep(16 * time.Millisecond)
	pc.RecordFrame()

	stats := pc.Stats()
	if stats.FrameDuration < 15*time.Millisecond {
		t.Errorf("expected frame duration >= 15ms, got %v", stats.FrameDuration)
	}
	if stats.FPS <= 0 || stats.FPS > 70 {
		t.Errorf("expected FPS in (0, 70] with 16ms frames, got %v", stats.FPS)
	}
}

func TestPerfCollector_SetFrameDuration(t *testing.T) {
	pc := NewPerfCollector(10)
	if pc.FPS() != 0 {
		t.Errorf("FPS before any frame = %v, want 0", pc.FPS())
	}
	pc.SetFrameDuration(20 * time.Millisecond)
	if got := pc.FPS(); got < 49.9 || got > 50.1 {
		t.Errorf("FPS = %v, want 50", got)
	}
}

func TestPhasesMatchConstants(t *testing.T) {
	want := []string{
		PhaseSpatial, PhaseScheduler, PhaseDecisions, PhaseMating,
		PhaseDispatch, PhaseFood, PhaseCleanup, PhaseTelemetry,
	}
	if len(Phases) != len(want) {
		t.Fatalf("got %d phases, want %d", len(Phases), len(want))
	}
	for i, id := range want {
		if Phases[i] != id {
			t.Errorf("phase %d = %q, want %q", i, Phases[i], id)
		}
	}
}
