package game

import (
	"context"
	"time"

	"github.com/pthm-cable/swarm/components"
	"github.com/pthm-cable/swarm/systems"
	"github.com/pthm-cable/swarm/telemetry"
)

// FrameResult summarizes one call to Step.
type FrameResult struct {
	Frame      int64
	SimSeconds float64 // simulated seconds covered by the frame
	Scheduler  systems.StepResult
	Decisions  int // decisions applied from the worker queue
	Offloaded  int // agents handed to workers or decided inline
	Mating     systems.AdvanceResult
	Commands   int
	Regrown    int
	Removed    int
}

// Step advances the simulation by one frame covering realDt real seconds.
// All world mutation happens here, on the caller's goroutine.
func (g *Game) Step(realDt float64) FrameResult {
	if realDt <= 0 {
		realDt = g.cfg.Derived.FrameSeconds
	}

	g.perf.StartTick()
	if g.realtime {
		g.perf.RecordFrame()
	} else {
		g.perf.SetFrameDuration(time.Duration(realDt * float64(time.Second)))
	}

	g.frame++
	frameSim := realDt * g.timeMultiplier
	g.realNow += realDt
	g.simNow += frameSim

	res := FrameResult{Frame: g.frame, SimSeconds: frameSim}

	// Results computed by workers during the previous frame.
	g.perf.StartPhase(telemetry.PhaseDecisions)
	res.Decisions = g.applyQueuedDecisions()

	g.perf.StartPhase(telemetry.PhaseScheduler)
	offload := g.parallelEnabled
	g.lastStep = g.scheduler.Step(g.realNow, g.timeMultiplier, g.perf.FPS(), frameSim, tickTarget{g: g, offload: offload})
	g.collector.RecordSchedulerStep(g.lastStep)
	res.Scheduler = g.lastStep

	if offload {
		g.perf.StartPhase(telemetry.PhaseDecisions)
		res.Offloaded = g.offloadDecisions()
	}

	g.perf.StartPhase(telemetry.PhaseMating)
	res.Mating = g.coordinator.Advance(frameSim, g.simNow, g.timeMultiplier)
	g.drainMatingEvents()

	g.perf.StartPhase(telemetry.PhaseDispatch)
	res.Commands = g.applyCommands()

	g.perf.StartPhase(telemetry.PhaseFood)
	res.Regrown = g.food.Advance(g.simNow)

	g.perf.StartPhase(telemetry.PhaseCleanup)
	res.Removed = g.cleanupDead()
	// Releases during cleanup cancel processes; settle surviving partners now.
	g.drainMatingEvents()
	res.Commands += g.applyCommands()

	g.perf.StartPhase(telemetry.PhaseTelemetry)
	g.flushTelemetry()

	g.perf.EndTick()
	return res
}

// Run steps the simulation until ctx is cancelled or maxFrames frames have
// run (maxFrames <= 0 means no limit). In realtime mode frames are paced by
// a ticker at realDt; otherwise they run back to back.
func (g *Game) Run(ctx context.Context, maxFrames int64, realDt float64) error {
	if realDt <= 0 {
		realDt = g.cfg.Derived.FrameSeconds
	}

	var tick <-chan time.Time
	if g.realtime {
		ticker := time.NewTicker(time.Duration(realDt * float64(time.Second)))
		defer ticker.Stop()
		tick = ticker.C
	}

	for maxFrames <= 0 || g.frame < maxFrames {
		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		g.Step(realDt)
		if g.aliveCount == 0 {
			g.logger.Info("population_extinct", "frame", g.frame, "sim_time", g.simNow)
			return nil
		}
	}
	return nil
}

// Agent returns a readout of one living agent.
func (g *Game) Agent(id components.EntityID) (components.Readout, bool) {
	e, ok := g.entityOf(id)
	if !ok {
		return components.Readout{}, false
	}
	return components.NewReadout(g.orgMap.Get(e), g.posMap.Get(e), g.vitalsMap.Get(e), g.behaviorMap.Get(e)), true
}

// Agents returns readouts of every agent in the world, appended to dst.
func (g *Game) Agents(dst []components.Readout) []components.Readout {
	query := g.agentFilter.Query()
	for query.Next() {
		org, pos, _, vit, _, beh, _ := query.Get()
		dst = append(dst, components.NewReadout(org, pos, vit, beh))
	}
	return dst
}
