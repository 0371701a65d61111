package game

import (
	"github.com/pthm-cable/swarm/components"
	"github.com/pthm-cable/swarm/systems"
	"github.com/pthm-cable/swarm/telemetry"
)

// drainMatingEvents folds coordinator events into the window counters and
// per-agent lifetimes, and buffers them for matings.csv and the ledger.
func (g *Game) drainMatingEvents() {
	g.eventBuf = g.coordinator.DrainEvents(g.eventBuf[:0])
	keep := g.output != nil || g.ledger != nil
	for _, ev := range g.eventBuf {
		g.collector.RecordMatingEvent(ev)
		switch ev.Kind {
		case systems.EventStarted:
			g.lifetimes.RecordMatingStarted(ev.Initiator)
			g.lifetimes.RecordMatingStarted(ev.Partner)
		case systems.EventCompleted, systems.EventCancelled:
			completed := ev.Kind == systems.EventCompleted
			g.lifetimes.RecordMatingEnded(ev.Initiator, completed, ev.Offspring)
			g.lifetimes.RecordMatingEnded(ev.Partner, completed, ev.Offspring)
			if !completed {
				g.logger.Debug("mating_cancelled",
					"process", ev.Process,
					"initiator", ev.Initiator,
					"partner", ev.Partner,
					"reason", ev.Reason,
				)
			}
		}
		if keep {
			g.matingRecords = append(g.matingRecords, telemetry.NewMatingRecord(ev))
		}
	}
}

// flushMatingRecords writes buffered mating records.
func (g *Game) flushMatingRecords() {
	if g.coordinator != nil {
		g.drainMatingEvents()
	}
	if len(g.matingRecords) == 0 {
		return
	}
	if err := g.output.WriteMatings(g.matingRecords); err != nil {
		g.logger.Error("failed to write matings", "error", err)
	}
	if g.ledger != nil {
		if err := g.ledger.RecordMatings(g.matingRecords); err != nil {
			g.logger.Error("failed to record matings", "error", err)
		}
	}
	clear(g.matingRecords)
	g.matingRecords = g.matingRecords[:0]
}

// flushTelemetry checks if the stats window should be flushed and handles bookmarks.
func (g *Game) flushTelemetry() {
	if !g.collector.ShouldFlush(g.simNow) {
		return
	}

	stats := g.collector.Flush(g.simNow, g.samplePopulation())
	perfStats := g.perf.Stats()

	if g.statsCallback != nil {
		g.statsCallback(stats)
	}

	if g.logStats {
		stats.LogStats(g.logger)
		perfStats.LogStats(g.logger)
		g.LogWorldState()
	}

	if err := g.output.WriteTelemetry(stats); err != nil {
		g.logger.Error("failed to write telemetry", "error", err)
	}
	if err := g.output.WritePerf(perfStats, g.frame, g.simNow); err != nil {
		g.logger.Error("failed to write perf", "error", err)
	}
	if g.ledger != nil {
		if err := g.ledger.RecordWindow(stats); err != nil {
			g.logger.Error("failed to record window", "error", err)
		}
	}
	g.flushMatingRecords()

	for _, bm := range g.bookmarks.Check(stats) {
		if g.logStats {
			bm.LogBookmark(g.logger)
		}
		if err := g.output.WriteBookmark(bm); err != nil {
			g.logger.Error("failed to write bookmark", "error", err)
		}
	}
}

// samplePopulation collects tag counts and energy levels of living agents.
func (g *Game) samplePopulation() telemetry.PopulationSample {
	sample := telemetry.PopulationSample{
		Frame:          g.frame,
		TimeMultiplier: g.timeMultiplier,
		Food:           g.food.Count(),
		ActiveMatings:  g.coordinator.ActiveCount(),
		TagCounts:      make([]int, components.BehaviorTagCount()),
		Energies:       make([]float64, 0, g.aliveCount),
		MaxGeneration:  g.lifetimes.MaxGeneration(),
	}

	query := g.agentFilter.Query()
	for query.Next() {
		_, _, _, vit, _, beh, _ := query.Get()
		if !vit.Alive {
			continue
		}
		sample.Population++
		sample.TagCounts[beh.Tag]++
		sample.Energies = append(sample.Energies, float64(vit.EnergyPercent()))
	}
	return sample
}
