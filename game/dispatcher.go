package game

import (
	"github.com/pthm-cable/swarm/components"
	"github.com/pthm-cable/swarm/systems"
)

// applyCommands drains the command queue and applies every command on the
// tick thread, in dispatch order.
func (g *Game) applyCommands() int {
	g.cmdBuf = g.commands.Drain(g.cmdBuf)
	for _, cmd := range g.cmdBuf {
		switch c := cmd.(type) {
		case systems.CreateOffspring:
			g.spawnOffspring(c)
		case systems.EndMating:
			g.endMating(c)
		default:
			g.logger.Warn("unknown_command", "command", cmd.String())
		}
	}
	n := len(g.cmdBuf)
	clear(g.cmdBuf)
	return n
}

// spawnOffspring creates a child at the requested position. Children are
// dropped once the population cap is reached.
func (g *Game) spawnOffspring(c systems.CreateOffspring) {
	if g.cfg.Population.Max > 0 && g.aliveCount >= g.cfg.Population.Max {
		g.collector.RecordDroppedOffspring()
		g.logger.Debug("offspring_dropped", "process", c.ProcessID, "population", g.aliveCount)
		return
	}

	pos := c.Position
	pos.X = min(max(pos.X, 0), g.cfg.Derived.WorldW32)
	pos.Y = min(max(pos.Y, 0), g.cfg.Derived.WorldH32)

	generation := max(g.generationOf(c.ParentA), g.generationOf(c.ParentB)) + 1
	g.spawnAgent(pos, 0, float32(g.cfg.Reproduction.OffspringEnergyPercent), generation, c.ParentA, c.ParentB)
	g.collector.RecordBirth()
	g.totalBirths++
}

func (g *Game) generationOf(id components.EntityID) uint32 {
	if e, ok := g.entityOf(id); ok {
		return g.orgMap.Get(e).Generation
	}
	if s := g.lifetimes.Get(id); s != nil {
		return s.Generation
	}
	return 0
}

// endMating returns a participant to normal behavior. A completed process
// starts the reproduction cooldown.
func (g *Game) endMating(c systems.EndMating) {
	e, ok := g.entityOf(c.Agent)
	if !ok {
		return
	}
	b := g.behaviorMap.Get(e)
	if !b.Mating {
		return
	}
	b.Mating = false
	b.Partner = 0
	b.HasTarget = false
	if b.Tag == components.TagMate {
		b.Tag = components.TagWander
		b.Changes++
		g.collector.RecordBehaviorChange()
	}
	if c.Outcome == systems.OutcomeCompleted {
		g.reproMap.Get(e).CooldownUntil = g.simNow + g.cfg.Reproduction.Cooldown
	}
}
