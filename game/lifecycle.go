package game

import (
	"math"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/swarm/components"
	"github.com/pthm-cable/swarm/systems"
	"github.com/pthm-cable/swarm/telemetry"
)

// spawnInitialPopulation creates the starting agents at random positions
// with staggered ages so that maturity and scheduling are desynchronized.
func (g *Game) spawnInitialPopulation() {
	cfg := g.cfg
	maxInterval := cfg.Scheduler.MaxInterval
	for i := 0; i < cfg.Population.Initial; i++ {
		pos := components.Position{
			X: g.rng.Float32() * cfg.Derived.WorldW32,
			Y: g.rng.Float32() * cfg.Derived.WorldH32,
		}
		age := g.rng.Float32() * float32(cfg.Reproduction.MaturityAge) * 2
		e := g.spawnAgent(pos, age, float32(cfg.Energy.InitialPercent), 0, 0, 0)

		// Spread first evaluations over one max interval.
		g.scheduleMap.Get(e).LastUpdate = -g.rng.Float64() * maxInterval
	}
}

// spawnAgent creates a new agent, registers it with the spatial index and
// the scheduler and builds its collaborator bundle.
func (g *Game) spawnAgent(pos components.Position, age, energyPercent float32, generation uint32, parentA, parentB components.EntityID) ecs.Entity {
	cfg := g.cfg
	id := g.ids.Next()

	maxEnergy := float32(cfg.Energy.MaxEnergy)
	org := components.Organism{ID: id, Generation: generation, ParentA: parentA, ParentB: parentB}
	rot := components.Rotation{Heading: g.rng.Float32()*2*math.Pi - math.Pi}
	vit := components.Vitals{
		Energy:    energyPercent * maxEnergy,
		MaxEnergy: maxEnergy,
		Age:       age,
		MaxAge:    float32(cfg.Reproduction.MaxAge),
		Alive:     true,
	}
	repro := components.Reproduction{
		MaturityAge: float32(cfg.Reproduction.MaturityAge),
		Enabled:     true,
	}
	beh := components.Behavior{Tag: components.TagWander}
	sched := components.Schedule{LastUpdate: g.realNow, LastSimUpdate: g.simNow}

	entity := g.agentMapper.NewEntity(&org, &pos, &rot, &vit, &repro, &beh, &sched)
	g.byID[id] = entity
	g.caps[id] = g.capabilitiesFor(id)
	g.grid.Register(id, pos, systems.KindAgent)
	g.scheduler.Add(id)
	g.lifetimes.Register(id, g.simNow, generation)
	g.aliveCount++
	return entity
}

// cleanupDead removes dead agents. Each is unregistered from the spatial
// index and released from the coordinator in the same step.
func (g *Game) cleanupDead() int {
	// First pass: collect dead agents (must complete before modifying)
	type deadInfo struct {
		entity ecs.Entity
		id     components.EntityID
	}
	var toRemove []deadInfo

	query := g.agentFilter.Query()
	for query.Next() {
		org, _, _, vit, _, _, _ := query.Get()
		if !vit.Alive {
			toRemove = append(toRemove, deadInfo{entity: query.Entity(), id: org.ID})
		}
	}

	// Second pass: remove entities (query iteration complete)
	for _, dead := range toRemove {
		cause, ok := g.deathCauses[dead.id]
		if !ok {
			cause = telemetry.CauseStarvation
		}
		delete(g.deathCauses, dead.id)

		lifespan := -1.0
		if stats := g.lifetimes.Remove(dead.id); stats != nil {
			lifespan = stats.Lifespan(g.simNow)
		}
		g.collector.RecordDeath(cause, lifespan)

		g.grid.Unregister(dead.id)
		g.coordinator.Release(dead.id)
		delete(g.byID, dead.id)
		delete(g.caps, dead.id)
		g.world.RemoveEntity(dead.entity)

		g.aliveCount--
		g.totalDeaths++
	}
	return len(toRemove)
}
