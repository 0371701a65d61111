package game

import (
	"errors"
	"fmt"

	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/swarm/components"
	"github.com/pthm-cable/swarm/systems"
)

// entityOf returns the live entity for an agent id.
func (g *Game) entityOf(id components.EntityID) (ecs.Entity, bool) {
	e, ok := g.byID[id]
	if !ok || !g.world.Alive(e) {
		return ecs.Entity{}, false
	}
	return e, true
}

// agentState gathers pointers to an agent's components for one tick.
// Pointers are only valid until the next structural change to the world.
func (g *Game) agentState(id components.EntityID, e ecs.Entity) *systems.AgentState {
	return &systems.AgentState{
		ID:       id,
		Pos:      g.posMap.Get(e),
		Rot:      g.rotMap.Get(e),
		Vitals:   g.vitalsMap.Get(e),
		Repro:    g.reproMap.Get(e),
		Behavior: g.behaviorMap.Get(e),
		Caps:     g.caps[id],
	}
}

// mateEligible filters mate candidates for the live sensor.
func (g *Game) mateEligible(id components.EntityID) bool {
	e, ok := g.entityOf(id)
	if !ok {
		return false
	}
	vit := g.vitalsMap.Get(e)
	if !vit.Alive || vit.EnergyPercent() <= g.rules.MatingEnergyThreshold {
		return false
	}
	if g.behaviorMap.Get(e).Mating {
		return false
	}
	repro := g.reproMap.Get(e)
	return repro.Enabled && repro.IsMature(vit.Age) && repro.CooldownElapsed(g.simNow)
}

// agentEnergy implements systems.EnergyProvider over an agent's Vitals.
type agentEnergy struct {
	g  *Game
	id components.EntityID
}

func (a agentEnergy) vitals() *components.Vitals {
	e, ok := a.g.entityOf(a.id)
	if !ok {
		return nil
	}
	return a.g.vitalsMap.Get(e)
}

func (a agentEnergy) EnergyPercent() (float32, bool) {
	v := a.vitals()
	if v == nil || v.MaxEnergy <= 0 {
		return 0, false
	}
	return v.EnergyPercent(), true
}

func (a agentEnergy) IsHungry() bool {
	pct, ok := a.EnergyPercent()
	return ok && pct < a.g.rules.HungerThreshold
}

func (a agentEnergy) HasEnoughEnergyForMating() bool {
	pct, ok := a.EnergyPercent()
	return ok && pct > a.g.rules.MatingEnergyThreshold
}

func (a agentEnergy) ConsumeEnergy(amount float32) bool {
	v := a.vitals()
	if v == nil {
		return false
	}
	return consumeEnergy(v, amount)
}

// consumeEnergy subtracts a fraction of max energy, flooring at zero.
func consumeEnergy(v *components.Vitals, amount float32) bool {
	cost := amount * v.MaxEnergy
	if v.Energy >= cost {
		v.Energy -= cost
		return true
	}
	v.Energy = 0
	return false
}

// agentReproduction implements systems.ReproductionProvider.
type agentReproduction struct {
	g  *Game
	id components.EntityID
}

func (a agentReproduction) IsMature() (bool, bool) {
	e, ok := a.g.entityOf(a.id)
	if !ok {
		return false, false
	}
	return a.g.reproMap.Get(e).IsMature(a.g.vitalsMap.Get(e).Age), true
}

func (a agentReproduction) CanMate(simNow float64) bool {
	e, ok := a.g.entityOf(a.id)
	if !ok {
		return false
	}
	r := a.g.reproMap.Get(e)
	return r.Enabled && r.IsMature(a.g.vitalsMap.Get(e).Age) && r.CooldownElapsed(simNow)
}

// capabilitiesFor builds the collaborator bundle for a new agent.
func (g *Game) capabilitiesFor(id components.EntityID) systems.Capabilities {
	return systems.Capabilities{
		Energy:       agentEnergy{g: g, id: id},
		Reproduction: agentReproduction{g: g, id: id},
		Sensor:       g.sensor,
	}
}

// matingHost gives the coordinator access to agents. Its methods run with
// the coordinator's lock held and never call back into it.
type matingHost struct{ g *Game }

func (h matingHost) MateCandidate(id components.EntityID, simNow float64) (systems.Candidate, bool) {
	e, ok := h.g.entityOf(id)
	if !ok {
		return systems.Candidate{}, false
	}
	vit := h.g.vitalsMap.Get(e)
	repro := h.g.reproMap.Get(e)
	return systems.Candidate{
		ID:              id,
		Pos:             *h.g.posMap.Get(e),
		Alive:           vit.Alive,
		Energy:          vit.EnergyPercent(),
		Mature:          repro.IsMature(vit.Age),
		CooldownElapsed: repro.CooldownElapsed(simNow),
		CanReproduce:    repro.Enabled,
	}, true
}

func (h matingHost) NotifyMating(id, partner components.EntityID, process systems.ProcessID, role systems.Role) error {
	e, ok := h.g.entityOf(id)
	if !ok {
		return fmt.Errorf("notify %s of process %d: %w", role, process, systems.ErrAgentGone)
	}
	b := h.g.behaviorMap.Get(e)
	b.Mating = true
	b.Partner = partner
	b.HasTarget = false
	if b.Tag != components.TagMate {
		b.Tag = components.TagMate
		b.Changes++
		h.g.collector.RecordBehaviorChange()
	}
	return nil
}

func (h matingHost) ConsumeEnergy(id components.EntityID, amount float32) bool {
	e, ok := h.g.entityOf(id)
	if !ok {
		return false
	}
	return consumeEnergy(h.g.vitalsMap.Get(e), amount)
}

// peerLookup reads other agents' behavior tags for the state machine.
type peerLookup struct{ g *Game }

func (p peerLookup) BehaviorOf(id components.EntityID) (components.BehaviorTag, bool) {
	e, ok := p.g.entityOf(id)
	if !ok {
		return 0, false
	}
	return p.g.behaviorMap.Get(e).Tag, true
}

// tickTarget drives agent updates for the scheduler. When offload is set,
// only the state effect runs on the tick thread and the agent is queued
// for a worker decision.
type tickTarget struct {
	g       *Game
	offload bool
}

func (t tickTarget) Alive(id components.EntityID) bool {
	e, ok := t.g.entityOf(id)
	return ok && t.g.vitalsMap.Get(e).Alive
}

func (t tickTarget) LastUpdate(id components.EntityID) (float64, bool) {
	e, ok := t.g.entityOf(id)
	if !ok {
		return 0, false
	}
	return t.g.scheduleMap.Get(e).LastUpdate, true
}

func (t tickTarget) UpdateAgent(id components.EntityID, now float64) error {
	g := t.g
	e, ok := g.entityOf(id)
	if !ok {
		return fmt.Errorf("update agent %d: %w", id, systems.ErrAgentGone)
	}

	sched := g.scheduleMap.Get(e)
	elapsed := g.simNow - sched.LastSimUpdate
	sched.LastUpdate = now
	sched.LastSimUpdate = g.simNow

	a := g.agentState(id, e)
	var res systems.TickResult
	if t.offload {
		res = g.machine.Effect(a, elapsed, g.simNow, g.timeMultiplier)
		if !res.Died {
			g.pending = append(g.pending, systems.ViewOf(id, *a.Pos, a.Behavior.Tag, a.Caps, g.simNow))
		}
	} else {
		res = g.machine.Tick(a, elapsed, g.simNow, g.timeMultiplier)
	}
	g.recordTick(id, res)
	return nil
}

// recordTick folds one agent tick into telemetry.
func (g *Game) recordTick(id components.EntityID, res systems.TickResult) {
	if res.Died {
		g.deathCauses[id] = res.DeathCause
		return
	}
	if res.Ate {
		g.collector.RecordForage()
		g.lifetimes.RecordForage(id)
	}
	if res.Changed {
		g.collector.RecordBehaviorChange()
	}
	if res.MatingErr != nil && !errors.Is(res.MatingErr, systems.ErrAgentGone) {
		g.collector.RecordMatingRejection()
		g.logger.Debug("mating_rejected", "agent_id", id, "error", res.MatingErr)
	}
}
