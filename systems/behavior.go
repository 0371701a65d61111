package systems

import (
	"errors"
	"math"
	"math/rand"

	"github.com/pthm-cable/swarm/components"
	"github.com/pthm-cable/swarm/config"
)

// EnergyProvider exposes an agent's energy. Amounts are fractions of max energy.
type EnergyProvider interface {
	EnergyPercent() (float32, bool)
	IsHungry() bool
	HasEnoughEnergyForMating() bool
	// ConsumeEnergy subtracts amount, flooring at zero. Returns false if
	// the agent could not pay the full amount.
	ConsumeEnergy(amount float32) bool
}

// ReproductionProvider exposes maturity and mating readiness.
type ReproductionProvider interface {
	IsMature() (mature, ok bool)
	// CanMate reports maturity, elapsed cooldown and reproduction capability.
	CanMate(simNow float64) bool
}

// Sensor finds things around an agent.
type Sensor interface {
	DetectionRange() float32
	NearestEdible(from Vec2) (EntityID, bool)
	NearestPotentialMate(self EntityID, from Vec2, accept func(EntityID) bool) (EntityID, bool)
	DistanceTo(from Vec2, id EntityID) (float32, bool)
}

// Capabilities is the collaborator bundle built for each agent at spawn.
// Any member may be nil; a nil member reads as "no candidate found".
type Capabilities struct {
	Energy       EnergyProvider
	Reproduction ReproductionProvider
	Sensor       Sensor
}

// MatingQuery is the read side of the mating coordinator.
type MatingQuery interface {
	IsReserved(id EntityID) bool
	ActiveProcess(id EntityID) (ProcessID, bool)
}

// MatingRegistrar can also start mating processes.
type MatingRegistrar interface {
	MatingQuery
	RegisterMating(a, b EntityID, simNow, tm float64) (ProcessID, error)
}

// PeerLookup reads another agent's current behavior tag.
type PeerLookup interface {
	BehaviorOf(id EntityID) (components.BehaviorTag, bool)
}

// BehaviorRules are the thresholds used by Decide.
type BehaviorRules struct {
	HungerThreshold       float32
	MatingEnergyThreshold float32
}

// RulesFromConfig extracts decision thresholds from configuration.
func RulesFromConfig(cfg config.BehaviorConfig) BehaviorRules {
	return BehaviorRules{
		HungerThreshold:       float32(cfg.HungerThreshold),
		MatingEnergyThreshold: float32(cfg.MatingEnergyThreshold),
	}
}

// AgentView is the immutable input to Decide.
type AgentView struct {
	ID        EntityID
	Pos       Vec2
	Tag       components.BehaviorTag
	Energy    float32
	HasEnergy bool
	Mature    bool
	CanMate   bool
}

// ViewOf reads an agent's capabilities into a view.
func ViewOf(id EntityID, pos Vec2, tag components.BehaviorTag, caps Capabilities, simNow float64) AgentView {
	v := AgentView{ID: id, Pos: pos, Tag: tag}
	if caps.Energy != nil {
		v.Energy, v.HasEnergy = caps.Energy.EnergyPercent()
	}
	if caps.Reproduction != nil {
		mature, ok := caps.Reproduction.IsMature()
		v.Mature = mature && ok
		v.CanMate = v.Mature && caps.Reproduction.CanMate(simNow)
	}
	return v
}

// Decision is the resolved behavior for one agent.
type Decision struct {
	Agent     EntityID
	Tag       components.BehaviorTag
	Target    EntityID
	HasTarget bool
	Changed   bool // Tag differs from the view's tag
}

// Decide evaluates the transition rules in priority order:
// active mating, hunger with food in range, mating readiness with a mate
// in range, and finally wandering. It has no side effects.
func Decide(view AgentView, sensor Sensor, rules BehaviorRules, mating MatingQuery) Decision {
	d := Decision{Agent: view.ID, Tag: components.TagWander}
	resolve := func(tag components.BehaviorTag, target EntityID, hasTarget bool) Decision {
		d.Tag, d.Target, d.HasTarget = tag, target, hasTarget
		d.Changed = d.Tag != view.Tag
		return d
	}

	if mating != nil && isMatingActive(mating, view.ID) {
		return resolve(components.TagMate, 0, false)
	}

	if view.HasEnergy && view.Energy < rules.HungerThreshold && sensor != nil {
		if id, ok := sensor.NearestEdible(view.Pos); ok {
			return resolve(components.TagForage, id, true)
		}
	}

	if view.HasEnergy && view.Energy > rules.MatingEnergyThreshold && view.CanMate && sensor != nil {
		accept := func(id EntityID) bool {
			return mating == nil || !mating.IsReserved(id)
		}
		if id, ok := sensor.NearestPotentialMate(view.ID, view.Pos, accept); ok {
			return resolve(components.TagSeekMate, id, true)
		}
	}

	return resolve(components.TagWander, 0, false)
}

func isMatingActive(mating MatingQuery, id EntityID) bool {
	_, ok := mating.ActiveProcess(id)
	return ok
}

// ReconcileDecision corrects a decision computed from an older snapshot
// against the live coordinator. Mate is sticky while a process holds the
// agent and impossible without one.
func ReconcileDecision(d Decision, mating MatingQuery) Decision {
	if mating == nil {
		return d
	}
	active := isMatingActive(mating, d.Agent)
	switch {
	case active && d.Tag != components.TagMate:
		d.Tag, d.Target, d.HasTarget = components.TagMate, 0, false
	case !active && d.Tag == components.TagMate:
		d.Tag, d.Target, d.HasTarget = components.TagWander, 0, false
	}
	return d
}

// ApplyDecision writes a decision into the behavior component.
// Returns true only when the tag actually changed.
func ApplyDecision(b *components.Behavior, d Decision) bool {
	b.TargetID, b.HasTarget = d.Target, d.HasTarget
	if d.Tag == b.Tag {
		return false
	}
	b.Tag = d.Tag
	b.Changes++
	return true
}

// AgentState points at one agent's mutable components for a tick.
type AgentState struct {
	ID       EntityID
	Pos      *components.Position
	Rot      *components.Rotation
	Vitals   *components.Vitals
	Repro    *components.Reproduction
	Behavior *components.Behavior
	Caps     Capabilities
}

// TickResult reports what happened during one agent tick.
type TickResult struct {
	Died             bool
	DeathCause       string
	Ate              bool
	MatingRegistered bool
	MatingErr        error
	Decision         Decision
	Changed          bool
	From             components.BehaviorTag
}

// MachineDeps are the shared collaborators of the state machine.
type MachineDeps struct {
	Grid   *SpatialIndex
	Food   *FoodField
	Mating MatingRegistrar
	Peers  PeerLookup
	Rand   *rand.Rand
}

// Machine runs state effects and transitions for agents.
type Machine struct {
	rules     BehaviorRules
	behavior  config.BehaviorConfig
	energy    config.EnergyConfig
	proximity float32
	bounds    Bounds

	grid   *SpatialIndex
	food   *FoodField
	mating MatingRegistrar
	peers  PeerLookup
	rng    *rand.Rand
}

// NewMachine creates a behavior state machine.
func NewMachine(cfg *config.Config, deps MachineDeps) *Machine {
	rng := deps.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Machine{
		rules:     RulesFromConfig(cfg.Behavior),
		behavior:  cfg.Behavior,
		energy:    cfg.Energy,
		proximity: float32(cfg.Mating.Proximity),
		bounds:    Bounds{Width: cfg.Derived.WorldW32, Height: cfg.Derived.WorldH32},
		grid:      deps.Grid,
		food:      deps.Food,
		mating:    deps.Mating,
		peers:     deps.Peers,
		rng:       rng,
	}
}

// Rules returns the decision thresholds.
func (m *Machine) Rules() BehaviorRules {
	return m.rules
}

// Tick executes the current state's effect, then re-evaluates transitions.
func (m *Machine) Tick(a *AgentState, elapsedSim, simNow, tm float64) TickResult {
	res := m.Effect(a, elapsedSim, simNow, tm)
	if res.Died {
		return res
	}
	res.From = a.Behavior.Tag
	res.Decision = m.Evaluate(a, simNow)
	res.Changed = ApplyDecision(a.Behavior, res.Decision)
	return res
}

// Evaluate resolves the next behavior for a without mutating it.
func (m *Machine) Evaluate(a *AgentState, simNow float64) Decision {
	view := ViewOf(a.ID, *a.Pos, a.Behavior.Tag, a.Caps, simNow)
	var q MatingQuery
	if m.mating != nil {
		q = m.mating
	}
	return Decide(view, a.Caps.Sensor, m.rules, q)
}

// Effect advances ageing and metabolism and runs the current state's action.
func (m *Machine) Effect(a *AgentState, elapsedSim, simNow, tm float64) TickResult {
	var res TickResult
	if !a.Vitals.Alive {
		res.Died = true
		return res
	}
	dt := float32(elapsedSim)
	a.Vitals.Age += dt
	m.consume(a, float32(m.energy.DrainPerSecond/100)*dt)

	switch a.Behavior.Tag {
	case components.TagWander:
		m.wander(a, dt)
	case components.TagForage:
		res.Ate = m.forage(a, dt, simNow)
	case components.TagSeekMate:
		res.MatingRegistered, res.MatingErr = m.seekMate(a, dt, simNow, tm)
	case components.TagMate:
		// Held in place until the coordinator ends the process.
	}

	if m.grid != nil {
		m.grid.Update(a.ID, *a.Pos)
	}

	if cause := deathCause(a.Vitals); cause != "" {
		a.Vitals.Alive = false
		res.Died = true
		res.DeathCause = cause
	}
	return res
}

func deathCause(v *components.Vitals) string {
	switch {
	case v.Energy <= 0:
		return "starvation"
	case v.MaxAge > 0 && v.Age >= v.MaxAge:
		return "old_age"
	default:
		return ""
	}
}

func (m *Machine) consume(a *AgentState, amount float32) {
	if amount <= 0 || a.Caps.Energy == nil {
		return
	}
	a.Caps.Energy.ConsumeEnergy(amount)
}

func (m *Machine) move(a *AgentState, target Vec2, speed, standoff, dt float32) float32 {
	next, travelled := moveToward(*a.Pos, target, speed*dt, standoff)
	if travelled > 0 {
		a.Rot.Heading = normalizeHeading(float32(math.Atan2(float64(target.Y-a.Pos.Y), float64(target.X-a.Pos.X))))
	}
	next, _ = m.bounds.Clamp(next)
	*a.Pos = next
	m.consume(a, float32(m.energy.MoveCost/100)*travelled)
	return travelled
}

func (m *Machine) wander(a *AgentState, dt float32) {
	jitter := float32(m.behavior.HeadingJitter) * dt
	a.Rot.Heading = normalizeHeading(a.Rot.Heading + (m.rng.Float32()*2-1)*jitter)

	step := float32(m.behavior.WanderSpeed) * dt
	sin, cos := math.Sincos(float64(a.Rot.Heading))
	next := Vec2{X: a.Pos.X + float32(cos)*step, Y: a.Pos.Y + float32(sin)*step}
	next, hitWall := m.bounds.Clamp(next)
	if hitWall {
		a.Rot.Heading = normalizeHeading(a.Rot.Heading + math.Pi)
	}
	*a.Pos = next
	m.consume(a, float32(m.energy.MoveCost/100)*step)
}

func (m *Machine) forage(a *AgentState, dt float32, simNow float64) bool {
	if !a.Behavior.HasTarget || m.grid == nil || m.food == nil {
		m.wander(a, dt)
		return false
	}
	target, ok := m.grid.Position(a.Behavior.TargetID)
	if !ok {
		// Eaten by someone else.
		a.Behavior.HasTarget = false
		m.wander(a, dt)
		return false
	}
	m.move(a, target, float32(m.behavior.ForageSpeed), 0, dt)
	if a.Pos.Dist(target) > float32(m.behavior.EatRadius) {
		return false
	}
	gain, ok := m.food.Consume(a.Behavior.TargetID, simNow)
	a.Behavior.HasTarget = false
	if !ok {
		return false
	}
	a.Vitals.Energy += gain * a.Vitals.MaxEnergy
	if a.Vitals.Energy > a.Vitals.MaxEnergy {
		a.Vitals.Energy = a.Vitals.MaxEnergy
	}
	return true
}

func (m *Machine) seekMate(a *AgentState, dt float32, simNow, tm float64) (bool, error) {
	if !a.Behavior.HasTarget || m.grid == nil {
		return false, nil
	}
	mate := a.Behavior.TargetID
	target, ok := m.grid.Position(mate)
	if !ok {
		a.Behavior.HasTarget = false
		return false, ErrAgentGone
	}
	m.move(a, target, float32(m.behavior.SeekSpeed), m.proximity/2, dt)
	if a.Pos.Dist(target) > m.proximity || m.mating == nil || m.peers == nil {
		return false, nil
	}
	tag, ok := m.peers.BehaviorOf(mate)
	if !ok || tag != components.TagSeekMate {
		return false, nil
	}
	if _, err := m.mating.RegisterMating(a.ID, mate, simNow, tm); err != nil {
		if errors.Is(err, ErrAlreadyReserved) && isMatingActive(m.mating, a.ID) {
			// The partner registered the pair first.
			return false, nil
		}
		return false, err
	}
	return true, nil
}
