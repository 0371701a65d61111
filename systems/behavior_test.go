package systems

import (
	"math/rand"
	"testing"

	"github.com/pthm-cable/swarm/components"
	"github.com/pthm-cable/swarm/config"
)

type stubSensor struct {
	edible    EntityID
	hasEdible bool
	mate      EntityID
	hasMate   bool
}

func (s stubSensor) DetectionRange() float32 { return 10 }

func (s stubSensor) NearestEdible(Vec2) (EntityID, bool) { return s.edible, s.hasEdible }

func (s stubSensor) NearestPotentialMate(_ EntityID, _ Vec2, accept func(EntityID) bool) (EntityID, bool) {
	if !s.hasMate || (accept != nil && !accept(s.mate)) {
		return 0, false
	}
	return s.mate, true
}

func (s stubSensor) DistanceTo(Vec2, EntityID) (float32, bool) { return 0, false }

type stubMating struct {
	active   map[EntityID]ProcessID
	reserved map[EntityID]bool
}

func (m stubMating) IsReserved(id EntityID) bool { return m.reserved[id] }

func (m stubMating) ActiveProcess(id EntityID) (ProcessID, bool) {
	pid, ok := m.active[id]
	return pid, ok
}

var testRules = BehaviorRules{HungerThreshold: 0.35, MatingEnergyThreshold: 0.6}

func TestDecidePriority(t *testing.T) {
	mating := stubMating{
		active:   map[EntityID]ProcessID{7: 1},
		reserved: map[EntityID]bool{7: true, 9: true},
	}
	full := stubSensor{edible: 100, hasEdible: true, mate: 8, hasMate: true}

	tests := []struct {
		name   string
		view   AgentView
		sensor Sensor
		mating MatingQuery
		want   components.BehaviorTag
		target EntityID
	}{
		{
			name:   "active process wins over hunger",
			view:   AgentView{ID: 7, Energy: 0.1, HasEnergy: true},
			sensor: full, mating: mating,
			want: components.TagMate,
		},
		{
			name:   "hungry with food forages",
			view:   AgentView{ID: 1, Energy: 0.2, HasEnergy: true, Mature: true, CanMate: true},
			sensor: full, mating: mating,
			want: components.TagForage, target: 100,
		},
		{
			name:   "hungry without food wanders",
			view:   AgentView{ID: 1, Energy: 0.2, HasEnergy: true},
			sensor: stubSensor{}, mating: mating,
			want: components.TagWander,
		},
		{
			name:   "ready with mate seeks",
			view:   AgentView{ID: 1, Energy: 0.9, HasEnergy: true, Mature: true, CanMate: true},
			sensor: full, mating: mating,
			want: components.TagSeekMate, target: 8,
		},
		{
			name:   "cooldown or immaturity blocks seeking",
			view:   AgentView{ID: 1, Energy: 0.9, HasEnergy: true, Mature: true, CanMate: false},
			sensor: full, mating: mating,
			want: components.TagWander,
		},
		{
			name:   "reserved mate is skipped",
			view:   AgentView{ID: 1, Energy: 0.9, HasEnergy: true, Mature: true, CanMate: true},
			sensor: stubSensor{mate: 9, hasMate: true}, mating: mating,
			want: components.TagWander,
		},
		{
			name:   "energy between thresholds wanders",
			view:   AgentView{ID: 1, Energy: 0.5, HasEnergy: true, Mature: true, CanMate: true},
			sensor: full, mating: mating,
			want: components.TagWander,
		},
		{
			name:   "missing sensor falls through",
			view:   AgentView{ID: 1, Energy: 0.1, HasEnergy: true},
			sensor: nil, mating: mating,
			want: components.TagWander,
		},
		{
			name:   "missing energy falls through",
			view:   AgentView{ID: 1, Mature: true, CanMate: true},
			sensor: full, mating: mating,
			want: components.TagWander,
		},
		{
			name:   "missing coordinator still seeks",
			view:   AgentView{ID: 1, Energy: 0.9, HasEnergy: true, Mature: true, CanMate: true},
			sensor: full, mating: nil,
			want: components.TagSeekMate, target: 8,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.view, tt.sensor, testRules, tt.mating)
			if d.Tag != tt.want {
				t.Fatalf("tag = %v, want %v", d.Tag, tt.want)
			}
			if d.Target != tt.target || d.HasTarget != (tt.target != 0) {
				t.Errorf("target = (%d,%v), want %d", d.Target, d.HasTarget, tt.target)
			}
			if !d.Tag.Valid() {
				t.Errorf("invalid tag %d", d.Tag)
			}
		})
	}
}

func TestDecideChangedFlag(t *testing.T) {
	view := AgentView{ID: 1, Tag: components.TagWander, Energy: 0.5, HasEnergy: true}
	if d := Decide(view, stubSensor{}, testRules, nil); d.Changed {
		t.Error("Wander -> Wander reported a change")
	}
	view.Energy = 0.1
	if d := Decide(view, stubSensor{edible: 3, hasEdible: true}, testRules, nil); !d.Changed {
		t.Error("Wander -> Forage did not report a change")
	}
}

func TestApplyDecisionSkipsSameTag(t *testing.T) {
	b := &components.Behavior{Tag: components.TagForage, TargetID: 4, HasTarget: true}
	if ApplyDecision(b, Decision{Tag: components.TagForage, Target: 5, HasTarget: true}) {
		t.Error("same tag reported as change")
	}
	if b.Changes != 0 || b.TargetID != 5 {
		t.Errorf("behavior = %+v, want target refreshed without change count", b)
	}
	if !ApplyDecision(b, Decision{Tag: components.TagWander}) {
		t.Error("tag change not reported")
	}
	if b.Changes != 1 || b.HasTarget {
		t.Errorf("behavior = %+v after change", b)
	}
}

func TestReconcileDecision(t *testing.T) {
	mating := stubMating{active: map[EntityID]ProcessID{1: 3}}

	d := ReconcileDecision(Decision{Agent: 1, Tag: components.TagForage, Target: 9, HasTarget: true}, mating)
	if d.Tag != components.TagMate || d.HasTarget {
		t.Errorf("active process not enforced: %+v", d)
	}
	d = ReconcileDecision(Decision{Agent: 2, Tag: components.TagMate}, mating)
	if d.Tag != components.TagWander {
		t.Errorf("stale Mate decision kept: %+v", d)
	}
	d = ReconcileDecision(Decision{Agent: 2, Tag: components.TagSeekMate, Target: 4, HasTarget: true}, mating)
	if d.Tag != components.TagSeekMate || d.Target != 4 {
		t.Errorf("unrelated decision altered: %+v", d)
	}
}

// vitalsEnergy and vitalsRepro read components directly for machine tests.
type vitalsEnergy struct {
	v     *components.Vitals
	rules BehaviorRules
}

func (e vitalsEnergy) EnergyPercent() (float32, bool) { return e.v.EnergyPercent(), true }
func (e vitalsEnergy) IsHungry() bool                 { return e.v.EnergyPercent() < e.rules.HungerThreshold }
func (e vitalsEnergy) HasEnoughEnergyForMating() bool {
	return e.v.EnergyPercent() > e.rules.MatingEnergyThreshold
}
func (e vitalsEnergy) ConsumeEnergy(amount float32) bool {
	e.v.Energy -= amount * e.v.MaxEnergy
	if e.v.Energy < 0 {
		e.v.Energy = 0
		return false
	}
	return true
}

type vitalsRepro struct {
	v *components.Vitals
	r *components.Reproduction
}

func (p vitalsRepro) IsMature() (bool, bool) { return p.r.IsMature(p.v.Age), true }
func (p vitalsRepro) CanMate(simNow float64) bool {
	return p.r.Enabled && p.r.IsMature(p.v.Age) && p.r.CooldownElapsed(simNow)
}

type testAgent struct {
	pos   components.Position
	rot   components.Rotation
	vit   components.Vitals
	repro components.Reproduction
	beh   components.Behavior
}

func (a *testAgent) state(id EntityID, grid *SpatialIndex, rules BehaviorRules) *AgentState {
	return &AgentState{
		ID:       id,
		Pos:      &a.pos,
		Rot:      &a.rot,
		Vitals:   &a.vit,
		Repro:    &a.repro,
		Behavior: &a.beh,
		Caps: Capabilities{
			Energy:       vitalsEnergy{v: &a.vit, rules: rules},
			Reproduction: vitalsRepro{v: &a.vit, r: &a.repro},
			Sensor:       &GridSensor{Grid: grid, Range: 12},
		},
	}
}

func newTestAgent(pos Vec2, energy float32) *testAgent {
	return &testAgent{
		pos:   pos,
		vit:   components.Vitals{Energy: energy * 100, MaxEnergy: 100, Age: 20, MaxAge: 400, Alive: true},
		repro: components.Reproduction{MaturityAge: 15, Enabled: true},
	}
}

type agentPeers map[EntityID]*testAgent

func (p agentPeers) BehaviorOf(id EntityID) (components.BehaviorTag, bool) {
	a, ok := p[id]
	if !ok {
		return 0, false
	}
	return a.beh.Tag, true
}

func TestMachineForageEats(t *testing.T) {
	cfg := config.Defaults()
	cfg.Food.Count = 0
	grid := NewSpatialIndex(5)
	ids := &IDAllocator{}
	food := NewFoodField(cfg.Food, cfg.World, grid, ids, 1)
	m := NewMachine(cfg, MachineDeps{Grid: grid, Food: food, Rand: rand.New(rand.NewSource(1))})

	agentID := ids.Next()
	a := newTestAgent(Vec2{X: 50, Y: 50}, 0.2)
	grid.Register(agentID, a.pos, KindAgent)

	foodID := ids.Next()
	food.items[foodID] = FoodItem{ID: foodID, Pos: Vec2{X: 51, Y: 50}, Energy: 0.3}
	grid.Register(foodID, Vec2{X: 51, Y: 50}, KindFood)

	st := a.state(agentID, grid, m.Rules())
	res := m.Tick(st, 0.1, 1, 1)
	if a.beh.Tag != components.TagForage || a.beh.TargetID != foodID {
		t.Fatalf("after first tick behavior = %+v, want forage on %d", a.beh, foodID)
	}
	if !res.Changed || res.From != components.TagWander {
		t.Errorf("tick result = %+v, want change from Wander", res)
	}

	before := a.vit.Energy
	res = m.Tick(st, 0.5, 1.5, 1)
	if !res.Ate {
		t.Fatalf("agent did not eat food 1 unit away: pos %v", a.pos)
	}
	if a.vit.Energy <= before {
		t.Errorf("energy %v did not increase from %v", a.vit.Energy, before)
	}
	if grid.Contains(foodID) {
		t.Error("eaten food still indexed")
	}
}

func TestMachineSeekMateRegisters(t *testing.T) {
	cfg := config.Defaults()
	grid := NewSpatialIndex(5)
	peers := agentPeers{}
	queue := &CommandQueue{}

	a := newTestAgent(Vec2{X: 20, Y: 20}, 0.9)
	b := newTestAgent(Vec2{X: 20.3, Y: 20}, 0.9)
	peers[1], peers[2] = a, b
	grid.Register(1, a.pos, KindAgent)
	grid.Register(2, b.pos, KindAgent)

	host := newFakeHost()
	host.add(1, a.pos)
	host.add(2, b.pos)
	coord := NewCoordinator(CoordinatorConfigFrom(cfg), host, queue, nil)
	m := NewMachine(cfg, MachineDeps{Grid: grid, Mating: coord, Peers: peers})

	sa := a.state(1, grid, m.Rules())
	sb := b.state(2, grid, m.Rules())

	m.Tick(sa, 0.01, 1, 1)
	m.Tick(sb, 0.01, 1, 1)
	if a.beh.Tag != components.TagSeekMate || b.beh.Tag != components.TagSeekMate {
		t.Fatalf("tags = %v/%v, want SeekMate/SeekMate", a.beh.Tag, b.beh.Tag)
	}

	res := m.Tick(sa, 0.01, 1.01, 1)
	if !res.MatingRegistered {
		t.Fatalf("mating not registered: %+v", res)
	}
	if a.beh.Tag != components.TagMate {
		t.Errorf("initiator tag = %v, want Mate", a.beh.Tag)
	}

	res = m.Tick(sb, 0.01, 1.02, 1)
	if res.MatingErr != nil {
		t.Errorf("partner tick error: %v", res.MatingErr)
	}
	if b.beh.Tag != components.TagMate {
		t.Errorf("partner tag = %v, want Mate", b.beh.Tag)
	}
	if coord.ActiveCount() != 1 {
		t.Errorf("ActiveCount = %d, want 1", coord.ActiveCount())
	}
}

func TestMachineExactlyOneTag(t *testing.T) {
	cfg := config.Defaults()
	cfg.Food.Count = 40
	grid := NewSpatialIndex(float32(cfg.Spatial.CellSize))
	ids := &IDAllocator{}
	food := NewFoodField(cfg.Food, cfg.World, grid, ids, 3)
	food.Populate()
	m := NewMachine(cfg, MachineDeps{Grid: grid, Food: food, Rand: rand.New(rand.NewSource(9))})

	rng := rand.New(rand.NewSource(4))
	var states []*AgentState
	for i := 0; i < 30; i++ {
		id := ids.Next()
		a := newTestAgent(Vec2{X: rng.Float32() * 200, Y: rng.Float32() * 200}, rng.Float32())
		grid.Register(id, a.pos, KindAgent)
		states = append(states, a.state(id, grid, m.Rules()))
	}

	simNow := 0.0
	for tick := 0; tick < 200; tick++ {
		simNow += 0.25
		food.Advance(simNow)
		for _, st := range states {
			if !st.Vitals.Alive {
				continue
			}
			m.Tick(st, 0.25, simNow, 1)
			if !st.Behavior.Tag.Valid() {
				t.Fatalf("agent %d has invalid tag %d", st.ID, st.Behavior.Tag)
			}
			if st.Pos.X < 0 || st.Pos.X >= 200 || st.Pos.Y < 0 || st.Pos.Y >= 200 {
				t.Fatalf("agent %d left the world: %v", st.ID, *st.Pos)
			}
		}
	}
}

func TestMachineDeath(t *testing.T) {
	cfg := config.Defaults()
	grid := NewSpatialIndex(5)
	m := NewMachine(cfg, MachineDeps{Grid: grid})

	starving := newTestAgent(Vec2{X: 5, Y: 5}, 0.001)
	res := m.Tick(starving.state(1, grid, m.Rules()), 1, 1, 1)
	if !res.Died || res.DeathCause != "starvation" || starving.vit.Alive {
		t.Errorf("starving agent result = %+v", res)
	}

	old := newTestAgent(Vec2{X: 5, Y: 5}, 0.9)
	old.vit.Age = 399.5
	res = m.Tick(old.state(2, grid, m.Rules()), 1, 1, 1)
	if !res.Died || res.DeathCause != "old_age" {
		t.Errorf("old agent result = %+v", res)
	}
}
