package systems

import (
	"fmt"
	"maps"
	"math"
	"math/rand"
	"slices"
	"sync"

	"github.com/pthm-cable/swarm/config"
)

// ProcessID identifies a mating process.
type ProcessID uint64

// Role is a participant's part in a mating process.
type Role uint8

const (
	RoleInitiator Role = iota
	RoleAccepter
)

func (r Role) String() string {
	if r == RoleInitiator {
		return "initiator"
	}
	return "accepter"
}

// ProcessStatus is the lifecycle state of a mating process.
type ProcessStatus uint8

const (
	StatusActive ProcessStatus = iota
	StatusCompleted
	StatusCancelled
)

func (s ProcessStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// MatingProcess is a timed transaction between two reserved agents.
// Times are simulated seconds.
type MatingProcess struct {
	ID        ProcessID
	Initiator EntityID // lower id of the pair
	Partner   EntityID
	StartTime float64
	Elapsed   float64
	Duration  float64
	NextCheck float64
	Status    ProcessStatus
	FastPath  bool
}

// Candidate is the host's current view of a would-be participant.
type Candidate struct {
	ID              EntityID
	Pos             Vec2
	Alive           bool
	Energy          float32 // fraction of max
	Mature          bool
	CooldownElapsed bool
	CanReproduce    bool
}

// MatingHost gives the coordinator read access to agents and the two
// mutations it needs. Calls happen with the coordinator's lock held, so
// implementations must not call back into the coordinator.
type MatingHost interface {
	MateCandidate(id EntityID, simNow float64) (Candidate, bool)
	NotifyMating(id, partner EntityID, process ProcessID, role Role) error
	ConsumeEnergy(id EntityID, amount float32) bool
}

// FastPathPolicy decides when a mating transaction completes in one tick.
type FastPathPolicy struct {
	Enabled    bool
	Multiplier float64
	Proximity  float64
}

// Applies reports whether the fast path is used for a pair at distance dist.
func (p FastPathPolicy) Applies(tm float64, dist float32) bool {
	return p.Enabled && tm >= p.Multiplier && float64(dist) <= p.Proximity
}

// CoordinatorConfig holds the coordinator's tunables.
type CoordinatorConfig struct {
	Mating                config.MatingConfig
	MatingEnergyThreshold float64
}

// CoordinatorConfigFrom extracts coordinator settings from configuration.
func CoordinatorConfigFrom(cfg *config.Config) CoordinatorConfig {
	return CoordinatorConfig{
		Mating:                cfg.Mating,
		MatingEnergyThreshold: cfg.Behavior.MatingEnergyThreshold,
	}
}

// MatingEventKind classifies coordinator events.
type MatingEventKind uint8

const (
	EventStarted MatingEventKind = iota
	EventCompleted
	EventCancelled
)

func (k MatingEventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventCompleted:
		return "completed"
	case EventCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// MatingEvent is queued for observers and drained once per tick.
type MatingEvent struct {
	Kind      MatingEventKind
	Process   ProcessID
	Initiator EntityID
	Partner   EntityID
	SimTime   float64
	Elapsed   float64
	Offspring int
	FastPath  bool
	Reason    string
}

// Coordinator enforces at most one active mating process per agent and
// drives processes to completion or cancellation.
type Coordinator struct {
	mu sync.Mutex

	cfg      CoordinatorConfig
	fastPath FastPathPolicy
	host     MatingHost
	sink     CommandSink
	rng      *rand.Rand

	nextID    ProcessID
	processes map[ProcessID]*MatingProcess
	reserved  map[EntityID]ProcessID
	events    []MatingEvent
	simNow    float64
	closed    bool
}

// NewCoordinator creates a coordinator. host and sink must be non-nil.
func NewCoordinator(cfg CoordinatorConfig, host MatingHost, sink CommandSink, rng *rand.Rand) *Coordinator {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	return &Coordinator{
		cfg: cfg,
		fastPath: FastPathPolicy{
			Enabled:    cfg.Mating.FastPath.Enabled,
			Multiplier: cfg.Mating.FastPath.Multiplier,
			Proximity:  cfg.Mating.FastPath.Proximity,
		},
		host:      host,
		sink:      sink,
		rng:       rng,
		processes: make(map[ProcessID]*MatingProcess),
		reserved:  make(map[EntityID]ProcessID),
	}
}

// ValidationInterval returns the simulated seconds between validity checks
// of an active process. Higher multipliers check more often.
func (c *Coordinator) ValidationInterval(tm float64) float64 {
	m := c.cfg.Mating
	return clamp64(m.CheckInterval/math.Sqrt(math.Max(tm, 1)), m.MinCheckInterval, m.CheckInterval)
}

// OffspringCount returns how many offspring a completed process produces.
func (c *Coordinator) OffspringCount(tm float64) int {
	m := c.cfg.Mating
	if tm < m.ExtremeMultiplier {
		return 1
	}
	n := int(math.Ceil(tm / m.ExtremeMultiplier))
	return max(1, min(m.MaxOffspring, n))
}

// RegisterMating starts a process between a and b. The pair is ordered by
// id so that (a,b) and (b,a) describe the same process. Eligibility is
// re-validated here regardless of what the caller checked.
func (c *Coordinator) RegisterMating(a, b EntityID, simNow, tm float64) (ProcessID, error) {
	if a == b {
		return 0, ErrSelfMating
	}
	initiator, partner := a, b
	if partner < initiator {
		initiator, partner = partner, initiator
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, ErrCoordinatorClosed
	}
	if c.host == nil || c.sink == nil {
		return 0, ErrMissingCollaborator
	}
	c.simNow = simNow
	if _, ok := c.reserved[initiator]; ok {
		return 0, fmt.Errorf("agent %d: %w", initiator, ErrAlreadyReserved)
	}
	if _, ok := c.reserved[partner]; ok {
		return 0, fmt.Errorf("agent %d: %w", partner, ErrAlreadyReserved)
	}

	ci, err := c.candidate(initiator, simNow)
	if err != nil {
		return 0, err
	}
	cp, err := c.candidate(partner, simNow)
	if err != nil {
		return 0, err
	}
	dist := ci.Pos.Dist(cp.Pos)
	if float64(dist) > c.cfg.Mating.Proximity {
		return 0, fmt.Errorf("%w: distance %.2f exceeds proximity %.2f", ErrNotEligible, dist, c.cfg.Mating.Proximity)
	}

	c.nextID++
	p := &MatingProcess{
		ID:        c.nextID,
		Initiator: initiator,
		Partner:   partner,
		StartTime: simNow,
		Duration:  c.cfg.Mating.Duration,
		NextCheck: simNow + c.ValidationInterval(tm),
		Status:    StatusActive,
	}
	if c.fastPath.Applies(tm, dist) {
		p.FastPath = true
		p.Duration = 0
	}
	c.processes[p.ID] = p
	c.reserved[initiator] = p.ID
	c.reserved[partner] = p.ID

	if err := c.host.NotifyMating(initiator, partner, p.ID, RoleInitiator); err != nil {
		c.unwind(p, nil)
		return 0, fmt.Errorf("notify initiator %d: %w", initiator, err)
	}
	if err := c.host.NotifyMating(partner, initiator, p.ID, RoleAccepter); err != nil {
		c.unwind(p, []EntityID{initiator})
		return 0, fmt.Errorf("notify partner %d: %w", partner, err)
	}

	c.events = append(c.events, MatingEvent{
		Kind:      EventStarted,
		Process:   p.ID,
		Initiator: initiator,
		Partner:   partner,
		SimTime:   simNow,
		FastPath:  p.FastPath,
	})
	return p.ID, nil
}

// unwind removes a process whose notification failed. Participants that
// were already notified are told the process ended.
func (c *Coordinator) unwind(p *MatingProcess, notified []EntityID) {
	delete(c.reserved, p.Initiator)
	delete(c.reserved, p.Partner)
	delete(c.processes, p.ID)
	p.Status = StatusCancelled
	for _, id := range notified {
		other := p.Partner
		if id == p.Partner {
			other = p.Initiator
		}
		c.sink.Dispatch(EndMating{Agent: id, Partner: other, ProcessID: p.ID, Outcome: OutcomeCancelled})
	}
}

func (c *Coordinator) candidate(id EntityID, simNow float64) (Candidate, error) {
	cand, ok := c.host.MateCandidate(id, simNow)
	if !ok {
		return Candidate{}, fmt.Errorf("agent %d: %w", id, ErrUnknownAgent)
	}
	var reason string
	switch {
	case !cand.Alive:
		reason = "not alive"
	case !cand.CanReproduce:
		reason = "no reproduction capability"
	case !cand.Mature:
		reason = "immature"
	case !cand.CooldownElapsed:
		reason = "cooldown active"
	case float64(cand.Energy) < c.cfg.MatingEnergyThreshold:
		reason = fmt.Sprintf("energy %.2f below %.2f", cand.Energy, c.cfg.MatingEnergyThreshold)
	}
	if reason != "" {
		return Candidate{}, fmt.Errorf("%w: agent %d %s", ErrNotEligible, id, reason)
	}
	return cand, nil
}

// AdvanceResult summarizes one Advance call.
type AdvanceResult struct {
	Completed int
	Cancelled int
	Offspring int
}

// Advance moves every active process forward by simDt simulated seconds,
// re-validating on schedule and completing those whose duration elapsed.
func (c *Coordinator) Advance(simDt, simNow, tm float64) AdvanceResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	var res AdvanceResult
	c.simNow = simNow
	if len(c.processes) == 0 {
		return res
	}

	for _, id := range slices.Sorted(maps.Keys(c.processes)) {
		p := c.processes[id]
		p.Elapsed += simDt

		if p.Elapsed >= p.Duration {
			if reason := c.invalidReason(p, simNow); reason != "" {
				c.cancel(p, reason)
				res.Cancelled++
				continue
			}
			res.Offspring += c.complete(p, simNow, tm)
			res.Completed++
			continue
		}

		if simNow >= p.NextCheck {
			if reason := c.invalidReason(p, simNow); reason != "" {
				c.cancel(p, reason)
				res.Cancelled++
				continue
			}
			p.NextCheck = simNow + c.ValidationInterval(tm)
		}
	}
	return res
}

// invalidReason returns why an active process can no longer continue,
// or "" if it is still valid.
func (c *Coordinator) invalidReason(p *MatingProcess, simNow float64) string {
	a, okA := c.host.MateCandidate(p.Initiator, simNow)
	b, okB := c.host.MateCandidate(p.Partner, simNow)
	switch {
	case !okA || !a.Alive || !okB || !b.Alive:
		return "participant gone"
	case float64(a.Energy) < c.cfg.Mating.MinEnergyDuring || float64(b.Energy) < c.cfg.Mating.MinEnergyDuring:
		return "energy below minimum"
	case float64(a.Pos.Dist(b.Pos)) > c.cfg.Mating.Proximity*c.cfg.Mating.ValidationSlack:
		return "partners separated"
	}
	return ""
}

func (c *Coordinator) complete(p *MatingProcess, simNow, tm float64) int {
	a, _ := c.host.MateCandidate(p.Initiator, simNow)
	b, _ := c.host.MateCandidate(p.Partner, simNow)

	cost := float32(c.cfg.Mating.EnergyCost)
	c.host.ConsumeEnergy(p.Initiator, cost)
	c.host.ConsumeEnergy(p.Partner, cost)

	mid := a.Pos.Midpoint(b.Pos)
	variance := float32(c.cfg.Mating.OffspringVariance)
	n := c.OffspringCount(tm)
	for i := 0; i < n; i++ {
		pos := Vec2{
			X: mid.X + (c.rng.Float32()*2-1)*variance,
			Y: mid.Y + (c.rng.Float32()*2-1)*variance,
		}
		c.sink.Dispatch(CreateOffspring{ParentA: p.Initiator, ParentB: p.Partner, Position: pos, ProcessID: p.ID})
	}

	p.Status = StatusCompleted
	c.finish(p, OutcomeCompleted)
	c.events = append(c.events, MatingEvent{
		Kind:      EventCompleted,
		Process:   p.ID,
		Initiator: p.Initiator,
		Partner:   p.Partner,
		SimTime:   simNow,
		Elapsed:   p.Elapsed,
		Offspring: n,
		FastPath:  p.FastPath,
	})
	return n
}

// cancel ends p without offspring. Reservations are released in the same
// critical section that marks it cancelled.
func (c *Coordinator) cancel(p *MatingProcess, reason string) {
	p.Status = StatusCancelled
	c.finish(p, OutcomeCancelled)
	c.events = append(c.events, MatingEvent{
		Kind:      EventCancelled,
		Process:   p.ID,
		Initiator: p.Initiator,
		Partner:   p.Partner,
		SimTime:   c.simNow,
		Elapsed:   p.Elapsed,
		FastPath:  p.FastPath,
		Reason:    reason,
	})
}

func (c *Coordinator) finish(p *MatingProcess, outcome Outcome) {
	delete(c.reserved, p.Initiator)
	delete(c.reserved, p.Partner)
	delete(c.processes, p.ID)
	c.sink.Dispatch(EndMating{Agent: p.Initiator, Partner: p.Partner, ProcessID: p.ID, Outcome: outcome})
	c.sink.Dispatch(EndMating{Agent: p.Partner, Partner: p.Initiator, ProcessID: p.ID, Outcome: outcome})
}

// Release cancels any process involving id. Used when an agent dies.
func (c *Coordinator) Release(id EntityID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	pid, ok := c.reserved[id]
	if !ok {
		return false
	}
	c.cancel(c.processes[pid], "participant released")
	return true
}

// Close cancels every active process and rejects further registrations.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range slices.Sorted(maps.Keys(c.processes)) {
		c.cancel(c.processes[id], "coordinator closed")
	}
	c.closed = true
}

// IsReserved reports whether id participates in an active process.
func (c *Coordinator) IsReserved(id EntityID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.reserved[id]
	return ok
}

// ActiveProcess returns the process holding id.
func (c *Coordinator) ActiveProcess(id EntityID) (ProcessID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pid, ok := c.reserved[id]
	return pid, ok
}

// Process returns a copy of an active process.
func (c *Coordinator) Process(id ProcessID) (MatingProcess, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.processes[id]
	if !ok {
		return MatingProcess{}, false
	}
	return *p, true
}

// ActiveCount returns the number of active processes.
func (c *Coordinator) ActiveCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.processes)
}

// Reserved returns the reserved ids in ascending order.
func (c *Coordinator) Reserved() []EntityID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Sorted(maps.Keys(c.reserved))
}

// ReservedInto copies the reserved set into dst, replacing its contents.
func (c *Coordinator) ReservedInto(dst map[EntityID]struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(dst)
	for id := range c.reserved {
		dst[id] = struct{}{}
	}
}

// DrainEvents appends queued events to dst and clears the queue.
func (c *Coordinator) DrainEvents(dst []MatingEvent) []MatingEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	dst = append(dst, c.events...)
	c.events = c.events[:0]
	return dst
}
