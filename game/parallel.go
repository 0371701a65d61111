package game

import (
	"runtime"
	"sync"

	"github.com/pthm-cable/swarm/components"
	"github.com/pthm-cable/swarm/systems"
	"github.com/pthm-cable/swarm/telemetry"
)

// minChunk is the smallest slice of views handed to one worker.
// Smaller batches cost more in channel traffic than they save.
const minChunk = 16

// decisionSnapshot is a read-only copy of the world state that workers
// evaluate decisions against. Two alternate so the tick thread can build
// the next one while workers still read the previous.
type decisionSnapshot struct {
	grid     *systems.SpatialIndex
	reserved map[components.EntityID]struct{}
	eligible map[components.EntityID]struct{}
	views    []systems.AgentView
	inflight sync.WaitGroup
}

func newDecisionSnapshot(cellSize float32) *decisionSnapshot {
	return &decisionSnapshot{
		grid:     systems.NewSpatialIndex(cellSize),
		reserved: make(map[components.EntityID]struct{}),
		eligible: make(map[components.EntityID]struct{}),
		views:    make([]systems.AgentView, 0, 256),
	}
}

// IsReserved implements systems.MatingQuery over the snapshot.
func (s *decisionSnapshot) IsReserved(id components.EntityID) bool {
	_, ok := s.reserved[id]
	return ok
}

// ActiveProcess reports reservation only; the process id is not captured.
func (s *decisionSnapshot) ActiveProcess(id components.EntityID) (systems.ProcessID, bool) {
	_, ok := s.reserved[id]
	return 0, ok
}

func (s *decisionSnapshot) isEligible(id components.EntityID) bool {
	_, ok := s.eligible[id]
	return ok
}

// DecisionQueue carries worker results back to the tick thread in FIFO order.
type DecisionQueue struct {
	mu        sync.Mutex
	decisions []systems.Decision
}

// Push appends a batch of decisions.
func (q *DecisionQueue) Push(ds ...systems.Decision) {
	q.mu.Lock()
	q.decisions = append(q.decisions, ds...)
	q.mu.Unlock()
}

// Drain moves up to limit decisions into dst. limit <= 0 drains everything.
func (q *DecisionQueue) Drain(dst []systems.Decision, limit int) []systems.Decision {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.decisions)
	if limit > 0 && n > limit {
		n = limit
	}
	dst = append(dst, q.decisions[:n]...)
	rest := copy(q.decisions, q.decisions[n:])
	clear(q.decisions[rest:])
	q.decisions = q.decisions[:rest]
	return dst
}

// Len returns the number of queued decisions.
func (q *DecisionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.decisions)
}

// workChunk is a range of views in one snapshot.
type workChunk struct {
	snap       *decisionSnapshot
	start, end int
}

// parallelState holds the worker pool that evaluates offloaded decisions.
type parallelState struct {
	snapshots    [2]*decisionSnapshot
	next         int
	queue        DecisionQueue
	maxDecisions int
	numWorkers   int
	scratch      []systems.Decision

	dispatched uint64
	applied    uint64
	dropped    uint64

	// Worker pool channels
	workChan chan workChunk
	stopChan chan struct{}
	wg       sync.WaitGroup
	running  bool
}

func newParallelState(cellSize float32, maxDecisions int) *parallelState {
	return &parallelState{
		snapshots:    [2]*decisionSnapshot{newDecisionSnapshot(cellSize), newDecisionSnapshot(cellSize)},
		maxDecisions: maxDecisions,
		numWorkers:   runtime.GOMAXPROCS(0),
	}
}

// startWorkers launches persistent worker goroutines.
func (p *parallelState) startWorkers(g *Game) {
	if p.running {
		return
	}
	p.workChan = make(chan workChunk, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(g.rules, float32(g.cfg.Behavior.DetectionRange))
	}
}

// stopWorkers signals all workers to exit and waits for them. Chunks still
// queued are abandoned.
func (p *parallelState) stopWorkers() {
	if !p.running {
		return
	}
	close(p.stopChan)
	p.wg.Wait()
	p.running = false
}

func (p *parallelState) worker(rules systems.BehaviorRules, detectionRange float32) {
	defer p.wg.Done()
	var out []systems.Decision
	for {
		select {
		case <-p.stopChan:
			return
		case chunk := <-p.workChan:
			snap := chunk.snap
			sensor := &systems.GridSensor{Grid: snap.grid, Range: detectionRange, Eligible: snap.isEligible}
			out = out[:0]
			for _, view := range snap.views[chunk.start:chunk.end] {
				out = append(out, systems.Decide(view, sensor, rules, snap))
			}
			p.queue.Push(out...)
			snap.inflight.Done()
		}
	}
}

// offloadDecisions hands the pending views to the workers. Below the
// parallel threshold they are decided inline instead.
func (g *Game) offloadDecisions() int {
	n := len(g.pending)
	if n == 0 {
		return 0
	}
	defer func() {
		clear(g.pending)
		g.pending = g.pending[:0]
	}()

	if g.parallel == nil || !g.parallel.running || n < g.cfg.Scheduler.ParallelThreshold {
		for _, view := range g.pending {
			g.applyDecision(systems.Decide(view, g.sensor, g.rules, g.coordinator))
		}
		return n
	}

	p := g.parallel
	snap := p.snapshots[p.next]
	p.next = 1 - p.next
	snap.inflight.Wait()

	g.perf.StartPhase(telemetry.PhaseSpatial)
	g.grid.Snapshot(snap.grid)
	clear(snap.reserved)
	g.coordinator.ReservedInto(snap.reserved)
	g.sampleEligible(snap.eligible)
	snap.views = append(snap.views[:0], g.pending...)
	g.perf.StartPhase(telemetry.PhaseDecisions)

	size := max((n+p.numWorkers-1)/p.numWorkers, minChunk)
	for start := 0; start < n; start += size {
		end := min(start+size, n)
		snap.inflight.Add(1)
		p.workChan <- workChunk{snap: snap, start: start, end: end}
	}
	p.dispatched += uint64(n)
	return n
}

// sampleEligible records every agent that may currently be chosen as a mate.
func (g *Game) sampleEligible(dst map[components.EntityID]struct{}) {
	clear(dst)
	query := g.agentFilter.Query()
	for query.Next() {
		org, _, _, vit, repro, beh, _ := query.Get()
		if !vit.Alive || beh.Mating || vit.EnergyPercent() <= g.rules.MatingEnergyThreshold {
			continue
		}
		if repro.Enabled && repro.IsMature(vit.Age) && repro.CooldownElapsed(g.simNow) {
			dst[org.ID] = struct{}{}
		}
	}
}

// applyQueuedDecisions applies up to the per-frame limit of worker results.
// Decisions for agents that died in the meantime are dropped.
func (g *Game) applyQueuedDecisions() int {
	p := g.parallel
	if p == nil {
		return 0
	}
	p.scratch = p.queue.Drain(p.scratch[:0], p.maxDecisions)
	for _, d := range p.scratch {
		if g.applyDecision(d) {
			p.applied++
		} else {
			p.dropped++
		}
	}
	return len(p.scratch)
}

// applyDecision reconciles a decision with the live coordinator and writes
// it into the agent's behavior. Returns false if the agent is gone.
func (g *Game) applyDecision(d systems.Decision) bool {
	e, ok := g.entityOf(d.Agent)
	if !ok || !g.vitalsMap.Get(e).Alive {
		return false
	}
	d = systems.ReconcileDecision(d, g.coordinator)
	if systems.ApplyDecision(g.behaviorMap.Get(e), d) {
		g.collector.RecordBehaviorChange()
	}
	return true
}

// DecisionTotals returns offloaded decisions dispatched, applied and dropped.
func (g *Game) DecisionTotals() (dispatched, applied, dropped uint64) {
	if g.parallel == nil {
		return 0, 0, 0
	}
	return g.parallel.dispatched, g.parallel.applied, g.parallel.dropped
}
