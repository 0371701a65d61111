package telemetry

import "github.com/pthm-cable/swarm/components"

// LifetimeStats tracks per-agent statistics over its lifetime.
type LifetimeStats struct {
	BirthTime  float64 // simulated seconds
	Generation uint32

	FoodEaten int

	MatingsStarted   int
	MatingsCompleted int
	MatingsCancelled int
	Offspring        int
}

// Lifespan returns how long the agent has lived at simNow.
func (s *LifetimeStats) Lifespan(simNow float64) float64 {
	return simNow - s.BirthTime
}

// LifetimeTracker manages per-agent lifetime statistics.
type LifetimeTracker struct {
	stats map[components.EntityID]*LifetimeStats
}

// NewLifetimeTracker creates a new lifetime tracker.
func NewLifetimeTracker() *LifetimeTracker {
	return &LifetimeTracker{
		stats: make(map[components.EntityID]*LifetimeStats),
	}
}

// Register starts tracking an agent born at simNow.
func (lt *LifetimeTracker) Register(id components.EntityID, simNow float64, generation uint32) {
	lt.stats[id] = &LifetimeStats{BirthTime: simNow, Generation: generation}
}

// Get returns the lifetime stats for an agent, or nil if not found.
func (lt *LifetimeTracker) Get(id components.EntityID) *LifetimeStats {
	return lt.stats[id]
}

// Remove stops tracking an agent and returns its final stats.
func (lt *LifetimeTracker) Remove(id components.EntityID) *LifetimeStats {
	stats := lt.stats[id]
	delete(lt.stats, id)
	return stats
}

// RecordForage counts one food item eaten.
func (lt *LifetimeTracker) RecordForage(id components.EntityID) {
	if s := lt.stats[id]; s != nil {
		s.FoodEaten++
	}
}

// RecordMatingStarted counts a process the agent joined.
func (lt *LifetimeTracker) RecordMatingStarted(id components.EntityID) {
	if s := lt.stats[id]; s != nil {
		s.MatingsStarted++
	}
}

// RecordMatingEnded counts a finished process and its offspring.
func (lt *LifetimeTracker) RecordMatingEnded(id components.EntityID, completed bool, offspring int) {
	s := lt.stats[id]
	if s == nil {
		return
	}
	if completed {
		s.MatingsCompleted++
		s.Offspring += offspring
	} else {
		s.MatingsCancelled++
	}
}

// Count returns the number of tracked agents.
func (lt *LifetimeTracker) Count() int {
	return len(lt.stats)
}

// MaxGeneration returns the deepest generation among tracked agents.
func (lt *LifetimeTracker) MaxGeneration() uint32 {
	var g uint32
	for _, s := range lt.stats {
		g = max(g, s.Generation)
	}
	return g
}
