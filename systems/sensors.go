package systems

// GridSensor answers proximity questions from a spatial index.
// Workers get a GridSensor over a snapshot copy; the tick thread uses the live index.
type GridSensor struct {
	Grid  *SpatialIndex
	Range float32

	// Eligible filters mate candidates before the caller's accept func.
	// Nil accepts any agent.
	Eligible func(EntityID) bool
}

// DetectionRange returns the sensing radius.
func (s *GridSensor) DetectionRange() float32 {
	return s.Range
}

// NearestEdible returns the closest food item within range.
func (s *GridSensor) NearestEdible(from Vec2) (EntityID, bool) {
	if s.Grid == nil {
		return 0, false
	}
	return s.Grid.FindNearest(from, KindFood, s.Range)
}

// NearestPotentialMate returns the closest other agent within range passing
// both Eligible and accept.
func (s *GridSensor) NearestPotentialMate(self EntityID, from Vec2, accept func(EntityID) bool) (EntityID, bool) {
	if s.Grid == nil {
		return 0, false
	}
	return s.Grid.FindNearestFunc(from, KindAgent, s.Range, self, func(id EntityID) bool {
		if s.Eligible != nil && !s.Eligible(id) {
			return false
		}
		return accept == nil || accept(id)
	})
}

// DistanceTo returns the distance from a point to an indexed entity.
func (s *GridSensor) DistanceTo(from Vec2, id EntityID) (float32, bool) {
	if s.Grid == nil {
		return 0, false
	}
	p, ok := s.Grid.Position(id)
	if !ok {
		return 0, false
	}
	return from.Dist(p), true
}
