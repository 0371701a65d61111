// Package systems provides the simulation core: spatial index, behavior
// state machine, adaptive scheduler and mating coordinator.
package systems

import (
	"math"
	"slices"

	"github.com/pthm-cable/swarm/components"
)

// EntityID identifies an agent or food item. Zero is never allocated.
type EntityID = components.EntityID

// Vec2 is a world position.
type Vec2 = components.Position

// EntityKind distinguishes what an indexed entity is.
type EntityKind uint8

const (
	KindAgent EntityKind = iota
	KindFood

	// KindAny matches every kind in queries.
	KindAny EntityKind = 0xFF
)

// DefaultCellSize is used when a non-positive cell size is requested.
const DefaultCellSize = 5

func (k EntityKind) String() string {
	switch k {
	case KindAgent:
		return "agent"
	case KindFood:
		return "food"
	case KindAny:
		return "any"
	default:
		return "unknown"
	}
}

// Neighbor holds a nearby entity with precomputed spatial data.
type Neighbor struct {
	ID     EntityID
	Kind   EntityKind
	DX, DY float32 // Delta from query origin
	DistSq float32 // Squared distance (avoid sqrt in hot path)
}

type cellKey struct {
	cx, cy int32
}

type spatialEntry struct {
	cell cellKey
	pos  Vec2
	kind EntityKind
}

// SpatialIndex is a uniform hash grid mapping positions to entity ids.
// It is not safe for concurrent mutation; workers read from a Snapshot copy.
type SpatialIndex struct {
	cellSize float32
	cells    map[cellKey]map[EntityID]struct{}
	entries  map[EntityID]spatialEntry
}

// NewSpatialIndex creates an empty index with the given cell size.
func NewSpatialIndex(cellSize float32) *SpatialIndex {
	if cellSize <= 0 || math.IsNaN(float64(cellSize)) {
		cellSize = DefaultCellSize
	}
	return &SpatialIndex{
		cellSize: cellSize,
		cells:    make(map[cellKey]map[EntityID]struct{}),
		entries:  make(map[EntityID]spatialEntry),
	}
}

// CellSize returns the grid cell edge length.
func (g *SpatialIndex) CellSize() float32 {
	return g.cellSize
}

// Len returns the number of indexed entities.
func (g *SpatialIndex) Len() int {
	return len(g.entries)
}

func (g *SpatialIndex) keyFor(p Vec2) cellKey {
	return cellKey{
		cx: int32(math.Floor(float64(p.X / g.cellSize))),
		cy: int32(math.Floor(float64(p.Y / g.cellSize))),
	}
}

func (g *SpatialIndex) addToCell(key cellKey, id EntityID) {
	set, ok := g.cells[key]
	if !ok {
		set = make(map[EntityID]struct{}, 4)
		g.cells[key] = set
	}
	set[id] = struct{}{}
}

func (g *SpatialIndex) removeFromCell(key cellKey, id EntityID) {
	set, ok := g.cells[key]
	if !ok {
		return
	}
	delete(set, id)
	if len(set) == 0 {
		delete(g.cells, key)
	}
}

// Register inserts an entity. Registering an id that is already present
// is treated as a move, and the kind is replaced.
func (g *SpatialIndex) Register(id EntityID, pos Vec2, kind EntityKind) {
	if e, ok := g.entries[id]; ok {
		e.kind = kind
		g.entries[id] = e
		g.Update(id, pos)
		return
	}
	key := g.keyFor(pos)
	g.addToCell(key, id)
	g.entries[id] = spatialEntry{cell: key, pos: pos, kind: kind}
}

// Update moves an entity. Same-cell moves only record the new position.
// Returns false if the id is not registered.
func (g *SpatialIndex) Update(id EntityID, pos Vec2) bool {
	e, ok := g.entries[id]
	if !ok {
		return false
	}
	key := g.keyFor(pos)
	if key != e.cell {
		g.removeFromCell(e.cell, id)
		g.addToCell(key, id)
		e.cell = key
	}
	e.pos = pos
	g.entries[id] = e
	return true
}

// Unregister removes an entity. Absent ids are ignored.
func (g *SpatialIndex) Unregister(id EntityID) {
	e, ok := g.entries[id]
	if !ok {
		return
	}
	g.removeFromCell(e.cell, id)
	delete(g.entries, id)
}

// Position returns the last recorded position of id.
func (g *SpatialIndex) Position(id EntityID) (Vec2, bool) {
	e, ok := g.entries[id]
	return e.pos, ok
}

// Kind returns the kind of id.
func (g *SpatialIndex) Kind(id EntityID) (EntityKind, bool) {
	e, ok := g.entries[id]
	return e.kind, ok
}

// Contains reports whether id is registered.
func (g *SpatialIndex) Contains(id EntityID) bool {
	_, ok := g.entries[id]
	return ok
}

// Clear removes all entities from the grid.
func (g *SpatialIndex) Clear() {
	clear(g.cells)
	clear(g.entries)
}

// Snapshot copies the full index into dst, replacing its contents.
// The copy shares no maps with g.
func (g *SpatialIndex) Snapshot(dst *SpatialIndex) {
	dst.cellSize = g.cellSize
	if dst.cells == nil {
		dst.cells = make(map[cellKey]map[EntityID]struct{}, len(g.cells))
	} else {
		clear(dst.cells)
	}
	if dst.entries == nil {
		dst.entries = make(map[EntityID]spatialEntry, len(g.entries))
	} else {
		clear(dst.entries)
	}
	for id, e := range g.entries {
		dst.entries[id] = e
	}
	for key, set := range g.cells {
		cp := make(map[EntityID]struct{}, len(set))
		for id := range set {
			cp[id] = struct{}{}
		}
		dst.cells[key] = cp
	}
}

func matchKind(want, got EntityKind) bool {
	return want == KindAny || want == got
}

// QueryRadiusInto appends every entity of the given kind within radius of pos
// to dst. exclude is skipped (pass 0 to exclude nothing). Order is unspecified.
func (g *SpatialIndex) QueryRadiusInto(dst []Neighbor, pos Vec2, radius float32, exclude EntityID, kind EntityKind) []Neighbor {
	if !(radius >= 0) || len(g.entries) == 0 {
		return dst
	}
	center := g.keyFor(pos)
	radiusSq := radius * radius

	// Sparse grids are cheaper to scan by occupied cell than by ring.
	wide, sparse := g.ringSpan(radius)
	if sparse {
		for key, set := range g.cells {
			if !withinRing(key, center, wide) {
				continue
			}
			dst = g.collect(dst, set, pos, radiusSq, exclude, kind)
		}
		return dst
	}
	ring := int32(wide)

	for dx := -ring; dx <= ring; dx++ {
		for dy := -ring; dy <= ring; dy++ {
			set, ok := g.cells[cellKey{center.cx + dx, center.cy + dy}]
			if !ok {
				continue
			}
			dst = g.collect(dst, set, pos, radiusSq, exclude, kind)
		}
	}
	return dst
}

func (g *SpatialIndex) collect(dst []Neighbor, set map[EntityID]struct{}, pos Vec2, radiusSq float32, exclude EntityID, kind EntityKind) []Neighbor {
	for id := range set {
		if id == exclude {
			continue
		}
		e := g.entries[id]
		if !matchKind(kind, e.kind) {
			continue
		}
		dx := e.pos.X - pos.X
		dy := e.pos.Y - pos.Y
		distSq := dx*dx + dy*dy
		if distSq <= radiusSq {
			dst = append(dst, Neighbor{ID: id, Kind: e.kind, DX: dx, DY: dy, DistSq: distSq})
		}
	}
	return dst
}

// QueryRadius returns the ids within radius of pos, sorted ascending.
// An optional kind restricts the result; with none, every kind matches.
func (g *SpatialIndex) QueryRadius(pos Vec2, radius float32, filter ...EntityKind) []EntityID {
	kind := KindAny
	if len(filter) > 0 {
		kind = filter[0]
	}
	neighbors := g.QueryRadiusInto(nil, pos, radius, 0, kind)
	if len(neighbors) == 0 {
		return nil
	}
	ids := make([]EntityID, len(neighbors))
	for i, n := range neighbors {
		ids[i] = n.ID
	}
	slices.Sort(ids)
	return ids
}

// FindNearest returns the closest entity of kind within maxRadius of pos.
// Ties are broken by the lower id.
func (g *SpatialIndex) FindNearest(pos Vec2, kind EntityKind, maxRadius float32) (EntityID, bool) {
	return g.FindNearestFunc(pos, kind, maxRadius, 0, nil)
}

// FindNearestFunc is FindNearest with an excluded id and an optional
// acceptance predicate applied to each candidate.
func (g *SpatialIndex) FindNearestFunc(pos Vec2, kind EntityKind, maxRadius float32, exclude EntityID, accept func(EntityID) bool) (EntityID, bool) {
	if !(maxRadius >= 0) || len(g.entries) == 0 {
		return 0, false
	}
	var (
		best   EntityID
		bestSq = maxRadius * maxRadius
		found  bool
	)
	consider := func(set map[EntityID]struct{}) {
		for id := range set {
			if id == exclude {
				continue
			}
			e := g.entries[id]
			if !matchKind(kind, e.kind) {
				continue
			}
			d := pos.DistSq(e.pos)
			if d > bestSq || (found && d == bestSq && id > best) {
				continue
			}
			if accept != nil && !accept(id) {
				continue
			}
			best, bestSq, found = id, d, true
		}
	}

	center := g.keyFor(pos)
	wide, sparse := g.ringSpan(maxRadius)
	if sparse {
		for key, set := range g.cells {
			if !withinRing(key, center, wide) {
				continue
			}
			consider(set)
		}
		return best, found
	}
	maxRing := int32(wide)

	for ring := int32(0); ring <= maxRing; ring++ {
		// Anything in ring+1 is at least ring*cellSize away.
		if found {
			reach := float32(ring-1) * g.cellSize
			if reach > 0 && bestSq < reach*reach {
				break
			}
		}
		g.visitRing(center, ring, consider)
	}
	return best, found
}

// visitRing calls fn for each occupied cell at Chebyshev distance ring from center.
func (g *SpatialIndex) visitRing(center cellKey, ring int32, fn func(map[EntityID]struct{})) {
	if ring == 0 {
		if set, ok := g.cells[center]; ok {
			fn(set)
		}
		return
	}
	for dx := -ring; dx <= ring; dx++ {
		for _, dy := range [2]int32{-ring, ring} {
			if set, ok := g.cells[cellKey{center.cx + dx, center.cy + dy}]; ok {
				fn(set)
			}
		}
	}
	for dy := -ring + 1; dy <= ring-1; dy++ {
		for _, dx := range [2]int32{-ring, ring} {
			if set, ok := g.cells[cellKey{center.cx + dx, center.cy + dy}]; ok {
				fn(set)
			}
		}
	}
}

// ringCap bounds ring counts; it exceeds the distance between any two
// int32 cell coordinates.
const ringCap = int64(1) << 33

// ringSpan returns the number of rings covering radius and whether scanning
// the occupied cells is cheaper than walking every ring cell.
func (g *SpatialIndex) ringSpan(radius float32) (int64, bool) {
	r := math.Ceil(float64(radius) / float64(g.cellSize))
	if r >= float64(ringCap) {
		return ringCap, true
	}
	ring := int64(r)
	side := float64(2*ring + 1)
	return ring, side*side > float64(len(g.cells))
}

func withinRing(key, center cellKey, ring int64) bool {
	return abs64(int64(key.cx)-int64(center.cx)) <= ring &&
		abs64(int64(key.cy)-int64(center.cy)) <= ring
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
