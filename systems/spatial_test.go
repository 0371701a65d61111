package systems

import (
	"math"
	"math/rand"
	"slices"
	"testing"
)

func bruteForceRadius(pos map[EntityID]Vec2, origin Vec2, r float32) []EntityID {
	var ids []EntityID
	for id, p := range pos {
		if origin.DistSq(p) <= r*r {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

func TestQueryRadiusAtOrigin(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	g := NewSpatialIndex(5)
	positions := make(map[EntityID]Vec2)

	for i := 1; i <= 100; i++ {
		p := Vec2{X: rng.Float32() * 50, Y: rng.Float32() * 50}
		positions[EntityID(i)] = p
		g.Register(EntityID(i), p, KindAgent)
	}

	origin := Vec2{}
	got := g.QueryRadius(origin, 5)
	want := bruteForceRadius(positions, origin, 5)
	if !slices.Equal(got, want) {
		t.Errorf("QueryRadius(origin, 5) = %v, brute force = %v", got, want)
	}
}

func TestQueryRadiusMatchesBruteForce(t *testing.T) {
	tests := []struct {
		name     string
		cellSize float32
		count    int
		world    float32
		radius   float32
	}{
		{"dense small cells", 1, 500, 20, 3.5},
		{"sparse large radius", 5, 50, 200, 60},
		{"radius below cell", 10, 200, 100, 2},
		{"negative coordinates", 4, 300, 40, 7},
		{"zero radius", 5, 100, 10, 0},
		{"radius beyond int32 rings", 5, 60, 80, 2e10},
		{"infinite radius", 5, 60, 80, float32(math.Inf(1))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(7))
			g := NewSpatialIndex(tt.cellSize)
			positions := make(map[EntityID]Vec2)
			for i := 1; i <= tt.count; i++ {
				p := Vec2{X: rng.Float32()*tt.world - tt.world/2, Y: rng.Float32()*tt.world - tt.world/2}
				positions[EntityID(i)] = p
				g.Register(EntityID(i), p, KindAgent)
			}
			// Move a third of them so the cell bookkeeping is exercised.
			for i := 1; i <= tt.count; i += 3 {
				p := Vec2{X: rng.Float32()*tt.world - tt.world/2, Y: rng.Float32()*tt.world - tt.world/2}
				positions[EntityID(i)] = p
				g.Update(EntityID(i), p)
			}

			for q := 0; q < 20; q++ {
				origin := Vec2{X: rng.Float32()*tt.world - tt.world/2, Y: rng.Float32()*tt.world - tt.world/2}
				got := g.QueryRadius(origin, tt.radius)
				want := bruteForceRadius(positions, origin, tt.radius)
				if !slices.Equal(got, want) {
					t.Fatalf("query %d at %v: got %v, want %v", q, origin, got, want)
				}
			}
		})
	}
}

func TestQueryRadiusKindFilter(t *testing.T) {
	g := NewSpatialIndex(5)
	g.Register(1, Vec2{X: 1, Y: 1}, KindAgent)
	g.Register(2, Vec2{X: 2, Y: 1}, KindFood)
	g.Register(3, Vec2{X: 1, Y: 2}, KindFood)

	if got := g.QueryRadius(Vec2{}, 10, KindFood); !slices.Equal(got, []EntityID{2, 3}) {
		t.Errorf("food filter = %v, want [2 3]", got)
	}
	if got := g.QueryRadius(Vec2{}, 10, KindAgent); !slices.Equal(got, []EntityID{1}) {
		t.Errorf("agent filter = %v, want [1]", got)
	}
	if got := g.QueryRadius(Vec2{}, 10); len(got) != 3 {
		t.Errorf("unfiltered = %v, want 3 ids", got)
	}
}

func TestQueryEmptyGrid(t *testing.T) {
	g := NewSpatialIndex(5)
	if got := g.QueryRadius(Vec2{X: 3, Y: 3}, 100); len(got) != 0 {
		t.Errorf("empty grid returned %v", got)
	}
	if _, ok := g.FindNearest(Vec2{}, KindAny, 100); ok {
		t.Error("FindNearest on empty grid should report none")
	}
}

func TestUnregisterIdempotent(t *testing.T) {
	g := NewSpatialIndex(5)
	g.Unregister(99)

	g.Register(1, Vec2{X: 3, Y: 3}, KindAgent)
	g.Unregister(1)
	g.Unregister(1)

	if g.Len() != 0 {
		t.Errorf("Len = %d after unregister, want 0", g.Len())
	}
	if len(g.cells) != 0 {
		t.Errorf("empty cells should be dropped, have %d", len(g.cells))
	}
	if g.Update(1, Vec2{}) {
		t.Error("Update on unregistered id should return false")
	}
}

func TestUpdateSameCellKeepsCell(t *testing.T) {
	g := NewSpatialIndex(5)
	g.Register(1, Vec2{X: 1, Y: 1}, KindAgent)
	before := g.entries[1].cell

	g.Update(1, Vec2{X: 4, Y: 4})
	e := g.entries[1]
	if e.cell != before {
		t.Errorf("same-cell move changed cell %v -> %v", before, e.cell)
	}
	if e.pos != (Vec2{X: 4, Y: 4}) {
		t.Errorf("position not updated: %v", e.pos)
	}
	if _, ok := g.cells[before][1]; !ok {
		t.Error("entity missing from its recorded cell")
	}
}

func TestUpdateCrossCellMoves(t *testing.T) {
	g := NewSpatialIndex(5)
	g.Register(1, Vec2{X: 1, Y: 1}, KindAgent)
	old := g.entries[1].cell

	g.Update(1, Vec2{X: 12, Y: 1})
	e := g.entries[1]
	if e.cell == old {
		t.Fatal("cross-cell move kept old cell")
	}
	if _, ok := g.cells[old]; ok {
		t.Error("old cell should be removed once empty")
	}
	if _, ok := g.cells[e.cell][1]; !ok {
		t.Error("entity missing from new cell")
	}
}

func TestRegisterExistingIsMove(t *testing.T) {
	g := NewSpatialIndex(5)
	g.Register(1, Vec2{X: 1, Y: 1}, KindAgent)
	g.Register(1, Vec2{X: 30, Y: 30}, KindFood)

	if g.Len() != 1 {
		t.Fatalf("Len = %d, want 1", g.Len())
	}
	if got := g.QueryRadius(Vec2{X: 1, Y: 1}, 2); len(got) != 0 {
		t.Errorf("entity still found at old position: %v", got)
	}
	if k, _ := g.Kind(1); k != KindFood {
		t.Errorf("kind = %v, want food", k)
	}
}

func TestFindNearest(t *testing.T) {
	g := NewSpatialIndex(2)
	g.Register(5, Vec2{X: 3, Y: 0}, KindFood)
	g.Register(4, Vec2{X: -3, Y: 0}, KindFood)
	g.Register(6, Vec2{X: 1, Y: 0}, KindAgent)
	g.Register(7, Vec2{X: 9, Y: 9}, KindFood)

	tests := []struct {
		name      string
		kind      EntityKind
		maxRadius float32
		want      EntityID
		wantOK    bool
	}{
		{"tie broken by lower id", KindFood, 10, 4, true},
		{"kind filter", KindAgent, 10, 6, true},
		{"any kind", KindAny, 10, 6, true},
		{"out of range", KindFood, 2, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := g.FindNearest(Vec2{}, tt.kind, tt.maxRadius)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("FindNearest = (%d, %v), want (%d, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestHugeRadiusFindsEverything(t *testing.T) {
	g := NewSpatialIndex(5)
	g.Register(1, Vec2{X: 1, Y: 1}, KindAgent)
	g.Register(2, Vec2{X: 40, Y: 40}, KindAgent)

	if got := g.QueryRadius(Vec2{}, 2e10); !slices.Equal(got, []EntityID{1, 2}) {
		t.Errorf("QueryRadius = %v, want [1 2]", got)
	}
	if id, ok := g.FindNearest(Vec2{}, KindAgent, 2e10); !ok || id != 1 {
		t.Errorf("FindNearest = (%d, %v), want (1, true)", id, ok)
	}
	if got := g.QueryRadius(Vec2{}, float32(math.NaN())); got != nil {
		t.Errorf("NaN radius = %v, want nothing", got)
	}
}

func TestFindNearestMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	g := NewSpatialIndex(3)
	positions := make(map[EntityID]Vec2)
	for i := 1; i <= 400; i++ {
		p := Vec2{X: rng.Float32() * 100, Y: rng.Float32() * 100}
		positions[EntityID(i)] = p
		g.Register(EntityID(i), p, KindAgent)
	}

	for q := 0; q < 50; q++ {
		origin := Vec2{X: rng.Float32() * 100, Y: rng.Float32() * 100}
		var want EntityID
		bestSq := float32(15 * 15)
		found := false
		for id, p := range positions {
			d := origin.DistSq(p)
			if d < bestSq || (d == bestSq && id < want) {
				want, bestSq, found = id, d, true
			}
		}
		got, ok := g.FindNearest(origin, KindAgent, 15)
		if ok != found || got != want {
			t.Fatalf("query %v: got (%d,%v), want (%d,%v)", origin, got, ok, want, found)
		}
	}
}

func TestFindNearestFuncExcludesAndFilters(t *testing.T) {
	g := NewSpatialIndex(5)
	g.Register(1, Vec2{X: 0, Y: 0}, KindAgent)
	g.Register(2, Vec2{X: 1, Y: 0}, KindAgent)
	g.Register(3, Vec2{X: 2, Y: 0}, KindAgent)

	got, ok := g.FindNearestFunc(Vec2{}, KindAgent, 10, 1, func(id EntityID) bool { return id != 2 })
	if !ok || got != 3 {
		t.Errorf("FindNearestFunc = (%d,%v), want (3,true)", got, ok)
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	g := NewSpatialIndex(5)
	g.Register(1, Vec2{X: 1, Y: 1}, KindAgent)

	var snap SpatialIndex
	g.Snapshot(&snap)
	g.Update(1, Vec2{X: 40, Y: 40})
	g.Register(2, Vec2{X: 2, Y: 2}, KindAgent)

	if got := snap.QueryRadius(Vec2{X: 1, Y: 1}, 1); !slices.Equal(got, []EntityID{1}) {
		t.Errorf("snapshot saw later writes: %v", got)
	}
	if snap.Len() != 1 {
		t.Errorf("snapshot Len = %d, want 1", snap.Len())
	}
}

func TestClearEmptiesIndex(t *testing.T) {
	g := NewSpatialIndex(5)
	g.Register(1, Vec2{X: 1, Y: 1}, KindAgent)
	g.Register(2, Vec2{X: 9, Y: 9}, KindFood)

	g.Clear()
	if g.Len() != 0 || g.Contains(1) {
		t.Fatalf("index not empty after Clear: len %d", g.Len())
	}
	if got := g.QueryRadius(Vec2{X: 5, Y: 5}, 20); len(got) != 0 {
		t.Errorf("query after Clear = %v", got)
	}
	g.Register(1, Vec2{X: 1, Y: 1}, KindAgent)
	if !g.Contains(1) {
		t.Error("re-register after Clear failed")
	}
}
