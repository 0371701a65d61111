package systems

import (
	"testing"

	"github.com/pthm-cable/swarm/config"
)

func newTestFood(t *testing.T, count int) (*FoodField, *SpatialIndex) {
	t.Helper()
	cfg := config.Defaults()
	cfg.Food.Count = count
	grid := NewSpatialIndex(float32(cfg.Spatial.CellSize))
	f := NewFoodField(cfg.Food, cfg.World, grid, &IDAllocator{}, 11)
	return f, grid
}

func TestFoodPopulate(t *testing.T) {
	f, grid := newTestFood(t, 50)
	if n := f.Populate(); n != 50 {
		t.Fatalf("Populate placed %d, want 50", n)
	}
	if f.Count() != 50 || grid.Len() != 50 {
		t.Errorf("count=%d grid=%d, want 50/50", f.Count(), grid.Len())
	}
	for id := EntityID(1); id <= 50; id++ {
		item, ok := f.Item(id)
		if !ok {
			t.Fatalf("item %d missing", id)
		}
		if item.Pos.X < 0 || item.Pos.X >= 200 || item.Pos.Y < 0 || item.Pos.Y >= 200 {
			t.Errorf("item %d out of bounds: %v", id, item.Pos)
		}
		if k, _ := grid.Kind(id); k != KindFood {
			t.Errorf("item %d indexed as %v", id, k)
		}
	}
}

func TestFoodConsumeAndRegrow(t *testing.T) {
	f, grid := newTestFood(t, 3)
	f.Populate()

	energy, ok := f.Consume(2, 10)
	if !ok || energy <= 0 {
		t.Fatalf("Consume = (%v,%v), want positive energy", energy, ok)
	}
	if grid.Contains(2) {
		t.Error("eaten food still indexed")
	}
	if _, ok := f.Consume(2, 10); ok {
		t.Error("second Consume of the same item should fail")
	}

	delay := config.Defaults().Food.RegrowDelay
	if n := f.Advance(10 + delay/2); n != 0 {
		t.Errorf("regrew %d items before the delay", n)
	}
	if n := f.Advance(10 + delay); n != 1 {
		t.Errorf("regrew %d items, want 1", n)
	}
	if f.Count() != 3 || f.Pending() != 0 {
		t.Errorf("count=%d pending=%d, want 3/0", f.Count(), f.Pending())
	}
	eaten, regrown := f.Totals()
	if eaten != 1 || regrown != 1 {
		t.Errorf("totals = %d/%d, want 1/1", eaten, regrown)
	}
}

func TestFoodDensityRange(t *testing.T) {
	f, _ := newTestFood(t, 0)
	for x := float32(0); x < 200; x += 17 {
		for y := float32(0); y < 200; y += 13 {
			d := f.Density(Vec2{X: x, Y: y})
			if d < 0 || d > 1 {
				t.Fatalf("density %v at (%v,%v) outside [0,1]", d, x, y)
			}
		}
	}
}
