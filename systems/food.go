package systems

import (
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/swarm/config"
)

// placementAttempts bounds rejection sampling per item.
const placementAttempts = 32

// FoodItem is an edible resting in the world.
type FoodItem struct {
	ID     EntityID
	Pos    Vec2
	Energy float32 // fraction of max energy restored
}

// FoodField places edibles along a noise density field and regrows eaten ones.
// Items live in the shared spatial index under KindFood.
type FoodField struct {
	cfg    config.FoodConfig
	width  float32
	height float32
	grid   *SpatialIndex
	ids    *IDAllocator
	noise  opensimplex.Noise
	rng    *rand.Rand

	items  map[EntityID]FoodItem
	regrow []float64 // sim times at which an item is due to reappear

	eaten   int
	regrown int
}

// NewFoodField creates an empty field. Call Populate to place items.
func NewFoodField(cfg config.FoodConfig, world config.WorldConfig, grid *SpatialIndex, ids *IDAllocator, seed int64) *FoodField {
	return &FoodField{
		cfg:    cfg,
		width:  float32(world.Width),
		height: float32(world.Height),
		grid:   grid,
		ids:    ids,
		noise:  opensimplex.NewNormalized(seed),
		rng:    rand.New(rand.NewSource(seed)),
		items:  make(map[EntityID]FoodItem, cfg.Count),
	}
}

// Populate places items until the configured count is reached.
// Returns the number placed.
func (f *FoodField) Populate() int {
	placed := 0
	for len(f.items) < f.cfg.Count {
		f.spawn()
		placed++
	}
	return placed
}

// Density returns the normalized octave noise value at p in [0,1].
func (f *FoodField) Density(p Vec2) float64 {
	octaves := f.cfg.Octaves
	if octaves < 1 {
		octaves = 1
	}
	total, amplitude, maxVal := 0.0, 1.0, 0.0
	frequency := f.cfg.NoiseScale
	for i := 0; i < octaves; i++ {
		total += f.noise.Eval2(float64(p.X)*frequency, float64(p.Y)*frequency) * amplitude
		maxVal += amplitude
		amplitude *= 0.5
		frequency *= 2
	}
	return total / maxVal
}

// samplePosition picks a point weighted toward dense regions.
// After placementAttempts rejections the last candidate is used.
func (f *FoodField) samplePosition() Vec2 {
	var p Vec2
	for i := 0; i < placementAttempts; i++ {
		p = Vec2{X: f.rng.Float32() * f.width, Y: f.rng.Float32() * f.height}
		if f.Density(p) >= f.cfg.DensityThreshold {
			return p
		}
	}
	return p
}

func (f *FoodField) spawn() FoodItem {
	item := FoodItem{
		ID:     f.ids.Next(),
		Pos:    f.samplePosition(),
		Energy: float32(f.cfg.Energy),
	}
	f.items[item.ID] = item
	f.grid.Register(item.ID, item.Pos, KindFood)
	return item
}

// Item returns a live food item.
func (f *FoodField) Item(id EntityID) (FoodItem, bool) {
	item, ok := f.items[id]
	return item, ok
}

// Consume removes an item and schedules its replacement.
// Returns the energy fraction it restores.
func (f *FoodField) Consume(id EntityID, simNow float64) (float32, bool) {
	item, ok := f.items[id]
	if !ok {
		return 0, false
	}
	delete(f.items, id)
	f.grid.Unregister(id)
	f.regrow = append(f.regrow, simNow+f.cfg.RegrowDelay)
	f.eaten++
	return item.Energy, true
}

// Advance re-places every item whose regrowth time has passed.
// Returns the number regrown.
func (f *FoodField) Advance(simNow float64) int {
	n := 0
	pending := f.regrow[:0]
	for _, due := range f.regrow {
		if due <= simNow {
			f.spawn()
			n++
			continue
		}
		pending = append(pending, due)
	}
	f.regrow = pending
	f.regrown += n
	return n
}

// Count returns the number of live items.
func (f *FoodField) Count() int {
	return len(f.items)
}

// Pending returns the number of items waiting to regrow.
func (f *FoodField) Pending() int {
	return len(f.regrow)
}

// Totals returns cumulative eaten and regrown counts.
func (f *FoodField) Totals() (eaten, regrown int) {
	return f.eaten, f.regrown
}
