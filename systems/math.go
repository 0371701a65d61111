package systems

import "math"

// clampFloat clamps a float32 value between min and max.
func clampFloat(v, minVal, maxVal float32) float32 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

// clamp64 clamps a float64 value between min and max.
func clamp64(v, minVal, maxVal float64) float64 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}

// clamp01 clamps a float32 value to the [0, 1] range.
func clamp01(v float32) float32 {
	return clampFloat(v, 0, 1)
}

// normalizeHeading wraps a heading to [0, 2*Pi).
func normalizeHeading(h float32) float32 {
	const twoPi = 2 * math.Pi
	h = float32(math.Mod(float64(h), twoPi))
	if h < 0 {
		h += twoPi
	}
	return h
}

// moveToward steps from p toward target by at most step, stopping short by
// standoff. Returns the new position and the distance travelled.
func moveToward(p, target Vec2, step, standoff float32) (Vec2, float32) {
	dx := target.X - p.X
	dy := target.Y - p.Y
	dist := float32(math.Sqrt(float64(dx*dx + dy*dy)))
	travel := dist - standoff
	if travel <= 0 || dist == 0 {
		return p, 0
	}
	if travel > step {
		travel = step
	}
	return Vec2{X: p.X + dx/dist*travel, Y: p.Y + dy/dist*travel}, travel
}

// Bounds is the world rectangle [0,Width) x [0,Height).
type Bounds struct {
	Width, Height float32
}

// Clamp keeps p inside the bounds, returning whether it had to move.
func (b Bounds) Clamp(p Vec2) (Vec2, bool) {
	const margin = 1e-3
	moved := false
	if p.X < 0 {
		p.X, moved = 0, true
	} else if p.X >= b.Width {
		p.X, moved = b.Width-margin, true
	}
	if p.Y < 0 {
		p.Y, moved = 0, true
	} else if p.Y >= b.Height {
		p.Y, moved = b.Height-margin, true
	}
	return p, moved
}
