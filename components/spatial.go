package components

import "math"

// Position represents an entity's world position.
type Position struct {
	X, Y float32
}

// DistSq returns the squared distance to q.
func (p Position) DistSq(q Position) float32 {
	dx := q.X - p.X
	dy := q.Y - p.Y
	return dx*dx + dy*dy
}

// Dist returns the Euclidean distance to q.
func (p Position) Dist(q Position) float32 {
	return float32(math.Sqrt(float64(p.DistSq(q))))
}

// Midpoint returns the point halfway between p and q.
func (p Position) Midpoint(q Position) Position {
	return Position{X: (p.X + q.X) / 2, Y: (p.Y + q.Y) / 2}
}

// Rotation represents an entity's heading.
type Rotation struct {
	Heading float32 // radians
}
