package game

import "math"

// clampTimeMultiplier bounds tm to the supported range. NaN falls back to 1.
func clampTimeMultiplier(tm float64) float64 {
	if math.IsNaN(tm) {
		return 1
	}
	return min(max(tm, MinTimeMultiplier), MaxTimeMultiplier)
}
