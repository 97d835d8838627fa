package utils

import (
	"math"

	"github.com/samber/lo"
)

// RadToDeg converts radians to degrees.
func RadToDeg(radians float64) float64 {
	return radians * 180 / math.Pi
}

// IsFinite is false for NaN and both infinities.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ClampInt limits n to [low, high].
func ClampInt(n, low, high int) int {
	return lo.Clamp(n, low, high)
}

// ClampFloat64 limits n to [low, high]. NaN is returned as low, where lo.Clamp would pass it
// through.
func ClampFloat64(n, low, high float64) float64 {
	if math.IsNaN(n) {
		return low
	}
	return lo.Clamp(n, low, high)
}
