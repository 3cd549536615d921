package goal

import "math"

// NormalizeAngle wraps a into [-π, π], leaving both ends as they are.
// Unlike the odometry heading wrap it loops, so any finite input is
// accepted.
func NormalizeAngle(a float64) float64 {
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	return a
}
