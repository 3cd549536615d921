// Package odometry estimates the planar pose of a differential-drive robot
// from incremental wheel-encoder readings.
//
// A [Track] holds the running pose estimate and the previous raw encoder
// positions. Each call to [Track.Integrate] converts the per-wheel tick
// deltas into distances with the [Calibration] factors and advances the
// pose using the midpoint heading:
//
//	θm = θ + Δθ/2
//	Δx = (Δl + Δr)/2 · cos θm
//	Δy = (Δl + Δr)/2 · sin θm
//
// The heading is kept in (-π, π] with a single ±2π correction per step.
//
// A Track is not safe for concurrent use.
package odometry
