// Package goal drives a differential-drive robot to a target pose.
//
// The [Controller] uses the polar posture law: with ρ the distance to the
// goal, α the bearing of the goal relative to the current heading and
// β = -θ - α,
//
//	v = Kρ·ρ
//	ω = Kα·α + Kβ·β
//
// which converges for Kρ > 0, Kβ < 0 < Kα - Kρ. The linear and angular
// speeds are scaled to integer wheel commands, small commands are clamped
// to zero, and the goal counts as reached once both commands are zero or
// ρ falls below the arrival radius. The final heading is not part of the
// arrival test.
//
// A Controller reads the pose from its [PoseSource] at every step and is
// not safe for concurrent use.
package goal
