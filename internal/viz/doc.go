// Package viz renders a mission live in the terminal.
//
// [Model] is a Bubble Tea program that steps a mission.Runner on every
// tick and draws the odometry track, the true path and the goals on a
// Braille [Canvas].
//
// # Key Bindings
//
//	Space - Pause/Resume
//	R     - Restart the mission
//	+/-   - Cycles per frame
//	T     - Cycle color themes
//	?     - Show help overlay
//	Q     - Quit
package viz
