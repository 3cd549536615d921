// Package plant simulates an e-puck style differential-drive robot.
//
// DiffDrive is a dynamo.System over the state [x, y, θ, φL, φR] where φ are
// the wheel rotation angles in radians, driven by wheel angular velocities.
// Encoders and Motors convert between the simulated wheels and the raw
// units the robot firmware exposes.
package plant
