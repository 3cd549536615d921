// Package mission runs the control loop that ties odometry, the goal
// controller and a robot together.
//
// Each cycle reads the encoders, integrates the pose, steps the
// controller, applies the wheel commands and yields to the robot's
// environment. A mission is a sequence of independent goals.
package mission
