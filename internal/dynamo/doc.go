// Package dynamo provides the numerical primitives shared by the robot
// simulator and the control loop.
//
// The package defines the vector and interface types used to integrate a
// continuous-time plant between control cycles:
//
//   - [State]: vector representing plant state
//   - [System]: interface for ODE systems (dX/dt = f(X, u, t))
//   - [Integrator]: numerical stepper interface
//   - [AdaptiveIntegrator]: stepper with error control
//
// # Example
//
//	geom := plant.MatchCalibration(odometry.DefaultCalibration(), plant.DefaultEncoderUnit)
//	dyn, _ := plant.NewDiffDrive(geom)
//	integ := integrators.NewRK4()
//	x = integ.Step(dyn, x, dynamo.Control{wl, wr}, t, dt)
//
// # Thread Safety
//
// Integrators keep scratch buffers and are NOT safe for concurrent use.
// Give each simulated robot its own instance.
package dynamo
