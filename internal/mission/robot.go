package mission

import (
	"context"

	"github.com/pkg/errors"

	"github.com/san-kum/diffdrive/internal/dynamo"
	"github.com/san-kum/diffdrive/internal/odometry"
	"github.com/san-kum/diffdrive/internal/plant"
)

// Robot is the hardware boundary of the control loop.
type Robot interface {
	// Encoders returns the raw cumulative encoder readings.
	Encoders(ctx context.Context) (left, right float64, err error)
	// SetSpeed applies wheel commands in actuator units.
	SetSpeed(ctx context.Context, left, right int) error
	// Advance yields to the environment for one control period.
	Advance(ctx context.Context) error
	// Stop zeroes both wheels.
	Stop(ctx context.Context) error
}

// TruthSource is implemented by robots that know their real pose, such as
// simulators.
type TruthSource interface {
	TruePose() odometry.Pose
}

// SimConfig configures the simulated robot's time stepping.
type SimConfig struct {
	Dt        float64
	Tolerance float64 // adaptive stepping when positive and supported
}

// SimRobot drives a plant.DiffDrive through an integrator.
type SimRobot struct {
	dyn        *plant.DiffDrive
	integrator dynamo.Integrator
	encoders   *plant.Encoders
	motors     *plant.Motors
	cfg        SimConfig

	x     dynamo.State
	t     float64
	steps int
}

func NewSimRobot(dyn *plant.DiffDrive, integrator dynamo.Integrator, params plant.Params, start odometry.Pose, cfg SimConfig) (*SimRobot, error) {
	if !(cfg.Dt > 0) {
		return nil, errors.Errorf("sim: dt must be positive, got %v", cfg.Dt)
	}
	if !(params.EncoderUnit > 0) || !(params.SpeedUnit > 0) {
		return nil, errors.Wrap(dynamo.ErrParameterBounds, "sim: encoder and speed units must be positive")
	}
	return &SimRobot{
		dyn:        dyn,
		integrator: integrator,
		encoders:   plant.NewEncoders(params.EncoderUnit),
		motors:     plant.NewMotors(params.SpeedUnit),
		cfg:        cfg,
		x:          dyn.InitialState(start),
	}, nil
}

func (r *SimRobot) Encoders(ctx context.Context) (float64, float64, error) {
	l, rr := r.encoders.Read(r.x)
	return l, rr, nil
}

func (r *SimRobot) SetSpeed(ctx context.Context, left, right int) error {
	r.motors.Set(left, right)
	return nil
}

func (r *SimRobot) Stop(ctx context.Context) error {
	r.motors.Reset()
	return nil
}

// Advance integrates the plant over one control period with the current
// wheel commands held constant.
func (r *SimRobot) Advance(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	u := r.motors.Control()
	adaptive, ok := r.integrator.(dynamo.AdaptiveIntegrator)
	if ok && r.cfg.Tolerance > 0 {
		if err := r.advanceAdaptive(adaptive, u); err != nil {
			return err
		}
	} else {
		r.x = r.integrator.Step(r.dyn, r.x, u, r.t, r.cfg.Dt)
	}

	if !r.x.IsValid() {
		return &dynamo.SimulationError{Step: r.steps, Time: r.t, State: r.x.Clone(), Wrapped: dynamo.ErrInvalidState}
	}
	r.t += r.cfg.Dt
	r.steps++
	return nil
}

func (r *SimRobot) advanceAdaptive(adaptive dynamo.AdaptiveIntegrator, u dynamo.Control) error {
	x, _, err := adaptive.StepAdaptive(r.dyn, r.x, u, r.t, r.cfg.Dt, r.cfg.Tolerance)
	if err != nil {
		return &dynamo.SimulationError{Step: r.steps, Time: r.t, State: r.x.Clone(), Wrapped: err}
	}
	r.x = x
	return nil
}

// TruePose is the plant's real pose.
func (r *SimRobot) TruePose() odometry.Pose { return plant.Pose(r.x) }

func (r *SimRobot) Time() float64 { return r.t }

// Writes counts motor commands actually forwarded.
func (r *SimRobot) Writes() int { return r.motors.Writes() }
