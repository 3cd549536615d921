package mission

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/san-kum/diffdrive/internal/goal"
	"github.com/san-kum/diffdrive/internal/odometry"
)

// Config holds the constant parameters of a Runner.
type Config struct {
	Calibration odometry.Calibration
	Tuning      goal.Tuning
	Start       odometry.Pose

	// MaxSteps bounds the cycles spent on one goal. Zero means unbounded.
	MaxSteps int

	// Period is the control period in seconds, used to timestamp cycles.
	Period float64
}

// DefaultConfig starts at the origin facing +y, like the e-puck demo.
func DefaultConfig() Config {
	return Config{
		Calibration: odometry.DefaultCalibration(),
		Tuning:      goal.DefaultTuning(),
		Start:       odometry.Pose{Theta: math.Pi / 2},
		MaxSteps:    5000,
		Period:      0.032,
	}
}

// Cycle is one pass of the control loop.
type Cycle struct {
	Episode int           `json:"episode"`
	Step    int           `json:"step"`
	Time    float64       `json:"time"`
	Goal    goal.Target   `json:"goal"`
	Pose    odometry.Pose `json:"pose"`
	// Truth is the real pose when the robot reports one, else Pose.
	Truth   odometry.Pose `json:"truth"`
	Rho     float64       `json:"rho"`
	Command goal.Command  `json:"command"`
}

type Observer interface {
	OnCycle(c Cycle)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Cycle)

func (f ObserverFunc) OnCycle(c Cycle) { f(c) }

// Metric accumulates a scalar over the cycles of a run.
type Metric interface {
	Name() string
	Observe(c Cycle)
	Value() float64
	Reset()
}

type Episode struct {
	Goal    goal.Target   `json:"goal"`
	Steps   int           `json:"steps"`
	Arrived bool          `json:"arrived"`
	Final   odometry.Pose `json:"final"`
	Cycles  []Cycle       `json:"-"`
}

type Result struct {
	Episodes []Episode          `json:"episodes"`
	Metrics  map[string]float64 `json:"metrics"`
}

// Cycles flattens the cycles of every episode.
func (r *Result) Cycles() []Cycle {
	var out []Cycle
	for _, ep := range r.Episodes {
		out = append(out, ep.Cycles...)
	}
	return out
}

// Runner drives a Robot toward goals with an odometry track and a goal
// controller. It is not safe for concurrent use.
type Runner struct {
	robot  Robot
	cfg    Config
	logger *zap.Logger

	track *odometry.Track
	ctrl  *goal.Controller

	observers []Observer
	metrics   []Metric

	episode int
	cycles  int
}

// New creates a runner. A nil logger discards output.
func New(robot Robot, cfg Config, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{robot: robot, cfg: cfg, logger: logger}
}

func (r *Runner) AddObserver(o Observer) { r.observers = append(r.observers, o) }
func (r *Runner) AddMetric(m Metric)     { r.metrics = append(r.metrics, m) }

// Init reads the first encoder values and places the estimate at the
// configured start pose.
func (r *Runner) Init(ctx context.Context) error {
	left, right, err := r.robot.Encoders(ctx)
	if err != nil {
		return errors.Wrap(err, "reading initial encoders")
	}
	r.track = odometry.NewTrack(r.cfg.Calibration, left, right)
	r.track.SetPose(r.cfg.Start)
	r.ctrl = goal.New(r.track, r.cfg.Tuning)
	r.episode = 0
	r.cycles = 0
	for _, m := range r.metrics {
		m.Reset()
	}
	return nil
}

// Pose is the current odometry estimate.
func (r *Runner) Pose() odometry.Pose {
	if r.track == nil {
		return r.cfg.Start
	}
	return r.track.Pose()
}

// Begin sets a new goal without running any cycle.
func (r *Runner) Begin(target goal.Target) error {
	if r.ctrl == nil {
		return ErrNotInitialized
	}
	if !finite(target.X) || !finite(target.Y) || !finite(target.Theta) {
		return errors.Wrapf(ErrInvalidGoal, "(%v, %v, %v)", target.X, target.Y, target.Theta)
	}
	r.episode++
	r.ctrl.SetGoal(target.X, target.Y, target.Theta)
	r.logger.Info("goto",
		zap.Float64("x", target.X),
		zap.Float64("y", target.Y),
		zap.Float64("theta", target.Theta))
	return nil
}

// Cycle runs one pass of read, integrate, step, apply and advance.
func (r *Runner) Cycle(ctx context.Context) (Cycle, error) {
	if r.ctrl == nil {
		return Cycle{}, ErrNotInitialized
	}

	left, right, err := r.robot.Encoders(ctx)
	if err != nil {
		return Cycle{}, errors.Wrap(err, "reading encoders")
	}
	pose := r.track.Integrate(left, right)
	cmd := r.ctrl.Step()

	if err := r.robot.SetSpeed(ctx, cmd.Left, cmd.Right); err != nil {
		return Cycle{}, errors.Wrap(err, "setting speed")
	}

	c := Cycle{
		Episode: r.episode,
		Step:    r.cycles,
		Time:    float64(r.cycles) * r.cfg.Period,
		Goal:    r.ctrl.Goal(),
		Pose:    pose,
		Truth:   pose,
		Rho:     r.ctrl.Distance(),
		Command: cmd,
	}
	if ts, ok := r.robot.(TruthSource); ok {
		c.Truth = ts.TruePose()
	}

	r.logger.Debug("cycle",
		zap.Int("step", c.Step),
		zap.Float64("rho", c.Rho),
		zap.Int("left", cmd.Left),
		zap.Int("right", cmd.Right))

	for _, m := range r.metrics {
		m.Observe(c)
	}
	for _, o := range r.observers {
		o.OnCycle(c)
	}

	if err := r.robot.Advance(ctx); err != nil {
		return c, errors.Wrap(err, "advancing robot")
	}
	r.cycles++
	return c, nil
}

// GoTo drives toward target until arrival, cancellation or the step limit.
func (r *Runner) GoTo(ctx context.Context, target goal.Target) (Episode, error) {
	ep := Episode{Goal: target}
	if err := r.Begin(target); err != nil {
		return ep, err
	}

	for !r.ctrl.AtGoal() {
		if err := ctx.Err(); err != nil {
			ep.Final = r.track.Pose()
			return ep, err
		}
		if r.cfg.MaxSteps > 0 && ep.Steps >= r.cfg.MaxSteps {
			ep.Final = r.track.Pose()
			r.logger.Warn("step limit reached",
				zap.Int("steps", ep.Steps),
				zap.Float64("rho", r.ctrl.Distance()))
			return ep, errors.Wrapf(ErrMaxSteps, "after %d steps", ep.Steps)
		}

		c, err := r.Cycle(ctx)
		if err != nil {
			ep.Final = r.track.Pose()
			return ep, err
		}
		ep.Cycles = append(ep.Cycles, c)
		ep.Steps++
	}

	ep.Arrived = true
	ep.Final = r.track.Pose()
	r.logger.Info("current position",
		zap.Float64("x", ep.Final.X),
		zap.Float64("y", ep.Final.Y),
		zap.Float64("theta", ep.Final.Theta),
		zap.Int("steps", ep.Steps))
	return ep, nil
}

// Run initializes the runner and visits goals in order with the motors
// stopped before and after. It returns the episodes completed so far
// together with the first error.
func (r *Runner) Run(ctx context.Context, goals []goal.Target) (*Result, error) {
	result := &Result{Metrics: make(map[string]float64)}

	if err := r.Init(ctx); err != nil {
		return result, err
	}
	if err := r.robot.Stop(ctx); err != nil {
		return result, errors.Wrap(err, "stopping robot")
	}

	var runErr error
	for _, g := range goals {
		ep, err := r.GoTo(ctx, g)
		result.Episodes = append(result.Episodes, ep)
		if err != nil {
			runErr = err
			break
		}
	}

	if err := r.robot.Stop(context.WithoutCancel(ctx)); err != nil && runErr == nil {
		runErr = errors.Wrap(err, "stopping robot")
	}

	for _, m := range r.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result, runErr
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
