package mission_test

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/san-kum/diffdrive/internal/dynamo"
	"github.com/san-kum/diffdrive/internal/goal"
	"github.com/san-kum/diffdrive/internal/integrators"
	"github.com/san-kum/diffdrive/internal/mission"
	"github.com/san-kum/diffdrive/internal/odometry"
	"github.com/san-kum/diffdrive/internal/plant"
)

func newSimRobot(integ dynamo.Integrator, start odometry.Pose) *mission.SimRobot {
	dyn, err := plant.NewDiffDrive(plant.MatchCalibration(odometry.DefaultCalibration(), plant.DefaultEncoderUnit))
	Expect(err).NotTo(HaveOccurred())
	robot, err := mission.NewSimRobot(dyn, integ, plant.DefaultParams(), start, mission.SimConfig{Dt: 0.032})
	Expect(err).NotTo(HaveOccurred())
	return robot
}

// scriptedRobot records calls and fails on demand.
type scriptedRobot struct {
	left, right float64
	stops       int
	speeds      [][2]int
	encErr      error
	advanceErr  error
}

func (s *scriptedRobot) Encoders(ctx context.Context) (float64, float64, error) {
	return s.left, s.right, s.encErr
}

func (s *scriptedRobot) SetSpeed(ctx context.Context, l, r int) error {
	s.speeds = append(s.speeds, [2]int{l, r})
	return nil
}

func (s *scriptedRobot) Advance(ctx context.Context) error { return s.advanceErr }

func (s *scriptedRobot) Stop(ctx context.Context) error {
	s.stops++
	return nil
}

// nanIntegrator blows the state up on the first step.
type nanIntegrator struct{}

func (nanIntegrator) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	out := x.Clone()
	out[0] = math.NaN()
	return out
}

type counter struct{ n int }

func (c *counter) Name() string          { return "cycles" }
func (c *counter) Observe(mission.Cycle) { c.n++ }
func (c *counter) Value() float64        { return float64(c.n) }
func (c *counter) Reset()                { c.n = 0 }

var _ = Describe("Runner", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("requires Init before GoTo", func() {
		r := mission.New(&scriptedRobot{}, mission.DefaultConfig(), nil)
		_, err := r.GoTo(ctx, goal.Target{X: 1})
		Expect(err).To(MatchError(mission.ErrNotInitialized))
	})

	It("rejects non-finite goals", func() {
		r := mission.New(&scriptedRobot{}, mission.DefaultConfig(), nil)
		Expect(r.Init(ctx)).To(Succeed())
		_, err := r.GoTo(ctx, goal.Target{X: math.NaN()})
		Expect(errors.Is(err, mission.ErrInvalidGoal)).To(BeTrue())
		_, err = r.GoTo(ctx, goal.Target{Theta: math.Inf(1)})
		Expect(errors.Is(err, mission.ErrInvalidGoal)).To(BeTrue())
	})

	It("places the estimate at the start pose", func() {
		cfg := mission.DefaultConfig()
		r := mission.New(&scriptedRobot{left: 123, right: -4}, cfg, nil)
		Expect(r.Init(ctx)).To(Succeed())
		Expect(r.Pose()).To(Equal(cfg.Start))
	})

	It("completes the shuttle mission on the simulator", func() {
		robot := newSimRobot(integrators.NewRK4(), odometry.Pose{Theta: math.Pi / 2})
		r := mission.New(robot, mission.DefaultConfig(), nil)

		goals := []goal.Target{{X: 0, Y: 0.1, Theta: math.Pi / 2}, {X: 0, Y: 0, Theta: -math.Pi / 2}}
		res, err := r.Run(ctx, goals)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Episodes).To(HaveLen(2))

		for i, ep := range res.Episodes {
			Expect(ep.Arrived).To(BeTrue())
			Expect(ep.Steps).To(BeNumerically(">", 0))
			Expect(ep.Steps).To(Equal(len(ep.Cycles)))
			Expect(math.Hypot(ep.Final.X-goals[i].X, ep.Final.Y-goals[i].Y)).To(BeNumerically("<", 0.01))
		}

		truth := robot.TruePose()
		est := r.Pose()
		Expect(math.Hypot(truth.X-est.X, truth.Y-est.Y)).To(BeNumerically("<", 1e-3))
		Expect(robot.Writes()).To(BeNumerically("<=", len(res.Cycles())+1))
	})

	It("integrates with adaptive substeps when a tolerance is set", func() {
		dyn, err := plant.NewDiffDrive(plant.MatchCalibration(odometry.DefaultCalibration(), plant.DefaultEncoderUnit))
		Expect(err).NotTo(HaveOccurred())
		robot, err := mission.NewSimRobot(dyn, integrators.NewRK45(), plant.DefaultParams(), odometry.Pose{Theta: math.Pi / 2},
			mission.SimConfig{Dt: 0.032, Tolerance: 1e-9})
		Expect(err).NotTo(HaveOccurred())

		r := mission.New(robot, mission.DefaultConfig(), nil)
		res, err := r.Run(ctx, []goal.Target{{X: 0, Y: 0.1, Theta: math.Pi / 2}})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Episodes[0].Arrived).To(BeTrue())
		Expect(robot.Time()).To(BeNumerically("~", float64(res.Episodes[0].Steps)*0.032, 1e-9))
	})

	It("rejects a bad simulator setup", func() {
		dyn, err := plant.NewDiffDrive(plant.MatchCalibration(odometry.DefaultCalibration(), plant.DefaultEncoderUnit))
		Expect(err).NotTo(HaveOccurred())
		_, err = mission.NewSimRobot(dyn, integrators.NewRK4(), plant.DefaultParams(), odometry.Pose{}, mission.SimConfig{})
		Expect(err).To(HaveOccurred())
		_, err = mission.NewSimRobot(dyn, integrators.NewRK4(), plant.Params{}, odometry.Pose{}, mission.SimConfig{Dt: 0.032})
		Expect(errors.Is(err, dynamo.ErrParameterBounds)).To(BeTrue())
	})

	It("stops the motors before and after a mission", func() {
		robot := &scriptedRobot{}
		r := mission.New(robot, mission.DefaultConfig(), nil)
		res, err := r.Run(ctx, []goal.Target{{X: 0, Y: 0, Theta: math.Pi / 2}})
		Expect(err).NotTo(HaveOccurred())
		Expect(robot.stops).To(Equal(2))
		Expect(res.Episodes[0].Arrived).To(BeTrue())
		Expect(res.Episodes[0].Steps).To(Equal(1))
	})

	It("gives up after MaxSteps", func() {
		cfg := mission.DefaultConfig()
		cfg.MaxSteps = 10
		robot := &scriptedRobot{}
		r := mission.New(robot, cfg, nil)
		Expect(r.Init(ctx)).To(Succeed())

		ep, err := r.GoTo(ctx, goal.Target{X: 1})
		Expect(errors.Is(err, mission.ErrMaxSteps)).To(BeTrue())
		Expect(ep.Arrived).To(BeFalse())
		Expect(ep.Steps).To(Equal(10))
		Expect(robot.speeds).To(HaveLen(10))
	})

	It("honours context cancellation", func() {
		r := mission.New(&scriptedRobot{}, mission.DefaultConfig(), nil)
		Expect(r.Init(ctx)).To(Succeed())

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := r.GoTo(cctx, goal.Target{X: 1})
		Expect(err).To(MatchError(context.Canceled))
	})

	It("propagates robot failures", func() {
		boom := errors.New("boom")

		r := mission.New(&scriptedRobot{encErr: boom}, mission.DefaultConfig(), nil)
		Expect(errors.Is(r.Init(ctx), boom)).To(BeTrue())

		r = mission.New(&scriptedRobot{advanceErr: boom}, mission.DefaultConfig(), nil)
		Expect(r.Init(ctx)).To(Succeed())
		_, err := r.GoTo(ctx, goal.Target{X: 1})
		Expect(errors.Is(err, boom)).To(BeTrue())
	})

	It("reports a diverging simulation", func() {
		robot := newSimRobot(nanIntegrator{}, odometry.Pose{})
		r := mission.New(robot, mission.DefaultConfig(), nil)
		Expect(r.Init(ctx)).To(Succeed())

		_, err := r.GoTo(ctx, goal.Target{X: 1})
		Expect(errors.Is(err, dynamo.ErrInvalidState)).To(BeTrue())
		var simErr *dynamo.SimulationError
		Expect(errors.As(err, &simErr)).To(BeTrue())
		Expect(simErr.Step).To(Equal(0))
	})

	It("feeds observers and metrics every cycle", func() {
		robot := newSimRobot(integrators.NewEuler(), odometry.Pose{})
		cfg := mission.DefaultConfig()
		cfg.Start = odometry.Pose{}
		r := mission.New(robot, cfg, nil)

		var seen []mission.Cycle
		r.AddObserver(mission.ObserverFunc(func(c mission.Cycle) { seen = append(seen, c) }))
		m := &counter{}
		r.AddMetric(m)

		res, err := r.Run(ctx, []goal.Target{{X: 0.05, Y: 0.05}})
		Expect(err).NotTo(HaveOccurred())
		Expect(seen).To(HaveLen(res.Episodes[0].Steps))
		Expect(res.Metrics).To(HaveKeyWithValue("cycles", float64(len(seen))))

		for i, c := range seen {
			Expect(c.Step).To(Equal(i))
			Expect(c.Episode).To(Equal(1))
			Expect(c.Time).To(BeNumerically("~", float64(i)*cfg.Period, 1e-12))
		}
		Expect(seen[len(seen)-1].Command.AtGoal).To(BeTrue())
	})

	It("logs the final position", func() {
		core, logs := observer.New(zapcore.InfoLevel)
		robot := newSimRobot(integrators.NewRK4(), odometry.Pose{Theta: math.Pi / 2})
		r := mission.New(robot, mission.DefaultConfig(), zap.New(core))

		_, err := r.Run(ctx, []goal.Target{{X: 0, Y: 0.1, Theta: math.Pi / 2}})
		Expect(err).NotTo(HaveOccurred())
		Expect(logs.FilterMessage("goto").Len()).To(Equal(1))
		Expect(logs.FilterMessage("current position").Len()).To(Equal(1))
	})
})

var _ = Describe("Scenario", func() {
	It("parses goals and start pose", func() {
		s, err := mission.ParseScenario([]byte(`
name: demo
start: {x: 0, y: 0, theta: 1.5707963267948966}
goals:
  - {x: 0, y: 0.1, theta: 1.5707963267948966}
  - {x: 0, y: 0, theta: -1.5707963267948966}
`))
		Expect(err).NotTo(HaveOccurred())
		Expect(s.Name).To(Equal("demo"))
		Expect(s.Start.Theta).To(BeNumerically("~", math.Pi/2, 1e-15))
		Expect(s.Goals).To(HaveLen(2))
		Expect(s.Goals[1].Theta).To(BeNumerically("~", -math.Pi/2, 1e-15))
	})

	It("rejects an empty goal list", func() {
		_, err := mission.ParseScenario([]byte("name: empty\n"))
		Expect(err).To(HaveOccurred())
	})

	It("round-trips through a file", func() {
		path := GinkgoT().TempDir() + "/s.yaml"
		in := &mission.Scenario{Name: "rt", Goals: []goal.Target{{X: 1, Y: 2, Theta: 0.5}}}
		Expect(in.Save(path)).To(Succeed())
		out, err := mission.LoadScenario(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal(in))
	})
})
