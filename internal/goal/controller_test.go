package goal_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/diffdrive/internal/goal"
	"github.com/san-kum/diffdrive/internal/odometry"
)

// fixedPose is a PoseSource the test moves by hand.
type fixedPose struct{ p odometry.Pose }

func (f *fixedPose) Pose() odometry.Pose { return f.p }

// e-puck unit glue: ticks per radian and rad/s per speed unit.
const (
	encoderUnit = 159.23
	speedUnit   = 0.00628
	cycle       = 0.032
)

// execute feeds cmd into track as if the wheels followed it exactly for
// one cycle.
func execute(track *odometry.Track, left, right *float64, cmd goal.Command) {
	*left += encoderUnit * speedUnit * float64(cmd.Left) * cycle
	*right += encoderUnit * speedUnit * float64(cmd.Right) * cycle
	track.Integrate(*left, *right)
}

var _ = Describe("Controller", func() {
	var (
		src  *fixedPose
		ctrl *goal.Controller
	)

	BeforeEach(func() {
		src = &fixedPose{}
		ctrl = goal.New(src, goal.DefaultTuning())
	})

	It("starts with no pending goal", func() {
		Expect(ctrl.AtGoal()).To(BeTrue())
		Expect(ctrl.Goal()).To(Equal(goal.Target{}))
	})

	It("clears arrival when a goal is set", func() {
		ctrl.SetGoal(1, 2, 3)
		Expect(ctrl.AtGoal()).To(BeFalse())
		Expect(ctrl.Goal()).To(Equal(goal.Target{X: 1, Y: 2, Theta: 3}))
	})

	It("arrives immediately when the goal is the current pose", func() {
		src.p = odometry.Pose{X: 0.4, Y: -0.2, Theta: 1}
		ctrl.SetGoal(0.4, -0.2, 1)
		Expect(ctrl.Step().AtGoal).To(BeTrue())
	})

	It("truncates wheel commands toward zero", func() {
		ctrl.SetGoal(0, 0.01, 0)
		cmd := ctrl.Step()
		Expect(cmd.Left).To(Equal(-524))
		Expect(cmd.Right).To(Equal(708))
		Expect(cmd.AtGoal).To(BeFalse())
		Expect(ctrl.Distance()).To(BeNumerically("~", 0.01, 1e-12))
	})

	Context("for a goal straight ahead", func() {
		It("commands symmetric forward speed", func() {
			ctrl.SetGoal(1, 0, 0)
			cmd := ctrl.Step()
			Expect(cmd.Left).To(Equal(9230))
			Expect(cmd.Right).To(Equal(9230))
		})

		It("turns left once the loop is closed", func() {
			track := odometry.NewTrack(odometry.DefaultCalibration(), 0, 0)
			ctrl = goal.New(track, goal.DefaultTuning())
			ctrl.SetGoal(1, 0, 0)

			var left, right float64
			first := ctrl.Step()
			Expect(first.Left).To(BeNumerically("<=", first.Right))

			execute(track, &left, &right, first)
			second := ctrl.Step()
			Expect(second.Left).To(BeNumerically("<", second.Right))
		})
	})

	Context("dead-zone", func() {
		It("clamps a single slow wheel to exactly zero", func() {
			tuning := goal.DefaultTuning()
			tuning.SpeedMin = 600
			ctrl = goal.New(src, tuning)
			ctrl.SetGoal(0, 0.01, 0)

			cmd := ctrl.Step()
			Expect(cmd.Left).To(Equal(0))
			Expect(cmd.Right).To(Equal(708))
			Expect(cmd.AtGoal).To(BeFalse())
		})

		It("reports arrival when both wheels are clamped", func() {
			tuning := goal.DefaultTuning()
			tuning.SpeedMin = 10
			tuning.ArrivalRadius = 0
			ctrl = goal.New(src, tuning)
			ctrl.SetGoal(0.001, 0, 0)

			cmd := ctrl.Step()
			Expect(cmd.Left).To(Equal(0))
			Expect(cmd.Right).To(Equal(0))
			Expect(cmd.AtGoal).To(BeTrue())
		})

		It("never reports a nonzero command below the threshold", func() {
			tuning := goal.DefaultTuning()
			tuning.SpeedMin = 50
			ctrl = goal.New(src, tuning)
			for i := 0; i < 200; i++ {
				a := float64(i) * 0.1
				src.p = odometry.Pose{X: 0.01 * math.Cos(a), Y: 0.005 * math.Sin(3*a), Theta: goal.NormalizeAngle(a)}
				ctrl.SetGoal(0, 0, 0)
				cmd := ctrl.Step()
				for _, s := range []int{cmd.Left, cmd.Right} {
					if s != 0 {
						Expect(math.Abs(float64(s))).To(BeNumerically(">=", 50))
					}
				}
			}
		})
	})

	Context("arrival", func() {
		It("ignores heading error for an in-place half turn", func() {
			src.p = odometry.Pose{Theta: math.Pi / 2}
			ctrl.SetGoal(0, 0, -math.Pi/2)

			cmd := ctrl.Step()
			Expect(ctrl.Distance()).To(Equal(0.0))
			Expect(cmd.AtGoal).To(BeTrue())
			Expect(cmd.Left).To(Equal(500))
			Expect(cmd.Right).To(Equal(-500))
		})

		It("is sticky until the next goal", func() {
			ctrl.SetGoal(0.001, 0, 0)
			Expect(ctrl.Step().AtGoal).To(BeTrue())

			src.p = odometry.Pose{X: -5, Y: 5}
			for i := 0; i < 3; i++ {
				Expect(ctrl.Step().AtGoal).To(BeTrue())
			}

			ctrl.SetGoal(0.001, 0, 0)
			Expect(ctrl.Step().AtGoal).To(BeFalse())
		})
	})

	It("converges from the origin to (0, 0.1, π/2)", func() {
		track := odometry.NewTrack(odometry.DefaultCalibration(), 0, 0)
		ctrl = goal.New(track, goal.DefaultTuning())
		ctrl.SetGoal(0, 0.1, math.Pi/2)

		var left, right float64
		prev := math.Inf(1)
		steps := 0
		for ; steps < 5000; steps++ {
			cmd := ctrl.Step()
			Expect(ctrl.Distance()).To(BeNumerically("<=", prev))
			prev = ctrl.Distance()
			if cmd.AtGoal {
				break
			}
			execute(track, &left, &right, cmd)
		}

		Expect(ctrl.AtGoal()).To(BeTrue())
		Expect(steps).To(BeNumerically("<", 5000))
		p := track.Pose()
		Expect(math.Hypot(p.X, p.Y-0.1)).To(BeNumerically("<", 0.01))
	})
})

var _ = Describe("Commands", func() {
	It("uses the float64 e-puck scale factors", func() {
		Expect(math.Float64bits(goal.DefaultLinearScale)).To(Equal(uint64(0x40be0c4ec4ec4ec5)))
		Expect(math.Float64bits(goal.DefaultAngularScale)).To(Equal(uint64(0x407a869c644967c0)))
	})

	DescribeTable("match the e-puck controller",
		func(pose odometry.Pose, x, y float64, left, right int) {
			ctrl := goal.New(&fixedPose{pose}, goal.DefaultTuning())
			ctrl.SetGoal(x, y, 0)
			cmd := ctrl.Step()
			Expect([]int{cmd.Left, cmd.Right}).To(Equal([]int{left, right}))
		},
		Entry("straight ahead", odometry.Pose{}, 1.0, 0.0, 9230, 9230),
		Entry("goal behind", odometry.Pose{}, -0.2, 0.0, 612, 3079),
		Entry("goal to the left", odometry.Pose{}, 0.0, 0.01, -524, 708),
		Entry("facing the goal", odometry.Pose{Theta: math.Pi / 2}, 0.0, 0.1, 806, 1039),
		Entry("oblique", odometry.Pose{X: 0.1, Y: -0.05, Theta: 0.3}, 0.4, 0.2, 3427, 3781),
		Entry("heading home", odometry.Pose{X: 0.5, Y: 0.5, Theta: -2.5}, 0.0, 0.0, 6656, 6397),
		Entry("sideways", odometry.Pose{X: 0.2, Y: 0.1, Theta: 1}, 0.2, 0.3, 1547, 2144),
		Entry("turn on the spot by π/2", odometry.Pose{Theta: math.Pi / 2}, 0.0, 0.0, 500, -500),
		Entry("turn on the spot by -π/2", odometry.Pose{Theta: -math.Pi / 2}, 0.0, 0.0, -500, 500),
		Entry("turn on the spot by π/4", odometry.Pose{Theta: math.Pi / 4}, 0.0, 0.0, 250, -250),
		Entry("turn on the spot by π/8", odometry.Pose{Theta: math.Pi / 8}, 0.0, 0.0, 125, -125),
		Entry("turn on the spot by 3π/4", odometry.Pose{Theta: 3 * math.Pi / 4}, 0.0, 0.0, 750, -750),
	)
})

var _ = Describe("NormalizeAngle", func() {
	DescribeTable("wraps into [-π, π]",
		func(in, want float64) {
			Expect(goal.NormalizeAngle(in)).To(BeNumerically("~", want, 1e-12))
		},
		Entry("in range", 1.0, 1.0),
		Entry("just above π", math.Pi+0.1, -math.Pi+0.1),
		Entry("just below -π", -math.Pi-0.1, math.Pi-0.1),
		Entry("several turns", 7*math.Pi+0.5, -math.Pi+0.5),
		Entry("several negative turns", -9*math.Pi-0.25, math.Pi-0.25),
		Entry("π stays π", math.Pi, math.Pi),
		Entry("-π stays -π", -math.Pi, -math.Pi),
	)
})

var _ = Describe("Tuning", func() {
	It("accepts the defaults", func() {
		Expect(goal.DefaultTuning().Validate()).To(Succeed())
	})

	DescribeTable("rejects gains that break convergence",
		func(g goal.Gains) {
			Expect(g.Validate()).To(HaveOccurred())
		},
		Entry("non-positive rho", goal.Gains{Rho: 0, Alpha: 1.5, Beta: -0.35}),
		Entry("non-negative beta", goal.Gains{Rho: 1.2, Alpha: 1.5, Beta: 0}),
		Entry("alpha not above rho", goal.Gains{Rho: 1.2, Alpha: 1.2, Beta: -0.35}),
	)

	It("rejects bad scales", func() {
		t := goal.DefaultTuning()
		t.LinearScale = 0
		t.SpeedMin = -1
		Expect(t.Validate()).To(HaveOccurred())
	})
})
