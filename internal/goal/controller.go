package goal

import (
	"math"

	"github.com/san-kum/diffdrive/internal/odometry"
)

// PoseSource supplies the current pose estimate. *odometry.Track
// satisfies it.
type PoseSource interface {
	Pose() odometry.Pose
}

// Target is the goal pose.
type Target struct {
	X     float64 `json:"x" yaml:"x"`
	Y     float64 `json:"y" yaml:"y"`
	Theta float64 `json:"theta" yaml:"theta"`
}

// Command is one step of controller output in actuator units.
type Command struct {
	Left   int  `json:"left"`
	Right  int  `json:"right"`
	AtGoal bool `json:"at_goal"`
}

type Controller struct {
	source PoseSource
	tuning Tuning
	target Target
	last   Command
	rho    float64
}

// New binds a controller to source. No goal is pending until SetGoal.
func New(source PoseSource, tuning Tuning) *Controller {
	return &Controller{
		source: source,
		tuning: tuning,
		last:   Command{AtGoal: true},
	}
}

// SetGoal replaces the goal and starts a new episode.
func (c *Controller) SetGoal(x, y, theta float64) {
	c.target = Target{X: x, Y: y, Theta: theta}
	c.last.AtGoal = false
}

// Step computes wheel commands from the current pose. Once the goal is
// reached AtGoal stays set until the next SetGoal.
func (c *Controller) Step() Command {
	pose := c.source.Pose()

	dx := c.target.X - pose.X
	dy := c.target.Y - pose.Y

	rho := math.Sqrt(dx*dx + dy*dy)
	alpha := NormalizeAngle(math.Atan2(dy, dx) - pose.Theta)
	beta := NormalizeAngle(-pose.Theta - alpha)

	g := c.tuning.Gains
	v := g.Rho * rho
	// The conversion rounds the first product so it is not fused.
	omega := float64(g.Alpha*alpha) + g.Beta*beta

	vu := v * c.tuning.LinearScale
	wu := omega * c.tuning.AngularScale

	left := int(vu - wu/2)
	right := int(vu + wu/2)

	if math.Abs(float64(left)) < c.tuning.SpeedMin {
		left = 0
	}
	if math.Abs(float64(right)) < c.tuning.SpeedMin {
		right = 0
	}

	atGoal := c.last.AtGoal
	if (left == 0 && right == 0) || rho < c.tuning.ArrivalRadius {
		atGoal = true
	}

	c.rho = rho
	c.last = Command{Left: left, Right: right, AtGoal: atGoal}
	return c.last
}

func (c *Controller) Goal() Target { return c.target }

func (c *Controller) AtGoal() bool { return c.last.AtGoal }

// Distance is ρ as of the most recent step.
func (c *Controller) Distance() float64 { return c.rho }
