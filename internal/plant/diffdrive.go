package plant

import (
	"math"

	"github.com/pkg/errors"

	"github.com/san-kum/diffdrive/internal/dynamo"
	"github.com/san-kum/diffdrive/internal/odometry"
)

// State vector layout.
const (
	IdxX = iota
	IdxY
	IdxTheta
	IdxPhiLeft
	IdxPhiRight
)

// Geometry holds the physical wheel layout of the simulated robot.
type Geometry struct {
	RadiusLeft  float64
	RadiusRight float64
	Track       float64

	// MaxWheelSpeed clamps wheel angular velocity in rad/s. Zero disables
	// the limit.
	MaxWheelSpeed float64
}

// MatchCalibration returns the geometry that moves exactly as cal
// predicts when its encoders tick encoderUnit times per wheel radian.
func MatchCalibration(cal odometry.Calibration, encoderUnit float64) Geometry {
	return Geometry{
		RadiusLeft:  encoderUnit * cal.ConversionLeft,
		RadiusRight: encoderUnit * cal.ConversionRight,
		Track:       cal.WheelDistance,
	}
}

func (g Geometry) Validate() error {
	if !(g.RadiusLeft > 0) || !(g.RadiusRight > 0) {
		return errors.Wrapf(dynamo.ErrParameterBounds, "wheel radii must be positive (%v, %v)", g.RadiusLeft, g.RadiusRight)
	}
	if !(g.Track > 0) {
		return errors.Wrapf(dynamo.ErrParameterBounds, "track must be positive, got %v", g.Track)
	}
	if g.MaxWheelSpeed < 0 {
		return errors.Wrapf(dynamo.ErrParameterBounds, "max wheel speed must not be negative, got %v", g.MaxWheelSpeed)
	}
	return nil
}

type DiffDrive struct {
	Geometry
}

func NewDiffDrive(g Geometry) (*DiffDrive, error) {
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &DiffDrive{Geometry: g}, nil
}

func (d *DiffDrive) StateDim() int   { return 5 }
func (d *DiffDrive) ControlDim() int { return 2 }

func (d *DiffDrive) Derive(x dynamo.State, u dynamo.Control, t float64) dynamo.State {
	wl, wr := 0.0, 0.0
	if len(u) >= 2 {
		wl, wr = d.clamp(u[0]), d.clamp(u[1])
	}

	vl := d.RadiusLeft * wl
	vr := d.RadiusRight * wr
	v := (vl + vr) / 2
	omega := (vr - vl) / d.Track

	theta := x[IdxTheta]
	return dynamo.State{v * math.Cos(theta), v * math.Sin(theta), omega, wl, wr}
}

func (d *DiffDrive) clamp(w float64) float64 {
	if d.MaxWheelSpeed <= 0 {
		return w
	}
	return math.Max(-d.MaxWheelSpeed, math.Min(d.MaxWheelSpeed, w))
}

// InitialState places the robot at p with both wheel angles at zero.
func (d *DiffDrive) InitialState(p odometry.Pose) dynamo.State {
	return dynamo.State{p.X, p.Y, p.Theta, 0, 0}
}

// Pose extracts the true pose from x with the heading wrapped into (-π, π].
func Pose(x dynamo.State) odometry.Pose {
	theta := math.Remainder(x[IdxTheta], 2*math.Pi)
	if theta == -math.Pi {
		theta = math.Pi
	}
	return odometry.Pose{X: x[IdxX], Y: x[IdxY], Theta: theta}
}
