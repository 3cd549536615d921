package odometry

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// e-puck values from e-puck.org.
const (
	DefaultIncrementsPerRev = 1000.0
	DefaultAxisWheelRatio   = 1.293
	DefaultDiameterLeft     = 0.0416
	DefaultDiameterRight    = 0.0404
	DefaultScalingFactor    = 0.976
)

// Geometry holds the physical parameters the calibration is derived from.
type Geometry struct {
	DiameterLeft     float64 `yaml:"wheel_diameter_left"`
	DiameterRight    float64 `yaml:"wheel_diameter_right"`
	AxisWheelRatio   float64 `yaml:"axis_wheel_ratio"`
	IncrementsPerRev float64 `yaml:"increments_per_rev"`
	ScalingFactor    float64 `yaml:"scaling_factor"`
}

func DefaultGeometry() Geometry {
	return Geometry{
		DiameterLeft:     DefaultDiameterLeft,
		DiameterRight:    DefaultDiameterRight,
		AxisWheelRatio:   DefaultAxisWheelRatio,
		IncrementsPerRev: DefaultIncrementsPerRev,
		ScalingFactor:    DefaultScalingFactor,
	}
}

// Validate reports every non-positive or non-finite parameter.
func (g Geometry) Validate() error {
	var err error
	check := func(name string, v float64) {
		if !(v > 0) || math.IsInf(v, 0) {
			err = multierr.Append(err, errors.Errorf("odometry: %s must be positive, got %v", name, v))
		}
	}
	check("wheel_diameter_left", g.DiameterLeft)
	check("wheel_diameter_right", g.DiameterRight)
	check("axis_wheel_ratio", g.AxisWheelRatio)
	check("increments_per_rev", g.IncrementsPerRev)
	check("scaling_factor", g.ScalingFactor)
	return err
}

// Calibration is the constant conversion between encoder ticks and
// wheel travel. It is computed once and never mutated.
type Calibration struct {
	WheelDistance   float64
	ConversionLeft  float64
	ConversionRight float64
}

// NewCalibration derives the conversion factors from g.
func NewCalibration(g Geometry) (Calibration, error) {
	if err := g.Validate(); err != nil {
		return Calibration{}, err
	}
	return Calibration{
		WheelDistance:   g.AxisWheelRatio * g.ScalingFactor * (g.DiameterLeft + g.DiameterRight) / 2.0,
		ConversionLeft:  g.DiameterLeft * g.ScalingFactor * math.Pi / g.IncrementsPerRev,
		ConversionRight: g.DiameterRight * g.ScalingFactor * math.Pi / g.IncrementsPerRev,
	}, nil
}

// DefaultCalibration is the e-puck calibration.
func DefaultCalibration() Calibration {
	cal, err := NewCalibration(DefaultGeometry())
	if err != nil {
		panic(err)
	}
	return cal
}
