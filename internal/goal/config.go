package goal

import (
	"math"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

const (
	DefaultGainRho   = 1.2
	DefaultGainAlpha = 1.5
	DefaultGainBeta  = -0.35

	// DefaultSpeedMin is one actuator unit (about 0.13 mm/s on an e-puck).
	DefaultSpeedMin = 1.0

	// DefaultArrivalRadius is in meters.
	DefaultArrivalRadius = 0.002
)

// pi is a float64 variable so the scales below are rounded after every
// operation. Folding them as exact constants moves the angular scale by one
// ulp, which changes commands that truncate on an integer boundary.
var pi = math.Pi

var (
	// DefaultLinearScale maps m/s to actuator units: ±1000 units is
	// about 130 mm/s.
	DefaultLinearScale = 1000 / 0.13

	// DefaultAngularScale maps rad/s to actuator units: ±2000 units is
	// about 270°/s.
	DefaultAngularScale = 2000 / (270 * pi / 180)
)

// Gains of the posture control law.
type Gains struct {
	Rho   float64 `yaml:"rho"`
	Alpha float64 `yaml:"alpha"`
	Beta  float64 `yaml:"beta"`
}

func DefaultGains() Gains {
	return Gains{Rho: DefaultGainRho, Alpha: DefaultGainAlpha, Beta: DefaultGainBeta}
}

// Validate checks the convergence condition Kρ > 0, Kβ < 0 < Kα - Kρ.
func (g Gains) Validate() error {
	var err error
	if !(g.Rho > 0) {
		err = multierr.Append(err, errors.Errorf("goal: gain rho must be positive, got %v", g.Rho))
	}
	if !(g.Beta < 0) {
		err = multierr.Append(err, errors.Errorf("goal: gain beta must be negative, got %v", g.Beta))
	}
	if !(g.Alpha-g.Rho > 0) {
		err = multierr.Append(err, errors.Errorf("goal: gain alpha (%v) must exceed rho (%v)", g.Alpha, g.Rho))
	}
	return err
}

// Tuning is the constant configuration of a Controller.
type Tuning struct {
	SpeedMin      float64 `yaml:"speed_min"`
	Gains         Gains   `yaml:"gains"`
	LinearScale   float64 `yaml:"linear_scale"`
	AngularScale  float64 `yaml:"angular_scale"`
	ArrivalRadius float64 `yaml:"arrival_radius"`
}

func DefaultTuning() Tuning {
	return Tuning{
		SpeedMin:      DefaultSpeedMin,
		Gains:         DefaultGains(),
		LinearScale:   DefaultLinearScale,
		AngularScale:  DefaultAngularScale,
		ArrivalRadius: DefaultArrivalRadius,
	}
}

func (t Tuning) Validate() error {
	err := t.Gains.Validate()
	if !(t.SpeedMin >= 0) {
		err = multierr.Append(err, errors.Errorf("goal: speed_min must not be negative, got %v", t.SpeedMin))
	}
	if !(t.LinearScale > 0) {
		err = multierr.Append(err, errors.Errorf("goal: linear_scale must be positive, got %v", t.LinearScale))
	}
	if !(t.AngularScale > 0) {
		err = multierr.Append(err, errors.Errorf("goal: angular_scale must be positive, got %v", t.AngularScale))
	}
	if !(t.ArrivalRadius >= 0) {
		err = multierr.Append(err, errors.Errorf("goal: arrival_radius must not be negative, got %v", t.ArrivalRadius))
	}
	return err
}
