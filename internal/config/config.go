package config

import (
	"math"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/diffdrive/internal/goal"
	"github.com/san-kum/diffdrive/internal/integrators"
	"github.com/san-kum/diffdrive/internal/mission"
	"github.com/san-kum/diffdrive/internal/odometry"
	"github.com/san-kum/diffdrive/internal/plant"
)

const (
	DefaultDt         = 0.032
	DefaultIntegrator = "rk4"
	DefaultMaxSteps   = 5000
)

type Config struct {
	Name       string            `yaml:"name,omitempty"`
	Odometry   odometry.Geometry `yaml:"odometry"`
	Controller goal.Tuning       `yaml:"controller"`
	Plant      plant.Params      `yaml:"plant"`
	Sim        SimConfig         `yaml:"sim"`
	Start      odometry.Pose     `yaml:"start"`
	Goals      []goal.Target     `yaml:"goals"`
}

type SimConfig struct {
	Dt         float64 `yaml:"dt"`
	Integrator string  `yaml:"integrator"`
	MaxSteps   int     `yaml:"max_steps"`
	// Tolerance enables adaptive substeps for integrators that support it.
	Tolerance float64 `yaml:"tolerance,omitempty"`
}

// DefaultConfig is the e-puck shuttle demo.
func DefaultConfig() *Config {
	return &Config{
		Name:       "shuttle",
		Odometry:   odometry.DefaultGeometry(),
		Controller: goal.DefaultTuning(),
		Plant:      plant.DefaultParams(),
		Sim: SimConfig{
			Dt:         DefaultDt,
			Integrator: DefaultIntegrator,
			MaxSteps:   DefaultMaxSteps,
		},
		Start: odometry.Pose{Theta: math.Pi / 2},
		Goals: []goal.Target{
			{X: 0, Y: 0.1, Theta: math.Pi / 2},
			{X: 0, Y: 0, Theta: -math.Pi / 2},
		},
	}
}

// Load reads path over the defaults, so a file only needs the keys it
// changes.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "encoding config")
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	err := multierr.Combine(c.Odometry.Validate(), c.Controller.Validate())
	if !(c.Plant.EncoderUnit > 0) {
		err = multierr.Append(err, errors.Errorf("plant: encoder_unit must be positive, got %v", c.Plant.EncoderUnit))
	}
	if !(c.Plant.SpeedUnit > 0) {
		err = multierr.Append(err, errors.Errorf("plant: speed_unit must be positive, got %v", c.Plant.SpeedUnit))
	}
	if c.Plant.MaxWheelSpeed < 0 {
		err = multierr.Append(err, errors.Errorf("plant: max_wheel_speed must not be negative, got %v", c.Plant.MaxWheelSpeed))
	}
	if !(c.Sim.Dt > 0) {
		err = multierr.Append(err, errors.Errorf("sim: dt must be positive, got %v", c.Sim.Dt))
	}
	if c.Sim.MaxSteps < 0 {
		err = multierr.Append(err, errors.Errorf("sim: max_steps must not be negative, got %d", c.Sim.MaxSteps))
	}
	if _, ierr := integrators.ByName(c.Sim.Integrator); ierr != nil {
		err = multierr.Append(err, errors.Wrap(ierr, "sim"))
	}
	for i, g := range c.Goals {
		if !finite(g.X) || !finite(g.Y) || !finite(g.Theta) {
			err = multierr.Append(err, errors.Errorf("goals[%d]: must be finite", i))
		}
	}
	return err
}

// ApplyScenario replaces the start pose and goals.
func (c *Config) ApplyScenario(s *mission.Scenario) {
	c.Name = s.Name
	c.Start = s.Start
	c.Goals = append([]goal.Target(nil), s.Goals...)
}

// Mission derives the runner configuration.
func (c *Config) Mission() (mission.Config, error) {
	cal, err := odometry.NewCalibration(c.Odometry)
	if err != nil {
		return mission.Config{}, err
	}
	return mission.Config{
		Calibration: cal,
		Tuning:      c.Controller,
		Start:       c.Start,
		MaxSteps:    c.Sim.MaxSteps,
		Period:      c.Sim.Dt,
	}, nil
}

// NewSimulation validates c and builds a runner driving a simulated robot
// whose wheels match the configured odometry geometry.
func NewSimulation(c *Config, logger *zap.Logger) (*mission.Runner, *mission.SimRobot, error) {
	if err := c.Validate(); err != nil {
		return nil, nil, errors.Wrap(err, "invalid config")
	}
	mcfg, err := c.Mission()
	if err != nil {
		return nil, nil, err
	}

	geom := plant.MatchCalibration(mcfg.Calibration, c.Plant.EncoderUnit)
	geom.MaxWheelSpeed = c.Plant.MaxWheelSpeed
	dyn, err := plant.NewDiffDrive(geom)
	if err != nil {
		return nil, nil, err
	}

	integ, err := integrators.ByName(c.Sim.Integrator)
	if err != nil {
		return nil, nil, err
	}

	robot, err := mission.NewSimRobot(dyn, integ, c.Plant, c.Start, mission.SimConfig{
		Dt:        c.Sim.Dt,
		Tolerance: c.Sim.Tolerance,
	})
	if err != nil {
		return nil, nil, err
	}
	return mission.New(robot, mcfg, logger), robot, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
