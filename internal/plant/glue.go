package plant

import "github.com/san-kum/diffdrive/internal/dynamo"

const (
	// DefaultEncoderUnit is encoder increments per wheel radian.
	DefaultEncoderUnit = 159.23

	// DefaultSpeedUnit is wheel rad/s per motor command unit.
	DefaultSpeedUnit = 0.00628
)

// Params configures the firmware unit glue and the plant limits.
type Params struct {
	EncoderUnit   float64 `yaml:"encoder_unit" json:"encoder_unit"`
	SpeedUnit     float64 `yaml:"speed_unit" json:"speed_unit"`
	MaxWheelSpeed float64 `yaml:"max_wheel_speed" json:"max_wheel_speed"`
}

func DefaultParams() Params {
	return Params{EncoderUnit: DefaultEncoderUnit, SpeedUnit: DefaultSpeedUnit}
}

// Encoders reads wheel angles from the plant state as raw ticks.
type Encoders struct {
	unit float64
}

func NewEncoders(unit float64) *Encoders {
	return &Encoders{unit: unit}
}

// Read returns the cumulative ticks of both wheels.
func (e *Encoders) Read(x dynamo.State) (left, right float64) {
	return e.unit * x[IdxPhiLeft], e.unit * x[IdxPhiRight]
}

// Motors holds the commanded wheel speeds. A command identical to the
// previous one is not forwarded.
type Motors struct {
	unit        float64
	left, right int
	writes      int
}

func NewMotors(unit float64) *Motors {
	return &Motors{unit: unit}
}

// Set applies new speed commands and reports whether anything changed.
func (m *Motors) Set(left, right int) bool {
	if left == m.left && right == m.right {
		return false
	}
	m.left, m.right = left, right
	m.writes++
	return true
}

// Reset stops both wheels.
func (m *Motors) Reset() {
	m.Set(0, 0)
}

// Command returns the last applied speeds in command units.
func (m *Motors) Command() (left, right int) { return m.left, m.right }

// Control converts the applied speeds to wheel rad/s.
func (m *Motors) Control() dynamo.Control {
	return dynamo.Control{m.unit * float64(m.left), m.unit * float64(m.right)}
}

// Writes counts commands actually forwarded to the wheels.
func (m *Motors) Writes() int { return m.writes }
