package metrics

import (
	"math"

	"github.com/san-kum/diffdrive/internal/goal"
	"github.com/san-kum/diffdrive/internal/mission"
	"github.com/san-kum/diffdrive/internal/odometry"
)

// PathLength is the distance travelled by the true pose, in meters.
type PathLength struct {
	last   odometry.Pose
	seen   bool
	length float64
}

func NewPathLength() *PathLength { return &PathLength{} }

func (p *PathLength) Name() string { return "path_length" }

func (p *PathLength) Observe(c mission.Cycle) {
	if p.seen {
		p.length += math.Hypot(c.Truth.X-p.last.X, c.Truth.Y-p.last.Y)
	}
	p.last = c.Truth
	p.seen = true
}

func (p *PathLength) Value() float64 { return p.length }

func (p *PathLength) Reset() {
	p.seen = false
	p.length = 0
}

// FinalDistance is ρ at the last observed cycle.
type FinalDistance struct {
	rho float64
}

func NewFinalDistance() *FinalDistance { return &FinalDistance{} }

func (f *FinalDistance) Name() string            { return "final_distance" }
func (f *FinalDistance) Observe(c mission.Cycle) { f.rho = c.Rho }
func (f *FinalDistance) Value() float64          { return f.rho }
func (f *FinalDistance) Reset()                  { f.rho = 0 }

// HeadingError is the absolute heading error against the goal at the last
// observed cycle. Arrival does not depend on it.
type HeadingError struct {
	err float64
}

func NewHeadingError() *HeadingError { return &HeadingError{} }

func (h *HeadingError) Name() string { return "heading_error" }

func (h *HeadingError) Observe(c mission.Cycle) {
	h.err = math.Abs(goal.NormalizeAngle(c.Goal.Theta - c.Pose.Theta))
}

func (h *HeadingError) Value() float64 { return h.err }
func (h *HeadingError) Reset()         { h.err = 0 }

// OdometryDrift is the largest distance seen between the estimate and the
// true pose.
type OdometryDrift struct {
	max float64
}

func NewOdometryDrift() *OdometryDrift { return &OdometryDrift{} }

func (d *OdometryDrift) Name() string { return "odometry_drift" }

func (d *OdometryDrift) Observe(c mission.Cycle) {
	d.max = math.Max(d.max, math.Hypot(c.Truth.X-c.Pose.X, c.Truth.Y-c.Pose.Y))
}

func (d *OdometryDrift) Value() float64 { return d.max }
func (d *OdometryDrift) Reset()         { d.max = 0 }

// Standard returns one of each metric.
func Standard() []mission.Metric {
	return []mission.Metric{
		NewPathLength(),
		NewControlEffort(),
		NewHeadingError(),
		NewFinalDistance(),
		NewOdometryDrift(),
	}
}
