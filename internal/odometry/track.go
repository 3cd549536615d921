package odometry

import (
	"fmt"
	"math"
)

// Pose is a planar position in meters with a heading in radians.
type Pose struct {
	X     float64 `json:"x" yaml:"x"`
	Y     float64 `json:"y" yaml:"y"`
	Theta float64 `json:"theta" yaml:"theta"`
}

func (p Pose) String() string {
	return fmt.Sprintf("(%.4f, %.4f, %.4f)", p.X, p.Y, p.Theta)
}

// Track integrates wheel encoder readings into a pose estimate.
type Track struct {
	cal       Calibration
	prevLeft  float64
	prevRight float64
	pose      Pose
}

// NewTrack starts a track at pose (0, 0, 0). rawLeft and rawRight must be
// the first real encoder reading so the first step has no spurious delta.
func NewTrack(cal Calibration, rawLeft, rawRight float64) *Track {
	return &Track{
		cal:       cal,
		prevLeft:  rawLeft,
		prevRight: rawRight,
	}
}

// Integrate advances the pose by the wheel motion since the previous
// reading and returns the new pose.
func (t *Track) Integrate(rawLeft, rawRight float64) Pose {
	deltaLeft := (rawLeft - t.prevLeft) * t.cal.ConversionLeft
	deltaRight := (rawRight - t.prevRight) * t.cal.ConversionRight
	deltaTheta := (deltaRight - deltaLeft) / t.cal.WheelDistance

	// Conversions round each product before the sum, so no platform fuses
	// them into a multiply-add.
	mid := t.pose.Theta + float64(deltaTheta*0.5)
	dist := (deltaLeft + deltaRight) * 0.5

	t.pose.X += float64(dist * math.Cos(mid))
	t.pose.Y += float64(dist * math.Sin(mid))
	t.pose.Theta += deltaTheta

	// Per-cycle rotation is small, one correction is enough.
	if t.pose.Theta > math.Pi {
		t.pose.Theta -= 2 * math.Pi
	} else if t.pose.Theta < -math.Pi {
		t.pose.Theta += 2 * math.Pi
	}

	t.prevLeft = rawLeft
	t.prevRight = rawRight
	return t.pose
}

// Pose returns the current estimate.
func (t *Track) Pose() Pose { return t.pose }

// SetPose overrides the estimate, typically once at startup to set a
// known initial heading.
func (t *Track) SetPose(p Pose) { t.pose = p }
