package export

import (
	"strings"
	"testing"

	"github.com/san-kum/diffdrive/internal/goal"
	"github.com/san-kum/diffdrive/internal/mission"
	"github.com/san-kum/diffdrive/internal/odometry"
)

func line(n int, drift float64) []mission.Cycle {
	out := make([]mission.Cycle, n)
	for i := range out {
		p := odometry.Pose{X: 0.01 * float64(i)}
		out[i] = mission.Cycle{Pose: p, Truth: odometry.Pose{X: p.X, Y: drift * float64(i)}}
	}
	return out
}

func TestTrajectoryToSVGTooShort(t *testing.T) {
	if got := TrajectoryToSVG(line(1, 0), nil, DefaultSVGOptions()); got != "" {
		t.Errorf("expected empty output, got %q", got)
	}
}

func TestTrajectoryToSVG(t *testing.T) {
	goals := []goal.Target{{X: 0.1, Y: 0, Theta: 0}}
	svg := TrajectoryToSVG(line(11, 0), goals, DefaultSVGOptions())

	if !strings.HasPrefix(svg, "<?xml") || !strings.HasSuffix(svg, "</svg>") {
		t.Fatal("not an svg document")
	}
	if n := strings.Count(svg, "<path"); n != 1 {
		t.Errorf("expected only the estimate path, got %d paths", n)
	}
	if n := strings.Count(svg, "<circle"); n != 1 {
		t.Errorf("expected 1 goal marker, got %d", n)
	}
	if n := strings.Count(svg, " L"); n != 10 {
		t.Errorf("expected 10 segments, got %d", n)
	}
}

func TestTrajectoryToSVGTruth(t *testing.T) {
	svg := TrajectoryToSVG(line(5, 0.001), nil, DefaultSVGOptions())
	if n := strings.Count(svg, "<path"); n != 2 {
		t.Errorf("expected estimate and truth paths, got %d", n)
	}
	if !strings.Contains(svg, "stroke-dasharray") {
		t.Error("truth path should be dashed")
	}
}

func TestFrameKeepsAspect(t *testing.T) {
	cycles := []mission.Cycle{
		{Pose: odometry.Pose{X: 0, Y: 0}, Truth: odometry.Pose{X: 0, Y: 0}},
		{Pose: odometry.Pose{X: 1, Y: 0.5}, Truth: odometry.Pose{X: 1, Y: 0.5}},
	}
	f := newFrame(cycles, nil, 400, 200)

	x0, y0 := f.point(0, 0)
	x1, _ := f.point(1, 0)
	_, y1 := f.point(0, 1)
	if dx, dy := x1-x0, y0-y1; dx < dy-1e-9 || dx > dy+1e-9 {
		t.Errorf("unequal scale: %v vs %v", dx, dy)
	}
	if x0 < 0 || x1 > 400 {
		t.Errorf("x out of canvas: %v..%v", x0, x1)
	}
}
