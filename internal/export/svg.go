package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/diffdrive/internal/goal"
	"github.com/san-kum/diffdrive/internal/mission"
	"github.com/san-kum/diffdrive/internal/odometry"
)

type SVGOptions struct {
	Width, Height int
	EstimateColor string
	TruthColor    string
	GoalColor     string
}

func DefaultSVGOptions() SVGOptions {
	return SVGOptions{
		Width:         600,
		Height:        600,
		EstimateColor: "#00ff88",
		TruthColor:    "#00ccff",
		GoalColor:     "#ff4444",
	}
}

// frame maps world meters to SVG pixels with equal scale on both axes
// and y pointing up.
type frame struct {
	minX, minY float64
	scale      float64
	offX, offY float64
	height     float64
}

func newFrame(cycles []mission.Cycle, goals []goal.Target, width, height int) frame {
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	grow := func(x, y float64) {
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	for _, c := range cycles {
		grow(c.Pose.X, c.Pose.Y)
		grow(c.Truth.X, c.Truth.Y)
	}
	for _, g := range goals {
		grow(g.X, g.Y)
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	span := math.Max(rangeX, rangeY)
	if span == 0 {
		span = 0.1
	}
	pad := span * 0.1
	minX -= pad
	minY -= pad
	span += 2 * pad

	w, h := float64(width), float64(height)
	scale := math.Min(w, h) / span
	return frame{
		minX:   minX,
		minY:   minY,
		scale:  scale,
		offX:   (w - rangeX*scale - 2*pad*scale) / 2,
		offY:   (h - rangeY*scale - 2*pad*scale) / 2,
		height: h,
	}
}

func (f frame) point(x, y float64) (float64, float64) {
	px := f.offX + (x-f.minX)*f.scale
	py := f.height - f.offY - (y-f.minY)*f.scale
	return px, py
}

func (f frame) path(sb *strings.Builder, poses []odometry.Pose, color, dash string) {
	sb.WriteString(fmt.Sprintf(`<path fill="none" stroke="%s" stroke-width="1.5"%s d="`, color, dash))
	for i, p := range poses {
		x, y := f.point(p.X, p.Y)
		if i == 0 {
			sb.WriteString(fmt.Sprintf("M%.1f,%.1f", x, y))
		} else {
			sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
		}
	}
	sb.WriteString("\"/>\n")
}

// TrajectoryToSVG draws the estimated path, the true path when it differs,
// and each goal with a heading tick.
func TrajectoryToSVG(cycles []mission.Cycle, goals []goal.Target, opts SVGOptions) string {
	if len(cycles) < 2 {
		return ""
	}

	f := newFrame(cycles, goals, opts.Width, opts.Height)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, opts.Width, opts.Height, opts.Width, opts.Height))

	est := make([]odometry.Pose, len(cycles))
	truth := make([]odometry.Pose, len(cycles))
	differs := false
	for i, c := range cycles {
		est[i] = c.Pose
		truth[i] = c.Truth
		if c.Truth != c.Pose {
			differs = true
		}
	}
	if differs {
		f.path(&sb, truth, opts.TruthColor, ` stroke-dasharray="4,3"`)
	}
	f.path(&sb, est, opts.EstimateColor, "")

	tick := 0.05 * math.Min(float64(opts.Width), float64(opts.Height))
	for _, g := range goals {
		x, y := f.point(g.X, g.Y)
		sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="4" fill="%s"/>
<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="%s" stroke-width="2"/>
`, x, y, opts.GoalColor, x, y, x+tick*math.Cos(g.Theta), y-tick*math.Sin(g.Theta), opts.GoalColor))
	}

	sb.WriteString("</svg>")
	return sb.String()
}
