package viz

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/diffdrive/internal/goal"
	"github.com/san-kum/diffdrive/internal/mission"
	"github.com/san-kum/diffdrive/internal/odometry"
)

const (
	width           = 72
	height          = 22
	historyCapacity = 600
	maxSpeed        = 32
)

type TickMsg time.Time

// Factory builds a fresh runner for each (re)start of the mission.
type Factory func() (*mission.Runner, mission.Robot, error)

// Model steps a mission on every tick and draws it.
type Model struct {
	factory Factory
	goals   []goal.Target
	name    string

	runner *mission.Runner
	robot  mission.Robot
	index  int
	last   mission.Cycle
	err    error
	done   bool

	estimate   []odometry.Pose
	truth      []odometry.Pose
	rhoHistory []float64

	canvas   *Canvas
	theme    Theme
	running  bool
	speed    int
	showHelp bool
}

func NewModel(name string, goals []goal.Target, factory Factory) Model {
	m := Model{
		factory: factory,
		goals:   goals,
		name:    name,
		canvas:  NewCanvas(width, height),
		theme:   Themes[0],
		running: true,
		speed:   1,
	}
	m.reset()
	return m
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/60, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tick()
}

// Update handles input events and steps the mission.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.stop()
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			m.stop()
			m.reset()
		case "+", "=":
			m.speed = min(m.speed*2, maxSpeed)
		case "-", "_":
			m.speed = max(m.speed/2, 1)
		case "t":
			m.theme = nextTheme(m.theme)
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running {
			for i := 0; i < m.speed && !m.finished(); i++ {
				m.step()
			}
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) finished() bool { return m.done || m.err != nil }

// reset builds a new runner and starts the first goal.
func (m *Model) reset() {
	m.index = 0
	m.done = false
	m.err = nil
	m.last = mission.Cycle{}
	m.estimate = m.estimate[:0]
	m.truth = m.truth[:0]
	m.rhoHistory = m.rhoHistory[:0]

	runner, robot, err := m.factory()
	if err != nil {
		m.err = err
		return
	}
	m.runner, m.robot = runner, robot

	ctx := context.Background()
	if err := m.runner.Init(ctx); err != nil {
		m.err = err
		return
	}
	if err := m.robot.Stop(ctx); err != nil {
		m.err = err
		return
	}
	m.begin()
}

func (m *Model) begin() {
	if m.index >= len(m.goals) {
		m.done = true
		m.stop()
		return
	}
	m.err = m.runner.Begin(m.goals[m.index])
}

func (m *Model) stop() {
	if m.robot != nil {
		_ = m.robot.Stop(context.Background())
	}
}

// step runs one control cycle and moves on to the next goal on arrival.
func (m *Model) step() {
	c, err := m.runner.Cycle(context.Background())
	if err != nil {
		m.err = err
		return
	}
	m.last = c
	m.estimate = appendCapped(m.estimate, c.Pose)
	m.truth = appendCapped(m.truth, c.Truth)
	m.rhoHistory = append(m.rhoHistory, c.Rho)
	if len(m.rhoHistory) > historyCapacity {
		m.rhoHistory = m.rhoHistory[1:]
	}

	if c.Command.AtGoal {
		m.index++
		m.begin()
	}
}

func appendCapped(s []odometry.Pose, p odometry.Pose) []odometry.Pose {
	s = append(s, p)
	if len(s) > historyCapacity {
		s = s[1:]
	}
	return s
}

// draw renders the two paths, the goals and the robot heading.
func (m *Model) draw() {
	m.canvas.Clear()

	minX, maxX, minY, maxY := 0.0, 0.0, 0.0, 0.0
	grow := func(x, y float64) {
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	for _, g := range m.goals {
		grow(g.X, g.Y)
	}
	for _, p := range m.estimate {
		grow(p.X, p.Y)
	}
	margin := 0.1 * math.Max(maxX-minX, maxY-minY)
	v := FitView(m.canvas, minX-margin, maxX+margin, minY-margin, maxY+margin)

	for i, p := range m.truth {
		if i%3 != 0 {
			continue
		}
		x, y := v.Project(p.X, p.Y)
		m.canvas.Set(x, y)
	}
	for i := 1; i < len(m.estimate); i++ {
		x0, y0 := v.Project(m.estimate[i-1].X, m.estimate[i-1].Y)
		x1, y1 := v.Project(m.estimate[i].X, m.estimate[i].Y)
		m.canvas.DrawLine(x0, y0, x1, y1)
	}
	for _, g := range m.goals {
		x, y := v.Project(g.X, g.Y)
		m.canvas.DrawCross(x, y, 2)
	}

	if n := len(m.estimate); n > 0 {
		p := m.estimate[n-1]
		x, y := v.Project(p.X, p.Y)
		m.canvas.DrawLine(x, y, x+int(math.Round(6*math.Cos(p.Theta))), y-int(math.Round(6*math.Sin(p.Theta))))
	}
}

// View renders the TUI interface.
func (m Model) View() string {
	st := newStyles(m.theme)
	m.draw()
	canvasView := st.canvas.Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(st.header.Render(strings.ToUpper(m.name)) + "\n")

	switch {
	case m.err != nil:
		s.WriteString(st.failed.Render("ERROR") + "\n" + st.value.Render(m.err.Error()) + "\n\n")
	case m.done:
		s.WriteString(st.done.Render("COMPLETE") + "\n\n")
	case !m.running:
		s.WriteString(st.paused.Render("PAUSED") + "\n\n")
	default:
		s.WriteString(st.running.Render(fmt.Sprintf("RUNNING x%d", m.speed)) + "\n\n")
	}

	if len(m.rhoHistory) > 1 {
		chart := asciigraph.Plot(m.rhoHistory, asciigraph.Height(4), asciigraph.Width(28), asciigraph.Caption("distance to goal (m)"))
		s.WriteString(st.graph.Render(chart) + "\n\n")
	}

	row := func(label, value string) {
		s.WriteString(st.label.Render(label) + st.value.Render(value) + "\n")
	}
	c := m.last
	current := min(m.index+1, len(m.goals))
	row("Goal", fmt.Sprintf("%d/%d %s", current, len(m.goals), ProgressBar(m.index, len(m.goals), 10)))
	if m.index < len(m.goals) {
		g := m.goals[m.index]
		row("Target", fmt.Sprintf("(%.3f, %.3f, %.2f)", g.X, g.Y, g.Theta))
	}
	row("Time", fmt.Sprintf("%.2fs", c.Time))
	row("Pose", c.Pose.String())
	row("Truth", c.Truth.String())
	row("Rho", fmt.Sprintf("%.4f m", c.Rho))
	row("Wheels", fmt.Sprintf("%5d %5d", c.Command.Left, c.Command.Right))

	s.WriteString(st.help.Render("─────────────────────\nSP:Pause R:Restart Q:Quit\n+/-:Speed T:Theme ?:Help"))
	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, st.panel.Render(s.String()))

	if m.showHelp {
		return `
╔══════════════════════════════════════╗
║           KEYBOARD SHORTCUTS         ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume             ║
║  R        - Restart the mission      ║
║  +/-      - Cycles per frame         ║
║  T        - Cycle themes             ║
║  ?        - Toggle this help         ║
║  Q        - Quit                     ║
╚══════════════════════════════════════╝
` + "\n\n" + mainView
	}
	return mainView
}

// Done reports whether every goal was reached.
func (m Model) Done() bool { return m.done }

func (m Model) Err() error { return m.err }
