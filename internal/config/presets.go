package config

import (
	"math"
	"sort"

	"github.com/san-kum/diffdrive/internal/goal"
	"github.com/san-kum/diffdrive/internal/odometry"
)

type Preset struct {
	Description string
	Start       odometry.Pose
	Goals       []goal.Target
}

var Presets = map[string]Preset{
	"shuttle": {
		Description: "10 cm forward, then back and face -y",
		Start:       odometry.Pose{Theta: math.Pi / 2},
		Goals: []goal.Target{
			{X: 0, Y: 0.1, Theta: math.Pi / 2},
			{X: 0, Y: 0, Theta: -math.Pi / 2},
		},
	},
	"square": {
		Description: "10 cm square visiting each corner",
		Goals: []goal.Target{
			{X: 0.1, Y: 0, Theta: math.Pi / 2},
			{X: 0.1, Y: 0.1, Theta: math.Pi},
			{X: 0, Y: 0.1, Theta: -math.Pi / 2},
			{X: 0, Y: 0, Theta: 0},
		},
	},
	"turn": {
		Description: "goal behind the robot, then home",
		Goals: []goal.Target{
			{X: -0.1, Y: 0, Theta: math.Pi},
			{X: 0, Y: 0, Theta: 0},
		},
	},
}

// GetPreset returns the default config with the named preset applied, or
// nil when no such preset exists.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Name = name
	cfg.Start = p.Start
	cfg.Goals = append([]goal.Target(nil), p.Goals...)
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
