package optim

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/san-kum/diffdrive/internal/config"
	"github.com/san-kum/diffdrive/internal/metrics"
)

// MetricSteps scores a mission by its total control cycles.
const MetricSteps = "steps"

// Tunable controller parameters.
var setters = map[string]func(c *config.Config, v float64){
	"rho":            func(c *config.Config, v float64) { c.Controller.Gains.Rho = v },
	"alpha":          func(c *config.Config, v float64) { c.Controller.Gains.Alpha = v },
	"beta":           func(c *config.Config, v float64) { c.Controller.Gains.Beta = v },
	"speed_min":      func(c *config.Config, v float64) { c.Controller.SpeedMin = v },
	"arrival_radius": func(c *config.Config, v float64) { c.Controller.ArrivalRadius = v },
}

func TunableParams() []string {
	names := make([]string, 0, len(setters))
	for name := range setters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply returns a copy of base with params written into the controller
// tuning.
func Apply(base *config.Config, params map[string]float64) (*config.Config, error) {
	cfg := *base
	for name, v := range params {
		set, ok := setters[name]
		if !ok {
			return nil, errors.Errorf("unknown parameter: %s (available: %v)", name, TunableParams())
		}
		set(&cfg, v)
	}
	return &cfg, nil
}

// MissionObjective runs base's mission on the simulator and scores it by
// metric. Missions that miss a goal are discarded.
func MissionObjective(base *config.Config, metric string) Objective {
	return func(ctx context.Context, params map[string]float64) (float64, error) {
		cfg, err := Apply(base, params)
		if err != nil {
			return 0, err
		}
		runner, _, err := config.NewSimulation(cfg, nil)
		if err != nil {
			return 0, err
		}
		for _, m := range metrics.Standard() {
			runner.AddMetric(m)
		}

		result, err := runner.Run(ctx, cfg.Goals)
		if err != nil {
			return 0, err
		}

		if metric == MetricSteps {
			steps := 0
			for _, ep := range result.Episodes {
				steps += ep.Steps
			}
			return float64(steps), nil
		}
		v, ok := result.Metrics[metric]
		if !ok {
			return 0, errors.Errorf("unknown metric: %s", metric)
		}
		return v, nil
	}
}
