package mission

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/diffdrive/internal/goal"
	"github.com/san-kum/diffdrive/internal/odometry"
)

// Scenario is a scripted mission: a start pose and an ordered list of
// goals.
type Scenario struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description,omitempty"`
	Start       odometry.Pose `yaml:"start"`
	Goals       []goal.Target `yaml:"goals"`
}

func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading scenario")
	}
	return ParseScenario(data)
}

func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, "parsing scenario")
	}
	if len(s.Goals) == 0 {
		return nil, errors.Errorf("scenario %q has no goals", s.Name)
	}
	return &s, nil
}

func (s *Scenario) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return errors.Wrap(err, "encoding scenario")
	}
	return os.WriteFile(path, data, 0644)
}
