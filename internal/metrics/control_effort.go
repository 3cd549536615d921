package metrics

import (
	"math"

	"github.com/san-kum/diffdrive/internal/mission"
)

// ControlEffort is the mean of |left| + |right| wheel commands per cycle.
type ControlEffort struct {
	name    string
	sum     float64
	samples int
}

func NewControlEffort() *ControlEffort {
	return &ControlEffort{
		name: "control_effort",
	}
}

func (c *ControlEffort) Name() string {
	return c.name
}

func (c *ControlEffort) Observe(cy mission.Cycle) {
	c.sum += math.Abs(float64(cy.Command.Left)) + math.Abs(float64(cy.Command.Right))
	c.samples++
}

func (c *ControlEffort) Value() float64 {
	if c.samples == 0 {
		return 0
	}
	return c.sum / float64(c.samples)
}

func (c *ControlEffort) Reset() {
	c.sum = 0
	c.samples = 0
}
