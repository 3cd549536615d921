package integrators

import "github.com/san-kum/diffdrive/internal/dynamo"

// RK4 is the classic fourth-order method. The plant is stepped once per
// control period with the wheel commands held.
type RK4 struct {
	rk rungeKutta
}

func NewRK4() *RK4 {
	return &RK4{rk: rungeKutta{tab: classicRK4}}
}

func (r *RK4) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	out := make(dynamo.State, len(x))
	r.rk.step(dyn, x, u, t, dt, out)
	return out
}
