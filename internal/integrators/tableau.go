package integrators

import "github.com/san-kum/diffdrive/internal/dynamo"

// tableau is an explicit Runge-Kutta method in Butcher form. Row s of a
// holds the weights of the earlier stages that feed stage s.
type tableau struct {
	c []float64
	a [][]float64
	b []float64

	// e holds b - b̂ for embedded pairs, nil otherwise.
	e []float64
}

var classicRK4 = &tableau{
	c: []float64{0, 0.5, 0.5, 1},
	a: [][]float64{
		{},
		{0.5},
		{0, 0.5},
		{0, 0, 1},
	},
	b: []float64{1.0 / 6, 1.0 / 3, 1.0 / 3, 1.0 / 6},
}

// dormandPrince is DOPRI5. The seventh stage is evaluated at the fifth-order
// solution, so it only enters the error estimate.
var dormandPrince = &tableau{
	c: []float64{0, 1.0 / 5, 3.0 / 10, 4.0 / 5, 8.0 / 9, 1, 1},
	a: [][]float64{
		{},
		{1.0 / 5},
		{3.0 / 40, 9.0 / 40},
		{44.0 / 45, -56.0 / 15, 32.0 / 9},
		{19372.0 / 6561, -25360.0 / 2187, 64448.0 / 6561, -212.0 / 729},
		{9017.0 / 3168, -355.0 / 33, 46732.0 / 5247, 49.0 / 176, -5103.0 / 18656},
		{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84},
	},
	b: []float64{35.0 / 384, 0, 500.0 / 1113, 125.0 / 192, -2187.0 / 6784, 11.0 / 84, 0},
	e: []float64{
		35.0/384 - 5179.0/57600,
		0,
		500.0/1113 - 7571.0/16695,
		125.0/192 - 393.0/640,
		-2187.0/6784 + 92097.0/339200,
		11.0/84 - 187.0/2100,
		-1.0 / 40,
	},
}

// rungeKutta evaluates a tableau with stage buffers that are reused while
// the state dimension stays the same.
type rungeKutta struct {
	tab   *tableau
	k     []dynamo.State
	stage dynamo.State
}

func (r *rungeKutta) ensure(n int) {
	if len(r.stage) == n {
		return
	}
	r.stage = make(dynamo.State, n)
	r.k = make([]dynamo.State, len(r.tab.b))
	for s := range r.k {
		r.k[s] = make(dynamo.State, n)
	}
}

// step writes the solution after h into out, which must not alias x.
func (r *rungeKutta) step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, h float64, out dynamo.State) {
	n := len(x)
	r.ensure(n)

	for s := range r.tab.b {
		copy(r.stage, x)
		for j, a := range r.tab.a[s] {
			if a == 0 {
				continue
			}
			for i := 0; i < n; i++ {
				r.stage[i] += h * a * r.k[j][i]
			}
		}
		copy(r.k[s], dyn.Derive(r.stage, u, t+r.tab.c[s]*h))
	}

	for i := 0; i < n; i++ {
		sum := 0.0
		for s, b := range r.tab.b {
			sum += b * r.k[s][i]
		}
		out[i] = x[i] + h*sum
	}
}

// localError returns component i of the embedded error estimate of the
// last step.
func (r *rungeKutta) localError(i int, h float64) float64 {
	sum := 0.0
	for s, e := range r.tab.e {
		sum += e * r.k[s][i]
	}
	return h * sum
}
