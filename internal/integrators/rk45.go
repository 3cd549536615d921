package integrators

import (
	"math"

	"github.com/pkg/errors"

	"github.com/san-kum/diffdrive/internal/dynamo"
)

// ErrStepUnderflow is returned when the error controller shrinks a substep
// below MinStep.
var ErrStepUnderflow = errors.New("integrators: adaptive step underflow")

// RK45 is the Dormand-Prince 5(4) pair.
type RK45 struct {
	Safety   float64
	MinScale float64
	MaxScale float64
	MinStep  float64

	rk    rungeKutta
	trial dynamo.State
}

func NewRK45() *RK45 {
	return &RK45{
		Safety:   0.9,
		MinScale: 0.2,
		MaxScale: 5.0,
		MinStep:  1e-9,
		rk:       rungeKutta{tab: dormandPrince},
	}
}

// Step takes a single fifth-order step without error control.
func (r *RK45) Step(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt float64) dynamo.State {
	out := make(dynamo.State, len(x))
	r.rk.step(dyn, x, u, t, dt, out)
	return out
}

// StepAdaptive advances x by exactly dt. Substeps whose error norm exceeds
// one are rejected and retried smaller. The second result is the step size
// suggested for the next call.
func (r *RK45) StepAdaptive(dyn dynamo.System, x dynamo.State, u dynamo.Control, t, dt, tol float64) (dynamo.State, float64, error) {
	if !(tol > 0) {
		return nil, 0, errors.Errorf("integrators: tolerance must be positive, got %v", tol)
	}
	n := len(x)
	if len(r.trial) != n {
		r.trial = make(dynamo.State, n)
	}

	cur := x.Clone()
	h := dt
	remaining := dt
	for remaining > 0 {
		step := math.Min(h, remaining)
		r.rk.step(dyn, cur, u, t, step, r.trial)

		norm := r.errorNorm(cur, step, tol)
		if math.IsNaN(norm) || math.IsInf(norm, 0) {
			return nil, 0, errors.Wrapf(dynamo.ErrInvalidState, "rk45: non-finite error estimate at t=%g", t)
		}

		if norm <= 1 {
			copy(cur, r.trial)
			t += step
			remaining -= step
			// A step clipped to the end of the interval says nothing
			// about the size the next interval can take.
			if step == h {
				h = step * r.grow(norm)
			}
			continue
		}

		h = step * math.Max(r.MinScale, r.Safety*math.Pow(norm, -0.25))
		if h < r.MinStep {
			return nil, 0, errors.Wrapf(ErrStepUnderflow, "at t=%g with h=%g", t, h)
		}
	}
	return cur, h, nil
}

func (r *RK45) grow(norm float64) float64 {
	if norm == 0 {
		return r.MaxScale
	}
	return math.Min(r.MaxScale, r.Safety*math.Pow(norm, -0.2))
}

// errorNorm is the RMS of the local error scaled by tol*(1+|x|) per
// component. Wheel angles grow without bound over a mission, so they are
// judged relatively while the pose near the origin is judged absolutely.
func (r *RK45) errorNorm(x dynamo.State, h, tol float64) float64 {
	sum := 0.0
	for i := range x {
		sc := tol * (1 + math.Max(math.Abs(x[i]), math.Abs(r.trial[i])))
		e := r.rk.localError(i, h) / sc
		sum += e * e
	}
	return math.Sqrt(sum / float64(len(x)))
}
