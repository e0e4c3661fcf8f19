package sim

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Discrete is a model of a linear, discrete-time, dynamical system
type Discrete struct {
	System
}

// NewDiscrete creates a linear discrete-time model based on the control theory equations.
//
//	x[n+1] = A*x[n] + B*u[n]
//	y[n] = C*x[n] + D*u[n]
func NewDiscrete(A, B, C, D, E *mat.Dense) (*Discrete, error) {
	if A == nil {
		return nil, fmt.Errorf("system matrix must be defined for a model")
	}
	return &Discrete{System: newSystem(A, B, C, D, E)}, nil
}

// Advance moves the system one sample forward given input u and
// returns the output of the new state together with the new state.
// The time step dt is ignored: one call is one sample.
func (d *Discrete) Advance(x, u mat.Vector, dt float64) (y, xNext mat.Vector, err error) {
	xNext, err = d.Propagate(x, u, nil)
	if err != nil {
		return nil, nil, err
	}

	y, err = d.Observe(xNext, u, nil)
	if err != nil {
		return nil, nil, err
	}

	return y, xNext, nil
}

// Propagate returns the next internal state x of the system given an
// input vector u. wd is added to the new state as a process noise vector.
func (d *Discrete) Propagate(x, u, wd mat.Vector) (mat.Vector, error) {
	nx, nu, _, _ := d.SystemDims()
	if u != nil && u.Len() != nu {
		return nil, fmt.Errorf("invalid input vector")
	}

	if x.Len() != nx {
		return nil, fmt.Errorf("invalid state vector")
	}

	out := new(mat.Dense)
	out.Mul(d.A, x)
	if u != nil && d.B != nil {
		outU := new(mat.Dense)
		outU.Mul(d.B, u)

		out.Add(out, outU)
	}

	if wd != nil && wd.Len() == nx {
		out.Add(out, wd)
	}
	return out.ColView(0), nil
}
