package dynest

import "gonum.org/v1/gonum/mat"

// Model is a black-box model of a nonlinear dynamical system.
// Given the current state, an input vector and a time step it returns
// the model outputs and the next state. The filter never looks inside
// the model: any solver (explicit/implicit ODE, DAE, co-simulation) can
// sit behind this interface.
//
// Advance must be safe for concurrent use: during a single forecast the
// filter calls it once per sigma point, possibly from parallel workers.
// A model which fails to converge for a given state should return
// ModelDivergenceError rather than block or fabricate outputs.
type Model interface {
	// Advance advances the model by one time step dt given state x and input u.
	// It returns the model outputs and the next state.
	Advance(x, u mat.Vector, dt float64) (y, xNext mat.Vector, err error)
	// Dims returns state and output dimensions of the model
	Dims() (nx, ny int)
}

// Observer is an optional decoupled measurement model.
// When a Model also implements Observer, the filter derives predicted
// measurements by calling Observe on each propagated state instead of
// using the outputs returned by Advance.
type Observer interface {
	// Observe returns the model outputs for state x
	Observe(x mat.Vector) (mat.Vector, error)
}

// Filter is a dynamical system filter.
type Filter interface {
	// Step runs one forecast/update cycle given input u, measurement z,
	// time step dt and measurement noise covariance r (nil selects the
	// covariance supplied at construction).
	Step(u, z mat.Vector, dt float64, r mat.Symmetric) (Estimate, error)
}

// InitCond is initial state condition of the filter
type InitCond interface {
	// State returns initial filter state
	State() mat.Vector
	// Cov returns initial state covariance
	Cov() mat.Symmetric
}

// Estimate is dynamical system filter estimate
type Estimate interface {
	// Val returns estimate value
	Val() mat.Vector
	// Cov returns estimate covariance
	Cov() mat.Symmetric
}

// Noise is dynamical system noise
type Noise interface {
	// Mean returns noise mean
	Mean() []float64
	// Cov returns covariance matrix of the noise
	Cov() mat.Symmetric
	// Sample returns a sample of the noise
	Sample() mat.Vector
	// Reset resets the noise
	Reset()
}
