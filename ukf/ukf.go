package ukf

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/dynest/dynest"
	"github.com/dynest/dynest/matrix"
	"github.com/dynest/dynest/noise"
	"github.com/dynest/dynest/sigma"
	"github.com/dynest/dynest/state"
	"gonum.org/v1/gonum/mat"
)

const (
	// pdAttempts bounds the posterior covariance repair loop
	pdAttempts = 4
	// maxCond is the condition number beyond which the predicted
	// measurement covariance is treated as singular
	maxCond = 1e12
)

// Config contains UKF configuration parameters
type Config struct {
	// Sigma configures the unscented transform
	Sigma *sigma.Config
	// Q is process noise added to the predicted covariance; nil means zero
	Q dynest.Noise
	// R is the default measurement noise; it can be overridden per step
	R dynest.Noise
	// Workers bounds the number of concurrent model calls during
	// forecast; non-positive values select the number of CPUs
	Workers int
}

// UKF is an Unscented (aka Sigma Point) Kalman Filter estimating the
// augmented state (dynamic state plus parameters) of a black-box model.
type UKF struct {
	// model is the black-box system model
	model dynest.Model
	// aug tracks the augmented state layout and its constraints
	aug *state.Augmented
	// ut generates and recombines sigma points
	ut *sigma.Transform
	// q is process noise
	q dynest.Noise
	// r is default measurement noise
	r dynest.Noise
	// workers bounds concurrent model calls
	workers int
	// x is the posterior augmented state mean
	x *mat.VecDense
	// p is the posterior covariance matrix
	p *mat.SymDense
	// ppred is the predicted covariance matrix
	ppred *mat.SymDense
	// inn is innovation vector
	inn *mat.VecDense
	// k is Kalman gain
	k *mat.Dense
}

// New creates a new UKF and returns it.
// It accepts the following arguments:
//   - model: black-box model of the estimated system
//   - aug:   augmented state layout with entry names and constraints
//   - init:  initial augmented state mean and covariance
//   - c:     filter configuration
//
// It returns error if the model, initial condition and noise dimensions
// disagree with the augmented state or if the configuration does not
// yield a valid unscented transform.
func New(model dynest.Model, aug *state.Augmented, init dynest.InitCond, c *Config) (*UKF, error) {
	n := aug.Len()

	nx, ny := model.Dims()
	if nx != n {
		return nil, fmt.Errorf("invalid model dimensions: model state %d, augmented state %d", nx, n)
	}
	if ny <= 0 {
		return nil, fmt.Errorf("invalid model output dimension: %d", ny)
	}

	if init == nil {
		return nil, fmt.Errorf("invalid initial condition: nil")
	}

	x := init.State()
	if x == nil || x.Len() != n {
		return nil, fmt.Errorf("invalid initial state dimension")
	}

	cov := init.Cov()
	if cov == nil || cov.SymmetricDim() != n {
		return nil, fmt.Errorf("invalid initial covariance dimension")
	}

	ut, err := sigma.New(n, c.Sigma)
	if err != nil {
		return nil, err
	}

	q := c.Q
	if q == nil {
		q, _ = noise.NewZero(n)
	}
	if q.Cov().SymmetricDim() != n {
		return nil, fmt.Errorf("invalid process noise dimension: %d != %d", q.Cov().SymmetricDim(), n)
	}

	r := c.R
	if r == nil {
		r, _ = noise.NewZero(ny)
	}
	if r.Cov().SymmetricDim() != ny {
		return nil, fmt.Errorf("invalid measurement noise dimension: %d != %d", r.Cov().SymmetricDim(), ny)
	}

	workers := c.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	p := mat.NewSymDense(n, nil)
	p.CopySym(cov)
	if err := matrix.RepairPD(p, pdAttempts); err != nil {
		return nil, &dynest.NumericalError{Op: "initial covariance", Err: err}
	}

	ppred := mat.NewSymDense(n, nil)
	ppred.CopySym(p)

	if err := aug.Set(x); err != nil {
		return nil, err
	}

	return &UKF{
		model:   model,
		aug:     aug,
		ut:      ut,
		q:       q,
		r:       r,
		workers: workers,
		x:       aug.Vector(),
		p:       p,
		ppred:   ppred,
		inn:     mat.NewVecDense(ny, nil),
		k:       mat.NewDense(n, ny, nil),
	}, nil
}

// Step runs one forecast/update cycle: it propagates the posterior
// augmented state distribution through the model by dt given input u
// and fuses it with measurement z. r overrides the measurement noise
// covariance for this step; nil selects the configured default.
//
// The predicted measurement distribution is formed from the same
// propagated sigma points as the predicted state (additive noise form),
// and the parameter block of every propagated point is carried over
// from the generated point: parameters are only ever moved by the
// measurement update.
//
// The filter state is updated only when the whole step succeeds. On
// ForecastFailure or SingularCovarianceError the posterior is exactly
// what it was before the call.
func (k *UKF) Step(u, z mat.Vector, dt float64, r mat.Symmetric) (dynest.Estimate, error) {
	n := k.aug.Len()
	_, ny := k.model.Dims()

	if z == nil || z.Len() != ny {
		return nil, fmt.Errorf("invalid measurement vector")
	}
	if dt <= 0 {
		return nil, fmt.Errorf("invalid time step: %v", dt)
	}

	rCov := r
	if rCov == nil {
		rCov = k.r.Cov()
	}
	if rCov.SymmetricDim() != ny {
		return nil, fmt.Errorf("invalid measurement noise dimension: %d != %d", rCov.SymmetricDim(), ny)
	}

	// forecast: spread sigma points around the posterior and push every
	// one of them through the model
	pts, err := k.ut.Generate(k.x, k.p)
	if err != nil {
		return nil, err
	}
	k.clampPoints(pts)

	xPred, yPred, err := k.propagate(pts, u, dt)
	if err != nil {
		return nil, err
	}

	xMean, pCov, err := k.ut.Recombine(xPred)
	if err != nil {
		return nil, err
	}
	pPred := mat.NewSymDense(n, nil)
	pPred.AddSym(pCov, k.q.Cov())

	// predicted measurement distribution
	yMean, pyCov, err := k.ut.Recombine(yPred)
	if err != nil {
		return nil, err
	}
	pyy := mat.NewSymDense(ny, nil)
	pyy.AddSym(pyCov, rCov)

	pxy, err := k.ut.CrossCov(xPred, xMean, yPred, yMean)
	if err != nil {
		return nil, err
	}

	// gain and update: K = Pxy * Pyy^-1 via a Cholesky solve
	var chol mat.Cholesky
	if !chol.Factorize(pyy) {
		return nil, &dynest.SingularCovarianceError{Err: fmt.Errorf("cholesky factorization failed")}
	}
	if cond := chol.Cond(); cond > maxCond {
		return nil, &dynest.SingularCovarianceError{Err: fmt.Errorf("condition number %e exceeds %e", cond, maxCond)}
	}

	gainT := &mat.Dense{}
	if err := chol.SolveTo(gainT, pxy.T()); err != nil {
		return nil, &dynest.SingularCovarianceError{Err: err}
	}
	gain := mat.DenseCopyOf(gainT.T())

	inn := mat.NewVecDense(ny, nil)
	inn.SubVec(z, yMean)

	xPost := mat.NewVecDense(n, nil)
	xPost.MulVec(gain, inn)
	xPost.AddVec(xMean, xPost)

	// posterior covariance: Ppred - K*Pyy*K^T, symmetrized and repaired
	// before it is allowed back into the filter
	kr := &mat.Dense{}
	kr.Mul(pyy, gain.T())
	kpk := &mat.Dense{}
	kpk.Mul(gain, kr)

	pDense := &mat.Dense{}
	pDense.Sub(pPred, kpk)

	pPost, err := matrix.ToSym(pDense)
	if err != nil {
		return nil, &dynest.NumericalError{Op: "posterior covariance", Err: err}
	}
	if err := matrix.RepairPD(pPost, pdAttempts); err != nil {
		return nil, &dynest.NumericalError{Op: "posterior covariance", Err: err}
	}

	// constraint projection: clamping moves the mean only, the
	// covariance is deliberately left alone
	active := k.aug.Clamp(xPost)

	// the whole step succeeded: it is safe to update the filter state
	k.x.CopyVec(xPost)
	k.p.CopySym(pPost)
	k.ppred.CopySym(pPred)
	k.inn.CopyVec(inn)
	k.k.Copy(gain)
	if err := k.aug.Set(xPost); err != nil {
		return nil, err
	}

	return newResult(xPost, pPost, yMean, inn, active), nil
}

// clampPoints projects every generated sigma point onto the state
// bounds so the model is never advanced from an unphysical point.
func (k *UKF) clampPoints(pts *mat.Dense) {
	n, cols := pts.Dims()
	vec := mat.NewVecDense(n, nil)
	for c := 0; c < cols; c++ {
		vec.CopyVec(pts.ColView(c))
		k.aug.Clamp(vec)
		for i := 0; i < n; i++ {
			pts.Set(i, c, vec.AtVec(i))
		}
	}
}

// propagate advances all sigma points through the model on a bounded
// worker pool. Results are written into per-point columns so the sigma
// point order is preserved no matter how the work is scheduled.
// It returns ForecastFailure wrapping the first point-level error:
// partial sigma point sets are never returned.
func (k *UKF) propagate(pts *mat.Dense, u mat.Vector, dt float64) (xPred, yPred *mat.Dense, err error) {
	n, cols := pts.Dims()
	_, ny := k.model.Dims()
	nx := k.aug.StateLen()

	xPred = mat.NewDense(n, cols, nil)
	yPred = mat.NewDense(ny, cols, nil)
	errs := make([]error, cols)

	obs, observed := k.model.(dynest.Observer)

	var wg sync.WaitGroup
	idx := make(chan int)
	for w := 0; w < k.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range idx {
				point := mat.VecDenseCopyOf(pts.ColView(c))

				y, xNext, err := k.model.Advance(point, u, dt)
				if err != nil {
					errs[c] = err
					continue
				}
				if xNext == nil || xNext.Len() != n {
					errs[c] = fmt.Errorf("invalid next state vector")
					continue
				}

				if observed {
					if y, err = obs.Observe(xNext); err != nil {
						errs[c] = err
						continue
					}
				}
				if y == nil || y.Len() != ny {
					errs[c] = fmt.Errorf("invalid output vector")
					continue
				}

				for i := 0; i < nx; i++ {
					xPred.Set(i, c, xNext.AtVec(i))
				}
				// parameters propagate as constants
				for i := nx; i < n; i++ {
					xPred.Set(i, c, point.AtVec(i))
				}
				for i := 0; i < ny; i++ {
					yPred.Set(i, c, y.AtVec(i))
				}
			}
		}()
	}

	for c := 0; c < cols; c++ {
		idx <- c
	}
	close(idx)
	wg.Wait()

	for c, err := range errs {
		if err != nil {
			return nil, nil, &dynest.ForecastFailure{Point: c, Err: err}
		}
	}

	return xPred, yPred, nil
}

// State returns the current posterior augmented state mean
func (k *UKF) State() mat.Vector {
	x := mat.NewVecDense(k.x.Len(), nil)
	x.CopyVec(k.x)

	return x
}

// Covariance returns the current posterior covariance
func (k *UKF) Covariance() mat.Symmetric {
	cov := mat.NewSymDense(k.p.SymmetricDim(), nil)
	cov.CopySym(k.p)

	return cov
}

// Gain returns Kalman gain
func (k *UKF) Gain() mat.Matrix {
	gain := &mat.Dense{}
	gain.CloneFrom(k.k)

	return gain
}
