package ukf

import "gonum.org/v1/gonum/mat"

// Result is the outcome of a single filter step.
type Result struct {
	// val is the posterior augmented state mean
	val *mat.VecDense
	// cov is the posterior covariance
	cov *mat.SymDense
	// output is the predicted measurement mean
	output *mat.VecDense
	// inn is the innovation vector
	inn *mat.VecDense
	// active flags the entries clamped by constraint projection
	active []bool
}

func newResult(val *mat.VecDense, cov *mat.SymDense, output, inn *mat.VecDense, active []bool) *Result {
	return &Result{
		val:    mat.VecDenseCopyOf(val),
		cov:    copySym(cov),
		output: mat.VecDenseCopyOf(output),
		inn:    mat.VecDenseCopyOf(inn),
		active: active,
	}
}

// Val returns the posterior augmented state mean
func (r *Result) Val() mat.Vector {
	return mat.VecDenseCopyOf(r.val)
}

// Cov returns the posterior covariance
func (r *Result) Cov() mat.Symmetric {
	return copySym(r.cov)
}

// Output returns the predicted measurement mean
func (r *Result) Output() mat.Vector {
	return mat.VecDenseCopyOf(r.output)
}

// Innovation returns the innovation vector
func (r *Result) Innovation() mat.Vector {
	return mat.VecDenseCopyOf(r.inn)
}

// ConstraintActive returns per-entry flags indicating which augmented
// state entries were clamped to their bounds by this step
func (r *Result) ConstraintActive() []bool {
	active := make([]bool, len(r.active))
	copy(active, r.active)

	return active
}

func copySym(s *mat.SymDense) *mat.SymDense {
	c := mat.NewSymDense(s.SymmetricDim(), nil)
	c.CopySym(s)

	return c
}
