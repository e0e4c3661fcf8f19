package matrix

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	// jitterBase is the initial diagonal jitter relative to the mean diagonal magnitude
	jitterBase = 1e-12
	// jitterScale is the factor by which the jitter escalates between repair attempts
	jitterScale = 100.0
)

// RowSums returns a slice containing m row sums.
// It panics if m is nil.
func RowSums(m *mat.Dense) []float64 {
	rows, _ := m.Dims()
	sum := make([]float64, rows)

	for i := 0; i < rows; i++ {
		sum[i] = floats.Sum(m.RawRowView(i))
	}

	return sum
}

// ColSums returns a slice containing m column sums.
// It panics if m is nil.
func ColSums(m *mat.Dense) []float64 {
	_, cols := m.Dims()
	sum := make([]float64, cols)

	for i := 0; i < cols; i++ {
		sum[i] = mat.Sum(m.ColView(i))
	}

	return sum
}

// ToSym turns a square matrix into a symmetric one as 0.5*(A + A^T).
// It returns error if m is not square.
func ToSym(m mat.Matrix) (*mat.SymDense, error) {
	rows, cols := m.Dims()
	if rows != cols {
		return nil, fmt.Errorf("invalid matrix dimensions: [%d x %d]", rows, cols)
	}

	s := mat.NewSymDense(rows, nil)
	for i := 0; i < rows; i++ {
		for j := i; j < rows; j++ {
			s.SetSym(i, j, 0.5*(m.At(i, j)+m.At(j, i)))
		}
	}

	return s, nil
}

// SqrtPD returns the lower triangular Cholesky factor of a.
// If the factorization fails, escalating jitter is added to the diagonal
// of a copy of a, at most attempts times.
// It returns error if a can not be made positive definite.
func SqrtPD(a mat.Symmetric, attempts int) (*mat.TriDense, error) {
	n := a.SymmetricDim()
	s := mat.NewSymDense(n, nil)
	s.CopySym(a)

	var chol mat.Cholesky
	if chol.Factorize(s) {
		l := mat.NewTriDense(n, mat.Lower, nil)
		chol.LTo(l)
		return l, nil
	}

	eps := jitterBase * math.Max(meanDiag(s), 1.0)
	for i := 0; i < attempts; i++ {
		for j := 0; j < n; j++ {
			s.SetSym(j, j, s.At(j, j)+eps)
		}
		if chol.Factorize(s) {
			l := mat.NewTriDense(n, mat.Lower, nil)
			chol.LTo(l)
			return l, nil
		}
		eps *= jitterScale
	}

	return nil, fmt.Errorf("matrix is not positive definite after %d repair attempts", attempts)
}

// RepairPD mutates a in place until its Cholesky factorization succeeds,
// adding escalating jitter to the diagonal at most attempts times.
// It returns error if a can not be made positive definite.
func RepairPD(a *mat.SymDense, attempts int) error {
	n := a.SymmetricDim()

	var chol mat.Cholesky
	if chol.Factorize(a) {
		return nil
	}

	eps := jitterBase * math.Max(meanDiag(a), 1.0)
	for i := 0; i < attempts; i++ {
		for j := 0; j < n; j++ {
			a.SetSym(j, j, a.At(j, j)+eps)
		}
		if chol.Factorize(a) {
			return nil
		}
		eps *= jitterScale
	}

	return fmt.Errorf("matrix is not positive definite after %d repair attempts", attempts)
}

func meanDiag(a mat.Symmetric) float64 {
	n := a.SymmetricDim()
	if n == 0 {
		return 0
	}

	sum := 0.0
	for i := 0; i < n; i++ {
		sum += math.Abs(a.At(i, i))
	}

	return sum / float64(n)
}
