package sigma

import (
	"fmt"
	"math"

	"github.com/dynest/dynest"
	"github.com/dynest/dynest/matrix"
	"gonum.org/v1/gonum/mat"
)

// cholAttempts bounds the covariance repair loop during point generation
const cholAttempts = 4

// Config contains unscented transform [unitless] configuration parameters
type Config struct {
	// Alpha is the sigma point spread parameter (0,1]
	Alpha float64
	// Beta is the distribution shape parameter (2 is optimal choice for Gaussian)
	Beta float64
	// Kappa is the secondary scaling parameter
	Kappa float64
}

// Transform is an unscented transform for a fixed dimension n.
// It generates 2n+1 deterministically ordered sigma points from a mean
// and covariance and recombines transformed point sets back into a
// weighted mean and covariance.
type Transform struct {
	// n is the transform dimension
	n int
	// gamma scales the covariance square root columns
	gamma float64
	// wm0 is the central point mean weight
	wm0 float64
	// wc0 is the central point covariance weight
	wc0 float64
	// w is the weight of all remaining points
	w float64
}

// New creates a new Transform for dimension n and returns it.
// It returns error if n is not positive or if the configuration does not
// yield finite weights: Alpha must be non-zero and Alpha^2*(n+Kappa)
// must be positive.
func New(n int, c *Config) (*Transform, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid transform dimension: %d", n)
	}

	if c == nil || c.Alpha == 0 {
		return nil, fmt.Errorf("invalid config supplied: %v", c)
	}

	lambda := c.Alpha*c.Alpha*(float64(n)+c.Kappa) - float64(n)
	scale := float64(n) + lambda
	if scale <= 0 || math.IsInf(scale, 0) || math.IsNaN(scale) {
		return nil, fmt.Errorf("invalid scale factor %v for config %v", scale, c)
	}

	return &Transform{
		n:     n,
		gamma: math.Sqrt(scale),
		wm0:   lambda / scale,
		wc0:   lambda/scale + (1 - c.Alpha*c.Alpha + c.Beta),
		w:     1 / (2 * scale),
	}, nil
}

// Dim returns the transform dimension
func (t *Transform) Dim() int { return t.n }

// PointCount returns the number of sigma points the transform generates
func (t *Transform) PointCount() int { return 2*t.n + 1 }

// Weights returns the mean and covariance weight vectors.
// Mean weights always sum to 1; covariance weights sum to
// 1 + (1 - Alpha^2 + Beta).
func (t *Transform) Weights() (wm, wc []float64) {
	count := t.PointCount()
	wm = make([]float64, count)
	wc = make([]float64, count)

	wm[0], wc[0] = t.wm0, t.wc0
	for i := 1; i < count; i++ {
		wm[i], wc[i] = t.w, t.w
	}

	return wm, wc
}

// Generate generates sigma points around mean spread by cov and returns
// them stored in the columns of the returned matrix. The point order is
// a contract: column 0 is the mean, columns 1..n are mean + gamma*L_i
// and columns n+1..2n are mean - gamma*L_i, where L_i are the columns
// of the Cholesky factor of cov.
// It returns NumericalError if cov can not be factorized even after the
// bounded jitter repair.
func (t *Transform) Generate(mean mat.Vector, cov mat.Symmetric) (*mat.Dense, error) {
	if mean.Len() != t.n || cov.SymmetricDim() != t.n {
		return nil, fmt.Errorf("invalid dimensions: mean %d, cov %d, transform %d", mean.Len(), cov.SymmetricDim(), t.n)
	}

	l, err := matrix.SqrtPD(cov, cholAttempts)
	if err != nil {
		return nil, &dynest.NumericalError{Op: "sigma point generation", Err: err}
	}

	pts := mat.NewDense(t.n, t.PointCount(), nil)
	for i := 0; i < t.n; i++ {
		pts.Set(i, 0, mean.AtVec(i))
		for j := 0; j < t.n; j++ {
			spread := t.gamma * l.At(i, j)
			pts.Set(i, 1+j, mean.AtVec(i)+spread)
			pts.Set(i, 1+t.n+j, mean.AtVec(i)-spread)
		}
	}

	return pts, nil
}

// Recombine computes the weighted mean and covariance of a transformed
// sigma point set stored in the columns of pts. The row dimension of
// pts may differ from the transform dimension: propagated states and
// observed outputs are both recombined with the same weights.
// It returns error if pts does not hold exactly 2n+1 columns.
func (t *Transform) Recombine(pts *mat.Dense) (*mat.VecDense, *mat.SymDense, error) {
	rows, cols := pts.Dims()
	if cols != t.PointCount() {
		return nil, nil, fmt.Errorf("invalid sigma point count: %d != %d", cols, t.PointCount())
	}

	wm, wc := t.Weights()

	mean := mat.NewVecDense(rows, nil)
	for c := 0; c < cols; c++ {
		mean.AddScaledVec(mean, wm[c], pts.ColView(c))
	}

	cov := mat.NewSymDense(rows, nil)
	diff := mat.NewVecDense(rows, nil)
	for c := 0; c < cols; c++ {
		diff.SubVec(pts.ColView(c), mean)
		cov.SymRankOne(cov, wc[c], diff)
	}

	return mean, cov, nil
}

// CrossCov computes the weighted cross covariance between two
// transformed sigma point sets. x and y must both hold 2n+1 columns;
// xMean and yMean are their recombined means.
// It returns error on dimension mismatch.
func (t *Transform) CrossCov(x *mat.Dense, xMean mat.Vector, y *mat.Dense, yMean mat.Vector) (*mat.Dense, error) {
	xRows, xCols := x.Dims()
	yRows, yCols := y.Dims()

	if xCols != t.PointCount() || yCols != t.PointCount() {
		return nil, fmt.Errorf("invalid sigma point count: [%d, %d] != %d", xCols, yCols, t.PointCount())
	}
	if xMean.Len() != xRows || yMean.Len() != yRows {
		return nil, fmt.Errorf("invalid mean dimensions: [%d, %d]", xMean.Len(), yMean.Len())
	}

	_, wc := t.Weights()

	cov := mat.NewDense(xRows, yRows, nil)
	dx := mat.NewVecDense(xRows, nil)
	dy := mat.NewVecDense(yRows, nil)
	for c := 0; c < xCols; c++ {
		dx.SubVec(x.ColView(c), xMean)
		dy.SubVec(y.ColView(c), yMean)
		cov.RankOne(cov, wc[c], dx, dy)
	}

	return cov, nil
}
