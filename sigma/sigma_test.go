package sigma

import (
	"errors"
	"testing"

	"github.com/dynest/dynest"
	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var c = &Config{
	Alpha: 0.5,
	Beta:  2.0,
	Kappa: 3.0,
}

func TestNew(t *testing.T) {
	assert := assert.New(t)

	tr, err := New(3, c)
	assert.NotNil(tr)
	assert.NoError(err)
	assert.Equal(3, tr.Dim())
	assert.Equal(7, tr.PointCount())

	// invalid dimension
	tr, err = New(0, c)
	assert.Nil(tr)
	assert.Error(err)

	// nil config
	tr, err = New(3, nil)
	assert.Nil(tr)
	assert.Error(err)

	// zero spread
	tr, err = New(3, &Config{Alpha: 0.0, Beta: 2.0, Kappa: 0.0})
	assert.Nil(tr)
	assert.Error(err)

	// non-positive scale factor
	tr, err = New(3, &Config{Alpha: 1.0, Beta: 2.0, Kappa: -3.0})
	assert.Nil(tr)
	assert.Error(err)
}

func TestWeights(t *testing.T) {
	assert := assert.New(t)

	for n := 1; n < 8; n++ {
		tr, err := New(n, c)
		assert.NoError(err)

		wm, wc := tr.Weights()
		assert.Len(wm, 2*n+1)
		assert.Len(wc, 2*n+1)

		// mean weights are conserved
		assert.InDelta(1.0, floats.Sum(wm), 1e-12)
		// covariance weights carry the shape correction on the central point
		shape := 1 - c.Alpha*c.Alpha + c.Beta
		assert.InDelta(1.0, floats.Sum(wc)-shape, 1e-12)
		// off-center weights are uniform
		for i := 2; i < len(wm); i++ {
			assert.Equal(wm[1], wm[i])
			assert.Equal(wc[1], wc[i])
		}
	}
}

func TestGenerateOrdering(t *testing.T) {
	assert := assert.New(t)

	tr, err := New(2, c)
	assert.NoError(err)

	mean := mat.NewVecDense(2, []float64{1.0, -2.0})
	cov := mat.NewSymDense(2, []float64{0.25, 0.0, 0.0, 0.25})

	pts, err := tr.Generate(mean, cov)
	assert.NotNil(pts)
	assert.NoError(err)

	rows, cols := pts.Dims()
	assert.Equal(2, rows)
	assert.Equal(5, cols)

	// column 0 is the mean
	assert.True(mat.EqualApprox(mean, pts.ColView(0), 1e-12))

	// columns i and n+i mirror each other around the mean
	for j := 0; j < 2; j++ {
		for i := 0; i < 2; i++ {
			plus := pts.At(i, 1+j) - mean.AtVec(i)
			minus := pts.At(i, 3+j) - mean.AtVec(i)
			assert.InDelta(plus, -minus, 1e-12)
		}
	}

	// generation is deterministic
	pts2, err := tr.Generate(mean, cov)
	assert.NoError(err)
	assert.True(mat.Equal(pts, pts2))

	// dimension mismatch
	_, err = tr.Generate(mat.NewVecDense(3, nil), cov)
	assert.Error(err)
}

func TestRoundTrip(t *testing.T) {
	assert := assert.New(t)

	cases := []struct {
		mean []float64
		cov  []float64
	}{
		{mean: []float64{3.0}, cov: []float64{0.5}},
		{mean: []float64{1.0, -2.0}, cov: []float64{0.25, 0.1, 0.1, 0.5}},
		{mean: []float64{0.0, 1.0, 2.0}, cov: []float64{1.0, 0.2, 0.0, 0.2, 2.0, 0.3, 0.0, 0.3, 1.5}},
	}

	for _, tc := range cases {
		n := len(tc.mean)
		tr, err := New(n, c)
		assert.NoError(err)

		mean := mat.NewVecDense(n, tc.mean)
		cov := mat.NewSymDense(n, tc.cov)

		pts, err := tr.Generate(mean, cov)
		assert.NoError(err)

		m, p, err := tr.Recombine(pts)
		assert.NoError(err)
		assert.True(mat.EqualApprox(mean, m, 1e-10))
		assert.True(mat.EqualApprox(cov, p, 1e-10))
	}
}

func TestGenerateRepair(t *testing.T) {
	assert := assert.New(t)

	tr, err := New(2, c)
	assert.NoError(err)

	mean := mat.NewVecDense(2, nil)

	// singular covariance gets jitter-repaired
	psd := mat.NewSymDense(2, []float64{1.0, 1.0, 1.0, 1.0})
	pts, err := tr.Generate(mean, psd)
	assert.NotNil(pts)
	assert.NoError(err)

	// indefinite covariance is beyond repair
	bad := mat.NewSymDense(2, []float64{1.0, 0.0, 0.0, -1.0})
	pts, err = tr.Generate(mean, bad)
	assert.Nil(pts)
	assert.Error(err)

	var numErr *dynest.NumericalError
	assert.True(errors.As(err, &numErr))
}

func TestRecombine(t *testing.T) {
	assert := assert.New(t)

	tr, err := New(1, c)
	assert.NoError(err)

	// point count mismatch
	_, _, err = tr.Recombine(mat.NewDense(1, 5, nil))
	assert.Error(err)
}

func TestCrossCov(t *testing.T) {
	assert := assert.New(t)

	tr, err := New(2, c)
	assert.NoError(err)

	mean := mat.NewVecDense(2, []float64{1.0, -1.0})
	cov := mat.NewSymDense(2, []float64{0.5, 0.1, 0.1, 0.25})

	pts, err := tr.Generate(mean, cov)
	assert.NoError(err)

	// cross covariance of a point set with itself equals its covariance
	m, p, err := tr.Recombine(pts)
	assert.NoError(err)

	pxx, err := tr.CrossCov(pts, m, pts, m)
	assert.NoError(err)
	assert.True(mat.EqualApprox(p, pxx, 1e-10))

	// identity observation: cross covariance of states against a single
	// observed row equals the corresponding covariance column
	y := mat.DenseCopyOf(pts.Slice(0, 1, 0, 5))
	ym := mat.NewVecDense(1, []float64{m.AtVec(0)})

	pxy, err := tr.CrossCov(pts, m, y, ym)
	assert.NoError(err)

	r, cc := pxy.Dims()
	assert.Equal(2, r)
	assert.Equal(1, cc)
	assert.InDelta(p.At(0, 0), pxy.At(0, 0), 1e-10)
	assert.InDelta(p.At(1, 0), pxy.At(1, 0), 1e-10)

	// point count mismatch
	_, err = tr.CrossCov(mat.NewDense(2, 3, nil), m, y, ym)
	assert.Error(err)
}
