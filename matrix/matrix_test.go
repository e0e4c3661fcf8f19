package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestRowColSums(t *testing.T) {
	assert := assert.New(t)

	data := []float64{1.2, 3.4, 4.5, 6.7, 8.9, 10.0}
	rowSums := []float64{4.6, 11.2, 18.9}
	colSums := []float64{14.6, 20.1}
	delta := 0.001

	m := mat.NewDense(3, 2, data)
	assert.NotNil(m)

	// check rows
	resRows := RowSums(m)
	assert.NotNil(resRows)
	assert.InDeltaSlice(rowSums, resRows, delta)
	// check cols
	resCols := ColSums(m)
	assert.NotNil(resCols)
	assert.InDeltaSlice(colSums, resCols, delta)
	// should panic
	assert.Panics(func() { RowSums(nil) })
	assert.Panics(func() { ColSums(nil) })
}

func TestToSym(t *testing.T) {
	assert := assert.New(t)

	m := mat.NewDense(2, 2, []float64{1.0, 2.0, 4.0, 3.0})

	s, err := ToSym(m)
	assert.NotNil(s)
	assert.NoError(err)
	assert.Equal(3.0, s.At(0, 1))
	assert.Equal(s.At(0, 1), s.At(1, 0))

	// non-square matrix
	s, err = ToSym(mat.NewDense(2, 3, nil))
	assert.Nil(s)
	assert.Error(err)
}

func TestSqrtPD(t *testing.T) {
	assert := assert.New(t)

	a := mat.NewSymDense(2, []float64{4.0, 1.0, 1.0, 9.0})

	l, err := SqrtPD(a, 4)
	assert.NotNil(l)
	assert.NoError(err)

	// L*L^T must reproduce a
	var llt mat.Dense
	llt.Mul(l, l.T())
	assert.True(mat.EqualApprox(a, &llt, 1e-10))

	// positive semi-definite input gets repaired via jitter
	psd := mat.NewSymDense(2, []float64{1.0, 1.0, 1.0, 1.0})
	l, err = SqrtPD(psd, 4)
	assert.NotNil(l)
	assert.NoError(err)

	// indefinite matrix is beyond repair
	bad := mat.NewSymDense(2, []float64{1.0, 0.0, 0.0, -5.0})
	l, err = SqrtPD(bad, 4)
	assert.Nil(l)
	assert.Error(err)
}

func TestRepairPD(t *testing.T) {
	assert := assert.New(t)

	a := mat.NewSymDense(2, []float64{1.0, 1.0, 1.0, 1.0})
	err := RepairPD(a, 4)
	assert.NoError(err)

	var chol mat.Cholesky
	assert.True(chol.Factorize(a))

	bad := mat.NewSymDense(2, []float64{1.0, 0.0, 0.0, -5.0})
	assert.Error(RepairPD(bad, 4))
}
