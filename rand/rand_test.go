package rand

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func TestWithCovN(t *testing.T) {
	assert := assert.New(t)

	cov := mat.NewSymDense(2, []float64{1.0, 0.0, 0.0, 1.0})

	samples, err := WithCovN(cov, 5)
	assert.NotNil(samples)
	assert.NoError(err)

	r, c := samples.Dims()
	assert.Equal(2, r)
	assert.Equal(5, c)

	samples, err = WithCovN(cov, -5)
	assert.Nil(samples)
	assert.Error(err)

	// zero covariance yields zero samples
	samples, err = WithCovN(mat.NewSymDense(2, nil), 3)
	assert.NoError(err)
	assert.True(mat.Equal(samples, mat.NewDense(2, 3, nil)))
}
