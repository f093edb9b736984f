package arithmetic

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRows(t *testing.T) {
	m, err := FromRows([][]float64{{1, 2, 3}, {4, 5, 6}})
	require.NoError(t, err)
	assert.Equal(t, 2, m.Rows)
	assert.Equal(t, 3, m.Cols)
	assert.Equal(t, 6.0, m.At(1, 2))
	assert.Equal(t, [][]float64{{1, 2, 3}, {4, 5, 6}}, m.Grid())

	_, err = FromRows([][]float64{{1, 2}, {3}})
	assert.Error(t, err)
}

func TestCombine(t *testing.T) {
	a, _ := FromRows([][]float64{{1, 2}, {3, 4}})
	b, _ := FromRows([][]float64{{10, 20}, {30, 40}})
	mask, _ := FromRows([][]float64{{1, 0}, {0, 1}})

	out, err := combine(a, b, nil, add)
	require.NoError(t, err)
	assert.Equal(t, []float64{11, 22, 33, 44}, out.Data)
	assert.Equal(t, []float64{1, 2, 3, 4}, a.Data, "operands are not modified")

	out, err = combine(b, a, mask, sub)
	require.NoError(t, err)
	assert.Equal(t, []float64{9, 0, 0, 36}, out.Data)

	_, err = combine(a, NewMat(1, 2), nil, add)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestDivByZero(t *testing.T) {
	assert.Equal(t, 0.0, div(3, 0))
	assert.Equal(t, 1.5, div(3, 2))
}

func TestNormalize(t *testing.T) {
	src, _ := FromRows([][]float64{{-2, 1}, {0, 4}})

	tests := []struct {
		name     string
		alpha    float64
		beta     float64
		normType int
		want     []float64
	}{
		{"inf", 1, 0, NormInf, []float64{-0.5, 0.25, 0, 1}},
		{"l1", 1, 0, NormL1, []float64{-2.0 / 7, 1.0 / 7, 0, 4.0 / 7}},
		{"minmax", 0, 1, NormMinMax, []float64{0, 0.5, 2.0 / 6, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Normalize(src, tt.alpha, tt.beta, tt.normType)
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want, out.Data, 1e-9)
		})
	}

	t.Run("l2 has unit norm", func(t *testing.T) {
		out, err := Normalize(src, 1, 0, NormL2)
		require.NoError(t, err)
		var sq float64
		for _, v := range out.Data {
			sq += v * v
		}
		assert.InDelta(t, 1, math.Sqrt(sq), 1e-9)
	})

	_, err := Normalize(src, 1, 0, 99)
	assert.Error(t, err)
}

func TestGaussianKernel(t *testing.T) {
	k := GaussianKernel(5, 3, 1)
	assert.Equal(t, 5, k.Rows)
	assert.Equal(t, 3, k.Cols)

	var sum float64
	for _, v := range k.Data {
		sum += v
	}
	assert.InDelta(t, 1, sum, 1e-9)
	assert.Greater(t, k.At(2, 1), k.At(0, 0), "peak at the center")
	assert.InDelta(t, k.At(0, 0), k.At(4, 2), 1e-12, "symmetric")
}
