package laplacian

import (
	"errors"
	"testing"

	"github.com/notargets/gosupermode/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func allZero() utils.Boundaries {
	return utils.NewBoundaries("zero", "zero", "zero", "zero")
}

func TestAssemblerSize(t *testing.T) {
	for _, dims := range [][2]int{{1, 1}, {4, 4}, {5, 3}, {1, 6}} {
		nx, ny := dims[0], dims[1]
		a, err := NewAssembler(nx, ny, allZero(), FivePoint(nx, ny, 1, 1))
		require.NoError(t, err)
		L := a.Laplacian()
		nr, nc := L.Dims()
		assert.Equal(t, nx*ny, nr)
		assert.Equal(t, nx*ny, nc)
		assert.True(t, L.IsSymmetric(utils.NODETOL))
	}
}

func TestAssemblerInvalid(t *testing.T) {
	var (
		ioe *InvalidOperatorError
	)
	tr := Triplets{Rows: []int{0, 16}, Cols: []int{0, 1}, Values: []float64{1, 1}}
	_, err := NewAssembler(4, 4, allZero(), tr)
	require.Error(t, err)
	require.True(t, errors.As(err, &ioe))
	assert.Equal(t, 1, ioe.Index)
	assert.Equal(t, 16, ioe.Row)

	tr = Triplets{Rows: []int{0}, Cols: []int{-1}, Values: []float64{1}}
	_, err = NewAssembler(4, 4, allZero(), tr)
	require.True(t, errors.As(err, &ioe))
	assert.Equal(t, 0, ioe.Index)

	tr = Triplets{Rows: []int{0, 1}, Cols: []int{0}, Values: []float64{1, 2}}
	_, err = NewAssembler(4, 4, allZero(), tr)
	require.True(t, errors.As(err, &ioe))
	assert.Equal(t, -1, ioe.Index)

	_, err = NewTripletsFromFloat([]float64{0, 1.5}, []float64{0, 1}, []float64{1, 1})
	assert.True(t, errors.As(err, &ioe))

	_, err = NewAssembler(0, 4, allZero(), Triplets{})
	assert.True(t, errors.As(err, &ioe))
}

func TestAssemblerTransposedScatter(t *testing.T) {
	tr, err := NewTripletsFromFloat([]float64{0, 0}, []float64{1, 0}, []float64{7, -2})
	require.NoError(t, err)
	a, err := NewAssembler(2, 1, utils.NewBoundaries("absorbing", "absorbing", "zero", "zero"), tr)
	require.NoError(t, err)
	L := a.Laplacian()
	// (row 0, col 1) lands on operator entry (1, 0)
	assert.Equal(t, 7., L.At(1, 0))
	assert.Equal(t, 0., L.At(0, 1))
	assert.Equal(t, -2., L.At(0, 0))
}

func TestAssemblerBoundaries(t *testing.T) {
	var (
		nx, ny = 4, 3
		tr     = FivePoint(nx, ny, 1, 1)
	)
	a, err := NewAssembler(nx, ny, utils.NewBoundaries("symmetric", "anti-symmetric", "zero", "absorbing"), tr)
	require.NoError(t, err)
	L := a.Laplacian()
	for iy := 0; iy < ny; iy++ {
		left := utils.GridIndex(0, iy, nx)
		right := utils.GridIndex(nx-1, iy, nx)
		assert.Equal(t, 2., L.At(left, left+1), "symmetric left edge doubles the inward coupling")
		assert.Equal(t, 0., L.At(right, right-1), "anti-symmetric right edge cancels the inward coupling")
		// Interior couplings are untouched
		assert.Equal(t, 1., L.At(left+1, left))
	}
	for ix := 1; ix < nx-1; ix++ {
		top := utils.GridIndex(ix, ny-1, nx)
		bottom := utils.GridIndex(ix, 0, nx)
		assert.Equal(t, 1., L.At(top, top-nx))
		assert.Equal(t, 1., L.At(bottom, bottom+nx))
	}
	assert.False(t, L.IsSymmetric(utils.NODETOL))
}

func TestAssemblerOperator(t *testing.T) {
	var (
		nx, ny = 3, 3
		index  = utils.ConstArray(nx*ny, 1.5)
		k      = 2.
	)
	a, err := NewAssembler(nx, ny, allZero(), FivePoint(nx, ny, 1, 1))
	require.NoError(t, err)
	op, err := a.Operator(index, k)
	require.NoError(t, err)
	L := a.Laplacian()
	for i := 0; i < nx*ny; i++ {
		assert.InDelta(t, L.At(i, i)+k*k*1.5*1.5, op.At(i, i), 1.e-12)
	}
	// Same step, same matrix
	op2, err := a.Operator(index, k)
	require.NoError(t, err)
	assert.Same(t, op.M, op2.M)
	op3, err := a.Operator(index, 1.)
	require.NoError(t, err)
	assert.NotSame(t, op.M, op3.M)

	_, err = a.Operator(index[:3], k)
	assert.Error(t, err)
}

func TestFivePoint(t *testing.T) {
	tr := FivePoint(3, 3, 0.5, 1)
	// Centre node has four neighbours
	var centre []float64
	for n := range tr.Values {
		if tr.Rows[n] == 4 {
			centre = append(centre, tr.Values[n])
		}
	}
	assert.ElementsMatch(t, []float64{-10, 4, 4, 1, 1}, centre)
	require.NoError(t, tr.Validate(9))
	assert.Equal(t, 9+2*(2*3)+2*(2*3), tr.Len())
}
