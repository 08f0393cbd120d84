package eigensolver

import (
	"errors"
	"math"
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/notargets/gosupermode/laplacian"
	"github.com/notargets/gosupermode/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func TestShiftInvertDiagonal(t *testing.T) {
	var (
		n = 10
		d = make([]float64, n)
	)
	for i := range d {
		d[i] = float64(i + 1)
	}
	A := mat.NewDiagDense(n, d)
	pairs, err := NewShiftInvert().Solve(Problem{
		Operator: A, Shift: 4.2, NumPairs: 3, MaxIterations: 200, Tolerance: 1.e-10,
	})
	require.NoError(t, err)
	require.Len(t, pairs, 3)
	for i, expected := range []float64{4, 5, 3} {
		assert.InDelta(t, expected, pairs[i].Value, 1.e-9)
		assert.InDelta(t, 1., floats.Norm(pairs[i].Vector, 2), 1.e-12)
		// Unit vectors with the dominant component positive
		assert.InDelta(t, 1., pairs[i].Vector[int(expected)-1], 1.e-6)
	}
}

func TestShiftInvertLaplacian(t *testing.T) {
	var (
		nx, ny = 6, 5
	)
	a, err := laplacian.NewAssembler(nx, ny, utils.NewBoundaries("zero", "zero", "zero", "zero"),
		laplacian.FivePoint(nx, ny, 1, 1))
	require.NoError(t, err)
	var analytic []float64
	for p := 1; p <= nx; p++ {
		for q := 1; q <= ny; q++ {
			sx := math.Sin(float64(p) * math.Pi / float64(2*(nx+1)))
			sy := math.Sin(float64(q) * math.Pi / float64(2*(ny+1)))
			analytic = append(analytic, -4*sx*sx-4*sy*sy)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(analytic)))
	pairs, err := NewShiftInvert().Solve(Problem{
		Operator: a.Laplacian(), Shift: 0, NumPairs: 4, MaxIterations: 500, Tolerance: 1.e-9,
	})
	require.NoError(t, err)
	for i := range pairs {
		// Shift 0 sits above the spectrum, nearest means least negative
		assert.InDelta(t, analytic[i], pairs[i].Value, 1.e-7)
		assert.LessOrEqual(t, pairs[i].Residual, 1.e-9*math.Max(1, math.Abs(pairs[i].Value)))
	}
}

func TestShiftInvertNonSymmetric(t *testing.T) {
	A := mat.NewDense(3, 3, []float64{
		2, 1, 0,
		0, 3, 1,
		0, 0, 5,
	})
	pairs, err := NewShiftInvert().Solve(Problem{
		Operator: A, Shift: 2.9, NumPairs: 2, MaxIterations: 50, Tolerance: 1.e-10,
	})
	require.NoError(t, err)
	assert.InDelta(t, 3., pairs[0].Value, 1.e-9)
	assert.InDelta(t, 2., pairs[1].Value, 1.e-9)
}

func TestShiftInvertShiftOnEigenvalue(t *testing.T) {
	A := mat.NewDiagDense(4, []float64{1, 2, 3, 4})
	pairs, err := NewShiftInvert().Solve(Problem{
		Operator: A, Shift: 2, NumPairs: 1, MaxIterations: 50, Tolerance: 1.e-10,
	})
	require.NoError(t, err)
	assert.InDelta(t, 2., pairs[0].Value, 1.e-9)
}

func TestShiftInvertDeterministic(t *testing.T) {
	a, err := laplacian.NewAssembler(5, 5, utils.NewBoundaries("symmetric", "zero", "zero", "anti-symmetric"),
		laplacian.FivePoint(5, 5, 1, 1))
	require.NoError(t, err)
	prob := Problem{Operator: a.Laplacian(), Shift: -0.5, NumPairs: 3, MaxIterations: 500, Tolerance: 1.e-9}
	p1, err := NewShiftInvert().Solve(prob)
	require.NoError(t, err)
	p2, err := NewShiftInvert().Solve(prob)
	require.NoError(t, err)
	for i := range p1 {
		assert.Equal(t, p1[i].Value, p2[i].Value)
		assert.Equal(t, p1[i].Vector, p2[i].Vector)
	}
}

func TestShiftInvertConvergenceError(t *testing.T) {
	var (
		ce *ConvergenceError
	)
	a, err := laplacian.NewAssembler(10, 10, utils.NewBoundaries("zero", "zero", "zero", "zero"),
		laplacian.FivePoint(10, 10, 1, 1))
	require.NoError(t, err)
	s := &ShiftInvert{SubspaceSize: 4, Seed: DefaultSeed}
	_, err = s.Solve(Problem{Operator: a.Laplacian(), Shift: -3, NumPairs: 4, MaxIterations: 1, Tolerance: 1.e-14})
	require.Error(t, err)
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 1, ce.Iterations)
	assert.Equal(t, 4, ce.Required)
	assert.Less(t, ce.Converged, 4)
}

func TestProblemValidate(t *testing.T) {
	A := mat.NewDiagDense(2, []float64{1, 2})
	s := NewShiftInvert()
	_, err := s.Solve(Problem{Operator: A, NumPairs: 3, MaxIterations: 1, Tolerance: 1})
	assert.Error(t, err)
	_, err = s.Solve(Problem{Operator: A, NumPairs: 1, MaxIterations: 0, Tolerance: 1})
	assert.Error(t, err)
	_, err = s.Solve(Problem{Operator: A, NumPairs: 1, MaxIterations: 1, Tolerance: 0})
	assert.Error(t, err)
	_, err = s.Solve(Problem{Operator: mat.NewDense(2, 3, nil), NumPairs: 1, MaxIterations: 1, Tolerance: 1})
	assert.Error(t, err)
}

func TestBandLU(t *testing.T) {
	var (
		n      = 9
		kl, ku = 2, 1
		A      = mat.NewDense(n, n, nil)
		op     *operator
	)
	// Weak diagonal forces row interchanges
	for i := 0; i < n; i++ {
		for j := max(0, i-kl); j <= min(n-1, i+ku); j++ {
			A.Set(i, j, float64((3*i+5*j)%7)-3)
		}
		A.Set(i, i, 0.01*float64(i))
	}
	op = newOperator(A)
	assert.Equal(t, kl, op.kl)
	assert.Equal(t, ku, op.ku)
	assert.False(t, op.sym)
	lu := newBandLU(n, op.kl, op.ku)
	lu.load(op.entries, 0.5)
	require.Greater(t, lu.factorize(), 0.)

	var (
		b     = make([]float64, n)
		x     = make([]float64, n)
		shA   = mat.DenseCopyOf(A)
		dense mat.LU
		want  mat.VecDense
	)
	for i := range b {
		b[i] = float64(i) - 4
	}
	for i := 0; i < n; i++ {
		shA.Set(i, i, shA.At(i, i)-0.5)
	}
	dense.Factorize(shA)
	require.NoError(t, dense.SolveVecTo(&want, false, mat.NewVecDense(n, b)))
	copy(x, b)
	lu.solve(x)
	for i := range x {
		assert.InDelta(t, want.AtVec(i), x[i], 1.e-10)
	}

	// A shift on an eigenvalue leaves a zero pivot
	D := mat.NewDiagDense(3, []float64{1, 2, 3})
	lu = newBandLU(3, 0, 0)
	lu.load(newOperator(D).entries, 2)
	assert.Equal(t, 0., lu.factorize())
}

func TestOperatorSparseAndDense(t *testing.T) {
	a, err := laplacian.NewAssembler(4, 3, utils.NewBoundaries("zero", "symmetric", "zero", "zero"),
		laplacian.FivePoint(4, 3, 1, 1.2))
	require.NoError(t, err)
	var (
		L      = a.Laplacian()
		sparse = newOperator(L)
		dense  = newOperator(mat.DenseCopyOf(L))
		x      = make([]float64, 12)
		y1     = make([]float64, 12)
		y2     = make([]float64, 12)
	)
	for i := range x {
		x[i] = math.Sin(float64(i))
	}
	sparse.mulVec(y1, x)
	dense.mulVec(y2, x)
	assert.InDeltaSlice(t, y2, y1, 1.e-14)
	assert.Equal(t, L.NNZ(), len(sparse.entries))
	assert.Equal(t, 4, sparse.kl)
	assert.Equal(t, 4, sparse.ku)
	assert.Equal(t, dense.sym, sparse.sym)
}

func TestOrthonormalize(t *testing.T) {
	var (
		n   = 6
		rng = rand.New(rand.NewPCG(1, 2))
		Q   = [][]float64{
			{1, 1, 0, 0, 0, 0},
			{2, 2, 0, 0, 0, 0}, // Parallel to the first column
			{0, 1, 1, 0, 0, 1},
		}
	)
	orthonormalize(Q, rng)
	for i := range Q {
		require.Len(t, Q[i], n)
		for j := range Q {
			expected := 0.
			if i == j {
				expected = 1
			}
			assert.InDelta(t, expected, floats.Dot(Q[i], Q[j]), 1.e-12)
		}
	}
}

func TestShiftInvertLargeGrid(t *testing.T) {
	var (
		nx, ny = 40, 30
	)
	a, err := laplacian.NewAssembler(nx, ny, utils.NewBoundaries("zero", "zero", "zero", "zero"),
		laplacian.FivePoint(nx, ny, 1, 1))
	require.NoError(t, err)
	var analytic []float64
	for p := 1; p <= 3; p++ {
		for q := 1; q <= 3; q++ {
			sx := math.Sin(float64(p) * math.Pi / float64(2*(nx+1)))
			sy := math.Sin(float64(q) * math.Pi / float64(2*(ny+1)))
			analytic = append(analytic, -4*sx*sx-4*sy*sy)
		}
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(analytic)))
	pairs, err := NewShiftInvert().Solve(Problem{
		Operator: a.Laplacian(), Shift: 0, NumPairs: 3, MaxIterations: 500, Tolerance: 1.e-9,
	})
	require.NoError(t, err)
	for i := range pairs {
		assert.InDelta(t, analytic[i], pairs[i].Value, 1.e-8)
		assert.Len(t, pairs[i].Vector, nx*ny)
	}
}
