package sweep

import (
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/notargets/gosupermode/eigensolver"
	"github.com/notargets/gosupermode/laplacian"
	"github.com/notargets/gosupermode/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
)

func uniformMesh(nx, ny int, n float64) (mesh [][]float64) {
	mesh = make([][]float64, ny)
	for iy := range mesh {
		mesh[iy] = utils.ConstArray(nx, n)
	}
	return
}

func squareCfg() (cfg Config) {
	cfg = DefaultConfig()
	cfg.Dx, cfg.Dy = 1, 1.3
	return
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	cfg := DefaultConfig()
	cfg.NComputedMode = 2
	cfg.NSortedMode = 3
	cfg.ExtrapolationOrder = 5
	cfg.Alpha = 1.5
	cfg.Wavelength = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 4)
	assert.Contains(t, err.Error(), "alpha")
}

func TestNewSolverErrors(t *testing.T) {
	mesh := uniformMesh(2, 2, 1.44)
	tr := laplacian.FivePoint(2, 2, 1, 1)
	cfg := DefaultConfig()
	cfg.NComputedMode = 5
	_, err := NewSolver(mesh, nil, tr, cfg)
	assert.Error(t, err)

	_, err = NewSolver(mesh, make([]float64, 3), tr, DefaultConfig())
	assert.Error(t, err)

	_, err = NewSolver([][]float64{{1, 1}, {1}}, nil, tr, DefaultConfig())
	assert.Error(t, err)

	bad := laplacian.Triplets{Rows: []int{0}, Cols: []int{4}, Values: []float64{1}}
	_, err = NewSolver(mesh, nil, bad, DefaultConfig())
	var ioe *laplacian.InvalidOperatorError
	assert.True(t, errors.As(err, &ioe))
}

func TestSweepEndToEnd(t *testing.T) {
	var (
		nx, ny = 4, 4
		cfg    = squareCfg()
		itr    = []float64{1.0, 0.95, 0.9}
		nIndex = 1.44
	)
	sv, err := NewSolver(uniformMesh(nx, ny, nIndex), nil, laplacian.FivePoint(nx, ny, cfg.Dx, cfg.Dy), cfg)
	require.NoError(t, err)
	set, err := sv.Sweep(itr)
	require.NoError(t, err)
	require.Len(t, set.Modes, 2)
	assert.Equal(t, 3, set.CompletedSteps)
	assert.Empty(t, set.Warnings)

	// Dirichlet five point eigenvalues: -4 sin^2(j pi / 2(n+1)) / d^2
	lx := func(j int) float64 { return 4 * utils.POW(math.Sin(float64(j)*math.Pi/10), 2) / utils.POW(cfg.Dx, 2) }
	ly := func(j int) float64 { return 4 * utils.POW(math.Sin(float64(j)*math.Pi/10), 2) / utils.POW(cfg.Dy, 2) }
	expected := [2]float64{lx(1) + ly(1), lx(1) + ly(2)}
	k0 := utils.WaveNumber(cfg.Wavelength)
	for _, m := range set.Modes {
		betas := m.Betas()
		require.Len(t, betas, 3)
		for s, ITR := range itr {
			lambda := utils.POW(k0*ITR*nIndex, 2) - expected[m.ModeNumber]
			assert.InDelta(t, lambda, m.EigenValue(s), 1.e-6)
			assert.InDelta(t, math.Sqrt(lambda)/ITR, betas[s], 1.e-6)
			assert.InDelta(t, betas[s]/k0, m.EffectiveIndex()[s], 1.e-12)
		}
		C, A := m.CouplingMatrix(), m.AdiabaticMatrix()
		r, c := C.Dims()
		assert.Equal(t, [2]int{3, 2}, [2]int{r, c})
		r, c = A.Dims()
		assert.Equal(t, [2]int{3, 2}, [2]int{r, c})
		for s := range itr {
			assert.Equal(t, 0., C.At(s, m.ModeNumber))
			assert.Equal(t, 0., A.At(s, m.ModeNumber))
		}
		assert.Len(t, m.FieldArray(), 3)
	}
	// Identity is carried across steps
	for s := 1; s < len(itr); s++ {
		for _, m := range set.Modes {
			assert.Greater(t, m.Overlap(m, s), 0.99)
			assert.InDelta(t, 1., dot(m.Field(s), m.Field(s-1)), 1.e-6)
		}
		assert.Greater(t, set.Modes[0].Beta(s), set.Modes[1].Beta(s))
	}
	// Uniform index has no gradient, so no coupling and an unbounded adiabatic criterion
	assert.Equal(t, 0., set.Modes[0].CouplingWith(set.Modes[1])[2])
	assert.True(t, math.IsInf(set.Modes[1].AdiabaticWith(set.Modes[0])[2], 1))
}

func dot(a, b []float64) (d float64) {
	for i := range a {
		d += a[i] * b[i]
	}
	return
}

func stepIndexMesh(nx, ny int) (mesh [][]float64) {
	mesh = uniformMesh(nx, ny, 1.44)
	for iy := 2; iy < ny-2; iy++ {
		for ix := 2; ix < nx-2; ix++ {
			mesh[iy][ix] = 1.46
		}
	}
	return
}

func TestSweepCouplingSymmetry(t *testing.T) {
	var (
		nx, ny = 7, 7
		cfg    = squareCfg()
	)
	cfg.NComputedMode, cfg.NSortedMode = 5, 3
	cfg.ParallelDegree = 2
	sv, err := NewSolver(stepIndexMesh(nx, ny), nil, laplacian.FivePoint(nx, ny, cfg.Dx, cfg.Dy), cfg)
	require.NoError(t, err)
	set, err := sv.Sweep([]float64{1.0, 0.95, 0.9, 0.85})
	require.NoError(t, err)
	for _, mi := range set.Modes {
		for _, mj := range set.Modes {
			for s := 0; s < set.NSteps(); s++ {
				assert.Equal(t, mi.CouplingWith(mj)[s], mj.CouplingWith(mi)[s])
				assert.False(t, math.IsNaN(mi.AdiabaticWith(mj)[s]))
				assert.Equal(t, mi.Coupling(mj, s), mi.CouplingWith(mj)[s])
			}
		}
	}
}

func TestSweepSingleStep(t *testing.T) {
	cfg := squareCfg()
	sv, err := NewSolver(uniformMesh(4, 4, 1.44), nil, laplacian.FivePoint(4, 4, cfg.Dx, cfg.Dy), cfg)
	require.NoError(t, err)
	rec := &recordingSolver{inner: eigensolver.NewShiftInvert()}
	WithEigensolver(rec)(sv)
	set, err := sv.Sweep([]float64{0.7})
	require.NoError(t, err)
	assert.Equal(t, 1, set.CompletedSteps)
	require.Len(t, rec.shifts, 1)
	assert.InDelta(t, utils.POW(sv.K0()*0.7*1.44, 2), rec.shifts[0], 1.e-12)
	for _, m := range set.Modes {
		assert.Len(t, m.Betas(), 1)
		assert.Greater(t, m.Beta(0), 0.)
	}
}

func TestSweepIdempotent(t *testing.T) {
	var (
		cfg = squareCfg()
		itr = []float64{1.0, 0.9, 0.95, 0.8}
	)
	cfg.NComputedMode, cfg.NSortedMode = 4, 3
	run := func() [][]float64 {
		sv, err := NewSolver(stepIndexMesh(6, 6), nil, laplacian.FivePoint(6, 6, cfg.Dx, cfg.Dy), cfg)
		require.NoError(t, err)
		set, err := sv.Sweep(itr)
		require.NoError(t, err)
		var out [][]float64
		for _, m := range set.Modes {
			out = append(out, append([]float64{}, m.Betas()...))
			for s := range itr {
				out = append(out, append([]float64{}, m.Field(s)...))
			}
		}
		return out
	}
	assert.Equal(t, run(), run())
}

func TestSweepRejectsBadITR(t *testing.T) {
	cfg := squareCfg()
	sv, err := NewSolver(uniformMesh(4, 4, 1.44), nil, laplacian.FivePoint(4, 4, cfg.Dx, cfg.Dy), cfg)
	require.NoError(t, err)
	_, err = sv.Sweep(nil)
	assert.Error(t, err)
	_, err = sv.Sweep([]float64{1, -0.5})
	assert.Error(t, err)
}

type recordingSolver struct {
	inner  eigensolver.Solver
	shifts []float64
}

func (r *recordingSolver) Solve(p eigensolver.Problem) ([]eigensolver.Pair, error) {
	r.shifts = append(r.shifts, p.Shift)
	return r.inner.Solve(p)
}

// scriptedSolver returns canned eigenpairs on the unit basis, one script entry per call
type scriptedSolver struct {
	shifts []float64
	script [][]eigensolver.Pair
	failAt int
}

func unitPair(value float64, ind, n int, sign float64) eigensolver.Pair {
	v := make([]float64, n)
	v[ind] = sign
	return eigensolver.Pair{Value: value, Vector: v}
}

func (f *scriptedSolver) Solve(p eigensolver.Problem) ([]eigensolver.Pair, error) {
	call := len(f.shifts)
	f.shifts = append(f.shifts, p.Shift)
	if call == f.failAt {
		return nil, &eigensolver.ConvergenceError{Iterations: p.MaxIterations, Required: p.NumPairs, Tolerance: p.Tolerance}
	}
	return f.script[call], nil
}

func newScripted(t *testing.T, failAt int) (sv *Solver, f *scriptedSolver) {
	cfg := DefaultConfig()
	cfg.InitialShift = 100
	cfg.Alpha = 0.5
	f = &scriptedSolver{
		failAt: failAt,
		script: [][]eigensolver.Pair{
			{unitPair(9, 0, 4, 1), unitPair(4, 1, 4, 1), unitPair(1, 2, 4, 1), unitPair(0.25, 3, 4, 1)},
			// Raw order swapped and one sign flipped
			{unitPair(3.5, 1, 4, -1), unitPair(0.2, 3, 4, 1), unitPair(8.1, 0, 4, 1), unitPair(0.9, 2, 4, 1)},
			{unitPair(7.3, 0, 4, 1), unitPair(3.1, 1, 4, 1), unitPair(0.8, 2, 4, 1), unitPair(0.1, 3, 4, 1)},
		},
	}
	sv, err := NewSolver(uniformMesh(2, 2, 1.44), nil, laplacian.FivePoint(2, 2, 1, 1), cfg, WithEigensolver(f))
	require.NoError(t, err)
	return
}

func TestSweepTrackingAndShift(t *testing.T) {
	sv, f := newScripted(t, -1)
	set, err := sv.Sweep([]float64{1, 0.9, 0.8})
	require.NoError(t, err)
	assert.Equal(t, []float64{9, 8.1, 7.3}, set.Modes[0].EigenValues())
	assert.Equal(t, []float64{4, 3.5, 3.1}, set.Modes[1].EigenValues())
	// The flipped field is aligned with its history
	assert.Equal(t, []float64{0, 1, 0, 0}, set.Modes[1].Field(1))
	assert.InDelta(t, math.Sqrt(3.5)/0.9, set.Modes[1].Beta(1), 1.e-14)

	require.Len(t, f.shifts, 3)
	assert.Equal(t, 100., f.shifts[0])
	// Flat prediction of beta^2 = 9, rescaled by 0.9^2
	assert.InDelta(t, 7.29, f.shifts[1], 1.e-12)
	// beta^2 history 9, 10 predicts 11, damped half way to 10 and rescaled by 0.8^2
	assert.InDelta(t, 6.72, f.shifts[2], 1.e-12)
}

// Every step of a sweep must land on the modes an independent solve at that ITR finds,
// whether the ITR turns around or moves in coarse steps.
func TestSweepMatchesIndependentSolves(t *testing.T) {
	var (
		nx, ny = 8, 8
		cfg    = squareCfg()
	)
	sv, err := NewSolver(stepIndexMesh(nx, ny), nil, laplacian.FivePoint(nx, ny, cfg.Dx, cfg.Dy), cfg)
	require.NoError(t, err)
	single := func(itr float64) (betas []float64) {
		set, err := sv.Sweep([]float64{itr})
		require.NoError(t, err)
		for _, m := range set.Modes {
			betas = append(betas, m.Beta(0))
		}
		return
	}
	for _, itr := range [][]float64{
		{1, 0.9, 0.8, 0.9, 1},
		{1, 0.9, 0.8, 0.7, 0.6, 0.5},
	} {
		set, err := sv.Sweep(itr)
		require.NoError(t, err)
		for s, v := range itr {
			var (
				expected = single(v)
				got      []float64
			)
			assert.InDelta(t, expected[0], set.Modes[0].Beta(s), 1.e-6, "ITR %v step %d", itr, s)
			for _, m := range set.Modes {
				got = append(got, m.Beta(s))
			}
			sort.Sort(sort.Reverse(sort.Float64Slice(got)))
			assert.InDeltaSlice(t, expected, got, 1.e-6, "ITR %v step %d", itr, s)
		}
		for _, w := range set.Warnings {
			assert.NotEqual(t, 0, w.ModeNumber, "fundamental lost: %s", w.Error())
		}
	}
	// The turnaround returns to the starting field
	set, err := sv.Sweep([]float64{1, 0.9, 0.8, 0.9, 1})
	require.NoError(t, err)
	assert.InDelta(t, 1., math.Abs(dot(set.Modes[0].Field(0), set.Modes[0].Field(4))), 1.e-6)
}

func TestSweepConvergenceFailure(t *testing.T) {
	sv, _ := newScripted(t, 1)
	set, err := sv.Sweep([]float64{1, 0.9, 0.8})
	require.Error(t, err)
	require.NotNil(t, set)
	var (
		ce  *ConvergenceError
		ece *eigensolver.ConvergenceError
	)
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, 1, ce.Step)
	assert.Equal(t, 0.9, ce.ITR)
	assert.InDelta(t, 7.29, ce.Shift, 1.e-12)
	assert.True(t, errors.As(err, &ece))
	assert.Equal(t, 1, set.CompletedSteps)
	assert.Equal(t, 9., set.Modes[0].EigenValue(0))
	assert.Equal(t, 4., set.Modes[1].EigenValue(0))
}

func TestSweepRejectsNaNPair(t *testing.T) {
	sv, f := newScripted(t, -1)
	f.script[1][2].Vector[0] = math.NaN()
	set, err := sv.Sweep([]float64{1, 0.9, 0.8})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NaN")
	assert.Equal(t, 1, set.CompletedSteps)
}

func TestSweepRecordsNegativeEigenValue(t *testing.T) {
	sv, f := newScripted(t, -1)
	f.script[2][1].Value = -3.1
	set, err := sv.Sweep([]float64{1, 0.9, 0.8})
	require.NoError(t, err)
	require.Len(t, set.Radiating, 1)
	assert.Equal(t, 2, set.Radiating[0].Step)
	assert.Equal(t, 1, set.Radiating[0].ModeNumber)
	assert.InDelta(t, math.Sqrt(3.1)/0.8, set.Modes[1].Beta(2), 1.e-14)
}

func TestMeshGradient(t *testing.T) {
	mesh := uniformMesh(5, 5, 1.5)
	data, ny, nx, err := utils.Flatten(mesh)
	require.NoError(t, err)
	for _, g := range MeshGradient(data, nx, ny, 1, 1) {
		assert.Equal(t, 0., g)
	}
	// n^2 = x about the centre: r d(n^2)/dr = x
	for iy := range mesh {
		for ix := range mesh[iy] {
			mesh[iy][ix] = math.Sqrt(float64(ix) + 1)
		}
	}
	data, _, _, _ = utils.Flatten(mesh)
	grad := MeshGradient(data, nx, ny, 1, 1)
	for iy := 0; iy < ny; iy++ {
		for ix := 0; ix < nx; ix++ {
			assert.InDelta(t, float64(ix)-2, grad[utils.GridIndex(ix, iy, nx)], 1.e-12)
		}
	}
}
