package eigensolver

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	DefaultSeed   = 20201231
	condLimit     = 1.e14
	maxShiftRetry = 8
	maxRedraw     = 4
)

/*
ShiftInvert is a block shift-invert subspace iteration:

	Z = (A - σI)^-1 Q,  Q = orth(Z),  H = Q^T A Q

followed by a Rayleigh-Ritz extraction of the pairs of H nearest σ. Convergence is
declared when every requested pair satisfies ||Ax - λx|| <= tol*max(1, |λ|).
The start block is drawn from a fixed seed so repeated solves are bit identical.

A is only touched through its stored entries: products use the operator's own MulVec
when it has one, and A - σI is factored as a band matrix. For the row-major grid
operators the bandwidth is nx, so memory grows as n*(3nx+1) and a factorization as
n*nx^2.
*/
type ShiftInvert struct {
	SubspaceSize int // Zero picks max(2k+1, k+8), capped at the operator size
	Seed         uint64
	Verbose      bool
}

func NewShiftInvert() *ShiftInvert {
	return &ShiftInvert{Seed: DefaultSeed}
}

func (s *ShiftInvert) subspaceSize(n, k int) (m int) {
	m = s.SubspaceSize
	if m == 0 {
		m = max(2*k+1, k+8)
	}
	return min(max(m, k), n)
}

func (s *ShiftInvert) Solve(p Problem) (pairs []Pair, err error) {
	if err = p.Validate(); err != nil {
		return
	}
	var (
		op    = newOperator(p.Operator)
		n     = op.n
		k     = p.NumPairs
		m     = s.subspaceSize(n, k)
		rng   = rand.New(rand.NewPCG(s.Seed, s.Seed^0x9e3779b97f4a7c15))
		lu    *bandLU
		shift float64
		conv  int
		worst float64
	)
	if lu, shift, err = op.factorizeShifted(p.Shift); err != nil {
		return
	}
	Q := startBlock(rng, n, m)
	for it := 1; it <= p.MaxIterations; it++ {
		for _, q := range Q {
			lu.solve(q)
		}
		orthonormalize(Q, rng)
		var ritz []Pair
		if ritz, err = rayleighRitz(op, Q, p.Shift); err != nil {
			return
		}
		ritz = ritz[:k]
		conv, worst = 0, 0
		for i := range ritz {
			ritz[i].Residual = op.residual(ritz[i])
			if ritz[i].Residual <= p.Tolerance*math.Max(1, math.Abs(ritz[i].Value)) {
				conv++
			}
			worst = math.Max(worst, ritz[i].Residual)
		}
		if conv == k {
			if s.Verbose {
				fmt.Printf("shift-invert: %d pairs converged in %d iterations, shift = %12.6g, worst residual = %8.3g, bandwidth = %d/%d\n",
					k, it, shift, worst, op.kl, op.ku)
			}
			return ritz, nil
		}
	}
	err = &ConvergenceError{
		Iterations: p.MaxIterations,
		Converged:  conv,
		Required:   k,
		Residual:   worst,
		Tolerance:  p.Tolerance,
	}
	return
}

type entry struct {
	i, j int
	v    float64
}

// operator holds the stored entries of A with the band they occupy
type operator struct {
	A       mat.Matrix
	n       int
	entries []entry
	kl, ku  int
	scale   float64 // Largest stored magnitude
	sym     bool
}

func newOperator(A mat.Matrix) (op *operator) {
	n, _ := A.Dims()
	op = &operator{A: A, n: n}
	add := func(i, j int, v float64) {
		if v == 0 {
			return
		}
		op.entries = append(op.entries, entry{i: i, j: j, v: v})
		op.kl, op.ku = max(op.kl, i-j), max(op.ku, j-i)
		op.scale = math.Max(op.scale, math.Abs(v))
	}
	if nz, ok := A.(mat.NonZeroDoer); ok {
		nz.DoNonZero(add)
	} else {
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				add(i, j, A.At(i, j))
			}
		}
	}
	op.sym = op.isSymmetric(1.e-12)
	return
}

func (op *operator) isSymmetric(tol float64) bool {
	tol *= math.Max(1, op.scale)
	if sm, ok := op.A.(interface{ IsSymmetric(tol float64) bool }); ok {
		return sm.IsSymmetric(tol)
	}
	for _, e := range op.entries {
		if math.Abs(e.v-op.A.At(e.j, e.i)) > tol {
			return false
		}
	}
	return true
}

// mulVec computes dst = A x
func (op *operator) mulVec(dst, x []float64) {
	if mv, ok := op.A.(interface{ MulVec(dst, x []float64) }); ok {
		mv.MulVec(dst, x)
		return
	}
	for i := range dst {
		dst[i] = 0
	}
	for _, e := range op.entries {
		dst[e.i] += e.v * x[e.j]
	}
}

func (op *operator) residual(p Pair) float64 {
	r := make([]float64, op.n)
	op.mulVec(r, p.Vector)
	floats.AddScaled(r, -p.Value, p.Vector)
	return floats.Norm(r, 2)
}

// factorizeShifted factors A - σI. A shift sitting on an eigenvalue leaves the
// factorization singular, in which case it is nudged until the factors are usable.
func (op *operator) factorizeShifted(shift float64) (lu *bandLU, used float64, err error) {
	lu = newBandLU(op.n, op.kl, op.ku)
	used = shift
	for try := 0; try < maxShiftRetry; try++ {
		lu.load(op.entries, used)
		if ratio := lu.factorize(); ratio > 1/condLimit {
			return
		}
		used += 1.e-7 * math.Max(1, math.Abs(shift)) * float64(try+1)
	}
	err = fmt.Errorf("shifted operator is singular near shift %g", shift)
	return nil, used, err
}

func startBlock(rng *rand.Rand, n, m int) (Q [][]float64) {
	Q = make([][]float64, m)
	for j := range Q {
		Q[j] = make([]float64, n)
		for i := range Q[j] {
			Q[j][i] = rng.NormFloat64()
		}
	}
	orthonormalize(Q, rng)
	return
}

// orthonormalize runs modified Gram-Schmidt twice over the columns of Q in place. A
// column that vanishes against the ones before it is redrawn at random.
func orthonormalize(Q [][]float64, rng *rand.Rand) {
	for j, q := range Q {
		for attempt := 0; attempt < maxRedraw; attempt++ {
			nrm0 := floats.Norm(q, 2)
			for pass := 0; pass < 2; pass++ {
				for _, qi := range Q[:j] {
					floats.AddScaled(q, -floats.Dot(qi, q), qi)
				}
			}
			if nrm := floats.Norm(q, 2); nrm > 1.e-10*nrm0 && nrm > 0 {
				floats.Scale(1/nrm, q)
				break
			}
			for i := range q {
				q[i] = rng.NormFloat64()
			}
		}
	}
}

func rayleighRitz(op *operator, Q [][]float64, shift float64) (ritz []Pair, err error) {
	var (
		n, m   = op.n, len(Q)
		AQ     = make([][]float64, m)
		H      = mat.NewDense(m, m, nil)
		values []float64
		Y      *mat.Dense
	)
	for j, q := range Q {
		AQ[j] = make([]float64, n)
		op.mulVec(AQ[j], q)
	}
	for i := range Q {
		for j := range AQ {
			H.Set(i, j, floats.Dot(Q[i], AQ[j]))
		}
	}
	if op.sym {
		S := mat.NewSymDense(m, nil)
		for i := 0; i < m; i++ {
			for j := i; j < m; j++ {
				S.SetSym(i, j, 0.5*(H.At(i, j)+H.At(j, i)))
			}
		}
		var es mat.EigenSym
		if ok := es.Factorize(S, true); !ok {
			return nil, fmt.Errorf("symmetric Rayleigh-Ritz eigen decomposition failed")
		}
		values = es.Values(nil)
		Y = mat.NewDense(m, m, nil)
		es.VectorsTo(Y)
	} else {
		var (
			eg mat.Eigen
			CY mat.CDense
		)
		if ok := eg.Factorize(H, mat.EigenRight); !ok {
			return nil, fmt.Errorf("Rayleigh-Ritz eigen decomposition failed")
		}
		cv := eg.Values(nil)
		eg.VectorsTo(&CY)
		values = make([]float64, m)
		Y = mat.NewDense(m, m, nil)
		for j := 0; j < m; j++ {
			values[j] = real(cv[j])
			for i := 0; i < m; i++ {
				Y.Set(i, j, real(CY.At(i, j)))
			}
		}
	}
	ritz = make([]Pair, m)
	for j := 0; j < m; j++ {
		x := make([]float64, n)
		for i, q := range Q {
			floats.AddScaled(x, Y.At(i, j), q)
		}
		ritz[j] = Pair{Value: values[j], Vector: normalize(x)}
	}
	SortByShift(ritz, shift)
	return
}

// SortByShift orders pairs by distance to the shift, equal distances put the larger
// eigenvalue first
func SortByShift(pairs []Pair, shift float64) {
	sort.SliceStable(pairs, func(i, j int) bool {
		di, dj := math.Abs(pairs[i].Value-shift), math.Abs(pairs[j].Value-shift)
		if di != dj {
			return di < dj
		}
		return pairs[i].Value > pairs[j].Value
	})
}

// normalize scales to unit L2 norm with the largest magnitude component positive
func normalize(v []float64) []float64 {
	var (
		nrm  = floats.Norm(v, 2)
		imax int
	)
	if nrm == 0 {
		return v
	}
	for i := range v {
		if math.Abs(v[i]) > math.Abs(v[imax]) {
			imax = i
		}
	}
	if v[imax] < 0 {
		nrm = -nrm
	}
	floats.Scale(1/nrm, v)
	return v
}

