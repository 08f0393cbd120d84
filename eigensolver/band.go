package eigensolver

import (
	"math"
)

// bandLU is a partial pivoting LU of a matrix with kl sub and ku super diagonals.
// Row interchanges fill up to kl extra super diagonals of U, so row i keeps the
// 2*kl+ku+1 columns starting at i-kl. Multipliers stay in the rows where they were
// computed and are replayed in order by solve.
type bandLU struct {
	n, kl, ku, w int
	ab           []float64
	piv          []int
}

func newBandLU(n, kl, ku int) *bandLU {
	w := 2*kl + ku + 1
	return &bandLU{
		n:   n,
		kl:  kl,
		ku:  ku,
		w:   w,
		ab:  make([]float64, n*w),
		piv: make([]int, n),
	}
}

func (b *bandLU) idx(i, j int) int { return i*b.w + j - i + b.kl }

// load fills the band with A - shift*I
func (b *bandLU) load(entries []entry, shift float64) {
	for i := range b.ab {
		b.ab[i] = 0
	}
	for _, e := range entries {
		b.ab[b.idx(e.i, e.j)] += e.v
	}
	for i := 0; i < b.n; i++ {
		b.ab[b.idx(i, i)] -= shift
	}
}

// factorize overwrites the band with its LU factors and returns the ratio of the
// smallest to the largest pivot magnitude, zero when a pivot vanishes
func (b *bandLU) factorize() (ratio float64) {
	var (
		n, ab      = b.n, b.ab
		pMin, pMax = math.Inf(1), 0.
	)
	for k := 0; k < n; k++ {
		var (
			last  = min(n-1, k+b.kl)
			right = min(n-1, k+b.kl+b.ku)
			p     = k
		)
		for r := k + 1; r <= last; r++ {
			if math.Abs(ab[b.idx(r, k)]) > math.Abs(ab[b.idx(p, k)]) {
				p = r
			}
		}
		b.piv[k] = p
		d := ab[b.idx(p, k)]
		if d == 0 || math.IsNaN(d) || math.IsInf(d, 0) {
			return 0
		}
		pMin, pMax = math.Min(pMin, math.Abs(d)), math.Max(pMax, math.Abs(d))
		if p != k {
			for j := k; j <= right; j++ {
				ik, ip := b.idx(k, j), b.idx(p, j)
				ab[ik], ab[ip] = ab[ip], ab[ik]
			}
		}
		for r := k + 1; r <= last; r++ {
			ir := b.idx(r, k)
			l := ab[ir] / d
			ab[ir] = l
			if l == 0 {
				continue
			}
			for j := k + 1; j <= right; j++ {
				ab[b.idx(r, j)] -= l * ab[b.idx(k, j)]
			}
		}
	}
	return pMin / pMax
}

// solve overwrites x with (A - shift*I)^-1 x
func (b *bandLU) solve(x []float64) {
	var (
		n, ab = b.n, b.ab
	)
	for k := 0; k < n; k++ {
		if p := b.piv[k]; p != k {
			x[k], x[p] = x[p], x[k]
		}
		if x[k] == 0 {
			continue
		}
		last := min(n-1, k+b.kl)
		for r := k + 1; r <= last; r++ {
			x[r] -= ab[b.idx(r, k)] * x[k]
		}
	}
	for k := n - 1; k >= 0; k-- {
		var (
			right = min(n-1, k+b.kl+b.ku)
			sum   = x[k]
		)
		for j := k + 1; j <= right; j++ {
			sum -= ab[b.idx(k, j)] * x[j]
		}
		x[k] = sum / ab[b.idx(k, k)]
	}
}
