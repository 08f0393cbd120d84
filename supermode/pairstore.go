package supermode

import (
	"fmt"
)

// PairStore holds one value per unordered mode pair per step. (i, j) and (j, i) share
// a cell and the diagonal is not stored, it always reads as zero.
type PairStore struct {
	NModes, NSteps int
	data           []float64
}

func NewPairStore(nModes, nSteps int) *PairStore {
	return &PairStore{
		NModes: nModes,
		NSteps: nSteps,
		data:   make([]float64, nModes*(nModes-1)/2*nSteps),
	}
}

func (p *PairStore) NumPairs() int { return p.NModes * (p.NModes - 1) / 2 }

// PairIndex is the position of the unordered pair in row-major upper triangular order
func (p *PairStore) PairIndex(i, j int) int {
	if i > j {
		i, j = j, i
	}
	return i*p.NModes - i*(i+1)/2 + (j - i - 1)
}

// Pair is the inverse of PairIndex
func (p *PairStore) Pair(ind int) (i, j int) {
	for i = 0; i < p.NModes-1; i++ {
		rowLen := p.NModes - i - 1
		if ind < rowLen {
			return i, i + 1 + ind
		}
		ind -= rowLen
	}
	panic(fmt.Errorf("pair index out of range"))
}

func (p *PairStore) check(i, j, step int) {
	if i < 0 || j < 0 || i >= p.NModes || j >= p.NModes || step < 0 || step >= p.NSteps {
		panic(fmt.Errorf("pair store access out of range: (%d, %d) step %d, modes %d, steps %d",
			i, j, step, p.NModes, p.NSteps))
	}
}

func (p *PairStore) At(i, j, step int) float64 {
	p.check(i, j, step)
	if i == j {
		return 0
	}
	return p.data[p.PairIndex(i, j)*p.NSteps+step]
}

func (p *PairStore) Set(i, j, step int, val float64) {
	p.check(i, j, step)
	if i == j {
		panic(fmt.Errorf("the diagonal of a pair store is not writable, mode %d", i))
	}
	p.data[p.PairIndex(i, j)*p.NSteps+step] = val
}

// Row returns the values of pair (i, j) over every step, it aliases the store
func (p *PairStore) Row(i, j int) []float64 {
	p.check(i, j, 0)
	if i == j {
		return make([]float64, p.NSteps)
	}
	ind := p.PairIndex(i, j) * p.NSteps
	return p.data[ind : ind+p.NSteps]
}

// SwapModes relabels modes i and j. The pair (i, j) itself is unordered and keeps
// its values.
func (p *PairStore) SwapModes(i, j int) {
	p.check(i, j, 0)
	if i == j {
		return
	}
	for k := 0; k < p.NModes; k++ {
		if k == i || k == j {
			continue
		}
		ri, rj := p.Row(i, k), p.Row(j, k)
		for s := range ri {
			ri[s], rj[s] = rj[s], ri[s]
		}
	}
}
