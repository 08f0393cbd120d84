package sorter

import (
	"math"
	"sort"
)

// GreedyMatcher claims the best remaining (reference, candidate) pair until every
// reference is assigned. Ties go to the lower candidate index, then the lower reference.
type GreedyMatcher struct{}

func (GreedyMatcher) Match(scores [][]float64) (assign []int) {
	type entry struct {
		row, col int
		score    float64
	}
	var (
		nr      = len(scores)
		entries []entry
	)
	assign = make([]int, nr)
	if nr == 0 {
		return
	}
	for i := range scores {
		assign[i] = -1
		for j, s := range scores[i] {
			entries = append(entries, entry{i, j, s})
		}
	}
	sort.SliceStable(entries, func(a, b int) bool {
		ea, eb := entries[a], entries[b]
		if ea.score != eb.score {
			return ea.score > eb.score
		}
		if ea.col != eb.col {
			return ea.col < eb.col
		}
		return ea.row < eb.row
	})
	var (
		colTaken = make(map[int]bool)
		assigned int
	)
	for _, e := range entries {
		if assign[e.row] != -1 || colTaken[e.col] {
			continue
		}
		assign[e.row] = e.col
		colTaken[e.col] = true
		if assigned++; assigned == nr {
			break
		}
	}
	return
}

// HungarianMatcher maximizes the total similarity over all assignments, rows must not
// outnumber columns
type HungarianMatcher struct{}

func (HungarianMatcher) Match(scores [][]float64) (assign []int) {
	var (
		n = len(scores)
	)
	assign = make([]int, n)
	if n == 0 {
		return
	}
	var (
		m = len(scores[0])
		// Potentials and matching are 1 based, index 0 is the virtual start column
		u   = make([]float64, n+1)
		v   = make([]float64, m+1)
		p   = make([]int, m+1) // p[j] is the row matched to column j
		way = make([]int, m+1)
	)
	cost := func(i, j int) float64 { return -scores[i-1][j-1] }
	for i := 1; i <= n; i++ {
		p[0] = i
		var (
			j0   = 0
			minv = make([]float64, m+1)
			used = make([]bool, m+1)
		)
		for j := range minv {
			minv[j] = math.Inf(1)
		}
		for {
			used[j0] = true
			var (
				i0    = p[j0]
				delta = math.Inf(1)
				j1    int
			)
			for j := 1; j <= m; j++ {
				if used[j] {
					continue
				}
				cur := cost(i0, j) - u[i0] - v[j]
				if cur < minv[j] {
					minv[j] = cur
					way[j] = j0
				}
				if minv[j] < delta {
					delta = minv[j]
					j1 = j
				}
			}
			for j := 0; j <= m; j++ {
				if used[j] {
					u[p[j]] += delta
					v[j] -= delta
				} else {
					minv[j] -= delta
				}
			}
			j0 = j1
			if p[j0] == 0 {
				break
			}
		}
		for j0 != 0 {
			j1 := way[j0]
			p[j0] = p[j1]
			j0 = j1
		}
	}
	for j := 1; j <= m; j++ {
		if p[j] != 0 {
			assign[p[j]-1] = j - 1
		}
	}
	return
}
