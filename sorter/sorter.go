// Package sorter keeps the identity of tracked modes continuous from one ITR step to
// the next by matching freshly computed eigenpairs against the previous step.
package sorter

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
)

type Criterion uint8

const (
	FieldOverlap Criterion = iota
	BetaProximity
)

func (c Criterion) String() string {
	switch c {
	case FieldOverlap:
		return "field"
	case BetaProximity:
		return "beta"
	}
	return "unknown"
}

func ParseCriterion(label string) (Criterion, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "field", "overlap", "field_overlap", "":
		return FieldOverlap, nil
	case "beta", "propagation_constant", "beta_proximity":
		return BetaProximity, nil
	}
	return FieldOverlap, fmt.Errorf("unknown sorting criterion %q, must be one of [field, beta]", label)
}

type Assignment uint8

const (
	Greedy Assignment = iota
	Hungarian
)

func (a Assignment) String() string {
	switch a {
	case Greedy:
		return "greedy"
	case Hungarian:
		return "hungarian"
	}
	return "unknown"
}

func ParseAssignment(label string) (Assignment, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "greedy", "":
		return Greedy, nil
	case "hungarian", "optimal":
		return Hungarian, nil
	}
	return Greedy, fmt.Errorf("unknown assignment %q, must be one of [greedy, hungarian]", label)
}

// Candidate is a raw eigenpair from the current step, Index is its solver order
type Candidate struct {
	Index      int
	EigenValue float64
	Beta       float64
	Field      []float64
}

// Reference is a tracked mode as it stood at the previous step
type Reference struct {
	ModeNumber int
	Beta       float64
	Field      []float64
}

// ModeTrackingWarning flags a match accepted below the similarity threshold, the
// mode's history from this step on may belong to another physical mode
type ModeTrackingWarning struct {
	Step       int
	ModeNumber int
	Candidate  int
	Score      float64
	Threshold  float64
}

func (w ModeTrackingWarning) Error() string {
	return fmt.Sprintf("mode tracking: step %d, mode %d matched candidate %d with similarity %.4f below threshold %.4f",
		w.Step, w.ModeNumber, w.Candidate, w.Score, w.Threshold)
}

type Result struct {
	Permutation []int // Permutation[modeNumber] is the index into the candidate slice
	Scores      []float64
	Warnings    []ModeTrackingWarning
}

// Matcher assigns every reference (row) to a distinct candidate (column) from a
// similarity matrix, higher is better
type Matcher interface {
	Match(scores [][]float64) (assign []int)
}

type Sorter struct {
	Criterion     Criterion
	Assignment    Assignment
	MinSimilarity float64
	matcher       Matcher
}

func New(criterion Criterion, assignment Assignment, minSimilarity float64) (s *Sorter) {
	s = &Sorter{
		Criterion:     criterion,
		Assignment:    assignment,
		MinSimilarity: minSimilarity,
	}
	switch assignment {
	case Hungarian:
		s.matcher = HungarianMatcher{}
	default:
		s.matcher = GreedyMatcher{}
	}
	return
}

// WithMatcher replaces the assignment algorithm
func (s *Sorter) WithMatcher(m Matcher) *Sorter {
	s.matcher = m
	return s
}

// Similarity scores one candidate against one reference, both criteria map to [0, 1]
func (s *Sorter) Similarity(c Candidate, r Reference) float64 {
	switch s.Criterion {
	case BetaProximity:
		scale := math.Abs(r.Beta)
		if scale == 0 {
			scale = 1
		}
		return 1. / (1. + math.Abs(c.Beta-r.Beta)/scale)
	default:
		return FieldSimilarity(c.Field, r.Field)
	}
}

// FieldSimilarity is the magnitude of the normalized inner product, eigenvectors
// carry an arbitrary sign
func FieldSimilarity(a, b []float64) float64 {
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return math.Abs(floats.Dot(a, b)) / (na * nb)
}

// Sort matches len(refs) tracked modes among the candidates
func (s *Sorter) Sort(step int, cands []Candidate, refs []Reference) (res Result, err error) {
	if len(cands) < len(refs) {
		err = fmt.Errorf("step %d: %d candidates can not cover %d tracked modes", step, len(cands), len(refs))
		return
	}
	scores := make([][]float64, len(refs))
	for i, r := range refs {
		scores[i] = make([]float64, len(cands))
		for j, c := range cands {
			scores[i][j] = s.Similarity(c, r)
		}
	}
	assign := s.matcher.Match(scores)
	res = Result{
		Permutation: make([]int, len(refs)),
		Scores:      make([]float64, len(refs)),
	}
	for i, r := range refs {
		j := assign[i]
		res.Permutation[r.ModeNumber] = j
		res.Scores[r.ModeNumber] = scores[i][j]
		if scores[i][j] < s.MinSimilarity {
			res.Warnings = append(res.Warnings, ModeTrackingWarning{
				Step:       step,
				ModeNumber: r.ModeNumber,
				Candidate:  cands[j].Index,
				Score:      scores[i][j],
				Threshold:  s.MinSimilarity,
			})
		}
	}
	return
}

// Canonical is the step zero ordering: the n candidates with the largest eigenvalues,
// in descending order, ties broken by solver order
func Canonical(cands []Candidate, n int) (perm []int, err error) {
	if len(cands) < n {
		err = fmt.Errorf("%d candidates can not cover %d tracked modes", len(cands), n)
		return
	}
	order := make([]int, len(cands))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ca, cb := cands[order[a]], cands[order[b]]
		if ca.EigenValue != cb.EigenValue {
			return ca.EigenValue > cb.EigenValue
		}
		return ca.Index < cb.Index
	})
	perm = order[:n]
	return
}
