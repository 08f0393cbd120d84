// Package eigensolver finds the eigenpairs of a sparse operator nearest a shift. The
// sweep depends only on the Solver interface; ShiftInvert is the implementation used
// by default.
package eigensolver

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Problem is one shifted eigenproblem
type Problem struct {
	Operator      mat.Matrix
	Shift         float64
	NumPairs      int
	MaxIterations int
	Tolerance     float64
}

func (p Problem) Validate() error {
	if p.Operator == nil {
		return fmt.Errorf("nil operator")
	}
	nr, nc := p.Operator.Dims()
	if nr != nc {
		return fmt.Errorf("operator must be square, have %d x %d", nr, nc)
	}
	if p.NumPairs < 1 || p.NumPairs > nr {
		return fmt.Errorf("number of eigenpairs requested must be in [1, %d], have %d", nr, p.NumPairs)
	}
	if p.MaxIterations < 1 {
		return fmt.Errorf("max iterations must be positive, have %d", p.MaxIterations)
	}
	if p.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive, have %g", p.Tolerance)
	}
	return nil
}

// Pair is an eigenvalue with its unit L2 norm eigenvector
type Pair struct {
	Value    float64
	Vector   []float64
	Residual float64
}

type Solver interface {
	Solve(p Problem) ([]Pair, error)
}

// ConvergenceError is returned when the iteration budget is exhausted before every
// requested pair meets the tolerance
type ConvergenceError struct {
	Iterations          int
	Converged, Required int
	Residual            float64 // Largest residual among the required pairs
	Tolerance           float64
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("eigensolver did not converge after %d iterations: %d of %d pairs within tolerance %g, worst residual %g",
		e.Iterations, e.Converged, e.Required, e.Tolerance, e.Residual)
}
