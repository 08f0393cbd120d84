package laplacian

import (
	"fmt"
	"sync"

	"github.com/notargets/gosupermode/utils"
)

// Triplets is the coordinate form of a finite difference operator, three parallel
// sequences of equal length
type Triplets struct {
	Rows, Cols []int
	Values     []float64
}

func NewTripletsFromFloat(rows, cols, values []float64) (t Triplets, err error) {
	var (
		R, C utils.Index
	)
	if R, err = utils.NewFromFloat(rows); err != nil {
		return t, &InvalidOperatorError{Index: -1, Reason: "rows: " + err.Error()}
	}
	if C, err = utils.NewFromFloat(cols); err != nil {
		return t, &InvalidOperatorError{Index: -1, Reason: "cols: " + err.Error()}
	}
	t = Triplets{Rows: R, Cols: C, Values: values}
	return
}

func (t Triplets) Len() int { return len(t.Values) }

// InvalidOperatorError reports a coefficient list that can not be scattered into a
// size x size operator. Index is the offending triplet position, -1 when the list as
// a whole is malformed
type InvalidOperatorError struct {
	Index    int
	Row, Col int
	Size     int
	Reason   string
}

func (e *InvalidOperatorError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid operator: %s", e.Reason)
	}
	return fmt.Sprintf("invalid operator: triplet %d (row %d, col %d) %s, operator size %d",
		e.Index, e.Row, e.Col, e.Reason, e.Size)
}

// Validate checks every triplet lies within [0, size)
func (t Triplets) Validate(size int) error {
	if len(t.Rows) != len(t.Cols) || len(t.Rows) != len(t.Values) {
		return &InvalidOperatorError{Index: -1, Size: size,
			Reason: fmt.Sprintf("coefficient list lengths differ: rows %d, cols %d, values %d",
				len(t.Rows), len(t.Cols), len(t.Values))}
	}
	if size <= 0 {
		return &InvalidOperatorError{Index: -1, Size: size, Reason: "operator size must be positive"}
	}
	for n := range t.Rows {
		r, c := t.Rows[n], t.Cols[n]
		if r < 0 || r >= size || c < 0 || c >= size {
			return &InvalidOperatorError{Index: n, Row: r, Col: c, Size: size, Reason: "is out of range"}
		}
	}
	return nil
}

/*
Assembler scatters a coefficient list into the sparse Laplacian of an nx by ny grid
and adds the index dependent term for each ITR step.

A triplet (r, c, v) lands on operator entry (c, r): the list is supplied transposed.
Edge rows are then corrected for the boundary tags:
  - Symmetric: the coupling to the inward neighbour is doubled, the ghost node mirrors it
  - AntiSymmetric: the coupling to the inward neighbour is cancelled, the ghost node is its negative
  - Zero, Absorbing: the supplied stencil is used as is
*/
type Assembler struct {
	Nx, Ny   int
	BCs      utils.Boundaries
	triplets Triplets
	lap      *utils.CSR
	mu       sync.Mutex
	cachedK  float64
	cachedN  []float64
	cachedOp *utils.CSR
}

func NewAssembler(nx, ny int, bcs utils.Boundaries, t Triplets) (a *Assembler, err error) {
	if nx <= 0 || ny <= 0 {
		err = &InvalidOperatorError{Index: -1, Reason: fmt.Sprintf("grid dimensions must be positive, have nx = %d, ny = %d", nx, ny)}
		return
	}
	if err = t.Validate(nx * ny); err != nil {
		return
	}
	a = &Assembler{
		Nx:       nx,
		Ny:       ny,
		BCs:      bcs,
		triplets: t,
	}
	return
}

func (a *Assembler) Size() int { return a.Nx * a.Ny }

// Laplacian returns the boundary corrected operator, built on first use
func (a *Assembler) Laplacian() utils.CSR {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lap == nil {
		lap := a.scatter(nil, 0).ToCSR()
		a.lap = &lap
	}
	return *a.lap
}

// Operator returns L + k^2 diag(n^2) where n is the flattened index profile. The result
// is cached for the last k, so a step asking more than once gets the same matrix
func (a *Assembler) Operator(index []float64, k float64) (op utils.CSR, err error) {
	if len(index) != a.Size() {
		err = &InvalidOperatorError{Index: -1, Size: a.Size(),
			Reason: fmt.Sprintf("index profile has %d points, grid has %d", len(index), a.Size())}
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cachedOp != nil && a.cachedK == k && &a.cachedN[0] == &index[0] {
		return *a.cachedOp, nil
	}
	op = a.scatter(index, k).ToCSR()
	a.cachedK, a.cachedN, a.cachedOp = k, index, &op
	return
}

func (a *Assembler) scatter(index []float64, k float64) (D utils.DOK) {
	var (
		size = a.Size()
		t    = a.triplets
	)
	D = utils.NewDOK(size, size)
	for n := range t.Values {
		// Row and column are swapped on purpose, see the type comment
		D.AddAt(t.Cols[n], t.Rows[n], t.Values[n])
	}
	a.applyBoundaries(D)
	if index != nil {
		k2 := utils.POW(k, 2)
		for i, n := range index {
			D.AddAt(i, i, k2*n*n)
		}
	}
	D.SetReadOnly("Laplacian")
	return
}

func (a *Assembler) applyBoundaries(D utils.DOK) {
	var (
		nx, ny = a.Nx, a.Ny
	)
	correct := func(e utils.Edge, node, inward int) {
		var (
			c = D.At(node, inward)
		)
		switch a.BCs.Get(e) {
		case utils.BCSymmetric:
			D.AddAt(node, inward, c)
		case utils.BCAntiSymmetric:
			D.AddAt(node, inward, -c)
		}
	}
	if nx > 1 {
		for iy := 0; iy < ny; iy++ {
			left := utils.GridIndex(0, iy, nx)
			right := utils.GridIndex(nx-1, iy, nx)
			correct(utils.EdgeLeft, left, left+1)
			correct(utils.EdgeRight, right, right-1)
		}
	}
	if ny > 1 {
		for ix := 0; ix < nx; ix++ {
			bottom := utils.GridIndex(ix, 0, nx)
			top := utils.GridIndex(ix, ny-1, nx)
			correct(utils.EdgeBottom, bottom, bottom+nx)
			correct(utils.EdgeTop, top, top-nx)
		}
	}
}
