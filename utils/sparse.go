package utils

import (
	"fmt"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/mat"
)

// DOK is the assembly format, entries are accumulated and then frozen into a CSR
type DOK struct {
	M        *sparse.DOK
	readOnly bool
	name     string
}

func NewDOK(nr, nc int) (R DOK) {
	R = DOK{
		sparse.NewDOK(nr, nc),
		false,
		"unnamed - hint: pass a variable name to SetReadOnly()",
	}
	return
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m DOK) Dims() (r, c int)    { return m.M.Dims() }
func (m DOK) At(i, j int) float64 { return m.M.At(i, j) }
func (m DOK) T() mat.Matrix       { return m.M.T() }
func (m DOK) NNZ() int            { return m.M.NNZ() }

func (m *DOK) SetReadOnly(name ...string) DOK {
	if len(name) != 0 {
		m.name = name[0]
	}
	m.readOnly = true
	return *m
}

func (m DOK) Set(i, j int, val float64) DOK { // Changes receiver
	m.checkWritable()
	m.M.Set(i, j, val)
	return m
}

// AddAt accumulates val into (i,j), duplicate coordinates in a triplet list sum
func (m DOK) AddAt(i, j int, val float64) DOK { // Changes receiver
	m.checkWritable()
	m.M.Set(i, j, m.M.At(i, j)+val)
	return m
}

func (m DOK) checkWritable() {
	if m.readOnly {
		err := fmt.Errorf("attempt to write to a read only matrix named: \"%v\"", m.name)
		panic(err)
	}
}

func (m DOK) ToCSR() CSR {
	return CSR{
		M:    m.M.ToCSR(),
		name: m.name,
	}
}

// CSR is the frozen operator format, it is never written after conversion
type CSR struct {
	M    *sparse.CSR
	name string
}

// Dims, At and T minimally satisfy the mat.Matrix interface.
func (m CSR) Dims() (r, c int)    { return m.M.Dims() }
func (m CSR) At(i, j int) float64 { return m.M.At(i, j) }
func (m CSR) T() mat.Matrix       { return m.M.T() }
func (m CSR) NNZ() int            { return m.M.NNZ() }
func (m CSR) Name() string        { return m.name }

func (m CSR) DoNonZero(fn func(i, j int, v float64)) {
	m.M.DoNonZero(fn)
}

// MulVec computes dst = M * x, the eigensolver's products go through it
func (m CSR) MulVec(dst, x []float64) {
	var (
		nr, nc = m.Dims()
	)
	if len(dst) != nr || len(x) != nc {
		panic(fmt.Errorf("dimension mismatch in MulVec: M is %dx%d, len(dst) = %d, len(x) = %d",
			nr, nc, len(dst), len(x)))
	}
	for i := range dst {
		dst[i] = 0
	}
	m.M.DoNonZero(func(i, j int, v float64) {
		dst[i] += v * x[j]
	})
}

// IsSymmetric reports whether |M(i,j) - M(j,i)| <= tol for every stored entry
func (m CSR) IsSymmetric(tol float64) (symmetric bool) {
	symmetric = true
	m.M.DoNonZero(func(i, j int, v float64) {
		if symmetric && i != j {
			d := v - m.M.At(j, i)
			if d > tol || d < -tol {
				symmetric = false
			}
		}
	})
	return
}
