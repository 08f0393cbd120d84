package supermode

import (
	"fmt"

	"github.com/notargets/gosupermode/utils"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// SuperMode is one tracked mode across the sweep. It holds no data of its own, every
// accessor reads the owning Set's arena.
type SuperMode struct {
	ModeNumber int
	Name       string
	set        *Set
}

func (m *SuperMode) Set() *Set { return m.set }

func (m *SuperMode) rowOffset() int { return m.ModeNumber * m.set.NSteps() }

// Field returns the mode's field at a step, aliasing the arena
func (m *SuperMode) Field(step int) []float64 {
	m.set.checkStep(step)
	var (
		np  = m.set.NPoints()
		ind = (m.rowOffset() + step) * np
	)
	return m.set.fields[ind : ind+np]
}

// Fields is the n_points x n_steps field history, each column is one step
func (m *SuperMode) Fields() mat.Matrix {
	var (
		ns, np = m.set.NSteps(), m.set.NPoints()
		ind    = m.rowOffset() * np
	)
	return mat.NewDense(ns, np, m.set.fields[ind:ind+ns*np]).T()
}

// FieldArray returns the field history reshaped to [step][iy][ix]
func (m *SuperMode) FieldArray() (F [][][]float64) {
	F = make([][][]float64, m.set.NSteps())
	for step := range F {
		F[step] = utils.Unflatten(m.Field(step), m.set.Ny, m.set.Nx)
	}
	return
}

func (m *SuperMode) history(data []float64) []float64 {
	ind := m.rowOffset()
	return data[ind : ind+m.set.NSteps()]
}

func (m *SuperMode) EigenValues() []float64    { return m.history(m.set.eigenValues) }
func (m *SuperMode) Betas() []float64          { return m.history(m.set.betas) }
func (m *SuperMode) EffectiveIndex() []float64 { return m.history(m.set.neff) }

func (m *SuperMode) Beta(step int) float64 {
	m.set.checkStep(step)
	return m.Betas()[step]
}

func (m *SuperMode) EigenValue(step int) float64 {
	m.set.checkStep(step)
	return m.EigenValues()[step]
}

// IsComputationCompatible reports whether a pair quantity between m and other is defined
func (m *SuperMode) IsComputationCompatible(other *SuperMode) bool {
	return other != nil && other.set == m.set && other.ModeNumber != m.ModeNumber
}

func (m *SuperMode) checkPartner(other *SuperMode) {
	if other == nil || other.set != m.set {
		panic(fmt.Errorf("mode %s does not belong to the same set as %s", other, m))
	}
}

// Overlap is the discrete inner product of the two fields at a step
func (m *SuperMode) Overlap(other *SuperMode, step int) float64 {
	m.checkPartner(other)
	return floats.Dot(m.Field(step), other.Field(step))
}

func (m *SuperMode) GradientOverlap(other *SuperMode, step int) float64 {
	m.checkPartner(other)
	return m.set.GradientOverlap(m.Field(step), other.Field(step), step)
}

// CouplingAdiabatic evaluates coupling and adiabatic criterion from the fields,
// a mode paired with itself is defined to have zero coupling
func (m *SuperMode) CouplingAdiabatic(other *SuperMode, step int) (C, A float64) {
	m.checkPartner(other)
	if !m.IsComputationCompatible(other) {
		return 0, 0
	}
	I := m.GradientOverlap(other, step)
	return CouplingAdiabatic(m.Beta(step), other.Beta(step), m.set.K0, I)
}

func (m *SuperMode) Coupling(other *SuperMode, step int) float64 {
	C, _ := m.CouplingAdiabatic(other, step)
	return C
}

func (m *SuperMode) Adiabatic(other *SuperMode, step int) float64 {
	_, A := m.CouplingAdiabatic(other, step)
	return A
}

// CouplingWith reads the stored coupling history with other, filled by
// PopulateCouplingAdiabatic
func (m *SuperMode) CouplingWith(other *SuperMode) []float64 {
	m.checkPartner(other)
	return m.set.coupling.Row(m.ModeNumber, other.ModeNumber)
}

func (m *SuperMode) AdiabaticWith(other *SuperMode) []float64 {
	m.checkPartner(other)
	return m.set.adiabatic.Row(m.ModeNumber, other.ModeNumber)
}

// CouplingMatrix is the n_steps x n_modes stored coupling of m with every mode
func (m *SuperMode) CouplingMatrix() *mat.Dense { return m.pairMatrix(m.set.coupling) }

func (m *SuperMode) AdiabaticMatrix() *mat.Dense { return m.pairMatrix(m.set.adiabatic) }

func (m *SuperMode) pairMatrix(ps *PairStore) (R *mat.Dense) {
	var (
		ns, nm = m.set.NSteps(), m.set.NModes()
	)
	R = mat.NewDense(ns, nm, nil)
	for j := 0; j < nm; j++ {
		for step := 0; step < ns; step++ {
			R.Set(step, j, ps.At(m.ModeNumber, j, step))
		}
	}
	return
}

func (m *SuperMode) String() string {
	if m == nil {
		return "<nil>"
	}
	return m.Name
}
