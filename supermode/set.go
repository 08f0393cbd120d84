// Package supermode holds the per-mode results of an ITR sweep. A Set owns one arena
// sized for every mode and step; a SuperMode is a view into it.
package supermode

import (
	"fmt"
	"math"

	"github.com/notargets/gosupermode/sorter"
	"github.com/notargets/gosupermode/utils"
	"gonum.org/v1/gonum/integrate"
)

type Set struct {
	ITR            []float64
	Nx, Ny         int
	Dx, Dy         float64 // Grid spacing at ITR = 1
	Wavelength, K0 float64
	Gradient       []float64
	Modes          []*SuperMode
	CompletedSteps int
	Warnings       []sorter.ModeTrackingWarning
	Radiating      []RadiationWarning
	// Arena, mode major then step then grid point
	fields                   []float64
	eigenValues, betas, neff []float64
	coupling, adiabatic      *PairStore
}

func NewSet(itr []float64, nx, ny int, dx, dy, wavelength float64, gradient []float64, nModes int) (s *Set, err error) {
	var (
		nSteps  = len(itr)
		nPoints = nx * ny
	)
	switch {
	case nSteps == 0:
		err = fmt.Errorf("empty ITR sequence")
	case nModes < 1:
		err = fmt.Errorf("number of modes must be positive, have %d", nModes)
	case nx < 1 || ny < 1:
		err = fmt.Errorf("grid dimensions must be positive, have %d x %d", nx, ny)
	case len(gradient) != nPoints:
		err = fmt.Errorf("gradient has %d points, grid has %d", len(gradient), nPoints)
	case wavelength <= 0:
		err = fmt.Errorf("wavelength must be positive, have %g", wavelength)
	}
	if err != nil {
		return
	}
	s = &Set{
		ITR:         itr,
		Nx:          nx,
		Ny:          ny,
		Dx:          dx,
		Dy:          dy,
		Wavelength:  wavelength,
		K0:          utils.WaveNumber(wavelength),
		Gradient:    gradient,
		Modes:       make([]*SuperMode, nModes),
		fields:      make([]float64, nModes*nSteps*nPoints),
		eigenValues: make([]float64, nModes*nSteps),
		betas:       make([]float64, nModes*nSteps),
		neff:        make([]float64, nModes*nSteps),
		coupling:    NewPairStore(nModes, nSteps),
		adiabatic:   NewPairStore(nModes, nSteps),
	}
	for n := range s.Modes {
		s.Modes[n] = &SuperMode{
			ModeNumber: n,
			Name:       fmt.Sprintf("Mode %d", n),
			set:        s,
		}
	}
	return
}

func (s *Set) NSteps() int  { return len(s.ITR) }
func (s *Set) NModes() int  { return len(s.Modes) }
func (s *Set) NPoints() int { return s.Nx * s.Ny }

func (s *Set) CouplingStore() *PairStore  { return s.coupling }
func (s *Set) AdiabaticStore() *PairStore { return s.adiabatic }

func (s *Set) checkStep(step int) {
	if step < 0 || step >= s.NSteps() {
		panic(fmt.Errorf("step %d out of range [0, %d)", step, s.NSteps()))
	}
}

// RadiationWarning marks a mode stored with a negative eigenvalue. Its beta is taken
// from |λ| and stays real, but the field is not guided at that step.
type RadiationWarning struct {
	Step       int
	ModeNumber int
	EigenValue float64
}

func (w RadiationWarning) Error() string {
	return fmt.Sprintf("mode %d is not guided at step %d: eigenvalue %g is negative, beta uses its magnitude",
		w.ModeNumber, w.Step, w.EigenValue)
}

// Write stores one solved mode in column step of mode's history. beta is
// sqrt(|λ|)/ITR, a negative eigenvalue is kept as is and recorded in Radiating.
func (s *Set) Write(mode, step int, eigenValue float64, field []float64) {
	s.checkStep(step)
	if len(field) != s.NPoints() {
		panic(fmt.Errorf("field has %d points, grid has %d", len(field), s.NPoints()))
	}
	var (
		ind  = mode*s.NSteps() + step
		itr  = s.ITR[step]
		beta = math.Sqrt(math.Abs(eigenValue)) / itr
	)
	copy(s.fields[ind*s.NPoints():(ind+1)*s.NPoints()], field)
	s.eigenValues[ind] = eigenValue
	s.betas[ind] = beta
	s.neff[ind] = beta / s.K0
	if eigenValue < 0 {
		s.Radiating = append(s.Radiating, RadiationWarning{
			Step:       step,
			ModeNumber: mode,
			EigenValue: eigenValue,
		})
	}
}

// Swap exchanges the order of modes i and j. Each mode's data keeps its name and its
// pair values, only the mode numbers change.
func (s *Set) Swap(i, j int) {
	nm := s.NModes()
	if i < 0 || j < 0 || i >= nm || j >= nm {
		panic(fmt.Errorf("swap of modes (%d, %d) out of range [0, %d)", i, j, nm))
	}
	if i == j {
		return
	}
	var (
		ns, np = s.NSteps(), s.NPoints()
	)
	swapBlock := func(data []float64, width int) {
		a, b := data[i*width:(i+1)*width], data[j*width:(j+1)*width]
		for k := range a {
			a[k], b[k] = b[k], a[k]
		}
	}
	swapBlock(s.fields, ns*np)
	for _, h := range [][]float64{s.eigenValues, s.betas, s.neff} {
		swapBlock(h, ns)
	}
	s.coupling.SwapModes(i, j)
	s.adiabatic.SwapModes(i, j)
	s.Modes[i].Name, s.Modes[j].Name = s.Modes[j].Name, s.Modes[i].Name
	relabel := func(n int) int {
		switch n {
		case i:
			return j
		case j:
			return i
		}
		return n
	}
	for k := range s.Warnings {
		s.Warnings[k].ModeNumber = relabel(s.Warnings[k].ModeNumber)
	}
	for k := range s.Radiating {
		s.Radiating[k].ModeNumber = relabel(s.Radiating[k].ModeNumber)
	}
}

// GradientOverlap integrates f_i * f_j * gradient over the cross-section at a step,
// the grid spacing is scaled by the step's ITR
func (s *Set) GradientOverlap(fi, fj []float64, step int) float64 {
	var (
		prod = make([]float64, s.NPoints())
		itr  = s.ITR[step]
	)
	for i := range prod {
		prod[i] = fi[i] * fj[i] * s.Gradient[i]
	}
	return Trapz2D(prod, s.Nx, s.Ny, s.Dx*itr, s.Dy*itr)
}

// Trapz2D integrates row-major samples with the trapezoidal rule, x first. An axis
// with a single sample contributes a strip of width d.
func Trapz2D(f []float64, nx, ny int, dx, dy float64) float64 {
	var (
		rowInt = make([]float64, ny)
	)
	for iy := 0; iy < ny; iy++ {
		rowInt[iy] = trapz(f[iy*nx:(iy+1)*nx], dx)
	}
	return trapz(rowInt, dy)
}

func trapz(f []float64, d float64) float64 {
	if len(f) == 1 {
		return f[0] * d
	}
	x := make([]float64, len(f))
	for i := range x {
		x[i] = float64(i) * d
	}
	return integrate.Trapezoidal(x, f)
}

// CouplingAdiabatic applies the coupling formula to one pair, given the gradient
// overlap I:
//
//	C = |0.5 k0^2 / sqrt(b_i b_j) * 1/|b_i - b_j| * I|,  A = |b_i - b_j| / C
//
// A vanishing C saturates A at +Inf. Degenerate betas with I != 0 give C = +Inf and
// A = 0. NaN is never produced for finite inputs.
func CouplingAdiabatic(betaI, betaJ, k0, I float64) (C, A float64) {
	var (
		dBeta = math.Abs(betaI - betaJ)
	)
	switch {
	case I == 0:
		C = 0
	case dBeta == 0:
		C = math.Inf(1)
	default:
		C = math.Abs(0.5 * k0 * k0 / math.Sqrt(math.Abs(betaI*betaJ)) / dBeta * I)
	}
	if C == 0 {
		A = math.Inf(1)
	} else {
		A = dBeta / C
	}
	return
}

// PopulateCouplingAdiabatic computes both pair quantities at a step for every
// unordered pair, split over go routines. Each pair owns its cells so no locking.
func (s *Set) PopulateCouplingAdiabatic(step, procLimit int) {
	s.checkStep(step)
	var (
		nPairs = s.coupling.NumPairs()
	)
	if nPairs == 0 {
		return
	}
	pm := utils.NewParallelPartition(procLimit, nPairs)
	pm.Run(func(_, kMin, kMax int) {
		for k := kMin; k < kMax; k++ {
			i, j := s.coupling.Pair(k)
			C, A := s.Modes[i].CouplingAdiabatic(s.Modes[j], step)
			s.coupling.Set(i, j, step, C)
			s.adiabatic.Set(i, j, step, A)
		}
	})
}
