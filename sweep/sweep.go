// Package sweep drives the eigen-solve through a sequence of inverse taper ratios,
// seeding each step's shift from the eigenvalue history and keeping mode identity
// continuous between steps.
package sweep

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/notargets/gosupermode/eigensolver"
	"github.com/notargets/gosupermode/extrapolation"
	"github.com/notargets/gosupermode/laplacian"
	"github.com/notargets/gosupermode/sorter"
	"github.com/notargets/gosupermode/supermode"
	"github.com/notargets/gosupermode/utils"
	"gonum.org/v1/gonum/floats"
)

// ConvergenceError is a failed eigen-solve at one step of the sweep. The Set returned
// with it holds every step completed before Step.
type ConvergenceError struct {
	Step  int
	ITR   float64
	Shift float64
	Err   error
}

func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("sweep step %d (ITR = %g, shift = %g): %v", e.Step, e.ITR, e.Shift, e.Err)
}

func (e *ConvergenceError) Unwrap() error { return e.Err }

type Solver struct {
	Config
	Nx, Ny    int
	Mesh      []float64 // Refractive index, row major
	Gradient  []float64
	NMax      float64
	Assembler *laplacian.Assembler
	eigen     eigensolver.Solver
	sorter    *sorter.Sorter
}

type Option func(sv *Solver)

func WithEigensolver(es eigensolver.Solver) Option {
	return func(sv *Solver) { sv.eigen = es }
}

// WithMatcher replaces the assignment algorithm selected by the config
func WithMatcher(m sorter.Matcher) Option {
	return func(sv *Solver) { sv.sorter.WithMatcher(m) }
}

// NewSolver validates the inputs and assembles the Laplacian. A nil gradient is
// derived from the mesh with MeshGradient.
func NewSolver(mesh [][]float64, gradient []float64, t laplacian.Triplets, cfg Config, opts ...Option) (sv *Solver, err error) {
	if err = cfg.Validate(); err != nil {
		return
	}
	var (
		data   []float64
		nx, ny int
	)
	if data, ny, nx, err = utils.Flatten(mesh); err != nil {
		return
	}
	if cfg.NComputedMode > nx*ny {
		err = fmt.Errorf("n_computed_mode = %d exceeds the %d grid points", cfg.NComputedMode, nx*ny)
		return
	}
	if gradient == nil {
		gradient = MeshGradient(data, nx, ny, cfg.Dx, cfg.Dy)
	}
	if len(gradient) != nx*ny {
		err = fmt.Errorf("gradient has %d points, mesh has %d", len(gradient), nx*ny)
		return
	}
	sv = &Solver{
		Config:   cfg,
		Nx:       nx,
		Ny:       ny,
		Mesh:     data,
		Gradient: gradient,
		NMax:     floats.Max(data),
		eigen:    eigensolver.NewShiftInvert(),
		sorter:   sorter.New(cfg.Sorting, cfg.Assignment, cfg.MinSimilarity),
	}
	if sv.Assembler, err = laplacian.NewAssembler(nx, ny, cfg.Boundaries, t); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(sv)
	}
	return
}

func (sv *Solver) K0() float64 { return utils.WaveNumber(sv.Wavelength) }

// Sweep solves every ITR in order. On an eigensolver failure the partially filled Set
// is returned along with a *ConvergenceError.
func (sv *Solver) Sweep(itr []float64) (set *supermode.Set, err error) {
	if len(itr) == 0 {
		return nil, fmt.Errorf("empty ITR sequence")
	}
	for s, v := range itr {
		if !(v > 0) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("ITR[%d] = %g must be positive and finite", s, v)
		}
	}
	if set, err = supermode.NewSet(itr, sv.Nx, sv.Ny, sv.Dx, sv.Dy, sv.Wavelength,
		sv.Gradient, sv.NSortedMode); err != nil {
		return nil, err
	}
	var (
		k0    = sv.K0()
		start = time.Now()
	)
	if sv.Verbose {
		fmt.Printf("ITR sweep over %d steps on a %d x %d grid, k0 = %8.5f\n", len(itr), sv.Nx, sv.Ny, k0)
		fmt.Printf("%s\n", sv.Config.Print())
		fmt.Printf("Using %d go routines for the pair computations\n",
			utils.NewParallelPartition(sv.ParallelDegree, max(1, set.CouplingStore().NumPairs())).ParallelDegree)
		fmt.Printf("    step       ITR         shift")
		for n := 0; n < sv.NSortedMode; n++ {
			fmt.Printf("   n_eff[%d]", n)
		}
		fmt.Printf("\n")
	}
	for step, ITR := range itr {
		shift, err := sv.Shift(set, step)
		if err != nil {
			return set, err
		}
		op, err := sv.Assembler.Operator(sv.Mesh, k0*ITR)
		if err != nil {
			return set, err
		}
		pairs, err := sv.eigen.Solve(eigensolver.Problem{
			Operator:      op,
			Shift:         shift,
			NumPairs:      sv.NComputedMode,
			MaxIterations: sv.MaxIterations,
			Tolerance:     sv.Tolerance,
		})
		if err != nil {
			var ce *eigensolver.ConvergenceError
			if errors.As(err, &ce) {
				return set, &ConvergenceError{Step: step, ITR: ITR, Shift: shift, Err: err}
			}
			return set, fmt.Errorf("sweep step %d: %w", step, err)
		}
		if err = sv.store(set, step, pairs); err != nil {
			return set, err
		}
		set.PopulateCouplingAdiabatic(step, sv.ParallelDegree)
		set.CompletedSteps = step + 1
		if sv.Verbose {
			fmt.Printf("%8d%10.5f%14.6e", step, ITR, shift)
			for _, m := range set.Modes {
				fmt.Printf("%11.7f", m.EffectiveIndex()[step])
			}
			fmt.Printf("\n")
		}
	}
	if sv.Verbose {
		rate := float64(time.Since(start).Microseconds()) / float64(len(itr))
		fmt.Printf("\nRate of execution = %8.2f us/step over %d steps, %d tracking warnings\n",
			rate, len(itr), len(set.Warnings))
		fmt.Printf("%s\n", utils.GetMemUsage())
	}
	return
}

// Shift is the eigensolver target at a step. Step zero uses the configured shift or
// (k0*ITR*n_max)^2, which lies above every guided eigenvalue. Later steps extrapolate
// each tracked beta^2 = λ/ITR^2, which does not scale with the ITR, damp it against
// the previous value, rescale by the step's ITR^2 and take the largest.
func (sv *Solver) Shift(set *supermode.Set, step int) (shift float64, err error) {
	if step == 0 {
		if sv.InitialShift != 0 {
			return sv.InitialShift, nil
		}
		return utils.POW(sv.K0()*set.ITR[0]*sv.NMax, 2), nil
	}
	var (
		hist  = make([]float64, step)
		scale = utils.POW(set.ITR[step], 2)
	)
	shift = math.Inf(-1)
	for _, m := range set.Modes {
		var pred float64
		for s, lambda := range m.EigenValues()[:step] {
			hist[s] = lambda / utils.POW(set.ITR[s], 2)
		}
		if pred, err = extrapolation.Predict(hist, sv.ExtrapolationOrder); err != nil {
			return
		}
		shift = max(shift, scale*extrapolation.Damp(pred, hist[step-1], sv.Alpha))
	}
	return
}

func (sv *Solver) store(set *supermode.Set, step int, pairs []eigensolver.Pair) (err error) {
	var (
		ITR   = set.ITR[step]
		cands = make([]sorter.Candidate, len(pairs))
		perm  []int
	)
	for i, p := range pairs {
		if utils.IsNan(p.Value) || utils.IsNan(p.Vector) {
			return fmt.Errorf("sweep step %d: eigenpair %d is NaN", step, i)
		}
		f := make([]float64, len(p.Vector))
		copy(f, p.Vector)
		if nrm := floats.Norm(f, 2); nrm > 0 {
			floats.Scale(1/nrm, f)
		}
		cands[i] = sorter.Candidate{
			Index:      i,
			EigenValue: p.Value,
			Beta:       math.Sqrt(math.Abs(p.Value)) / ITR,
			Field:      f,
		}
	}
	if step == 0 {
		if perm, err = sorter.Canonical(cands, sv.NSortedMode); err != nil {
			return
		}
	} else {
		refs := make([]sorter.Reference, sv.NSortedMode)
		for n, m := range set.Modes {
			refs[n] = sorter.Reference{
				ModeNumber: n,
				Beta:       m.Beta(step - 1),
				Field:      m.Field(step - 1),
			}
		}
		var res sorter.Result
		if res, err = sv.sorter.Sort(step, cands, refs); err != nil {
			return
		}
		perm = res.Permutation
		set.Warnings = append(set.Warnings, res.Warnings...)
		if sv.Verbose {
			for _, w := range res.Warnings {
				fmt.Printf("Warning: %s\n", w.Error())
			}
		}
	}
	for n, j := range perm {
		f := cands[j].Field
		if step > 0 && floats.Dot(f, set.Modes[n].Field(step-1)) < 0 {
			floats.Scale(-1, f)
		}
		set.Write(n, step, cands[j].EigenValue, f)
	}
	if sv.Verbose {
		for _, w := range set.Radiating {
			if w.Step == step {
				fmt.Printf("Warning: %s\n", w.Error())
			}
		}
	}
	return
}
