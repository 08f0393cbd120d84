package sweep

import (
	"fmt"
	"math"

	"github.com/notargets/gosupermode/extrapolation"
	"github.com/notargets/gosupermode/sorter"
	"github.com/notargets/gosupermode/utils"
	"go.uber.org/multierr"
)

type Config struct {
	NComputedMode      int // Eigenpairs requested from the eigensolver per step
	NSortedMode        int // Modes tracked through the sweep, <= NComputedMode
	MaxIterations      int
	Tolerance          float64
	Wavelength         float64
	Boundaries         utils.Boundaries
	Sorting            sorter.Criterion
	Assignment         sorter.Assignment
	ExtrapolationOrder int
	Alpha              float64 // Weight of the extrapolated eigenvalue against the previous one
	Dx, Dy             float64 // Grid spacing at ITR = 1
	InitialShift       float64 // Zero derives the step zero shift from the largest index
	MinSimilarity      float64 // Matches scoring below this are reported as tracking warnings
	ParallelDegree     int     // Zero uses every CPU
	Verbose            bool
}

func DefaultConfig() Config {
	return Config{
		NComputedMode:      4,
		NSortedMode:        2,
		MaxIterations:      1000,
		Tolerance:          utils.DefaultTolerance,
		Wavelength:         1.55,
		Boundaries:         utils.NewBoundaries("zero", "zero", "zero", "zero"),
		Sorting:            sorter.FieldOverlap,
		Assignment:         sorter.Greedy,
		ExtrapolationOrder: 2,
		Alpha:              1,
		Dx:                 1,
		Dy:                 1,
		MinSimilarity:      0.5,
	}
}

// Validate reports every problem with the configuration at once
func (c Config) Validate() (err error) {
	add := func(format string, args ...any) {
		err = multierr.Append(err, fmt.Errorf(format, args...))
	}
	if c.NComputedMode < 1 {
		add("n_computed_mode must be positive, have %d", c.NComputedMode)
	}
	if c.NSortedMode < 1 || c.NSortedMode > c.NComputedMode {
		add("n_sorted_mode must be in [1, n_computed_mode = %d], have %d", c.NComputedMode, c.NSortedMode)
	}
	if c.MaxIterations < 1 {
		add("max_iterations must be positive, have %d", c.MaxIterations)
	}
	if !(c.Tolerance > 0) {
		add("tolerance must be positive, have %g", c.Tolerance)
	}
	if !(c.Wavelength > 0) || math.IsInf(c.Wavelength, 0) {
		add("wavelength must be positive and finite, have %g", c.Wavelength)
	}
	if c.ExtrapolationOrder < extrapolation.MinOrder || c.ExtrapolationOrder > extrapolation.MaxOrder {
		add("extrapolation_order must be in [%d, %d], have %d",
			extrapolation.MinOrder, extrapolation.MaxOrder, c.ExtrapolationOrder)
	}
	if !(c.Alpha >= 0 && c.Alpha <= 1) {
		add("alpha must be in [0, 1], have %g", c.Alpha)
	}
	if !(c.Dx > 0) || !(c.Dy > 0) {
		add("grid spacing must be positive, have dx = %g, dy = %g", c.Dx, c.Dy)
	}
	if c.ParallelDegree < 0 {
		add("parallel degree must not be negative, have %d", c.ParallelDegree)
	}
	if math.IsNaN(c.InitialShift) || math.IsInf(c.InitialShift, 0) {
		add("initial shift must be finite, have %g", c.InitialShift)
	}
	return
}

func (c Config) Print() string {
	return fmt.Sprintf("Modes computed/sorted = %d/%d, Wavelength = %8.5f, Sorting = %s, Assignment = %s\n"+
		"Extrapolation order = %d, Alpha = %5.3f, Tolerance = %8.3e, Max iterations = %d\n"+
		"Boundaries: %s",
		c.NComputedMode, c.NSortedMode, c.Wavelength, c.Sorting, c.Assignment,
		c.ExtrapolationOrder, c.Alpha, c.Tolerance, c.MaxIterations, c.Boundaries)
}
