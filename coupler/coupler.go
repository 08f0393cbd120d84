// Package coupler propagates modal amplitudes along a taper whose cross-section
// follows a solved ITR sweep, using coupled mode theory:
//
//	da/dz = i T(z) a,  T = diag(beta) + i f(z) K
//
// where K holds the coupling (K_ij = -C_ij above the diagonal, +C_ij below) and
// f = d ln(ITR)/dz. T is Hermitian so the total power is conserved.
package coupler

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/notargets/gosupermode/supermode"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
	"gonum.org/v1/gonum/mat"
)

type Coupler struct {
	Set    *supermode.Set
	Length float64
	Z      []float64 // Position of each ITR step along the taper
	Factor []float64 // d ln(ITR)/dz at each step
	betas  []interp.PiecewiseLinear
	pairs  []interp.PiecewiseLinear // f*C for each pair, in PairStore order
}

// CouplingFactor is d ln(ITR)/dz for ITR samples evenly spaced over length, central
// differences inside and one sided at the ends
func CouplingFactor(itr []float64, length float64) (factor []float64, err error) {
	var (
		n = len(itr)
	)
	if n < 2 {
		err = fmt.Errorf("need at least two ITR samples, have %d", n)
		return
	}
	if !(length > 0) {
		err = fmt.Errorf("taper length must be positive, have %g", length)
		return
	}
	var (
		dz   = length / float64(n-1)
		lnIT = make([]float64, n)
	)
	for i, v := range itr {
		if !(v > 0) {
			return nil, fmt.Errorf("ITR[%d] = %g must be positive", i, v)
		}
		lnIT[i] = math.Log(v)
	}
	factor = make([]float64, n)
	factor[0] = (lnIT[1] - lnIT[0]) / dz
	factor[n-1] = (lnIT[n-1] - lnIT[n-2]) / dz
	for i := 1; i < n-1; i++ {
		factor[i] = (lnIT[i+1] - lnIT[i-1]) / (2 * dz)
	}
	return
}

// New fits the taper model to a completed sweep. Couplings must be finite, a
// degenerate pair with non zero overlap has no defined propagation.
func New(set *supermode.Set, length float64) (c *Coupler, err error) {
	if set.CompletedSteps != set.NSteps() {
		err = fmt.Errorf("sweep completed %d of %d steps", set.CompletedSteps, set.NSteps())
		return
	}
	c = &Coupler{
		Set:    set,
		Length: length,
		Z:      make([]float64, set.NSteps()),
		betas:  make([]interp.PiecewiseLinear, set.NModes()),
	}
	if c.Factor, err = CouplingFactor(set.ITR, length); err != nil {
		return nil, err
	}
	for i := range c.Z {
		c.Z[i] = length * float64(i) / float64(len(c.Z)-1)
	}
	for n, m := range set.Modes {
		if err = c.betas[n].Fit(c.Z, m.Betas()); err != nil {
			return nil, err
		}
	}
	ps := set.CouplingStore()
	c.pairs = make([]interp.PiecewiseLinear, ps.NumPairs())
	for k := range c.pairs {
		var (
			i, j = ps.Pair(k)
			fc   = make([]float64, set.NSteps())
		)
		for s, C := range ps.Row(i, j) {
			if math.IsInf(C, 0) || math.IsNaN(C) {
				return nil, fmt.Errorf("coupling between modes %d and %d is not finite at step %d", i, j, s)
			}
			fc[s] = c.Factor[s] * C
		}
		if err = c.pairs[k].Fit(c.Z, fc); err != nil {
			return nil, err
		}
	}
	return
}

// TransmissionMatrix is T at the position of a sweep step
func (c *Coupler) TransmissionMatrix(step int) (T *mat.CDense) {
	var (
		nm = c.Set.NModes()
		ps = c.Set.CouplingStore()
	)
	T = mat.NewCDense(nm, nm, nil)
	for n, m := range c.Set.Modes {
		T.Set(n, n, complex(m.Beta(step), 0))
	}
	for k := 0; k < ps.NumPairs(); k++ {
		i, j := ps.Pair(k)
		g := c.Factor[step] * ps.At(i, j, step)
		T.Set(i, j, complex(0, -g))
		T.Set(j, i, complex(0, g))
	}
	return
}

// derivative evaluates i T(z) a into da
func (c *Coupler) derivative(z float64, a, da []complex128) {
	for n := range a {
		da[n] = complex(0, c.betas[n].Predict(z)) * a[n]
	}
	ps := c.Set.CouplingStore()
	for k := range c.pairs {
		var (
			i, j = ps.Pair(k)
			g    = complex(c.pairs[k].Predict(z), 0)
		)
		da[i] += g * a[j]
		da[j] -= g * a[i]
	}
}

// Propagate integrates the amplitudes from z = 0 to Length with classic fixed step
// RK4, no step exceeds maxStep. Zero keeps beta*h at or below 0.02 and takes at least
// 1000 steps. The first row of amps is the initial condition.
func (c *Coupler) Propagate(initial []complex128, maxStep float64) (z []float64, amps [][]complex128, err error) {
	var (
		nm = c.Set.NModes()
	)
	if len(initial) != nm {
		err = fmt.Errorf("initial amplitudes have %d entries, set has %d modes", len(initial), nm)
		return
	}
	if maxStep <= 0 {
		maxStep = c.Length / 1000
		for _, m := range c.Set.Modes {
			if bmax := floats.Max(m.Betas()); bmax > 0 {
				maxStep = math.Min(maxStep, 0.02/bmax)
			}
		}
	}
	var (
		nSteps = int(math.Ceil(c.Length/maxStep - 1.e-12))
		h      = c.Length / float64(nSteps)
		a      = make([]complex128, nm)
		tmp    = make([]complex128, nm)
		k      [4][]complex128
	)
	for i := range k {
		k[i] = make([]complex128, nm)
	}
	copy(a, initial)
	z = make([]float64, 0, nSteps+1)
	amps = make([][]complex128, 0, nSteps+1)
	record := func(zz float64) {
		z = append(z, zz)
		amps = append(amps, append([]complex128{}, a...))
	}
	record(0)
	axpy := func(dst, x []complex128, alpha complex128, y []complex128) {
		for i := range dst {
			dst[i] = x[i] + alpha*y[i]
		}
	}
	for step := 0; step < nSteps; step++ {
		var (
			z0 = float64(step) * h
			hc = complex(h, 0)
		)
		c.derivative(z0, a, k[0])
		axpy(tmp, a, hc/2, k[0])
		c.derivative(z0+h/2, tmp, k[1])
		axpy(tmp, a, hc/2, k[1])
		c.derivative(z0+h/2, tmp, k[2])
		axpy(tmp, a, hc, k[2])
		c.derivative(z0+h, tmp, k[3])
		for i := range a {
			a[i] += hc / 6 * (k[0][i] + 2*k[1][i] + 2*k[2][i] + k[3][i])
		}
		record(float64(step+1) * h)
	}
	return
}

// MixField is the cross-section carried by the propagated amplitudes, sampled at every
// underSampling-th position of z. Each sample sums the mode fields of the step at or
// before its position, weighted by |a|.
func (c *Coupler) MixField(z []float64, amps [][]complex128, underSampling int) (zs []float64, fields [][]float64, err error) {
	if len(z) != len(amps) {
		err = fmt.Errorf("%d positions for %d amplitude rows", len(z), len(amps))
		return
	}
	if underSampling < 1 {
		err = fmt.Errorf("under sampling must be positive, have %d", underSampling)
		return
	}
	var (
		set  = c.Set
		last = set.NSteps() - 1
	)
	for k := 0; k < len(z); k += underSampling {
		if len(amps[k]) != set.NModes() {
			return nil, nil, fmt.Errorf("amplitude row %d has %d entries, set has %d modes",
				k, len(amps[k]), set.NModes())
		}
		step := min(max(int(z[k]/c.Length*float64(last)+1.e-9), 0), last)
		f := make([]float64, set.NPoints())
		for n, m := range set.Modes {
			floats.AddScaled(f, cmplx.Abs(amps[k][n]), m.Field(step))
		}
		zs = append(zs, z[k])
		fields = append(fields, f)
	}
	return
}

// Power is |a|^2 per mode
func Power(a []complex128) (p []float64) {
	p = make([]float64, len(a))
	for i, v := range a {
		p[i] = math.Pow(cmplx.Abs(v), 2)
	}
	return
}
