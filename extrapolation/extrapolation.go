// Package extrapolation predicts the next value of a scalar sequence from its backward
// differences. The sweep uses it to seed the eigensolver shift from the eigenvalue history.
package extrapolation

import (
	"fmt"
)

const (
	MinOrder = 1
	MaxOrder = 4
)

// Newton backward difference weights, row p-1 holds the coefficients applied to
// y[k-1], y[k-2], ... for a prediction of order p
var weights = [MaxOrder][MaxOrder]float64{
	{1, 0, 0, 0},
	{2, -1, 0, 0},
	{2.5, -2, 0.5, 0},
	{8. / 3., -2.5, 1, -1. / 6.},
}

// EffectiveOrder is the order actually used when only samples values are available
func EffectiveOrder(samples, order int) int {
	if samples < order {
		return samples
	}
	return order
}

// Predict returns the extrapolated value y[k] from y[0..k-1]. Orders:
//
//	1: y[k-1]
//	2: + (y[k-1] - y[k-2])
//	3: + (y[k-1] - 2y[k-2] + y[k-3]) / 2
//	4: + (y[k-1] - 3y[k-2] + 3y[k-3] - y[k-4]) / 6
//
// With fewer than order samples the highest supported order is used silently.
func Predict(y []float64, order int) (p float64, err error) {
	if order < MinOrder || order > MaxOrder {
		err = fmt.Errorf("extrapolation order must be in [%d, %d], have %d", MinOrder, MaxOrder, order)
		return
	}
	if len(y) == 0 {
		err = fmt.Errorf("unable to extrapolate from an empty history")
		return
	}
	var (
		k  = len(y)
		po = EffectiveOrder(k, order)
	)
	for i := 0; i < po; i++ {
		p += weights[po-1][i] * y[k-1-i]
	}
	return
}

// PredictDifferences computes the same prediction by explicitly accumulating the
// backward differences, it is kept as the reference form of Predict
func PredictDifferences(y []float64, order int) (p float64, err error) {
	if _, err = Predict(y, order); err != nil {
		return
	}
	var (
		k     = len(y)
		po    = EffectiveOrder(k, order)
		diffs = make([]float64, po)
		fact  = 1.
	)
	copy(diffs, y[k-po:])
	p = y[k-1]
	for n := 1; n < po; n++ {
		// n-th backward difference, stored at the tail of diffs
		for i := po - 1; i >= n; i-- {
			diffs[i] = diffs[i] - diffs[i-1]
		}
		fact *= float64(n)
		p += diffs[po-1] / fact
	}
	return
}

// Damp blends a raw prediction with the previous value, alpha = 1 keeps the prediction
func Damp(predicted, previous, alpha float64) float64 {
	return alpha*predicted + (1-alpha)*previous
}
