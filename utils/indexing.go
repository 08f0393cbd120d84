package utils

import (
	"fmt"
	"math"
)

type Index []int

// NewFromFloat converts index values received as floating point numbers, any value
// that is not an exact integer is rejected
func NewFromFloat(IF []float64) (r Index, err error) {
	r = make(Index, len(IF))
	for i, val := range IF {
		if math.IsNaN(val) || math.IsInf(val, 0) || val != math.Trunc(val) {
			err = fmt.Errorf("index value %v at position %d is not an integer", val, i)
			return nil, err
		}
		r[i] = int(val)
	}
	return
}

// GridIndex maps (ix, iy) to the flattened row-major index iy*nx + ix
func GridIndex(ix, iy, nx int) int {
	return ix + iy*nx
}

// GridIJ is the inverse of GridIndex
func GridIJ(ind, nx int) (ix, iy int) {
	iy = ind / nx
	ix = ind - iy*nx
	return
}
