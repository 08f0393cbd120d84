package utils

import (
	"fmt"
)

// Flatten converts a (ny, nx) array into the row-major vector used by the operator,
// every row must have the same length
func Flatten(A [][]float64) (data []float64, ny, nx int, err error) {
	ny = len(A)
	if ny == 0 {
		err = fmt.Errorf("empty array")
		return
	}
	nx = len(A[0])
	if nx == 0 {
		err = fmt.Errorf("empty first row")
		return
	}
	data = make([]float64, 0, nx*ny)
	for j, row := range A {
		if len(row) != nx {
			err = fmt.Errorf("ragged array: row %d has length %d, expected %d", j, len(row), nx)
			return nil, 0, 0, err
		}
		data = append(data, row...)
	}
	return
}

// Unflatten is the inverse of Flatten, the result does not alias data
func Unflatten(data []float64, ny, nx int) (A [][]float64) {
	if len(data) != nx*ny {
		panic(fmt.Errorf("mismatch in Unflatten: nx*ny = %d, len(data) = %d", nx*ny, len(data)))
	}
	A = make([][]float64, ny)
	for j := range A {
		A[j] = make([]float64, nx)
		copy(A[j], data[j*nx:(j+1)*nx])
	}
	return
}
