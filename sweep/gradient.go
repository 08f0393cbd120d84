package sweep

import (
	"github.com/notargets/gosupermode/utils"
)

// MeshGradient is r * d(n^2)/dr about the grid centre, the weight of the coupling
// overlap for a structure scaled uniformly about its axis. Derivatives are central in
// the interior and one sided at the edges; an axis with one sample contributes zero.
func MeshGradient(mesh []float64, nx, ny int, dx, dy float64) (grad []float64) {
	var (
		n2     = make([]float64, len(mesh))
		xc, yc = 0.5 * float64(nx-1) * dx, 0.5 * float64(ny-1) * dy
	)
	for i, n := range mesh {
		n2[i] = n * n
	}
	grad = make([]float64, len(mesh))
	for ind := range grad {
		var (
			ix, iy = utils.GridIJ(ind, nx)
			x, y   = float64(ix)*dx - xc, float64(iy)*dy - yc
			ddx    = derivative(n2, ix, nx, 1, ind, dx)
			ddy    = derivative(n2, iy, ny, nx, ind, dy)
		)
		// r times the radial component of the gradient
		grad[ind] = x*ddx + y*ddy
	}
	return
}

func derivative(f []float64, i, n, stride, ind int, d float64) float64 {
	switch {
	case n == 1:
		return 0
	case i == 0:
		return (f[ind+stride] - f[ind]) / d
	case i == n-1:
		return (f[ind] - f[ind-stride]) / d
	default:
		return (f[ind+stride] - f[ind-stride]) / (2 * d)
	}
}
