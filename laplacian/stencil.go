package laplacian

import (
	"github.com/notargets/gosupermode/utils"
)

// FivePoint returns the second order five point Laplacian coefficient list for an nx
// by ny grid with spacings dx, dy. Neighbours outside the grid are dropped, which is
// the Zero boundary treatment; other edge treatments are applied by the Assembler.
func FivePoint(nx, ny int, dx, dy float64) (t Triplets) {
	var (
		cx = 1. / utils.POW(dx, 2)
		cy = 1. / utils.POW(dy, 2)
	)
	add := func(r, c int, v float64) {
		t.Rows = append(t.Rows, r)
		t.Cols = append(t.Cols, c)
		t.Values = append(t.Values, v)
	}
	for iy := 0; iy < ny; iy++ {
		for ix := 0; ix < nx; ix++ {
			ind := utils.GridIndex(ix, iy, nx)
			var diag float64
			if nx > 1 {
				diag -= 2 * cx
			}
			if ny > 1 {
				diag -= 2 * cy
			}
			add(ind, ind, diag)
			if ix > 0 {
				add(ind, ind-1, cx)
			}
			if ix < nx-1 {
				add(ind, ind+1, cx)
			}
			if iy > 0 {
				add(ind, ind-nx, cy)
			}
			if iy < ny-1 {
				add(ind, ind+nx, cy)
			}
		}
	}
	return
}
