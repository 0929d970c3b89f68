package resampler

import (
	"github.com/fieldgrid/resample/internal/dataset"
	"github.com/fieldgrid/resample/internal/geom"
)

// fillGaps walks the multi-resolution grids under every input cell's
// bounding box and resolves regions with geometry but no samples. In
// marking mode (extrapolation of point data) it plants empty placeholder
// elements there, so the nodes surface unmasked with an undefined value;
// otherwise it vetoes subdivision of any element whose subtree contains
// such a region, which keeps masked leaves from appearing inside covered
// space.
func (r *Runner) fillGaps(ds *dataset.DataSet) {
	b := r.bounds
	markEmpty := r.cfg.Extrapolate && ds.Association == dataset.AssociationPoints

	for _, cell := range ds.Cells {
		cb := cell.Bounds()
		imin := int64((cb[0] - b[0]) * float64(r.cfg.CellDims[0]) / (b[1] - b[0]))
		imax := int64((cb[1] - b[0]) * float64(r.cfg.CellDims[0]) / (b[1] - b[0]) * (1 - dblEpsilon))
		jmin := int64((cb[2] - b[2]) * float64(r.cfg.CellDims[1]) / (b[3] - b[2]))
		jmax := int64((cb[3] - b[2]) * float64(r.cfg.CellDims[1]) / (b[3] - b[2]) * (1 - dblEpsilon))
		kmin := int64((cb[4] - b[4]) * float64(r.cfg.CellDims[2]) / (b[5] - b[4]))
		kmax := int64((cb[5] - b[4]) * float64(r.cfg.CellDims[2]) / (b[5] - b[4]) * (1 - dblEpsilon))
		if clampOut(&imin, &imax, int64(r.cfg.CellDims[0])) ||
			clampOut(&jmin, &jmax, int64(r.cfg.CellDims[1])) ||
			clampOut(&kmin, &kmax, int64(r.cfg.CellDims[2])) {
			continue
		}

		for i := imin; i <= imax; i++ {
			for j := jmin; j <= jmax; j++ {
				for k := kmin; k <= kmax; k++ {
					r.recursivelyFillGaps(cell, cb, i, j, k, 0, 0, 0, 0, markEmpty)
				}
			}
		}
	}
}

// recursivelyFillGaps visits the element (ii, jj, kk) at depth within the
// coarse cell (i, j, k), reporting whether its region may be subdivided
// over: true unless the region is empty and the cell has no geometry
// there.
func (r *Runner) recursivelyFillGaps(cell geom.Cell, cellBounds geom.Box,
	i, j, k, ii, jj, kk int64, depth int, markEmpty bool) bool {

	res := r.resolutions[depth]
	idx := multiResIndex(ii, jj, kk, res)
	grid := r.grids[r.out.TreeIndex(int(i), int(j), int(k))][depth]

	e := grid[idx]
	if e == nil {
		// Empty region: probe the element center against the cell.
		x := r.elementBounds(i*res+ii, j*res+jj, k*res+kk, depth).Center()
		inside, _ := cell.EvaluatePosition(x)
		if markEmpty && inside {
			grid[idx] = &gridElement{}
		}
		return inside
	}

	// Deep enough, not splittable anyway, or the subtree is fully dense.
	if depth == r.cfg.MaxDepth || !e.canSubdivide ||
		(e.numberOfNonMaskedChildren == r.numberOfChildren &&
			e.unmaskedChildrenHaveNoMaskedLeaves) {
		return true
	}

	bf := int64(r.cfg.BranchFactor)
	childRes := r.resolutions[depth+1]
	for iii := int64(0); iii < bf; iii++ {
		for jjj := int64(0); jjj < bf; jjj++ {
			for kkk := int64(0); kkk < bf; kkk++ {
				childBox := r.elementBounds(
					i*childRes+ii*bf+iii, j*childRes+jj*bf+jjj, k*childRes+kk*bf+kkk, depth+1)
				if !childBox.Overlaps(cellBounds) {
					continue
				}
				if markEmpty {
					r.recursivelyFillGaps(cell, cellBounds, i, j, k,
						ii*bf+iii, jj*bf+jjj, kk*bf+kkk, depth+1, markEmpty)
				} else {
					e.canSubdivide = e.canSubdivide && r.recursivelyFillGaps(
						cell, cellBounds, i, j, k,
						ii*bf+iii, jj*bf+jjj, kk*bf+kkk, depth+1, markEmpty)
				}
			}
		}
	}
	return true
}
