package resampler

import (
	"log"

	"github.com/fieldgrid/resample/internal/dataset"
	"github.com/fieldgrid/resample/internal/geom"
	"github.com/fieldgrid/resample/internal/measure"
)

// scatter fills the finest (or coarsest applicable) depth maps with input
// samples. Points land in the element containing them at the deepest
// resolution; cells spread over every element their volume intersects, at
// the coarsest depth where they span more than one element per axis.
func (r *Runner) scatter(ds *dataset.DataSet) {
	switch ds.Association {
	case dataset.AssociationPoints:
		r.scatterPoints(ds)
	case dataset.AssociationCells:
		r.scatterCells(ds)
	default:
		log.Printf("resampler: unknown field association %q, supported are points and cells",
			ds.Association)
	}
}

func (r *Runner) scatterPoints(ds *dataset.DataSet) {
	b := r.bounds
	limit := [3]int64{
		int64(r.cfg.CellDims[0]) * r.maxResolution,
		int64(r.cfg.CellDims[1]) * r.maxResolution,
		int64(r.cfg.CellDims[2]) * r.maxResolution,
	}
	maxDepth := r.cfg.MaxDepth

	for n, p := range ds.Points {
		fi := (p.X - b[0]) / (b[1] - b[0]) * float64(limit[0]) * (1 - dblEpsilon)
		fj := (p.Y - b[2]) / (b[3] - b[2]) * float64(limit[1]) * (1 - dblEpsilon)
		fk := (p.Z - b[4]) / (b[5] - b[4]) * float64(limit[2]) * (1 - dblEpsilon)
		if fi < 0 || fj < 0 || fk < 0 ||
			fi >= float64(limit[0]) || fj >= float64(limit[1]) || fk >= float64(limit[2]) {
			r.skippedPoints++
			continue
		}
		i, j, k := int64(fi), int64(fj), int64(fk)

		treeIdx := r.out.TreeIndex(
			int(i/r.maxResolution), int(j/r.maxResolution), int(k/r.maxResolution))
		idx := multiResIndex(
			i%r.maxResolution, j%r.maxResolution, k%r.maxResolution, r.maxResolution)

		grid := r.grids[treeIdx][maxDepth]
		e := grid[idx]
		if e == nil {
			e = r.newScatterElement()
			grid[idx] = e
		}
		e.numberOfPointsInSubtree++
		e.accumulatedWeight++
		for _, acc := range e.accumulators {
			acc.Add(ds.Tuple(n), 1)
		}
	}
	if r.skippedPoints > 0 {
		log.Printf("resampler: skipped %d points outside the grid domain", r.skippedPoints)
	}
}

func (r *Runner) scatterCells(ds *dataset.DataSet) {
	b := r.bounds
	volumeUnit := 1.0

	for n, cell := range ds.Cells {
		if _, ok := cell.(*geom.Voxel); !ok && cell.NumFaces() < 4 {
			log.Printf("resampler: cell %d: type %T not supported", n, cell)
			r.skippedCells++
			continue
		}
		cb := cell.Bounds()

		// Find the coarsest depth at which the cell spans more than one
		// element on every axis, capped at the maximum depth.
		depth := -1
		var imin, imax, jmin, jmax, kmin, kmax int64
		for {
			depth++
			res := float64(r.resolutions[depth])
			imin = int64((cb[0] - b[0]) * res * float64(r.cfg.CellDims[0]) / (b[1] - b[0]))
			imax = int64((cb[1] - b[0]) * res * float64(r.cfg.CellDims[0]) / (b[1] - b[0]) * (1 - dblEpsilon))
			jmin = int64((cb[2] - b[2]) * res * float64(r.cfg.CellDims[1]) / (b[3] - b[2]))
			jmax = int64((cb[3] - b[2]) * res * float64(r.cfg.CellDims[1]) / (b[3] - b[2]) * (1 - dblEpsilon))
			kmin = int64((cb[4] - b[4]) * res * float64(r.cfg.CellDims[2]) / (b[5] - b[4]))
			kmax = int64((cb[5] - b[4]) * res * float64(r.cfg.CellDims[2]) / (b[5] - b[4]) * (1 - dblEpsilon))
			if !(imin == imax || jmin == jmax || kmin == kmax) || depth == r.cfg.MaxDepth {
				break
			}
		}

		res := r.resolutions[depth]
		if clampOut(&imin, &imax, int64(r.cfg.CellDims[0])*res) ||
			clampOut(&jmin, &jmax, int64(r.cfg.CellDims[1])*res) ||
			clampOut(&kmin, &kmax, int64(r.cfg.CellDims[2])*res) {
			r.skippedCells++
			continue
		}

		for igrid := imin / res; igrid <= imax/res; igrid++ {
			for jgrid := jmin / res; jgrid <= jmax/res; jgrid++ {
				for kgrid := kmin / res; kgrid <= kmax/res; kgrid++ {
					grid := r.grids[r.out.TreeIndex(int(igrid), int(jgrid), int(kgrid))][depth]

					iiMin, iiMax := localRange(igrid, imin, imax, res)
					jjMin, jjMax := localRange(jgrid, jmin, jmax, res)
					kkMin, kkMax := localRange(kgrid, kmin, kmax, res)
					for ii := iiMin; ii <= iiMax; ii++ {
						for jj := jjMin; jj <= jjMax; jj++ {
							for kk := kkMin; kk <= kkMax; kk++ {
								box := r.elementBounds(
									igrid*res+ii, jgrid*res+jj, kgrid*res+kk, depth)

								var volume float64
								var nonZero bool
								if voxel, ok := cell.(*geom.Voxel); ok {
									volume, nonZero = geom.IntersectVoxel(box, voxel, volumeUnit)
								} else {
									volume, nonZero = geom.IntersectCell(box, cell)
								}
								if !nonZero {
									continue
								}

								idx := multiResIndex(ii, jj, kk, res)
								e := grid[idx]
								if e == nil {
									e = r.newScatterElement()
									grid[idx] = e
								}
								e.numberOfPointsInSubtree++
								e.accumulatedWeight += volume
								for _, acc := range e.accumulators {
									acc.Add(ds.Tuple(n), volume)
								}
							}
						}
					}
				}
			}
		}
	}
	if r.skippedCells > 0 {
		log.Printf("resampler: skipped %d cells (unsupported or outside the grid domain)",
			r.skippedCells)
	}
}

// newScatterElement returns a fresh leaf element with cloned accumulator
// templates. Subdivision eligibility is refined during upward propagation.
func (r *Runner) newScatterElement() *gridElement {
	accs := make([]measure.Accumulator, len(r.templates))
	for l, tpl := range r.templates {
		accs[l] = tpl.Clone()
	}
	return &gridElement{
		numberOfLeavesInSubtree:            1,
		unmaskedChildrenHaveNoMaskedLeaves: true,
		canSubdivide:                       true,
		accumulators:                       accs,
	}
}

// elementBounds returns the axis-aligned bounds of one multi-resolution
// element given its domain-wide coordinates at the given depth.
func (r *Runner) elementBounds(ires, jres, kres int64, depth int) geom.Box {
	b := r.bounds
	res := float64(r.resolutions[depth])
	return geom.Box{
		b[0] + float64(ires)/(float64(r.cfg.CellDims[0])*res)*(b[1]-b[0]),
		b[0] + float64(ires+1)/(float64(r.cfg.CellDims[0])*res)*(b[1]-b[0]),
		b[2] + float64(jres)/(float64(r.cfg.CellDims[1])*res)*(b[3]-b[2]),
		b[2] + float64(jres+1)/(float64(r.cfg.CellDims[1])*res)*(b[3]-b[2]),
		b[4] + float64(kres)/(float64(r.cfg.CellDims[2])*res)*(b[5]-b[4]),
		b[4] + float64(kres+1)/(float64(r.cfg.CellDims[2])*res)*(b[5]-b[4]),
	}
}

// clampOut clips [lo, hi] to [0, limit) and reports whether the whole
// interval falls outside the domain.
func clampOut(lo, hi *int64, limit int64) bool {
	if *hi < 0 || *lo >= limit {
		return true
	}
	if *lo < 0 {
		*lo = 0
	}
	if *hi >= limit {
		*hi = limit - 1
	}
	return false
}

// localRange returns the within-tree index range for coarse cell g given
// the domain-wide range [lo, hi] at resolution res.
func localRange(g, lo, hi, res int64) (int64, int64) {
	lmin, lmax := int64(0), res-1
	if g == lo/res {
		lmin = lo % res
	}
	if g == hi/res {
		lmax = hi % res
	}
	return lmin, lmax
}
