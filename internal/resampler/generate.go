package resampler

import (
	"math"

	"github.com/fieldgrid/resample/internal/htg"
	"github.com/fieldgrid/resample/internal/measure"
)

// generateTrees builds the output forest top-down, one tree per coarse
// cell in index order, subdividing wherever the propagated statistics
// allow and the measured value selects refinement.
func (r *Runner) generateTrees() error {
	treeIdx := 0
	for i := 0; i < r.cfg.CellDims[0]; i++ {
		for j := 0; j < r.cfg.CellDims[1]; j++ {
			for k := 0; k < r.cfg.CellDims[2]; k++ {
				cursor := r.out.NewCursor(r.out.TreeIndex(i, j, k))
				if err := r.subdivideLeaves(cursor, r.grids[treeIdx], 0, 0, 0); err != nil {
					return err
				}
				treeIdx++
			}
		}
	}
	return nil
}

// subdivideLeaves writes the attributes of the current node from its
// multi-resolution element and recurses into children where the
// refinement criterion holds. (i, j, k) are the node's element coordinates
// at its level.
func (r *Runner) subdivideLeaves(cursor *htg.Cursor, mrg multiResGrid, i, j, k int64) error {
	level := cursor.Level()
	idx := cursor.GlobalIndex()

	e := mrg[level][multiResIndex(i, j, k, r.resolutions[level])]

	value, valueDisplay := math.NaN(), math.NaN()
	if e != nil {
		if len(e.accumulators) > 0 {
			var err error
			value, valueDisplay, err = r.measureElement(e)
			if err != nil {
				value, valueDisplay = math.NaN(), math.NaN()
			}
		}
		// Elements without accumulators are gap placeholders: unmasked,
		// value left undefined for the extrapolation pass.
	}

	var leaves, points int64
	if e != nil {
		leaves, points = e.numberOfLeavesInSubtree, e.numberOfPointsInSubtree
	}
	r.out.SetNodeAttributes(idx, value, valueDisplay, leaves, points, e == nil)

	if cursor.IsLeaf() {
		// A subtree with a single sample bucket is already as fine as the
		// data allows.
		if !(level < r.cfg.MaxDepth && e != nil && !math.IsNaN(value) &&
			e.numberOfLeavesInSubtree > 1 && e.canSubdivide && r.valueSelectsRefinement(value)) {
			return nil
		}
		cursor.SubdivideLeaf()
	}

	bf := int64(r.cfg.BranchFactor)
	var ii, jj, kk int64
	for child := 0; child < cursor.NumChildren(); child++ {
		cursor.ToChild(child)
		if err := r.subdivideLeaves(cursor, mrg, i*bf+ii, j*bf+jj, k*bf+kk); err != nil {
			return err
		}
		cursor.ToParent()

		ii++
		if ii == bf {
			ii = 0
			jj++
			if jj == bf {
				jj = 0
				kk++
			}
		}
	}
	return nil
}

// measureElement runs the configured measurements over an element's merged
// accumulators. With no primary measurement the value is zero, a defined
// sentinel, so a display-only configuration can still refine.
func (r *Runner) measureElement(e *gridElement) (value, valueDisplay float64, err error) {
	value, valueDisplay = 0, 0
	if m := r.cfg.Measurement; m != nil {
		value, err = m.Measure(e.accumulators[:r.primaryCount],
			e.numberOfPointsInSubtree, e.accumulatedWeight)
		if err != nil {
			return 0, 0, err
		}
	}
	if m := r.cfg.DisplayMeasurement; m != nil {
		accs := make([]measure.Accumulator, len(r.displayMap))
		for l, src := range r.displayMap {
			accs[l] = e.accumulators[src]
		}
		valueDisplay, err = m.Measure(accs, e.numberOfPointsInSubtree, e.accumulatedWeight)
		if err != nil {
			return 0, 0, err
		}
	}
	return value, valueDisplay, nil
}

// valueSelectsRefinement applies the configured value interval: inside the
// open (Min, Max) interval when InsideRange, outside it otherwise. Without
// a primary measurement every defined value qualifies.
func (r *Runner) valueSelectsRefinement(value float64) bool {
	if r.cfg.Measurement == nil {
		return true
	}
	inside := value > r.cfg.Min && value < r.cfg.Max
	if r.cfg.InsideRange {
		return inside
	}
	return !inside
}
