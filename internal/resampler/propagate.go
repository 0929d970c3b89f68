package resampler

import (
	"fmt"
	"slices"

	"github.com/fieldgrid/resample/internal/measure"
)

// propagate folds every depth map into the one above it, bottom-up, so
// each element ends up describing its whole subtree: sample counts, leaf
// counts, accumulated weight, merged accumulators, and whether the
// subdivision thresholds hold for all of its children.
func (r *Runner) propagate() error {
	bf := int64(r.cfg.BranchFactor)
	for _, mrg := range r.grids {
		for depth := r.cfg.MaxDepth; depth > 0; depth-- {
			coarse := mrg[depth-1]
			res := r.resolutions[depth]
			// Fold children in index order so floating-point accumulation
			// is reproducible run to run.
			indices := make([]int64, 0, len(mrg[depth]))
			for idx := range mrg[depth] {
				indices = append(indices, idx)
			}
			slices.Sort(indices)
			for _, idx := range indices {
				child := mrg[depth][idx]
				i, j, k := multiResCoords(idx, res)
				pidx := multiResIndex(i/bf, j/bf, k/bf, r.resolutions[depth-1])

				parent := coarse[pidx]
				if parent == nil {
					parent = &gridElement{
						numberOfLeavesInSubtree:   child.numberOfLeavesInSubtree,
						numberOfPointsInSubtree:   child.numberOfPointsInSubtree,
						numberOfNonMaskedChildren: 1,
						accumulatedWeight:         child.accumulatedWeight,
						unmaskedChildrenHaveNoMaskedLeaves: child.unmaskedChildrenHaveNoMaskedLeaves &&
							child.numberOfNonMaskedChildren == r.numberOfChildren,
						canSubdivide: r.childMeetsSubdivisionThresholds(child),
						accumulators: cloneAccumulators(child.accumulators),
					}
					coarse[pidx] = parent
					continue
				}

				parent.numberOfLeavesInSubtree += child.numberOfLeavesInSubtree
				parent.numberOfPointsInSubtree += child.numberOfPointsInSubtree
				parent.accumulatedWeight += child.accumulatedWeight
				parent.unmaskedChildrenHaveNoMaskedLeaves = parent.unmaskedChildrenHaveNoMaskedLeaves &&
					child.unmaskedChildrenHaveNoMaskedLeaves &&
					child.numberOfNonMaskedChildren == r.numberOfChildren
				parent.numberOfNonMaskedChildren++
				parent.canSubdivide = parent.canSubdivide &&
					r.childMeetsSubdivisionThresholds(child)
				for l := range parent.accumulators {
					if err := parent.accumulators[l].Merge(child.accumulators[l]); err != nil {
						return fmt.Errorf("resampler: merging accumulators at depth %d: %w",
							depth-1, err)
					}
				}
			}
		}
	}
	return nil
}

// childMeetsSubdivisionThresholds reports whether one child subtree holds
// enough data for its parent to be split. A parent may only be subdivided
// when every child present agrees, so the result is folded with a
// conjunction and is independent of the order children are visited in.
func (r *Runner) childMeetsSubdivisionThresholds(child *gridElement) bool {
	if child.numberOfPointsInSubtree < r.cfg.MinPointsPerSubtree {
		return false
	}
	if m := r.cfg.Measurement; m != nil &&
		!m.CanMeasure(child.numberOfPointsInSubtree, child.accumulatedWeight) {
		return false
	}
	if m := r.cfg.DisplayMeasurement; m != nil &&
		!m.CanMeasure(child.numberOfPointsInSubtree, child.accumulatedWeight) {
		return false
	}
	return true
}

func cloneAccumulators(accs []measure.Accumulator) []measure.Accumulator {
	out := make([]measure.Accumulator, len(accs))
	for l, acc := range accs {
		out[l] = acc.Clone()
	}
	return out
}
