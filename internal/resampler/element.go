package resampler

import "github.com/fieldgrid/resample/internal/measure"

// gridElement is the per-node statistics bucket of the multi-resolution
// grid. Elements exist only where data landed (or where gap marking planted
// a placeholder); everything else is implicitly masked.
type gridElement struct {
	numberOfLeavesInSubtree int64
	numberOfPointsInSubtree int64

	// numberOfNonMaskedChildren counts the children present in the next
	// finer depth map; it is only maintained during upward propagation.
	numberOfNonMaskedChildren int

	// unmaskedChildrenHaveNoMaskedLeaves reports that every subtree below
	// a present child is fully dense, which lets gap marking stop early.
	unmaskedChildrenHaveNoMaskedLeaves bool

	canSubdivide bool

	accumulatedWeight float64

	// accumulators is nil on gap placeholders; such nodes surface as
	// unmasked but with an undefined value.
	accumulators []measure.Accumulator
}

// depthMap indexes elements by their local multi-resolution index within
// one coarse cell at one depth.
type depthMap map[int64]*gridElement

// multiResGrid is the per-coarse-cell stack of depth maps, index 0 the
// coarsest. It is scratch state, released once the output trees exist.
type multiResGrid []depthMap

func newMultiResGrid(maxDepth int) multiResGrid {
	g := make(multiResGrid, maxDepth+1)
	for d := range g {
		g[d] = make(depthMap)
	}
	return g
}

// multiResIndex flattens per-depth local coordinates, k fastest. res is the
// per-axis resolution at that depth.
func multiResIndex(i, j, k, res int64) int64 {
	return k + j*res + i*res*res
}

// multiResCoords is the inverse of multiResIndex.
func multiResCoords(idx, res int64) (i, j, k int64) {
	k = idx % res
	j = (idx / res) % res
	i = idx / (res * res)
	return
}
