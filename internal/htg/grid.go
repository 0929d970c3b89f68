package htg

import (
	"math"

	"github.com/fieldgrid/resample/internal/geom"
)

// Grid is the output hyper tree grid. Attribute arrays are addressed by
// global node index, assigned per tree in generation order.
type Grid struct {
	CellDims     [3]int
	BranchFactor int

	// Per-axis point coordinates spanning the input bounds,
	// CellDims[axis]+1 entries each.
	XCoords, YCoords, ZCoords []float64

	trees []*Tree

	// Per-node output attributes. Measured and Display hold NaN where the
	// value is undefined; Mask marks nodes with no backing data.
	Measured   []float64
	Display    []float64 // nil when no display measurement is configured
	LeafCount  []int64
	PointCount []int64
	Mask       []bool
}

// NewGrid builds an empty grid covering bounds with the given coarse cell
// dims and branch factor. Trees are created on demand by NewCursor.
func NewGrid(cellDims [3]int, branchFactor int, bounds geom.Box, withDisplay bool) *Grid {
	g := &Grid{
		CellDims:     cellDims,
		BranchFactor: branchFactor,
		trees:        make([]*Tree, cellDims[0]*cellDims[1]*cellDims[2]),
	}
	g.XCoords = axisCoords(bounds[0], bounds[1], cellDims[0]+1)
	g.YCoords = axisCoords(bounds[2], bounds[3], cellDims[1]+1)
	g.ZCoords = axisCoords(bounds[4], bounds[5], cellDims[2]+1)
	if withDisplay {
		g.Display = []float64{}
	}
	return g
}

func axisCoords(lo, hi float64, n int) []float64 {
	coords := make([]float64, n)
	step := 0.0
	if n > 1 {
		step = (hi - lo) / float64(n-1)
	}
	for i := range coords {
		coords[i] = lo + step*float64(i)
	}
	return coords
}

// TreeIndex flattens coarse-cell coordinates, k fastest.
func (g *Grid) TreeIndex(i, j, k int) int {
	return k + j*g.CellDims[2] + i*g.CellDims[2]*g.CellDims[1]
}

// TreeCoords is the inverse of TreeIndex.
func (g *Grid) TreeCoords(idx int) (i, j, k int) {
	k = idx % g.CellDims[2]
	j = (idx / g.CellDims[2]) % g.CellDims[1]
	i = idx / (g.CellDims[2] * g.CellDims[1])
	return
}

// NumTrees returns the number of coarse cells.
func (g *Grid) NumTrees() int { return len(g.trees) }

// Tree returns tree idx, or nil if it was never created.
func (g *Grid) Tree(idx int) *Tree { return g.trees[idx] }

// NumNodes returns the total number of nodes across all trees.
func (g *Grid) NumNodes() int64 {
	var n int64
	for _, t := range g.trees {
		if t != nil {
			n += int64(t.NumVertices())
		}
	}
	return n
}

// SetNodeAttributes writes the output attributes of one node, growing the
// arrays as needed. NaN in measured or display marks an undefined value.
func (g *Grid) SetNodeAttributes(globalIdx int64, measured, display float64, leaves, points int64, mask bool) {
	g.ensure(globalIdx)
	g.Measured[globalIdx] = measured
	if g.Display != nil {
		g.Display[globalIdx] = display
	}
	g.LeafCount[globalIdx] = leaves
	g.PointCount[globalIdx] = points
	g.Mask[globalIdx] = mask
}

func (g *Grid) ensure(idx int64) {
	for int64(len(g.Measured)) <= idx {
		g.Measured = append(g.Measured, math.NaN())
		if g.Display != nil {
			g.Display = append(g.Display, math.NaN())
		}
		g.LeafCount = append(g.LeafCount, 0)
		g.PointCount = append(g.PointCount, 0)
		g.Mask = append(g.Mask, true)
	}
}
