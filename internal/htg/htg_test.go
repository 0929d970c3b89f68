package htg

import (
	"math"
	"testing"

	"github.com/fieldgrid/resample/internal/geom"
)

func unitBounds() geom.Box { return geom.Box{0, 1, 0, 1, 0, 1} }

func TestNewGrid_Coordinates(t *testing.T) {
	g := NewGrid([3]int{2, 2, 2}, 2, geom.Box{0, 2, 0, 4, 0, 8}, false)
	if len(g.XCoords) != 3 || len(g.YCoords) != 3 || len(g.ZCoords) != 3 {
		t.Fatalf("expected 3 coordinates per axis, got %d %d %d",
			len(g.XCoords), len(g.YCoords), len(g.ZCoords))
	}
	if g.XCoords[1] != 1 || g.YCoords[1] != 2 || g.ZCoords[1] != 4 {
		t.Fatalf("unexpected midpoints: %v %v %v", g.XCoords[1], g.YCoords[1], g.ZCoords[1])
	}
}

func TestCursor_SubdivideAndWalk(t *testing.T) {
	g := NewGrid([3]int{1, 1, 1}, 2, unitBounds(), false)
	c := g.NewCursor(0)
	if !c.IsLeaf() || c.Level() != 0 {
		t.Fatalf("fresh root should be a level-0 leaf")
	}
	c.SubdivideLeaf()
	if c.IsLeaf() {
		t.Fatalf("root should not be a leaf after subdivision")
	}
	if got := c.Tree().NumVertices(); got != 9 {
		t.Fatalf("expected 9 vertices after one subdivision, got %d", got)
	}
	c.ToChild(3) // offsets (1,1,0)
	if c.Level() != 1 {
		t.Fatalf("child should be at level 1, got %d", c.Level())
	}
	if got := c.Tree().Coords(c.VertexID()); got != [3]int32{1, 1, 0} {
		t.Fatalf("expected child coords (1,1,0), got %v", got)
	}
	c.ToParent()
	if c.Level() != 0 {
		t.Fatalf("expected to be back at root")
	}
}

func TestGlobalIndexOffsets(t *testing.T) {
	g := NewGrid([3]int{2, 1, 1}, 2, unitBounds(), false)
	c0 := g.NewCursor(0)
	c0.SubdivideLeaf()
	c1 := g.NewCursor(1)
	if c1.GlobalIndex() != 9 {
		t.Fatalf("second tree should start after the first one's 9 nodes, got %d", c1.GlobalIndex())
	}
}

func TestSetNodeAttributes_GrowsArrays(t *testing.T) {
	g := NewGrid([3]int{1, 1, 1}, 2, unitBounds(), true)
	g.SetNodeAttributes(4, 1.5, 2.5, 3, 7, false)
	if len(g.Measured) != 5 {
		t.Fatalf("expected arrays grown to 5 entries, got %d", len(g.Measured))
	}
	if g.Measured[4] != 1.5 || g.Display[4] != 2.5 || g.LeafCount[4] != 3 ||
		g.PointCount[4] != 7 || g.Mask[4] {
		t.Fatalf("attributes not stored: %v %v %v %v %v",
			g.Measured[4], g.Display[4], g.LeafCount[4], g.PointCount[4], g.Mask[4])
	}
	// Unwritten slots default to masked NaN.
	if !math.IsNaN(g.Measured[0]) || !g.Mask[0] {
		t.Fatalf("unwritten nodes should be masked NaN")
	}
}

func TestFaceNeighbors_WithinTree(t *testing.T) {
	g := NewGrid([3]int{1, 1, 1}, 2, unitBounds(), false)
	c := g.NewCursor(0)
	c.SubdivideLeaf()
	// Child 0 sits at (0,0,0); +x, +y, +z neighbors exist, the rest fall
	// outside the single-tree domain.
	nb := g.FaceNeighbors(0, c.Tree().Child(0, 0))
	if nb[0] != InvalidIndex || nb[2] != InvalidIndex || nb[4] != InvalidIndex {
		t.Fatalf("expected domain-boundary neighbors invalid, got %v", nb)
	}
	if nb[1] == InvalidIndex || nb[3] == InvalidIndex || nb[5] == InvalidIndex {
		t.Fatalf("expected in-tree neighbors valid, got %v", nb)
	}
	// +x neighbor of child (0,0,0) is child (1,0,0), vertex 1+offset.
	if nb[1] != c.Tree().GlobalIndexFromLocal(c.Tree().Child(0, 1)) {
		t.Fatalf("unexpected +x neighbor: %v", nb)
	}
}

func TestFaceNeighbors_AcrossTrees(t *testing.T) {
	g := NewGrid([3]int{2, 1, 1}, 2, unitBounds(), false)
	c0 := g.NewCursor(0)
	c0.SubdivideLeaf()
	c1 := g.NewCursor(1)
	c1.SubdivideLeaf()
	// Child (1,0,0) of tree 0 borders child (0,0,0) of tree 1 on +x.
	nb := g.FaceNeighbors(0, c0.Tree().Child(0, 1))
	want := c1.Tree().GlobalIndexFromLocal(c1.Tree().Child(0, 0))
	if nb[1] != want {
		t.Fatalf("expected cross-tree +x neighbor %d, got %d", want, nb[1])
	}
}

func TestFaceNeighbors_CoarserNeighbor(t *testing.T) {
	g := NewGrid([3]int{2, 1, 1}, 2, unitBounds(), false)
	c0 := g.NewCursor(0)
	c0.SubdivideLeaf()
	c1 := g.NewCursor(1) // left as a single root leaf
	nb := g.FaceNeighbors(0, c0.Tree().Child(0, 1))
	if nb[1] != c1.GlobalIndex() {
		t.Fatalf("expected coarser neighbor to resolve to tree 1 root, got %d", nb[1])
	}
}

func TestDigest_DeterministicAndSensitive(t *testing.T) {
	build := func(v float64) *Grid {
		g := NewGrid([3]int{1, 1, 1}, 2, unitBounds(), false)
		c := g.NewCursor(0)
		g.SetNodeAttributes(c.GlobalIndex(), v, 0, 1, 1, false)
		return g
	}
	a, b, c := build(1.0), build(1.0), build(2.0)
	if a.Digest() != b.Digest() {
		t.Fatalf("identical grids should share a digest")
	}
	if a.Digest() == c.Digest() {
		t.Fatalf("different grids should not share a digest")
	}
}
