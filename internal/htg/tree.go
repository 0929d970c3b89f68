package htg

// InvalidIndex marks a missing neighbor or child.
const InvalidIndex int64 = -1

type node struct {
	parent     int32
	firstChild int32 // -1 while the node is a leaf
}

// Tree is one hyper tree of the forest: an arena of nodes rooted at vertex
// 0. Each node records its refinement level and its integer coordinates
// within the tree at that level, so neighbor searches can re-descend from
// the root.
type Tree struct {
	branchFactor     int
	numberOfChildren int
	globalIndexStart int64

	nodes  []node
	levels []uint8
	coords [][3]int32
}

func newTree(branchFactor int) *Tree {
	t := &Tree{
		branchFactor:     branchFactor,
		numberOfChildren: branchFactor * branchFactor * branchFactor,
	}
	t.nodes = append(t.nodes, node{parent: -1, firstChild: -1})
	t.levels = append(t.levels, 0)
	t.coords = append(t.coords, [3]int32{})
	return t
}

// NumVertices returns the number of nodes in the tree.
func (t *Tree) NumVertices() int { return len(t.nodes) }

// GlobalIndexStart returns the offset of this tree's vertices in the
// grid-wide attribute arrays.
func (t *Tree) GlobalIndexStart() int64 { return t.globalIndexStart }

// GlobalIndexFromLocal maps a vertex id to its grid-wide node index.
func (t *Tree) GlobalIndexFromLocal(vertex int32) int64 {
	return t.globalIndexStart + int64(vertex)
}

// IsLeaf reports whether the vertex has no children.
func (t *Tree) IsLeaf(vertex int32) bool { return t.nodes[vertex].firstChild < 0 }

// Level returns the refinement level of the vertex.
func (t *Tree) Level(vertex int32) int { return int(t.levels[vertex]) }

// Coords returns the vertex coordinates within the tree at its level.
func (t *Tree) Coords(vertex int32) [3]int32 { return t.coords[vertex] }

// Child returns the id of child c of the vertex. Child offsets are
// row-major: c = di + dj*branchFactor + dk*branchFactor^2.
func (t *Tree) Child(vertex int32, c int) int32 {
	return t.nodes[vertex].firstChild + int32(c)
}

// Parent returns the parent vertex id, or -1 for the root.
func (t *Tree) Parent(vertex int32) int32 { return t.nodes[vertex].parent }

// subdivide attaches a full set of children to a leaf vertex.
func (t *Tree) subdivide(vertex int32) {
	if !t.IsLeaf(vertex) {
		return
	}
	first := int32(len(t.nodes))
	t.nodes[vertex].firstChild = first
	level := t.levels[vertex] + 1
	base := t.coords[vertex]
	bf := int32(t.branchFactor)
	for c := 0; c < t.numberOfChildren; c++ {
		di := int32(c % t.branchFactor)
		dj := int32(c/t.branchFactor) % bf
		dk := int32(c / (t.branchFactor * t.branchFactor))
		t.nodes = append(t.nodes, node{parent: vertex, firstChild: -1})
		t.levels = append(t.levels, level)
		t.coords = append(t.coords, [3]int32{
			base[0]*bf + di,
			base[1]*bf + dj,
			base[2]*bf + dk,
		})
	}
}
