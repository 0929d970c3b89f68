package htg

// Cursor walks one tree depth-first. NewCursor creates the tree (with its
// root) on first use and assigns its global index offset from the nodes
// generated so far, so trees must be generated in index order.
type Cursor struct {
	grid *Grid
	tree *Tree
	path []int32
}

// NewCursor returns a cursor at the root of tree treeIdx, creating the tree
// if needed.
func (g *Grid) NewCursor(treeIdx int) *Cursor {
	t := g.trees[treeIdx]
	if t == nil {
		t = newTree(g.BranchFactor)
		var offset int64
		for _, other := range g.trees {
			if other != nil {
				end := other.globalIndexStart + int64(other.NumVertices())
				if end > offset {
					offset = end
				}
			}
		}
		t.globalIndexStart = offset
		g.trees[treeIdx] = t
	}
	return &Cursor{grid: g, tree: t, path: []int32{0}}
}

// Tree returns the tree under the cursor.
func (c *Cursor) Tree() *Tree { return c.tree }

// VertexID returns the current vertex id within the tree.
func (c *Cursor) VertexID() int32 { return c.path[len(c.path)-1] }

// Level returns the current refinement level.
func (c *Cursor) Level() int { return c.tree.Level(c.VertexID()) }

// GlobalIndex returns the current node's grid-wide index.
func (c *Cursor) GlobalIndex() int64 { return c.tree.GlobalIndexFromLocal(c.VertexID()) }

// IsLeaf reports whether the current node has no children.
func (c *Cursor) IsLeaf() bool { return c.tree.IsLeaf(c.VertexID()) }

// NumChildren returns the branching arity of the tree.
func (c *Cursor) NumChildren() int { return c.tree.numberOfChildren }

// SubdivideLeaf attaches a full set of children to the current leaf.
func (c *Cursor) SubdivideLeaf() { c.tree.subdivide(c.VertexID()) }

// ToChild descends into child i of the current node.
func (c *Cursor) ToChild(i int) { c.path = append(c.path, c.tree.Child(c.VertexID(), i)) }

// ToParent pops back to the parent node.
func (c *Cursor) ToParent() { c.path = c.path[:len(c.path)-1] }
