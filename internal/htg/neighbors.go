package htg

// faceOffsets are the Von Neumann neighborhood directions, one per face.
var faceOffsets = [6][3]int64{
	{-1, 0, 0}, {1, 0, 0},
	{0, -1, 0}, {0, 1, 0},
	{0, 0, -1}, {0, 0, 1},
}

// FaceNeighbors returns the global indices of the six face-adjacent
// neighbors of the given node, honoring tree boundaries within the forest.
// A neighbor that falls outside the domain or inside a tree that was never
// generated is reported as InvalidIndex. When the neighbor region is
// refined more coarsely than the node, the deepest existing ancestor is
// returned, matching super-cursor semantics.
func (g *Grid) FaceNeighbors(treeIdx int, vertex int32) [6]int64 {
	var out [6]int64
	t := g.trees[treeIdx]
	level := t.Level(vertex)
	coords := t.Coords(vertex)
	ti, tj, tk := g.TreeCoords(treeIdx)

	res := int64(1)
	for l := 0; l < level; l++ {
		res *= int64(g.BranchFactor)
	}
	global := [3]int64{
		int64(ti)*res + int64(coords[0]),
		int64(tj)*res + int64(coords[1]),
		int64(tk)*res + int64(coords[2]),
	}

	for f, off := range faceOffsets {
		n := [3]int64{global[0] + off[0], global[1] + off[1], global[2] + off[2]}
		out[f] = g.nodeAt(n, level, res)
	}
	return out
}

// nodeAt finds the node covering the given level-resolution coordinates,
// descending from the owning tree's root until the target level or a leaf.
func (g *Grid) nodeAt(global [3]int64, level int, res int64) int64 {
	var treeCoord, local [3]int64
	for axis := 0; axis < 3; axis++ {
		if global[axis] < 0 || global[axis] >= int64(g.CellDims[axis])*res {
			return InvalidIndex
		}
		treeCoord[axis] = global[axis] / res
		local[axis] = global[axis] % res
	}
	t := g.trees[g.TreeIndex(int(treeCoord[0]), int(treeCoord[1]), int(treeCoord[2]))]
	if t == nil {
		return InvalidIndex
	}

	bf := int64(g.BranchFactor)
	vertex := int32(0)
	scale := res // coordinate span of the current node's level
	for l := 0; l < level; l++ {
		if t.IsLeaf(vertex) {
			break
		}
		scale /= bf
		ci := local[0] / scale % bf
		cj := local[1] / scale % bf
		ck := local[2] / scale % bf
		vertex = t.Child(vertex, int(ci+cj*bf+ck*bf*bf))
	}
	return t.GlobalIndexFromLocal(vertex)
}

// IsMasked reports the mask state of a global node index; out-of-range
// indices count as masked.
func (g *Grid) IsMasked(globalIdx int64) bool {
	if globalIdx < 0 || globalIdx >= int64(len(g.Mask)) {
		return true
	}
	return g.Mask[globalIdx]
}
