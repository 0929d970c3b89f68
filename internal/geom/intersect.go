package geom

import (
	"log"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// nudgeTol is the bound shift applied when a cell vertex sits exactly on a
// box face. Shifting the box outward avoids zero-measure overlaps that the
// divergence accumulation cannot classify. This is a heuristic, tested
// against degenerate geometries rather than proven.
const nudgeTol = 1e-2

// duplicateTol suppresses double counting of face/plane intersection points
// that differ only by rounding.
const duplicateTol = 1e-6

// IntersectVoxel computes the intersection volume between an axis-aligned
// box and a voxel, divided by volumeUnit. It reports false with zero volume
// when any axis overlap falls below the numerical floor, so callers never
// divide by a degenerate length.
func IntersectVoxel(box Box, voxel *Voxel, volumeUnit float64) (float64, bool) {
	vb := voxel.Box
	x := math.Min(box[1], vb[1]) - math.Max(box[0], vb[0])
	y := math.Min(box[3], vb[3]) - math.Max(box[2], vb[2])
	z := math.Min(box[5], vb[5]) - math.Max(box[4], vb[4])
	floor := math.Cbrt(dblMin)
	normalization := 1.0
	if volumeUnit < 1.0 {
		normalization = volumeUnit
	}
	floor /= normalization
	if x < floor || y < floor || z < floor {
		return 0, false
	}
	return x * y * z / volumeUnit, true
}

// IntersectCell computes the intersection volume between an axis-aligned box
// and a general convex cell using a divergence-theorem accumulation over box
// vertices inside the cell, cell edges clipped by the box, and cell faces
// sliced by the box planes. The result is not guaranteed exact for
// pathological geometry; when the accumulated volume exceeds the box volume
// the routine logs a warning and reports zero.
func IntersectCell(box Box, cell Cell) (float64, bool) {
	boxBounds := nudgeBoxBounds(box, cell)

	volume := 0.0
	boxVolume := 0.0

	// Box vertices inside the cell. The ±6 coefficient pattern over the
	// corners comes from the tetrahedral decomposition of the box.
	for id := 0; id < 8; id++ {
		corner := boxBounds.Corner(id)
		inside, weights := cell.EvaluatePosition(corner)
		if !inside {
			continue
		}
		slightlyOutside := false
		for _, w := range weights {
			if w < dblMin {
				slightlyOutside = true
				break
			}
		}
		if slightlyOutside {
			continue
		}
		sign := -6.0
		if (id&1 != 0) != (id&2 != 0) {
			sign = 6.0
		}
		if id&4 != 0 {
			sign = -sign
		}
		boxVolume += sign * corner.X * corner.Y * corner.Z
	}

	// One duplicate-suppression set per (axis, box edge) pair.
	var duplicates [12][]float64

	for faceID := 0; faceID < cell.NumFaces(); faceID++ {
		ids := cell.FacePointIDs(faceID)
		if len(ids) <= 2 {
			continue
		}
		facePts := make([]r3.Vec, len(ids))
		for i, id := range ids {
			facePts[i] = cell.Point(id)
		}
		normal := PolygonNormal(facePts)

		// Cell edges clipped against the box half-spaces.
		for idx1 := 0; idx1 < len(facePts); idx1++ {
			p1 := facePts[idx1]
			p2 := facePts[(idx1+1)%len(facePts)]
			if nearlyEqual(p1.X, p2.X) && nearlyEqual(p1.Y, p2.Y) && nearlyEqual(p1.Z, p2.Z) {
				continue
			}
			tangent := r3.Unit(r3.Sub(p2, p1))
			edgeNormal := r3.Cross(normal, tangent)
			p1Inside := strictlyInside(p1, boxBounds)
			p2Inside := strictlyInside(p2, boxBounds)
			if p1Inside {
				boxVolume += r3.Dot(p1, tangent) * r3.Dot(p1, edgeNormal) * r3.Dot(p1, normal)
			}
			if p2Inside {
				boxVolume -= r3.Dot(p2, tangent) * r3.Dot(p2, edgeNormal) * r3.Dot(p2, normal)
			}
			if p1Inside && p2Inside {
				continue
			}
			t1, t2, x1, x2, plane1, plane2, ok := boxBounds.IntersectWithInfiniteLine(p1, p2)
			if !ok || nearlyEqual(t1, t2) {
				continue
			}
			if t1 >= 0 && t1+dblEpsilon <= 1 {
				axis := plane1 / 2
				edgeBoxBound := unitOrZero(r3.Cross(axisVec(axis), normal))
				edgeNormalBoxBound := r3.Cross(normal, edgeBoxBound)
				boxVolume += r3.Dot(x1, tangent) * r3.Dot(x1, edgeNormal) * r3.Dot(x1, normal)
				boxVolume -= r3.Dot(x1, edgeBoxBound) * r3.Dot(x1, edgeNormalBoxBound) * r3.Dot(x1, normal)
				edgeNormalOnBox := r3.Cross(axisVec(axis), edgeBoxBound)
				volume += r3.Dot(x1, edgeBoxBound) * vecAxis(x1, axis) * r3.Dot(x1, edgeNormalOnBox)
			}
			if t2 >= dblMin && t2 <= 1 {
				axis := plane2 / 2
				edgeBoxBound := unitOrZero(r3.Cross(axisVec(axis), normal))
				edgeNormalBoxBound := r3.Cross(normal, edgeBoxBound)
				boxVolume -= r3.Dot(x2, tangent) * r3.Dot(x2, edgeNormal) * r3.Dot(x2, normal)
				boxVolume += r3.Dot(x2, edgeBoxBound) * r3.Dot(x2, edgeNormalBoxBound) * r3.Dot(x2, normal)
				edgeNormalOnBox := r3.Cross(axisVec(axis), edgeBoxBound)
				volume -= r3.Dot(x2, edgeBoxBound) * vecAxis(x2, axis) * r3.Dot(x2, edgeNormalOnBox)
			}
		}

		volume += facePlaneContributions(boxBounds, facePts, normal, &duplicates)
	}

	if cell.InsideOut() {
		volume = -volume
	}
	volume += boxVolume
	volume /= 6.0

	if math.Abs(volume) > boxBounds.Volume() {
		log.Printf("geom: box/cell intersection volume exceeds the box volume, treating as empty")
		return 0, false
	}
	return volume, volume >= dblEpsilon
}

// nudgeBoxBounds returns a copy of box with any bound shifted outward by
// nudgeTol while a cell vertex lies on the corresponding face. Repeats
// until no vertex sits on a face.
func nudgeBoxBounds(box Box, cell Cell) Box {
	b := box
	for changed := true; changed; {
		changed = false
		for i := 0; i < cell.NumPoints(); i++ {
			p := cell.Point(i)
			if math.Abs(p.X-b[0]) < nudgeTol && withinFace(p.Y, p.Z, b[2], b[3], b[4], b[5]) {
				b[0] -= nudgeTol
				changed = true
			}
			if math.Abs(p.X-b[1]) < nudgeTol && withinFace(p.Y, p.Z, b[2], b[3], b[4], b[5]) {
				b[1] += nudgeTol
				changed = true
			}
			if math.Abs(p.Y-b[2]) < nudgeTol && withinFace(p.X, p.Z, b[0], b[1], b[4], b[5]) {
				b[2] -= nudgeTol
				changed = true
			}
			if math.Abs(p.Y-b[3]) < nudgeTol && withinFace(p.X, p.Z, b[0], b[1], b[4], b[5]) {
				b[3] += nudgeTol
				changed = true
			}
			if math.Abs(p.Z-b[4]) < nudgeTol && withinFace(p.X, p.Y, b[0], b[1], b[2], b[3]) {
				b[4] -= nudgeTol
				changed = true
			}
			if math.Abs(p.Z-b[5]) < nudgeTol && withinFace(p.X, p.Y, b[0], b[1], b[2], b[3]) {
				b[5] += nudgeTol
				changed = true
			}
		}
	}
	return b
}

func withinFace(a, b, aLo, aHi, bLo, bHi float64) bool {
	return a <= aHi+nudgeTol && a >= aLo-nudgeTol && b <= bHi+nudgeTol && b >= bLo-nudgeTol
}

// strictlyInside reports whether p is inside the box without touching any
// face, up to nearlyEqual.
func strictlyInside(p r3.Vec, b Box) bool {
	for axis := 0; axis < 3; axis++ {
		v := vecAxis(p, axis)
		if v <= b[2*axis] || nearlyEqual(v, b[2*axis]) ||
			v >= b[2*axis+1] || nearlyEqual(v, b[2*axis+1]) {
			return false
		}
	}
	return true
}

// facePlaneContributions slices the face plane by the box's twelve edges.
// For each axis, the four box edges running along that axis pierce the face
// plane at candidate points; a candidate inside both the box and the face
// polygon contributes signed terms to the volume. Candidates repeated
// within duplicateTol on the same box edge are counted once.
func facePlaneContributions(b Box, facePts []r3.Vec, normal r3.Vec, duplicates *[12][]float64) float64 {
	volume := 0.0
	d := -r3.Dot(normal, facePts[0])

	for dim := 0; dim < 3; dim++ {
		a1 := (dim + 1) % 3
		a2 := (dim + 2) % 3
		nd := vecAxis(normal, dim)
		edgeBoxBound1 := unitOrZero(r3.Cross(normal, axisVec(a1)))
		edgeBoxBound2 := unitOrZero(r3.Cross(normal, axisVec(a2)))
		edgeNormalBoxBound1 := r3.Cross(edgeBoxBound1, normal)
		edgeNormalBoxBound2 := r3.Cross(edgeBoxBound2, normal)

		solve := func(p *r3.Vec) {
			if math.Abs(nd) >= dblEpsilon {
				setVecAxis(p, dim, -1/nd*(d+vecAxis(*p, a1)*vecAxis(normal, a1)+
					vecAxis(*p, a2)*vecAxis(normal, a2)))
			} else {
				setVecAxis(p, dim, math.Inf(1))
			}
		}
		accepted := func(p r3.Vec, dupSet int) bool {
			v := vecAxis(p, dim)
			if isDuplicate(duplicates[dupSet], v) {
				return false
			}
			inRange := (v >= b[2*dim] && v <= b[2*dim+1]) ||
				(nearlyEqual(v, b[2*dim]) && nearlyEqual(v, b[2*dim+1]))
			return inRange && PointInPolygon(p, facePts, normal)
		}

		var p r3.Vec

		// Edge at (a1 lower, a2 lower).
		setVecAxis(&p, a1, b[2*a1])
		setVecAxis(&p, a2, b[2*a2])
		solve(&p)
		if accepted(p, dim*4) {
			volume += signIf(nd > 0) * r3.Dot(p, edgeBoxBound1) * r3.Dot(p, edgeNormalBoxBound1) * r3.Dot(p, normal)
			onBox1 := r3.Cross(edgeBoxBound1, axisVec(a1))
			volume -= signIf(vecAxis(edgeBoxBound1, a2) > 0) * r3.Dot(p, edgeBoxBound1) * vecAxis(p, a1) * r3.Dot(p, onBox1)
			volume += signIf(nd < 0) * r3.Dot(p, edgeBoxBound2) * r3.Dot(p, edgeNormalBoxBound2) * r3.Dot(p, normal)
			onBox2 := r3.Cross(edgeBoxBound2, axisVec(a2))
			volume -= signIf(vecAxis(edgeBoxBound2, a1) > 0) * r3.Dot(p, edgeBoxBound2) * vecAxis(p, a2) * r3.Dot(p, onBox2)
			volume += 2 * signIf(nd > 0) * p.X * p.Y * p.Z
		}
		duplicates[dim*4] = append(duplicates[dim*4], vecAxis(p, dim))

		// Edge at (a1 upper, a2 lower).
		setVecAxis(&p, a1, b[2*a1+1])
		solve(&p)
		if accepted(p, dim*4+1) {
			volume += signIf(nd < 0) * r3.Dot(p, edgeBoxBound1) * r3.Dot(p, edgeNormalBoxBound1) * r3.Dot(p, normal)
			onBox1 := r3.Cross(edgeBoxBound1, axisVec(a1))
			volume += signIf(vecAxis(edgeBoxBound1, a2) > 0) * r3.Dot(p, edgeBoxBound1) * vecAxis(p, a1) * r3.Dot(p, onBox1)
			volume += signIf(nd > 0) * r3.Dot(p, edgeBoxBound2) * r3.Dot(p, edgeNormalBoxBound2) * r3.Dot(p, normal)
			onBox2 := r3.Cross(edgeBoxBound2, axisVec(a2))
			volume -= signIf(vecAxis(edgeBoxBound2, a1) < 0) * r3.Dot(p, edgeBoxBound2) * vecAxis(p, a2) * r3.Dot(p, onBox2)
			volume -= 2 * signIf(nd > 0) * p.X * p.Y * p.Z
		}
		duplicates[dim*4+1] = append(duplicates[dim*4+1], vecAxis(p, dim))

		// Edge at (a1 upper, a2 upper).
		setVecAxis(&p, a2, b[2*a2+1])
		solve(&p)
		if accepted(p, dim*4+2) {
			volume += signIf(nd > 0) * r3.Dot(p, edgeBoxBound1) * r3.Dot(p, edgeNormalBoxBound1) * r3.Dot(p, normal)
			onBox1 := r3.Cross(edgeBoxBound1, axisVec(a1))
			volume += signIf(vecAxis(edgeBoxBound1, a2) < 0) * r3.Dot(p, edgeBoxBound1) * vecAxis(p, a1) * r3.Dot(p, onBox1)
			volume += signIf(nd < 0) * r3.Dot(p, edgeBoxBound2) * r3.Dot(p, edgeNormalBoxBound2) * r3.Dot(p, normal)
			onBox2 := r3.Cross(edgeBoxBound2, axisVec(a2))
			volume += signIf(vecAxis(edgeBoxBound2, a1) < 0) * r3.Dot(p, edgeBoxBound2) * vecAxis(p, a2) * r3.Dot(p, onBox2)
			volume += 2 * signIf(nd > 0) * p.X * p.Y * p.Z
		}
		duplicates[dim*4+2] = append(duplicates[dim*4+2], vecAxis(p, dim))

		// Edge at (a1 lower, a2 upper).
		setVecAxis(&p, a1, b[2*a1])
		solve(&p)
		if accepted(p, dim*4+3) {
			volume += signIf(nd < 0) * r3.Dot(p, edgeBoxBound1) * r3.Dot(p, edgeNormalBoxBound1) * r3.Dot(p, normal)
			onBox1 := r3.Cross(edgeBoxBound1, axisVec(a1))
			volume -= signIf(vecAxis(edgeBoxBound1, a2) < 0) * r3.Dot(p, edgeBoxBound1) * vecAxis(p, a1) * r3.Dot(p, onBox1)
			volume += signIf(nd > 0) * r3.Dot(p, edgeBoxBound2) * r3.Dot(p, edgeNormalBoxBound2) * r3.Dot(p, normal)
			onBox2 := r3.Cross(edgeBoxBound2, axisVec(a2))
			volume += signIf(vecAxis(edgeBoxBound2, a1) > 0) * r3.Dot(p, edgeBoxBound2) * vecAxis(p, a2) * r3.Dot(p, onBox2)
			volume -= 2 * signIf(nd > 0) * p.X * p.Y * p.Z
		}
		duplicates[dim*4+3] = append(duplicates[dim*4+3], vecAxis(p, dim))
	}
	return volume
}

// isDuplicate reports whether v is within duplicateTol of a previously seen
// candidate on the same box edge.
func isDuplicate(seen []float64, v float64) bool {
	for _, s := range seen {
		if math.Abs(s-v) <= duplicateTol {
			return true
		}
	}
	return false
}

func signIf(cond bool) float64 {
	if cond {
		return 1
	}
	return -1
}

func unitOrZero(v r3.Vec) r3.Vec {
	n := r3.Norm(v)
	if n < dblMin {
		return r3.Vec{}
	}
	return r3.Scale(1/n, v)
}
