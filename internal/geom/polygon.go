package geom

import (
	"math"

	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"
)

// nearlyEqual is the tolerant comparison used throughout the intersection
// code. It accepts values within a few ulps or a tiny absolute difference.
func nearlyEqual(a, b float64) bool {
	return scalar.EqualWithinAbsOrRel(a, b, 1e-12, 1e-9)
}

// PolygonNormal computes the (unnormalized direction, then normalized)
// normal of a planar polygon using Newell's method. Degenerate polygons
// yield a zero vector.
func PolygonNormal(pts []r3.Vec) r3.Vec {
	var n r3.Vec
	for i := range pts {
		p := pts[i]
		q := pts[(i+1)%len(pts)]
		n.X += (p.Y - q.Y) * (p.Z + q.Z)
		n.Y += (p.Z - q.Z) * (p.X + q.X)
		n.Z += (p.X - q.X) * (p.Y + q.Y)
	}
	norm := r3.Norm(n)
	if norm < dblMin {
		return r3.Vec{}
	}
	return r3.Scale(1/norm, n)
}

// PointInPolygon reports whether x, assumed on the polygon's plane, lies
// inside the polygon. The polygon is projected onto the dominant axis plane
// of its normal and tested with an even-odd crossing rule.
func PointInPolygon(x r3.Vec, pts []r3.Vec, normal r3.Vec) bool {
	if len(pts) < 3 {
		return false
	}
	// Drop the dominant axis of the normal.
	drop := 0
	if math.Abs(normal.Y) > math.Abs(vecAxis(normal, drop)) {
		drop = 1
	}
	if math.Abs(normal.Z) > math.Abs(vecAxis(normal, drop)) {
		drop = 2
	}
	u := (drop + 1) % 3
	v := (drop + 2) % 3

	xu, xv := vecAxis(x, u), vecAxis(x, v)
	inside := false
	j := len(pts) - 1
	for i := 0; i < len(pts); i++ {
		iu, iv := vecAxis(pts[i], u), vecAxis(pts[i], v)
		ju, jv := vecAxis(pts[j], u), vecAxis(pts[j], v)
		if (iv > xv) != (jv > xv) {
			t := (xv - iv) / (jv - iv)
			if xu < iu+t*(ju-iu) {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}
