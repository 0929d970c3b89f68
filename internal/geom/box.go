package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// dblEpsilon is the machine epsilon for float64.
var dblEpsilon = math.Nextafter(1, 2) - 1

// dblMin is the smallest positive normalized float64.
const dblMin = 2.2250738585072014e-308

// Box is an axis-aligned box stored as bounds in the order
// xmin, xmax, ymin, ymax, zmin, zmax.
type Box [6]float64

// NewBox builds a box from min/max corners.
func NewBox(min, max r3.Vec) Box {
	return Box{min.X, max.X, min.Y, max.Y, min.Z, max.Z}
}

// Min returns the lower corner.
func (b Box) Min() r3.Vec { return r3.Vec{X: b[0], Y: b[2], Z: b[4]} }

// Max returns the upper corner.
func (b Box) Max() r3.Vec { return r3.Vec{X: b[1], Y: b[3], Z: b[5]} }

// Center returns the box center.
func (b Box) Center() r3.Vec {
	return r3.Vec{X: (b[0] + b[1]) / 2, Y: (b[2] + b[3]) / 2, Z: (b[4] + b[5]) / 2}
}

// Volume returns the box volume.
func (b Box) Volume() float64 {
	return (b[1] - b[0]) * (b[3] - b[2]) * (b[5] - b[4])
}

// Corner returns one of the eight box corners. Bit 0 of id selects the x
// bound, bit 1 the y bound, bit 2 the z bound.
func (b Box) Corner(id int) r3.Vec {
	return r3.Vec{
		X: b[id&1],
		Y: b[2+(id&2)>>1],
		Z: b[4+(id&4)>>2],
	}
}

// Overlaps reports whether the two boxes share any volume or boundary.
func (b Box) Overlaps(o Box) bool {
	return b[0] <= o[1] && b[1] >= o[0] &&
		b[2] <= o[3] && b[3] >= o[2] &&
		b[4] <= o[5] && b[5] >= o[4]
}

// vecAxis returns component i of v with x=0, y=1, z=2.
func vecAxis(v r3.Vec, i int) float64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	default:
		return v.Z
	}
}

// setVecAxis sets component i of v.
func setVecAxis(v *r3.Vec, i int, x float64) {
	switch i {
	case 0:
		v.X = x
	case 1:
		v.Y = x
	default:
		v.Z = x
	}
}

// axisVec returns the unit vector along axis i.
func axisVec(i int) r3.Vec {
	switch i {
	case 0:
		return r3.Vec{X: 1}
	case 1:
		return r3.Vec{Y: 1}
	default:
		return r3.Vec{Z: 1}
	}
}

// IntersectWithInfiniteLine clips the infinite line through p1 and p2,
// parameterized as p1 + t*(p2-p1), against the box. On success it returns
// the entry and exit parameters t1 <= t2, the corresponding points, and the
// indices (0..5, same order as Box) of the bounding planes that produced
// them. Lines parallel to a slab and outside it do not intersect.
func (b Box) IntersectWithInfiniteLine(p1, p2 r3.Vec) (t1, t2 float64, x1, x2 r3.Vec, plane1, plane2 int, ok bool) {
	t1 = math.Inf(-1)
	t2 = math.Inf(1)
	plane1, plane2 = -1, -1
	d := r3.Sub(p2, p1)
	for axis := 0; axis < 3; axis++ {
		lo, hi := b[2*axis], b[2*axis+1]
		origin := vecAxis(p1, axis)
		dir := vecAxis(d, axis)
		if math.Abs(dir) < dblEpsilon {
			if origin < lo || origin > hi {
				return 0, 0, r3.Vec{}, r3.Vec{}, -1, -1, false
			}
			continue
		}
		tLo := (lo - origin) / dir
		tHi := (hi - origin) / dir
		pLo, pHi := 2*axis, 2*axis+1
		if tLo > tHi {
			tLo, tHi = tHi, tLo
			pLo, pHi = pHi, pLo
		}
		if tLo > t1 {
			t1, plane1 = tLo, pLo
		}
		if tHi < t2 {
			t2, plane2 = tHi, pHi
		}
	}
	if t1 > t2 || plane1 < 0 || plane2 < 0 {
		return 0, 0, r3.Vec{}, r3.Vec{}, -1, -1, false
	}
	x1 = r3.Add(p1, r3.Scale(t1, d))
	x2 = r3.Add(p1, r3.Scale(t2, d))
	return t1, t2, x1, x2, plane1, plane2, true
}
