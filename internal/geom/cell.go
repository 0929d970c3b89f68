package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Cell is a convex 3-D cell with planar or mildly curved faces. The
// resampler only needs bounds, vertex access, face topology and the inverse
// parametric mapping; concrete shapes implement those.
type Cell interface {
	// Bounds returns the axis-aligned bounding box of the cell.
	Bounds() Box
	// NumPoints returns the number of cell vertices.
	NumPoints() int
	// Point returns vertex i.
	Point(i int) r3.Vec
	// NumFaces returns the number of cell faces.
	NumFaces() int
	// FacePointIDs returns the vertex indices of face f, ordered around
	// the face.
	FacePointIDs(f int) []int
	// EvaluatePosition inverts the parametric mapping at x. It reports
	// whether x lies inside the cell and returns the interpolation weights
	// of each vertex at x. The weights slice is valid until the next call.
	EvaluatePosition(x r3.Vec) (inside bool, weights []float64)
	// InsideOut reports whether the cell's faces are ordered so that face
	// normals point inward.
	InsideOut() bool
}

// Voxel is an axis-aligned rectangular cell. It gets the fast intersection
// path in IntersectVoxel.
type Voxel struct {
	Box Box

	weights [8]float64
}

var voxelFaces = [6][]int{
	{0, 4, 7, 3}, {1, 2, 6, 5},
	{0, 1, 5, 4}, {3, 7, 6, 2},
	{0, 3, 2, 1}, {4, 5, 6, 7},
}

// NewVoxel returns a voxel spanning the given box.
func NewVoxel(b Box) *Voxel { return &Voxel{Box: b} }

func (v *Voxel) Bounds() Box { return v.Box }
func (v *Voxel) NumPoints() int { return 8 }

func (v *Voxel) Point(i int) r3.Vec {
	// Hexahedron vertex ordering: bottom face counter-clockwise, then top.
	order := [8]int{0, 1, 3, 2, 4, 5, 7, 6}
	return v.Box.Corner(order[i])
}

func (v *Voxel) NumFaces() int { return 6 }
func (v *Voxel) FacePointIDs(f int) []int { return voxelFaces[f] }
func (v *Voxel) InsideOut() bool { return false }

func (v *Voxel) EvaluatePosition(x r3.Vec) (bool, []float64) {
	b := v.Box
	sx, sy, sz := b[1]-b[0], b[3]-b[2], b[5]-b[4]
	if sx <= 0 || sy <= 0 || sz <= 0 {
		return false, v.weights[:]
	}
	r := (x.X - b[0]) / sx
	s := (x.Y - b[2]) / sy
	t := (x.Z - b[4]) / sz
	trilinearWeights(r, s, t, v.weights[:])
	inside := r >= 0 && r <= 1 && s >= 0 && s <= 1 && t >= 0 && t <= 1
	return inside, v.weights[:]
}

// Hexahedron is a general eight-vertex cell with trilinear interpolation.
// Vertices follow the usual ordering: 0-3 counter-clockwise around the
// bottom face, 4-7 around the top face above them.
type Hexahedron struct {
	Points [8]r3.Vec

	weights [8]float64
}

// NewHexahedron builds a hexahedron from its eight vertices.
func NewHexahedron(pts [8]r3.Vec) *Hexahedron { return &Hexahedron{Points: pts} }

func (h *Hexahedron) Bounds() Box {
	b := Box{math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)}
	for _, p := range h.Points {
		b[0] = math.Min(b[0], p.X)
		b[1] = math.Max(b[1], p.X)
		b[2] = math.Min(b[2], p.Y)
		b[3] = math.Max(b[3], p.Y)
		b[4] = math.Min(b[4], p.Z)
		b[5] = math.Max(b[5], p.Z)
	}
	return b
}

func (h *Hexahedron) NumPoints() int { return 8 }
func (h *Hexahedron) Point(i int) r3.Vec { return h.Points[i] }
func (h *Hexahedron) NumFaces() int { return 6 }
func (h *Hexahedron) FacePointIDs(f int) []int { return voxelFaces[f] }

func (h *Hexahedron) InsideOut() bool {
	var centroid r3.Vec
	for _, p := range h.Points {
		centroid = r3.Add(centroid, p)
	}
	centroid = r3.Scale(1.0/8.0, centroid)
	signed := 0.0
	for f := 0; f < h.NumFaces(); f++ {
		ids := h.FacePointIDs(f)
		pts := make([]r3.Vec, len(ids))
		for i, id := range ids {
			pts[i] = h.Points[id]
		}
		n := PolygonNormal(pts)
		signed += r3.Dot(n, r3.Sub(faceCentroid(pts), centroid))
	}
	return signed < 0
}

const (
	hexNewtonIterations = 10
	hexConvergedTol     = 1e-3
	hexParametricTol    = 1e-6
)

// EvaluatePosition inverts the trilinear mapping with Newton iteration.
func (h *Hexahedron) EvaluatePosition(x r3.Vec) (bool, []float64) {
	// Start from the cell center in parametric space.
	params := [3]float64{0.5, 0.5, 0.5}
	var derivs [24]float64
	converged := false
	for iter := 0; iter < hexNewtonIterations; iter++ {
		trilinearWeights(params[0], params[1], params[2], h.weights[:])
		trilinearDerivs(params[0], params[1], params[2], derivs[:])

		var f r3.Vec
		var jac [3][3]float64
		for i := 0; i < 8; i++ {
			p := h.Points[i]
			f = r3.Add(f, r3.Scale(h.weights[i], p))
			for d := 0; d < 3; d++ {
				jac[0][d] += vecAxis(p, 0) * derivs[d*8+i]
				jac[1][d] += vecAxis(p, 1) * derivs[d*8+i]
				jac[2][d] += vecAxis(p, 2) * derivs[d*8+i]
			}
		}
		rhs := r3.Sub(x, f)
		delta, ok := solve3(jac, rhs)
		if !ok {
			return false, h.weights[:]
		}
		params[0] += delta.X
		params[1] += delta.Y
		params[2] += delta.Z
		if math.Abs(delta.X) < hexConvergedTol && math.Abs(delta.Y) < hexConvergedTol &&
			math.Abs(delta.Z) < hexConvergedTol {
			converged = true
			break
		}
	}
	if !converged {
		return false, h.weights[:]
	}
	trilinearWeights(params[0], params[1], params[2], h.weights[:])
	inside := true
	for d := 0; d < 3; d++ {
		if params[d] < -hexParametricTol || params[d] > 1+hexParametricTol {
			inside = false
		}
	}
	return inside, h.weights[:]
}

// trilinearWeights fills w with the eight trilinear shape functions at
// parametric coordinates (r, s, t).
func trilinearWeights(r, s, t float64, w []float64) {
	rm, sm, tm := 1-r, 1-s, 1-t
	w[0] = rm * sm * tm
	w[1] = r * sm * tm
	w[2] = r * s * tm
	w[3] = rm * s * tm
	w[4] = rm * sm * t
	w[5] = r * sm * t
	w[6] = r * s * t
	w[7] = rm * s * t
}

// trilinearDerivs fills d with the shape function derivatives, eight per
// parametric axis.
func trilinearDerivs(r, s, t float64, d []float64) {
	rm, sm, tm := 1-r, 1-s, 1-t
	// d/dr
	d[0] = -sm * tm
	d[1] = sm * tm
	d[2] = s * tm
	d[3] = -s * tm
	d[4] = -sm * t
	d[5] = sm * t
	d[6] = s * t
	d[7] = -s * t
	// d/ds
	d[8] = -rm * tm
	d[9] = -r * tm
	d[10] = r * tm
	d[11] = rm * tm
	d[12] = -rm * t
	d[13] = -r * t
	d[14] = r * t
	d[15] = rm * t
	// d/dt
	d[16] = -rm * sm
	d[17] = -r * sm
	d[18] = -r * s
	d[19] = -rm * s
	d[20] = rm * sm
	d[21] = r * sm
	d[22] = r * s
	d[23] = rm * s
}

// solve3 solves the 3x3 linear system a*x = b by Cramer's rule.
func solve3(a [3][3]float64, b r3.Vec) (r3.Vec, bool) {
	det := a[0][0]*(a[1][1]*a[2][2]-a[1][2]*a[2][1]) -
		a[0][1]*(a[1][0]*a[2][2]-a[1][2]*a[2][0]) +
		a[0][2]*(a[1][0]*a[2][1]-a[1][1]*a[2][0])
	if math.Abs(det) < dblMin {
		return r3.Vec{}, false
	}
	rhs := [3]float64{b.X, b.Y, b.Z}
	var out [3]float64
	for col := 0; col < 3; col++ {
		m := a
		for row := 0; row < 3; row++ {
			m[row][col] = rhs[row]
		}
		out[col] = (m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
			m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
			m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])) / det
	}
	return r3.Vec{X: out[0], Y: out[1], Z: out[2]}, true
}

func faceCentroid(pts []r3.Vec) r3.Vec {
	var c r3.Vec
	for _, p := range pts {
		c = r3.Add(c, p)
	}
	return r3.Scale(1/float64(len(pts)), c)
}
