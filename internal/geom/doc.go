// Package geom provides the geometric primitives used by the resampler:
// axis-aligned boxes, convex 3-D cells, and exact box/cell intersection
// volumes.
//
// The intersection routines trade a little numerical robustness for speed;
// degenerate configurations fall back to a zero-volume result rather than
// an error. See IntersectCell for details.
package geom
