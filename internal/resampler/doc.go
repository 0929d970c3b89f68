// Package resampler converts a scattered spatial dataset into an adaptively
// refined hyper tree grid.
//
// The pipeline is bottom-up then top-down: samples are scattered into a
// per-coarse-cell stack of hash-indexed grids (one map per refinement
// depth), statistics are propagated from the finest depth toward the root,
// and the output trees are then generated top-down, subdividing only where
// the configured measurement and sample counts justify finer resolution.
// An optional extrapolation pass fills leaves left without a measured value
// using face-neighbor averaging ordered by data completeness.
//
// Execution is single-threaded; a Runner must not be shared across
// concurrent runs.
package resampler
