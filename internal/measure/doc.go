// Package measure defines the pluggable statistics used by the resampler.
//
// An Accumulator is a running-statistics object fed one (tuple, weight)
// sample at a time and mergeable with peers of the same kind. A Measurement
// declares which accumulators it needs, whether a subtree holds enough data
// to be measured, and how to turn accumulated state into a scalar.
// Measurements are selected by configuration, not subclassed.
package measure
