package measure

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// ErrIncompatibleAccumulator is returned when merging accumulators of
// different kinds.
var ErrIncompatibleAccumulator = errors.New("measure: incompatible accumulator kinds")

// Accumulator is a running-statistics state fed one sample at a time.
// Implementations must make Add and Merge commutative and associative up to
// floating-point rounding so that scatter order cannot change results.
type Accumulator interface {
	// Add folds one sample tuple with the given weight into the state.
	Add(tuple []float64, weight float64)
	// Merge folds another accumulator of the same kind into this one.
	Merge(other Accumulator) error
	// Clone returns an independent deep copy.
	Clone() Accumulator
	// SameParameters reports whether other is interchangeable with this
	// accumulator, so a single instance can serve several measurements.
	SameParameters(other Accumulator) bool
}

// tupleValue reduces a sample tuple to a scalar: the value itself for
// scalars, the Euclidean norm for vectors.
func tupleValue(tuple []float64) float64 {
	if len(tuple) == 1 {
		return tuple[0]
	}
	return floats.Norm(tuple, 2)
}

// arithmeticAccumulator tracks the weighted sum of sample values.
type arithmeticAccumulator struct {
	total float64
}

func newArithmeticAccumulator() *arithmeticAccumulator { return &arithmeticAccumulator{} }

func (a *arithmeticAccumulator) Add(tuple []float64, weight float64) {
	a.total += weight * tupleValue(tuple)
}

func (a *arithmeticAccumulator) Merge(other Accumulator) error {
	o, ok := other.(*arithmeticAccumulator)
	if !ok {
		return fmt.Errorf("%w: arithmetic vs %T", ErrIncompatibleAccumulator, other)
	}
	a.total += o.total
	return nil
}

func (a *arithmeticAccumulator) Clone() Accumulator { c := *a; return &c }

func (a *arithmeticAccumulator) SameParameters(other Accumulator) bool {
	_, ok := other.(*arithmeticAccumulator)
	return ok
}

// squaredAccumulator tracks the weighted sum of squared sample values.
type squaredAccumulator struct {
	total float64
}

func newSquaredAccumulator() *squaredAccumulator { return &squaredAccumulator{} }

func (a *squaredAccumulator) Add(tuple []float64, weight float64) {
	v := tupleValue(tuple)
	a.total += weight * v * v
}

func (a *squaredAccumulator) Merge(other Accumulator) error {
	o, ok := other.(*squaredAccumulator)
	if !ok {
		return fmt.Errorf("%w: squared vs %T", ErrIncompatibleAccumulator, other)
	}
	a.total += o.total
	return nil
}

func (a *squaredAccumulator) Clone() Accumulator { c := *a; return &c }

func (a *squaredAccumulator) SameParameters(other Accumulator) bool {
	_, ok := other.(*squaredAccumulator)
	return ok
}

// boundAccumulator tracks a running minimum or maximum.
type boundAccumulator struct {
	max   bool
	set   bool
	value float64
}

func newMinAccumulator() *boundAccumulator { return &boundAccumulator{} }
func newMaxAccumulator() *boundAccumulator { return &boundAccumulator{max: true} }

func (a *boundAccumulator) Add(tuple []float64, _ float64) {
	v := tupleValue(tuple)
	if !a.set {
		a.set = true
		a.value = v
		return
	}
	if a.max && v > a.value || !a.max && v < a.value {
		a.value = v
	}
}

func (a *boundAccumulator) Merge(other Accumulator) error {
	o, ok := other.(*boundAccumulator)
	if !ok || o.max != a.max {
		return fmt.Errorf("%w: bound vs %T", ErrIncompatibleAccumulator, other)
	}
	if !o.set {
		return nil
	}
	a.Add([]float64{o.value}, 1)
	return nil
}

func (a *boundAccumulator) Clone() Accumulator { c := *a; return &c }

func (a *boundAccumulator) SameParameters(other Accumulator) bool {
	o, ok := other.(*boundAccumulator)
	return ok && o.max == a.max
}

// sampleAccumulator keeps every (value, weight) pair. Order-sensitive
// statistics (quantiles, entropy) sort or bin at measure time, which keeps
// Merge trivially commutative.
type sampleAccumulator struct {
	values  []float64
	weights []float64
}

func newSampleAccumulator() *sampleAccumulator { return &sampleAccumulator{} }

func (a *sampleAccumulator) Add(tuple []float64, weight float64) {
	a.values = append(a.values, tupleValue(tuple))
	a.weights = append(a.weights, weight)
}

func (a *sampleAccumulator) Merge(other Accumulator) error {
	o, ok := other.(*sampleAccumulator)
	if !ok {
		return fmt.Errorf("%w: sample vs %T", ErrIncompatibleAccumulator, other)
	}
	a.values = append(a.values, o.values...)
	a.weights = append(a.weights, o.weights...)
	return nil
}

func (a *sampleAccumulator) Clone() Accumulator {
	return &sampleAccumulator{
		values:  append([]float64(nil), a.values...),
		weights: append([]float64(nil), a.weights...),
	}
}

func (a *sampleAccumulator) SameParameters(other Accumulator) bool {
	_, ok := other.(*sampleAccumulator)
	return ok
}
