package measure

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Measurement turns accumulated statistics into a scalar value. The
// Accumulators it declares are templates; the resampler clones them into
// every grid element and hands the merged clones back to Measure.
type Measurement interface {
	// Name identifies the measurement in configs and run summaries.
	Name() string
	// Accumulators returns the accumulator templates this measurement
	// needs, in the order Measure expects them.
	Accumulators() []Accumulator
	// CanMeasure reports whether a subtree with the given point count and
	// accumulated weight holds enough data to be measured.
	CanMeasure(points int64, weight float64) bool
	// Measure produces the scalar from merged accumulator state.
	Measure(accs []Accumulator, points int64, weight float64) (float64, error)
}

// Mean measures the weighted arithmetic mean.
type Mean struct{}

func (Mean) Name() string { return "mean" }
func (Mean) Accumulators() []Accumulator { return []Accumulator{newArithmeticAccumulator()} }

func (Mean) CanMeasure(points int64, weight float64) bool {
	return points >= 1 && weight > 0
}

func (Mean) Measure(accs []Accumulator, _ int64, weight float64) (float64, error) {
	a, err := accumulatorAt[*arithmeticAccumulator](accs, 0)
	if err != nil {
		return 0, err
	}
	return a.total / weight, nil
}

// Sum measures the weighted sum.
type Sum struct{}

func (Sum) Name() string { return "sum" }
func (Sum) Accumulators() []Accumulator { return []Accumulator{newArithmeticAccumulator()} }

func (Sum) CanMeasure(points int64, _ float64) bool { return points >= 1 }

func (Sum) Measure(accs []Accumulator, _ int64, _ float64) (float64, error) {
	a, err := accumulatorAt[*arithmeticAccumulator](accs, 0)
	if err != nil {
		return 0, err
	}
	return a.total, nil
}

// Min measures the smallest sample value.
type Min struct{}

func (Min) Name() string { return "min" }
func (Min) Accumulators() []Accumulator { return []Accumulator{newMinAccumulator()} }

func (Min) CanMeasure(points int64, _ float64) bool { return points >= 1 }

func (Min) Measure(accs []Accumulator, _ int64, _ float64) (float64, error) {
	a, err := accumulatorAt[*boundAccumulator](accs, 0)
	if err != nil {
		return 0, err
	}
	if !a.set {
		return 0, fmt.Errorf("measure: min over empty accumulator")
	}
	return a.value, nil
}

// Max measures the largest sample value.
type Max struct{}

func (Max) Name() string { return "max" }
func (Max) Accumulators() []Accumulator { return []Accumulator{newMaxAccumulator()} }

func (Max) CanMeasure(points int64, _ float64) bool { return points >= 1 }

func (Max) Measure(accs []Accumulator, _ int64, _ float64) (float64, error) {
	a, err := accumulatorAt[*boundAccumulator](accs, 0)
	if err != nil {
		return 0, err
	}
	if !a.set {
		return 0, fmt.Errorf("measure: max over empty accumulator")
	}
	return a.value, nil
}

// StdDev measures the weighted population standard deviation.
type StdDev struct{}

func (StdDev) Name() string { return "stddev" }

func (StdDev) Accumulators() []Accumulator {
	return []Accumulator{newArithmeticAccumulator(), newSquaredAccumulator()}
}

func (StdDev) CanMeasure(points int64, weight float64) bool {
	return points >= 2 && weight > 0
}

func (StdDev) Measure(accs []Accumulator, _ int64, weight float64) (float64, error) {
	sum, err := accumulatorAt[*arithmeticAccumulator](accs, 0)
	if err != nil {
		return 0, err
	}
	sq, err := accumulatorAt[*squaredAccumulator](accs, 1)
	if err != nil {
		return 0, err
	}
	mean := sum.total / weight
	variance := sq.total/weight - mean*mean
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance), nil
}

// Quantile measures the weighted empirical quantile at P in [0, 1].
type Quantile struct {
	P float64
}

// Median is the 0.5 quantile.
func Median() Quantile { return Quantile{P: 0.5} }

func (q Quantile) Name() string { return fmt.Sprintf("quantile(%g)", q.P) }

func (Quantile) Accumulators() []Accumulator { return []Accumulator{newSampleAccumulator()} }

func (Quantile) CanMeasure(points int64, _ float64) bool { return points >= 1 }

func (q Quantile) Measure(accs []Accumulator, _ int64, _ float64) (float64, error) {
	a, err := accumulatorAt[*sampleAccumulator](accs, 0)
	if err != nil {
		return 0, err
	}
	if len(a.values) == 0 {
		return 0, fmt.Errorf("measure: quantile over empty accumulator")
	}
	values := append([]float64(nil), a.values...)
	weights := append([]float64(nil), a.weights...)
	sort.Sort(byValue{values, weights})
	return stat.Quantile(q.P, stat.Empirical, values, weights), nil
}

// Entropy measures the Shannon entropy of the sample distribution binned
// over the observed range.
type Entropy struct {
	Bins int
}

func (e Entropy) Name() string { return fmt.Sprintf("entropy(%d)", e.Bins) }

func (Entropy) Accumulators() []Accumulator { return []Accumulator{newSampleAccumulator()} }

func (Entropy) CanMeasure(points int64, _ float64) bool { return points >= 1 }

func (e Entropy) Measure(accs []Accumulator, _ int64, _ float64) (float64, error) {
	a, err := accumulatorAt[*sampleAccumulator](accs, 0)
	if err != nil {
		return 0, err
	}
	if len(a.values) == 0 {
		return 0, fmt.Errorf("measure: entropy over empty accumulator")
	}
	bins := e.Bins
	if bins <= 0 {
		bins = 16
	}
	lo, hi := a.values[0], a.values[0]
	for _, v := range a.values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if hi == lo {
		return 0, nil
	}
	p := make([]float64, bins)
	total := 0.0
	for i, v := range a.values {
		b := int(float64(bins) * (v - lo) / (hi - lo))
		if b == bins {
			b--
		}
		p[b] += a.weights[i]
		total += a.weights[i]
	}
	for i := range p {
		p[i] /= total
	}
	return stat.Entropy(p), nil
}

// ByName returns the measurement known under name, or an error. Recognized
// names: mean, sum, min, max, stddev, median, entropy.
func ByName(name string) (Measurement, error) {
	switch name {
	case "mean":
		return Mean{}, nil
	case "sum":
		return Sum{}, nil
	case "min":
		return Min{}, nil
	case "max":
		return Max{}, nil
	case "stddev":
		return StdDev{}, nil
	case "median":
		return Median(), nil
	case "entropy":
		return Entropy{Bins: 16}, nil
	}
	return nil, fmt.Errorf("measure: unknown measurement %q", name)
}

func accumulatorAt[T Accumulator](accs []Accumulator, i int) (T, error) {
	var zero T
	if i >= len(accs) {
		return zero, fmt.Errorf("measure: accumulator %d missing (have %d)", i, len(accs))
	}
	a, ok := accs[i].(T)
	if !ok {
		return zero, fmt.Errorf("%w: want %T got %T", ErrIncompatibleAccumulator, zero, accs[i])
	}
	return a, nil
}

// byValue sorts a value slice and keeps its weights aligned.
type byValue struct {
	values  []float64
	weights []float64
}

func (s byValue) Len() int { return len(s.values) }
func (s byValue) Less(i, j int) bool { return s.values[i] < s.values[j] }
func (s byValue) Swap(i, j int) {
	s.values[i], s.values[j] = s.values[j], s.values[i]
	s.weights[i], s.weights[j] = s.weights[j], s.weights[i]
}
