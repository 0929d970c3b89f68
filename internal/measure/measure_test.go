package measure

import (
	"math"
	"testing"
)

func addAll(m Measurement, samples []float64, weights []float64) []Accumulator {
	accs := make([]Accumulator, 0)
	for _, tmpl := range m.Accumulators() {
		accs = append(accs, tmpl.Clone())
	}
	for i, v := range samples {
		for _, a := range accs {
			a.Add([]float64{v}, weights[i])
		}
	}
	return accs
}

func TestMean(t *testing.T) {
	m := Mean{}
	accs := addAll(m, []float64{1, 2, 3, 4}, []float64{1, 1, 1, 1})
	got, err := m.Measure(accs, 4, 4)
	if err != nil {
		t.Fatalf("measure: %v", err)
	}
	if math.Abs(got-2.5) > 1e-12 {
		t.Fatalf("expected mean 2.5 got %v", got)
	}
}

func TestMean_Weighted(t *testing.T) {
	m := Mean{}
	accs := addAll(m, []float64{1, 3}, []float64{3, 1})
	got, err := m.Measure(accs, 2, 4)
	if err != nil {
		t.Fatalf("measure: %v", err)
	}
	if math.Abs(got-1.5) > 1e-12 {
		t.Fatalf("expected weighted mean 1.5 got %v", got)
	}
}

func TestStdDev(t *testing.T) {
	m := StdDev{}
	accs := addAll(m, []float64{2, 4, 4, 4, 5, 5, 7, 9}, []float64{1, 1, 1, 1, 1, 1, 1, 1})
	got, err := m.Measure(accs, 8, 8)
	if err != nil {
		t.Fatalf("measure: %v", err)
	}
	if math.Abs(got-2.0) > 1e-12 {
		t.Fatalf("expected stddev 2.0 got %v", got)
	}
}

func TestQuantile_Median(t *testing.T) {
	m := Median()
	accs := addAll(m, []float64{9, 1, 7, 3, 5}, []float64{1, 1, 1, 1, 1})
	got, err := m.Measure(accs, 5, 5)
	if err != nil {
		t.Fatalf("measure: %v", err)
	}
	if math.Abs(got-5.0) > 1e-12 {
		t.Fatalf("expected median 5 got %v", got)
	}
}

// Merging in any order must give the same measured value for commutative
// measurements.
func TestMerge_OrderIndependent(t *testing.T) {
	for _, m := range []Measurement{Mean{}, Sum{}, Min{}, Max{}, StdDev{}, Median()} {
		build := func(groups [][]float64) []Accumulator {
			var merged []Accumulator
			for _, g := range groups {
				accs := addAll(m, g, ones(len(g)))
				if merged == nil {
					merged = accs
					continue
				}
				for i := range merged {
					if err := merged[i].Merge(accs[i]); err != nil {
						t.Fatalf("%s merge: %v", m.Name(), err)
					}
				}
			}
			return merged
		}
		a := build([][]float64{{1, 2}, {3}, {4, 5, 6}})
		b := build([][]float64{{4, 5, 6}, {1, 2}, {3}})
		va, err := m.Measure(a, 6, 6)
		if err != nil {
			t.Fatalf("%s measure: %v", m.Name(), err)
		}
		vb, err := m.Measure(b, 6, 6)
		if err != nil {
			t.Fatalf("%s measure: %v", m.Name(), err)
		}
		if math.Abs(va-vb) > 1e-9 {
			t.Fatalf("%s: merge order changed result: %v vs %v", m.Name(), va, vb)
		}
	}
}

func TestMerge_IncompatibleKinds(t *testing.T) {
	a := newArithmeticAccumulator()
	b := newSquaredAccumulator()
	if err := a.Merge(b); err == nil {
		t.Fatalf("expected error merging arithmetic with squared")
	}
}

func TestCanMeasure_Thresholds(t *testing.T) {
	if (StdDev{}).CanMeasure(1, 1) {
		t.Fatalf("stddev should need at least two points")
	}
	if !(StdDev{}).CanMeasure(2, 1) {
		t.Fatalf("stddev with two points should be measurable")
	}
	if (Mean{}).CanMeasure(1, 0) {
		t.Fatalf("mean with zero weight should not be measurable")
	}
}

func TestSameParameters_Sharing(t *testing.T) {
	// Mean and Sum both run on an arithmetic accumulator; the resampler
	// relies on SameParameters to share one instance between them.
	if !(Mean{}).Accumulators()[0].SameParameters((Sum{}).Accumulators()[0]) {
		t.Fatalf("mean and sum accumulators should be interchangeable")
	}
	if (Mean{}).Accumulators()[0].SameParameters((StdDev{}).Accumulators()[1]) {
		t.Fatalf("arithmetic and squared accumulators should differ")
	}
}

func TestEntropy_UniformVsPeaked(t *testing.T) {
	m := Entropy{Bins: 4}
	uniform := addAll(m, []float64{0.1, 0.35, 0.6, 0.85}, ones(4))
	peaked := addAll(m, []float64{0.1, 0.1, 0.1, 0.9}, ones(4))
	hu, err := m.Measure(uniform, 4, 4)
	if err != nil {
		t.Fatalf("measure: %v", err)
	}
	hp, err := m.Measure(peaked, 4, 4)
	if err != nil {
		t.Fatalf("measure: %v", err)
	}
	if hu <= hp {
		t.Fatalf("uniform distribution should have higher entropy: %v vs %v", hu, hp)
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"mean", "sum", "min", "max", "stddev", "median", "entropy"} {
		if _, err := ByName(name); err != nil {
			t.Fatalf("ByName(%q): %v", name, err)
		}
	}
	if _, err := ByName("mode"); err == nil {
		t.Fatalf("expected error for unknown measurement")
	}
}

func ones(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return w
}
