package resampler

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/fieldgrid/resample/internal/dataset"
	"github.com/fieldgrid/resample/internal/geom"
	"github.com/fieldgrid/resample/internal/htg"
	"github.com/fieldgrid/resample/internal/measure"
)

func mustRun(t *testing.T, cfg *Config, ds *dataset.DataSet) (*htg.Grid, *RunSummary) {
	t.Helper()
	r, err := NewRunner(cfg)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	g, s, err := r.Run(ds)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return g, s
}

// cornerCloud puts two samples in the lower and two in the upper octant of
// the unit cube.
func cornerCloud() *dataset.DataSet {
	pts := []r3.Vec{
		{X: 0, Y: 0, Z: 0},
		{X: 1, Y: 1, Z: 1},
		{X: 0.1, Y: 0.1, Z: 0.1},
		{X: 0.9, Y: 0.9, Z: 0.9},
	}
	return dataset.NewPointCloud("density", pts, []float64{1, 2, 3, 4}, 1)
}

func TestRun_PointCloudRefinesWhereDataIs(t *testing.T) {
	cfg := DefaultConfig().WithMeasurement(measure.Mean{}).WithExtrapolate(false)
	g, s := mustRun(t, cfg, cornerCloud())

	if s.NumNodes != 9 {
		t.Fatalf("expected a subdivided root with 8 children, got %d nodes", s.NumNodes)
	}
	if g.Measured[0] != 2.5 {
		t.Fatalf("root mean should be 2.5, got %v", g.Measured[0])
	}
	// Child (0,0,0) holds values 1 and 3, child (1,1,1) holds 2 and 4.
	if g.Measured[1] != 2 || g.Measured[8] != 3 {
		t.Fatalf("corner means should be 2 and 3, got %v and %v", g.Measured[1], g.Measured[8])
	}
	if !g.Mask[2] || !math.IsNaN(g.Measured[2]) {
		t.Fatalf("empty children should be masked NaN")
	}
	if g.PointCount[0] != 4 || g.LeafCount[0] != 2 {
		t.Fatalf("root should report 4 points over 2 leaves, got %d over %d",
			g.PointCount[0], g.LeafCount[0])
	}
	if g.PointCount[1] != 2 || g.LeafCount[1] != 1 {
		t.Fatalf("corner child should report 2 points over 1 leaf, got %d over %d",
			g.PointCount[1], g.LeafCount[1])
	}
	// Two occupied finest elements fold into one coarse element.
	if len(s.ElementsPerDepth) != 2 || s.ElementsPerDepth[0] != 1 || s.ElementsPerDepth[1] != 2 {
		t.Fatalf("unexpected per-depth element counts: %v", s.ElementsPerDepth)
	}
}

func TestRun_MinPointsThresholdKeepsRootOnly(t *testing.T) {
	cfg := DefaultConfig().
		WithMeasurement(measure.Mean{}).
		WithExtrapolate(false).
		WithMinPointsPerSubtree(3)
	_, s := mustRun(t, cfg, cornerCloud())
	if s.NumNodes != 1 {
		t.Fatalf("children of 2 points each should not allow subdivision, got %d nodes", s.NumNodes)
	}
}

func TestRun_RangeCriterion(t *testing.T) {
	// The root mean of cornerCloud is 2.5.
	t.Run("inside excludes", func(t *testing.T) {
		cfg := DefaultConfig().
			WithMeasurement(measure.Mean{}).
			WithExtrapolate(false).
			WithRange(0, 2, true)
		_, s := mustRun(t, cfg, cornerCloud())
		if s.NumNodes != 1 {
			t.Fatalf("mean 2.5 outside (0, 2) should not refine, got %d nodes", s.NumNodes)
		}
	})
	t.Run("outside includes", func(t *testing.T) {
		cfg := DefaultConfig().
			WithMeasurement(measure.Mean{}).
			WithExtrapolate(false).
			WithRange(0, 2, false)
		_, s := mustRun(t, cfg, cornerCloud())
		if s.NumNodes != 9 {
			t.Fatalf("mean 2.5 outside (0, 2) should refine, got %d nodes", s.NumNodes)
		}
	})
}

func TestRun_CellFieldVoxel(t *testing.T) {
	cells := []geom.Cell{geom.NewVoxel(geom.Box{0, 1, 0, 1, 0, 1})}
	ds := dataset.NewCellSet("pressure", cells, []float64{8}, 1)
	cfg := DefaultConfig().WithMeasurement(measure.Mean{})
	g, s := mustRun(t, cfg, ds)

	if s.NumNodes != 9 {
		t.Fatalf("a voxel spanning the domain should refine once, got %d nodes", s.NumNodes)
	}
	if s.MaskedNodes != 0 {
		t.Fatalf("the voxel covers every element, none should be masked, got %d", s.MaskedNodes)
	}
	for idx, v := range g.Measured {
		if math.Abs(v-8) > 1e-9 {
			t.Fatalf("node %d: constant field should resample to 8, got %v", idx, v)
		}
	}
	if g.PointCount[0] != 8 || g.LeafCount[0] != 8 {
		t.Fatalf("the voxel contributes to all 8 elements, got %d points over %d leaves",
			g.PointCount[0], g.LeafCount[0])
	}
}

func TestRun_NoEmptyCellsVetoesSubdivision(t *testing.T) {
	cells := []geom.Cell{geom.NewVoxel(geom.Box{0, 1, 0, 1, 0, 0.5})}
	values := []float64{4}
	bounds := geom.Box{0, 1, 0, 1, 0, 1}

	cfg := DefaultConfig().WithMeasurement(measure.Mean{}).WithBounds(bounds)
	_, s := mustRun(t, cfg, dataset.NewCellSet("pressure", cells, values, 1))
	if s.NumNodes != 9 {
		t.Fatalf("without empty-cell masking the root should refine, got %d nodes", s.NumNodes)
	}

	cfg = DefaultConfig().
		WithMeasurement(measure.Mean{}).
		WithBounds(bounds).
		WithNoEmptyCells(true)
	_, s = mustRun(t, cfg, dataset.NewCellSet("pressure", cells, values, 1))
	if s.NumNodes != 1 {
		t.Fatalf("refining would expose masked leaves over covered space, got %d nodes", s.NumNodes)
	}
}

func TestRun_CellOutsideDomainIsMasked(t *testing.T) {
	cells := []geom.Cell{geom.NewVoxel(geom.Box{10, 11, 10, 11, 10, 11})}
	ds := dataset.NewCellSet("pressure", cells, []float64{5}, 1)
	cfg := DefaultConfig().
		WithMeasurement(measure.Mean{}).
		WithBounds(geom.Box{0, 1, 0, 1, 0, 1})
	g, s := mustRun(t, cfg, ds)

	if s.Skipped != 1 {
		t.Fatalf("the out-of-domain cell should be skipped, got %d", s.Skipped)
	}
	if s.NumNodes != 1 || s.MaskedNodes != 1 || !g.Mask[0] {
		t.Fatalf("output should be a single masked root, got %d nodes %d masked",
			s.NumNodes, s.MaskedNodes)
	}
}

func TestRun_EmptyInput(t *testing.T) {
	ds := dataset.NewPointCloud("density", nil, nil, 1)
	cfg := DefaultConfig().WithMeasurement(measure.Mean{})
	g, s := mustRun(t, cfg, ds)
	if g == nil || s.NumNodes != 0 {
		t.Fatalf("empty input should yield an empty but valid grid, got %v nodes", s.NumNodes)
	}
}

func TestRun_UnknownAssociation(t *testing.T) {
	ds := cornerCloud()
	ds.Association = dataset.AssociationUnknown
	cfg := DefaultConfig().WithMeasurement(measure.Mean{}).WithExtrapolate(false)
	g, s := mustRun(t, cfg, ds)
	if s.NumNodes != 1 || !g.Mask[0] {
		t.Fatalf("unknown association should leave a single masked root, got %d nodes", s.NumNodes)
	}
}

func TestRun_DisplayMeasurementSharesAccumulators(t *testing.T) {
	pts := []r3.Vec{{X: 0, Y: 0, Z: 0}, {X: 1, Y: 1, Z: 1}}
	ds := dataset.NewPointCloud("density", pts, []float64{1, 3}, 1)
	cfg := DefaultConfig().
		WithMeasurement(measure.Mean{}).
		WithDisplayMeasurement(measure.StdDev{}).
		WithExtrapolate(false)

	r, err := NewRunner(cfg)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	// StdDev needs an arithmetic and a squared accumulator; the arithmetic
	// one is shared with Mean.
	if r.primaryCount != 1 || len(r.templates) != 2 {
		t.Fatalf("expected 1 primary and 2 total accumulators, got %d and %d",
			r.primaryCount, len(r.templates))
	}
	if len(r.displayMap) != 2 || r.displayMap[0] != 0 || r.displayMap[1] != 1 {
		t.Fatalf("unexpected display accumulator routing: %v", r.displayMap)
	}

	g, s, err := r.Run(ds)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// Single-point children cannot carry a stddev, so the root stays whole.
	if s.NumNodes != 1 {
		t.Fatalf("expected root only, got %d nodes", s.NumNodes)
	}
	if g.Measured[0] != 2 {
		t.Fatalf("mean of 1 and 3 should be 2, got %v", g.Measured[0])
	}
	if math.Abs(g.Display[0]-1) > 1e-12 {
		t.Fatalf("stddev of 1 and 3 should be 1, got %v", g.Display[0])
	}
}

func TestRun_ExtrapolateFillsUndefinedLeaves(t *testing.T) {
	cfg := DefaultConfig().WithMeasurement(measure.Mean{})
	g, _ := mustRun(t, cfg, cornerCloud())

	for idx, v := range g.Measured {
		if math.IsNaN(v) {
			t.Fatalf("node %d left undefined after extrapolation", idx)
		}
	}
	// Child (1,0,0) only borders the defined corner child of value 2;
	// child (0,1,1) only borders the one of value 3.
	if g.Measured[2] != 2 || g.Measured[7] != 3 {
		t.Fatalf("expected neighbor means 2 and 3, got %v and %v", g.Measured[2], g.Measured[7])
	}
	// Extrapolation assigns values but never unmasks.
	if !g.Mask[2] {
		t.Fatalf("extrapolated nodes should stay masked")
	}
}

func subdividedUnitGrid() *htg.Grid {
	g := htg.NewGrid([3]int{1, 1, 1}, 2, geom.Box{0, 1, 0, 1, 0, 1}, false)
	c := g.NewCursor(0)
	g.SetNodeAttributes(c.GlobalIndex(), 2.5, 0, 8, 8, false)
	c.SubdivideLeaf()
	return g
}

func TestExtrapolate_ImmediateFill(t *testing.T) {
	g := subdividedUnitGrid()
	// Child 0 is undefined; its three in-domain neighbors are children 1,
	// 2 and 4.
	values := map[int64]float64{1: math.NaN(), 2: 1.5, 3: 2.5, 4: 9, 5: 3.5, 6: 9, 7: 9, 8: 9}
	for id, v := range values {
		g.SetNodeAttributes(id, v, 0, 1, 1, false)
	}

	r := &Runner{cfg: *DefaultConfig(), out: g}
	r.extrapolate()

	if math.Abs(g.Measured[1]-2.5) > 1e-12 {
		t.Fatalf("expected mean of 1.5, 2.5 and 3.5, got %v", g.Measured[1])
	}
}

func TestExtrapolate_TieredCommit(t *testing.T) {
	g := subdividedUnitGrid()
	// Children 0 and 1 are both undefined and adjacent: each sees the
	// other plus two defined neighbors of value 3. Committing per tier
	// means neither uses a value assigned to the other within the tier.
	for id := int64(1); id <= 8; id++ {
		v := 3.0
		if id == 1 || id == 2 {
			v = math.NaN()
		}
		g.SetNodeAttributes(id, v, 0, 1, 1, false)
	}

	r := &Runner{cfg: *DefaultConfig(), out: g}
	r.extrapolate()

	if g.Measured[1] != 3 || g.Measured[2] != 3 {
		t.Fatalf("both undefined leaves should settle on 3, got %v and %v",
			g.Measured[1], g.Measured[2])
	}
}

func TestRun_PointSumInvariantAndDeterminism(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	const n = 5000
	pts := make([]r3.Vec, n)
	vals := make([]float64, n)
	for i := range pts {
		pts[i] = r3.Vec{X: rng.Float64(), Y: rng.Float64(), Z: rng.Float64()}
		vals[i] = pts[i].X
	}
	ds := dataset.NewPointCloud("density", pts, vals, 1)

	cfg := DefaultConfig().
		WithCellDims(2, 2, 2).
		WithMaxDepth(2).
		WithMeasurement(measure.Mean{}).
		WithExtrapolate(false)

	g, s := mustRun(t, cfg, ds)
	if s.Skipped != 0 {
		t.Fatalf("all samples lie inside the derived domain, got %d skipped", s.Skipped)
	}
	var total int64
	for tr := 0; tr < g.NumTrees(); tr++ {
		tree := g.Tree(tr)
		if tree == nil {
			t.Fatalf("a uniform cloud should populate every tree, tree %d missing", tr)
		}
		count := g.PointCount[tree.GlobalIndexFromLocal(0)]
		// Uniform samples split roughly evenly across the 8 trees.
		if count < n/8-200 || count > n/8+200 {
			t.Fatalf("tree %d holds %d points, expected about %d", tr, count, n/8)
		}
		total += count
	}
	if total != n {
		t.Fatalf("tree roots should account for every sample: got %d of %d", total, n)
	}

	_, s2 := mustRun(t, cfg, ds)
	if s.Digest != s2.Digest {
		t.Fatalf("identical runs should produce identical digests: %x vs %x", s.Digest, s2.Digest)
	}
}

func TestConfig_Validate(t *testing.T) {
	cases := []struct {
		name string
		mod  func(*Config)
	}{
		{"zero cell dims", func(c *Config) { c.CellDims[1] = 0 }},
		{"branch factor", func(c *Config) { c.BranchFactor = 4 }},
		{"negative depth", func(c *Config) { c.MaxDepth = -1 }},
		{"min points", func(c *Config) { c.MinPointsPerSubtree = 0 }},
		{"inverted range", func(c *Config) { c.Min, c.Max = 1, 0 }},
		{"degenerate bounds", func(c *Config) { b := geom.Box{0, 0, 0, 1, 0, 1}; c.Bounds = &b }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mod(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}
