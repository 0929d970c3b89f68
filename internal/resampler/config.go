package resampler

import (
	"fmt"
	"math"

	"github.com/fieldgrid/resample/internal/geom"
	"github.com/fieldgrid/resample/internal/measure"
)

// Config drives one resampling run. Zero values are not usable; start from
// DefaultConfig and override with the With* setters.
type Config struct {
	// CellDims is the coarse-grid shape, one tree per coarse cell.
	CellDims [3]int

	// BranchFactor is the subdivision arity per axis, 2 or 3.
	BranchFactor int

	// MaxDepth bounds refinement; depth 0 is the tree root.
	MaxDepth int

	// MinPointsPerSubtree is the smallest sample count a subtree needs
	// before it may be subdivided further.
	MinPointsPerSubtree int64

	// Min and Max bound the measured value for the subdivision test.
	Min, Max float64

	// InsideRange subdivides where Min < value < Max when true, and where
	// the value falls outside that open interval when false.
	InsideRange bool

	// NoEmptyCells masks off subtree regions not covered by any input cell.
	NoEmptyCells bool

	// Extrapolate fills undefined leaves of point-associated inputs from
	// their face neighbors after generation.
	Extrapolate bool

	// Bounds optionally fixes the grid domain. When nil the domain is the
	// bounding box of the input; geometry outside an explicit domain is
	// skipped.
	Bounds *geom.Box

	// Measurement produces the primary output value per node; nil disables
	// measuring (and with it subdivision).
	Measurement measure.Measurement

	// DisplayMeasurement optionally produces a second output value that
	// does not participate in the subdivision test.
	DisplayMeasurement measure.Measurement
}

// DefaultConfig returns a single-cell binary grid refined one level deep,
// with an unbounded value range and extrapolation enabled.
func DefaultConfig() *Config {
	return &Config{
		CellDims:            [3]int{1, 1, 1},
		BranchFactor:        2,
		MaxDepth:            1,
		MinPointsPerSubtree: 1,
		Min:                 math.Inf(-1),
		Max:                 math.Inf(1),
		InsideRange:         true,
		Extrapolate:         true,
	}
}

// WithCellDims sets the coarse-grid shape.
func (c *Config) WithCellDims(i, j, k int) *Config {
	c.CellDims = [3]int{i, j, k}
	return c
}

// WithBranchFactor sets the subdivision arity.
func (c *Config) WithBranchFactor(bf int) *Config {
	c.BranchFactor = bf
	return c
}

// WithMaxDepth sets the refinement bound.
func (c *Config) WithMaxDepth(d int) *Config {
	c.MaxDepth = d
	return c
}

// WithMinPointsPerSubtree sets the subdivision sample threshold.
func (c *Config) WithMinPointsPerSubtree(n int64) *Config {
	c.MinPointsPerSubtree = n
	return c
}

// WithRange sets the value interval of the subdivision test. inside selects
// whether values within or outside the open interval qualify.
func (c *Config) WithRange(min, max float64, inside bool) *Config {
	c.Min, c.Max, c.InsideRange = min, max, inside
	return c
}

// WithNoEmptyCells toggles masking of regions no input cell covers.
func (c *Config) WithNoEmptyCells(v bool) *Config {
	c.NoEmptyCells = v
	return c
}

// WithExtrapolate toggles the neighbor-fill pass for point inputs.
func (c *Config) WithExtrapolate(v bool) *Config {
	c.Extrapolate = v
	return c
}

// WithBounds fixes the grid domain instead of deriving it from the input.
func (c *Config) WithBounds(b geom.Box) *Config {
	c.Bounds = &b
	return c
}

// WithMeasurement sets the primary measurement.
func (c *Config) WithMeasurement(m measure.Measurement) *Config {
	c.Measurement = m
	return c
}

// WithDisplayMeasurement sets the secondary measurement.
func (c *Config) WithDisplayMeasurement(m measure.Measurement) *Config {
	c.DisplayMeasurement = m
	return c
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	for axis, n := range c.CellDims {
		if n < 1 {
			return fmt.Errorf("resampler: cell dims axis %d must be >= 1, got %d", axis, n)
		}
	}
	if c.BranchFactor != 2 && c.BranchFactor != 3 {
		return fmt.Errorf("resampler: branch factor must be 2 or 3, got %d", c.BranchFactor)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("resampler: max depth must be >= 0, got %d", c.MaxDepth)
	}
	if c.MinPointsPerSubtree < 1 {
		return fmt.Errorf("resampler: min points per subtree must be >= 1, got %d", c.MinPointsPerSubtree)
	}
	if math.IsNaN(c.Min) || math.IsNaN(c.Max) {
		return fmt.Errorf("resampler: range bounds must not be NaN")
	}
	if c.Min > c.Max {
		return fmt.Errorf("resampler: range min %v exceeds max %v", c.Min, c.Max)
	}
	if c.Bounds != nil {
		b := *c.Bounds
		if b[0] >= b[1] || b[2] >= b[3] || b[4] >= b[5] {
			return fmt.Errorf("resampler: explicit bounds %v are degenerate", b)
		}
	}
	return nil
}
