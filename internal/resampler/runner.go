package resampler

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/fieldgrid/resample/internal/dataset"
	"github.com/fieldgrid/resample/internal/geom"
	"github.com/fieldgrid/resample/internal/htg"
	"github.com/fieldgrid/resample/internal/measure"
)

// dblEpsilon shrinks boundary coordinates so samples sitting exactly on the
// upper domain bound land in the last element instead of one past it.
var dblEpsilon = math.Nextafter(1, 2) - 1

// Runner executes the resampling pipeline for one configuration. A Runner
// is reusable across runs but not safe for concurrent use.
type Runner struct {
	cfg Config

	// Accumulator templates cloned into every grid element. The primary
	// measurement owns the first primaryCount entries; displayMap routes
	// the display measurement's accumulators, sharing entries with the
	// primary ones where their parameters match.
	templates    []measure.Accumulator
	primaryCount int
	displayMap   []int

	bounds           geom.Box
	resolutions      []int64 // elements per axis and tree at each depth
	maxResolution    int64
	numberOfChildren int

	grids         []multiResGrid
	out           *htg.Grid
	skippedPoints int
	skippedCells  int
}

// RunSummary describes one completed run.
type RunSummary struct {
	RunID       string
	StartedAt   time.Time
	Elapsed     time.Duration
	FieldName   string
	Association string
	Measurement string

	NumPoints   int
	NumCells    int
	NumTrees    int
	NumNodes    int64
	MaskedNodes int64
	Skipped     int

	// ElementsPerDepth counts the multi-resolution elements per depth
	// after propagation, index 0 the coarsest.
	ElementsPerDepth []int64

	Digest uint64
}

// NewRunner validates cfg and prepares the accumulator templates.
func NewRunner(cfg *Config) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Runner{cfg: *cfg}
	if m := r.cfg.Measurement; m != nil {
		for _, acc := range m.Accumulators() {
			r.templates = append(r.templates, acc.Clone())
		}
	}
	r.primaryCount = len(r.templates)
	if m := r.cfg.DisplayMeasurement; m != nil {
		for _, acc := range m.Accumulators() {
			// Reuse a primary accumulator when one is interchangeable, so
			// shared statistics are only accumulated once per element.
			shared := -1
			for l := 0; l < r.primaryCount; l++ {
				if r.templates[l].SameParameters(acc) {
					shared = l
					break
				}
			}
			if shared < 0 {
				shared = len(r.templates)
				r.templates = append(r.templates, acc.Clone())
			}
			r.displayMap = append(r.displayMap, shared)
		}
	}
	return r, nil
}

// Run resamples ds into a hyper tree grid.
func (r *Runner) Run(ds *dataset.DataSet) (*htg.Grid, *RunSummary, error) {
	started := time.Now()
	summary := &RunSummary{
		RunID:       uuid.NewString(),
		StartedAt:   started,
		FieldName:   ds.FieldName,
		Association: ds.Association.String(),
	}
	if r.cfg.Measurement != nil {
		summary.Measurement = r.cfg.Measurement.Name()
	}
	r.skippedPoints, r.skippedCells = 0, 0

	if ds.Empty() {
		r.out = htg.NewGrid(r.cfg.CellDims, r.cfg.BranchFactor, geom.Box{},
			r.cfg.DisplayMeasurement != nil)
		summary.Elapsed = time.Since(started)
		summary.Digest = r.out.Digest()
		return r.out, summary, nil
	}

	if r.cfg.Bounds != nil {
		r.bounds = *r.cfg.Bounds
	} else {
		r.bounds = ds.Bounds()
		padDegenerateAxes(&r.bounds)
	}

	r.resolutions = make([]int64, r.cfg.MaxDepth+1)
	res := int64(1)
	for d := range r.resolutions {
		r.resolutions[d] = res
		res *= int64(r.cfg.BranchFactor)
	}
	r.maxResolution = r.resolutions[r.cfg.MaxDepth]
	r.numberOfChildren = r.cfg.BranchFactor * r.cfg.BranchFactor * r.cfg.BranchFactor

	r.out = htg.NewGrid(r.cfg.CellDims, r.cfg.BranchFactor, r.bounds,
		r.cfg.DisplayMeasurement != nil)
	r.grids = make([]multiResGrid, r.out.NumTrees())
	for i := range r.grids {
		r.grids[i] = newMultiResGrid(r.cfg.MaxDepth)
	}

	r.scatter(ds)
	if err := r.propagate(); err != nil {
		return nil, nil, err
	}
	if r.cfg.NoEmptyCells || (r.cfg.Extrapolate && ds.Association == dataset.AssociationPoints) {
		r.fillGaps(ds)
	}
	if err := r.generateTrees(); err != nil {
		return nil, nil, fmt.Errorf("resampler: generating trees: %w", err)
	}
	if r.cfg.Extrapolate && ds.Association == dataset.AssociationPoints {
		r.extrapolate()
	}

	summary.ElementsPerDepth = make([]int64, r.cfg.MaxDepth+1)
	for _, mrg := range r.grids {
		for d, dm := range mrg {
			summary.ElementsPerDepth[d] += int64(len(dm))
		}
	}

	// The multi-resolution scratch state can be large; drop it eagerly.
	r.grids = nil

	summary.NumPoints = ds.NumPoints()
	summary.NumCells = ds.NumCells()
	summary.NumTrees = r.out.NumTrees()
	summary.NumNodes = r.out.NumNodes()
	for _, m := range r.out.Mask {
		if m {
			summary.MaskedNodes++
		}
	}
	summary.Skipped = r.skippedPoints + r.skippedCells
	summary.Digest = r.out.Digest()
	summary.Elapsed = time.Since(started)
	return r.out, summary, nil
}

// padDegenerateAxes widens zero-width axes so coordinate normalization
// stays finite for flat or single-point inputs.
func padDegenerateAxes(b *geom.Box) {
	for axis := 0; axis < 3; axis++ {
		if b[2*axis] >= b[2*axis+1] {
			mid := b[2*axis]
			b[2*axis] = mid - 0.5
			b[2*axis+1] = mid + 0.5
		}
	}
}
