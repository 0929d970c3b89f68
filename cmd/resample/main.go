// Command resample converts a point cloud or cell mesh with one scalar
// field into an adaptively refined hyper tree grid and prints a run
// summary. Input is either a CSV file of x,y,z,value rows or a synthetic
// Gaussian cloud; summaries can optionally be persisted to a SQLite
// database for digest comparison across runs.
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand"
	"os"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/fieldgrid/resample/internal/dataset"
	"github.com/fieldgrid/resample/internal/geom"
	"github.com/fieldgrid/resample/internal/measure"
	"github.com/fieldgrid/resample/internal/resampler"
	"github.com/fieldgrid/resample/internal/storage/sqlite"
	"github.com/fieldgrid/resample/internal/version"
)

func main() {
	var (
		dims        = flag.String("dims", "2,2,2", "coarse grid cells per axis, comma separated")
		branch      = flag.Int("branch-factor", 2, "subdivision arity per axis (2 or 3)")
		maxDepth    = flag.Int("max-depth", 3, "maximum refinement depth")
		minPoints   = flag.Int64("min-points", 1, "minimum samples per subtree to allow subdivision")
		rangeMin    = flag.Float64("min", math.Inf(-1), "lower bound of the refinement value range")
		rangeMax    = flag.Float64("max", math.Inf(1), "upper bound of the refinement value range")
		outside     = flag.Bool("outside", false, "refine where the value falls outside the range")
		noEmpty     = flag.Bool("no-empty-cells", false, "mask regions not covered by any input cell")
		noExtrap    = flag.Bool("no-extrapolate", false, "disable neighbor filling of undefined leaves")
		measurement = flag.String("measurement", "mean", "primary measurement (mean, sum, min, max, stddev, median, entropy)")
		display     = flag.String("display", "", "optional secondary measurement")
		bounds      = flag.String("bounds", "", "explicit domain as xmin,xmax,ymin,ymax,zmin,zmax")
		csvPath     = flag.String("csv", "", "CSV input of x,y,z,value rows (default: synthetic cloud)")
		field       = flag.String("field", "value", "field name recorded in the run summary")
		points      = flag.Int("points", 100000, "synthetic cloud size when no CSV is given")
		seed        = flag.Int64("seed", 1, "synthetic cloud seed")
		dbPath      = flag.String("db", "", "optional SQLite database to record the run in")
		showVersion = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("resample %s\n", version.String())
		return
	}

	cfg, err := buildConfig(*dims, *branch, *maxDepth, *minPoints,
		*rangeMin, *rangeMax, *outside, *noEmpty, *noExtrap, *measurement, *display, *bounds)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	var ds *dataset.DataSet
	if *csvPath != "" {
		ds, err = loadCSV(*csvPath, *field)
		if err != nil {
			log.Fatalf("loading %s: %v", *csvPath, err)
		}
	} else {
		ds = syntheticCloud(*field, *points, *seed)
	}
	log.Printf("resampling %d points / %d cells of field %q",
		ds.NumPoints(), ds.NumCells(), ds.FieldName)

	runner, err := resampler.NewRunner(cfg)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	_, summary, err := runner.Run(ds)
	if err != nil {
		log.Fatalf("resampling failed: %v", err)
	}

	fmt.Printf("run %s: %d trees, %d nodes (%d masked), %d skipped, digest %016x, took %s\n",
		summary.RunID, summary.NumTrees, summary.NumNodes, summary.MaskedNodes,
		summary.Skipped, summary.Digest, summary.Elapsed)
	log.Printf("elements per depth: %v", summary.ElementsPerDepth)

	if *dbPath != "" {
		if err := storeRun(*dbPath, cfg, summary); err != nil {
			log.Fatalf("recording run: %v", err)
		}
		log.Printf("recorded run %s in %s", summary.RunID, *dbPath)
	}
}

func buildConfig(dims string, branch, maxDepth int, minPoints int64,
	rangeMin, rangeMax float64, outside, noEmpty, noExtrap bool,
	measurementName, displayName, boundsSpec string) (*resampler.Config, error) {

	d, err := parseInts(dims, 3)
	if err != nil {
		return nil, fmt.Errorf("-dims: %w", err)
	}
	cfg := resampler.DefaultConfig().
		WithCellDims(d[0], d[1], d[2]).
		WithBranchFactor(branch).
		WithMaxDepth(maxDepth).
		WithMinPointsPerSubtree(minPoints).
		WithRange(rangeMin, rangeMax, !outside).
		WithNoEmptyCells(noEmpty).
		WithExtrapolate(!noExtrap)

	if measurementName != "" {
		m, err := measure.ByName(measurementName)
		if err != nil {
			return nil, err
		}
		cfg.WithMeasurement(m)
	}
	if displayName != "" {
		m, err := measure.ByName(displayName)
		if err != nil {
			return nil, err
		}
		cfg.WithDisplayMeasurement(m)
	}
	if boundsSpec != "" {
		b, err := parseFloats(boundsSpec, 6)
		if err != nil {
			return nil, fmt.Errorf("-bounds: %w", err)
		}
		cfg.WithBounds(geom.Box{b[0], b[1], b[2], b[3], b[4], b[5]})
	}
	return cfg, nil
}

// loadCSV reads x,y,z,value rows, skipping a header line if present.
func loadCSV(path, field string) (*dataset.DataSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 4

	var pts []r3.Vec
	var vals []float64
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		row, err := parseRow(rec)
		if err != nil {
			if line == 1 {
				continue // header
			}
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		pts = append(pts, r3.Vec{X: row[0], Y: row[1], Z: row[2]})
		vals = append(vals, row[3])
	}
	if len(pts) == 0 {
		return nil, fmt.Errorf("no data rows in %s", path)
	}
	return dataset.NewPointCloud(field, pts, vals, 1), nil
}

func parseRow(rec []string) ([4]float64, error) {
	var row [4]float64
	for i, s := range rec {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return row, fmt.Errorf("invalid float %q", s)
		}
		row[i] = v
	}
	return row, nil
}

// syntheticCloud samples a clipped Gaussian blob in the unit cube with the
// field value set to the distance from the center, which gives the
// refinement criterion something to grab onto.
func syntheticCloud(field string, n int, seed int64) *dataset.DataSet {
	rng := rand.New(rand.NewSource(seed))
	pts := make([]r3.Vec, n)
	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		p := r3.Vec{
			X: clamp01(0.5 + rng.NormFloat64()*0.15),
			Y: clamp01(0.5 + rng.NormFloat64()*0.15),
			Z: clamp01(0.5 + rng.NormFloat64()*0.15),
		}
		pts[i] = p
		vals[i] = math.Sqrt((p.X-0.5)*(p.X-0.5) + (p.Y-0.5)*(p.Y-0.5) + (p.Z-0.5)*(p.Z-0.5))
	}
	return dataset.NewPointCloud(field, pts, vals, 1)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func storeRun(path string, cfg *resampler.Config, s *resampler.RunSummary) error {
	db, err := sqlite.Open(path)
	if err != nil {
		return err
	}
	defer db.Close()

	params, err := json.Marshal(map[string]any{
		"cell_dims":     cfg.CellDims,
		"branch_factor": cfg.BranchFactor,
		"max_depth":     cfg.MaxDepth,
		"min_points":    cfg.MinPointsPerSubtree,
		"min":           cfg.Min,
		"max":           cfg.Max,
		"inside_range":  cfg.InsideRange,
	})
	if err != nil {
		return err
	}
	return sqlite.NewRunStore(db).Insert(&sqlite.Run{
		RunID:       s.RunID,
		FieldName:   s.FieldName,
		Association: s.Association,
		Measurement: s.Measurement,
		NumPoints:   int64(s.NumPoints),
		NumCells:    int64(s.NumCells),
		NumTrees:    int64(s.NumTrees),
		NumNodes:    s.NumNodes,
		MaskedNodes: s.MaskedNodes,
		Skipped:     int64(s.Skipped),
		Digest:      fmt.Sprintf("%016x", s.Digest),
		ElapsedNs:   s.Elapsed.Nanoseconds(),
		ParamsJSON:  params,
		CreatedAt:   s.StartedAt.UnixNano(),
	})
}

func parseInts(s string, n int) ([]int, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma-separated values, got %d", n, len(parts))
	}
	out := make([]int, n)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("invalid int %q", p)
		}
		out[i] = v
	}
	return out, nil
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma-separated values, got %d", n, len(parts))
	}
	out := make([]float64, n)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float %q", p)
		}
		out[i] = v
	}
	return out, nil
}
