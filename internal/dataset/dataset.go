// Package dataset holds the in-memory input consumed by the resampler:
// either a point cloud or a cell mesh, carrying one named scalar or vector
// field tagged with its association.
package dataset

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/fieldgrid/resample/internal/geom"
)

// Association tags which elements the field values belong to.
type Association int

const (
	AssociationUnknown Association = iota
	AssociationPoints
	AssociationCells
)

func (a Association) String() string {
	switch a {
	case AssociationPoints:
		return "points"
	case AssociationCells:
		return "cells"
	}
	return "unknown"
}

// DataSet is the resampler input. Exactly one of Points or Cells is
// populated, matching the field association. Field values are stored as a
// flat array of Components-sized tuples, one tuple per point or cell.
type DataSet struct {
	Association Association
	Points      []r3.Vec
	Cells       []geom.Cell

	FieldName  string
	Components int
	values     []float64
}

// NewPointCloud builds a point-associated dataset. values must hold one
// components-sized tuple per point.
func NewPointCloud(fieldName string, points []r3.Vec, values []float64, components int) *DataSet {
	return &DataSet{
		Association: AssociationPoints,
		Points:      points,
		FieldName:   fieldName,
		Components:  components,
		values:      values,
	}
}

// NewCellSet builds a cell-associated dataset. values must hold one
// components-sized tuple per cell.
func NewCellSet(fieldName string, cells []geom.Cell, values []float64, components int) *DataSet {
	return &DataSet{
		Association: AssociationCells,
		Cells:       cells,
		FieldName:   fieldName,
		Components:  components,
		values:      values,
	}
}

// NumPoints returns the number of points; zero for cell sets.
func (d *DataSet) NumPoints() int { return len(d.Points) }

// NumCells returns the number of cells.
func (d *DataSet) NumCells() int { return len(d.Cells) }

// Empty reports whether the dataset carries no geometry at all.
func (d *DataSet) Empty() bool { return len(d.Points) == 0 && len(d.Cells) == 0 }

// Tuple returns the field tuple of element i. The slice aliases the
// dataset's storage; callers must not mutate it.
func (d *DataSet) Tuple(i int) []float64 {
	return d.values[i*d.Components : (i+1)*d.Components]
}

// Bounds returns the axis-aligned bounds of all geometry in the dataset.
func (d *DataSet) Bounds() geom.Box {
	b := geom.Box{
		math.Inf(1), math.Inf(-1),
		math.Inf(1), math.Inf(-1),
		math.Inf(1), math.Inf(-1),
	}
	grow := func(p r3.Vec) {
		b[0] = math.Min(b[0], p.X)
		b[1] = math.Max(b[1], p.X)
		b[2] = math.Min(b[2], p.Y)
		b[3] = math.Max(b[3], p.Y)
		b[4] = math.Min(b[4], p.Z)
		b[5] = math.Max(b[5], p.Z)
	}
	for _, p := range d.Points {
		grow(p)
	}
	for _, c := range d.Cells {
		cb := c.Bounds()
		grow(cb.Min())
		grow(cb.Max())
	}
	return b
}
