package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/fieldgrid/resample/internal/geom"
)

func TestNewPointCloud(t *testing.T) {
	pts := []r3.Vec{{X: 1, Y: 2, Z: 3}, {X: -1, Y: 0, Z: 5}}
	ds := NewPointCloud("density", pts, []float64{10, 20}, 1)

	require.Equal(t, AssociationPoints, ds.Association)
	assert.Equal(t, 2, ds.NumPoints())
	assert.Equal(t, 0, ds.NumCells())
	assert.False(t, ds.Empty())
	assert.Equal(t, []float64{20}, ds.Tuple(1))

	b := ds.Bounds()
	assert.Equal(t, geom.Box{-1, 1, 0, 2, 3, 5}, b)
}

func TestNewCellSet(t *testing.T) {
	cells := []geom.Cell{geom.NewVoxel(geom.Box{0, 1, 0, 2, 0, 3})}
	ds := NewCellSet("pressure", cells, []float64{7}, 1)

	require.Equal(t, AssociationCells, ds.Association)
	assert.Equal(t, 1, ds.NumCells())
	assert.Equal(t, geom.Box{0, 1, 0, 2, 0, 3}, ds.Bounds())
}

func TestTuple_VectorComponents(t *testing.T) {
	pts := []r3.Vec{{}, {X: 1}}
	ds := NewPointCloud("velocity", pts, []float64{1, 2, 3, 4, 5, 6}, 3)

	assert.Equal(t, []float64{1, 2, 3}, ds.Tuple(0))
	assert.Equal(t, []float64{4, 5, 6}, ds.Tuple(1))
}

func TestAssociationString(t *testing.T) {
	assert.Equal(t, "points", AssociationPoints.String())
	assert.Equal(t, "cells", AssociationCells.String())
	assert.Equal(t, "unknown", AssociationUnknown.String())
}

func TestEmpty(t *testing.T) {
	assert.True(t, NewPointCloud("f", nil, nil, 1).Empty())
	assert.False(t, NewCellSet("f", []geom.Cell{geom.NewVoxel(geom.Box{})}, []float64{0}, 1).Empty())
}
