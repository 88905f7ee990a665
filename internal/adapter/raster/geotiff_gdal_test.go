//go:build gdal

package raster

import (
	"path/filepath"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGeoTIFF(t *testing.T, path string, gt [6]float64, w, h int, values []float32, nodata float64) {
	t.Helper()
	godal.RegisterAll()
	ds, err := godal.Create(godal.GTiff, path, 1, godal.Float32, w, h)
	require.NoError(t, err)
	require.NoError(t, ds.SetGeoTransform(gt))
	band := ds.Bands()[0]
	require.NoError(t, band.SetNoData(nodata))
	require.NoError(t, band.Write(0, 0, values, w, h))
	require.NoError(t, ds.Close())
}

func TestReadGeoTIFF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chirps-v3.0.2020.03.tif")
	writeGeoTIFF(t, path, [6]float64{36.0, 0.5, 0, 0.0, 0, -0.5}, 3, 2,
		[]float32{10, 20, 30, 40, 50, -9999}, -9999)

	g, err := Open(path, "")
	require.NoError(t, err)

	v, ok := g.Value(-0.1, 36.1)
	require.True(t, ok)
	assert.InDelta(t, 10.0, v, 1e-6)

	v, ok = g.Value(-0.9, 36.8)
	require.True(t, ok)
	assert.InDelta(t, 50.0, v, 1e-6)

	_, ok = g.Value(-0.9, 37.3)
	assert.False(t, ok, "nodata cell")
}
