// Package raster reads gridded monthly rainfall and samples it at county
// centroids.
package raster

import (
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/couchcryptid/maize-resilience-service/internal/domain"
)

// ErrUnsupportedFormat is returned for raster files this build cannot read.
var ErrUnsupportedFormat = errors.New("unsupported raster format")

// Grid returns the cell value covering a coordinate. The second result is
// false outside the grid and for nodata or NaN cells.
type Grid interface {
	Value(lat, lon float64) (float64, bool)
}

// Regular is a grid of cell centres spaced evenly in latitude and longitude.
// Values are stored row-major by latitude index, then longitude index.
type Regular struct {
	Lats      []float64
	Lons      []float64
	Values    []float64
	NoData    float64
	HasNoData bool
}

// Validate checks that the grid dimensions agree.
func (g *Regular) Validate() error {
	if len(g.Lats) == 0 || len(g.Lons) == 0 {
		return errors.New("grid has no cells")
	}
	if len(g.Values) < len(g.Lats)*len(g.Lons) {
		return fmt.Errorf("grid has %d values for %dx%d cells", len(g.Values), len(g.Lats), len(g.Lons))
	}
	return nil
}

// Value implements Grid.
func (g *Regular) Value(lat, lon float64) (float64, bool) {
	i, ok := nearest(g.Lats, lat)
	if !ok {
		return 0, false
	}
	j, ok := nearest(g.Lons, lon)
	if !ok {
		return 0, false
	}
	v := g.Values[i*len(g.Lons)+j]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if g.HasNoData && v == g.NoData {
		return 0, false
	}
	return v, true
}

// nearest finds the index of the cell centre closest to x, treating each
// centre as covering half a step on either side. axis may be ascending or
// descending.
func nearest(axis []float64, x float64) (int, bool) {
	n := len(axis)
	if n == 1 {
		return 0, true
	}
	step := (axis[n-1] - axis[0]) / float64(n-1)
	if step == 0 {
		return 0, false
	}
	idx := math.Round((x - axis[0]) / step)
	if idx < -0.5 || idx > float64(n-1)+0.5 {
		return 0, false
	}
	i := int(idx)
	if i < 0 || i >= n {
		return 0, false
	}
	if math.Abs(x-axis[i]) > math.Abs(step)/2+1e-9 {
		return 0, false
	}
	return i, true
}

// SampleCentroids reads grid at every centroid. Counties whose cell is
// outside the grid or empty are omitted, not zero-filled. Samples are
// sorted by county.
func SampleCentroids(g Grid, centroids map[string]domain.Point, year, month int) []domain.RainfallSample {
	out := make([]domain.RainfallSample, 0, len(centroids))
	for county, p := range centroids {
		v, ok := g.Value(p.Lat, p.Lon)
		if !ok {
			continue
		}
		out = append(out, domain.RainfallSample{
			MonthKey:   domain.MonthKey{County: county, Year: year, Month: month},
			RainfallMM: v,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].County < out[j].County })
	return out
}

// Open reads a raster file, choosing the reader by extension. varName
// selects the NetCDF variable and is ignored for other formats.
func Open(path, varName string) (Grid, error) {
	var (
		g   *Regular
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".asc":
		g, err = ReadASCIIFile(path)
	case ".nc":
		g, err = ReadNetCDF(path, varName)
	case ".tif", ".tiff":
		g, err = ReadGeoTIFF(path)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Base(path))
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}
