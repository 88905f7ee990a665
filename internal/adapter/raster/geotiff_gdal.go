//go:build gdal

package raster

import (
	"fmt"
	"sync"

	"github.com/airbusgeo/godal"
)

var registerDrivers sync.Once

// ReadGeoTIFF reads the first band of a GeoTIFF.
func ReadGeoTIFF(path string) (*Regular, error) {
	registerDrivers.Do(godal.RegisterAll)

	ds, err := godal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geotiff %s: %w", path, err)
	}
	defer ds.Close()

	st := ds.Structure()
	if st.NBands < 1 {
		return nil, fmt.Errorf("%s: no bands", path)
	}
	gt, err := ds.GeoTransform()
	if err != nil {
		return nil, fmt.Errorf("%s: geotransform: %w", path, err)
	}

	band := ds.Bands()[0]
	values := make([]float64, st.SizeX*st.SizeY)
	if err := band.Read(0, 0, values, st.SizeX, st.SizeY); err != nil {
		return nil, fmt.Errorf("%s: read band: %w", path, err)
	}

	g, err := FromGeoTransform(gt, st.SizeX, st.SizeY, values)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if nd, ok := band.NoData(); ok {
		g.NoData, g.HasNoData = nd, true
	}
	return g, nil
}
