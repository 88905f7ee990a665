package raster

import (
	"errors"
	"fmt"
)

// FromGeoTransform builds a grid from a GDAL affine transform
// (origin x, pixel width, row rotation, origin y, column rotation, pixel
// height) and row-major band values. Rotated transforms are rejected.
func FromGeoTransform(gt [6]float64, width, height int, values []float64) (*Regular, error) {
	if gt[2] != 0 || gt[4] != 0 {
		return nil, errors.New("rotated geotransform is not supported")
	}
	if gt[1] == 0 || gt[5] == 0 {
		return nil, fmt.Errorf("geotransform has zero pixel size: %v", gt)
	}
	g := &Regular{
		Lats:   make([]float64, height),
		Lons:   make([]float64, width),
		Values: values,
	}
	for j := range g.Lons {
		g.Lons[j] = gt[0] + (float64(j)+0.5)*gt[1]
	}
	for i := range g.Lats {
		g.Lats[i] = gt[3] + (float64(i)+0.5)*gt[5]
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}
