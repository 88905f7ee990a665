//go:build !gdal

package raster

import "fmt"

// ReadGeoTIFF is unavailable without the gdal build tag, which links
// libgdal.
func ReadGeoTIFF(path string) (*Regular, error) {
	return nil, fmt.Errorf("%w: %s needs a build with -tags gdal", ErrUnsupportedFormat, path)
}
