//go:build !netcdf

package raster

import "fmt"

// ReadNetCDF is unavailable without the netcdf build tag, which links the
// C library.
func ReadNetCDF(path, _ string) (*Regular, error) {
	return nil, fmt.Errorf("%w: %s needs a build with -tags netcdf", ErrUnsupportedFormat, path)
}
