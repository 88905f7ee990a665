//go:build netcdf

package raster

import (
	"fmt"

	"github.com/fhs/go-netcdf/netcdf"
)

// latNames and lonNames are the coordinate variable names tried in order.
var (
	latNames = []string{"lat", "latitude", "y"}
	lonNames = []string{"lon", "longitude", "x"}
)

// ReadNetCDF reads the first time slice of varName from a NetCDF file.
func ReadNetCDF(path, varName string) (*Regular, error) {
	ds, err := netcdf.OpenFile(path, netcdf.NOWRITE)
	if err != nil {
		return nil, fmt.Errorf("open netcdf %s: %w", path, err)
	}
	defer ds.Close()

	lats, err := readAxis(ds, latNames)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	lons, err := readAxis(ds, lonNames)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	v, err := ds.Var(varName)
	if err != nil {
		return nil, fmt.Errorf("%s: variable %s: %w", path, varName, err)
	}
	dims, err := v.Dims()
	if err != nil {
		return nil, fmt.Errorf("%s: dims of %s: %w", path, varName, err)
	}
	start := make([]uint64, len(dims))
	count := make([]uint64, len(dims))
	for i := range count {
		count[i] = 1
	}
	if len(dims) < 2 {
		return nil, fmt.Errorf("%s: variable %s has %d dimensions", path, varName, len(dims))
	}
	count[len(dims)-2] = uint64(len(lats))
	count[len(dims)-1] = uint64(len(lons))

	g := &Regular{Lats: lats, Lons: lons, Values: make([]float64, len(lats)*len(lons))}
	if err := v.ReadFloat64Slice(g.Values, start, count); err != nil {
		return nil, fmt.Errorf("%s: read %s: %w", path, varName, err)
	}
	if fill, ok := fillValue(v); ok {
		g.NoData, g.HasNoData = fill, true
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

func readAxis(ds netcdf.Dataset, names []string) ([]float64, error) {
	for _, name := range names {
		v, err := ds.Var(name)
		if err != nil {
			continue
		}
		n, err := v.Len()
		if err != nil {
			return nil, fmt.Errorf("length of %s: %w", name, err)
		}
		axis := make([]float64, n)
		if err := v.ReadFloat64s(axis); err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		return axis, nil
	}
	return nil, fmt.Errorf("no coordinate variable among %v", names)
}

func fillValue(v netcdf.Var) (float64, bool) {
	for _, name := range []string{"_FillValue", "missing_value"} {
		a := v.Attr(name)
		n, err := a.Len()
		if err != nil || n == 0 {
			continue
		}
		vals := make([]float64, n)
		if err := a.ReadFloat64s(vals); err != nil {
			continue
		}
		return vals[0], true
	}
	return 0, false
}
