package raster

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var periodPattern = regexp.MustCompile(`(\d{4})\.?(\d{2})(?:\D|$)`)

// ParsePeriod extracts the year and month from a CHIRPS-style file name such
// as chirps-v3.0.2020.03.tif or chirps-v3.0.202003.nc.
func ParsePeriod(name string) (year, month int, err error) {
	base := filepath.Base(name)
	if i := strings.Index(base, "v3.0."); i >= 0 {
		base = base[i+len("v3.0."):]
	}
	m := periodPattern.FindStringSubmatch(base)
	if m == nil {
		return 0, 0, fmt.Errorf("no period in file name %q", name)
	}
	year, _ = strconv.Atoi(m[1])
	month, _ = strconv.Atoi(m[2])
	if month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("invalid month %d in file name %q", month, name)
	}
	return year, month, nil
}

var rasterExts = map[string]bool{".nc": true, ".tif": true, ".tiff": true, ".asc": true}

// File is a raster for one month.
type File struct {
	Path  string
	Year  int
	Month int
}

// Window bounds the years that are loaded, inclusive.
type Window struct {
	FromYear int
	ToYear   int
}

// Contains reports whether year is inside the window.
func (w Window) Contains(year int) bool {
	return year >= w.FromYear && year <= w.ToYear
}

// ListFiles finds NetCDF, GeoTIFF and ESRI ASCII rasters in dir whose period falls in window.
// Files with unparsable names are returned in skipped; files outside the
// window are ignored.
func ListFiles(dir string, window Window) (files []File, skipped []string, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("raster dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if !rasterExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		year, month, perr := ParsePeriod(e.Name())
		if perr != nil {
			skipped = append(skipped, e.Name())
			continue
		}
		if !window.Contains(year) {
			continue
		}
		files = append(files, File{Path: filepath.Join(dir, e.Name()), Year: year, Month: month})
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].Year != files[j].Year {
			return files[i].Year < files[j].Year
		}
		return files[i].Month < files[j].Month
	})
	return files, skipped, nil
}
