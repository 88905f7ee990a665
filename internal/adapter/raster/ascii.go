package raster

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// ReadASCIIFile reads an ESRI ASCII grid.
func ReadASCIIFile(path string) (*Regular, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open ascii grid: %w", err)
	}
	defer f.Close()
	g, err := ReadASCII(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return g, nil
}

// ReadASCII parses an ESRI ASCII grid. Rows run north to south. Both the
// corner and the centre forms of the origin keys are accepted.
func ReadASCII(r io.Reader) (*Regular, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1<<20), 1<<26)
	sc.Split(bufio.ScanWords)

	hdr := map[string]float64{}
	var first string
	for sc.Scan() {
		key := strings.ToLower(sc.Text())
		if _, err := strconv.ParseFloat(key, 64); err == nil {
			first = sc.Text()
			break
		}
		if !sc.Scan() {
			return nil, fmt.Errorf("header key %s has no value", key)
		}
		v, err := strconv.ParseFloat(sc.Text(), 64)
		if err != nil {
			return nil, fmt.Errorf("header %s: %w", key, err)
		}
		hdr[key] = v
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan ascii grid: %w", err)
	}

	ncols, nrows, cell := int(hdr["ncols"]), int(hdr["nrows"]), hdr["cellsize"]
	if ncols <= 0 || nrows <= 0 || cell <= 0 {
		return nil, fmt.Errorf("invalid header: ncols=%d nrows=%d cellsize=%g", ncols, nrows, cell)
	}

	// Centre of the south-west cell.
	x0, y0 := hdr["xllcorner"]+cell/2, hdr["yllcorner"]+cell/2
	if v, ok := hdr["xllcenter"]; ok {
		x0 = v
	}
	if v, ok := hdr["yllcenter"]; ok {
		y0 = v
	}

	g := &Regular{
		Lats:   make([]float64, nrows),
		Lons:   make([]float64, ncols),
		Values: make([]float64, 0, nrows*ncols),
	}
	for i := range g.Lats {
		g.Lats[i] = y0 + float64(nrows-1-i)*cell
	}
	for j := range g.Lons {
		g.Lons[j] = x0 + float64(j)*cell
	}
	if v, ok := hdr["nodata_value"]; ok {
		g.NoData, g.HasNoData = v, true
	}

	parse := func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("cell %d: %w", len(g.Values), err)
		}
		g.Values = append(g.Values, v)
		return nil
	}
	if first != "" {
		if err := parse(first); err != nil {
			return nil, err
		}
	}
	for sc.Scan() && len(g.Values) < nrows*ncols {
		if err := parse(sc.Text()); err != nil {
			return nil, err
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan ascii grid: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}
