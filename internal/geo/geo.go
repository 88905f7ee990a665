// Package geo assigns coordinates to Kenyan counties.
package geo

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/index/rtree"

	"github.com/couchcryptid/maize-resilience-service/internal/domain"
)

// lookupPad pads point lookups so boundary points are not lost to the index.
const lookupPad = 1e-9

// region is an indexed county shape. order is the position in the source
// table; lower wins when regions overlap.
type region struct {
	geom.Polygonal
	county string
	order  int
	box    *domain.BoundingBox
}

func (r *region) contains(lat, lon float64) bool {
	if r.box != nil {
		return r.box.Contains(lat, lon)
	}
	return geom.Point{X: lon, Y: lat}.Within(r.Polygonal) != geom.Outside
}

type index struct {
	tree *rtree.Rtree
	size int
}

func newIndex() *index {
	return &index{tree: rtree.NewTree(25, 50)}
}

func (ix *index) insert(r *region) {
	ix.tree.Insert(r)
	ix.size++
}

// lookup returns the lowest-order region containing the point.
func (ix *index) lookup(lat, lon float64) string {
	box := &geom.Bounds{
		Min: geom.Point{X: lon - lookupPad, Y: lat - lookupPad},
		Max: geom.Point{X: lon + lookupPad, Y: lat + lookupPad},
	}
	best := -1
	county := domain.UnknownCounty
	for _, g := range ix.tree.SearchIntersect(box) {
		r := g.(*region)
		if best >= 0 && r.order > best {
			continue
		}
		if r.contains(lat, lon) {
			best = r.order
			county = r.county
		}
	}
	return county
}

// BBoxAssigner labels points with the first county bounding box that
// contains them, in table order. Edges are inclusive.
type BBoxAssigner struct {
	ix *index
}

// NewBBoxAssigner indexes boxes. Boxes for unrecognized counties are rejected.
func NewBBoxAssigner(boxes []domain.BoundingBox) (*BBoxAssigner, error) {
	ix := newIndex()
	for i := range boxes {
		b := boxes[i]
		if !domain.IsCounty(b.County) {
			return nil, fmt.Errorf("bounding box %d: unknown county %q", i, b.County)
		}
		if b.MinLat > b.MaxLat || b.MinLon > b.MaxLon {
			return nil, fmt.Errorf("bounding box %d (%s): inverted bounds", i, b.County)
		}
		ix.insert(&region{
			Polygonal: &geom.Bounds{
				Min: geom.Point{X: b.MinLon, Y: b.MinLat},
				Max: geom.Point{X: b.MaxLon, Y: b.MaxLat},
			},
			county: b.County,
			order:  i,
			box:    &b,
		})
	}
	return &BBoxAssigner{ix: ix}, nil
}

// DefaultBBoxAssigner indexes the built-in county bounding boxes.
func DefaultBBoxAssigner() *BBoxAssigner {
	a, err := NewBBoxAssigner(domain.CountyBoxes)
	if err != nil {
		panic(err)
	}
	return a
}

// Assign implements domain.CountyAssigner.
func (a *BBoxAssigner) Assign(lat, lon float64) string {
	return a.ix.lookup(lat, lon)
}

// ShapeAssigner labels points by county polygons read from a shapefile.
type ShapeAssigner struct {
	ix      *index
	skipped []string
}

// LoadShapeAssigner reads county polygons from path. nameField is the
// attribute holding the county name; shapes whose name does not resolve to
// a canonical county are skipped.
func LoadShapeAssigner(path, nameField string) (*ShapeAssigner, error) {
	dec, err := shp.NewDecoder(path)
	if err != nil {
		return nil, fmt.Errorf("open shapefile: %w", err)
	}
	defer dec.Close()

	a := &ShapeAssigner{ix: newIndex()}
	for i := 0; ; i++ {
		g, fields, more := dec.DecodeRowFields(nameField)
		if !more {
			break
		}
		name := fields[nameField]
		county, ok := domain.CanonicalCounty(name)
		if !ok {
			a.skipped = append(a.skipped, name)
			continue
		}
		poly, ok := g.(geom.Polygonal)
		if !ok {
			return nil, fmt.Errorf("shape %d (%s): not a polygon", i, county)
		}
		a.ix.insert(&region{Polygonal: poly, county: county, order: i})
	}
	if err := dec.Error(); err != nil {
		return nil, fmt.Errorf("decode shapefile: %w", err)
	}
	if a.ix.size == 0 {
		return nil, errors.New("shapefile has no recognized county polygons")
	}
	return a, nil
}

// Assign implements domain.CountyAssigner.
func (a *ShapeAssigner) Assign(lat, lon float64) string {
	return a.ix.lookup(lat, lon)
}

// Skipped returns the shape names that did not match a county.
func (a *ShapeAssigner) Skipped() []string {
	return a.skipped
}

// NearestCentroid returns the county whose centroid is closest to the point
// and the distance in kilometres (equirectangular approximation).
func NearestCentroid(lat, lon float64) (string, float64) {
	names := make([]string, 0, len(domain.Centroids))
	for c := range domain.Centroids {
		names = append(names, c)
	}
	sort.Strings(names)

	best, bestDist := domain.UnknownCounty, math.Inf(1)
	for _, c := range names {
		p := domain.Centroids[c]
		if d := distanceKm(lat, lon, p.Lat, p.Lon); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}

const earthRadiusKm = 6371.0

func distanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	rad := math.Pi / 180
	x := (lon2 - lon1) * rad * math.Cos((lat1+lat2)/2*rad)
	y := (lat2 - lat1) * rad
	return math.Hypot(x, y) * earthRadiusKm
}
