package domain

import (
	"strings"
)

// UnknownCounty labels spatial samples that match no county.
const UnknownCounty = "Unknown"

// Counties is the canonical list of the 47 Kenyan counties.
var Counties = []string{
	"Mombasa", "Kwale", "Kilifi", "Tana River", "Lamu", "Taita Taveta", "Garissa",
	"Wajir", "Mandera", "Marsabit", "Isiolo", "Meru", "Tharaka Nithi", "Embu",
	"Kitui", "Machakos", "Makueni", "Nyandarua", "Nyeri", "Kirinyaga", "Murang'a",
	"Kiambu", "Turkana", "West Pokot", "Samburu", "Trans Nzoia", "Uasin Gishu",
	"Elgeyo Marakwet", "Nandi", "Baringo", "Laikipia", "Nakuru", "Narok",
	"Kajiado", "Kericho", "Bomet", "Kakamega", "Vihiga", "Bungoma", "Busia",
	"Siaya", "Kisumu", "Homa Bay", "Migori", "Kisii", "Nyamira", "Nairobi",
}

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Centroids holds the approximate centre of each county, used for raster
// sampling and weather archive requests.
var Centroids = map[string]Point{
	"Mombasa":         {-4.0435, 39.6682},
	"Kwale":           {-4.1816, 39.4606},
	"Kilifi":          {-3.5107, 39.9093},
	"Tana River":      {-1.6516, 39.7596},
	"Lamu":            {-2.2711, 40.9020},
	"Taita Taveta":    {-3.3958, 38.3846},
	"Garissa":         {-0.4565, 39.6483},
	"Wajir":           {1.7473, 40.0573},
	"Mandera":         {3.9373, 41.8568},
	"Marsabit":        {2.3344, 37.9909},
	"Isiolo":          {0.3545, 37.5833},
	"Meru":            {0.0469, 37.6591},
	"Tharaka Nithi":   {-0.2965, 37.7233},
	"Embu":            {-0.5312, 37.4506},
	"Kitui":           {-1.3672, 38.0106},
	"Machakos":        {-1.5177, 37.2634},
	"Makueni":         {-2.2558, 37.8931},
	"Nyandarua":       {-0.5323, 36.6174},
	"Nyeri":           {-0.4201, 36.9476},
	"Kirinyaga":       {-0.6591, 37.3827},
	"Murang'a":        {-0.7833, 37.1333},
	"Kiambu":          {-1.0319, 36.8681},
	"Turkana":         {3.3122, 35.5658},
	"West Pokot":      {1.6219, 35.2604},
	"Samburu":         {1.2155, 36.9541},
	"Trans Nzoia":     {1.0566, 34.9533},
	"Uasin Gishu":     {0.5204, 35.2699},
	"Elgeyo Marakwet": {0.5204, 35.2699},
	"Nandi":           {0.1833, 35.1333},
	"Baringo":         {0.4667, 36.0667},
	"Laikipia":        {0.2044, 36.2044},
	"Nakuru":          {-0.3031, 36.0800},
	"Narok":           {-1.0800, 35.8700},
	"Kajiado":         {-1.8500, 36.7833},
	"Kericho":         {-0.3667, 35.2833},
	"Bomet":           {-0.7833, 35.3500},
	"Kakamega":        {0.2833, 34.7500},
	"Vihiga":          {0.0833, 34.7167},
	"Bungoma":         {0.5667, 34.5667},
	"Busia":           {0.4667, 34.1167},
	"Siaya":           {0.0667, 34.2833},
	"Kisumu":          {-0.1000, 34.7500},
	"Homa Bay":        {-0.5167, 34.4500},
	"Migori":          {-1.0667, 34.4667},
	"Kisii":           {-0.6833, 34.7667},
	"Nyamira":         {-0.5667, 34.9500},
	"Nairobi":         {-1.2921, 36.8219},
}

// BoundingBox is an axis-aligned latitude/longitude rectangle. Edges are inclusive.
type BoundingBox struct {
	County string
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

// Contains reports whether the point lies inside the box, edges included.
func (b BoundingBox) Contains(lat, lon float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lon >= b.MinLon && lon <= b.MaxLon
}

// CountyBoxes is the ordered rectangle table used to label soil points.
// Several rectangles overlap; the first matching entry wins, so order matters.
var CountyBoxes = []BoundingBox{
	{"Mombasa", -4.5, -3.5, 39.0, 40.5},
	{"Kwale", -4.5, -3.5, 38.0, 39.5},
	{"Kilifi", -3.8, -2.8, 39.5, 40.5},
	{"Tana River", -1.8, -0.8, 39.5, 40.5},
	{"Lamu", -2.5, -1.5, 40.5, 41.5},
	{"Taita Taveta", -3.8, -2.8, 38.0, 39.0},
	{"Garissa", -0.8, 0.2, 39.0, 40.5},
	{"Wajir", 1.0, 2.0, 39.5, 40.5},
	{"Mandera", 3.0, 4.0, 41.0, 42.0},
	{"Marsabit", 2.0, 3.0, 37.5, 38.5},
	{"Isiolo", 0.0, 1.0, 37.0, 38.0},
	{"Meru", 0.0, 1.0, 37.5, 38.5},
	{"Tharaka Nithi", -0.5, 0.5, 37.5, 38.5},
	{"Embu", -0.8, 0.2, 37.0, 38.0},
	{"Kitui", -1.8, -0.8, 37.5, 38.5},
	{"Machakos", -2.0, -1.0, 37.0, 38.0},
	{"Makueni", -2.5, -1.5, 37.5, 38.5},
	{"Nyandarua", -0.8, 0.2, 36.0, 37.0},
	{"Nyeri", -0.8, 0.2, 36.5, 37.5},
	{"Kirinyaga", -1.0, 0.0, 37.0, 38.0},
	{"Murang'a", -1.0, 0.0, 37.0, 38.0},
	{"Kiambu", -1.5, -0.5, 36.5, 37.5},
	{"Turkana", 3.0, 4.0, 35.0, 36.0},
	{"West Pokot", 1.0, 2.0, 34.5, 35.5},
	{"Samburu", 1.0, 2.0, 36.5, 37.5},
	{"Trans Nzoia", 1.0, 2.0, 34.5, 35.5},
	{"Uasin Gishu", 0.0, 1.0, 35.0, 36.0},
	{"Elgeyo Marakwet", 0.0, 1.0, 35.0, 36.0},
	{"Nandi", 0.0, 1.0, 34.5, 35.5},
	{"Baringo", 0.0, 1.0, 36.0, 37.0},
	{"Laikipia", 0.0, 1.0, 36.0, 37.0},
	{"Nakuru", -0.8, 0.2, 35.5, 36.5},
	{"Narok", -1.5, -0.5, 35.5, 36.5},
	{"Kajiado", -2.0, -1.0, 36.5, 37.5},
	{"Kericho", -0.8, 0.2, 35.0, 36.0},
	{"Bomet", -1.0, 0.0, 35.0, 36.0},
	{"Kakamega", 0.0, 1.0, 34.0, 35.0},
	{"Vihiga", 0.0, 1.0, 34.0, 35.0},
	{"Bungoma", 0.0, 1.0, 34.0, 35.0},
	{"Busia", 0.0, 1.0, 34.0, 35.0},
	{"Siaya", 0.0, 1.0, 34.0, 35.0},
	{"Kisumu", -0.5, 0.5, 34.0, 35.0},
	{"Homa Bay", -1.0, 0.0, 34.0, 35.0},
	{"Migori", -1.5, -0.5, 34.0, 35.0},
	{"Kisii", -1.0, 0.0, 34.5, 35.5},
	{"Nyamira", -1.0, 0.0, 34.5, 35.5},
	{"Nairobi", -1.5, -0.5, 36.5, 37.5},
}

var countyIndex = func() map[string]string {
	m := make(map[string]string, len(Counties))
	for _, c := range Counties {
		m[countyKey(c)] = c
	}
	return m
}()

// countyKey folds case, underscores, hyphens and repeated spaces so that
// "tana_river", "TANA RIVER" and "Tana River" compare equal. Apostrophes are
// kept so "Murang'a" stays distinct from a misspelling.
func countyKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.NewReplacer("_", " ", "-", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// CanonicalCounty maps a loosely formatted county name to its canonical
// spelling. The second result is false for names outside the 47 counties.
func CanonicalCounty(name string) (string, bool) {
	c, ok := countyIndex[countyKey(name)]
	return c, ok
}

// IsCounty reports whether name is exactly one of the canonical counties.
func IsCounty(name string) bool {
	c, ok := CanonicalCounty(name)
	return ok && c == name
}

// CountySlug returns the file-name form of a county, e.g. "Murang'a" -> "muranga",
// "Tana River" -> "tana_river".
func CountySlug(county string) string {
	s := strings.ToLower(county)
	s = strings.ReplaceAll(s, "'", "")
	return strings.ReplaceAll(s, " ", "_")
}

// CountyFromSlug reverses CountySlug for the canonical counties.
func CountyFromSlug(slug string) (string, bool) {
	for _, c := range Counties {
		if CountySlug(c) == strings.ToLower(slug) {
			return c, true
		}
	}
	return CanonicalCounty(slug)
}
