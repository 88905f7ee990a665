// Command validate checks the integrity of pipeline outputs: the master
// dataset, its summary JSON and, when given, the trained model bundle and the
// soil survey. It verifies keys, value ranges, summary counts, model/dataset
// agreement and that soil points land near the county they are assigned to.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -master data/processed/master_dataset.csv \
//	  -summary data/processed/master_dataset_summary.json \
//	  -model models/maize_model.json \
//	  -soil data/raw/soil/isric_soil_data.csv
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"slices"

	"github.com/couchcryptid/maize-resilience-service/internal/adapter/csvfile"
	"github.com/couchcryptid/maize-resilience-service/internal/domain"
	"github.com/couchcryptid/maize-resilience-service/internal/geo"
	"github.com/couchcryptid/maize-resilience-service/internal/model"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

const maxReported = 20

// maxCentroidKm is the farthest an assigned soil point may lie from every
// county centroid. Parts of Turkana are close to 200 km from any centroid.
const maxCentroidKm = 200.0

type options struct {
	masterPath  string
	summaryPath string
	modelPath   string
	soilPath    string
	soilCountry string
	shapefile   string
	shapeField  string
}

func main() {
	var opts options
	flag.StringVar(&opts.masterPath, "master", "data/processed/master_dataset.csv", "master dataset CSV")
	flag.StringVar(&opts.summaryPath, "summary", "data/processed/master_dataset_summary.json", "summary JSON")
	flag.StringVar(&opts.modelPath, "model", "", "model bundle JSON (optional)")
	flag.StringVar(&opts.soilPath, "soil", "", "soil survey CSV (optional)")
	flag.StringVar(&opts.soilCountry, "soil-country", "KE", "country code of soil samples to check")
	flag.StringVar(&opts.shapefile, "shapefile", "", "county polygons used instead of bounding boxes (optional)")
	flag.StringVar(&opts.shapeField, "shape-field", "COUNTY", "shapefile attribute holding the county name")
	flag.Parse()

	if code := run(opts); code != 0 {
		os.Exit(code)
	}
}

func run(opts options) int {
	fmt.Println("=== Maize Pipeline Integrity Validation ===")
	fmt.Println()

	rows, err := csvfile.ReadMasterFile(opts.masterPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load master dataset: %v\n", err)
		return 1
	}
	summary, err := loadJSON[domain.Summary](opts.summaryPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load summary: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateKeys(rows),
		validateRanges(rows),
		validateSummary(rows, summary),
	}
	if opts.modelPath != "" {
		phases = append(phases, validateModel(opts.modelPath, rows))
	}
	if opts.soilPath != "" {
		assigner, err := countyAssigner(opts.shapefile, opts.shapeField)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load county polygons: %v\n", err)
			return 1
		}
		samples, err := csvfile.ReadSoilFile(opts.soilPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load soil survey: %v\n", err)
			return 1
		}
		p, st := validateSoilAssignment(samples, opts.soilCountry, assigner)
		fmt.Printf("Soil: %d samples checked, %d unassigned, %d nearer another county's centroid\n",
			st.checked, st.unassigned, st.nearerOther)
		phases = append(phases, p)
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d master rows, %d counties, years %v\n", len(rows), summary.Counties, summary.Years)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i == maxReported {
				fmt.Printf("  ... and %d more\n", len(p.errors)-maxReported)
				break
			}
			fmt.Printf("  %s\n", e)
		}
	}

	if !allPassed {
		return 1
	}
	fmt.Println("\nAll checks passed.")
	return 0
}

func loadJSON[T any](path string) (T, error) {
	var v T
	data, err := os.ReadFile(path)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}

// validateKeys checks that every (county, year, month) is canonical, unique
// and in sorted order.
func validateKeys(rows []domain.MasterRow) *phase {
	p := &phase{name: "Phase 1: Keys and ordering"}
	seen := make(map[domain.MonthKey]bool, len(rows))
	for i, r := range rows {
		if !domain.IsCounty(r.County) {
			p.errorf("row %d: county %q is not canonical", i+1, r.County)
		}
		if r.Month < 1 || r.Month > 12 {
			p.errorf("row %d: month %d out of range", i+1, r.Month)
		}
		if seen[r.MonthKey] {
			p.errorf("row %d: duplicate key %s %d-%02d", i+1, r.County, r.Year, r.Month)
		}
		seen[r.MonthKey] = true
		if i > 0 && r.MonthKey.Less(rows[i-1].MonthKey) {
			p.errorf("row %d: %s %d-%02d sorts before the previous row", i+1, r.County, r.Year, r.Month)
		}
	}
	return p
}

func inRange(p *float64, lo, hi float64) bool {
	return p == nil || (*p >= lo && *p <= hi)
}

// validateRanges checks derived columns against their defined bounds.
func validateRanges(rows []domain.MasterRow) *phase {
	p := &phase{name: "Phase 2: Value ranges"}
	for i, r := range rows {
		key := fmt.Sprintf("row %d (%s %d-%02d)", i+1, r.County, r.Year, r.Month)
		if !inRange(r.Humidity, 0, 100) {
			p.errorf("%s: humidity %.2f outside 0-100", key, *r.Humidity)
		}
		if !inRange(r.WaterStressIndex, 0, 100) {
			p.errorf("%s: water stress %.2f outside 0-100", key, *r.WaterStressIndex)
		}
		if !inRange(r.Precipitation, 0, 1e6) {
			p.errorf("%s: negative precipitation %.2f", key, *r.Precipitation)
		}
		if r.MaxTemperature != nil && r.MinTemperature != nil && *r.MaxTemperature < *r.MinTemperature {
			p.errorf("%s: max temperature below min", key)
		}
		for name, v := range map[string]float64{
			"water scarcity":      r.WaterScarcityScore,
			"agricultural risk":   r.AgriculturalRiskIndex,
			"irrigation priority": r.IrrigationPriorityScore,
			"crop loss risk":      r.Dashboard.CropLossRisk,
		} {
			if v < 0 || v > 100 {
				p.errorf("%s: %s %.2f outside 0-100", key, name, v)
			}
		}
		switch r.IrrigationNeeded {
		case domain.IrrigationYes, domain.IrrigationNo, domain.IrrigationUnknown:
		default:
			p.errorf("%s: irrigation flag %q", key, r.IrrigationNeeded)
		}
		if y := r.MaizeYield(); y != nil && *y <= 0 {
			p.errorf("%s: non-positive yield %.2f", key, *y)
		}
	}
	return p
}

// validateSummary recomputes the summary from rows and compares counts.
func validateSummary(rows []domain.MasterRow, got domain.Summary) *phase {
	p := &phase{name: "Phase 3: Summary consistency"}
	want := domain.Summarize(rows, 0)

	if got.TotalRecords != want.TotalRecords {
		p.errorf("total_records: summary %d, dataset %d", got.TotalRecords, want.TotalRecords)
	}
	if got.Counties != want.Counties {
		p.errorf("counties: summary %d, dataset %d", got.Counties, want.Counties)
	}
	if !slices.Equal(got.Years, want.Years) {
		p.errorf("years: summary %v, dataset %v", got.Years, want.Years)
	}
	if !slices.Equal(got.Columns, want.Columns) {
		p.errorf("columns differ from the master header")
	}
	if got.Coverage != want.Coverage {
		p.errorf("coverage: summary %+v, dataset %+v", got.Coverage, want.Coverage)
	}
	for flag, n := range want.IrrigationFlags {
		if got.IrrigationFlags[flag] != n {
			p.errorf("irrigation flag %s: summary %d, dataset %d", flag, got.IrrigationFlags[flag], n)
		}
	}
	if !slices.Equal(got.MissingCounties, want.MissingCounties) {
		p.errorf("missing counties: summary %v, dataset %v", got.MissingCounties, want.MissingCounties)
	}
	return p
}

// validateModel checks that the bundle loads and was trained on this
// dataset's feature set and counties.
func validateModel(path string, rows []domain.MasterRow) *phase {
	p := &phase{name: "Phase 4: Model bundle"}
	b, err := model.LoadBundle(path)
	if err != nil {
		p.errorf("load bundle: %v", err)
		return p
	}
	if !slices.Equal(b.NumericFeatures(), domain.NumericFeatures) {
		p.errorf("numeric features %v, expected %v", b.NumericFeatures(), domain.NumericFeatures)
	}

	withYield := make(map[string]bool)
	for _, r := range rows {
		if r.MaizeYield() != nil {
			withYield[r.County] = true
		}
	}
	for _, c := range b.Encoder.Categories {
		if !withYield[c] {
			p.errorf("model county %s has no yield rows in the dataset", c)
		}
	}

	meta, err := model.LoadMetadata(model.MetadataPath(path))
	if err != nil {
		p.errorf("load metadata: %v", err)
		return p
	}
	if meta.Rows <= 0 {
		p.errorf("metadata reports %d training rows", meta.Rows)
	}
	if meta.Counties != len(b.Encoder.Categories) {
		p.errorf("metadata counties %d, encoder has %d", meta.Counties, len(b.Encoder.Categories))
	}
	if meta.Params != b.Model.Params {
		p.errorf("metadata params %+v differ from the bundle's %+v", meta.Params, b.Model.Params)
	}
	return p
}

func countyAssigner(shapefile, field string) (domain.CountyAssigner, error) {
	if shapefile == "" {
		return geo.DefaultBBoxAssigner(), nil
	}
	a, err := geo.LoadShapeAssigner(shapefile, field)
	if err != nil {
		return nil, err
	}
	for _, name := range a.Skipped() {
		fmt.Printf("shapefile: polygon %q matches no county\n", name)
	}
	return a, nil
}

type soilStats struct {
	checked     int
	unassigned  int
	nearerOther int
}

// validateSoilAssignment flags soil points that were assigned a county yet
// lie far from every county centroid. Points closer to a neighbouring
// centroid are counted but pass: county boxes overlap and the first match
// wins.
func validateSoilAssignment(samples []domain.SoilSample, country string, assigner domain.CountyAssigner) (*phase, soilStats) {
	p := &phase{name: "Phase 5: Soil county assignment"}
	var st soilStats
	for i, s := range samples {
		if country != "" && s.Country != country {
			continue
		}
		st.checked++
		county := assigner.Assign(s.Latitude, s.Longitude)
		if county == domain.UnknownCounty {
			st.unassigned++
			continue
		}
		nearest, dist := geo.NearestCentroid(s.Latitude, s.Longitude)
		if dist > maxCentroidKm {
			p.errorf("sample %d (%.4f, %.4f): assigned to %s but %.0f km from the nearest centroid (%s)",
				i+1, s.Latitude, s.Longitude, county, dist, nearest)
			continue
		}
		if nearest != county {
			st.nearerOther++
		}
	}
	return p, st
}
