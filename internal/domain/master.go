package domain

import (
	"errors"
	"fmt"
	"sort"
)

// ErrDuplicateKey reports a repeated (county, year, month) in the base table.
var ErrDuplicateKey = errors.New("duplicate county-month key")

// MasterRow is one county-month of the integrated dataset.
type MasterRow struct {
	MonthlyAggregate
	Dashboard DashboardMetrics
	Yield     *YieldRecord
	Soil      *SoilProfile
	Rainfall  *float64

	WaterScarcityScore      float64
	AgriculturalRiskIndex   float64
	IrrigationPriorityScore float64
}

// MasterSources are the optional tables joined onto the weather base.
type MasterSources struct {
	Yield    []YieldRecord
	Soil     []SoilProfile
	Rainfall []RainfallSample
}

// BuildReport counts join coverage for the summary.
type BuildReport struct {
	BaseRows          int
	UnknownCounty     int
	WithYield         int
	WithSoil          int
	WithRainfall      int
	DuplicateYield    int
	DuplicateSoil     int
	DuplicateRainfall int
}

type yearKey struct {
	county string
	year   int
}

// BuildMaster left-joins the optional sources onto the monthly weather
// base. Every recognized base row appears exactly once in the output;
// rows for counties outside the canonical list are dropped and counted.
// Yield rows are broadcast over the twelve months of their year and soil
// profiles over every month. Composite scores are filled last.
func BuildMaster(base []MonthlyAggregate, src MasterSources, h Heuristics) ([]MasterRow, BuildReport, error) {
	var report BuildReport

	yields := make(map[yearKey]*YieldRecord, len(src.Yield))
	for i := range src.Yield {
		y := &src.Yield[i]
		k := yearKey{y.County, y.Year}
		if _, dup := yields[k]; dup {
			report.DuplicateYield++
			continue
		}
		yields[k] = y
	}

	soils := make(map[string]*SoilProfile, len(src.Soil))
	for i := range src.Soil {
		s := &src.Soil[i]
		if _, dup := soils[s.County]; dup {
			report.DuplicateSoil++
			continue
		}
		soils[s.County] = s
	}

	rain := make(map[MonthKey]float64, len(src.Rainfall))
	for _, r := range src.Rainfall {
		if _, dup := rain[r.MonthKey]; dup {
			report.DuplicateRainfall++
			continue
		}
		rain[r.MonthKey] = r.RainfallMM
	}

	seen := make(map[MonthKey]bool, len(base))
	rows := make([]MasterRow, 0, len(base))
	for _, m := range base {
		if !IsCounty(m.County) {
			report.UnknownCounty++
			continue
		}
		if seen[m.MonthKey] {
			return nil, report, fmt.Errorf("%w: %s %d-%02d", ErrDuplicateKey, m.County, m.Year, m.Month)
		}
		seen[m.MonthKey] = true

		row := MasterRow{
			MonthlyAggregate: m,
			Dashboard:        DeriveDashboard(m, h.Dashboard, h.Stress),
		}
		if y, ok := yields[yearKey{m.County, m.Year}]; ok {
			row.Yield = y
			report.WithYield++
		}
		if s, ok := soils[m.County]; ok {
			row.Soil = s
			report.WithSoil++
		}
		if r, ok := rain[m.MonthKey]; ok {
			row.Rainfall = Float(r)
			report.WithRainfall++
		}
		ApplyComposites(&row, h.Composite)
		rows = append(rows, row)
	}
	report.BaseRows = len(rows)

	sort.Slice(rows, func(i, j int) bool { return rows[i].MonthKey.Less(rows[j].MonthKey) })
	return rows, report, nil
}

// ApplyComposites fills the composite scores, substituting the configured
// neutral defaults for missing inputs. A default is not evidence of good
// conditions.
func ApplyComposites(row *MasterRow, c CompositeHeuristics) {
	row.WaterScarcityScore = c.WaterScarcityDefault
	if row.WaterStressIndex != nil {
		row.WaterScarcityScore = Clamp(*row.WaterStressIndex*100, 0, 100)
	}

	row.AgriculturalRiskIndex = c.AgriculturalRiskDefault
	if row.CropYieldImpact != nil {
		row.AgriculturalRiskIndex = Clamp(*row.CropYieldImpact, 0, 100)
	}

	switch row.IrrigationNeeded {
	case IrrigationYes:
		row.IrrigationPriorityScore = c.PriorityYes
	case IrrigationNo:
		row.IrrigationPriorityScore = c.PriorityNo
	default:
		row.IrrigationPriorityScore = c.PriorityUnknown
	}
}

// MaizeYield returns the joined yield target, or nil.
func (r MasterRow) MaizeYield() *float64 {
	if r.Yield == nil {
		return nil
	}
	return r.Yield.YieldTonnesHa
}

// SoilValue returns a joined soil property (without the Soil_ prefix), or nil.
func (r MasterRow) SoilValue(property string) *float64 {
	if r.Soil == nil {
		return nil
	}
	return r.Soil.Get(property)
}
